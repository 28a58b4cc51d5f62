package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteAndReadMigrationFile(t *testing.T) {
	tmpDir := t.TempDir()

	migration := &Migration{
		ID:        "001_create_person",
		Name:      "Create person class",
		Timestamp: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Up: []string{
			"CREATE CLASS Person EXTENDS V",
			"CREATE PROPERTY Person.name STRING (MANDATORY TRUE)",
		},
		Down: []string{
			"DROP PROPERTY Person.name",
			"DROP CLASS Person",
		},
	}

	filePath, err := WriteMigrationFile(migration, tmpDir)
	if err != nil {
		t.Fatalf("WriteMigrationFile failed: %v", err)
	}

	// Filenames sort into apply order: timestamp then sanitized ID.
	wantName := "20260115103000_001_create_person.json"
	if filepath.Base(filePath) != wantName {
		t.Errorf("expected filename %s, got %s", wantName, filepath.Base(filePath))
	}

	readMigration, err := ReadMigrationFile(filePath)
	if err != nil {
		t.Fatalf("ReadMigrationFile failed: %v", err)
	}

	if readMigration.ID != migration.ID {
		t.Errorf("expected ID %s, got %s", migration.ID, readMigration.ID)
	}
	if len(readMigration.Up) != len(migration.Up) {
		t.Fatalf("expected %d up statements, got %d", len(migration.Up), len(readMigration.Up))
	}
	if readMigration.Up[0] != migration.Up[0] {
		t.Errorf("expected up[0] %q, got %q", migration.Up[0], readMigration.Up[0])
	}
}

func TestMigrationFileFormatVersion(t *testing.T) {
	tmpDir := t.TempDir()

	migration := &Migration{
		ID:        "001_test",
		Name:      "Test",
		Timestamp: time.Now(),
		Up:        []string{"CREATE CLASS Person"},
		Down:      []string{"DROP CLASS Person"},
	}

	filePath, err := WriteMigrationFile(migration, tmpDir)
	if err != nil {
		t.Fatalf("WriteMigrationFile failed: %v", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("reading written file failed: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("written file is not JSON: %v", err)
	}

	if raw["formatVersion"] != "1.0" {
		t.Errorf("expected formatVersion 1.0, got %v", raw["formatVersion"])
	}
}

func TestReadMigrationFile_UnsupportedVersion(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "future.json")

	content := `{"formatVersion": "9.0", "migration": {"id": "001", "name": "x", "up": [], "down": []}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture failed: %v", err)
	}

	if _, err := ReadMigrationFile(path); err == nil {
		t.Error("expected error for unsupported format version, got nil")
	}
}

func TestListMigrationFiles(t *testing.T) {
	tmpDir := t.TempDir()

	timestamps := []time.Time{
		time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
	}
	for i, ts := range timestamps {
		migration := &Migration{
			ID:        fmt.Sprintf("mig_%d", i),
			Name:      "Test",
			Timestamp: ts,
			Up:        []string{"CREATE CLASS Person"},
			Down:      []string{"DROP CLASS Person"},
		}
		if _, err := WriteMigrationFile(migration, tmpDir); err != nil {
			t.Fatalf("WriteMigrationFile failed: %v", err)
		}
	}

	// Lock files and stray content must not list as migrations.
	if err := os.WriteFile(filepath.Join(tmpDir, ".orientdb_migration.lock"), []byte("{}"), 0600); err != nil {
		t.Fatalf("writing lock fixture failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("ignore"), 0644); err != nil {
		t.Fatalf("writing stray fixture failed: %v", err)
	}

	migrations, err := ListMigrationFiles(tmpDir)
	if err != nil {
		t.Fatalf("ListMigrationFiles failed: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	// Sorted by timestamp, earliest first.
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Timestamp.Before(migrations[i-1].Timestamp) {
			t.Errorf("migrations not sorted by timestamp at index %d", i)
		}
	}
}

func TestListMigrationFiles_MissingDirectory(t *testing.T) {
	migrations, err := ListMigrationFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("expected missing directory to list as empty, got %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestInitMigrationDirectory(t *testing.T) {
	migDir := filepath.Join(t.TempDir(), "migrations")

	if err := InitMigrationDirectory(migDir); err != nil {
		t.Fatalf("InitMigrationDirectory failed: %v", err)
	}

	info, err := os.Stat(migDir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("path is not a directory")
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("expected permissions 0755, got %s", info.Mode().Perm())
	}
}
