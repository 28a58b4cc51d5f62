package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// MigrationFile is the on-disk envelope for one migration.
type MigrationFile struct {
	FormatVersion string     `json:"formatVersion"`
	Migration     *Migration `json:"migration"`
}

// migrationFileFormatVersion is the envelope version this package
// reads and writes.
const migrationFileFormatVersion = "1.0"

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// WriteMigrationFile writes a migration to a timestamped JSON file in
// dir, creating the directory if needed. Returns the file path.
func WriteMigrationFile(migration *Migration, dir string) (string, error) {
	if migration == nil {
		return "", fmt.Errorf("migration cannot be nil")
	}
	if dir == "" {
		return "", fmt.Errorf("directory path cannot be empty")
	}

	if err := InitMigrationDirectory(dir); err != nil {
		return "", fmt.Errorf("failed to initialize directory: %w", err)
	}

	// 20060102150405_<sanitized id>.json keeps listings in apply order.
	timestamp := migration.Timestamp.Format("20060102150405")
	sanitized := filenameSanitizer.ReplaceAllString(migration.ID, "_")
	filePath := filepath.Join(dir, fmt.Sprintf("%s_%s.json", timestamp, sanitized))

	data, err := json.MarshalIndent(MigrationFile{
		FormatVersion: migrationFileFormatVersion,
		Migration:     migration,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal migration: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return filePath, nil
}

// ReadMigrationFile reads and validates one migration file.
func ReadMigrationFile(path string) (*Migration, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var fileData MigrationFile
	if err := json.Unmarshal(data, &fileData); err != nil {
		return nil, ErrInvalidMigrationFile(filepath.Base(path), err)
	}

	// Envelopes written before versioning count as 1.0.
	if fileData.FormatVersion == "" {
		fileData.FormatVersion = migrationFileFormatVersion
	}
	if fileData.FormatVersion != migrationFileFormatVersion {
		return nil, ErrInvalidMigrationFile(filepath.Base(path),
			fmt.Errorf("unsupported migration format version %s", fileData.FormatVersion))
	}

	if fileData.Migration == nil {
		return nil, ErrInvalidMigrationFile(filepath.Base(path),
			fmt.Errorf("migration data is missing"))
	}

	return fileData.Migration, nil
}

// ListMigrationFiles scans dir and returns its migrations sorted by
// timestamp. A missing directory lists as empty. Unreadable files are
// skipped with a warning so one bad file does not block the rest.
func ListMigrationFiles(dir string) ([]*Migration, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory path cannot be empty")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Migration{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var migrations []*Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		// Dotfiles hold lock and tool state, not migrations.
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		migration, err := ReadMigrationFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to read migration file %s: %v\n", entry.Name(), err)
			continue
		}

		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Timestamp.Before(migrations[j].Timestamp)
	})

	return migrations, nil
}

// InitMigrationDirectory creates a migration directory if needed and
// warns when its permissions let anyone write migrations.
func InitMigrationDirectory(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path cannot be empty")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	mode := info.Mode().Perm()
	if mode&0002 != 0 {
		fmt.Fprintf(os.Stderr, "warning: migration directory %s is world-writable (%s)\n", dir, mode)
	}

	return nil
}
