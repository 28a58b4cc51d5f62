package migration

import (
	"testing"
	"time"
)

func TestNewMigrationHistory(t *testing.T) {
	history := NewMigrationHistory()

	if history == nil {
		t.Fatal("NewMigrationHistory returned nil")
	}
	if len(history.records) != 0 {
		t.Errorf("expected empty history, got %d records", len(history.records))
	}
}

func TestRecordMigration(t *testing.T) {
	history := NewMigrationHistory()

	history.RecordMigration("001_people", Applied, 150, "abc123", nil)

	record, exists := history.GetRecord("001_people")
	if !exists {
		t.Fatal("expected record to exist")
	}
	if record.MigrationID != "001_people" {
		t.Errorf("expected ID 001_people, got %s", record.MigrationID)
	}
	if record.Status != Applied {
		t.Errorf("expected status applied, got %s", record.Status)
	}
	if record.ExecutionTimeMs != 150 {
		t.Errorf("expected execution time 150, got %d", record.ExecutionTimeMs)
	}
	if record.Checksum != "abc123" {
		t.Errorf("expected checksum abc123, got %s", record.Checksum)
	}
}

func TestRecordMigration_WithError(t *testing.T) {
	history := NewMigrationHistory()

	failure := ErrMigrationFailed("001_people", nil)
	history.RecordMigration("001_people", Failed, 150, "abc123", failure)

	record, exists := history.GetRecord("001_people")
	if !exists {
		t.Fatal("expected record to exist")
	}
	if record.Status != Failed {
		t.Errorf("expected status failed, got %s", record.Status)
	}
	if record.Error == "" {
		t.Error("expected error detail in record, got empty string")
	}
}

func TestRecordRollback(t *testing.T) {
	history := NewMigrationHistory()
	history.RecordMigration("001_people", Applied, 150, "abc123", nil)

	if err := history.RecordRollback("001_people"); err != nil {
		t.Fatalf("RecordRollback failed: %v", err)
	}

	record, _ := history.GetRecord("001_people")
	if record.Status != RolledBack {
		t.Errorf("expected status rolled_back, got %s", record.Status)
	}
	if record.RolledBackAt == nil {
		t.Error("expected RolledBackAt to be set")
	}
}

func TestRecordRollback_NotFound(t *testing.T) {
	history := NewMigrationHistory()

	if err := history.RecordRollback("nonexistent"); err == nil {
		t.Error("expected error for unknown migration, got nil")
	}
}

func TestIsApplied(t *testing.T) {
	history := NewMigrationHistory()

	if history.IsApplied("001_people") {
		t.Error("expected IsApplied=false before recording")
	}

	history.RecordMigration("001_people", Applied, 150, "abc123", nil)
	if !history.IsApplied("001_people") {
		t.Error("expected IsApplied=true after applying")
	}

	history.RecordRollback("001_people")
	if history.IsApplied("001_people") {
		t.Error("expected IsApplied=false after rollback")
	}
}

func TestGetAppliedMigrations(t *testing.T) {
	history := NewMigrationHistory()

	history.RecordMigration("002_indexes", Applied, 100, "abc2", nil)
	history.RecordMigration("001_people", Applied, 100, "abc1", nil)
	history.RecordMigration("003_broken", Failed, 100, "abc3", nil)

	applied := history.GetAppliedMigrations()
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", len(applied))
	}

	// Sorted by ID, failed migrations excluded.
	if applied[0] != "001_people" || applied[1] != "002_indexes" {
		t.Errorf("expected [001_people 002_indexes], got %v", applied)
	}
}

func TestCalculateChecksum(t *testing.T) {
	migration := &Migration{
		ID:   "001_people",
		Name: "Create person class",
		Up:   []string{"CREATE CLASS Person EXTENDS V"},
		Down: []string{"DROP CLASS Person"},
	}

	checksum := CalculateChecksum(migration)
	if checksum == "" {
		t.Fatal("expected non-empty checksum")
	}
	if checksum != CalculateChecksum(migration) {
		t.Error("expected checksum to be deterministic")
	}

	other := &Migration{
		ID:   "002_products",
		Name: "Create product class",
		Up:   []string{"CREATE CLASS Product EXTENDS V"},
		Down: []string{"DROP CLASS Product"},
	}
	if checksum == CalculateChecksum(other) {
		t.Error("expected different checksums for different migrations")
	}
}

func TestValidateChecksum(t *testing.T) {
	history := NewMigrationHistory()

	migration := &Migration{
		ID:   "001_people",
		Name: "Create person class",
		Up:   []string{"CREATE CLASS Person EXTENDS V"},
		Down: []string{"DROP CLASS Person"},
	}

	history.RecordMigration("001_people", Applied, 100, CalculateChecksum(migration), nil)

	if err := history.ValidateChecksum(migration); err != nil {
		t.Errorf("expected validation to pass, got %v", err)
	}

	// Content drift after applying must be detected.
	migration.Up[0] = "CREATE CLASS Person"
	if err := history.ValidateChecksum(migration); err == nil {
		t.Error("expected checksum mismatch error, got nil")
	}
}

func TestToJSON_LoadFromJSON(t *testing.T) {
	history := NewMigrationHistory()
	history.RecordMigration("001_people", Applied, 100, "abc1", nil)
	history.RecordMigration("002_indexes", Applied, 150, "abc2", nil)

	data, err := history.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	restored := NewMigrationHistory()
	if err := restored.LoadFromJSON(data); err != nil {
		t.Fatalf("LoadFromJSON failed: %v", err)
	}

	if len(restored.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(restored.records))
	}
	record, exists := restored.GetRecord("001_people")
	if !exists {
		t.Fatal("expected 001_people to survive the round trip")
	}
	if record.Checksum != "abc1" {
		t.Errorf("expected checksum abc1, got %s", record.Checksum)
	}
}

func TestGetAllRecords_Sorted(t *testing.T) {
	history := NewMigrationHistory()

	// Recorded out of ID order; ordering follows application time.
	history.RecordMigration("003_third", Applied, 100, "abc3", nil)
	time.Sleep(time.Millisecond)
	history.RecordMigration("001_first", Applied, 100, "abc1", nil)
	time.Sleep(time.Millisecond)
	history.RecordMigration("002_second", Applied, 100, "abc2", nil)

	records := history.GetAllRecords()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	wantOrder := []string{"003_third", "001_first", "002_second"}
	for i, want := range wantOrder {
		if records[i].MigrationID != want {
			t.Errorf("record %d: expected %s, got %s", i, want, records[i].MigrationID)
		}
	}
}

func TestClear(t *testing.T) {
	history := NewMigrationHistory()
	history.RecordMigration("001_people", Applied, 100, "abc1", nil)
	history.RecordMigration("002_indexes", Applied, 100, "abc2", nil)

	history.Clear()

	if len(history.records) != 0 {
		t.Errorf("expected 0 records after clear, got %d", len(history.records))
	}
}
