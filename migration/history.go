package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MigrationHistory is the ledger of executed migrations, keyed by ID.
type MigrationHistory struct {
	records map[string]*MigrationRecord
}

// NewMigrationHistory creates an empty history.
func NewMigrationHistory() *MigrationHistory {
	return &MigrationHistory{
		records: make(map[string]*MigrationRecord),
	}
}

// RecordMigration records one migration execution, replacing any prior
// record for the same ID.
func (h *MigrationHistory) RecordMigration(migrationID string, status MigrationStatus, executionTimeMs int64, checksum string, err error) {
	record := &MigrationRecord{
		MigrationID:     migrationID,
		AppliedAt:       time.Now(),
		Status:          status,
		ExecutionTimeMs: executionTimeMs,
		Checksum:        checksum,
	}
	if err != nil {
		record.Error = err.Error()
	}
	h.records[migrationID] = record
}

// RecordRollback marks an existing record rolled back.
func (h *MigrationHistory) RecordRollback(migrationID string) error {
	record, exists := h.records[migrationID]
	if !exists {
		return ErrMigrationNotFound(migrationID)
	}

	now := time.Now()
	record.RolledBackAt = &now
	record.Status = RolledBack
	return nil
}

// GetRecord retrieves the record for one migration.
func (h *MigrationHistory) GetRecord(migrationID string) (*MigrationRecord, bool) {
	record, exists := h.records[migrationID]
	return record, exists
}

// IsApplied reports whether a migration stands applied. Failed and
// rolled-back migrations count as not applied.
func (h *MigrationHistory) IsApplied(migrationID string) bool {
	record, exists := h.records[migrationID]
	return exists && record.Status == Applied && record.RolledBackAt == nil
}

// GetAppliedMigrations returns the sorted IDs of standing migrations.
func (h *MigrationHistory) GetAppliedMigrations() []string {
	var applied []string
	for id, record := range h.records {
		if record.Status == Applied && record.RolledBackAt == nil {
			applied = append(applied, id)
		}
	}
	sort.Strings(applied)
	return applied
}

// GetAllRecords returns every record ordered by application time.
func (h *MigrationHistory) GetAllRecords() []*MigrationRecord {
	records := make([]*MigrationRecord, 0, len(h.records))
	for _, record := range h.records {
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].AppliedAt.Before(records[j].AppliedAt)
	})
	return records
}

// LoadFromJSON replaces the history with records parsed from JSON.
func (h *MigrationHistory) LoadFromJSON(data []byte) error {
	var records []*MigrationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse migration history: %w", err)
	}

	h.records = make(map[string]*MigrationRecord, len(records))
	for _, record := range records {
		h.records[record.MigrationID] = record
	}
	return nil
}

// ToJSON serializes the history, ordered by application time.
func (h *MigrationHistory) ToJSON() ([]byte, error) {
	return json.MarshalIndent(h.GetAllRecords(), "", "  ")
}

// CalculateChecksum fingerprints a migration's identity and statements.
// SHA-256 keeps the fingerprint stable across processes and releases.
func CalculateChecksum(migration *Migration) string {
	hash := sha256.New()
	hash.Write([]byte(migration.ID))
	hash.Write([]byte(migration.Name))
	for _, cmd := range migration.Up {
		hash.Write([]byte(cmd))
	}
	for _, cmd := range migration.Down {
		hash.Write([]byte(cmd))
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// ValidateChecksum verifies a migration still matches its recorded
// content. Unrecorded migrations pass vacuously.
func (h *MigrationHistory) ValidateChecksum(migration *Migration) error {
	record, exists := h.records[migration.ID]
	if !exists {
		return nil
	}

	actualChecksum := CalculateChecksum(migration)
	if actualChecksum != record.Checksum {
		return ErrChecksumMismatch(migration.ID, record.Checksum, actualChecksum)
	}
	return nil
}

// Clear removes all records from the history.
func (h *MigrationHistory) Clear() {
	h.records = make(map[string]*MigrationRecord)
}
