package migration

import "time"

// MigrationDirection is the direction a plan runs in.
type MigrationDirection string

const (
	// Up applies a migration forward.
	Up MigrationDirection = "up"
	// Down rolls a migration back.
	Down MigrationDirection = "down"
)

// MigrationStatus is the recorded state of a migration.
type MigrationStatus string

const (
	// Pending means the migration has not been applied.
	Pending MigrationStatus = "pending"
	// Applied means the migration ran successfully.
	Applied MigrationStatus = "applied"
	// Failed means the migration errored mid-run.
	Failed MigrationStatus = "failed"
	// RolledBack means the migration was reversed after applying.
	RolledBack MigrationStatus = "rolled_back"
)

// Migration is one schema change, expressed as OrientDB SQL statements.
type Migration struct {
	// ID uniquely identifies the migration (e.g. "001_initial_schema").
	// IDs sort lexicographically into application order.
	ID string `json:"id"`

	// Name is a human-readable description.
	Name string `json:"name"`

	// Up holds the statements that apply this migration.
	Up []string `json:"up"`

	// Down holds the statements that reverse it. May be left empty for
	// migrations whose Up statements have derivable reverses.
	Down []string `json:"down"`

	// Dependencies lists migration IDs that must be applied first.
	Dependencies []string `json:"dependencies,omitempty"`

	// Timestamp is when the migration was authored.
	Timestamp time.Time `json:"timestamp"`
}

// MigrationRecord is one history entry for an executed migration.
type MigrationRecord struct {
	MigrationID string `json:"migrationId"`

	AppliedAt time.Time `json:"appliedAt"`

	// RolledBackAt is nil while the migration stands.
	RolledBackAt *time.Time `json:"rolledBackAt,omitempty"`

	Status MigrationStatus `json:"status"`

	ExecutionTimeMs int64 `json:"executionTimeMs"`

	// Error carries the failure detail for Failed records.
	Error string `json:"error,omitempty"`

	// Checksum fingerprints the migration content for drift detection.
	Checksum string `json:"checksum"`
}

// MigrationPlan is an ordered set of migrations to execute.
type MigrationPlan struct {
	Migrations []*Migration `json:"migrations"`

	Direction MigrationDirection `json:"direction"`

	TotalCount int `json:"totalCount"`

	// DryRun marks a preview that must not execute.
	DryRun bool `json:"dryRun,omitempty"`
}

// ConflictType classifies a migration conflict.
type ConflictType string

const (
	// ChecksumMismatch means applied migration content has changed.
	ChecksumMismatch ConflictType = "checksum_mismatch"
	// DependencyConflict means a dependency is missing or unapplied.
	DependencyConflict ConflictType = "dependency_conflict"
	// OrderConflict means a pending migration sorts before an applied one.
	OrderConflict ConflictType = "order_conflict"
)

// MigrationConflict is one detected issue with a migration set.
type MigrationConflict struct {
	Type ConflictType `json:"type"`

	MigrationID string `json:"migrationId"`

	Message string `json:"message"`

	// Expected and Actual carry the mismatched values where they apply,
	// such as the recorded and recomputed checksums.
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// ValidationResult is the outcome of validating a migration set.
type ValidationResult struct {
	Valid bool `json:"valid"`

	Conflicts []MigrationConflict `json:"conflicts"`

	PendingMigrations []string `json:"pendingMigrations"`

	AppliedMigrations []string `json:"appliedMigrations"`
}
