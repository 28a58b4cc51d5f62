package migration

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Client orchestrates schema migrations against an OrientDB database.
// It plans, validates, applies, and rolls back SQL migrations, tracking
// what has run in a history ledger.
type Client struct {
	history   *MigrationHistory
	validator *MigrationValidator
	executor  MigrationExecutor
	generator *RollbackGenerator
	lock      *MigrationLock
}

// MigrationExecutor runs one SQL statement against the database. Any
// session capable of executing commands can back a migration client.
type MigrationExecutor interface {
	Execute(command string) (interface{}, error)
}

// NewClient creates a migration client on top of an executor.
func NewClient(executor MigrationExecutor) *Client {
	history := NewMigrationHistory()
	return &Client{
		history:   history,
		validator: NewMigrationValidator(history),
		executor:  executor,
		generator: NewRollbackGenerator(),
	}
}

// LoadHistory restores migration history from its JSON form. Call this
// before planning so already-applied migrations are skipped.
func (c *Client) LoadHistory(historyJSON []byte) error {
	return c.history.LoadFromJSON(historyJSON)
}

// GetHistory returns the current migration history as JSON.
func (c *Client) GetHistory() ([]byte, error) {
	return c.history.ToJSON()
}

// Plan validates the given migrations and returns the pending ones in
// order.
func (c *Client) Plan(migrations []*Migration) (*MigrationPlan, error) {
	validation := c.validator.Validate(migrations)
	if !validation.Valid {
		return nil, ErrMigrationConflict(validation.Conflicts)
	}

	pending := make([]*Migration, 0)
	for _, migration := range migrations {
		if !c.history.IsApplied(migration.ID) {
			pending = append(pending, migration)
		}
	}

	return &MigrationPlan{
		Migrations: pending,
		Direction:  Up,
		TotalCount: len(pending),
	}, nil
}

// Apply executes a migration plan, taking the migration lock when one
// is configured. Dry-run plans validate without touching the database.
func (c *Client) Apply(plan *MigrationPlan) error {
	if plan.Direction != Up {
		return fmt.Errorf("only 'up' migration plans can be applied")
	}

	if plan.DryRun {
		return nil
	}

	if c.lock != nil {
		if err := c.lock.AcquireLock(); err != nil {
			return err
		}
		defer func() {
			if err := c.lock.ReleaseLock(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to release migration lock: %v\n", err)
			}
		}()
	}

	for _, migration := range plan.Migrations {
		if err := c.applyMigration(migration); err != nil {
			return err
		}
	}

	return nil
}

// applyMigration runs one migration's Up statements, recording the
// outcome either way.
func (c *Client) applyMigration(migration *Migration) error {
	startTime := time.Now()
	checksum := CalculateChecksum(migration)

	for i, command := range migration.Up {
		if _, err := c.executor.Execute(command); err != nil {
			executionTime := time.Since(startTime).Milliseconds()
			c.history.RecordMigration(migration.ID, Failed, executionTime, checksum, err)
			return ErrMigrationFailed(migration.ID, fmt.Errorf("statement %d failed: %w", i+1, err))
		}
	}

	executionTime := time.Since(startTime).Milliseconds()
	c.history.RecordMigration(migration.ID, Applied, executionTime, checksum, nil)

	return nil
}

// Rollback reverses one applied migration. Missing Down statements are
// derived from the Up statements when every one of them is reversible.
func (c *Client) Rollback(migrationID string, allMigrations []*Migration) error {
	if err := c.validator.CanRollback(migrationID, allMigrations); err != nil {
		return err
	}

	var migration *Migration
	for _, m := range allMigrations {
		if m.ID == migrationID {
			migration = m
			break
		}
	}
	if migration == nil {
		return ErrMigrationNotFound(migrationID)
	}

	if len(migration.Down) == 0 {
		count, err := c.GenerateDownCommands(migration)
		if err != nil {
			return fmt.Errorf("cannot rollback %q: %w", migrationID, err)
		}
		if count == 0 {
			return ErrRollbackNotSupported(migrationID)
		}
	}

	for i, command := range migration.Down {
		if _, err := c.executor.Execute(command); err != nil {
			return ErrMigrationFailed(migrationID, fmt.Errorf("rollback statement %d failed: %w", i+1, err))
		}
	}

	return c.history.RecordRollback(migrationID)
}

// Validate checks migrations against history without executing them.
func (c *Client) Validate(migrations []*Migration) *ValidationResult {
	return c.validator.Validate(migrations)
}

// GetAppliedMigrations returns the IDs of all applied migrations.
func (c *Client) GetAppliedMigrations() []string {
	return c.history.GetAppliedMigrations()
}

// GetMigrationRecord retrieves the history record for one migration.
func (c *Client) GetMigrationRecord(migrationID string) (*MigrationRecord, bool) {
	return c.history.GetRecord(migrationID)
}

// ClearHistory drops all migration history.
func (c *Client) ClearHistory() {
	c.history.Clear()
}

// GenerateDownCommands fills in a migration's Down statements from its
// Up statements. Returns how many statements were generated; zero means
// the migration already had Down statements or has no Up statements.
func (c *Client) GenerateDownCommands(migration *Migration) (int, error) {
	if len(migration.Down) > 0 {
		return 0, nil
	}
	if len(migration.Up) == 0 {
		return 0, nil
	}

	downCommands, err := c.generator.GenerateDown(migration.Up)
	if err != nil {
		return 0, fmt.Errorf("failed to generate down statements for migration %q: %w", migration.ID, err)
	}

	migration.Down = downCommands
	return len(downCommands), nil
}

// GenerateAllDownCommands derives Down statements for every migration
// missing them, keyed by migration ID.
func (c *Client) GenerateAllDownCommands(migrations []*Migration) (map[string]int, error) {
	result := make(map[string]int)

	for _, migration := range migrations {
		count, err := c.GenerateDownCommands(migration)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			result[migration.ID] = count
		}
	}

	return result, nil
}

// CanAutoRollback reports whether a migration can be rolled back, with
// explicit Down statements or derivable ones.
func (c *Client) CanAutoRollback(migration *Migration) bool {
	if len(migration.Down) > 0 {
		return true
	}

	for _, upCmd := range migration.Up {
		if !c.generator.CanGenerateDown(upCmd) {
			return false
		}
	}
	return len(migration.Up) > 0
}

// WithLocking enables file-based locking in the given directory. A zero
// timeout falls back to ORIENTDB_LOCK_TIMEOUT, then to one hour.
func (c *Client) WithLocking(dir string, timeout time.Duration) error {
	lock, err := NewMigrationLock(dir, timeout)
	if err != nil {
		return err
	}
	c.lock = lock
	return nil
}

// WithLockRetry configures retry behavior for lock acquisition.
func (c *Client) WithLockRetry(maxRetries int, backoff time.Duration) error {
	if c.lock == nil {
		return fmt.Errorf("locking not configured, call WithLocking first")
	}
	return c.lock.SetRetry(maxRetries, backoff)
}

// Preview builds a dry-run plan for display.
func (c *Client) Preview(migrations []*Migration) (*MigrationPlan, error) {
	plan, err := c.Plan(migrations)
	if err != nil {
		return nil, err
	}
	plan.DryRun = true
	return plan, nil
}

// FormatPreview renders a migration plan for human-readable output.
func FormatPreview(plan *MigrationPlan) string {
	var sb strings.Builder

	sb.WriteString("=== Migration Preview ===\n\n")

	if len(plan.Migrations) == 0 {
		sb.WriteString("No migrations to apply.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Total migrations: %d\n\n", plan.TotalCount))

	for i, migration := range plan.Migrations {
		sb.WriteString(fmt.Sprintf("Migration %d: %s\n", i+1, migration.ID))
		sb.WriteString(fmt.Sprintf("  Name: %s\n", migration.Name))
		sb.WriteString(fmt.Sprintf("  Timestamp: %s\n", migration.Timestamp.Format(time.RFC3339)))

		if len(migration.Dependencies) > 0 {
			sb.WriteString(fmt.Sprintf("  Dependencies: %v\n", migration.Dependencies))
		}

		sb.WriteString("\n  Up:\n")
		for j, cmd := range migration.Up {
			sb.WriteString(fmt.Sprintf("    %d. %s\n", j+1, cmd))
		}

		if len(migration.Down) > 0 {
			sb.WriteString("\n  Down:\n")
			for j, cmd := range migration.Down {
				sb.WriteString(fmt.Sprintf("    %d. %s\n", j+1, cmd))
			}
		} else {
			sb.WriteString("\n  Down: (derived at rollback time if possible)\n")
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// GenerateFile writes the pending migrations to files in dir.
func (c *Client) GenerateFile(migrations []*Migration, dir string) ([]string, error) {
	if len(migrations) == 0 {
		return nil, fmt.Errorf("no migrations to generate")
	}

	plan, err := c.Plan(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to plan migrations: %w", err)
	}

	var filePaths []string
	for _, migration := range plan.Migrations {
		path, err := WriteMigrationFile(migration, dir)
		if err != nil {
			return filePaths, fmt.Errorf("failed to write migration %s: %w", migration.ID, err)
		}
		filePaths = append(filePaths, path)
	}

	return filePaths, nil
}

// LoadFromFile loads one migration from a file.
func (c *Client) LoadFromFile(path string) (*Migration, error) {
	return ReadMigrationFile(path)
}

// ApplyFromDirectory scans a directory and applies its pending
// migrations in timestamp order.
func (c *Client) ApplyFromDirectory(dir string) error {
	migrations, err := ListMigrationFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to list migration files: %w", err)
	}
	if len(migrations) == 0 {
		return nil
	}

	plan, err := c.Plan(migrations)
	if err != nil {
		return fmt.Errorf("failed to plan migrations: %w", err)
	}

	return c.Apply(plan)
}
