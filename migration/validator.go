package migration

import (
	"errors"
	"fmt"
)

// MigrationValidator checks a migration set against history, declared
// dependencies, and ID ordering.
type MigrationValidator struct {
	history *MigrationHistory
}

// NewMigrationValidator creates a validator over the given history.
func NewMigrationValidator(history *MigrationHistory) *MigrationValidator {
	return &MigrationValidator{history: history}
}

// Validate runs every check over the migration set and collects the
// conflicts it finds.
func (v *MigrationValidator) Validate(migrations []*Migration) *ValidationResult {
	result := &ValidationResult{
		Valid:             true,
		Conflicts:         make([]MigrationConflict, 0),
		PendingMigrations: make([]string, 0),
		AppliedMigrations: v.history.GetAppliedMigrations(),
	}

	positions := make(map[string]int, len(migrations))
	for i, m := range migrations {
		positions[m.ID] = i
	}

	for i, migration := range migrations {
		if v.history.IsApplied(migration.ID) {
			// Applied migrations must not have drifted from what ran.
			if err := v.history.ValidateChecksum(migration); err != nil {
				var migErr *MigrationError
				if errors.As(err, &migErr) && migErr.Code == "CHECKSUM_MISMATCH" {
					result.Valid = false
					result.Conflicts = append(result.Conflicts, MigrationConflict{
						Type:        ChecksumMismatch,
						MigrationID: migration.ID,
						Message:     migErr.Message,
						Expected:    fmt.Sprintf("%v", migErr.Details["expected"]),
						Actual:      fmt.Sprintf("%v", migErr.Details["actual"]),
					})
				}
			}
			continue
		}

		result.PendingMigrations = append(result.PendingMigrations, migration.ID)

		conflicts := v.validateDependencies(migration, i, positions)
		if len(conflicts) > 0 {
			result.Valid = false
			result.Conflicts = append(result.Conflicts, conflicts...)
		}
	}

	orderConflicts := v.validateOrdering(migrations)
	if len(orderConflicts) > 0 {
		result.Valid = false
		result.Conflicts = append(result.Conflicts, orderConflicts...)
	}

	return result
}

// validateDependencies checks that every declared dependency either
// stands applied or runs earlier in the same set.
func (v *MigrationValidator) validateDependencies(migration *Migration, position int, positions map[string]int) []MigrationConflict {
	conflicts := make([]MigrationConflict, 0)

	for _, depID := range migration.Dependencies {
		if v.history.IsApplied(depID) {
			continue
		}

		depPosition, exists := positions[depID]
		if !exists {
			conflicts = append(conflicts, MigrationConflict{
				Type:        DependencyConflict,
				MigrationID: migration.ID,
				Message:     fmt.Sprintf("dependency %q does not exist", depID),
				Expected:    depID,
				Actual:      "not_found",
			})
			continue
		}

		if depPosition > position {
			conflicts = append(conflicts, MigrationConflict{
				Type:        DependencyConflict,
				MigrationID: migration.ID,
				Message:     fmt.Sprintf("dependency %q runs after %q", depID, migration.ID),
				Expected:    "applied or earlier in the set",
				Actual:      "later in the set",
			})
		}
	}

	return conflicts
}

// validateOrdering flags pending migrations whose IDs sort before the
// newest applied migration. Those would run out of order.
func (v *MigrationValidator) validateOrdering(migrations []*Migration) []MigrationConflict {
	conflicts := make([]MigrationConflict, 0)

	appliedMigrations := v.history.GetAppliedMigrations()
	if len(appliedMigrations) == 0 {
		return conflicts
	}
	lastApplied := appliedMigrations[len(appliedMigrations)-1]

	for _, migration := range migrations {
		if v.history.IsApplied(migration.ID) {
			continue
		}
		if migration.ID < lastApplied {
			conflicts = append(conflicts, MigrationConflict{
				Type:        OrderConflict,
				MigrationID: migration.ID,
				Message:     fmt.Sprintf("migration ID %q is out of order (last applied: %q)", migration.ID, lastApplied),
				Expected:    fmt.Sprintf("> %s", lastApplied),
				Actual:      migration.ID,
			})
		}
	}

	return conflicts
}

// CanRollback checks that a migration stands applied and that no other
// applied migration depends on it.
func (v *MigrationValidator) CanRollback(migrationID string, allMigrations []*Migration) error {
	if !v.history.IsApplied(migrationID) {
		return ErrMigrationNotFound(migrationID)
	}

	dependents := make([]string, 0)
	for _, migration := range allMigrations {
		if !v.history.IsApplied(migration.ID) {
			continue
		}
		for _, depID := range migration.Dependencies {
			if depID == migrationID {
				dependents = append(dependents, migration.ID)
				break
			}
		}
	}

	if len(dependents) > 0 {
		return &MigrationError{
			Code:    "CANNOT_ROLLBACK",
			Type:    "MIGRATION_ERROR",
			Message: fmt.Sprintf("migration %q cannot be rolled back while other migrations depend on it", migrationID),
			Details: map[string]interface{}{
				"migrationId": migrationID,
				"dependents":  dependents,
			},
		}
	}

	return nil
}
