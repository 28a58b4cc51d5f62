package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/orientdb-driver/client"
	"github.com/dan-strohschein/orientdb-driver/migration"
	"github.com/dan-strohschein/orientdb-driver/schema"
)

// historyFileName holds the applied-migration records beside the
// migration files. A dotfile, so the file lister skips it.
const historyFileName = ".orientdb_history.json"

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
	Long: `Manage schema migrations: versioned DDL statement lists applied in
order, with rollback statements derived where the DDL is reversible.

Applied migrations are recorded in ` + historyFileName + ` beside the
migration files. Concurrent runs are serialized through a lock file in
the same directory.`,
}

var migrateInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a migrations directory and a sample schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := migrationsDir(cmd)
		schemaPath := schemaFilePath(cmd)
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(dir); err == nil && !force {
			return fmt.Errorf("directory %s already exists; use --force to reinitialize", dir)
		}

		if err := migration.InitMigrationDirectory(dir); err != nil {
			return err
		}
		printSuccess("Created migrations directory: " + colorCyan(dir))

		if _, err := os.Stat(schemaPath); os.IsNotExist(err) || force {
			if err := writeSampleSchema(schemaPath); err != nil {
				return err
			}
			printSuccess("Created sample schema: " + colorCyan(schemaPath))
		}

		readmePath := filepath.Join(dir, "README.md")
		if err := os.WriteFile(readmePath, []byte(migrationsReadme), 0644); err != nil {
			printWarning(fmt.Sprintf("Failed to write README: %v", err))
		}

		fmt.Println()
		printInfo("Next steps:")
		fmt.Println("  1. Edit " + colorCyan(schemaPath) + " to define your classes")
		fmt.Println("  2. Run " + colorCyan("orientdb migrate generate --name 001_initial_schema"))
		fmt.Println("  3. Run " + colorCyan("orientdb migrate up") + " to apply")
		return nil
	},
}

var migrateGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a migration from the schema file",
	Long: `Generate a migration from the schema file.

By default the whole schema serializes into CREATE statements. With
--from-server the schema file is diffed against what the server
reports, and only the difference serializes. Rollback statements derive
automatically where the DDL is reversible.

Prefix names with an ordinal (001_, 002_) so migration ids sort into
application order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		empty, _ := cmd.Flags().GetBool("empty")
		fromServer, _ := cmd.Flags().GetBool("from-server")
		dir := migrationsDir(cmd)

		var upCommands []string
		if !empty {
			localDef, err := readSchemaFile(schemaFilePath(cmd))
			if err != nil {
				return err
			}

			if fromServer {
				upCommands, err = diffAgainstServer(cmd, localDef)
				if err != nil {
					return err
				}
				if len(upCommands) == 0 {
					printSuccess("Server schema already matches the schema file; nothing to generate")
					return nil
				}
			} else {
				for i := range localDef.Classes {
					upCommands = append(upCommands, schema.SerializeClass(&localDef.Classes[i])...)
				}
			}
		}

		downCommands, err := migration.NewRollbackGenerator().GenerateDown(upCommands)
		if err != nil {
			printWarning(fmt.Sprintf("Could not derive rollback statements: %v", err))
			downCommands = []string{}
		}

		mig := &migration.Migration{
			ID:           generateMigrationID(name),
			Name:         name,
			Up:           upCommands,
			Down:         downCommands,
			Dependencies: []string{},
			Timestamp:    time.Now(),
		}

		path, err := migration.WriteMigrationFile(mig, dir)
		if err != nil {
			return err
		}

		printSuccess("Created migration: " + colorCyan(filepath.Base(path)))
		fmt.Println(colorDim(fmt.Sprintf("  up statements:   %d", len(upCommands))))
		fmt.Println(colorDim(fmt.Sprintf("  down statements: %d", len(downCommands))))
		fmt.Println()
		printInfo("Review the file, then run " + colorCyan("orientdb migrate up --dry-run"))
		return nil
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := migrationsDir(cmd)
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		steps, _ := cmd.Flags().GetInt("steps")

		migrations, err := migration.ListMigrationFiles(dir)
		if err != nil {
			return err
		}
		if len(migrations) == 0 {
			printWarning("No migration files in " + dir)
			printInfo("Run " + colorCyan("orientdb migrate generate") + " to create one")
			return nil
		}

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		mc, err := newMigrationClient(db, dir)
		if err != nil {
			return err
		}

		plan, err := mc.Plan(migrations)
		if err != nil {
			return err
		}
		if len(plan.Migrations) == 0 {
			printSuccess("All migrations are applied")
			return nil
		}
		if steps > 0 && len(plan.Migrations) > steps {
			plan.Migrations = plan.Migrations[:steps]
			plan.TotalCount = steps
		}

		fmt.Println()
		printInfo(fmt.Sprintf("Pending migrations: %d", plan.TotalCount))
		for i, mig := range plan.Migrations {
			fmt.Printf("  %d. %s\n", i+1, colorBold(mig.Name))
			fmt.Printf("     %s (%d up, %d down)\n", colorDim(mig.ID), len(mig.Up), len(mig.Down))
		}

		if dryRun {
			fmt.Println()
			printInfo(colorYellow("DRY RUN") + " - nothing was applied")
			return nil
		}

		if !force {
			fmt.Println()
			if !promptConfirm(fmt.Sprintf("Apply %d migration(s) to %q?", plan.TotalCount, db.Name())) {
				printInfo("Cancelled")
				return nil
			}
		}

		fmt.Println()
		applyErr := mc.Apply(plan)
		// The failure record matters as much as the successes, so the
		// history file is written either way.
		saveHistory(mc, dir)
		if applyErr != nil {
			return applyErr
		}

		printSuccess("All migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [migration-id]",
	Short: "Roll back the last applied migration",
	Long: `Roll back the last applied migration, or the one named by the
argument. Migrations without explicit down statements roll back through
statements derived from their up statements, where reversible.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := migrationsDir(cmd)
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")

		migrations, err := migration.ListMigrationFiles(dir)
		if err != nil {
			return err
		}

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		mc, err := newMigrationClient(db, dir)
		if err != nil {
			return err
		}

		target := ""
		if len(args) == 1 {
			target = args[0]
		} else {
			applied := mc.GetAppliedMigrations()
			if len(applied) == 0 {
				printWarning("No applied migrations to roll back")
				return nil
			}
			target = applied[len(applied)-1]
		}

		var mig *migration.Migration
		for _, m := range migrations {
			if m.ID == target {
				mig = m
				break
			}
		}
		if mig == nil {
			return fmt.Errorf("no migration file with id %q in %s", target, dir)
		}

		printInfo("Rolling back: " + colorBold(mig.Name))
		fmt.Println(colorDim("  id: " + mig.ID))
		if len(mig.Down) > 0 {
			fmt.Println(colorDim(fmt.Sprintf("  down statements: %d", len(mig.Down))))
		} else {
			fmt.Println(colorDim("  down statements: derived from up statements"))
		}

		if dryRun {
			fmt.Println()
			printInfo(colorYellow("DRY RUN") + " - nothing was rolled back")
			return nil
		}

		if !force {
			fmt.Println()
			if !promptConfirm(fmt.Sprintf("Roll back %q on %q?", mig.ID, db.Name())) {
				printInfo("Cancelled")
				return nil
			}
		}

		if err := mc.Rollback(target, migrations); err != nil {
			return err
		}
		saveHistory(mc, dir)

		printSuccess("Migration rolled back")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := migrationsDir(cmd)

		migrations, err := migration.ListMigrationFiles(dir)
		if err != nil {
			return err
		}
		if len(migrations) == 0 {
			printWarning("No migration files in " + dir)
			return nil
		}

		history, err := loadHistory(dir)
		if err != nil {
			return err
		}

		applied := 0
		rows := make([][]string, 0, len(migrations))
		for _, mig := range migrations {
			status := colorYellow("pending")
			appliedAt := ""
			if rec, ok := history.GetRecord(mig.ID); ok {
				switch rec.Status {
				case migration.Applied:
					status = colorGreen("applied")
					appliedAt = rec.AppliedAt.Format("2006-01-02 15:04")
					applied++
				case migration.Failed:
					status = colorRed("failed")
				case migration.RolledBack:
					status = colorDim("rolled back")
				}
			}
			rows = append(rows, []string{mig.ID, mig.Name, status, appliedAt})
		}

		printTable([]string{"ID", "Name", "Status", "Applied at"}, rows)
		fmt.Println()
		printInfo(fmt.Sprintf("%d of %d applied", applied, len(migrations)))
		return nil
	},
}

var migrateValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate migration files against the history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := migrationsDir(cmd)

		migrations, err := migration.ListMigrationFiles(dir)
		if err != nil {
			return err
		}
		if len(migrations) == 0 {
			printWarning("No migration files in " + dir)
			return nil
		}

		history, err := loadHistory(dir)
		if err != nil {
			return err
		}

		validation := migration.NewMigrationValidator(history).Validate(migrations)
		if validation.Valid {
			printSuccess(fmt.Sprintf("%d migration(s) valid; %d pending", len(migrations), len(validation.PendingMigrations)))
			return nil
		}

		for _, conflict := range validation.Conflicts {
			printError(conflict.Message)
		}
		return fmt.Errorf("%d validation conflict(s)", len(validation.Conflicts))
	},
}

var migrateUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Force-release a stuck migration lock",
	Long: `Force-release the migration lock left behind by a crashed run.

Locks held by a live process on this host, or by any process on another
host, are refused.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := migrationsDir(cmd)
		force, _ := cmd.Flags().GetBool("force")

		if !force && !promptConfirm("Force-release the migration lock in "+dir+"?") {
			printInfo("Cancelled")
			return nil
		}

		lock, err := migration.NewMigrationLock(dir, 0)
		if err != nil {
			return err
		}
		if err := lock.ForceUnlock(); err != nil {
			return err
		}
		printSuccess("Migration lock released")
		return nil
	},
}

// migrationsDir reads the --dir flag, set from ORIENTDB_MIGRATIONS_DIR
// by default.
func migrationsDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("dir")
	return dir
}

// schemaFilePath reads the --schema flag, set from ORIENTDB_SCHEMA_FILE
// by default.
func schemaFilePath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("schema")
	return path
}

// newMigrationClient builds a migration client over the open database,
// restores the recorded history and arms directory locking.
func newMigrationClient(db *client.Database, dir string) (*migration.Client, error) {
	mc := migration.NewClient(&databaseExecutor{db: db})

	data, err := os.ReadFile(filepath.Join(dir, historyFileName))
	if err == nil {
		if err := mc.LoadHistory(data); err != nil {
			return nil, fmt.Errorf("corrupt history file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := mc.WithLocking(dir, 0); err != nil {
		return nil, err
	}
	if err := mc.WithLockRetry(3, 2*time.Second); err != nil {
		return nil, err
	}
	return mc, nil
}

// loadHistory reads the history file into a standalone history, for
// commands that inspect state without a server connection.
func loadHistory(dir string) (*migration.MigrationHistory, error) {
	history := migration.NewMigrationHistory()
	data, err := os.ReadFile(filepath.Join(dir, historyFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return history, nil
		}
		return nil, err
	}
	if err := history.LoadFromJSON(data); err != nil {
		return nil, fmt.Errorf("corrupt history file: %w", err)
	}
	return history, nil
}

// saveHistory writes the client's history beside the migration files.
func saveHistory(mc *migration.Client, dir string) {
	data, err := mc.GetHistory()
	if err != nil {
		printWarning(fmt.Sprintf("Failed to serialize migration history: %v", err))
		return
	}
	if err := os.WriteFile(filepath.Join(dir, historyFileName), data, 0644); err != nil {
		printWarning(fmt.Sprintf("Failed to write migration history: %v", err))
	}
}

// readSchemaFile loads and parses a schema definition file.
func readSchemaFile(path string) (*schema.SchemaDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w (run 'orientdb migrate init' to create one)", err)
	}
	var def schema.SchemaDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	return &def, nil
}

// diffAgainstServer fetches the server's schema and serializes the
// statements that move it to the local definition.
func diffAgainstServer(cmd *cobra.Command, localDef *schema.SchemaDefinition) ([]string, error) {
	c, db, err := openDatabase(cmd, "")
	if err != nil {
		return nil, err
	}
	defer c.Close()
	defer db.Close()

	serverDef, err := db.FetchSchema()
	if err != nil {
		return nil, err
	}

	diff := schema.CompareSchemas(localDef, serverDef)
	if !diff.HasChanges {
		return nil, nil
	}
	return schema.SerializeDiff(diff), nil
}

// generateMigrationID derives a stable id from the migration name.
func generateMigrationID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "-", "_")
	return id
}

// writeSampleSchema writes a starter schema definition.
func writeSampleSchema(path string) error {
	sample := schema.SchemaDefinition{
		Classes: []schema.ClassDefinition{
			{
				Name:       "Person",
				SuperClass: "V",
				Properties: []schema.PropertyDefinition{
					{Name: "name", Type: schema.TypeString, Mandatory: true, NotNull: true},
					{Name: "email", Type: schema.TypeString, Regexp: ".+@.+"},
					{Name: "created", Type: schema.TypeDatetime},
				},
				Indexes: []schema.IndexDefinition{
					{Name: "Person.email", Class: "Person", Type: schema.IndexUnique, Fields: []string{"email"}},
				},
			},
		},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

const migrationsReadme = `# Schema Migrations

Migrations are ordered lists of OrientDB DDL statements. Applied ones are
recorded in ` + "`" + historyFileName + "`" + ` beside the migration files,
and concurrent runs are serialized through a lock file in this directory.

## Workflow

1. Edit the class schema in ` + "`schema.json`" + `
2. Generate a migration: ` + "`orientdb migrate generate --name <description>`" + `
3. Review the generated file
4. Apply: ` + "`orientdb migrate up`" + `

Prefix migration names with an ordinal (` + "`001_`" + `, ` + "`002_`" + `) so
their ids sort into application order.

## Commands

- ` + "`orientdb migrate status`" + ` - show which migrations are applied
- ` + "`orientdb migrate up --dry-run`" + ` - preview pending migrations
- ` + "`orientdb migrate down`" + ` - roll back the last applied migration
- ` + "`orientdb migrate validate`" + ` - check files against the history
- ` + "`orientdb migrate unlock`" + ` - release a lock left by a crashed run
`

// databaseExecutor adapts an open database session to the migration
// executor contract. Reads route through the query path, everything
// else runs as a command.
type databaseExecutor struct {
	db *client.Database
}

func (e *databaseExecutor) Execute(command string) (interface{}, error) {
	upper := strings.ToUpper(strings.TrimSpace(command))
	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "TRAVERSE") {
		return e.db.Query(command, nil)
	}
	return e.db.Command(command, nil)
}

func init() {
	migrateCmd.PersistentFlags().String("dir", envOr("ORIENTDB_MIGRATIONS_DIR", "./migrations"), "Migrations directory")

	migrateInitCmd.Flags().String("schema", envOr("ORIENTDB_SCHEMA_FILE", "./schema.json"), "Schema file path")
	migrateInitCmd.Flags().Bool("force", false, "Reinitialize an existing directory")

	migrateGenerateCmd.Flags().String("name", "", "Migration name (required)")
	migrateGenerateCmd.Flags().String("schema", envOr("ORIENTDB_SCHEMA_FILE", "./schema.json"), "Schema file path")
	migrateGenerateCmd.Flags().Bool("from-server", false, "Diff the schema file against the server schema")
	migrateGenerateCmd.Flags().Bool("empty", false, "Generate an empty migration scaffold")
	migrateGenerateCmd.MarkFlagRequired("name")

	migrateUpCmd.Flags().Bool("dry-run", false, "Show the plan without applying")
	migrateUpCmd.Flags().Bool("force", false, "Skip the confirmation prompt")
	migrateUpCmd.Flags().Int("steps", 0, "Apply at most this many migrations (0 = all)")

	migrateDownCmd.Flags().Bool("dry-run", false, "Show the rollback without applying")
	migrateDownCmd.Flags().Bool("force", false, "Skip the confirmation prompt")

	migrateUnlockCmd.Flags().Bool("force", false, "Skip the confirmation prompt")

	migrateCmd.AddCommand(migrateInitCmd, migrateGenerateCmd, migrateUpCmd,
		migrateDownCmd, migrateStatusCmd, migrateValidateCmd, migrateUnlockCmd)
	rootCmd.AddCommand(migrateCmd)
}
