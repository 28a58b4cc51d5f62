package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/orientdb-driver/client"
	"github.com/dan-strohschein/orientdb-driver/record"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Load, create, update and delete records",
}

var recordLoadCmd = &cobra.Command{
	Use:   "load <rid>",
	Short: "Load a record by id",
	Long: `Load a record by its #cluster:position id.

A fetch plan resolves linked records ahead of time; they are listed after
the record itself. With --if-newer-than the server skips the transfer
when the stored version is not newer than the given one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rid, err := record.ParseRID(args[0])
		if err != nil {
			return err
		}

		opts := &client.LoadOptions{}
		opts.FetchPlan, _ = cmd.Flags().GetString("fetch-plan")
		opts.IgnoreCache, _ = cmd.Flags().GetBool("ignore-cache")
		if version, err := cmd.Flags().GetInt32("if-newer-than"); err == nil && version >= 0 {
			opts.IfVersionNotLatest = true
			opts.Version = version
		}

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		rs, err := db.LoadRecord(rid, opts)
		if err != nil {
			return err
		}
		if rs.Len() == 0 {
			printInfo(fmt.Sprintf("Record %s not transferred (not found, or not newer)", rid))
			return nil
		}

		printDocuments(rs.Records)
		if len(rs.Prefetch) > 0 {
			fmt.Println()
			printInfo(fmt.Sprintf("%d prefetched record(s):", len(rs.Prefetch)))
			for _, doc := range rs.Prefetch {
				fmt.Printf("  %s v%d %s\n", colorCyan(doc.RID.String()), doc.Version, doc.String())
			}
		}
		return nil
	},
}

var recordCreateCmd = &cobra.Command{
	Use:   "create <class> [field=value...]",
	Short: "Create a record from field=value pairs",
	Long: `Create a record of the given class from field=value pairs.

Values are typed by inspection: true/false, integers, floats, null and
#cluster:position record ids convert; everything else stays a string.
The record lands in the class's default cluster unless --cluster names
another one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := record.NewDocument(args[0])
		if err := applyFieldArgs(doc, args[1:]); err != nil {
			return err
		}

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		clusterFlag, _ := cmd.Flags().GetString("cluster")
		clusterID, err := resolveCluster(db, clusterFlag, args[0])
		if err != nil {
			return err
		}

		rid, version, err := db.CreateRecord(clusterID, doc)
		if err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("Created %s (version %d)", colorCyan(rid.String()), version))
		return nil
	},
}

var recordUpdateCmd = &cobra.Command{
	Use:   "update <rid> field=value...",
	Short: "Replace a record's content",
	Long: `Replace a record's content with the given field=value pairs.

--record-version enables the optimistic lock: the update fails when the
stored version no longer matches. The default applies unconditionally.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rid, err := record.ParseRID(args[0])
		if err != nil {
			return err
		}
		doc := record.NewDocument("")
		if err := applyFieldArgs(doc, args[1:]); err != nil {
			return err
		}
		version, _ := cmd.Flags().GetInt32("record-version")

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		newVersion, err := db.UpdateRecord(rid, doc, version)
		if err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("Updated %s to version %d", colorCyan(rid.String()), newVersion))
		return nil
	},
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete <rid>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rid, err := record.ParseRID(args[0])
		if err != nil {
			return err
		}
		version, _ := cmd.Flags().GetInt32("record-version")
		force, _ := cmd.Flags().GetBool("force")

		if !force && !promptConfirm(fmt.Sprintf("Delete record %s?", rid)) {
			printInfo("Cancelled")
			return nil
		}

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		deleted, err := db.DeleteRecord(rid, version)
		if err != nil {
			return err
		}
		if deleted {
			printSuccess(fmt.Sprintf("Deleted %s", rid))
		} else {
			printInfo(fmt.Sprintf("Record %s not found", rid))
		}
		return nil
	},
}

// applyFieldArgs sets field=value arguments on a document.
func applyFieldArgs(doc *record.Document, args []string) error {
	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		if !found || name == "" {
			return fmt.Errorf("invalid field argument %q: want field=value", arg)
		}
		doc.Set(name, inferValue(value))
	}
	return nil
}

// inferValue guesses the wire type of a command line literal. Bools,
// integers, floats, null and record ids convert; everything else stays a
// string.
func inferValue(s string) interface{} {
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.HasPrefix(s, "#") {
		if rid, err := record.ParseRID(s); err == nil {
			return rid
		}
	}
	return s
}

// resolveCluster maps the --cluster flag to a cluster id. An empty flag
// falls back to the class's default cluster, which carries the class
// name in lowercase.
func resolveCluster(db *client.Database, flag, class string) (int16, error) {
	name := flag
	if name == "" {
		name = strings.ToLower(class)
	} else if id, err := strconv.ParseInt(name, 10, 16); err == nil {
		return int16(id), nil
	}

	id, ok := db.ClusterID(name)
	if !ok {
		return 0, fmt.Errorf("no cluster named %q on database %q", name, db.Name())
	}
	return id, nil
}

func init() {
	recordLoadCmd.Flags().String("fetch-plan", "", "Fetch plan, e.g. *:1 (default: client setting)")
	recordLoadCmd.Flags().Bool("ignore-cache", false, "Bypass the server record cache")
	recordLoadCmd.Flags().Int32("if-newer-than", -1, "Skip the transfer unless the stored version is newer")
	recordCreateCmd.Flags().String("cluster", "", "Target cluster name or id (default: class cluster)")
	recordUpdateCmd.Flags().Int32("record-version", -1, "Expected record version (-1 skips the check)")
	recordDeleteCmd.Flags().Int32("record-version", -1, "Expected record version (-1 skips the check)")
	recordDeleteCmd.Flags().Bool("force", false, "Skip the confirmation prompt")

	recordCmd.AddCommand(recordLoadCmd, recordCreateCmd, recordUpdateCmd, recordDeleteCmd)
	rootCmd.AddCommand(recordCmd)
}
