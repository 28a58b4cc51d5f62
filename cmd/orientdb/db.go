package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage databases on the server",
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the databases on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, admin, err := connectAdmin(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		defer admin.Close()

		databases, err := admin.ListDatabases()
		if err != nil {
			return err
		}
		if len(databases) == 0 {
			printInfo("No databases on the server")
			return nil
		}

		names := make([]string, 0, len(databases))
		for name := range databases {
			names = append(names, name)
		}
		sort.Strings(names)

		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, databases[name]})
		}
		printTable([]string{"Name", "Storage"}, rows)
		return nil
	},
}

var dbExistsCmd = &cobra.Command{
	Use:   "exists <name>",
	Short: "Check whether a database exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, _ := cmd.Flags().GetString("storage")

		c, admin, err := connectAdmin(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		defer admin.Close()

		exists, err := admin.DatabaseExists(args[0], storage)
		if err != nil {
			return err
		}
		if exists {
			printSuccess(fmt.Sprintf("Database %q exists (%s)", args[0], storage))
		} else {
			printInfo(fmt.Sprintf("Database %q does not exist", args[0]))
		}
		return nil
	},
}

var dbCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbType, _ := cmd.Flags().GetString("type")
		storage, _ := cmd.Flags().GetString("storage")

		c, admin, err := connectAdmin(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		defer admin.Close()

		if err := admin.CreateDatabase(args[0], dbType, storage); err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("Created database %q (%s, %s)", args[0], dbType, storage))
		return nil
	},
}

var dbDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop a database and all its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, _ := cmd.Flags().GetString("storage")
		force, _ := cmd.Flags().GetBool("force")

		if !force && !promptConfirm(fmt.Sprintf("Drop database %q? This cannot be undone.", args[0])) {
			printInfo("Cancelled")
			return nil
		}

		c, admin, err := connectAdmin(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		defer admin.Close()

		if err := admin.DropDatabase(args[0], storage); err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("Dropped database %q", args[0]))
		return nil
	},
}

var dbInfoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show size, record count and clusters of a database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		override := ""
		if len(args) == 1 {
			override = args[0]
		}

		c, db, err := openDatabase(cmd, override)
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		size, err := db.Size()
		if err != nil {
			return err
		}
		count, err := db.CountRecords()
		if err != nil {
			return err
		}

		printHeader("Database " + db.Name())
		fmt.Printf("  Server release: %s\n", db.ServerRelease())
		fmt.Printf("  Session id:     %d\n", db.SessionID())
		fmt.Printf("  Size:           %d bytes\n", size)
		fmt.Printf("  Records:        %d\n", count)
		fmt.Println()

		clusters := db.Clusters()
		rows := make([][]string, 0, len(clusters))
		for _, cluster := range clusters {
			rows = append(rows, []string{fmt.Sprintf("%d", cluster.ID), cluster.Name})
		}
		printTable([]string{"ID", "Cluster"}, rows)
		return nil
	},
}

func init() {
	dbExistsCmd.Flags().String("storage", "plocal", "Storage type (plocal, memory)")
	dbCreateCmd.Flags().String("type", "graph", "Database type (graph, document)")
	dbCreateCmd.Flags().String("storage", "plocal", "Storage type (plocal, memory)")
	dbDropCmd.Flags().String("storage", "plocal", "Storage type (plocal, memory)")
	dbDropCmd.Flags().Bool("force", false, "Skip the confirmation prompt")

	dbCmd.AddCommand(dbListCmd, dbExistsCmd, dbCreateCmd, dbDropCmd, dbInfoCmd)
	rootCmd.AddCommand(dbCmd)
}
