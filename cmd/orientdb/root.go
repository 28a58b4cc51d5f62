package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/orientdb-driver/client"
	"github.com/dan-strohschein/orientdb-driver/protocol"
)

var rootCmd = &cobra.Command{
	Use:   "orientdb",
	Short: "Command line client for OrientDB",
	Long: `orientdb talks to an OrientDB server over its binary protocol.

It manages databases, loads and stores records, runs SQL, applies schema
migrations and generates code from the class schema.

Connection settings come from flags or from the environment:
  ORIENTDB_ADDR      server address (host:port)
  ORIENTDB_USER      user name
  ORIENTDB_PASSWORD  password
  ORIENTDB_DB        database name`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print driver and protocol version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", client.DriverName, client.Version)
		fmt.Printf("protocol versions %d-%d\n", protocol.MinProtocolVersion, protocol.MaxProtocolVersion)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("addr", envOr("ORIENTDB_ADDR", "localhost:2424"), "Server address (host:port)")
	flags.StringP("user", "u", envOr("ORIENTDB_USER", "root"), "User name")
	flags.StringP("pass", "p", envOr("ORIENTDB_PASSWORD", ""), "Password")
	flags.String("db", envOr("ORIENTDB_DB", ""), "Database name")
	flags.String("db-type", "graph", "Database type (graph, document)")
	flags.Duration("timeout", 10*time.Second, "Request timeout")
	flags.String("log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.Bool("debug", false, "Verbose errors with full server exception chains")
	flags.Bool("tls", false, "Wrap the connection in TLS")
	flags.Bool("tls-insecure", false, "Skip TLS certificate validation")

	rootCmd.AddCommand(versionCmd)
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// clientOptions builds driver options from the persistent flags.
func clientOptions(cmd *cobra.Command) client.Options {
	opts := client.DefaultOptions()
	if timeout, err := cmd.Flags().GetDuration("timeout"); err == nil && timeout > 0 {
		opts.DefaultTimeoutMs = int(timeout / time.Millisecond)
	}
	opts.DebugMode, _ = cmd.Flags().GetBool("debug")
	opts.LogLevel, _ = cmd.Flags().GetString("log-level")
	opts.TLSEnabled, _ = cmd.Flags().GetBool("tls")
	opts.TLSInsecureSkipVerify, _ = cmd.Flags().GetBool("tls-insecure")
	return opts
}

// credentials reads the user and password flags.
func credentials(cmd *cobra.Command) (string, string) {
	user, _ := cmd.Flags().GetString("user")
	pass, _ := cmd.Flags().GetString("pass")
	return user, pass
}

// dialServer connects to the server named by the persistent flags.
func dialServer(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	c, err := client.Dial(addr, clientOptions(cmd))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return c, nil
}

// connectAdmin dials and authenticates a server-level session for
// database lifecycle commands.
func connectAdmin(cmd *cobra.Command) (*client.Client, *client.Admin, error) {
	c, err := dialServer(cmd)
	if err != nil {
		return nil, nil, err
	}
	user, pass := credentials(cmd)
	admin, err := c.Auth(user, pass)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, admin, nil
}

// openDatabase dials and opens the database named by --db, or by the
// override argument when a command accepts the name positionally.
func openDatabase(cmd *cobra.Command, override string) (*client.Client, *client.Database, error) {
	name := override
	if name == "" {
		name, _ = cmd.Flags().GetString("db")
	}
	if name == "" {
		return nil, nil, fmt.Errorf("no database selected: set --db or ORIENTDB_DB")
	}

	c, err := dialServer(cmd)
	if err != nil {
		return nil, nil, err
	}
	dbType, _ := cmd.Flags().GetString("db-type")
	user, pass := credentials(cmd)
	db, err := c.Open(name, dbType, user, pass)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, db, nil
}
