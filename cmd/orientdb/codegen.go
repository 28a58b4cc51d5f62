package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/orientdb-driver/codegen"
	"github.com/dan-strohschein/orientdb-driver/schema"
)

var codegenCmd = &cobra.Command{
	Use:   "codegen",
	Short: "Generate code and schemas from an OrientDB class schema",
	Long: `Generate code and schemas from an OrientDB class schema.

Fetch the live schema from a server with 'codegen fetch-schema', then
generate Go structs, JSON Schema or GraphQL SDL from the saved file
with 'codegen generate'.`,
}

var codegenFetchSchemaCmd = &cobra.Command{
	Use:   "fetch-schema",
	Short: "Fetch the class schema from the server into a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		printStep(1, 3, "Connecting to server...")
		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		printStep(2, 3, "Fetching class schema...")
		def, err := db.FetchSchema()
		if err != nil {
			return err
		}

		printStep(3, 3, "Writing "+output+"...")
		data, err := json.MarshalIndent(def, "", "  ")
		if err != nil {
			return err
		}
		if dir := filepath.Dir(output); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return err
		}

		fmt.Println()
		printSuccess(fmt.Sprintf("Saved %d class(es) to %s", len(def.Classes), colorCyan(output)))
		for i := range def.Classes {
			class := &def.Classes[i]
			extends := ""
			if class.SuperClass != "" {
				extends = colorDim(" extends " + class.SuperClass)
			}
			fmt.Printf("  %s%s (%d properties)\n", colorBold(class.Name), extends, len(class.Properties))
		}
		return nil
	},
}

var codegenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate output from a schema file",
	Long: `Generate output from a schema file.

Formats:
  structs      Go struct definitions with json tags
  json-schema  a JSON Schema (draft-07) document
  graphql      GraphQL SDL with types, inputs and operations`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		pkg, _ := cmd.Flags().GetString("package")

		def, err := readSchemaFile(schemaFilePath(cmd))
		if err != nil {
			return err
		}

		var generated string
		switch format {
		case "structs":
			generated, err = codegen.NewGoStructGenerator().Generate(def, pkg)
		case "json-schema":
			generated, err = codegen.NewJSONSchemaGenerator().GenerateSingle(def)
		case "graphql":
			generated, err = codegen.NewGraphQLSchemaGenerator().Generate(def)
		default:
			return fmt.Errorf("unknown format %q (expected structs, json-schema or graphql)", format)
		}
		if err != nil {
			return err
		}

		if output == "" || output == "-" {
			fmt.Print(generated)
			if !strings.HasSuffix(generated, "\n") {
				fmt.Println()
			}
			return nil
		}

		if dir := filepath.Dir(output); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(output, []byte(generated), 0644); err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("Generated %s from %d class(es): %s", format, len(def.Classes), colorCyan(output)))
		return nil
	},
}

var codegenDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show DDL that moves the server schema to the schema file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		localDef, err := readSchemaFile(schemaFilePath(cmd))
		if err != nil {
			return err
		}

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		serverDef, err := db.FetchSchema()
		if err != nil {
			return err
		}

		diff := schema.CompareSchemas(localDef, serverDef)
		if !diff.HasChanges {
			printSuccess("Server schema matches the schema file")
			return nil
		}

		for _, stmt := range schema.SerializeDiff(diff) {
			fmt.Println(stmt)
		}
		return nil
	},
}

func init() {
	codegenFetchSchemaCmd.Flags().String("output", envOr("ORIENTDB_SCHEMA_FILE", "./schema.json"), "Schema file to write")

	codegenGenerateCmd.Flags().String("schema", envOr("ORIENTDB_SCHEMA_FILE", "./schema.json"), "Schema file path")
	codegenGenerateCmd.Flags().String("format", "structs", "Output format: structs, json-schema or graphql")
	codegenGenerateCmd.Flags().String("output", "", "Output file (default stdout)")
	codegenGenerateCmd.Flags().String("package", "models", "Package name for generated Go code")

	codegenDiffCmd.Flags().String("schema", envOr("ORIENTDB_SCHEMA_FILE", "./schema.json"), "Schema file path")

	codegenCmd.AddCommand(codegenFetchSchemaCmd, codegenGenerateCmd, codegenDiffCmd)
	rootCmd.AddCommand(codegenCmd)
}
