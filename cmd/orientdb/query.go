package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/orientdb-driver/client"
	"github.com/dan-strohschein/orientdb-driver/record"
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run an idempotent SQL query",
	Long: `Run an idempotent SQL query and print its result set.

Named parameters bind through --param, keeping user input out of the SQL
string:

  orientdb query 'select from Person where name = :name' --param name=Ada`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := &client.CommandOptions{}
		opts.FetchPlan, _ = cmd.Flags().GetString("fetch-plan")
		opts.Limit, _ = cmd.Flags().GetInt32("limit")

		paramArgs, _ := cmd.Flags().GetStringArray("param")
		params, err := parseParams(paramArgs)
		if err != nil {
			return err
		}
		opts.Params = params

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		res, err := db.Query(args[0], opts)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return renderResult(res, asJSON)
	},
}

var commandCmd = &cobra.Command{
	Use:   "command <sql>",
	Short: "Run a non-idempotent SQL command",
	Long: `Run a non-idempotent SQL command: INSERT, UPDATE, DELETE, DDL.

The result depends on the statement: affected records, a count, or
nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paramArgs, _ := cmd.Flags().GetStringArray("param")
		params, err := parseParams(paramArgs)
		if err != nil {
			return err
		}

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		res, err := db.Command(args[0], &client.CommandOptions{Params: params})
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return renderResult(res, asJSON)
	},
}

var scriptCmd = &cobra.Command{
	Use:   "script [file]",
	Short: "Run a multi-statement script",
	Long: `Run a multi-statement script from a file, or from stdin when no
file is given. The default language is SQL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text []byte
		var err error
		if len(args) == 1 {
			text, err = os.ReadFile(args[0])
		} else {
			text, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}
		if len(strings.TrimSpace(string(text))) == 0 {
			return fmt.Errorf("empty script")
		}

		language, _ := cmd.Flags().GetString("language")

		c, db, err := openDatabase(cmd, "")
		if err != nil {
			return err
		}
		defer c.Close()
		defer db.Close()

		res, err := db.Script(language, string(text), nil)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return renderResult(res, asJSON)
	},
}

// parseParams converts name=value arguments into a parameter map, typed
// the same way record field literals are.
func parseParams(args []string) (map[string]interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(args))
	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid parameter %q: want name=value", arg)
		}
		params[name] = inferValue(value)
	}
	return params, nil
}

// renderResult prints a command outcome as a table or as JSON.
func renderResult(res *client.Result, asJSON bool) error {
	if asJSON {
		return renderJSON(res)
	}

	switch res.Kind {
	case client.KindNone:
		printSuccess("OK")
	case client.KindScalar:
		fmt.Println(formatValue(res.Scalar))
	default:
		printDocuments(res.Records)
		if len(res.Prefetch) > 0 {
			printInfo(fmt.Sprintf("%d prefetched record(s) resolved by the fetch plan", len(res.Prefetch)))
		}
	}
	return nil
}

// renderJSON prints records as a JSON array, or the scalar value alone.
func renderJSON(res *client.Result) error {
	var payload interface{}
	switch res.Kind {
	case client.KindNone:
		payload = nil
	case client.KindScalar:
		payload = jsonValue(res.Scalar)
	default:
		docs := make([]interface{}, 0, len(res.Records))
		for _, doc := range res.Records {
			docs = append(docs, documentToMap(doc))
		}
		payload = docs
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// printDocuments renders documents as a table: identity columns first,
// then the union of the field names in first-seen order.
func printDocuments(docs []*record.Document) {
	if len(docs) == 0 {
		printInfo("0 records")
		return
	}

	var fields []string
	seen := make(map[string]bool)
	for _, doc := range docs {
		for _, name := range doc.FieldNames() {
			if !seen[name] {
				seen[name] = true
				fields = append(fields, name)
			}
		}
	}

	headers := append([]string{"@rid", "@version", "@class"}, fields...)
	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		row := []string{doc.RID.String(), fmt.Sprintf("%d", doc.Version), doc.Class}
		for _, name := range fields {
			if value, ok := doc.Get(name); ok {
				row = append(row, formatValue(value))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}

	printTable(headers, rows)
	fmt.Println()
	printInfo(fmt.Sprintf("%d record(s)", len(docs)))
}

// formatValue renders one field value for table output.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	case *record.Document:
		return v.String()
	case record.RID:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// documentToMap converts a document to a JSON-marshalable map, carrying
// the identity fields under their @-prefixed names.
func documentToMap(doc *record.Document) map[string]interface{} {
	out := make(map[string]interface{}, doc.Len()+3)
	if doc.RID.IsValid() {
		out["@rid"] = doc.RID.String()
		out["@version"] = doc.Version
	}
	if doc.Class != "" {
		out["@class"] = doc.Class
	}
	for _, name := range doc.FieldNames() {
		out[name] = jsonValue(doc.Field(name))
	}
	return out
}

// jsonValue recursively converts wire values into JSON-marshalable ones.
func jsonValue(value interface{}) interface{} {
	switch v := value.(type) {
	case record.RID:
		return v.String()
	case *record.Document:
		return documentToMap(v)
	case []interface{}:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = jsonValue(item)
		}
		return items
	case map[string]interface{}:
		entries := make(map[string]interface{}, len(v))
		for key, item := range v {
			entries[key] = jsonValue(item)
		}
		return entries
	default:
		return v
	}
}

func init() {
	queryCmd.Flags().Int32("limit", 0, "Row limit (0 = unlimited)")
	queryCmd.Flags().String("fetch-plan", "", "Fetch plan, e.g. *:1 (default: client setting)")
	queryCmd.Flags().StringArray("param", nil, "Named parameter as name=value (repeatable)")
	queryCmd.Flags().Bool("json", false, "Print the result as JSON")
	commandCmd.Flags().StringArray("param", nil, "Named parameter as name=value (repeatable)")
	commandCmd.Flags().Bool("json", false, "Print the result as JSON")
	scriptCmd.Flags().String("language", "sql", "Script language")
	scriptCmd.Flags().Bool("json", false, "Print the result as JSON")

	rootCmd.AddCommand(queryCmd, commandCmd, scriptCmd)
}
