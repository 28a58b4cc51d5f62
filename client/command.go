package client

import (
	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/record"
)

// CommandOptions tunes Query, Command and Script. The zero value binds no
// parameters, uses the client's default fetch plan and applies no row limit.
type CommandOptions struct {
	// Params binds named parameters. Placeholders stay as ":name" in the
	// command text; values travel beside it and the server substitutes
	// them, so user input never touches the SQL string.
	Params map[string]interface{}

	// FetchPlan controls eager link resolution for queries. Ignored by
	// Command and Script, whose planning the server owns.
	FetchPlan string

	// Limit caps the rows a query returns. Zero means unlimited.
	Limit int32
}

type commandSpec struct {
	class     string
	language  string
	text      string
	limit     int32
	fetchPlan string
	params    []byte
}

// Query runs an idempotent SQL query and returns its result set. Records
// the fetch plan resolved ahead of time land in the result's Prefetch map.
func (db *Database) Query(text string, opts *CommandOptions) (*Result, error) {
	if opts == nil {
		opts = &CommandOptions{}
	}
	plan := opts.FetchPlan
	if plan == "" {
		plan = db.sess.client.opts.DefaultFetchPlan
	}
	limit := opts.Limit
	if limit == 0 {
		limit = -1
	}
	return db.runCommand(commandSpec{
		class:     protocol.CommandClassQuery,
		text:      text,
		limit:     limit,
		fetchPlan: plan,
	}, opts)
}

// Command runs a non-idempotent SQL command (INSERT, UPDATE, CREATE CLASS,
// ...) and returns whatever the server produced: affected records, a count,
// or nothing.
func (db *Database) Command(text string, opts *CommandOptions) (*Result, error) {
	return db.runCommand(commandSpec{
		class: protocol.CommandClassCommand,
		text:  text,
	}, opts)
}

// Script runs a multi-statement script in the given language, "sql" being
// the common case.
func (db *Database) Script(language, text string, opts *CommandOptions) (*Result, error) {
	return db.runCommand(commandSpec{
		class:    protocol.CommandClassScript,
		language: language,
		text:     text,
	}, opts)
}

func (db *Database) runCommand(spec commandSpec, opts *CommandOptions) (*Result, error) {
	if opts == nil {
		opts = &CommandOptions{}
	}
	params, err := encodeParams(opts.Params)
	if err != nil {
		return nil, err
	}
	spec.params = params

	hookCtx := &HookContext{
		Command:     spec.text,
		CommandType: inferCommandType(spec.text),
		Params:      opts.Params,
	}
	r, err := db.sess.requestWith(protocol.OpCommand, hookCtx, func(w *protocol.Writer) {
		writeCommandPayload(w, spec)
	})
	if err != nil {
		return nil, err
	}

	payload := remainingBytes(r)
	var res *Result
	err = db.withSchemaRetry(func() error {
		var derr error
		res, derr = decodeCommandPayload(db.ser, payload)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// writeCommandPayload frames a command request: the sync mode byte, then
// the class-specific payload nested as one length-prefixed byte field.
func writeCommandPayload(w *protocol.Writer, spec commandSpec) {
	inner := protocol.NewWriter()
	inner.WriteString(spec.class)
	switch spec.class {
	case protocol.CommandClassQuery:
		inner.WriteString(spec.text)
		inner.WriteInt32(spec.limit)
		inner.WriteString(spec.fetchPlan)
		inner.WriteBytes(spec.params)
	case protocol.CommandClassScript:
		inner.WriteString(spec.language)
		inner.WriteString(spec.text)
		inner.WriteBytes(spec.params)
	default:
		inner.WriteString(spec.text)
		inner.WriteBytes(spec.params)
	}

	w.WriteByte(protocol.CommandModeSync)
	w.WriteBytes(inner.Bytes())
}

// encodeParams wraps the bindings in a document with a single "parameters"
// map field, the shape the server unpacks. Parameter documents are always
// name-encoded; nil means no parameters travel at all.
func encodeParams(params map[string]interface{}) ([]byte, error) {
	if len(params) == 0 {
		return nil, nil
	}
	doc := record.NewDocument("").Set("parameters", params)
	ser := &record.Serializer{}
	return ser.Serialize(doc)
}
