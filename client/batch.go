package client

import (
	"fmt"
	"strings"
)

// Batch accumulates SQL statements and runs them as one server-side
// script, amortizing N round trips into one. A batch on its own has no
// atomicity guarantee; Tx wraps one in BEGIN/COMMIT for that.
//
// Named :params bind once for the whole script and are shared by every
// statement in it.
type Batch struct {
	db         *Database
	statements []string
	params     map[string]interface{}
}

// NewBatch returns an empty batch bound to this database session.
func (db *Database) NewBatch() *Batch {
	return &Batch{db: db}
}

// Add appends one statement. Trailing semicolons are stripped so the
// joined script stays well formed.
func (b *Batch) Add(stmt string) *Batch {
	stmt = strings.TrimRight(strings.TrimSpace(stmt), ";")
	if stmt != "" {
		b.statements = append(b.statements, stmt)
	}
	return b
}

// Let appends a statement whose result binds to a script variable,
// referenced later as $name (and returnable via Return).
func (b *Batch) Let(name, stmt string) *Batch {
	stmt = strings.TrimRight(strings.TrimSpace(stmt), ";")
	if name != "" && stmt != "" {
		b.statements = append(b.statements, fmt.Sprintf("LET %s = %s", name, stmt))
	}
	return b
}

// Return appends a RETURN for a script variable ($name) or expression,
// surfacing it as the script result.
func (b *Batch) Return(expr string) *Batch {
	expr = strings.TrimSpace(expr)
	if expr != "" {
		b.statements = append(b.statements, "RETURN "+expr)
	}
	return b
}

// Bind attaches a named parameter, referenced as :name by any
// statement in the batch.
func (b *Batch) Bind(name string, value interface{}) *Batch {
	if b.params == nil {
		b.params = make(map[string]interface{})
	}
	b.params[name] = value
	return b
}

// Len reports the number of buffered statements.
func (b *Batch) Len() int {
	return len(b.statements)
}

// Script renders the buffered statements as one SQL script.
func (b *Batch) Script() string {
	return strings.Join(b.statements, ";\n")
}

// Run executes the batch as a single SQL script and resets the buffer
// on success, leaving the batch reusable.
func (b *Batch) Run() (*Result, error) {
	if len(b.statements) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}

	var opts *CommandOptions
	if len(b.params) > 0 {
		opts = &CommandOptions{Params: b.params}
	}

	res, err := b.db.Script("sql", b.Script(), opts)
	if err != nil {
		return nil, err
	}

	b.statements = b.statements[:0]
	return res, nil
}
