package client

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator is a comparison operator in a WHERE condition.
type Operator int

const (
	// Equals matches exact values.
	Equals Operator = iota
	// NotEquals matches different values.
	NotEquals
	// GreaterThan matches larger values.
	GreaterThan
	// LessThan matches smaller values.
	LessThan
	// GreaterThanOrEqual matches larger or equal values.
	GreaterThanOrEqual
	// LessThanOrEqual matches smaller or equal values.
	LessThanOrEqual
	// Like matches with % wildcards.
	Like
	// In matches any value in a collection.
	In
	// NotIn matches no value in a collection.
	NotIn
	// IsNull matches absent values (no operand).
	IsNull
	// IsNotNull matches present values (no operand).
	IsNotNull
	// Contains matches collections containing the value.
	Contains
	// ContainsText matches indexed full-text content.
	ContainsText
	// Matches applies a regular expression server-side.
	Matches
	// InstanceOf matches records of a class or its subclasses.
	InstanceOf
)

// String returns the SQL spelling of the operator.
func (op Operator) String() string {
	switch op {
	case Equals:
		return "="
	case NotEquals:
		return "<>"
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case GreaterThanOrEqual:
		return ">="
	case LessThanOrEqual:
		return "<="
	case Like:
		return "LIKE"
	case In:
		return "IN"
	case NotIn:
		return "NOT IN"
	case IsNull:
		return "IS NULL"
	case IsNotNull:
		return "IS NOT NULL"
	case Contains:
		return "CONTAINS"
	case ContainsText:
		return "CONTAINSTEXT"
	case Matches:
		return "MATCHES"
	case InstanceOf:
		return "INSTANCEOF"
	default:
		return "UNKNOWN"
	}
}

// takesOperand reports whether the operator consumes a bound value.
func (op Operator) takesOperand() bool {
	return op != IsNull && op != IsNotNull
}

// Direction orders a sort clause.
type Direction int

const (
	// Ascending sorts smallest first.
	Ascending Direction = iota
	// Descending sorts largest first.
	Descending
)

// String returns the SQL spelling of the direction.
func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// identifierPattern accepts class and field names, dotted traversal
// paths (Author.Name), and @-prefixed record attributes (@rid, @class).
var identifierPattern = regexp.MustCompile(`^@?[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

type whereCond struct {
	connective string // "AND" | "OR", empty for the first condition
	field      string
	op         Operator
	param      string // ":pN" placeholder, empty for operand-free ops
}

type orderClause struct {
	field string
	dir   Direction
}

// QueryBuilder assembles a SELECT with bound :pN parameters. Every
// operand travels as a named parameter, never interpolated into the
// text, and identifiers are validated against a strict pattern, so
// builder queries are injection-safe by construction.
//
// The zero value is not usable; start from Database.Select. Build
// errors stick: the first invalid call poisons the builder and Build
// or Execute report it.
type QueryBuilder struct {
	db          *Database
	target      string
	projections []string
	conds       []whereCond
	order       []orderClause
	skip        int
	limit       int
	fetchPlan   string
	params      map[string]interface{}
	seq         int
	err         error
}

// Select starts a query against a class (or cluster:name target),
// projecting the given fields, all of them when none are named.
func (db *Database) Select(class string, fields ...string) *QueryBuilder {
	qb := &QueryBuilder{
		db:     db,
		skip:   -1,
		limit:  -1,
		params: make(map[string]interface{}),
	}

	if !validTarget(class) {
		qb.err = fmt.Errorf("invalid query target %q", class)
		return qb
	}
	qb.target = class

	for _, f := range fields {
		if !identifierPattern.MatchString(f) {
			qb.err = fmt.Errorf("invalid projection field %q", f)
			return qb
		}
		qb.projections = append(qb.projections, f)
	}
	return qb
}

// validTarget accepts class identifiers and cluster:name targets.
func validTarget(s string) bool {
	if rest, ok := strings.CutPrefix(s, "cluster:"); ok {
		return identifierPattern.MatchString(rest)
	}
	return identifierPattern.MatchString(s)
}

// condition appends one WHERE term with the given connective.
func (qb *QueryBuilder) condition(connective, field string, op Operator, value interface{}) *QueryBuilder {
	if qb.err != nil {
		return qb
	}
	if !identifierPattern.MatchString(field) {
		qb.err = fmt.Errorf("invalid field name %q", field)
		return qb
	}
	if len(qb.conds) == 0 {
		connective = ""
	} else if connective == "" {
		connective = "AND"
	}

	cond := whereCond{connective: connective, field: field, op: op}
	if op.takesOperand() {
		qb.seq++
		cond.param = fmt.Sprintf("p%d", qb.seq)
		qb.params[cond.param] = value
	}
	qb.conds = append(qb.conds, cond)
	return qb
}

// Where adds a condition, joined with AND when one already exists.
func (qb *QueryBuilder) Where(field string, op Operator, value interface{}) *QueryBuilder {
	return qb.condition("AND", field, op, value)
}

// And is Where spelled for fluency.
func (qb *QueryBuilder) And(field string, op Operator, value interface{}) *QueryBuilder {
	return qb.condition("AND", field, op, value)
}

// Or adds a condition joined with OR.
func (qb *QueryBuilder) Or(field string, op Operator, value interface{}) *QueryBuilder {
	return qb.condition("OR", field, op, value)
}

// OrderBy appends a sort clause.
func (qb *QueryBuilder) OrderBy(field string, dir Direction) *QueryBuilder {
	if qb.err != nil {
		return qb
	}
	if !identifierPattern.MatchString(field) {
		qb.err = fmt.Errorf("invalid order field %q", field)
		return qb
	}
	qb.order = append(qb.order, orderClause{field: field, dir: dir})
	return qb
}

// Skip sets the number of leading records the server drops.
func (qb *QueryBuilder) Skip(n int) *QueryBuilder {
	if qb.err == nil && n < 0 {
		qb.err = fmt.Errorf("skip must be non-negative, got %d", n)
		return qb
	}
	qb.skip = n
	return qb
}

// Limit caps the number of returned records.
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	if qb.err == nil && n < 0 {
		qb.err = fmt.Errorf("limit must be non-negative, got %d", n)
		return qb
	}
	qb.limit = n
	return qb
}

// FetchPlan sets the link-resolution plan sent with the query.
func (qb *QueryBuilder) FetchPlan(plan string) *QueryBuilder {
	qb.fetchPlan = plan
	return qb
}

// Build renders the SQL text and its parameter bindings.
func (qb *QueryBuilder) Build() (string, map[string]interface{}, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}
	if qb.target == "" {
		return "", nil, fmt.Errorf("query has no target")
	}

	var sb strings.Builder
	sb.WriteString("SELECT")
	if len(qb.projections) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(qb.projections, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(qb.target)

	for i, c := range qb.conds {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" ")
			sb.WriteString(c.connective)
			sb.WriteString(" ")
		}
		sb.WriteString(c.field)
		sb.WriteString(" ")
		sb.WriteString(c.op.String())
		if c.param != "" {
			sb.WriteString(" :")
			sb.WriteString(c.param)
		}
	}

	for i, o := range qb.order {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(o.field)
		sb.WriteString(" ")
		sb.WriteString(o.dir.String())
	}

	if qb.skip > 0 {
		fmt.Fprintf(&sb, " SKIP %d", qb.skip)
	}
	if qb.limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", qb.limit)
	}

	return sb.String(), qb.params, nil
}

// Execute builds the query and runs it through the session.
func (qb *QueryBuilder) Execute() (*Result, error) {
	text, params, err := qb.Build()
	if err != nil {
		return nil, err
	}

	opts := &CommandOptions{FetchPlan: qb.fetchPlan}
	if len(params) > 0 {
		opts.Params = params
	}
	return qb.db.Query(text, opts)
}
