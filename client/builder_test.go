package client

import (
	"strings"
	"testing"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/record"
	"github.com/dan-strohschein/orientdb-driver/transport/mock"
)

func TestOperatorString(t *testing.T) {
	tests := []struct {
		name     string
		operator Operator
		expected string
	}{
		{"Equals", Equals, "="},
		{"NotEquals", NotEquals, "<>"},
		{"GreaterThan", GreaterThan, ">"},
		{"LessThan", LessThan, "<"},
		{"GreaterThanOrEqual", GreaterThanOrEqual, ">="},
		{"LessThanOrEqual", LessThanOrEqual, "<="},
		{"Like", Like, "LIKE"},
		{"In", In, "IN"},
		{"NotIn", NotIn, "NOT IN"},
		{"IsNull", IsNull, "IS NULL"},
		{"IsNotNull", IsNotNull, "IS NOT NULL"},
		{"Contains", Contains, "CONTAINS"},
		{"ContainsText", ContainsText, "CONTAINSTEXT"},
		{"Matches", Matches, "MATCHES"},
		{"InstanceOf", InstanceOf, "INSTANCEOF"},
		{"Unknown", Operator(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.operator.String(); got != tt.expected {
				t.Errorf("Operator.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDirectionString(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		expected  string
	}{
		{"Ascending", Ascending, "ASC"},
		{"Descending", Descending, "DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.direction.String(); got != tt.expected {
				t.Errorf("Direction.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestQueryBuilderBuild(t *testing.T) {
	db := newTestDatabase(mock.NewMockTransport())

	tests := []struct {
		name       string
		build      func() *QueryBuilder
		wantSQL    string
		wantParams map[string]interface{}
	}{
		{
			name:    "select all fields",
			build:   func() *QueryBuilder { return db.Select("Person") },
			wantSQL: "SELECT FROM Person",
		},
		{
			name:    "select projections",
			build:   func() *QueryBuilder { return db.Select("Person", "name", "age") },
			wantSQL: "SELECT name, age FROM Person",
		},
		{
			name: "single condition",
			build: func() *QueryBuilder {
				return db.Select("Person").Where("age", GreaterThan, 18)
			},
			wantSQL:    "SELECT FROM Person WHERE age > :p1",
			wantParams: map[string]interface{}{"p1": 18},
		},
		{
			name: "and chain",
			build: func() *QueryBuilder {
				return db.Select("Person").
					Where("age", GreaterThanOrEqual, 21).
					And("name", Like, "A%")
			},
			wantSQL:    "SELECT FROM Person WHERE age >= :p1 AND name LIKE :p2",
			wantParams: map[string]interface{}{"p1": 21, "p2": "A%"},
		},
		{
			name: "or chain",
			build: func() *QueryBuilder {
				return db.Select("Person").
					Where("city", Equals, "London").
					Or("city", Equals, "Paris")
			},
			wantSQL:    "SELECT FROM Person WHERE city = :p1 OR city = :p2",
			wantParams: map[string]interface{}{"p1": "London", "p2": "Paris"},
		},
		{
			name: "operand-free operators",
			build: func() *QueryBuilder {
				return db.Select("Person").
					Where("email", IsNotNull, nil).
					And("deletedAt", IsNull, nil)
			},
			wantSQL: "SELECT FROM Person WHERE email IS NOT NULL AND deletedAt IS NULL",
		},
		{
			name: "in collection",
			build: func() *QueryBuilder {
				return db.Select("Person").Where("status", In, []interface{}{"active", "pending"})
			},
			wantSQL:    "SELECT FROM Person WHERE status IN :p1",
			wantParams: map[string]interface{}{"p1": []interface{}{"active", "pending"}},
		},
		{
			name: "order skip limit",
			build: func() *QueryBuilder {
				return db.Select("Person").
					OrderBy("age", Descending).
					OrderBy("name", Ascending).
					Skip(10).
					Limit(20)
			},
			wantSQL: "SELECT FROM Person ORDER BY age DESC, name ASC SKIP 10 LIMIT 20",
		},
		{
			name: "dotted traversal and attributes",
			build: func() *QueryBuilder {
				return db.Select("Post", "@rid", "author.name").
					Where("author.city", Equals, "Oslo")
			},
			wantSQL:    "SELECT @rid, author.name FROM Post WHERE author.city = :p1",
			wantParams: map[string]interface{}{"p1": "Oslo"},
		},
		{
			name:    "cluster target",
			build:   func() *QueryBuilder { return db.Select("cluster:person") },
			wantSQL: "SELECT FROM cluster:person",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := tt.build().Build()
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(params) != len(tt.wantParams) {
				t.Fatalf("params = %v, want %v", params, tt.wantParams)
			}
			for k, want := range tt.wantParams {
				got := params[k]
				switch w := want.(type) {
				case []interface{}:
					g, ok := got.([]interface{})
					if !ok || len(g) != len(w) {
						t.Errorf("params[%q] = %v, want %v", k, got, want)
						continue
					}
					for i := range w {
						if g[i] != w[i] {
							t.Errorf("params[%q][%d] = %v, want %v", k, i, g[i], w[i])
						}
					}
				default:
					if got != want {
						t.Errorf("params[%q] = %v, want %v", k, got, want)
					}
				}
			}
		})
	}
}

func TestQueryBuilderValidation(t *testing.T) {
	db := newTestDatabase(mock.NewMockTransport())

	tests := []struct {
		name  string
		build func() *QueryBuilder
		frag  string
	}{
		{
			name:  "injected target",
			build: func() *QueryBuilder { return db.Select("Person; DROP CLASS Person") },
			frag:  "invalid query target",
		},
		{
			name:  "injected projection",
			build: func() *QueryBuilder { return db.Select("Person", "name, password") },
			frag:  "invalid projection field",
		},
		{
			name: "injected condition field",
			build: func() *QueryBuilder {
				return db.Select("Person").Where("name = 'x' OR 1", Equals, 1)
			},
			frag: "invalid field name",
		},
		{
			name: "injected order field",
			build: func() *QueryBuilder {
				return db.Select("Person").OrderBy("name; DELETE", Ascending)
			},
			frag: "invalid order field",
		},
		{
			name:  "negative skip",
			build: func() *QueryBuilder { return db.Select("Person").Skip(-1) },
			frag:  "skip must be non-negative",
		},
		{
			name:  "negative limit",
			build: func() *QueryBuilder { return db.Select("Person").Limit(-2) },
			frag:  "limit must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.build().Build()
			if err == nil {
				t.Fatal("expected build error, got nil")
			}
			if !strings.Contains(err.Error(), tt.frag) {
				t.Errorf("error %q does not mention %q", err, tt.frag)
			}
		})
	}

	t.Run("error sticks across later calls", func(t *testing.T) {
		qb := db.Select("bad target!").Where("age", GreaterThan, 1).Limit(5)
		if _, _, err := qb.Build(); err == nil {
			t.Fatal("expected sticky build error, got nil")
		}
		if _, err := qb.Execute(); err == nil {
			t.Fatal("expected Execute to surface the build error")
		}
	})
}

// TestQueryBuilderExecute verifies the built query travels with its
// bindings and fetch plan, placeholders intact.
func TestQueryBuilderExecute(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(emptyCollectionFrame())
	db := newTestDatabase(mt)

	_, err := db.Select("Person", "name").
		Where("age", GreaterThan, 30).
		FetchPlan("*:1").
		Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	r := sentReader(t, mt, 0)
	r.ReadByte()  // opcode
	r.ReadInt32() // session id
	r.ReadByte()  // mode
	inner, _ := r.ReadBytes()

	ir := protocol.NewReader(inner)
	ir.ReadString() // class "q"
	text, _ := ir.ReadString()
	if text != "SELECT name FROM Person WHERE age > :p1" {
		t.Errorf("unexpected wire text %q", text)
	}
	ir.ReadInt32() // limit
	plan, _ := ir.ReadString()
	if plan != "*:1" {
		t.Errorf("expected fetch plan *:1, got %q", plan)
	}

	paramBytes, _ := ir.ReadBytes()
	paramDoc, err := (&record.Serializer{}).Deserialize(paramBytes)
	if err != nil {
		t.Fatalf("parameter document does not decode: %v", err)
	}
	params, ok := paramDoc.Field("parameters").(map[string]interface{})
	if !ok {
		t.Fatalf("expected parameters map, got %T", paramDoc.Field("parameters"))
	}
	if v, ok := params["p1"].(int64); !ok || v != 30 {
		if v32, ok32 := params["p1"].(int32); !ok32 || v32 != 30 {
			t.Errorf("expected p1=30 binding, got %v (%T)", params["p1"], params["p1"])
		}
	}
}
