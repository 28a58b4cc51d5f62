package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dan-strohschein/orientdb-driver/record"
	"github.com/shopspring/decimal"
)

// Validator checks documents against the cached property catalog before
// they ship, turning a class of server-side validation rejections into
// local errors that name the offending field. Validation is opt-in; the
// record paths never gate on it.
type Validator struct {
	db     *Database
	strict bool
}

// Validator returns a document validator over this session's schema
// cache. Fields without a catalog entry pass; Strict flips that.
func (db *Database) Validator() *Validator {
	return &Validator{db: db}
}

// Strict returns a validator that also rejects fields the catalog does
// not know.
func (v *Validator) Strict() *Validator {
	return &Validator{db: v.db, strict: true}
}

// FieldIssue describes one validation failure inside a document.
type FieldIssue struct {
	Field    string `json:"field"`
	Declared string `json:"declared_type,omitempty"`
	Got      string `json:"got_type"`
	Reason   string `json:"reason"`
}

// DocumentValidationError reports every field issue found in one pass.
type DocumentValidationError struct {
	Class  string       `json:"class"`
	Issues []FieldIssue `json:"issues"`
}

// Error implements the error interface.
func (e *DocumentValidationError) Error() string {
	if len(e.Issues) == 1 {
		i := e.Issues[0]
		return fmt.Sprintf("[DOCUMENT_INVALID] field %q: %s", i.Field, i.Reason)
	}
	fields := make([]string, len(e.Issues))
	for n, i := range e.Issues {
		fields[n] = i.Field
	}
	return fmt.Sprintf("[DOCUMENT_INVALID] %d invalid fields: %s", len(e.Issues), strings.Join(fields, ", "))
}

// ValidateDocument checks every field of doc against the catalog's
// declared types. A nil return means the document is consistent with
// the schema snapshot currently cached; the server still has the last
// word.
func (v *Validator) ValidateDocument(doc *record.Document) error {
	catalog := v.db.Schema().Catalog()
	var issues []FieldIssue

	for _, name := range doc.FieldNames() {
		value := doc.Field(name)
		declared, known := catalog.PropertyType(name)
		if !known {
			if v.strict {
				issues = append(issues, FieldIssue{
					Field:  name,
					Got:    fmt.Sprintf("%T", value),
					Reason: "field is not in the schema catalog",
				})
			}
			continue
		}
		if !valueMatchesType(value, declared) {
			issues = append(issues, FieldIssue{
				Field:    name,
				Declared: declared,
				Got:      fmt.Sprintf("%T", value),
				Reason:   fmt.Sprintf("value of type %T does not satisfy declared type %s", value, declared),
			})
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &DocumentValidationError{Class: doc.Class, Issues: issues}
}

// valueMatchesType reports whether a Go value is encodable as the
// declared OrientDB property type. Nil passes everywhere; mandatory
// checks are the server's concern.
func valueMatchesType(value interface{}, declared string) bool {
	if value == nil {
		return true
	}

	switch declared {
	case "BOOLEAN":
		_, ok := value.(bool)
		return ok
	case "INTEGER":
		switch value.(type) {
		case int32, int16, int:
			return true
		}
		return false
	case "SHORT":
		switch value.(type) {
		case int16:
			return true
		}
		return false
	case "LONG":
		switch value.(type) {
		case int64, int32, int16, int:
			return true
		}
		return false
	case "FLOAT":
		_, ok := value.(float32)
		return ok
	case "DOUBLE":
		switch value.(type) {
		case float64, float32:
			return true
		}
		return false
	case "STRING":
		_, ok := value.(string)
		return ok
	case "BINARY":
		_, ok := value.([]byte)
		return ok
	case "DATE", "DATETIME":
		_, ok := value.(time.Time)
		return ok
	case "BYTE":
		_, ok := value.(byte)
		return ok
	case "LINK":
		_, ok := value.(record.RID)
		return ok
	case "EMBEDDED":
		_, ok := value.(*record.Document)
		return ok
	case "EMBEDDEDLIST", "EMBEDDEDSET", "LINKLIST", "LINKSET":
		_, ok := value.([]interface{})
		return ok
	case "EMBEDDEDMAP", "LINKMAP":
		_, ok := value.(map[string]interface{})
		return ok
	case "DECIMAL":
		_, ok := value.(decimal.Decimal)
		return ok
	case "ANY", "":
		return true
	default:
		// Unknown declared types never fail locally.
		return true
	}
}

// SchemaInvalidationHook reloads the property catalog after DDL
// commands succeed, so a CREATE PROPERTY in this session is visible to
// the next decode without waiting for a schema miss.
type SchemaInvalidationHook struct {
	db *Database
}

// NewSchemaInvalidationHook builds the hook for one database session.
func NewSchemaInvalidationHook(db *Database) *SchemaInvalidationHook {
	return &SchemaInvalidationHook{db: db}
}

// Name implements Hook.
func (h *SchemaInvalidationHook) Name() string {
	return "schema-invalidation"
}

// Before implements Hook.
func (h *SchemaInvalidationHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}

// After implements Hook. Reload failures are logged, not surfaced: the
// command itself succeeded and the cache self-heals on the next miss.
func (h *SchemaInvalidationHook) After(ctx context.Context, hookCtx *HookContext) error {
	if hookCtx.Error != nil || hookCtx.CommandType != "schema" {
		return nil
	}
	if !touchesSchema(hookCtx.Command) {
		return nil
	}

	if err := h.db.ReloadSchema(); err != nil {
		h.db.sess.client.Logger().Warn("schema reload after DDL failed",
			String("command", hookCtx.Command),
			Error("error", err))
	}
	return nil
}

// touchesSchema reports whether a DDL statement can change the global
// property registry. CREATE CLASS alone does not register properties,
// but scripts often combine both, so class DDL counts too.
func touchesSchema(command string) bool {
	upper := strings.ToUpper(command)
	for _, frag := range []string{"CLASS", "PROPERTY"} {
		if strings.Contains(upper, frag) {
			return true
		}
	}
	return false
}
