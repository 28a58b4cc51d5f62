package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// SerializeCreateClass generates the CREATE CLASS statement for a class,
// without its properties or indexes.
func SerializeCreateClass(class *ClassDefinition) string {
	var sb strings.Builder
	sb.WriteString("CREATE CLASS ")
	sb.WriteString(class.Name)
	if class.SuperClass != "" {
		sb.WriteString(" EXTENDS ")
		sb.WriteString(class.SuperClass)
	}
	if class.Abstract {
		sb.WriteString(" ABSTRACT")
	}
	return sb.String()
}

// SerializeCreateProperty generates a CREATE PROPERTY statement with the
// property's constraints inlined.
func SerializeCreateProperty(className string, prop *PropertyDefinition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE PROPERTY %s.%s %s", className, prop.Name, prop.Type)

	// Link types carry the target class, collection types the element type.
	if prop.LinkedClass != "" {
		sb.WriteString(" ")
		sb.WriteString(prop.LinkedClass)
	} else if prop.LinkedType != "" {
		sb.WriteString(" ")
		sb.WriteString(prop.LinkedType)
	}

	if constraints := propertyConstraints(prop); len(constraints) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(constraints, ", "))
	}
	return sb.String()
}

func propertyConstraints(prop *PropertyDefinition) []string {
	var constraints []string
	if prop.Mandatory {
		constraints = append(constraints, "MANDATORY TRUE")
	}
	if prop.NotNull {
		constraints = append(constraints, "NOTNULL TRUE")
	}
	if prop.ReadOnly {
		constraints = append(constraints, "READONLY TRUE")
	}
	if prop.Min != "" {
		constraints = append(constraints, "MIN "+literal(prop.Min))
	}
	if prop.Max != "" {
		constraints = append(constraints, "MAX "+literal(prop.Max))
	}
	if prop.Regexp != "" {
		constraints = append(constraints, "REGEXP "+quote(prop.Regexp))
	}
	if prop.Default != nil {
		constraints = append(constraints, "DEFAULT "+literal(prop.Default))
	}
	return constraints
}

// SerializeAlterProperty generates one ALTER PROPERTY statement per
// attribute that differs between the old and new definitions.
func SerializeAlterProperty(className string, old, updated *PropertyDefinition) []string {
	ref := fmt.Sprintf("ALTER PROPERTY %s.%s", className, updated.Name)
	var statements []string

	if old.Type != updated.Type {
		statements = append(statements, fmt.Sprintf("%s TYPE %s", ref, updated.Type))
	}
	if old.LinkedClass != updated.LinkedClass {
		statements = append(statements, fmt.Sprintf("%s LINKEDCLASS %s", ref, updated.LinkedClass))
	}
	if old.LinkedType != updated.LinkedType {
		statements = append(statements, fmt.Sprintf("%s LINKEDTYPE %s", ref, updated.LinkedType))
	}
	if old.Mandatory != updated.Mandatory {
		statements = append(statements, fmt.Sprintf("%s MANDATORY %s", ref, boolToUpper(updated.Mandatory)))
	}
	if old.NotNull != updated.NotNull {
		statements = append(statements, fmt.Sprintf("%s NOTNULL %s", ref, boolToUpper(updated.NotNull)))
	}
	if old.ReadOnly != updated.ReadOnly {
		statements = append(statements, fmt.Sprintf("%s READONLY %s", ref, boolToUpper(updated.ReadOnly)))
	}
	if old.Min != updated.Min {
		statements = append(statements, fmt.Sprintf("%s MIN %s", ref, alterValue(updated.Min)))
	}
	if old.Max != updated.Max {
		statements = append(statements, fmt.Sprintf("%s MAX %s", ref, alterValue(updated.Max)))
	}
	if old.Regexp != updated.Regexp {
		if updated.Regexp == "" {
			statements = append(statements, ref+" REGEXP NULL")
		} else {
			statements = append(statements, fmt.Sprintf("%s REGEXP %s", ref, quote(updated.Regexp)))
		}
	}
	if fmt.Sprintf("%v", old.Default) != fmt.Sprintf("%v", updated.Default) {
		if updated.Default == nil {
			statements = append(statements, ref+" DEFAULT NULL")
		} else {
			statements = append(statements, fmt.Sprintf("%s DEFAULT %s", ref, literal(updated.Default)))
		}
	}

	return statements
}

// SerializeDropProperty generates a DROP PROPERTY statement.
func SerializeDropProperty(className, propertyName string) string {
	return fmt.Sprintf("DROP PROPERTY %s.%s", className, propertyName)
}

// SerializeCreateIndex generates a CREATE INDEX statement. Indexes bound
// to a class index its fields; manual indexes carry only name and kind.
func SerializeCreateIndex(index *IndexDefinition) string {
	if index.Class == "" || len(index.Fields) == 0 {
		return fmt.Sprintf("CREATE INDEX %s %s", index.Name, index.Type)
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s) %s",
		index.Name, index.Class, strings.Join(index.Fields, ", "), index.Type)
}

// SerializeDropIndex generates a DROP INDEX statement.
func SerializeDropIndex(indexName string) string {
	return "DROP INDEX " + indexName
}

// SerializeDropClass generates a DROP CLASS statement.
func SerializeDropClass(className string) string {
	return "DROP CLASS " + className
}

// SerializeClass generates the full statement list that creates a class:
// the class itself, its properties, then its indexes.
func SerializeClass(class *ClassDefinition) []string {
	statements := []string{SerializeCreateClass(class)}
	for i := range class.Properties {
		statements = append(statements, SerializeCreateProperty(class.Name, &class.Properties[i]))
	}
	for i := range class.Indexes {
		statements = append(statements, SerializeCreateIndex(&class.Indexes[i]))
	}
	return statements
}

// SerializeDiff renders a schema diff as the DDL statement list that
// applies it. Statement order follows the diff: creations and
// modifications first, deletions last.
func SerializeDiff(diff *SchemaDiff) []string {
	var statements []string

	for i := range diff.ClassChanges {
		change := &diff.ClassChanges[i]
		switch change.Type {
		case "create":
			statements = append(statements, SerializeClass(change.NewDefinition)...)

		case "modify":
			statements = append(statements, serializeClassModify(change)...)

		case "delete":
			statements = append(statements, SerializeDropClass(change.ClassName))
		}
	}

	return statements
}

func serializeClassModify(change *ClassChange) []string {
	var statements []string
	name := change.ClassName

	if change.OldDefinition != nil && change.NewDefinition != nil {
		old, updated := change.OldDefinition, change.NewDefinition
		if old.SuperClass != updated.SuperClass && updated.SuperClass != "" {
			statements = append(statements,
				fmt.Sprintf("ALTER CLASS %s SUPERCLASS %s", name, updated.SuperClass))
		}
		if old.Abstract != updated.Abstract {
			statements = append(statements,
				fmt.Sprintf("ALTER CLASS %s ABSTRACT %s", name, boolToUpper(updated.Abstract)))
		}
		if old.StrictMode != updated.StrictMode {
			statements = append(statements,
				fmt.Sprintf("ALTER CLASS %s STRICTMODE %s", name, boolToUpper(updated.StrictMode)))
		}
	}

	for _, propChange := range change.PropertyChanges {
		switch propChange.Type {
		case "add":
			statements = append(statements, SerializeCreateProperty(name, propChange.NewProperty))
		case "modify":
			statements = append(statements,
				SerializeAlterProperty(name, propChange.OldProperty, propChange.NewProperty)...)
		case "remove":
			statements = append(statements, SerializeDropProperty(name, propChange.PropertyName))
		}
	}

	for _, indexChange := range change.IndexChanges {
		switch indexChange.Type {
		case "add":
			statements = append(statements, SerializeCreateIndex(indexChange.NewIndex))
		case "modify":
			// Index kind and field set are fixed at creation.
			statements = append(statements,
				SerializeDropIndex(indexChange.OldIndex.Name),
				SerializeCreateIndex(indexChange.NewIndex))
		case "remove":
			statements = append(statements, SerializeDropIndex(indexChange.OldIndex.Name))
		}
	}

	return statements
}

// boolToUpper renders a boolean as the TRUE/FALSE keyword.
func boolToUpper(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// quote renders a string as a SQL string literal.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// alterValue renders an ALTER PROPERTY value, where clearing a
// constraint needs the NULL keyword.
func alterValue(s string) string {
	if s == "" {
		return "NULL"
	}
	return literal(s)
}

// literal renders a constraint value: numbers and booleans bare, strings
// quoted.
func literal(val interface{}) string {
	switch v := val.(type) {
	case string:
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return v
		}
		return quote(v)
	case bool:
		return boolToUpper(v)
	case nil:
		return "NULL"
	default:
		return fmt.Sprintf("%v", v)
	}
}
