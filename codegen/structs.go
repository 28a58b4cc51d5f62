package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dan-strohschein/orientdb-driver/schema"
)

// GoStructGenerator renders an OrientDB class schema as Go struct
// declarations. Generated models carry the record identity and version
// beside the declared properties, so they round-trip through JSON
// exports.
type GoStructGenerator struct {
	registry *TypeRegistry
}

// NewGoStructGenerator creates a new Go struct generator.
func NewGoStructGenerator() *GoStructGenerator {
	return &GoStructGenerator{
		registry: NewTypeRegistry(),
	}
}

// Generate renders every class as a struct in one source file.
func (g *GoStructGenerator) Generate(schemaDef *schema.SchemaDefinition, packageName string) (string, error) {
	g.registry.LoadFromSchema(schemaDef)
	classes := g.registry.GetAll()
	if len(classes) == 0 {
		return "", fmt.Errorf("schema defines no classes")
	}
	if packageName == "" {
		packageName = "models"
	}

	imports := make(map[string]bool)
	var body strings.Builder
	for _, class := range classes {
		g.generateStruct(&body, class, imports)
		body.WriteString("\n")
	}

	var out strings.Builder
	out.WriteString("// Code generated by orientdb codegen. DO NOT EDIT.\n\n")
	out.WriteString(fmt.Sprintf("package %s\n\n", packageName))
	writeImports(&out, imports)
	out.WriteString(body.String())

	return strings.TrimSuffix(out.String(), "\n"), nil
}

func (g *GoStructGenerator) generateStruct(builder *strings.Builder, class *schema.ClassDefinition, imports map[string]bool) {
	structName := toPascalCase(class.Name)
	builder.WriteString(fmt.Sprintf("// %s models the %s class.\n", structName, class.Name))
	builder.WriteString(fmt.Sprintf("type %s struct {\n", structName))
	builder.WriteString("\tRID     string `json:\"@rid,omitempty\"`\n")
	builder.WriteString("\tVersion int32  `json:\"@version,omitempty\"`\n")

	for i := range class.Properties {
		prop := &class.Properties[i]
		goType := g.goType(prop, imports)

		// Optional scalars become pointers so absent distinguishes from
		// zero. Slices, maps and interfaces are already nilable.
		if !prop.Mandatory && !nilable(goType) {
			goType = "*" + goType
		}

		jsonTag := prop.Name
		if !prop.Mandatory {
			jsonTag += ",omitempty"
		}

		builder.WriteString(fmt.Sprintf("\t%s %s `json:%q`\n",
			toPascalCase(prop.Name), goType, jsonTag))
	}

	builder.WriteString("}\n")
}

// goType resolves the Go type of a property, recording any import the
// type needs.
func (g *GoStructGenerator) goType(prop *schema.PropertyDefinition, imports map[string]bool) string {
	switch prop.Type {
	case schema.TypeString:
		return "string"
	case schema.TypeInteger:
		return "int32"
	case schema.TypeShort:
		return "int16"
	case schema.TypeLong:
		return "int64"
	case schema.TypeByte:
		return "byte"
	case schema.TypeFloat:
		return "float32"
	case schema.TypeDouble:
		return "float64"
	case schema.TypeDecimal:
		imports["github.com/shopspring/decimal"] = true
		return "decimal.Decimal"
	case schema.TypeBoolean:
		return "bool"
	case schema.TypeDatetime, schema.TypeDate:
		imports["time"] = true
		return "time.Time"
	case schema.TypeBinary:
		return "[]byte"

	case schema.TypeEmbedded:
		if prop.LinkedClass != "" && g.registry.Has(prop.LinkedClass) {
			return "*" + toPascalCase(prop.LinkedClass)
		}
		return "map[string]interface{}"

	case schema.TypeEmbeddedList, schema.TypeEmbeddedSet:
		if prop.LinkedClass != "" && g.registry.Has(prop.LinkedClass) {
			return "[]" + toPascalCase(prop.LinkedClass)
		}
		if prop.LinkedType != "" {
			return "[]" + g.goType(&schema.PropertyDefinition{Type: prop.LinkedType}, imports)
		}
		return "[]interface{}"

	case schema.TypeEmbeddedMap:
		if prop.LinkedType != "" {
			return "map[string]" + g.goType(&schema.PropertyDefinition{Type: prop.LinkedType}, imports)
		}
		return "map[string]interface{}"

	// Links travel as record id strings in exported form.
	case schema.TypeLink:
		return "string"
	case schema.TypeLinkList, schema.TypeLinkSet, schema.TypeLinkBag:
		return "[]string"
	case schema.TypeLinkMap:
		return "map[string]string"

	default:
		return "interface{}"
	}
}

// nilable reports whether the Go type already distinguishes absent from
// zero without a pointer.
func nilable(goType string) bool {
	return strings.HasPrefix(goType, "[]") ||
		strings.HasPrefix(goType, "map[") ||
		strings.HasPrefix(goType, "*") ||
		goType == "interface{}"
}

// writeImports renders a sorted import block, or nothing when the
// generated code needs none.
func writeImports(builder *strings.Builder, imports map[string]bool) {
	if len(imports) == 0 {
		return
	}

	paths := make([]string, 0, len(imports))
	for path := range imports {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if len(paths) == 1 {
		builder.WriteString(fmt.Sprintf("import %q\n\n", paths[0]))
		return
	}

	builder.WriteString("import (\n")
	for _, path := range paths {
		builder.WriteString(fmt.Sprintf("\t%q\n", path))
	}
	builder.WriteString(")\n\n")
}

// toPascalCase converts snake_case or kebab-case names to PascalCase.
// Names that are already PascalCase pass through unchanged.
func toPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}

// GetTypeRegistry returns the type registry used by this generator.
func (g *GoStructGenerator) GetTypeRegistry() *TypeRegistry {
	return g.registry
}
