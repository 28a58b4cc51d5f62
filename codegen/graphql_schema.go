package codegen

import (
	"fmt"
	"strings"

	"github.com/dan-strohschein/orientdb-driver/schema"
)

// GraphQLSchemaGenerator renders an OrientDB class schema as GraphQL SDL.
// Classes become object types, links become object references, and the
// subscription fields map onto live queries.
type GraphQLSchemaGenerator struct {
	registry *TypeRegistry
}

// NewGraphQLSchemaGenerator creates a new GraphQL schema generator.
func NewGraphQLSchemaGenerator() *GraphQLSchemaGenerator {
	return &GraphQLSchemaGenerator{
		registry: NewTypeRegistry(),
	}
}

// Generate creates a complete GraphQL SDL schema.
func (g *GraphQLSchemaGenerator) Generate(schemaDef *schema.SchemaDefinition) (string, error) {
	g.registry.LoadFromSchema(schemaDef)
	classes := g.registry.GetAll()

	var builder strings.Builder

	builder.WriteString("# GraphQL schema generated from an OrientDB class schema.\n\n")
	builder.WriteString("scalar JSON\n\n")

	for _, class := range classes {
		g.generateType(&builder, class)
		builder.WriteString("\n")
	}

	// Abstract classes cannot be instantiated, so they get no inputs and
	// no mutations.
	for _, class := range classes {
		if class.Abstract {
			continue
		}
		g.generateInputType(&builder, class)
		builder.WriteString("\n")
	}

	g.generateQueryType(&builder, classes)
	builder.WriteString("\n")

	g.generateMutationType(&builder, classes)
	builder.WriteString("\n")

	g.generateSubscriptionType(&builder, classes)

	return builder.String(), nil
}

// generateType creates a GraphQL object type for a class.
func (g *GraphQLSchemaGenerator) generateType(builder *strings.Builder, class *schema.ClassDefinition) {
	builder.WriteString(fmt.Sprintf("type %s {\n", class.Name))

	// Every record carries its identity.
	builder.WriteString("  rid: ID!\n")

	for i := range class.Properties {
		prop := &class.Properties[i]
		fieldType := g.fieldType(prop)
		required := ""
		if prop.Mandatory {
			required = "!"
		}
		builder.WriteString(fmt.Sprintf("  %s: %s%s\n", prop.Name, fieldType, required))
	}

	builder.WriteString("}\n")
}

// fieldType resolves the SDL type of an object-type field. Links and
// embedded values reference their class when it is part of this schema.
func (g *GraphQLSchemaGenerator) fieldType(prop *schema.PropertyDefinition) string {
	switch prop.Type {
	case schema.TypeLink, schema.TypeEmbedded:
		if prop.LinkedClass != "" && g.registry.Has(prop.LinkedClass) {
			return prop.LinkedClass
		}
		if prop.Type == schema.TypeLink {
			return "ID"
		}
		return "JSON"

	case schema.TypeLinkList, schema.TypeLinkSet, schema.TypeLinkBag:
		if prop.LinkedClass != "" && g.registry.Has(prop.LinkedClass) {
			return fmt.Sprintf("[%s!]", prop.LinkedClass)
		}
		return "[ID!]"

	case schema.TypeEmbeddedList, schema.TypeEmbeddedSet:
		if prop.LinkedClass != "" && g.registry.Has(prop.LinkedClass) {
			return fmt.Sprintf("[%s!]", prop.LinkedClass)
		}
		if prop.LinkedType != "" {
			return fmt.Sprintf("[%s!]", g.mapToGraphQLType(prop.LinkedType))
		}
		return "[JSON!]"

	case schema.TypeEmbeddedMap, schema.TypeLinkMap:
		return "JSON"

	default:
		return g.mapToGraphQLType(prop.Type)
	}
}

// generateInputType creates the create and update input types for a
// class. Link fields take record ids; update inputs make every field
// optional.
func (g *GraphQLSchemaGenerator) generateInputType(builder *strings.Builder, class *schema.ClassDefinition) {
	builder.WriteString(fmt.Sprintf("input %sInput {\n", class.Name))

	for i := range class.Properties {
		prop := &class.Properties[i]
		inputType := g.inputFieldType(prop)
		required := ""
		if prop.Mandatory && prop.Default == nil {
			required = "!"
		}
		builder.WriteString(fmt.Sprintf("  %s: %s%s\n", prop.Name, inputType, required))
	}

	builder.WriteString("}\n")

	builder.WriteString(fmt.Sprintf("input %sUpdateInput {\n", class.Name))

	for i := range class.Properties {
		prop := &class.Properties[i]
		builder.WriteString(fmt.Sprintf("  %s: %s\n", prop.Name, g.inputFieldType(prop)))
	}

	builder.WriteString("}\n")
}

// inputFieldType resolves the SDL type of an input field. Inputs cannot
// reference object types, so links flatten to record ids.
func (g *GraphQLSchemaGenerator) inputFieldType(prop *schema.PropertyDefinition) string {
	switch prop.Type {
	case schema.TypeLink:
		return "ID"
	case schema.TypeLinkList, schema.TypeLinkSet, schema.TypeLinkBag:
		return "[ID!]"
	case schema.TypeEmbedded, schema.TypeEmbeddedMap, schema.TypeLinkMap:
		return "JSON"
	case schema.TypeEmbeddedList, schema.TypeEmbeddedSet:
		if prop.LinkedType != "" {
			return fmt.Sprintf("[%s!]", g.mapToGraphQLType(prop.LinkedType))
		}
		return "[JSON!]"
	default:
		return g.mapToGraphQLType(prop.Type)
	}
}

// generateQueryType creates the root Query type.
func (g *GraphQLSchemaGenerator) generateQueryType(builder *strings.Builder, classes []*schema.ClassDefinition) {
	builder.WriteString("type Query {\n")

	for _, class := range classes {
		builder.WriteString(fmt.Sprintf("  %s(rid: ID!): %s\n",
			g.toLowerFirst(class.Name), class.Name))

		builder.WriteString(fmt.Sprintf("  %s(limit: Int, offset: Int): [%s!]!\n",
			g.toPlural(g.toLowerFirst(class.Name)), class.Name))
	}

	builder.WriteString("}\n")
}

// generateMutationType creates the root Mutation type.
func (g *GraphQLSchemaGenerator) generateMutationType(builder *strings.Builder, classes []*schema.ClassDefinition) {
	builder.WriteString("type Mutation {\n")

	for _, class := range classes {
		if class.Abstract {
			continue
		}

		builder.WriteString(fmt.Sprintf("  create%s(input: %sInput!): %s!\n",
			class.Name, class.Name, class.Name))

		builder.WriteString(fmt.Sprintf("  update%s(rid: ID!, input: %sUpdateInput!): %s!\n",
			class.Name, class.Name, class.Name))

		builder.WriteString(fmt.Sprintf("  delete%s(rid: ID!): Boolean!\n",
			class.Name))
	}

	builder.WriteString("}\n")
}

// generateSubscriptionType creates the root Subscription type. Each
// field corresponds to a LIVE SELECT on the class.
func (g *GraphQLSchemaGenerator) generateSubscriptionType(builder *strings.Builder, classes []*schema.ClassDefinition) {
	builder.WriteString("type Subscription {\n")

	for _, class := range classes {
		builder.WriteString(fmt.Sprintf("  %sChanged(rid: ID): %s\n",
			g.toLowerFirst(class.Name), class.Name))
	}

	builder.WriteString("}\n")
}

// mapToGraphQLType maps scalar property types to GraphQL types.
func (g *GraphQLSchemaGenerator) mapToGraphQLType(propType string) string {
	switch propType {
	case schema.TypeString, schema.TypeDatetime, schema.TypeDate:
		return "String"
	case schema.TypeInteger, schema.TypeShort, schema.TypeLong, schema.TypeByte:
		return "Int"
	case schema.TypeFloat, schema.TypeDouble:
		return "Float"
	case schema.TypeDecimal:
		// Decimals travel as strings to keep their precision.
		return "String"
	case schema.TypeBoolean:
		return "Boolean"
	case schema.TypeBinary:
		return "String"
	default:
		return "JSON"
	}
}

// toLowerFirst converts the first character to lowercase.
func (g *GraphQLSchemaGenerator) toLowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// toPlural adds a simple English plural suffix.
func (g *GraphQLSchemaGenerator) toPlural(s string) string {
	if strings.HasSuffix(s, "s") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

// GetTypeRegistry returns the type registry used by this generator.
func (g *GraphQLSchemaGenerator) GetTypeRegistry() *TypeRegistry {
	return g.registry
}
