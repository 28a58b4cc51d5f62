package codegen

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dan-strohschein/orientdb-driver/schema"
)

// ridPattern matches the #cluster:position record id notation.
const ridPattern = `^#-?\d+:-?\d+$`

// JSONSchemaGenerator renders an OrientDB class schema as JSON Schema
// (draft-07). Linked classes become $ref entries when they are part of
// the same schema, record id strings otherwise.
type JSONSchemaGenerator struct {
	registry *TypeRegistry
}

// NewJSONSchemaGenerator creates a new JSON Schema generator.
func NewJSONSchemaGenerator() *JSONSchemaGenerator {
	return &JSONSchemaGenerator{
		registry: NewTypeRegistry(),
	}
}

// GenerateSingle generates one JSON Schema document containing every
// class as a definition.
func (g *JSONSchemaGenerator) GenerateSingle(schemaDef *schema.SchemaDefinition) (string, error) {
	g.registry.LoadFromSchema(schemaDef)

	definitions := make(map[string]interface{})
	for _, class := range g.registry.GetAll() {
		definitions[class.Name] = g.generateClassSchema(class)
	}

	rootSchema := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "OrientDB Schema",
		"type":        "object",
		"definitions": definitions,
	}

	data, err := json.MarshalIndent(rootSchema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON schema: %w", err)
	}

	return string(data), nil
}

// GenerateMulti generates a separate JSON Schema document per class.
// Returns a map of class name to schema content.
func (g *JSONSchemaGenerator) GenerateMulti(schemaDef *schema.SchemaDefinition) (map[string]string, error) {
	g.registry.LoadFromSchema(schemaDef)

	schemas := make(map[string]string)
	for _, class := range g.registry.GetAll() {
		classSchema := g.generateClassSchema(class)

		rootSchema := map[string]interface{}{
			"$schema":     "http://json-schema.org/draft-07/schema#",
			"title":       class.Name,
			"type":        "object",
			"description": fmt.Sprintf("Schema for the %s class", class.Name),
			"properties":  classSchema["properties"],
		}
		if required, ok := classSchema["required"]; ok {
			rootSchema["required"] = required
		}
		if extra, ok := classSchema["additionalProperties"]; ok {
			rootSchema["additionalProperties"] = extra
		}

		data, err := json.MarshalIndent(rootSchema, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema for class %s: %w", class.Name, err)
		}

		schemas[class.Name] = string(data)
	}

	return schemas, nil
}

// generateClassSchema creates the JSON Schema object for one class.
func (g *JSONSchemaGenerator) generateClassSchema(class *schema.ClassDefinition) map[string]interface{} {
	properties := make(map[string]interface{})
	required := make([]string, 0)

	for i := range class.Properties {
		prop := &class.Properties[i]
		properties[prop.Name] = g.generatePropertySchema(prop)

		if prop.Mandatory {
			required = append(required, prop.Name)
		}
	}

	classSchema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		classSchema["required"] = required
	}
	if class.StrictMode {
		// STRICTMODE classes reject undeclared fields.
		classSchema["additionalProperties"] = false
	}

	return classSchema
}

// generatePropertySchema creates the JSON Schema type definition for one
// property.
func (g *JSONSchemaGenerator) generatePropertySchema(prop *schema.PropertyDefinition) map[string]interface{} {
	var propSchema map[string]interface{}

	switch prop.Type {
	case schema.TypeString:
		propSchema = map[string]interface{}{"type": "string"}
		if n, err := strconv.Atoi(prop.Min); err == nil {
			propSchema["minLength"] = n
		}
		if n, err := strconv.Atoi(prop.Max); err == nil {
			propSchema["maxLength"] = n
		}
		if prop.Regexp != "" {
			propSchema["pattern"] = prop.Regexp
		}

	case schema.TypeInteger, schema.TypeShort, schema.TypeLong, schema.TypeByte:
		propSchema = map[string]interface{}{"type": "integer"}
		if n, err := strconv.ParseFloat(prop.Min, 64); err == nil {
			propSchema["minimum"] = n
		}
		if n, err := strconv.ParseFloat(prop.Max, 64); err == nil {
			propSchema["maximum"] = n
		}

	case schema.TypeFloat, schema.TypeDouble, schema.TypeDecimal:
		propSchema = map[string]interface{}{"type": "number"}
		if n, err := strconv.ParseFloat(prop.Min, 64); err == nil {
			propSchema["minimum"] = n
		}
		if n, err := strconv.ParseFloat(prop.Max, 64); err == nil {
			propSchema["maximum"] = n
		}

	case schema.TypeBoolean:
		propSchema = map[string]interface{}{"type": "boolean"}

	case schema.TypeDatetime:
		propSchema = map[string]interface{}{"type": "string", "format": "date-time"}

	case schema.TypeDate:
		propSchema = map[string]interface{}{"type": "string", "format": "date"}

	case schema.TypeBinary:
		propSchema = map[string]interface{}{"type": "string", "contentEncoding": "base64"}

	case schema.TypeEmbedded:
		propSchema = g.embeddedSchema(prop.LinkedClass)

	case schema.TypeEmbeddedList:
		propSchema = map[string]interface{}{
			"type":  "array",
			"items": g.elementSchema(prop),
		}

	case schema.TypeEmbeddedSet:
		propSchema = map[string]interface{}{
			"type":        "array",
			"uniqueItems": true,
			"items":       g.elementSchema(prop),
		}

	case schema.TypeEmbeddedMap:
		propSchema = map[string]interface{}{
			"type":                 "object",
			"additionalProperties": g.elementSchema(prop),
		}

	case schema.TypeLink:
		propSchema = g.linkSchema(prop.LinkedClass)

	case schema.TypeLinkList, schema.TypeLinkBag:
		propSchema = map[string]interface{}{
			"type":  "array",
			"items": g.linkSchema(prop.LinkedClass),
		}

	case schema.TypeLinkSet:
		propSchema = map[string]interface{}{
			"type":        "array",
			"uniqueItems": true,
			"items":       g.linkSchema(prop.LinkedClass),
		}

	case schema.TypeLinkMap:
		propSchema = map[string]interface{}{
			"type":                 "object",
			"additionalProperties": g.linkSchema(prop.LinkedClass),
		}

	default:
		// ANY and the remaining metadata-only types accept anything.
		propSchema = map[string]interface{}{}
	}

	if prop.Default != nil {
		propSchema["default"] = prop.Default
	}
	if prop.ReadOnly {
		propSchema["readOnly"] = true
	}

	return propSchema
}

// embeddedSchema resolves an embedded value: a $ref when the class is
// part of this schema, a free-form object otherwise.
func (g *JSONSchemaGenerator) embeddedSchema(linkedClass string) map[string]interface{} {
	if linkedClass != "" && g.registry.Has(linkedClass) {
		return map[string]interface{}{
			"$ref": fmt.Sprintf("#/definitions/%s", linkedClass),
		}
	}
	return map[string]interface{}{"type": "object"}
}

// linkSchema resolves a link value. Links to classes in this schema
// reference the expanded form; everything else is a record id string.
func (g *JSONSchemaGenerator) linkSchema(linkedClass string) map[string]interface{} {
	if linkedClass != "" && g.registry.Has(linkedClass) {
		return map[string]interface{}{
			"$ref": fmt.Sprintf("#/definitions/%s", linkedClass),
		}
	}
	return map[string]interface{}{"type": "string", "pattern": ridPattern}
}

// elementSchema resolves the element type of an embedded collection from
// LinkedClass or LinkedType. Untyped collections accept anything.
func (g *JSONSchemaGenerator) elementSchema(prop *schema.PropertyDefinition) map[string]interface{} {
	if prop.LinkedClass != "" {
		return g.embeddedSchema(prop.LinkedClass)
	}
	if prop.LinkedType != "" {
		return g.generatePropertySchema(&schema.PropertyDefinition{Type: prop.LinkedType})
	}
	return map[string]interface{}{}
}

// GetTypeRegistry returns the type registry used by this generator.
func (g *JSONSchemaGenerator) GetTypeRegistry() *TypeRegistry {
	return g.registry
}
