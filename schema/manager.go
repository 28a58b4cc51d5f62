package schema

import (
	"fmt"
	"sort"

	"github.com/dan-strohschein/orientdb-driver/record"
)

// ParseServerSchema builds a schema definition from the class records
// returned by select expand(classes) from metadata:schema. Classes and
// their properties come back sorted by name.
func ParseServerSchema(classes []*record.Document) (*SchemaDefinition, error) {
	def := &SchemaDefinition{Classes: make([]ClassDefinition, 0, len(classes))}

	for _, doc := range classes {
		class, err := parseClass(doc)
		if err != nil {
			return nil, err
		}
		def.Classes = append(def.Classes, class)
	}

	sort.Slice(def.Classes, func(i, j int) bool {
		return def.Classes[i].Name < def.Classes[j].Name
	})
	return def, nil
}

func parseClass(doc *record.Document) (ClassDefinition, error) {
	name := doc.FieldAsString("name")
	if name == "" {
		return ClassDefinition{}, fmt.Errorf("class record %s has no name", doc.RID)
	}

	class := ClassDefinition{
		Name:       name,
		SuperClass: superClassOf(doc),
	}
	class.Abstract, _ = doc.FieldAsBool("abstract")
	class.StrictMode, _ = doc.FieldAsBool("strictMode")

	if ids, ok := doc.Field("clusterIds").([]interface{}); ok {
		for _, id := range ids {
			if n, ok := toInt32(id); ok {
				class.ClusterIDs = append(class.ClusterIDs, n)
			}
		}
	}

	entries, _ := doc.Field("properties").([]interface{})
	class.Properties = make([]PropertyDefinition, 0, len(entries))
	for _, entry := range entries {
		propDoc, ok := entry.(*record.Document)
		if !ok {
			return ClassDefinition{}, fmt.Errorf("class %s: property entry is %T, want embedded record", name, entry)
		}
		prop, err := parseProperty(propDoc)
		if err != nil {
			return ClassDefinition{}, fmt.Errorf("class %s: %w", name, err)
		}
		class.Properties = append(class.Properties, prop)
	}

	sort.Slice(class.Properties, func(i, j int) bool {
		return class.Properties[i].Name < class.Properties[j].Name
	})
	return class, nil
}

// superClassOf reads the single superclass of a class record. Servers
// 2.1+ report a superClasses list; the first entry wins. Older servers
// report one superClass string.
func superClassOf(doc *record.Document) string {
	if list, ok := doc.Field("superClasses").([]interface{}); ok && len(list) > 0 {
		if s, ok := list[0].(string); ok {
			return s
		}
	}
	return doc.FieldAsString("superClass")
}

func parseProperty(doc *record.Document) (PropertyDefinition, error) {
	name := doc.FieldAsString("name")
	if name == "" {
		return PropertyDefinition{}, fmt.Errorf("property record has no name")
	}

	prop := PropertyDefinition{
		Name:        name,
		Type:        TypeAny,
		LinkedClass: doc.FieldAsString("linkedClass"),
		Min:         doc.FieldAsString("min"),
		Max:         doc.FieldAsString("max"),
		Regexp:      doc.FieldAsString("regexp"),
	}

	if raw, ok := doc.Get("type"); ok && raw != nil {
		id, err := doc.FieldAsInt("type")
		if err != nil {
			return PropertyDefinition{}, fmt.Errorf("property %s: %w", name, err)
		}
		prop.Type = TypeName(int32(id))
	}
	if raw, ok := doc.Get("linkedType"); ok && raw != nil {
		id, err := doc.FieldAsInt("linkedType")
		if err != nil {
			return PropertyDefinition{}, fmt.Errorf("property %s: %w", name, err)
		}
		prop.LinkedType = TypeName(int32(id))
	}

	prop.Mandatory, _ = doc.FieldAsBool("mandatory")
	prop.NotNull, _ = doc.FieldAsBool("notNull")
	prop.ReadOnly, _ = doc.FieldAsBool("readonly")

	if v, ok := doc.Get("defaultValue"); ok && v != nil {
		prop.Default = v
	}
	return prop, nil
}

// ParseServerIndexes builds index definitions from the records returned
// by select expand(indexes) from metadata:indexmanager, sorted by name.
func ParseServerIndexes(indexes []*record.Document) ([]IndexDefinition, error) {
	defs := make([]IndexDefinition, 0, len(indexes))

	for _, doc := range indexes {
		name := doc.FieldAsString("name")
		if name == "" {
			return nil, fmt.Errorf("index record %s has no name", doc.RID)
		}
		def := IndexDefinition{
			Name: name,
			Type: IndexType(doc.FieldAsString("type")),
		}

		if idxDef, err := doc.FieldAsDocument("indexDefinition"); err == nil {
			def.Class = idxDef.FieldAsString("className")
			def.Fields = indexFields(idxDef)
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// indexFields flattens single-field and composite index definitions.
// Composite definitions nest one single-field definition per column.
func indexFields(def *record.Document) []string {
	if field := def.FieldAsString("field"); field != "" {
		return []string{field}
	}

	nested, ok := def.Field("indexDefinitions").([]interface{})
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(nested))
	for _, entry := range nested {
		sub, ok := entry.(*record.Document)
		if !ok {
			continue
		}
		if field := sub.FieldAsString("field"); field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

// AttachIndexes binds parsed indexes to their classes in place. Manual
// indexes without a class, and indexes on classes the definition does not
// carry, come back as the unbound remainder.
func AttachIndexes(def *SchemaDefinition, indexes []IndexDefinition) []IndexDefinition {
	var unbound []IndexDefinition
	for _, index := range indexes {
		class := def.Class(index.Class)
		if index.Class == "" || class == nil {
			unbound = append(unbound, index)
			continue
		}
		class.Indexes = append(class.Indexes, index)
	}
	return unbound
}

// CompareSchemas diffs a desired schema against the one the server
// reports. Creations and modifications come first, then deletions, each
// group ordered by class name.
func CompareSchemas(local, server *SchemaDefinition) *SchemaDiff {
	diff := &SchemaDiff{ClassChanges: make([]ClassChange, 0)}

	localByName := classIndex(local)
	serverByName := classIndex(server)

	for _, name := range sortedNames(localByName) {
		localClass := localByName[name]
		serverClass, exists := serverByName[name]
		if !exists {
			diff.ClassChanges = append(diff.ClassChanges, ClassChange{
				Type:          "create",
				ClassName:     name,
				NewDefinition: localClass,
			})
			continue
		}

		propertyChanges := compareProperties(localClass.Properties, serverClass.Properties)
		indexChanges := compareIndexes(localClass.Indexes, serverClass.Indexes)
		structureChanged := localClass.SuperClass != serverClass.SuperClass ||
			localClass.Abstract != serverClass.Abstract ||
			localClass.StrictMode != serverClass.StrictMode

		if len(propertyChanges) > 0 || len(indexChanges) > 0 || structureChanged {
			diff.ClassChanges = append(diff.ClassChanges, ClassChange{
				Type:            "modify",
				ClassName:       name,
				OldDefinition:   serverClass,
				NewDefinition:   localClass,
				PropertyChanges: propertyChanges,
				IndexChanges:    indexChanges,
			})
		}
	}

	for _, name := range sortedNames(serverByName) {
		if _, exists := localByName[name]; !exists {
			diff.ClassChanges = append(diff.ClassChanges, ClassChange{
				Type:          "delete",
				ClassName:     name,
				OldDefinition: serverByName[name],
			})
		}
	}

	diff.HasChanges = len(diff.ClassChanges) > 0
	return diff
}

func compareProperties(local, server []PropertyDefinition) []PropertyChange {
	changes := make([]PropertyChange, 0)

	localByName := propertyIndex(local)
	serverByName := propertyIndex(server)

	for _, name := range sortedNames(localByName) {
		localProp := localByName[name]
		serverProp, exists := serverByName[name]
		if !exists {
			changes = append(changes, PropertyChange{
				Type:         "add",
				PropertyName: name,
				NewProperty:  localProp,
			})
		} else if !propertiesEqual(localProp, serverProp) {
			changes = append(changes, PropertyChange{
				Type:         "modify",
				PropertyName: name,
				OldProperty:  serverProp,
				NewProperty:  localProp,
			})
		}
	}

	for _, name := range sortedNames(serverByName) {
		if _, exists := localByName[name]; !exists {
			changes = append(changes, PropertyChange{
				Type:         "remove",
				PropertyName: name,
				OldProperty:  serverByName[name],
			})
		}
	}

	return changes
}

func propertiesEqual(a, b *PropertyDefinition) bool {
	return a.Type == b.Type &&
		a.LinkedClass == b.LinkedClass &&
		a.LinkedType == b.LinkedType &&
		a.Mandatory == b.Mandatory &&
		a.NotNull == b.NotNull &&
		a.ReadOnly == b.ReadOnly &&
		a.Min == b.Min &&
		a.Max == b.Max &&
		a.Regexp == b.Regexp &&
		fmt.Sprintf("%v", a.Default) == fmt.Sprintf("%v", b.Default)
}

func compareIndexes(local, server []IndexDefinition) []IndexChange {
	changes := make([]IndexChange, 0)

	localByName := indexIndex(local)
	serverByName := indexIndex(server)

	for _, name := range sortedNames(localByName) {
		localIndex := localByName[name]
		serverIndex, exists := serverByName[name]
		if !exists {
			changes = append(changes, IndexChange{Type: "add", NewIndex: localIndex})
		} else if !indexesEqual(localIndex, serverIndex) {
			changes = append(changes, IndexChange{
				Type:     "modify",
				OldIndex: serverIndex,
				NewIndex: localIndex,
			})
		}
	}

	for _, name := range sortedNames(serverByName) {
		if _, exists := localByName[name]; !exists {
			changes = append(changes, IndexChange{Type: "remove", OldIndex: serverByName[name]})
		}
	}

	return changes
}

func indexesEqual(a, b *IndexDefinition) bool {
	if a.Type != b.Type || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}

func classIndex(def *SchemaDefinition) map[string]*ClassDefinition {
	byName := make(map[string]*ClassDefinition, len(def.Classes))
	for i := range def.Classes {
		byName[def.Classes[i].Name] = &def.Classes[i]
	}
	return byName
}

func propertyIndex(props []PropertyDefinition) map[string]*PropertyDefinition {
	byName := make(map[string]*PropertyDefinition, len(props))
	for i := range props {
		byName[props[i].Name] = &props[i]
	}
	return byName
}

func indexIndex(indexes []IndexDefinition) map[string]*IndexDefinition {
	byName := make(map[string]*IndexDefinition, len(indexes))
	for i := range indexes {
		byName[indexes[i].Name] = &indexes[i]
	}
	return byName
}

func sortedNames[T any](byName map[string]T) []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toInt32(v interface{}) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case int16:
		return int32(n), true
	case int64:
		return int32(n), true
	case byte:
		return int32(n), true
	}
	return 0, false
}
