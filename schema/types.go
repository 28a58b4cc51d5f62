package schema

// Class and index metadata mirror what the server reports through
// metadata:schema and metadata:indexmanager. Statements generated from
// these structures round-trip through the SQL DDL surface.

// Property type names as the schema reports them. The numeric ids in
// schema records map onto these through TypeName.
const (
	TypeBoolean      = "BOOLEAN"
	TypeInteger      = "INTEGER"
	TypeShort        = "SHORT"
	TypeLong         = "LONG"
	TypeFloat        = "FLOAT"
	TypeDouble       = "DOUBLE"
	TypeDatetime     = "DATETIME"
	TypeString       = "STRING"
	TypeBinary       = "BINARY"
	TypeEmbedded     = "EMBEDDED"
	TypeEmbeddedList = "EMBEDDEDLIST"
	TypeEmbeddedSet  = "EMBEDDEDSET"
	TypeEmbeddedMap  = "EMBEDDEDMAP"
	TypeLink         = "LINK"
	TypeLinkList     = "LINKLIST"
	TypeLinkSet      = "LINKSET"
	TypeLinkMap      = "LINKMAP"
	TypeByte         = "BYTE"
	TypeTransient    = "TRANSIENT"
	TypeDate         = "DATE"
	TypeCustom       = "CUSTOM"
	TypeDecimal      = "DECIMAL"
	TypeLinkBag      = "LINKBAG"
	TypeAny          = "ANY"
)

// typeNames indexes the full type table by the ordinal the server stores
// in schema records. Wider than the wire codec's type set on purpose:
// metadata can declare types the codec does not transfer.
var typeNames = [...]string{
	TypeBoolean, TypeInteger, TypeShort, TypeLong, TypeFloat, TypeDouble,
	TypeDatetime, TypeString, TypeBinary, TypeEmbedded, TypeEmbeddedList,
	TypeEmbeddedSet, TypeEmbeddedMap, TypeLink, TypeLinkList, TypeLinkSet,
	TypeLinkMap, TypeByte, TypeTransient, TypeDate, TypeCustom, TypeDecimal,
	TypeLinkBag, TypeAny,
}

// TypeName resolves a numeric type id from a schema record to its name.
// Unknown ids resolve to ANY.
func TypeName(id int32) string {
	if id < 0 || int(id) >= len(typeNames) {
		return TypeAny
	}
	return typeNames[id]
}

// IndexType names an index kind accepted by CREATE INDEX.
type IndexType string

const (
	IndexUnique        IndexType = "UNIQUE"
	IndexNotUnique     IndexType = "NOTUNIQUE"
	IndexFullText      IndexType = "FULLTEXT"
	IndexDictionary    IndexType = "DICTIONARY"
	IndexUniqueHash    IndexType = "UNIQUE_HASH_INDEX"
	IndexNotUniqueHash IndexType = "NOTUNIQUE_HASH_INDEX"
)

// PropertyDefinition describes one declared property of a class.
type PropertyDefinition struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	LinkedClass string      `json:"linkedClass,omitempty"`
	LinkedType  string      `json:"linkedType,omitempty"`
	Mandatory   bool        `json:"mandatory"`
	NotNull     bool        `json:"notNull"`
	ReadOnly    bool        `json:"readonly"`
	Min         string      `json:"min,omitempty"`
	Max         string      `json:"max,omitempty"`
	Regexp      string      `json:"regexp,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

// IndexDefinition describes one index. Class and Fields are empty for
// manual indexes that are not bound to a class.
type IndexDefinition struct {
	Name   string    `json:"name"`
	Class  string    `json:"class,omitempty"`
	Type   IndexType `json:"type"`
	Fields []string  `json:"fields,omitempty"`
}

// ClassDefinition describes one schema class with its properties and the
// indexes bound to it.
type ClassDefinition struct {
	Name       string               `json:"name"`
	SuperClass string               `json:"superClass,omitempty"`
	Abstract   bool                 `json:"abstract,omitempty"`
	StrictMode bool                 `json:"strictMode,omitempty"`
	ClusterIDs []int32              `json:"clusterIds,omitempty"`
	Properties []PropertyDefinition `json:"properties"`
	Indexes    []IndexDefinition    `json:"indexes,omitempty"`
}

// Property returns the named property definition, or nil when the class
// does not declare it.
func (c *ClassDefinition) Property(name string) *PropertyDefinition {
	for i := range c.Properties {
		if c.Properties[i].Name == name {
			return &c.Properties[i]
		}
	}
	return nil
}

// IsVertex reports whether the class directly extends the graph vertex
// base class V. Deeper inheritance chains need the full schema to walk.
func (c *ClassDefinition) IsVertex() bool {
	return c.SuperClass == "V"
}

// IsEdge reports whether the class directly extends the graph edge base
// class E.
func (c *ClassDefinition) IsEdge() bool {
	return c.SuperClass == "E"
}

// SchemaDefinition is a full class schema as one comparable value.
type SchemaDefinition struct {
	Classes []ClassDefinition `json:"classes"`
}

// Class returns the named class definition, or nil when absent.
func (s *SchemaDefinition) Class(name string) *ClassDefinition {
	for i := range s.Classes {
		if s.Classes[i].Name == name {
			return &s.Classes[i]
		}
	}
	return nil
}

// ExtendsVertex reports whether the class or any ancestor extends V.
func (s *SchemaDefinition) ExtendsVertex(name string) bool {
	return s.extends(name, "V")
}

// ExtendsEdge reports whether the class or any ancestor extends E.
func (s *SchemaDefinition) ExtendsEdge(name string) bool {
	return s.extends(name, "E")
}

func (s *SchemaDefinition) extends(name, base string) bool {
	seen := make(map[string]bool)
	for name != "" && !seen[name] {
		if name == base {
			return true
		}
		seen[name] = true
		class := s.Class(name)
		if class == nil {
			return false
		}
		name = class.SuperClass
	}
	return false
}

// PropertyChange records one property difference between two versions of
// a class.
type PropertyChange struct {
	Type         string              `json:"type"` // "add", "remove", "modify"
	PropertyName string              `json:"propertyName"`
	OldProperty  *PropertyDefinition `json:"oldProperty,omitempty"`
	NewProperty  *PropertyDefinition `json:"newProperty,omitempty"`
}

// IndexChange records one index difference.
type IndexChange struct {
	Type     string           `json:"type"` // "add", "remove", "modify"
	OldIndex *IndexDefinition `json:"oldIndex,omitempty"`
	NewIndex *IndexDefinition `json:"newIndex,omitempty"`
}

// ClassChange records one class difference between two schemas.
type ClassChange struct {
	Type            string           `json:"type"` // "create", "delete", "modify"
	ClassName       string           `json:"className"`
	OldDefinition   *ClassDefinition `json:"oldDefinition,omitempty"`
	NewDefinition   *ClassDefinition `json:"newDefinition,omitempty"`
	PropertyChanges []PropertyChange `json:"propertyChanges,omitempty"`
	IndexChanges    []IndexChange    `json:"indexChanges,omitempty"`
}

// SchemaDiff is the difference between two schemas.
type SchemaDiff struct {
	ClassChanges []ClassChange `json:"classChanges"`
	HasChanges   bool          `json:"hasChanges"`
}
