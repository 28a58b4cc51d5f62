package codegen

import (
	"sort"
	"sync"

	"github.com/dan-strohschein/orientdb-driver/schema"
)

// TypeRegistry caches class definitions for code generation. Generators
// consult it to decide whether a linked class can be referenced by name
// or has to fall back to a generic shape.
type TypeRegistry struct {
	classes map[string]*schema.ClassDefinition
	mu      sync.RWMutex
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		classes: make(map[string]*schema.ClassDefinition),
	}
}

// Register adds a class definition, replacing any previous definition
// under the same name.
func (r *TypeRegistry) Register(class *schema.ClassDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[class.Name] = class
}

// Get retrieves a class definition by name.
func (r *TypeRegistry) Get(name string) (*schema.ClassDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	class, exists := r.classes[name]
	return class, exists
}

// GetAll returns the registered classes sorted by name, so generated
// output is stable between runs.
func (r *TypeRegistry) GetAll() []*schema.ClassDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes := make([]*schema.ClassDefinition, 0, len(r.classes))
	for _, class := range r.classes {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes
}

// Clear removes all entries from the registry.
func (r *TypeRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = make(map[string]*schema.ClassDefinition)
}

// LoadFromSchema populates the registry from a full schema definition.
func (r *TypeRegistry) LoadFromSchema(schemaDef *schema.SchemaDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range schemaDef.Classes {
		r.classes[schemaDef.Classes[i].Name] = &schemaDef.Classes[i]
	}
}

// Count returns the number of registered classes.
func (r *TypeRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// Has reports whether a class is registered.
func (r *TypeRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.classes[name]
	return exists
}
