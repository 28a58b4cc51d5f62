// Package schema caches the database's global property registry. Records
// written by schema-aware servers carry numeric property ids on the wire
// instead of field names, and the record codec resolves those ids against
// the snapshot held here.
package schema

import (
	"encoding/binary"
	"sort"
	"sync/atomic"

	"github.com/cespare/xxhash"
	"golang.org/x/sync/singleflight"
)

// Property is one entry of the global property registry.
type Property struct {
	ID   int32
	Name string
	Type string
}

// Catalog is an immutable snapshot of the property registry. Lookups are
// plain map reads and safe for any number of concurrent readers.
type Catalog struct {
	byID        map[int32]string
	byName      map[string]int32
	typeByName  map[string]string
	fingerprint uint64
}

// NewCatalog builds a snapshot from the given properties. Later entries win
// when two share an id or a name.
func NewCatalog(props []Property) *Catalog {
	c := &Catalog{
		byID:       make(map[int32]string, len(props)),
		byName:     make(map[string]int32, len(props)),
		typeByName: make(map[string]string, len(props)),
	}
	for _, p := range props {
		c.byID[p.ID] = p.Name
		c.byName[p.Name] = p.ID
		if p.Type != "" {
			c.typeByName[p.Name] = p.Type
		}
	}
	c.fingerprint = fingerprint(c.byID)
	return c
}

// PropertyName returns the field name registered under the given property id.
func (c *Catalog) PropertyName(id int32) (string, bool) {
	name, ok := c.byID[id]
	return name, ok
}

// PropertyID returns the property id registered for the given field name.
func (c *Catalog) PropertyID(name string) (int32, bool) {
	id, ok := c.byName[name]
	return id, ok
}

// PropertyType returns the declared wire type for the given field name,
// when the registry carried one ("STRING", "INTEGER", ...).
func (c *Catalog) PropertyType(name string) (string, bool) {
	t, ok := c.typeByName[name]
	return t, ok
}

// Len returns the number of registered properties.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Fingerprint returns a content hash of the id table. Two catalogs with the
// same entries always produce the same fingerprint regardless of the order
// the entries arrived in.
func (c *Catalog) Fingerprint() uint64 {
	return c.fingerprint
}

func fingerprint(byID map[int32]string) uint64 {
	ids := make([]int32, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	buf := make([]byte, 0, len(ids)*16)
	var scratch [8]byte
	for _, id := range ids {
		name := byID[id]
		binary.BigEndian.PutUint32(scratch[:4], uint32(id))
		binary.BigEndian.PutUint32(scratch[4:], uint32(len(name)))
		buf = append(buf, scratch[:]...)
		buf = append(buf, name...)
	}
	return xxhash.Sum64(buf)
}

// Cache holds the current catalog and swaps in full replacements as the
// server-side schema evolves. Readers always see a complete table, either
// the old one or the new one, never a partially updated mix.
type Cache struct {
	current atomic.Pointer[Catalog]
	flight  singleflight.Group
}

// NewCache returns a cache primed with an empty catalog.
func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(NewCatalog(nil))
	return c
}

// Catalog returns the current snapshot.
func (c *Cache) Catalog() *Catalog {
	return c.current.Load()
}

// PropertyName resolves a property id against the current snapshot.
func (c *Cache) PropertyName(id int32) (string, bool) {
	return c.current.Load().PropertyName(id)
}

// PropertyID resolves a field name against the current snapshot.
func (c *Cache) PropertyID(name string) (int32, bool) {
	return c.current.Load().PropertyID(name)
}

// PropertyType resolves a field's declared type against the current
// snapshot.
func (c *Cache) PropertyType(name string) (string, bool) {
	return c.current.Load().PropertyType(name)
}

// Replace builds a catalog from props and swaps it in. It reports whether
// the table content actually changed; swapping in identical content is
// skipped so callers can tell a useful reload from a wasted one.
func (c *Cache) Replace(props []Property) bool {
	next := NewCatalog(props)
	if c.current.Load().Fingerprint() == next.Fingerprint() {
		return false
	}
	c.current.Store(next)
	return true
}

// Refresh fetches a fresh property table and swaps it in. Concurrent
// refreshes collapse into a single fetch and every caller observes that
// flight's outcome. It reports whether the catalog changed.
func (c *Cache) Refresh(fetch func() ([]Property, error)) (bool, error) {
	changed, err, _ := c.flight.Do("reload", func() (interface{}, error) {
		props, err := fetch()
		if err != nil {
			return false, err
		}
		return c.Replace(props), nil
	})
	if err != nil {
		return false, err
	}
	return changed.(bool), nil
}
