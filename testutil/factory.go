package testutil

import (
	"fmt"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/orientdb-driver/record"
)

// DocumentFactory builds record documents from a set of defaults plus
// per-call overrides. Default values may be lazy (a func), so every
// built document can carry fresh sequence and random values.
type DocumentFactory struct {
	class    string
	defaults map[string]interface{}
}

// Option overrides one or more fields on a built document.
type Option func(map[string]interface{})

// WithField sets a specific field value.
func WithField(name string, value interface{}) Option {
	return func(data map[string]interface{}) {
		data[name] = value
	}
}

// WithFields sets multiple field values.
func WithFields(fields map[string]interface{}) Option {
	return func(data map[string]interface{}) {
		for k, v := range fields {
			data[k] = v
		}
	}
}

// NewDocumentFactory creates a factory producing documents of the
// given class.
func NewDocumentFactory(class string, defaults map[string]interface{}) *DocumentFactory {
	return &DocumentFactory{class: class, defaults: defaults}
}

// Build creates one document, applying overrides on top of the
// defaults. Fields are set in sorted order so serialized output is
// deterministic.
func (f *DocumentFactory) Build(options ...Option) *record.Document {
	data := make(map[string]interface{}, len(f.defaults))
	for k, v := range f.defaults {
		data[k] = v
	}
	for _, opt := range options {
		opt(data)
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := record.NewDocument(f.class)
	for _, name := range names {
		doc.Set(name, resolve(data[name]))
	}
	return doc
}

// BuildList creates count documents.
func (f *DocumentFactory) BuildList(count int, options ...Option) []*record.Document {
	docs := make([]*record.Document, count)
	for i := range docs {
		docs[i] = f.Build(options...)
	}
	return docs
}

// resolve evaluates lazy default values.
func resolve(v interface{}) interface{} {
	switch fn := v.(type) {
	case func() string:
		return fn()
	case func() int:
		return fn()
	case func() int64:
		return fn()
	case func() bool:
		return fn()
	case func() time.Time:
		return fn()
	default:
		return v
	}
}

// Sequence generators for unique values.

var (
	idSequence    uint64
	emailSequence uint64
)

// SequenceID generates unique identifiers.
func SequenceID() int64 {
	return int64(atomic.AddUint64(&idSequence, 1))
}

// SequenceEmail generates unique email addresses.
func SequenceEmail() string {
	return fmt.Sprintf("user%d@example.com", atomic.AddUint64(&emailSequence, 1))
}

// Random generators for realistic field values.

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomString generates a random alphanumeric string.
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rng.Intn(len(charset))]
	}
	return string(b)
}

// RandomInt generates a random integer in [min, max].
func RandomInt(min, max int) int {
	return min + rng.Intn(max-min+1)
}

// RandomDate generates a random timestamp within the last year.
func RandomDate() time.Time {
	return time.Now().AddDate(0, 0, -rng.Intn(365))
}

// NewPersonFactory builds Person vertices matching the sample schema
// shipped with the migration tooling.
func NewPersonFactory() *DocumentFactory {
	return NewDocumentFactory("Person", map[string]interface{}{
		"id":      SequenceID,
		"name":    func() string { return "Person " + RandomString(6) },
		"email":   SequenceEmail,
		"age":     func() int { return RandomInt(18, 90) },
		"active":  true,
		"created": RandomDate,
	})
}

// NewCompanyFactory builds Company vertices.
func NewCompanyFactory() *DocumentFactory {
	return NewDocumentFactory("Company", map[string]interface{}{
		"id":        SequenceID,
		"name":      func() string { return "Company " + RandomString(4) },
		"employees": func() int { return RandomInt(1, 5000) },
		"founded":   RandomDate,
	})
}
