package record

import (
	"maps"
	"sort"

	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

// Flattened is the flat, indexable form of a record (immutable value object).
// Values are string, int64 or float64.
type Flattened struct {
	id     string
	fields map[string]any
}

// NewFlattened creates a flattened record. The id is mirrored into the fields.
func NewFlattened(id string, fields map[string]any) Flattened {
	f := make(map[string]any, len(fields)+1)
	maps.Copy(f, fields)
	if id != "" {
		f[schema.IDField] = id
	}
	return Flattened{id: id, fields: f}
}

// ID returns the document identifier.
func (f Flattened) ID() string { return f.id }

// Fields returns a copy of the flat key-value map.
func (f Flattened) Fields() map[string]any { return maps.Clone(f.fields) }

// Get returns a single field value.
func (f Flattened) Get(key string) (any, bool) {
	v, ok := f.fields[key]
	return v, ok
}

// Source returns the provenance text stored under _source.
func (f Flattened) Source() string {
	s, _ := f.fields[schema.SourceField].(string)
	return s
}

// Keys returns the field names in sorted order.
func (f Flattened) Keys() []string {
	keys := make([]string, 0, len(f.fields))
	for k := range f.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
