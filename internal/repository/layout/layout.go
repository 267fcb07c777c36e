// Package layout names the keys and index attributes a collection occupies.
package layout

import (
	"strings"

	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

// SourceAttribute is the index attribute of the full-text field over schema.SourceField.
const SourceAttribute = "source"

// Keys builds key names under a global prefix such as "nlq:".
//
//	{prefix}collection:{name}  collection metadata hash
//	{prefix}{name}:idx         FT index
//	{prefix}{name}:{id}        document hash
type Keys struct {
	Prefix string
}

// Meta returns the collection metadata key.
func (k Keys) Meta(name string) string { return k.Prefix + "collection:" + name }

// Index returns the FT index name.
func (k Keys) Index(name string) string { return k.Prefix + name + ":idx" }

// DocPrefix returns the key prefix shared by every document of the collection.
func (k Keys) DocPrefix(name string) string { return k.Prefix + name + ":" }

// Doc returns the document key.
func (k Keys) Doc(name, id string) string { return k.DocPrefix(name) + id }

// DocID strips the collection prefix from a document key.
func (k Keys) DocID(name, key string) string { return strings.TrimPrefix(key, k.DocPrefix(name)) }

// NumericFields returns the set of numeric fields of s, as the search backends expect it.
func NumericFields(s schema.Schema) map[string]bool {
	out := make(map[string]bool)
	for _, f := range s.Fields() {
		if f.Type().IsNumeric() {
			out[f.Name()] = true
		}
	}
	return out
}
