package collection

import (
	"fmt"

	"github.com/kailas-cloud/nlquery/internal/db"
	domcol "github.com/kailas-cloud/nlquery/internal/domain/collection"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/repository/layout"
)

// buildIndex creates an IndexDefinition from the collection schema.
// Facetable strings become TAG fields with a TEXT twin for contains matching,
// facetable numbers become NUMERIC, and _source is indexed as full text.
// Non-facetable fields are stored but not indexed.
func buildIndex(keys layout.Keys, col domcol.Collection) (*db.IndexDefinition, error) {
	b := db.NewIndex(keys.Index(col.Name())).Prefix(keys.DocPrefix(col.Name()))

	for _, f := range col.Schema().Facetable() {
		switch {
		case f.Type() == schema.String:
			b.Facet(f.Name())
		case f.Type().IsNumeric():
			b.Numeric(f.Name())
		default:
			return nil, fmt.Errorf("unknown field type: %s", f.Type())
		}
	}

	b.TextAs(schema.SourceField, layout.SourceAttribute)

	return b.Build()
}
