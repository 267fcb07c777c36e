package schema

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
)

// PruneFilter drops the clauses of e that the schema cannot execute: undeclared or
// non-facetable fields, operators the field type does not support and values that
// fail normalization. Kept clauses carry normalized values.
func (s Schema) PruneFilter(e filter.Expression) (filter.Expression, []filter.Rejected) {
	return e.Prune(func(c filter.Clause) (filter.Clause, string, bool) {
		f, ok := s.Field(c.Field())
		if !ok {
			return c, fmt.Sprintf("unknown field %q", c.Field()), false
		}
		if !f.IsFacetable() {
			return c, fmt.Sprintf("field %q is not filterable", c.Field()), false
		}
		if !f.Supports(c.Op()) {
			return c, fmt.Sprintf("operator %s is not supported on %s field %q", c.Op(), f.Type(), c.Field()), false
		}

		if c.Op() == filter.Contains {
			v := strings.ToLower(strings.TrimSpace(c.Value()))
			if v == "" {
				return c, fmt.Sprintf("empty value for field %q", c.Field()), false
			}
			return c.WithValue(v), "", true
		}

		v, err := f.Normalize(c.Value())
		if err != nil {
			return c, err.Error(), false
		}
		return c.WithValue(v), "", true
	})
}
