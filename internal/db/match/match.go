// Package match evaluates filter expressions and text terms against stored
// hash fields in process. Backends without a query engine (or without full-text
// support) use it to answer the same queries FT.SEARCH would.
package match

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/text"
)

type outcome int

const (
	skipped outcome = iota // clause has no rendering for the field type
	matched
	missed
)

// Filter reports whether fields satisfy expr. An empty expression matches everything.
// Clauses the query engine would ignore (a range on a TAG field, an empty contains)
// are neutral, mirroring how they are dropped from FT.SEARCH queries.
func Filter(expr filter.Expression, fields map[string]string, numeric map[string]bool) bool {
	return eval(expr, fields, numeric) != missed
}

func eval(expr filter.Expression, fields map[string]string, numeric map[string]bool) outcome {
	if expr.IsEmpty() {
		return skipped
	}

	results := make([]outcome, 0, len(expr.Clauses())+len(expr.Groups()))
	for _, c := range expr.Clauses() {
		results = append(results, clause(c, fields, numeric[c.Field()]))
	}
	for _, g := range expr.Groups() {
		results = append(results, eval(g, fields, numeric))
	}

	applied := false
	for _, r := range results {
		if r == skipped {
			continue
		}
		applied = true
		if expr.Combinator() == filter.Or && r == matched {
			return matched
		}
		if expr.Combinator() != filter.Or && r == missed {
			return missed
		}
	}
	switch {
	case !applied:
		return skipped
	case expr.Combinator() == filter.Or:
		return missed
	default:
		return matched
	}
}

func clause(c filter.Clause, fields map[string]string, numeric bool) outcome {
	stored, present := fields[c.Field()]
	if numeric {
		return numericClause(c, stored, present)
	}

	switch c.Op() {
	case filter.Eq:
		return verdict(present && tagMatch(stored, c.Value()))
	case filter.Ne:
		return verdict(!present || !tagMatch(stored, c.Value()))
	case filter.Contains:
		want := text.Tokens(c.Value())
		if len(want) == 0 {
			return skipped
		}
		return verdict(present && containsAll(text.Tokens(stored), want))
	default:
		return skipped
	}
}

func numericClause(c filter.Clause, stored string, present bool) outcome {
	want, ok := c.Number()
	if !ok {
		return skipped
	}
	got, err := strconv.ParseFloat(stored, 64)
	have := present && err == nil

	switch c.Op() {
	case filter.Eq, filter.Contains:
		return verdict(have && got == want)
	case filter.Ne:
		return verdict(!have || got != want)
	case filter.Gt:
		return verdict(have && got > want)
	case filter.Gte:
		return verdict(have && got >= want)
	case filter.Lt:
		return verdict(have && got < want)
	case filter.Lte:
		return verdict(have && got <= want)
	default:
		return skipped
	}
}

func verdict(ok bool) outcome {
	if ok {
		return matched
	}
	return missed
}

// tagMatch compares a comma-separated TAG value case-insensitively.
func tagMatch(stored, want string) bool {
	for _, tag := range strings.Split(stored, ",") {
		if strings.EqualFold(strings.TrimSpace(tag), strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

func containsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

// Candidate is a stored document under consideration.
type Candidate struct {
	Key    string
	Fields map[string]string
}

// Rank scores candidates against terms using the text of field, drops
// non-matching ones and orders the rest by score descending, then key.
func Rank(candidates []Candidate, field string, terms []string) []db.SearchEntry {
	entries := make([]db.SearchEntry, 0, len(candidates))
	for _, c := range candidates {
		score := text.Score(terms, c.Fields[field])
		if score == 0 {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: c.Key, Score: score, Fields: c.Fields})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// Project keeps only the named fields. No names keeps every field.
func Project(fields map[string]string, names []string) map[string]string {
	if len(names) == 0 {
		out := make(map[string]string, len(fields))
		for k, v := range fields {
			out[k] = v
		}
		return out
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := fields[n]; ok {
			out[n] = v
		}
	}
	return out
}

// Page returns entries[offset:offset+limit], clamped to the slice bounds.
func Page(entries []db.SearchEntry, offset, limit int) []db.SearchEntry {
	if offset >= len(entries) {
		return nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}
