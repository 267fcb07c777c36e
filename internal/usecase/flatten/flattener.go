// Package flatten converts nested structured records into flat, indexable documents and back.
package flatten

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

const idLength = 32

// Flattener maps records onto the flat key space of one schema.
type Flattener struct {
	schema        schema.Schema
	logger        *zap.Logger
	deterministic bool
	newID         func() string
}

// Option configures a Flattener.
type Option func(*Flattener)

// WithDeterministicIDs derives ids from the sha256 of _source, so re-ingesting a line overwrites it.
func WithDeterministicIDs(enabled bool) Option {
	return func(f *Flattener) { f.deterministic = enabled }
}

// New creates a Flattener for s.
func New(s schema.Schema, logger *zap.Logger, opts ...Option) *Flattener {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Flattener{
		schema: s,
		logger: logger,
		newID:  randomID,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Schema returns the schema the flattener projects onto.
func (f *Flattener) Schema() schema.Schema { return f.schema }

// Flatten converts a record into its flat form with a generated id and _source = text.
// Keys the schema does not declare are dropped and logged.
func (f *Flattener) Flatten(r record.Record) record.Flattened {
	fields, dropped := f.project(r.Map())
	f.warnDropped(dropped)

	fields[schema.SourceField] = r.Text
	return record.NewFlattened(f.id(r.Text), fields)
}

// FlattenMap flattens an untrusted nested map, such as a document posted to the store.
// An "id" string is kept; otherwise one is generated. _source defaults to text.
func (f *Flattener) FlattenMap(m map[string]any) (record.Flattened, []string) {
	body := make(map[string]any, len(m))
	var id, source string
	for k, v := range m {
		switch k {
		case schema.IDField:
			id = strings.TrimSpace(record.Stringify(v))
		case schema.SourceField:
			source = record.Stringify(v)
		default:
			body[k] = v
		}
	}

	fields, dropped := f.project(body)
	f.warnDropped(dropped)

	if source == "" {
		source, _ = fields["text"].(string)
	}
	if source != "" {
		fields[schema.SourceField] = source
	}
	if id == "" {
		id = f.id(source)
	}
	return record.NewFlattened(id, fields), dropped
}

// Unflatten rebuilds the nested record from a flat document using the schema paths.
// Flat keys without a schema field are split on the first underscore.
func (f *Flattener) Unflatten(flat record.Flattened) record.Record {
	nested := make(map[string]any)
	for _, k := range flat.Keys() {
		if k == schema.IDField || k == schema.SourceField {
			continue
		}
		v, _ := flat.Get(k)

		path := k
		if field, ok := f.schema.Field(k); ok {
			path = field.Path()
		} else if parent, child, ok := strings.Cut(k, "_"); ok {
			path = parent + "." + child
		}

		parent, child, ok := strings.Cut(path, ".")
		if !ok {
			nested[path] = v
			continue
		}
		sub, _ := nested[parent].(map[string]any)
		if sub == nil {
			sub = make(map[string]any)
			nested[parent] = sub
		}
		sub[child] = v
	}
	return record.FromMap(nested)
}

// project flattens one level of nesting into parent_child keys and keeps schema fields.
func (f *Flattener) project(nested map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(nested))
	var dropped []string

	put := func(key string, v any) {
		field, ok := f.schema.Field(key)
		if !ok {
			dropped = append(dropped, key)
			return
		}
		out[key] = coerce(field, v)
	}

	for k, v := range nested {
		sub, ok := v.(map[string]any)
		if !ok {
			if field, found := f.schema.FieldByPath(k); found {
				out[field.Name()] = coerce(field, v)
				continue
			}
			put(k, v)
			continue
		}
		for ck, cv := range sub {
			if field, found := f.schema.FieldByPath(k + "." + ck); found {
				out[field.Name()] = coerce(field, cv)
				continue
			}
			put(k+"_"+ck, cv)
		}
	}

	sort.Strings(dropped)
	return out, dropped
}

func (f *Flattener) warnDropped(dropped []string) {
	if len(dropped) == 0 {
		return
	}
	f.logger.Warn("dropping keys outside the schema", zap.Strings("keys", dropped))
}

func (f *Flattener) id(source string) string {
	if f.deterministic && source != "" {
		sum := sha256.Sum256([]byte(source))
		return hex.EncodeToString(sum[:])[:idLength]
	}
	return f.newID()
}

func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// coerce renders v as a scalar of the field's type. Facet strings are normalized
// (lower case, aliases). Values that do not parse or are not allowed stay as given
// and are rejected by store validation.
func coerce(field schema.Field, v any) any {
	switch field.Type() {
	case schema.Int:
		switch t := v.(type) {
		case int64:
			return t
		case int:
			return int64(t)
		case float64:
			if t == float64(int64(t)) {
				return int64(t)
			}
		case json.Number:
			if n, err := t.Int64(); err == nil {
				return n
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return n
			}
		}
	case schema.Float:
		switch t := v.(type) {
		case float64:
			return t
		case int64:
			return float64(t)
		case int:
			return float64(t)
		case json.Number:
			if n, err := t.Float64(); err == nil {
				return n
			}
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return n
			}
		}
	case schema.String:
		str := record.Stringify(v)
		if field.IsFacetable() && str != "" {
			if n, err := field.Normalize(str); err == nil {
				return n
			}
		}
		return str
	}
	return record.Stringify(v)
}
