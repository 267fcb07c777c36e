package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
)

// Type is the scalar type of a field.
type Type string

// Field types.
const (
	String Type = "string"
	Int    Type = "int"
	Float  Type = "float"
)

// IsValid checks if the type is supported.
func (t Type) IsValid() bool {
	return t == String || t == Int || t == Float
}

// IsNumeric reports whether values of this type are compared numerically.
func (t Type) IsNumeric() bool {
	return t == Int || t == Float
}

// Field is one schema field (immutable value object).
type Field struct {
	name      string
	typ       Type
	facetable bool
	optional  bool
	path      string
	values    []string
	aliases   map[string]string
}

// FieldOption configures a Field.
type FieldOption func(*Field)

// Facetable marks the field as usable in filter clauses.
func Facetable() FieldOption { return func(f *Field) { f.facetable = true } }

// Optional marks the field as allowed to be absent.
func Optional() FieldOption { return func(f *Field) { f.optional = true } }

// WithPath sets the nested record path, e.g. "likes.color". Empty keeps the name.
func WithPath(path string) FieldOption {
	return func(f *Field) {
		if path != "" {
			f.path = path
		}
	}
}

// WithValues restricts a string field to an enumerated set.
func WithValues(values ...string) FieldOption {
	return func(f *Field) {
		for _, v := range values {
			f.values = append(f.values, strings.ToLower(strings.TrimSpace(v)))
		}
	}
}

// WithAliases maps synonyms onto canonical values (e.g. "male" -> "boy").
func WithAliases(aliases map[string]string) FieldOption {
	return func(f *Field) {
		if len(aliases) == 0 {
			return
		}
		f.aliases = make(map[string]string, len(aliases))
		for k, v := range aliases {
			f.aliases[strings.ToLower(k)] = strings.ToLower(v)
		}
	}
}

// NewField validates and creates a Field.
func NewField(name string, t Type, opts ...FieldOption) (Field, error) {
	if err := validateName(name); err != nil {
		return Field{}, err
	}
	if !t.IsValid() {
		return Field{}, fmt.Errorf("invalid type %q for field %q", t, name)
	}
	f := Field{name: name, typ: t, path: name}
	for _, opt := range opts {
		opt(&f)
	}
	if err := validatePath(f.path); err != nil {
		return Field{}, err
	}
	if len(f.values) > 0 && t != String {
		return Field{}, fmt.Errorf("field %q: enumerated values require type string", name)
	}
	for alias, target := range f.aliases {
		if len(f.values) > 0 && !slices.Contains(f.values, target) {
			return Field{}, fmt.Errorf("field %q: alias %q targets unknown value %q", name, alias, target)
		}
	}
	return f, nil
}

// Name returns the flat field name.
func (f Field) Name() string { return f.name }

// Type returns the scalar type.
func (f Field) Type() Type { return f.typ }

// IsFacetable reports whether the field may be filtered on.
func (f Field) IsFacetable() bool { return f.facetable }

// IsOptional reports whether the field may be absent.
func (f Field) IsOptional() bool { return f.optional }

// Path returns the nested record path.
func (f Field) Path() string { return f.path }

// Values returns the allowed values of an enumerated field.
func (f Field) Values() []string { return f.values }

// Supports reports whether op is meaningful for the field's type.
func (f Field) Supports(op filter.Operator) bool {
	if f.typ.IsNumeric() {
		return op == filter.Eq || op == filter.Ne || op.IsRange()
	}
	return op == filter.Eq || op == filter.Ne || op == filter.Contains
}

// Normalize trims and canonicalizes a raw value for this field.
// Strings are lower-cased, aliases resolved and enumerations enforced;
// numbers are parsed and re-rendered.
func (f Field) Normalize(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fmt.Errorf("empty value for field %q", f.name)
	}
	switch f.typ {
	case Int:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			if fl, ferr := strconv.ParseFloat(v, 64); ferr == nil && fl == float64(int64(fl)) {
				return strconv.FormatInt(int64(fl), 10), nil
			}
			return "", fmt.Errorf("field %q expects an integer, got %q", f.name, raw)
		}
		return strconv.FormatInt(n, 10), nil
	case Float:
		fl, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "", fmt.Errorf("field %q expects a number, got %q", f.name, raw)
		}
		return strconv.FormatFloat(fl, 'f', -1, 64), nil
	}

	v = strings.ToLower(v)
	if target, ok := f.aliases[v]; ok {
		v = target
	}
	if len(f.values) > 0 && !slices.Contains(f.values, v) {
		return "", fmt.Errorf("field %q does not allow value %q (allowed: %s)",
			f.name, raw, strings.Join(f.values, ", "))
	}
	return v, nil
}
