// Package schema defines the record schema shared by flattening, storage and filter validation.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Reserved fields are present on every stored document and never declared.
const (
	IDField     = "id"
	SourceField = "_source"
)

const maxFields = 64

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Schema is an ordered, immutable list of field definitions.
type Schema struct {
	fields []Field
	byName map[string]int
	byPath map[string]int
}

// New validates and creates a Schema. Names and paths must be unique and not reserved.
func New(fields ...Field) (Schema, error) {
	if len(fields) == 0 {
		return Schema{}, fmt.Errorf("schema needs at least one field")
	}
	if len(fields) > maxFields {
		return Schema{}, fmt.Errorf("too many fields (max %d)", maxFields)
	}
	s := Schema{
		fields: make([]Field, len(fields)),
		byName: make(map[string]int, len(fields)),
		byPath: make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)
	for i, f := range fields {
		if f.name == "" {
			return Schema{}, fmt.Errorf("field %d has no name", i)
		}
		if _, dup := s.byName[f.name]; dup {
			return Schema{}, fmt.Errorf("duplicate field name: %s", f.name)
		}
		if _, dup := s.byPath[f.path]; dup {
			return Schema{}, fmt.Errorf("duplicate field path: %s", f.path)
		}
		s.byName[f.name] = i
		s.byPath[f.path] = i
	}
	return s, nil
}

// Fields returns the fields in declaration order.
func (s Schema) Fields() []Field { return s.fields }

// IsZero reports whether the schema has no fields.
func (s Schema) IsZero() bool { return len(s.fields) == 0 }

// Field looks up a field by its flat name.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// FieldByPath looks up a field by its nested path (e.g. "likes.color").
func (s Schema) FieldByPath(path string) (Field, bool) {
	i, ok := s.byPath[path]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Allows reports whether key may appear in a flattened document.
func (s Schema) Allows(key string) bool {
	if key == IDField || key == SourceField {
		return true
	}
	_, ok := s.byName[key]
	return ok
}

// Facetable returns the fields usable in filter clauses.
func (s Schema) Facetable() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.facetable {
			out = append(out, f)
		}
	}
	return out
}

// Required returns the names of fields that must be present on every document.
func (s Schema) Required() []string {
	var out []string
	for _, f := range s.fields {
		if !f.optional {
			out = append(out, f.name)
		}
	}
	return out
}

// Fingerprint returns a stable digest of the schema's definition.
func (s Schema) Fingerprint() string {
	data, _ := json.Marshal(s.Specs())
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Equal reports whether both schemas define the same fields.
func (s Schema) Equal(other Schema) bool {
	return s.Fingerprint() == other.Fingerprint()
}

// Spec is the serialized form of a Field.
type Spec struct {
	Name      string            `json:"name"`
	Type      Type              `json:"type"`
	Facetable bool              `json:"facetable,omitempty"`
	Optional  bool              `json:"optional,omitempty"`
	Path      string            `json:"path,omitempty"`
	Values    []string          `json:"values,omitempty"`
	Aliases   map[string]string `json:"aliases,omitempty"`
}

// Specs returns the serializable field definitions.
func (s Schema) Specs() []Spec {
	out := make([]Spec, len(s.fields))
	for i, f := range s.fields {
		spec := Spec{
			Name:      f.name,
			Type:      f.typ,
			Facetable: f.facetable,
			Optional:  f.optional,
			Values:    f.values,
			Aliases:   f.aliases,
		}
		if f.path != f.name {
			spec.Path = f.path
		}
		out[i] = spec
	}
	return out
}

// FromSpecs rebuilds a Schema from its serialized form.
func FromSpecs(specs []Spec) (Schema, error) {
	fields := make([]Field, 0, len(specs))
	for _, sp := range specs {
		opts := []FieldOption{WithPath(sp.Path), WithValues(sp.Values...), WithAliases(sp.Aliases)}
		if sp.Facetable {
			opts = append(opts, Facetable())
		}
		if sp.Optional {
			opts = append(opts, Optional())
		}
		f, err := NewField(sp.Name, sp.Type, opts...)
		if err != nil {
			return Schema{}, err
		}
		fields = append(fields, f)
	}
	return New(fields...)
}

// Default returns the people/likes schema: name, gender, likes_color, likes_food and text.
func Default() Schema {
	s, err := New(
		mustField("name", String, Optional()),
		mustField("gender", String, Facetable(),
			WithValues("boy", "girl", "unknown"),
			WithAliases(map[string]string{
				"male": "boy", "man": "boy", "he": "boy", "m": "boy",
				"female": "girl", "woman": "girl", "she": "girl", "f": "girl",
			}),
		),
		mustField("likes_color", String, Facetable(), Optional(), WithPath("likes.color")),
		mustField("likes_food", String, Facetable(), Optional(), WithPath("likes.food")),
		mustField("text", String),
	)
	if err != nil {
		panic(err)
	}
	return s
}

func mustField(name string, t Type, opts ...FieldOption) Field {
	f, err := NewField(name, t, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("field name is required")
	}
	if name == IDField || name == SourceField {
		return fmt.Errorf("field name %q is reserved", name)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("field name %q must be lower-case alphanumeric with underscores", name)
	}
	return nil
}

func validatePath(path string) error {
	parts := strings.Split(path, ".")
	if len(parts) > 2 {
		return fmt.Errorf("field path %q nests deeper than one level", path)
	}
	for _, p := range parts {
		if !nameRegex.MatchString(p) {
			return fmt.Errorf("invalid field path %q", path)
		}
	}
	return nil
}
