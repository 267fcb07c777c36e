package schema

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
)

func makeField(t *testing.T, name string, ft Type, opts ...FieldOption) Field {
	t.Helper()
	f, err := NewField(name, ft, opts...)
	if err != nil {
		t.Fatalf("NewField(%q, %q): %v", name, ft, err)
	}
	return f
}

func TestNewField_Errors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		typ   Type
		opts  []FieldOption
		want  string
	}{
		{"empty name", "", String, nil, "required"},
		{"reserved id", IDField, String, nil, "reserved"},
		{"reserved source", SourceField, String, nil, "reserved"},
		{"upper case", "Gender", String, nil, "lower-case"},
		{"bad type", "age", Type("bool"), nil, "invalid type"},
		{"deep path", "x", String, []FieldOption{WithPath("a.b.c")}, "deeper"},
		{"enum on int", "age", Int, []FieldOption{WithValues("1")}, "require type string"},
		{"alias target", "g", String, []FieldOption{
			WithValues("boy"), WithAliases(map[string]string{"female": "girl"}),
		}, "unknown value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewField(tt.field, tt.typ, tt.opts...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestField_Normalize(t *testing.T) {
	gender, _ := Default().Field("gender")
	tests := []struct {
		in   string
		want string
	}{
		{"boy", "boy"},
		{"  Girl ", "girl"},
		{"Male", "boy"},
		{"she", "girl"},
	}
	for _, tt := range tests {
		got, err := gender.Normalize(tt.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := gender.Normalize("robot"); err == nil {
		t.Error("expected error for value outside enumeration")
	}
	if _, err := gender.Normalize("  "); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestField_NormalizeNumeric(t *testing.T) {
	age := makeField(t, "age", Int)
	if got, err := age.Normalize("7"); err != nil || got != "7" {
		t.Errorf("Normalize(7) = %q, %v", got, err)
	}
	if got, err := age.Normalize("7.0"); err != nil || got != "7" {
		t.Errorf("Normalize(7.0) = %q, %v", got, err)
	}
	if _, err := age.Normalize("seven"); err == nil {
		t.Error("expected error for non-numeric int")
	}

	height := makeField(t, "height", Float)
	if got, err := height.Normalize("1.50"); err != nil || got != "1.5" {
		t.Errorf("Normalize(1.50) = %q, %v", got, err)
	}
}

func TestField_Supports(t *testing.T) {
	color := makeField(t, "likes_color", String, Facetable())
	age := makeField(t, "age", Int, Facetable())

	if !color.Supports(filter.Contains) {
		t.Error("string field should support contains")
	}
	if color.Supports(filter.Gt) {
		t.Error("string field should not support gt")
	}
	if !age.Supports(filter.Lte) {
		t.Error("numeric field should support lte")
	}
	if age.Supports(filter.Contains) {
		t.Error("numeric field should not support contains")
	}
}

func TestNew_Duplicates(t *testing.T) {
	a := makeField(t, "color", String)
	_, err := New(a, a)
	if err == nil || !strings.Contains(err.Error(), "duplicate field name") {
		t.Fatalf("expected duplicate name error, got %v", err)
	}

	b := makeField(t, "likes_color", String, WithPath("likes.color"))
	c := makeField(t, "fav_color", String, WithPath("likes.color"))
	_, err = New(b, c)
	if err == nil || !strings.Contains(err.Error(), "duplicate field path") {
		t.Fatalf("expected duplicate path error, got %v", err)
	}

	if _, err := New(); err == nil {
		t.Fatal("expected error for empty schema")
	}
}

func TestDefault(t *testing.T) {
	s := Default()

	var names []string
	for _, f := range s.Facetable() {
		names = append(names, f.Name())
	}
	if got := strings.Join(names, ","); got != "gender,likes_color,likes_food" {
		t.Errorf("Facetable() = %s", got)
	}
	if got := strings.Join(s.Required(), ","); got != "gender,text" {
		t.Errorf("Required() = %s", got)
	}
	f, ok := s.FieldByPath("likes.food")
	if !ok || f.Name() != "likes_food" {
		t.Errorf("FieldByPath(likes.food) = %v, %v", f.Name(), ok)
	}
	if !s.Allows(IDField) || !s.Allows(SourceField) || !s.Allows("name") {
		t.Error("Allows should accept reserved and declared fields")
	}
	if s.Allows("age") {
		t.Error("Allows should reject undeclared fields")
	}
}

func TestFingerprint(t *testing.T) {
	if Default().Fingerprint() != Default().Fingerprint() {
		t.Fatal("fingerprint must be stable")
	}
	other, _ := New(makeField(t, "text", String))
	if Default().Equal(other) {
		t.Error("different schemas must not be equal")
	}
}

func TestSpecs_RoundTrip(t *testing.T) {
	s := Default()
	rebuilt, err := FromSpecs(s.Specs())
	if err != nil {
		t.Fatalf("FromSpecs: %v", err)
	}
	if !s.Equal(rebuilt) {
		t.Error("schema rebuilt from specs should equal the original")
	}
	f, _ := rebuilt.Field("gender")
	if got, _ := f.Normalize("woman"); got != "girl" {
		t.Errorf("aliases lost on rebuild: Normalize(woman) = %q", got)
	}
}
