package db

import "strings"

// IndexBuilder is a fluent builder for FT index definitions over hashes.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name, StorageType: StorageHash}}
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Numeric adds a NUMERIC field (int and float schema fields).
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldNumeric})
}

// Tag adds a TAG field.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag})
}

// TagWithOpts adds a TAG field with custom separator and case sensitivity.
func (b *IndexBuilder) TagWithOpts(name, separator string, caseSensitive bool) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag, TagSeparator: separator, TagCaseSensitive: caseSensitive})
}

// Text adds a TEXT field.
func (b *IndexBuilder) Text(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldText})
}

// TextAs adds a TEXT field addressed by alias.
func (b *IndexBuilder) TextAs(name, alias string) *IndexBuilder {
	return b.add(IndexField{Name: name, Alias: alias, Type: IndexFieldText})
}

// Facet adds a case-insensitive TAG field for eq/ne clauses plus a TEXT twin
// (TextAlias) for contains clauses over the same hash field.
func (b *IndexBuilder) Facet(name string) *IndexBuilder {
	return b.TagWithOpts(name, ",", false).TextAs(name, TextAlias(name))
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	def.Fields = append([]IndexField(nil), b.def.Fields...)
	return &def, nil
}

// MustBuild calls Build and panics on error. For static definitions and tests.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String returns the FT.CREATE command the definition produces.
func (idx *IndexDefinition) String() string {
	args, err := idx.CreateArgs()
	if err != nil {
		return "FT.CREATE " + idx.Name + " <invalid: " + err.Error() + ">"
	}
	return "FT.CREATE " + strings.Join(args, " ")
}
