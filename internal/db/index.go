package db

import (
	"errors"
	"fmt"
	"strconv"
)

// TextSuffix names the full-text twin of a TAG field.
const TextSuffix = "__text"

// TextAlias returns the attribute name of the full-text twin of a TAG field.
func TextAlias(field string) string { return field + TextSuffix }

// StorageType defines the document storage backend for FT indexes.
type StorageType string

const (
	// StorageHash stores documents as Redis hashes.
	StorageHash StorageType = "HASH"
)

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is a tag field.
	IndexFieldTag
	// IndexFieldText is a text field.
	IndexFieldText
)

var fieldTypeNames = map[IndexFieldType]string{
	IndexFieldNumeric: "NUMERIC",
	IndexFieldTag:     "TAG",
	IndexFieldText:    "TEXT",
}

// String returns the FT.CREATE keyword, or "" for an unknown type.
func (t IndexFieldType) String() string { return fieldTypeNames[t] }

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name  string
	Alias string // AS alias in FT.CREATE SCHEMA
	Type  IndexFieldType

	// TAG options
	TagSeparator     string
	TagCaseSensitive bool
}

// Attribute returns the name queries use to address the field.
func (f *IndexField) Attribute() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Args renders the field as FT.CREATE SCHEMA arguments.
func (f *IndexField) Args() ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}
	kw := f.Type.String()
	if kw == "" {
		return nil, fmt.Errorf("field %s: unknown type %d", f.Name, f.Type)
	}

	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}
	args = append(args, kw)
	if f.Type == IndexFieldTag {
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}
	}
	return args, nil
}

// IndexDefinition is a complete FT index definition used by FT.CREATE.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Validate checks that the index definition is well-formed.
// Fields are unique by the attribute queries address them with.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return fmt.Errorf("index name %q contains invalid characters", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field name is required at index %d", i)
		}
		if _, dup := seen[f.Attribute()]; dup {
			return fmt.Errorf("duplicate field name: %s", f.Attribute())
		}
		seen[f.Attribute()] = struct{}{}
	}
	return nil
}

// CreateArgs renders the definition as FT.CREATE arguments (without the command name).
// Storage defaults to HASH.
func (idx *IndexDefinition) CreateArgs() ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	storage := idx.StorageType
	if storage == "" {
		storage = StorageHash
	}
	args := []string{idx.Name, "ON", string(storage)}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		fa, err := idx.Fields[i].Args()
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
