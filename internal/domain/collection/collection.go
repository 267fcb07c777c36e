package collection

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Collection is a named index bound to one schema (immutable value object).
type Collection struct {
	name      string
	schema    schema.Schema
	createdAt int64
}

// ValidateName checks a collection name: ^[a-zA-Z0-9_-]+$, 1-64 chars.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates a Collection.
func New(name string, s schema.Schema) (Collection, error) {
	if err := ValidateName(name); err != nil {
		return Collection{}, err
	}
	if s.IsZero() {
		return Collection{}, fmt.Errorf("collection %q needs a schema", name)
	}
	return Collection{
		name:      name,
		schema:    s,
		createdAt: time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Collection without validation (storage hydration).
func Reconstruct(name string, s schema.Schema, createdAt int64) Collection {
	return Collection{name: name, schema: s, createdAt: createdAt}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Schema returns the bound schema.
func (c Collection) Schema() schema.Schema { return c.schema }

// Fingerprint returns the schema fingerprint.
func (c Collection) Fingerprint() string { return c.schema.Fingerprint() }

// CreatedAt returns the creation timestamp (unix millis).
func (c Collection) CreatedAt() int64 { return c.createdAt }

// Matches reports whether the collection is bound to an equivalent schema.
func (c Collection) Matches(s schema.Schema) bool { return c.schema.Equal(s) }
