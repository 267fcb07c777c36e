package collection

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/collection"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

// collectionToHash converts a domain Collection to a map for HSET.
func collectionToHash(col collection.Collection) (map[string]string, error) {
	fieldsJSON, err := json.Marshal(col.Schema().Specs())
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return map[string]string{
		"name":        col.Name(),
		"fields_json": string(fieldsJSON),
		"fingerprint": col.Fingerprint(),
		"created_at":  strconv.FormatInt(col.CreatedAt(), 10),
	}, nil
}

// collectionFromHash hydrates a domain Collection from an HGETALL result map.
// A fingerprint that no longer matches the stored fields is reported as ErrSchema.
func collectionFromHash(m map[string]string) (collection.Collection, error) {
	name := m["name"]

	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return collection.Collection{}, fmt.Errorf("invalid created_at: %w", err)
	}

	var specs []schema.Spec
	if err := json.Unmarshal([]byte(m["fields_json"]), &specs); err != nil {
		return collection.Collection{}, fmt.Errorf("unmarshal fields of %s: %w: %w", name, domain.ErrSchema, err)
	}
	s, err := schema.FromSpecs(specs)
	if err != nil {
		return collection.Collection{}, fmt.Errorf("stored schema of %s: %w: %w", name, domain.ErrSchema, err)
	}
	if fp := m["fingerprint"]; fp != "" && fp != s.Fingerprint() {
		return collection.Collection{}, domain.NewSchemaMismatch(name, fp, s.Fingerprint())
	}

	return collection.Reconstruct(name, s, createdAt), nil
}
