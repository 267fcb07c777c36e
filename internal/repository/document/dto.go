package document

import "github.com/kailas-cloud/nlquery/internal/domain/record"

// buildHashFields converts a flattened record into a flat map[string]string for HSET.
// Empty values are omitted so that optional fields stay absent.
func buildHashFields(doc record.Flattened) map[string]string {
	fields := doc.Fields()
	m := make(map[string]string, len(fields))
	for k, v := range fields {
		if s := record.Stringify(v); s != "" {
			m[k] = s
		}
	}
	return m
}
