package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

// ParseResult is either a parsed Record or the reason the model output was rejected.
type ParseResult struct {
	record Record
	reason string
	ok     bool
}

// Parsed wraps a valid record.
func Parsed(r Record) ParseResult { return ParseResult{record: r, ok: true} }

// Invalid wraps a rejection reason.
func Invalid(reason string) ParseResult { return ParseResult{reason: reason} }

// OK reports whether parsing succeeded.
func (p ParseResult) OK() bool { return p.ok }

// Record returns the parsed record and whether it is valid.
func (p ParseResult) Record() (Record, bool) { return p.record, p.ok }

// Reason returns why the output was rejected. Empty for parsed results.
func (p ParseResult) Reason() string { return p.reason }

// ExtractJSON strips markdown fences and surrounding prose, returning the
// text between the first '{' and the last '}'.
func ExtractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// DecodeObject extracts and decodes a JSON object, keeping numbers as json.Number.
func DecodeObject(raw string) (map[string]any, error) {
	body, ok := ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("malformed JSON: %v", err)
	}
	return obj, nil
}

// Parse validates untrusted model output for one input line.
// The record text is always the input line; the model's own text is used
// only when line is empty.
func Parse(raw, line string, s schema.Schema) ParseResult {
	obj, err := DecodeObject(raw)
	if err != nil {
		return Invalid(err.Error())
	}
	if !hasAnyKey(obj, "gender", "likes") {
		return Invalid("missing required keys: need gender or likes")
	}

	r := FromMap(map[string]any{})
	r.Name = strings.TrimSpace(Stringify(obj["name"]))

	g, err := normalizeOptional(s, "gender", strings.TrimSpace(Stringify(obj["gender"])))
	if err != nil {
		return Invalid(err.Error())
	}
	if g != "" {
		r.Gender = Gender(g)
	}

	switch likes := obj["likes"].(type) {
	case nil:
	case map[string]any:
		for k, v := range likes {
			val := strings.TrimSpace(Stringify(v))
			switch k {
			case "color":
				if r.Likes.Color, err = normalizeOptional(s, "likes.color", val); err != nil {
					return Invalid(err.Error())
				}
			case "food":
				if r.Likes.Food, err = normalizeOptional(s, "likes.food", val); err != nil {
					return Invalid(err.Error())
				}
			default:
				setExtra(&r.Likes.Extra, k, v)
			}
		}
	default:
		return Invalid("likes must be an object")
	}

	r.Text = strings.TrimSpace(line)
	if r.Text == "" {
		r.Text = strings.TrimSpace(Stringify(obj["text"]))
	}

	for k, v := range obj {
		switch k {
		case "name", "gender", "likes", "text":
		default:
			setExtra(&r.Extra, k, v)
		}
	}
	return Parsed(r)
}

func hasAnyKey(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// normalize applies the schema field at path when the schema declares one.
func normalize(s schema.Schema, path, v string) (string, error) {
	f, ok := s.FieldByPath(path)
	if !ok {
		return v, nil
	}
	return f.Normalize(v)
}

func normalizeOptional(s schema.Schema, path, v string) (string, error) {
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
		return "", nil
	}
	return normalize(s, path, v)
}
