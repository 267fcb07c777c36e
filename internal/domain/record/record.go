// Package record holds the structured form of one ingested text line.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Gender of the person a record describes.
type Gender string

// Gender values.
const (
	Boy     Gender = "boy"
	Girl    Gender = "girl"
	Unknown Gender = "unknown"
)

// Likes groups the preferences extracted from the text.
type Likes struct {
	Color string `json:"color,omitempty"`
	Food  string `json:"food,omitempty"`
	// Extra holds preference keys the model produced beyond color and food.
	Extra map[string]any `json:"-"`
}

// Record is a validated structured record.
type Record struct {
	Name   string `json:"name,omitempty"`
	Gender Gender `json:"gender"`
	Likes  Likes  `json:"likes"`
	Text   string `json:"text"`
	// Extra holds top-level keys the model produced beyond the record shape.
	Extra map[string]any `json:"-"`
}

// Map returns the nested map form of the record, including extra keys.
// Empty optional values are omitted.
func (r Record) Map() map[string]any {
	m := make(map[string]any, 4+len(r.Extra))
	for k, v := range r.Extra {
		m[k] = v
	}
	if r.Name != "" {
		m["name"] = r.Name
	}
	gender := r.Gender
	if gender == "" {
		gender = Unknown
	}
	m["gender"] = string(gender)

	likes := make(map[string]any, 2+len(r.Likes.Extra))
	for k, v := range r.Likes.Extra {
		likes[k] = v
	}
	if r.Likes.Color != "" {
		likes["color"] = r.Likes.Color
	}
	if r.Likes.Food != "" {
		likes["food"] = r.Likes.Food
	}
	if len(likes) > 0 {
		m["likes"] = likes
	}
	m["text"] = r.Text
	return m
}

// FromMap builds a record from its nested map form, the inverse of Map.
// Missing values are left empty; unknown keys land in Extra.
func FromMap(m map[string]any) Record {
	var r Record
	for k, v := range m {
		switch k {
		case "name":
			r.Name = Stringify(v)
		case "gender":
			r.Gender = Gender(Stringify(v))
		case "text":
			r.Text = Stringify(v)
		case "likes":
			nested, ok := v.(map[string]any)
			if !ok {
				setExtra(&r.Extra, k, v)
				continue
			}
			for lk, lv := range nested {
				switch lk {
				case "color":
					r.Likes.Color = Stringify(lv)
				case "food":
					r.Likes.Food = Stringify(lv)
				default:
					setExtra(&r.Likes.Extra, lk, lv)
				}
			}
		default:
			setExtra(&r.Extra, k, v)
		}
	}
	if r.Gender == "" {
		r.Gender = Unknown
	}
	return r
}

func setExtra(m *map[string]any, k string, v any) {
	if *m == nil {
		*m = make(map[string]any)
	}
	(*m)[k] = v
}

// Stringify renders a decoded JSON value as a single scalar string.
// Lists are joined with ", " and objects are JSON-encoded with sorted keys.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := Stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
