package translate

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
)

// Dropped is a clause removed before execution.
type Dropped struct {
	Clause string `json:"clause"`
	Reason string `json:"reason"`
}

// parsed is the model's answer before schema validation.
type parsed struct {
	expr     filter.Expression
	dropped  []Dropped
	matchAll bool
}

// parseAnswer accepts {"filter": {...}} or {"filter_by": "..."} and reports clauses it could not read.
func parseAnswer(raw string) (parsed, error) {
	obj, err := record.DecodeObject(raw)
	if err != nil {
		return parsed{}, err
	}

	q := strings.TrimSpace(record.Stringify(obj["q"]))

	var p parsed
	switch f := obj["filter"].(type) {
	case map[string]any:
		p.expr, err = parseGroup(f, 1, &p.dropped)
		if err != nil {
			return parsed{}, err
		}
	case nil:
		fb, _ := obj["filter_by"].(string)
		p.expr, err = parseFilterBy(fb, &p.dropped)
		if err != nil {
			return parsed{}, err
		}
	default:
		return parsed{}, fmt.Errorf("filter must be an object")
	}

	if p.expr.IsEmpty() && len(p.dropped) == 0 && q == "*" {
		p.matchAll = true
	}
	return p, nil
}

// parseGroup reads {"op": "and", "clauses": [{"field", "operator", "value"}], "groups": [...]}.
func parseGroup(m map[string]any, depth int, dropped *[]Dropped) (filter.Expression, error) {
	if depth > filter.MaxDepth {
		return filter.Expression{}, fmt.Errorf("filter nested too deeply (max %d)", filter.MaxDepth)
	}
	comb, err := filter.ParseCombinator(record.Stringify(first(m, "op", "combinator")))
	if err != nil {
		return filter.Expression{}, err
	}

	var clauses []filter.Clause
	items, _ := first(m, "clauses", "conditions").([]any)
	for _, item := range items {
		cm, ok := item.(map[string]any)
		if !ok {
			*dropped = append(*dropped, Dropped{Clause: record.Stringify(item), Reason: "clause must be an object"})
			continue
		}
		field := strings.TrimSpace(record.Stringify(cm["field"]))
		opText := record.Stringify(first(cm, "operator", "op"))
		value := strings.TrimSpace(record.Stringify(cm["value"]))
		rendered := fmt.Sprintf("%s %s %s", field, opText, value)

		op, err := filter.ParseOperator(opText)
		if err != nil {
			*dropped = append(*dropped, Dropped{Clause: rendered, Reason: err.Error()})
			continue
		}
		c, err := filter.NewClause(field, op, value)
		if err != nil {
			*dropped = append(*dropped, Dropped{Clause: rendered, Reason: err.Error()})
			continue
		}
		clauses = append(clauses, c)
	}

	var groups []filter.Expression
	subs, _ := m["groups"].([]any)
	for _, sub := range subs {
		sm, ok := sub.(map[string]any)
		if !ok {
			*dropped = append(*dropped, Dropped{Clause: record.Stringify(sub), Reason: "group must be an object"})
			continue
		}
		g, err := parseGroup(sm, depth+1, dropped)
		if err != nil {
			return filter.Expression{}, err
		}
		groups = append(groups, g)
	}

	return filter.NewExpression(comb, clauses, groups)
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// filterByOperators are the filter_by comparison spellings, longest first.
var filterByOperators = []string{":!=", ":>=", ":<=", ":=", ":>", ":<", ":"}

// parseFilterBy reads filter_by syntax: `gender:=boy && (likes_color:=red || likes_color:blue)`.
// ":" is contains and a bracketed list `likes_color:=[red,blue]` is an OR of its values.
func parseFilterBy(s string, dropped *[]Dropped) (filter.Expression, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return filter.Expression{}, nil
	}
	return parseOr(s, 1, dropped)
}

func parseOr(s string, depth int, dropped *[]Dropped) (filter.Expression, error) {
	if depth > filter.MaxDepth {
		return filter.Expression{}, fmt.Errorf("filter nested too deeply (max %d)", filter.MaxDepth)
	}
	parts, err := splitTop(s, "||")
	if err != nil {
		return filter.Expression{}, err
	}
	if len(parts) == 1 {
		return parseAnd(parts[0], depth, dropped)
	}
	groups := make([]filter.Expression, 0, len(parts))
	for _, p := range parts {
		g, err := parseAnd(p, depth+1, dropped)
		if err != nil {
			return filter.Expression{}, err
		}
		groups = append(groups, g)
	}
	return filter.NewExpression(filter.Or, nil, groups)
}

func parseAnd(s string, depth int, dropped *[]Dropped) (filter.Expression, error) {
	parts, err := splitTop(s, "&&")
	if err != nil {
		return filter.Expression{}, err
	}
	var clauses []filter.Clause
	var groups []filter.Expression
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if inner, ok := unwrapParens(p); ok {
			g, err := parseOr(inner, depth+1, dropped)
			if err != nil {
				return filter.Expression{}, err
			}
			groups = append(groups, g)
			continue
		}
		expr, err := parseTerm(p)
		if err != nil {
			*dropped = append(*dropped, Dropped{Clause: p, Reason: err.Error()})
			continue
		}
		if len(expr.Clauses()) == 1 && len(expr.Groups()) == 0 {
			clauses = append(clauses, expr.Clauses()[0])
		} else {
			groups = append(groups, expr)
		}
	}
	if len(clauses) == 0 && len(groups) == 1 {
		return groups[0], nil
	}
	return filter.NewExpression(filter.And, clauses, groups)
}

// parseTerm reads one `field<op>value` comparison.
func parseTerm(s string) (filter.Expression, error) {
	i := strings.Index(s, ":")
	if i <= 0 {
		return filter.Expression{}, fmt.Errorf("no operator in %q", s)
	}
	field := strings.TrimSpace(s[:i])
	rest := s[i:]

	var opText string
	for _, candidate := range filterByOperators {
		if strings.HasPrefix(rest, candidate) {
			opText = candidate
			break
		}
	}
	op, err := filter.ParseOperator(opText)
	if err != nil {
		return filter.Expression{}, err
	}
	raw := strings.TrimSpace(rest[len(opText):])

	values := []string{unquote(raw)}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		values = values[:0]
		for _, v := range strings.Split(raw[1:len(raw)-1], ",") {
			if v = unquote(strings.TrimSpace(v)); v != "" {
				values = append(values, v)
			}
		}
	}

	clauses := make([]filter.Clause, 0, len(values))
	for _, v := range values {
		c, err := filter.NewClause(field, op, v)
		if err != nil {
			return filter.Expression{}, err
		}
		clauses = append(clauses, c)
	}
	if len(clauses) == 0 {
		return filter.Expression{}, fmt.Errorf("value is required for field %q", field)
	}
	if len(clauses) == 1 {
		return filter.All(clauses...), nil
	}
	return filter.NewExpression(filter.Or, clauses, nil)
}

// splitTop splits s on sep outside parentheses and brackets.
func splitTop(s, sep string) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				parts = append(parts, s[start:i])
				i += len(sep) - 1
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	return append(parts, s[start:]), nil
}

// unwrapParens strips one pair of parentheses enclosing the whole of s.
func unwrapParens(s string) (string, bool) {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return "", false
			}
		}
	}
	return s[1 : len(s)-1], true
}

func unquote(s string) string {
	for _, q := range []string{"`", `"`, "'"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[1 : len(s)-1]
		}
	}
	return s
}
