package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of clauses plus subgroups per filter group.
const MaxConditionsPerGroup = 32

// MaxDepth is the maximum nesting depth of filter groups.
const MaxDepth = 4

// Combinator joins the members of a group.
type Combinator string

// Combinator values.
const (
	And Combinator = "and"
	Or  Combinator = "or"
)

// ParseCombinator accepts and/or in any case, plus the && and || spellings.
func ParseCombinator(s string) (Combinator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and", "&&", "must", "all":
		return And, nil
	case "or", "||", "should", "any":
		return Or, nil
	default:
		return "", fmt.Errorf("unknown combinator %q", s)
	}
}

// Operator compares a field with a value.
type Operator string

// Operator values.
const (
	Eq       Operator = "eq"
	Ne       Operator = "ne"
	Contains Operator = "contains"
	Gt       Operator = "gt"
	Gte      Operator = "gte"
	Lt       Operator = "lt"
	Lte      Operator = "lte"
)

var operatorAliases = map[string]Operator{
	"eq": Eq, "=": Eq, "==": Eq, ":=": Eq, "equals": Eq, "is": Eq,
	"ne": Ne, "!=": Ne, "<>": Ne, ":!=": Ne, "not": Ne, "neq": Ne,
	"contains": Contains, ":": Contains, "like": Contains, "match": Contains,
	"gt": Gt, ">": Gt, ":>": Gt,
	"gte": Gte, ">=": Gte, ":>=": Gte,
	"lt": Lt, "<": Lt, ":<": Lt,
	"lte": Lte, "<=": Lte, ":<=": Lte,
}

// ParseOperator maps a textual operator onto an Operator.
func ParseOperator(s string) (Operator, error) {
	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown operator %q", s)
	}
	return op, nil
}

// IsValid reports whether o is one of the canonical operators.
func (o Operator) IsValid() bool {
	switch o {
	case Eq, Ne, Contains, Gt, Gte, Lt, Lte:
		return true
	}
	return false
}

// IsRange reports whether the operator is a numeric range comparison.
func (o Operator) IsRange() bool {
	return o == Gt || o == Gte || o == Lt || o == Lte
}

// Clause is a single (field, operator, value) comparison.
type Clause struct {
	field string
	op    Operator
	value string
}

// NewClause validates and creates a Clause.
func NewClause(field string, op Operator, value string) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("filter field is required")
	}
	if !op.IsValid() {
		return Clause{}, fmt.Errorf("unknown operator %q for field %q", op, field)
	}
	if strings.TrimSpace(value) == "" {
		return Clause{}, fmt.Errorf("value is required for field %q", field)
	}
	if op.IsRange() {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return Clause{}, fmt.Errorf("operator %s on field %q requires a number, got %q", op, field, value)
		}
	}
	return Clause{field: field, op: op, value: value}, nil
}

// Field returns the field name.
func (c Clause) Field() string { return c.field }

// Op returns the comparison operator.
func (c Clause) Op() Operator { return c.op }

// Value returns the raw comparison value.
func (c Clause) Value() string { return c.value }

// Number returns the value parsed as a float.
func (c Clause) Number() (float64, bool) {
	f, err := strconv.ParseFloat(c.value, 64)
	return f, err == nil
}

// WithValue returns a copy of the clause with a replaced value.
func (c Clause) WithValue(v string) Clause {
	c.value = v
	return c
}

func (c Clause) String() string {
	return fmt.Sprintf("%s %s %s", c.field, c.op, strconv.Quote(c.value))
}

// Expression is a boolean combination of clauses and nested groups.
// The zero value is the empty expression.
type Expression struct {
	combinator Combinator
	clauses    []Clause
	groups     []Expression
}

// NewExpression validates and creates an Expression.
func NewExpression(comb Combinator, clauses []Clause, groups []Expression) (Expression, error) {
	if comb == "" {
		comb = And
	}
	if comb != And && comb != Or {
		return Expression{}, fmt.Errorf("unknown combinator %q", comb)
	}
	if len(clauses)+len(groups) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many conditions in group (max %d)", MaxConditionsPerGroup)
	}
	e := Expression{combinator: comb, clauses: clauses, groups: groups}
	if e.depth() > MaxDepth {
		return Expression{}, fmt.Errorf("filter nested too deeply (max %d)", MaxDepth)
	}
	return e, nil
}

// All is shorthand for an AND of clauses.
func All(clauses ...Clause) Expression {
	return Expression{combinator: And, clauses: clauses}
}

// Combinator returns how members are joined. Empty expressions report And.
func (e Expression) Combinator() Combinator {
	if e.combinator == "" {
		return And
	}
	return e.combinator
}

// Clauses returns the direct clauses.
func (e Expression) Clauses() []Clause { return e.clauses }

// Groups returns the nested groups.
func (e Expression) Groups() []Expression { return e.groups }

// IsEmpty reports whether the expression contains no clauses at any depth.
func (e Expression) IsEmpty() bool {
	if len(e.clauses) > 0 {
		return false
	}
	for _, g := range e.groups {
		if !g.IsEmpty() {
			return false
		}
	}
	return true
}

// Walk calls fn for every clause at any depth, in order.
func (e Expression) Walk(fn func(Clause)) {
	for _, c := range e.clauses {
		fn(c)
	}
	for _, g := range e.groups {
		g.Walk(fn)
	}
}

// Len returns the number of clauses at any depth.
func (e Expression) Len() int {
	n := 0
	e.Walk(func(Clause) { n++ })
	return n
}

// Prune keeps the clauses for which keep returns a replacement and ok=true.
// Rejected clauses are returned with their reasons. Groups left empty are removed,
// and a group holding a single member is collapsed into its parent.
func (e Expression) Prune(keep func(Clause) (Clause, string, bool)) (Expression, []Rejected) {
	var rejected []Rejected
	pruned := e.prune(keep, &rejected)
	return pruned, rejected
}

// Rejected is a clause removed by Prune.
type Rejected struct {
	Clause Clause
	Reason string
}

func (e Expression) prune(keep func(Clause) (Clause, string, bool), rejected *[]Rejected) Expression {
	out := Expression{combinator: e.Combinator()}
	for _, c := range e.clauses {
		kept, reason, ok := keep(c)
		if !ok {
			*rejected = append(*rejected, Rejected{Clause: c, Reason: reason})
			continue
		}
		out.clauses = append(out.clauses, kept)
	}
	for _, g := range e.groups {
		pg := g.prune(keep, rejected)
		if pg.IsEmpty() {
			continue
		}
		if len(pg.clauses) == 1 && len(pg.groups) == 0 {
			out.clauses = append(out.clauses, pg.clauses[0])
			continue
		}
		out.groups = append(out.groups, pg)
	}
	if len(out.clauses) == 0 && len(out.groups) == 1 {
		return out.groups[0]
	}
	return out
}

func (e Expression) depth() int {
	d := 0
	for _, g := range e.groups {
		if gd := g.depth(); gd > d {
			d = gd
		}
	}
	return d + 1
}

// String renders the expression for logs and API responses,
// e.g. `gender eq "boy" AND likes_color eq "blue"`.
func (e Expression) String() string {
	if e.IsEmpty() {
		return ""
	}
	sep := " AND "
	if e.Combinator() == Or {
		sep = " OR "
	}
	parts := make([]string, 0, len(e.clauses)+len(e.groups))
	for _, c := range e.clauses {
		parts = append(parts, c.String())
	}
	for _, g := range e.groups {
		if g.IsEmpty() {
			continue
		}
		parts = append(parts, "("+g.String()+")")
	}
	return strings.Join(parts, sep)
}
