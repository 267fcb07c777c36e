package translate

import (
	"testing"
)

func TestParseFilterBy(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		dropped int
	}{
		{"gender:=boy && likes_color:=blue", `gender eq "boy" AND likes_color eq "blue"`, 0},
		{"likes_food:curd rice", `likes_food contains "curd rice"`, 0},
		{"gender:!=girl", `gender ne "girl"`, 0},
		{"likes_color:=red || likes_color:=blue", `(likes_color eq "red") OR (likes_color eq "blue")`, 0},
		{"gender:=boy && (likes_color:=red || likes_color:=blue)",
			`gender eq "boy" AND ((likes_color eq "red") OR (likes_color eq "blue"))`, 0},
		{"likes_color:=[red, `blue`]", `likes_color eq "red" OR likes_color eq "blue"`, 0},
		{"age:>=7", `age gte "7"`, 0},
		{"gender:=boy && nonsense", `gender eq "boy"`, 1},
		{"age:>seven", "", 1},
		{"", "", 0},
	}
	for _, tc := range tests {
		var dropped []Dropped
		expr, err := parseFilterBy(tc.in, &dropped)
		if err != nil {
			t.Errorf("parseFilterBy(%q): %v", tc.in, err)
			continue
		}
		if got := expr.String(); got != tc.want {
			t.Errorf("parseFilterBy(%q) = %s, want %s", tc.in, got, tc.want)
		}
		if len(dropped) != tc.dropped {
			t.Errorf("parseFilterBy(%q) dropped %d, want %d", tc.in, len(dropped), tc.dropped)
		}
	}
}

func TestParseFilterBy_Unbalanced(t *testing.T) {
	var dropped []Dropped
	if _, err := parseFilterBy("(gender:=boy", &dropped); err == nil {
		t.Error("expected error for unbalanced parentheses")
	}
}

func TestParseAnswer_JSONFilter(t *testing.T) {
	raw := "```json\n" + `{"filter": {"op": "or", "clauses": [
		{"field": "likes_color", "operator": "=", "value": "red"},
		{"field": "likes_color", "operator": "between", "value": "x"}
	], "groups": [{"op": "and", "clauses": [{"field": "gender", "operator": "eq", "value": "girl"}]}]}}` + "\n```"

	p, err := parseAnswer(raw)
	if err != nil {
		t.Fatalf("parseAnswer: %v", err)
	}
	if got, want := p.expr.String(), `likes_color eq "red" OR (gender eq "girl")`; got != want {
		t.Errorf("expr = %s, want %s", got, want)
	}
	if len(p.dropped) != 1 {
		t.Errorf("expected the unsupported operator to be dropped, got %v", p.dropped)
	}
}

func TestParseAnswer_MatchAll(t *testing.T) {
	p, err := parseAnswer(`{"q": "*", "filter_by": ""}`)
	if err != nil {
		t.Fatalf("parseAnswer: %v", err)
	}
	if !p.matchAll {
		t.Error("empty filter_by with q=* must match all")
	}

	p, err = parseAnswer(`{"q": "blue", "filter_by": ""}`)
	if err != nil {
		t.Fatalf("parseAnswer: %v", err)
	}
	if p.matchAll {
		t.Error("keyword query must not match all")
	}
}

func TestParseAnswer_Invalid(t *testing.T) {
	for _, raw := range []string{"no json here", `{"filter": "gender:=boy"}`, `{"filter": {"op": "xor"}}`} {
		if _, err := parseAnswer(raw); err == nil {
			t.Errorf("parseAnswer(%q): expected error", raw)
		}
	}
}

func TestIsMeta(t *testing.T) {
	tests := map[string]bool{
		"What colors are mentioned?":          true,
		"How many   DIFFERENT foods are there": true,
		"list all people":                     true,
		"how many boys like blue":             false,
		"all people who like red":             false,
	}
	for q, want := range tests {
		if got := IsMeta(q); got != want {
			t.Errorf("IsMeta(%q) = %v, want %v", q, got, want)
		}
	}
}
