package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/text"
)

// SearchFilter runs a filtered listing via FT.SEARCH. An empty filter matches all documents.
func (s *Store) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	queryStr := buildFilter(q.Filters, q.NumericFields)
	if queryStr == "" {
		queryStr = "*"
	}

	args := []string{q.IndexName, queryStr}
	args = appendReturn(args, q.ReturnFields)
	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, opErr(db.OpSearch, err)
	}

	return parseListResult(raw)
}

// SearchText runs a full-text search via FT.SEARCH WITHSCORES, matching any of the terms.
// No terms yields an empty result without a round-trip.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Attribute == "" {
		return nil, fmt.Errorf("attribute is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if len(q.Terms) == 0 {
		return &db.SearchResult{}, nil
	}

	escaped := make([]string, len(q.Terms))
	for i, t := range q.Terms {
		escaped[i] = escapeQuery(t)
	}
	textPart := fmt.Sprintf("@%s:(%s)", q.Attribute, strings.Join(escaped, "|"))

	queryStr := textPart
	if filterStr := buildFilter(q.Filters, q.NumericFields); filterStr != "" {
		queryStr = fmt.Sprintf("%s %s", filterStr, textPart)
	}

	args := []string{q.IndexName, queryStr}
	args = appendReturn(args, q.ReturnFields)
	args = append(args,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, opErr(db.OpSearch, err)
	}

	return parseScoredResult(raw)
}

// SearchCount returns the number of indexed documents via FT.SEARCH with LIMIT 0 0.
func (s *Store) SearchCount(ctx context.Context, index string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if unknownIndex(err) {
			return 0, db.ErrIndexNotFound
		}
		return 0, opErr(db.OpSearch, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func appendReturn(args, fields []string) []string {
	if len(fields) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

// --- Result parsing ---

func parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/3)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  score,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates a filter.Expression into an FT.SEARCH query string.
// AND members are space-joined, OR members are rendered as (a | b).
func buildFilter(expr filter.Expression, numeric map[string]bool) string {
	if expr.IsEmpty() {
		return ""
	}

	parts := make([]string, 0, len(expr.Clauses())+len(expr.Groups()))
	for _, c := range expr.Clauses() {
		if p := buildClause(c, numeric[c.Field()]); p != "" {
			parts = append(parts, p)
		}
	}
	for _, g := range expr.Groups() {
		p := buildFilter(g, numeric)
		switch {
		case p == "":
		case g.Combinator() == filter.Or:
			parts = append(parts, p)
		default:
			parts = append(parts, "("+p+")")
		}
	}

	switch {
	case len(parts) == 0:
		return ""
	case expr.Combinator() == filter.Or && len(parts) > 1:
		return "(" + strings.Join(parts, " | ") + ")"
	default:
		return strings.Join(parts, " ")
	}
}

func buildClause(c filter.Clause, numeric bool) string {
	if numeric {
		return buildNumericClause(c)
	}
	switch c.Op() {
	case filter.Eq:
		return buildTagFilter(c.Field(), c.Value())
	case filter.Ne:
		return "-" + buildTagFilter(c.Field(), c.Value())
	case filter.Contains:
		return buildContainsFilter(c.Field(), c.Value())
	default:
		return ""
	}
}

func buildTagFilter(key, value string) string {
	escaped := tagEscaper.Replace(value)
	return fmt.Sprintf("@%s:{%s}", key, escaped)
}

func buildContainsFilter(key, value string) string {
	tokens := text.Tokens(value)
	if len(tokens) == 0 {
		return ""
	}
	for i, t := range tokens {
		tokens[i] = escapeQuery(t)
	}
	return fmt.Sprintf("@%s:(%s)", db.TextAlias(key), strings.Join(tokens, " "))
}

func buildNumericClause(c filter.Clause) string {
	n, ok := c.Number()
	if !ok {
		return ""
	}
	v := strconv.FormatFloat(n, 'g', -1, 64)
	key := c.Field()

	switch c.Op() {
	case filter.Eq, filter.Contains:
		return fmt.Sprintf("@%s:[%s %s]", key, v, v)
	case filter.Ne:
		return fmt.Sprintf("-@%s:[%s %s]", key, v, v)
	case filter.Gt:
		return fmt.Sprintf("@%s:[(%s +inf]", key, v)
	case filter.Gte:
		return fmt.Sprintf("@%s:[%s +inf]", key, v)
	case filter.Lt:
		return fmt.Sprintf("@%s:[-inf (%s]", key, v)
	case filter.Lte:
		return fmt.Sprintf("@%s:[-inf %s]", key, v)
	default:
		return ""
	}
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)
