package structure

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

const systemPrompt = `You are a data extraction assistant. Convert the user's text into structured JSON.
Return ONLY valid JSON, no explanations or markdown. If a field is not mentioned, use null.`

// buildPrompt renders the extraction prompt for one line. A non-empty reason adds
// a stricter reminder naming why the previous answer was rejected.
func buildPrompt(s schema.Schema, line, reason string) domain.Prompt {
	var b strings.Builder
	b.WriteString("Extract information in this JSON format:\n")
	b.WriteString(shapeHint(s))
	b.WriteString("\n\nText: ")
	b.WriteString(line)
	if reason != "" {
		fmt.Fprintf(&b, "\n\nYour previous answer was rejected: %s.\n", reason)
		b.WriteString("Reply with a single JSON object exactly in the format above and nothing else.")
	}
	return domain.Prompt{System: systemPrompt, User: b.String()}
}

func shapeHint(s schema.Schema) string {
	gender := "boy or girl"
	if f, ok := s.FieldByPath("gender"); ok && len(f.Values()) > 0 {
		gender = strings.Join(f.Values(), " or ")
	}
	return fmt.Sprintf(`{
  "name": "person's name if mentioned, otherwise null",
  "gender": %q,
  "likes": {
    "color": "favorite color",
    "food": "favorite food"
  },
  "text": "original text"
}`, gender)
}
