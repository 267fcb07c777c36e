package answer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
)

const systemPrompt = `You are a helpful assistant that answers questions based on search results.
Use only the search results. Do not invent people or preferences.`

const instructions = `Instructions:
- Answer the question directly and naturally
- If asked "how many", provide count with details (e.g., "1 boy" or "3 boys and 2 girls")
- If asked "who" or "list names", list the names clearly
- If asked about preferences, describe what they like
- If asked about colors/foods mentioned, analyze all results and count unique values
- For "how many colors mentioned", count distinct colors from likes_color field
- For "how many foods mentioned", count distinct foods from likes_food field
- Be concise but informative
- End with one final line listing the ids of the results you used, exactly like:
CITED: id1, id2`

func buildPrompt(question string, hits []result.Hit, total int) domain.Prompt {
	docs := make([]map[string]any, len(hits))
	for i, h := range hits {
		doc := make(map[string]any, len(h.Fields()))
		for k, v := range h.Fields() {
			if k == schema.SourceField {
				continue
			}
			doc[k] = v
		}
		doc[schema.IDField] = h.ID()
		doc["source"] = h.Source()
		docs[i] = doc
	}
	body, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		body = []byte("[]")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User Question: %s\n\n", question)
	fmt.Fprintf(&b, "Search Results (%d found, %d shown):\n%s\n\n", total, len(hits), body)
	b.WriteString(instructions)
	b.WriteString("\n\nAnswer:")
	return domain.Prompt{System: systemPrompt, User: b.String()}
}
