package retrieval

import (
	"fmt"
	"strings"

	"ragchat/internal/adapter/pgvector"
)

// BuildPrompt assembles the grounding prompt: retrieved chunks in the order
// supplied (relevance order, most similar first), each labeled with a
// 1-based source index, followed by the instruction block and the verbatim
// question. Pure and deterministic; it never truncates or reorders chunks.
// Context budgeting happens upstream via the retrieval k.
func BuildPrompt(query string, chunks []pgvector.SearchResult) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("[Source %d]\n%s", i+1, strings.TrimSpace(c.Content)))
	}
	context := strings.Join(parts, "\n\n")

	return fmt.Sprintf(`You are a factual assistant.
Answer ONLY using the provided context.
If the answer is not in the context, say: "I don't have enough information to answer that."

Context:
%s

Question:
%s

Answer:
`, context, query)
}
