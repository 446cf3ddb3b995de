package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

func buildFallbackPrompt(question string, contextEntries []domain.QueryResult) string {
	if len(contextEntries) == 0 {
		return fmt.Sprintf(`You are a support assistant for a community chat.
No knowledge-base entry matched this question. Answer briefly and honestly;
if you are not sure, say so and suggest contacting a moderator.

Question:
%s
`, question)
	}

	var contextBuilder strings.Builder
	for idx, entry := range contextEntries {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] domain=%s score=%.3f\n%s\n\n",
			idx+1,
			entry.Domain,
			entry.Score,
			entry.Entry.Text,
		))
	}

	return fmt.Sprintf(`You are a support assistant for a community chat.
The knowledge-base snippets below are close but not confident matches.
Use them if relevant; do not invent facts beyond them. Answer briefly,
step by step. If the snippets do not cover the question, say so and
suggest contacting a moderator.

Question:
%s

Knowledge-base snippets:
%s`, question, contextBuilder.String())
}
