package qa

import (
	"fmt"
	"strings"

	"clauselens/web/types"
)

const answerSystemPrompt = `You are a legal document assistant. Answer questions using ONLY the contract clauses provided as context. Never invent clause content or cite clauses that were not provided. When the context does not contain the answer, say so plainly.

Respond with ONLY a JSON object with these keys:
- "answer": your answer in plain language, referencing clauses as "Clause X (Category)"
- "used_clauses": array of the context clause numbers you relied on
- "confidence": 0.0 to 1.0, how well the context supports the answer

No text outside the JSON object.`

// buildAnswerMessages assembles the grounded prompt: rolling summary, recent
// conversation, clause context, then the question.
func buildAnswerMessages(question, languageName string, scored []ScoredClause, contextSummary string, recent []types.Message) []types.LLMMessage {
	messages := []types.LLMMessage{{Role: "system", Content: answerSystemPrompt}}

	if contextSummary != "" {
		messages = append(messages, types.LLMMessage{
			Role:    "system",
			Content: "Earlier conversation summary: " + contextSummary,
		})
	}
	for _, msg := range recent {
		role := msg.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		messages = append(messages, types.LLMMessage{Role: role, Content: msg.Content})
	}

	var sb strings.Builder
	sb.WriteString("Contract clauses:\n\n")
	for i, sc := range scored {
		sb.WriteString(fmt.Sprintf("[%d] Clause %d (%s):\n%s\n\n",
			i+1, sc.Clause.Order, sc.Clause.Category, sc.Clause.OriginalText))
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	if languageName != "" && languageName != "en" {
		sb.WriteString(fmt.Sprintf("\n\nAnswer in the language with ISO code %q.", languageName))
	}

	messages = append(messages, types.LLMMessage{Role: "user", Content: sb.String()})
	return messages
}
