package advisor

import (
	"fmt"
	"strings"

	"github.com/smartbeauty/skincare-rag/internal/llm"
	"github.com/smartbeauty/skincare-rag/internal/retriever"
)

// systemPrompt establishes the advisor persona. Recommendations must be
// grounded in the retrieved context, and the model is told to say so when the
// context does not cover the question.
const systemPrompt = `You are a helpful and knowledgeable skincare advisor.
Your goal is to recommend suitable products based on the user's skin concern and the provided product information.
When making recommendations:
1. List 1 to 3 products that best match the user's needs based on the context.
2. For each recommended product, clearly explain why it is suitable, referencing specific features, ingredients, or benefits mentioned in the product's context.
3. If the context for a retrieved product is insufficient to make a strong recommendation for the user's specific query, acknowledge that.
4. If no suitable products are found in the context for the query, state that you couldn't find specific recommendations from the provided information.
5. Be concise and focus on actionable advice.
Maintain a professional yet friendly tone. If asked about something unrelated to skincare, politely redirect to skin-related topics.`

// buildMessages assembles the grounded prompt: system persona, a bounded
// window of prior turns, then the new user message with retrieved context in
// rank order. History turns carry the original user text, not the augmented
// prompt, so the window stays compact.
func buildMessages(history []Turn, window int, retrieved retriever.Results, message string) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: systemPrompt}}

	start := len(history) - window
	if start < 0 {
		start = 0
	}
	for _, turn := range history[start:] {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.UserMessage},
			llm.Message{Role: "assistant", Content: turn.Answer},
		)
	}

	messages = append(messages, llm.Message{Role: "user", Content: groundedQuestion(retrieved, message)})
	return messages
}

// groundedQuestion renders the final user message. With no retrieved context
// (empty collection or degraded retrieval) the question is sent ungrounded and
// the model is told the catalog was unavailable.
func groundedQuestion(retrieved retriever.Results, message string) string {
	if len(retrieved) == 0 {
		return fmt.Sprintf(`No catalog information was retrieved for this question. Answer from general skincare knowledge and mention that you could not consult the product catalog.

User's Question/Concern: %s`, message)
	}

	var b strings.Builder
	b.WriteString("Context (Retrieved Product Information):\n")
	for _, result := range retrieved {
		fmt.Fprintf(&b, "%d. %s\n", result.Rank, result.Document.Content)
	}
	fmt.Fprintf(&b, "\nUser's Question/Concern: %s", message)
	return b.String()
}
