package chat

import "strings"

// cannedAnswer is a keyword-matched response used only when the language
// model is unavailable. Substituting a canned answer for a generation failure
// is this endpoint's decision; the orchestrator itself always surfaces the
// typed error.
type cannedAnswer struct {
	keywords []string
	answer   string
	sources  []Source
}

var cannedAnswers = []cannedAnswer{
	{
		keywords: []string{"oily", "greasy", "shine"},
		answer: "For oily skin, I recommend a gentle foaming cleanser with salicylic acid followed by a lightweight, oil-free moisturizer. Look for niacinamide, which helps regulate oil production and minimize the appearance of pores.",
		sources: []Source{
			{Content: "Salicylic acid helps unclog pores and reduce oil production", Similarity: 0.89, Name: "Salicylic Acid", Type: "product", Rank: 1},
			{Content: "Niacinamide regulates sebum production and minimizes pores", Similarity: 0.87, Name: "Niacinamide", Type: "product", Rank: 2},
		},
	},
	{
		keywords: []string{"sensitive", "red", "irritat"},
		answer: "For sensitive skin that gets red easily, focus on gentle, fragrance-free products with ceramides, hyaluronic acid, and colloidal oatmeal. Avoid alcohol, strong fragrances, and harsh acids.",
		sources: []Source{
			{Content: "Ceramides help restore and maintain the skin barrier", Similarity: 0.92, Name: "Ceramides", Type: "condition", Rank: 1},
		},
	},
	{
		keywords: []string{"aging", "wrinkle", "fine line"},
		answer: "For anti-aging, incorporate retinoids, vitamin C, and peptides into your routine, and always apply SPF 30+ sunscreen. Hyaluronic acid helps plump fine lines.",
		sources: []Source{
			{Content: "Retinoids boost collagen production and reduce fine lines", Similarity: 0.94, Name: "Retinoids", Type: "condition", Rank: 1},
		},
	},
	{
		keywords: []string{"dry", "flaky", "tight"},
		answer: "For very dry skin, use a cream-based cleanser and rich moisturizers with ceramides, glycerin, and hyaluronic acid. Apply moisturizer to damp skin to lock in hydration, and avoid hot water.",
		sources: []Source{
			{Content: "Ceramides and glycerin provide long-lasting hydration", Similarity: 0.91, Name: "Ceramides", Type: "product", Rank: 1},
		},
	},
}

const apologyAnswer = "I'm sorry, I'm experiencing technical difficulties answering right now. Please try again in a moment."

// fallbackAnswer returns a canned answer matched against the message, or a
// plain apology when nothing matches.
func fallbackAnswer(message string) (string, []Source) {
	lower := strings.ToLower(message)
	for _, canned := range cannedAnswers {
		for _, keyword := range canned.keywords {
			if strings.Contains(lower, keyword) {
				return canned.answer, canned.sources
			}
		}
	}
	return apologyAnswer, []Source{}
}
