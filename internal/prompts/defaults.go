// Package prompts holds the built-in prompt templates.
// Users can override any of them through the file prompt store.
package prompts

import "github.com/custodia-labs/sous/internal/core/ports/driven"

// Defaults maps prompt names to built-in templates.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var Defaults = map[string]string{
	driven.PromptClassify: `Classify the user's cooking question as exactly one of:

1. list - the user wants dish names or recommendations only.
   Examples: recommend a few vegetarian dishes, what Sichuan dishes are there, give me 3 easy dishes
2. detail - the user wants how to make something, steps or ingredients.
   Examples: how do I make kung pao chicken, what goes into braised pork
3. general - anything else.
   Examples: what is Sichuan cuisine, knife skills, nutrition

Reply with only the label: list, detail or general.

Question: %s
Label:`,

	driven.PromptQueryRewrite: `You rewrite recipe search queries. If the query names a specific dish, a specific
cooking question or a specific technique, return it unchanged. If it is vague
(e.g. "cooking", "something tasty", "recommend a dish"), rewrite it into a short,
specific recipe search query. Keep the meaning, prefer easy home cooking, be concise.

Examples:
- "cooking" -> "easy home-style recipes"
- "any drinks?" -> "simple drink recipes"
- "how do I make kung pao chicken" -> "how do I make kung pao chicken"

Return ONLY the final query.

Query: %s
Final query:`,

	driven.PromptDifficultyFilter: `Pick the difficulty levels the user is asking for from this list: %s.

- hard, challenging -> very difficult, difficult
- average, medium -> medium
- easy, beginner, quick -> easy, very easy
- not mentioned or anything goes -> every level

Reply with only the labels, comma separated.

User input: %s
Labels:`,

	driven.PromptCategoryFilter: `Pick one or more dish categories for the user's request from this list: %s.

- If the request fits several categories, return all of them.
- If the request is unrelated to food or too vague, return every category.

Reply with only the labels, comma separated.

User input: %s
Labels:`,

	driven.PromptDetailAnswer: `You are a cooking tutor. Using the recipes below, give step-by-step guidance.

Recipes:
%s

Question: %s

Structure the answer as: a short introduction with the difficulty, the ingredients
with quantities, numbered steps with rough timings, and tips only if the recipe
has useful ones. Do not pad with unrelated content.

Answer:`,

	driven.PromptGeneralAnswer: `You are a cooking assistant. Answer the question using the recipes below.
If the information is insufficient, say so.

Recipes:
%s

Question: %s

Answer:`,
}

// Load returns the named template from store, falling back to the built-in default.
func Load(store driven.PromptStore, name string) string {
	if store != nil {
		if p, err := store.Load(name); err == nil && p != "" {
			return p
		}
	}
	return Defaults[name]
}
