// Package generation turns retrieved recipes into the answer shown to the user.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/prompts"
)

// NothingFound is returned when retrieval produced no recipes.
const NothingFound = "Sorry, I couldn't find any matching recipes."

// maxListed is how many dishes a list answer names before summarising the rest.
const maxListed = 3

// unknownDish labels parents without a dish name.
const unknownDish = "Unknown dish"

// Verify interface compliance.
var (
	_ driven.Generator        = (*Generator)(nil)
	_ driven.PromptStoreAware = (*Generator)(nil)
)

// Generator answers list queries deterministically and the rest with the LLM.
type Generator struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	opts        driven.GenerateOptions
}

// New creates a generator. llm may be nil, in which case only list
// and empty answers can be produced.
func New(llm driven.LLMService) *Generator {
	return &Generator{
		llm:  llm,
		opts: driven.GenerateOptions{Temperature: 0.2},
	}
}

// SetPromptStore overrides the built-in answer prompts.
func (g *Generator) SetPromptStore(store driven.PromptStore) {
	g.promptStore = store
}

// Generate produces the answer for req.
func (g *Generator) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	if len(req.Parents) == 0 {
		return NothingFound, nil
	}
	switch req.Intent {
	case domain.IntentList:
		return ListAnswer(req.Parents), nil
	case domain.IntentDetail:
		return g.complete(ctx, driven.PromptDetailAnswer, req)
	default:
		return g.complete(ctx, driven.PromptGeneralAnswer, req)
	}
}

func (g *Generator) complete(ctx context.Context, prompt string, req driven.GenerationRequest) (string, error) {
	if g.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	tmpl := prompts.Load(g.promptStore, prompt)
	out, err := g.llm.Generate(ctx, fmt.Sprintf(tmpl, FormatContext(req.Parents), req.Query), g.opts)
	if err != nil {
		return "", domain.Dependency("generating answer", err)
	}
	return strings.TrimSpace(out), nil
}

// ListAnswer enumerates distinct dish names in parent order.
func ListAnswer(parents []domain.ParentDocument) string {
	var names []string
	seen := make(map[string]bool)
	for _, p := range parents {
		name := p.Metadata.DishName
		if name == "" {
			name = unknownDish
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	if len(names) == 1 {
		return "Recommended: " + names[0]
	}

	var b strings.Builder
	b.WriteString("Recommended dishes:")
	for i, name := range names {
		if i == maxListed {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, name)
	}
	if extra := len(names) - maxListed; extra > 0 {
		fmt.Fprintf(&b, "\n\nand %d more", extra)
	}
	return b.String()
}

// FormatContext renders parents as the recipe context of an answer prompt.
func FormatContext(parents []domain.ParentDocument) string {
	sections := make([]string, 0, len(parents))
	for _, p := range parents {
		title := p.Title
		if title == "" {
			title = p.Metadata.DishName
		}
		var b strings.Builder
		fmt.Fprintf(&b, "## %s\n", title)
		if p.Metadata.Category != "" || p.Metadata.Difficulty != "" {
			fmt.Fprintf(&b, "Category: %s | Difficulty: %s\n", p.Metadata.Category, p.Metadata.Difficulty)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(p.Content))
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n\n---\n\n")
}
