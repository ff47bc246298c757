package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/logger"
	"github.com/custodia-labs/sous/internal/metadata"
	"github.com/custodia-labs/sous/internal/prompts"
)

// labelSimilarity is the minimum Jaro-Winkler similarity for snapping an
// LLM reply item onto a taxonomy label.
const labelSimilarity = 0.9

// QueryRouter classifies queries, rewrites vague ones and extracts metadata
// filters, each by delegating to the language model.
type QueryRouter struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	taxonomy    *metadata.Taxonomy
}

// NewQueryRouter creates a router. A nil llm routes everything as general.
func NewQueryRouter(llm driven.LLMService, taxonomy *metadata.Taxonomy) *QueryRouter {
	if taxonomy == nil {
		taxonomy = metadata.DefaultTaxonomy()
	}
	return &QueryRouter{llm: llm, taxonomy: taxonomy}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (r *QueryRouter) SetPromptStore(store driven.PromptStore) {
	r.promptStore = store
}

// Classify returns the query's intent. Unknown labels and failures are general.
func (r *QueryRouter) Classify(ctx context.Context, query string) domain.Intent {
	if r.llm == nil {
		return domain.IntentGeneral
	}
	prompt := fmt.Sprintf(prompts.Load(r.promptStore, driven.PromptClassify), query)
	reply, err := r.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 10})
	if err != nil {
		logger.Warn("classify failed, using general: %v", err)
		return domain.IntentGeneral
	}
	intent := domain.ParseIntent(firstWord(reply))
	logger.Debug("classified %q as %s", query, intent)
	return intent
}

// Rewrite returns a retrieval-oriented form of query. Specific queries come
// back unchanged; an empty reply or a failure returns the original.
func (r *QueryRouter) Rewrite(ctx context.Context, query string) string {
	if r.llm == nil {
		return query
	}
	prompt := fmt.Sprintf(prompts.Load(r.promptStore, driven.PromptQueryRewrite), query)
	reply, err := r.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 100, Temperature: 0.1})
	if err != nil {
		logger.Warn("rewrite failed, keeping query: %v", err)
		return query
	}
	rewritten := trimQuotes(reply)
	if rewritten == "" {
		return query
	}
	if rewritten != query {
		logger.Debug("rewrote %q -> %q", query, rewritten)
	}
	return rewritten
}

// ExtractFilter derives difficulty and category labels with two independent
// model calls. It returns nil, meaning broad search, when either call fails
// or yields no known label.
func (r *QueryRouter) ExtractFilter(ctx context.Context, query string) *domain.SearchFilter {
	if r.llm == nil {
		return nil
	}

	difficulties := r.extractLabels(ctx, driven.PromptDifficultyFilter, query, r.taxonomy.DifficultyLabels())
	if len(difficulties) == 0 {
		return nil
	}
	categories := r.extractLabels(ctx, driven.PromptCategoryFilter, query, r.taxonomy.CategoryLabels())
	if len(categories) == 0 {
		return nil
	}

	logger.Debug("filter: categories=%v difficulties=%v", categories, difficulties)
	return &domain.SearchFilter{Categories: categories, Difficulties: difficulties}
}

func (r *QueryRouter) extractLabels(ctx context.Context, name, query string, allowed []string) []string {
	prompt := fmt.Sprintf(prompts.Load(r.promptStore, name), strings.Join(allowed, ", "), query)
	reply, err := r.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 60})
	if err != nil {
		logger.Warn("%s extraction failed: %v", name, err)
		return nil
	}
	return snapLabels(parseList(reply), allowed)
}

// parseList splits a comma separated reply into trimmed, lowercased items.
func parseList(reply string) []string {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '，' || r == '、' || r == '\n' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(trimQuotes(strings.Trim(f, " \t[]")))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// snapLabels maps items onto allowed labels, dropping unknown items.
// Result order follows first appearance and has no duplicates.
func snapLabels(items, allowed []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		label := closestLabel(item, allowed)
		if label != "" && !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

func closestLabel(item string, allowed []string) string {
	best, bestScore := "", float32(0)
	for _, label := range allowed {
		if item == label {
			return label
		}
		score, err := edlib.StringsSimilarity(item, label, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	if bestScore >= labelSimilarity {
		return best
	}
	return ""
}

// firstWord normalizes a classification reply to its first bare word.
func firstWord(reply string) string {
	fields := strings.FieldsFunc(strings.ToLower(reply), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func trimQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\"'`“”‘’「」"))
}
