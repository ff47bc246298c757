package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptClassify labels a query as list, detail or general.
	// The prompt template expects a %s placeholder for the query.
	PromptClassify = "classify"

	// PromptQueryRewrite turns a vague query into a retrieval query.
	// The prompt template expects a %s placeholder for the original query.
	PromptQueryRewrite = "query_rewrite"

	// PromptDifficultyFilter extracts difficulty labels.
	// The prompt template expects %s (allowed labels) and %s (query) placeholders.
	PromptDifficultyFilter = "difficulty_filter"

	// PromptCategoryFilter extracts category labels.
	// The prompt template expects %s (allowed labels) and %s (query) placeholders.
	PromptCategoryFilter = "category_filter"

	// PromptDetailAnswer answers with step-by-step instructions.
	// The prompt template expects %s (context) and %s (query) placeholders.
	PromptDetailAnswer = "detail_answer"

	// PromptGeneralAnswer answers free form.
	// The prompt template expects %s (context) and %s (query) placeholders.
	PromptGeneralAnswer = "general_answer"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
