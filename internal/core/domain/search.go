package domain

import "strings"

// Intent is the classification of a user query.
type Intent string

const (
	// IntentList asks for an enumeration of dishes.
	IntentList Intent = "list"

	// IntentDetail asks how to make a specific dish.
	IntentDetail Intent = "detail"

	// IntentGeneral is everything else, and the fallback.
	IntentGeneral Intent = "general"
)

// ParseIntent maps a label onto an Intent. Unknown labels are general.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentList:
		return IntentList
	case IntentDetail:
		return IntentDetail
	default:
		return IntentGeneral
	}
}

// SearchFilter constrains retrieval. A fragment matches when its category is in
// Categories and its difficulty is in Difficulties. A nil *SearchFilter matches all.
type SearchFilter struct {
	Categories   []string
	Difficulties []string
}

// Matches reports whether metadata satisfies the filter.
func (f *SearchFilter) Matches(m FragmentMetadata) bool {
	if f == nil {
		return true
	}
	return containsString(f.Categories, m.Category) && containsString(f.Difficulties, m.Difficulty)
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Intent         Intent
	RewrittenQuery string
	Filter         *SearchFilter
	Parents        []ParentDocument
	Answer         string
}
