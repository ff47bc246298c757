// Package metadata derives content hashes and recipe metadata from raw text.
//
// The same Extractor runs at ingestion time and at query time so that index
// metadata and reconstructed parent metadata always agree.
package metadata

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CategoryOther is assigned when no category keyword matches.
const CategoryOther = "other"

// DefaultCategories are the recipe categories in match order.
var DefaultCategories = []string{
	"meat_dish", "vegetable_dish", "soup",
	"dessert", "breakfast", "staple",
	"aquatic", "condiment", "drink",
}

// DefaultDifficulties maps star patterns to labels, longest pattern first.
var DefaultDifficulties = [][2]string{
	{"★★★★★", "very difficult"},
	{"★★★★", "difficult"},
	{"★★★", "medium"},
	{"★★", "easy"},
	{"★", "very easy"},
}

// Taxonomy is the immutable category and difficulty configuration.
// Build it once at start-up and pass it to the Extractor.
type Taxonomy struct {
	categories   *orderedmap.OrderedMap[string, string]
	difficulties *orderedmap.OrderedMap[string, string]
}

// NewTaxonomy builds a taxonomy. categories maps path keyword to label in
// match order; difficulties maps star pattern to label and is re-ordered
// longest pattern first so that "★★★" never matches as "★".
func NewTaxonomy(categories, difficulties [][2]string) *Taxonomy {
	t := &Taxonomy{
		categories:   orderedmap.New[string, string](),
		difficulties: orderedmap.New[string, string](),
	}
	for _, kv := range categories {
		if kv[0] == "" {
			continue
		}
		label := kv[1]
		if label == "" {
			label = kv[0]
		}
		t.categories.Set(kv[0], label)
	}

	sorted := make([][2]string, 0, len(difficulties))
	for _, kv := range difficulties {
		if kv[0] != "" {
			sorted = append(sorted, kv)
		}
	}
	// Stable insertion sort by pattern length, descending.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len([]rune(sorted[j][0])) > len([]rune(sorted[j-1][0])); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	for _, kv := range sorted {
		t.difficulties.Set(kv[0], kv[1])
	}
	return t
}

// DefaultTaxonomy returns the built-in recipe taxonomy.
func DefaultTaxonomy() *Taxonomy {
	cats := make([][2]string, len(DefaultCategories))
	for i, c := range DefaultCategories {
		cats[i] = [2]string{c, c}
	}
	return NewTaxonomy(cats, DefaultDifficulties)
}

// Category returns the label of the first keyword contained in objectName.
func (t *Taxonomy) Category(objectName string) string {
	for pair := t.categories.Oldest(); pair != nil; pair = pair.Next() {
		if strings.Contains(objectName, pair.Key) {
			return pair.Value
		}
	}
	return CategoryOther
}

// Difficulty returns the label of the first star pattern found in content.
func (t *Taxonomy) Difficulty(content string) string {
	for pair := t.difficulties.Oldest(); pair != nil; pair = pair.Next() {
		if strings.Contains(content, pair.Key) {
			return pair.Value
		}
	}
	return ""
}

// CategoryLabels returns the distinct category labels in order.
func (t *Taxonomy) CategoryLabels() []string {
	return distinctValues(t.categories)
}

// DifficultyLabels returns the distinct difficulty labels, hardest first.
func (t *Taxonomy) DifficultyLabels() []string {
	return distinctValues(t.difficulties)
}

func distinctValues(m *orderedmap.OrderedMap[string, string]) []string {
	seen := make(map[string]bool, m.Len())
	out := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		if !seen[pair.Value] {
			seen[pair.Value] = true
			out = append(out, pair.Value)
		}
	}
	return out
}
