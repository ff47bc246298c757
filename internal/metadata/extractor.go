package metadata

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// Metadata is what the extractor derives from one document.
type Metadata struct {
	Category   string
	DishName   string
	Difficulty string
	Title      string
}

// Extractor derives recipe metadata from an object name and its content.
type Extractor struct {
	taxonomy *Taxonomy
	md       goldmark.Markdown
}

// NewExtractor creates an extractor over the given taxonomy.
// A nil taxonomy uses DefaultTaxonomy.
func NewExtractor(t *Taxonomy) *Extractor {
	if t == nil {
		t = DefaultTaxonomy()
	}
	return &Extractor{taxonomy: t, md: goldmark.New()}
}

// Taxonomy returns the extractor's taxonomy.
func (e *Extractor) Taxonomy() *Taxonomy {
	return e.taxonomy
}

// Extract derives category, dish name, difficulty and title.
func (e *Extractor) Extract(objectName, content string) Metadata {
	dish := domain.DishNameOf(objectName)
	title := e.title(content)
	if title == "" {
		title = dish
	}
	return Metadata{
		Category:   e.taxonomy.Category(objectName),
		DishName:   dish,
		Difficulty: e.taxonomy.Difficulty(content),
		Title:      title,
	}
}

// Fragment builds the fragment metadata bag for an owner and source location.
func (m Metadata) Fragment(ownerID, source string) domain.FragmentMetadata {
	return domain.FragmentMetadata{
		UserID:     ownerID,
		Category:   m.Category,
		DishName:   m.DishName,
		Difficulty: m.Difficulty,
		Source:     source,
	}
}

// title returns the text of the first markdown heading.
func (e *Extractor) title(content string) string {
	src := []byte(content)
	doc := e.md.Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		title = strings.TrimSpace(inlineText(h, src))
		if title == "" {
			return ast.WalkContinue, nil
		}
		return ast.WalkStop, nil
	})
	return title
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}
