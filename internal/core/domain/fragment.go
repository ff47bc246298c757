package domain

// DocType distinguishes whole-document entries from chunks in the index.
type DocType string

const (
	// DocTypeParent marks a reconstructed whole document.
	DocTypeParent DocType = "parent"

	// DocTypeChild marks a fragment produced by the chunker.
	DocTypeChild DocType = "child"
)

// FragmentMetadata is the metadata bag stored alongside every fragment.
type FragmentMetadata struct {
	UserID     string
	Category   string
	DishName   string
	Difficulty string
	Source     string
}

// Fragment is a bounded slice of a document version's text.
// Fragments are immutable once created; they are superseded, never edited.
type Fragment struct {
	// ID is globally unique and never reused.
	ID string

	// ParentDocumentID links to the DocumentRecord.
	ParentDocumentID string

	// ParentVersionID links to the DocumentVersion that produced it.
	ParentVersionID string

	// SequenceIndex is the position within the split, starting at 0.
	SequenceIndex int

	DocType DocType

	// Content is the fragment text.
	Content string

	Metadata FragmentMetadata

	// Score is the similarity score reported by the vector index (search results only).
	Score float64
}

// ParentDocument is a whole source document rebuilt from matched fragments.
type ParentDocument struct {
	DocumentID     string
	SourceLocation string
	Title          string
	Content        string
	Metadata       FragmentMetadata

	// Hits is the number of matched fragments that belong to this document.
	Hits int
}

// SplitSource is the input to the chunking pipeline: one version's text
// plus the metadata every fragment inherits.
type SplitSource struct {
	DocumentID string
	VersionID  string
	Content    string
	Metadata   FragmentMetadata
}
