// Package chunker provides an overlapping window text chunking processor.
package chunker

import (
	"context"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/sous/internal/core/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 400

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 100

// DefaultMinChunkSize is the smallest fragment emitted on its own.
const DefaultMinChunkSize = 5

// Processor splits version content into overlapping rune windows.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize    int
	overlap      int
	minChunkSize int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithMinChunkSize sets the minimum fragment size in runes.
// Shorter trailing text is merged into the previous fragment.
func WithMinChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.minChunkSize = size
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:    DefaultChunkSize,
		overlap:      DefaultChunkOverlap,
		minChunkSize: DefaultMinChunkSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}
	if p.minChunkSize > p.chunkSize {
		p.minChunkSize = p.chunkSize
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the version content into fragments.
// Input fragments are ignored; this processor creates new fragments from the content.
func (p *Processor) Process(_ context.Context, src *domain.SplitSource, _ []domain.Fragment) ([]domain.Fragment, error) {
	if src.Content == "" {
		// Empty content produces no fragments
		return nil, nil
	}

	windows := p.windows([]rune(src.Content))
	fragments := make([]domain.Fragment, 0, len(windows))

	for i, text := range windows {
		fragments = append(fragments, domain.Fragment{
			ID:               uuid.New().String(),
			ParentDocumentID: src.DocumentID,
			ParentVersionID:  src.VersionID,
			SequenceIndex:    i,
			DocType:          domain.DocTypeChild,
			Content:          text,
		})
	}

	return fragments, nil
}

// span is a half-open rune range [start, end).
type span struct {
	start, end int
}

// windows cuts text into overlapping windows. Non-empty input always yields
// at least one window.
func (p *Processor) windows(text []rune) []string {
	var spans []span

	start := 0
	for start < len(text) {
		end := start + p.chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = p.cutPoint(text, start, end)
		}

		// A short tail is folded into the previous window.
		if n := len(spans); n > 0 && end == len(text) && countVisible(text[spans[n-1].end:end]) < p.minChunkSize {
			spans[n-1].end = end
			break
		}

		spans = append(spans, span{start: start, end: end})
		if end == len(text) {
			break
		}

		next := end - p.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = string(text[sp.start:sp.end])
	}
	return out
}

// cutPoint moves end back to a paragraph or sentence boundary in the back
// half of the window, if one exists.
func (p *Processor) cutPoint(text []rune, start, end int) int {
	floor := start + p.chunkSize/2
	for i := end - 1; i > floor; i-- {
		if text[i] == '\n' && text[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > floor; i-- {
		if isSentenceEnd(text[i]) {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n', '。', '！', '？', '；':
		return true
	}
	return false
}

func countVisible(text []rune) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
