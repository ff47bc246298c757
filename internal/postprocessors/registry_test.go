package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
)

// passthrough is a processor that returns fragments untouched.
type passthrough struct {
	name string
}

func (p *passthrough) Name() string { return p.name }
func (p *passthrough) Process(_ context.Context, _ *domain.SplitSource, fragments []domain.Fragment) ([]domain.Fragment, error) {
	return fragments, nil
}

func passthroughBuilder(name string) BuilderFunc {
	return func(cfg map[string]any) (driven.PostProcessor, error) {
		n := name
		if v, ok := cfg["name"].(string); ok {
			n = v
		}
		return &passthrough{name: n}, nil
	}
}

func TestRegistry_BuildPassesSettings(t *testing.T) {
	r := NewRegistry()
	r.Register("tidy", passthroughBuilder("tidy"))

	proc, err := r.Build("tidy", map[string]any{"name": "tidy-v2"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if proc.Name() != "tidy-v2" {
		t.Errorf("expected name 'tidy-v2', got %q", proc.Name())
	}
}

func TestRegistry_BuildUnknownListsKnownNames(t *testing.T) {
	r := NewRegistry()
	r.Register("stamp", passthroughBuilder("stamp"))
	r.Register("chunker", passthroughBuilder("chunker"))

	_, err := r.Build("stemmer", nil)
	if !errors.Is(err, domain.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if !strings.Contains(err.Error(), "chunker, stamp") {
		t.Errorf("expected known names in error, got %q", err.Error())
	}
}

func TestRegistry_BuilderErrorIsWrapped(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("bad settings")
	r.Register("broken", func(map[string]any) (driven.PostProcessor, error) { return nil, boom })

	_, err := r.Build("broken", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped builder error, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected processor name in error, got %q", err.Error())
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register("chunker", passthroughBuilder("first"))
	r.Register("chunker", passthroughBuilder("second"))

	proc, err := r.Build("chunker", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if proc.Name() != "second" {
		t.Errorf("expected later registration to win, got %q", proc.Name())
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	if len(r.Names()) != 0 {
		t.Fatalf("expected no names, got %v", r.Names())
	}
	if r.Has("stamp") {
		t.Error("expected Has to be false before registration")
	}

	r.Register("stamp", passthroughBuilder("stamp"))
	r.Register("chunker", passthroughBuilder("chunker"))

	if got := strings.Join(r.Names(), ","); got != "chunker,stamp" {
		t.Errorf("expected sorted names, got %s", got)
	}
	if !r.Has("stamp") {
		t.Error("expected Has to be true after registration")
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	if !r.Has("chunker") {
		t.Error("expected 'chunker' to be registered after RegisterDefaults")
	}
	if !r.Has("stamp") {
		t.Error("expected 'stamp' to be registered after RegisterDefaults")
	}
}

func TestBuild_DefaultOrder(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	p, err := Build(r, nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("expected 2 processors, got %d", p.Len())
	}

	src := &domain.SplitSource{
		DocumentID: "doc",
		VersionID:  "ver",
		Content:    "Boil water. Add noodles.",
		Metadata:   domain.FragmentMetadata{UserID: "alice", Category: "staple"},
	}
	fragments, err := p.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(fragments))
	}
	if fragments[0].Metadata.UserID != "alice" {
		t.Errorf("expected stamped owner, got %q", fragments[0].Metadata.UserID)
	}
}

func TestBuild_UnknownProcessor(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	if _, err := Build(r, []string{"chunker", "stemmer"}, nil); !errors.Is(err, domain.ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestBuildChunker_WithConfig(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	cfg := map[string]any{
		"chunk_size": 500,
		"overlap":    100,
	}

	proc, err := r.Build("chunker", cfg)
	if err != nil {
		t.Fatalf("Build chunker failed: %v", err)
	}

	if proc.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got %q", proc.Name())
	}
}

func TestBuildChunker_WithNilConfig(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	proc, err := r.Build("chunker", nil)
	if err != nil {
		t.Fatalf("Build chunker with nil config failed: %v", err)
	}

	if proc.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got %q", proc.Name())
	}
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      map[string]any
		key      string
		expected int
	}{
		{"int value", map[string]any{"size": 100}, "size", 100},
		{"int64 value", map[string]any{"size": int64(200)}, "size", 200},
		{"float64 value", map[string]any{"size": float64(300)}, "size", 300},
		{"string value", map[string]any{"size": "400"}, "size", 0},
		{"missing key", map[string]any{"other": 100}, "size", 0},
		{"nil config", nil, "size", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getIntFromConfig(tt.cfg, tt.key)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}
