package postprocessors

import (
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/postprocessors/chunker"
	"github.com/custodia-labs/sous/internal/postprocessors/stamp"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("stamp", buildStamp)
}

// DefaultOrder is the processor order used when configuration names none.
var DefaultOrder = []string{"chunker", "stamp"}

// Build assembles a pipeline from processor names and per-processor config.
func Build(r *Registry, names []string, cfg map[string]map[string]any) (*Pipeline, error) {
	if len(names) == 0 {
		names = DefaultOrder
	}
	p := NewPipeline()
	for _, name := range names {
		proc, err := r.Build(name, cfg[name])
		if err != nil {
			return nil, err
		}
		p.Add(proc)
	}
	return p, nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Runes per chunk (default: 400)
//   - overlap (int): Overlapping runes between chunks (default: 100)
//   - min_chunk_size (int): Smallest standalone fragment (default: 5)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
		}
		if size := getIntFromConfig(cfg, "min_chunk_size"); size > 0 {
			opts = append(opts, chunker.WithMinChunkSize(size))
		}
	}

	return chunker.New(opts...), nil
}

func buildStamp(_ map[string]any) (driven.PostProcessor, error) {
	return stamp.New(), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
