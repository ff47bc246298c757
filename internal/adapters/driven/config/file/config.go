package file

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sous/internal/core/domain"
	"github.com/custodia-labs/sous/internal/metadata"
)

// Environment variables that override secrets in the config file.
const (
	EnvOpenAIAPIKey    = "SOUS_OPENAI_API_KEY"
	EnvMinioAccessKey  = "SOUS_MINIO_ACCESS_KEY"
	EnvMinioSecretKey  = "SOUS_MINIO_SECRET_KEY"
	EnvPostgresDSN     = "SOUS_POSTGRES_DSN"
	EnvQdrantAPIKey    = "SOUS_QDRANT_API_KEY"
	EnvConfigPath      = "SOUS_CONFIG"
	redacted           = "********"
	defaultDirName     = ".sous"
	defaultConfigName  = "config.toml"
	defaultBucket      = "recipes"
	defaultMetricsAddr = "127.0.0.1:9464"
)

// Adapter types.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	ObjectStoreFilesystem = "filesystem"
	ObjectStoreMinio      = "minio"

	VectorMemory = "memory"
	VectorQdrant = "qdrant"

	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config is the application configuration.
type Config struct {
	// DataDir holds the sqlite database and, by default, the filesystem object store.
	DataDir   string `toml:"data_dir"`
	PromptDir string `toml:"prompt_dir"`

	Storage     StorageConfig     `toml:"storage"`
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Vector      VectorConfig      `toml:"vector"`
	Embedding   ProviderConfig    `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	Chunker     ChunkerConfig     `toml:"chunker"`
	Sync        SyncConfig        `toml:"sync"`
	Taxonomy    TaxonomyConfig    `toml:"taxonomy"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Type string `toml:"type"`
	DSN  string `toml:"dsn,omitempty"`
}

// ObjectStoreConfig selects where recipe files live.
type ObjectStoreConfig struct {
	Type   string `toml:"type"`
	Bucket string `toml:"bucket"`

	// Root is the filesystem store's base directory; buckets are sub-directories.
	Root string `toml:"root,omitempty"`

	Endpoint  string `toml:"endpoint,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
	UseSSL    bool   `toml:"use_ssl,omitempty"`
	Region    string `toml:"region,omitempty"`
}

// VectorConfig selects the vector index.
type VectorConfig struct {
	Type       string `toml:"type"`
	URL        string `toml:"url,omitempty"`
	Collection string `toml:"collection,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// ProviderConfig configures a model provider.
type ProviderConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model,omitempty"`
	BaseURL    string `toml:"base_url,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Dimensions int    `toml:"dimensions,omitempty"`
}

// LLMConfig configures the language model.
type LLMConfig struct {
	ProviderConfig
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
}

// ChunkerConfig configures the post-processor pipeline.
type ChunkerConfig struct {
	Processors   []string `toml:"processors,omitempty"`
	ChunkSize    int      `toml:"chunk_size"`
	Overlap      int      `toml:"overlap"`
	MinChunkSize int      `toml:"min_chunk_size"`
}

// SyncConfig configures index synchronisation.
type SyncConfig struct {
	BatchSize   int `toml:"batch_size"`
	Parallelism int `toml:"parallelism"`
}

// TaxonomyConfig overrides the built-in categories and difficulties.
type TaxonomyConfig struct {
	Categories   []CategoryRule   `toml:"categories,omitempty"`
	Difficulties []DifficultyRule `toml:"difficulties,omitempty"`
}

// CategoryRule maps a path keyword to a category label.
type CategoryRule struct {
	Keyword string `toml:"keyword"`
	Label   string `toml:"label"`
}

// DifficultyRule maps a star pattern to a difficulty label.
type DifficultyRule struct {
	Pattern string `toml:"pattern"`
	Label   string `toml:"label"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file exists.
// home is the base for default paths.
func Default(home string) Config {
	base := filepath.Join(home, defaultDirName)
	return Config{
		DataDir:   filepath.Join(base, "data"),
		PromptDir: filepath.Join(base, "prompts"),
		Storage:   StorageConfig{Type: StorageSQLite},
		ObjectStore: ObjectStoreConfig{
			Type:   ObjectStoreFilesystem,
			Bucket: defaultBucket,
			Root:   filepath.Join(base, "objects"),
		},
		Vector:    VectorConfig{Type: VectorMemory},
		Embedding: ProviderConfig{Provider: ProviderNone},
		LLM:       LLMConfig{ProviderConfig: ProviderConfig{Provider: ProviderNone}},
		Chunker:   ChunkerConfig{ChunkSize: 400, Overlap: 100, MinChunkSize: 5},
		Sync:      SyncConfig{BatchSize: 100, Parallelism: 4},
		Metrics:   MetricsConfig{Addr: defaultMetricsAddr},
	}
}

// DefaultPath returns $SOUS_CONFIG or ~/.sous/config.toml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, defaultDirName, defaultConfigName), nil
}

// LoadEnv loads .env files into the process environment.
// Missing files are ignored; existing variables win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the config at path over the defaults, then applies environment
// overrides. A missing file yields the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("get home directory: %w", err)
	}
	cfg := Default(home)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return Config{}, fmt.Errorf("%w: %s: %s", domain.ErrInvalidInput, path, strict.String())
			}
			return Config{}, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		if c.Embedding.Provider == ProviderOpenAI {
			c.Embedding.APIKey = v
		}
		if c.LLM.Provider == ProviderOpenAI {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv(EnvMinioAccessKey); v != "" {
		c.ObjectStore.AccessKey = v
	}
	if v := os.Getenv(EnvMinioSecretKey); v != "" {
		c.ObjectStore.SecretKey = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv(EnvQdrantAPIKey); v != "" {
		c.Vector.APIKey = v
	}
}

// Validate checks adapter types and required settings.
func (c *Config) Validate() error {
	var errs []error
	check := func(section, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%w: %s %q (want one of %s)",
			domain.ErrUnsupportedType, section, value, strings.Join(allowed, ", ")))
	}
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg))
		}
	}

	check("storage.type", c.Storage.Type, StorageSQLite, StoragePostgres, StorageMemory)
	check("object_store.type", c.ObjectStore.Type, ObjectStoreFilesystem, ObjectStoreMinio)
	check("vector.type", c.Vector.Type, VectorMemory, VectorQdrant)
	check("embedding.provider", c.Embedding.Provider, ProviderNone, ProviderOpenAI, ProviderOllama)
	check("llm.provider", c.LLM.Provider, ProviderNone, ProviderOpenAI, ProviderOllama)

	require(c.ObjectStore.Bucket != "", "object_store.bucket is required")
	if c.Storage.Type == StoragePostgres {
		require(c.Storage.DSN != "", "storage.dsn is required for postgres")
	}
	if c.ObjectStore.Type == ObjectStoreMinio {
		require(c.ObjectStore.Endpoint != "", "object_store.endpoint is required for minio")
	}
	if c.Vector.Type == VectorQdrant {
		require(c.Vector.URL != "", "vector.url is required for qdrant")
		require(c.Embedding.Provider != ProviderNone, "qdrant needs an embedding provider")
	}
	require(c.Chunker.ChunkSize > 0, "chunker.chunk_size must be positive")
	require(c.Chunker.Overlap >= 0 && c.Chunker.Overlap < c.Chunker.ChunkSize,
		"chunker.overlap must be in [0, chunk_size)")
	require(c.Sync.BatchSize > 0, "sync.batch_size must be positive")
	require(c.Sync.Parallelism > 0, "sync.parallelism must be positive")

	return errors.Join(errs...)
}

// PipelineSettings returns the post-processor names and per-processor settings.
func (c *Config) PipelineSettings() ([]string, map[string]map[string]any) {
	return c.Chunker.Processors, map[string]map[string]any{
		"chunker": {
			"chunk_size":     c.Chunker.ChunkSize,
			"overlap":        c.Chunker.Overlap,
			"min_chunk_size": c.Chunker.MinChunkSize,
		},
	}
}

// BuildTaxonomy returns the configured taxonomy, or the built-in one when
// neither list is set.
func (c *Config) BuildTaxonomy() *metadata.Taxonomy {
	if len(c.Taxonomy.Categories) == 0 && len(c.Taxonomy.Difficulties) == 0 {
		return metadata.DefaultTaxonomy()
	}
	def := metadata.DefaultTaxonomy()

	var cats [][2]string
	if len(c.Taxonomy.Categories) == 0 {
		for _, label := range def.CategoryLabels() {
			cats = append(cats, [2]string{label, label})
		}
	}
	for _, r := range c.Taxonomy.Categories {
		cats = append(cats, [2]string{r.Keyword, r.Label})
	}

	diffs := metadata.DefaultDifficulties
	if len(c.Taxonomy.Difficulties) > 0 {
		diffs = make([][2]string, len(c.Taxonomy.Difficulties))
		for i, r := range c.Taxonomy.Difficulties {
			diffs[i] = [2]string{r.Pattern, r.Label}
		}
	}
	return metadata.NewTaxonomy(cats, diffs)
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&c.Storage.DSN)
	mask(&c.ObjectStore.AccessKey)
	mask(&c.ObjectStore.SecretKey)
	mask(&c.Vector.APIKey)
	mask(&c.Embedding.APIKey)
	mask(&c.LLM.APIKey)
	return c
}

// Encode renders cfg as TOML.
func Encode(cfg Config) (string, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}
