// Package config loads and validates the ambient configuration: a
// project-local YAML file layered over built-in defaults and environment
// variable overrides. Structure and loading style (NewConfig defaults,
// Load(dir) merging a YAML file then env vars then Validate) are grounded
// on the teacher's internal/config/config.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// APIProvider selects where generation requests are sent.
type APIProvider string

const (
	APIProviderLocal     APIProvider = "local"
	APIProviderAnthropic APIProvider = "anthropic"
	APIProviderOpenAI    APIProvider = "openai"
)

// Config is the complete ambient configuration.
type Config struct {
	DataDir        string         `yaml:"data_dir" json:"data_dir"`
	IgnorePatterns []string       `yaml:"ignore_patterns" json:"ignore_patterns"`
	Indexing       IndexingConfig `yaml:"indexing" json:"indexing"`
	Query          QueryConfig    `yaml:"query" json:"query"`
	Watcher        WatcherConfig  `yaml:"watcher" json:"watcher"`
	Resource       ResourceConfig `yaml:"resource" json:"resource"`
	LLM            LLMConfig      `yaml:"llm" json:"llm"`
	API            APIConfig      `yaml:"api" json:"api"`
}

// IndexingConfig tunes the indexer (C11).
type IndexingConfig struct {
	MaxFileSizeBytes   int64 `yaml:"max_file_size_bytes" json:"max_file_size_bytes"`
	BatchSize          int   `yaml:"batch_size" json:"batch_size"`
	ThrottleMs         int   `yaml:"throttle_ms" json:"throttle_ms"`
	IncludeDependencies bool `yaml:"include_dependencies" json:"include_dependencies"`
}

// QueryConfig tunes the retriever (C9) and prompt assembly (C10/C11).
type QueryConfig struct {
	TopK          int     `yaml:"top_k" json:"top_k"`
	EfSearch      int     `yaml:"ef_search" json:"ef_search"`
	ContextTokens int     `yaml:"context_tokens" json:"context_tokens"`
	HistoryTurns  int     `yaml:"history_turns" json:"history_turns"`
	Temperature   float32 `yaml:"temperature" json:"temperature"`
	MaxTokens     int     `yaml:"max_tokens" json:"max_tokens"`
	Rerank        bool    `yaml:"rerank" json:"rerank"`
	BroadK        int     `yaml:"broad_k" json:"broad_k"`
	HybridSearch  bool    `yaml:"hybrid_search" json:"hybrid_search"`
}

// WatcherConfig tunes the filesystem watcher (C12).
type WatcherConfig struct {
	DebounceMs int `yaml:"debounce_ms" json:"debounce_ms"`
}

// ResourceConfig bounds the ML worker's resource usage.
type ResourceConfig struct {
	NiceLevel     int `yaml:"nice_level" json:"nice_level"`
	IdleTimeoutMs int `yaml:"idle_timeout_ms" json:"idle_timeout_ms"`
	MemoryBudgetMB int `yaml:"memory_budget_mb" json:"memory_budget_mb"`
}

// LLMConfig describes the local model the ML worker loads.
type LLMConfig struct {
	ModelFilename string `yaml:"model_filename" json:"model_filename"`
	ModelURL      string `yaml:"model_url" json:"model_url"`
	Threads       int    `yaml:"threads" json:"threads"`
	ContextSize   int    `yaml:"context_size" json:"context_size"`
}

// APIConfig describes the generation backend.
type APIConfig struct {
	Provider       APIProvider `yaml:"provider" json:"provider"`
	Model          string      `yaml:"model" json:"model"`
	MaxTokens      int         `yaml:"max_tokens" json:"max_tokens"`
	RedactSecrets  bool        `yaml:"redact_secrets" json:"redact_secrets"`
	LogRedactions  bool        `yaml:"log_redactions" json:"log_redactions"`
}

// allowedModelURLHosts are the domains an llm.model_url may point at.
var allowedModelURLHosts = map[string]bool{
	"huggingface.co":        true,
	"cdn-lfs.huggingface.co": true,
}

// defaultIgnorePatterns mirrors common VCS/build-artifact directories.
var defaultIgnorePatterns = []string{
	".git/", "node_modules/", "target/", "dist/", "build/", "vendor/", ".venv/",
}

// NewConfig returns the built-in default configuration.
func NewConfig() *Config {
	return &Config{
		DataDir:        defaultDataDir(),
		IgnorePatterns: append([]string(nil), defaultIgnorePatterns...),
		Indexing: IndexingConfig{
			MaxFileSizeBytes:    1 << 20, // 1 MiB
			BatchSize:           256,
			ThrottleMs:          0,
			IncludeDependencies: false,
		},
		Query: QueryConfig{
			TopK:          10,
			EfSearch:      64,
			ContextTokens: 2000,
			HistoryTurns:  6,
			Temperature:   0.2,
			MaxTokens:     1024,
			Rerank:        true,
			BroadK:        50,
			HybridSearch:  true,
		},
		Watcher: WatcherConfig{
			DebounceMs: 500,
		},
		Resource: ResourceConfig{
			NiceLevel:      10,
			IdleTimeoutMs:  5 * 60 * 1000,
			MemoryBudgetMB: 2048,
		},
		LLM: LLMConfig{
			ModelFilename: "",
			ModelURL:      "",
			Threads:       4,
			ContextSize:   4096,
		},
		API: APIConfig{
			Provider:      APIProviderLocal,
			Model:         "",
			MaxTokens:     1024,
			RedactSecrets: true,
			LogRedactions: false,
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "srag")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".srag"
	}
	return filepath.Join(home, ".local", "share", "srag")
}

// Load builds the configuration for a project directory: start from
// defaults, merge a project-local srag.yaml/srag.yml if present, apply
// environment overrides, then validate.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"srag.yaml", "srag.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays other's non-zero fields onto c.
func (c *Config) mergeWith(other *Config) {
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if len(other.IgnorePatterns) > 0 {
		c.IgnorePatterns = other.IgnorePatterns
	}

	if other.Indexing.MaxFileSizeBytes != 0 {
		c.Indexing.MaxFileSizeBytes = other.Indexing.MaxFileSizeBytes
	}
	if other.Indexing.BatchSize != 0 {
		c.Indexing.BatchSize = other.Indexing.BatchSize
	}
	if other.Indexing.ThrottleMs != 0 {
		c.Indexing.ThrottleMs = other.Indexing.ThrottleMs
	}
	c.Indexing.IncludeDependencies = c.Indexing.IncludeDependencies || other.Indexing.IncludeDependencies

	if other.Query.TopK != 0 {
		c.Query.TopK = other.Query.TopK
	}
	if other.Query.EfSearch != 0 {
		c.Query.EfSearch = other.Query.EfSearch
	}
	if other.Query.ContextTokens != 0 {
		c.Query.ContextTokens = other.Query.ContextTokens
	}
	if other.Query.HistoryTurns != 0 {
		c.Query.HistoryTurns = other.Query.HistoryTurns
	}
	if other.Query.Temperature != 0 {
		c.Query.Temperature = other.Query.Temperature
	}
	if other.Query.MaxTokens != 0 {
		c.Query.MaxTokens = other.Query.MaxTokens
	}
	if other.Query.BroadK != 0 {
		c.Query.BroadK = other.Query.BroadK
	}
	c.Query.Rerank = c.Query.Rerank || other.Query.Rerank
	c.Query.HybridSearch = c.Query.HybridSearch || other.Query.HybridSearch

	if other.Watcher.DebounceMs != 0 {
		c.Watcher.DebounceMs = other.Watcher.DebounceMs
	}

	if other.Resource.NiceLevel != 0 {
		c.Resource.NiceLevel = other.Resource.NiceLevel
	}
	if other.Resource.IdleTimeoutMs != 0 {
		c.Resource.IdleTimeoutMs = other.Resource.IdleTimeoutMs
	}
	if other.Resource.MemoryBudgetMB != 0 {
		c.Resource.MemoryBudgetMB = other.Resource.MemoryBudgetMB
	}

	if other.LLM.ModelFilename != "" {
		c.LLM.ModelFilename = other.LLM.ModelFilename
	}
	if other.LLM.ModelURL != "" {
		c.LLM.ModelURL = other.LLM.ModelURL
	}
	if other.LLM.Threads != 0 {
		c.LLM.Threads = other.LLM.Threads
	}
	if other.LLM.ContextSize != 0 {
		c.LLM.ContextSize = other.LLM.ContextSize
	}

	if other.API.Provider != "" {
		c.API.Provider = other.API.Provider
	}
	if other.API.Model != "" {
		c.API.Model = other.API.Model
	}
	if other.API.MaxTokens != 0 {
		c.API.MaxTokens = other.API.MaxTokens
	}
	c.API.RedactSecrets = c.API.RedactSecrets || other.API.RedactSecrets
	c.API.LogRedactions = c.API.LogRedactions || other.API.LogRedactions
}

// applyEnvOverrides reads a small set of SRAG_-prefixed environment
// variables, the ones an operator is most likely to want to flip without
// editing the project config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SRAG_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SRAG_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Query.TopK = n
		}
	}
	if v := os.Getenv("SRAG_API_PROVIDER"); v != "" {
		c.API.Provider = APIProvider(strings.ToLower(v))
	}
}

// Validate rejects configurations that would leave the pipeline unable to
// make progress or violate a hard constraint (LLM model URL scheme/host).
func (c *Config) Validate() error {
	if c.Indexing.BatchSize <= 0 {
		return fmt.Errorf("indexing.batch_size must be positive, got %d", c.Indexing.BatchSize)
	}
	if c.Indexing.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("indexing.max_file_size_bytes must be positive, got %d", c.Indexing.MaxFileSizeBytes)
	}
	if c.Indexing.ThrottleMs < 0 {
		return fmt.Errorf("indexing.throttle_ms must be non-negative, got %d", c.Indexing.ThrottleMs)
	}

	if c.Query.TopK <= 0 {
		return fmt.Errorf("query.top_k must be positive, got %d", c.Query.TopK)
	}
	if c.Query.EfSearch <= 0 {
		return fmt.Errorf("query.ef_search must be positive, got %d", c.Query.EfSearch)
	}
	if c.Query.ContextTokens <= 0 {
		return fmt.Errorf("query.context_tokens must be positive, got %d", c.Query.ContextTokens)
	}
	if c.Query.MaxTokens <= 0 {
		return fmt.Errorf("query.max_tokens must be positive, got %d", c.Query.MaxTokens)
	}
	if c.Query.Temperature < 0 || c.Query.Temperature > 2 {
		return fmt.Errorf("query.temperature must be between 0 and 2, got %f", c.Query.Temperature)
	}

	if c.Watcher.DebounceMs < 0 {
		return fmt.Errorf("watcher.debounce_ms must be non-negative, got %d", c.Watcher.DebounceMs)
	}

	switch c.API.Provider {
	case APIProviderLocal, APIProviderAnthropic, APIProviderOpenAI:
	default:
		return fmt.Errorf("api.provider must be 'local', 'anthropic', or 'openai', got %s", c.API.Provider)
	}
	if c.API.MaxTokens <= 0 {
		return fmt.Errorf("api.max_tokens must be positive, got %d", c.API.MaxTokens)
	}

	if c.LLM.ModelURL != "" {
		if err := validateModelURL(c.LLM.ModelURL); err != nil {
			return err
		}
	}

	return nil
}

// validateModelURL requires https and an allow-listed host so the
// supervisor never fetches a model from an arbitrary or spoofable origin.
func validateModelURL(rawURL string) error {
	if !strings.HasPrefix(rawURL, "https://") {
		return fmt.Errorf("llm.model_url must use https, got %s", rawURL)
	}
	rest := strings.TrimPrefix(rawURL, "https://")
	host := rest
	if idx := strings.IndexAny(rest, "/:"); idx != -1 {
		host = rest[:idx]
	}
	if !allowedModelURLHosts[host] {
		return fmt.Errorf("llm.model_url host %q is not on the allow-list", host)
	}
	return nil
}

// WriteYAML writes the configuration to path for a fresh project init.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
