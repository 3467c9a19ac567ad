// Package config loads openvault settings from a TOML file and OPENVAULT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/unkarelian/openvault/internal/embedding"
	"github.com/unkarelian/openvault/internal/recall"
	"github.com/unkarelian/openvault/internal/relevance"
)

// Injection modes.
const (
	InjectMemory = "memory"
	InjectFile   = "file"
)

type Config struct {
	DBPath    string          `toml:"db_path" env:"OPENVAULT_DB"`
	Log       LogConfig       `toml:"log"`
	Recall    RecallConfig    `toml:"recall"`
	Selector  SelectorConfig  `toml:"selector"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Judge     JudgeConfig     `toml:"judge"`
	Inject    InjectConfig    `toml:"inject"`
}

type LogConfig struct {
	Debug  bool   `toml:"debug" env:"OPENVAULT_LOG_DEBUG"`
	Format string `toml:"format" env:"OPENVAULT_LOG_FORMAT"` // text | json | pretty
}

type RecallConfig struct {
	Enabled                 bool   `toml:"enabled" env:"OPENVAULT_RECALL_ENABLED"`
	AutomaticMode           bool   `toml:"automatic_mode" env:"OPENVAULT_RECALL_AUTOMATIC_MODE"`
	MaxMemoriesPerRetrieval int    `toml:"max_memories_per_retrieval" env:"OPENVAULT_RECALL_MAX_MEMORIES"`
	TokenBudget             int    `toml:"token_budget" env:"OPENVAULT_RECALL_TOKEN_BUDGET"`
	RecentWindow            int    `toml:"recent_window" env:"OPENVAULT_RECALL_RECENT_WINDOW"`
	Fallback                string `toml:"fallback" env:"OPENVAULT_RECALL_FALLBACK"` // stage | raw
}

type SelectorConfig struct {
	Provider      string  `toml:"provider" env:"OPENVAULT_SELECTOR_PROVIDER"` // lexical | semantic | judge
	MinScore      float64 `toml:"min_score" env:"OPENVAULT_SELECTOR_MIN_SCORE"`
	MinSimilarity float64 `toml:"min_similarity" env:"OPENVAULT_SELECTOR_MIN_SIMILARITY"`
}

type EmbeddingConfig struct {
	Provider  string `toml:"provider" env:"OPENVAULT_EMBEDDING_PROVIDER"` // ollama | openai | empty
	URL       string `toml:"url" env:"OPENVAULT_EMBEDDING_URL"`
	Model     string `toml:"model" env:"OPENVAULT_EMBEDDING_MODEL"`
	APIKey    string `toml:"api_key" env:"OPENVAULT_EMBEDDING_API_KEY"`
	CacheSize int    `toml:"cache_size" env:"OPENVAULT_EMBEDDING_CACHE_SIZE"`
}

type JudgeConfig struct {
	URL           string  `toml:"url" env:"OPENVAULT_JUDGE_URL"`
	Model         string  `toml:"model" env:"OPENVAULT_JUDGE_MODEL"`
	TimeoutMS     int     `toml:"timeout_ms" env:"OPENVAULT_JUDGE_TIMEOUT_MS"`
	RatePerSec    float64 `toml:"rate_per_sec" env:"OPENVAULT_JUDGE_RATE_PER_SEC"`
	Burst         int     `toml:"burst" env:"OPENVAULT_JUDGE_BURST"`
	MaxFailures   uint32  `toml:"max_failures" env:"OPENVAULT_JUDGE_MAX_FAILURES"`
	OpenTimeoutMS int     `toml:"open_timeout_ms" env:"OPENVAULT_JUDGE_OPEN_TIMEOUT_MS"`
}

type InjectConfig struct {
	Mode string `toml:"mode" env:"OPENVAULT_INJECT_MODE"` // memory | file
	Dir  string `toml:"dir" env:"OPENVAULT_INJECT_DIR"`
}

// Home returns the openvault data directory.
func Home() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".openvault")
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(Home(), "config.toml")
}

func DefaultConfig() *Config {
	s := recall.DefaultSettings()
	return &Config{
		DBPath: filepath.Join(Home(), "openvault.db"),
		Log:    LogConfig{Format: "text"},
		Recall: RecallConfig{
			Enabled:                 s.Enabled,
			AutomaticMode:           s.AutomaticMode,
			MaxMemoriesPerRetrieval: s.MaxMemoriesPerRetrieval,
			TokenBudget:             s.TokenBudget,
			RecentWindow:            s.RecentWindow,
			Fallback:                string(s.Fallback),
		},
		Selector: SelectorConfig{Provider: relevance.ProviderLexical},
		Embedding: EmbeddingConfig{
			CacheSize: 1024,
		},
		Judge: JudgeConfig{
			TimeoutMS:     30000,
			Burst:         1,
			MaxFailures:   5,
			OpenTimeoutMS: 30000,
		},
		Inject: InjectConfig{
			Mode: InjectFile,
			Dir:  filepath.Join(Home(), "inject"),
		},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.Recall.MaxMemoriesPerRetrieval < 0 {
		return fmt.Errorf("recall.max_memories_per_retrieval must be >= 0, got %d", c.Recall.MaxMemoriesPerRetrieval)
	}
	if c.Recall.TokenBudget < 0 {
		return fmt.Errorf("recall.token_budget must be >= 0, got %d", c.Recall.TokenBudget)
	}
	if c.Recall.RecentWindow < 0 {
		return fmt.Errorf("recall.recent_window must be >= 0, got %d", c.Recall.RecentWindow)
	}
	if _, err := recall.ParseFallbackPolicy(c.Recall.Fallback); err != nil {
		return fmt.Errorf("recall.fallback: %w", err)
	}
	switch c.Selector.Provider {
	case "", relevance.ProviderLexical, relevance.ProviderSemantic, relevance.ProviderJudge:
	default:
		return fmt.Errorf("selector.provider: unknown provider %q", c.Selector.Provider)
	}
	if c.Selector.Provider == relevance.ProviderSemantic && c.Embedding.Provider == "" {
		return errors.New("selector.provider semantic requires embedding.provider")
	}
	switch c.Log.Format {
	case "", "text", "json", "pretty":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	switch c.Inject.Mode {
	case "", InjectMemory:
	case InjectFile:
		if c.Inject.Dir == "" {
			return errors.New("inject.dir is required for file mode")
		}
	default:
		return fmt.Errorf("inject.mode: unknown mode %q", c.Inject.Mode)
	}
	return nil
}

// Settings converts the recall section. Call after Validate.
func (c *Config) Settings() recall.Settings {
	policy, _ := recall.ParseFallbackPolicy(c.Recall.Fallback)
	return recall.Settings{
		Enabled:                 c.Recall.Enabled,
		AutomaticMode:           c.Recall.AutomaticMode,
		MaxMemoriesPerRetrieval: c.Recall.MaxMemoriesPerRetrieval,
		TokenBudget:             c.Recall.TokenBudget,
		RecentWindow:            c.Recall.RecentWindow,
		Fallback:                policy,
	}
}

func (c *Config) EmbeddingConfig() embedding.Config {
	return embedding.Config{
		Provider:  c.Embedding.Provider,
		URL:       c.Embedding.URL,
		Model:     c.Embedding.Model,
		APIKey:    c.Embedding.APIKey,
		CacheSize: c.Embedding.CacheSize,
	}
}

func (c *Config) JudgeConfig() relevance.JudgeConfig {
	return relevance.JudgeConfig{
		BaseURL:       c.Judge.URL,
		Model:         c.Judge.Model,
		Timeout:       time.Duration(c.Judge.TimeoutMS) * time.Millisecond,
		RatePerSecond: c.Judge.RatePerSec,
		Burst:         c.Judge.Burst,
		Breaker: relevance.BreakerConfig{
			MaxFailures: c.Judge.MaxFailures,
			Timeout:     time.Duration(c.Judge.OpenTimeoutMS) * time.Millisecond,
		},
	}
}

// Relevance returns scorer options. The embedder is built separately since
// it may need network configuration.
func (c *Config) Relevance(emb embedding.Embedder) relevance.Options {
	return relevance.Options{
		Provider:      c.Selector.Provider,
		MinScore:      c.Selector.MinScore,
		MinSimilarity: c.Selector.MinSimilarity,
		Embedder:      emb,
		Judge:         c.JudgeConfig(),
	}
}
