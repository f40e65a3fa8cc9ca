// Package config provides configuration loading and structs for the reelmatch server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv overrides poster.api_key when set.
const APIKeyEnv = "REELMATCH_TMDB_API_KEY"

// ErrMissingAPIKey is returned by RequireAPIKey when no metadata API credential is configured.
var ErrMissingAPIKey = errors.New("metadata API key is not configured (set poster.api_key or " + APIKeyEnv + ")")

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Poster    PosterConfig    `yaml:"poster"`
	Recommend RecommendConfig `yaml:"recommend"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port" validate:"min=1,max=65535"`
	RequestTimeout     time.Duration `yaml:"request_timeout" validate:"gt=0"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	RateLimitRequests  int           `yaml:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow    time.Duration `yaml:"rate_limit_window"`
}

// Catalog sources.
const (
	SourceFiles  = "files"
	SourceSQLite = "sqlite"
)

// CatalogConfig points at the prebuilt catalog artifacts.
type CatalogConfig struct {
	// Source is "files" (movies CSV + matrix binary) or "sqlite" (database written by `reelmatch import`).
	Source         string `yaml:"source" validate:"oneof=files sqlite"`
	MoviesPath     string `yaml:"movies_path"`
	SimilarityPath string `yaml:"similarity_path"`
	DatabasePath   string `yaml:"database_path"`
	// SearchIndexPath is where the Bleve title index lives. Empty keeps it in memory.
	SearchIndexPath string `yaml:"search_index_path"`
	// WatchArtifacts marks the catalog stale in /health when an artifact changes on disk.
	WatchArtifacts bool `yaml:"watch_artifacts"`
}

// PosterConfig holds metadata API and poster resolution settings.
type PosterConfig struct {
	APIKey         string        `yaml:"api_key"`
	APIBaseURL     string        `yaml:"api_base_url" validate:"url"`
	ImageBaseURL   string        `yaml:"image_base_url" validate:"url"`
	PlaceholderURL string        `yaml:"placeholder_url" validate:"url"`
	UserAgent      string        `yaml:"user_agent"`
	MaxRetries     int           `yaml:"max_retries" validate:"min=1,max=10"`
	BackoffBase    time.Duration `yaml:"backoff_base" validate:"gt=0"`
	LookupTimeout  time.Duration `yaml:"lookup_timeout" validate:"gt=0"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout" validate:"gt=0"`
	CallBudget     time.Duration `yaml:"call_budget" validate:"gt=0"`
	// VerifyImages enables the HEAD probe on resolved image URLs; defaults to true when unset.
	VerifyImages      *bool   `yaml:"verify_images"`
	RetryStatuses     []int   `yaml:"retry_statuses"`
	// RequestsPerSecond bounds outbound metadata requests; 0 means unlimited, nil uses the default.
	RequestsPerSecond *float64 `yaml:"requests_per_second" validate:"omitempty,gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
	MaxIdleConns      int     `yaml:"max_idle_conns" validate:"gte=0"`
}

// VerifyImagesOrDefault returns whether to probe image URLs; defaults to true when unset.
func (p *PosterConfig) VerifyImagesOrDefault() bool {
	if p.VerifyImages != nil {
		return *p.VerifyImages
	}
	return true
}

// RequestsPerSecondOrDefault returns the outbound request rate; 0 means unlimited.
func (p *PosterConfig) RequestsPerSecondOrDefault() float64 {
	if p.RequestsPerSecond != nil {
		return *p.RequestsPerSecond
	}
	return DefaultRequestsPerSecond
}

// RequireAPIKey returns ErrMissingAPIKey when no credential is configured.
func (p *PosterConfig) RequireAPIKey() error {
	if strings.TrimSpace(p.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// RecommendConfig holds ranking and enrichment settings.
type RecommendConfig struct {
	Limit   int `yaml:"limit" validate:"min=1,max=50"`
	Workers int `yaml:"workers" validate:"min=1,max=32"`
}

// SearchConfig holds title search settings.
type SearchConfig struct {
	DefaultLimit    int `yaml:"default_limit" validate:"min=1"`
	MaxLimit        int `yaml:"max_limit" validate:"gtefield=DefaultLimit"`
	Fuzziness       int `yaml:"fuzziness" validate:"min=1,max=2"`
	// SuggestionCount is how many close titles a not-found answer carries; 0 disables them.
	SuggestionCount *int `yaml:"suggestion_count" validate:"omitempty,gte=0"`
	// SuggestionPool is how many fuzzy hits are re-ranked by edit distance before suggesting.
	SuggestionPool int `yaml:"suggestion_pool" validate:"gte=0"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and the
// API key environment override, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.MoviesPath = expandPath(cfg.Catalog.MoviesPath, configDir)
	cfg.Catalog.SimilarityPath = expandPath(cfg.Catalog.SimilarityPath, configDir)
	cfg.Catalog.DatabasePath = expandPath(cfg.Catalog.DatabasePath, configDir)
	if cfg.Catalog.SearchIndexPath != "" {
		cfg.Catalog.SearchIndexPath = expandPath(cfg.Catalog.SearchIndexPath, configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides config values from the environment.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(APIKeyEnv)); v != "" {
		cfg.Poster.APIKey = v
	}
}

// Validate checks struct constraints on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

// SuggestionCountOrDefault returns how many not-found suggestions to offer; 0 disables them.
func (s *SearchConfig) SuggestionCountOrDefault() int {
	if s.SuggestionCount != nil {
		return *s.SuggestionCount
	}
	return DefaultSuggestionCount
}
