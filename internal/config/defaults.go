package config

import (
	"net/http"
	"time"
)

// DefaultPlaceholderURL is returned whenever a poster cannot be resolved.
const DefaultPlaceholderURL = "https://via.placeholder.com/300x450/cccccc/666666?text=No+Poster"

// Defaults for fields where an explicit zero is meaningful.
const (
	DefaultRequestsPerSecond = 40.0
	DefaultSuggestionCount   = 3
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}
	if cfg.Server.CORSAllowedOrigins == nil {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Server.RateLimitWindow == 0 {
		cfg.Server.RateLimitWindow = time.Minute
	}
	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = SourceFiles
	}
	if cfg.Catalog.MoviesPath == "" {
		cfg.Catalog.MoviesPath = "/usr/local/var/reelmatch/data/movies.csv"
	}
	if cfg.Catalog.SimilarityPath == "" {
		cfg.Catalog.SimilarityPath = "/usr/local/var/reelmatch/data/similarity.bin"
	}
	if cfg.Catalog.DatabasePath == "" {
		cfg.Catalog.DatabasePath = "/usr/local/var/reelmatch/data/catalog.db"
	}
	if cfg.Poster.APIBaseURL == "" {
		cfg.Poster.APIBaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.Poster.ImageBaseURL == "" {
		cfg.Poster.ImageBaseURL = "https://image.tmdb.org/t/p/w500"
	}
	if cfg.Poster.PlaceholderURL == "" {
		cfg.Poster.PlaceholderURL = DefaultPlaceholderURL
	}
	if cfg.Poster.UserAgent == "" {
		cfg.Poster.UserAgent = "reelmatch/1.0"
	}
	if cfg.Poster.MaxRetries == 0 {
		cfg.Poster.MaxRetries = 3
	}
	if cfg.Poster.BackoffBase == 0 {
		cfg.Poster.BackoffBase = time.Second
	}
	if cfg.Poster.LookupTimeout == 0 {
		cfg.Poster.LookupTimeout = 30 * time.Second
	}
	if cfg.Poster.ProbeTimeout == 0 {
		cfg.Poster.ProbeTimeout = 15 * time.Second
	}
	if cfg.Poster.CallBudget == 0 {
		cfg.Poster.CallBudget = 45 * time.Second
	}
	if cfg.Poster.RetryStatuses == nil {
		cfg.Poster.RetryStatuses = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	if cfg.Poster.RequestsPerSecond == nil {
		rps := DefaultRequestsPerSecond
		cfg.Poster.RequestsPerSecond = &rps
	}
	if cfg.Poster.Burst == 0 {
		cfg.Poster.Burst = 20
	}
	if cfg.Poster.MaxIdleConns == 0 {
		cfg.Poster.MaxIdleConns = 20
	}
	if cfg.Recommend.Limit == 0 {
		cfg.Recommend.Limit = 5
	}
	if cfg.Recommend.Workers == 0 {
		cfg.Recommend.Workers = 5
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 20
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.Fuzziness == 0 {
		cfg.Search.Fuzziness = 2
	}
	if cfg.Search.SuggestionPool == 0 {
		cfg.Search.SuggestionPool = 25
	}
	if cfg.Search.SuggestionCount == nil {
		n := DefaultSuggestionCount
		cfg.Search.SuggestionCount = &n
	}
}
