// Package poster resolves movie identifiers to poster image URLs through the TMDB metadata API.
// Resolution never fails: every error path ends in a placeholder URL.
package poster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/reelmatch/internal/config"
	"github.com/hyperjump/reelmatch/internal/metrics"
	"github.com/hyperjump/reelmatch/internal/models"
)

// maxBodyBytes bounds how much of a metadata response is read.
const maxBodyBytes = 1 << 20

var (
	errNoPoster  = errors.New("no poster path in response")
	errMalformed = errors.New("malformed metadata response")
)

// transientError marks a lookup failure worth retrying: a transport failure
// or one of the configured retryable HTTP statuses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// statusError is a non-200 response from the metadata API.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("metadata API returned status %d", e.code) }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolver looks up poster images with bounded retries, a circuit breaker and a rate limit.
// It is safe for concurrent use.
type Resolver struct {
	client        *http.Client
	apiBase       string
	imageBase     string
	placeholder   string
	apiKey        string
	userAgent     string
	maxRetries    int
	backoffBase   time.Duration
	lookupTimeout time.Duration
	probeTimeout  time.Duration
	budget        time.Duration
	verify        bool
	retryStatus   map[int]bool

	limiter         *rate.Limiter
	breakerSettings BreakerSettings
	breaker         *gobreaker.CircuitBreaker[string]
	sleep           SleepFunc
	logger          *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithBreakerSettings overrides DefaultBreakerSettings.
func WithBreakerSettings(s BreakerSettings) Option {
	return func(r *Resolver) {
		r.breakerSettings = s
	}
}

// New builds a Resolver from cfg. client must not be nil; use NewHTTPClient for production.
func New(cfg config.PosterConfig, client *http.Client, opts ...Option) *Resolver {
	r := &Resolver{
		client:          client,
		apiBase:         strings.TrimRight(cfg.APIBaseURL, "/"),
		imageBase:       strings.TrimRight(cfg.ImageBaseURL, "/"),
		placeholder:     cfg.PlaceholderURL,
		apiKey:          cfg.APIKey,
		userAgent:       cfg.UserAgent,
		maxRetries:      cfg.MaxRetries,
		backoffBase:     cfg.BackoffBase,
		lookupTimeout:   cfg.LookupTimeout,
		probeTimeout:    cfg.ProbeTimeout,
		budget:          cfg.CallBudget,
		verify:          cfg.VerifyImagesOrDefault(),
		retryStatus:     make(map[int]bool, len(cfg.RetryStatuses)),
		breakerSettings: DefaultBreakerSettings(),
		sleep:           sleepContext,
		logger:          zap.NewNop(),
	}
	if r.placeholder == "" {
		r.placeholder = config.DefaultPlaceholderURL
	}
	if r.maxRetries < 1 {
		r.maxRetries = 1
	}
	for _, code := range cfg.RetryStatuses {
		r.retryStatus[code] = true
	}

	limit := rate.Inf
	if rps := cfg.RequestsPerSecondOrDefault(); rps > 0 {
		limit = rate.Limit(rps)
	}
	r.limiter = rate.NewLimiter(limit, max(cfg.Burst, 1))

	for _, opt := range opts {
		opt(r)
	}
	r.breaker = newBreaker(r.breakerSettings, r.logger)
	return r
}

// Placeholder returns the fallback image URL.
func (r *Resolver) Placeholder() string {
	return r.placeholder
}

// IsPlaceholder reports whether u is the fallback image URL.
func (r *Resolver) IsPlaceholder(u string) bool {
	return u == r.placeholder
}

// Resolve returns the poster URL for movieID, or the placeholder when the movie has no poster,
// the metadata API is unavailable, or the call budget runs out.
func (r *Resolver) Resolve(ctx context.Context, movieID string) string {
	start := time.Now()
	defer func() { metrics.PosterResolveDuration.Observe(time.Since(start).Seconds()) }()

	if r.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.budget)
		defer cancel()
	}
	log := r.logger.With(zap.String("movie_id", movieID))

	posterPath, err := r.lookup(ctx, movieID, log)
	if err != nil {
		outcome := metrics.OutcomeUnavailable
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = metrics.OutcomeRejected
		case errors.Is(err, errNoPoster):
			outcome = metrics.OutcomeNoPoster
		}
		metrics.PosterResolutions.WithLabelValues(outcome).Inc()
		log.Debug("using placeholder poster", zap.String("outcome", outcome), zap.Error(err))
		return r.placeholder
	}

	imageURL := r.imageBase + posterPath
	if r.verify {
		if err := r.probe(ctx, imageURL); err != nil {
			metrics.PosterResolutions.WithLabelValues(metrics.OutcomeUnavailable).Inc()
			log.Warn("poster URL not accessible", zap.String("url", imageURL), zap.Error(err))
			return r.placeholder
		}
	}
	metrics.PosterResolutions.WithLabelValues(metrics.OutcomeFound).Inc()
	return imageURL
}

// lookup runs up to maxRetries attempts. Transient failures wait backoffBase*2^attempt between
// attempts (never after the last); every other outcome ends the loop at once.
func (r *Resolver) lookup(ctx context.Context, movieID string, log *zap.Logger) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit wait: %v", models.ErrUpstreamUnavailable, err)
		}

		posterPath, err := r.breaker.Execute(func() (string, error) {
			return r.fetchOnce(ctx, movieID)
		})
		if err == nil {
			metrics.PosterAttempts.WithLabelValues("ok").Inc()
			return posterPath, nil
		}
		if !isRetryable(err) {
			var se *statusError
			if errors.As(err, &se) {
				metrics.PosterAttempts.WithLabelValues("status").Inc()
				log.Warn("metadata API returned non-retryable status", zap.Int("status", se.code))
			}
			return "", err
		}

		lastErr = err
		var se *statusError
		if errors.As(err, &se) {
			metrics.PosterAttempts.WithLabelValues("retryable_status").Inc()
		} else {
			metrics.PosterAttempts.WithLabelValues("transport_error").Inc()
		}
		log.Warn("metadata lookup attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.maxRetries),
			zap.Error(err))

		if attempt == r.maxRetries-1 {
			break
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, ctx.Err())
		}
		delay := r.backoffBase << attempt
		if err := r.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: backoff interrupted: %v", models.ErrUpstreamUnavailable, err)
		}
	}
	return "", fmt.Errorf("%w: %d attempts failed: %v", models.ErrUpstreamUnavailable, r.maxRetries, lastErr)
}

func (r *Resolver) lookupURL(movieID string) string {
	q := url.Values{}
	q.Set("api_key", r.apiKey)
	if models.IsIMDbID(movieID) {
		q.Set("external_source", "imdb_id")
		return r.apiBase + "/find/" + url.PathEscape(movieID) + "?" + q.Encode()
	}
	return r.apiBase + "/movie/" + url.PathEscape(movieID) + "?" + q.Encode()
}

type movieResponse struct {
	PosterPath *string `json:"poster_path"`
}

type findResponse struct {
	MovieResults []movieResponse `json:"movie_results"`
}

// fetchOnce performs one metadata request and extracts the poster path.
func (r *Resolver) fetchOnce(ctx context.Context, movieID string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, r.lookupURL(movieID), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	r.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		// The caller went away or the call budget ran out; that says nothing about upstream health.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &transientError{err: redact(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		se := &statusError{code: resp.StatusCode}
		if r.retryStatus[resp.StatusCode] {
			return "", &transientError{err: se}
		}
		return "", se
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &transientError{err: fmt.Errorf("read body: %w", redact(err))}
	}

	var posterPath *string
	if models.IsIMDbID(movieID) {
		var fr findResponse
		if err := json.Unmarshal(body, &fr); err != nil {
			return "", fmt.Errorf("%w: %v", errMalformed, err)
		}
		if len(fr.MovieResults) > 0 {
			posterPath = fr.MovieResults[0].PosterPath
		}
	} else {
		var mr movieResponse
		if err := json.Unmarshal(body, &mr); err != nil {
			return "", fmt.Errorf("%w: %v", errMalformed, err)
		}
		posterPath = mr.PosterPath
	}
	if posterPath == nil || *posterPath == "" {
		return "", errNoPoster
	}
	return *posterPath, nil
}

// probe checks that the image URL answers a HEAD request with 200.
func (r *Resolver) probe(ctx context.Context, imageURL string) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, imageURL, nil)
	if err != nil {
		return err
	}
	r.setHeaders(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return redact(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Resolver) setHeaders(req *http.Request) {
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
}

// redact strips the request URL (which carries the API key) from client errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
