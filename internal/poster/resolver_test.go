package poster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/reelmatch/internal/config"
)

const testKey = "test-key"

// fakeTMDB serves /movie/{id}, /find/{id} and /img/* from handler funcs set per test.
type fakeTMDB struct {
	srv      *httptest.Server
	lookups  atomic.Int32
	probes   atomic.Int32
	lookup   http.HandlerFunc
	image    http.HandlerFunc
	lastUA   atomic.Value
	lastPath atomic.Value
}

func newFakeTMDB(t *testing.T) *fakeTMDB {
	t.Helper()
	f := &fakeTMDB{
		image: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
	}
	mux := http.NewServeMux()
	lookup := func(w http.ResponseWriter, r *http.Request) {
		f.lookups.Add(1)
		f.lastUA.Store(r.UserAgent())
		f.lastPath.Store(r.URL.Path + "?" + r.URL.RawQuery)
		if r.URL.Query().Get("api_key") != testKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.lookup(w, r)
	}
	mux.HandleFunc("/movie/", lookup)
	mux.HandleFunc("/find/", lookup)
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			f.probes.Add(1)
		}
		f.image(w, r)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func testPosterConfig(f *fakeTMDB) config.PosterConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	p := cfg.Poster
	p.APIKey = testKey
	p.APIBaseURL = f.srv.URL
	p.ImageBaseURL = f.srv.URL + "/img"
	p.BackoffBase = 10 * time.Millisecond
	p.LookupTimeout = time.Second
	p.ProbeTimeout = time.Second
	p.CallBudget = 5 * time.Second
	unlimited := 0.0
	p.RequestsPerSecond = &unlimited
	return p
}

// sleepRecorder records backoff delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) get() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestResolver(f *fakeTMDB, cfg config.PosterConfig, rec *sleepRecorder) *Resolver {
	return New(cfg, f.srv.Client(), WithSleep(rec.sleep))
}

func TestResolve_DirectID(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":603,"poster_path":"/matrix.jpg"}`))
	}
	rec := &sleepRecorder{}
	r := newTestResolver(f, testPosterConfig(f), rec)

	got := r.Resolve(context.Background(), "603")
	if want := f.srv.URL + "/img/matrix.jpg"; got != want {
		t.Fatalf("Resolve=%q, want %q", got, want)
	}
	path, _ := f.lastPath.Load().(string)
	if !strings.HasPrefix(path, "/movie/603?") || strings.Contains(path, "external_source") {
		t.Errorf("direct ids should use the movie endpoint, got %q", path)
	}
	if ua, _ := f.lastUA.Load().(string); ua != "reelmatch/1.0" {
		t.Errorf("User-Agent=%q", ua)
	}
	if f.probes.Load() != 1 {
		t.Errorf("expected one HEAD probe, got %d", f.probes.Load())
	}
	if r.IsPlaceholder(got) {
		t.Error("resolved URL reported as placeholder")
	}
}

func TestResolve_IMDbID(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("external_source") != "imdb_id" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"movie_results":[{"poster_path":"/first.jpg"},{"poster_path":"/second.jpg"}]}`))
	}
	r := newTestResolver(f, testPosterConfig(f), &sleepRecorder{})

	got := r.Resolve(context.Background(), "tt0133093")
	if want := f.srv.URL + "/img/first.jpg"; got != want {
		t.Fatalf("Resolve=%q, want %q", got, want)
	}
	path, _ := f.lastPath.Load().(string)
	if !strings.HasPrefix(path, "/find/tt0133093?") {
		t.Errorf("imdb ids should use the find endpoint, got %q", path)
	}
}

func TestResolve_PlaceholderWithoutRetry(t *testing.T) {
	tests := []struct {
		name string
		id   string
		body string
		code int
	}{
		{"no poster path", "603", `{"id":603,"poster_path":null}`, http.StatusOK},
		{"empty poster path", "603", `{"poster_path":""}`, http.StatusOK},
		{"no find results", "tt0000001", `{"movie_results":[]}`, http.StatusOK},
		{"malformed json", "603", `{"poster_path":`, http.StatusOK},
		{"not found", "999999999", `{"status_code":34}`, http.StatusNotFound},
		{"unauthorized", "603", `{}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeTMDB(t)
			f.lookup = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}
			rec := &sleepRecorder{}
			r := newTestResolver(f, testPosterConfig(f), rec)

			got := r.Resolve(context.Background(), tt.id)
			if got != config.DefaultPlaceholderURL {
				t.Errorf("Resolve=%q, want placeholder", got)
			}
			if n := f.lookups.Load(); n != 1 {
				t.Errorf("lookups=%d, want 1", n)
			}
			if len(rec.get()) != 0 {
				t.Errorf("no backoff expected, got %v", rec.get())
			}
			if f.probes.Load() != 0 {
				t.Error("no probe expected without a poster path")
			}
		})
	}
}

func TestResolve_RetryableStatusThenSuccess(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		if f.lookups.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"poster_path":"/late.jpg"}`))
	}
	rec := &sleepRecorder{}
	r := newTestResolver(f, testPosterConfig(f), rec)

	got := r.Resolve(context.Background(), "42")
	if want := f.srv.URL + "/img/late.jpg"; got != want {
		t.Fatalf("Resolve=%q, want %q", got, want)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if d := rec.get(); len(d) != 2 || d[0] != want[0] || d[1] != want[1] {
		t.Errorf("delays=%v, want %v", d, want)
	}
}

func TestResolve_TimeoutEveryAttempt(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	cfg := testPosterConfig(f)
	cfg.LookupTimeout = 30 * time.Millisecond
	rec := &sleepRecorder{}
	r := newTestResolver(f, cfg, rec)

	got := r.Resolve(context.Background(), "603")
	if got != config.DefaultPlaceholderURL {
		t.Fatalf("Resolve=%q, want placeholder", got)
	}
	if n := f.lookups.Load(); n != int32(cfg.MaxRetries) {
		t.Errorf("lookups=%d, want %d", n, cfg.MaxRetries)
	}
	want := []time.Duration{cfg.BackoffBase, 2 * cfg.BackoffBase}
	d := rec.get()
	if len(d) != len(want) {
		t.Fatalf("delays=%v, want %v (no sleep after the last attempt)", d, want)
	}
	for i := range want {
		if d[i] != want[i] {
			t.Errorf("delay[%d]=%v, want %v", i, d[i], want[i])
		}
	}
}

func TestResolve_Probe(t *testing.T) {
	tests := []struct {
		name      string
		verify    bool
		imageCode int
		wantFound bool
		wantProbe int32
	}{
		{"probe ok", true, http.StatusOK, true, 1},
		{"probe missing image", true, http.StatusNotFound, false, 1},
		{"verification disabled", false, http.StatusNotFound, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeTMDB(t)
			f.lookup = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"poster_path":"/p.jpg"}`))
			}
			f.image = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(tt.imageCode) }
			cfg := testPosterConfig(f)
			verify := tt.verify
			cfg.VerifyImages = &verify
			r := newTestResolver(f, cfg, &sleepRecorder{})

			got := r.Resolve(context.Background(), "1")
			if found := !r.IsPlaceholder(got); found != tt.wantFound {
				t.Errorf("Resolve=%q, found=%v, want %v", got, found, tt.wantFound)
			}
			if n := f.probes.Load(); n != tt.wantProbe {
				t.Errorf("probes=%d, want %d", n, tt.wantProbe)
			}
		})
	}
}

func TestResolve_RespectsCallBudget(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	cfg := testPosterConfig(f)
	cfg.CallBudget = 100 * time.Millisecond
	cfg.LookupTimeout = time.Second
	cfg.BackoffBase = time.Second
	r := New(cfg, f.srv.Client())

	start := time.Now()
	got := r.Resolve(context.Background(), "603")
	if got != config.DefaultPlaceholderURL {
		t.Fatalf("Resolve=%q, want placeholder", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Resolve took %v, budget is %v", elapsed, cfg.CallBudget)
	}
	if n := f.lookups.Load(); n != 1 {
		t.Errorf("lookups=%d, want 1 (budget expired during first attempt)", n)
	}
}

func TestResolve_CallerCancellation(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	cfg := testPosterConfig(f)
	cfg.BackoffBase = time.Minute
	r := New(cfg, f.srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	start := time.Now()
	if got := r.Resolve(ctx, "603"); got != config.DefaultPlaceholderURL {
		t.Fatalf("Resolve=%q, want placeholder", got)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("backoff wait ignored cancellation, took %v", elapsed)
	}
}

func TestResolve_BreakerOpens(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	cfg := testPosterConfig(f)
	cfg.MaxRetries = 1
	r := New(cfg, f.srv.Client(), WithBreakerSettings(BreakerSettings{
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
		Interval:     time.Minute,
	}))

	for i := 0; i < 2; i++ {
		if got := r.Resolve(context.Background(), "603"); got != config.DefaultPlaceholderURL {
			t.Fatalf("Resolve=%q", got)
		}
	}
	before := f.lookups.Load()
	if got := r.Resolve(context.Background(), "603"); got != config.DefaultPlaceholderURL {
		t.Fatalf("Resolve=%q", got)
	}
	if f.lookups.Load() != before {
		t.Error("open circuit should skip the network")
	}
}

func TestResolve_NotFoundDoesNotTripBreaker(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	cfg := testPosterConfig(f)
	r := New(cfg, f.srv.Client(), WithBreakerSettings(BreakerSettings{
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
		Interval:     time.Minute,
	}))
	for i := 0; i < 5; i++ {
		r.Resolve(context.Background(), "404")
	}
	if n := f.lookups.Load(); n != 5 {
		t.Errorf("lookups=%d, want 5", n)
	}
}

func TestResolve_CallerDeadlinesDoNotTripBreaker(t *testing.T) {
	f := newFakeTMDB(t)
	var healthy atomic.Bool
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			_, _ = w.Write([]byte(`{"poster_path":"/matrix.jpg"}`))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	cfg := testPosterConfig(f)
	r := New(cfg, f.srv.Client(), WithBreakerSettings(DefaultBreakerSettings()))

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		if got := r.Resolve(ctx, "603"); got != config.DefaultPlaceholderURL {
			t.Fatalf("Resolve=%q, want placeholder", got)
		}
		cancel()
	}
	if n := f.lookups.Load(); n != 10 {
		t.Fatalf("lookups=%d, want 10 (one attempt per expired caller)", n)
	}

	healthy.Store(true)
	got := r.Resolve(context.Background(), "603")
	if want := f.srv.URL + "/img/matrix.jpg"; got != want {
		t.Fatalf("Resolve=%q, want %q (caller deadlines opened the circuit)", got, want)
	}
	if n := f.lookups.Load(); n != 11 {
		t.Errorf("lookups=%d, want 11", n)
	}
}

func TestResolve_LookupTimeoutsStillTripBreaker(t *testing.T) {
	f := newFakeTMDB(t)
	f.lookup = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	cfg := testPosterConfig(f)
	cfg.MaxRetries = 1
	cfg.LookupTimeout = 20 * time.Millisecond
	r := New(cfg, f.srv.Client(), WithBreakerSettings(BreakerSettings{
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
		Interval:     time.Minute,
	}))

	for i := 0; i < 2; i++ {
		r.Resolve(context.Background(), "603")
	}
	before := f.lookups.Load()
	if got := r.Resolve(context.Background(), "603"); got != config.DefaultPlaceholderURL {
		t.Fatalf("Resolve=%q, want placeholder", got)
	}
	if f.lookups.Load() != before {
		t.Error("per-attempt lookup timeouts should open the circuit")
	}
}

func TestRedactHidesAPIKey(t *testing.T) {
	err := redact(&url.Error{
		Op:  "Get",
		URL: "https://api.themoviedb.org/3/movie/1?api_key=secret",
		Err: errors.New("connection refused"),
	})
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error leaks API key: %v", err)
	}
}

func TestPlaceholder(t *testing.T) {
	cfg := config.PosterConfig{PlaceholderURL: "https://example.com/none.png", MaxRetries: 1}
	r := New(cfg, http.DefaultClient)
	if !r.IsPlaceholder("https://example.com/none.png") || r.Placeholder() != "https://example.com/none.png" {
		t.Error("custom placeholder not honoured")
	}
	r = New(config.PosterConfig{}, http.DefaultClient)
	if r.Placeholder() != config.DefaultPlaceholderURL {
		t.Errorf("Placeholder=%q", r.Placeholder())
	}
}
