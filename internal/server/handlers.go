package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/reelmatch/internal/models"
	"github.com/hyperjump/reelmatch/internal/storage"
)

const (
	maxRequestBytes = 1 << 20

	msgNoData        = "No data provided"
	msgNoMovie       = "Movie name not provided"
	msgMovieNotFound = "Movie not found"
	msgInternal      = "Internal server error"
)

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, msgNoData)
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		s.respondError(w, http.StatusBadRequest, msgNoData)
		return
	}
	var movie any
	if raw, ok := fields["movie"]; ok {
		_ = json.Unmarshal(raw, &movie)
	}
	if !truthy(movie) {
		s.respondError(w, http.StatusBadRequest, msgNoMovie)
		return
	}
	title, ok := movie.(string)
	if !ok {
		// Catalog titles are strings, so a number or object can never match one.
		s.respondError(w, http.StatusNotFound, msgMovieNotFound)
		return
	}
	req := models.RecommendRequest{Movie: title}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, msgNoMovie)
		return
	}

	s.logger.Info("recommendation request", zap.String("movie", req.Movie))
	recs, err := s.recommender.Recommend(r.Context(), req.Movie)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("movie not found", zap.String("movie", req.Movie))
			s.respondJSON(w, http.StatusNotFound, models.ErrorResponse{
				Error:       msgMovieNotFound,
				Suggestions: s.recommender.Suggest(r.Context(), req.Movie),
			})
			return
		}
		s.fail(w, "recommend failed", err)
		return
	}
	s.logger.Info("returning recommendations", zap.String("movie", req.Movie), zap.Int("count", len(recs)))
	s.respondJSON(w, http.StatusOK, models.RecommendResponse{RecommendedMovies: recs})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := models.SearchQuery{Query: params.Get("q")}
	if v := params.Get("fuzzy"); v != "" {
		fuzzy, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "fuzzy must be a boolean")
			return
		}
		q.Fuzzy = fuzzy
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = limit
	}

	s.logger.Debug("search request", zap.String("query", q.Query), zap.Bool("fuzzy", q.Fuzzy))
	matches, err := s.recommender.Search(r.Context(), q)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SearchResponse{Matches: matches})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	movie := r.URL.Query().Get("movie")
	if strings.TrimSpace(movie) == "" {
		s.respondError(w, http.StatusBadRequest, msgNoMovie)
		return
	}
	k := 0
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "k must be a non-negative integer")
			return
		}
		k = n
	}
	similar, err := s.recommender.Similar(r.Context(), movie, k)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondJSON(w, http.StatusNotFound, models.ErrorResponse{
				Error:       msgMovieNotFound,
				Suggestions: s.recommender.Suggest(r.Context(), movie),
			})
			return
		}
		s.fail(w, "similar failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SimilarResponse{Movie: movie, Similar: similar})
}

func (s *Server) handleTestPoster(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movie_id")
	posterURL := s.posters.Resolve(r.Context(), movieID)
	s.respondJSON(w, http.StatusOK, models.PosterCheckResponse{
		MovieID:   movieID,
		PosterURL: posterURL,
		Success:   !s.posters.IsPlaceholder(posterURL),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:         "ok",
		Movies:         s.catalog.Len(),
		CatalogVersion: s.catalog.Version(),
	}
	if s.stale != nil {
		resp.ArtifactsStale = s.stale.Stale()
	}
	if len(s.artifacts) > 0 {
		usage, err := storage.DiskUsage(s.artifacts...)
		if err != nil {
			s.logger.Warn("health: disk usage failed", zap.Error(err))
		} else {
			resp.ArtifactBytes = usage.Bytes
			resp.MissingArtifacts = usage.Missing
		}
	}
	if resp.ArtifactsStale || len(resp.MissingArtifacts) > 0 {
		resp.Status = "degraded"
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// truthy reports whether a decoded JSON value counts as present: not null, false, zero,
// or an empty string, array, or object.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status for err. Unexpected errors are logged and hidden behind a generic message.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, status, msgInternal)
		return
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}
