// Package cli provides output formatting for the reelmatch command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/hyperjump/reelmatch/internal/models"
	"github.com/hyperjump/reelmatch/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat. Unknown values fall back to text.
func ParseOutputFormat(s string) OutputFormat {
	if OutputFormat(s) == OutputJSON {
		return OutputJSON
	}
	return OutputText
}

const nameWidth = 60

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecommendations writes recommendations for title to w. JSON output uses the
// same shape as POST /recommend.
func WriteRecommendations(w io.Writer, title string, recs []models.Recommendation, format OutputFormat) error {
	if format == OutputJSON {
		if recs == nil {
			recs = []models.Recommendation{}
		}
		return writeJSON(w, models.RecommendResponse{RecommendedMovies: recs})
	}
	fmt.Fprintf(w, "\nMovies like %q (%d)\n\n", title, len(recs))
	for i, rec := range recs {
		fmt.Fprintf(w, "%2d. %s\n    %s\n", i+1, utils.Truncate(rec.Name, nameWidth), rec.Poster)
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "No recommendations.")
	}
	return nil
}

// WriteSimilar writes ranked neighbours with scores.
func WriteSimilar(w io.Writer, title string, similar []models.SimilarMovie, format OutputFormat) error {
	if format == OutputJSON {
		if similar == nil {
			similar = []models.SimilarMovie{}
		}
		return writeJSON(w, models.SimilarResponse{Movie: title, Similar: similar})
	}
	fmt.Fprintf(w, "\nClosest to %q\n\n", title)
	for i, m := range similar {
		fmt.Fprintf(w, "%3d. %-*s %.4f\n", i+1, nameWidth+3, utils.Truncate(m.Name, nameWidth), m.Score)
	}
	if len(similar) == 0 {
		fmt.Fprintln(w, "No similar movies.")
	}
	return nil
}

// WriteSearchResults writes title matches for query.
func WriteSearchResults(w io.Writer, query string, matches []string, format OutputFormat) error {
	if format == OutputJSON {
		if matches == nil {
			matches = []string{}
		}
		return writeJSON(w, models.SearchResponse{Matches: matches})
	}
	fmt.Fprintf(w, "\nFound %d matches for %q\n\n", len(matches), query)
	for _, m := range matches {
		fmt.Fprintf(w, "  %s\n", m)
	}
	return nil
}

// WritePosterCheck writes the outcome of a single poster resolution.
func WritePosterCheck(w io.Writer, check models.PosterCheckResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, check)
	}
	status := "ok"
	if !check.Success {
		status = "placeholder"
	}
	fmt.Fprintf(w, "%s: %s (%s)\n", check.MovieID, check.PosterURL, status)
	return nil
}

// WriteNotFound writes a not-found notice with optional suggestions to w.
func WriteNotFound(w io.Writer, title string, suggestions []string) {
	fmt.Fprintf(w, "Movie not found: %q\n", title)
	if len(suggestions) > 0 {
		fmt.Fprintln(w, "Did you mean:")
		for _, s := range suggestions {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
}

// PrintRecommendations prints recommendations to stdout in text format.
func PrintRecommendations(title string, recs []models.Recommendation) {
	_ = WriteRecommendations(os.Stdout, title, recs, OutputText)
}
