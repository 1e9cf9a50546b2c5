package server

import (
	"context"
	"net/http"
	"slices"

	spotifyapi "github.com/alexjbarnes/dashboard-bff/internal/spotify"
)

const defaultPatternPeriod = "week"

// Activity is the developer activity analysis derived from listening
// history. Every method returns a neutral shape when data is unavailable.
type Activity interface {
	WorkHoursAnalysis(ctx context.Context) spotifyapi.WorkHoursAnalysis
	ProductivityCorrelation(ctx context.Context) spotifyapi.ProductivityCorrelation
	ListeningPatterns(ctx context.Context, period string) spotifyapi.ListeningPatterns
}

// HandleWorkHoursAnalysis compares listening inside and outside working hours.
func HandleWorkHoursAnalysis(act Activity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, act.WorkHoursAnalysis(r.Context()))
	}
}

// HandleProductivityCorrelation ranks genres and artists for focused work.
func HandleProductivityCorrelation(act Activity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, act.ProductivityCorrelation(r.Context()))
	}
}

// HandleListeningPatterns summarises listening over a period of day, week
// or month. Other periods are rejected with 400.
func HandleListeningPatterns(act Activity) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := r.URL.Query().Get("period")
		if period == "" {
			period = defaultPatternPeriod
		}

		if !slices.Contains(spotifyapi.Periods, period) {
			writeJSONError(w, http.StatusBadRequest, "period must be day, week or month")
			return
		}

		writeJSON(w, http.StatusOK, act.ListeningPatterns(r.Context(), period))
	}
}
