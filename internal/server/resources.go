package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	spotifyapi "github.com/alexjbarnes/dashboard-bff/internal/spotify"
)

// Query defaults applied when a parameter is omitted or malformed.
const (
	defaultRecentLimit   = 10
	defaultTopLimit      = 10
	defaultTopTimeRange  = "medium_term"
	defaultPlaylistLimit = 20
	defaultTracksLimit   = 20
)

// HandleCurrentTrack returns the now-playing payload.
func HandleCurrentTrack(res Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, res.CurrentTrack(r.Context()))
	}
}

// HandleRecentlyPlayed returns recently played tracks.
func HandleRecentlyPlayed(res Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := intParam(r, "limit", defaultRecentLimit)
		writeJSON(w, http.StatusOK, res.RecentlyPlayed(r.Context(), limit))
	}
}

// HandleTop returns the owner's top artists or tracks. Unknown types and
// time ranges are rejected with 400.
func HandleTop(res Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := spotifyapi.TopType(r.PathValue("type"))
		if !kind.Valid() {
			writeJSONError(w, http.StatusBadRequest, "type must be artists or tracks")
			return
		}

		timeRange := r.URL.Query().Get("time_range")
		if timeRange == "" {
			timeRange = defaultTopTimeRange
		}

		if !slices.Contains(spotifyapi.TimeRanges, timeRange) {
			writeJSONError(w, http.StatusBadRequest, "time_range must be short_term, medium_term or long_term")
			return
		}

		limit := intParam(r, "limit", defaultTopLimit)

		if kind == spotifyapi.TopArtists {
			writeJSON(w, http.StatusOK, res.TopArtists(r.Context(), timeRange, limit))
			return
		}

		writeJSON(w, http.StatusOK, res.TopTracks(r.Context(), timeRange, limit))
	}
}

// HandlePlaylists returns the owner's playlists.
func HandlePlaylists(res Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := intParam(r, "limit", defaultPlaylistLimit)
		offset := intParam(r, "offset", 0)
		writeJSON(w, http.StatusOK, res.Playlists(r.Context(), limit, offset))
	}
}

// HandlePlaylistTracks returns the tracks of one playlist.
func HandlePlaylistTracks(res Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := intParam(r, "limit", defaultTracksLimit)
		offset := intParam(r, "offset", 0)
		writeJSON(w, http.StatusOK, res.PlaylistTracks(r.Context(), r.PathValue("id"), limit, offset))
	}
}

// HandleCurrentUser returns the owner's profile, or {} when unavailable.
func HandleCurrentUser(res Resources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := res.CurrentUser(r.Context())
		if user == nil {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

// intParam parses a non-negative integer query parameter, returning def
// when it is absent or malformed.
func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}

	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
