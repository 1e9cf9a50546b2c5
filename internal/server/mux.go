// Package server provides HTTP server construction for the dashboard BFF.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zmb3/spotify/v2"

	"github.com/alexjbarnes/dashboard-bff/internal/auth"
	"github.com/alexjbarnes/dashboard-bff/internal/models"
	spotifyapi "github.com/alexjbarnes/dashboard-bff/internal/spotify"
	"github.com/alexjbarnes/dashboard-bff/internal/tokenstore"
)

// Resources is the Spotify data the dashboard reads. Every method returns
// a neutral shape when data is unavailable.
type Resources interface {
	CurrentTrack(ctx context.Context) spotifyapi.CurrentTrack
	RecentlyPlayed(ctx context.Context, limit int) spotifyapi.Page[spotify.RecentlyPlayedItem]
	TopArtists(ctx context.Context, timeRange string, limit int) spotifyapi.Page[spotify.FullArtist]
	TopTracks(ctx context.Context, timeRange string, limit int) spotifyapi.Page[spotify.FullTrack]
	Playlists(ctx context.Context, limit, offset int) spotifyapi.Page[spotify.SimplePlaylist]
	PlaylistTracks(ctx context.Context, id string, limit, offset int) spotifyapi.Page[spotify.PlaylistTrack]
	CurrentUser(ctx context.Context) *spotify.PrivateUser
}

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Store       tokenstore.Store
	Authorizer  auth.Authorizer
	Installer   auth.Installer
	Clearer     auth.Clearer
	Refresher   auth.Refresher
	Resources   Resources
	Activity    Activity
	Scopes      []string
	FrontendURL string
	Cookie      auth.StateCookie
	Logger      *slog.Logger
	Version     string
	Runtime     string
	Backend     string
}

// NewMux builds the HTTP handler with the Spotify login endpoints, the
// resource and developer activity endpoints and a health check. Every
// request is logged.
func NewMux(cfg MuxConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /spotify/auth/login", auth.HandleLogin(cfg.Authorizer, cfg.Scopes, cfg.Cookie, cfg.Logger))
	mux.HandleFunc("GET /spotify/auth/callback", auth.HandleCallback(cfg.Authorizer, cfg.Installer, cfg.Cookie, cfg.FrontendURL, cfg.Logger))
	mux.HandleFunc("GET /spotify/auth/refresh", auth.HandleRefresh(cfg.Refresher, cfg.Logger))
	mux.HandleFunc("GET /spotify/auth/status", auth.HandleStatus(cfg.Store, cfg.Logger))
	mux.HandleFunc("GET /spotify/auth/logout", auth.HandleLogout(cfg.Clearer, cfg.Logger))

	mux.HandleFunc("GET /spotify/current-track", HandleCurrentTrack(cfg.Resources))
	mux.HandleFunc("GET /spotify/recently-played", HandleRecentlyPlayed(cfg.Resources))
	mux.HandleFunc("GET /spotify/top/{type}", HandleTop(cfg.Resources))
	mux.HandleFunc("GET /spotify/playlists", HandlePlaylists(cfg.Resources))
	mux.HandleFunc("GET /spotify/playlists/{id}/tracks", HandlePlaylistTracks(cfg.Resources))
	mux.HandleFunc("GET /spotify/current-user", HandleCurrentUser(cfg.Resources))

	mux.HandleFunc("GET /spotify/developer-activity/work-hours-analysis", HandleWorkHoursAnalysis(cfg.Activity))
	mux.HandleFunc("GET /spotify/developer-activity/productivity-correlation", HandleProductivityCorrelation(cfg.Activity))
	mux.HandleFunc("GET /spotify/developer-activity/listening-patterns", HandleListeningPatterns(cfg.Activity))

	mux.HandleFunc("GET /healthz", HandleHealth(cfg.Store, cfg.Version, cfg.Runtime, cfg.Backend))

	return LogRequests(cfg.Logger)(mux)
}

// HandleHealth reports liveness and whether a token is currently stored.
func HandleHealth(store tokenstore.Store, version, runtime, backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rec, err := store.Get()

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"version":   version,
			"runtime":   runtime,
			"backend":   backend,
			"has_token": err == nil && hasToken(rec),
		})
	}
}

func hasToken(rec *models.TokenRecord) bool {
	return rec != nil && rec.AccessToken != ""
}
