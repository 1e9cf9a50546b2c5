package spotify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/zmb3/spotify/v2"
)

// Page is the list envelope returned for every list endpoint. Items is
// never nil so an unavailable list encodes as {"items": []}.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Total  int    `json:"total,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Next   string `json:"next,omitempty"`
}

// EmptyPage is the neutral list shape.
func EmptyPage[T any]() Page[T] {
	return Page[T]{Items: []T{}}
}

// CurrentTrack is the now-playing payload. The zero value is the neutral
// shape {"is_playing": false, "item": null}.
type CurrentTrack struct {
	IsPlaying  bool               `json:"is_playing"`
	Item       *spotify.FullTrack `json:"item"`
	ProgressMs int64              `json:"progress_ms,omitempty"`
	Timestamp  int64              `json:"timestamp,omitempty"`
}

// TopType selects the entity listed by the top items endpoint.
type TopType string

const (
	TopArtists TopType = "artists"
	TopTracks  TopType = "tracks"
)

// Valid reports whether t is a known top items type.
func (t TopType) Valid() bool {
	return t == TopArtists || t == TopTracks
}

// TimeRange values accepted by the top items endpoint.
var TimeRanges = []string{"short_term", "medium_term", "long_term"}

// API exposes the dashboard's Spotify resources with neutral shapes in
// place of errors.
type API struct {
	exec   *Executor
	logger *slog.Logger
}

// NewAPI creates an API on top of exec.
func NewAPI(exec *Executor, logger *slog.Logger) *API {
	return &API{exec: exec, logger: logger}
}

// CurrentTrack returns what the owner is playing.
func (a *API) CurrentTrack(ctx context.Context) CurrentTrack {
	res := a.exec.Do(ctx, "/me/player/currently-playing", nil)
	if !res.OK() {
		a.unavailable("/me/player/currently-playing", res)
		return CurrentTrack{}
	}

	var cp spotify.CurrentlyPlaying
	if !a.decode("/me/player/currently-playing", res.Body, &cp) {
		return CurrentTrack{}
	}

	return CurrentTrack{
		IsPlaying:  cp.Playing,
		Item:       cp.Item,
		ProgressMs: int64(cp.Progress),
		Timestamp:  cp.Timestamp,
	}
}

// RecentlyPlayed lists recently played tracks.
func (a *API) RecentlyPlayed(ctx context.Context, limit int) Page[spotify.RecentlyPlayedItem] {
	return getPage[spotify.RecentlyPlayedItem](ctx, a, "/me/player/recently-played", pageQuery(limit, -1))
}

// TopArtists lists the owner's top artists over timeRange.
func (a *API) TopArtists(ctx context.Context, timeRange string, limit int) Page[spotify.FullArtist] {
	return getPage[spotify.FullArtist](ctx, a, "/me/top/artists", topQuery(timeRange, limit))
}

// TopTracks lists the owner's top tracks over timeRange.
func (a *API) TopTracks(ctx context.Context, timeRange string, limit int) Page[spotify.FullTrack] {
	return getPage[spotify.FullTrack](ctx, a, "/me/top/tracks", topQuery(timeRange, limit))
}

// Playlists lists the owner's playlists.
func (a *API) Playlists(ctx context.Context, limit, offset int) Page[spotify.SimplePlaylist] {
	return getPage[spotify.SimplePlaylist](ctx, a, "/me/playlists", pageQuery(limit, offset))
}

// PlaylistTracks lists the tracks of one playlist.
func (a *API) PlaylistTracks(ctx context.Context, id string, limit, offset int) Page[spotify.PlaylistTrack] {
	path := "/playlists/" + url.PathEscape(id) + "/tracks"
	return getPage[spotify.PlaylistTrack](ctx, a, path, pageQuery(limit, offset))
}

// CurrentUser returns the owner's profile, or nil when it is unavailable.
func (a *API) CurrentUser(ctx context.Context) *spotify.PrivateUser {
	res := a.exec.Do(ctx, "/me", nil)
	if !res.OK() {
		a.unavailable("/me", res)
		return nil
	}

	var user spotify.PrivateUser
	if !a.decode("/me", res.Body, &user) {
		return nil
	}

	return &user
}

func getPage[T any](ctx context.Context, a *API, path string, query url.Values) Page[T] {
	res := a.exec.Do(ctx, path, query)
	if !res.OK() {
		a.unavailable(path, res)
		return EmptyPage[T]()
	}

	var page Page[T]
	if !a.decode(path, res.Body, &page) {
		return EmptyPage[T]()
	}

	if page.Items == nil {
		page.Items = []T{}
	}

	return page
}

// unavailable notes that path is served with its neutral shape.
func (a *API) unavailable(path string, res Result) {
	if err := res.Err(); err != nil {
		a.logger.Debug("serving neutral shape",
			slog.String("path", path),
			slog.String("outcome", res.Outcome.String()),
			slog.String("reason", err.Error()),
		)
	}
}

func (a *API) decode(path string, body []byte, v any) bool {
	if err := json.Unmarshal(body, v); err != nil {
		a.logger.Warn("decoding resource response",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return false
	}

	return true
}

// pageQuery builds limit/offset parameters. Non-positive limits and
// negative offsets are omitted.
func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	if offset >= 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	return q
}

func topQuery(timeRange string, limit int) url.Values {
	q := pageQuery(limit, -1)
	if timeRange != "" {
		q.Set("time_range", timeRange)
	}

	return q
}
