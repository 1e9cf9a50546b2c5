package spotify

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/zmb3/spotify/v2"
)

// Analytics derives the developer activity views from listening history.
// Every view falls back to a neutral payload when no history is available.
type Analytics struct {
	api *API
	loc *time.Location
	now func() time.Time
}

// NewAnalytics creates Analytics over api. Hours and weekdays are
// evaluated in loc; nil means the process local zone.
func NewAnalytics(api *API, loc *time.Location) *Analytics {
	if loc == nil {
		loc = time.Local
	}

	return &Analytics{api: api, loc: loc, now: time.Now}
}

const (
	historyLimit = 50

	// defaultTrackDuration stands in for tracks reported without a length.
	defaultTrackDuration = 3 * time.Minute

	// RecommendedWorkPlaylist is suggested alongside the focus analysis.
	RecommendedWorkPlaylist = "spotify:playlist:37i9dQZF1DX5trt9i14X7j"

	defaultPeakListening = "10:00 - 12:00"
)

var (
	defaultWorkGenres    = []string{"Electronic", "Ambient", "Classical", "Jazz", "Lo-Fi"}
	defaultNonWorkGenres = []string{"Rock", "Pop", "Hip-Hop", "R&B", "Metal"}
	defaultFocusGenres   = []string{"Electronic", "Classical", "Ambient", "Lo-Fi"}
	defaultNoiseGenres   = []string{"Rock", "Pop", "Hip-Hop", "R&B"}

	weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// Periods accepted by ListeningPatterns.
var Periods = []string{"day", "week", "month"}

// WorkHoursAnalysis summarises listening during working hours.
type WorkHoursAnalysis struct {
	WorkHoursPercentage    int      `json:"workHoursPercentage"`
	PeakListeningTime      string   `json:"peakListeningTime"`
	WorkGenres             []string `json:"workGenres"`
	NonWorkGenres          []string `json:"nonWorkGenres"`
	ListeningTrend         string   `json:"listeningTrend"`
	MostProductiveGenre    string   `json:"mostProductiveGenre"`
	IsCurrentlyInWorkHours bool     `json:"isCurrentlyInWorkHours"`
	CurrentTime            string   `json:"currentTime"`
}

// ProductivityCorrelation ranks genres and artists for focused work.
type ProductivityCorrelation struct {
	HighProductivityGenres  []string `json:"highProductivityGenres"`
	LowProductivityGenres   []string `json:"lowProductivityGenres"`
	BestArtistsForFocus     []string `json:"bestArtistsForFocus"`
	BestAlbumsForFocus      []string `json:"bestAlbumsForFocus"`
	RecommendedWorkPlaylist string   `json:"recommendedWorkPlaylist"`
}

// HoursSplit is a duration pair rendered as "<n.n> hours".
type HoursSplit struct {
	WorkHours    string `json:"workHours"`
	NonWorkHours string `json:"nonWorkHours"`
}

// TimeOfDay is the share of plays per part of the day.
type TimeOfDay struct {
	Morning   string `json:"morning"`
	Afternoon string `json:"afternoon"`
	Evening   string `json:"evening"`
}

// ListeningPatterns summarises when and how much the owner listens.
type ListeningPatterns struct {
	TotalListeningTime    HoursSplit `json:"totalListeningTime"`
	AverageDailyListening HoursSplit `json:"averageDailyListening"`
	DayWithMostListening  string     `json:"dayWithMostListening"`
	TimeOfDayDistribution TimeOfDay  `json:"timeOfDayDistribution"`
	Period                string     `json:"period"`
}

// WorkHoursAnalysis compares recent plays against the working week.
func (a *Analytics) WorkHoursAnalysis(ctx context.Context) WorkHoursAnalysis {
	recent := a.api.RecentlyPlayed(ctx, historyLimit).Items
	artists := a.api.TopArtists(ctx, "short_term", 10).Items
	now := a.now().In(a.loc)

	work, nonWork := defaultWorkGenres, defaultNonWorkGenres
	if ranked := rankGenres(artists); len(ranked) > 0 {
		work, nonWork = window(ranked, 0, 5), window(ranked, 5, 10)
	}

	return WorkHoursAnalysis{
		WorkHoursPercentage:    a.workHoursPercentage(recent),
		PeakListeningTime:      a.peakListeningTime(recent),
		WorkGenres:             work,
		NonWorkGenres:          nonWork,
		ListeningTrend:         listeningTrend(recent, now),
		MostProductiveGenre:    first(work, defaultWorkGenres[0]),
		IsCurrentlyInWorkHours: inWorkHours(now),
		CurrentTime:            now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// ProductivityCorrelation ranks the owner's medium term favourites.
func (a *Analytics) ProductivityCorrelation(ctx context.Context) ProductivityCorrelation {
	artists := a.api.TopArtists(ctx, "medium_term", 10).Items
	tracks := a.api.TopTracks(ctx, "medium_term", 20).Items

	high, low := defaultFocusGenres, defaultNoiseGenres
	if ranked := rankGenres(artists); len(ranked) > 0 {
		high, low = window(ranked, 0, 4), window(ranked, 4, 8)
	}

	names := make([]string, 0, 3)
	for _, artist := range window(artists, 0, 3) {
		names = append(names, artist.Name)
	}

	albums := make([]string, 0, 3)
	for _, track := range window(tracks, 0, 3) {
		albums = append(albums, track.Album.Name)
	}

	return ProductivityCorrelation{
		HighProductivityGenres:  high,
		LowProductivityGenres:   low,
		BestArtistsForFocus:     names,
		BestAlbumsForFocus:      albums,
		RecommendedWorkPlaylist: RecommendedWorkPlaylist,
	}
}

// ListeningPatterns breaks recent plays down by working time, weekday and
// time of day.
func (a *Analytics) ListeningPatterns(ctx context.Context, period string) ListeningPatterns {
	recent := a.api.RecentlyPlayed(ctx, historyLimit).Items
	if len(recent) == 0 {
		return ListeningPatterns{
			TotalListeningTime:    HoursSplit{WorkHours: "0 hours", NonWorkHours: "0 hours"},
			AverageDailyListening: HoursSplit{WorkHours: "0 hours", NonWorkHours: "0 hours"},
			DayWithMostListening:  "N/A",
			TimeOfDayDistribution: TimeOfDay{Morning: "0%", Afternoon: "0%", Evening: "0%"},
			Period:                period,
		}
	}

	var (
		work, nonWork time.Duration
		days          [7]int
		parts         [3]int
	)

	for _, item := range recent {
		played := item.PlayedAt.In(a.loc)

		length := item.Track.TimeDuration()
		if length <= 0 {
			length = defaultTrackDuration
		}

		if weekday(played) && played.Hour() >= 9 && played.Hour() <= 18 {
			work += length
		} else {
			nonWork += length
		}

		days[played.Weekday()]++

		switch h := played.Hour(); {
		case h >= 5 && h < 12:
			parts[0]++
		case h >= 12 && h < 18:
			parts[1]++
		default:
			parts[2]++
		}
	}

	busiest := 0
	for d := range days {
		if days[d] > days[busiest] {
			busiest = d
		}
	}

	total := len(recent)

	return ListeningPatterns{
		TotalListeningTime: HoursSplit{
			WorkHours:    hours(work.Hours()),
			NonWorkHours: hours(nonWork.Hours()),
		},
		AverageDailyListening: HoursSplit{
			WorkHours:    hours(work.Hours() / 5),
			NonWorkHours: hours(nonWork.Hours() / 7),
		},
		DayWithMostListening: weekdayNames[busiest],
		TimeOfDayDistribution: TimeOfDay{
			Morning:   percent(parts[0], total),
			Afternoon: percent(parts[1], total),
			Evening:   percent(parts[2], total),
		},
		Period: period,
	}
}

// workHoursPercentage is the share of plays on weekdays between 08:30 and
// 18:30.
func (a *Analytics) workHoursPercentage(items []spotify.RecentlyPlayedItem) int {
	if len(items) == 0 {
		return 0
	}

	n := 0
	for _, item := range items {
		if inWorkHours(item.PlayedAt.In(a.loc)) {
			n++
		}
	}

	return int(math.Round(float64(n) / float64(len(items)) * 100))
}

// peakListeningTime is the busiest weekday hour between 09:00 and 18:00.
// Ties keep the earliest hour.
func (a *Analytics) peakListeningTime(items []spotify.RecentlyPlayedItem) string {
	if len(items) == 0 {
		return defaultPeakListening
	}

	var counts [24]int
	for _, item := range items {
		played := item.PlayedAt.In(a.loc)
		if weekday(played) && played.Hour() >= 8 && played.Hour() <= 18 {
			counts[played.Hour()]++
		}
	}

	peak := 9
	for h := 9; h <= 18; h++ {
		if counts[h] > counts[peak] {
			peak = h
		}
	}

	return fmt.Sprintf("%d:00 - %d:00", peak, peak+1)
}

// listeningTrend compares plays in the last seven days with the seven
// days before.
func listeningTrend(items []spotify.RecentlyPlayedItem, now time.Time) string {
	if len(items) == 0 {
		return "0%"
	}

	oneWeekAgo := now.Add(-7 * 24 * time.Hour)
	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)

	var last, previous int
	for _, item := range items {
		switch played := item.PlayedAt; {
		case !played.Before(oneWeekAgo) && !played.After(now):
			last++
		case !played.Before(twoWeeksAgo) && played.Before(oneWeekAgo):
			previous++
		}
	}

	if previous == 0 {
		return "+100%"
	}

	change := int(math.Round(float64(last-previous) / float64(previous) * 100))

	return fmt.Sprintf("%+d%%", change)
}

// rankGenres orders genres by how many artists carry them, most common
// first. Ties keep first-seen order.
func rankGenres(artists []spotify.FullArtist) []string {
	counts := map[string]int{}

	var order []string
	for _, artist := range artists {
		for _, genre := range artist.Genres {
			if counts[genre] == 0 {
				order = append(order, genre)
			}
			counts[genre]++
		}
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})

	return order
}

func inWorkHours(t time.Time) bool {
	clock := float64(t.Hour()) + float64(t.Minute())/60

	return weekday(t) && clock >= 8.5 && clock <= 18.5
}

func weekday(t time.Time) bool {
	return t.Weekday() >= time.Monday && t.Weekday() <= time.Friday
}

// window returns s[from:to] clamped to len(s), never nil.
func window[T any](s []T, from, to int) []T {
	to = min(to, len(s))
	if from >= to {
		return []T{}
	}

	return s[from:to]
}

func first(s []string, fallback string) string {
	if len(s) == 0 {
		return fallback
	}

	return s[0]
}

func hours(h float64) string {
	return fmt.Sprintf("%.1f hours", h)
}

func percent(n, total int) string {
	return fmt.Sprintf("%d%%", int(math.Round(float64(n)/float64(total)*100)))
}
