package domain

import "strings"

// Status is the watch-status a movie was fetched under.
type Status string

const (
	StatusWatched    Status = "watched"
	StatusWish       Status = "wish"
	StatusInProgress Status = "in_progress"
)

// Statuses lists the valid watch-statuses.
var Statuses = []Status{StatusWatched, StatusWish, StatusInProgress}

// ParseStatus accepts the three statuses plus the legacy "do" alias for in_progress.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusWatched):
		return StatusWatched, nil
	case string(StatusWish):
		return StatusWish, nil
	case string(StatusInProgress), "do":
		return StatusInProgress, nil
	}
	return "", &ConfigurationError{
		Key:    "sync.status",
		Reason: "must be one of watched, wish, in_progress; got " + s,
	}
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusWatched, StatusWish, StatusInProgress:
		return true
	}
	return false
}

type Movie struct {
	ExternalID      string   `json:"external_id"`
	Title           string   `json:"title"`
	OriginalTitle   string   `json:"original_title"`
	Year            string   `json:"year"`
	Rating          float64  `json:"rating"`
	Genres          []string `json:"genres"`
	Directors       []string `json:"directors"`
	Cast            []string `json:"cast"`
	Regions         []string `json:"regions"`
	ReleaseDate     string   `json:"release_date"`
	DurationMinutes int      `json:"duration_minutes"`
	URL             string   `json:"url"`
	PosterURL       string   `json:"poster_url"`
	Summary         string   `json:"summary"`
	Comment         string   `json:"comment"`
	RatingDate      string   `json:"rating_date"`
	Status          Status   `json:"status"`
}

// Normalize trims text fields and replaces nil slices with empty ones.
func (m *Movie) Normalize() {
	m.ExternalID = strings.TrimSpace(m.ExternalID)
	m.Title = strings.TrimSpace(m.Title)
	m.OriginalTitle = strings.TrimSpace(m.OriginalTitle)
	m.Year = strings.TrimSpace(m.Year)
	m.ReleaseDate = strings.TrimSpace(m.ReleaseDate)
	m.RatingDate = strings.TrimSpace(m.RatingDate)
	m.URL = strings.TrimSpace(m.URL)
	m.PosterURL = strings.TrimSpace(m.PosterURL)
	m.Summary = strings.TrimSpace(m.Summary)
	m.Comment = strings.TrimSpace(m.Comment)
	m.Genres = cleanList(m.Genres)
	m.Directors = cleanList(m.Directors)
	m.Cast = cleanList(m.Cast)
	m.Regions = cleanList(m.Regions)
	if m.DurationMinutes < 0 {
		m.DurationMinutes = 0
	}
	if m.Rating < 0 {
		m.Rating = 0
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// RecordHandle references a record in the destination store.
type RecordHandle struct {
	ID         string
	ExternalID string
}
