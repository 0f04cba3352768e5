package douban

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"movie_sync/internal/domain"
)

// APISource reads a user's collection from the JSON collection API.
type APISource struct {
	*client
	baseURL  string
	apiKey   string
	pageSize int
}

func NewAPISource(cfg Config, logger *slog.Logger) *APISource {
	logger = logger.With("source", SourceID, "mode", "api")
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &APISource{
		client:   newClient(cfg, logger),
		baseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
	}
}

func (s *APISource) ID() string {
	return SourceID
}

func (s *APISource) Name() string {
	return SourceName
}

// Fetch pages through the collection until start+count reaches total.
// A page that cannot be decoded is skipped once the total is known; a
// transport or status failure ends the walk and the movies gathered so far
// are returned.
func (s *APISource) Fetch(ctx context.Context, status domain.Status, userID string) ([]domain.Movie, error) {
	if err := checkRequest(status, userID); err != nil {
		return nil, err
	}

	var movies []domain.Movie
	total := -1

	for start := 0; ; start += s.pageSize {
		resp, err := s.fetchPage(ctx, status, userID, start)
		if err != nil {
			var parseErr *domain.ParseError
			if errors.As(err, &parseErr) && total >= 0 && start+s.pageSize < total {
				s.logger.Warn("skipping unreadable page", "start", start, "error", err)
				continue
			}
			s.logger.Warn("stopping pagination, returning partial results",
				"start", start,
				"fetched", len(movies),
				"error", err,
			)
			break
		}
		total = resp.Total

		movies = append(movies, s.transform(resp.Collections, status)...)

		s.logger.Debug("fetched page",
			"start", start,
			"items", len(resp.Collections),
			"total", resp.Total,
		)

		if len(resp.Collections) == 0 || start+s.pageSize >= resp.Total {
			break
		}
	}

	return movies, nil
}

// Probe fetches the first page only and reports failures.
func (s *APISource) Probe(ctx context.Context, status domain.Status, userID string) ([]domain.Movie, error) {
	if err := checkRequest(status, userID); err != nil {
		return nil, err
	}
	resp, err := s.fetchPage(ctx, status, userID, 0)
	if err != nil {
		return nil, err
	}
	return s.transform(resp.Collections, status), nil
}

func (s *APISource) fetchPage(ctx context.Context, status domain.Status, userID string, start int) (*collectionResponse, error) {
	q := url.Values{}
	q.Set("status", apiStatus(status))
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(s.pageSize))
	if s.apiKey != "" {
		q.Set("apikey", s.apiKey)
	}
	u := fmt.Sprintf("%s/user/%s/collection?%s", s.baseURL, url.PathEscape(userID), q.Encode())

	body, err := s.get(ctx, u, "application/json")
	if err != nil {
		return nil, err
	}

	var resp collectionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.ParseError{Entry: fmt.Sprintf("page start=%d", start), Reason: err.Error()}
	}
	return &resp, nil
}

func (s *APISource) transform(items []json.RawMessage, status domain.Status) []domain.Movie {
	movies := make([]domain.Movie, 0, len(items))

	for i, raw := range items {
		m, err := decodeItem(raw, status)
		if err != nil {
			s.logger.Warn("skipping entry", "index", i, "error", err)
			continue
		}
		movies = append(movies, m)
	}

	return movies
}

func decodeItem(raw json.RawMessage, status domain.Status) (domain.Movie, error) {
	var item collectionItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.Movie{}, &domain.ParseError{Reason: err.Error()}
	}
	return toMovie(item, status)
}

func toMovie(item collectionItem, status domain.Status) (domain.Movie, error) {
	if item.Subject == nil {
		return domain.Movie{}, &domain.ParseError{Reason: "missing subject"}
	}
	sub := item.Subject
	id := strings.TrimSpace(string(sub.ID))
	if id == "" {
		return domain.Movie{}, &domain.ParseError{Entry: sub.Title, Reason: "missing subject id"}
	}

	m := domain.Movie{
		ExternalID:    id,
		Title:         sub.Title,
		OriginalTitle: sub.OriginalTitle,
		Year:          string(sub.Year),
		Genres:        sub.Genres,
		Regions:       sub.Countries,
		ReleaseDate:   isoDate(sub.MainlandPubdate),
		URL:           sub.Alt,
		PosterURL:     sub.Images.Large,
		Summary:       sub.Summary,
		Comment:       item.Comment,
		RatingDate:    isoDate(item.CreatedAt),
		Status:        status,
	}
	if m.ReleaseDate == "" && len(sub.Pubdates) > 0 {
		m.ReleaseDate = isoDate(sub.Pubdates[0])
	}
	if item.Rating != nil {
		m.Rating = item.Rating.Value.Float()
	}
	if len(sub.Durations) > 0 {
		m.DurationMinutes, _ = strconv.Atoi(intRe.FindString(sub.Durations[0]))
	}
	for _, d := range sub.Directors {
		m.Directors = append(m.Directors, d.Name)
	}
	for _, c := range sub.Casts {
		m.Cast = append(m.Cast, c.Name)
	}
	if m.Title == "" {
		m.Title = m.OriginalTitle
	}

	m.Normalize()
	return m, nil
}
