package douban

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"movie_sync/internal/domain"
)

const htmlAccept = "text/html,application/xhtml+xml"

// WebSource scrapes a user's public collection pages on movie.douban.com.
type WebSource struct {
	*client
	baseURL      string
	fetchDetails bool
}

func NewWebSource(cfg Config, logger *slog.Logger) *WebSource {
	logger = logger.With("source", SourceID, "mode", "web")
	return &WebSource{
		client:       newClient(cfg, logger),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		fetchDetails: cfg.FetchDetails,
	}
}

func (s *WebSource) ID() string {
	return SourceID
}

func (s *WebSource) Name() string {
	return SourceName
}

// Fetch walks every collection page for status. A failed page ends the walk
// and the movies gathered so far are returned.
func (s *WebSource) Fetch(ctx context.Context, status domain.Status, userID string) ([]domain.Movie, error) {
	if err := checkRequest(status, userID); err != nil {
		return nil, err
	}

	var movies []domain.Movie
	seen := make(map[string]struct{})

	next := s.listURL(status, userID)
	for page := 0; next != ""; page++ {
		if _, ok := seen[next]; ok {
			s.logger.Warn("pagination loop detected", "url", next)
			break
		}
		seen[next] = struct{}{}

		p, err := s.fetchPage(ctx, next, status)
		if err != nil {
			s.logger.Warn("stopping pagination, returning partial results",
				"page", page,
				"fetched", len(movies),
				"error", err,
			)
			break
		}

		if s.fetchDetails {
			for i := range p.Movies {
				s.enrich(ctx, &p.Movies[i])
			}
		}

		movies = append(movies, p.Movies...)

		s.logger.Debug("fetched page",
			"page", page,
			"movies", len(p.Movies),
			"total", len(movies),
		)

		next = p.Next
	}

	return movies, nil
}

// Probe fetches the first collection page only and reports failures.
func (s *WebSource) Probe(ctx context.Context, status domain.Status, userID string) ([]domain.Movie, error) {
	if err := checkRequest(status, userID); err != nil {
		return nil, err
	}
	p, err := s.fetchPage(ctx, s.listURL(status, userID), status)
	if err != nil {
		return nil, err
	}
	return p.Movies, nil
}

func (s *WebSource) fetchPage(ctx context.Context, pageURL string, status domain.Status) (listPage, error) {
	body, err := s.get(ctx, pageURL, htmlAccept)
	if err != nil {
		return listPage{}, err
	}

	p, err := parseListPage(body, pageURL, status)
	if err != nil {
		return listPage{}, fmt.Errorf("parse page: %w", err)
	}
	for _, perr := range p.Skipped {
		s.logger.Warn("skipping entry", "url", pageURL, "error", perr)
	}
	return p, nil
}

func (s *WebSource) enrich(ctx context.Context, m *domain.Movie) {
	subjectURL := m.URL
	if subjectURL == "" {
		subjectURL = s.baseURL + "/subject/" + m.ExternalID + "/"
	}

	body, err := s.get(ctx, subjectURL, htmlAccept)
	if err != nil {
		s.logger.Warn("detail fetch failed, keeping list data",
			"external_id", m.ExternalID,
			"title", m.Title,
			"error", err,
		)
		return
	}

	d, err := parseDetailPage(body)
	if err != nil {
		s.logger.Warn("detail parse failed, keeping list data",
			"external_id", m.ExternalID,
			"error", err,
		)
		return
	}
	d.merge(m)
}

func (s *WebSource) listURL(status domain.Status, userID string) string {
	return fmt.Sprintf("%s/people/%s/%s?start=0&sort=time&rating=all&filter=all&mode=grid",
		s.baseURL, url.PathEscape(userID), webPath(status))
}
