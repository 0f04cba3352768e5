package douban

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"movie_sync/internal/domain"
)

const (
	SourceID   = "douban"
	SourceName = "Douban Movie"

	serviceName = "douban"
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	maxBodySize = 8 << 20
)

// Config holds Douban source configuration.
type Config struct {
	BaseURL      string
	APIBaseURL   string
	APIKey       string
	PageSize     int
	PageDelay    time.Duration
	Timeout      time.Duration
	FetchDetails bool
}

// client is the paced HTTP layer shared by the web and api sources.
// Every request waits on the limiter first, so consecutive pages are at
// least PageDelay apart. Requests are never retried.
type client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func newClient(cfg Config, logger *slog.Logger) *client {
	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}
	return &client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

func (c *client) get(ctx context.Context, url, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Service: serviceName, Op: "wait", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Service: serviceName, Op: "GET " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.RemoteServiceError{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Message:    url,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &domain.TransportError{Service: serviceName, Op: "read body", Err: err}
	}

	c.logger.Debug("fetched", "url", url, "bytes", len(body))
	return body, nil
}

// checkRequest fails before any network access when the inputs are unusable.
func checkRequest(status domain.Status, userID string) error {
	if !status.Valid() {
		return &domain.ConfigurationError{
			Key:    "sync.status",
			Reason: fmt.Sprintf("unknown status %q", status),
		}
	}
	if strings.TrimSpace(userID) == "" {
		return &domain.ConfigurationError{Key: "douban.user_id", Reason: "is required"}
	}
	return nil
}

// webPath is the collection page segment for a status.
func webPath(status domain.Status) string {
	switch status {
	case domain.StatusWish:
		return "wish"
	case domain.StatusInProgress:
		return "do"
	default:
		return "collect"
	}
}

// apiStatus is the status query value of the collection API.
func apiStatus(status domain.Status) string {
	switch status {
	case domain.StatusWish:
		return "wish"
	case domain.StatusInProgress:
		return "do"
	default:
		return "watched"
	}
}
