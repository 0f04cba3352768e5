package notion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"movie_sync/internal/domain"
)

const (
	serviceName = "notion"

	maxBodySize       = 8 << 20
	breakerTrip       = 5
	breakerOpenPeriod = 30 * time.Second
)

// Config holds Notion client configuration.
type Config struct {
	BaseURL  string
	APIKey   string
	Version  string
	Timeout  time.Duration
	PageSize int
}

// Client is a minimal Notion REST client. Calls are sequential and share one
// circuit breaker: after breakerTrip consecutive transport, 429 or 5xx
// failures every call fails fast until the open period ends.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	version    string
	pageSize   int
	cb         *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	logger = logger.With("store", serviceName)

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "notion-api",
		Timeout: breakerOpenPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrip
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		version:    cfg.Version,
		pageSize:   pageSize,
		cb:         cb,
		logger:     logger,
	}
}

// countsAsSuccess keeps client errors (bad payloads, missing pages) from
// tripping the breaker; only outages do.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var remote *domain.RemoteServiceError
	if errors.As(err, &remote) {
		return remote.StatusCode < 500 && remote.StatusCode != http.StatusTooManyRequests
	}
	return false
}

type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	op := method + " " + path
	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &domain.TransportError{Service: serviceName, Op: op, Err: err}
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	op := method + " " + path
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Service: serviceName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &domain.TransportError{Service: serviceName, Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := &domain.RemoteServiceError{Service: serviceName, StatusCode: resp.StatusCode}
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil {
			remote.Code = apiErr.Code
			remote.Message = apiErr.Message
		}
		return nil, remote
	}

	c.logger.Debug("notion request", "op", op, "status", resp.StatusCode)
	return raw, nil
}
