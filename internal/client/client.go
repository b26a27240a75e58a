// Package client fetches inspection data from the backend JSON endpoints.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roadwatch/roadwatch-agent/internal/detection"
)

const (
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries the correlation id of each backend request.
	RequestIDHeader = "X-Request-Id"

	maxResponseBytes = 64 << 20
	maxErrorBytes    = 4096
)

// FetchError is returned when an endpoint answers with a non-2xx status.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *FetchError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient talks to a backend serving the /api endpoints.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Stats returns the global counters, or the batch-scoped ones when batch is set.
func (c *HTTPClient) Stats(ctx context.Context, batch detection.ID) (*detection.StatsResponse, error) {
	var out detection.StatsResponse
	if err := c.get(ctx, "/api/stats/", batchQuery(batch), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RoadStats(ctx context.Context) (*detection.RoadStats, error) {
	var out detection.RoadStats
	if err := c.get(ctx, "/api/road_stats/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Weather(ctx context.Context) (*detection.Weather, error) {
	var out detection.Weather
	if err := c.get(ctx, "/api/weather/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DiseaseTypes(ctx context.Context) (*detection.Distribution, error) {
	var out detection.Distribution
	if err := c.get(ctx, "/api/disease_types/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Boxes(ctx context.Context, batch detection.ID) (*detection.BoxesResponse, error) {
	var out detection.BoxesResponse
	if err := c.get(ctx, "/api/boxes/", batchQuery(batch), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Tracks(ctx context.Context, batch detection.ID) (*detection.TracksResponse, error) {
	var out detection.TracksResponse
	if err := c.get(ctx, "/api/tracks/", batchQuery(batch), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Batches(ctx context.Context) (*detection.BatchesResponse, error) {
	var out detection.BatchesResponse
	if err := c.get(ctx, "/api/batches/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveURL turns a backend-relative link (video source, snapshot) into an
// absolute URL. Absolute links are returned unchanged.
func (c *HTTPClient) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func batchQuery(batch detection.ID) url.Values {
	if batch == "" {
		return nil
	}
	return url.Values{"batch": {string(batch)}}
}

func (c *HTTPClient) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
