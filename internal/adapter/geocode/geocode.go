// Package geocode resolves venue addresses to coordinates through a Nominatim-compatible
// search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/felle787/LocalRadar2/internal/adapter/metrics"
	"github.com/felle787/LocalRadar2/internal/domain"
	"github.com/felle787/LocalRadar2/internal/platform/retry"
)

const (
	defaultRequestTimeout = 5 * time.Second
	maxResponseBytes      = 1 << 20
)

type Config struct {
	BaseURL   string
	UserAgent string
	// RatePerSecond bounds outgoing requests. Nominatim's public policy is 1/s.
	RatePerSecond float64
	Retry         retry.Policy
}

// DefaultRetryPolicy retries transient failures three times.
func DefaultRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       4 * time.Second,
		RateLimitBackoff: 5 * time.Second,
	}
}

// statusError is a non-2xx answer from the search endpoint.
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("geocoder returned status %d", e.StatusCode)
}

type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	userAgent  string
	limiter    *rate.Limiter
	policy     retry.Policy
	clock      clockwork.Clock
	metrics    *metrics.GeocodeMetrics
}

var _ domain.Geocoder = (*Client)(nil)

func NewClient(cfg Config, httpClient *http.Client, clock clockwork.Clock, m *metrics.GeocodeMetrics) (*Client, error) {
	base, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocoder URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	cfg.Retry.Clock = clock
	cfg.Retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Geocoding attempt failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		policy:     cfg.Retry,
		clock:      clock,
		metrics:    m,
	}, nil
}

// Geocode returns the best match for address, or domain.ErrNoGeocodeResult.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	start := c.clock.Now()
	coords, err := retry.Do(ctx, c.policy, classify, func(ctx context.Context) (domain.Coordinates, error) {
		return c.search(ctx, address)
	})
	c.metrics.Duration.Observe(c.clock.Since(start).Seconds())

	switch {
	case err == nil:
		c.metrics.Requests.WithLabelValues("found").Inc()
		return coords, nil
	case errors.Is(err, domain.ErrNoGeocodeResult):
		c.metrics.Requests.WithLabelValues("not_found").Inc()
		return domain.Coordinates{}, domain.ErrNoGeocodeResult
	default:
		c.metrics.Requests.WithLabelValues("error").Inc()
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (c *Client) search(ctx context.Context, address string) (domain.Coordinates, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Coordinates{}, err
	}

	u := c.baseURL.JoinPath("search")
	u.RawQuery = url.Values{"q": {address}, "format": {"json"}, "limit": {"1"}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Coordinates{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return domain.Coordinates{}, &statusError{StatusCode: resp.StatusCode}
	}

	var results []searchResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&results); err != nil {
		return domain.Coordinates{}, fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	if len(results) == 0 {
		return domain.Coordinates{}, domain.ErrNoGeocodeResult
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}
	return domain.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func classify(err error) retry.Action {
	if errors.Is(err, domain.ErrNoGeocodeResult) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case statusErr.StatusCode >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return retry.Stop
	}
	return retry.Retry
}

// Noop is used when no geocoder endpoint is configured. Venues are saved without coordinates.
type Noop struct{}

func (Noop) Geocode(context.Context, string) (domain.Coordinates, error) {
	return domain.Coordinates{}, domain.ErrNoGeocodeResult
}
