package measureapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/paulmach/orb"
	"golang.org/x/sync/singleflight"

	"imagery-compare/internal/cache"
	"imagery-compare/internal/geometry"
	"imagery-compare/internal/metrics"
	"imagery-compare/internal/ratelimit"
)

const (
	EndpointArea     = "measure-area"
	EndpointDistance = "measure-distance"
	EndpointHealth   = "health"

	// User agent
	UserAgent = "imagery-compare/measureapi"

	DefaultTimeout = 20 * time.Second

	maxResponseBytes = 1 << 20
)

var (
	// ErrUnavailable covers transport failures, non-2xx answers and paused backends
	ErrUnavailable = errors.New("measurement service unavailable")
	// ErrInvalidResult covers malformed bodies and missing or non-finite values
	ErrInvalidResult = errors.New("measurement service returned an invalid result")
)

// response is the union of both endpoints' bodies
type response struct {
	Area     *float64 `json:"area"`
	Distance *float64 `json:"distance"`
	Unit     string   `json:"unit,omitempty"`
	Error    string   `json:"error,omitempty"`
	Details  string   `json:"details,omitempty"`
}

// HealthStatus is the backend health report
type HealthStatus struct {
	Status         string `json:"status"`
	GEEInitialized bool   `json:"gee_initialized"`
	GEEError       string `json:"gee_error,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
}

// Client handles communication with the measurement backend
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	results    *cache.ResultCache
	limiter    *ratelimit.Handler
	inflight   singleflight.Group
	log        logr.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithResultCache enables caching of backend values
func WithResultCache(rc *cache.ResultCache) Option {
	return func(c *Client) { c.results = rc }
}

// WithRateLimit skips the network while the backend is paused
func WithRateLimit(h *ratelimit.Handler) Option {
	return func(c *Client) { c.limiter = h }
}

// WithLogger sets the client logger
func WithLogger(log logr.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a measurement backend client with system proxy support
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid measurement API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid measurement API URL %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
		log: logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithName("measureapi")
	return c, nil
}

// BaseURL returns the backend root URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Measure sends a finished geometry to the backend endpoint matching its kind
// and returns the authoritative value (km² or km).
func (c *Client) Measure(ctx context.Context, g orb.Geometry) (float64, error) {
	kind, err := geometry.KindOf(g)
	if err != nil {
		return 0, err
	}
	endpoint := EndpointArea
	if kind == geometry.KindDistance {
		endpoint = EndpointDistance
	}

	encoded, err := geometry.Encode(g)
	if err != nil {
		return 0, err
	}

	key := cache.Key(endpoint, encoded)
	if v, ok := c.results.Get(key); ok {
		metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomeCached).Inc()
		c.log.V(1).Info("using cached backend value", "endpoint", endpoint, "value", v)
		return v, nil
	}

	if c.limiter != nil && c.limiter.IsPaused(endpoint) {
		metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomePaused).Inc()
		return 0, fmt.Errorf("%w: %s is paused", ErrUnavailable, endpoint)
	}

	// Identical shapes finalized twice in quick succession share one request
	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		return c.post(ctx, endpoint, kind, encoded)
	})
	if err != nil {
		return 0, err
	}

	value := v.(float64)
	c.results.Set(key, value)
	return value, nil
}

// post performs one request and validates the response body
func (c *Client) post(ctx context.Context, endpoint string, kind geometry.Kind, encoded []byte) (float64, error) {
	body, err := json.Marshal(map[string]json.RawMessage{"geometry": encoded})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		if c.limiter != nil && ctx.Err() == nil {
			c.limiter.RecordFailure(endpoint, 0)
		}
		metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomeTransport).Inc()
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if c.limiter != nil {
		c.limiter.CheckResponse(endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomeTransport).Inc()
		return 0, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	var decoded response
	decodeErr := json.Unmarshal(data, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomeHTTPError).Inc()
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		return 0, fmt.Errorf("%w: %s request failed with status %d: %s", ErrUnavailable, endpoint, resp.StatusCode, msg)
	}

	if decodeErr != nil {
		metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomeInvalid).Inc()
		return 0, fmt.Errorf("%w: %v", ErrInvalidResult, decodeErr)
	}

	field := decoded.Area
	if kind == geometry.KindDistance {
		field = decoded.Distance
	}
	if field == nil {
		metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomeInvalid).Inc()
		if decoded.Error != "" {
			return 0, fmt.Errorf("%w: %s", ErrInvalidResult, decoded.Error)
		}
		return 0, fmt.Errorf("%w: missing %s value", ErrInvalidResult, kind)
	}
	if !geometry.Valid(*field) {
		metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomeInvalid).Inc()
		return 0, fmt.Errorf("%w: %s value %v", ErrInvalidResult, kind, *field)
	}

	metrics.RemoteRequests.WithLabelValues(endpoint, metrics.OutcomeOK).Inc()
	c.log.V(1).Info("backend measurement", "endpoint", endpoint, "value", *field, "unit", decoded.Unit)
	return *field, nil
}

// Health queries the backend health endpoint
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(EndpointHealth), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: health request failed with status: %d", ErrUnavailable, resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	return &status, nil
}

func (c *Client) endpointURL(endpoint string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: endpoint}).String()
}
