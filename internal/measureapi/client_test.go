package measureapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-logr/logr"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagery-compare/internal/cache"
	"imagery-compare/internal/geometry"
	"imagery-compare/internal/measureapi"
	"imagery-compare/internal/ratelimit"
)

var testSquare = geometry.NewPolygon([]geometry.Point{
	{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.01}, {Lat: 0.01, Lng: 0.01}, {Lat: 0.01, Lng: 0},
})

var testLine = orb.LineString{{0, 0}, {1, 0}}

// backend serves canned bodies per path and counts calls
type backend struct {
	calls  atomic.Int32
	status int
	body   string
	last   atomic.Value // decoded request body
}

func newBackend(t *testing.T, status int, body string) (*backend, *httptest.Server) {
	b := &backend{status: status, body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		data, _ := io.ReadAll(r.Body)
		var req map[string]json.RawMessage
		if err := json.Unmarshal(data, &req); err == nil {
			b.last.Store(r.URL.Path + " " + string(req["geometry"]))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(b.status)
		_, _ = io.WriteString(w, b.body)
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func newClient(t *testing.T, url string, opts ...measureapi.Option) *measureapi.Client {
	c, err := measureapi.NewClient(url, opts...)
	require.NoError(t, err)
	return c
}

func TestMeasure_AreaSuccess(t *testing.T) {
	b, srv := newBackend(t, http.StatusOK, `{"area": 1.234, "unit": "km²"}`)
	c := newClient(t, srv.URL+"/api")

	v, err := c.Measure(context.Background(), testSquare)
	require.NoError(t, err)
	assert.Equal(t, 1.234, v)

	last := b.last.Load().(string)
	assert.Contains(t, last, "/api/measure-area ")
	assert.Contains(t, last, `"type":"Polygon"`)
}

func TestMeasure_DistanceUsesDistanceEndpoint(t *testing.T) {
	b, srv := newBackend(t, http.StatusOK, `{"distance": 111.2, "unit": "km"}`)
	c := newClient(t, srv.URL)

	v, err := c.Measure(context.Background(), testLine)
	require.NoError(t, err)
	assert.Equal(t, 111.2, v)
	assert.Contains(t, b.last.Load().(string), "/measure-distance ")
}

func TestMeasure_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error": "Google Earth Engine not initialized"}`, measureapi.ErrUnavailable},
		{"bad request without json", http.StatusBadRequest, `oops`, measureapi.ErrUnavailable},
		{"malformed json", http.StatusOK, `{"area": `, measureapi.ErrInvalidResult},
		{"nan literal", http.StatusOK, `{"area": NaN}`, measureapi.ErrInvalidResult},
		{"missing field", http.StatusOK, `{"distance": 3}`, measureapi.ErrInvalidResult},
		{"negative", http.StatusOK, `{"area": -2}`, measureapi.ErrInvalidResult},
		{"error body with 200", http.StatusOK, `{"error": "boom"}`, measureapi.ErrInvalidResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newBackend(t, tt.status, tt.body)
			c := newClient(t, srv.URL)

			_, err := c.Measure(context.Background(), testSquare)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMeasure_TransportFailure(t *testing.T) {
	_, srv := newBackend(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	c := newClient(t, url)
	_, err := c.Measure(context.Background(), testLine)
	assert.ErrorIs(t, err, measureapi.ErrUnavailable)
}

func TestMeasure_UnsupportedGeometrySendsNothing(t *testing.T) {
	b, srv := newBackend(t, http.StatusOK, `{"area": 1}`)
	c := newClient(t, srv.URL)

	_, err := c.Measure(context.Background(), orb.Point{1, 1})
	assert.ErrorIs(t, err, geometry.ErrUnsupportedGeometry)
	assert.Zero(t, b.calls.Load())
}

func TestMeasure_CachesValidResults(t *testing.T) {
	b, srv := newBackend(t, http.StatusOK, `{"area": 0.5}`)
	rc := cache.NewResultCache(nil)
	c := newClient(t, srv.URL, measureapi.WithResultCache(rc))

	for i := 0; i < 3; i++ {
		v, err := c.Measure(context.Background(), testSquare)
		require.NoError(t, err)
		assert.Equal(t, 0.5, v)
	}
	assert.EqualValues(t, 1, b.calls.Load())

	entries, hits, _ := rc.Stats()
	assert.Equal(t, 1, entries)
	assert.EqualValues(t, 2, hits)
}

func TestMeasure_PausedBackendIsSkipped(t *testing.T) {
	b, srv := newBackend(t, http.StatusServiceUnavailable, `{"error": "busy"}`)
	limiter := ratelimit.NewHandler(nil, logr.Discard())
	c := newClient(t, srv.URL, measureapi.WithRateLimit(limiter))

	_, err := c.Measure(context.Background(), testSquare)
	assert.ErrorIs(t, err, measureapi.ErrUnavailable)
	assert.True(t, limiter.IsPaused(measureapi.EndpointArea))

	_, err = c.Measure(context.Background(), testSquare)
	assert.ErrorIs(t, err, measureapi.ErrUnavailable)
	assert.EqualValues(t, 1, b.calls.Load(), "second call must not reach the backend")

	// distance endpoint is tracked separately
	_, _ = c.Measure(context.Background(), testLine)
	assert.EqualValues(t, 2, b.calls.Load())
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"ok","gee_initialized":true}`)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.True(t, status.GEEInitialized)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := measureapi.NewClient("ftp://example.com")
	assert.Error(t, err)
	_, err = measureapi.NewClient("://nope")
	assert.Error(t, err)
}
