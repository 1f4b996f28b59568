package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"imagery-compare/internal/metrics"
	"imagery-compare/internal/ratelimit"
)

// CacheStats summarizes the remote result cache
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Status is the /health payload
type Status struct {
	Status        string                 `json:"status"`
	RemoteEnabled bool                   `json:"remoteEnabled"`
	RemoteURL     string                 `json:"remoteUrl,omitempty"`
	Paused        []ratelimit.PauseEvent `json:"paused"`
	Cache         CacheStats             `json:"cache"`
	Measuring     bool                   `json:"measuring"`
	Timestamp     time.Time              `json:"timestamp" ts_type:"string"`
}

// Server manages the local diagnostics HTTP server
type Server struct {
	status  func() Status
	url     string
	server  *http.Server
	devMode bool
}

// NewServer creates a diagnostics server reporting status()
func NewServer(status func() Status, devMode bool) *Server {
	return &Server{
		status:  status,
		devMode: devMode,
	}
}

// GetURL returns the server base URL, empty until Start succeeds
func (s *Server) GetURL() string {
	return s.url
}

// corsMiddleware adds CORS headers to allow requests from Wails frontend
// On macOS/Linux, Wails uses wails://wails origin which requires CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Allow all origins (needed for wails://wails on macOS/Linux)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		// Handle preflight OPTIONS request
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routes wrapped with CORS
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	return corsMiddleware(mux)
}

// Start starts the server on a random local port
func (s *Server) Start() error {
	// Listen on a random available port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start diagnostics server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	s.url = fmt.Sprintf("http://127.0.0.1:%d", port)
	log.Printf("Diagnostics server started on %s", s.url)

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server in goroutine
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Diagnostics server stopped: %v", err)
		}
	}()

	return nil
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.status()
	if status.Status == "" {
		status.Status = "ok"
		if len(status.Paused) > 0 {
			status.Status = "degraded"
		}
	}
	if status.Paused == nil {
		status.Paused = []ratelimit.PauseEvent{}
	}
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now().UTC()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	if s.devMode {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(status); err != nil {
		log.Printf("[Diagnostics] Failed to encode health status: %v", err)
	}
}
