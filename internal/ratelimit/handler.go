package ratelimit

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// RetryStrategy defines how long remote calls stay paused after consecutive failures
type RetryStrategy struct {
	Intervals []time.Duration // e.g., [5s, 15s, 30s, 60s]
}

// DefaultRetryStrategy returns the default stepped backoff strategy
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			5 * time.Second,  // First pause
			15 * time.Second, // Second consecutive failure
			30 * time.Second,
			60 * time.Second, // All further failures
		},
	}
}

// PauseEvent represents a period during which a service is not called
type PauseEvent struct {
	Timestamp  time.Time `json:"timestamp" ts_type:"string"`
	Service    string    `json:"service"`
	StatusCode int       `json:"statusCode"` // 0 for transport failures
	Attempt    int       `json:"attempt"`    // Consecutive failures minus one
	ResumeAt   time.Time `json:"resumeAt" ts_type:"string"`
	Message    string    `json:"message"`
}

// Handler tracks remote service availability and backs off after failures.
// Measurement calls fall back to local computation while a service is paused,
// so the pause never blocks the user.
type Handler struct {
	mu          sync.RWMutex
	paused      map[string]*PauseEvent // service -> current pause state
	strategy    *RetryStrategy
	onPaused    func(event PauseEvent)
	onRecovered func(service string)
	now         func() time.Time
	log         logr.Logger
}

// NewHandler creates a new availability handler
func NewHandler(strategy *RetryStrategy, log logr.Logger) *Handler {
	if strategy == nil || len(strategy.Intervals) == 0 {
		strategy = DefaultRetryStrategy()
	}

	return &Handler{
		paused:   make(map[string]*PauseEvent),
		strategy: strategy,
		now:      time.Now,
		log:      log.WithName("ratelimit"),
	}
}

// SetOnPaused sets the callback invoked when a service gets paused
func (h *Handler) SetOnPaused(callback func(event PauseEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPaused = callback
}

// SetOnRecovered sets the callback invoked when a paused service answers again
func (h *Handler) SetOnRecovered(callback func(service string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecovered = callback
}

// IsPaused reports whether calls to service should be skipped right now.
// Once the pause window has elapsed one probe call is let through; its
// outcome either clears the state or extends the backoff.
func (h *Handler) IsPaused(service string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	event, ok := h.paused[service]
	return ok && h.now().Before(event.ResumeAt)
}

// CheckResponse analyzes an HTTP status code for overload indicators.
// Returns true when the service got paused.
func (h *Handler) CheckResponse(service string, statusCode int) bool {
	overloaded := statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout

	if !overloaded {
		if statusCode >= 200 && statusCode < 300 {
			h.recover(service)
		}
		return false
	}

	h.RecordFailure(service, statusCode)
	return true
}

// RecordFailure pauses service after a failed call. statusCode is 0 for
// transport errors.
func (h *Handler) RecordFailure(service string, statusCode int) {
	h.mu.Lock()

	attempt := 0
	if existing, ok := h.paused[service]; ok {
		attempt = existing.Attempt + 1
	}

	interval := h.strategy.Intervals[len(h.strategy.Intervals)-1]
	if attempt < len(h.strategy.Intervals) {
		interval = h.strategy.Intervals[attempt]
	}

	now := h.now()
	event := PauseEvent{
		Timestamp:  now,
		Service:    service,
		StatusCode: statusCode,
		Attempt:    attempt,
		ResumeAt:   now.Add(interval),
		Message:    buildMessage(service, statusCode, interval),
	}
	h.paused[service] = &event
	callback := h.onPaused
	h.mu.Unlock()

	h.log.Info("remote service paused", "service", service, "status", statusCode,
		"attempt", attempt, "resumeAt", event.ResumeAt.Format(time.RFC3339))

	if callback != nil {
		callback(event)
	}
}

// recover clears the pause state of service after a successful call
func (h *Handler) recover(service string) {
	h.mu.Lock()
	_, ok := h.paused[service]
	delete(h.paused, service)
	callback := h.onRecovered
	h.mu.Unlock()

	if !ok {
		return
	}
	h.log.Info("remote service recovered", "service", service)
	if callback != nil {
		callback(service)
	}
}

// Reset lets the user force the next call through
func (h *Handler) Reset(service string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.paused[service]; ok {
		h.log.Info("manual retry requested", "service", service)
		delete(h.paused, service)
	}
}

// GetCurrentState returns the current pause state for a service
func (h *Handler) GetCurrentState(service string) *PauseEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.paused[service]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

// Snapshot returns every service that is still paused, ordered by service name
func (h *Handler) Snapshot() []PauseEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	events := make([]PauseEvent, 0, len(h.paused))
	for _, event := range h.paused {
		if now.Before(event.ResumeAt) {
			events = append(events, *event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Service < events[j].Service })
	return events
}

// buildMessage creates a user-friendly message
func buildMessage(service string, statusCode int, wait time.Duration) string {
	cause := "is unreachable"
	if statusCode != 0 {
		cause = fmt.Sprintf("is overloaded (HTTP %d)", statusCode)
	}
	return fmt.Sprintf("Measurement service %q %s. Measurements are computed locally for the next %s.",
		service, cause, wait.Round(time.Second))
}
