package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"imagery-compare/internal/handlers/diagnostics"
	"imagery-compare/internal/measureapi"
	"imagery-compare/internal/ratelimit"
)

// ===================
// Backend Availability
// ===================

// GetRemoteStatus returns the measurement endpoints that are currently paused
func (a *App) GetRemoteStatus() []ratelimit.PauseEvent {
	return a.limiter.Snapshot()
}

// IsRemotePaused checks if any measurement endpoint is paused
func (a *App) IsRemotePaused() bool {
	return len(a.limiter.Snapshot()) > 0
}

// RetryRemoteNow lets the next measurement reach the backend immediately
func (a *App) RetryRemoteNow() {
	log.Printf("[Diagnostics] Manual retry requested")
	a.limiter.Reset(measureapi.EndpointArea)
	a.limiter.Reset(measureapi.EndpointDistance)
	a.emit(EventRemoteStatus, a.limiter.Snapshot())
}

// CheckRemoteHealth queries the backend health endpoint
func (a *App) CheckRemoteHealth() (*measureapi.HealthStatus, error) {
	if a.remote == nil {
		return nil, fmt.Errorf("measurement backend is disabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.remote.Health(ctx)
}

// ===================
// Result Cache
// ===================

// GetCacheStats returns remote result cache statistics
func (a *App) GetCacheStats() diagnostics.CacheStats {
	entries, hits, misses := a.results.Stats()
	return diagnostics.CacheStats{
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
	}
}

// ClearCache drops every cached backend value
func (a *App) ClearCache() {
	a.results.Clear()
	log.Printf("[Diagnostics] Result cache cleared")
}

// GetDiagnosticsURL returns the local diagnostics server URL, empty when disabled
func (a *App) GetDiagnosticsURL() string {
	if a.diagServer == nil {
		return ""
	}
	return a.diagServer.GetURL()
}

// diagnosticsStatus feeds the /health endpoint; runs on server goroutines
func (a *App) diagnosticsStatus() diagnostics.Status {
	status := diagnostics.Status{
		RemoteEnabled: a.remote != nil,
		Paused:        a.limiter.Snapshot(),
		Cache:         a.GetCacheStats(),
	}
	if a.remote != nil {
		status.RemoteURL = a.remote.BaseURL()
	}

	// Session state lives on the UI loop
	done := make(chan bool, 1)
	if a.loop.Post(func() { done <- a.session.Active() }) {
		select {
		case status.Measuring = <-done:
		case <-time.After(time.Second):
		}
	}
	return status
}
