package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"imagery-compare/internal/cache"
	"imagery-compare/internal/config"
	"imagery-compare/internal/eventloop"
	"imagery-compare/internal/handlers/diagnostics"
	"imagery-compare/internal/host"
	"imagery-compare/internal/logging"
	"imagery-compare/internal/measureapi"
	"imagery-compare/internal/ratelimit"
	"imagery-compare/internal/session"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// Frontend events
const (
	EventMeasurementState  = "measurement-state"
	EventMeasurementResult = "measurement-result"
	EventMeasurementError  = "measurement-error"
	EventViewportSetView   = "viewport-set-view"
	EventViewportOverlay   = "viewport-overlay"
	EventLocationChange    = "location-change"
	EventRemoteStatus      = "remote-status"
)

var errNotRunning = errors.New("application is not running")

// App struct
type App struct {
	ctx      context.Context
	settings *config.UserSettings
	stored   *config.UserSettings // file-backed layer, nil when the file must not be overwritten
	mu       sync.Mutex
	devMode  bool // Enable verbose logging in dev mode only
	phClient posthog.Client
	log      logr.Logger

	loop       *eventloop.Loop
	stopLoop   context.CancelFunc
	session    *session.Session
	host       *host.Host
	remote     *measureapi.Client
	limiter    *ratelimit.Handler
	results    *cache.ResultCache
	diagServer *diagnostics.Server
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	stored, settings, err := config.LoadLayered()
	switch {
	case stored == nil:
		log.Printf("Failed to load settings, using defaults without saving: %v", err)
		settings = config.DefaultSettings()
	case settings == nil:
		log.Printf("Ignoring environment overrides: %v", err)
		fileOnly := *stored
		settings = &fileOnly
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	logger := logging.New(settings.Log.Verbosity)

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	a := &App{
		settings: settings,
		stored:   stored,
		phClient: phClient,
		log:      logger,
		loop:     eventloop.New(logger),
		limiter:  ratelimit.NewHandler(nil, logger),
		results: cache.NewResultCache(&cache.Config{
			MaxEntries: settings.Measurement.CacheEntries,
			TTL:        settings.Measurement.CacheTTL(),
		}),
	}

	if settings.Measurement.RemoteEnabled {
		remote, err := measureapi.NewClient(settings.Measurement.APIURL,
			measureapi.WithResultCache(a.results),
			measureapi.WithRateLimit(a.limiter),
			measureapi.WithLogger(logger),
		)
		if err != nil {
			log.Printf("Measurement backend disabled: %v", err)
		} else {
			a.remote = remote
			log.Printf("Measurement backend: %s", remote.BaseURL())
		}
	}

	sessionOpts := []session.Option{
		session.WithTimeout(settings.Measurement.Timeout()),
		session.WithLogger(logger),
	}
	if a.remote != nil {
		sessionOpts = append(sessionOpts, session.WithRemote(a.remote))
	}
	a.session = session.New(a.loop, sessionOpts...)
	a.session.OnResult(a.handleResult)
	a.session.OnError(a.handleMeasureError)

	a.host = host.New(&frontendRenderer{app: a}, a.session, a.loop,
		host.WithReleaseDelay(settings.ViewSync.ReleaseDelay()),
		host.WithRelocate(a.relocate),
		host.WithStateListener(func(st session.State) { a.emit(EventMeasurementState, newMeasurementState(st)) }),
		host.WithViewPersist(host.DefaultPersistDelay, a.persistView),
		host.WithLogger(logger),
	)

	return a
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	loopCtx, cancel := context.WithCancel(context.Background())
	a.stopLoop = cancel
	a.loop.Start(loopCtx)

	a.limiter.SetOnPaused(func(event ratelimit.PauseEvent) {
		wailsRuntime.LogInfo(ctx, event.Message)
		a.emit(EventRemoteStatus, a.limiter.Snapshot())
	})
	a.limiter.SetOnRecovered(func(service string) {
		wailsRuntime.LogInfo(ctx, fmt.Sprintf("Measurement service %q is reachable again", service))
		a.emit(EventRemoteStatus, a.limiter.Snapshot())
	})

	if a.settings.Diagnostics.Enabled {
		a.diagServer = diagnostics.NewServer(a.diagnosticsStatus, a.devMode)
		if err := a.diagServer.Start(); err != nil {
			wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start diagnostics server: %v", err))
			a.diagServer = nil
		}
	}

	// Probe the backend in background
	if a.remote != nil {
		go func() {
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			status, err := a.remote.Health(probeCtx)
			if err != nil {
				wailsRuntime.LogInfo(ctx, fmt.Sprintf("Measurement backend not reachable, local computation will be used: %v", err))
				return
			}
			wailsRuntime.LogInfo(ctx, fmt.Sprintf("Measurement backend status: %s (engine initialized: %t)", status.Status, status.GEEInitialized))
		}()
	}

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version":        a.GetAppVersion(),
		"os":             goruntime.GOOS,
		"arch":           goruntime.GOARCH,
		"remote_enabled": a.remote != nil,
	})
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: a.installID(),
			Event:      event,
			Properties: props,
		})
	}
}

func (a *App) installID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settings.InstallID == "" {
		return "backend_user"
	}
	return a.settings.InstallID
}

// Shutdown cleans up resources
func (a *App) Shutdown(ctx context.Context) {
	if a.stopLoop != nil {
		a.stopLoop()
	}
	a.loop.Close()

	if a.diagServer != nil {
		if err := a.diagServer.Shutdown(ctx); err != nil {
			log.Printf("Failed to stop diagnostics server: %v", err)
		}
	}
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// onLoop runs fn on the UI loop and waits for it
func (a *App) onLoop(fn func()) error {
	if !a.loop.Do(fn) {
		return errNotRunning
	}
	return nil
}

// emit sends an event to the frontend once the runtime context exists
func (a *App) emit(event string, data interface{}) {
	if a.ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(a.ctx, event, data)
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode {
		a.emit("log", message)
	}
}
