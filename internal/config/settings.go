package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides: IMAGERY_COMPARE_MEASUREMENT_API_URL → measurement.api_url
const EnvPrefix = "IMAGERY_COMPARE"

// MeasurementSettings configures the measurement backend
type MeasurementSettings struct {
	APIURL          string `json:"api_url" mapstructure:"api_url"`
	TimeoutSeconds  int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	CacheEntries    int    `json:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
	RemoteEnabled   bool   `json:"remote_enabled" mapstructure:"remote_enabled"`
}

// Timeout returns the remote call timeout
func (m MeasurementSettings) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long backend values are reused
func (m MeasurementSettings) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLSeconds) * time.Second
}

// ViewSyncSettings configures viewport synchronization
type ViewSyncSettings struct {
	ReleaseDelayMs int `json:"release_delay_ms" mapstructure:"release_delay_ms"`
}

// ReleaseDelay returns the guard release delay
func (v ViewSyncSettings) ReleaseDelay() time.Duration {
	return time.Duration(v.ReleaseDelayMs) * time.Millisecond
}

// MapSettings holds the start position and the last viewed position
type MapSettings struct {
	DefaultCenterLat float64 `json:"default_center_lat" mapstructure:"default_center_lat"`
	DefaultCenterLon float64 `json:"default_center_lon" mapstructure:"default_center_lon"`
	DefaultZoom      int     `json:"default_zoom" mapstructure:"default_zoom"`

	// Session persistence
	LastCenterLat float64 `json:"last_center_lat,omitempty" mapstructure:"last_center_lat"`
	LastCenterLon float64 `json:"last_center_lon,omitempty" mapstructure:"last_center_lon"`
	LastZoom      int     `json:"last_zoom,omitempty" mapstructure:"last_zoom"`
	LastSaved     bool    `json:"last_saved,omitempty" mapstructure:"last_saved"`
}

// DiagnosticsSettings toggles the local diagnostics server
type DiagnosticsSettings struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LogSettings controls log verbosity (0 lifecycle, 1 debug, 2 trace)
type LogSettings struct {
	Verbosity int `json:"verbosity" mapstructure:"verbosity"`
}

// UserSettings represents persistent user preferences
type UserSettings struct {
	Measurement MeasurementSettings `json:"measurement" mapstructure:"measurement"`
	ViewSync    ViewSyncSettings    `json:"viewsync" mapstructure:"viewsync"`
	Map         MapSettings         `json:"map" mapstructure:"map"`
	Diagnostics DiagnosticsSettings `json:"diagnostics" mapstructure:"diagnostics"`
	Log         LogSettings         `json:"log" mapstructure:"log"`

	// Anonymous analytics identifier
	InstallID string `json:"install_id" mapstructure:"install_id"`

	// UI preferences
	Theme string `json:"theme" mapstructure:"theme"` // "light", "dark", "system"
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	return &UserSettings{
		Measurement: MeasurementSettings{
			APIURL:          "http://localhost:5000",
			TimeoutSeconds:  20,
			CacheEntries:    256,
			CacheTTLSeconds: 600,
			RemoteEnabled:   true,
		},
		ViewSync: ViewSyncSettings{
			ReleaseDelayMs: 100,
		},
		Map: MapSettings{
			DefaultCenterLat: 30.0444, // Cairo, Egypt
			DefaultCenterLon: 31.2357,
			DefaultZoom:      10,
		},
		Diagnostics: DiagnosticsSettings{Enabled: false},
		Log:         LogSettings{Verbosity: 0},
		Theme:       "system",
	}
}

// HasLastPosition reports whether a previous session saved its map position.
// Files written before LastSaved existed only carry a non-zero zoom.
func (s *UserSettings) HasLastPosition() bool {
	return s.Map.LastSaved || s.Map.LastZoom > 0
}

// SetLastPosition records the last viewed map position
func (s *UserSettings) SetLastPosition(lat, lon float64, zoom int) {
	s.Map.LastCenterLat = lat
	s.Map.LastCenterLon = lon
	s.Map.LastZoom = zoom
	s.Map.LastSaved = true
}

// Validate checks every setting and reports all problems at once
func (s *UserSettings) Validate() error {
	var errs []string

	if s.Measurement.RemoteEnabled {
		u, err := url.Parse(s.Measurement.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("measurement.api_url must be an http(s) URL, got %q", s.Measurement.APIURL))
		}
	}
	if s.Measurement.TimeoutSeconds <= 0 {
		errs = append(errs, "measurement.timeout_seconds must be positive")
	}
	if s.Measurement.CacheEntries < 0 {
		errs = append(errs, "measurement.cache_entries cannot be negative")
	}
	if s.Measurement.CacheTTLSeconds < 0 {
		errs = append(errs, "measurement.cache_ttl_seconds cannot be negative")
	}
	if s.ViewSync.ReleaseDelayMs <= 0 || s.ViewSync.ReleaseDelayMs > 5000 {
		errs = append(errs, fmt.Sprintf("viewsync.release_delay_ms must be 1-5000, got %d", s.ViewSync.ReleaseDelayMs))
	}
	if s.Map.DefaultCenterLat < -90 || s.Map.DefaultCenterLat > 90 {
		errs = append(errs, "map.default_center_lat must be within [-90, 90]")
	}
	if s.Map.DefaultCenterLon < -180 || s.Map.DefaultCenterLon > 180 {
		errs = append(errs, "map.default_center_lon must be within [-180, 180]")
	}
	if s.Map.DefaultZoom < 0 || s.Map.DefaultZoom > 22 {
		errs = append(errs, "map.default_zoom must be 0-22")
	}
	if s.Log.Verbosity < 0 {
		errs = append(errs, "log.verbosity cannot be negative")
	}
	switch s.Theme {
	case "light", "dark", "system":
	default:
		errs = append(errs, fmt.Sprintf("theme must be light, dark or system, got %q", s.Theme))
	}

	if len(errs) > 0 {
		return fmt.Errorf("settings validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// Use unified directory structure: ~/.walkthru-earth/imagery-compare/settings/
	baseDir := filepath.Join(homeDir, ".walkthru-earth", "imagery-compare", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom reads defaults, then the settings file if it exists, then
// IMAGERY_COMPARE_* environment overrides. A missing install ID is generated.
func LoadSettingsFrom(path string) (*UserSettings, error) {
	_, effective, err := LoadLayeredFrom(path)
	if err != nil {
		return nil, err
	}
	return effective, nil
}

// LoadLayered is LoadLayeredFrom on the default settings path
func LoadLayered() (stored, effective *UserSettings, err error) {
	return LoadLayeredFrom(GetSettingsPath())
}

// LoadLayeredFrom returns two views of the settings. stored holds defaults and
// the file only and is what gets written back; effective adds environment
// overrides and is what the app runs with.
//
// When the file is unreadable or invalid both are nil. When only the
// environment is invalid, stored is returned with the error and effective is nil.
func LoadLayeredFrom(path string) (stored, effective *UserSettings, err error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	stored = &UserSettings{}
	if err := v.Unmarshal(stored); err != nil {
		return nil, nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if stored.InstallID == "" {
		stored.InstallID = uuid.NewString()
	}
	if err := stored.Validate(); err != nil {
		return nil, nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	effective = &UserSettings{}
	if err := v.Unmarshal(effective); err != nil {
		return stored, nil, fmt.Errorf("failed to decode environment overrides: %w", err)
	}
	if effective.InstallID == "" {
		effective.InstallID = stored.InstallID
	}
	if err := effective.Validate(); err != nil {
		return stored, nil, fmt.Errorf("invalid environment overrides: %w", err)
	}
	return stored, effective, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d *UserSettings) {
	v.SetDefault("measurement.api_url", d.Measurement.APIURL)
	v.SetDefault("measurement.timeout_seconds", d.Measurement.TimeoutSeconds)
	v.SetDefault("measurement.cache_entries", d.Measurement.CacheEntries)
	v.SetDefault("measurement.cache_ttl_seconds", d.Measurement.CacheTTLSeconds)
	v.SetDefault("measurement.remote_enabled", d.Measurement.RemoteEnabled)
	v.SetDefault("viewsync.release_delay_ms", d.ViewSync.ReleaseDelayMs)
	v.SetDefault("map.default_center_lat", d.Map.DefaultCenterLat)
	v.SetDefault("map.default_center_lon", d.Map.DefaultCenterLon)
	v.SetDefault("map.default_zoom", d.Map.DefaultZoom)
	v.SetDefault("map.last_center_lat", d.Map.LastCenterLat)
	v.SetDefault("map.last_center_lon", d.Map.LastCenterLon)
	v.SetDefault("map.last_zoom", d.Map.LastZoom)
	v.SetDefault("map.last_saved", d.Map.LastSaved)
	v.SetDefault("diagnostics.enabled", d.Diagnostics.Enabled)
	v.SetDefault("log.verbosity", d.Log.Verbosity)
	v.SetDefault("install_id", d.InstallID)
	v.SetDefault("theme", d.Theme)
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo writes settings as indented JSON to path
func SaveSettingsTo(path string, settings *UserSettings) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
