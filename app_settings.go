package main

import (
	"fmt"
	"log"
	"math"

	"imagery-compare/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if settings == nil {
		return fmt.Errorf("settings cannot be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The install ID is not user editable
	settings.InstallID = a.settings.InstallID

	if err := settings.Validate(); err != nil {
		return err
	}

	// Save to disk
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	// Update app state
	a.settings = settings
	stored := *settings
	a.stored = &stored

	// Note: backend, cache and view sync settings require app restart to take effect
	log.Printf("Settings saved. Measurement and sync settings will apply on next restart.")

	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// SaveMapPosition saves the current map position for session persistence
// Called after the maps settle and on app close to remember the last viewed location.
// Only the file-backed settings are written, so environment overrides never
// reach disk. Nothing is written when the settings file could not be loaded.
func (a *App) SaveMapPosition(lat, lon, zoom float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid map position: lat=%.6f, lon=%.6f", lat, lon)
	}
	z := int(math.Round(zoom))

	a.mu.Lock()
	defer a.mu.Unlock()

	a.settings.SetLastPosition(lat, lon, z)
	if a.stored == nil {
		return nil
	}
	a.stored.SetLastPosition(lat, lon, z)

	if err := config.SaveSettings(a.stored); err != nil {
		return err
	}

	log.Printf("Saved map position: lat=%.6f, lon=%.6f, zoom=%.1f", lat, lon, zoom)
	return nil
}
