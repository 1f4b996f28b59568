package main

import (
	"errors"
	"fmt"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"imagery-compare/internal/session"
)

// ===================
// Measurement
// ===================

// MeasurementResult is the payload of the measurement-result event
type MeasurementResult struct {
	session.Result
	Formatted string `json:"formatted"`
}

// MeasurementState is the payload of the measurement-state event
type MeasurementState struct {
	session.State
	FormattedPreview string `json:"formattedPreview"`
}

// MeasurementError is the payload of the measurement-error event
type MeasurementError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SetMeasurementMode selects "area", "distance" or "none"
func (a *App) SetMeasurementMode(mode string) error {
	m, err := session.ParseMode(mode)
	if err != nil {
		return err
	}
	return a.onLoop(func() { a.session.SetMode(m) })
}

// RestartMeasurement drops the collected points and keeps the current tool
func (a *App) RestartMeasurement() error {
	return a.onLoop(a.session.Restart)
}

// ClearMeasurement leaves measurement mode
func (a *App) ClearMeasurement() error {
	return a.onLoop(a.session.Clear)
}

// CompleteMeasurement finalizes the current shape. Returns false when there
// are not enough points or a finalize is already running.
func (a *App) CompleteMeasurement() (bool, error) {
	started := false
	err := a.onLoop(func() { started = a.host.Complete() })
	return started, err
}

// GetMeasurementState returns the current session snapshot
func (a *App) GetMeasurementState() (MeasurementState, error) {
	var st session.State
	err := a.onLoop(func() { st = a.session.State() })
	return newMeasurementState(st), err
}

func newMeasurementState(st session.State) MeasurementState {
	ms := MeasurementState{State: st}
	if st.Mode != session.ModeNone && st.Preview.Unit != "" {
		ms.FormattedPreview = formatPreview(st.Preview.Value, st.Preview.Unit)
	}
	return ms
}

// handleResult runs on the UI loop once per completed measurement
func (a *App) handleResult(r session.Result) {
	a.emit(EventMeasurementResult, MeasurementResult{
		Result:    r,
		Formatted: formatMeasurement(r.Value, r.Unit),
	})
	a.emitLog(fmt.Sprintf("Measurement %s: %s (%s)", r.Kind, formatMeasurement(r.Value, r.Unit), r.Source))

	a.TrackEvent("measurement_completed", map[string]interface{}{
		"kind":   string(r.Kind),
		"source": r.Source,
	})
}

// handleMeasureError runs on the UI loop for user-visible failures
func (a *App) handleMeasureError(err error) {
	payload := MeasurementError{Message: err.Error()}
	var me *session.MeasureError
	if errors.As(err, &me) {
		payload.Kind = string(me.Kind)
	}
	a.emit(EventMeasurementError, payload)
	if a.ctx != nil {
		wailsRuntime.LogError(a.ctx, fmt.Sprintf("Measurement failed: %v", err))
	}

	if payload.Kind == string(session.FallbackFailed) {
		a.TrackEvent("measurement_failed", map[string]interface{}{
			"kind": payload.Kind,
		})
	}
}

// formatMeasurement renders a final value the way the result panel shows it
func formatMeasurement(value float64, unit string) string {
	return fmt.Sprintf("%.2f %s", value, unit)
}

// formatPreview renders the live value shown while points are collected
func formatPreview(value float64, unit string) string {
	return fmt.Sprintf("%.3f %s", value, unit)
}
