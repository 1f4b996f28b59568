package main

import (
	"fmt"

	"imagery-compare/internal/common"
	"imagery-compare/internal/geometry"
	"imagery-compare/internal/viewport"
)

// ===================
// Map Viewports
// ===================

// SetViewPayload is the payload of the viewport-set-view event
type SetViewPayload struct {
	ViewportID string             `json:"viewportId"`
	State      viewport.ViewState `json:"state"`
	Animate    bool               `json:"animate"`
}

// OverlayPayload is the payload of the viewport-overlay event
type OverlayPayload struct {
	ViewportID string           `json:"viewportId"`
	Shapes     []viewport.Shape `json:"shapes"`
}

// LocationChange is the payload of the location-change event
type LocationChange struct {
	ViewportID string         `json:"viewportId"`
	Center     geometry.Point `json:"center"`
}

// frontendRenderer forwards viewport commands to the map widgets as events.
// Kept off App so the methods are not bound to the frontend.
type frontendRenderer struct {
	app *App
}

func (r *frontendRenderer) SetView(viewportID string, state viewport.ViewState, animate bool) {
	r.app.emit(EventViewportSetView, SetViewPayload{ViewportID: viewportID, State: state, Animate: animate})
}

func (r *frontendRenderer) DrawOverlay(viewportID string, shapes []viewport.Shape) {
	if shapes == nil {
		shapes = []viewport.Shape{}
	}
	r.app.emit(EventViewportOverlay, OverlayPayload{ViewportID: viewportID, Shapes: shapes})
}

// MapClick handles a single click on either map
func (a *App) MapClick(viewportID string, lat, lng float64) error {
	p := geometry.Point{Lat: lat, Lng: lng}
	var err error
	if loopErr := a.onLoop(func() { err = a.host.Click(viewportID, p) }); loopErr != nil {
		return loopErr
	}
	return err
}

// MapDoubleClick completes the measurement in progress
func (a *App) MapDoubleClick(viewportID string, lat, lng float64) (bool, error) {
	var started bool
	var err error
	if loopErr := a.onLoop(func() { started, err = a.host.DoubleClick(viewportID) }); loopErr != nil {
		return false, loopErr
	}
	if started {
		a.emitLog(fmt.Sprintf("Finalize from %s at %.5f, %.5f", common.DisplayName(viewportID), lat, lng))
	}
	return started, err
}

// ViewportReady is called by each map widget once it has loaded
func (a *App) ViewportReady(viewportID string, lat, lng, zoom float64) error {
	state, err := viewport.NewViewState(lat, lng, zoom)
	if err != nil {
		return fmt.Errorf("invalid view for %s: %w", viewportID, err)
	}
	var hostErr error
	if loopErr := a.onLoop(func() { hostErr = a.host.Ready(viewportID, state) }); loopErr != nil {
		return loopErr
	}
	return hostErr
}

// ViewportSettled is called when a pan or zoom gesture ends
func (a *App) ViewportSettled(viewportID string, lat, lng, zoom float64) error {
	state, err := viewport.NewViewState(lat, lng, zoom)
	if err != nil {
		return fmt.Errorf("invalid view for %s: %w", viewportID, err)
	}
	var hostErr error
	if loopErr := a.onLoop(func() { hostErr = a.host.Settled(viewportID, state) }); loopErr != nil {
		return loopErr
	}
	return hostErr
}

// GetInitialView returns where both maps should open: the last saved
// position, or the configured default
func (a *App) GetInitialView() viewport.ViewState {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.settings.Map
	if a.settings.HasLastPosition() {
		return viewport.ViewState{
			Center: geometry.Point{Lat: m.LastCenterLat, Lng: m.LastCenterLon},
			Zoom:   m.LastZoom,
		}
	}
	return viewport.ViewState{
		Center: geometry.Point{Lat: m.DefaultCenterLat, Lng: m.DefaultCenterLon},
		Zoom:   m.DefaultZoom,
	}
}

// relocate runs on the UI loop when a map is clicked outside measurement mode
func (a *App) relocate(viewportID string, p geometry.Point) {
	a.emit(EventLocationChange, LocationChange{ViewportID: viewportID, Center: p})
}

// persistView runs on the debounce timer after the maps stop moving
func (a *App) persistView(state viewport.ViewState) {
	if err := a.SaveMapPosition(state.Center.Lat, state.Center.Lng, float64(state.Zoom)); err != nil {
		a.log.Error(err, "failed to save map position")
	}
}
