package viewport

import (
	"github.com/go-logr/logr"
)

// Handle owns one map's view state and overlay layer. Not safe for concurrent
// use; it lives on the UI loop with its owner.
type Handle struct {
	id       string
	renderer Renderer
	log      logr.Logger

	ready bool
	state ViewState

	// generation counts programmatic SetView calls. The settle event produced
	// by our own write carries the written state and is absorbed once.
	generation uint64
	written    ViewState
	echo       bool

	overlay  []Shape
	onSettle func(ViewState)
}

// New creates a handle that is not ready until MarkReady is called
func New(id string, r Renderer, log logr.Logger) *Handle {
	return &Handle{
		id:       id,
		renderer: r,
		log:      log.WithName("viewport").WithValues("viewport", id),
	}
}

// ID returns the viewport identifier
func (h *Handle) ID() string { return h.id }

// Ready reports whether the map widget has been initialized
func (h *Handle) Ready() bool { return h.ready }

// State returns the last known view
func (h *Handle) State() ViewState { return h.state }

// Generation returns the number of programmatic view changes so far
func (h *Handle) Generation() uint64 { return h.generation }

// OnSettle sets the callback for user-originated settle events
func (h *Handle) OnSettle(fn func(ViewState)) { h.onSettle = fn }

// MarkReady records the initial view and pushes any overlay drawn before the
// widget existed
func (h *Handle) MarkReady(state ViewState) {
	h.state = state
	if h.ready {
		return
	}
	h.ready = true
	h.log.V(1).Info("viewport ready", "zoom", state.Zoom, "center", state.Center.String())
	if len(h.overlay) > 0 {
		h.renderer.DrawOverlay(h.id, h.overlay)
	}
}

// SetView moves the map programmatically. Returns false when the widget is not ready.
func (h *Handle) SetView(state ViewState, animate bool) bool {
	if !h.ready {
		return false
	}
	h.generation++
	h.written = state
	h.echo = true
	h.state = state
	h.renderer.SetView(h.id, state, animate)
	return true
}

// Settled handles a settle event from the widget. Returns true when the event
// came from the user and was passed to the settle callback.
func (h *Handle) Settled(state ViewState) bool {
	if h.echo && state.Equal(h.written) {
		h.echo = false
		h.state = state
		h.log.V(2).Info("absorbed settle echo", "generation", h.generation)
		return false
	}
	h.echo = false
	h.state = state

	if !h.ready || h.onSettle == nil {
		return false
	}
	h.onSettle(state)
	return true
}

// Draw replaces the overlay. Before the widget is ready the shapes are kept
// and drawn by MarkReady.
func (h *Handle) Draw(shapes []Shape) {
	h.overlay = append([]Shape(nil), shapes...)
	if h.ready {
		h.renderer.DrawOverlay(h.id, h.overlay)
	}
}

// Overlay returns the current overlay shapes
func (h *Handle) Overlay() []Shape {
	return append([]Shape(nil), h.overlay...)
}
