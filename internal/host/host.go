package host

import (
	"fmt"
	"time"

	"github.com/bep/debounce"
	"github.com/go-logr/logr"

	"imagery-compare/internal/common"
	"imagery-compare/internal/eventloop"
	"imagery-compare/internal/geometry"
	"imagery-compare/internal/session"
	"imagery-compare/internal/viewport"
	"imagery-compare/internal/viewsync"
)

// DefaultPersistDelay is how long the views must stay still before the position is saved
const DefaultPersistDelay = 2 * time.Second

// Host owns the before and after viewports and routes map input either to the
// measurement session or to relocation. All methods run on the UI loop.
type Host struct {
	before  *viewport.Handle
	after   *viewport.Handle
	session *session.Session
	sync    *viewsync.Coordinator
	log     logr.Logger

	releaseDelay time.Duration
	relocate     func(viewportID string, p geometry.Point)
	onState      func(session.State)
	onPropagate  func(from, to string, state viewport.ViewState)

	persist      func(viewport.ViewState)
	persistDelay time.Duration
	debounced    func(func())

	wasActive bool
}

// Option configures a Host
type Option func(*Host)

// WithReleaseDelay sets the view sync guard release delay
func WithReleaseDelay(d time.Duration) Option {
	return func(h *Host) { h.releaseDelay = d }
}

// WithRelocate sets the handler for clicks when no measurement is active
func WithRelocate(fn func(viewportID string, p geometry.Point)) Option {
	return func(h *Host) { h.relocate = fn }
}

// WithStateListener sets a callback invoked after the overlay is redrawn for a session change
func WithStateListener(fn func(session.State)) Option {
	return func(h *Host) { h.onState = fn }
}

// WithPropagateListener is notified whenever view sync copies a view
func WithPropagateListener(fn func(from, to string, state viewport.ViewState)) Option {
	return func(h *Host) { h.onPropagate = fn }
}

// WithViewPersist saves the settled view once the maps stay still for delay.
// fn runs on the debounce timer goroutine.
func WithViewPersist(delay time.Duration, fn func(viewport.ViewState)) Option {
	return func(h *Host) {
		h.persist = fn
		h.persistDelay = delay
	}
}

// WithLogger sets the host logger
func WithLogger(log logr.Logger) Option {
	return func(h *Host) { h.log = log }
}

// New creates the two viewport handles, wires view sync and subscribes to the session
func New(r viewport.Renderer, s *session.Session, sched eventloop.Scheduler, opts ...Option) *Host {
	h := &Host{
		session:      s,
		log:          logr.Discard(),
		persistDelay: DefaultPersistDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithName("host")

	h.before = viewport.New(common.ViewportBefore, r, h.log)
	h.after = viewport.New(common.ViewportAfter, r, h.log)

	syncOpts := []viewsync.Option{
		viewsync.WithSuppressed(s.Active),
		viewsync.WithLogger(h.log),
	}
	if h.releaseDelay > 0 {
		syncOpts = append(syncOpts, viewsync.WithReleaseDelay(h.releaseDelay))
	}
	if h.onPropagate != nil {
		syncOpts = append(syncOpts, viewsync.WithOnPropagate(h.onPropagate))
	}
	h.sync = viewsync.New(h.before, h.after, sched, syncOpts...)
	h.sync.Attach()

	if h.persist != nil {
		if h.persistDelay <= 0 {
			h.persistDelay = DefaultPersistDelay
		}
		h.debounced = debounce.New(h.persistDelay)
	}

	s.OnChange(h.handleState)
	return h
}

// Before returns the handle of the older imagery map
func (h *Host) Before() *viewport.Handle { return h.before }

// After returns the handle of the newer imagery map
func (h *Host) After() *viewport.Handle { return h.after }

// Sync returns the view sync coordinator
func (h *Host) Sync() *viewsync.Coordinator { return h.sync }

// Session returns the measurement session
func (h *Host) Session() *session.Session { return h.session }

// Handle looks up a viewport by id
func (h *Host) Handle(viewportID string) (*viewport.Handle, error) {
	switch viewportID {
	case common.ViewportBefore:
		return h.before, nil
	case common.ViewportAfter:
		return h.after, nil
	}
	return nil, fmt.Errorf("unknown viewport: %q", viewportID)
}

// Click adds a point while measuring, otherwise relocates
func (h *Host) Click(viewportID string, p geometry.Point) error {
	if _, err := h.Handle(viewportID); err != nil {
		return err
	}
	if h.session.Active() {
		return h.session.AddPoint(p)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if h.relocate != nil {
		h.relocate(viewportID, p)
	}
	return nil
}

// DoubleClick finalizes the measurement. Returns whether a finalize started.
func (h *Host) DoubleClick(viewportID string) (bool, error) {
	if _, err := h.Handle(viewportID); err != nil {
		return false, err
	}
	return h.session.Finalize(), nil
}

// Complete finalizes the measurement on an explicit command
func (h *Host) Complete() bool {
	return h.session.Finalize()
}

// Ready marks a viewport as initialized. Once both are ready the after map
// follows the before map.
func (h *Host) Ready(viewportID string, state viewport.ViewState) error {
	handle, err := h.Handle(viewportID)
	if err != nil {
		return err
	}
	handle.MarkReady(state)
	if h.before.Ready() && h.after.Ready() {
		h.sync.Resync()
	}
	return nil
}

// Settled forwards a settle event from the widget
func (h *Host) Settled(viewportID string, state viewport.ViewState) error {
	handle, err := h.Handle(viewportID)
	if err != nil {
		return err
	}
	handle.Settled(state)

	if h.debounced != nil {
		persist := h.persist
		h.debounced(func() { persist(state) })
	}
	return nil
}

// handleState redraws both overlays for the new session state
func (h *Host) handleState(st session.State) {
	shapes := OverlayShapes(st.Mode, st.Points)
	h.before.Draw(shapes)
	h.after.Draw(shapes)

	active := st.Mode != session.ModeNone
	if h.wasActive && !active {
		h.sync.Resync()
	}
	h.wasActive = active

	if h.onState != nil {
		h.onState(st)
	}
}

// OverlayShapes returns the shapes that represent an in-progress measurement
func OverlayShapes(mode session.Mode, points []geometry.Point) []viewport.Shape {
	if mode == session.ModeNone || len(points) == 0 {
		return nil
	}
	pts := append([]geometry.Point(nil), points...)

	if len(pts) == 1 {
		return []viewport.Shape{{Kind: viewport.ShapeMarker, Points: pts}}
	}

	switch mode {
	case session.ModeDistance:
		return []viewport.Shape{{Kind: viewport.ShapePolyline, Points: pts}}
	case session.ModeArea:
		if len(pts) < 3 {
			return []viewport.Shape{{Kind: viewport.ShapePolyline, Points: pts, Dashed: true}}
		}
		return []viewport.Shape{{Kind: viewport.ShapePolygon, Points: pts}}
	}
	return nil
}
