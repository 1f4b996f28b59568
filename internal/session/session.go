package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"imagery-compare/internal/common"
	"imagery-compare/internal/eventloop"
	"imagery-compare/internal/geometry"
	"imagery-compare/internal/metrics"
)

// DefaultTimeout bounds one remote measurement call
const DefaultTimeout = 20 * time.Second

// errRemoteDisabled stands in for the remote answer when no backend is configured
var errRemoteDisabled = errors.New("remote measurement disabled")

// Measurer computes the authoritative value of a finished geometry
type Measurer interface {
	Measure(ctx context.Context, g orb.Geometry) (float64, error)
}

// Preview is the live value shown while points are collected
type Preview struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// State is a snapshot of the session
type State struct {
	Mode       Mode             `json:"mode"`
	Points     []geometry.Point `json:"points"`
	Preview    Preview          `json:"preview"`
	Generation uint64           `json:"generation"`
	Pending    bool             `json:"pending"`
}

// Result is one completed measurement
type Result struct {
	ID          string        `json:"id"`
	Kind        geometry.Kind `json:"kind"`
	Value       float64       `json:"value"`
	Unit        string        `json:"unit"`
	Source      string        `json:"source"` // common.SourceRemote or common.SourceLocal
	Geometry    orb.Geometry  `json:"-"`
	CompletedAt time.Time     `json:"completedAt" ts_type:"string"`
}

// Session collects points for one measurement at a time.
// Every method must be called from the scheduler's goroutine; the remote call
// runs elsewhere and posts its completion back.
type Session struct {
	sched   eventloop.Scheduler
	remote  Measurer
	timeout time.Duration
	log     logr.Logger

	mode    Mode
	points  []geometry.Point
	preview Preview

	// generation changes on every mutation; in-flight results carry the value
	// captured at Finalize and are dropped when it no longer matches
	generation  uint64
	inflight    bool
	inflightGen uint64

	onChange func(State)
	onResult func(Result)
	onError  func(error)
}

// Option configures a Session
type Option func(*Session)

// WithRemote sets the backend tried before the local computation
func WithRemote(m Measurer) Option {
	return func(s *Session) { s.remote = m }
}

// WithTimeout bounds the remote call
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the session logger
func WithLogger(log logr.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New creates an idle session
func New(sched eventloop.Scheduler, opts ...Option) *Session {
	s := &Session{
		sched:   sched,
		timeout: DefaultTimeout,
		log:     logr.Discard(),
		mode:    ModeNone,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithName("session")
	return s
}

// OnChange sets the callback invoked after every state change
func (s *Session) OnChange(fn func(State)) { s.onChange = fn }

// OnResult sets the callback invoked once per completed measurement
func (s *Session) OnResult(fn func(Result)) { s.onResult = fn }

// OnError sets the callback for user-visible errors
func (s *Session) OnError(fn func(error)) { s.onError = fn }

// State returns a copy of the current state
func (s *Session) State() State {
	points := make([]geometry.Point, len(s.points))
	copy(points, s.points)
	return State{
		Mode:       s.mode,
		Points:     points,
		Preview:    s.preview,
		Generation: s.generation,
		Pending:    s.Pending(),
	}
}

// Mode returns the active mode
func (s *Session) Mode() Mode { return s.mode }

// Active reports whether points are being collected
func (s *Session) Active() bool { return s.mode != ModeNone }

// Pending reports whether a finalize for the current points is in flight
func (s *Session) Pending() bool { return s.inflight && s.inflightGen == s.generation }

// SetMode switches tools. Points and preview are always cleared.
func (s *Session) SetMode(m Mode) {
	if m == ModeNone {
		s.Cancel()
		return
	}
	s.log.V(1).Info("mode set", "mode", m)
	s.reset(m)
}

// AddPoint appends p to the current measurement and refreshes the preview
func (s *Session) AddPoint(p geometry.Point) error {
	if s.mode == ModeNone {
		return s.fail(invalidGeometry("no measurement mode active"))
	}
	if err := p.Validate(); err != nil {
		return s.fail(invalidGeometry("%v", err))
	}

	s.points = append(s.points, p)
	s.generation++
	s.preview = s.computePreview()
	s.log.V(1).Info("point added", "point", p.String(), "count", len(s.points), "preview", s.preview.Value)
	s.notifyChange()
	return nil
}

// Finalize completes the measurement. Returns false when nothing was started:
// too few points, no mode, or a finalize for the same points already in flight.
func (s *Session) Finalize() bool {
	kind, ok := s.mode.Kind()
	if !ok || len(s.points) < s.mode.MinPoints() {
		return false
	}
	if s.Pending() {
		s.log.V(1).Info("finalize already in flight", "generation", s.generation)
		return false
	}

	g, err := geometry.Build(kind, s.points)
	if err != nil {
		s.fail(invalidGeometry("%v", err))
		return false
	}

	gen := s.generation
	s.inflight = true
	s.inflightGen = gen
	s.log.Info("finalizing measurement", "kind", kind, "points", len(s.points), "generation", gen)

	if s.remote == nil {
		s.complete(gen, kind, g, 0, errRemoteDisabled)
		return true
	}

	remote := s.remote
	timeout := s.timeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		value, err := remote.Measure(ctx, g)
		s.sched.Post(func() {
			s.complete(gen, kind, g, value, err)
		})
	}()
	s.notifyChange()
	return true
}

// complete applies a finalize outcome if the session has not moved on since
func (s *Session) complete(gen uint64, kind geometry.Kind, g orb.Geometry, remoteValue float64, remoteErr error) {
	if s.inflight && s.inflightGen == gen {
		s.inflight = false
	}
	if gen != s.generation {
		metrics.StaleResultsDiscarded.Inc()
		s.log.V(1).Info("discarding stale measurement", "generation", gen, "current", s.generation)
		return
	}

	if remoteErr != nil && !errors.Is(remoteErr, errRemoteDisabled) {
		remote := classifyRemote(remoteErr)
		s.log.Info("remote measurement failed, using local computation", "kind", remote.Kind, "error", remote.Error())
	}

	value, source, err := Resolve(g, remoteValue, remoteErr)
	if err != nil {
		metrics.MeasurementsFailed.WithLabelValues(string(kind)).Inc()
		s.notifyChange()
		s.fail(err)
		return
	}

	result := Result{
		ID:          uuid.NewString(),
		Kind:        kind,
		Value:       value,
		Unit:        kind.Unit(),
		Source:      source,
		Geometry:    g,
		CompletedAt: time.Now(),
	}
	metrics.MeasurementsFinalized.WithLabelValues(string(kind), source).Inc()
	s.log.Info("measurement complete", "kind", kind, "value", value, "unit", result.Unit, "source", source)

	s.reset(ModeNone)
	if s.onResult != nil {
		s.onResult(result)
	}
}

// Resolve picks the final value of a measurement: the remote value when it is
// usable, otherwise the local computation. Returns a FallbackFailed error when
// neither yields a positive finite number.
func Resolve(g orb.Geometry, remoteValue float64, remoteErr error) (float64, string, error) {
	if remoteErr == nil && geometry.Usable(remoteValue) {
		return remoteValue, common.SourceRemote, nil
	}

	local, err := geometry.MeasureGeometry(g)
	if err == nil && geometry.Usable(local) {
		return local, common.SourceLocal, nil
	}
	return 0, "", &MeasureError{Kind: FallbackFailed, Err: ErrFallbackFailed}
}

// Restart drops the collected points but keeps the tool selected
func (s *Session) Restart() {
	if s.mode == ModeNone || len(s.points) == 0 {
		return
	}
	s.log.V(1).Info("measurement restarted", "mode", s.mode)
	s.reset(s.mode)
}

// Clear returns to idle. Calling it when already idle changes nothing.
func (s *Session) Clear() {
	if s.mode == ModeNone && len(s.points) == 0 && s.preview == (Preview{}) {
		return
	}
	s.log.V(1).Info("measurement cleared")
	s.reset(ModeNone)
}

// Cancel is Clear
func (s *Session) Cancel() { s.Clear() }

func (s *Session) reset(m Mode) {
	s.mode = m
	s.points = nil
	s.preview = Preview{}
	if kind, ok := m.Kind(); ok {
		s.preview.Unit = kind.Unit()
	}
	s.generation++
	s.notifyChange()
}

func (s *Session) computePreview() Preview {
	switch s.mode {
	case ModeArea:
		return Preview{Value: geometry.Area(s.points), Unit: geometry.UnitSquareKilometers}
	case ModeDistance:
		return Preview{Value: geometry.Distance(s.points), Unit: geometry.UnitKilometers}
	}
	return Preview{}
}

// fail reports user-visible errors to the error callback and returns err
func (s *Session) fail(err error) error {
	var me *MeasureError
	if s.onError != nil && errors.As(err, &me) && me.UserVisible() {
		s.onError(err)
	}
	return err
}

func (s *Session) notifyChange() {
	if s.onChange != nil {
		s.onChange(s.State())
	}
}
