package viewsync

import (
	"time"

	"github.com/go-logr/logr"

	"imagery-compare/internal/eventloop"
	"imagery-compare/internal/metrics"
	"imagery-compare/internal/viewport"
)

// DefaultReleaseDelay is how long the guard stays set after a propagated view change
const DefaultReleaseDelay = 100 * time.Millisecond

// Coordinator keeps two viewports on the same center and zoom.
// It runs on the UI loop together with the handles it drives.
type Coordinator struct {
	a, b  *viewport.Handle
	sched eventloop.Scheduler
	log   logr.Logger

	releaseDelay time.Duration
	suppressed   func() bool
	onPropagate  func(from, to string, state viewport.ViewState)

	// guard blocks propagation while our own writes settle. Each acquisition
	// gets a new generation so an old release timer cannot clear a newer guard.
	guard         bool
	guardGen      uint64
	cancelRelease func() bool

	// pending marks a user settle that arrived while guarded; release resyncs it
	pending bool

	// last handle the user moved; used by Resync
	lastSource *viewport.Handle
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithReleaseDelay sets the guard release delay
func WithReleaseDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.releaseDelay = d
		}
	}
}

// WithSuppressed sets the predicate that pauses synchronization, e.g. while measuring
func WithSuppressed(fn func() bool) Option {
	return func(c *Coordinator) { c.suppressed = fn }
}

// WithOnPropagate sets a callback invoked after each copied view
func WithOnPropagate(fn func(from, to string, state viewport.ViewState)) Option {
	return func(c *Coordinator) { c.onPropagate = fn }
}

// WithLogger sets the coordinator logger
func WithLogger(log logr.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// New creates a coordinator for a and b. Call Attach to start listening.
func New(a, b *viewport.Handle, sched eventloop.Scheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		a:            a,
		b:            b,
		sched:        sched,
		log:          logr.Discard(),
		releaseDelay: DefaultReleaseDelay,
		lastSource:   a,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithName("viewsync")
	return c
}

// Attach subscribes to the settle events of both handles
func (c *Coordinator) Attach() {
	c.a.OnSettle(func(state viewport.ViewState) { c.handleSettle(c.a, c.b, state) })
	c.b.OnSettle(func(state viewport.ViewState) { c.handleSettle(c.b, c.a, state) })
}

// SetSuppressed replaces the suppression predicate
func (c *Coordinator) SetSuppressed(fn func() bool) {
	c.suppressed = fn
}

// Guarded reports whether propagation is currently blocked by the guard
func (c *Coordinator) Guarded() bool {
	return c.guard
}

// Pending reports whether a settle is waiting for the guard to be released
func (c *Coordinator) Pending() bool {
	return c.pending
}

// ReleaseDelay returns the configured guard release delay
func (c *Coordinator) ReleaseDelay() time.Duration {
	return c.releaseDelay
}

func (c *Coordinator) handleSettle(src, dst *viewport.Handle, state viewport.ViewState) {
	if c.guard {
		c.lastSource = src
		c.pending = true
		c.log.V(2).Info("settle deferred while guarded", "from", src.ID())
		return
	}
	c.lastSource = src
	if c.suppressed != nil && c.suppressed() {
		return
	}
	c.propagate(src, dst, state)
}

func (c *Coordinator) propagate(src, dst *viewport.Handle, state viewport.ViewState) {
	if !src.Ready() || !dst.Ready() {
		return
	}
	if dst.State().Equal(state) {
		return
	}

	c.acquire()
	dst.SetView(state, false)

	metrics.ViewSyncPropagations.WithLabelValues(src.ID() + "_to_" + dst.ID()).Inc()
	c.log.V(1).Info("view propagated", "from", src.ID(), "to", dst.ID(),
		"zoom", state.Zoom, "center", state.Center.String())
	if c.onPropagate != nil {
		c.onPropagate(src.ID(), dst.ID(), state)
	}
}

func (c *Coordinator) acquire() {
	if c.cancelRelease != nil {
		c.cancelRelease()
	}
	c.guardGen++
	c.guard = true
	gen := c.guardGen
	c.cancelRelease = c.sched.AfterFunc(c.releaseDelay, func() { c.release(gen) })
}

func (c *Coordinator) release(gen uint64) {
	if gen != c.guardGen {
		c.log.V(2).Info("stale guard release ignored", "generation", gen, "current", c.guardGen)
		return
	}
	c.guard = false
	c.cancelRelease = nil

	if c.pending {
		c.pending = false
		c.Resync()
	}
}

// Resync copies the view of the last moved viewport onto the other one.
// Called when suppression ends so both maps converge.
func (c *Coordinator) Resync() {
	if c.guard || (c.suppressed != nil && c.suppressed()) {
		return
	}
	src, dst := c.lastSource, c.b
	if src == c.b {
		dst = c.a
	}
	c.propagate(src, dst, src.State())
}
