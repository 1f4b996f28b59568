package viewsync

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagery-compare/internal/eventloop"
	"imagery-compare/internal/geometry"
	"imagery-compare/internal/viewport"
)

// echoRenderer behaves like a map widget: every programmatic move produces a
// settle event on the next loop turn, optionally nudged by adjust.
type echoRenderer struct {
	sched   *eventloop.Manual
	handles map[string]*viewport.Handle
	adjust  func(viewport.ViewState) viewport.ViewState
	calls   map[string][]viewport.ViewState
	animate []bool
}

func (r *echoRenderer) SetView(id string, state viewport.ViewState, animate bool) {
	r.calls[id] = append(r.calls[id], state)
	r.animate = append(r.animate, animate)
	echoed := state
	if r.adjust != nil {
		echoed = r.adjust(state)
	}
	r.sched.Post(func() { r.handles[id].Settled(echoed) })
}

func (r *echoRenderer) DrawOverlay(string, []viewport.Shape) {}

type fixture struct {
	sched *eventloop.Manual
	r     *echoRenderer
	a, b  *viewport.Handle
	c     *Coordinator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	sched := eventloop.NewManual()
	r := &echoRenderer{sched: sched, handles: map[string]*viewport.Handle{}, calls: map[string][]viewport.ViewState{}}
	a := viewport.New("before", r, logr.Discard())
	b := viewport.New("after", r, logr.Discard())
	r.handles["before"], r.handles["after"] = a, b

	c := New(a, b, sched, opts...)
	c.Attach()
	return &fixture{sched: sched, r: r, a: a, b: b, c: c}
}

func (f *fixture) ready() {
	f.a.MarkReady(view(0, 0, 3))
	f.b.MarkReady(view(0, 0, 3))
}

func view(lat, lng float64, zoom int) viewport.ViewState {
	return viewport.ViewState{Center: geometry.Point{Lat: lat, Lng: lng}, Zoom: zoom}
}

func TestSettle_PropagatesWithoutPingPong(t *testing.T) {
	f := newFixture(t)
	f.ready()

	target := view(48.85, 2.35, 12)
	f.a.Settled(target)
	f.sched.Drain()

	require.Len(t, f.r.calls["after"], 1)
	assert.Equal(t, target, f.r.calls["after"][0])
	assert.Equal(t, []bool{false}, f.r.animate, "propagated moves are not animated")
	assert.Empty(t, f.r.calls["before"], "no copy back to the source")
	assert.True(t, f.a.State().Equal(f.b.State()))
	assert.True(t, f.c.Guarded())

	f.sched.Advance(DefaultReleaseDelay)
	assert.False(t, f.c.Guarded())
	assert.Empty(t, f.r.calls["before"])
}

func TestSettle_GuardAbsorbsAdjustedEcho(t *testing.T) {
	f := newFixture(t)
	f.r.adjust = func(v viewport.ViewState) viewport.ViewState {
		v.Center.Lat += 0.001
		return v
	}
	f.ready()

	f.a.Settled(view(10, 10, 8))
	f.sched.Drain()

	assert.Len(t, f.r.calls["after"], 1)
	assert.Empty(t, f.r.calls["before"], "echo inside the guard window is not propagated")
}

func TestSettle_SymmetricAfterRelease(t *testing.T) {
	f := newFixture(t)
	f.ready()

	f.a.Settled(view(1, 1, 5))
	f.sched.Drain()
	f.sched.Advance(DefaultReleaseDelay)

	f.b.Settled(view(2, 2, 6))
	f.sched.Drain()

	require.Len(t, f.r.calls["before"], 1)
	assert.Equal(t, view(2, 2, 6), f.a.State())
	assert.True(t, f.a.State().Equal(f.b.State()))
}

func TestSettle_SuppressedWhileMeasuring(t *testing.T) {
	measuring := true
	f := newFixture(t, WithSuppressed(func() bool { return measuring }))
	f.ready()

	f.b.Settled(view(5, 5, 9))
	f.sched.Drain()
	assert.Empty(t, f.r.calls["before"])
	assert.False(t, f.c.Guarded())

	measuring = false
	f.c.Resync()
	f.sched.Drain()

	require.Len(t, f.r.calls["before"], 1)
	assert.Equal(t, view(5, 5, 9), f.a.State())
}

func TestSettle_NotReadyIsNoop(t *testing.T) {
	f := newFixture(t)
	f.a.MarkReady(view(0, 0, 3))

	f.a.Settled(view(1, 1, 4))
	f.sched.Drain()

	assert.Empty(t, f.r.calls)
	assert.False(t, f.c.Guarded())
}

func TestSettle_IdenticalStateSkipped(t *testing.T) {
	f := newFixture(t)
	f.ready()

	f.a.Settled(view(0, 0, 3))
	f.sched.Drain()

	assert.Empty(t, f.r.calls)
	assert.False(t, f.c.Guarded())
}

func TestRelease_StaleGenerationIgnored(t *testing.T) {
	f := newFixture(t, WithReleaseDelay(50*time.Millisecond))

	f.c.acquire()
	first := f.c.guardGen
	f.c.acquire()

	f.c.release(first)
	assert.True(t, f.c.Guarded(), "old timer must not release a newer guard")

	f.sched.Advance(50 * time.Millisecond)
	assert.False(t, f.c.Guarded())
	assert.Zero(t, f.sched.PendingTimers())
}

func TestReleaseDelay_Configurable(t *testing.T) {
	f := newFixture(t, WithReleaseDelay(300*time.Millisecond))
	f.ready()
	assert.Equal(t, 300*time.Millisecond, f.c.ReleaseDelay())

	f.a.Settled(view(3, 3, 7))
	f.sched.Drain()
	f.sched.Advance(200 * time.Millisecond)
	assert.True(t, f.c.Guarded())
	f.sched.Advance(100 * time.Millisecond)
	assert.False(t, f.c.Guarded())
}

func TestSettle_DuringGuardConvergesOnRelease(t *testing.T) {
	f := newFixture(t)
	f.ready()

	f.a.Settled(view(48.85, 2.35, 12))
	f.sched.Drain()
	f.sched.Advance(40 * time.Millisecond)

	// second zoom step lands before the guard is released
	f.a.Settled(view(48.85, 2.35, 13))
	f.sched.Drain()
	assert.Equal(t, 12, f.b.State().Zoom)
	assert.True(t, f.c.Pending())

	f.sched.Advance(time.Second)
	f.sched.Drain()

	assert.False(t, f.c.Pending())
	assert.Equal(t, view(48.85, 2.35, 13), f.b.State())
	assert.True(t, f.a.State().Equal(f.b.State()))
	assert.Empty(t, f.r.calls["before"], "the source map is never moved back")

	f.sched.Advance(DefaultReleaseDelay)
	assert.False(t, f.c.Guarded())
}

func TestSettle_DuringGuardWhileSuppressedWaitsForResync(t *testing.T) {
	measuring := false
	f := newFixture(t, WithSuppressed(func() bool { return measuring }))
	f.ready()

	f.a.Settled(view(1, 1, 5))
	f.sched.Drain()
	measuring = true
	f.b.Settled(view(2, 2, 6))
	f.sched.Drain()

	f.sched.Advance(DefaultReleaseDelay)
	assert.False(t, f.c.Pending())
	assert.Empty(t, f.r.calls["before"])

	measuring = false
	f.c.Resync()
	f.sched.Drain()
	require.Len(t, f.r.calls["before"], 1)
	assert.Equal(t, view(2, 2, 6), f.a.State())
}
