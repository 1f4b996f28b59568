package eventloop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by the caller. Posted functions run on Drain and
// timers fire on Advance, both on the calling goroutine.
type Manual struct {
	mu     sync.Mutex
	queue  []func()
	timers []*manualTimer
	now    time.Duration
	seq    int
}

type manualTimer struct {
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

// NewManual creates an empty manual scheduler
func NewManual() *Manual {
	return &Manual{}
}

// Post queues fn until the next Drain
func (m *Manual) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
	return true
}

// AfterFunc registers fn to be posted once the manual clock passes d
func (m *Manual) AfterFunc(d time.Duration, fn func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)

	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// Drain runs queued functions, including ones they post, until the queue is empty.
// Returns how many ran.
func (m *Manual) Drain() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return ran
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
		ran++
	}
}

// Advance moves the clock forward, fires due timers in deadline order and drains
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	due := make([]*manualTimer, 0)
	keep := m.timers[:0]
	for _, t := range m.timers {
		switch {
		case t.stopped:
		case t.at <= m.now:
			t.stopped = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	m.timers = keep
	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	for _, t := range due {
		m.queue = append(m.queue, t.fn)
	}
	m.mu.Unlock()

	m.Drain()
}

// PendingTimers returns the number of timers that have not fired or been cancelled
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
