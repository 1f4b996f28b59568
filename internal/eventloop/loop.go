package eventloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
)

// Scheduler is the part of the loop that components depend on
type Scheduler interface {
	// Post queues fn to run on the loop goroutine. Returns false once the loop is closed.
	Post(fn func()) bool
	// AfterFunc runs fn on the loop goroutine after d. The returned func cancels it.
	AfterFunc(d time.Duration, fn func()) (cancel func() bool)
}

// Loop runs posted functions one at a time, in posting order, on a single goroutine.
// All viewport, session and coordinator state is only touched from inside the loop.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	log       logr.Logger
}

// New creates a loop; call Start or Run to begin processing
func New(log logr.Logger) *Loop {
	return &Loop{
		pending: make([]func(), 0, 16),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     log.WithName("eventloop"),
	}
}

// Start runs the loop in a background goroutine
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		l.started.Store(true)
		go l.run(ctx)
	})
}

// Run processes posted functions until ctx is cancelled or Close is called
func (l *Loop) Run(ctx context.Context) {
	started := false
	l.startOnce.Do(func() {
		started = true
		l.started.Store(true)
	})
	if !started {
		return
	}
	l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	l.log.V(1).Info("loop started")
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.pending = nil
		l.mu.Unlock()
		close(l.done)
		l.log.V(1).Info("loop stopped")
	}()

	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = make([]func(), 0, len(batch))
		l.mu.Unlock()

		for _, fn := range batch {
			select {
			case <-l.stop:
				return
			default:
			}
			l.invoke(fn)
		}

		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-l.wake:
		}
	}
}

// invoke runs one function and keeps the loop alive if it panics
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error(fmt.Errorf("panic: %v", r), "posted function panicked")
		}
	}()
	fn()
}

// Post queues fn for the loop goroutine
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	// Signal loop
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits for it to finish. Returns false without running fn
// when the loop was never started or is closed. Must not be called from the
// loop goroutine.
func (l *Loop) Do(fn func()) bool {
	if !l.started.Load() {
		return false
	}
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// AfterFunc schedules fn on the loop after d
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, func() {
		l.Post(fn)
	})
	return t.Stop
}

// Done is closed once the loop has exited
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Close stops the loop and drops anything still queued
func (l *Loop) Close() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.stop)
	})
}
