package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	l := New(logr.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	t.Cleanup(func() {
		cancel()
		l.Close()
	})
	return l
}

func TestLoop_RunsInPostingOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.True(t, l.Do(func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_ConcurrentPostersAreSerialized(t *testing.T) {
	l := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()
	l.Do(func() {})

	assert.Equal(t, 400, counter)
}

func TestLoop_SurvivesPanics(t *testing.T) {
	l := startLoop(t)

	l.Post(func() { panic("boom") })
	ran := false
	require.True(t, l.Do(func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_AfterFunc(t *testing.T) {
	l := startLoop(t)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	cancel := l.AfterFunc(time.Hour, func() { t.Error("cancelled timer fired") })
	assert.True(t, cancel())
}

func TestLoop_PostAfterCloseFails(t *testing.T) {
	l := New(logr.Discard())
	l.Start(context.Background())
	l.Close()

	<-l.Done()
	assert.False(t, l.Post(func() {}))
	assert.False(t, l.Do(func() {}))
}

func TestLoop_ContextCancelStops(t *testing.T) {
	l := New(logr.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestManual_AdvanceFiresDueTimersInOrder(t *testing.T) {
	m := NewManual()

	var got []string
	m.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	cancel := m.AfterFunc(15*time.Millisecond, func() { got = append(got, "cancelled") })
	assert.True(t, cancel())
	assert.False(t, cancel())

	m.Advance(5 * time.Millisecond)
	assert.Empty(t, got)
	assert.Equal(t, 2, m.PendingTimers())

	m.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Zero(t, m.PendingTimers())
}

func TestManual_DrainRunsNestedPosts(t *testing.T) {
	m := NewManual()

	var got []int
	m.Post(func() {
		got = append(got, 1)
		m.Post(func() { got = append(got, 3) })
	})
	m.Post(func() { got = append(got, 2) })

	assert.Equal(t, 3, m.Drain())
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestLoop_DoBeforeStartFails(t *testing.T) {
	l := New(logr.Discard())
	assert.False(t, l.Do(func() { t.Error("must not run") }))
}
