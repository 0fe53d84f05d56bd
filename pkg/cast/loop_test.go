// ABOUTME: Tests for the serialized execution loop
// ABOUTME: Covers ordering, deferred tasks and shutdown
package cast

import (
	"sync"
	"testing"
	"time"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := newLoop()
	defer l.stop()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	l.call(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestLoopTasksMayPost(t *testing.T) {
	l := newLoop()
	defer l.stop()

	done := make(chan struct{})
	l.post(func() {
		l.post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested task never ran")
	}
}

func TestLoopSurvivesPanic(t *testing.T) {
	l := newLoop()
	defer l.stop()

	l.post(func() { panic("boom") })
	if !l.call(func() {}) {
		t.Fatal("loop stopped after a panicking task")
	}
}

func TestDeferredCancel(t *testing.T) {
	l := newLoop()
	defer l.stop()

	fired := make(chan struct{}, 1)
	l.call(func() {
		d := l.after(20*time.Millisecond, func() { fired <- struct{}{} })
		d.cancel()
	})

	select {
	case <-fired:
		t.Fatal("cancelled task ran")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDeferredRuns(t *testing.T) {
	l := newLoop()
	defer l.stop()

	fired := make(chan struct{})
	l.call(func() {
		l.after(10*time.Millisecond, func() { close(fired) })
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("deferred task never ran")
	}
}

func TestLoopStop(t *testing.T) {
	l := newLoop()

	fired := make(chan struct{}, 1)
	l.call(func() {
		l.after(10*time.Millisecond, func() { fired <- struct{}{} })
	})
	l.stop()

	if l.post(func() {}) {
		t.Error("post succeeded after stop")
	}
	if l.call(func() {}) {
		t.Error("call succeeded after stop")
	}
	select {
	case <-fired:
		t.Fatal("timer fired after stop")
	case <-time.After(40 * time.Millisecond):
	}
}
