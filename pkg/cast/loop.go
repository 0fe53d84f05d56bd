// ABOUTME: Serialized execution loop for engine state
// ABOUTME: Runs posted tasks one at a time and owns deferred timers
package cast

import (
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// loop runs tasks in posting order on a single goroutine. Posting never
// blocks, so tasks may post further tasks.
type loop struct {
	mu      sync.Mutex
	tasks   []func()
	timers  map[*deferred]struct{}
	closed  bool
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

// deferred is a one-shot task scheduled with after.
type deferred struct {
	l         *loop
	timer     *time.Timer
	cancelled bool // only touched on the loop
}

func newLoop() *loop {
	l := &loop{
		timers: make(map[*deferred]struct{}),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if l.closed || len(l.tasks) == 0 {
				l.mu.Unlock()
				break
			}
			batch := l.tasks
			l.tasks = nil
			l.mu.Unlock()

			for _, task := range batch {
				l.exec(task)
			}
		}
	}
}

func (l *loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("cast: task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	task()
}

// post queues fn. It reports false once the loop has been stopped.
func (l *loop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// after runs fn on the loop once d elapsed, unless cancelled first.
func (l *loop) after(d time.Duration, fn func()) *deferred {
	t := &deferred{l: l}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		t.cancelled = true
		return t
	}
	l.timers[t] = struct{}{}
	l.mu.Unlock()

	t.timer = time.AfterFunc(d, func() {
		l.post(func() {
			l.forget(t)
			if t.cancelled {
				return
			}
			t.cancelled = true
			fn()
		})
	})
	return t
}

// cancel must be called on the loop.
func (t *deferred) cancel() {
	if t == nil || t.cancelled {
		return
	}
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.l.forget(t)
}

func (l *loop) forget(t *deferred) {
	l.mu.Lock()
	delete(l.timers, t)
	l.mu.Unlock()
}

// call runs fn on the loop and waits for it. It reports false when the
// loop is stopped.
func (l *loop) call(fn func()) bool {
	finished := make(chan struct{})
	if !l.post(func() {
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

// stop cancels pending timers, drops queued tasks and waits for the
// running task to finish. It must not be called from the loop.
func (l *loop) stop() {
	l.stopped.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.tasks = nil
		for t := range l.timers {
			if t.timer != nil {
				t.timer.Stop()
			}
		}
		l.timers = make(map[*deferred]struct{})
		l.mu.Unlock()

		close(l.quit)
		<-l.done
	})
}
