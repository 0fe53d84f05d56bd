// ABOUTME: Callback registry used for transport notifications
// ABOUTME: Callbacks run outside the registry lock
package transport

import "sync"

type watchers[T any] struct {
	mu   sync.Mutex
	fns  map[int]func(T)
	next int
}

func (w *watchers[T]) add(fn func(T)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(T))
	}
	w.next++
	id := w.next
	w.fns[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

func (w *watchers[T]) fire(v T) {
	w.mu.Lock()
	fns := make([]func(T), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
