// ABOUTME: Result types and single-assignment promises for engine operations
// ABOUTME: Every operation resolves its promise exactly once
package cast

import (
	"encoding/json"
	"sync"
)

// JoinResult is the outcome of RequestSession and SelectRoute. Exactly one
// of Session and Err is set.
type JoinResult struct {
	Session *Session
	Payload json.RawMessage // serialized session
	Err     error
}

// MediaResult is the outcome of LoadMedia and QueueLoad.
type MediaResult struct {
	Status  *MediaStatus
	Payload json.RawMessage // serialized media snapshot
	Err     error
}

// ScanResult is delivered to a StartRouteScan callback. A scan ends with a
// single result carrying ErrCancel.
type ScanResult struct {
	Routes  []Route
	Payload json.RawMessage // serialized routes
	Err     error
}

// promise delivers one value on a buffered channel. Later resolutions are
// ignored.
type promise[T any] struct {
	once sync.Once
	ch   chan T
}

func newPromise[T any]() *promise[T] {
	return &promise[T]{ch: make(chan T, 1)}
}

func (p *promise[T]) resolve(v T) {
	p.once.Do(func() {
		p.ch <- v
	})
}

func failedJoin(err error) JoinResult {
	return JoinResult{Err: err}
}

func failedMedia(err error) MediaResult {
	return MediaResult{Err: err}
}
