// ABOUTME: Media session bound to the current receiver session
// ABOUTME: Owns queue window state and issues media, queue and receiver commands
package cast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// Session update tags.
const (
	sessionStopped      = "stopped"
	sessionDisconnected = "disconnected"
)

// pendingLoad is a load or queue load waiting for its queue window.
type pendingLoad struct {
	result *promise[MediaResult]
	timer  *deferred
}

// mediaSession holds the state scoped to one session. All fields are owned
// by the loop.
type mediaSession struct {
	ctx         context.Context
	loop        *loop
	serializer  Serializer
	emit        func(EventType, ...json.RawMessage)
	callTimeout time.Duration
	loadTimeout time.Duration

	conn    Conn
	client  MediaClient
	window  *queueWindow
	unwatch []func()

	inflight        int // load calls awaiting the receiver
	reloadHook      func()
	queueStatusHook func()
	prevItemID      int
	hasPrevItem     bool
	finishedSent    bool
	last            *MediaStatus
	items           []QueueItem
	rawItems        []json.RawMessage
	load            *pendingLoad
}

// setSession binds the media session to conn. nil unbinds it.
func (m *mediaSession) setSession(conn Conn) {
	if conn == nil {
		m.reset()
		return
	}
	if conn == m.conn {
		return
	}
	m.reset()

	m.conn = conn
	m.unwatch = append(m.unwatch, conn.Watch(func(kind ConnEventKind) {
		m.loop.post(func() {
			if m.conn != conn {
				return
			}
			m.onConnEvent(kind)
		})
	}))

	m.client = conn.Media()
	if m.client == nil {
		return
	}
	client := m.client

	m.window = newQueueWindow(client.Queue(), func() (int, bool) {
		status := client.Status()
		if status == nil {
			return 0, false
		}
		return status.CurrentItemID, true
	}, m.onWindowReady)

	m.unwatch = append(m.unwatch, client.Queue().Watch(func(mut QueueMutation) {
		m.loop.post(func() {
			if m.client != client {
				return
			}
			m.onQueueMutation(mut)
		})
	}))
	m.unwatch = append(m.unwatch, client.Watch(func(kind MediaEventKind) {
		m.loop.post(func() {
			if m.client != client {
				return
			}
			switch kind {
			case MediaStatusUpdated:
				m.onStatusUpdated()
			case QueueStatusUpdated:
				m.onQueueStatusUpdated()
			}
		})
	}))
}

// reset drops everything scoped to the current session.
func (m *mediaSession) reset() {
	for _, cancel := range m.unwatch {
		cancel()
	}
	m.unwatch = nil

	if m.load != nil {
		m.load.timer.cancel()
		m.load.result.resolve(failedMedia(newError(CodeSessionError, "session ended before media loaded")))
		m.load = nil
	}

	m.conn = nil
	m.client = nil
	m.window = nil
	m.inflight = 0
	m.reloadHook = nil
	m.queueStatusHook = nil
	m.prevItemID = 0
	m.hasPrevItem = false
	m.finishedSent = false
	m.last = nil
	m.items = nil
	m.rawItems = nil
}

func (m *mediaSession) onConnEvent(kind ConnEventKind) {
	switch kind {
	case ConnStatusChanged, ConnVolumeChanged:
		m.emitSession("")
	case ConnDisconnected:
		m.emitSession(sessionStopped)
		m.reset()
	}
}

func (m *mediaSession) emitSession(status string) {
	raw, err := m.serializer.Session(m.conn.Session(), status)
	if err != nil {
		log.Printf("cast: failed to serialize session: %v", err)
		return
	}
	m.emit(EventSessionUpdate, raw)
}

func (m *mediaSession) requireSession() error {
	if m.conn == nil || m.client == nil {
		return newError(CodeSessionError, "no active session")
	}
	return nil
}

// do runs call off the loop and hands its error to onResult on the loop.
// If the loop is gone, closed resolves the caller instead.
func (m *mediaSession) do(call func(context.Context) error, onResult func(error), closed func(error)) {
	ctx, cancel := context.WithTimeout(m.ctx, m.callTimeout)
	go func() {
		defer cancel()
		err := call(ctx)
		if !m.loop.post(func() { onResult(err) }) {
			closed(newError(CodeAPINotInitialized, "caster closed"))
		}
	}()
}

// command issues a simple media command and resolves with its outcome.
func (m *mediaSession) command(failure string, call func(context.Context, MediaClient) error, p *promise[error]) {
	if err := m.requireSession(); err != nil {
		p.resolve(err)
		return
	}
	client := m.client
	m.do(func(ctx context.Context) error {
		return call(ctx, client)
	}, func(err error) {
		if err != nil {
			p.resolve(newError(CodeSessionError, "%s: %v", failure, err))
			return
		}
		p.resolve(nil)
	}, p.resolve)
}

func (m *mediaSession) play(p *promise[error]) {
	m.command("Failed to play.", func(ctx context.Context, c MediaClient) error { return c.Play(ctx) }, p)
}

func (m *mediaSession) pause(p *promise[error]) {
	m.command("Failed to pause.", func(ctx context.Context, c MediaClient) error { return c.Pause(ctx) }, p)
}

func (m *mediaSession) stop(p *promise[error]) {
	m.command("Failed to stop.", func(ctx context.Context, c MediaClient) error { return c.Stop(ctx) }, p)
}

func (m *mediaSession) seek(req SeekRequest, p *promise[error]) {
	m.command("Failed to seek.", func(ctx context.Context, c MediaClient) error { return c.Seek(ctx, req) }, p)
}

// setStreamVolume issues one call per given value and resolves once all of
// them returned.
func (m *mediaSession) setStreamVolume(level *float64, muted *bool, p *promise[error]) {
	if err := m.requireSession(); err != nil {
		p.resolve(err)
		return
	}
	client := m.client

	var calls []func(context.Context) error
	if level != nil {
		v := *level
		calls = append(calls, func(ctx context.Context) error { return client.SetStreamVolume(ctx, v) })
	}
	if muted != nil {
		v := *muted
		calls = append(calls, func(ctx context.Context) error { return client.SetStreamMute(ctx, v) })
	}
	m.all("Failed to set media volume/mute state", calls, p)
}

// editTracks sets the active tracks and, when given, the text track style.
func (m *mediaSession) editTracks(trackIDs []int64, style *TextTrackStyle, p *promise[error]) {
	if err := m.requireSession(); err != nil {
		p.resolve(err)
		return
	}
	client := m.client

	calls := []func(context.Context) error{
		func(ctx context.Context) error { return client.SetActiveTracks(ctx, trackIDs) },
	}
	if style != nil {
		s := *style
		calls = append(calls, func(ctx context.Context) error { return client.SetTextTrackStyle(ctx, s) })
	}
	m.all("Failed to edit tracks", calls, p)
}

// all runs calls concurrently and resolves after the last one returned,
// joining every failure into one error.
func (m *mediaSession) all(failure string, calls []func(context.Context) error, p *promise[error]) {
	if len(calls) == 0 {
		p.resolve(nil)
		return
	}

	remaining := len(calls)
	var errs []error
	for _, call := range calls {
		m.do(call, func(err error) {
			if err != nil {
				errs = append(errs, err)
			}
			remaining--
			if remaining > 0 {
				return
			}
			if len(errs) > 0 {
				p.resolve(newError(CodeSessionError, "%s: %v", failure, errors.Join(errs...)))
				return
			}
			p.resolve(nil)
		}, p.resolve)
	}
}

// loadMedia loads a single item and resolves with the snapshot taken once
// the receiver reloaded its queue.
func (m *mediaSession) loadMedia(req LoadRequest, p *promise[MediaResult]) {
	if err := m.requireSession(); err != nil {
		p.resolve(failedMedia(err))
		return
	}
	client := m.client
	m.startLoad(p, func(ctx context.Context) error {
		return client.Load(ctx, req)
	})
}

// queueLoad replaces the receiver queue.
func (m *mediaSession) queueLoad(req QueueLoadRequest, p *promise[MediaResult]) {
	if err := m.requireSession(); err != nil {
		p.resolve(failedMedia(err))
		return
	}
	if len(req.Items) == 0 {
		p.resolve(failedMedia(newError(CodeInvalidParameter, "queue load request has no items")))
		return
	}
	if req.StartIndex < 0 || req.StartIndex >= len(req.Items) {
		p.resolve(failedMedia(newError(CodeInvalidParameter, "start index %d out of range [0, %d)", req.StartIndex, len(req.Items))))
		return
	}
	req.PlayPosition = req.Items[req.StartIndex].StartTime

	client := m.client
	m.startLoad(p, func(ctx context.Context) error {
		return client.QueueLoad(ctx, req)
	})
}

func (m *mediaSession) startLoad(p *promise[MediaResult], call func(context.Context) error) {
	if m.load != nil {
		m.load.timer.cancel()
		m.load.result.resolve(failedMedia(newError(CodeCancel, "superseded by a newer load")))
	}

	client := m.client
	pending := &pendingLoad{result: p}
	m.load = pending
	m.inflight++

	// While m.load is pending the reload hook below is the installed one.
	m.reloadHook = func() {
		if m.load != pending {
			return
		}
		m.load = nil
		pending.timer.cancel()
		status := m.snapshot(IdleNone)
		raw, err := m.serializeMedia(status)
		if err != nil {
			p.resolve(failedMedia(fmt.Errorf("serialize media: %w", err)))
			return
		}
		p.resolve(MediaResult{Status: status, Payload: raw})
	}

	pending.timer = m.loop.after(m.loadTimeout, func() {
		if m.load != pending {
			return
		}
		m.load = nil
		m.reloadHook = nil
		p.resolve(failedMedia(newError(CodeTimeout, "receiver did not report the loaded media within %s", m.loadTimeout)))
	})

	m.do(call, func(err error) {
		if m.client == client && m.inflight > 0 {
			m.inflight--
		}
		if err == nil {
			return
		}
		if m.load == pending {
			m.load = nil
			pending.timer.cancel()
			m.reloadHook = nil
		}
		p.resolve(failedMedia(newError(CodeSessionError, "load failed: %v", err)))
	}, func(err error) { p.resolve(failedMedia(err)) })
}

// jumpToItem plays the queue item with itemID and reports the interrupted
// item once the queue status changes.
func (m *mediaSession) jumpToItem(itemID int, p *promise[error]) {
	if err := m.requireSession(); err != nil {
		p.resolve(err)
		return
	}
	client := m.client

	m.queueStatusHook = func() {
		m.emitMedia(EventMediaUpdate, m.snapshot(IdleInterrupted))
	}
	m.do(func(ctx context.Context) error {
		return client.QueueJumpToItem(ctx, itemID)
	}, func(err error) {
		if err != nil {
			if m.client == client {
				m.queueStatusHook = nil
			}
			p.resolve(newError(CodeSessionError, "Failed to jump to queue item with ID: %d: %v", itemID, err))
			return
		}
		p.resolve(nil)
	}, p.resolve)
}

// setReceiverVolume changes the device volume, not the stream volume.
func (m *mediaSession) setReceiverVolume(level float64, p *promise[error]) {
	m.receiverCall(func(ctx context.Context, c Conn) error { return c.SetVolume(ctx, level) }, p)
}

func (m *mediaSession) setReceiverMuted(muted bool, p *promise[error]) {
	m.receiverCall(func(ctx context.Context, c Conn) error { return c.SetMute(ctx, muted) }, p)
}

func (m *mediaSession) sendMessage(namespace, message string, p *promise[error]) {
	m.receiverCall(func(ctx context.Context, c Conn) error { return c.SendMessage(ctx, namespace, message) }, p)
}

func (m *mediaSession) receiverCall(call func(context.Context, Conn) error, p *promise[error]) {
	if err := m.requireSession(); err != nil {
		p.resolve(err)
		return
	}
	conn := m.conn
	m.do(func(ctx context.Context) error {
		return call(ctx, conn)
	}, func(err error) {
		if err != nil {
			p.resolve(newError(CodeChannelError, "%v", err))
			return
		}
		p.resolve(nil)
	}, p.resolve)
}

// addMessageListener forwards receiver messages on namespace as events.
// Without a session it does nothing.
func (m *mediaSession) addMessageListener(namespace string) {
	if m.requireSession() != nil {
		return
	}
	conn := m.conn
	err := conn.SetMessageHandler(namespace, func(ns, message string) {
		m.loop.post(func() {
			if m.conn != conn {
				return
			}
			m.emit(EventReceiverMessage, rawString(ns), rawString(message))
		})
	})
	if err != nil {
		log.Printf("cast: failed to listen on namespace %s: %v", namespace, err)
	}
}
