// ABOUTME: A live websocket session with request/reply correlation
// ABOUTME: Implements cast.Conn and routes receiver notifications
package transport

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is a live session and implements cast.Conn
type Conn struct {
	manager *Manager
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu        sync.RWMutex
	session   cast.Session
	connected bool
	pending   map[string]chan protocol.Reply
	handlers  map[string]func(namespace, message string)
	media     *MediaClient

	events  watchers[cast.ConnEventKind]
	ctx     context.Context
	cancel  context.CancelFunc
	endOnce sync.Once
}

var _ cast.Conn = (*Conn)(nil)

func newConn(m *Manager, ws *websocket.Conn, started protocol.SessionStarted) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Conn{
		manager:   m,
		ws:        ws,
		session:   started.Session,
		connected: true,
		pending:   make(map[string]chan protocol.Reply),
		handlers:  make(map[string]func(string, string)),
		ctx:       ctx,
		cancel:    cancel,
	}
	if started.HasMedia {
		c.media = newMediaClient(c)
	}
	return c
}

// Session returns the latest session description
func (c *Conn) Session() cast.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Connected reports whether the session is live
func (c *Conn) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Media returns the media channel or nil
func (c *Conn) Media() cast.MediaClient {
	if c.media == nil {
		return nil
	}
	return c.media
}

// SetVolume sets the receiver volume
func (c *Conn) SetVolume(ctx context.Context, level float64) error {
	return c.request(ctx, protocol.TypeSessionVolume, protocol.SessionVolume{Level: level})
}

// SetMute sets the receiver mute state
func (c *Conn) SetMute(ctx context.Context, muted bool) error {
	return c.request(ctx, protocol.TypeSessionMute, protocol.SessionMute{Muted: muted})
}

// SendMessage sends a custom namespace message to the receiver application
func (c *Conn) SendMessage(ctx context.Context, namespace, message string) error {
	return c.request(ctx, protocol.TypeSessionMessage, protocol.SessionMessage{Namespace: namespace, Message: message})
}

// SetMessageHandler registers fn for messages on namespace
func (c *Conn) SetMessageHandler(namespace string, fn func(namespace, message string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.handlers[namespace] = fn
	return nil
}

// Watch registers fn for session notifications
func (c *Conn) Watch(fn func(cast.ConnEventKind)) func() {
	return c.events.add(fn)
}

// request sends a message and waits for the receiver's reply
func (c *Conn) request(ctx context.Context, msgType string, payload interface{}) error {
	id := uuid.NewString()
	reply := make(chan protocol.Reply, 1)

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(protocol.Message{Type: msgType, ID: id, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", msgType, err)
	}

	select {
	case r := <-reply:
		if r.Error != "" {
			return fmt.Errorf("%s rejected: %s", msgType, r.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrNotConnected
	}
}

// send writes a message without waiting for a reply
func (c *Conn) send(msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

// readMessages reads and routes receiver messages until the session ends
func (c *Conn) readMessages() {
	for {
		var msg protocol.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if c.Connected() {
				log.Printf("Session read error: %v", err)
				c.terminate(cast.StatusNetworkError)
			}
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Conn) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeReply:
		var r protocol.Reply
		if err := msg.Decode(&r); err != nil {
			log.Printf("%v", err)
			return
		}
		c.mu.RLock()
		ch, ok := c.pending[r.RequestID]
		c.mu.RUnlock()
		if !ok {
			log.Printf("Reply for unknown request %s", r.RequestID)
			return
		}
		select {
		case ch <- r:
		default:
		}

	case protocol.TypeSessionStatus:
		var st protocol.SessionStatus
		if err := msg.Decode(&st); err != nil {
			log.Printf("%v", err)
			return
		}
		c.mu.Lock()
		c.session = st.Session
		c.mu.Unlock()
		if st.Volume {
			c.events.fire(cast.ConnVolumeChanged)
		} else {
			c.events.fire(cast.ConnStatusChanged)
		}

	case protocol.TypeSessionEnded:
		var ended protocol.SessionEnded
		if err := msg.Decode(&ended); err != nil {
			log.Printf("%v", err)
		}
		log.Printf("Receiver ended session %s: %s", c.Session().SessionID, ended.Reason)
		c.terminate(ended.Code)

	case protocol.TypeSessionMessage:
		var m protocol.SessionMessage
		if err := msg.Decode(&m); err != nil {
			log.Printf("%v", err)
			return
		}
		c.mu.RLock()
		fn := c.handlers[m.Namespace]
		c.mu.RUnlock()
		if fn == nil {
			log.Printf("No handler for namespace %s, dropping message", m.Namespace)
			return
		}
		fn(m.Namespace, m.Message)

	case protocol.TypeMediaStatus, protocol.TypeQueueChanged, protocol.TypeQueueItems:
		if c.media == nil {
			log.Printf("Ignoring %s, session has no media channel", msg.Type)
			return
		}
		c.media.handleMessage(msg)

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// terminate closes a session the receiver ended
func (c *Conn) terminate(code int) {
	if !c.close() {
		return
	}
	c.events.fire(cast.ConnDisconnected)
	c.manager.ended(c, code)
}

// end closes the session from this side
func (c *Conn) end(stopApp bool) {
	if c.Connected() {
		if err := c.send(protocol.Message{Type: protocol.TypeSessionStop, Payload: protocol.SessionStop{StopApp: stopApp}}); err != nil {
			log.Printf("Failed to send %s: %v", protocol.TypeSessionStop, err)
		}
	}
	c.close()
}

// close marks the session ended and reports whether this call did it
func (c *Conn) close() bool {
	closed := false
	c.endOnce.Do(func() {
		closed = true
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.cancel()
		c.ws.Close()
	})
	return closed
}
