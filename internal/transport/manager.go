// ABOUTME: Websocket session transport to Sendspin Cast receivers
// ABOUTME: Starts, tracks and ends the single live session
package transport

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by calls on a session that has ended
var ErrNotConnected = errors.New("session not connected")

// Config holds transport configuration
type Config struct {
	// SenderID identifies this sender to receivers (default: random uuid)
	SenderID string

	// DialTimeout bounds the websocket handshake (default: 5s)
	DialTimeout time.Duration

	// StartTimeout bounds the wait for session/started (default: 10s)
	StartTimeout time.Duration
}

// Manager owns the session to a receiver and implements cast.Transport
type Manager struct {
	config Config

	mu       sync.Mutex
	current  *Conn
	starting bool

	events watchers[cast.SessionEvent]
}

var _ cast.Transport = (*Manager)(nil)

// NewManager creates a session manager
func NewManager(config Config) *Manager {
	if config.SenderID == "" {
		config.SenderID = uuid.NewString()
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = 10 * time.Second
	}

	return &Manager{config: config}
}

// CurrentSession returns the live session or nil
func (m *Manager) CurrentSession() cast.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current
}

// Watch registers fn for session lifecycle notifications
func (m *Manager) Watch(fn func(cast.SessionEvent)) func() {
	return m.events.add(fn)
}

// Start launches appID on the receiver at addr. The outcome is reported
// through Watch.
func (m *Manager) Start(addr, appID string) {
	m.mu.Lock()
	if m.starting {
		m.mu.Unlock()
		log.Printf("Session start to %s ignored, another start is in progress", addr)
		return
	}
	m.starting = true
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	go func() {
		if prev != nil {
			prev.end(false)
			m.events.fire(cast.SessionEvent{Kind: cast.SessionEnded, Code: cast.StatusSuccess})
		}
		m.connect(addr, appID)
	}()
}

// EndSession ends the current session, asking the receiver to stop the
// application when stopApp is set
func (m *Manager) EndSession(stopApp bool) {
	m.mu.Lock()
	conn := m.current
	m.current = nil
	m.mu.Unlock()

	if conn == nil {
		return
	}

	go func() {
		conn.end(stopApp)
		m.events.fire(cast.SessionEvent{Kind: cast.SessionEnded, Code: cast.StatusSuccess})
	}()
}

// connect dials the receiver and waits for the session to start
func (m *Manager) connect(addr, appID string) {
	conn, code, err := m.dial(addr, appID)

	m.mu.Lock()
	m.starting = false
	if err == nil {
		m.current = conn
	}
	m.mu.Unlock()

	if err != nil {
		log.Printf("Session start on %s failed (code %d): %v", addr, code, err)
		m.events.fire(cast.SessionEvent{Kind: cast.SessionStartFailed, Code: code})
		return
	}

	log.Printf("Session %s started on %s", conn.Session().SessionID, conn.Session().Receiver.FriendlyName)
	go conn.readMessages()
	m.events.fire(cast.SessionEvent{Kind: cast.SessionStarted, Conn: conn})
}

func (m *Manager) dial(addr, appID string) (*Conn, int, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: protocol.Path}
	log.Printf("Connecting to %s", u.String())

	dialer := websocket.Dialer{HandshakeTimeout: m.config.DialTimeout}
	ws, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, startFailureCode(err), fmt.Errorf("dial failed: %w", err)
	}

	start := protocol.Message{
		Type:    protocol.TypeSessionStart,
		Payload: protocol.SessionStart{AppID: appID, SenderID: m.config.SenderID},
	}
	if err := ws.WriteJSON(start); err != nil {
		ws.Close()
		return nil, cast.StatusNetworkError, fmt.Errorf("failed to send %s: %w", start.Type, err)
	}

	ws.SetReadDeadline(time.Now().Add(m.config.StartTimeout))
	for {
		var msg protocol.Message
		if err := ws.ReadJSON(&msg); err != nil {
			ws.Close()
			return nil, startFailureCode(err), fmt.Errorf("failed to read session start reply: %w", err)
		}

		switch msg.Type {
		case protocol.TypeSessionStarted:
			var started protocol.SessionStarted
			if err := msg.Decode(&started); err != nil {
				ws.Close()
				return nil, cast.StatusNetworkError, err
			}
			ws.SetReadDeadline(time.Time{}) // Clear deadline
			return newConn(m, ws, started), cast.StatusSuccess, nil

		case protocol.TypeSessionFailed:
			var failed protocol.SessionFailed
			if err := msg.Decode(&failed); err != nil {
				ws.Close()
				return nil, cast.StatusNetworkError, err
			}
			ws.Close()
			return nil, failed.Code, fmt.Errorf("receiver refused session: %s", failed.Reason)

		default:
			log.Printf("Ignoring %s before session start", msg.Type)
		}
	}
}

// ended is called by a connection the receiver closed
func (m *Manager) ended(conn *Conn, code int) {
	m.mu.Lock()
	if m.current != conn {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.mu.Unlock()

	m.events.fire(cast.SessionEvent{Kind: cast.SessionEnded, Code: code})
}

// startFailureCode maps a network error onto a session start status code
func startFailureCode(err error) int {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return cast.StatusTimeout
	}
	return cast.StatusNetworkError
}
