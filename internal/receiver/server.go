// ABOUTME: Receiver emulator for the Sendspin Cast session protocol
// ABOUTME: Manages WebSocket connections, the application session and mDNS advertisement
package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-cast/internal/discovery"
	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// StatusAppNotFound is reported when the receiver cannot run an application
const StatusAppNotFound = 2004

// Config holds receiver configuration
type Config struct {
	Port        int
	Name        string
	EnableMDNS  bool
	AppIDs      []string // applications this receiver runs, empty means any
	Group       bool
	Description string

	// TickInterval drives simulated playback progress (default: 1s, negative disables)
	TickInterval time.Duration
}

// Server represents the receiver
type Server struct {
	config     Config
	receiverID string

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux

	// Sender management
	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	// Receiver state, guarded by stateMu
	stateMu sync.Mutex
	volume  cast.Volume
	session *appSession

	// mDNS discovery
	mdnsManager *discovery.Manager

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// client represents a connected sender
type client struct {
	id     string
	conn   *websocket.Conn
	joined bool // attached to the running session, guarded by Server.stateMu

	// Output channel for messages
	sendChan chan interface{}
}

// New creates a new receiver instance
func New(config Config) *Server {
	if config.Name == "" {
		config.Name = "Sendspin Cast Receiver"
	}
	if config.TickInterval == 0 {
		config.TickInterval = time.Second
	}

	s := &Server{
		config:     config,
		receiverID: uuid.New().String(),
		mux:        http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Receivers only serve trusted local networks
				return true
			},
		},
		clients:  make(map[*client]struct{}),
		volume:   cast.Volume{Level: 1},
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving sessions
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ID returns the receiver's device id
func (s *Server) ID() string {
	return s.receiverID
}

// Start runs the receiver until Stop is called
func (s *Server) Start() error {
	log.Printf("Receiver starting: %s (ID: %s)", s.config.Name, s.receiverID)

	// Start mDNS advertisement if enabled
	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			DeviceID:    s.receiverID,
			AppIDs:      s.config.AppIDs,
			Group:       s.config.Group,
			Description: s.config.Description,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	if s.config.TickInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.playbackLoop()
		}()
	}

	// Start HTTP server
	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Receiver shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	// Mark server as shutting down to reject new connections
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.closeClients()
	s.wg.Wait()
	log.Printf("Receiver stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the receiver
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// closeClients drops every sender connection
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		c.conn.Close()
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)

	s.handleConnection(conn)
}

// handleConnection manages a sender connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	// Check if server is shutting down
	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	c := &client{
		conn:     conn,
		sendChan: make(chan interface{}, 100),
	}

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()

	// Start writer goroutine
	writerDone := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(writerDone)
		s.clientWriter(c)
	}()

	defer func() {
		s.detach(c)
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		close(c.sendChan)
		<-writerDone
		log.Printf("Sender disconnected: %s", c.id)
	}()

	// Read messages from sender
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		s.handleSenderMessage(c, data)
	}
}

// clientWriter sends messages to the sender
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing text message: %v", err)
				return
			}

		case <-ticker.C:
			// Send ping
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// sendMessage queues a JSON message for a sender
func (s *Server) sendMessage(c *client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("sender send buffer full")
	}
}

// reply answers a request
func (s *Server) reply(c *client, requestID string, err error) {
	if requestID == "" {
		return
	}
	r := protocol.Reply{RequestID: requestID}
	if err != nil {
		r.Error = err.Error()
	}
	if sendErr := s.sendMessage(c, protocol.TypeReply, r); sendErr != nil {
		log.Printf("Error sending reply: %v", sendErr)
	}
}

// broadcastLocked sends a message to every sender joined to the session.
// stateMu must be held.
func (s *Server) broadcastLocked(msgType string, payload interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		if !c.joined {
			continue
		}
		if err := s.sendMessage(c, msgType, payload); err != nil {
			log.Printf("Error sending %s to %s: %v", msgType, c.id, err)
		}
	}
}
