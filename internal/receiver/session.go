// ABOUTME: Application session state of the receiver emulator
// ABOUTME: Handles session, media and queue requests from senders
package receiver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/google/uuid"
)

var (
	errNoSession   = errors.New("no application session")
	errNoMedia     = errors.New("no media loaded")
	errUnknownItem = errors.New("unknown queue item")
)

var appNames = map[string]string{
	cast.DefaultReceiverAppID: "Default Media Receiver",
}

// appSession is the running receiver application
type appSession struct {
	id    string
	appID string
	media mediaState
}

func (s *Server) describeLocked() cast.Session {
	out := cast.Session{
		Receiver: cast.Receiver{FriendlyName: s.config.Name, Volume: s.volume},
	}
	if s.session == nil {
		return out
	}
	name := appNames[s.session.appID]
	if name == "" {
		name = s.session.appID
	}
	out.SessionID = s.session.id
	out.AppID = s.session.appID
	out.StatusText = "Ready To Cast"
	out.AppMetadata = &cast.AppMetadata{AppID: s.session.appID, Name: name}
	return out
}

func (s *Server) supports(appID string) bool {
	if len(s.config.AppIDs) == 0 {
		return true
	}
	for _, id := range s.config.AppIDs {
		if id == appID {
			return true
		}
	}
	return false
}

// handleSenderMessage processes a message from a sender
func (s *Server) handleSenderMessage(c *client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if msg.Type == protocol.TypeSessionStart {
		s.handleStart(c, msg)
		return
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if !c.joined || s.session == nil {
		s.reply(c, msg.ID, errNoSession)
		return
	}

	var err error
	switch msg.Type {
	case protocol.TypeSessionStop:
		var stop protocol.SessionStop
		if err = msg.Decode(&stop); err == nil {
			s.handleStopLocked(c, stop.StopApp)
		}
	case protocol.TypeSessionVolume:
		var v protocol.SessionVolume
		if err = msg.Decode(&v); err == nil {
			s.volume.Level = v.Level
			s.broadcastLocked(protocol.TypeSessionStatus, protocol.SessionStatus{Session: s.describeLocked(), Volume: true})
		}
	case protocol.TypeSessionMute:
		var m protocol.SessionMute
		if err = msg.Decode(&m); err == nil {
			s.volume.Muted = m.Muted
			s.broadcastLocked(protocol.TypeSessionStatus, protocol.SessionStatus{Session: s.describeLocked(), Volume: true})
		}
	case protocol.TypeSessionMessage:
		// The emulated application echoes custom messages to its senders
		var m protocol.SessionMessage
		if err = msg.Decode(&m); err == nil {
			s.broadcastLocked(protocol.TypeSessionMessage, m)
		}
	case protocol.TypeQueueGetItems:
		var req protocol.QueueGetItems
		if err = msg.Decode(&req); err == nil {
			items := s.session.media.itemsByID(req.ItemIDs)
			if sendErr := s.sendMessage(c, protocol.TypeQueueItems, protocol.QueueItems{Items: items}); sendErr != nil {
				log.Printf("Error sending queue items: %v", sendErr)
			}
		}
	default:
		err = s.handleMediaLocked(msg)
	}

	if err != nil {
		log.Printf("Request %s from %s failed: %v", msg.Type, c.id, err)
	}
	s.reply(c, msg.ID, err)
}

// handleStart launches or joins the requested application
func (s *Server) handleStart(c *client, msg protocol.Message) {
	var start protocol.SessionStart
	if err := msg.Decode(&start); err != nil {
		log.Printf("%v", err)
		return
	}

	if !s.supports(start.AppID) {
		log.Printf("Sender %s asked for unsupported app %s", start.SenderID, start.AppID)
		s.sendMessage(c, protocol.TypeSessionFailed, protocol.SessionFailed{
			Code:   StatusAppNotFound,
			Reason: fmt.Sprintf("application %s not available", start.AppID),
		})
		return
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	c.id = start.SenderID
	if s.session == nil || s.session.appID != start.AppID {
		if s.session != nil {
			s.endSessionLocked(nil, "replaced by "+start.AppID)
		}
		s.session = &appSession{id: uuid.NewString(), appID: start.AppID}
		log.Printf("Launched %s (session %s) for %s", start.AppID, s.session.id, c.id)
	} else {
		log.Printf("Sender %s joined session %s", c.id, s.session.id)
	}
	c.joined = true

	s.sendMessage(c, protocol.TypeSessionStarted, protocol.SessionStarted{Session: s.describeLocked(), HasMedia: true})
	s.sendMessage(c, protocol.TypeMediaStatus, protocol.MediaStatus{Status: s.session.media.snapshot()})
	s.sendMessage(c, protocol.TypeQueueChanged, protocol.QueueChanged{Kind: "reload", ItemIDs: s.session.media.itemIDs()})
}

// handleStopLocked detaches the sender, stopping the application if asked
func (s *Server) handleStopLocked(c *client, stopApp bool) {
	c.joined = false
	if stopApp {
		s.endSessionLocked(c, "stopped by "+c.id)
	}
}

// endSessionLocked stops the application and tells every joined sender
// except skip
func (s *Server) endSessionLocked(skip *client, reason string) {
	log.Printf("Session %s ended: %s", s.session.id, reason)
	s.clientsMu.RLock()
	for other := range s.clients {
		if other == skip || !other.joined {
			continue
		}
		other.joined = false
		s.sendMessage(other, protocol.TypeSessionEnded, protocol.SessionEnded{Code: cast.StatusSuccess, Reason: reason})
	}
	s.clientsMu.RUnlock()
	s.session = nil
}

// detach forgets a disconnected sender
func (s *Server) detach(c *client) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	c.joined = false
}

// StopApp ends the running application as if stopped on the device
func (s *Server) StopApp() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.session != nil {
		s.endSessionLocked(nil, "stopped on receiver")
	}
}

// Snapshot returns the current session and media status
func (s *Server) Snapshot() (*cast.Session, *cast.MediaStatus) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	session := s.describeLocked()
	return &session, s.session.media.snapshot()
}
