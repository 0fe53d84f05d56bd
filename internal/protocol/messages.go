// ABOUTME: Sendspin Cast session protocol message type definitions
// ABOUTME: Defines structs for all messages exchanged between sender and receiver
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// Path is the websocket endpoint receivers serve sessions on
const Path = "/cast"

// Message types sent by the sender
const (
	TypeSessionStart   = "session/start"
	TypeSessionStop    = "session/stop"
	TypeSessionVolume  = "session/volume"
	TypeSessionMute    = "session/mute"
	TypeSessionMessage = "session/message"

	TypeMediaLoad           = "media/load"
	TypeMediaPlay           = "media/play"
	TypeMediaPause          = "media/pause"
	TypeMediaStop           = "media/stop"
	TypeMediaSeek           = "media/seek"
	TypeMediaStreamVolume   = "media/stream_volume"
	TypeMediaTracks         = "media/tracks"
	TypeMediaTextTrackStyle = "media/text_track_style"

	TypeQueueLoad     = "queue/load"
	TypeQueueJump     = "queue/jump"
	TypeQueueGetItems = "queue/get_items"
)

// Message types sent by the receiver
const (
	TypeSessionStarted = "session/started"
	TypeSessionFailed  = "session/failed"
	TypeSessionStatus  = "session/status"
	TypeSessionEnded   = "session/ended"
	TypeMediaStatus    = "media/status"
	TypeQueueChanged   = "queue/changed"
	TypeQueueItems     = "queue/items"
	TypeReply          = "reply"
)

// Message is the top-level wrapper for all protocol messages. Requests
// that expect a reply carry an ID.
type Message struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Decode unmarshals the message payload into v
func (m Message) Decode(v interface{}) error {
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s payload: %w", m.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", m.Type, err)
	}
	return nil
}

// SessionStart asks the receiver to launch an application
type SessionStart struct {
	AppID    string `json:"app_id"`
	SenderID string `json:"sender_id"`
}

// SessionStarted announces an established session
type SessionStarted struct {
	Session cast.Session `json:"session"`
	// HasMedia is set when the application exposes a media channel
	HasMedia bool `json:"has_media"`
}

// SessionFailed reports that the application could not be launched
type SessionFailed struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// SessionStop ends the session
type SessionStop struct {
	StopApp bool `json:"stop_app"`
}

// SessionStatus reports a session change such as volume or application
type SessionStatus struct {
	Session cast.Session `json:"session"`
	Volume  bool         `json:"volume"` // set when only the volume changed
}

// SessionEnded reports that the receiver ended the session
type SessionEnded struct {
	Code   int    `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// SessionVolume sets the receiver volume
type SessionVolume struct {
	Level float64 `json:"level"`
}

// SessionMute sets the receiver mute state
type SessionMute struct {
	Muted bool `json:"muted"`
}

// SessionMessage carries a custom namespace message in either direction
type SessionMessage struct {
	Namespace string `json:"namespace"`
	Message   string `json:"message"`
}

// StreamVolume sets the stream volume. Absent fields are left unchanged.
type StreamVolume struct {
	Level *float64 `json:"level,omitempty"`
	Muted *bool    `json:"muted,omitempty"`
}

// ActiveTracks selects the active tracks
type ActiveTracks struct {
	TrackIDs []int64 `json:"track_ids"`
}

// QueueJump jumps to a queue item
type QueueJump struct {
	ItemID int `json:"item_id"`
}

// QueueGetItems requests the full content of queue items
type QueueGetItems struct {
	ItemIDs []int `json:"item_ids"`
}

// QueueItems answers queue/get_items
type QueueItems struct {
	Items []cast.QueueItem `json:"items"`
}

// QueueChanged reports a change to the queue. ItemIDs is the full queue
// order after the change; Changed lists the affected item ids.
type QueueChanged struct {
	Kind    string `json:"kind"` // reload, insert, remove or update
	ItemIDs []int  `json:"item_ids"`
	Changed []int  `json:"changed,omitempty"`
}

// MediaStatus reports the receiver media state. Status is null when
// nothing is loaded.
type MediaStatus struct {
	Status *cast.MediaStatus `json:"status"`
}

// Reply answers a request
type Reply struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`
}
