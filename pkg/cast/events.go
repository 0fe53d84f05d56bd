// ABOUTME: Host-facing event types emitted by the engine
// ABOUTME: Every event carries positional, already serialized arguments
package cast

import "encoding/json"

// EventType names an outbound event.
type EventType string

const (
	EventSessionListener  EventType = "SESSION_LISTENER"
	EventSessionUpdate    EventType = "SESSION_UPDATE"
	EventMediaLoad        EventType = "MEDIA_LOAD"
	EventMediaUpdate      EventType = "MEDIA_UPDATE"
	EventReceiverListener EventType = "RECEIVER_LISTENER"
	EventReceiverMessage  EventType = "RECEIVER_MESSAGE"
	EventSetup            EventType = "SETUP"
)

// Event is delivered on Caster.Events.
type Event struct {
	Type EventType         `json:"type"`
	Args []json.RawMessage `json:"args"`
}

// MarshalJSON renders the event as [type, args], the shape hosts consume.
func (e Event) MarshalJSON() ([]byte, error) {
	args := e.Args
	if args == nil {
		args = []json.RawMessage{}
	}
	return json.Marshal([]any{e.Type, args})
}

func rawBool(b bool) json.RawMessage {
	if b {
		return json.RawMessage("true")
	}
	return json.RawMessage("false")
}

func rawString(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}
