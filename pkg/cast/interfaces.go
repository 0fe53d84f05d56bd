// ABOUTME: Collaborator interfaces consumed by the cast engine
// ABOUTME: Discovery, session transport, media control, serializer, chooser and settings store
package cast

import (
	"context"
	"encoding/json"
)

// SubscriptionID identifies a discovery registration.
type SubscriptionID uint64

// Discovery lists and selects routes. onChange may be called from any
// goroutine; the engine re-reads Routes after each notification.
type Discovery interface {
	Routes() []RouteInfo
	// Subscribe registers interest in routes able to run appID. It fails
	// when appID is not a valid receiver application id.
	Subscribe(appID string, onChange func()) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID)
	// Select asks the transport to start a session on the route. It fails
	// when the route disappeared in the meantime.
	Select(routeID string) error
}

// SessionEventKind classifies session lifecycle notifications.
type SessionEventKind int

const (
	SessionStarted SessionEventKind = iota
	SessionStartFailed
	SessionEnded
)

func (k SessionEventKind) String() string {
	switch k {
	case SessionStarted:
		return "started"
	case SessionStartFailed:
		return "start_failed"
	case SessionEnded:
		return "ended"
	}
	return "unknown"
}

// Status codes reported with SessionStartFailed and SessionEnded.
const (
	StatusSuccess      = 0
	StatusNetworkError = 7
	StatusTimeout      = 15
)

// SessionEvent is a session lifecycle notification.
type SessionEvent struct {
	Kind SessionEventKind
	Conn Conn // set for SessionStarted
	Code int
}

// Transport owns the session to the receiver.
type Transport interface {
	// CurrentSession returns the live session or nil.
	CurrentSession() Conn
	// Watch registers fn for lifecycle notifications. fn may be called
	// from any goroutine.
	Watch(fn func(SessionEvent)) (cancel func())
	EndSession(stopApp bool)
}

// ConnEventKind classifies notifications about a live session.
type ConnEventKind int

const (
	ConnStatusChanged ConnEventKind = iota
	ConnVolumeChanged
	ConnDisconnected
)

// Conn is a live session.
type Conn interface {
	Session() Session
	Connected() bool
	// Media returns the media channel or nil when the receiver application
	// has none.
	Media() MediaClient
	SetVolume(ctx context.Context, level float64) error
	SetMute(ctx context.Context, muted bool) error
	SendMessage(ctx context.Context, namespace, message string) error
	SetMessageHandler(namespace string, fn func(namespace, message string)) error
	Watch(fn func(ConnEventKind)) (cancel func())
}

// MediaEventKind classifies media channel notifications.
type MediaEventKind int

const (
	MediaStatusUpdated MediaEventKind = iota
	QueueStatusUpdated
)

// MediaClient controls playback on the receiver. Blocking calls return once
// the receiver acknowledged the request.
type MediaClient interface {
	// Status returns the latest media status or nil when nothing is loaded.
	Status() *MediaStatus
	Queue() Queue
	Watch(fn func(MediaEventKind)) (cancel func())

	Load(ctx context.Context, req LoadRequest) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, req SeekRequest) error
	SetStreamVolume(ctx context.Context, level float64) error
	SetStreamMute(ctx context.Context, muted bool) error
	SetActiveTracks(ctx context.Context, trackIDs []int64) error
	SetTextTrackStyle(ctx context.Context, style TextTrackStyle) error
	QueueLoad(ctx context.Context, req QueueLoadRequest) error
	QueueJumpToItem(ctx context.Context, itemID int) error
}

// MutationKind classifies queue mutations.
type MutationKind int

const (
	MutationReload MutationKind = iota
	MutationInsert
	MutationRemove
	MutationUpdate
)

func (k MutationKind) String() string {
	switch k {
	case MutationReload:
		return "reload"
	case MutationInsert:
		return "insert"
	case MutationRemove:
		return "remove"
	case MutationUpdate:
		return "update"
	}
	return "unknown"
}

// QueueMutation reports a change to the receiver queue.
type QueueMutation struct {
	Kind    MutationKind
	Indices []int
}

// Queue is the client-side cache of the receiver queue.
type Queue interface {
	ItemCount() int
	// IndexOfItemID returns -1 when the item is unknown.
	IndexOfItemID(itemID int) int
	// ItemAt returns the resident item or nil. With fetch set, a missing
	// item is requested and reported later through an update mutation.
	ItemAt(index int, fetch bool) *QueueItem
	Watch(fn func(QueueMutation)) (cancel func())
}

// Serializer renders engine state into host-facing payloads.
type Serializer interface {
	// Session renders a session. status is "", "stopped" or "disconnected".
	Session(s Session, status string) (json.RawMessage, error)
	Media(sessionID string, status *MediaStatus, items []json.RawMessage) (json.RawMessage, error)
	QueueItem(item QueueItem) (json.RawMessage, error)
	Routes(routes []Route) (json.RawMessage, error)
}

// Chooser presents interactive session dialogs.
type Chooser interface {
	// PickRoute shows a device chooser fed by routes and returns the
	// picked route id, or "" when the user dismissed it.
	PickRoute(ctx context.Context, appID string, routes <-chan []Route) (string, error)
	// ManageSession shows the current session and reports whether the user
	// asked to stop casting.
	ManageSession(ctx context.Context, s Session) (bool, error)
}

// Store persists the configured receiver application id.
type Store interface {
	AppID() (string, error)
	SetAppID(appID string) error
}
