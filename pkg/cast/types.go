// ABOUTME: Data model for routes, sessions, media status and queue items
// ABOUTME: Shared by the engine, the wire serializer and the session transport
package cast

import "time"

// DefaultReceiverAppID is the receiver application used until Initialize
// configures another one.
const DefaultReceiverAppID = "CC1AD845"

// MultizoneMemberDescription marks the duplicate route a multizone group
// member publishes next to its own route.
const MultizoneMemberDescription = "Cast Multizone Member"

// Scan timeouts with special meaning for RouteScanner.
const (
	ScanOnce    time.Duration = 0
	ScanForever time.Duration = -1
)

// PlaybackType describes where a route renders media.
type PlaybackType int

const (
	PlaybackLocal PlaybackType = iota
	PlaybackRemote
)

// Route is a discoverable remote rendering target.
type Route struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	IsNearby    bool   `json:"is_nearby"`
	IsGroup     bool   `json:"is_group"`
}

// RouteInfo is a raw route as reported by discovery, before filtering.
type RouteInfo struct {
	Route
	Default      bool
	Description  string
	PlaybackType PlaybackType
	SessionID    string // set when the route mirrors an active session
}

// Volume is a receiver or stream volume.
type Volume struct {
	Level float64 `json:"level"`
	Muted bool    `json:"muted"`
}

// Receiver describes the device a session is connected to.
type Receiver struct {
	FriendlyName string `json:"friendly_name"`
	Volume       Volume `json:"volume"`
}

// AppMetadata describes the receiver application running the session.
type AppMetadata struct {
	AppID      string   `json:"app_id"`
	Name       string   `json:"name"`
	Namespaces []string `json:"namespaces,omitempty"`
	Images     []string `json:"images,omitempty"`
}

// Session is an established control channel to one receiver application.
type Session struct {
	SessionID   string       `json:"session_id"`
	AppID       string       `json:"app_id"`
	StatusText  string       `json:"status_text,omitempty"`
	Receiver    Receiver     `json:"receiver"`
	AppMetadata *AppMetadata `json:"app_metadata,omitempty"`
}

// PlayerState is the receiver's playback state.
type PlayerState string

const (
	PlayerUnknown   PlayerState = "UNKNOWN"
	PlayerIdle      PlayerState = "IDLE"
	PlayerPlaying   PlayerState = "PLAYING"
	PlayerPaused    PlayerState = "PAUSED"
	PlayerBuffering PlayerState = "BUFFERING"
	PlayerLoading   PlayerState = "LOADING"
)

// IdleReason explains why the player is idle.
type IdleReason string

const (
	IdleNone        IdleReason = ""
	IdleFinished    IdleReason = "FINISHED"
	IdleCancelled   IdleReason = "CANCELLED"
	IdleInterrupted IdleReason = "INTERRUPTED"
	IdleError       IdleReason = "ERROR"
)

// RepeatMode is the queue repeat behavior.
type RepeatMode string

const (
	RepeatOff           RepeatMode = "REPEAT_OFF"
	RepeatAll           RepeatMode = "REPEAT_ALL"
	RepeatSingle        RepeatMode = "REPEAT_SINGLE"
	RepeatAllAndShuffle RepeatMode = "REPEAT_ALL_AND_SHUFFLE"
)

// TextTrackStyle styles subtitles on the receiver.
type TextTrackStyle struct {
	BackgroundColor   string         `json:"background_color,omitempty"`
	ForegroundColor   string         `json:"foreground_color,omitempty"`
	EdgeColor         string         `json:"edge_color,omitempty"`
	EdgeType          string         `json:"edge_type,omitempty"`
	FontFamily        string         `json:"font_family,omitempty"`
	FontGenericFamily string         `json:"font_generic_family,omitempty"`
	FontScale         float64        `json:"font_scale,omitempty"`
	FontStyle         string         `json:"font_style,omitempty"`
	WindowColor       string         `json:"window_color,omitempty"`
	WindowType        string         `json:"window_type,omitempty"`
	WindowRadius      int            `json:"window_rounded_corner_radius,omitempty"`
	CustomData        map[string]any `json:"custom_data,omitempty"`
}

// Track is a text, audio or video track of a media item.
type Track struct {
	TrackID     int64  `json:"track_id"`
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Language    string `json:"language,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
}

// MediaInfo describes one piece of media.
type MediaInfo struct {
	ContentID      string          `json:"content_id"`
	ContentType    string          `json:"content_type"`
	StreamType     string          `json:"stream_type,omitempty"`
	Duration       float64         `json:"duration,omitempty"` // seconds
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CustomData     map[string]any  `json:"custom_data,omitempty"`
	Tracks         []Track         `json:"tracks,omitempty"`
	TextTrackStyle *TextTrackStyle `json:"text_track_style,omitempty"`
}

// QueueItem is one entry of the receiver's playback queue. OrderID is the
// item's index in the queue when it was placed in a queue window.
type QueueItem struct {
	ItemID         int            `json:"item_id"`
	OrderID        int            `json:"order_id"`
	Media          *MediaInfo     `json:"media,omitempty"`
	Autoplay       bool           `json:"autoplay"`
	StartTime      float64        `json:"start_time,omitempty"`
	PreloadTime    float64        `json:"preload_time,omitempty"`
	ActiveTrackIDs []int64        `json:"active_track_ids,omitempty"`
	CustomData     map[string]any `json:"custom_data,omitempty"`
}

// MediaStatus is a receiver media snapshot. Items holds the queue window
// around the current item.
type MediaStatus struct {
	MediaSessionID int            `json:"media_session_id"`
	CurrentItemID  int            `json:"current_item_id"`
	PlayerState    PlayerState    `json:"player_state"`
	IdleReason     IdleReason     `json:"idle_reason,omitempty"`
	CurrentTime    float64        `json:"current_time"`
	PlaybackRate   float64        `json:"playback_rate"`
	Volume         Volume         `json:"volume"`
	RepeatMode     RepeatMode     `json:"repeat_mode,omitempty"`
	Media          *MediaInfo     `json:"media,omitempty"`
	ActiveTrackIDs []int64        `json:"active_track_ids,omitempty"`
	CustomData     map[string]any `json:"custom_data,omitempty"`
	Items          []QueueItem    `json:"items,omitempty"`
}

// LoadRequest loads a single media item.
type LoadRequest struct {
	Media       MediaInfo `json:"media"`
	Autoplay    bool      `json:"autoplay"`
	CurrentTime float64   `json:"current_time"` // seconds
}

// ResumeState selects the player state after a seek.
type ResumeState string

const (
	ResumeUnchanged ResumeState = ""
	ResumePlay      ResumeState = "PLAYBACK_START"
	ResumePause     ResumeState = "PLAYBACK_PAUSE"
)

// ParseResumeState maps a host resume-state name onto a ResumeState.
// Unknown names leave the state unchanged.
func ParseResumeState(s string) ResumeState {
	switch ResumeState(s) {
	case ResumePlay, ResumePause:
		return ResumeState(s)
	}
	return ResumeUnchanged
}

// SeekRequest moves the playhead.
type SeekRequest struct {
	Position    float64     `json:"position"` // seconds
	ResumeState ResumeState `json:"resume_state,omitempty"`
}

// QueueLoadRequest replaces the receiver queue.
type QueueLoadRequest struct {
	Items        []QueueItem    `json:"items"`
	StartIndex   int            `json:"start_index"`
	RepeatMode   RepeatMode     `json:"repeat_mode"`
	PlayPosition float64        `json:"play_position"` // seconds
	CustomData   map[string]any `json:"custom_data,omitempty"`
}
