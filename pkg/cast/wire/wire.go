// ABOUTME: JSON serializer producing browser-sender shaped payloads
// ABOUTME: Implements cast.Serializer for hosts speaking the web sender API
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// SessionPayload is the host view of a session.
type SessionPayload struct {
	AppID       string          `json:"appId,omitempty"`
	AppImages   []Image         `json:"appImages,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	StatusText  string          `json:"statusText,omitempty"`
	Media       []MediaPayload  `json:"media"`
	Receiver    ReceiverPayload `json:"receiver"`
	SessionID   string          `json:"sessionId"`
	Status      string          `json:"status,omitempty"`
}

// Image is an application or metadata image.
type Image struct {
	URL string `json:"url"`
}

// ReceiverPayload describes the receiver device.
type ReceiverPayload struct {
	FriendlyName string        `json:"friendlyName"`
	Label        string        `json:"label"`
	Volume       VolumePayload `json:"volume"`
}

// VolumePayload is a receiver or stream volume.
type VolumePayload struct {
	Level float64 `json:"level"`
	Muted bool    `json:"muted"`
}

// MediaPayload is a media status snapshot.
type MediaPayload struct {
	CurrentItemID  int               `json:"currentItemId"`
	CurrentTime    float64           `json:"currentTime"`
	CustomData     map[string]any    `json:"customData"`
	IdleReason     string            `json:"idleReason,omitempty"`
	Items          []json.RawMessage `json:"items"`
	IsAlive        bool              `json:"isAlive"`
	Media          *MediaInfoPayload `json:"media"`
	MediaSessionID int               `json:"mediaSessionId"`
	PlaybackRate   float64           `json:"playbackRate"`
	PlayerState    string            `json:"playerState"`
	RepeatMode     string            `json:"repeatMode,omitempty"`
	SessionID      string            `json:"sessionId"`
	Volume         VolumePayload     `json:"volume"`
	ActiveTrackIDs []int64           `json:"activeTrackIds"`
}

// MediaInfoPayload describes one piece of media.
type MediaInfoPayload struct {
	ContentID      string                 `json:"contentId"`
	ContentType    string                 `json:"contentType"`
	CustomData     map[string]any         `json:"customData"`
	Duration       *float64               `json:"duration"`
	Metadata       map[string]any         `json:"metadata"`
	StreamType     string                 `json:"streamType"`
	Tracks         []TrackPayload         `json:"tracks"`
	TextTrackStyle *TextTrackStylePayload `json:"textTrackStyle"`
}

// TrackPayload is one media track.
type TrackPayload struct {
	TrackID          int64  `json:"trackId"`
	Language         string `json:"language"`
	Name             string `json:"name"`
	Subtype          string `json:"subtype"`
	TrackContentID   string `json:"trackContentId"`
	TrackContentType string `json:"trackContentType"`
	Type             string `json:"type"`
}

// TextTrackStylePayload styles subtitles.
type TextTrackStylePayload struct {
	BackgroundColor           string         `json:"backgroundColor"`
	CustomData                map[string]any `json:"customData"`
	EdgeColor                 string         `json:"edgeColor"`
	EdgeType                  string         `json:"edgeType"`
	FontFamily                string         `json:"fontFamily"`
	FontGenericFamily         string         `json:"fontGenericFamily"`
	FontScale                 float64        `json:"fontScale"`
	FontStyle                 string         `json:"fontStyle"`
	ForegroundColor           string         `json:"foregroundColor"`
	WindowColor               string         `json:"windowColor"`
	WindowRoundedCornerRadius int            `json:"windowRoundedCornerRadius"`
	WindowType                string         `json:"windowType"`
}

// QueueItemPayload is one queue entry.
type QueueItemPayload struct {
	ActiveTrackIDs []int64           `json:"activeTrackIds"`
	Autoplay       bool              `json:"autoplay"`
	CustomData     map[string]any    `json:"customData"`
	ItemID         int               `json:"itemId"`
	Media          *MediaInfoPayload `json:"media"`
	OrderID        int               `json:"orderId"`
	PreloadTime    float64           `json:"preloadTime"`
	StartTime      *float64          `json:"startTime"`
}

// RoutePayload is one entry of a route scan update.
type RoutePayload struct {
	Name           string `json:"name"`
	ID             string `json:"id"`
	IsNearbyDevice bool   `json:"isNearbyDevice"`
	IsCastGroup    bool   `json:"isCastGroup"`
}

// Serializer implements cast.Serializer.
type Serializer struct{}

var _ cast.Serializer = Serializer{}

// Session renders s tagged with status.
func (Serializer) Session(s cast.Session, status string) (json.RawMessage, error) {
	out := SessionPayload{
		AppID:      s.AppID,
		StatusText: s.StatusText,
		Media:      []MediaPayload{},
		SessionID:  s.SessionID,
		Status:     status,
		Receiver: ReceiverPayload{
			FriendlyName: s.Receiver.FriendlyName,
			Label:        s.SessionID,
			Volume:       VolumePayload(s.Receiver.Volume),
		},
	}
	if s.AppMetadata != nil {
		out.AppID = s.AppMetadata.AppID
		out.DisplayName = s.AppMetadata.Name
		for _, url := range s.AppMetadata.Images {
			out.AppImages = append(out.AppImages, Image{URL: url})
		}
	}
	return marshal("session", out)
}

// Media renders a media snapshot. A nil status renders as null.
func (Serializer) Media(sessionID string, st *cast.MediaStatus, items []json.RawMessage) (json.RawMessage, error) {
	if st == nil {
		return json.RawMessage("null"), nil
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	out := MediaPayload{
		CurrentItemID:  st.CurrentItemID,
		CurrentTime:    st.CurrentTime,
		CustomData:     st.CustomData,
		IdleReason:     string(st.IdleReason),
		Items:          items,
		IsAlive:        st.PlayerState != cast.PlayerIdle,
		Media:          mediaInfo(st.Media),
		MediaSessionID: st.MediaSessionID,
		PlaybackRate:   st.PlaybackRate,
		PlayerState:    string(st.PlayerState),
		RepeatMode:     string(st.RepeatMode),
		SessionID:      sessionID,
		Volume:         VolumePayload(st.Volume),
		ActiveTrackIDs: trackIDs(st.ActiveTrackIDs),
	}
	return marshal("media status", out)
}

// QueueItem renders one queue entry.
func (Serializer) QueueItem(item cast.QueueItem) (json.RawMessage, error) {
	out := QueueItemPayload{
		ActiveTrackIDs: trackIDs(item.ActiveTrackIDs),
		Autoplay:       item.Autoplay,
		CustomData:     item.CustomData,
		ItemID:         item.ItemID,
		Media:          mediaInfo(item.Media),
		OrderID:        item.OrderID,
		PreloadTime:    item.PreloadTime,
	}
	if item.StartTime != 0 {
		start := item.StartTime
		out.StartTime = &start
	}
	return marshal("queue item", out)
}

// Routes renders a route scan update.
func (Serializer) Routes(routes []cast.Route) (json.RawMessage, error) {
	out := make([]RoutePayload, 0, len(routes))
	for _, r := range routes {
		out = append(out, RoutePayload{
			Name:           r.DisplayName,
			ID:             r.ID,
			IsNearbyDevice: r.IsNearby,
			IsCastGroup:    r.IsGroup,
		})
	}
	return marshal("routes", out)
}

func marshal(what string, v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", what, err)
	}
	return data, nil
}

// trackIDs renders an empty id list as null.
func trackIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func mediaInfo(m *cast.MediaInfo) *MediaInfoPayload {
	if m == nil {
		return nil
	}
	out := &MediaInfoPayload{
		ContentID:   m.ContentID,
		ContentType: m.ContentType,
		CustomData:  m.CustomData,
		Metadata:    m.Metadata,
		StreamType:  m.StreamType,
		Tracks:      []TrackPayload{},
	}
	if m.Duration > 0 {
		d := m.Duration
		out.Duration = &d
	}
	for _, t := range m.Tracks {
		out.Tracks = append(out.Tracks, TrackPayload{
			TrackID:          t.TrackID,
			Language:         t.Language,
			Name:             t.Name,
			Subtype:          t.Subtype,
			TrackContentID:   t.ContentID,
			TrackContentType: t.ContentType,
			Type:             t.Type,
		})
	}
	if s := m.TextTrackStyle; s != nil {
		out.TextTrackStyle = &TextTrackStylePayload{
			BackgroundColor:           s.BackgroundColor,
			CustomData:                s.CustomData,
			EdgeColor:                 s.EdgeColor,
			EdgeType:                  s.EdgeType,
			FontFamily:                s.FontFamily,
			FontGenericFamily:         s.FontGenericFamily,
			FontScale:                 s.FontScale,
			FontStyle:                 s.FontStyle,
			ForegroundColor:           s.ForegroundColor,
			WindowColor:               s.WindowColor,
			WindowRoundedCornerRadius: s.WindowRadius,
			WindowType:                s.WindowType,
		}
	}
	return out
}
