// ABOUTME: Decoders turning host-facing payloads back into engine types
// ABOUTME: Used by hosts that consume events in-process, like the terminal remote
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// DecodeSession parses a session payload and returns the session with its
// status tag.
func DecodeSession(raw json.RawMessage) (cast.Session, string, error) {
	var in SessionPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return cast.Session{}, "", fmt.Errorf("failed to unmarshal session: %w", err)
	}

	s := cast.Session{
		SessionID:  in.SessionID,
		AppID:      in.AppID,
		StatusText: in.StatusText,
		Receiver: cast.Receiver{
			FriendlyName: in.Receiver.FriendlyName,
			Volume:       cast.Volume(in.Receiver.Volume),
		},
	}
	if in.DisplayName != "" || len(in.AppImages) > 0 {
		s.AppMetadata = &cast.AppMetadata{AppID: in.AppID, Name: in.DisplayName}
		for _, img := range in.AppImages {
			s.AppMetadata.Images = append(s.AppMetadata.Images, img.URL)
		}
	}
	return s, in.Status, nil
}

// DecodeMedia parses a media payload. null decodes as a nil status.
func DecodeMedia(raw json.RawMessage) (*cast.MediaStatus, error) {
	var in *MediaPayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("failed to unmarshal media status: %w", err)
	}
	if in == nil {
		return nil, nil
	}

	st := &cast.MediaStatus{
		MediaSessionID: in.MediaSessionID,
		CurrentItemID:  in.CurrentItemID,
		PlayerState:    cast.PlayerState(in.PlayerState),
		IdleReason:     cast.IdleReason(in.IdleReason),
		CurrentTime:    in.CurrentTime,
		PlaybackRate:   in.PlaybackRate,
		Volume:         cast.Volume(in.Volume),
		RepeatMode:     cast.RepeatMode(in.RepeatMode),
		Media:          decodeMediaInfo(in.Media),
		ActiveTrackIDs: in.ActiveTrackIDs,
		CustomData:     in.CustomData,
	}
	for _, rawItem := range in.Items {
		var item QueueItemPayload
		if err := json.Unmarshal(rawItem, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
		}
		qi := cast.QueueItem{
			ItemID:         item.ItemID,
			OrderID:        item.OrderID,
			Media:          decodeMediaInfo(item.Media),
			Autoplay:       item.Autoplay,
			PreloadTime:    item.PreloadTime,
			ActiveTrackIDs: item.ActiveTrackIDs,
			CustomData:     item.CustomData,
		}
		if item.StartTime != nil {
			qi.StartTime = *item.StartTime
		}
		st.Items = append(st.Items, qi)
	}
	return st, nil
}

func decodeMediaInfo(in *MediaInfoPayload) *cast.MediaInfo {
	if in == nil {
		return nil
	}
	m := &cast.MediaInfo{
		ContentID:   in.ContentID,
		ContentType: in.ContentType,
		StreamType:  in.StreamType,
		Metadata:    in.Metadata,
		CustomData:  in.CustomData,
	}
	if in.Duration != nil {
		m.Duration = *in.Duration
	}
	for _, t := range in.Tracks {
		m.Tracks = append(m.Tracks, cast.Track{
			TrackID:     t.TrackID,
			Type:        t.Type,
			Name:        t.Name,
			Language:    t.Language,
			ContentID:   t.TrackContentID,
			ContentType: t.TrackContentType,
			Subtype:     t.Subtype,
		})
	}
	return m
}
