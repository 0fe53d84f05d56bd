// ABOUTME: Media and queue state of the emulated application
// ABOUTME: Applies media requests and simulates playback progress
package receiver

import (
	"fmt"
	"time"

	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// mediaState is the media channel of the running application
type mediaState struct {
	loaded     bool
	status     cast.MediaStatus
	items      []cast.QueueItem
	nextItemID int
}

func (m *mediaState) snapshot() *cast.MediaStatus {
	if !m.loaded {
		return nil
	}
	st := m.status
	if item := m.current(); item != nil {
		st.Media = item.Media
	}
	return &st
}

func (m *mediaState) itemIDs() []int {
	ids := make([]int, len(m.items))
	for i, item := range m.items {
		ids[i] = item.ItemID
	}
	return ids
}

func (m *mediaState) itemsByID(ids []int) []cast.QueueItem {
	out := make([]cast.QueueItem, 0, len(ids))
	for _, id := range ids {
		if i := m.indexOf(id); i >= 0 {
			out = append(out, m.items[i])
		}
	}
	return out
}

func (m *mediaState) indexOf(itemID int) int {
	for i, item := range m.items {
		if item.ItemID == itemID {
			return i
		}
	}
	return -1
}

func (m *mediaState) current() *cast.QueueItem {
	i := m.indexOf(m.status.CurrentItemID)
	if i < 0 {
		return nil
	}
	return &m.items[i]
}

// replace installs a new queue and starts item start
func (m *mediaState) replace(items []cast.QueueItem, start int, autoplay bool, position float64, repeat cast.RepeatMode) {
	m.items = make([]cast.QueueItem, len(items))
	for i, item := range items {
		m.nextItemID++
		item.ItemID = m.nextItemID
		item.OrderID = i
		m.items[i] = item
	}
	m.loaded = true
	m.status = cast.MediaStatus{
		MediaSessionID: m.status.MediaSessionID + 1,
		CurrentItemID:  m.items[start].ItemID,
		PlayerState:    cast.PlayerPaused,
		CurrentTime:    position,
		PlaybackRate:   1,
		Volume:         m.status.Volume,
		RepeatMode:     repeat,
	}
	if m.status.Volume == (cast.Volume{}) {
		m.status.Volume = cast.Volume{Level: 1}
	}
	if autoplay {
		m.status.PlayerState = cast.PlayerPlaying
	}
}

// handleMediaLocked applies a media or queue request. stateMu must be held.
func (s *Server) handleMediaLocked(msg protocol.Message) error {
	m := &s.session.media
	reload := false

	switch msg.Type {
	case protocol.TypeMediaLoad:
		var req cast.LoadRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		media := req.Media
		m.replace([]cast.QueueItem{{Media: &media, Autoplay: req.Autoplay}}, 0, req.Autoplay, req.CurrentTime, cast.RepeatOff)
		reload = true

	case protocol.TypeQueueLoad:
		var req cast.QueueLoadRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		if len(req.Items) == 0 || req.StartIndex < 0 || req.StartIndex >= len(req.Items) {
			return fmt.Errorf("invalid queue load")
		}
		m.replace(req.Items, req.StartIndex, req.Items[req.StartIndex].Autoplay, req.PlayPosition, req.RepeatMode)
		reload = true

	case protocol.TypeQueueJump:
		var req protocol.QueueJump
		if err := msg.Decode(&req); err != nil {
			return err
		}
		i := m.indexOf(req.ItemID)
		if i < 0 {
			return errUnknownItem
		}
		m.status.CurrentItemID = req.ItemID
		m.status.CurrentTime = m.items[i].StartTime
		m.status.PlayerState = cast.PlayerPlaying
		m.status.IdleReason = cast.IdleNone
		s.broadcastLocked(protocol.TypeQueueChanged, protocol.QueueChanged{Kind: "update", ItemIDs: m.itemIDs()})

	case protocol.TypeMediaPlay, protocol.TypeMediaPause, protocol.TypeMediaStop, protocol.TypeMediaSeek,
		protocol.TypeMediaStreamVolume, protocol.TypeMediaTracks, protocol.TypeMediaTextTrackStyle:
		if !m.loaded {
			return errNoMedia
		}
		if err := applyControl(m, msg); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}

	// Status goes first so senders resolve the current item on reload
	s.broadcastLocked(protocol.TypeMediaStatus, protocol.MediaStatus{Status: m.snapshot()})
	if reload {
		s.broadcastLocked(protocol.TypeQueueChanged, protocol.QueueChanged{Kind: "reload", ItemIDs: m.itemIDs()})
	}
	return nil
}

// applyControl applies a playback control request to loaded media
func applyControl(m *mediaState, msg protocol.Message) error {
	switch msg.Type {
	case protocol.TypeMediaPlay:
		m.status.PlayerState = cast.PlayerPlaying
		m.status.IdleReason = cast.IdleNone

	case protocol.TypeMediaPause:
		m.status.PlayerState = cast.PlayerPaused

	case protocol.TypeMediaStop:
		m.status.PlayerState = cast.PlayerIdle
		m.status.IdleReason = cast.IdleCancelled

	case protocol.TypeMediaSeek:
		var req cast.SeekRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		m.status.CurrentTime = req.Position
		switch req.ResumeState {
		case cast.ResumePlay:
			m.status.PlayerState = cast.PlayerPlaying
		case cast.ResumePause:
			m.status.PlayerState = cast.PlayerPaused
		}

	case protocol.TypeMediaStreamVolume:
		var req protocol.StreamVolume
		if err := msg.Decode(&req); err != nil {
			return err
		}
		if req.Level != nil {
			m.status.Volume.Level = *req.Level
		}
		if req.Muted != nil {
			m.status.Volume.Muted = *req.Muted
		}

	case protocol.TypeMediaTracks:
		var req protocol.ActiveTracks
		if err := msg.Decode(&req); err != nil {
			return err
		}
		m.status.ActiveTrackIDs = req.TrackIDs

	case protocol.TypeMediaTextTrackStyle:
		var style cast.TextTrackStyle
		if err := msg.Decode(&style); err != nil {
			return err
		}
		if item := m.current(); item != nil && item.Media != nil {
			media := *item.Media
			media.TextTrackStyle = &style
			item.Media = &media
		}
	}
	return nil
}

// advance moves playback forward by elapsed and reports whether the
// status changed enough to broadcast
func (m *mediaState) advance(elapsed time.Duration) bool {
	if !m.loaded {
		return false
	}

	switch m.status.PlayerState {
	case cast.PlayerLoading:
		m.status.PlayerState = cast.PlayerPlaying
		return true
	case cast.PlayerPlaying:
	default:
		return false
	}

	m.status.CurrentTime += elapsed.Seconds() * m.status.PlaybackRate
	item := m.current()
	if item == nil || item.Media == nil || item.Media.Duration <= 0 || m.status.CurrentTime < item.Media.Duration {
		return false
	}

	next := m.nextIndex()
	if next < 0 {
		m.status.PlayerState = cast.PlayerIdle
		m.status.IdleReason = cast.IdleFinished
		return true
	}
	m.status.CurrentItemID = m.items[next].ItemID
	m.status.CurrentTime = m.items[next].StartTime
	m.status.PlayerState = cast.PlayerLoading
	return true
}

// nextIndex returns the index of the item after the current one or -1
func (m *mediaState) nextIndex() int {
	i := m.indexOf(m.status.CurrentItemID)
	switch {
	case m.status.RepeatMode == cast.RepeatSingle:
		return i
	case i+1 < len(m.items):
		return i + 1
	case m.status.RepeatMode == cast.RepeatAll || m.status.RepeatMode == cast.RepeatAllAndShuffle:
		return 0
	}
	return -1
}

// playbackLoop advances simulated playback until the receiver stops
func (s *Server) playbackLoop() {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tick(s.config.TickInterval)
		}
	}
}

func (s *Server) tick(elapsed time.Duration) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.session == nil {
		return
	}
	if s.session.media.advance(elapsed) {
		s.broadcastLocked(protocol.TypeMediaStatus, protocol.MediaStatus{Status: s.session.media.snapshot()})
	}
}
