// ABOUTME: Media channel of a live session
// ABOUTME: Implements cast.MediaClient on top of the session request path
package transport

import (
	"context"
	"log"
	"sync"

	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// MediaClient controls playback on the receiver and implements cast.MediaClient
type MediaClient struct {
	conn   *Conn
	queue  *QueueCache
	events watchers[cast.MediaEventKind]

	mu     sync.RWMutex
	status *cast.MediaStatus
}

var _ cast.MediaClient = (*MediaClient)(nil)

func newMediaClient(conn *Conn) *MediaClient {
	m := &MediaClient{conn: conn}
	m.queue = newQueueCache(m.fetchItems)
	return m
}

// Status returns the latest media status or nil
func (m *MediaClient) Status() *cast.MediaStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == nil {
		return nil
	}
	s := *m.status
	return &s
}

// Queue returns the queue cache
func (m *MediaClient) Queue() cast.Queue {
	return m.queue
}

// Watch registers fn for media notifications
func (m *MediaClient) Watch(fn func(cast.MediaEventKind)) func() {
	return m.events.add(fn)
}

func (m *MediaClient) Load(ctx context.Context, req cast.LoadRequest) error {
	return m.conn.request(ctx, protocol.TypeMediaLoad, req)
}

func (m *MediaClient) Play(ctx context.Context) error {
	return m.conn.request(ctx, protocol.TypeMediaPlay, nil)
}

func (m *MediaClient) Pause(ctx context.Context) error {
	return m.conn.request(ctx, protocol.TypeMediaPause, nil)
}

func (m *MediaClient) Stop(ctx context.Context) error {
	return m.conn.request(ctx, protocol.TypeMediaStop, nil)
}

func (m *MediaClient) Seek(ctx context.Context, req cast.SeekRequest) error {
	return m.conn.request(ctx, protocol.TypeMediaSeek, req)
}

func (m *MediaClient) SetStreamVolume(ctx context.Context, level float64) error {
	return m.conn.request(ctx, protocol.TypeMediaStreamVolume, protocol.StreamVolume{Level: &level})
}

func (m *MediaClient) SetStreamMute(ctx context.Context, muted bool) error {
	return m.conn.request(ctx, protocol.TypeMediaStreamVolume, protocol.StreamVolume{Muted: &muted})
}

func (m *MediaClient) SetActiveTracks(ctx context.Context, trackIDs []int64) error {
	return m.conn.request(ctx, protocol.TypeMediaTracks, protocol.ActiveTracks{TrackIDs: trackIDs})
}

func (m *MediaClient) SetTextTrackStyle(ctx context.Context, style cast.TextTrackStyle) error {
	return m.conn.request(ctx, protocol.TypeMediaTextTrackStyle, style)
}

func (m *MediaClient) QueueLoad(ctx context.Context, req cast.QueueLoadRequest) error {
	return m.conn.request(ctx, protocol.TypeQueueLoad, req)
}

func (m *MediaClient) QueueJumpToItem(ctx context.Context, itemID int) error {
	return m.conn.request(ctx, protocol.TypeQueueJump, protocol.QueueJump{ItemID: itemID})
}

// fetchItems asks the receiver for the content of queue items
func (m *MediaClient) fetchItems(itemIDs []int) {
	msg := protocol.Message{Type: protocol.TypeQueueGetItems, Payload: protocol.QueueGetItems{ItemIDs: itemIDs}}
	if err := m.conn.send(msg); err != nil {
		log.Printf("Failed to request queue items %v: %v", itemIDs, err)
	}
}

func (m *MediaClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeMediaStatus:
		var st protocol.MediaStatus
		if err := msg.Decode(&st); err != nil {
			log.Printf("%v", err)
			return
		}
		m.mu.Lock()
		m.status = st.Status
		m.mu.Unlock()
		m.events.fire(cast.MediaStatusUpdated)

	case protocol.TypeQueueChanged:
		var changed protocol.QueueChanged
		if err := msg.Decode(&changed); err != nil {
			log.Printf("%v", err)
			return
		}
		m.queue.apply(changed)
		m.events.fire(cast.QueueStatusUpdated)

	case protocol.TypeQueueItems:
		var items protocol.QueueItems
		if err := msg.Decode(&items); err != nil {
			log.Printf("%v", err)
			return
		}
		m.queue.store(items.Items)
	}
}
