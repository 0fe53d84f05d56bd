// ABOUTME: Reconciles receiver media notifications into outbound events
// ABOUTME: Suppresses chatter during loads and synthesizes finished transitions
package cast

import (
	"encoding/json"
	"log"
)

// onStatusUpdated handles a media status notification. Runs on the loop.
func (m *mediaSession) onStatusUpdated() {
	if m.inflight > 0 || m.queueStatusHook != nil || m.reloadHook != nil {
		return
	}

	status := m.client.Status()
	if status != nil {
		if !m.hasPrevItem {
			m.prevItemID = status.CurrentItemID
			m.hasPrevItem = true
		}

		skip := false
		if status.PlayerState == PlayerLoading {
			// The receiver moved on to the next item; report the previous
			// one as finished once per transition.
			if !m.finishedSent && m.last != nil {
				m.finishedSent = true
				m.emitMedia(EventMediaUpdate, m.snapshot(IdleFinished))
			}
			skip = true
		} else {
			m.finishedSent = false
		}

		if m.prevItemID != status.CurrentItemID && m.window.currentIndex() != -1 {
			current := status.CurrentItemID
			m.reloadHook = func() { m.prevItemID = current }
			m.window.refresh()
			skip = true
		}

		if skip {
			return
		}
	}

	m.emitMedia(EventMediaUpdate, m.snapshot(IdleNone))
}

// onQueueStatusUpdated runs the pending queue status hook once.
func (m *mediaSession) onQueueStatusUpdated() {
	if m.queueStatusHook == nil {
		return
	}
	hook := m.queueStatusHook
	m.queueStatusHook = nil
	hook()
}

// onQueueMutation handles a queue change notification. Runs on the loop.
func (m *mediaSession) onQueueMutation(mut QueueMutation) {
	if mut.Kind == MutationReload {
		if m.window.itemCount() == 0 {
			return
		}
		if m.reloadHook == nil {
			// Loaded by another sender.
			m.reloadHook = func() {
				m.emitMedia(EventMediaLoad, m.snapshot(IdleNone))
			}
		}
	}
	m.window.onMutation(mut)
}

// onWindowReady receives the completed queue window.
func (m *mediaSession) onWindowReady(items []QueueItem) {
	m.items = items
	m.rawItems = make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		raw, err := m.serializer.QueueItem(item)
		if err != nil {
			log.Printf("cast: failed to serialize queue item %d: %v", item.ItemID, err)
			continue
		}
		m.rawItems = append(m.rawItems, raw)
	}

	if m.reloadHook != nil && m.window.itemCount() > 0 {
		hook := m.reloadHook
		m.reloadHook = nil
		hook()
	}
	m.emitMedia(EventMediaUpdate, m.snapshot(IdleNone))
}

// snapshot builds the outbound media status. With a reason set, the last
// snapshot is reused with the player forced idle for that reason.
func (m *mediaSession) snapshot(reason IdleReason) *MediaStatus {
	if reason != IdleNone && m.last != nil {
		derived := *m.last
		derived.PlayerState = PlayerIdle
		derived.IdleReason = reason
		m.last = &derived
		return &derived
	}

	if m.client == nil {
		return nil
	}
	status := m.client.Status()
	if status == nil {
		return nil
	}
	fresh := *status
	fresh.Items = append([]QueueItem(nil), m.items...)
	m.last = &fresh
	return &fresh
}

// serializeMedia renders a snapshot. A nil snapshot renders as nil.
func (m *mediaSession) serializeMedia(status *MediaStatus) (json.RawMessage, error) {
	if status == nil {
		return nil, nil
	}
	return m.serializer.Media(m.conn.Session().SessionID, status, m.rawItems)
}

func (m *mediaSession) emitMedia(event EventType, status *MediaStatus) {
	raw, err := m.serializeMedia(status)
	if err != nil {
		log.Printf("cast: failed to serialize media status: %v", err)
		return
	}
	if raw == nil {
		m.emit(event)
		return
	}
	m.emit(event, raw)
}
