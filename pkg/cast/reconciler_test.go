// ABOUTME: Tests for media status reconciliation
// ABOUTME: Covers suppression, synthetic finished snapshots and deferred window refreshes
package cast

import (
	"encoding/json"
	"testing"
	"time"
)

type mediaPayload struct {
	SessionID     string            `json:"sessionId"`
	PlayerState   string            `json:"playerState"`
	IdleReason    string            `json:"idleReason"`
	CurrentItemID int               `json:"currentItemId"`
	Items         []json.RawMessage `json:"items"`
}

func decodeMedia(t *testing.T, ev Event) mediaPayload {
	t.Helper()
	if len(ev.Args) != 1 {
		t.Fatalf("expected one argument, got %d", len(ev.Args))
	}
	var p mediaPayload
	if err := json.Unmarshal(ev.Args[0], &p); err != nil {
		t.Fatalf("invalid media payload: %v", err)
	}
	return p
}

func playingSession(t *testing.T) (*harness, *fakeConn, *fakeMedia) {
	t.Helper()
	h := newHarness(t, nil)
	media := newFakeMedia()
	media.queue.setItems([]int{10, 11, 12, 13}, 0, 1, 2, 3)
	media.setStatus(MediaStatus{MediaSessionID: 1, CurrentItemID: 11, PlayerState: PlayerPlaying})
	conn := newFakeConn("session-1", media)
	h.bind(t, conn)
	return h, conn, media
}

func TestStatusUpdateEmitsSnapshot(t *testing.T) {
	h, _, media := playingSession(t)

	media.events.fire(MediaStatusUpdated)
	p := decodeMedia(t, h.nextEvent(t, EventMediaUpdate))

	if p.PlayerState != string(PlayerPlaying) || p.CurrentItemID != 11 {
		t.Errorf("unexpected snapshot: %+v", p)
	}
	if p.SessionID != "session-1" {
		t.Errorf("expected session id, got %q", p.SessionID)
	}
}

func TestLoadingEmitsFinishedOnce(t *testing.T) {
	h, _, media := playingSession(t)

	media.events.fire(MediaStatusUpdated)
	h.nextEvent(t, EventMediaUpdate)

	media.setStatus(MediaStatus{MediaSessionID: 1, CurrentItemID: 11, PlayerState: PlayerLoading})
	media.events.fire(MediaStatusUpdated)

	p := decodeMedia(t, h.nextEvent(t, EventMediaUpdate))
	if p.PlayerState != string(PlayerIdle) || p.IdleReason != string(IdleFinished) {
		t.Errorf("expected synthetic finished snapshot, got %+v", p)
	}

	media.events.fire(MediaStatusUpdated)
	h.noEvent(t, EventMediaUpdate, 50*time.Millisecond)

	// Leaving Loading re-arms the latch.
	media.setStatus(MediaStatus{MediaSessionID: 1, CurrentItemID: 11, PlayerState: PlayerPlaying})
	media.events.fire(MediaStatusUpdated)
	h.nextEvent(t, EventMediaUpdate)

	media.setStatus(MediaStatus{MediaSessionID: 1, CurrentItemID: 11, PlayerState: PlayerLoading})
	media.events.fire(MediaStatusUpdated)
	p = decodeMedia(t, h.nextEvent(t, EventMediaUpdate))
	if p.IdleReason != string(IdleFinished) {
		t.Errorf("expected a second finished snapshot, got %+v", p)
	}
}

func TestItemChangeDefersUntilWindowReady(t *testing.T) {
	h, _, media := playingSession(t)

	media.events.fire(MediaStatusUpdated)
	h.nextEvent(t, EventMediaUpdate)

	// Item 13 (index 3) is not resident yet.
	media.queue.setItems([]int{10, 11, 12, 13}, 0, 1, 2)
	media.setStatus(MediaStatus{MediaSessionID: 1, CurrentItemID: 13, PlayerState: PlayerPlaying})
	media.events.fire(MediaStatusUpdated)
	h.noEvent(t, EventMediaUpdate, 50*time.Millisecond)

	// Further status chatter stays suppressed while the refresh is pending.
	media.events.fire(MediaStatusUpdated)
	h.noEvent(t, EventMediaUpdate, 20*time.Millisecond)

	media.queue.fill(3)
	p := decodeMedia(t, h.nextEvent(t, EventMediaUpdate))
	if p.CurrentItemID != 13 {
		t.Errorf("expected snapshot for item 13, got %+v", p)
	}
	if len(p.Items) != 2 {
		t.Errorf("expected window of 2 items at the end of the queue, got %d", len(p.Items))
	}

	// The new item id is now the baseline.
	media.events.fire(MediaStatusUpdated)
	if p := decodeMedia(t, h.nextEvent(t, EventMediaUpdate)); p.CurrentItemID != 13 {
		t.Errorf("unexpected snapshot %+v", p)
	}
}

func TestExternalReloadEmitsMediaLoad(t *testing.T) {
	h, _, media := playingSession(t)

	media.queue.events.fire(QueueMutation{Kind: MutationReload})
	p := decodeMedia(t, h.nextEvent(t, EventMediaLoad))
	if p.CurrentItemID != 11 {
		t.Errorf("unexpected loaded snapshot %+v", p)
	}
	if len(p.Items) != 3 {
		t.Errorf("expected window of 3 items, got %d", len(p.Items))
	}
	h.nextEvent(t, EventMediaUpdate)
}

func TestEmptyReloadIgnored(t *testing.T) {
	h, _, media := playingSession(t)
	media.queue.setItems(nil)

	media.queue.events.fire(QueueMutation{Kind: MutationReload})
	h.noEvent(t, EventMediaLoad, 50*time.Millisecond)
}

func TestQueueJumpReportsInterrupted(t *testing.T) {
	h, _, media := playingSession(t)

	media.events.fire(MediaStatusUpdated)
	h.nextEvent(t, EventMediaUpdate)

	if err := recv(t, h.caster.QueueJumpToItem(13)); err != nil {
		t.Fatalf("QueueJumpToItem failed: %v", err)
	}

	// Suppressed until the queue status changes.
	media.events.fire(MediaStatusUpdated)
	h.noEvent(t, EventMediaUpdate, 30*time.Millisecond)

	media.events.fire(QueueStatusUpdated)
	p := decodeMedia(t, h.nextEvent(t, EventMediaUpdate))
	if p.PlayerState != string(PlayerIdle) || p.IdleReason != string(IdleInterrupted) {
		t.Errorf("expected interrupted snapshot, got %+v", p)
	}
}

func TestSessionUpdates(t *testing.T) {
	h, conn, _ := playingSession(t)

	conn.events.fire(ConnVolumeChanged)
	ev := h.nextEvent(t, EventSessionUpdate)
	var payload map[string]any
	if err := json.Unmarshal(ev.Args[0], &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload["status"] != "" {
		t.Errorf("expected plain update, got %v", payload["status"])
	}

	conn.events.fire(ConnDisconnected)
	ev = h.nextEvent(t, EventSessionUpdate)
	if err := json.Unmarshal(ev.Args[0], &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload["status"] != "stopped" {
		t.Errorf("expected stopped update, got %v", payload["status"])
	}
}

func TestReceiverMessages(t *testing.T) {
	h, conn, _ := playingSession(t)

	if err := recv(t, h.caster.AddMessageListener("urn:x-cast:com.example")); err != nil {
		t.Fatalf("AddMessageListener failed: %v", err)
	}
	conn.deliver("urn:x-cast:com.example", `{"hello":true}`)

	ev := h.nextEvent(t, EventReceiverMessage)
	if len(ev.Args) != 2 {
		t.Fatalf("expected [namespace, message], got %s", ev.Args)
	}
	var ns, msg string
	json.Unmarshal(ev.Args[0], &ns)
	json.Unmarshal(ev.Args[1], &msg)
	if ns != "urn:x-cast:com.example" || msg != `{"hello":true}` {
		t.Errorf("unexpected message %q %q", ns, msg)
	}
}
