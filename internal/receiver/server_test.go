// ABOUTME: Tests for the receiver emulator
// ABOUTME: Drives sessions over a real websocket and checks playback simulation
package receiver

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/gorilla/websocket"
)

type sender struct {
	t  *testing.T
	ws *websocket.Conn
}

func newTestReceiver(t *testing.T, config Config) (*Server, string) {
	t.Helper()
	config.TickInterval = -1
	s := New(config)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, "ws://" + strings.TrimPrefix(srv.URL, "http://") + protocol.Path
}

func dialSender(t *testing.T, url string) *sender {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return &sender{t: t, ws: ws}
}

func (s *sender) send(msgType, id string, payload interface{}) {
	s.t.Helper()
	if err := s.ws.WriteJSON(protocol.Message{Type: msgType, ID: id, Payload: payload}); err != nil {
		s.t.Fatalf("send %s failed: %v", msgType, err)
	}
}

// expect reads until a message of msgType arrives
func (s *sender) expect(msgType string) protocol.Message {
	s.t.Helper()
	s.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg protocol.Message
		if err := s.ws.ReadJSON(&msg); err != nil {
			s.t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func (s *sender) start(appID string) protocol.SessionStarted {
	s.t.Helper()
	s.send(protocol.TypeSessionStart, "", protocol.SessionStart{AppID: appID, SenderID: "sender"})
	var started protocol.SessionStarted
	if err := s.expect(protocol.TypeSessionStarted).Decode(&started); err != nil {
		s.t.Fatal(err)
	}
	return started
}

func (s *sender) request(msgType string, payload interface{}) protocol.Reply {
	s.t.Helper()
	s.send(msgType, "req-"+msgType, payload)
	for {
		var r protocol.Reply
		if err := s.expect(protocol.TypeReply).Decode(&r); err != nil {
			s.t.Fatal(err)
		}
		if r.RequestID == "req-"+msgType {
			return r
		}
	}
}

func TestUnsupportedApp(t *testing.T) {
	_, url := newTestReceiver(t, Config{AppIDs: []string{cast.DefaultReceiverAppID}})
	s := dialSender(t, url)

	s.send(protocol.TypeSessionStart, "", protocol.SessionStart{AppID: "AAAAAAAA"})
	var failed protocol.SessionFailed
	if err := s.expect(protocol.TypeSessionFailed).Decode(&failed); err != nil {
		t.Fatal(err)
	}
	if failed.Code != StatusAppNotFound {
		t.Errorf("expected code %d, got %d", StatusAppNotFound, failed.Code)
	}
}

func TestSecondSenderJoinsSession(t *testing.T) {
	_, url := newTestReceiver(t, Config{Name: "Den"})

	first := dialSender(t, url).start(cast.DefaultReceiverAppID)
	second := dialSender(t, url).start(cast.DefaultReceiverAppID)

	if first.Session.SessionID == "" || first.Session.SessionID != second.Session.SessionID {
		t.Errorf("expected shared session, got %q and %q", first.Session.SessionID, second.Session.SessionID)
	}
	if first.Session.Receiver.FriendlyName != "Den" || first.Session.AppMetadata.Name != "Default Media Receiver" {
		t.Errorf("unexpected session %+v", first.Session)
	}
}

func TestStopAppNotifiesOtherSenders(t *testing.T) {
	rcv, url := newTestReceiver(t, Config{})

	a := dialSender(t, url)
	a.start(cast.DefaultReceiverAppID)
	b := dialSender(t, url)
	b.start(cast.DefaultReceiverAppID)

	a.send(protocol.TypeSessionStop, "", protocol.SessionStop{StopApp: true})
	b.expect(protocol.TypeSessionEnded)

	if session, _ := rcv.Snapshot(); session != nil {
		t.Errorf("expected no session, got %+v", session)
	}
}

func TestRequestsWithoutSessionFail(t *testing.T) {
	_, url := newTestReceiver(t, Config{})
	s := dialSender(t, url)

	if r := s.request(protocol.TypeMediaPlay, nil); r.Error == "" {
		t.Error("expected error without session")
	}
}

func TestMediaRequests(t *testing.T) {
	rcv, url := newTestReceiver(t, Config{})
	s := dialSender(t, url)
	s.start(cast.DefaultReceiverAppID)

	if r := s.request(protocol.TypeMediaPlay, nil); r.Error == "" {
		t.Error("expected error with nothing loaded")
	}

	load := cast.QueueLoadRequest{
		Items: []cast.QueueItem{
			{Media: &cast.MediaInfo{ContentID: "a"}, Autoplay: true},
			{Media: &cast.MediaInfo{ContentID: "b"}, Autoplay: true, StartTime: 4},
		},
		StartIndex: 1,
		RepeatMode: cast.RepeatAll,
	}
	if r := s.request(protocol.TypeQueueLoad, load); r.Error != "" {
		t.Fatalf("queue load failed: %s", r.Error)
	}

	_, st := rcv.Snapshot()
	if st == nil || st.PlayerState != cast.PlayerPlaying || st.Media.ContentID != "b" {
		t.Fatalf("unexpected status %+v", st)
	}

	tests := []struct {
		name    string
		msgType string
		payload interface{}
		check   func(*cast.MediaStatus) bool
	}{
		{"pause", protocol.TypeMediaPause, nil, func(st *cast.MediaStatus) bool { return st.PlayerState == cast.PlayerPaused }},
		{"seek and play", protocol.TypeMediaSeek, cast.SeekRequest{Position: 30, ResumeState: cast.ResumePlay}, func(st *cast.MediaStatus) bool {
			return st.CurrentTime == 30 && st.PlayerState == cast.PlayerPlaying
		}},
		{"stream mute", protocol.TypeMediaStreamVolume, protocol.StreamVolume{Muted: ptr(true)}, func(st *cast.MediaStatus) bool { return st.Volume.Muted }},
		{"tracks", protocol.TypeMediaTracks, protocol.ActiveTracks{TrackIDs: []int64{3}}, func(st *cast.MediaStatus) bool {
			return len(st.ActiveTrackIDs) == 1 && st.ActiveTrackIDs[0] == 3
		}},
		{"stop", protocol.TypeMediaStop, nil, func(st *cast.MediaStatus) bool {
			return st.PlayerState == cast.PlayerIdle && st.IdleReason == cast.IdleCancelled
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := s.request(tt.msgType, tt.payload); r.Error != "" {
				t.Fatalf("%s failed: %s", tt.msgType, r.Error)
			}
			if _, st := rcv.Snapshot(); !tt.check(st) {
				t.Errorf("unexpected status %+v", st)
			}
		})
	}

	if r := s.request(protocol.TypeQueueJump, protocol.QueueJump{ItemID: 99}); r.Error == "" {
		t.Error("expected error for unknown item")
	}
}

func TestQueueGetItems(t *testing.T) {
	_, url := newTestReceiver(t, Config{})
	s := dialSender(t, url)
	s.start(cast.DefaultReceiverAppID)

	load := cast.LoadRequest{Media: cast.MediaInfo{ContentID: "a"}, Autoplay: true}
	if r := s.request(protocol.TypeMediaLoad, load); r.Error != "" {
		t.Fatalf("load failed: %s", r.Error)
	}

	s.send(protocol.TypeQueueGetItems, "", protocol.QueueGetItems{ItemIDs: []int{1, 42}})
	var items protocol.QueueItems
	if err := s.expect(protocol.TypeQueueItems).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if len(items.Items) != 1 || items.Items[0].ItemID != 1 || items.Items[0].Media.ContentID != "a" {
		t.Errorf("unexpected items %+v", items.Items)
	}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name      string
		repeat    cast.RepeatMode
		wantState cast.PlayerState
		wantItem  int
	}{
		{"repeat off finishes", cast.RepeatOff, cast.PlayerIdle, 2},
		{"repeat all wraps", cast.RepeatAll, cast.PlayerLoading, 1},
		{"repeat single restarts", cast.RepeatSingle, cast.PlayerLoading, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m mediaState
			m.replace([]cast.QueueItem{
				{Media: &cast.MediaInfo{ContentID: "a", Duration: 10}},
				{Media: &cast.MediaInfo{ContentID: "b", Duration: 10}},
			}, 1, true, 9, tt.repeat)

			if !m.advance(2 * time.Second) {
				t.Fatal("expected a status change")
			}
			if m.status.PlayerState != tt.wantState || m.status.CurrentItemID != tt.wantItem {
				t.Errorf("expected %s on item %d, got %s on item %d",
					tt.wantState, tt.wantItem, m.status.PlayerState, m.status.CurrentItemID)
			}
			if tt.wantState == cast.PlayerIdle && m.status.IdleReason != cast.IdleFinished {
				t.Errorf("expected finished, got %q", m.status.IdleReason)
			}
			if tt.wantState == cast.PlayerLoading {
				m.advance(time.Second)
				if m.status.PlayerState != cast.PlayerPlaying {
					t.Errorf("expected loading to resolve to playing, got %s", m.status.PlayerState)
				}
			}
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
