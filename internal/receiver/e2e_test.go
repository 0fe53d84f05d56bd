// ABOUTME: End-to-end test of the caster against the receiver emulator
// ABOUTME: Wires discovery, transport, serializer and engine over a real websocket
package receiver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-cast/internal/discovery"
	"github.com/Sendspin/sendspin-cast/internal/transport"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/Sendspin/sendspin-cast/pkg/cast/wire"
	"github.com/hashicorp/mdns"
)

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
		var zero T
		return zero
	}
}

func nextEvent(t *testing.T, c *cast.Caster, want cast.EventType) cast.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
			return cast.Event{}
		}
	}
}

func TestCastEndToEnd(t *testing.T) {
	rcv := New(Config{Name: "Emulator", TickInterval: -1})
	srv := httptest.NewServer(rcv.Handler())
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	query := func(params *mdns.QueryParam) error {
		params.Entries <- &mdns.ServiceEntry{
			Name:       "Emulator." + discovery.ServiceType + ".local.",
			AddrV4:     net.ParseIP(host),
			Port:       port,
			InfoFields: []string{"id=" + rcv.ID(), "fn=Emulator"},
		}
		return nil
	}

	tm := transport.NewManager(transport.Config{})
	dm := discovery.NewManager(discovery.Config{
		Query:        query,
		QueryTimeout: 10 * time.Millisecond,
		OnSelect: func(s discovery.Service, appID string) error {
			tm.Start(s.Addr(), appID)
			return nil
		},
	})
	defer dm.Stop()

	c, err := cast.New(cast.Config{
		Discovery:   dm,
		Transport:   tm,
		Serializer:  wire.Serializer{},
		JoinTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	joined := waitFor(t, c.SelectRoute(rcv.ID()))
	if joined.Err != nil {
		t.Fatalf("SelectRoute failed: %v", joined.Err)
	}
	if joined.Session.Receiver.FriendlyName != "Emulator" {
		t.Errorf("unexpected session %+v", joined.Session)
	}

	loaded := waitFor(t, c.QueueLoad(cast.QueueLoadRequest{
		Items: []cast.QueueItem{
			{Media: &cast.MediaInfo{ContentID: "http://media/1.mp3"}, Autoplay: true},
			{Media: &cast.MediaInfo{ContentID: "http://media/2.mp3"}, Autoplay: true},
			{Media: &cast.MediaInfo{ContentID: "http://media/3.mp3"}, Autoplay: true},
		},
		StartIndex: 1,
		RepeatMode: cast.RepeatOff,
	}))
	if loaded.Err != nil {
		t.Fatalf("QueueLoad failed: %v", loaded.Err)
	}

	var media wire.MediaPayload
	if err := json.Unmarshal(loaded.Payload, &media); err != nil {
		t.Fatalf("failed to decode media payload: %v", err)
	}
	if media.PlayerState != string(cast.PlayerPlaying) || media.SessionID != joined.Session.SessionID {
		t.Errorf("unexpected media payload %s", loaded.Payload)
	}
	if len(media.Items) != 3 {
		t.Errorf("expected a three item window, got %d", len(media.Items))
	}

	if err := waitFor(t, c.MediaPause()); err != nil {
		t.Fatalf("MediaPause failed: %v", err)
	}
	if _, st := rcv.Snapshot(); st.PlayerState != cast.PlayerPaused {
		t.Errorf("expected receiver paused, got %s", st.PlayerState)
	}

	if err := waitFor(t, c.SetReceiverVolumeLevel(0.3)); err != nil {
		t.Fatalf("SetReceiverVolumeLevel failed: %v", err)
	}
	nextEvent(t, c, cast.EventSessionUpdate)

	rcv.StopApp()
	for {
		ev := nextEvent(t, c, cast.EventSessionUpdate)
		var session wire.SessionPayload
		if err := json.Unmarshal(ev.Args[0], &session); err != nil {
			t.Fatalf("failed to decode session payload: %v", err)
		}
		if session.Status == "stopped" {
			break
		}
	}
	if err := waitFor(t, c.MediaPlay()); !errors.Is(err, cast.ErrSessionError) {
		t.Errorf("expected session error after stop, got %v", err)
	}
}
