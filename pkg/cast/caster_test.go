// ABOUTME: Tests for caster construction, event delivery and shutdown
// ABOUTME: Covers defaults, backpressure on the events channel and Close from callbacks
package cast

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{
		Discovery:  newFakeDiscovery(),
		Transport:  &fakeTransport{},
		Serializer: jsonSerializer{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"app id", c.config.AppID, DefaultReceiverAppID},
		{"join timeout", c.config.JoinTimeout, 15 * time.Second},
		{"join retries", c.config.JoinRetries, 10},
		{"init scan timeout", c.config.InitScanTimeout, 5 * time.Second},
		{"media load timeout", c.config.MediaLoadTimeout, 15 * time.Second},
		{"call timeout", c.config.CallTimeout, 10 * time.Second},
		{"event buffer", cap(c.events), 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Transport: &fakeTransport{}, Serializer: jsonSerializer{}}); errorCode(err) != CodeAPINotInitialized {
		t.Errorf("expected api_not_initialized without discovery, got %v", err)
	}
}

func TestFullEventChannelDropsOnlyMediaUpdates(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.EventBuffer = 1 })

	h.caster.loop.call(func() {
		h.caster.emit(EventSetup)
		h.caster.emit(EventMediaUpdate, json.RawMessage(`{"n":1}`))
		h.caster.emit(EventSessionUpdate, json.RawMessage(`{"status":"stopped"}`))
		h.caster.emit(EventMediaUpdate, json.RawMessage(`{"n":2}`))
		h.caster.emit(EventReceiverListener, rawBool(true))
	})

	want := []EventType{EventSetup, EventSessionUpdate, EventReceiverListener}
	for _, typ := range want {
		select {
		case ev := <-h.caster.Events():
			if ev.Type != typ {
				t.Fatalf("expected %s, got %s", typ, ev.Type)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
	h.noEvent(t, EventMediaUpdate, 50*time.Millisecond)
}

func TestCloseFromScanCallback(t *testing.T) {
	h := newHarness(t, nil, remoteRoute("a"))

	var once sync.Once
	h.caster.StartRouteScan(func(ScanResult) {
		once.Do(func() { h.caster.Close() })
	})

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-h.caster.Events():
			if !ok {
				if err := recv(t, h.caster.MediaPlay()); errorCode(err) != CodeAPINotInitialized {
					t.Errorf("expected api_not_initialized after close, got %v", err)
				}
				return
			}
		case <-timeout:
			t.Fatal("Close from a scan callback never finished")
		}
	}
}
