// ABOUTME: Tests for the remote model and state management
// ABOUTME: Tests status updates, key handling and rendering helpers
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Controls are optional for testing

	if model.connected {
		t.Error("expected connected to be false initially")
	}

	if model.volume != 100 {
		t.Errorf("expected default volume 100, got %d", model.volume)
	}

	if model.muted {
		t.Error("expected muted to be false initially")
	}
}

func TestStatusMsgSession(t *testing.T) {
	model := NewModel(nil)

	connected := true
	model.applyStatus(StatusMsg{
		Connected: &connected,
		Session: &cast.Session{
			AppID: "CC1AD845",
			Receiver: cast.Receiver{
				FriendlyName: "Kitchen",
				Volume:       cast.Volume{Level: 0.42, Muted: true},
			},
			AppMetadata: &cast.AppMetadata{Name: "Default Media Receiver"},
		},
	})

	if !model.connected {
		t.Error("expected connected to be true after status update")
	}
	if model.receiverName != "Kitchen" {
		t.Errorf("expected receiverName 'Kitchen', got '%s'", model.receiverName)
	}
	if model.appName != "Default Media Receiver" {
		t.Errorf("expected app name from metadata, got '%s'", model.appName)
	}
	if model.volume != 42 || !model.muted {
		t.Errorf("expected volume 42 muted, got %d muted=%v", model.volume, model.muted)
	}
}

func TestStatusMsgDisconnectedClearsMedia(t *testing.T) {
	model := NewModel(nil)

	connected := true
	model.applyStatus(StatusMsg{
		Connected: &connected,
		Media: &cast.MediaStatus{
			PlayerState: cast.PlayerPlaying,
			Media:       &cast.MediaInfo{ContentID: "http://example.com/a.mp3"},
		},
	})

	disconnected := false
	model.applyStatus(StatusMsg{Connected: &disconnected})

	if model.connected {
		t.Error("expected connected to be false after disconnect")
	}
	if model.title != "" || model.state != "" {
		t.Errorf("expected media to be cleared, got %q %q", model.title, model.state)
	}
}

func TestStatusMsgMedia(t *testing.T) {
	tests := []struct {
		name       string
		status     cast.MediaStatus
		wantTitle  string
		wantArtist string
		wantIndex  int
		wantLength int
	}{
		{
			name: "metadata",
			status: cast.MediaStatus{
				PlayerState: cast.PlayerPlaying,
				Media: &cast.MediaInfo{
					ContentID: "http://example.com/a.mp3",
					Metadata:  map[string]any{"title": "Song", "artist": "Band"},
					Duration:  180,
				},
			},
			wantTitle:  "Song",
			wantArtist: "Band",
		},
		{
			name: "content id fallback",
			status: cast.MediaStatus{
				PlayerState: cast.PlayerPaused,
				Media:       &cast.MediaInfo{ContentID: "http://example.com/b.mp3"},
			},
			wantTitle: "http://example.com/b.mp3",
		},
		{
			name: "queue position",
			status: cast.MediaStatus{
				PlayerState:   cast.PlayerPlaying,
				CurrentItemID: 12,
				Media:         &cast.MediaInfo{ContentID: "c"},
				Items:         []cast.QueueItem{{ItemID: 11}, {ItemID: 12}, {ItemID: 13}},
			},
			wantTitle:  "c",
			wantIndex:  1,
			wantLength: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewModel(nil)
			model.applyStatus(StatusMsg{Media: &tt.status})

			if model.title != tt.wantTitle {
				t.Errorf("expected title %q, got %q", tt.wantTitle, model.title)
			}
			if model.artist != tt.wantArtist {
				t.Errorf("expected artist %q, got %q", tt.wantArtist, model.artist)
			}
			if model.itemIndex != tt.wantIndex || model.queueLength != tt.wantLength {
				t.Errorf("expected item %d of %d, got %d of %d",
					tt.wantIndex, tt.wantLength, model.itemIndex, model.queueLength)
			}
		})
	}
}

func TestStatusMsgError(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Error: "session_error"})
	if !strings.Contains(model.View(), "session_error") {
		t.Error("expected error to be rendered")
	}

	model.applyStatus(StatusMsg{})
	if model.lastError != "" {
		t.Error("expected error to clear on the next status")
	}
}

func TestKeysSendCommands(t *testing.T) {
	tests := []struct {
		name  string
		key   tea.KeyMsg
		state cast.PlayerState
		want  Command
	}{
		{"pause while playing", tea.KeyMsg{Type: tea.KeySpace}, cast.PlayerPlaying, Command{Kind: CommandPause}},
		{"play while paused", tea.KeyMsg{Type: tea.KeySpace}, cast.PlayerPaused, Command{Kind: CommandPlay}},
		{"volume down", tea.KeyMsg{Type: tea.KeyDown}, cast.PlayerPlaying, Command{Kind: CommandVolume, Volume: 95}},
		{"mute", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")}, cast.PlayerPlaying, Command{Kind: CommandMute, Muted: true}},
		{"seek forward", tea.KeyMsg{Type: tea.KeyRight}, cast.PlayerPlaying, Command{Kind: CommandSeek, Position: 40}},
		{"next", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, cast.PlayerPlaying, Command{Kind: CommandNext}},
		{"stop", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}, cast.PlayerPlaying, Command{Kind: CommandStop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controls := NewControls()
			model := NewModel(controls)
			model.state = tt.state
			model.position = 30

			model.Update(tt.key)

			select {
			case got := <-controls.Commands:
				if got != tt.want {
					t.Errorf("expected %+v, got %+v", tt.want, got)
				}
			default:
				t.Fatal("expected a command")
			}
		})
	}
}

func TestVolumeUpAtMaximum(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	model.Update(tea.KeyMsg{Type: tea.KeyUp})

	select {
	case cmd := <-controls.Commands:
		t.Errorf("expected no command at full volume, got %+v", cmd)
	default:
	}
}

func TestQuitKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if got := <-controls.Commands; got.Kind != CommandQuit {
		t.Errorf("expected CommandQuit, got %+v", got)
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
		{"abcde", 2, "abcde"},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value    int
		expected string
	}{
		{0, "░░░░░░░░░░"},
		{50, "█████░░░░░"},
		{100, "██████████"},
		{150, "██████████"},
	}

	for _, tt := range tests {
		if got := renderBar(tt.value, 100, 10); got != tt.expected {
			t.Errorf("renderBar(%d) = %q, expected %q", tt.value, got, tt.expected)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0:00"},
		{59.9, "0:59"},
		{61, "1:01"},
		{3600, "60:00"},
	}

	for _, tt := range tests {
		if got := formatTime(tt.seconds); got != tt.expected {
			t.Errorf("formatTime(%v) = %q, expected %q", tt.seconds, got, tt.expected)
		}
	}
}
