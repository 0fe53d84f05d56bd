// ABOUTME: Bubbletea model for the cast remote
// ABOUTME: Shows the session and media state and turns keys into commands
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// Model represents the remote TUI state
type Model struct {
	// Session
	connected    bool
	receiverName string
	appName      string

	// Media
	title       string
	artist      string
	state       cast.PlayerState
	position    float64
	duration    float64
	queueLength int
	itemIndex   int

	// Receiver volume
	volume int
	muted  bool

	lastError string

	controls *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.renderMedia()))
	b.WriteString("\n")
	b.WriteString(renderVolume(m.volume, m.muted))
	b.WriteString("\n")

	if m.lastError != "" {
		b.WriteString(warnStyle.Render(m.lastError))
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders the session status
func (m Model) renderHeader() string {
	if !m.connected {
		return titleStyle.Render("Sendspin Cast") + " " + dimStyle.Render("not connected")
	}
	s := titleStyle.Render("Casting to "+m.receiverName) + " "
	if m.appName != "" {
		s += dimStyle.Render("(" + m.appName + ")")
	}
	return s
}

// renderMedia renders the current item and playback state
func (m Model) renderMedia() string {
	if m.state == "" || m.title == "" && m.state == cast.PlayerIdle {
		return dimStyle.Render("Nothing loaded")
	}

	width := 40
	if m.width > 10 {
		width = m.width - 10
	}

	lines := []string{
		truncate(m.title, width),
	}
	if m.artist != "" {
		lines = append(lines, dimStyle.Render(truncate(m.artist, width)))
	}

	state := string(m.state)
	if m.state == cast.PlayerPlaying {
		state = activeStyle.Render(state)
	}
	progress := fmt.Sprintf("%s %s", state, formatTime(m.position))
	if m.duration > 0 {
		progress += " / " + formatTime(m.duration)
	}
	lines = append(lines, progress)

	if m.queueLength > 1 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("Item %d of %d", m.itemIndex+1, m.queueLength)))
	}

	return strings.Join(lines, "\n")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return dimStyle.Render("space:Play/Pause  ←/→:Seek  ↑/↓:Volume  m:Mute  n:Next  s:Stop  q:Quit")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.send(Command{Kind: CommandQuit})
		return m, tea.Quit
	case "up":
		if m.volume < 100 {
			m.volume += 5
			if m.volume > 100 {
				m.volume = 100
			}
			m.controls.send(Command{Kind: CommandVolume, Volume: m.volume})
		}
	case "down":
		if m.volume > 0 {
			m.volume -= 5
			if m.volume < 0 {
				m.volume = 0
			}
			m.controls.send(Command{Kind: CommandVolume, Volume: m.volume})
		}
	case "m":
		m.muted = !m.muted
		m.controls.send(Command{Kind: CommandMute, Muted: m.muted})
	case " ":
		if m.state == cast.PlayerPlaying {
			m.controls.send(Command{Kind: CommandPause})
		} else {
			m.controls.send(Command{Kind: CommandPlay})
		}
	case "left":
		m.controls.send(Command{Kind: CommandSeek, Position: max(m.position-10, 0)})
	case "right":
		m.controls.send(Command{Kind: CommandSeek, Position: m.position + 10})
	case "n":
		m.controls.send(Command{Kind: CommandNext})
	case "s":
		m.controls.send(Command{Kind: CommandStop})
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
		if !m.connected {
			m.state = ""
			m.title = ""
			m.artist = ""
		}
	}
	if msg.Session != nil {
		m.receiverName = msg.Session.Receiver.FriendlyName
		m.appName = msg.Session.AppID
		if msg.Session.AppMetadata != nil && msg.Session.AppMetadata.Name != "" {
			m.appName = msg.Session.AppMetadata.Name
		}
		m.volume = int(msg.Session.Receiver.Volume.Level*100 + 0.5)
		m.muted = msg.Session.Receiver.Volume.Muted
	}
	if msg.Media != nil {
		m.applyMedia(msg.Media)
	}
	m.lastError = msg.Error
}

func (m *Model) applyMedia(status *cast.MediaStatus) {
	m.state = status.PlayerState
	m.position = status.CurrentTime
	m.title = ""
	m.artist = ""
	m.duration = 0
	if status.Media != nil {
		m.title = metadataString(status.Media.Metadata, "title")
		if m.title == "" {
			m.title = status.Media.ContentID
		}
		m.artist = metadataString(status.Media.Metadata, "artist")
		m.duration = status.Media.Duration
	}

	m.queueLength = len(status.Items)
	m.itemIndex = 0
	for i, item := range status.Items {
		if item.ItemID == status.CurrentItemID {
			m.itemIndex = i
			break
		}
	}
}

// StatusMsg updates TUI state. Nil fields leave the state unchanged.
type StatusMsg struct {
	Connected *bool
	Session   *cast.Session
	Media     *cast.MediaStatus
	Error     string
}

// Utility functions
func renderVolume(volume int, muted bool) string {
	icon := ""
	if muted {
		icon = " " + warnStyle.Render("muted")
	}
	return fmt.Sprintf("Volume [%s] %d%%%s", renderBar(volume, 100, 10), volume, icon)
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if length < 4 || len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatTime(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func metadataString(metadata map[string]any, key string) string {
	if s, ok := metadata[key].(string); ok {
		return s
	}
	return ""
}
