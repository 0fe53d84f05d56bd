// ABOUTME: Manage-session dialog shown when a session already exists
// ABOUTME: Lets the user stop casting or keep the session
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

var manageOptions = []string{"Stop casting", "Keep casting"}

// manageModel is the manage-session dialog state
type manageModel struct {
	session cast.Session
	cursor  int
	stop    bool
}

func newManageModel(s cast.Session) manageModel {
	return manageModel{session: s}
}

// Init initializes the model
func (m manageModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m manageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		return m, tea.Quit
	case "s":
		m.stop = true
		return m, tea.Quit
	case "enter", " ":
		m.stop = m.cursor == 0
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(manageOptions)-1 {
			m.cursor++
		}
	}

	return m, nil
}

// View renders the dialog
func (m manageModel) View() string {
	var b strings.Builder

	name := m.session.Receiver.FriendlyName
	if name == "" {
		name = "receiver"
	}
	app := m.session.AppID
	if m.session.AppMetadata != nil && m.session.AppMetadata.Name != "" {
		app = m.session.AppMetadata.Name
	}

	info := fmt.Sprintf("%s\n%s", titleStyle.Render(name), dimStyle.Render("Running "+app))
	if m.session.StatusText != "" {
		info += "\n" + m.session.StatusText
	}
	vol := m.session.Receiver.Volume
	info += "\n" + renderVolume(int(vol.Level*100+0.5), vol.Muted)

	b.WriteString(panelStyle.Render(info))
	b.WriteString("\n\n")

	for i, opt := range manageOptions {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("▸ " + opt))
		} else {
			b.WriteString(itemStyle.Render("  " + opt))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ navigate • enter confirm • s stop • esc close"))
	b.WriteString("\n")

	return b.String()
}
