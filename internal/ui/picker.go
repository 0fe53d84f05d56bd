// ABOUTME: Device chooser shown when a sender asks for a session
// ABOUTME: The route list is refreshed live while the dialog is open
package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// RoutesMsg replaces the route list shown by the chooser
type RoutesMsg []cast.Route

// pickerModel is the device chooser state
type pickerModel struct {
	appID  string
	routes []cast.Route
	cursor int
	picked string
	width  int
}

func newPickerModel(appID string) pickerModel {
	return pickerModel{appID: appID, width: 80}
}

// Init initializes the model
func (m pickerModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		case "enter", " ":
			if m.cursor < len(m.routes) {
				m.picked = m.routes[m.cursor].ID
				return m, tea.Quit
			}
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.routes)-1 {
				m.cursor++
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case RoutesMsg:
		m.setRoutes(msg)
	}

	return m, nil
}

// setRoutes swaps in a new route list, keeping the cursor on the same
// route when it is still present.
func (m *pickerModel) setRoutes(routes []cast.Route) {
	current := ""
	if m.cursor < len(m.routes) {
		current = m.routes[m.cursor].ID
	}

	m.routes = routes
	m.cursor = 0
	for i, r := range routes {
		if r.ID == current {
			m.cursor = i
			break
		}
	}
}

// View renders the chooser
func (m pickerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Cast to a device"))
	b.WriteString(" ")
	b.WriteString(dimStyle.Render("(" + m.appID + ")"))
	b.WriteString("\n\n")

	if len(m.routes) == 0 {
		b.WriteString(dimStyle.Render("Looking for devices..."))
		b.WriteString("\n")
	}

	for i, r := range m.routes {
		line := truncate(r.DisplayName, m.width-12)
		if r.IsGroup {
			line += dimStyle.Render(" (group)")
		}
		if r.IsNearby {
			line += dimStyle.Render(" (nearby)")
		}

		if i == m.cursor {
			b.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			b.WriteString(itemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ navigate • enter cast • esc cancel"))
	b.WriteString("\n")

	return b.String()
}
