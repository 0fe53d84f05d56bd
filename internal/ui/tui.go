// ABOUTME: TUI initialization and control
// ABOUTME: Runs the chooser dialogs and the remote as bubbletea programs
package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// CommandKind identifies a remote command
type CommandKind int

const (
	CommandPlay CommandKind = iota
	CommandPause
	CommandStop
	CommandSeek
	CommandNext
	CommandVolume
	CommandMute
	CommandQuit
)

// Command is a user request issued from the remote
type Command struct {
	Kind     CommandKind
	Volume   int
	Muted    bool
	Position float64
}

// Controls carries remote commands to the caller
type Controls struct {
	Commands chan Command
}

// NewControls creates a new command channel holder
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 10),
	}
}

// send queues a command, dropping it when the caller is not keeping up
func (c *Controls) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

// NewModel creates a new remote model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		controls: controls,
	}
}

// Run creates the remote program. The caller feeds it StatusMsg values
// through Send and starts it with Run.
func Run(controls *Controls, opts ...tea.ProgramOption) *tea.Program {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return tea.NewProgram(NewModel(controls), opts...)
}

// Chooser presents the session dialogs in the terminal
type Chooser struct {
	opts []tea.ProgramOption
}

var _ cast.Chooser = (*Chooser)(nil)

// NewChooser creates a terminal chooser. Options are passed to every
// bubbletea program it starts.
func NewChooser(opts ...tea.ProgramOption) *Chooser {
	return &Chooser{opts: opts}
}

func (c *Chooser) program(ctx context.Context, model tea.Model) *tea.Program {
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, c.opts...)
	return tea.NewProgram(model, opts...)
}

// run runs p and reports a cancelled context as a plain dismissal
func run(ctx context.Context, p *tea.Program) (tea.Model, error) {
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil, nil
		}
		return nil, err
	}
	return final, nil
}

// PickRoute shows the device chooser and returns the picked route id
func (c *Chooser) PickRoute(ctx context.Context, appID string, routes <-chan []cast.Route) (string, error) {
	p := c.program(ctx, newPickerModel(appID))

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case update, ok := <-routes:
				if !ok {
					return
				}
				p.Send(RoutesMsg(update))
			case <-done:
				return
			}
		}
	}()

	final, err := run(ctx, p)
	if err != nil || final == nil {
		return "", err
	}
	return final.(pickerModel).picked, nil
}

// ManageSession shows the session and reports whether the user asked to
// stop casting
func (c *Chooser) ManageSession(ctx context.Context, s cast.Session) (bool, error) {
	final, err := run(ctx, c.program(ctx, newManageModel(s)))
	if err != nil || final == nil {
		return false, err
	}
	return final.(manageModel).stop, nil
}
