// ABOUTME: remote subcommand and the session view shared by play
// ABOUTME: Feeds engine events into the terminal remote and runs its commands
package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Sendspin/sendspin-cast/internal/ui"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
	"github.com/Sendspin/sendspin-cast/pkg/cast/wire"
)

var (
	remoteNoTUI bool
	remoteStop  bool
)

var remoteCmd = &cobra.Command{
	Use:   "remote [route-id]",
	Short: "Join a receiver and control its playback",
	Long: `Joins the receiver with the given route id, or lets you pick one, and shows
a remote for the running session. Use "last" to rejoin the previous receiver.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemoteCmd,
}

func init() {
	addSessionFlags(remoteCmd)
	rootCmd.AddCommand(remoteCmd)
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&remoteNoTUI, "no-tui", false, "print events instead of showing the remote")
	cmd.Flags().BoolVar(&remoteStop, "stop-on-exit", false, "stop the receiver application when exiting")
}

func runRemoteCmd(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cfg, true)
	if err != nil {
		return err
	}
	defer rt.close()

	session, err := rt.join(routeArg(rt, args))
	if err != nil {
		return fmt.Errorf("join failed: %w", err)
	}
	return runSession(rt, session)
}

// routeArg resolves the optional route argument
func routeArg(rt *castRuntime, args []string) string {
	if len(args) == 0 {
		return ""
	}
	if args[0] == "last" {
		return rt.lastRoute()
	}
	return args[0]
}

// runSession shows the joined session until the user quits or the
// session ends, then leaves or stops it.
func runSession(rt *castRuntime, session *cast.Session) error {
	defer func() {
		if remoteStop {
			<-rt.caster.SessionStop()
		} else {
			<-rt.caster.SessionLeave()
		}
	}()

	if remoteNoTUI {
		return streamEvents(rt.caster.Events())
	}

	controls := ui.NewControls()
	prog := ui.Run(controls)
	state := &remoteState{}

	connected := true
	go prog.Send(ui.StatusMsg{Connected: &connected, Session: session})

	go pumpEvents(rt.caster.Events(), state, prog.Send)
	go handleCommands(rt.caster, controls, state, prog.Send)

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("remote failed: %w", err)
	}
	return nil
}

// remoteState holds the last media snapshot seen by the remote
type remoteState struct {
	mu    sync.Mutex
	media *cast.MediaStatus
}

func (s *remoteState) set(st *cast.MediaStatus) {
	s.mu.Lock()
	s.media = st
	s.mu.Unlock()
}

// nextItemID returns the id of the queue item after the current one
func (s *remoteState) nextItemID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media == nil {
		return 0, false
	}
	for i, item := range s.media.Items {
		if item.ItemID == s.media.CurrentItemID && i+1 < len(s.media.Items) {
			return s.media.Items[i+1].ItemID, true
		}
	}
	return 0, false
}

// statusFromEvent converts an engine event into a remote update
func statusFromEvent(ev cast.Event) (ui.StatusMsg, bool, error) {
	if len(ev.Args) == 0 {
		return ui.StatusMsg{}, false, nil
	}

	switch ev.Type {
	case cast.EventSessionListener, cast.EventSessionUpdate:
		session, status, err := wire.DecodeSession(ev.Args[0])
		if err != nil {
			return ui.StatusMsg{}, false, err
		}
		connected := status == ""
		return ui.StatusMsg{Connected: &connected, Session: &session}, true, nil

	case cast.EventMediaLoad, cast.EventMediaUpdate:
		st, err := wire.DecodeMedia(ev.Args[0])
		if err != nil || st == nil {
			return ui.StatusMsg{}, false, err
		}
		return ui.StatusMsg{Media: st}, true, nil
	}

	return ui.StatusMsg{}, false, nil
}

func pumpEvents(events <-chan cast.Event, state *remoteState, send func(tea.Msg)) {
	for ev := range events {
		msg, ok, err := statusFromEvent(ev)
		if err != nil {
			log.Printf("Failed to decode %s: %v", ev.Type, err)
			continue
		}
		if !ok {
			continue
		}
		if msg.Media != nil {
			state.set(msg.Media)
		}
		send(msg)
	}
}

func handleCommands(c *cast.Caster, controls *ui.Controls, state *remoteState, send func(tea.Msg)) {
	for cmd := range controls.Commands {
		var err error
		switch cmd.Kind {
		case ui.CommandQuit:
			return
		case ui.CommandPlay:
			err = <-c.MediaPlay()
		case ui.CommandPause:
			err = <-c.MediaPause()
		case ui.CommandStop:
			err = <-c.MediaStop()
		case ui.CommandSeek:
			err = <-c.MediaSeek(cast.SeekRequest{Position: cmd.Position})
		case ui.CommandVolume:
			err = <-c.SetReceiverVolumeLevel(float64(cmd.Volume) / 100)
		case ui.CommandMute:
			err = <-c.SetReceiverMuted(cmd.Muted)
		case ui.CommandNext:
			if id, ok := state.nextItemID(); ok {
				err = <-c.QueueJumpToItem(id)
			}
		}
		if err != nil {
			log.Printf("Remote command failed: %v", err)
			send(ui.StatusMsg{Error: err.Error()})
		}
	}
}

// streamEvents prints events as JSON lines until a signal arrives or the
// receiver application stops.
func streamEvents(events <-chan cast.Event) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
			if msg, ok, _ := statusFromEvent(ev); ok && msg.Connected != nil && !*msg.Connected {
				log.Printf("Session ended")
				return nil
			}
		case <-sigChan:
			log.Printf("Shutdown signal received")
			return nil
		}
	}
}
