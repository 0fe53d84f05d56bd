// ABOUTME: init subcommand selecting the receiver application
// ABOUTME: Persists the application id and reports receiver availability
package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sendspin/sendspin-cast/internal/config"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

var initCmd = &cobra.Command{
	Use:   "init <app-id>",
	Short: "Set the receiver application and check that a receiver can run it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cfg, false)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := <-rt.caster.Initialize(args[0]); err != nil {
		return err
	}

	available, err := receiverAvailability(rt.caster.Events(), time.After(config.Seconds(cfg.Cast.InitScanTimeout)+time.Second))
	if err != nil {
		return err
	}

	if available {
		fmt.Printf("Application %s saved, receivers available\n", args[0])
	} else {
		fmt.Printf("Application %s saved, no receiver available\n", args[0])
	}
	return nil
}

// receiverAvailability waits for the RECEIVER_LISTENER event
func receiverAvailability(events <-chan cast.Event, done <-chan time.Time) (bool, error) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return false, fmt.Errorf("caster closed")
			}
			if ev.Type != cast.EventReceiverListener || len(ev.Args) == 0 {
				continue
			}
			var available bool
			if err := json.Unmarshal(ev.Args[0], &available); err != nil {
				return false, fmt.Errorf("decode availability: %w", err)
			}
			return available, nil
		case <-done:
			return false, nil
		}
	}
}
