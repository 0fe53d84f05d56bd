// ABOUTME: stop subcommand ending a receiver application
// ABOUTME: Joins the receiver and stops whatever it is casting
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop [route-id]",
	Short: "Stop casting on a receiver",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cfg, true)
	if err != nil {
		return err
	}
	defer rt.close()

	route := routeArg(rt, args)
	if route == "" && len(args) > 0 {
		return fmt.Errorf("no previous receiver to stop")
	}

	session, err := rt.join(route)
	if err != nil {
		return fmt.Errorf("join failed: %w", err)
	}
	if err := <-rt.caster.SessionStop(); err != nil {
		return err
	}

	fmt.Printf("Stopped %s on %s\n", session.AppID, session.Receiver.FriendlyName)
	return nil
}
