// ABOUTME: scan subcommand listing receivers found on the network
// ABOUTME: Runs a route scan for a fixed duration and prints the last result
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

var scanDuration time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List receivers able to run the configured application",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 5*time.Second, "how long to browse")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cfg, false)
	if err != nil {
		return err
	}
	defer rt.close()

	updates := make(chan cast.ScanResult, 8)
	rt.caster.StartRouteScan(func(res cast.ScanResult) {
		select {
		case updates <- res:
		default:
		}
	})

	routes, err := collectRoutes(updates, time.After(scanDuration))
	<-rt.caster.StopRouteScan()
	if err != nil {
		return err
	}

	if JSONOutput() {
		if routes == nil {
			routes = []cast.Route{}
		}
		return json.NewEncoder(os.Stdout).Encode(routes)
	}
	printRoutes(routes)
	return nil
}

// collectRoutes keeps the latest route list until done fires
func collectRoutes(updates <-chan cast.ScanResult, done <-chan time.Time) ([]cast.Route, error) {
	var routes []cast.Route
	for {
		select {
		case res := <-updates:
			if res.Err != nil {
				return routes, res.Err
			}
			routes = res.Routes
		case <-done:
			return routes, nil
		}
	}
}

func printRoutes(routes []cast.Route) {
	if len(routes) == 0 {
		fmt.Println("No receivers found")
		return
	}
	for _, r := range routes {
		kind := "device"
		if r.IsGroup {
			kind = "group"
		}
		fmt.Printf("  %-20s %s (%s)\n", r.ID, r.DisplayName, kind)
	}
}
