// ABOUTME: Entry point for the cast receiver emulator
// ABOUTME: Parses CLI flags, advertises over mDNS and serves sessions
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sendspin/sendspin-cast/internal/receiver"
	"github.com/Sendspin/sendspin-cast/internal/version"
)

var (
	port        = flag.Int("port", 8009, "WebSocket server port")
	name        = flag.String("name", "", "Receiver friendly name (default: hostname-cast-receiver)")
	logFile     = flag.String("log-file", "cast-receiver.log", "Log file path")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	apps        = flag.String("apps", "", "Comma-separated application ids to run (default: any)")
	group       = flag.Bool("group", false, "Advertise as a cast group")
	description = flag.String("description", "", "Advertised model description")
	tick        = flag.Duration("tick", 0, "Playback progress interval (default 1s, negative disables)")
)

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	multiWriter := io.MultiWriter(os.Stdout, f)
	log.SetOutput(multiWriter)

	// Determine receiver name
	receiverName := *name
	if receiverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		receiverName = fmt.Sprintf("%s-cast-receiver", hostname)
	}

	log.Printf("Starting %s receiver: %s on port %d", version.String(), receiverName, *port)
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	config := receiver.Config{
		Port:         *port,
		Name:         receiverName,
		EnableMDNS:   !*noMDNS,
		AppIDs:       splitList(*apps),
		Group:        *group,
		Description:  *description,
		TickInterval: *tick,
	}

	srv := receiver.New(config)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Receiver error: %v", err)
	}

	log.Printf("Receiver stopped")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
