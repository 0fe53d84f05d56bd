// ABOUTME: Root cobra command and shared flag handling
// ABOUTME: Loads the configuration and routes log output before every subcommand
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sendspin/sendspin-cast/internal/config"
	"github.com/Sendspin/sendspin-cast/internal/version"
)

var (
	cfgFile string
	jsonOut bool
	verbose bool
	logFile string

	cfg     *config.Config
	logSink *os.File
)

var rootCmd = &cobra.Command{
	Use:     "sendspin-cast",
	Short:   "Cast media to receivers on the local network",
	Long:    `sendspin-cast discovers cast receivers over mDNS, joins sessions and controls their playback queue.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return initLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			_ = logSink.Close()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.sendspin-cast.toml)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also stream logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (default from config)")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// initLogging sends log output to the log file, and to stderr as well in
// verbose mode. Interactive views own stdout.
func initLogging() error {
	path := logFile
	if path == "" {
		path = cfg.Log.File
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	logSink = f

	if Verbose() {
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	} else {
		log.SetOutput(f)
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose || (cfg != nil && cfg.Log.Verbose)
}
