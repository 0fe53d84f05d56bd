// ABOUTME: Default configuration values
// ABOUTME: Applied to zero fields after loading
package config

import (
	"os"
	"path/filepath"

	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Cast: CastConfig{
			AppID:            cast.DefaultReceiverAppID,
			JoinTimeout:      15,
			JoinRetries:      10,
			InitScanTimeout:  5,
			MediaLoadTimeout: 15,
			CallTimeout:      10,
		},
		Discovery: DiscoveryConfig{
			QueryTimeout: 3,
			RouteTTL:     15,
		},
		Transport: TransportConfig{
			DialTimeout:  5,
			StartTimeout: 10,
		},
		Settings: SettingsConfig{
			Dir: defaultSettingsDir(),
		},
		Log: LogConfig{
			File: "sendspin-cast.log",
		},
	}
}

func defaultSettingsDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".sendspin-cast"
	}
	return filepath.Join(dir, "sendspin-cast")
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Cast
	if c.Cast.AppID == "" {
		c.Cast.AppID = d.Cast.AppID
	}
	if c.Cast.JoinTimeout == 0 {
		c.Cast.JoinTimeout = d.Cast.JoinTimeout
	}
	if c.Cast.JoinRetries == 0 {
		c.Cast.JoinRetries = d.Cast.JoinRetries
	}
	if c.Cast.InitScanTimeout == 0 {
		c.Cast.InitScanTimeout = d.Cast.InitScanTimeout
	}
	if c.Cast.MediaLoadTimeout == 0 {
		c.Cast.MediaLoadTimeout = d.Cast.MediaLoadTimeout
	}
	if c.Cast.CallTimeout == 0 {
		c.Cast.CallTimeout = d.Cast.CallTimeout
	}

	// Discovery
	if c.Discovery.QueryTimeout == 0 {
		c.Discovery.QueryTimeout = d.Discovery.QueryTimeout
	}
	if c.Discovery.RouteTTL == 0 {
		c.Discovery.RouteTTL = d.Discovery.RouteTTL
	}

	// Transport
	if c.Transport.DialTimeout == 0 {
		c.Transport.DialTimeout = d.Transport.DialTimeout
	}
	if c.Transport.StartTimeout == 0 {
		c.Transport.StartTimeout = d.Transport.StartTimeout
	}

	// Settings
	if c.Settings.Dir == "" {
		c.Settings.Dir = d.Settings.Dir
	}

	// Log
	if c.Log.File == "" {
		c.Log.File = d.Log.File
	}
}
