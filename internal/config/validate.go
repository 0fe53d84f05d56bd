// ABOUTME: Configuration validation
// ABOUTME: Collects every invalid field into one error
package config

import (
	"errors"
	"fmt"

	"github.com/Sendspin/sendspin-cast/internal/discovery"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Cast.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cast: %w", err))
	}
	if err := c.Discovery.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("discovery: %w", err))
	}
	if err := c.Transport.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("transport: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks engine settings.
func (c *CastConfig) Validate() error {
	var errs []error
	if !discovery.ValidAppID(c.AppID) {
		errs = append(errs, fmt.Errorf("app_id %q is not a receiver application id", c.AppID))
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"join_timeout", c.JoinTimeout},
		{"join_retries", c.JoinRetries},
		{"init_scan_timeout", c.InitScanTimeout},
		{"media_load_timeout", c.MediaLoadTimeout},
		{"call_timeout", c.CallTimeout},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", f.name))
		}
	}
	return errors.Join(errs...)
}

// Validate checks mDNS settings.
func (c *DiscoveryConfig) Validate() error {
	if c.QueryTimeout < 0 || c.RouteTTL < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.RouteTTL > 0 && c.QueryTimeout > c.RouteTTL {
		return fmt.Errorf("route_ttl (%ds) must cover at least one query (%ds)", c.RouteTTL, c.QueryTimeout)
	}
	return nil
}

// Validate checks transport settings.
func (c *TransportConfig) Validate() error {
	if c.DialTimeout < 0 || c.StartTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}
