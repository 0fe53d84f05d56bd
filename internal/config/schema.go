// ABOUTME: Configuration structure for the sendspin-cast CLI
// ABOUTME: Mirrors the TOML file layout
package config

// Config is the root configuration structure.
type Config struct {
	Cast      CastConfig      `toml:"cast"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Transport TransportConfig `toml:"transport"`
	Settings  SettingsConfig  `toml:"settings"`
	Log       LogConfig       `toml:"log"`
}

// CastConfig holds engine settings. Durations are in seconds.
type CastConfig struct {
	AppID            string `toml:"app_id"`
	JoinTimeout      int    `toml:"join_timeout"`
	JoinRetries      int    `toml:"join_retries"`
	InitScanTimeout  int    `toml:"init_scan_timeout"`
	MediaLoadTimeout int    `toml:"media_load_timeout"`
	CallTimeout      int    `toml:"call_timeout"`
}

// DiscoveryConfig holds mDNS browsing settings. Durations are in seconds.
type DiscoveryConfig struct {
	QueryTimeout int `toml:"query_timeout"`
	RouteTTL     int `toml:"route_ttl"`
}

// TransportConfig holds session transport settings. Durations are in seconds.
type TransportConfig struct {
	SenderID     string `toml:"sender_id"`
	DialTimeout  int    `toml:"dial_timeout"`
	StartTimeout int    `toml:"start_timeout"`
}

// SettingsConfig locates the persisted settings database.
type SettingsConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	File    string `toml:"file"`
	Verbose bool   `toml:"verbose"`
}
