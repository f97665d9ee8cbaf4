package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret       string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer       string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience     string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl" yaml:"refresh_token_ttl"`

	// SendBuffer is the per-connection outbound event buffer. A recipient
	// that falls this far behind is treated as dead.
	SendBuffer int `mapstructure:"send_buffer" yaml:"send_buffer"`
	// WSAuthTimeout bounds the wait for the first (credential) frame.
	WSAuthTimeout time.Duration `mapstructure:"ws_auth_timeout" yaml:"ws_auth_timeout"`
	// WSFramesPerMinute caps inbound frames per connection; 0 disables.
	WSFramesPerMinute int `mapstructure:"ws_frames_per_minute" yaml:"ws_frames_per_minute"`

	// ActiveWindow is how far back a location still counts as "active".
	ActiveWindow time.Duration `mapstructure:"active_window" yaml:"active_window"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "openspotter.db",
		JWTSecret:         "change-me-in-production-use-long-random-string",
		JWTIssuer:         "openspotter",
		JWTAudience:       "openspotter",
		AccessTokenTTL:    30 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		SendBuffer:        32,
		WSAuthTimeout:     10 * time.Second,
		WSFramesPerMinute: 600,
		ActiveWindow:      15 * time.Minute,
	}
}
