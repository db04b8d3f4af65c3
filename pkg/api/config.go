package api

import "time"

// Config configures the hub HTTP server.
type Config struct {
	// Port is the HTTP port for all hub endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// PublicBaseURL is the externally reachable base URL of the hub,
	// used when building absolute hrefs in responses (LFS actions,
	// commit URLs). Default: http://localhost:<port>
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`

	// ReadTimeout is the maximum duration for reading the entire
	// request. Commit payloads stream, so this is generous.
	// Default: 15m
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Default: 1m
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit. Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost:8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}
