package config

import "fmt"

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	// Host to bind (default: 0.0.0.0).
	Host string `yaml:"host,omitempty"`

	// Port to listen on (default: 8080).
	Port int `yaml:"port,omitempty"`

	// RequestTimeout bounds a single tutoring request, in seconds.
	RequestTimeout int `yaml:"request_timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 120
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}
