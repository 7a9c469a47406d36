package config

import "fmt"

// SupervisorConfig configures orchestration behavior.
type SupervisorConfig struct {
	// DefaultIntent handles unclassifiable queries (default: explain).
	DefaultIntent string `yaml:"default_intent,omitempty"`

	// GroundedIntents lists intents that require retrieval before
	// dispatch.
	GroundedIntents []string `yaml:"grounded_intents,omitempty"`

	// MaxRegenerations bounds the regeneration loop when a generated
	// response fails validation.
	MaxRegenerations int `yaml:"max_regenerations,omitempty"`

	// StoreTimeout bounds the fire-and-forget cache write, in seconds.
	StoreTimeout int `yaml:"store_timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *SupervisorConfig) SetDefaults() {
	if c.DefaultIntent == "" {
		c.DefaultIntent = "explain"
	}
	if c.GroundedIntents == nil {
		c.GroundedIntents = []string{"explain", "solve", "grade"}
	}
	if c.MaxRegenerations == 0 {
		c.MaxRegenerations = 2
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = 5
	}
}

// Validate checks the supervisor configuration.
func (c *SupervisorConfig) Validate() error {
	valid := map[string]bool{"explain": true, "solve": true, "grade": true, "analyze": true}
	if !valid[c.DefaultIntent] {
		return fmt.Errorf("invalid default_intent %q (valid: explain, solve, grade, analyze)", c.DefaultIntent)
	}
	for _, intent := range c.GroundedIntents {
		if !valid[intent] {
			return fmt.Errorf("invalid grounded intent %q", intent)
		}
	}
	if c.MaxRegenerations < 0 {
		return fmt.Errorf("max_regenerations cannot be negative")
	}
	return nil
}
