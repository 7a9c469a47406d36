package config

import "fmt"

// RetrievalConfig configures grounding passage retrieval.
type RetrievalConfig struct {
	// Collection is the vector store collection holding passages.
	Collection string `yaml:"collection,omitempty"`

	// TopK bounds the number of returned passages.
	TopK int `yaml:"top_k,omitempty"`

	// ScoreFloor drops passages below this relevance score instead of
	// padding the result.
	ScoreFloor float32 `yaml:"score_floor,omitempty"`

	// Timeout bounds a retrieval call, in seconds. A timeout degrades to
	// an empty context.
	Timeout int `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *RetrievalConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "passages"
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.ScoreFloor == 0 {
		c.ScoreFloor = 0.3
	}
	if c.Timeout == 0 {
		c.Timeout = 10
	}
}

// Validate checks the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.ScoreFloor < 0 || c.ScoreFloor > 1 {
		return fmt.Errorf("score_floor must be between 0 and 1")
	}
	return nil
}
