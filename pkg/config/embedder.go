package config

import "fmt"

// EmbedderConfig configures the embedding provider used by retrieval and
// the semantic cache.
type EmbedderConfig struct {
	// Type is the embedder type: "openai" or "ollama".
	Type string `yaml:"type,omitempty"`

	// Model name (e.g. "text-embedding-3-small", "nomic-embed-text").
	Model string `yaml:"model,omitempty"`

	// APIKey for authenticated access. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// Dimension of the produced vectors (auto-detected per model if 0).
	Dimension int `yaml:"dimension,omitempty"`

	// Timeout for a single embedding request, in seconds.
	Timeout int `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		switch c.Type {
		case "openai":
			c.Model = "text-embedding-3-small"
		case "ollama":
			c.Model = "nomic-embed-text"
		}
	}
	if c.APIKey == "" && c.Type == "openai" {
		c.APIKey = apiKeyFromEnv(LLMProviderOpenAI)
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case "openai", "ollama":
	default:
		return fmt.Errorf("invalid embedder type %q (valid: openai, ollama)", c.Type)
	}
	if c.Type == "openai" && c.APIKey == "" {
		return fmt.Errorf("api_key is required for openai embedder")
	}
	return nil
}
