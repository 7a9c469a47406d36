// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
)

// LLMProvider identifies the LLM provider type.
type LLMProvider string

const (
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderAnthropic LLMProvider = "anthropic"
	LLMProviderOllama    LLMProvider = "ollama"
)

// LLMProviderConfig configures a single LLM provider.
type LLMProviderConfig struct {
	// Type is the provider type (openai, anthropic, ollama).
	Type LLMProvider `yaml:"type"`

	// Model name (e.g. "gpt-4o-mini", "claude-sonnet-4-20250514").
	Model string `yaml:"model,omitempty"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Timeout for a single request, in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// MaxRetries bounds same-provider retries before the chain advances
	// to the next provider.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BackoffBase is the exponential backoff base delay, in milliseconds.
	BackoffBase int `yaml:"backoff_base,omitempty"`
}

// SetDefaults applies default values.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Model == "" {
		switch c.Type {
		case LLMProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case LLMProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case LLMProviderOllama:
			c.Model = "llama3.2"
		}
	}
	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Type)
	}
	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = 500
	}
}

// Validate checks a provider configuration.
func (c *LLMProviderConfig) Validate() error {
	switch c.Type {
	case LLMProviderOpenAI, LLMProviderAnthropic, LLMProviderOllama:
	default:
		return fmt.Errorf("invalid provider type %q (valid: openai, anthropic, ollama)", c.Type)
	}

	// Ollama doesn't require an API key
	if c.Type != LLMProviderOllama && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", c.Type)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	return nil
}

// LLMConfig configures the provider fallback chain. Providers are tried in
// list order; the first entry is the primary.
type LLMConfig struct {
	Providers []LLMProviderConfig `yaml:"providers,omitempty"`
}

// SetDefaults applies default values. With no providers configured, a
// single provider is detected from the environment.
func (c *LLMConfig) SetDefaults() {
	if len(c.Providers) == 0 {
		c.Providers = []LLMProviderConfig{{Type: detectProviderFromEnv()}}
	}
	for i := range c.Providers {
		c.Providers[i].SetDefaults()
	}
}

// Validate checks the chain configuration.
func (c *LLMConfig) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	for i := range c.Providers {
		if err := c.Providers[i].Validate(); err != nil {
			return fmt.Errorf("provider %d: %w", i, err)
		}
	}
	return nil
}

// detectProviderFromEnv detects the provider based on available API keys.
func detectProviderFromEnv() LLMProvider {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return LLMProviderOpenAI
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return LLMProviderAnthropic
	}
	return LLMProviderOllama
}

// apiKeyFromEnv gets the API key for a provider from the environment.
func apiKeyFromEnv(provider LLMProvider) string {
	switch provider {
	case LLMProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case LLMProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}
