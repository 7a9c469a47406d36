package llms

import (
	"fmt"
	"time"

	"github.com/kadirpekel/sensei/pkg/config"
	"github.com/kadirpekel/sensei/pkg/registry"
)

// LLMRegistry holds named LLM providers. Registration order matters: the
// fallback chain tries providers in the order they were registered.
type LLMRegistry struct {
	*registry.BaseRegistry[Provider]
}

func NewLLMRegistry() *LLMRegistry {
	return &LLMRegistry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

func (r *LLMRegistry) RegisterLLM(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("LLM name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("LLM provider cannot be nil")
	}
	return r.Register(name, provider)
}

// CreateLLMFromConfig builds a provider from its config and registers it.
func (r *LLMRegistry) CreateLLMFromConfig(name string, cfg *config.LLMProviderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("LLM name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("LLM config cannot be nil")
	}

	var provider Provider
	var err error

	switch cfg.Type {
	case config.LLMProviderOpenAI:
		provider, err = NewOpenAIProviderFromConfig(cfg)
	case config.LLMProviderAnthropic:
		provider, err = NewAnthropicProviderFromConfig(cfg)
	case config.LLMProviderOllama:
		provider, err = NewOllamaProviderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM type: %s (supported: openai, anthropic, ollama)", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	if err := r.RegisterLLM(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register LLM: %w", err)
	}

	return provider, nil
}

// ChainFromConfig builds a fallback chain from the ordered provider list.
func ChainFromConfig(cfg *config.LLMConfig) (*FallbackChain, error) {
	reg := NewLLMRegistry()

	for i := range cfg.Providers {
		pc := &cfg.Providers[i]
		name := fmt.Sprintf("%s-%d", pc.Type, i)
		if _, err := reg.CreateLLMFromConfig(name, pc); err != nil {
			return nil, fmt.Errorf("provider %d (%s): %w", i, pc.Type, err)
		}
	}

	primary := cfg.Providers[0]
	return NewFallbackChain(reg.List(),
		WithChainRetries(primary.MaxRetries),
		WithChainBackoff(time.Duration(primary.BackoffBase)*time.Millisecond))
}
