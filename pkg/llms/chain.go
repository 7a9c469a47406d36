package llms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultChainRetries = 1
	defaultChainBackoff = 500 * time.Millisecond
)

// FallbackChain completes requests against an ordered provider list. A
// provider is retried up to a bounded count with exponential backoff, then
// the chain advances to the next provider. Results from any provider other
// than the first are marked Degraded. Exhausting every provider yields
// ProviderError with kind ErrUnavailable and the full attempt list.
type FallbackChain struct {
	providers   []Provider
	maxRetries  int
	backoffBase time.Duration
}

// ChainOption configures a FallbackChain.
type ChainOption func(*FallbackChain)

// WithChainRetries sets the per-provider retry count.
func WithChainRetries(n int) ChainOption {
	return func(c *FallbackChain) {
		c.maxRetries = n
	}
}

// WithChainBackoff sets the exponential backoff base delay.
func WithChainBackoff(d time.Duration) ChainOption {
	return func(c *FallbackChain) {
		c.backoffBase = d
	}
}

// NewFallbackChain creates a chain over providers in priority order.
func NewFallbackChain(providers []Provider, opts ...ChainOption) (*FallbackChain, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	chain := &FallbackChain{
		providers:   providers,
		maxRetries:  defaultChainRetries,
		backoffBase: defaultChainBackoff,
	}
	for _, opt := range opts {
		opt(chain)
	}
	return chain, nil
}

// ProviderNames returns provider names in priority order.
func (c *FallbackChain) ProviderNames() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Complete implements Completer.
func (c *FallbackChain) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	attempted := make([]string, 0, len(c.providers))
	var lastErr error

	for i, provider := range c.providers {
		attempted = append(attempted, provider.Name())

		completion, err := c.completeWithRetry(ctx, provider, req)
		if err == nil {
			if i > 0 {
				completion.Degraded = true
				slog.Info("provider fallback succeeded",
					"primary", c.providers[0].Name(),
					"fallback", provider.Name())
			}
			return completion, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			// Caller cancelled; advancing to another provider cannot help.
			break
		}

		slog.Warn("provider failed, advancing in chain",
			"provider", provider.Name(),
			"error", err)
	}

	return nil, &ProviderError{
		Provider:  "chain",
		Kind:      ErrUnavailable,
		Attempted: attempted,
		Err:       lastErr,
	}
}

// completeWithRetry calls a single provider with bounded retries.
func (c *FallbackChain) completeWithRetry(ctx context.Context, provider Provider, req CompletionRequest) (*Completion, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, NewProviderError(provider.Name(), ErrTimeout, ctx.Err())
			case <-time.After(backoff):
			}
		}

		completion, err := provider.Complete(ctx, req)
		if err == nil {
			return completion, nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}
	}

	return nil, lastErr
}

// retryable reports whether retrying the same provider can help.
// Malformed responses are deterministic, so only transient kinds retry.
func retryable(err error) bool {
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		return true
	}
	switch provErr.Kind {
	case ErrTimeout, ErrRateLimited, ErrUnavailable:
		return true
	default:
		return false
	}
}

// Close closes every provider in the chain.
func (c *FallbackChain) Close() error {
	var firstErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ensure FallbackChain implements Completer.
var _ Completer = (*FallbackChain)(nil)
