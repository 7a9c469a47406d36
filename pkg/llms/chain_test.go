package llms

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubProvider scripts a sequence of results for successive Complete calls.
type stubProvider struct {
	name    string
	results []stubResult
	calls   int
}

type stubResult struct {
	completion *Completion
	err        error
}

func (s *stubProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	r := s.results[idx]
	if r.err != nil {
		return nil, r.err
	}
	cp := *r.completion
	return &cp, nil
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) ModelName() string { return s.name + "-model" }
func (s *stubProvider) Close() error      { return nil }

func okProvider(name, text string) *stubProvider {
	return &stubProvider{
		name:    name,
		results: []stubResult{{completion: &Completion{Text: text, Provider: name}}},
	}
}

func failingProvider(name string, kind ErrorKind) *stubProvider {
	return &stubProvider{
		name:    name,
		results: []stubResult{{err: NewProviderError(name, kind, errors.New("boom"))}},
	}
}

func TestNewFallbackChainRequiresProviders(t *testing.T) {
	if _, err := NewFallbackChain(nil); err == nil {
		t.Error("Expected error with no providers")
	}
}

func TestChainPrimarySuccess(t *testing.T) {
	primary := okProvider("openai", "primary answer")
	secondary := okProvider("ollama", "secondary answer")

	chain, err := NewFallbackChain([]Provider{primary, secondary})
	if err != nil {
		t.Fatal(err)
	}

	completion, err := chain.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Text != "primary answer" {
		t.Errorf("Expected primary answer, got %q", completion.Text)
	}
	if completion.Degraded {
		t.Error("Primary success must not be marked degraded")
	}
	if secondary.calls != 0 {
		t.Errorf("Secondary should not have been called, got %d calls", secondary.calls)
	}
}

func TestChainFallbackMarksDegraded(t *testing.T) {
	primary := failingProvider("openai", ErrUnavailable)
	secondary := okProvider("ollama", "fallback answer")

	chain, err := NewFallbackChain([]Provider{primary, secondary},
		WithChainRetries(0), WithChainBackoff(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	completion, err := chain.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Text != "fallback answer" {
		t.Errorf("Expected fallback answer, got %q", completion.Text)
	}
	if !completion.Degraded {
		t.Error("Fallback success must be marked degraded")
	}
}

func TestChainRetriesTransientErrors(t *testing.T) {
	primary := &stubProvider{
		name: "openai",
		results: []stubResult{
			{err: NewProviderError("openai", ErrRateLimited, errors.New("429"))},
			{completion: &Completion{Text: "second try", Provider: "openai"}},
		},
	}

	chain, err := NewFallbackChain([]Provider{primary},
		WithChainRetries(2), WithChainBackoff(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	completion, err := chain.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Text != "second try" {
		t.Errorf("Expected retry result, got %q", completion.Text)
	}
	if completion.Degraded {
		t.Error("A same-provider retry is not a fallback")
	}
	if primary.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", primary.calls)
	}
}

func TestChainDoesNotRetryInvalidResponse(t *testing.T) {
	primary := failingProvider("openai", ErrInvalidResponse)
	secondary := okProvider("ollama", "fallback answer")

	chain, err := NewFallbackChain([]Provider{primary, secondary},
		WithChainRetries(3), WithChainBackoff(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := chain.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	// Malformed responses are deterministic; the chain advances immediately.
	if primary.calls != 1 {
		t.Errorf("Expected 1 primary call, got %d", primary.calls)
	}
	if secondary.calls != 1 {
		t.Errorf("Expected 1 secondary call, got %d", secondary.calls)
	}
}

func TestChainExhaustionError(t *testing.T) {
	primary := failingProvider("openai", ErrUnavailable)
	secondary := failingProvider("ollama", ErrTimeout)

	chain, err := NewFallbackChain([]Provider{primary, secondary},
		WithChainRetries(0), WithChainBackoff(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	_, err = chain.Complete(context.Background(), CompletionRequest{})
	if err == nil {
		t.Fatal("Expected error when every provider fails")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected *ProviderError, got %T", err)
	}
	if provErr.Kind != ErrUnavailable {
		t.Errorf("Expected kind %q, got %q", ErrUnavailable, provErr.Kind)
	}
	if len(provErr.Attempted) != 2 || provErr.Attempted[0] != "openai" || provErr.Attempted[1] != "ollama" {
		t.Errorf("Expected attempted [openai ollama], got %v", provErr.Attempted)
	}
}

func TestChainStopsOnCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := failingProvider("openai", ErrTimeout)
	secondary := okProvider("ollama", "should not run")

	chain, err := NewFallbackChain([]Provider{primary, secondary},
		WithChainRetries(0), WithChainBackoff(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := chain.Complete(ctx, CompletionRequest{}); err == nil {
		t.Fatal("Expected error after cancellation")
	}
	if secondary.calls != 0 {
		t.Errorf("Chain must not advance after caller cancellation, secondary got %d calls", secondary.calls)
	}
}

func TestChainProviderNames(t *testing.T) {
	chain, err := NewFallbackChain([]Provider{
		okProvider("openai", "a"),
		okProvider("anthropic", "b"),
		okProvider("ollama", "c"),
	})
	if err != nil {
		t.Fatal(err)
	}

	names := chain.ProviderNames()
	want := []string{"openai", "anthropic", "ollama"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ProviderNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
