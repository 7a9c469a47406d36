package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/sensei/pkg/config"
	"github.com/kadirpekel/sensei/pkg/httpclient"
)

// OllamaProvider implements Provider for a local Ollama server.
type OllamaProvider struct {
	config      *config.LLMProviderConfig
	client      *httpclient.Client
	baseURL     string
	model       string
	temperature float64
}

// OllamaChatRequest is the request payload for the Ollama chat API.
type OllamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// OllamaChatResponse is the response from the Ollama chat API.
type OllamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

func NewOllamaProviderFromConfig(cfg *config.LLMProviderConfig) (*OllamaProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(cfg.Timeout) * time.Second

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.BackoffBase)*time.Millisecond),
	)

	temperature := 0.7
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	return &OllamaProvider{
		config:      cfg,
		client:      client,
		baseURL:     baseURL,
		model:       cfg.Model,
		temperature: temperature,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) ModelName() string {
	return p.model
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Messages...)

	temperature := p.temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	payload := OllamaChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options:  map[string]any{"temperature": temperature},
	}
	if req.MaxTokens > 0 {
		payload.Options["num_predict"] = req.MaxTokens
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrInvalidResponse, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrInvalidResponse, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		var retryErr *httpclient.RetryableError
		if errors.As(err, &retryErr) {
			return nil, classifyError(p.Name(), retryErr.StatusCode, err)
		}
		return nil, classifyError(p.Name(), 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrInvalidResponse, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyError(p.Name(), resp.StatusCode, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, string(body)))
	}

	var response OllamaChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, NewProviderError(p.Name(), ErrInvalidResponse, fmt.Errorf("failed to decode response: %w", err))
	}

	if response.Message.Content == "" {
		return nil, NewProviderError(p.Name(), ErrInvalidResponse, fmt.Errorf("received empty message from Ollama"))
	}

	return &Completion{
		Text:     response.Message.Content,
		Tokens:   response.PromptEvalCount + response.EvalCount,
		Provider: p.Name(),
		Model:    p.model,
	}, nil
}

func (p *OllamaProvider) Close() error {
	return nil
}

// Ensure OllamaProvider implements Provider.
var _ Provider = (*OllamaProvider)(nil)
