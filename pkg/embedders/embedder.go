package embedders

import (
	"context"
	"fmt"

	"github.com/kadirpekel/sensei/pkg/config"
)

// Embedder produces vector embeddings for text. Both retrieval and the
// semantic cache depend on it.
type Embedder interface {
	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimension.
	Dimension() int

	// ModelName returns the configured model.
	ModelName() string

	Close() error
}

// NewFromConfig builds an embedder from its config.
func NewFromConfig(cfg *config.EmbedderConfig) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}

	switch cfg.Type {
	case "openai":
		return NewOpenAIEmbedderFromConfig(cfg)
	case "ollama":
		return NewOllamaEmbedderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s (supported: openai, ollama)", cfg.Type)
	}
}
