// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retrieval finds grounding passages for a query.
//
// The service wraps a vector store and an embedder. It fails soft: any
// backend error or timeout yields an empty Context and a logged warning,
// never a hard error. Callers decide whether an empty Context matters.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/sensei/pkg/config"
	"github.com/kadirpekel/sensei/pkg/embedders"
	"github.com/kadirpekel/sensei/pkg/vector"
)

// Passage is a single grounding passage with its relevance score.
type Passage struct {
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
	SourceID string  `json:"source_id"`
}

// Context is an ordered sequence of passages, best match first. An empty
// Context is valid and means no grounding was found.
type Context struct {
	Passages []Passage `json:"passages"`
}

// Empty reports whether no grounding was found.
func (c Context) Empty() bool {
	return len(c.Passages) == 0
}

// Scope restricts retrieval to one tenant's corpus for one subject.
type Scope struct {
	TenantID string
	Subject  string
}

// Service retrieves grounding passages from a vector index.
type Service struct {
	store      vector.Provider
	embedder   embedders.Embedder
	collection string
	topK       int
	scoreFloor float32
	timeout    time.Duration
	logger     *slog.Logger
}

// NewService creates a retrieval service from configuration.
func NewService(store vector.Provider, embedder embedders.Embedder, cfg *config.RetrievalConfig) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg == nil {
		cfg = &config.RetrievalConfig{}
		cfg.SetDefaults()
	}

	return &Service{
		store:      store,
		embedder:   embedder,
		collection: cfg.Collection,
		topK:       cfg.TopK,
		scoreFloor: cfg.ScoreFloor,
		timeout:    time.Duration(cfg.Timeout) * time.Second,
		logger:     slog.Default().With("component", "retrieval"),
	}, nil
}

// Retrieve returns up to topK passages relevant to query within scope,
// best match first. Passages below the score floor are dropped rather than
// padding the result. Backend errors degrade to an empty Context.
func (s *Service) Retrieve(ctx context.Context, query string, scope Scope) Context {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("embedding failed, returning empty context",
			"tenant", scope.TenantID,
			"error", err)
		return Context{}
	}

	filter := map[string]any{
		"tenant_id": scope.TenantID,
	}
	if scope.Subject != "" {
		filter["subject"] = scope.Subject
	}

	results, err := s.store.SearchWithFilter(ctx, s.collection, vec, s.topK, filter)
	if err != nil {
		s.logger.Warn("vector search failed, returning empty context",
			"tenant", scope.TenantID,
			"collection", s.collection,
			"error", err)
		return Context{}
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		if r.Score < s.scoreFloor {
			continue
		}

		sourceID := ""
		if v, ok := r.Metadata["source_id"].(string); ok {
			sourceID = v
		}

		passages = append(passages, Passage{
			Text:     r.Content,
			Score:    r.Score,
			SourceID: sourceID,
		})
	}

	return Context{Passages: passages}
}

// IndexPassage adds a passage to the corpus and returns its generated ID.
// Unlike Retrieve, indexing errors are returned: ingestion callers need to
// know their write failed.
func (s *Service) IndexPassage(ctx context.Context, text, sourceID string, scope Scope) (string, error) {
	if text == "" {
		return "", fmt.Errorf("passage text cannot be empty")
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to embed passage: %w", err)
	}

	id := uuid.NewString()
	metadata := map[string]any{
		"content":   text,
		"tenant_id": scope.TenantID,
		"subject":   scope.Subject,
		"source_id": sourceID,
	}

	if err := s.store.Upsert(ctx, s.collection, id, vec, metadata); err != nil {
		return "", fmt.Errorf("failed to index passage: %w", err)
	}

	return id, nil
}
