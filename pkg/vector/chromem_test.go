package vector

import (
	"context"
	"testing"
)

func newMemoryProvider(t *testing.T) *ChromemProvider {
	t.Helper()

	p, err := NewChromemProvider(ChromemConfig{})
	if err != nil {
		t.Fatalf("NewChromemProvider() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestChromemUpsertSearch(t *testing.T) {
	p := newMemoryProvider(t)
	ctx := context.Background()

	docs := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0.9, 0.1, 0},
	}
	for id, vec := range docs {
		err := p.Upsert(ctx, "test", id, vec, map[string]any{
			"content":   "doc " + id,
			"tenant_id": "t1",
		})
		if err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	results, err := p.Search(ctx, "test", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("Best match = %q, want a", results[0].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("Results should be ordered by descending similarity")
	}
	if results[0].Content != "doc a" {
		t.Errorf("Content = %q", results[0].Content)
	}
}

func TestChromemSearchWithFilter(t *testing.T) {
	p := newMemoryProvider(t)
	ctx := context.Background()

	if err := p.Upsert(ctx, "test", "a", []float32{1, 0, 0}, map[string]any{"tenant_id": "t1"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Upsert(ctx, "test", "b", []float32{1, 0, 0}, map[string]any{"tenant_id": "t2"}); err != nil {
		t.Fatal(err)
	}

	results, err := p.SearchWithFilter(ctx, "test", []float32{1, 0, 0}, 10, map[string]any{"tenant_id": "t2"})
	if err != nil {
		t.Fatalf("SearchWithFilter() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("Expected only t2 document, got %v", results)
	}
	if results[0].Metadata["tenant_id"] != "t2" {
		t.Errorf("Metadata = %v", results[0].Metadata)
	}
}

func TestChromemSearchEmptyCollection(t *testing.T) {
	p := newMemoryProvider(t)

	results, err := p.Search(context.Background(), "empty", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search() on empty collection error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestChromemSearchClampsTopK(t *testing.T) {
	p := newMemoryProvider(t)
	ctx := context.Background()

	if err := p.Upsert(ctx, "test", "a", []float32{1, 0, 0}, nil); err != nil {
		t.Fatal(err)
	}

	// topK above the collection size must not error.
	results, err := p.Search(ctx, "test", []float32{1, 0, 0}, 50)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

func TestChromemUpsertOverwrites(t *testing.T) {
	p := newMemoryProvider(t)
	ctx := context.Background()

	if err := p.Upsert(ctx, "test", "a", []float32{1, 0, 0}, map[string]any{"content": "first"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Upsert(ctx, "test", "a", []float32{1, 0, 0}, map[string]any{"content": "second"}); err != nil {
		t.Fatal(err)
	}

	results, err := p.Search(ctx, "test", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result after overwrite, got %d", len(results))
	}
	if results[0].Content != "second" {
		t.Errorf("Content = %q, want second", results[0].Content)
	}
}

func TestChromemDelete(t *testing.T) {
	p := newMemoryProvider(t)
	ctx := context.Background()

	if err := p.Upsert(ctx, "test", "a", []float32{1, 0, 0}, nil); err != nil {
		t.Fatal(err)
	}
	if err := p.Delete(ctx, "test", "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	results, err := p.Search(ctx, "test", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results after delete, got %d", len(results))
	}
}

func TestChromemDeleteCollection(t *testing.T) {
	p := newMemoryProvider(t)
	ctx := context.Background()

	if err := p.Upsert(ctx, "test", "a", []float32{1, 0, 0}, nil); err != nil {
		t.Fatal(err)
	}
	if err := p.DeleteCollection(ctx, "test"); err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}

	results, err := p.Search(ctx, "test", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty collection after delete, got %d results", len(results))
	}
}

func TestNilProvider(t *testing.T) {
	var p Provider = NilProvider{}
	ctx := context.Background()

	if err := p.Upsert(ctx, "c", "id", nil, nil); err == nil {
		t.Error("NilProvider.Upsert should error")
	}

	results, err := p.Search(ctx, "c", nil, 5)
	if err != nil || results != nil {
		t.Errorf("NilProvider.Search = %v, %v", results, err)
	}
	if p.Name() != "nil" {
		t.Errorf("Name() = %q", p.Name())
	}
}
