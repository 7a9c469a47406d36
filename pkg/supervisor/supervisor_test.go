package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kadirpekel/sensei/pkg/agents"
	"github.com/kadirpekel/sensei/pkg/cache"
	"github.com/kadirpekel/sensei/pkg/llms"
	"github.com/kadirpekel/sensei/pkg/retrieval"
)

// stubSpecialist counts invocations and replies via a configurable run func.
type stubSpecialist struct {
	name string
	run  func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error)

	mu    sync.Mutex
	calls int
}

func (s *stubSpecialist) Name() string { return s.name }

func (s *stubSpecialist) Run(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.run(ctx, req)
}

func (s *stubSpecialist) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func okSpecialist(name string) *stubSpecialist {
	return &stubSpecialist{
		name: name,
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			return &agents.AgentResponse{
				Specialist: name,
				Text:       name + " response",
				Provenance: agents.ProvenanceGenerated,
			}, nil
		},
	}
}

func testSpecialists() (Specialists, map[string]*stubSpecialist) {
	stubs := map[string]*stubSpecialist{
		"content": okSpecialist("content"),
		"solver":  okSpecialist("solver"),
		"grader":  okSpecialist("grader"),
		"analyst": okSpecialist("analyst"),
	}
	return Specialists{
		Content: stubs["content"],
		Solver:  stubs["solver"],
		Grader:  stubs["grader"],
		Analyst: stubs["analyst"],
	}, stubs
}

// fakeCache is an in-process Cache recording lookups and stores.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
	stores  int
	lookups int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*cache.Entry)}
}

func (f *fakeCache) Lookup(ctx context.Context, key cache.Key) (*cache.Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	entry, ok := f.entries[key.ID()]
	return entry, ok
}

func (f *fakeCache) Store(ctx context.Context, key cache.Key, response agents.AgentResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores++
	f.entries[key.ID()] = &cache.Entry{
		ID:       key.ID(),
		TenantID: key.TenantID,
		Intent:   key.Intent,
		Response: response,
	}
	return nil
}

func (f *fakeCache) storeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores
}

// fakeRetriever returns a fixed context.
type fakeRetriever struct {
	ctx   retrieval.Context
	calls int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, scope retrieval.Scope) retrieval.Context {
	f.calls++
	return f.ctx
}

func TestNewRequiresAllSpecialists(t *testing.T) {
	specs, _ := testSpecialists()
	specs.Grader = nil

	if _, err := New(nil, specs); err == nil {
		t.Error("Expected error when a specialist is missing")
	}
}

func TestHandleRoutesContentQuery(t *testing.T) {
	specs, stubs := testSpecialists()
	sup, err := New(nil, specs)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Explain quadratic equations"},
		agents.StudentProfile{Grade: 8, Subject: "algebra"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if resp.Specialist != "content" {
		t.Errorf("Expected content specialist, got %q", resp.Specialist)
	}
	if resp.Provenance != agents.ProvenanceGenerated {
		t.Errorf("Expected provenance %q, got %q", agents.ProvenanceGenerated, resp.Provenance)
	}
	if stubs["content"].callCount() != 1 {
		t.Errorf("Expected 1 content call, got %d", stubs["content"].callCount())
	}
	if stubs["solver"].callCount() != 0 {
		t.Error("Solver should not have been called")
	}
	if len(resp.StepLog) == 0 || resp.StepLog[0] != "classified:explain" {
		t.Errorf("Expected step log to start with classification, got %v", resp.StepLog)
	}
}

func TestHandleCacheHitSkipsGeneration(t *testing.T) {
	specs, stubs := testSpecialists()
	fc := newFakeCache()

	key := cache.NewKey("t1", "explain", "Explain quadratic equations", "algebra", 8)
	fc.entries[key.ID()] = &cache.Entry{
		ID: key.ID(),
		Response: agents.AgentResponse{
			Specialist: "content",
			Text:       "cached lesson",
			Provenance: agents.ProvenanceGenerated,
		},
	}

	sup, err := New(nil, specs, WithCache(fc))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Explain quadratic equations"},
		agents.StudentProfile{Grade: 8, Subject: "algebra"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if resp.Provenance != agents.ProvenanceCacheHit {
		t.Errorf("Expected provenance %q, got %q", agents.ProvenanceCacheHit, resp.Provenance)
	}
	if resp.Text != "cached lesson" {
		t.Errorf("Expected cached text, got %q", resp.Text)
	}
	if stubs["content"].callCount() != 0 {
		t.Errorf("Expected 0 specialist calls on cache hit, got %d", stubs["content"].callCount())
	}
	found := false
	for _, step := range resp.StepLog {
		if step == "cache_hit" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected cache_hit in step log, got %v", resp.StepLog)
	}
}

func TestHandleCacheMissStoresOnce(t *testing.T) {
	specs, _ := testSpecialists()
	fc := newFakeCache()

	sup, err := New(nil, specs, WithCache(fc))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Explain gravity"},
		agents.StudentProfile{Grade: 6, Subject: "physics"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Provenance != agents.ProvenanceGenerated {
		t.Errorf("Expected provenance %q, got %q", agents.ProvenanceGenerated, resp.Provenance)
	}

	sup.Flush()
	if fc.storeCount() != 1 {
		t.Errorf("Expected exactly 1 cache store, got %d", fc.storeCount())
	}
}

func TestHandleRetrievalFailureStaysGenerated(t *testing.T) {
	specs, _ := testSpecialists()
	// Empty context models an unavailable or empty vector store.
	fr := &fakeRetriever{ctx: retrieval.Context{}}

	sup, err := New(nil, specs, WithRetriever(fr))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Explain photosynthesis"},
		agents.StudentProfile{Grade: 7, Subject: "biology"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if fr.calls != 1 {
		t.Errorf("Expected 1 retrieval call, got %d", fr.calls)
	}
	if resp.Provenance != agents.ProvenanceGenerated {
		t.Errorf("Retrieval failure must not degrade provenance, got %q", resp.Provenance)
	}
}

func TestHandlePassesRetrievedContext(t *testing.T) {
	var seen retrieval.Context
	content := &stubSpecialist{
		name: "content",
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			seen = req.Context
			return &agents.AgentResponse{Specialist: "content", Text: "ok", Provenance: agents.ProvenanceGenerated}, nil
		},
	}
	specs, _ := testSpecialists()
	specs.Content = content

	fr := &fakeRetriever{ctx: retrieval.Context{Passages: []retrieval.Passage{
		{Text: "a quadratic equation has degree two", Score: 0.9},
	}}}

	sup, err := New(nil, specs, WithRetriever(fr))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Explain quadratic equations"},
		agents.StudentProfile{Grade: 8, Subject: "algebra"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(seen.Passages) != 1 {
		t.Fatalf("Expected 1 passage passed to specialist, got %d", len(seen.Passages))
	}
}

func TestHandleFallbackDegradedProvenance(t *testing.T) {
	specs, _ := testSpecialists()
	specs.Content = &stubSpecialist{
		name: "content",
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			return &agents.AgentResponse{
				Specialist: "content",
				Text:       "secondary provider response",
				Provenance: agents.ProvenanceFallbackDegraded,
			}, nil
		},
	}

	sup, err := New(nil, specs)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Explain entropy"},
		agents.StudentProfile{Grade: 10, Subject: "physics"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Provenance != agents.ProvenanceFallbackDegraded {
		t.Errorf("Expected provenance %q, got %q", agents.ProvenanceFallbackDegraded, resp.Provenance)
	}
}

func TestHandleExhaustionReturnsOrchestrationError(t *testing.T) {
	specs, _ := testSpecialists()
	specs.Content = &stubSpecialist{
		name: "content",
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			return nil, fmt.Errorf("lesson generation failed: %w", &llms.ProviderError{
				Provider:  "chain",
				Kind:      llms.ErrUnavailable,
				Attempted: []string{"openai", "ollama"},
				Err:       errors.New("HTTP 503"),
			})
		},
	}

	sup, err := New(nil, specs)
	if err != nil {
		t.Fatal(err)
	}

	_, err = sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Explain osmosis"},
		agents.StudentProfile{Grade: 7, Subject: "biology"})
	if err == nil {
		t.Fatal("Expected error on provider exhaustion")
	}

	var orchErr *OrchestrationError
	if !errors.As(err, &orchErr) {
		t.Fatalf("Expected *OrchestrationError, got %T", err)
	}
	if orchErr.Specialist != "content" {
		t.Errorf("Expected specialist content, got %q", orchErr.Specialist)
	}
	if len(orchErr.Providers) != 2 || orchErr.Providers[0] != "openai" || orchErr.Providers[1] != "ollama" {
		t.Errorf("Expected attempted providers [openai ollama], got %v", orchErr.Providers)
	}
}

func TestHandleRegeneratesInvalidResponse(t *testing.T) {
	var calls int
	specs, _ := testSpecialists()
	specs.Content = &stubSpecialist{
		name: "content",
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			calls++
			if calls == 1 {
				return &agents.AgentResponse{Specialist: "content", Text: "   ", Provenance: agents.ProvenanceGenerated}, nil
			}
			return &agents.AgentResponse{Specialist: "content", Text: "a real lesson", Provenance: agents.ProvenanceGenerated}, nil
		},
	}

	sup, err := New(nil, specs)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Explain fractions"},
		agents.StudentProfile{Grade: 4, Subject: "math"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if calls != 2 {
		t.Errorf("Expected 2 specialist calls (initial + 1 regeneration), got %d", calls)
	}
	if resp.Text != "a real lesson" {
		t.Errorf("Expected regenerated text, got %q", resp.Text)
	}
	found := false
	for _, step := range resp.StepLog {
		if step == "regenerated_attempt_1" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected regeneration recorded in step log, got %v", resp.StepLog)
	}
}

func TestHandleSubmittedAnswerRoutesToGrader(t *testing.T) {
	specs, stubs := testSpecialists()
	sup, err := New(nil, specs)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "What is 2+2?", SubmittedAnswer: "4"},
		agents.StudentProfile{Grade: 3, Subject: "math"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if resp.Specialist != "grader" {
		t.Errorf("Expected grader specialist, got %q", resp.Specialist)
	}
	if stubs["grader"].callCount() != 1 {
		t.Errorf("Expected 1 grader call, got %d", stubs["grader"].callCount())
	}
}

func TestHandleAnalyzeChainsGraderIntoAnalyst(t *testing.T) {
	score := 8.0
	var analystReq agents.Request

	specs, _ := testSpecialists()
	grader := &stubSpecialist{
		name: "grader",
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			return &agents.AgentResponse{
				Specialist: "grader",
				Text:       "Score: 8/10\nGood work.",
				Score:      &score,
				Tokens:     40,
				Provenance: agents.ProvenanceGenerated,
				StepLog:    []string{"answer_graded"},
			}, nil
		},
	}
	analyst := &stubSpecialist{
		name: "analyst",
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			analystReq = req
			return &agents.AgentResponse{
				Specialist: "analyst",
				Text:       "analysis",
				Tokens:     60,
				Provenance: agents.ProvenanceGenerated,
				StepLog:    []string{"performance_analyzed"},
			}, nil
		},
	}
	specs.Grader = grader
	specs.Analyst = analyst

	sup, err := New(nil, specs)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "Analyze my progress, how am I doing?", SubmittedAnswer: "x = 2"},
		agents.StudentProfile{Grade: 8, Subject: "algebra"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if grader.callCount() != 1 {
		t.Errorf("Expected 1 grader call, got %d", grader.callCount())
	}
	if analyst.callCount() != 1 {
		t.Errorf("Expected 1 analyst call, got %d", analyst.callCount())
	}
	if analystReq.Grade == nil {
		t.Fatal("Expected grade passed into analyst request")
	}
	if analystReq.Grade.Score != 8.0 {
		t.Errorf("Expected grade score 8.0, got %v", analystReq.Grade.Score)
	}
	if !analystReq.Grade.Correct {
		t.Error("Expected 8/10 to clear the passing threshold")
	}

	if resp.Specialist != "analyst" {
		t.Errorf("Expected analyst response, got %q", resp.Specialist)
	}
	if resp.Score == nil || *resp.Score != 8.0 {
		t.Error("Expected grader score merged into analyst response")
	}
	if resp.Tokens != 100 {
		t.Errorf("Expected merged token count 100, got %d", resp.Tokens)
	}
	if strings.Join(resp.StepLog, ",") != "classified:analyze,answer_graded,performance_analyzed" {
		t.Errorf("Expected merged step log, got %v", resp.StepLog)
	}
}

func TestHandleAnalyzeProceedsWhenGraderFails(t *testing.T) {
	specs, _ := testSpecialists()
	specs.Grader = &stubSpecialist{
		name: "grader",
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			return nil, errors.New("grader down")
		},
	}

	sup, err := New(nil, specs)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := sup.Handle(context.Background(),
		agents.Query{TenantID: "t1", Text: "analyze my progress", SubmittedAnswer: "x = 2"},
		agents.StudentProfile{Grade: 8, Subject: "algebra"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Specialist != "analyst" {
		t.Errorf("Expected analyst response despite grader failure, got %q", resp.Specialist)
	}
	if resp.Score != nil {
		t.Error("Expected no score when the grader failed")
	}
}

func TestHandleConcurrentMissesGenerateOnce(t *testing.T) {
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	specs, _ := testSpecialists()
	specs.Content = &stubSpecialist{
		name: "content",
		run: func(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			<-release
			return &agents.AgentResponse{Specialist: "content", Text: "shared", Provenance: agents.ProvenanceGenerated}, nil
		},
	}

	sup, err := New(nil, specs)
	if err != nil {
		t.Fatal(err)
	}

	query := agents.Query{TenantID: "t1", Text: "Explain mitosis"}
	profile := agents.StudentProfile{Grade: 9, Subject: "biology"}

	var wg sync.WaitGroup
	results := make([]*agents.AgentResponse, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := sup.Handle(context.Background(), query, profile)
			if err != nil {
				t.Errorf("Handle() error = %v", err)
				return
			}
			results[i] = resp
		}(i)
	}

	// Give both callers time to coalesce on the in-flight generation.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 1 {
		t.Errorf("Expected 1 generation for concurrent identical queries, got %d", got)
	}
	for i, resp := range results {
		if resp == nil || resp.Text != "shared" {
			t.Errorf("Caller %d did not receive the shared response", i)
		}
	}
}
