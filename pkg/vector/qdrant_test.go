package vector

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func TestQdrantDecodePayload(t *testing.T) {
	payload := map[string]*qdrant.Value{
		"tenant_id": stringValue("t1"),
		"grade":     {Kind: &qdrant.Value_IntegerValue{IntegerValue: 8}},
		"score":     {Kind: &qdrant.Value_DoubleValue{DoubleValue: 0.92}},
		"archived":  {Kind: &qdrant.Value_BoolValue{BoolValue: true}},
		"tags": {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{
			Values: []*qdrant.Value{stringValue("algebra"), stringValue("equations")},
		}}},
	}

	metadata := decodePayload(payload)

	if metadata["tenant_id"] != "t1" {
		t.Errorf("tenant_id = %v", metadata["tenant_id"])
	}
	if metadata["grade"] != int64(8) {
		t.Errorf("grade = %v (%T)", metadata["grade"], metadata["grade"])
	}
	if metadata["score"] != 0.92 {
		t.Errorf("score = %v", metadata["score"])
	}
	if metadata["archived"] != true {
		t.Errorf("archived = %v", metadata["archived"])
	}

	tags, ok := metadata["tags"].([]any)
	if !ok {
		t.Fatalf("tags = %v (%T), want list", metadata["tags"], metadata["tags"])
	}
	if len(tags) != 2 || tags[0] != "algebra" || tags[1] != "equations" {
		t.Errorf("tags = %v", tags)
	}
}

func TestQdrantDecodeValueNil(t *testing.T) {
	if got := decodeValue(nil); got != nil {
		t.Errorf("decodeValue(nil) = %v", got)
	}
}

func TestQdrantResultFromPoint(t *testing.T) {
	point := &qdrant.ScoredPoint{
		Id:    &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: "doc-1"}},
		Score: 0.87,
		Payload: map[string]*qdrant.Value{
			"content":   stringValue("gravity pulls objects together"),
			"tenant_id": stringValue("t1"),
		},
	}

	result := resultFromPoint(point)

	if result.ID != "doc-1" {
		t.Errorf("ID = %q", result.ID)
	}
	if result.Score != 0.87 {
		t.Errorf("Score = %v", result.Score)
	}
	if result.Content != "gravity pulls objects together" {
		t.Errorf("Content = %q", result.Content)
	}
	if result.Metadata["tenant_id"] != "t1" {
		t.Errorf("Metadata = %v", result.Metadata)
	}
}

func TestQdrantPointID(t *testing.T) {
	tests := []struct {
		name string
		id   *qdrant.PointId
		want string
	}{
		{"uuid", &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: "abc"}}, "abc"},
		{"numeric", &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: 42}}, "42"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pointID(tt.id); got != tt.want {
				t.Errorf("pointID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQdrantBuildFilter(t *testing.T) {
	filter := buildQdrantFilter(map[string]any{
		"tenant_id": "t1",
		"grade":     8,
		"archived":  false,
		"weights":   []float64{0.1}, // no exact-match semantics, skipped
	})

	if len(filter.Must) != 3 {
		t.Fatalf("Expected 3 conditions, got %d", len(filter.Must))
	}

	matches := make(map[string]*qdrant.Match, len(filter.Must))
	for _, cond := range filter.Must {
		field := cond.GetField()
		if field == nil {
			t.Fatalf("Expected field condition, got %v", cond)
		}
		matches[field.Key] = field.Match
	}

	if matches["tenant_id"].GetKeyword() != "t1" {
		t.Errorf("tenant_id match = %v", matches["tenant_id"])
	}
	if matches["grade"].GetInteger() != 8 {
		t.Errorf("grade match = %v", matches["grade"])
	}
	if m, ok := matches["archived"].MatchValue.(*qdrant.Match_Boolean); !ok || m.Boolean {
		t.Errorf("archived match = %v", matches["archived"])
	}
	if _, ok := matches["weights"]; ok {
		t.Error("Unsupported value type should not produce a condition")
	}
}
