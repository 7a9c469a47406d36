package cache

import "testing"

func TestNewKeyNormalizesText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"lowercases", "Explain Gravity", "explain gravity"},
		{"collapses_whitespace", "explain   gravity\n\tplease", "explain gravity please"},
		{"trims_edges", "  explain gravity  ", "explain gravity"},
		{"already_normal", "explain gravity", "explain gravity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewKey("t1", "explain", tt.text, "physics", 6)
			if key.NormalizedText != tt.want {
				t.Errorf("NormalizedText = %q, want %q", key.NormalizedText, tt.want)
			}
		})
	}
}

func TestKeyIDDeterministic(t *testing.T) {
	a := NewKey("t1", "explain", "Explain  Gravity", "physics", 6)
	b := NewKey("t1", "explain", "explain gravity", "Physics", 6)

	if a.ID() != b.ID() {
		t.Error("Expected identical IDs for trivially reworded queries")
	}
	if len(a.ID()) != 32 {
		t.Errorf("Expected 32 hex chars, got %d", len(a.ID()))
	}
}

func TestKeyIDScoping(t *testing.T) {
	base := NewKey("t1", "explain", "explain gravity", "physics", 6)

	tests := []struct {
		name  string
		other Key
	}{
		{"different_tenant", NewKey("t2", "explain", "explain gravity", "physics", 6)},
		{"different_intent", NewKey("t1", "solve", "explain gravity", "physics", 6)},
		{"different_subject", NewKey("t1", "explain", "explain gravity", "chemistry", 6)},
		{"different_grade", NewKey("t1", "explain", "explain gravity", "physics", 9)},
		{"different_text", NewKey("t1", "explain", "explain entropy", "physics", 6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.other.ID() == base.ID() {
				t.Error("Expected distinct IDs across scope boundaries")
			}
		})
	}
}
