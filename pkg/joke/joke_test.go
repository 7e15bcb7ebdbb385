package joke

import (
	"encoding/json"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestCandidate_Valid(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"complete", NewCandidate("general", "q", "a"), true},
		{"no category", Candidate{Question: strPtr("q"), Answer: strPtr("a")}, true},
		{"missing question", Candidate{Answer: strPtr("a")}, false},
		{"missing answer", Candidate{Question: strPtr("q")}, false},
		{"empty question", NewCandidate("general", "", "a"), false},
		{"empty answer", NewCandidate("general", "q", ""), false},
		{"zero value", Candidate{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	c := NewCandidate("general", "Why?", "Because.")
	item := c.ToItem()

	if c.Key() != Key("Why?") {
		t.Errorf("Candidate.Key() = %q", c.Key())
	}
	if item.Key() != c.Key() {
		t.Errorf("Item.Key() = %q, want %q", item.Key(), c.Key())
	}
	if (Candidate{}).Key() != "" {
		t.Error("Key() of a candidate without question should be empty")
	}
}

func TestCandidate_ToItem(t *testing.T) {
	item := NewCandidate("programming", "q", "a").ToItem()
	if item.Category != "programming" || item.Question != "q" || item.Answer != "a" {
		t.Errorf("ToItem() = %+v", item)
	}
	if item.ID != "" || !item.CreatedAt.IsZero() {
		t.Errorf("ToItem() must not assign identity: %+v", item)
	}

	bare := Candidate{Question: strPtr("q"), Answer: strPtr("a")}.ToItem()
	if bare.Category != "" {
		t.Errorf("Category = %q, want empty", bare.Category)
	}
}

func TestResponseItem_JSON(t *testing.T) {
	b, err := json.Marshal(ResponseItem{ID: "x", Question: "q", Answer: "a"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"id":"x","question":"q","answer":"a"}`
	if string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}
}
