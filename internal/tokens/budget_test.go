package tokens

import (
	"strings"
	"testing"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

func history(contents ...string) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(contents))
	for i, c := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		out[i] = domain.HistoryEntry{Role: role, Content: c}
	}
	return out
}

func TestCounter_CountText(t *testing.T) {
	c, err := NewCounter(DefaultEncoding)
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{"empty", "", 0, 0},
		{"short", "Hello, how are you?", 4, 8},
		{"longer", "Which fire door fits a 600x600 opening with a steel frame?", 10, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.CountText(tt.text)
			if got < tt.minTokens || got > tt.maxTokens {
				t.Errorf("CountText() = %d, want between %d and %d", got, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestEstimator(t *testing.T) {
	e := NewEstimator()
	if got := e.CountText("abcdefgh"); got != 2 {
		t.Errorf("CountText() = %d, want 2", got)
	}
	if got := e.CountEntry(domain.HistoryEntry{Content: "abcd"}); got != 5 {
		t.Errorf("CountEntry() = %d, want 5", got)
	}
}

func TestCounter_TrimHistory(t *testing.T) {
	e := NewEstimator()
	// Each entry below costs 4 overhead + 2 content = 6 tokens.
	h := history("aaaaaaaa", "bbbbbbbb", "cccccccc", "dddddddd")

	tests := []struct {
		name   string
		budget int
		want   int
	}{
		{"no limit", 0, 4},
		{"everything fits", 24, 4},
		{"drop oldest", 18, 3},
		{"drop two", 12, 2},
		{"keeps newest when too small", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.TrimHistory(h, tt.budget)
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if got[len(got)-1].Content != "dddddddd" {
				t.Errorf("newest entry dropped: %+v", got)
			}
		})
	}

	if len(h) != 4 || h[0].Content != "aaaaaaaa" {
		t.Errorf("input modified: %+v", h)
	}
}

func TestCounter_TrimHistoryWithCodec(t *testing.T) {
	c, err := NewCounter(DefaultEncoding)
	if err != nil {
		t.Fatalf("NewCounter() error = %v", err)
	}
	long := strings.Repeat("steel door frame ", 200)
	h := history(long, "short question", "short answer")

	got := c.TrimHistory(h, 100)
	if len(got) != 2 || got[0].Content != "short question" {
		t.Errorf("TrimHistory() = %d entries, first %q", len(got), got[0].Content)
	}
	if c.CountHistory(got) > 100 {
		t.Errorf("trimmed history over budget: %d", c.CountHistory(got))
	}
}
