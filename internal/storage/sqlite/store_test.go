package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "synapse.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveJudgeResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := domain.JudgeResults{"openai": {OverallScore: 2, Explanation: "thin"}}
	second := domain.JudgeResults{
		"openai":    {OverallScore: 4.5, Scores: map[string]float64{"accuracy": 5}},
		"anthropic": {OverallScore: 4, Usage: &domain.JudgeUsage{InputTokens: 10, OutputTokens: 3}},
	}

	for _, results := range []domain.JudgeResults{first, second} {
		err := store.SaveJudgeResults(ctx, &domain.JudgeResultsRecord{SessionID: "sess-1", TurnNumber: 1, JudgeResults: results})
		if err != nil {
			t.Fatalf("SaveJudgeResults() error = %v", err)
		}
	}

	sess, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if len(sess.Turns) != 1 {
		t.Fatalf("Turns count = %d, want 1", len(sess.Turns))
	}

	got := sess.Turns[0].JudgeResults
	if len(got) != 2 {
		t.Fatalf("JudgeResults = %v, want 2 providers", got)
	}
	if got["openai"].OverallScore != 4.5 || got["openai"].Scores["accuracy"] != 5 {
		t.Errorf("openai = %+v", got["openai"])
	}
	if got["anthropic"].Usage == nil || got["anthropic"].Usage.OutputTokens != 3 {
		t.Errorf("anthropic usage = %+v", got["anthropic"].Usage)
	}
}

func TestSQLiteStore_SaveRating(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveJudgeResults(ctx, &domain.JudgeResultsRecord{
		SessionID:    "sess-1",
		TurnNumber:   2,
		JudgeResults: domain.JudgeResults{"gemini": {OverallScore: 3}},
	})
	if err != nil {
		t.Fatalf("SaveJudgeResults() error = %v", err)
	}
	if err := store.SaveRating(ctx, &domain.RatingRecord{SessionID: "sess-1", TurnNumber: 2, Rating: 5}); err != nil {
		t.Fatalf("SaveRating() error = %v", err)
	}
	if err := store.SaveRating(ctx, &domain.RatingRecord{SessionID: "sess-1", TurnNumber: 1, Rating: 1}); err != nil {
		t.Fatalf("SaveRating() error = %v", err)
	}

	sess, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if len(sess.Turns) != 2 {
		t.Fatalf("Turns count = %d, want 2", len(sess.Turns))
	}

	one, two := sess.Turns[0], sess.Turns[1]
	if one.TurnNumber != 1 || one.Rating != 1 || one.JudgeResults != nil {
		t.Errorf("turn 1 = %+v", one)
	}
	if two.TurnNumber != 2 || two.Rating != 5 || two.JudgeResults["gemini"] == nil {
		t.Errorf("turn 2 = %+v", two)
	}
}

func TestSQLiteStore_GetSessionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetSession() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_ListSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	records := []domain.RatingRecord{
		{SessionID: "a", TurnNumber: 1, Rating: 3},
		{SessionID: "b", TurnNumber: 1, Rating: 4},
		{SessionID: "a", TurnNumber: 2, Rating: 5},
	}
	for i := range records {
		if err := store.SaveRating(ctx, &records[i]); err != nil {
			t.Fatalf("SaveRating() error = %v", err)
		}
	}

	got, err := store.ListSessions(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListSessions() = %d sessions, want 2", len(got))
	}
	if got[0].ID != "a" || got[0].TurnCount != 2 {
		t.Errorf("first = %+v, want a with 2 turns", got[0])
	}
	if !got[0].UpdatedAt.Equal(base.Add(3 * time.Second)) {
		t.Errorf("UpdatedAt = %v", got[0].UpdatedAt)
	}

	page, err := store.ListSessions(ctx, storage.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("page = %+v, want [b]", page)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.SaveRating(context.Background(), &domain.RatingRecord{SessionID: "s", TurnNumber: 1, Rating: 2}); err != nil {
		t.Fatalf("SaveRating() error = %v", err)
	}
	store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer reopened.Close()

	sess, err := reopened.GetSession(context.Background(), "s")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if sess.Turns[0].Rating != 2 {
		t.Errorf("Rating = %d, want 2", sess.Turns[0].Rating)
	}
}
