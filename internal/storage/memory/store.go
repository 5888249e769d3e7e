// Package memory is an in-process SessionStore.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/storage"
)

// Store is an in-memory implementation of SessionStore
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*storage.Session
	now      func() time.Time
}

var _ storage.SessionStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		sessions: make(map[string]*storage.Session),
		now:      time.Now,
	}
}

// turn returns the turn record, creating the session and turn when absent.
// Callers hold s.mu.
func (s *Store) turn(sessionID string, number int) *storage.Turn {
	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &storage.Session{ID: sessionID, CreatedAt: now}
		s.sessions[sessionID] = sess
	}
	sess.UpdatedAt = now

	for i := range sess.Turns {
		if sess.Turns[i].TurnNumber == number {
			sess.Turns[i].UpdatedAt = now
			return &sess.Turns[i]
		}
	}
	sess.Turns = append(sess.Turns, storage.Turn{TurnNumber: number, UpdatedAt: now})
	sort.Slice(sess.Turns, func(i, j int) bool { return sess.Turns[i].TurnNumber < sess.Turns[j].TurnNumber })
	for i := range sess.Turns {
		if sess.Turns[i].TurnNumber == number {
			return &sess.Turns[i]
		}
	}
	return nil
}

func (s *Store) SaveJudgeResults(ctx context.Context, rec *domain.JudgeResultsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.turn(rec.SessionID, rec.TurnNumber)
	t.JudgeResults = make(domain.JudgeResults, len(rec.JudgeResults))
	for p, score := range rec.JudgeResults {
		t.JudgeResults[p] = score
	}
	return nil
}

func (s *Store) SaveRating(ctx context.Context, rec *domain.RatingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turn(rec.SessionID, rec.TurnNumber).Rating = rec.Rating
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := *sess
	out.Turns = append([]storage.Turn(nil), sess.Turns...)
	return &out, nil
}

func (s *Store) ListSessions(ctx context.Context, opts storage.ListOptions) ([]*storage.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, &storage.SessionSummary{
			ID:        sess.ID,
			TurnCount: len(sess.Turns),
			UpdatedAt: sess.UpdatedAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})

	// Simple pagination
	start := opts.Offset
	if start >= len(result) {
		return []*storage.SessionSummary{}, nil
	}

	limit := opts.Limit
	if limit == 0 {
		limit = storage.DefaultListLimit
	}
	end := start + limit
	if end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}
