// Package storage defines the persistence port of the companion service:
// judge results and ratings keyed by session and turn.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// ErrNotFound is returned when a session has no stored turns.
var ErrNotFound = errors.New("session not found")

// SessionStore persists per-turn evaluation data.
type SessionStore interface {
	// SaveJudgeResults stores the results for a turn, replacing earlier ones.
	SaveJudgeResults(ctx context.Context, rec *domain.JudgeResultsRecord) error

	// SaveRating stores the user rating for a turn, replacing an earlier one.
	SaveRating(ctx context.Context, rec *domain.RatingRecord) error

	// GetSession returns every stored turn of a session ordered by turn number.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions lists sessions, most recently updated first.
	ListSessions(ctx context.Context, opts ListOptions) ([]*SessionSummary, error)

	// Close releases the storage connection
	Close() error
}

// Session is the stored view of one conversation.
type Session struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn holds what was recorded for one assistant answer.
type Turn struct {
	TurnNumber   int                 `json:"turn_number"`
	JudgeResults domain.JudgeResults `json:"judge_results,omitempty"`
	Rating       int                 `json:"rating,omitempty"` // 0 when unrated
	UpdatedAt    time.Time           `json:"updated_at"`
}

// SessionSummary is a listing entry.
type SessionSummary struct {
	ID        string    `json:"id"`
	TurnCount int       `json:"turn_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListOptions defines options for listing sessions
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 100
