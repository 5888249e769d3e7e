// Package sqlite is a SessionStore backed by a SQLite file (modernc driver,
// no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/storage"
)

// Store is a SQLite implementation of SessionStore
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.SessionStore = (*Store)(nil)

// New opens or creates the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Timestamps are unix nanoseconds so aggregates keep their type.
func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS session_turns (
			session_id TEXT NOT NULL,
			turn_number INTEGER NOT NULL,
			judge_results TEXT,
			rating INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (session_id, turn_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_turns_updated ON session_turns(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveJudgeResults(ctx context.Context, rec *domain.JudgeResultsRecord) error {
	results, err := json.Marshal(rec.JudgeResults)
	if err != nil {
		return fmt.Errorf("failed to marshal judge results: %w", err)
	}

	now := s.now().UnixNano()
	query := `INSERT INTO session_turns (session_id, turn_number, judge_results, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT (session_id, turn_number)
	          DO UPDATE SET judge_results = excluded.judge_results, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, rec.SessionID, rec.TurnNumber, string(results), now, now); err != nil {
		return fmt.Errorf("failed to save judge results: %w", err)
	}
	return nil
}

func (s *Store) SaveRating(ctx context.Context, rec *domain.RatingRecord) error {
	now := s.now().UnixNano()
	query := `INSERT INTO session_turns (session_id, turn_number, rating, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT (session_id, turn_number)
	          DO UPDATE SET rating = excluded.rating, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, rec.SessionID, rec.TurnNumber, rec.Rating, now, now); err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	query := `SELECT turn_number, judge_results, rating, created_at, updated_at
	          FROM session_turns WHERE session_id = ?
	          ORDER BY turn_number ASC`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	defer rows.Close()

	sess := &storage.Session{ID: id}
	for rows.Next() {
		var (
			turn             storage.Turn
			results          sql.NullString
			created, updated int64
		)
		if err := rows.Scan(&turn.TurnNumber, &results, &turn.Rating, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if results.Valid && results.String != "" {
			if err := json.Unmarshal([]byte(results.String), &turn.JudgeResults); err != nil {
				return nil, fmt.Errorf("failed to unmarshal judge results: %w", err)
			}
		}
		turn.UpdatedAt = time.Unix(0, updated)

		if c := time.Unix(0, created); sess.CreatedAt.IsZero() || c.Before(sess.CreatedAt) {
			sess.CreatedAt = c
		}
		if turn.UpdatedAt.After(sess.UpdatedAt) {
			sess.UpdatedAt = turn.UpdatedAt
		}
		sess.Turns = append(sess.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(sess.Turns) == 0 {
		return nil, storage.ErrNotFound
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, opts storage.ListOptions) ([]*storage.SessionSummary, error) {
	query := `SELECT session_id, COUNT(*), MAX(updated_at) AS last
	          FROM session_turns
	          GROUP BY session_id
	          ORDER BY last DESC, session_id ASC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit == 0 {
		limit = storage.DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	result := []*storage.SessionSummary{}
	for rows.Next() {
		var (
			sum     storage.SessionSummary
			updated int64
		)
		if err := rows.Scan(&sum.ID, &sum.TurnCount, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.UpdatedAt = time.Unix(0, updated)
		result = append(result, &sum)
	}

	return result, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
