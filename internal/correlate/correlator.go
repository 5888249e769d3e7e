package correlate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// Evaluator runs the background quality evaluation of a turn.
type Evaluator interface {
	Evaluate(ctx context.Context, req *domain.EvaluationRequest) (domain.JudgeResults, error)
}

// JudgeResultsStore persists evaluation results.
type JudgeResultsStore interface {
	SaveJudgeResults(ctx context.Context, rec *domain.JudgeResultsRecord) error
}

// RatingStore persists user ratings.
type RatingStore interface {
	SaveRating(ctx context.Context, rec *domain.RatingRecord) error
}

// Settlement reports how a background evaluation ended.
type Settlement struct {
	MessageID     string
	CorrelationID string
	Err           error
	// Attached is false when the originating message no longer existed.
	Attached bool
}

// Correlator issues correlation ids for finished turns, runs their background
// evaluation without blocking the turn, and attaches each result to exactly the
// message carrying the matching id.
type Correlator struct {
	history   *History
	registry  *Registry
	evaluator Evaluator
	results   JudgeResultsStore
	ratings   RatingStore
	logger    *slog.Logger
	timeout   time.Duration
	newID     func() string
	onSettle  func(Settlement)
	onRating  func(err error)

	wg sync.WaitGroup
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Correlator) {
		c.logger = logger
	}
}

// WithTimeout bounds each background evaluation.
func WithTimeout(d time.Duration) Option {
	return func(c *Correlator) {
		c.timeout = d
	}
}

// WithJudgeResultsStore persists successful evaluations.
func WithJudgeResultsStore(s JudgeResultsStore) Option {
	return func(c *Correlator) {
		c.results = s
	}
}

// WithRatingStore sets where ratings are persisted.
func WithRatingStore(s RatingStore) Option {
	return func(c *Correlator) {
		c.ratings = s
	}
}

// WithSettleHook is called after every background evaluation ends.
func WithSettleHook(fn func(Settlement)) Option {
	return func(c *Correlator) {
		c.onSettle = fn
	}
}

// WithRatingHook is called after every rating persistence attempt.
func WithRatingHook(fn func(err error)) Option {
	return func(c *Correlator) {
		c.onRating = fn
	}
}

// WithIDGenerator replaces the correlation id source.
func WithIDGenerator(fn func() string) Option {
	return func(c *Correlator) {
		c.newID = fn
	}
}

// NewCorrelator creates a correlator writing into history. evaluator may be nil,
// which disables background evaluation.
func NewCorrelator(history *History, registry *Registry, evaluator Evaluator, opts ...Option) *Correlator {
	c := &Correlator{
		history:   history,
		registry:  registry,
		evaluator: evaluator,
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin attaches a fresh correlation id to the message msgID, marks it pending and
// starts its evaluation in the background. It returns the correlation id, or ""
// when evaluation is disabled or the message does not exist.
func (c *Correlator) Begin(sessionID, msgID string, req *domain.EvaluationRequest) string {
	if c.evaluator == nil {
		return ""
	}

	cid := c.newID()
	if !c.history.ByID().Update(msgID, func(m *domain.Message) { m.CorrelationID = cid }) {
		return ""
	}

	var results domain.JudgeResults
	pending, ok := Apply(c.history.ByCorrelation(), cid, Op[domain.Message]{
		Apply: func(m *domain.Message) {
			m.BackgroundPending = true
			m.BackgroundResult = nil
		},
		Settle: func(m *domain.Message) {
			m.BackgroundPending = false
			m.BackgroundResult = results
		},
		Revert: func(m *domain.Message) {
			m.BackgroundPending = false
		},
	})
	if !ok {
		return ""
	}

	// The evaluation outlives the turn that started it, so it hangs off a fresh
	// context rather than the request context.
	parent := context.Background()
	var cancelTimeout context.CancelFunc
	if c.timeout > 0 {
		parent, cancelTimeout = context.WithTimeout(parent, c.timeout)
	}
	ctx, release := c.registry.Register(parent, cid)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer release()
		if cancelTimeout != nil {
			defer cancelTimeout()
		}

		res, err := c.evaluator.Evaluate(ctx, req)
		if err == nil {
			results = res
		} else if ctx.Err() != nil && !isDeadline(ctx) {
			err = fmt.Errorf("evaluation cancelled: %w", err)
		}

		attached := pending.Resolve(err)
		c.logSettlement(msgID, cid, err, attached)

		if err == nil && attached {
			c.persistResults(ctx, sessionID, cid, results)
		}
		if c.onSettle != nil {
			c.onSettle(Settlement{MessageID: msgID, CorrelationID: cid, Err: err, Attached: attached})
		}
	}()

	return cid
}

func isDeadline(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func (c *Correlator) logSettlement(msgID, cid string, err error, attached bool) {
	switch {
	case !attached:
		c.logger.Debug("background result discarded, message gone",
			slog.String("message_id", msgID),
			slog.String("correlation_id", cid))
	case err != nil:
		c.logger.Warn("background evaluation failed",
			slog.String("message_id", msgID),
			slog.String("correlation_id", cid),
			slog.String("error", err.Error()))
	default:
		c.logger.Debug("background evaluation attached",
			slog.String("message_id", msgID),
			slog.String("correlation_id", cid))
	}
}

func (c *Correlator) persistResults(ctx context.Context, sessionID, cid string, results domain.JudgeResults) {
	if c.results == nil {
		return
	}
	var turn int
	c.history.ByCorrelation().Update(cid, func(m *domain.Message) { turn = m.TurnNumber })

	rec := &domain.JudgeResultsRecord{SessionID: sessionID, TurnNumber: turn, JudgeResults: results}
	if err := c.results.SaveJudgeResults(ctx, rec); err != nil {
		c.logger.Warn("failed to persist judge results",
			slog.String("correlation_id", cid),
			slog.Int("turn_number", turn),
			slog.String("error", err.Error()))
	}
}

// Rate applies rating to the background result of message msgID immediately and
// persists it. If persistence fails the previous rating is restored and the error
// is returned.
func (c *Correlator) Rate(ctx context.Context, sessionID, msgID string, rating int) error {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return domain.ErrInvalidRating
	}
	msg, ok := c.history.Get(msgID)
	if !ok {
		return domain.ErrMessageNotFound
	}
	if msg.BackgroundResult == nil {
		return domain.ErrNoBackgroundResult
	}

	var prior int
	op := Op[domain.Message]{
		Apply:  func(m *domain.Message) { prior, m.Rating = m.Rating, rating },
		Revert: func(m *domain.Message) { m.Rating = prior },
	}
	commit := func(ctx context.Context) error {
		if c.ratings == nil {
			return nil
		}
		return c.ratings.SaveRating(ctx, &domain.RatingRecord{
			SessionID:  sessionID,
			TurnNumber: msg.TurnNumber,
			Rating:     rating,
		})
	}

	err := Run(ctx, c.history.ByID(), msgID, op, commit, domain.ErrMessageNotFound)
	if c.onRating != nil {
		c.onRating(err)
	}
	if err != nil {
		c.logger.Warn("rating not saved, reverted",
			slog.String("message_id", msgID),
			slog.Int("rating", rating),
			slog.Int("restored", prior),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// Cancel aborts every outstanding background evaluation.
func (c *Correlator) Cancel() int {
	return c.registry.CancelAll()
}

// Wait blocks until every background evaluation started so far has settled.
func (c *Correlator) Wait() {
	c.wg.Wait()
}
