// Package session drives one assistant session: it sends each turn with the
// merged context, consumes the event stream, keeps the step ledger and visible
// history, and hands finished turns to background evaluation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/piotrzwolinski/synapseos-sub000/internal/api/assistant"
	"github.com/piotrzwolinski/synapseos-sub000/internal/correlate"
	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/graph"
	"github.com/piotrzwolinski/synapseos-sub000/internal/ledger"
	"github.com/piotrzwolinski/synapseos-sub000/internal/metrics"
	"github.com/piotrzwolinski/synapseos-sub000/internal/stream"
	"github.com/piotrzwolinski/synapseos-sub000/internal/tokens"
	"github.com/piotrzwolinski/synapseos-sub000/internal/turncontext"
)

const tracerName = "github.com/piotrzwolinski/synapseos-sub000/internal/session"

// Streamer opens the event stream of a turn.
type Streamer interface {
	StreamTurn(ctx context.Context, req *assistant.TurnRequest) (io.ReadCloser, error)
}

// Metrics records session outcomes. *metrics.Recorder implements it.
type Metrics interface {
	ObserveFrame(outcome string)
	ObserveTurn(outcome string, d time.Duration)
	ObserveBackground(outcome string)
	ObserveRating(outcome string)
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	Question      domain.Message
	Message       domain.Message
	Steps         []domain.StepRecord
	Graph         *graph.Graph
	CorrelationID string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithObserver sets the observer notified of session updates.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithTracer sets the tracer. The global tracer provider is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = t
	}
}

// WithEvaluator enables background evaluation of finished turns.
func WithEvaluator(e correlate.Evaluator, timeout time.Duration) Option {
	return func(c *Controller) {
		c.evaluator = e
		c.evalTimeout = timeout
	}
}

// WithStores sets where judge results and ratings are persisted. Either may be nil.
func WithStores(results correlate.JudgeResultsStore, ratings correlate.RatingStore) Option {
	return func(c *Controller) {
		c.results = results
		c.ratings = ratings
	}
}

// WithHistoryBudget trims the evaluation history to budget tokens counted by counter.
func WithHistoryBudget(counter *tokens.Counter, budget int) Option {
	return func(c *Controller) {
		c.counter = counter
		c.historyBudget = budget
	}
}

// WithIDGenerator replaces the message and correlation id source.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.newID = fn
	}
}

// Controller runs the turns of one session. At most one turn is in flight.
type Controller struct {
	state    *State
	streamer Streamer

	evaluator     correlate.Evaluator
	evalTimeout   time.Duration
	results       correlate.JudgeResultsStore
	ratings       correlate.RatingStore
	counter       *tokens.Counter
	historyBudget int

	logger   *slog.Logger
	observer Observer
	metrics  Metrics
	tracer   trace.Tracer
	newID    func() string

	decoder    *stream.Decoder
	history    *correlate.History
	registry   *correlate.Registry
	correlator *correlate.Correlator

	inFlight atomic.Bool

	// mu guards the per-turn and per-session state below.
	mu          sync.Mutex
	ledger      *ledger.Ledger
	context     *turncontext.State
	sessionSync json.RawMessage
	turn        int
}

// NewController creates a controller for the session identified by state.
func NewController(state *State, streamer Streamer, opts ...Option) *Controller {
	c := &Controller{
		state:    state,
		streamer: streamer,
		logger:   slog.Default(),
		observer: ObserverFuncs{},
		metrics:  (*metrics.Recorder)(nil),
		newID:    uuid.NewString,
		history:  correlate.NewHistory(),
		registry: correlate.NewRegistry(),
		ledger:   ledger.New(),
		context:  turncontext.NewState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	c.decoder = stream.NewDecoder(c.logger)

	var evaluator correlate.Evaluator
	if c.evaluator != nil {
		evaluator = &tracedEvaluator{next: c.evaluator, tracer: c.tracer}
	}
	c.correlator = correlate.NewCorrelator(c.history, c.registry, evaluator,
		correlate.WithLogger(c.logger),
		correlate.WithTimeout(c.evalTimeout),
		correlate.WithIDGenerator(c.newID),
		correlate.WithJudgeResultsStore(c.results),
		correlate.WithRatingStore(c.ratings),
		correlate.WithSettleHook(c.onSettle),
		correlate.WithRatingHook(c.onRating),
	)
	return c
}

// Submit runs one turn for input and blocks until its stream ends. A turn that
// fails still appends an error message to the history and returns the error.
func (c *Controller) Submit(ctx context.Context, input string) (*TurnResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, domain.ErrInvalidRequest("query is empty")
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, domain.ErrTurnInFlight
	}
	defer c.inFlight.Store(false)

	start := time.Now()
	sessionID := c.state.SessionID()

	ctx, span := c.tracer.Start(ctx, "session.turn", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	question := domain.Message{ID: c.newID(), Role: domain.RoleUser, Content: input}
	c.history.Append(question)

	c.mu.Lock()
	c.ledger.Reset()
	payload := c.context.Payload(input)
	c.mu.Unlock()

	t := &turn{c: c, span: span, start: start, sessionID: sessionID, question: question}

	body, err := c.streamer.StreamTurn(ctx, &assistant.TurnRequest{Query: payload, SessionID: sessionID})
	if err != nil {
		return nil, t.fail(err)
	}
	// Closing the body unblocks the frame reader when the turn ends before EOF.
	defer body.Close()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for res := range stream.ReadFrames(streamCtx, body) {
		if res.Err != nil {
			return nil, t.fail(res.Err)
		}

		ev, ok := c.decoder.Decode(res.Frame)
		if !ok {
			c.metrics.ObserveFrame(metrics.OutcomeDropped)
			continue
		}
		c.metrics.ObserveFrame(metrics.OutcomeDecoded)

		switch ev.Kind {
		case domain.EventProgress:
			c.mu.Lock()
			c.ledger.Upsert(*ev.Progress)
			steps := c.ledger.Snapshot()
			c.mu.Unlock()
			c.observer.OnStep(steps)

		case domain.EventSessionSync:
			c.mu.Lock()
			c.sessionSync = slices.Clone(ev.SessionSync)
			c.mu.Unlock()
			c.observer.OnSessionSync(ev.SessionSync)

		case domain.EventFinal:
			return t.finish(ev.Final), nil

		case domain.EventFatal:
			return nil, t.fail(&domain.TurnError{Message: ev.Fatal})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, t.fail(err)
	}
	return nil, t.fail(domain.ErrStreamIncomplete)
}

// turn carries the bookkeeping of one Submit call.
type turn struct {
	c         *Controller
	span      trace.Span
	start     time.Time
	sessionID string
	question  domain.Message
}

func (t *turn) fail(err error) error {
	c := t.c

	content := err.Error()
	var turnErr *domain.TurnError
	if errors.As(err, &turnErr) {
		content = turnErr.Message
	}
	c.history.Append(domain.Message{
		ID:      c.newID(),
		Role:    domain.RoleAssistant,
		Content: content,
		IsError: true,
	})

	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
	c.metrics.ObserveTurn(metrics.OutcomeError, time.Since(t.start))
	c.logger.Warn("turn failed",
		slog.String("session_id", t.sessionID),
		slog.Duration("elapsed", time.Since(t.start)),
		slog.String("error", err.Error()))

	c.observer.OnError(err)
	return err
}

func (t *turn) finish(final *domain.FinalEvent) *TurnResult {
	c := t.c

	c.mu.Lock()
	c.ledger.Finalize()
	steps := c.ledger.Snapshot()
	c.context.Apply(final)
	c.turn++
	turnNumber := c.turn
	c.mu.Unlock()

	answer := final.Answer
	msg := domain.Message{
		ID:         c.newID(),
		Role:       domain.RoleAssistant,
		Content:    answer.ContentText,
		TurnNumber: turnNumber,
		Answer:     &answer,
		Steps:      steps,
	}
	c.history.Append(msg)

	result := &TurnResult{Question: t.question, Message: msg, Steps: steps}
	if len(answer.Traversals) > 0 {
		result.Graph = graph.Transform(answer.Traversals)
	}

	if c.evaluator != nil {
		req := c.evaluationRequest(t.question.Content, &answer, steps)
		result.CorrelationID = c.correlator.Begin(t.sessionID, msg.ID, req)
		if updated, ok := c.history.Get(msg.ID); ok {
			result.Message = updated
		}
	}

	t.span.SetAttributes(
		attribute.Int("turn.number", turnNumber),
		attribute.Int("turn.steps", len(steps)),
	)
	t.span.SetStatus(codes.Ok, "")
	c.metrics.ObserveTurn(metrics.OutcomeOK, time.Since(t.start))
	c.logger.Info("turn finished",
		slog.String("session_id", t.sessionID),
		slog.Int("turn_number", turnNumber),
		slog.Int("steps", len(steps)),
		slog.Duration("elapsed", time.Since(t.start)))

	c.observer.OnFinal(result)
	return result
}

// Rate records a 1..5 quality rating on the background result of message msgID.
// The rating shows immediately and is rolled back if it cannot be saved.
func (c *Controller) Rate(ctx context.Context, msgID string, rating int) error {
	return c.correlator.Rate(ctx, c.state.SessionID(), msgID, rating)
}

// Reset starts a new session: outstanding background evaluations are cancelled,
// and the history, ledger, context and session id are dropped. It fails with
// domain.ErrTurnInFlight while a turn streams.
func (c *Controller) Reset() error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return domain.ErrTurnInFlight
	}
	defer c.inFlight.Store(false)

	cancelled := c.correlator.Cancel()
	c.history.Clear()

	c.mu.Lock()
	c.ledger.Reset()
	c.context.Reset()
	c.sessionSync = nil
	c.turn = 0
	c.mu.Unlock()

	c.state.Reset()
	c.logger.Info("session reset", slog.Int("cancelled_evaluations", cancelled))
	return nil
}

// Messages returns the visible history.
func (c *Controller) Messages() []domain.Message {
	return c.history.Messages()
}

// Message returns one message of the history.
func (c *Controller) Message(id string) (domain.Message, bool) {
	return c.history.Get(id)
}

// Steps returns the step ledger of the current or last turn.
func (c *Controller) Steps() []domain.StepRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Snapshot()
}

// Locked returns the locked facts carried into the next turn.
func (c *Controller) Locked() turncontext.LockedFacts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.context.Locked()
}

// SessionSync returns the latest session-state snapshot, if any.
func (c *Controller) SessionSync() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionSync
}

// SessionID returns the current session id.
func (c *Controller) SessionID() string {
	return c.state.SessionID()
}

// InFlight reports whether a turn is streaming.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Wait blocks until every background evaluation started so far has settled.
func (c *Controller) Wait() {
	c.correlator.Wait()
}

func (c *Controller) onSettle(s correlate.Settlement) {
	switch {
	case !s.Attached:
		c.metrics.ObserveBackground(metrics.OutcomeDiscarded)
		return
	case s.Err != nil:
		c.metrics.ObserveBackground(metrics.OutcomeError)
	default:
		c.metrics.ObserveBackground(metrics.OutcomeOK)
	}
	if msg, ok := c.history.Get(s.MessageID); ok {
		c.observer.OnBackground(msg, s.Err)
	}
}

func (c *Controller) onRating(err error) {
	if err != nil {
		c.metrics.ObserveRating(metrics.OutcomeReverted)
		return
	}
	c.metrics.ObserveRating(metrics.OutcomeOK)
}
