package session

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/piotrzwolinski/synapseos-sub000/internal/correlate"
	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// tracedEvaluator wraps each background evaluation in a span.
type tracedEvaluator struct {
	next   correlate.Evaluator
	tracer trace.Tracer
}

func (e *tracedEvaluator) Evaluate(ctx context.Context, req *domain.EvaluationRequest) (domain.JudgeResults, error) {
	ctx, span := e.tracer.Start(ctx, "session.evaluate", trace.WithAttributes(
		attribute.Int("evaluate.history_entries", len(req.ResponseData.ConversationHistory)),
	))
	defer span.End()

	results, err := e.next.Evaluate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.StringSlice("evaluate.providers", results.Providers()))
	return results, nil
}

// evaluationRequest builds the judge payload of a finished turn. The history
// holds every successful message before the answer, trimmed to the token budget.
func (c *Controller) evaluationRequest(question string, answer *domain.Answer, steps []domain.StepRecord) *domain.EvaluationRequest {
	msgs := c.history.Messages()
	// The answer under evaluation is the last message; it goes in content_text.
	if n := len(msgs); n > 0 && msgs[n-1].Role == domain.RoleAssistant {
		msgs = msgs[:n-1]
	}

	history := make([]domain.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		if m.IsError {
			continue
		}
		history = append(history, domain.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	if c.counter != nil {
		history = c.counter.TrimHistory(history, c.historyBudget)
	}

	return &domain.EvaluationRequest{
		Question: question,
		ResponseData: domain.ResponseData{
			ConversationHistory: history,
			ContentText:         answer.ContentText,
			ProductCard:         answer.ProductCard,
			ProductCards:        answer.ProductCards,
			ClarificationNeeded: answer.ClarificationNeeded,
			GraphReport:         answer.GraphReport,
			InferenceSteps:      steps,
		},
	}
}
