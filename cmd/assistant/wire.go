package main

import (
	"log/slog"

	"github.com/piotrzwolinski/synapseos-sub000/internal/api/assistant"
	"github.com/piotrzwolinski/synapseos-sub000/internal/config"
	"github.com/piotrzwolinski/synapseos-sub000/internal/session"
	"github.com/piotrzwolinski/synapseos-sub000/internal/tokens"
)

// newController wires the client, session state and controller from cfg.
func newController(cfg *config.Config, logger *slog.Logger, observer session.Observer) *session.Controller {
	state := session.NewState(cfg.Client.AuthToken)

	client := assistant.NewClient(
		assistant.WithBaseURL(cfg.Client.BaseURL),
		assistant.WithTimeout(cfg.Client.Timeout),
		assistant.WithTokenSource(state.AuthToken),
		assistant.WithLogger(logger),
	)

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithObserver(observer),
		session.WithStores(client, client),
	}

	if cfg.Judge.Enabled {
		opts = append(opts, session.WithEvaluator(client, cfg.Judge.Timeout))

		counter, err := tokens.NewCounter(tokens.DefaultEncoding)
		if err != nil {
			logger.Warn("tokenizer unavailable, estimating history size", slog.String("error", err.Error()))
			counter = tokens.NewEstimator()
		}
		opts = append(opts, session.WithHistoryBudget(counter, cfg.Judge.MaxHistoryTokens))
	}

	return session.NewController(state, client, opts...)
}
