package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/graph"
	"github.com/piotrzwolinski/synapseos-sub000/internal/storage"
)

// Handler serves the /api routes.
type Handler struct {
	store  storage.SessionStore
	logger *slog.Logger
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/session/judge-results", h.saveJudgeResults)
	r.Post("/session/rating", h.saveRating)
	r.Get("/session/{id}", h.getSession)
	r.Get("/sessions", h.listSessions)

	r.Post("/graph/transform", h.transformGraph)
	r.Post("/graph/playback", h.playbackGraph)
}

type judgeResultsRequest struct {
	SessionID    string              `json:"session_id" validate:"required"`
	TurnNumber   int                 `json:"turn_number" validate:"gte=1"`
	JudgeResults domain.JudgeResults `json:"judge_results" validate:"required"`
}

type ratingRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	TurnNumber int    `json:"turn_number" validate:"gte=1"`
	Rating     int    `json:"rating" validate:"gte=1,lte=5"`
}

type traversalsRequest struct {
	Traversals []domain.TraversalRecord `json:"traversals"`
}

func (h *Handler) saveJudgeResults(w http.ResponseWriter, r *http.Request) {
	var req judgeResultsRequest
	if err := decodeBody(w, r, &req); err != nil {
		AddError(r.Context(), err)
		writeError(w, err)
		return
	}

	// Providers outside the evaluation set are not stored.
	results := make(domain.JudgeResults, len(req.JudgeResults))
	for _, p := range domain.JudgeProviders {
		if score := req.JudgeResults[p]; score != nil {
			results[p] = score
		}
	}

	rec := &domain.JudgeResultsRecord{SessionID: req.SessionID, TurnNumber: req.TurnNumber, JudgeResults: results}
	if err := h.store.SaveJudgeResults(r.Context(), rec); err != nil {
		h.storeFailure(w, r, err)
		return
	}

	AddLogField(r.Context(), "session_id", req.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "providers": results.Providers()})
}

func (h *Handler) saveRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeBody(w, r, &req); err != nil {
		AddError(r.Context(), err)
		writeError(w, err)
		return
	}

	rec := &domain.RatingRecord{SessionID: req.SessionID, TurnNumber: req.TurnNumber, Rating: req.Rating}
	if err := h.store.SaveRating(r.Context(), rec); err != nil {
		h.storeFailure(w, r, err)
		return
	}

	AddLogField(r.Context(), "session_id", req.SessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := h.store.GetSession(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, domain.ErrNotFound("session "+id+" not found"))
		return
	}
	if err != nil {
		h.storeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	var opts storage.ListOptions
	params := []struct {
		name string
		dst  *int
	}{
		{"limit", &opts.Limit},
		{"offset", &opts.Offset},
	}
	for _, p := range params {
		name, dst := p.name, p.dst
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, domain.ErrInvalidRequest(name+" must be a non-negative integer"))
			return
		}
		*dst = n
	}

	sessions, err := h.store.ListSessions(r.Context(), opts)
	if err != nil {
		h.storeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) transformGraph(w http.ResponseWriter, r *http.Request) {
	var req traversalsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph.Transform(req.Traversals))
}

// playbackGraph transforms the traversals and returns element states at the
// step given by the "step" query parameter. The default is 0; a negative step
// reports every element inactive and a step past the end reports the last step.
func (h *Handler) playbackGraph(w http.ResponseWriter, r *http.Request) {
	step := 0
	if raw := r.URL.Query().Get("step"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.ErrInvalidRequest("step must be an integer"))
			return
		}
		step = n
	}

	var req traversalsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph.Transform(req.Traversals).Playback(step))
}

func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	h.logger.Error("storage failure",
		slog.String("request_id", GetRequestID(r.Context())),
		slog.String("error", err.Error()),
	)
	writeError(w, domain.ErrServer("storage failure"))
}
