// Package metrics exports session and service counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "synapse"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeDecoded   = "decoded"
	OutcomeDropped   = "dropped"
	OutcomeDiscarded = "discarded"
	OutcomeReverted  = "reverted"
)

// Recorder holds the session metrics. The zero value is not usable; a nil
// *Recorder records nothing.
type Recorder struct {
	frames       *prometheus.CounterVec
	turns        *prometheus.CounterVec
	background   *prometheus.CounterVec
	ratings      *prometheus.CounterVec
	turnDuration prometheus.Histogram
	httpRequests *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Stream frames by decode outcome.",
		}, []string{"outcome"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by outcome.",
		}, []string{"outcome"}),
		background: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_total",
			Help:      "Background evaluations by outcome.",
		}, []string{"outcome"}),
		ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_total",
			Help:      "Rating persistence attempts by outcome.",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time from submit to the end of the turn stream.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served by the persistence service.",
		}, []string{"route", "code"}),
	}

	var err error
	if r.frames, err = register(reg, r.frames); err != nil {
		return nil, err
	}
	if r.turns, err = register(reg, r.turns); err != nil {
		return nil, err
	}
	if r.background, err = register(reg, r.background); err != nil {
		return nil, err
	}
	if r.ratings, err = register(reg, r.ratings); err != nil {
		return nil, err
	}
	if r.turnDuration, err = register(reg, r.turnDuration); err != nil {
		return nil, err
	}
	if r.httpRequests, err = register(reg, r.httpRequests); err != nil {
		return nil, err
	}
	return r, nil
}

// register registers c, or returns the collector already registered under the
// same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("failed to register metric: %w", err)
	}
	return c, nil
}

// ObserveFrame counts one decoded or dropped frame.
func (r *Recorder) ObserveFrame(outcome string) {
	if r == nil {
		return
	}
	r.frames.WithLabelValues(outcome).Inc()
}

// ObserveTurn counts one turn and records its duration.
func (r *Recorder) ObserveTurn(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.turns.WithLabelValues(outcome).Inc()
	r.turnDuration.Observe(d.Seconds())
}

// ObserveBackground counts one settled background evaluation.
func (r *Recorder) ObserveBackground(outcome string) {
	if r == nil {
		return
	}
	r.background.WithLabelValues(outcome).Inc()
}

// ObserveRating counts one rating persistence attempt.
func (r *Recorder) ObserveRating(outcome string) {
	if r == nil {
		return
	}
	r.ratings.WithLabelValues(outcome).Inc()
}

// ObserveRequest counts one served HTTP request.
func (r *Recorder) ObserveRequest(route string, code int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, fmt.Sprint(code)).Inc()
}
