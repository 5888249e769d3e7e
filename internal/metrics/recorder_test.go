package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	r.ObserveFrame(OutcomeDecoded)
	r.ObserveFrame(OutcomeDecoded)
	r.ObserveFrame(OutcomeDropped)
	r.ObserveTurn(OutcomeOK, 2*time.Second)
	r.ObserveBackground(OutcomeDiscarded)
	r.ObserveRating(OutcomeReverted)
	r.ObserveRequest("/api/session/rating", 204)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"frames decoded", r.frames.WithLabelValues(OutcomeDecoded), 2},
		{"frames dropped", r.frames.WithLabelValues(OutcomeDropped), 1},
		{"turns ok", r.turns.WithLabelValues(OutcomeOK), 1},
		{"background discarded", r.background.WithLabelValues(OutcomeDiscarded), 1},
		{"ratings reverted", r.ratings.WithLabelValues(OutcomeReverted), 1},
		{"requests", r.httpRequests.WithLabelValues("/api/session/rating", "204"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(r.turnDuration); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}
}

func TestRecorder_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRecorder(reg); err != nil {
		t.Errorf("second NewRecorder() error = %v", err)
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.ObserveFrame(OutcomeDecoded)
	r.ObserveTurn(OutcomeError, time.Second)
	r.ObserveBackground(OutcomeOK)
	r.ObserveRating(OutcomeOK)
	r.ObserveRequest("/", 200)
}
