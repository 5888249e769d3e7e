package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/piotrzwolinski/synapseos-sub000/internal/metrics"
)

func TestRequestIDMiddleware(t *testing.T) {
	var capturedID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = GetRequestID(r.Context())
	})

	wrapped := RequestIDMiddleware(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if capturedID == "" {
		t.Error("Request ID not set in context")
	}
	if rec.Header().Get("X-Request-ID") != capturedID {
		t.Errorf("X-Request-ID header = %q, want %q", rec.Header().Get("X-Request-ID"), capturedID)
	}
}

func TestRequestIDMiddleware_IncomingHeader(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"uuid kept", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"garbage replaced", "not-a-uuid", false},
		{"empty replaced", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			RequestIDMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if (got == tt.incoming) != tt.keep {
				t.Errorf("X-Request-ID = %q, incoming %q, keep %v", got, tt.incoming, tt.keep)
			}
			if got == "" {
				t.Error("no request id assigned")
			}
		})
	}
}

func TestGetRequestID_NotSet(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	wrapped := AuthMiddleware("secret")(handler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer secret", http.StatusNoContent},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"no bearer prefix", "secret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/session/rating", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"authentication"`) {
				t.Errorf("body = %s, want authentication error", rec.Body.String())
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, recorder))
	r.Get("/api/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "session_id", chi.URLParam(r, "id"))
		AddError(r.Context(), errors.New("boom"))
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/session/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	out := buf.String()
	for _, want := range []string{`"status":418`, `"route":"/api/session/{id}"`, `"session_id":"abc"`, `"error":"boom"`, `"request_id":"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s:\n%s", want, out)
		}
	}

	expected := `
# HELP synapse_http_requests_total Requests served by the persistence service.
# TYPE synapse_http_requests_total counter
synapse_http_requests_total{code="418",route="/api/session/{id}"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "synapse_http_requests_total"); err != nil {
		t.Error(err)
	}
}

func TestAddLogField_EmptyValue(t *testing.T) {
	fields := map[string]string{}
	ctx := context.WithValue(context.Background(), logFieldsKey{}, fields)

	AddLogField(ctx, "key", "")
	AddError(ctx, nil)

	if len(fields) != 0 {
		t.Errorf("fields = %v, want empty", fields)
	}
}

func TestAddLogField_NoContext(t *testing.T) {
	// Should not panic
	AddLogField(context.Background(), "key", "value")
}
