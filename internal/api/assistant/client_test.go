package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/testutil"
)

func staticToken(tok string) func() string {
	return func() string { return tok }
}

func TestClient_StreamTurn(t *testing.T) {
	var gotReq TurnRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"step\":\"a\",\"status\":\"active\"}\n\n")
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL+"/"), WithTokenSource(staticToken("tok")))
	body, err := c.StreamTurn(context.Background(), &TurnRequest{Query: "hello", SessionID: "s1"})
	if err != nil {
		t.Fatalf("StreamTurn() error = %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), `"step":"a"`) {
		t.Errorf("body = %q", data)
	}
	if gotReq.Query != "hello" || gotReq.SessionID != "s1" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("Authorization header sent without a token")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithTokenSource(staticToken("")))
	if err := c.SaveRating(context.Background(), &domain.RatingRecord{SessionID: "s", TurnNumber: 1, Rating: 3}); err != nil {
		t.Fatalf("SaveRating() error = %v", err)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType domain.ErrorType
		wantMsg  string
	}{
		{
			name:     "error object",
			status:   http.StatusBadRequest,
			body:     `{"error":{"type":"invalid_request","message":"query is required"}}`,
			wantType: domain.ErrorTypeInvalidRequest,
			wantMsg:  "query is required",
		},
		{
			name:     "detail string",
			status:   http.StatusUnauthorized,
			body:     `{"detail":"Not authenticated"}`,
			wantType: domain.ErrorTypeAuthentication,
			wantMsg:  "Not authenticated",
		},
		{
			name:     "detail object",
			status:   http.StatusUnprocessableEntity,
			body:     `{"detail":[{"loc":["body","query"]}]}`,
			wantType: domain.ErrorTypeInvalidRequest,
			wantMsg:  `[{"loc":["body","query"]}]`,
		},
		{
			name:     "plain text",
			status:   http.StatusBadGateway,
			body:     "upstream down",
			wantType: domain.ErrorTypeServer,
			wantMsg:  "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			c := NewClient(WithBaseURL(server.URL))
			_, err := c.StreamTurn(context.Background(), &TurnRequest{Query: "q"})

			var apiErr *domain.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *domain.APIError", err)
			}
			if apiErr.Type != tt.wantType || apiErr.Message != tt.wantMsg || apiErr.HTTPStatusCode() != tt.status {
				t.Errorf("error = %+v", apiErr)
			}
		})
	}
}

func TestClient_SaveJudgeResults(t *testing.T) {
	var got domain.JudgeResultsRecord
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session/judge-results" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	rec := &domain.JudgeResultsRecord{
		SessionID:    "s1",
		TurnNumber:   2,
		JudgeResults: domain.JudgeResults{"openai": {OverallScore: 3.5}},
	}
	if err := c.SaveJudgeResults(context.Background(), rec); err != nil {
		t.Fatalf("SaveJudgeResults() error = %v", err)
	}
	if got.SessionID != "s1" || got.TurnNumber != 2 || got.JudgeResults["openai"].OverallScore != 3.5 {
		t.Errorf("sent = %+v", got)
	}
}

func TestClient_Evaluate(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "judge_evaluate")
	defer cleanup()

	c := NewClient(
		WithBaseURL("http://assistant.test"),
		WithHTTPClient(testutil.VCRHTTPClient(recorder)),
		WithTokenSource(staticToken("test-token")),
	)

	req := &domain.EvaluationRequest{
		Question: "Which door fits a 600x600 opening?",
		ResponseData: domain.ResponseData{
			ConversationHistory: []domain.HistoryEntry{{Role: domain.RoleUser, Content: "Which door fits a 600x600 opening?"}},
			ContentText:         "The FZ-600 fits.",
			InferenceSteps:      []domain.StepRecord{{ID: "search", Label: "Searching catalog", Status: domain.StepDone}},
		},
	}

	results, err := c.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if got := results.Providers(); len(got) != 2 || got[0] != "openai" || got[1] != "anthropic" {
		t.Errorf("providers = %v, want [openai anthropic]", got)
	}
	openai := results["openai"]
	if openai.OverallScore != 4.2 || openai.Recommendation != "APPROVE" {
		t.Errorf("openai = %+v", openai)
	}
	if openai.Usage == nil || openai.Usage.InputTokens != 812 {
		t.Errorf("usage = %+v", openai.Usage)
	}
	if _, ok := results["mistral"]; ok {
		t.Error("unknown provider kept")
	}

	if err := c.SaveRating(context.Background(), &domain.RatingRecord{SessionID: "sess-1", TurnNumber: 1, Rating: 4}); err != nil {
		t.Errorf("SaveRating() error = %v", err)
	}
}
