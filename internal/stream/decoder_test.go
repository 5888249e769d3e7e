package stream

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	tests := []struct {
		name     string
		frame    string
		wantOK   bool
		wantKind domain.EventKind
	}{
		{
			name:     "progress",
			frame:    `data: {"type":"inference_step","step":"search","label":"Searching catalog","status":"active"}`,
			wantOK:   true,
			wantKind: domain.EventProgress,
		},
		{
			name:     "final",
			frame:    `data: {"type":"complete","response":{"content_text":"done"}}`,
			wantOK:   true,
			wantKind: domain.EventFinal,
		},
		{
			name:     "session sync",
			frame:    `data: {"type":"session_state","session_state":{"nodes":3}}`,
			wantOK:   true,
			wantKind: domain.EventSessionSync,
		},
		{
			name:     "fatal with error string",
			frame:    `data: {"error":"backend exploded"}`,
			wantOK:   true,
			wantKind: domain.EventFatal,
		},
		{
			name:     "fatal by type",
			frame:    `data: {"type":"error","detail":"quota"}`,
			wantOK:   true,
			wantKind: domain.EventFatal,
		},
		{
			name:     "progress wins over final",
			frame:    `data: {"step":"s","status":"done","response":{"content_text":"x"}}`,
			wantOK:   true,
			wantKind: domain.EventProgress,
		},
		{
			name:     "final wins over session sync and error",
			frame:    `data: {"response":"plain","session_state":{},"error":"x"}`,
			wantOK:   true,
			wantKind: domain.EventFinal,
		},
		{
			name:   "session state with step id is not session sync",
			frame:  `data: {"step":"s","session_state":{"a":1}}`,
			wantOK: false,
		},
		{
			name:   "malformed json",
			frame:  `data: {"step":"s","status":`,
			wantOK: false,
		},
		{
			name:   "unrecognised shape",
			frame:  `data: {"type":"ping"}`,
			wantOK: false,
		},
		{
			name:   "comment only",
			frame:  `: keep-alive`,
			wantOK: false,
		},
		{
			name:   "done sentinel",
			frame:  `data: [DONE]`,
			wantOK: false,
		},
		{
			name:   "empty error is not fatal",
			frame:  `data: {"error":""}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := d.Decode(tt.frame)
			if ok != tt.wantOK {
				t.Fatalf("Decode() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && ev.Kind != tt.wantKind {
				t.Errorf("Decode() kind = %v, want %v", ev.Kind, tt.wantKind)
			}
		})
	}
}

func TestDecoder_ProgressFields(t *testing.T) {
	d := NewDecoder(nil)
	ev, ok := d.Decode(`data: {"step":"s1","status":"completed","detail":"3 hits","data":{"hits":3}}`)
	if !ok {
		t.Fatal("Decode() dropped a valid progress frame")
	}
	p := ev.Progress
	if p.StepID != "s1" || p.Label != "s1" || p.Status != domain.StepDone || p.Detail != "3 hits" {
		t.Errorf("progress = %+v", p)
	}
	if string(p.Data) != `{"hits":3}` {
		t.Errorf("data = %s", p.Data)
	}
}

func TestDecoder_FinalFields(t *testing.T) {
	d := NewDecoder(nil)
	frame := `data: {"response":{"content_text":"answer","clarification_needed":true,` +
		`"graph_traversals":[{"nodes_visited":["A","B"],"path_description":"A → B","layer":1}]},` +
		`"locked_context":{"material":"FZ","dimensions":[[600,600]]},"technical_state":{"k":"v"}}`

	ev, ok := d.Decode(frame)
	if !ok || ev.Kind != domain.EventFinal {
		t.Fatalf("Decode() = %+v, %v", ev, ok)
	}
	f := ev.Final
	if f.Answer.ContentText != "answer" || !f.Answer.ClarificationNeeded {
		t.Errorf("answer = %+v", f.Answer)
	}
	if len(f.Answer.Traversals) != 1 || f.Answer.Traversals[0].Layer != 1 {
		t.Errorf("traversals = %+v", f.Answer.Traversals)
	}
	if f.Locked == nil || f.Locked.Material == nil || *f.Locked.Material != "FZ" {
		t.Fatalf("locked = %+v", f.Locked)
	}
	if f.Locked.Project != nil {
		t.Errorf("project should be absent, got %q", *f.Locked.Project)
	}
	if string(f.TechnicalState) != `{"k":"v"}` {
		t.Errorf("technical state = %s", f.TechnicalState)
	}
}

func TestDecoder_FatalFromErrorObject(t *testing.T) {
	ev, ok := NewDecoder(nil).Decode(`data: {"error":{"message":"upstream timeout"}}`)
	if !ok || ev.Fatal != "upstream timeout" {
		t.Errorf("Decode() = %+v, %v", ev, ok)
	}
}

func TestDecoder_LogsDrops(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if _, ok := NewDecoder(logger).Decode(`data: not json`); ok {
		t.Fatal("Decode() accepted malformed frame")
	}
	if !strings.Contains(buf.String(), "dropping stream frame") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestPayloadOf(t *testing.T) {
	tests := []struct {
		frame  string
		want   string
		wantOK bool
	}{
		{"data: {\"a\":1}", `{"a":1}`, true},
		{"data:{\"a\":1}", `{"a":1}`, true},
		{"event: x\nid: 4\ndata: {\"a\":\ndata: 1}", "{\"a\":\n1}", true},
		{"{\"bare\":true}", `{"bare":true}`, true},
		{"event: ping", "", false},
		{"data: ", "", false},
	}

	for _, tt := range tests {
		got, ok := PayloadOf(tt.frame)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("PayloadOf(%q) = %q, %v; want %q, %v", tt.frame, got, ok, tt.want, tt.wantOK)
		}
	}
}
