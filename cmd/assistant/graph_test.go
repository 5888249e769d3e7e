package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/piotrzwolinski/synapseos-sub000/internal/graph"
)

const traversalList = `[
  {"nodes_visited": ["Material: FZ"], "path_description": "Material: FZ ──REQUIRES──▶ Frame: F1", "layer": 1, "operation": "lookup"},
  {"nodes_visited": ["Frame: F1"], "layer": 2, "operation": "check", "result_summary": "constraint violation on depth"}
]`

func TestParseTraversals(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"list", traversalList, 2, false},
		{"answer object", `{"content_text": "ok", "graph_traversals": ` + traversalList + `}`, 2, false},
		{"answer without traversals", `{"content_text": "ok"}`, 0, false},
		{"malformed list", `[{"nodes_visited": 3}]`, 0, true},
		{"not json", `nope`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTraversals([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTraversals() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("parseTraversals() = %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func TestWriteGraph(t *testing.T) {
	records, err := parseTraversals([]byte(traversalList))
	if err != nil {
		t.Fatal(err)
	}
	g := graph.Transform(records)

	t.Run("text summary", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeGraph(&buf, g, -1, "text"); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"2 nodes, 1 links, 2 steps", "fz --REQUIRES--> f1"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("text playback", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeGraph(&buf, g, 1, "text"); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"step 2/2", "VIOLATION", "[active] Frame: F1", "[visited] Material: FZ", "1 active, 1 visited"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("json playback", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeGraph(&buf, g, 0, "json"); err != nil {
			t.Fatal(err)
		}
		var pb graph.Playback
		if err := json.Unmarshal(buf.Bytes(), &pb); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if pb.Step != 0 || graph.Count(pb.Nodes, graph.StateActive) != 1 {
			t.Errorf("playback = %+v", pb)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := writeGraph(&bytes.Buffer{}, g, -1, "yaml"); err == nil {
			t.Error("expected error")
		}
	})
}
