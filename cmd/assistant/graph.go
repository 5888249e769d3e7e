package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/graph"
)

var (
	graphStep   int
	graphFormat string
)

func runGraph(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	records, err := parseTraversals(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return writeGraph(cmd.OutOrStdout(), graph.Transform(records), graphStep, graphFormat)
}

// parseTraversals accepts a JSON list of traversal records or an answer
// object carrying them in graph_traversals.
func parseTraversals(data []byte) ([]domain.TraversalRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []domain.TraversalRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("invalid traversal list: %w", err)
		}
		return records, nil
	}

	var answer domain.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil, fmt.Errorf("invalid answer object: %w", err)
	}
	return answer.Traversals, nil
}

// writeGraph prints g, or its playback at step when step is not negative.
func writeGraph(w io.Writer, g *graph.Graph, step int, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if step >= 0 {
			return enc.Encode(g.Playback(step))
		}
		return enc.Encode(g)

	case "text":
		s := newStyles()
		if step >= 0 {
			_, err := fmt.Fprintln(w, s.renderPlayback(g, g.Playback(step)))
			return err
		}
		fmt.Fprintf(w, "%d nodes, %d links, %d steps\n", len(g.Nodes), len(g.Links), len(g.Steps))
		for _, n := range g.Nodes {
			violation := ""
			if n.Violation {
				violation = "  (violation)"
			}
			fmt.Fprintf(w, "  node %s  layer %d  %s%s\n", n.Key, n.Layer, n.Type, violation)
		}
		for _, l := range g.Links {
			fmt.Fprintf(w, "  link %s  %s --%s--> %s\n", l.ID, l.Source, l.Relationship, l.Target)
		}
		return nil

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
