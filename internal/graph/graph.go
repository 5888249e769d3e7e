// Package graph turns free-text traversal records into a node/link graph with a
// step sequence for playback.
package graph

import (
	"encoding/json"
	"fmt"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// Node is a graph vertex keyed by its lower-cased name.
type Node struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Layer     int    `json:"layer"`
	Type      string `json:"type,omitempty"`
	Violation bool   `json:"violation"`
}

// Link is one edge found in one step. Identical edges found in different steps
// are kept as separate links.
type Link struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
	Step         int    `json:"step"`
}

// Step summarises one traversal record.
type Step struct {
	Index       int      `json:"index"`
	Operation   string   `json:"operation"`
	Layer       int      `json:"layer"`
	Summary     string   `json:"summary"`
	Violation   bool     `json:"violation"`
	ActiveNodes []string `json:"active_nodes"`
	ActiveLinks []string `json:"active_links"`
}

// Graph is the result of Transform. Nodes are in first-seen order.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
	Steps []Step `json:"steps"`

	index map[string]int
}

// Node returns the node stored under key. It does not modify g, so a graph
// may be read from several goroutines.
func (g *Graph) Node(key string) (Node, bool) {
	if g.index == nil {
		for _, n := range g.Nodes {
			if n.Key == key {
				return n, true
			}
		}
		return Node{}, false
	}
	i, ok := g.index[key]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// UnmarshalJSON decodes a graph and rebuilds its node index.
func (g *Graph) UnmarshalJSON(data []byte) error {
	type plain Graph
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*g = Graph(p)
	g.index = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		g.index[n.Key] = i
	}
	return nil
}

// Playback returns the playback state at step n.
func (g *Graph) Playback(n int) Playback {
	return PlaybackAt(g.Nodes, g.Steps, g.Links, n)
}

// Transform converts records into a graph. Each record becomes one step, in
// input order. The output depends only on the input.
func Transform(records []domain.TraversalRecord) *Graph {
	g := &Graph{
		Nodes: []Node{},
		Links: []Link{},
		Steps: make([]Step, 0, len(records)),
		index: make(map[string]int),
	}

	for i, rec := range records {
		g.Steps = append(g.Steps, g.addRecord(i, rec))
	}
	return g
}

func (g *Graph) addRecord(idx int, rec domain.TraversalRecord) Step {
	step := Step{
		Index:       idx,
		Operation:   rec.Operation,
		Layer:       rec.Layer,
		Summary:     rec.ResultSummary,
		Violation:   hasViolation(rec.ResultSummary, rec.Operation, rec.PathDescription),
		ActiveNodes: []string{},
		ActiveLinks: []string{},
	}

	seen := make(map[string]bool)
	var visited []nodeRef
	for _, raw := range rec.NodesVisited {
		ref := parseNode(raw)
		if ref.name == "" {
			continue
		}
		key := g.addNode(ref, rec.Layer, hasViolation(raw))
		visited = append(visited, ref)
		if !seen[key] {
			seen[key] = true
			step.ActiveNodes = append(step.ActiveNodes, key)
		}
	}

	edges := parseBoxedEdges(rec.PathDescription)
	if len(edges) == 0 {
		edges = parsePlainEdges(rec.PathDescription)
	}
	if len(edges) == 0 {
		edges = synthesizeEdges(visited, rec.Relationships)
	}

	for _, e := range edges {
		src := g.addNode(e.source, rec.Layer, false)
		tgt := g.addNode(e.target, rec.Layer, false)
		link := Link{
			ID:           fmt.Sprintf("s%d-e%d", idx, len(step.ActiveLinks)),
			Source:       src,
			Target:       tgt,
			Relationship: e.rel,
			Step:         idx,
		}
		g.Links = append(g.Links, link)
		step.ActiveLinks = append(step.ActiveLinks, link.ID)
	}

	return step
}

// addNode registers ref unless its key is already known and returns the key.
// The first registration wins on every attribute.
func (g *Graph) addNode(ref nodeRef, layer int, violation bool) string {
	key := nodeKey(ref.name)
	if _, ok := g.index[key]; ok {
		return key
	}
	g.index[key] = len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{
		Key:       key,
		Label:     ref.name,
		Layer:     layer,
		Type:      ref.typ,
		Violation: violation,
	})
	return key
}
