package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/graph"
)

type styles struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	failure   lipgloss.Style
	muted     lipgloss.Style
	stepState map[domain.StepStatus]lipgloss.Style
	nodeState map[graph.State]lipgloss.Style
	panel     lipgloss.Style
}

func newStyles() styles {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	amber := lipgloss.Color("#ffd166")
	muted := lipgloss.Color("#9ca3d8")

	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(blue).Padding(0, 1),
		user:      lipgloss.NewStyle().Bold(true).Foreground(blue),
		assistant: lipgloss.NewStyle().Foreground(mint),
		failure:   lipgloss.NewStyle().Bold(true).Foreground(pink),
		muted:     lipgloss.NewStyle().Foreground(muted),
		stepState: map[domain.StepStatus]lipgloss.Style{
			domain.StepPending: lipgloss.NewStyle().Foreground(muted),
			domain.StepActive:  lipgloss.NewStyle().Foreground(amber).Bold(true),
			domain.StepDone:    lipgloss.NewStyle().Foreground(mint),
			domain.StepError:   lipgloss.NewStyle().Foreground(pink),
		},
		nodeState: map[graph.State]lipgloss.Style{
			graph.StateActive:   lipgloss.NewStyle().Foreground(amber).Bold(true),
			graph.StateVisited:  lipgloss.NewStyle().Foreground(mint),
			graph.StateInactive: lipgloss.NewStyle().Foreground(muted),
		},
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
	}
}

var stepIcons = map[domain.StepStatus]string{
	domain.StepPending: "·",
	domain.StepActive:  "▸",
	domain.StepDone:    "✓",
	domain.StepError:   "✗",
}

// renderMessage formats one history entry with its evaluation summary.
func (s styles) renderMessage(m domain.Message) string {
	switch {
	case m.Role == domain.RoleUser:
		return s.user.Render("you> ") + m.Content
	case m.IsError:
		return s.failure.Render("error> ") + m.Content
	}

	var b strings.Builder
	b.WriteString(s.assistant.Render(fmt.Sprintf("assistant[%d]> ", m.TurnNumber)))
	b.WriteString(m.Content)
	if line := s.renderEvaluation(m); line != "" {
		b.WriteString("\n")
		b.WriteString(s.muted.Render(line))
	}
	return b.String()
}

// renderEvaluation summarizes the background result of m in provider order.
func (s styles) renderEvaluation(m domain.Message) string {
	switch {
	case m.BackgroundPending:
		return "  evaluating..."
	case m.BackgroundResult == nil:
		return ""
	}

	parts := make([]string, 0, len(domain.JudgeProviders))
	for _, p := range m.BackgroundResult.Providers() {
		parts = append(parts, fmt.Sprintf("%s %.1f", p, m.BackgroundResult[p].OverallScore))
	}
	line := "  judged: " + strings.Join(parts, ", ")
	if m.Rating > 0 {
		line += fmt.Sprintf(" | your rating %d/5", m.Rating)
	}
	return line
}

// renderSteps lists the reasoning steps in ledger order.
func (s styles) renderSteps(steps []domain.StepRecord) string {
	if len(steps) == 0 {
		return ""
	}
	lines := make([]string, 0, len(steps))
	for _, st := range steps {
		line := stepIcons[st.Status] + " " + st.Label
		if st.Label == "" {
			line = stepIcons[st.Status] + " " + st.ID
		}
		if st.Detail != "" {
			line += s.muted.Render(" - " + st.Detail)
		}
		lines = append(lines, s.stepState[st.Status].Render(line))
	}
	return strings.Join(lines, "\n")
}

// renderPlayback prints the graph state at one step: the step header, then
// each node and link with its state.
func (s styles) renderPlayback(g *graph.Graph, pb graph.Playback) string {
	if pb.Step < 0 {
		if len(g.Steps) == 0 {
			return s.muted.Render("no traversal steps")
		}
		return s.muted.Render(fmt.Sprintf("before step 1 of %d", len(g.Steps)))
	}

	var b strings.Builder
	st := g.Steps[pb.Step]
	fmt.Fprintf(&b, "step %d/%d  layer %d  %s", pb.Step+1, len(g.Steps), st.Layer, st.Operation)
	if st.Violation {
		b.WriteString(s.failure.Render("  VIOLATION"))
	}
	if st.Summary != "" {
		b.WriteString("\n" + s.muted.Render(st.Summary))
	}

	b.WriteString("\n")
	for _, n := range pb.Nodes {
		node, _ := g.Node(n.ID)
		label := node.Label
		if node.Type != "" {
			label = node.Type + ": " + label
		}
		b.WriteString("\n" + s.nodeState[n.State].Render(fmt.Sprintf("  [%s] %s", n.State, label)))
	}

	linkByID := make(map[string]graph.Link, len(g.Links))
	for _, l := range g.Links {
		linkByID[l.ID] = l
	}
	for _, ls := range pb.Links {
		l := linkByID[ls.ID]
		b.WriteString("\n" + s.nodeState[ls.State].Render(
			fmt.Sprintf("  %s --%s--> %s", l.Source, l.Relationship, l.Target)))
	}

	fmt.Fprintf(&b, "\n\n%d active, %d visited",
		graph.Count(pb.Nodes, graph.StateActive), graph.Count(pb.Nodes, graph.StateVisited))
	return b.String()
}
