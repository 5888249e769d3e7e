package graph

import (
	"regexp"
	"strings"
)

// DefaultRelationship labels edges found by the plain arrow strategy, which
// carries no relationship name of its own.
const DefaultRelationship = "LEADS_TO"

var violationMarkers = []string{
	"violation",
	"violates",
	"blocked",
	"conflict",
	"incompatible",
	"not allowed",
	"rejected",
	"⚠",
	"✗",
	"❌",
	"⛔",
}

// hasViolation reports whether any violation marker occurs in one of texts.
func hasViolation(texts ...string) bool {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, m := range violationMarkers {
			if strings.Contains(lower, m) {
				return true
			}
		}
	}
	return false
}

var (
	colonForm = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9_ ]*?)\s*:\s*(.+?)\s*$`)
	parenForm = regexp.MustCompile(`^\s*(.+?)\s*\(\s*([^()]+?)\s*\)\s*$`)

	// boxedArrow matches the "──REL──▶" or "— REL →" connector between two
	// node texts. Words of the name are joined by a single space or hyphen, so
	// "--FITS-->" yields FITS and "──HAS-PART──▶" yields HAS-PART.
	boxedArrow = regexp.MustCompile(`\s*[─━—–-]+\s*([A-Za-z_][A-Za-z0-9_]*(?:[ -][A-Za-z0-9_]+)*)\s*[─━—–-]*\s*[▶►>→]\s*`)
	plainArrow = regexp.MustCompile(`\s*(?:→|->|=>|▶|►)\s*`)

	clauseSeparators = ",;|\n"
)

type nodeRef struct {
	typ  string
	name string
}

// parseNode splits a visited-node entry into type and name. It tries
// "Type:Name", then "Name (Type)", then falls back to an untyped name.
func parseNode(raw string) nodeRef {
	if m := colonForm.FindStringSubmatch(raw); m != nil {
		return nodeRef{typ: m[1], name: cleanName(m[2])}
	}
	if m := parenForm.FindStringSubmatch(raw); m != nil {
		return nodeRef{typ: m[2], name: cleanName(m[1])}
	}
	return nodeRef{name: cleanName(raw)}
}

func cleanName(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`[]{}*")
}

func nodeKey(name string) string {
	return strings.ToLower(name)
}

type edgeRef struct {
	source nodeRef
	target nodeRef
	rel    string
}

// parseBoxedEdges extracts "source ──REL──▶ target" triples. Connectors are
// located first and the text between consecutive connectors is the shared
// node, so chains like "A ──X──▶ B ──Y──▶ C" yield both edges.
func parseBoxedEdges(desc string) []edgeRef {
	matches := boxedArrow.FindAllStringSubmatchIndex(desc, -1)
	if len(matches) == 0 {
		return nil
	}

	var edges []edgeRef
	prevEnd := 0
	for i, m := range matches {
		left := desc[prevEnd:m[0]]
		rightEnd := len(desc)
		if i+1 < len(matches) {
			rightEnd = matches[i+1][0]
		}
		right := desc[m[1]:rightEnd]
		rel := strings.TrimSpace(desc[m[2]:m[3]])
		prevEnd = m[1]

		src := parseNode(lastClause(left))
		tgt := parseNode(firstClause(right))
		if src.name == "" || tgt.name == "" || rel == "" {
			continue
		}
		edges = append(edges, edgeRef{source: src, target: tgt, rel: rel})
	}
	return edges
}

// parsePlainEdges extracts "source → target" pairs, chained left to right.
func parsePlainEdges(desc string) []edgeRef {
	parts := plainArrow.Split(desc, -1)
	if len(parts) < 2 {
		return nil
	}

	var edges []edgeRef
	for i := 0; i+1 < len(parts); i++ {
		src := parseNode(lastClause(parts[i]))
		tgt := parseNode(firstClause(parts[i+1]))
		if src.name == "" || tgt.name == "" {
			continue
		}
		edges = append(edges, edgeRef{source: src, target: tgt, rel: DefaultRelationship})
	}
	return edges
}

// synthesizeEdges links consecutive visited nodes, pairing relationship names
// by index and reusing the last name once the list runs out.
func synthesizeEdges(nodes []nodeRef, rels []string) []edgeRef {
	if len(rels) == 0 || len(nodes) < 2 {
		return nil
	}
	edges := make([]edgeRef, 0, len(nodes)-1)
	for i := 0; i+1 < len(nodes); i++ {
		rel := rels[min(i, len(rels)-1)]
		edges = append(edges, edgeRef{source: nodes[i], target: nodes[i+1], rel: rel})
	}
	return edges
}

func lastClause(s string) string {
	if i := strings.LastIndexAny(s, clauseSeparators); i >= 0 {
		return s[i+1:]
	}
	return s
}

func firstClause(s string) string {
	if i := strings.IndexAny(s, clauseSeparators); i >= 0 {
		return s[:i]
	}
	return s
}
