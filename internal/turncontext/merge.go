// Package turncontext builds the outgoing query of a turn from the user's input and
// the context accumulated by earlier turns.
//
// Precedence, low to high: locked facts, technical state, user input. The merged
// string is a pure function of its three inputs.
package turncontext

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// LockedFacts are established by earlier final events and never set by the user.
type LockedFacts struct {
	Material    string      `json:"material,omitempty"`
	Project     string      `json:"project,omitempty"`
	Constraints []float64   `json:"constraints,omitempty"`
	Dimensions  [][]float64 `json:"dimensions,omitempty"`
}

// IsZero reports whether no locked fact is present.
func (f LockedFacts) IsZero() bool {
	return f.Material == "" && f.Project == "" && len(f.Constraints) == 0 && len(f.Dimensions) == 0
}

// String renders the present facts as "k=v; k=v".
func (f LockedFacts) String() string {
	return strings.Join(lockedFields(f), "; ")
}

// Merge renders the outgoing query. Present locked facts are appended as
// " [LOCKED: k=v; ...]" in fixed field order; a present technical state is appended
// as " [STATE: <json>]". Absent layers add nothing.
func Merge(locked LockedFacts, technical json.RawMessage, input string) string {
	var b strings.Builder
	b.WriteString(input)

	if fields := lockedFields(locked); len(fields) > 0 {
		b.WriteString(" [LOCKED: ")
		b.WriteString(strings.Join(fields, "; "))
		b.WriteString("]")
	}

	if state, ok := canonicalState(technical); ok {
		b.WriteString(" [STATE: ")
		b.WriteString(state)
		b.WriteString("]")
	}

	return b.String()
}

func lockedFields(f LockedFacts) []string {
	var fields []string
	if f.Material != "" {
		fields = append(fields, "material="+f.Material)
	}
	if f.Project != "" {
		fields = append(fields, "project="+f.Project)
	}
	if len(f.Constraints) > 0 {
		fields = append(fields, "constraints="+joinNumbers(f.Constraints, ","))
	}
	if dims := renderDimensions(f.Dimensions); dims != "" {
		fields = append(fields, "dimensions="+dims)
	}
	return fields
}

func renderDimensions(tuples [][]float64) string {
	var parts []string
	for _, t := range tuples {
		if len(t) == 0 {
			continue
		}
		parts = append(parts, joinNumbers(t, "x"))
	}
	return strings.Join(parts, ",")
}

func joinNumbers(values []float64, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, sep)
}

// canonicalState returns the encoded form of a technical-state blob. Well-formed JSON
// is re-encoded compactly with sorted object keys; anything else passes through as-is.
func canonicalState(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "{}", "[]":
		return "", false
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(trimmed), true
	}

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return string(trimmed), true
	}
	return strings.TrimSuffix(out.String(), "\n"), true
}
