package domain

import (
	"encoding/json"
)

// EventKind identifies one of the closed set of stream event shapes.
type EventKind string

const (
	EventProgress    EventKind = "progress"
	EventFinal       EventKind = "final"
	EventSessionSync EventKind = "session-sync"
	EventFatal       EventKind = "fatal"
)

// StepStatus is the lifecycle state of a reasoning step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepActive  StepStatus = "active"
	StepDone    StepStatus = "done"
	StepError   StepStatus = "error"
)

// ParseStepStatus normalises a wire status. Unknown values map to active.
func ParseStepStatus(s string) StepStatus {
	switch StepStatus(s) {
	case StepPending, StepActive, StepDone, StepError:
		return StepStatus(s)
	case "complete", "completed", "success":
		return StepDone
	case "failed", "failure":
		return StepError
	default:
		return StepActive
	}
}

// Event is a decoded stream event. Exactly one of the kind-specific fields is set.
type Event struct {
	Kind EventKind

	Progress    *ProgressEvent
	Final       *FinalEvent
	SessionSync json.RawMessage
	Fatal       string
}

// ProgressEvent reports the latest state of one reasoning step.
type ProgressEvent struct {
	StepID string
	Label  string
	Status StepStatus
	Detail string
	Data   json.RawMessage
}

// FinalEvent carries the complete answer plus any session-context updates.
type FinalEvent struct {
	Answer         Answer
	Locked         *LockedUpdate
	TechnicalState json.RawMessage
}

// Answer is the structured answer of a completed turn.
type Answer struct {
	ContentText         string            `json:"content_text,omitempty"`
	ProductCard         json.RawMessage   `json:"product_card,omitempty"`
	ProductCards        json.RawMessage   `json:"product_cards,omitempty"`
	ClarificationNeeded bool              `json:"clarification_needed,omitempty"`
	GraphReport         json.RawMessage   `json:"graph_report,omitempty"`
	Traversals          []TraversalRecord `json:"graph_traversals,omitempty"`

	// Raw is the answer exactly as received.
	Raw json.RawMessage `json:"-"`
}

// LockedUpdate holds the locked-fact fields a final event explicitly supplies.
// A nil field means "not supplied" and leaves the previous value in place.
type LockedUpdate struct {
	Material    *string      `json:"material,omitempty"`
	Project     *string      `json:"project,omitempty"`
	Constraints *[]float64   `json:"constraints,omitempty"`
	Dimensions  *[][]float64 `json:"dimensions,omitempty"`
}

// StepRecord is one row of the reasoning step ledger.
type StepRecord struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Status StepStatus      `json:"status"`
	Detail string          `json:"detail,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Role of a message in the visible history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the visible history.
type Message struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	TurnNumber int    `json:"turn_number,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`

	// CorrelationID is only set on assistant records awaiting a background result.
	CorrelationID     string       `json:"correlation_id,omitempty"`
	BackgroundResult  JudgeResults `json:"background_result,omitempty"`
	BackgroundPending bool         `json:"background_pending,omitempty"`

	// Rating is the user's quality rating of the background result, 0 when unrated.
	Rating int `json:"rating,omitempty"`

	Answer *Answer      `json:"-"`
	Steps  []StepRecord `json:"-"`
}

// TraversalRecord describes one reasoning hop over a knowledge graph.
type TraversalRecord struct {
	NodesVisited    []string `json:"nodes_visited"`
	PathDescription string   `json:"path_description"`
	Relationships   []string `json:"relationships,omitempty"`
	Layer           int      `json:"layer"`
	Operation       string   `json:"operation,omitempty"`
	ResultSummary   string   `json:"result_summary,omitempty"`
}
