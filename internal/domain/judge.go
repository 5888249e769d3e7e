package domain

import "encoding/json"

// JudgeProviders is the fixed set of evaluation providers, in display order.
var JudgeProviders = []string{"openai", "anthropic", "gemini"}

// JudgeScore is one provider's evaluation of a turn.
type JudgeScore struct {
	Scores         map[string]float64 `json:"scores,omitempty"`
	OverallScore   float64            `json:"overall_score"`
	Explanation    string             `json:"explanation,omitempty"`
	Recommendation string             `json:"recommendation,omitempty"`
	Usage          *JudgeUsage        `json:"usage,omitempty"`
}

// JudgeUsage reports token usage of a provider's evaluation.
type JudgeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// JudgeResults maps provider name to its score.
type JudgeResults map[string]*JudgeScore

// Providers returns the providers present in r, in JudgeProviders order.
func (r JudgeResults) Providers() []string {
	var out []string
	for _, p := range JudgeProviders {
		if _, ok := r[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// HistoryEntry is one item of the conversation history sent for evaluation.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EvaluationRequest is the background evaluation payload.
type EvaluationRequest struct {
	Question     string       `json:"question"`
	ResponseData ResponseData `json:"response_data"`
}

// ResponseData is the turn content under evaluation.
type ResponseData struct {
	ConversationHistory []HistoryEntry  `json:"conversation_history"`
	ContentText         string          `json:"content_text"`
	ProductCard         json.RawMessage `json:"product_card,omitempty"`
	ProductCards        json.RawMessage `json:"product_cards,omitempty"`
	ClarificationNeeded bool            `json:"clarification_needed"`
	GraphReport         json.RawMessage `json:"graph_report,omitempty"`
	InferenceSteps      []StepRecord    `json:"inference_steps"`
}

// JudgeResultsRecord is the judge-result persistence payload.
type JudgeResultsRecord struct {
	SessionID    string       `json:"session_id"`
	TurnNumber   int          `json:"turn_number"`
	JudgeResults JudgeResults `json:"judge_results"`
}

// RatingRecord is the rating persistence payload.
type RatingRecord struct {
	SessionID  string `json:"session_id"`
	TurnNumber int    `json:"turn_number"`
	Rating     int    `json:"rating"`
}

// MinRating and MaxRating bound user quality ratings.
const (
	MinRating = 1
	MaxRating = 5
)
