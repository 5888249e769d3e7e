package turncontext

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// State holds the context layers carried across turns of one session.
// Only successful final events mutate it.
type State struct {
	locked    LockedFacts
	technical json.RawMessage
}

// NewState returns an empty context.
func NewState() *State {
	return &State{}
}

// Apply folds a final event into the context. Locked facts are merged field by
// field, only for fields the event explicitly supplies. A supplied technical state
// replaces the previous one wholesale.
func (s *State) Apply(final *domain.FinalEvent) {
	if final == nil {
		return
	}

	if u := final.Locked; u != nil {
		if u.Material != nil {
			s.locked.Material = *u.Material
		}
		if u.Project != nil {
			s.locked.Project = *u.Project
		}
		if u.Constraints != nil {
			s.locked.Constraints = slices.Clone(*u.Constraints)
		}
		if u.Dimensions != nil {
			dims := make([][]float64, len(*u.Dimensions))
			for i, d := range *u.Dimensions {
				dims[i] = slices.Clone(d)
			}
			s.locked.Dimensions = dims
		}
	}

	if len(bytes.TrimSpace(final.TechnicalState)) > 0 {
		s.technical = slices.Clone(final.TechnicalState)
	}
}

// Payload merges the current context with input.
func (s *State) Payload(input string) string {
	return Merge(s.locked, s.technical, input)
}

// Locked returns the current locked facts.
func (s *State) Locked() LockedFacts {
	return s.locked
}

// Technical returns the current technical-state blob.
func (s *State) Technical() json.RawMessage {
	return s.technical
}

// Reset clears every layer.
func (s *State) Reset() {
	s.locked = LockedFacts{}
	s.technical = nil
}
