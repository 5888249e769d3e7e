// Package ledger keeps the ordered, id-keyed list of reasoning steps for one turn.
package ledger

import (
	"slices"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// Ledger records reasoning steps in first-seen order. Updates to a known step id
// replace its fields in place; rows are never re-sorted.
//
// A Ledger has a single writer: the stream consumer of the current turn.
type Ledger struct {
	steps []domain.StepRecord
	index map[string]int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// Upsert appends a record for an unseen step id or replaces the mutable fields
// of the existing record, keeping its position.
func (l *Ledger) Upsert(ev domain.ProgressEvent) {
	rec := domain.StepRecord{
		ID:     ev.StepID,
		Label:  ev.Label,
		Status: ev.Status,
		Detail: ev.Detail,
		Data:   ev.Data,
	}
	if i, ok := l.index[ev.StepID]; ok {
		l.steps[i] = rec
		return
	}
	l.index[ev.StepID] = len(l.steps)
	l.steps = append(l.steps, rec)
}

// Snapshot returns a copy of the records in display order.
func (l *Ledger) Snapshot() []domain.StepRecord {
	return slices.Clone(l.steps)
}

// Finalize marks every record done, whatever its prior status. It is used when the
// turn completes while some steps were still reported active.
func (l *Ledger) Finalize() {
	for i := range l.steps {
		l.steps[i].Status = domain.StepDone
	}
}

// Reset discards all records ahead of a new turn.
func (l *Ledger) Reset() {
	l.steps = nil
	clear(l.index)
}

// Len returns the number of distinct steps seen.
func (l *Ledger) Len() int {
	return len(l.steps)
}
