package ledger

import (
	"testing"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

func progress(id string, status domain.StepStatus, detail string) domain.ProgressEvent {
	return domain.ProgressEvent{StepID: id, Label: "label " + id, Status: status, Detail: detail}
}

func TestLedger_UpsertKeepsFirstSeenOrder(t *testing.T) {
	l := New()
	l.Upsert(progress("a", domain.StepActive, "first"))
	l.Upsert(progress("b", domain.StepActive, ""))
	l.Upsert(progress("a", domain.StepDone, "second"))
	l.Upsert(progress("c", domain.StepPending, ""))

	got := l.Snapshot()
	if len(got) != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", len(got))
	}

	wantIDs := []string{"a", "b", "c"}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("Snapshot()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[0].Status != domain.StepDone || got[0].Detail != "second" {
		t.Errorf("record a = %+v, want second event's fields", got[0])
	}
}

func TestLedger_SnapshotIsACopy(t *testing.T) {
	l := New()
	l.Upsert(progress("a", domain.StepActive, ""))

	snap := l.Snapshot()
	snap[0].Status = domain.StepError

	if l.Snapshot()[0].Status != domain.StepActive {
		t.Error("mutating a snapshot changed the ledger")
	}
}

func TestLedger_Finalize(t *testing.T) {
	l := New()
	l.Upsert(progress("a", domain.StepActive, ""))
	l.Upsert(progress("b", domain.StepError, ""))
	l.Upsert(progress("c", domain.StepPending, ""))

	l.Finalize()

	for _, rec := range l.Snapshot() {
		if rec.Status != domain.StepDone {
			t.Errorf("record %s status = %s, want done", rec.ID, rec.Status)
		}
	}
}

func TestLedger_Reset(t *testing.T) {
	l := New()
	l.Upsert(progress("a", domain.StepActive, ""))
	l.Reset()

	if l.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", l.Len())
	}

	l.Upsert(progress("b", domain.StepActive, ""))
	l.Upsert(progress("a", domain.StepActive, ""))
	got := l.Snapshot()
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("order after Reset = %v, %v", got[0].ID, got[1].ID)
	}
}
