package correlate

import (
	"context"
	"errors"
	"testing"
)

type counter struct {
	key   string
	value int
}

type counterSet []*counter

func (s counterSet) Update(key string, fn func(*counter)) bool {
	for _, c := range s {
		if c.key == key {
			fn(c)
			return true
		}
	}
	return false
}

var errMissing = errors.New("missing")

func incrementOp() Op[counter] {
	var prior int
	return Op[counter]{
		Apply:  func(c *counter) { prior = c.value; c.value++ },
		Revert: func(c *counter) { c.value = prior },
	}
}

func TestRun(t *testing.T) {
	t.Run("commit succeeds", func(t *testing.T) {
		set := counterSet{{key: "a", value: 1}}
		err := Run(context.Background(), set, "a", incrementOp(), func(context.Context) error { return nil }, errMissing)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if set[0].value != 2 {
			t.Errorf("value = %d, want 2", set[0].value)
		}
	})

	t.Run("commit fails", func(t *testing.T) {
		set := counterSet{{key: "a", value: 1}}
		boom := errors.New("boom")
		err := Run(context.Background(), set, "a", incrementOp(), func(context.Context) error { return boom }, errMissing)
		if !errors.Is(err, boom) {
			t.Fatalf("Run() error = %v, want %v", err, boom)
		}
		if set[0].value != 1 {
			t.Errorf("value = %d, want reverted 1", set[0].value)
		}
	})

	t.Run("missing record", func(t *testing.T) {
		called := false
		err := Run(context.Background(), counterSet{}, "a", incrementOp(), func(context.Context) error {
			called = true
			return nil
		}, errMissing)
		if !errors.Is(err, errMissing) {
			t.Errorf("Run() error = %v, want %v", err, errMissing)
		}
		if called {
			t.Error("commit called for a missing record")
		}
	})
}

func TestOptimistic_ResolveAfterRemoval(t *testing.T) {
	set := counterSet{{key: "a", value: 1}}
	pending, ok := Apply[counter](set, "a", incrementOp())
	if !ok {
		t.Fatal("Apply() failed")
	}

	removed := counterSet{}
	pending.target = removed

	if pending.Resolve(nil) {
		t.Error("Resolve() reported success for a removed record")
	}
}
