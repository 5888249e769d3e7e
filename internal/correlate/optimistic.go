// Package correlate matches asynchronous results back to the message that produced
// them, and applies optimistic local changes that are rolled back when the remote
// side fails.
package correlate

import "context"

// Target locates a record by key and mutates it in place. Update reports false when
// no record carries key, in which case fn is not called.
type Target[R any] interface {
	Update(key string, fn func(*R)) bool
}

// TargetFunc adapts a function to Target.
type TargetFunc[R any] func(key string, fn func(*R)) bool

// Update calls f.
func (f TargetFunc[R]) Update(key string, fn func(*R)) bool {
	return f(key, fn)
}

// Op describes an optimistic change. Apply runs immediately; once the remote call
// resolves, Settle runs on success and Revert on failure. Settle and Revert may be nil.
type Op[R any] struct {
	Apply  func(*R)
	Settle func(*R)
	Revert func(*R)
}

// Optimistic is an applied change awaiting the outcome of its remote call.
type Optimistic[R any] struct {
	target Target[R]
	key    string
	op     Op[R]
}

// Apply runs op.Apply on the record keyed by key. It returns false, and applies
// nothing, if the record does not exist.
func Apply[R any](target Target[R], key string, op Op[R]) (*Optimistic[R], bool) {
	if !target.Update(key, op.Apply) {
		return nil, false
	}
	return &Optimistic[R]{target: target, key: key, op: op}, true
}

// Resolve settles the change on a nil error and reverts it otherwise. A record
// removed in the meantime is left alone; Resolve then reports false.
func (o *Optimistic[R]) Resolve(err error) bool {
	fn := o.op.Settle
	if err != nil {
		fn = o.op.Revert
	}
	if fn == nil {
		fn = func(*R) {}
	}
	return o.target.Update(o.key, fn)
}

// Run applies op, calls commit, and resolves the change with commit's outcome.
// It returns errNotFound if the record is missing, otherwise commit's error.
func Run[R any](ctx context.Context, target Target[R], key string, op Op[R], commit func(context.Context) error, errNotFound error) error {
	pending, ok := Apply(target, key, op)
	if !ok {
		return errNotFound
	}
	err := commit(ctx)
	pending.Resolve(err)
	return err
}
