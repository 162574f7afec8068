package route

import (
	"context"
	"sync/atomic"
)

// childList is a copy-on-write child list. Readers take lock-free
// snapshots; writers serialize on edit, whose acquisition is bounded by
// the caller's context.
type childList struct {
	edit     chan struct{}
	snapshot atomic.Pointer[[]Route]
	registry *Registry
}

func newChildList(children []Route, registry *Registry) *childList {
	cl := &childList{
		edit:     make(chan struct{}, 1),
		registry: registry,
	}
	initial := append([]Route(nil), children...)
	cl.snapshot.Store(&initial)
	return cl
}

// load returns the current snapshot. Callers must not modify it.
func (cl *childList) load() []Route {
	return *cl.snapshot.Load()
}

// add appends child. A long-poll child is registered before the new list
// is published; both happen after every fallible step (locking, then the
// context check), so the registry and the list never disagree about a
// failed add.
func (cl *childList) add(ctx context.Context, child Route) error {
	if child == nil {
		return ErrNilRoute
	}

	select {
	case cl.edit <- struct{}{}:
	default:
		select {
		case cl.edit <- struct{}{}:
		case <-ctx.Done():
			return ErrLockContention
		}
	}
	defer func() { <-cl.edit }()

	// The lock may be won after the caller gave up.
	if err := ctx.Err(); err != nil {
		return err
	}

	current := cl.load()
	next := make([]Route, len(current), len(current)+1)
	copy(next, current)
	next = append(next, child)

	if q, ok := child.(*LongPollQueue); ok && cl.registry != nil {
		cl.registry.Register(q.Path(), q)
	}
	cl.snapshot.Store(&next)
	return nil
}
