package route

import (
	"context"
	"sync/atomic"

	"github.com/dgnsrekt/tgin/internal/update"
)

// RoundRobin delivers each update to exactly one child, cycling through
// the children in list order.
//
// The cursor only ever increases; selection is cursor mod the length of
// the snapshot taken for that call, so adding children never resets the
// rotation. Concurrent callers each advance the cursor, which degrades
// strict alternation to an approximately equal share.
type RoundRobin struct {
	children *childList
	cursor   atomic.Uint64
}

// NewRoundRobin creates a round-robin strategy over children. Long-poll
// children added later through AddChild are registered in registry.
func NewRoundRobin(registry *Registry, children ...Route) *RoundRobin {
	return &RoundRobin{children: newChildList(children, registry)}
}

// Deliver passes u to the next child and waits for that child's delivery.
// With no children it does nothing.
func (rr *RoundRobin) Deliver(ctx context.Context, u update.Update) error {
	snapshot := rr.children.load()
	if len(snapshot) == 0 {
		return nil
	}

	n := rr.cursor.Add(1) - 1
	child := snapshot[n%uint64(len(snapshot))]
	return child.Deliver(ctx, u)
}

// AddChild implements Composite.
func (rr *RoundRobin) AddChild(ctx context.Context, child Route) error {
	return rr.children.add(ctx, child)
}

// Children implements Composite.
func (rr *RoundRobin) Children() []Route {
	return rr.children.load()
}

// Strategy implements Composite.
func (rr *RoundRobin) Strategy() string {
	return StrategyRoundRobin
}

// Describe implements Route.
func (rr *RoundRobin) Describe() Description {
	return Description{
		Type:   TypeLoadBalancer,
		Name:   StrategyRoundRobin,
		Routes: describeAll(rr.children.load()),
	}
}

// Bind implements Route.
func (rr *RoundRobin) Bind(b Binder) error {
	return bindAll(b, rr.children.load())
}
