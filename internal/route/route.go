// Package route implements the distribution tree: leaf delivery targets
// (long-poll queues, webhook relays, WebSocket streams) and the composite
// strategies that fan updates out over them.
//
// Every node satisfies Route, so composites nest without knowing whether
// their children are leaves or further composites.
package route

import (
	"context"
	"errors"
	"net/http"

	"github.com/dgnsrekt/tgin/internal/update"
)

var (
	// ErrLockContention is returned by AddChild when the child list could
	// not be locked before the caller's context expired.
	ErrLockContention = errors.New("route: child list is locked")

	// ErrNilRoute is returned by AddChild for a nil child.
	ErrNilRoute = errors.New("route: nil child")
)

// Route is a node of the distribution tree.
type Route interface {
	// Deliver hands the update to this node. Leaves enqueue or relay it,
	// composites select or fan out to their children.
	Deliver(ctx context.Context, u update.Update) error

	// Describe returns a read-only snapshot of this node and its subtree.
	Describe() Description

	// Bind attaches whatever HTTP exposure the node needs.
	Bind(b Binder) error
}

// Composite is a Route that dispatches over a mutable list of children.
type Composite interface {
	Route

	// AddChild appends child. Long-poll children are registered for HTTP
	// reachability in the same all-or-nothing step.
	AddChild(ctx context.Context, child Route) error

	// Children returns the current child list snapshot.
	Children() []Route

	// Strategy names the dispatch policy ("round-robin" or "all").
	Strategy() string
}

// Binder is the server surface a route binds itself to.
type Binder interface {
	// RegisterQueue makes q reachable by the long-poll dispatcher.
	RegisterQueue(q *LongPollQueue)

	// Mount serves h at path.
	Mount(path string, h http.Handler)

	// Go schedules a background loop that runs for the server lifetime.
	Go(name string, fn func(ctx context.Context))
}

// bindAll binds every route in children, stopping at the first error.
func bindAll(b Binder, children []Route) error {
	for _, child := range children {
		if err := child.Bind(b); err != nil {
			return err
		}
	}
	return nil
}
