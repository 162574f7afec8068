// Package manage serializes runtime edits and reads of the route tree.
//
// Commands travel over a channel to a single Manager goroutine and are
// answered on single-use reply channels, so HTTP handlers never touch the
// tree directly.
package manage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/route"
)

var (
	// ErrSublevelNotFound means the sublevel path does not lead to a node.
	ErrSublevelNotFound = errors.New("sublevel not found")

	// ErrNotComposite means the sublevel path leads to a leaf.
	ErrNotComposite = fmt.Errorf("%w: target is not a strategy", ErrSublevelNotFound)

	// ErrStopped is returned when the manager is no longer running.
	ErrStopped = errors.New("manager stopped")
)

// DefaultLockTimeout bounds how long an add waits for a child-list lock.
const DefaultLockTimeout = 2 * time.Second

// Command is a management request.
type Command interface {
	apply(ctx context.Context, m *Manager)
}

// AddRoute appends Route to the strategy selected by Sublevel, an index
// path from the root (empty selects the root).
type AddRoute struct {
	Route    route.Route
	Sublevel []int
	Reply    chan error

	// caller bounds the lock wait; an add whose caller has given up
	// never mutates the tree.
	caller context.Context
}

func (c AddRoute) apply(ctx context.Context, m *Manager) {
	caller := c.caller
	if caller == nil {
		caller = context.Background()
	}

	err := caller.Err()
	var target route.Composite
	if err == nil {
		target, err = Resolve(m.root, c.Sublevel)
	}
	if err == nil {
		lockCtx, cancel := context.WithTimeout(caller, m.lockTimeout)
		stop := context.AfterFunc(ctx, cancel)
		err = target.AddChild(lockCtx, c.Route)
		stop()
		cancel()
	}

	if err != nil {
		m.logger.Warn("add route failed",
			zap.Ints("sublevel", c.Sublevel),
			zap.Error(err),
		)
	} else {
		m.logger.Info("route added",
			zap.Ints("sublevel", c.Sublevel),
			zap.String("type", c.Route.Describe().Type),
		)
	}
	c.Reply <- err
}

// ListRoutes replies with the description of the whole tree.
type ListRoutes struct {
	Reply chan route.Description
}

func (c ListRoutes) apply(_ context.Context, m *Manager) {
	c.Reply <- m.root.Describe()
}

// Manager owns the command loop for one route tree.
type Manager struct {
	root        route.Composite
	commands    chan Command
	done        chan struct{}
	lockTimeout time.Duration
	logger      *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lockTimeout = d
		}
	}
}

// New creates a manager for root. Call Run to start serving commands.
func New(root route.Composite, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		root:        root,
		commands:    make(chan Command),
		done:        make(chan struct{}),
		lockTimeout: DefaultLockTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Commands returns the channel commands are submitted on.
func (m *Manager) Commands() chan<- Command {
	return m.commands
}

// Run applies commands one at a time until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)
	m.logger.Debug("manager started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("manager stopped")
			return
		case cmd := <-m.commands:
			cmd.apply(ctx, m)
		}
	}
}

func (m *Manager) submit(ctx context.Context, cmd Command) error {
	select {
	case m.commands <- cmd:
		return nil
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddRoute submits an AddRoute command and waits for its result. Once
// submitted, the command always answers, and the lock wait is bounded by
// ctx, so the error returned is exactly whether the tree changed.
func (m *Manager) AddRoute(ctx context.Context, r route.Route, sublevel []int) error {
	reply := make(chan error, 1)
	cmd := AddRoute{Route: r, Sublevel: sublevel, Reply: reply, caller: ctx}
	if err := m.submit(ctx, cmd); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-m.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	}
}

// ListRoutes submits a ListRoutes command and waits for the description.
func (m *Manager) ListRoutes(ctx context.Context) (route.Description, error) {
	reply := make(chan route.Description, 1)
	if err := m.submit(ctx, ListRoutes{Reply: reply}); err != nil {
		return route.Description{}, err
	}

	select {
	case d := <-reply:
		return d, nil
	case <-ctx.Done():
		return route.Description{}, ctx.Err()
	}
}

// Resolve walks sublevel from root and returns the strategy it names.
func Resolve(root route.Composite, sublevel []int) (route.Composite, error) {
	var node route.Route = root
	for depth, idx := range sublevel {
		c, ok := node.(route.Composite)
		if !ok {
			return nil, fmt.Errorf("%w at depth %d", ErrNotComposite, depth)
		}
		children := c.Children()
		if idx < 0 || idx >= len(children) {
			return nil, fmt.Errorf("%w: index %d at depth %d (have %d children)",
				ErrSublevelNotFound, idx, depth, len(children))
		}
		node = children[idx]
	}

	c, ok := node.(route.Composite)
	if !ok {
		return nil, ErrNotComposite
	}
	return c, nil
}
