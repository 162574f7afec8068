package route

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/update"
)

// Broadcast fans every update out to all of its children concurrently.
//
// Deliver returns as soon as every child leg is scheduled. Legs run on a
// context detached from the caller's cancellation, and their errors are
// logged here rather than reported: the caller gets no aggregated result.
type Broadcast struct {
	children *childList
	logger   *zap.Logger
}

// NewBroadcast creates a broadcast strategy over children. Long-poll
// children added later through AddChild are registered in registry.
func NewBroadcast(registry *Registry, logger *zap.Logger, children ...Route) *Broadcast {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcast{
		children: newChildList(children, registry),
		logger:   logger,
	}
}

// Deliver schedules one goroutine per child and returns nil.
func (b *Broadcast) Deliver(ctx context.Context, u update.Update) error {
	snapshot := b.children.load()
	if len(snapshot) == 0 {
		return nil
	}

	legCtx := context.WithoutCancel(ctx)
	for i, child := range snapshot {
		go b.deliverLeg(legCtx, i, child, u)
	}
	return nil
}

func (b *Broadcast) deliverLeg(ctx context.Context, index int, child Route, u update.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("broadcast leg panicked",
				zap.Int("child", index),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := child.Deliver(ctx, u); err != nil {
		b.logger.Warn("broadcast leg failed",
			zap.Int("child", index),
			zap.String("type", child.Describe().Type),
			zap.Error(err),
		)
	}
}

// AddChild implements Composite.
func (b *Broadcast) AddChild(ctx context.Context, child Route) error {
	return b.children.add(ctx, child)
}

// Children implements Composite.
func (b *Broadcast) Children() []Route {
	return b.children.load()
}

// Strategy implements Composite.
func (b *Broadcast) Strategy() string {
	return StrategyAll
}

// Describe implements Route.
func (b *Broadcast) Describe() Description {
	return Description{
		Type:   TypeLoadBalancer,
		Name:   StrategyAll,
		Routes: describeAll(b.children.load()),
	}
}

// Bind implements Route.
func (b *Broadcast) Bind(binder Binder) error {
	return bindAll(binder, b.children.load())
}
