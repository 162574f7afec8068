package route

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dgnsrekt/tgin/internal/update"
)

// recorder is a leaf that remembers every update it receives.
type recorder struct {
	name string
	err  error

	mu  sync.Mutex
	got []update.Update
	ch  chan update.Update
}

func newRecorder(name string) *recorder {
	return &recorder{name: name, ch: make(chan update.Update, 64)}
}

func (r *recorder) Deliver(_ context.Context, u update.Update) error {
	r.mu.Lock()
	r.got = append(r.got, u)
	r.mu.Unlock()
	r.ch <- u
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func (r *recorder) Describe() Description {
	return Description{Type: "recorder", Options: map[string]any{"name": r.name}}
}

func (r *recorder) Bind(Binder) error { return nil }

// panicker panics on every delivery.
type panicker struct{}

func (panicker) Deliver(context.Context, update.Update) error { panic("boom") }
func (panicker) Describe() Description                        { return Description{Type: "panicker"} }
func (panicker) Bind(Binder) error                            { return nil }

var errLeg = errors.New("leg failed")

// fakeBinder records what routes bind.
type fakeBinder struct {
	registry *Registry
	mounts   []string
	loops    []string
}

func (b *fakeBinder) RegisterQueue(q *LongPollQueue) { b.registry.Register(q.Path(), q) }
func (b *fakeBinder) Mount(path string, _ http.Handler) { b.mounts = append(b.mounts, path) }
func (b *fakeBinder) Go(name string, _ func(ctx context.Context)) {
	b.loops = append(b.loops, name)
}

// ctxRoute hands the delivery context to a callback.
type ctxRoute func(ctx context.Context)

func (f ctxRoute) Deliver(ctx context.Context, _ update.Update) error {
	f(ctx)
	return nil
}

func (ctxRoute) Describe() Description { return Description{Type: "ctx"} }
func (ctxRoute) Bind(Binder) error     { return nil }
