package route

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/update"
)

// DefaultPollLimit is the batch size used when a poll does not set one.
const DefaultPollLimit = 1000

// PollParams are the parameters of a blocking fetch.
type PollParams struct {
	// Offset is accepted for client compatibility and currently ignored.
	Offset *int64
	// Timeout bounds how long an empty poll waits. Zero returns at once.
	Timeout time.Duration
	// Limit caps the batch size. Zero means DefaultPollLimit.
	Limit int
}

// PollResult is the Telegram-style getUpdates response body.
type PollResult struct {
	OK     bool            `json:"ok"`
	Result []update.Update `json:"result"`
}

// LongPollQueue is a leaf route that buffers updates until a remote
// consumer fetches them with a blocking poll.
type LongPollQueue struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex
	buf []update.Update
	// wake is closed and replaced on every push; waiters capture it
	// while holding mu so a push between check and wait is never lost.
	wake chan struct{}
}

// NewLongPollQueue creates an empty queue served at path.
func NewLongPollQueue(path string, logger *zap.Logger) *LongPollQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LongPollQueue{
		path:   path,
		logger: logger,
		wake:   make(chan struct{}),
	}
}

// Path returns the HTTP path the queue is served at.
func (q *LongPollQueue) Path() string {
	return q.path
}

// Push appends u to the tail and wakes every waiting poll.
func (q *LongPollQueue) Push(u update.Update) {
	q.mu.Lock()
	q.buf = append(q.buf, u)
	size := len(q.buf)
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()

	q.logger.Debug("update queued",
		zap.String("path", q.path),
		zap.Int("size", size),
	)
}

// Len returns the number of buffered updates.
func (q *LongPollQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Poll returns up to p.Limit buffered updates, waiting up to p.Timeout for
// the first one to arrive. It returns as soon as anything is buffered and
// never waits for a batch to fill. Concurrent pollers race for batches.
// If ctx is cancelled while waiting, Poll returns ctx.Err().
func (q *LongPollQueue) Poll(ctx context.Context, p PollParams) (PollResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPollLimit
	}

	var deadline <-chan time.Time
	if p.Timeout > 0 {
		timer := time.NewTimer(p.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			batch := q.drainLocked(limit)
			remaining := len(q.buf)
			q.mu.Unlock()

			q.logger.Debug("batch drained",
				zap.String("path", q.path),
				zap.Int("batch", len(batch)),
				zap.Int("remaining", remaining),
			)
			return PollResult{OK: true, Result: batch}, nil
		}
		if deadline == nil {
			q.mu.Unlock()
			return emptyResult(), nil
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-deadline:
			// One last look so a push racing the deadline is not missed.
			deadline = nil
		case <-ctx.Done():
			return PollResult{}, ctx.Err()
		}
	}
}

// drainLocked removes up to limit updates from the head. Caller holds mu.
func (q *LongPollQueue) drainLocked(limit int) []update.Update {
	n := min(limit, len(q.buf))
	batch := make([]update.Update, n)
	copy(batch, q.buf[:n])

	clear(q.buf[:n])
	q.buf = q.buf[n:]
	if len(q.buf) == 0 {
		q.buf = nil
	}
	return batch
}

func emptyResult() PollResult {
	return PollResult{OK: true, Result: []update.Update{}}
}

// Deliver enqueues u. It never fails.
func (q *LongPollQueue) Deliver(_ context.Context, u update.Update) error {
	q.Push(u)
	return nil
}

// Describe implements Route.
func (q *LongPollQueue) Describe() Description {
	return Description{
		Type: TypeLongPoll,
		Options: map[string]any{
			"path":    q.path,
			"pending": q.Len(),
		},
	}
}

// Bind registers the queue with the long-poll dispatcher.
func (q *LongPollQueue) Bind(b Binder) error {
	b.RegisterQueue(q)
	return nil
}
