package route

import (
	"sort"
	"sync"
)

// Registry maps HTTP paths to the long-poll queue serving them, so the
// HTTP layer resolves a fetch without walking the route tree.
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*LongPollQueue
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*LongPollQueue)}
}

// Register maps path to q. An existing mapping is silently replaced.
func (r *Registry) Register(path string, q *LongPollQueue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[path] = q
}

// Lookup returns the queue registered at path.
func (r *Registry) Lookup(path string) (*LongPollQueue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[path]
	return q, ok
}

// Paths returns the registered paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	paths := make([]string, 0, len(r.queues))
	for p := range r.queues {
		paths = append(paths, p)
	}
	r.mu.RUnlock()

	sort.Strings(paths)
	return paths
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}
