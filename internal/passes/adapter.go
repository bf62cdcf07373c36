package passes

import (
	"context"
	"sync"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

// Adapter invokes one external research capability. Inputs is a mapping
// of the pass's required keys to values; on success the returned map
// carries the pass's produced keys. Implementations must be safe to call
// concurrently for different prospects and must honor ctx cancellation
// and deadlines.
type Adapter interface {
	// Pass returns the pass this adapter implements.
	Pass() model.PassID
	// Invoke performs the lookup. Any returned error is absorbed by the
	// orchestrator into a failed PassResult; it never aborts the attempt.
	Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// Registry maps passes to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.PassID]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.PassID]Adapter)}
}

// Register adds an adapter, replacing any previous adapter for the pass.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Pass()] = a
}

// Get returns the adapter for a pass, or nil if none is registered.
func (r *Registry) Get(id model.PassID) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[id]
}

// List returns the registered pass IDs.
func (r *Registry) List() []model.PassID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]model.PassID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}
