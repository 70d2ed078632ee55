// Package workexec is the injectable registry of work executors a WorkTask
// step dispatches to by kind (spec §3/§4.1). The work itself is explicitly
// out of scope (spec §1); this package only defines the seam.
package workexec

import (
	"context"
	"fmt"
	"sync"
)

// Executor performs the work a WorkTask step delegates to. config is the
// step's opaque configuration map; the returned value becomes the step's
// outputData and is threaded into the execution context under the step's id.
type Executor func(ctx context.Context, config map[string]any) (any, error)

// Registry is a kind -> Executor lookup, safe for concurrent registration
// and dispatch.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds or replaces the executor for kind.
func (r *Registry) Register(kind string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[kind] = e
}

// Unregister removes the executor for kind, if any.
func (r *Registry) Unregister(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executors, kind)
}

// ErrUnknownKind is returned by Dispatch when no executor is registered for
// the requested kind; the interpreter maps this to a FAILED step with
// errorType "UnknownWorkKind" (spec §4.1).
var ErrUnknownKind = fmt.Errorf("workexec: unknown work kind")

// Dispatch invokes the executor registered for kind, or returns
// ErrUnknownKind if none is registered.
func (r *Registry) Dispatch(ctx context.Context, kind string, config map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.executors[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return e(ctx, config)
}
