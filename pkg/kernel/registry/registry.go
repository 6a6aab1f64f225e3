// Package registry implements the Stage Registry (spec §4.3): an O(1)
// stage name -> executor lookup supporting both direct registration
// and lazy factories, grounded directly on the teacher's
// pkg/tool.Registry (a thread-safe name -> implementation map),
// generalized to also accept a factory for executors that are
// expensive or stateful to construct eagerly (e.g. one per provider
// connection).
package registry

import (
	"fmt"
	"sync"

	"github.com/agentforge/agentforge/pkg/kernel/executor"
	"github.com/agentforge/agentforge/pkg/kernel/stage"
)

// Factory lazily constructs an executor for a stage on first lookup.
type Factory func() (executor.Executor, error)

// Registry maps stage name -> executor, thread-safe for concurrent
// registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	executors map[stage.Name]executor.Executor
	factories map[stage.Name]Factory
}

// New creates an empty Stage Registry.
func New() *Registry {
	return &Registry{
		executors: make(map[stage.Name]executor.Executor),
		factories: make(map[stage.Name]Factory),
	}
}

// Register adds a concrete executor for a stage. Returns an error if
// the stage already has an executor or factory registered.
func (r *Registry) Register(e executor.Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if _, exists := r.executors[name]; exists {
		return fmt.Errorf("registry: executor for stage %q already registered", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("registry: factory for stage %q already registered", name)
	}
	r.executors[name] = e
	return nil
}

// RegisterFactory adds a lazy executor factory for a stage. The
// factory runs at most once: its result is cached after the first Get.
func (r *Registry) RegisterFactory(name stage.Name, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[name]; exists {
		return fmt.Errorf("registry: executor for stage %q already registered", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("registry: factory for stage %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Get returns the executor for a stage, constructing it from a
// registered factory (and caching the result) if needed. The spec
// requires a missing stage to surface as a reported stage failure,
// not a panic, so callers (the Controller) are expected to turn this
// error into a failed StageResult rather than aborting the process.
func (r *Registry) Get(name stage.Name) (executor.Executor, error) {
	r.mu.RLock()
	e, ok := r.executors[name]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the write lock: another goroutine may have raced
	// us into building it already.
	if e, ok := r.executors[name]; ok {
		return e, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("no executor for stage %q", name)
	}
	built, err := f()
	if err != nil {
		return nil, fmt.Errorf("registry: build executor for stage %q: %w", name, err)
	}
	r.executors[name] = built
	delete(r.factories, name)
	return built, nil
}

// Names returns every stage name with a registered executor or factory.
func (r *Registry) Names() []stage.Name {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[stage.Name]bool, len(r.executors)+len(r.factories))
	for name := range r.executors {
		seen[name] = true
	}
	for name := range r.factories {
		seen[name] = true
	}
	names := make([]stage.Name, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}
