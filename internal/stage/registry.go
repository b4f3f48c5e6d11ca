package stage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownStageType is returned when a stage type was never registered.
var ErrUnknownStageType = errors.New("unknown stage type")

// Factory builds a plugin instance. Called at most once per type; the
// instance is cached and shared across runs, so plugins must be safe
// for concurrent Run calls.
type Factory func() (StagePlugin, error)

// Registry maps stage type names to plugin factories. Lookup is
// read-mostly and safe for concurrent use across runs.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]StagePlugin
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]StagePlugin),
	}
}

// Register installs a factory for a stage type, replacing any previous
// registration and dropping its cached instance.
func (r *Registry) Register(stageType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[stageType] = factory
	delete(r.instances, stageType)
}

// Get returns the plugin for a type, instantiating it on first use.
func (r *Registry) Get(stageType string) (StagePlugin, error) {
	r.mu.RLock()
	if inst, ok := r.instances[stageType]; ok {
		r.mu.RUnlock()
		return inst, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[stageType]; ok {
		return inst, nil
	}
	factory, ok := r.factories[stageType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStageType, stageType)
	}
	inst, err := factory()
	if err != nil {
		return nil, fmt.Errorf("instantiating stage %q: %w", stageType, err)
	}
	r.instances[stageType] = inst
	return inst, nil
}

func (r *Registry) Has(stageType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[stageType]
	return ok
}

// List returns all registered types in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	r.mu.RUnlock()
	sort.Strings(types)
	return types
}
