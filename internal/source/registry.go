package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Registry holds the adapter instances enabled for this process. It is
// constructed once at startup and passed by reference to the fetch
// coordinator and the preprocessing pipeline; there is no ambient or
// global registry.
//
// Registration order is preserved and defines the order of entries in a
// fetch result.
type Registry struct {
	order    []string
	adapters map[string]Adapter
	log      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		log:      log,
	}
}

// Register adds an adapter. Names must be unique.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if name == "" {
		return errors.New("source: adapter has empty name")
	}
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("source: adapter %q already registered", name)
	}
	r.adapters[name] = a
	r.order = append(r.order, name)
	r.log.Debug("adapter registered", "adapter", name, "type", a.SourceType())
	return nil
}

// Get returns the adapter with the given name, or nil.
func (r *Registry) Get(name string) Adapter {
	return r.adapters[name]
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Primary returns the first adapter flagged primary, or nil.
func (r *Registry) Primary() Adapter {
	for _, name := range r.order {
		if a := r.adapters[name]; a.Primary() {
			return a
		}
	}
	return nil
}

// Secondaries returns every adapter except the one returned by Primary,
// in registration order.
func (r *Registry) Secondaries() []Adapter {
	primary := r.Primary()
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		a := r.adapters[name]
		if a != primary {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.order)
}

// HealthCheck runs every adapter's health check and returns the results
// keyed by adapter name.
func (r *Registry) HealthCheck(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(r.order))
	for _, name := range r.order {
		results[name] = r.adapters[name].HealthCheck(ctx)
	}
	return results
}

// CloseAll closes every adapter, logging failures instead of stopping.
func (r *Registry) CloseAll() {
	for _, name := range r.order {
		if err := r.adapters[name].Close(); err != nil {
			r.log.Warn("adapter close failed", "adapter", name, "error", err)
		}
	}
}
