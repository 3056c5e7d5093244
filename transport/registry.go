package transport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-sfstream/core"
)

const KindMemory = "memory"

// Registry maps a transport kind to the factory that builds it.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]core.TransportFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]core.TransportFactory{},
	}
}

func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.RegisterFactory(KindMemory, NewMemoryFactory())
	return registry
}

func (r *Registry) RegisterFactory(kind string, factory core.TransportFactory) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return fmt.Errorf("transport: kind is required")
	}
	if factory == nil {
		return fmt.Errorf("transport: factory is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("transport: factory kind %q already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

func (r *Registry) Factory(kind string) (core.TransportFactory, error) {
	if r == nil {
		return nil, fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return nil, fmt.Errorf("transport: kind is required")
	}
	r.mu.RLock()
	factory := r.factories[kind]
	r.mu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("transport: kind %q not registered", kind)
	}
	return factory, nil
}

func (r *Registry) Build(ctx context.Context, kind string, opts core.TransportOptions) (core.Transport, error) {
	factory, err := r.Factory(kind)
	if err != nil {
		return nil, err
	}
	built, err := factory(ctx, opts)
	if err != nil {
		return nil, err
	}
	if built == nil {
		return nil, fmt.Errorf("transport: factory for %q returned nil transport", normalizeKind(kind))
	}
	return built, nil
}

func (r *Registry) Kinds() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func normalizeKind(kind string) string {
	return strings.TrimSpace(strings.ToLower(kind))
}
