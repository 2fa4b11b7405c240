package inference

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured providers and the default one
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. The first registered provider becomes the default.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	if r.defaultName == "" {
		r.defaultName = p.Name()
	}
}

// Get returns a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// SetDefault selects the default provider
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	r.defaultName = name
	return nil
}

// Default returns the default provider
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	name := r.defaultName
	r.mu.RUnlock()
	if name == "" {
		return nil, ErrProviderNotFound
	}
	return r.Get(name)
}

// Names lists registered providers, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderStatus is the availability of one provider
type ProviderStatus struct {
	Name      string
	Available bool
	Default   bool
}

// Status checks every provider's availability
func (r *Registry) Status(ctx context.Context) []ProviderStatus {
	names := r.Names()
	r.mu.RLock()
	def := r.defaultName
	r.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		out = append(out, ProviderStatus{
			Name:      name,
			Available: p.IsAvailable(ctx),
			Default:   name == def,
		})
	}
	return out
}
