package environment

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderInfo pairs an environment kind with its capabilities.
type ProviderInfo struct {
	Kind         string       `json:"kind"`
	Capabilities Capabilities `json:"capabilities"`
}

// Registry holds the registered providers, one per environment kind.
// The environment set is closed: resolving an unregistered kind is an error,
// never a silent fallback to a different provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under its own kind, replacing any previous
// registration for that kind.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Kind()] = p
}

// Resolve returns the provider for the given environment kind.
func (r *Registry) Resolve(kind string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("environment %q is not registered", kind)
	}
	return p, nil
}

// List returns information about all registered providers, sorted by kind
// for a stable API response.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for kind, p := range r.providers {
		infos = append(infos, ProviderInfo{
			Kind:         kind,
			Capabilities: p.Capabilities(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Kind < infos[j].Kind
	})
	return infos
}
