package engine

import "context"

// ProviderRequest is assembled by the Backend Caller for one attempt against
// one provider.
type ProviderRequest struct {
	Input     any
	Options   map[string]any
	Metadata  map[string]any
	Dimension string
}

// ProviderResponse is what a Provider returns for one attempt. A non-empty
// Error marks the attempt failed; otherwise Data carries the payload.
type ProviderResponse struct {
	Data     any
	Error    string
	Metadata *ResultMetadata
}

// Provider is the external backend-adapter contract: a named text-completion
// service. Concrete adapters (HTTP clients to completion services) are out
// of scope for this engine and live in host applications or examples.
type Provider interface {
	Name() string
	Execute(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)
}

// Registry resolves a provider by name.
type Registry interface {
	Get(name string) (Provider, bool)
}

// mapRegistry is the default Registry backed by a plain map.
type mapRegistry map[string]Provider

// NewRegistry builds a Registry from a list of providers, keyed by Name().
func NewRegistry(providers ...Provider) Registry {
	m := make(mapRegistry, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return m
}

func (m mapRegistry) Get(name string) (Provider, bool) {
	p, ok := m[name]
	return p, ok
}
