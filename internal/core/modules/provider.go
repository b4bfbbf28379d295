package modules

import (
	"context"
	"fmt"
	"sync"
)

// ManifestProvider maps logical module names to factories registered at
// startup. Safe for concurrent use.
type ManifestProvider struct {
	mu        sync.RWMutex
	factories map[string]func() Module
}

func NewManifestProvider() *ManifestProvider {
	return &ManifestProvider{factories: make(map[string]func() Module)}
}

// Register binds a name to a factory. Re-registering a name replaces the
// previous factory.
func (p *ManifestProvider) Register(name string, factory func() Module) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[name] = factory
}

func (p *ManifestProvider) Resolve(_ context.Context, name string) (Module, error) {
	p.mu.RLock()
	factory, ok := p.factories[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return factory(), nil
}

// Names returns the registered module names.
func (p *ManifestProvider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.factories))
	for name := range p.factories {
		out = append(out, name)
	}
	return out
}
