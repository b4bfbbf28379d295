package modules

import (
	"context"
	"errors"

	"github.com/strataui/strata/internal/core/world"
)

// Module is the closed capability interface every pluggable, route-addressable
// behavior unit implements. Init binds the module to a freshly created
// instance entity and may return a Handle carrying the mount lifecycle.
// Legacy shapes are wrapped through FuncModule at the boundary instead of
// being duck-typed at runtime.
type Module interface {
	Init(w *world.World, instance world.EntityID) (Handle, error)
}

// Handle is the per-activation lifecycle surface returned by Init. A nil
// Handle is valid; mount and unmount then degrade to pure state transitions.
type Handle interface {
	Mount() error
	Unmount() error
}

// Updater is implemented by handles that want a per-tick callback while
// their instance is active.
type Updater interface {
	Update(dt float64) error
}

// Provider resolves a logical module name to an implementation. The runtime
// never probes paths at runtime; providers are expected to be backed by a
// startup-time manifest.
type Provider interface {
	Resolve(ctx context.Context, name string) (Module, error)
}

// ErrUnknownModule is returned by providers for names absent from their
// manifest.
var ErrUnknownModule = errors.New("modules: unknown module")

// FuncModule adapts a func-shaped legacy module to the Module interface.
// Only OnInit is required; absent callbacks are no-ops.
type FuncModule struct {
	OnInit    func(w *world.World, instance world.EntityID) error
	OnMount   func() error
	OnUnmount func() error
	OnUpdate  func(dt float64) error
}

func (m FuncModule) Init(w *world.World, instance world.EntityID) (Handle, error) {
	if m.OnInit != nil {
		if err := m.OnInit(w, instance); err != nil {
			return nil, err
		}
	}
	if m.OnUpdate != nil {
		return funcUpdaterHandle{funcHandle{m.OnMount, m.OnUnmount}, m.OnUpdate}, nil
	}
	return funcHandle{m.OnMount, m.OnUnmount}, nil
}

type funcHandle struct {
	mount   func() error
	unmount func() error
}

func (h funcHandle) Mount() error {
	if h.mount == nil {
		return nil
	}
	return h.mount()
}

func (h funcHandle) Unmount() error {
	if h.unmount == nil {
		return nil
	}
	return h.unmount()
}

type funcUpdaterHandle struct {
	funcHandle
	update func(dt float64) error
}

func (h funcUpdaterHandle) Update(dt float64) error {
	return h.update(dt)
}
