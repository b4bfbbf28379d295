package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/strataui/strata/internal/core/errs"
	"github.com/strataui/strata/internal/core/observability/log"
	"github.com/strataui/strata/internal/core/world"
)

// System resolves logical module names to implementations, drives the
// activation lifecycle against target entities, and caches activations by
// (module, target) key.
//
// Failures inside module lifecycle calls are converted to error entities and
// absorbed here; they never unwind past the public operations. Not safe for
// concurrent use; it lives on the engine tick goroutine.
type System struct {
	world    *world.World
	errors   *errs.System
	provider Provider
	logger   log.Log
	now      func() time.Time

	cache *activationCache

	// routeGen rises on every route activation; an in-flight activation
	// whose generation is stale no-ops instead of mounting over its
	// successor.
	routeGen uint64
}

type Option func(*System)

func WithClock(now func() time.Time) Option {
	return func(s *System) { s.now = now }
}

func WithCache(ttl time.Duration, maxSize int) Option {
	return func(s *System) { s.cache = newActivationCache(ttl, maxSize) }
}

func NewSystem(w *world.World, errors *errs.System, provider Provider, logger log.Log, opts ...Option) *System {
	s := &System{
		world:    w,
		errors:   errors,
		provider: provider,
		logger:   logger,
		now:      time.Now,
		cache:    newActivationCache(DefaultCacheTTL, DefaultCacheMaxSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates or updates the module definition entity for name and
// marks it loaded with the given implementation.
func (s *System) Register(name string, impl Module) world.EntityID {
	return s.register(name, impl, false)
}

func (s *System) register(name string, impl Module, fallback bool) world.EntityID {
	if def, comp, ok := s.definition(name); ok {
		comp.Impl = impl
		comp.Loaded = true
		comp.Fallback = fallback
		comp.State = DefinitionLoaded
		return def
	}
	def := s.world.CreateEntity()
	s.world.AddComponent(def, ComponentModule, &DefinitionComponent{
		Name:     name,
		State:    DefinitionLoaded,
		Loaded:   true,
		Fallback: fallback,
		Impl:     impl,
	})
	s.logger.Debug("module registered", log.String("module", name), log.Bool("fallback", fallback))
	return def
}

// LoadModule returns the implementation for name, resolving it through the
// provider on first use. Resolution failure never propagates: the failure is
// reported as an error entity and a fallback stub is registered and
// returned, so a route activation always has something renderable. The
// second result is false when the returned implementation is a fallback.
func (s *System) LoadModule(ctx context.Context, name string) (Module, bool) {
	if _, comp, ok := s.definition(name); ok && comp.Loaded && comp.Impl != nil {
		return comp.Impl, !comp.Fallback
	}

	impl, err := s.provider.Resolve(ctx, name)
	if err != nil {
		s.errors.CreateError(
			fmt.Sprintf("failed to load module %q: %v", name, err),
			errs.CodeModuleLoadError, "module", map[string]any{"module": name})
		impl = newFallbackModule(name, err)
		s.register(name, impl, true)
		return impl, false
	}
	s.register(name, impl, false)
	return impl, true
}

// ActivateModule validates the named module is loaded, creates a module
// instance entity bound to parent, and invokes the implementation's Init.
// Returns (0, false) and reports an error entity on every failure shape:
// module not found, not loaded, or Init failing.
func (s *System) ActivateModule(name string, parent world.EntityID) (world.EntityID, bool) {
	def, _, ok := s.definition(name)
	if !ok {
		s.errors.CreateError(
			fmt.Sprintf("module %q not found", name),
			errs.CodeModuleNotFound, "module", map[string]any{"module": name})
		return 0, false
	}
	return s.ActivateModuleEntity(def, parent)
}

// ActivateModuleEntity is ActivateModule addressed by definition entity.
func (s *System) ActivateModuleEntity(def world.EntityID, parent world.EntityID) (world.EntityID, bool) {
	raw, ok := s.world.GetComponent(def, ComponentModule)
	if !ok {
		s.errors.CreateError(
			fmt.Sprintf("entity %d is not a module definition", def),
			errs.CodeModuleNotFound, "module", map[string]any{"entity": uint64(def)})
		return 0, false
	}
	comp := raw.(*DefinitionComponent)
	if !comp.Loaded || comp.Impl == nil {
		s.errors.CreateError(
			fmt.Sprintf("module %q is not loaded", comp.Name),
			errs.CodeModuleNotLoaded, "module", map[string]any{"module": comp.Name})
		return 0, false
	}

	instance := s.world.CreateEntity()
	inst := &InstanceComponent{
		ModuleEntity: def,
		ModuleName:   comp.Name,
		State:        InstanceCreated,
		Parent:       parent,
	}
	s.world.AddComponent(instance, ComponentInstance, inst)

	handle, err := s.safeInit(comp.Impl, instance)
	if err != nil {
		s.errors.CreateError(
			fmt.Sprintf("module %q init failed: %v", comp.Name, err),
			errs.CodeModuleActivationError, "module", map[string]any{"module": comp.Name})
		s.world.DestroyEntity(instance)
		return 0, false
	}
	inst.Handle = handle
	return instance, true
}

// MountModule transitions the instance to active and invokes the handle's
// Mount. The state transition is applied even when Mount fails; the failure
// is reported as an error entity and false is returned.
func (s *System) MountModule(instance world.EntityID) bool {
	inst, ok := s.instance(instance)
	if !ok {
		return false
	}
	inst.State = InstanceActive
	if inst.Handle == nil {
		return true
	}
	if err := safeCall(inst.Handle.Mount); err != nil {
		s.errors.CreateError(
			fmt.Sprintf("module %q mount failed: %v", inst.ModuleName, err),
			errs.CodeModuleMountError, "module", map[string]any{"module": inst.ModuleName})
		return false
	}
	return true
}

// UnmountModule transitions the instance to inactive and invokes the
// handle's Unmount. Same failure contract as MountModule.
func (s *System) UnmountModule(instance world.EntityID) bool {
	inst, ok := s.instance(instance)
	if !ok {
		return false
	}
	inst.State = InstanceInactive
	if inst.Handle == nil {
		return true
	}
	if err := safeCall(inst.Handle.Unmount); err != nil {
		s.errors.CreateError(
			fmt.Sprintf("module %q unmount failed: %v", inst.ModuleName, err),
			errs.CodeModuleUnmountError, "module", map[string]any{"module": inst.ModuleName})
		return false
	}
	return true
}

// ActivateModuleForRoute is the route-driven entry point: it unmounts every
// active instance, reuses a cached activation inside the TTL window (no
// reload), and otherwise registers, loads, activates and mounts the module
// against target. On any failure the target's view lands on error, never
// loading, and the call still returns.
func (s *System) ActivateModuleForRoute(ctx context.Context, name string, target world.EntityID) (world.EntityID, bool) {
	s.routeGen++
	gen := s.routeGen

	s.setView(target, ViewLoading, "")

	// there should be at most one, but tolerate and unmount all matches
	for _, id := range s.world.EntitiesWith(ComponentInstance) {
		if inst, ok := s.instance(id); ok && inst.State == InstanceActive {
			s.UnmountModule(id)
		}
	}

	key := cacheKey(name, target)
	if cached, ok := s.cache.Get(key, s.now()); ok {
		if _, alive := s.instance(cached); alive {
			s.cache.Touch(key, s.now())
			if s.MountModule(cached) {
				s.setView(target, ViewReady, "")
				return cached, true
			}
			s.setView(target, ViewError, fmt.Sprintf("module %q failed to mount", name))
			return cached, false
		}
		// instance entity was destroyed behind the cache's back
		s.cache.Remove(key)
	}

	_, loaded := s.LoadModule(ctx, name)

	// a later activation may have superseded this one while the provider
	// resolved; if so, leave the world to the winner
	if s.routeGen != gen {
		s.logger.Debug("route activation superseded", log.String("module", name))
		return 0, false
	}

	if !loaded {
		// activate and mount the fallback so the route still renders; its
		// init has already put the target view into the error state
		if instance, ok := s.ActivateModule(name, target); ok {
			s.MountModule(instance)
			return instance, false
		}
		s.setView(target, ViewError, fmt.Sprintf("module %q failed to load", name))
		return 0, false
	}

	instance, ok := s.ActivateModule(name, target)
	if !ok {
		s.setView(target, ViewError, fmt.Sprintf("module %q failed to activate", name))
		return 0, false
	}

	mounted := s.MountModule(instance)
	s.cache.Put(key, instance, s.now())
	if !mounted {
		s.setView(target, ViewError, fmt.Sprintf("module %q failed to mount", name))
		return instance, false
	}
	s.setView(target, ViewReady, "")
	s.logger.Info("route activated",
		log.String("module", name), log.Uint64("target", uint64(target)))
	return instance, true
}

// DestroyInstance removes an instance entity and any cache entries pointing
// at it. An active instance is unmounted first.
func (s *System) DestroyInstance(instance world.EntityID) bool {
	if inst, ok := s.instance(instance); ok && inst.State == InstanceActive {
		s.UnmountModule(instance)
	}
	s.cache.RemoveInstance(instance)
	return s.world.DestroyEntity(instance)
}

// CacheLen returns the number of live activation cache entries.
func (s *System) CacheLen() int {
	return s.cache.Len()
}

func (s *System) definition(name string) (world.EntityID, *DefinitionComponent, bool) {
	for _, id := range s.world.EntitiesWith(ComponentModule) {
		raw, _ := s.world.GetComponent(id, ComponentModule)
		if comp, ok := raw.(*DefinitionComponent); ok && comp.Name == name {
			return id, comp, true
		}
	}
	return 0, nil, false
}

func (s *System) instance(id world.EntityID) (*InstanceComponent, bool) {
	raw, ok := s.world.GetComponent(id, ComponentInstance)
	if !ok {
		return nil, false
	}
	inst, ok := raw.(*InstanceComponent)
	return inst, ok
}

func (s *System) setView(target world.EntityID, state ViewState, message string) {
	if !s.world.HasEntity(target) {
		return
	}
	s.world.AddComponent(target, ComponentView, &ViewComponent{State: state, Message: message})
}

func (s *System) safeInit(impl Module, instance world.EntityID) (handle Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panicked: %v", r)
		}
	}()
	return impl.Init(s.world, instance)
}

// safeCall invokes a lifecycle func, converting a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return fn()
}

func cacheKey(name string, target world.EntityID) string {
	return fmt.Sprintf("%s-%d", name, target)
}
