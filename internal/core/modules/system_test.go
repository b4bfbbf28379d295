package modules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataui/strata/internal/core/errs"
	"github.com/strataui/strata/internal/core/observability/log"
	"github.com/strataui/strata/internal/core/storage"
	"github.com/strataui/strata/internal/core/world"
)

type countingProvider struct {
	calls     map[string]int
	factories map[string]func() Module
	onResolve func(name string)
}

func newCountingProvider() *countingProvider {
	return &countingProvider{
		calls:     make(map[string]int),
		factories: make(map[string]func() Module),
	}
}

func (p *countingProvider) Resolve(_ context.Context, name string) (Module, error) {
	p.calls[name]++
	if p.onResolve != nil {
		p.onResolve(name)
	}
	factory, ok := p.factories[name]
	if !ok {
		return nil, errors.New("manifest lookup failed for " + name)
	}
	return factory(), nil
}

type moduleFixture struct {
	world    *world.World
	errs     *errs.System
	provider *countingProvider
	sys      *System
	now      time.Time
	target   world.EntityID
}

func newModuleFixture(t *testing.T, opts ...Option) *moduleFixture {
	t.Helper()
	f := &moduleFixture{
		world:    world.New(log.NewNop()),
		provider: newCountingProvider(),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.errs = errs.NewSystem(f.world, storage.NewMemoryStore(), log.NewNop())
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.sys = NewSystem(f.world, f.errs, f.provider, log.NewNop(), opts...)
	f.target = f.world.CreateEntity()
	f.world.AddComponent(f.target, ComponentDOM, &DOMComponent{})
	return f
}

func (f *moduleFixture) errorCodes() []string {
	var out []string
	for _, id := range f.world.EntitiesWith(errs.ComponentError) {
		raw, _ := f.world.GetComponent(id, errs.ComponentError)
		out = append(out, raw.(*errs.Component).Code)
	}
	return out
}

func (f *moduleFixture) view() *ViewComponent {
	raw, ok := f.world.GetComponent(f.target, ComponentView)
	if !ok {
		return nil
	}
	return raw.(*ViewComponent)
}

func (f *moduleFixture) instanceState(id world.EntityID) InstanceState {
	inst, ok := f.sys.instance(id)
	if !ok {
		return ""
	}
	return inst.State
}

func TestRegisterActivateMount(t *testing.T) {
	f := newModuleFixture(t)

	mounted, unmounted := 0, 0
	f.sys.Register("home", FuncModule{
		OnMount:   func() error { mounted++; return nil },
		OnUnmount: func() error { unmounted++; return nil },
	})

	instance, ok := f.sys.ActivateModule("home", f.target)
	require.True(t, ok)
	assert.Equal(t, InstanceCreated, f.instanceState(instance))

	require.True(t, f.sys.MountModule(instance))
	assert.Equal(t, InstanceActive, f.instanceState(instance))
	assert.Equal(t, 1, mounted)

	require.True(t, f.sys.UnmountModule(instance))
	assert.Equal(t, InstanceInactive, f.instanceState(instance))
	assert.Equal(t, 1, unmounted)
	assert.Empty(t, f.errorCodes())
}

func TestActivateUnknownModule(t *testing.T) {
	f := newModuleFixture(t)

	_, ok := f.sys.ActivateModule("ghost", f.target)
	assert.False(t, ok)
	assert.Equal(t, []string{errs.CodeModuleNotFound}, f.errorCodes())
}

func TestActivateInitFailureDestroysInstance(t *testing.T) {
	f := newModuleFixture(t)

	f.sys.Register("broken", FuncModule{
		OnInit: func(_ *world.World, _ world.EntityID) error { return errors.New("no good") },
	})

	_, ok := f.sys.ActivateModule("broken", f.target)
	assert.False(t, ok)
	assert.Equal(t, []string{errs.CodeModuleActivationError}, f.errorCodes())
	assert.Empty(t, f.world.EntitiesWith(ComponentInstance), "failed activation leaves no instance")
}

func TestActivateInitPanicIsConverted(t *testing.T) {
	f := newModuleFixture(t)

	f.sys.Register("panicky", FuncModule{
		OnInit: func(_ *world.World, _ world.EntityID) error { panic("init went sideways") },
	})

	_, ok := f.sys.ActivateModule("panicky", f.target)
	assert.False(t, ok)
	assert.Equal(t, []string{errs.CodeModuleActivationError}, f.errorCodes())
}

func TestMountFailureStillTransitions(t *testing.T) {
	f := newModuleFixture(t)

	f.sys.Register("home", FuncModule{
		OnMount: func() error { return errors.New("mount refused") },
	})
	instance, ok := f.sys.ActivateModule("home", f.target)
	require.True(t, ok)

	assert.False(t, f.sys.MountModule(instance))
	assert.Equal(t, InstanceActive, f.instanceState(instance), "state applied even on failure")
	assert.Equal(t, []string{errs.CodeModuleMountError}, f.errorCodes())
}

func TestLoadModuleResolutionFailureFallsBack(t *testing.T) {
	f := newModuleFixture(t)

	impl, loaded := f.sys.LoadModule(context.Background(), "absent")
	require.NotNil(t, impl)
	assert.False(t, loaded)
	assert.Equal(t, []string{errs.CodeModuleLoadError}, f.errorCodes())

	// the fallback stays registered; a repeat load does not re-resolve
	impl2, loaded2 := f.sys.LoadModule(context.Background(), "absent")
	assert.NotNil(t, impl2)
	assert.False(t, loaded2)
	assert.Equal(t, 1, f.provider.calls["absent"])
}

func TestRouteActivationHappyPath(t *testing.T) {
	f := newModuleFixture(t)
	f.provider.factories["home"] = func() Module { return FuncModule{} }

	instance, ok := f.sys.ActivateModuleForRoute(context.Background(), "home", f.target)
	require.True(t, ok)
	assert.Equal(t, InstanceActive, f.instanceState(instance))
	require.NotNil(t, f.view())
	assert.Equal(t, ViewReady, f.view().State)
	assert.Equal(t, 1, f.sys.CacheLen())
}

func TestRouteActivationReusesCachedInstance(t *testing.T) {
	f := newModuleFixture(t)
	f.provider.factories["home"] = func() Module { return FuncModule{} }

	first, ok := f.sys.ActivateModuleForRoute(context.Background(), "home", f.target)
	require.True(t, ok)

	f.now = f.now.Add(time.Minute) // inside the 5m TTL
	second, ok := f.sys.ActivateModuleForRoute(context.Background(), "home", f.target)
	require.True(t, ok)

	assert.Equal(t, first, second, "cached activation reused")
	assert.Equal(t, 1, f.provider.calls["home"], "no reload inside the TTL window")
	assert.Len(t, f.world.EntitiesWith(ComponentInstance), 1)
	assert.Equal(t, ViewReady, f.view().State)
}

func TestRouteActivationReloadsAfterTTL(t *testing.T) {
	f := newModuleFixture(t)
	f.provider.factories["home"] = func() Module { return FuncModule{} }

	first, _ := f.sys.ActivateModuleForRoute(context.Background(), "home", f.target)

	f.now = f.now.Add(DefaultCacheTTL + time.Second)
	second, ok := f.sys.ActivateModuleForRoute(context.Background(), "home", f.target)
	require.True(t, ok)

	assert.NotEqual(t, first, second, "expired entry means a fresh activation")
	assert.Equal(t, 1, f.provider.calls["home"], "definition stays loaded; only the activation is redone")
}

func TestRouteActivationUnmountsPrevious(t *testing.T) {
	f := newModuleFixture(t)
	f.provider.factories["home"] = func() Module { return FuncModule{} }
	f.provider.factories["about"] = func() Module { return FuncModule{} }

	homeInst, ok := f.sys.ActivateModuleForRoute(context.Background(), "home", f.target)
	require.True(t, ok)

	aboutInst, ok := f.sys.ActivateModuleForRoute(context.Background(), "about", f.target)
	require.True(t, ok)

	assert.Equal(t, InstanceInactive, f.instanceState(homeInst))
	assert.Equal(t, InstanceActive, f.instanceState(aboutInst))
}

func TestRouteActivationFailureRendersFallback(t *testing.T) {
	f := newModuleFixture(t)

	instance, ok := f.sys.ActivateModuleForRoute(context.Background(), "absent", f.target)
	assert.False(t, ok)
	assert.NotZero(t, instance, "fallback instance still mounted")
	assert.Equal(t, InstanceActive, f.instanceState(instance))

	require.NotNil(t, f.view())
	assert.Equal(t, ViewError, f.view().State, "view ends on error, never loading")
	assert.NotEmpty(t, f.view().Message)
	assert.Equal(t, 0, f.sys.CacheLen(), "fallback activations are not cached")
	assert.Contains(t, f.errorCodes(), errs.CodeModuleLoadError)
}

func TestRouteActivationSuperseded(t *testing.T) {
	f := newModuleFixture(t)
	f.provider.factories["slow"] = func() Module { return FuncModule{} }
	f.provider.factories["fast"] = func() Module { return FuncModule{} }

	// while "slow" resolves, a newer activation for "fast" wins the route
	f.provider.onResolve = func(name string) {
		if name == "slow" {
			f.provider.onResolve = nil
			_, ok := f.sys.ActivateModuleForRoute(context.Background(), "fast", f.target)
			require.True(t, ok)
		}
	}

	instance, ok := f.sys.ActivateModuleForRoute(context.Background(), "slow", f.target)
	assert.False(t, ok)
	assert.Zero(t, instance, "superseded activation must not mount")

	assert.Equal(t, ViewReady, f.view().State, "winner's view state stands")
	assert.Len(t, f.world.EntitiesWith(ComponentInstance), 1)
}

func TestDestroyInstanceDropsCacheEntry(t *testing.T) {
	f := newModuleFixture(t)
	f.provider.factories["home"] = func() Module { return FuncModule{} }

	instance, ok := f.sys.ActivateModuleForRoute(context.Background(), "home", f.target)
	require.True(t, ok)
	require.Equal(t, 1, f.sys.CacheLen())

	require.True(t, f.sys.DestroyInstance(instance))
	assert.Equal(t, 0, f.sys.CacheLen())
	assert.False(t, f.world.HasEntity(instance))

	// next activation must not trip over the stale cache entry
	second, ok := f.sys.ActivateModuleForRoute(context.Background(), "home", f.target)
	require.True(t, ok)
	assert.NotEqual(t, instance, second)
}

func TestUpdateSystemDrivesActiveInstances(t *testing.T) {
	f := newModuleFixture(t)

	var dts []float64
	f.sys.Register("anim", FuncModule{
		OnUpdate: func(dt float64) error { dts = append(dts, dt); return nil },
	})
	instance, ok := f.sys.ActivateModule("anim", f.target)
	require.True(t, ok)

	update := NewUpdateSystem(f.sys)
	require.NoError(t, update.Update(0.016))
	assert.Empty(t, dts, "created instances are not updated")

	f.sys.MountModule(instance)
	require.NoError(t, update.Update(0.016))
	assert.Equal(t, []float64{0.016}, dts)

	f.sys.UnmountModule(instance)
	require.NoError(t, update.Update(0.016))
	assert.Len(t, dts, 1, "inactive instances are not updated")
}

func TestUpdateFailureReported(t *testing.T) {
	f := newModuleFixture(t)

	f.sys.Register("flaky", FuncModule{
		OnUpdate: func(_ float64) error { return errors.New("update fell over") },
	})
	instance, _ := f.sys.ActivateModule("flaky", f.target)
	f.sys.MountModule(instance)

	update := NewUpdateSystem(f.sys)
	require.NoError(t, update.Update(0.016), "failures never abort the pass")
	assert.Equal(t, []string{errs.CodeModuleUpdateError}, f.errorCodes())
}
