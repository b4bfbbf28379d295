package engine

import (
	"context"
	"time"

	"github.com/strataui/strata/internal/config"
	"github.com/strataui/strata/internal/core/errs"
	"github.com/strataui/strata/internal/core/events/bus"
	"github.com/strataui/strata/internal/core/modules"
	"github.com/strataui/strata/internal/core/observability/log"
	"github.com/strataui/strata/internal/core/scheduler"
	"github.com/strataui/strata/internal/core/storage"
	"github.com/strataui/strata/internal/core/world"
)

// EventRouteChange carries a route name (string payload) on the bus.
const EventRouteChange = "route:change"

// ThemeKey is the persisted theme preference key.
const ThemeKey = "theme"

// DefaultTheme is reported when no preference has been persisted.
const DefaultTheme = "light"

// Scheduler group names and priorities. Larger priority runs earlier, so the
// error sweep observes a tick before module updates run.
const (
	groupErrors         = "errors"
	groupErrorsPriority = 20
	groupModules        = "modules"
	groupModulesPrio    = 10
)

// Engine is the composition root of the runtime: it owns the World, the
// Scheduler, the EventBus, the ErrorSystem and the ModuleSystem, and drives
// them from a single tick goroutine.
//
// All mutation enters through ticks; external callers hand work to the tick
// boundary via the command queue (see Dispatch).
type Engine struct {
	world   *world.World
	sched   *scheduler.Scheduler
	bus     bus.EventBus
	errors  *errs.System
	modules *modules.System
	store   storage.Store
	logger  log.Log

	tickInterval time.Duration
	commands     chan func()
	routeTarget  world.EntityID

	inspector *Inspector
	now       func() time.Time
}

func New(cfg config.Config, logger log.Log, store storage.Store, provider modules.Provider) *Engine {
	w := world.New(logger)
	b := bus.New(logger)
	errSys := errs.NewSystem(w, store, logger, errs.WithMaxLogSize(cfg.ErrorLogSize))
	modSys := modules.NewSystem(w, errSys, provider, logger,
		modules.WithCache(cfg.ModuleCache.TTL.Std(), cfg.ModuleCache.MaxEntries))

	sched := scheduler.New(logger)
	sched.CreateGroup(groupErrors, groupErrorsPriority).AddSystem(errs.NewSweepSystem(errSys))
	sched.CreateGroup(groupModules, groupModulesPrio).AddSystem(modules.NewUpdateSystem(modSys))

	w.AddSystem("errors", errSys)
	w.AddSystem("modules", modSys)

	e := &Engine{
		world:        w,
		sched:        sched,
		bus:          b,
		errors:       errSys,
		modules:      modSys,
		store:        store,
		logger:       logger,
		tickInterval: cfg.TickInterval.Std(),
		commands:     make(chan func(), 64),
		now:          time.Now,
	}

	sched.OnSystemError(func(system string, err error) {
		errSys.CreateError("system "+system+" failed: "+err.Error(),
			errs.CodeSystemError, "engine", map[string]any{"system": system})
	})

	// escalations navigate like any other route change, on the next tick
	errSys.SetNavigator(e.Dispatch)

	e.routeTarget = w.CreateEntity()
	w.AddComponent(e.routeTarget, modules.ComponentDOM, &modules.DOMComponent{})

	_, _ = b.Subscribe(EventRouteChange, func(ev bus.Event) error {
		route, ok := ev.Data().(string)
		if !ok {
			e.logger.Warn("route change with non-string payload")
			return nil
		}
		modSys.ActivateModuleForRoute(context.Background(), route, e.routeTarget)
		return nil
	})

	if manifest, ok := provider.(*modules.ManifestProvider); ok {
		manifest.Register(errs.DiagnosticsRoute, e.diagnosticsModule)
	}

	return e
}

// SetContainer installs the opaque container handle modules render into.
func (e *Engine) SetContainer(container any) {
	e.world.AddComponent(e.routeTarget, modules.ComponentDOM, &modules.DOMComponent{Container: container})
}

// World exposes the entity store. Tick-goroutine use only.
func (e *Engine) World() *world.World { return e.world }

// Scheduler exposes the tick scheduler. Tick-goroutine use only.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Bus exposes the event bus.
func (e *Engine) Bus() bus.EventBus { return e.bus }

// Errors exposes the error subsystem. Tick-goroutine use only.
func (e *Engine) Errors() *errs.System { return e.errors }

// Modules exposes the module subsystem. Tick-goroutine use only.
func (e *Engine) Modules() *modules.System { return e.modules }

// RouteTarget returns the entity route activations are mounted against.
func (e *Engine) RouteTarget() world.EntityID { return e.routeTarget }

// Dispatch requests navigation to a route. Safe to call from any goroutine;
// the activation happens at the next tick boundary. A full command queue
// drops the request with a warning rather than blocking the caller.
func (e *Engine) Dispatch(route string) {
	cmd := func() {
		_ = e.bus.Publish(bus.NewEvent(EventRouteChange, "router", route))
	}
	select {
	case e.commands <- cmd:
	default:
		e.logger.Warn("command queue full, dropping route change", log.String("route", route))
	}
}

// Tick runs one cooperative pass: queued commands, every scheduler group,
// the deferred world-event flush, then due error escalations.
func (e *Engine) Tick(dt float64) {
	e.drainCommands()
	e.sched.Update(dt)
	e.flushWorldEvents()
	e.errors.DispatchDue(e.now())
}

// Run drives Tick from a ticker until ctx is cancelled. This is the only
// goroutine that may mutate the world.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.logger.Info("engine running", log.Duration("tick", e.tickInterval))
	last := e.now()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return nil
		case t := <-ticker.C:
			dt := t.Sub(last).Seconds()
			last = t
			e.Tick(dt)
		}
	}
}

// SetTheme persists the theme preference through the storage collaborator.
func (e *Engine) SetTheme(name string) error {
	return e.store.Set(ThemeKey, name)
}

// Theme returns the persisted theme preference, or the default.
func (e *Engine) Theme() string {
	if v, ok := e.store.Get(ThemeKey); ok {
		return v
	}
	return DefaultTheme
}

// DeveloperMode reports whether a critical error has ever escalated.
func (e *Engine) DeveloperMode() bool {
	v, ok := e.store.Get(errs.DeveloperModeKey)
	return ok && v == "true"
}

func (e *Engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			cmd()
		default:
			return
		}
	}
}

// flushWorldEvents publishes the tick's deferred world mutations. Listeners
// run here, after every system has finished, so recursive emission cannot
// interleave with mutation.
func (e *Engine) flushWorldEvents() {
	for _, ev := range e.world.DrainEvents() {
		_ = e.bus.Publish(bus.NewEvent(ev.Type, "world", ev))
	}
}
