package engine

import (
	"github.com/strataui/strata/internal/core/events/bus"
)

// Inspector is the explicit debug handle returned by the composition root;
// nothing is ever attached to process-wide state. Snapshots read live
// structures, so take them from the tick goroutine (the diagnostics module
// does) or while the engine is stopped.
type Inspector struct {
	engine *Engine
}

// Snapshot is a point-in-time view of the runtime.
type Snapshot struct {
	Entities           int
	PendingWorldEvents int
	ExecutionOrder     []string
	ModuleCacheEntries int
	ErrorLogEntries    int
	PendingEscalations int
	Bus                bus.EventBusMetrics
	Theme              string
	DeveloperMode      bool
}

// busTap turns on bus metrics collection for as long as the inspector lives.
type busTap struct{}

func (busTap) OnPublish(string, bus.Event)           {}
func (busTap) OnDelivered(string, int, error, int64) {}

// Inspector returns the debug handle, creating it (and enabling bus metrics)
// on first use.
func (e *Engine) Inspector() *Inspector {
	if e.inspector == nil {
		e.inspector = &Inspector{engine: e}
		e.bus.AddObserver(busTap{})
	}
	return e.inspector
}

func (i *Inspector) Snapshot() Snapshot {
	e := i.engine
	return Snapshot{
		Entities:           e.world.EntityCount(),
		PendingWorldEvents: e.world.PendingEvents(),
		ExecutionOrder:     e.sched.ExecutionOrder(),
		ModuleCacheEntries: e.modules.CacheLen(),
		ErrorLogEntries:    len(e.errors.Log()),
		PendingEscalations: e.errors.PendingEscalations(),
		Bus:                e.bus.GetMetrics(),
		Theme:              e.Theme(),
		DeveloperMode:      e.DeveloperMode(),
	}
}
