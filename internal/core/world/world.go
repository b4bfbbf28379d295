package world

import (
	"sort"

	"github.com/strataui/strata/internal/core/observability/log"
	"github.com/strataui/strata/pkg/sequence"
)

// EntityID identifies an entity. IDs are monotonically increasing and never
// reused, so ascending ID order is creation order.
type EntityID uint64

// Event is a deferred world notification. Mutations enqueue events; the
// engine flushes them onto the bus once at the end of each tick, so a
// listener can never observe (or trigger) a mutation mid-flight.
type Event struct {
	Type   string
	Entity EntityID
	Data   any
}

// World event types.
const (
	EventEntityCreated    = "entity:created"
	EventEntityDestroyed  = "entity:destroyed"
	EventComponentAdded   = "component:added"
	EventComponentRemoved = "component:removed"
)

// World owns entities and their per-type component stores.
//
// Invariant: an entity ID appears in a component type's store iff that type
// is in the entity's mask.
//
// World is not safe for concurrent use; all mutations must happen on the
// engine tick goroutine.
type World struct {
	nextID EntityID

	// masks: entity -> set of component type names
	masks map[EntityID]map[string]struct{}
	// stores: component type name -> entity -> payload
	stores map[string]map[EntityID]any

	systems map[string]any
	pending *sequence.Queue[Event]
	logger  log.Log
}

func New(logger log.Log) *World {
	return &World{
		masks:   make(map[EntityID]map[string]struct{}),
		stores:  make(map[string]map[EntityID]any),
		systems: make(map[string]any),
		pending: sequence.NewQueue[Event](),
		logger:  logger,
	}
}

// CreateEntity allocates a fresh entity with an empty component mask.
func (w *World) CreateEntity() EntityID {
	w.nextID++
	id := w.nextID
	w.masks[id] = make(map[string]struct{})
	w.pending.Enqueue(Event{Type: EventEntityCreated, Entity: id})
	return id
}

// DestroyEntity removes the entity and cascades removal from every component
// store it was registered in. Returns false if the entity does not exist.
func (w *World) DestroyEntity(id EntityID) bool {
	mask, ok := w.masks[id]
	if !ok {
		return false
	}
	for ctype := range mask {
		delete(w.stores[ctype], id)
	}
	delete(w.masks, id)
	w.pending.Enqueue(Event{Type: EventEntityDestroyed, Entity: id})
	return true
}

// HasEntity reports whether the entity is alive.
func (w *World) HasEntity(id EntityID) bool {
	_, ok := w.masks[id]
	return ok
}

// AddComponent attaches a component payload of the given type to the entity
// and returns it. Adding to a missing entity is a usage error: it logs a
// warning and returns nil, leaving every store unchanged.
func (w *World) AddComponent(id EntityID, ctype string, data any) any {
	mask, ok := w.masks[id]
	if !ok {
		w.logger.Warn("add component on missing entity",
			log.Uint64("entity", uint64(id)), log.String("component", ctype))
		return nil
	}
	store, ok := w.stores[ctype]
	if !ok {
		store = make(map[EntityID]any)
		w.stores[ctype] = store
	}
	store[id] = data
	mask[ctype] = struct{}{}
	w.pending.Enqueue(Event{Type: EventComponentAdded, Entity: id, Data: ctype})
	return data
}

// RemoveComponent detaches a component type from the entity. Returns false if
// the entity does not exist or does not carry the type.
func (w *World) RemoveComponent(id EntityID, ctype string) bool {
	mask, ok := w.masks[id]
	if !ok {
		return false
	}
	if _, ok = mask[ctype]; !ok {
		return false
	}
	delete(mask, ctype)
	delete(w.stores[ctype], id)
	w.pending.Enqueue(Event{Type: EventComponentRemoved, Entity: id, Data: ctype})
	return true
}

// GetComponent returns the payload of the given type attached to the entity.
func (w *World) GetComponent(id EntityID, ctype string) (any, bool) {
	store, ok := w.stores[ctype]
	if !ok {
		return nil, false
	}
	data, ok := store[id]
	return data, ok
}

// EntitiesWith returns the IDs whose mask is a superset of the requested
// types, in entity creation order. With no arguments it returns every alive
// entity.
func (w *World) EntitiesWith(types ...string) []EntityID {
	var out []EntityID
	for id, mask := range w.masks {
		match := true
		for _, t := range types {
			if _, ok := mask[t]; !ok {
				match = false
				break
			}
		}
		if match {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddSystem registers a named system on the world so collaborators can find
// each other without package-level state.
func (w *World) AddSystem(name string, system any) {
	w.systems[name] = system
}

func (w *World) GetSystem(name string) (any, bool) {
	s, ok := w.systems[name]
	return s, ok
}

// EntityCount returns the number of alive entities.
func (w *World) EntityCount() int {
	return len(w.masks)
}

// DrainEvents removes and returns every pending deferred event. Events
// enqueued while the caller processes the returned slice are picked up by the
// next drain.
func (w *World) DrainEvents() []Event {
	return w.pending.Drain()
}

// PendingEvents returns the number of queued deferred events.
func (w *World) PendingEvents() int {
	return w.pending.Len()
}
