package bus

import "time"

// Wildcard is the subscription type that receives every published event.
const Wildcard = "*"

// EventBus defines a synchronous, in-process pub/sub event bus.
//
// Key characteristics:
// - Type-based fan-out: handlers subscribe by Event.Type() string.
// - Wildcard: subscribing to "*" receives every event, carrying its original type.
// - Synchronous delivery: Publish calls handler callbacks in the caller goroutine.
// - Isolation: a panicking handler is recovered and logged; remaining handlers
//   for the same event still run. Handler errors are joined and returned.
// - Dispatch cost is proportional to the listeners of that type plus wildcard
//   listeners, not the total listener population.
// - Optional observability: metrics are produced only when observers are registered.
//
// All methods are safe for concurrent use; handlers themselves run on the
// publishing goroutine.
type EventBus interface {
	// Publish delivers the event synchronously to all active subscribers of
	// event.Type() and to wildcard subscribers. If one or more handlers return
	// an error, a joined error is returned.
	Publish(event Event) error
	// Subscribe registers a handler for a specific event type (or Wildcard) and
	// returns a Subscription handle that can be used to cancel later.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil; does nothing.
	Unsubscribe(Subscription) error

	// AddObserver registers an observer to receive delivery callbacks.
	AddObserver(obs EventBusObserver)
	// RemoveObserver unregisters a previously added observer.
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a best-effort snapshot of accumulated metrics. Metrics
	// are only collected when at least one observer is registered.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message transported by the EventBus. Implementations
// should treat Event values as read-only.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is a user callback invoked per delivered event. If it returns
// an error, Publish aggregates and returns it.
type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
// Use Cancel or EventBus.Unsubscribe to stop receiving events.
type Subscription interface {
	// ID is a unique identifier for this subscription.
	ID() string
	// EventType returns the event type this subscription listens to.
	EventType() string
	// IsActive reports whether this subscription is still registered.
	IsActive() bool
	// Cancel de-registers the handler from the bus. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, durationMicros int64)
}

// EventBusMetrics represents a minimal set of counters; it is updated only
// when at least one observer is registered.
type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	Panics            uint64
	SubscribersActive uint64
}
