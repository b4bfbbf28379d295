package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strataui/strata/internal/core/observability/log"
)

// simpleEvent is a basic implementation of Event.
// It can be used by callers who don't have their own Event types.
type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a simple Event implementation.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

// subscription implements Subscription interface.
type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	active    bool
	order     uint64
	cancel    func()
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active }
func (s *subscription) Cancel() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.active = false
	return nil
}

// inMemoryBus is a thread-safe implementation of EventBus.
type inMemoryBus struct {
	mu sync.RWMutex
	// handlers: eventType -> subID -> subscription
	handlers  map[string]map[string]*subscription
	nextOrder uint64
	metrics   EventBusMetrics
	observers map[EventBusObserver]struct{}
	logger    log.Log
}

// New creates a new EventBus instance.
func New(logger log.Log) EventBus {
	return &inMemoryBus{
		handlers:  make(map[string]map[string]*subscription),
		observers: make(map[EventBusObserver]struct{}),
		logger:    logger,
	}
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("bus: nil handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]*subscription)
	}
	id := uuid.NewString()
	b.nextOrder++
	s := &subscription{id: id, eventType: eventType, handler: handler, active: true, order: b.nextOrder}
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if mm, ok := b.handlers[eventType]; ok {
			delete(mm, id)
		}
		s.active = false
	}
	b.handlers[eventType][id] = s
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) Publish(event Event) error {
	start := time.Now()
	etype := event.Type()

	b.mu.RLock()
	subs := collect(b.handlers[etype])
	if etype != Wildcard {
		subs = append(subs, collect(b.handlers[Wildcard])...)
	}
	obsCount := len(b.observers)
	b.mu.RUnlock()

	if obsCount > 0 {
		for obs := range b.observers {
			obs.OnPublish(etype, event)
		}
	}

	var all error
	var panics uint64
	for _, s := range subs {
		if !s.active {
			continue
		}
		if err := b.invoke(s, event); err != nil {
			if errors.As(err, new(handlerPanic)) {
				panics++
			}
			all = errors.Join(all, err)
		}
	}

	if obsCount > 0 {
		dur := time.Since(start).Microseconds()
		for obs := range b.observers {
			obs.OnDelivered(etype, len(subs), all, dur)
		}
		b.mu.Lock()
		b.metrics.Published++
		b.metrics.DeliveredHandlers += uint64(len(subs))
		b.metrics.Panics += panics
		if all != nil {
			b.metrics.Errors++
		}
		var subsCount uint64
		for _, m := range b.handlers {
			subsCount += uint64(len(m))
		}
		b.metrics.SubscribersActive = subsCount
		b.mu.Unlock()
	}
	return all
}

type handlerPanic struct {
	sub   string
	etype string
	value any
}

func (p handlerPanic) Error() string {
	return fmt.Sprintf("bus: handler %s panicked on %q: %v", p.sub, p.etype, p.value)
}

// invoke runs one handler, converting a panic into an error so one failing
// handler cannot block delivery to the rest.
func (b *inMemoryBus) invoke(s *subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = handlerPanic{sub: s.id, etype: event.Type(), value: r}
			b.logger.Error("event handler panicked",
				log.String("event", event.Type()), log.String("subscription", s.id), log.Any("panic", r))
		}
	}()
	return s.handler(event)
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// collect snapshots a subscription map in registration order.
func collect(m map[string]*subscription) []*subscription {
	if len(m) == 0 {
		return nil
	}
	out := make([]*subscription, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].order > out[j].order; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
