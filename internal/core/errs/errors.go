package errs

import (
	"runtime/debug"
	"time"

	"github.com/strataui/strata/internal/core/observability/log"
	"github.com/strataui/strata/internal/core/storage"
	"github.com/strataui/strata/internal/core/world"
	"github.com/strataui/strata/pkg/sequence"
)

// Error codes.
const (
	CodeModuleNotFound        = "MODULE_NOT_FOUND"
	CodeModuleNotLoaded       = "MODULE_NOT_LOADED"
	CodeModuleLoadError       = "MODULE_LOAD_ERROR"
	CodeModuleActivationError = "MODULE_ACTIVATION_ERROR"
	CodeModuleMountError      = "MODULE_MOUNT_ERROR"
	CodeModuleUnmountError    = "MODULE_UNMOUNT_ERROR"
	CodeModuleUpdateError     = "MODULE_UPDATE_ERROR"
	CodeSystemError           = "SYSTEM_ERROR"
	CodeGenericError          = "GENERIC_ERROR"
)

// Component type names owned by this package.
const (
	ComponentError        = "error"
	ComponentHandler      = "errorHandler"
	ComponentNotification = "errorNotification"
)

// DefaultContext is the handler context consulted when no handler is
// registered for an error's own context.
const DefaultContext = "default"

// DeveloperModeKey is the persisted flag set when a critical error first
// escalates.
const DeveloperModeKey = "developer_mode"

// DiagnosticsRoute is the route critical errors escalate to.
const DiagnosticsRoute = "diagnostics"

// escalationDelay lets the current handling pass finish before the
// diagnostics navigation fires.
const escalationDelay = 500 * time.Millisecond

// DefaultMaxLogSize bounds the in-memory error log.
const DefaultMaxLogSize = 100

// Component is the payload of an error entity. Error entities are
// append-only; Handled flips once and the entity is never destroyed.
type Component struct {
	Message   string
	Code      string
	Context   string
	Data      any
	Timestamp time.Time
	Handled   bool
	Stack     string

	escalated bool
}

// HandlerComponent marks an entity as an error handler for one context.
type HandlerComponent struct {
	Context string
}

// Notification is attached to a handler entity when an error in its context
// is handled.
type Notification struct {
	ErrorID world.EntityID
	Code    string
	Message string
	Context string
}

// criticalCodes is the allow-list of codes that trigger developer-mode
// persistence and a deferred diagnostics navigation.
var criticalCodes = map[string]struct{}{
	CodeModuleLoadError:       {},
	CodeModuleActivationError: {},
	CodeSystemError:           {},
}

type escalation struct {
	due     time.Time
	route   string
	errorID world.EntityID
}

// System converts failures into first-class, loggable error entities and
// runs the recovery policy over them. Not safe for concurrent use; it lives
// on the engine tick goroutine.
type System struct {
	world  *world.World
	kv     storage.Store
	logger log.Log
	now    func() time.Time

	ring       []world.EntityID
	maxLogSize int

	// handlerCache memoizes context -> handler entities; invalidated on
	// every handler registration.
	handlerCache map[string][]world.EntityID

	pending  *sequence.PriorityQueue[escalation]
	navigate func(route string)

	devModeSet bool
}

type Option func(*System)

func WithClock(now func() time.Time) Option {
	return func(s *System) { s.now = now }
}

func WithMaxLogSize(n int) Option {
	return func(s *System) {
		if n > 0 {
			s.maxLogSize = n
		}
	}
}

func NewSystem(w *world.World, kv storage.Store, logger log.Log, opts ...Option) *System {
	s := &System{
		world:        w,
		kv:           kv,
		logger:       logger,
		now:          time.Now,
		maxLogSize:   DefaultMaxLogSize,
		handlerCache: make(map[string][]world.EntityID),
		pending: sequence.NewPriorityQueue[escalation](func(a, b escalation) bool {
			return a.due.Before(b.due)
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNavigator installs the callback used to navigate to the diagnostics
// route when a critical error escalates.
func (s *System) SetNavigator(fn func(route string)) {
	s.navigate = fn
}

// CreateError allocates an error entity with a captured call stack. The
// entity stays unhandled until HandleError (or the sweep system) picks it up.
func (s *System) CreateError(message, code, context string, data any) world.EntityID {
	if code == "" {
		code = CodeGenericError
	}
	if context == "" {
		context = DefaultContext
	}
	id := s.world.CreateEntity()
	s.world.AddComponent(id, ComponentError, &Component{
		Message:   message,
		Code:      code,
		Context:   context,
		Data:      data,
		Timestamp: s.now(),
		Stack:     string(debug.Stack()),
	})
	return id
}

// HandleError runs the recovery policy for one error entity: bounded log
// append, handler notification, and critical escalation. Idempotent; the
// second call on a handled error is a no-op.
func (s *System) HandleError(id world.EntityID) bool {
	raw, ok := s.world.GetComponent(id, ComponentError)
	if !ok {
		s.logger.Warn("handle on entity without error component", log.Uint64("entity", uint64(id)))
		return false
	}
	comp := raw.(*Component)
	if comp.Handled {
		return true
	}

	s.ring = append(s.ring, id)
	if len(s.ring) > s.maxLogSize {
		s.ring = s.ring[len(s.ring)-s.maxLogSize:]
	}

	s.logger.Error("error handled",
		log.String("code", comp.Code),
		log.String("context", comp.Context),
		log.String("message", comp.Message),
		log.Uint64("entity", uint64(id)))

	comp.Handled = true

	for _, handler := range s.handlersFor(comp.Context) {
		s.world.AddComponent(handler, ComponentNotification, &Notification{
			ErrorID: id,
			Code:    comp.Code,
			Message: comp.Message,
			Context: comp.Context,
		})
	}

	if _, critical := criticalCodes[comp.Code]; critical && !comp.escalated {
		comp.escalated = true
		s.persistDeveloperMode()
		s.pending.Enqueue(escalation{
			due:     s.now().Add(escalationDelay),
			route:   DiagnosticsRoute,
			errorID: id,
		})
	}
	return true
}

// RegisterHandler marks an entity as an error handler for the given context
// and invalidates the memoized lookup cache.
func (s *System) RegisterHandler(id world.EntityID, context string) bool {
	if context == "" {
		context = DefaultContext
	}
	if s.world.AddComponent(id, ComponentHandler, &HandlerComponent{Context: context}) == nil {
		return false
	}
	s.handlerCache = make(map[string][]world.EntityID)
	return true
}

// handlersFor resolves handler entities for a context, falling back to the
// default context. Results are memoized until the next registration.
func (s *System) handlersFor(context string) []world.EntityID {
	if cached, ok := s.handlerCache[context]; ok {
		return cached
	}
	matched := s.collectHandlers(context)
	if len(matched) == 0 && context != DefaultContext {
		matched = s.collectHandlers(DefaultContext)
	}
	s.handlerCache[context] = matched
	return matched
}

func (s *System) collectHandlers(context string) []world.EntityID {
	var out []world.EntityID
	for _, id := range s.world.EntitiesWith(ComponentHandler) {
		raw, _ := s.world.GetComponent(id, ComponentHandler)
		if hc, ok := raw.(*HandlerComponent); ok && hc.Context == context {
			out = append(out, id)
		}
	}
	return out
}

// DispatchDue fires every escalation whose delay has elapsed. Called by the
// engine at the end of each tick.
func (s *System) DispatchDue(now time.Time) {
	for {
		next, ok := s.pending.Peek()
		if !ok || next.due.After(now) {
			return
		}
		esc, _ := s.pending.Dequeue()
		s.logger.Warn("critical error escalation, navigating to diagnostics",
			log.Uint64("error", uint64(esc.errorID)), log.String("route", esc.route))
		if s.navigate != nil {
			s.navigate(esc.route)
		}
	}
}

// persistDeveloperMode sets the developer-mode flag once per process.
func (s *System) persistDeveloperMode() {
	if s.devModeSet {
		return
	}
	if _, ok := s.kv.Get(DeveloperModeKey); !ok {
		if err := s.kv.Set(DeveloperModeKey, "true"); err != nil {
			s.logger.Warn("persist developer mode failed", log.Error(err))
		}
	}
	s.devModeSet = true
}

// Log returns the handled-error entity IDs currently retained, oldest first.
func (s *System) Log() []world.EntityID {
	out := make([]world.EntityID, len(s.ring))
	copy(out, s.ring)
	return out
}

// PendingEscalations returns the number of scheduled diagnostics navigations.
func (s *System) PendingEscalations() int {
	return s.pending.Len()
}
