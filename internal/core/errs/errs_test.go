package errs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataui/strata/internal/core/observability/log"
	"github.com/strataui/strata/internal/core/storage"
	"github.com/strataui/strata/internal/core/world"
)

type fixture struct {
	world  *world.World
	kv     *storage.MemoryStore
	errs   *System
	now    time.Time
	routes []string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		world: world.New(log.NewNop()),
		kv:    storage.NewMemoryStore(),
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.errs = NewSystem(f.world, f.kv, log.NewNop(), opts...)
	f.errs.SetNavigator(func(route string) { f.routes = append(f.routes, route) })
	return f
}

func (f *fixture) component(id world.EntityID) *Component {
	raw, _ := f.world.GetComponent(id, ComponentError)
	return raw.(*Component)
}

func TestCreateErrorDefaults(t *testing.T) {
	f := newFixture(t)

	id := f.errs.CreateError("something broke", "", "", nil)
	comp := f.component(id)
	assert.Equal(t, CodeGenericError, comp.Code)
	assert.Equal(t, DefaultContext, comp.Context)
	assert.Equal(t, f.now, comp.Timestamp)
	assert.NotEmpty(t, comp.Stack)
	assert.False(t, comp.Handled)
}

func TestHandleErrorIdempotent(t *testing.T) {
	f := newFixture(t)

	id := f.errs.CreateError("boom", CodeGenericError, "ui", nil)
	require.True(t, f.errs.HandleError(id))
	require.True(t, f.errs.HandleError(id))

	assert.Equal(t, []world.EntityID{id}, f.errs.Log(), "second handle must not re-log")
	assert.True(t, f.component(id).Handled)
	assert.True(t, f.world.HasEntity(id), "error entities are never destroyed")
}

func TestHandleErrorOnNonErrorEntity(t *testing.T) {
	f := newFixture(t)

	e := f.world.CreateEntity()
	assert.False(t, f.errs.HandleError(e))
	assert.Empty(t, f.errs.Log())
}

func TestLogBoundKeepsNewest(t *testing.T) {
	f := newFixture(t, WithMaxLogSize(3))

	var ids []world.EntityID
	for i := 0; i < 5; i++ {
		id := f.errs.CreateError("boom", CodeGenericError, "", nil)
		f.errs.HandleError(id)
		ids = append(ids, id)
	}

	assert.Equal(t, ids[2:], f.errs.Log(), "oldest entries trimmed")
}

func TestHandlerNotification(t *testing.T) {
	f := newFixture(t)

	handler := f.world.CreateEntity()
	require.True(t, f.errs.RegisterHandler(handler, "network"))

	id := f.errs.CreateError("timeout", CodeGenericError, "network", nil)
	f.errs.HandleError(id)

	raw, ok := f.world.GetComponent(handler, ComponentNotification)
	require.True(t, ok)
	n := raw.(*Notification)
	assert.Equal(t, id, n.ErrorID)
	assert.Equal(t, "network", n.Context)
	assert.Equal(t, "timeout", n.Message)
}

func TestDefaultContextFallback(t *testing.T) {
	f := newFixture(t)

	fallback := f.world.CreateEntity()
	require.True(t, f.errs.RegisterHandler(fallback, DefaultContext))

	id := f.errs.CreateError("boom", CodeGenericError, "obscure", nil)
	f.errs.HandleError(id)

	_, ok := f.world.GetComponent(fallback, ComponentNotification)
	assert.True(t, ok, "default handler receives errors from contexts with no handler")
}

func TestHandlerCacheInvalidatedOnRegistration(t *testing.T) {
	f := newFixture(t)

	// first handling memoizes "ui" with no matches (empty default too)
	first := f.errs.CreateError("boom", CodeGenericError, "ui", nil)
	f.errs.HandleError(first)

	handler := f.world.CreateEntity()
	require.True(t, f.errs.RegisterHandler(handler, "ui"))

	second := f.errs.CreateError("boom again", CodeGenericError, "ui", nil)
	f.errs.HandleError(second)

	raw, ok := f.world.GetComponent(handler, ComponentNotification)
	require.True(t, ok, "registration must invalidate the memoized lookup")
	assert.Equal(t, second, raw.(*Notification).ErrorID)
}

func TestRegisterHandlerMissingEntity(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.errs.RegisterHandler(world.EntityID(404), "ui"))
}

func TestCriticalEscalation(t *testing.T) {
	f := newFixture(t)

	id := f.errs.CreateError("module blew up", CodeModuleLoadError, "module", nil)
	f.errs.HandleError(id)

	v, ok := f.kv.Get(DeveloperModeKey)
	require.True(t, ok)
	assert.Equal(t, "true", v)
	require.Equal(t, 1, f.errs.PendingEscalations())

	// not yet due
	f.errs.DispatchDue(f.now.Add(escalationDelay - time.Millisecond))
	assert.Empty(t, f.routes)

	f.errs.DispatchDue(f.now.Add(escalationDelay))
	assert.Equal(t, []string{DiagnosticsRoute}, f.routes)
	assert.Equal(t, 0, f.errs.PendingEscalations())
}

func TestCriticalEscalatesOncePerError(t *testing.T) {
	f := newFixture(t)

	id := f.errs.CreateError("boom", CodeSystemError, "", nil)
	f.errs.HandleError(id)
	f.errs.HandleError(id)
	assert.Equal(t, 1, f.errs.PendingEscalations())

	other := f.errs.CreateError("boom two", CodeModuleActivationError, "", nil)
	f.errs.HandleError(other)
	assert.Equal(t, 2, f.errs.PendingEscalations(), "each critical error escalates independently")
}

func TestDeveloperModePersistedOnce(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.kv.Set(DeveloperModeKey, "false"))

	id := f.errs.CreateError("boom", CodeModuleLoadError, "", nil)
	f.errs.HandleError(id)

	v, _ := f.kv.Get(DeveloperModeKey)
	assert.Equal(t, "false", v, "an existing value is never overwritten")
}

func TestNonCriticalNeverEscalates(t *testing.T) {
	f := newFixture(t)

	for _, code := range []string{CodeModuleNotFound, CodeModuleMountError, CodeGenericError} {
		id := f.errs.CreateError("boom", code, "", nil)
		f.errs.HandleError(id)
	}

	assert.Equal(t, 0, f.errs.PendingEscalations())
	_, ok := f.kv.Get(DeveloperModeKey)
	assert.False(t, ok)
}

func TestSweepHandlesUnhandled(t *testing.T) {
	f := newFixture(t)
	sweep := NewSweepSystem(f.errs)

	a := f.errs.CreateError("a", CodeGenericError, "", nil)
	b := f.errs.CreateError("b", CodeGenericError, "", nil)
	f.errs.HandleError(a)

	require.NoError(t, sweep.Update(0.016))
	assert.True(t, f.component(b).Handled)
	assert.Equal(t, []world.EntityID{a, b}, f.errs.Log())

	require.NoError(t, sweep.Update(0.016))
	assert.Len(t, f.errs.Log(), 2, "sweep must not re-handle")
}
