package modules

import (
	"github.com/strataui/strata/internal/core/world"
)

// fallbackModule is substituted when resolution fails so a route activation
// always produces a renderable result. Its init renders a visible error
// state on the target; mount and unmount are no-ops.
type fallbackModule struct {
	name  string
	cause error
}

func newFallbackModule(name string, cause error) Module {
	return &fallbackModule{name: name, cause: cause}
}

func (m *fallbackModule) Init(w *world.World, instance world.EntityID) (Handle, error) {
	raw, ok := w.GetComponent(instance, ComponentInstance)
	if ok {
		inst := raw.(*InstanceComponent)
		msg := "module " + m.name + " failed to load"
		if m.cause != nil {
			msg += ": " + m.cause.Error()
		}
		w.AddComponent(inst.Parent, ComponentView, &ViewComponent{State: ViewError, Message: msg})
	}
	return fallbackHandle{}, nil
}

type fallbackHandle struct{}

func (fallbackHandle) Mount() error   { return nil }
func (fallbackHandle) Unmount() error { return nil }
