package modules

import (
	"fmt"

	"github.com/strataui/strata/internal/core/errs"
)

// UpdateSystem gives active module instances a per-tick Update callback when
// their handle implements Updater. Failures become MODULE_UPDATE_ERROR
// entities and never abort the pass.
type UpdateSystem struct {
	modules *System
}

func NewUpdateSystem(modules *System) *UpdateSystem {
	return &UpdateSystem{modules: modules}
}

func (u *UpdateSystem) Name() string { return "module-update" }

func (u *UpdateSystem) Update(dt float64) error {
	s := u.modules
	for _, id := range s.world.EntitiesWith(ComponentInstance) {
		inst, ok := s.instance(id)
		if !ok || inst.State != InstanceActive || inst.Handle == nil {
			continue
		}
		updater, ok := inst.Handle.(Updater)
		if !ok {
			continue
		}
		if err := safeCall(func() error { return updater.Update(dt) }); err != nil {
			s.errors.CreateError(
				fmt.Sprintf("module %q update failed: %v", inst.ModuleName, err),
				errs.CodeModuleUpdateError, "module", map[string]any{"module": inst.ModuleName})
		}
	}
	return nil
}
