package errs

// SweepSystem is the per-tick behavior unit that handles any error entities
// still unhandled, so errors created mid-tick are picked up early on the
// next pass.
type SweepSystem struct {
	errors *System
}

func NewSweepSystem(errors *System) *SweepSystem {
	return &SweepSystem{errors: errors}
}

func (s *SweepSystem) Name() string { return "error-sweep" }

func (s *SweepSystem) Update(_ float64) error {
	for _, id := range s.errors.world.EntitiesWith(ComponentError) {
		raw, _ := s.errors.world.GetComponent(id, ComponentError)
		if comp, ok := raw.(*Component); ok && !comp.Handled {
			s.errors.HandleError(id)
		}
	}
	return nil
}
