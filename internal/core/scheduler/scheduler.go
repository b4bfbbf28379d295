package scheduler

import (
	"sort"

	"github.com/strataui/strata/internal/core/observability/log"
)

// System is a behavior unit invoked once per tick. An error return is
// reported through the scheduler's error callback; it never aborts the tick.
type System interface {
	Name() string
	Update(dt float64) error
}

// Group is a named, priority-ordered bucket of systems executed together
// each tick. Systems run in registration order.
type Group struct {
	name     string
	priority int
	systems  []System
}

func (g *Group) Name() string  { return g.name }
func (g *Group) Priority() int { return g.priority }

// AddSystem appends a system, deduplicating by reference. Registration order
// is preserved.
func (g *Group) AddSystem(sys System) {
	for _, existing := range g.systems {
		if existing == sys {
			return
		}
	}
	g.systems = append(g.systems, sys)
}

func (g *Group) Systems() []System {
	out := make([]System, len(g.systems))
	copy(out, g.systems)
	return out
}

// Scheduler advances all registered systems once per external tick.
//
// Groups execute in strict descending priority order (a larger priority runs
// earlier); within a group, systems execute in registration order. Groups or
// systems registered from inside a system's Update are not picked up until
// the next tick; re-entrant scheduling is unsupported.
type Scheduler struct {
	groups   []*Group
	ordered  []*Group
	dirty    bool
	updating bool

	onError func(system string, err error)
	logger  log.Log
}

func New(logger log.Log) *Scheduler {
	return &Scheduler{logger: logger}
}

// OnSystemError installs a callback invoked whenever a system's Update
// returns an error.
func (s *Scheduler) OnSystemError(fn func(system string, err error)) {
	s.onError = fn
}

// CreateGroup registers a new group. If a group with the name already exists
// it is returned unchanged.
func (s *Scheduler) CreateGroup(name string, priority int) *Group {
	for _, g := range s.groups {
		if g.name == name {
			return g
		}
	}
	if s.updating {
		s.logger.Warn("group registered during update, effective next tick",
			log.String("group", name))
	}
	g := &Group{name: name, priority: priority}
	s.groups = append(s.groups, g)
	s.dirty = true
	return g
}

// Group returns the named group, if registered.
func (s *Scheduler) Group(name string) (*Group, bool) {
	for _, g := range s.groups {
		if g.name == name {
			return g, true
		}
	}
	return nil, false
}

// Update runs one tick: every group by descending priority, every system in
// registration order. System errors are reported and do not stop the pass.
func (s *Scheduler) Update(dt float64) {
	if s.dirty {
		s.rebuildOrder()
	}
	ordered := s.ordered

	s.updating = true
	defer func() { s.updating = false }()

	for _, g := range ordered {
		for _, sys := range g.systems {
			if err := sys.Update(dt); err != nil {
				s.logger.Error("system update failed",
					log.String("group", g.name), log.String("system", sys.Name()), log.Error(err))
				if s.onError != nil {
					s.onError(sys.Name(), err)
				}
			}
		}
	}
}

// ExecutionOrder returns group names in the order they will run.
func (s *Scheduler) ExecutionOrder() []string {
	if s.dirty {
		s.rebuildOrder()
	}
	out := make([]string, len(s.ordered))
	for i, g := range s.ordered {
		out[i] = g.name
	}
	return out
}

func (s *Scheduler) rebuildOrder() {
	s.ordered = make([]*Group, len(s.groups))
	copy(s.ordered, s.groups)
	// stable: ties keep registration order
	sort.SliceStable(s.ordered, func(i, j int) bool {
		return s.ordered[i].priority > s.ordered[j].priority
	})
	s.dirty = false
}
