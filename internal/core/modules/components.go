package modules

import "github.com/strataui/strata/internal/core/world"

// Component type names owned by this package.
const (
	ComponentModule   = "module"
	ComponentInstance = "moduleInstance"
	ComponentView     = "view"
	ComponentDOM      = "dom"
)

// DefinitionState tracks a module definition entity.
type DefinitionState string

const (
	DefinitionRegistered DefinitionState = "registered"
	DefinitionLoaded     DefinitionState = "loaded"
)

// DefinitionComponent is the payload of a module definition entity.
// Fallback marks a stub substituted after a resolution failure.
type DefinitionComponent struct {
	Name     string
	State    DefinitionState
	Loaded   bool
	Fallback bool
	Impl     Module
}

// InstanceState is the per-activation state machine:
// created -> active <-> inactive. A destroyed instance is simply removed
// from the world.
type InstanceState string

const (
	InstanceCreated  InstanceState = "created"
	InstanceActive   InstanceState = "active"
	InstanceInactive InstanceState = "inactive"
)

// InstanceComponent binds one module definition to a target entity for one
// activation.
type InstanceComponent struct {
	ModuleEntity world.EntityID
	ModuleName   string
	State        InstanceState
	Parent       world.EntityID
	Handle       Handle
}

// ViewState is the presentation state of a route target.
type ViewState string

const (
	ViewLoading ViewState = "loading"
	ViewReady   ViewState = "ready"
	ViewError   ViewState = "error"
)

// ViewComponent carries the presentation state of a route target entity.
type ViewComponent struct {
	State   ViewState
	Message string
}

// DOMComponent holds the opaque container handle a module renders into. The
// runtime never interprets it.
type DOMComponent struct {
	Container any
}
