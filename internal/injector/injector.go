//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/strataui/strata/internal/config"
	"github.com/strataui/strata/internal/core/modules"
	"github.com/strataui/strata/internal/core/observability/log"
	"github.com/strataui/strata/internal/core/storage"
	"github.com/strataui/strata/internal/engine"
)

func ProvideEngine(cfg config.Config, logger *log.Logger, store storage.Store, provider modules.Provider) *engine.Engine {
	wire.Build(engine.New, wire.Bind(new(log.Log), new(*log.Logger)))
	return nil
}
