package engine

import (
	"strings"

	"github.com/strataui/strata/internal/core/modules"
	"github.com/strataui/strata/internal/core/observability/log"
)

// diagnosticsModule is the built-in landing target of critical-error
// escalation: mounting it logs an inspector snapshot.
func (e *Engine) diagnosticsModule() modules.Module {
	return modules.FuncModule{
		OnMount: func() error {
			snap := e.Inspector().Snapshot()
			e.logger.Info("diagnostics snapshot",
				log.Int("entities", snap.Entities),
				log.String("execution_order", strings.Join(snap.ExecutionOrder, ",")),
				log.Int("module_cache", snap.ModuleCacheEntries),
				log.Int("error_log", snap.ErrorLogEntries),
				log.Uint64("bus_published", snap.Bus.Published),
				log.String("theme", snap.Theme),
				log.Bool("developer_mode", snap.DeveloperMode))
			return nil
		},
	}
}
