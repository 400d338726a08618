package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/config"
	"github.com/gabriellymonarca/Ecotrack/internal/logger"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
	"github.com/gabriellymonarca/Ecotrack/internal/sidra"
)

// SIDRAClientHandle wraps the upstream client with shutdown capability.
type SIDRAClientHandle struct {
	*sidra.Client
}

// Shutdown implements do.Shutdownable.
func (h *SIDRAClientHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideSIDRAClient provides the IBGE SIDRA client.
func ProvideSIDRAClient(i do.Injector) (*SIDRAClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := sidra.New(cfg.SIDRA, log.Component("sidra").Logger)
	return &SIDRAClientHandle{Client: client}, nil
}

// ProvideAggregateEngine provides the view builder.
func ProvideAggregateEngine(i do.Injector) (*aggregate.Engine, error) {
	rel := do.MustInvoke[*RelationalHandle](i)
	docs := do.MustInvoke[*DocumentStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return aggregate.New(rel.Store, docs.Store, relational.DefaultTables(), log.Component("aggregate").Logger), nil
}

// ProvideOrchestrator provides the pipeline orchestrator. Every finished run
// resyncs the label index.
func ProvideOrchestrator(i do.Injector) (*pipeline.Orchestrator, error) {
	client := do.MustInvoke[*SIDRAClientHandle](i)
	rel := do.MustInvoke[*RelationalHandle](i)
	docs := do.MustInvoke[*DocumentStoreHandle](i)
	engine := do.MustInvoke[*aggregate.Engine](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	orch := pipeline.New(client.Client, rel.Store, engine, docs.Store, log.Component("pipeline").Logger)

	orch.OnComplete(func(ctx context.Context, report *pipeline.Report) {
		if report.Status == pipeline.StatusFailed {
			return
		}
		if _, err := index.Sync(ctx, rel.Store, orch.Tables().Lookups()); err != nil {
			log.Error("Label sync after pipeline run failed", "run", report.ID, "error", err)
		}
	})

	return orch, nil
}
