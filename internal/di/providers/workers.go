package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/config"
	"github.com/gabriellymonarca/Ecotrack/internal/logger"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
	"github.com/gabriellymonarca/Ecotrack/internal/scheduler"
)

// SchedulerHandle wraps the pipeline scheduler with shutdown capability.
// Scheduler is nil when scheduling is disabled.
type SchedulerHandle struct {
	*scheduler.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	if h.Scheduler == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Stop(ctx)
}

// ProvideScheduler provides and starts the periodic pipeline trigger.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	orch := do.MustInvoke[*pipeline.Orchestrator](i)

	if !cfg.Scheduler.Enabled {
		log.Info("Pipeline scheduler disabled by configuration")
		return &SchedulerHandle{}, nil
	}

	job := func(ctx context.Context) error {
		_, err := orch.Run(ctx, pipeline.TriggerSchedule)
		return err
	}

	s, err := scheduler.New(cfg.Scheduler, job, log.Component("scheduler").Logger)
	if err != nil {
		return nil, err
	}
	s.Start()

	log.Info("Pipeline scheduler started",
		"spec", cfg.Scheduler.Spec,
		"timezone", cfg.Scheduler.Timezone,
		"next_run", s.Next(),
	)

	return &SchedulerHandle{Scheduler: s}, nil
}

// RunOnStart triggers a pipeline run in the background when configured.
func RunOnStart(i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	if !cfg.Scheduler.RunOnStart {
		return
	}

	log := do.MustInvoke[*logger.Logger](i)
	orch := do.MustInvoke[*pipeline.Orchestrator](i)

	go func() {
		report, err := orch.Run(context.Background(), pipeline.TriggerStartup)
		if err != nil {
			log.Error("Startup pipeline run failed", "error", err)
			return
		}
		log.Info("Startup pipeline run finished", "run", report.ID, "status", report.Status)
	}()
}
