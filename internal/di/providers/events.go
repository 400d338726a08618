package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/logger"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
	"github.com/gabriellymonarca/Ecotrack/internal/sse"
)

// SSEManagerHandle wraps the event broadcaster with shutdown capability.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Manager.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideSSEManager provides the pipeline event broadcaster and subscribes it
// to run start and completion.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	orch := do.MustInvoke[*pipeline.Orchestrator](i)

	manager := sse.NewManager(log.Component("sse").Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	orch.OnStart(func(_ context.Context, r *pipeline.Report) {
		manager.Emit(sse.NewRunStartedEvent(r))
	})
	orch.OnComplete(func(_ context.Context, r *pipeline.Report) {
		manager.Emit(sse.NewRunCompletedEvent(r))
	})

	return &SSEManagerHandle{Manager: manager, cancel: cancel}, nil
}
