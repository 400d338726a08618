// Package di provides dependency injection configuration for the Ecotrack service.
package di

import (
	"github.com/samber/do/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/aggregate"
	"github.com/gabriellymonarca/Ecotrack/internal/config"
	"github.com/gabriellymonarca/Ecotrack/internal/di/providers"
	"github.com/gabriellymonarca/Ecotrack/internal/logger"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments handed to the config loader.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, providers.Args(args))
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideRelationalStore)
	do.Provide(injector, providers.ProvideDocumentStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Pipeline
	do.Provide(injector, providers.ProvideSIDRAClient)
	do.Provide(injector, providers.ProvideAggregateEngine)
	do.Provide(injector, providers.ProvideOrchestrator)

	// Workers
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideScheduler)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// BootstrapPipeline initializes everything a pipeline run needs, without the
// scheduler or the HTTP server.
func BootstrapPipeline(injector *do.RootScope) (*pipeline.Orchestrator, error) {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return nil, err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.RelationalHandle](injector); err != nil {
		return nil, err
	}
	if _, err := do.Invoke[*providers.DocumentStoreHandle](injector); err != nil {
		return nil, err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return nil, err
	}
	_ = do.MustInvoke[*providers.SIDRAClientHandle](injector)
	_ = do.MustInvoke[*aggregate.Engine](injector)

	return do.Invoke[*pipeline.Orchestrator](injector)
}

// Bootstrap initializes all services and starts the background workers and
// the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := BootstrapPipeline(injector); err != nil {
		return err
	}

	// Workers
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	if _, err := do.Invoke[*providers.SchedulerHandle](injector); err != nil {
		return err
	}

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Fill the label index from a previous run's data if it is empty
	providers.TriggerLabelSyncIfNeeded(injector)

	providers.RunOnStart(injector)

	return nil
}
