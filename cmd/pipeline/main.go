// Package main runs the Ecotrack pipeline once and prints its report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/di"
	"github.com/gabriellymonarca/Ecotrack/internal/logger"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	injector := di.NewContainer(os.Args[1:])

	orch, err := di.BootstrapPipeline(injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap pipeline: %v\n", err)
		return 1
	}
	log := do.MustInvoke[*logger.Logger](injector)
	defer shutdown(injector, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := orch.Run(ctx, pipeline.TriggerCLI)
	if err != nil {
		log.Error("Pipeline run failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error("Failed to write report", "error", err)
		return 1
	}

	if report.Status == pipeline.StatusFailed {
		return 2
	}
	return 0
}

func shutdown(injector *do.RootScope, log *logger.Logger) {
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
}
