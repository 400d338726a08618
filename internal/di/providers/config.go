// Package providers contains dependency injection providers for the Ecotrack services.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/config"
	"github.com/gabriellymonarca/Ecotrack/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	args := do.MustInvoke[Args](i)
	return config.LoadConfig(args)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Ecotrack",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"sidra_url", cfg.SIDRA.BaseURL,
	)

	return log, nil
}
