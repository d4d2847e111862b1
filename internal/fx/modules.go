package fx

import (
	"os"

	"go.uber.org/fx"

	"squadron-stats/internal/config"
	"squadron-stats/internal/database"
	"squadron-stats/internal/logger"
	"squadron-stats/internal/registry"
	"squadron-stats/internal/report"
	"squadron-stats/internal/repository"
	"squadron-stats/internal/resolve"
	"squadron-stats/internal/service"

	"github.com/rs/zerolog"
)

func ProvideRegistry(store *repository.RegistryStore, log zerolog.Logger) *registry.Registry {
	return registry.New(store, log)
}

func ProvideStrategy(cfg *config.Config) (resolve.Strategy, error) {
	return resolve.ForMode(cfg.ResolutionMode, cfg.AutoAcceptScore, os.Stdin, os.Stdout)
}

func ProvideReportWriter(cfg *config.Config, log zerolog.Logger) *report.Writer {
	return report.NewWriter(cfg.ReportDir, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewRegistryStore),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewRatingRepository),
	// registry + resolution
	fx.Provide(ProvideRegistry),
	fx.Provide(ProvideStrategy),
	// svc
	fx.Provide(service.NewIngestService),
	fx.Provide(service.NewRatingService),
	fx.Provide(service.NewAdminService),
	// reports
	fx.Provide(ProvideReportWriter),
)
