package main

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	fxmodules "squadron-stats/internal/fx"
	"squadron-stats/internal/rating"
	"squadron-stats/internal/registry"
	"squadron-stats/internal/report"
	"squadron-stats/internal/resolve"
	"squadron-stats/internal/service"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runBatch),
	).Run()
}

func runBatch(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	reg *registry.Registry,
	strategy resolve.Strategy,
	ingestSvc *service.IngestService,
	ratingSvc *service.RatingService,
	writer *report.Writer,
	db *sql.DB,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := run(reg, strategy, ingestSvc, ratingSvc, writer, logger); err != nil {
					logger.Error().Err(err).Msg("batch run failed")
				}
				if err := shutdowner.Shutdown(); err != nil {
					logger.Error().Err(err).Msg("shutdown failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
}

func run(
	reg *registry.Registry,
	strategy resolve.Strategy,
	ingestSvc *service.IngestService,
	ratingSvc *service.RatingService,
	writer *report.Writer,
	logger zerolog.Logger,
) error {
	ctx := context.Background()

	if err := reg.Load(ctx); err != nil {
		return err
	}
	if _, err := ingestSvc.Run(ctx, strategy); err != nil {
		return err
	}
	result, err := ratingSvc.Recompute(ctx)
	if err != nil {
		return err
	}
	if err := writer.WriteAll(ctx, result.Entries, result.History); err != nil {
		return err
	}

	logLeaders(result, logger)
	return nil
}

// logLeaders logs the top of every ladder as the run summary.
func logLeaders(result *rating.Result, logger zerolog.Logger) {
	for pool, entries := range rating.GroupEntries(result.Entries) {
		rows := rating.BuildLadder(entries)
		if len(rows) > 3 {
			rows = rows[:3]
		}
		for _, row := range rows {
			logger.Info().
				Str("pool", pool.String()).
				Int("rank", row.Rank).
				Str("name", row.Name).
				Int("rating", row.Rating).
				Float64("win_rate", row.WinRate).
				Msg("ladder leader")
		}
	}
}
