// Package service orchestrates the batch pipeline: ingest raw seasons,
// recompute ratings, apply admin corrections. Services own transactions
// and timeouts; the packages below them stay pure.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"squadron-stats/internal/config"
	"squadron-stats/internal/constants"
	"squadron-stats/internal/domain"
	"squadron-stats/internal/ingest"
	"squadron-stats/internal/registry"
	"squadron-stats/internal/repository"
	"squadron-stats/internal/resolve"
)

type IngestService struct {
	cfg     *config.Config
	reg     *registry.Registry
	matches *repository.MatchRepository
	logger  zerolog.Logger
}

func NewIngestService(cfg *config.Config, reg *registry.Registry, matches *repository.MatchRepository, logger zerolog.Logger) *IngestService {
	return &IngestService{
		cfg:     cfg,
		reg:     reg,
		matches: matches,
		logger:  logger,
	}
}

// Run ingests every match in the configured seasons file. Seasons and
// filenames are visited in sorted order so the ingestion sequence, the
// ordering fallback for undated matches, is reproducible.
func (s *IngestService) Run(ctx context.Context, strategy resolve.Strategy) (*ingest.RunSummary, error) {
	data, err := os.ReadFile(s.cfg.SeasonsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seasons file: %w", err)
	}
	var seasons ingest.RawSeasons
	if err := json.Unmarshal(data, &seasons); err != nil {
		return nil, fmt.Errorf("failed to parse seasons file: %w", err)
	}

	seq, err := s.matches.MaxIngestSeq(ctx)
	if err != nil {
		return nil, err
	}

	rc := resolve.NewContext(s.reg, strategy, s.cfg.FuzzyThreshold, s.logger)
	ingestor := ingest.NewIngestor(s.reg, rc,
		domain.MatchType(s.cfg.DefaultMatchType), s.logger)

	sum := &ingest.RunSummary{RunID: uuid.NewString()}
	s.logger.Info().
		Str("run_id", sum.RunID).
		Int("seasons", len(seasons)).
		Msg("ingestion run started")

	for _, season := range sortedKeys(seasons) {
		if err := s.matches.EnsureSeason(ctx, season); err != nil {
			return nil, err
		}
		for _, filename := range sortedKeys(seasons[season]) {
			seq++
			result, err := ingestor.IngestMatch(ctx, season, filename, seasons[season][filename], seq, sum)
			if err != nil {
				return nil, fmt.Errorf("failed to ingest %s/%s: %w", season, filename, err)
			}

			saveCtx, cancel := context.WithTimeout(ctx, constants.DBOperationTimeout)
			err = s.matches.SaveMatch(saveCtx, &result.Match, result.Stats)
			cancel()
			if err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info().
		Str("run_id", sum.RunID).
		Int("matches", sum.MatchesIngested).
		Int("skipped_players", sum.SkippedPlayers).
		Int("duplicate_stat_lines", sum.DuplicateStatLines).
		Int("unknown_outcomes", sum.UnknownOutcomes).
		Int("missing_dates", sum.MissingDates).
		Int("missing_rosters", sum.MissingRosters).
		Msg("ingestion run finished")
	return sum, nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
