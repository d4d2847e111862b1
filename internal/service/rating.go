package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"squadron-stats/internal/config"
	"squadron-stats/internal/constants"
	"squadron-stats/internal/domain"
	"squadron-stats/internal/rating"
	"squadron-stats/internal/registry"
	"squadron-stats/internal/repository"
)

type RatingService struct {
	cfg     *config.Config
	reg     *registry.Registry
	matches *repository.MatchRepository
	ratings *repository.RatingRepository
	logger  zerolog.Logger
}

func NewRatingService(cfg *config.Config, reg *registry.Registry, matches *repository.MatchRepository, ratings *repository.RatingRepository, logger zerolog.Logger) *RatingService {
	return &RatingService{
		cfg:     cfg,
		reg:     reg,
		matches: matches,
		ratings: ratings,
		logger:  logger,
	}
}

// Recompute rebuilds all rating state from the stored match stream. It
// always replays from scratch, so it is safe to run after any backfill
// correction.
func (s *RatingService) Recompute(ctx context.Context) (*rating.Result, error) {
	matches, err := s.matches.ListMatches(ctx)
	if err != nil {
		return nil, err
	}
	statsByMatch, err := s.matches.ListStats(ctx)
	if err != nil {
		return nil, err
	}

	inputs := make([]rating.MatchInput, 0, len(matches))
	for _, m := range matches {
		mi := rating.MatchInput{
			Match:            m,
			ImperialTeamName: s.reg.TeamName(m.ImperialTeamID),
			RebelTeamName:    s.reg.TeamName(m.RebelTeamID),
		}
		for _, st := range statsByMatch[m.ID] {
			p := rating.Participant{PlayerID: st.PlayerID, Name: st.PlayerName, Role: st.Role}
			if st.Faction == domain.FactionImperial {
				mi.Imperial = append(mi.Imperial, p)
			} else {
				mi.Rebel = append(mi.Rebel, p)
			}
		}
		inputs = append(inputs, mi)
	}

	engine := rating.NewEngine(rating.Config{
		StartingRating: s.cfg.StartingRating,
		KFactor:        s.cfg.KFactor,
	}, s.logger)
	result := engine.Replay(inputs)

	saveCtx, cancel := context.WithTimeout(ctx, constants.DBOperationTimeout)
	defer cancel()
	if err := s.ratings.ReplaceAll(saveCtx, result.Entries, result.History); err != nil {
		return nil, fmt.Errorf("failed to persist rating state: %w", err)
	}

	s.logger.Info().
		Int("matches", len(inputs)).
		Int("entries", len(result.Entries)).
		Msg("ratings recomputed")
	return result, nil
}
