package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"squadron-stats/internal/domain"
	"squadron-stats/internal/registry"
	"squadron-stats/internal/repository"
)

// AdminService applies backfill corrections to already-ingested data.
// Every correction that touches match data re-derives the rating state,
// since ratings are a pure fold of the match stream.
type AdminService struct {
	reg     *registry.Registry
	matches *repository.MatchRepository
	ratings *RatingService
	logger  zerolog.Logger
}

func NewAdminService(reg *registry.Registry, matches *repository.MatchRepository, ratings *RatingService, logger zerolog.Logger) *AdminService {
	return &AdminService{
		reg:     reg,
		matches: matches,
		ratings: ratings,
		logger:  logger,
	}
}

func (s *AdminService) FixMatchDate(ctx context.Context, matchID int64, date time.Time) error {
	if err := s.matches.UpdateMatchDate(ctx, matchID, date); err != nil {
		return err
	}
	s.logger.Info().Int64("match_id", matchID).Time("date", date).Msg("match date corrected")
	_, err := s.ratings.Recompute(ctx)
	return err
}

func (s *AdminService) FixMatchType(ctx context.Context, matchID int64, mt domain.MatchType) error {
	if err := s.matches.UpdateMatchType(ctx, matchID, mt); err != nil {
		return err
	}
	if mt != domain.MatchTypeTeam {
		if _, err := s.matches.NullifyPickupTeams(ctx); err != nil {
			return err
		}
	}
	s.logger.Info().Int64("match_id", matchID).Str("match_type", string(mt)).Msg("match type corrected")
	_, err := s.ratings.Recompute(ctx)
	return err
}

// NormalizePickupStats clears team-of-record on every pickup and ranked
// stat line, then recomputes.
func (s *AdminService) NormalizePickupStats(ctx context.Context) error {
	n, err := s.matches.NullifyPickupTeams(ctx)
	if err != nil {
		return err
	}
	s.logger.Info().Int64("rows", n).Msg("pickup stat lines normalized")
	if n == 0 {
		return nil
	}
	_, err = s.ratings.Recompute(ctx)
	return err
}

// ReconcileMerge merges duplicate players in the registry and re-points
// their stored stat lines onto the survivor. The registry merge alone
// never rewrites stats; this is the explicit reconciliation step.
func (s *AdminService) ReconcileMerge(ctx context.Context, survivorID int64, duplicateIDs ...int64) error {
	survivor, ok := s.reg.PlayerByID(survivorID)
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindPlayer, ID: survivorID}
	}
	if err := s.reg.MergePlayers(ctx, survivorID, duplicateIDs...); err != nil {
		return err
	}

	var moved int64
	for _, dupID := range duplicateIDs {
		n, err := s.matches.ReassignStats(ctx, dupID, survivorID, survivor.Name)
		if err != nil {
			return err
		}
		moved += n
	}
	s.logger.Info().
		Int64("survivor_id", survivorID).
		Int("duplicates", len(duplicateIDs)).
		Int64("stat_lines_moved", moved).
		Msg("merge reconciled")

	if moved == 0 {
		return nil
	}
	_, err := s.ratings.Recompute(ctx)
	return err
}

type registryExport struct {
	Teams   []teamExport   `json:"teams"`
	Players []playerExport `json:"players"`
}

type teamExport struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

type playerExport struct {
	Name    string   `json:"name"`
	Team    string   `json:"team,omitempty"`
	Role    string   `json:"role,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

// ExportRegistry dumps the registry as portable JSON, names instead of
// ids so the dump survives re-import into an empty database.
func (s *AdminService) ExportRegistry(w io.Writer) error {
	out := registryExport{}
	for _, t := range s.reg.Teams() {
		out.Teams = append(out.Teams, teamExport{Name: t.Name, Aliases: t.Aliases})
	}
	for _, p := range s.reg.Players() {
		pe := playerExport{Name: p.Name, Role: string(p.PrimaryRole), Aliases: p.Aliases}
		if p.PrimaryTeamID != nil {
			pe.Team = s.reg.TeamName(*p.PrimaryTeamID)
		}
		out.Players = append(out.Players, pe)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ImportRegistry loads a registry dump, skipping entries whose names
// already exist.
func (s *AdminService) ImportRegistry(ctx context.Context, r io.Reader) error {
	var in registryExport
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("failed to decode registry dump: %w", err)
	}

	for _, te := range in.Teams {
		if _, ok := s.reg.ResolveExactTeam(te.Name); ok {
			continue
		}
		if _, err := s.reg.CreateTeam(ctx, te.Name, te.Aliases); err != nil {
			return err
		}
	}
	for _, pe := range in.Players {
		if _, ok := s.reg.ResolveExactPlayer(pe.Name); ok {
			continue
		}
		var teamID *int64
		if pe.Team != "" {
			t, ok := s.reg.ResolveExactTeam(pe.Team)
			if !ok {
				created, err := s.reg.CreateTeam(ctx, pe.Team, nil)
				if err != nil {
					return err
				}
				t = created
			}
			teamID = &t.ID
		}
		p, err := s.reg.CreatePlayer(ctx, pe.Name, teamID, domain.ParseRole(pe.Role), "import")
		if err != nil {
			return err
		}
		for _, alias := range pe.Aliases {
			if err := s.reg.AddPlayerAlias(ctx, p.ID, alias); err != nil {
				return err
			}
		}
	}

	s.logger.Info().
		Int("teams", len(in.Teams)).
		Int("players", len(in.Players)).
		Msg("registry dump imported")
	return nil
}
