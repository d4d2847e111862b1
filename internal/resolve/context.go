package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"squadron-stats/internal/domain"
	"squadron-stats/internal/registry"
)

// Context memoizes resolution outcomes for one ingestion run. The same
// raw name is resolved at most once per run, including names the strategy
// chose to skip.
type Context struct {
	reg       *registry.Registry
	strategy  Strategy
	threshold float64
	logger    zerolog.Logger

	players map[string]int64
	teams   map[string]int64
	skipped map[string]struct{}

	sourceFile string

	SkippedNames int
}

func NewContext(reg *registry.Registry, strategy Strategy, threshold float64, logger zerolog.Logger) *Context {
	return &Context{
		reg:       reg,
		strategy:  strategy,
		threshold: threshold,
		logger:    logger,
		players:   make(map[string]int64),
		teams:     make(map[string]int64),
		skipped:   make(map[string]struct{}),
	}
}

// SetProvenance records which input file newly created entities came from.
func (c *Context) SetProvenance(file string) {
	c.sourceFile = file
}

func (c *Context) Strategy() Strategy { return c.strategy }

func cacheKey(kind domain.Kind, raw string) string {
	return string(kind) + "\x00" + strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// ResolvePlayer maps a raw name onto a canonical player. The second
// return is false when the strategy skipped the name; the caller drops
// the stat line and counts the skip.
func (c *Context) ResolvePlayer(ctx context.Context, raw string) (*domain.Player, bool, error) {
	key := cacheKey(domain.KindPlayer, raw)
	if _, ok := c.skipped[key]; ok {
		return nil, false, nil
	}
	if id, ok := c.players[key]; ok {
		p, found := c.reg.PlayerByID(id)
		if !found {
			return nil, false, &domain.NotFoundError{Kind: domain.KindPlayer, ID: id}
		}
		return p, true, nil
	}

	if p, ok := c.reg.ResolveExactPlayer(raw); ok {
		c.players[key] = p.ID
		return p, true, nil
	}

	candidates := c.reg.FindPlayerCandidates(raw, c.threshold)
	c.logger.Debug().
		Str("raw", raw).
		Int("candidates", len(candidates)).
		Msg("player name needs resolution")

	decision := c.strategy.Propose(raw, domain.KindPlayer, candidates)
	switch decision.Action {
	case ActionSkip:
		c.skipped[key] = struct{}{}
		c.SkippedNames++
		c.logger.Warn().Str("raw", raw).Msg("player name skipped")
		return nil, false, nil

	case ActionSelect, ActionSelectAndAlias:
		if decision.Action == ActionSelectAndAlias {
			if err := c.reg.AddPlayerAlias(ctx, decision.ID, raw); err != nil {
				var dup *domain.DuplicateNameError
				if !errors.As(err, &dup) {
					return nil, false, err
				}
				c.logger.Warn().Str("alias", raw).Err(err).Msg("alias not added")
			}
		}
		p, found := c.reg.PlayerByID(decision.ID)
		if !found {
			return nil, false, &domain.NotFoundError{Kind: domain.KindPlayer, ID: decision.ID}
		}
		c.players[key] = p.ID
		return p, true, nil

	case ActionCreate:
		name := decision.Name
		if name == "" {
			name = raw
		}
		p, err := c.reg.CreatePlayer(ctx, name, nil, domain.RoleNone, c.sourceFile)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create player for %q: %w", raw, err)
		}
		c.players[key] = p.ID
		if !strings.EqualFold(name, raw) {
			if err := c.reg.AddPlayerAlias(ctx, p.ID, raw); err != nil {
				var dup *domain.DuplicateNameError
				if !errors.As(err, &dup) {
					return nil, false, err
				}
			}
		}
		return p, true, nil
	}
	return nil, false, fmt.Errorf("unknown resolution action %d for %q", decision.Action, raw)
}

// ResolveTeam maps a raw team name onto a canonical team, creating one
// when the strategy asks for it. Team skips are rare but honored the
// same way as player skips.
func (c *Context) ResolveTeam(ctx context.Context, raw string) (*domain.Team, bool, error) {
	key := cacheKey(domain.KindTeam, raw)
	if _, ok := c.skipped[key]; ok {
		return nil, false, nil
	}
	if id, ok := c.teams[key]; ok {
		t, found := c.reg.TeamByID(id)
		if !found {
			return nil, false, &domain.NotFoundError{Kind: domain.KindTeam, ID: id}
		}
		return t, true, nil
	}

	if t, ok := c.reg.ResolveExactTeam(raw); ok {
		c.teams[key] = t.ID
		return t, true, nil
	}

	candidates := c.reg.FindTeamCandidates(raw, c.threshold)
	decision := c.strategy.Propose(raw, domain.KindTeam, candidates)
	switch decision.Action {
	case ActionSkip:
		c.skipped[key] = struct{}{}
		c.SkippedNames++
		c.logger.Warn().Str("raw", raw).Msg("team name skipped")
		return nil, false, nil

	case ActionSelect, ActionSelectAndAlias:
		if decision.Action == ActionSelectAndAlias {
			if err := c.reg.AddTeamAlias(ctx, decision.ID, raw); err != nil {
				var dup *domain.DuplicateNameError
				if !errors.As(err, &dup) {
					return nil, false, err
				}
				c.logger.Warn().Str("alias", raw).Err(err).Msg("alias not added")
			}
		}
		t, found := c.reg.TeamByID(decision.ID)
		if !found {
			return nil, false, &domain.NotFoundError{Kind: domain.KindTeam, ID: decision.ID}
		}
		c.teams[key] = t.ID
		return t, true, nil

	case ActionCreate:
		name := decision.Name
		if name == "" {
			name = raw
		}
		t, err := c.reg.CreateTeam(ctx, name, nil)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create team for %q: %w", raw, err)
		}
		c.teams[key] = t.ID
		if !strings.EqualFold(name, raw) {
			if err := c.reg.AddTeamAlias(ctx, t.ID, raw); err != nil {
				var dup *domain.DuplicateNameError
				if !errors.As(err, &dup) {
					return nil, false, err
				}
			}
		}
		return t, true, nil
	}
	return nil, false, fmt.Errorf("unknown resolution action %d for %q", decision.Action, raw)
}
