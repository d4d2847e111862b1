// Package rating derives ELO ratings from the normalized match stream.
// Everything here is a pure fold: given the same ordered stream the
// engine produces bit-identical tables and history, which is what makes
// recompute-from-scratch safe.
package rating

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"squadron-stats/internal/constants"
	"squadron-stats/internal/domain"
)

type Config struct {
	StartingRating float64
	KFactor        float64
}

func DefaultConfig() Config {
	return Config{
		StartingRating: constants.DefaultStartingRating,
		KFactor:        constants.DefaultKFactor,
	}
}

// Participant is one player's appearance in a match, with the role
// recorded for that match.
type Participant struct {
	PlayerID int64
	Name     string
	Role     domain.Role
}

// MatchInput is everything the engine needs about one match.
type MatchInput struct {
	Match            domain.Match
	ImperialTeamName string
	RebelTeamName    string
	Imperial         []Participant
	Rebel            []Participant
}

// Result is the fold of a full replay: final entries and the history
// events that produced them. History event ids are left empty; storage
// assigns them on persist.
type Result struct {
	Entries []domain.RatingEntry
	History []domain.RatingHistoryEvent
}

type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	if cfg.StartingRating == 0 {
		cfg.StartingRating = constants.DefaultStartingRating
	}
	if cfg.KFactor == 0 {
		cfg.KFactor = constants.DefaultKFactor
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Expected is the ELO win probability for a subject rated a against an
// opponent rated b.
func Expected(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// Replay folds the match stream into ratings. Matches are processed
// strictly in (match date, ingest sequence) order regardless of input
// order; undated matches carry a zero date and sort by sequence alone.
func (e *Engine) Replay(matches []MatchInput) *Result {
	ordered := append([]MatchInput(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Match, ordered[j].Match
		if !a.MatchDate.Equal(b.MatchDate) {
			return a.MatchDate.Before(b.MatchDate)
		}
		return a.IngestSeq < b.IngestSeq
	})

	st := &state{
		cfg:   e.cfg,
		pools: make(map[domain.PoolKey]map[int64]*domain.RatingEntry),
	}
	res := &Result{}

	for _, mi := range ordered {
		if mi.Match.Winner == domain.OutcomeUnknown {
			e.logger.Debug().
				Int64("match_id", mi.Match.ID).
				Str("filename", mi.Match.Filename).
				Msg("unknown outcome, match not rated")
			continue
		}
		if len(mi.Imperial) == 0 || len(mi.Rebel) == 0 {
			e.logger.Warn().
				Int64("match_id", mi.Match.ID).
				Str("filename", mi.Match.Filename).
				Msg("missing faction roster, match not rated")
			continue
		}
		e.rateMatch(st, res, mi)
	}

	res.Entries = st.entries()
	return res
}

type state struct {
	cfg   Config
	pools map[domain.PoolKey]map[int64]*domain.RatingEntry
}

func (s *state) entry(pool domain.PoolKey, id int64, name string) *domain.RatingEntry {
	m, ok := s.pools[pool]
	if !ok {
		m = make(map[int64]*domain.RatingEntry)
		s.pools[pool] = m
	}
	en, ok := m[id]
	if !ok {
		en = &domain.RatingEntry{
			Pool:        pool,
			SubjectID:   id,
			SubjectName: name,
			Rating:      s.cfg.StartingRating,
		}
		m[id] = en
	}
	en.SubjectName = name
	return en
}

// entries flattens pool state into a deterministic order: pool key, then
// subject id.
func (s *state) entries() []domain.RatingEntry {
	keys := make([]domain.PoolKey, 0, len(s.pools))
	for k := range s.pools {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var out []domain.RatingEntry
	for _, k := range keys {
		ids := make([]int64, 0, len(s.pools[k]))
		for id := range s.pools[k] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			out = append(out, *s.pools[k][id])
		}
	}
	return out
}

func (e *Engine) rateMatch(st *state, res *Result, mi MatchInput) {
	mt := mi.Match.MatchType
	impWon := mi.Match.Winner == domain.OutcomeImperial

	// team pool: one subject per faction
	teamPool := domain.PoolKey{Scope: domain.ScopeTeam, MatchType: mt}
	imp := st.entry(teamPool, mi.Match.ImperialTeamID, mi.ImperialTeamName)
	reb := st.entry(teamPool, mi.Match.RebelTeamID, mi.RebelTeamName)
	res.History = append(res.History, e.updatePool(st, teamPool, mi,
		[]*domain.RatingEntry{imp}, []*domain.RatingEntry{reb},
		imp.Rating, reb.Rating, impWon))

	// player pool: every participant, averages per side
	playerPool := domain.PoolKey{Scope: domain.ScopePlayer, MatchType: mt}
	impEntries := sideEntries(st, playerPool, mi.Imperial, nil)
	rebEntries := sideEntries(st, playerPool, mi.Rebel, nil)
	impAvg := average(impEntries)
	rebAvg := average(rebEntries)
	res.History = append(res.History, e.updatePool(st, playerPool, mi,
		impEntries, rebEntries, impAvg, rebAvg, impWon))

	// role pools: only players who played the role, but expectation still
	// comes from the general side averages above
	for _, role := range []domain.Role{domain.RoleFarmer, domain.RoleFlex, domain.RoleSupport} {
		rolePool := domain.PoolKey{Scope: domain.ScopeRole, MatchType: mt, Role: role}
		impRole := sideEntries(st, rolePool, mi.Imperial, &role)
		rebRole := sideEntries(st, rolePool, mi.Rebel, &role)
		if len(impRole) == 0 && len(rebRole) == 0 {
			continue
		}
		res.History = append(res.History, e.updatePool(st, rolePool, mi,
			impRole, rebRole, impAvg, rebAvg, impWon))
	}
}

// sideEntries materializes pool entries for one faction's participants,
// filtered to one role when role is non-nil. Participant order is
// preserved.
func sideEntries(st *state, pool domain.PoolKey, side []Participant, role *domain.Role) []*domain.RatingEntry {
	var out []*domain.RatingEntry
	for _, p := range side {
		if role != nil && p.Role != *role {
			continue
		}
		out = append(out, st.entry(pool, p.PlayerID, p.Name))
	}
	return out
}

// average is the arithmetic mean of the entries' current ratings; a
// single-member set is that member's rating.
func average(entries []*domain.RatingEntry) float64 {
	var sum float64
	for _, e := range entries {
		sum += e.Rating
	}
	return sum / float64(len(entries))
}

// updatePool applies one match to one pool and returns the history
// event. impSide and rebSide hold the entries to mutate; impRating and
// rebRating are the side ratings the expectation is computed from.
func (e *Engine) updatePool(st *state, pool domain.PoolKey, mi MatchInput,
	impSide, rebSide []*domain.RatingEntry, impRating, rebRating float64, impWon bool) domain.RatingHistoryEvent {

	expectedImp := Expected(impRating, rebRating)
	expectedReb := 1.0 - expectedImp
	actualImp, actualReb := 0.0, 1.0
	if impWon {
		actualImp, actualReb = 1.0, 0.0
	}

	ev := domain.RatingHistoryEvent{
		Pool:        pool,
		MatchID:     mi.Match.ID,
		MatchDate:   mi.Match.MatchDate,
		Season:      mi.Match.Season,
		Winner:      mi.Match.Winner,
		ImperialAvg: impRating,
		RebelAvg:    rebRating,
	}
	ev.Imperial = applySide(impSide, e.cfg.KFactor, actualImp, expectedImp, impWon)
	ev.Rebel = applySide(rebSide, e.cfg.KFactor, actualReb, expectedReb, !impWon)
	return ev
}

func applySide(side []*domain.RatingEntry, k, actual, expected float64, won bool) []domain.RatingChange {
	changes := make([]domain.RatingChange, 0, len(side))
	for _, en := range side {
		old := en.Rating
		en.Rating = old + k*(actual-expected)
		en.MatchesPlayed++
		if won {
			en.MatchesWon++
		} else {
			en.MatchesLost++
		}
		role := domain.RoleNone
		if en.Pool.Scope == domain.ScopeRole {
			role = en.Pool.Role
		}
		changes = append(changes, domain.RatingChange{
			SubjectID: en.SubjectID,
			Name:      en.SubjectName,
			Role:      role,
			OldRating: old,
			NewRating: en.Rating,
			Delta:     en.Rating - old,
		})
	}
	return changes
}
