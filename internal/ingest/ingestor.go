package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"squadron-stats/internal/constants"
	"squadron-stats/internal/domain"
	"squadron-stats/internal/registry"
	"squadron-stats/internal/resolve"
)

// RunSummary accumulates the recoverable warnings of one ingestion run.
// None of these are fatal; they are reported at the end of the run.
type RunSummary struct {
	RunID              string
	MatchesIngested    int
	SkippedPlayers     int
	DuplicateStatLines int
	UnknownOutcomes    int
	MissingDates       int
	MissingRosters     int
}

// Result is one ingested match with its surviving stat lines, ready for
// persistence. Match.ID is assigned by the repository.
type Result struct {
	Match domain.Match
	Stats []domain.PlayerMatchStat
}

type Ingestor struct {
	reg    *registry.Registry
	rc     *resolve.Context
	logger zerolog.Logger

	defaultMatchType domain.MatchType
}

func NewIngestor(reg *registry.Registry, rc *resolve.Context, defaultMatchType domain.MatchType, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		reg:              reg,
		rc:               rc,
		logger:           logger,
		defaultMatchType: defaultMatchType,
	}
}

// IngestMatch normalizes and resolves one raw match. seq is the position
// of this record in the run's deterministic iteration order; it is the
// ordering fallback for matches without a derivable date.
func (ing *Ingestor) IngestMatch(ctx context.Context, season, filename string, raw RawMatch, seq int64, sum *RunSummary) (*Result, error) {
	ing.rc.SetProvenance(filename)

	norm, err := raw.Normalize()
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s/%s: %w", season, filename, err)
	}

	matchType := parseMatchType(norm.MatchType, ing.defaultMatchType)
	outcome := ParseOutcome(norm.MatchResult)
	if outcome == domain.OutcomeUnknown {
		sum.UnknownOutcomes++
		ing.logger.Warn().
			Str("filename", filename).
			Str("match_result", norm.MatchResult).
			Msg("could not determine match outcome")
	}

	date, ok := MatchDate(norm.MatchDate, filename)
	if !ok {
		sum.MissingDates++
		ing.logger.Warn().Str("filename", filename).Msg("no match date could be derived")
	}

	if norm.Imperial == nil || norm.Rebel == nil ||
		len(norm.Imperial.Players) == 0 || len(norm.Rebel.Players) == 0 {
		sum.MissingRosters++
		ing.logger.Warn().Str("filename", filename).Msg("match has an empty faction roster")
	}

	imperialTeam, err := ing.resolveFactionTeam(ctx, domain.FactionImperial, matchType, norm.Imperial)
	if err != nil {
		return nil, err
	}
	rebelTeam, err := ing.resolveFactionTeam(ctx, domain.FactionRebel, matchType, norm.Rebel)
	if err != nil {
		return nil, err
	}

	match := domain.Match{
		Season:         season,
		Filename:       filename,
		MatchType:      matchType,
		MatchDate:      date,
		IngestSeq:      seq,
		ImperialTeamID: imperialTeam.ID,
		RebelTeamID:    rebelTeam.ID,
		Winner:         outcome,
	}

	var stats []domain.PlayerMatchStat
	seen := make(map[int64]int)
	if norm.Imperial != nil {
		if err := ing.resolveRoster(ctx, filename, norm.Imperial.Players, domain.FactionImperial, matchType, imperialTeam, &stats, seen, sum); err != nil {
			return nil, err
		}
	}
	if norm.Rebel != nil {
		if err := ing.resolveRoster(ctx, filename, norm.Rebel.Players, domain.FactionRebel, matchType, rebelTeam, &stats, seen, sum); err != nil {
			return nil, err
		}
	}

	sum.MatchesIngested++
	ing.logger.Debug().
		Str("season", season).
		Str("filename", filename).
		Str("match_type", string(matchType)).
		Str("winner", string(outcome)).
		Int("stat_lines", len(stats)).
		Msg("match ingested")

	return &Result{Match: match, Stats: stats}, nil
}

// resolveFactionTeam picks the canonical team for one faction. Pickup and
// ranked matches always use the standing faction teams; team matches go
// through the strategy, with the raw roster name as the suggestion.
func (ing *Ingestor) resolveFactionTeam(ctx context.Context, faction domain.Faction, matchType domain.MatchType, roster *RawRoster) (*domain.Team, error) {
	if matchType != domain.MatchTypeTeam {
		return ing.ensureTeam(ctx, standingTeamName(faction, matchType))
	}

	suggested := ""
	if roster != nil {
		suggested = strings.TrimSpace(roster.Name)
	}
	name := ing.rc.Strategy().TeamName(faction, suggested)
	if name == "" {
		name = fmt.Sprintf("Unknown_%s_team", strings.ToLower(string(faction)))
	}
	team, resolved, err := ing.rc.ResolveTeam(ctx, name)
	if err != nil {
		return nil, err
	}
	if !resolved {
		// a skipped team would orphan the whole roster, so fall back to
		// creating it outright
		return ing.ensureTeam(ctx, name)
	}
	return team, nil
}

func (ing *Ingestor) ensureTeam(ctx context.Context, name string) (*domain.Team, error) {
	if t, ok := ing.reg.ResolveExactTeam(name); ok {
		return t, nil
	}
	t, err := ing.reg.CreateTeam(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create team %q: %w", name, err)
	}
	return t, nil
}

// resolveRoster appends one faction's stat lines to stats. A match can
// only carry one line per canonical player, so when two raw spellings
// resolve to the same player the second entry folds its counters into
// the first line instead of producing a duplicate.
func (ing *Ingestor) resolveRoster(ctx context.Context, filename string, players []RawPlayer, faction domain.Faction, matchType domain.MatchType, team *domain.Team, stats *[]domain.PlayerMatchStat, seen map[int64]int, sum *RunSummary) error {
	for _, rp := range players {
		raw := strings.TrimSpace(rp.Player)
		if raw == "" {
			continue
		}
		player, resolved, err := ing.rc.ResolvePlayer(ctx, raw)
		if err != nil {
			return err
		}
		if !resolved {
			sum.SkippedPlayers++
			continue
		}

		if idx, dup := seen[player.ID]; dup {
			line := &(*stats)[idx]
			line.Score += rp.Score
			line.Kills += rp.Kills
			line.Deaths += rp.Deaths
			line.Assists += rp.Assists
			line.AIKills += rp.AIKills
			line.CapShipDamage += rp.CapShipDamage
			sum.DuplicateStatLines++
			ing.logger.Warn().
				Str("filename", filename).
				Str("player", player.Name).
				Str("raw", raw).
				Msg("roster entry resolved to an already-listed player, counters folded in")
			continue
		}

		suggestedRole := domain.ParseRole(rp.Role)
		if suggestedRole == domain.RoleNone {
			suggestedRole = player.PrimaryRole
		}
		role := ing.rc.Strategy().ResolveRole(player.Name, suggestedRole)

		stat := domain.PlayerMatchStat{
			PlayerID:      player.ID,
			PlayerName:    player.Name,
			Faction:       faction,
			Role:          role,
			Score:         rp.Score,
			Kills:         rp.Kills,
			Deaths:        rp.Deaths,
			Assists:       rp.Assists,
			AIKills:       rp.AIKills,
			CapShipDamage: rp.CapShipDamage,
		}

		if matchType == domain.MatchTypeTeam {
			teamID := team.ID
			stat.TeamOfRecord = &teamID
			stat.IsSubstitute = ing.suggestSubstitute(rp, player, team)
		}

		seen[player.ID] = len(*stats)
		*stats = append(*stats, stat)
	}
	return nil
}

// suggestSubstitute flags a player whose primary team is not the team
// they appeared for. The strategy has the final say.
func (ing *Ingestor) suggestSubstitute(rp RawPlayer, player *domain.Player, team *domain.Team) bool {
	primaryTeam := ""
	if player.PrimaryTeamID != nil {
		primaryTeam = ing.reg.TeamName(*player.PrimaryTeamID)
	}
	suggested := rp.IsSubstitute
	if primaryTeam != "" && !strings.EqualFold(primaryTeam, team.Name) {
		suggested = true
	}
	return ing.rc.Strategy().ConfirmSubstitute(player.Name, primaryTeam, team.Name, suggested)
}

func standingTeamName(faction domain.Faction, matchType domain.MatchType) string {
	if matchType == domain.MatchTypeRanked {
		if faction == domain.FactionImperial {
			return constants.ImperialRankedTeamName
		}
		return constants.RebelRankedTeamName
	}
	if faction == domain.FactionImperial {
		return constants.ImperialPickupTeamName
	}
	return constants.RebelPickupTeamName
}

func parseMatchType(s string, fallback domain.MatchType) domain.MatchType {
	switch domain.MatchType(strings.ToLower(strings.TrimSpace(s))) {
	case domain.MatchTypeTeam:
		return domain.MatchTypeTeam
	case domain.MatchTypePickup:
		return domain.MatchTypePickup
	case domain.MatchTypeRanked:
		return domain.MatchTypeRanked
	default:
		return fallback
	}
}

// ParseOutcome reads free text like "IMPERIAL VICTORY" or "New Republic
// wins" and maps it onto a winner. Imperial phrases are checked first;
// anything matching neither side is unknown.
func ParseOutcome(result string) domain.Outcome {
	text := strings.ToUpper(result)
	switch {
	case strings.Contains(text, "IMPERIAL"), strings.Contains(text, "EMPIRE"):
		return domain.OutcomeImperial
	case strings.Contains(text, "REBEL"), strings.Contains(text, "REPUBLIC"):
		return domain.OutcomeRebel
	default:
		return domain.OutcomeUnknown
	}
}

var (
	dateYearFirst = regexp.MustCompile(`(20\d{2})[.-](\d{2})[.-](\d{2})`)
	dateYearLast  = regexp.MustCompile(`(\d{2})[.-](\d{2})[.-](20\d{2})`)
	dateShortYear = regexp.MustCompile(`(\d{2})[.-](\d{2})[.-](\d{2})`)
	fieldLayouts  = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "2006.01.02"}
)

// MatchDate derives the match timestamp from the explicit date field,
// falling back to date fragments embedded in the source filename. Dates
// without a time of day default to noon UTC. Returns a zero time and
// false when nothing can be derived.
func MatchDate(field, filename string) (time.Time, bool) {
	field = strings.TrimSpace(field)
	if field != "" {
		for _, layout := range fieldLayouts {
			if t, err := time.Parse(layout, field); err == nil {
				if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
					t = t.Add(12 * time.Hour)
				}
				return t, true
			}
		}
	}

	if m := dateYearFirst.FindStringSubmatch(filename); m != nil {
		return noonDate(m[1], m[2], m[3])
	}
	if m := dateYearLast.FindStringSubmatch(filename); m != nil {
		// day first: DD.MM.YYYY
		return noonDate(m[3], m[2], m[1])
	}
	if m := dateShortYear.FindStringSubmatch(filename); m != nil {
		// MM-DD-YY with a two-digit year
		return noonDate("20"+m[3], m[1], m[2])
	}
	return time.Time{}, false
}

func noonDate(year, month, day string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", year, month, day))
	if err != nil {
		return time.Time{}, false
	}
	return t.Add(12 * time.Hour), true
}
