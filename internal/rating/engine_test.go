package rating

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadron-stats/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(Config{StartingRating: 1000, KFactor: 32}, zerolog.Nop())
}

func day(d int) time.Time {
	return time.Date(2023, 6, d, 12, 0, 0, 0, time.UTC)
}

func teamMatch(id int64, d int, impWins bool, imp, reb []Participant) MatchInput {
	winner := domain.OutcomeRebel
	if impWins {
		winner = domain.OutcomeImperial
	}
	return MatchInput{
		Match: domain.Match{
			ID:             id,
			MatchType:      domain.MatchTypeTeam,
			MatchDate:      day(d),
			IngestSeq:      id,
			ImperialTeamID: 100,
			RebelTeamID:    200,
			Winner:         winner,
		},
		ImperialTeamName: "Black Squadron",
		RebelTeamName:    "Green Squadron",
		Imperial:         imp,
		Rebel:            reb,
	}
}

func poolEntries(res *Result, pool domain.PoolKey) map[int64]domain.RatingEntry {
	out := make(map[int64]domain.RatingEntry)
	for _, en := range res.Entries {
		if en.Pool == pool {
			out[en.SubjectID] = en
		}
	}
	return out
}

// Equal 1000 ratings at K=32: the winner lands on exactly 1016, the
// loser on 984.
func TestEqualTeamsSingleMatch(t *testing.T) {
	res := newTestEngine().Replay([]MatchInput{
		teamMatch(1, 1, true,
			[]Participant{{PlayerID: 1, Name: "Ace"}},
			[]Participant{{PlayerID: 2, Name: "Talon"}}),
	})

	teams := poolEntries(res, domain.PoolKey{Scope: domain.ScopeTeam, MatchType: domain.MatchTypeTeam})
	require.Len(t, teams, 2)
	assert.Equal(t, 1016.0, teams[100].Rating)
	assert.Equal(t, 984.0, teams[200].Rating)
	assert.Equal(t, 1, teams[100].MatchesWon)
	assert.Equal(t, 1, teams[200].MatchesLost)
}

func TestExpectedScoresSumToOne(t *testing.T) {
	assert.Equal(t, 0.5, Expected(1000, 1000))
	for _, pair := range [][2]float64{{1000, 1200}, {1431, 987}, {1000, 1000}} {
		ea := Expected(pair[0], pair[1])
		eb := Expected(pair[1], pair[0])
		assert.InDelta(t, 1.0, ea+eb, 1e-12)
	}
}

func TestReplayDeterministic(t *testing.T) {
	matches := []MatchInput{
		teamMatch(1, 1, true,
			[]Participant{{PlayerID: 1, Name: "Ace", Role: domain.RoleFarmer}, {PlayerID: 2, Name: "Wing", Role: domain.RoleFlex}},
			[]Participant{{PlayerID: 3, Name: "Talon", Role: domain.RoleSupport}, {PlayerID: 4, Name: "Vex", Role: domain.RoleFarmer}}),
		teamMatch(2, 2, false,
			[]Participant{{PlayerID: 1, Name: "Ace", Role: domain.RoleFlex}},
			[]Participant{{PlayerID: 3, Name: "Talon", Role: domain.RoleSupport}}),
	}

	a := newTestEngine().Replay(matches)
	b := newTestEngine().Replay(matches)
	assert.Equal(t, a.Entries, b.Entries)
	assert.Equal(t, a.History, b.History)
}

func TestReplayOrdersByDateThenSeq(t *testing.T) {
	early := teamMatch(2, 1, true,
		[]Participant{{PlayerID: 1, Name: "Ace"}},
		[]Participant{{PlayerID: 2, Name: "Talon"}})
	late := teamMatch(1, 2, false,
		[]Participant{{PlayerID: 1, Name: "Ace"}},
		[]Participant{{PlayerID: 2, Name: "Talon"}})

	// input order must not matter
	a := newTestEngine().Replay([]MatchInput{late, early})
	b := newTestEngine().Replay([]MatchInput{early, late})
	assert.Equal(t, a.Entries, b.Entries)

	// the first history event belongs to the earlier match
	require.NotEmpty(t, a.History)
	assert.Equal(t, int64(2), a.History[0].MatchID)
}

func TestUndatedMatchesSortBySequence(t *testing.T) {
	first := teamMatch(1, 1, true, []Participant{{PlayerID: 1, Name: "Ace"}}, []Participant{{PlayerID: 2, Name: "Talon"}})
	first.Match.MatchDate = time.Time{}
	first.Match.IngestSeq = 5
	second := teamMatch(2, 1, false, []Participant{{PlayerID: 1, Name: "Ace"}}, []Participant{{PlayerID: 2, Name: "Talon"}})
	second.Match.MatchDate = time.Time{}
	second.Match.IngestSeq = 9

	res := newTestEngine().Replay([]MatchInput{second, first})
	require.NotEmpty(t, res.History)
	assert.Equal(t, int64(1), res.History[0].MatchID)
}

func TestUnknownOutcomeSkipped(t *testing.T) {
	m := teamMatch(1, 1, true,
		[]Participant{{PlayerID: 1, Name: "Ace"}},
		[]Participant{{PlayerID: 2, Name: "Talon"}})
	m.Match.Winner = domain.OutcomeUnknown

	res := newTestEngine().Replay([]MatchInput{m})
	assert.Empty(t, res.Entries)
	assert.Empty(t, res.History)
}

func TestMissingRosterSkipsWholeMatch(t *testing.T) {
	m := teamMatch(1, 1, true,
		[]Participant{{PlayerID: 1, Name: "Ace"}},
		nil)

	res := newTestEngine().Replay([]MatchInput{m})
	assert.Empty(t, res.Entries)
	assert.Empty(t, res.History)
}

func TestPlayerPoolUsesTeamAverages(t *testing.T) {
	m := teamMatch(1, 1, true,
		[]Participant{{PlayerID: 1, Name: "Ace"}, {PlayerID: 2, Name: "Wing"}},
		[]Participant{{PlayerID: 3, Name: "Talon"}, {PlayerID: 4, Name: "Vex"}})

	res := newTestEngine().Replay([]MatchInput{m})
	players := poolEntries(res, domain.PoolKey{Scope: domain.ScopePlayer, MatchType: domain.MatchTypeTeam})
	require.Len(t, players, 4)
	// all start equal, so every winner gains exactly 16
	assert.Equal(t, 1016.0, players[1].Rating)
	assert.Equal(t, 1016.0, players[2].Rating)
	assert.Equal(t, 984.0, players[3].Rating)
	assert.Equal(t, 984.0, players[4].Rating)
}

// Same side, different prior ratings: both get the identical
// expected/actual, so their gap stays the same width after the match.
func TestSameSideMembersKeepTheirGap(t *testing.T) {
	warmup := teamMatch(1, 1, true,
		[]Participant{{PlayerID: 1, Name: "Ace"}},
		[]Participant{{PlayerID: 3, Name: "Talon"}})
	joint := teamMatch(2, 2, true,
		[]Participant{{PlayerID: 1, Name: "Ace"}, {PlayerID: 2, Name: "Wing"}},
		[]Participant{{PlayerID: 3, Name: "Talon"}, {PlayerID: 4, Name: "Vex"}})

	res := newTestEngine().Replay([]MatchInput{warmup, joint})
	players := poolEntries(res, domain.PoolKey{Scope: domain.ScopePlayer, MatchType: domain.MatchTypeTeam})

	gapBefore := 1016.0 - 1000.0
	gapAfter := players[1].Rating - players[2].Rating
	assert.InDelta(t, gapBefore, gapAfter, 1e-9)
}

func TestRolePoolsIndependent(t *testing.T) {
	m1 := teamMatch(1, 1, true,
		[]Participant{{PlayerID: 1, Name: "Ace", Role: domain.RoleFlex}},
		[]Participant{{PlayerID: 2, Name: "Talon", Role: domain.RoleFlex}})
	m2 := teamMatch(2, 2, true,
		[]Participant{{PlayerID: 1, Name: "Ace", Role: domain.RoleSupport}},
		[]Participant{{PlayerID: 2, Name: "Talon", Role: domain.RoleSupport}})

	res := newTestEngine().Replay([]MatchInput{m1, m2})

	flex := poolEntries(res, domain.PoolKey{Scope: domain.ScopeRole, MatchType: domain.MatchTypeTeam, Role: domain.RoleFlex})
	support := poolEntries(res, domain.PoolKey{Scope: domain.ScopeRole, MatchType: domain.MatchTypeTeam, Role: domain.RoleSupport})
	general := poolEntries(res, domain.PoolKey{Scope: domain.ScopePlayer, MatchType: domain.MatchTypeTeam})

	// one qualifying match per role pool, two in the general pool
	assert.Equal(t, 1, flex[1].MatchesPlayed)
	assert.Equal(t, 1, support[1].MatchesPlayed)
	assert.Equal(t, 2, general[1].MatchesPlayed)

	// farmer pool never saw a participant
	farmer := poolEntries(res, domain.PoolKey{Scope: domain.ScopeRole, MatchType: domain.MatchTypeTeam, Role: domain.RoleFarmer})
	assert.Empty(t, farmer)
}

// Role-pool expectation comes from the general side averages, not from
// role-restricted ones.
func TestRolePoolUsesGeneralAverages(t *testing.T) {
	warmup := teamMatch(1, 1, true,
		[]Participant{{PlayerID: 1, Name: "Ace", Role: domain.RoleFlex}},
		[]Participant{{PlayerID: 2, Name: "Talon", Role: domain.RoleFlex}})
	rematch := teamMatch(2, 2, true,
		[]Participant{{PlayerID: 1, Name: "Ace", Role: domain.RoleSupport}},
		[]Participant{{PlayerID: 2, Name: "Talon", Role: domain.RoleSupport}})

	res := newTestEngine().Replay([]MatchInput{warmup, rematch})
	support := poolEntries(res, domain.PoolKey{Scope: domain.ScopeRole, MatchType: domain.MatchTypeTeam, Role: domain.RoleSupport})

	// both are new to the Support pool (1000 each), but the general
	// averages are 1016 vs 984, so the expectation is not 0.5
	expected := Expected(1016, 984)
	want := 1000 + 32*(1-expected)
	assert.InDelta(t, want, support[1].Rating, 1e-9)

	// the event records the general averages it used
	var ev *domain.RatingHistoryEvent
	for i := range res.History {
		if res.History[i].Pool == (domain.PoolKey{Scope: domain.ScopeRole, MatchType: domain.MatchTypeTeam, Role: domain.RoleSupport}) {
			ev = &res.History[i]
		}
	}
	require.NotNil(t, ev)
	assert.Equal(t, 1016.0, ev.ImperialAvg)
	assert.Equal(t, 984.0, ev.RebelAvg)
}

func TestHistoryRecordsDeltas(t *testing.T) {
	res := newTestEngine().Replay([]MatchInput{
		teamMatch(1, 1, false,
			[]Participant{{PlayerID: 1, Name: "Ace"}},
			[]Participant{{PlayerID: 2, Name: "Talon"}}),
	})

	// team pool + player pool, no roles recorded
	require.Len(t, res.History, 2)
	for _, ev := range res.History {
		assert.Empty(t, ev.ID)
		require.Len(t, ev.Imperial, 1)
		require.Len(t, ev.Rebel, 1)
		assert.Equal(t, -16.0, ev.Imperial[0].Delta)
		assert.Equal(t, 16.0, ev.Rebel[0].Delta)
		assert.Equal(t, ev.Imperial[0].OldRating+ev.Imperial[0].Delta, ev.Imperial[0].NewRating)
	}
}

func TestMatchTypesKeepSeparatePools(t *testing.T) {
	team := teamMatch(1, 1, true,
		[]Participant{{PlayerID: 1, Name: "Ace"}},
		[]Participant{{PlayerID: 2, Name: "Talon"}})
	pickup := teamMatch(2, 2, true,
		[]Participant{{PlayerID: 1, Name: "Ace"}},
		[]Participant{{PlayerID: 2, Name: "Talon"}})
	pickup.Match.MatchType = domain.MatchTypePickup

	res := newTestEngine().Replay([]MatchInput{team, pickup})

	teamPool := poolEntries(res, domain.PoolKey{Scope: domain.ScopePlayer, MatchType: domain.MatchTypeTeam})
	pickupPool := poolEntries(res, domain.PoolKey{Scope: domain.ScopePlayer, MatchType: domain.MatchTypePickup})
	assert.Equal(t, 1, teamPool[1].MatchesPlayed)
	assert.Equal(t, 1, pickupPool[1].MatchesPlayed)
	assert.Equal(t, 1016.0, teamPool[1].Rating)
	assert.Equal(t, 1016.0, pickupPool[1].Rating)
}
