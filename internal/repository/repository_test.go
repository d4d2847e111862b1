package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadron-stats/internal/config"
	"squadron-stats/internal/database"
	"squadron-stats/internal/domain"
)

func testDB(t *testing.T) (*RegistryStore, *MatchRepository, *RatingRepository) {
	t.Helper()
	cfg := &config.Config{DBPath: ":memory:"}
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	return NewRegistryStore(db, log), NewMatchRepository(db, log), NewRatingRepository(db, log)
}

func seedTeams(t *testing.T, store *RegistryStore) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.SaveTeam(ctx, &domain.Team{ID: 1, Name: "Black Squadron", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.SaveTeam(ctx, &domain.Team{ID: 2, Name: "Green Squadron", CreatedAt: now, UpdatedAt: now}))
	return 1, 2
}

func TestRegistryStoreRoundTrip(t *testing.T) {
	store, _, _ := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	teamID, _ := seedTeams(t, store)
	p := &domain.Player{
		ID:            1,
		Name:          "Ace",
		PrimaryTeamID: &teamID,
		PrimaryRole:   domain.RoleFarmer,
		Aliases:       []string{"The Ace", "Ace1"},
		SourceFile:    "a.png",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.SavePlayer(ctx, p))

	players, err := store.ListPlayers(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)
	got := players[0]
	assert.Equal(t, "Ace", got.Name)
	assert.Equal(t, domain.RoleFarmer, got.PrimaryRole)
	require.NotNil(t, got.PrimaryTeamID)
	assert.Equal(t, teamID, *got.PrimaryTeamID)
	assert.ElementsMatch(t, []string{"The Ace", "Ace1"}, got.Aliases)

	// save again with a changed alias set: old aliases are replaced
	p.Aliases = []string{"Ace1"}
	require.NoError(t, store.SavePlayer(ctx, p))
	players, err = store.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ace1"}, players[0].Aliases)

	require.NoError(t, store.DeletePlayer(ctx, p.ID))
	players, err = store.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestMatchRepositorySaveIsIdempotentPerFile(t *testing.T) {
	store, matches, _ := testDB(t)
	ctx := context.Background()
	impID, rebID := seedTeams(t, store)
	require.NoError(t, matches.EnsureSeason(ctx, "season1"))
	require.NoError(t, matches.EnsureSeason(ctx, "season1"))

	m := &domain.Match{
		Season:         "season1",
		Filename:       "match1.png",
		MatchType:      domain.MatchTypeTeam,
		MatchDate:      time.Date(2023, 6, 14, 12, 0, 0, 0, time.UTC),
		IngestSeq:      1,
		ImperialTeamID: impID,
		RebelTeamID:    rebID,
		Winner:         domain.OutcomeImperial,
	}
	stats := []domain.PlayerMatchStat{
		{PlayerID: 1, PlayerName: "Ace", Faction: domain.FactionImperial, TeamOfRecord: &impID, Role: domain.RoleFarmer, Kills: 5},
		{PlayerID: 2, PlayerName: "Talon", Faction: domain.FactionRebel, TeamOfRecord: &rebID},
	}
	require.NoError(t, matches.SaveMatch(ctx, m, stats))
	firstID := m.ID
	require.NotZero(t, firstID)

	// same season/filename again: row is updated, not duplicated
	m2 := *m
	m2.ID = 0
	m2.Winner = domain.OutcomeRebel
	require.NoError(t, matches.SaveMatch(ctx, &m2, stats))
	assert.Equal(t, firstID, m2.ID)

	list, err := matches.ListMatches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.OutcomeRebel, list[0].Winner)

	byMatch, err := matches.ListStats(ctx)
	require.NoError(t, err)
	require.Len(t, byMatch[firstID], 2)
	assert.Equal(t, "Ace", byMatch[firstID][0].PlayerName)
	require.NotNil(t, byMatch[firstID][0].TeamOfRecord)
}

func TestMatchRepositoryReplayOrder(t *testing.T) {
	store, matches, _ := testDB(t)
	ctx := context.Background()
	impID, rebID := seedTeams(t, store)
	require.NoError(t, matches.EnsureSeason(ctx, "s"))

	undated := &domain.Match{
		Season: "s", Filename: "undated.png", MatchType: domain.MatchTypePickup,
		IngestSeq: 3, ImperialTeamID: impID, RebelTeamID: rebID, Winner: domain.OutcomeImperial,
	}
	dated := &domain.Match{
		Season: "s", Filename: "dated.png", MatchType: domain.MatchTypePickup,
		MatchDate: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		IngestSeq: 1, ImperialTeamID: impID, RebelTeamID: rebID, Winner: domain.OutcomeRebel,
	}
	require.NoError(t, matches.SaveMatch(ctx, undated, nil))
	require.NoError(t, matches.SaveMatch(ctx, dated, nil))

	list, err := matches.ListMatches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// undated rows sort first and keep a zero time
	assert.Equal(t, "undated.png", list[0].Filename)
	assert.True(t, list[0].MatchDate.IsZero())
	assert.Equal(t, "dated.png", list[1].Filename)

	seq, err := matches.MaxIngestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestMatchRepositoryCorrections(t *testing.T) {
	store, matches, _ := testDB(t)
	ctx := context.Background()
	impID, rebID := seedTeams(t, store)
	require.NoError(t, matches.EnsureSeason(ctx, "s"))

	m := &domain.Match{
		Season: "s", Filename: "f.png", MatchType: domain.MatchTypeTeam,
		IngestSeq: 1, ImperialTeamID: impID, RebelTeamID: rebID, Winner: domain.OutcomeImperial,
	}
	stats := []domain.PlayerMatchStat{
		{PlayerID: 1, PlayerName: "Ace", Faction: domain.FactionImperial, TeamOfRecord: &impID},
		{PlayerID: 2, PlayerName: "Talon", Faction: domain.FactionRebel, TeamOfRecord: &rebID},
	}
	require.NoError(t, matches.SaveMatch(ctx, m, stats))

	when := time.Date(2023, 3, 4, 12, 0, 0, 0, time.UTC)
	require.NoError(t, matches.UpdateMatchDate(ctx, m.ID, when))
	require.NoError(t, matches.UpdateMatchType(ctx, m.ID, domain.MatchTypePickup))

	var nf *domain.NotFoundError
	require.ErrorAs(t, matches.UpdateMatchDate(ctx, 999, when), &nf)

	n, err := matches.NullifyPickupTeams(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	byMatch, err := matches.ListStats(ctx)
	require.NoError(t, err)
	for _, st := range byMatch[m.ID] {
		assert.Nil(t, st.TeamOfRecord)
	}

	moved, err := matches.ReassignStats(ctx, 2, 1, "Ace")
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)
}

func TestReassignStatsFoldsCollidingRows(t *testing.T) {
	store, matches, _ := testDB(t)
	ctx := context.Background()
	impID, rebID := seedTeams(t, store)
	require.NoError(t, matches.EnsureSeason(ctx, "s"))

	shared := &domain.Match{
		Season: "s", Filename: "f.png", MatchType: domain.MatchTypePickup,
		IngestSeq: 1, ImperialTeamID: impID, RebelTeamID: rebID, Winner: domain.OutcomeImperial,
	}
	require.NoError(t, matches.SaveMatch(ctx, shared, []domain.PlayerMatchStat{
		{PlayerID: 1, PlayerName: "Ace", Faction: domain.FactionImperial, Score: 100, Kills: 3},
		{PlayerID: 2, PlayerName: "Ayce", Faction: domain.FactionImperial, Score: 50, Kills: 2},
	}))

	other := &domain.Match{
		Season: "s", Filename: "g.png", MatchType: domain.MatchTypePickup,
		IngestSeq: 2, ImperialTeamID: impID, RebelTeamID: rebID, Winner: domain.OutcomeRebel,
	}
	require.NoError(t, matches.SaveMatch(ctx, other, []domain.PlayerMatchStat{
		{PlayerID: 2, PlayerName: "Ayce", Faction: domain.FactionRebel, Kills: 1},
	}))

	n, err := matches.ReassignStats(ctx, 2, 1, "Ace")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	byMatch, err := matches.ListStats(ctx)
	require.NoError(t, err)

	// the shared match keeps one line with the counters summed
	require.Len(t, byMatch[shared.ID], 1)
	folded := byMatch[shared.ID][0]
	assert.Equal(t, int64(1), folded.PlayerID)
	assert.Equal(t, 150, folded.Score)
	assert.Equal(t, 5, folded.Kills)

	// the non-colliding line is simply re-pointed
	require.Len(t, byMatch[other.ID], 1)
	assert.Equal(t, int64(1), byMatch[other.ID][0].PlayerID)
	assert.Equal(t, "Ace", byMatch[other.ID][0].PlayerName)
}

func TestRatingRepositoryReplaceAllRoundTrip(t *testing.T) {
	store, matches, ratings := testDB(t)
	ctx := context.Background()
	impID, rebID := seedTeams(t, store)
	require.NoError(t, matches.EnsureSeason(ctx, "s"))

	m := &domain.Match{
		Season: "s", Filename: "f.png", MatchType: domain.MatchTypeTeam,
		IngestSeq: 1, ImperialTeamID: impID, RebelTeamID: rebID, Winner: domain.OutcomeImperial,
	}
	require.NoError(t, matches.SaveMatch(ctx, m, nil))

	pool := domain.PoolKey{Scope: domain.ScopeRole, MatchType: domain.MatchTypePickup, Role: domain.RoleFlex}
	entries := []domain.RatingEntry{
		{Pool: pool, SubjectID: 1, SubjectName: "Ace", Rating: 1016, MatchesPlayed: 1, MatchesWon: 1},
	}
	history := []domain.RatingHistoryEvent{
		{
			Pool: pool, MatchID: m.ID, Season: "s", Winner: domain.OutcomeImperial,
			ImperialAvg: 1000, RebelAvg: 1000,
			Imperial: []domain.RatingChange{{SubjectID: 1, Name: "Ace", Role: domain.RoleFlex, OldRating: 1000, NewRating: 1016, Delta: 16}},
			Rebel:    []domain.RatingChange{{SubjectID: 2, Name: "Talon", Role: domain.RoleFlex, OldRating: 1000, NewRating: 984, Delta: -16}},
		},
	}
	require.NoError(t, ratings.ReplaceAll(ctx, entries, history))

	gotEntries, err := ratings.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, gotEntries, 1)
	assert.Equal(t, pool, gotEntries[0].Pool)
	assert.Equal(t, 1016.0, gotEntries[0].Rating)

	gotHistory, err := ratings.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, gotHistory, 1)
	ev := gotHistory[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, pool, ev.Pool)
	require.Len(t, ev.Imperial, 1)
	assert.Equal(t, 16.0, ev.Imperial[0].Delta)
	assert.Equal(t, domain.RoleFlex, ev.Imperial[0].Role)
	require.Len(t, ev.Rebel, 1)

	// replace again: state is swapped, not appended
	require.NoError(t, ratings.ReplaceAll(ctx, entries, history))
	gotEntries, err = ratings.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, gotEntries, 1)
}
