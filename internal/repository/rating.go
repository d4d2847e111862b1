package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"squadron-stats/internal/domain"
)

type RatingRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRatingRepository(sqlDB *sql.DB, logger zerolog.Logger) *RatingRepository {
	return &RatingRepository{db: sqlDB, logger: logger}
}

// ReplaceAll swaps the full rating state for the result of a replay, in
// one transaction. Events arriving with an empty id get a fresh nanoid
// here; the engine itself never generates ids so its output stays
// replay-deterministic.
func (r *RatingRepository) ReplaceAll(ctx context.Context, entries []domain.RatingEntry, history []domain.RatingHistoryEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"rating_changes", "rating_history", "rating_entries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, en := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rating_entries (pool, subject_id, subject_name, rating,
				matches_played, matches_won, matches_lost)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			en.Pool.String(), en.SubjectID, en.SubjectName, en.Rating,
			en.MatchesPlayed, en.MatchesWon, en.MatchesLost)
		if err != nil {
			return fmt.Errorf("failed to insert rating entry %s/%d: %w", en.Pool, en.SubjectID, err)
		}
	}

	for seq, ev := range history {
		id := ev.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}

		var matchDate sql.NullTime
		if !ev.MatchDate.IsZero() {
			matchDate = sql.NullTime{Time: ev.MatchDate, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rating_history (id, pool, match_id, match_date, season,
				winner, imperial_avg, rebel_avg, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, ev.Pool.String(), ev.MatchID, matchDate, ev.Season,
			string(ev.Winner), ev.ImperialAvg, ev.RebelAvg, seq)
		if err != nil {
			return fmt.Errorf("failed to insert history event: %w", err)
		}

		if err := insertChanges(ctx, tx, id, "IMPERIAL", ev.Imperial); err != nil {
			return err
		}
		if err := insertChanges(ctx, tx, id, "REBEL", ev.Rebel); err != nil {
			return err
		}
	}

	r.logger.Info().
		Int("entries", len(entries)).
		Int("history_events", len(history)).
		Msg("rating state replaced")
	return tx.Commit()
}

func insertChanges(ctx context.Context, tx *sql.Tx, historyID, faction string, changes []domain.RatingChange) error {
	for ord, ch := range changes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rating_changes (history_id, faction, subject_id, subject_name,
				role, old_rating, new_rating, delta, ord)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			historyID, faction, ch.SubjectID, ch.Name, string(ch.Role),
			ch.OldRating, ch.NewRating, ch.Delta, ord)
		if err != nil {
			return fmt.Errorf("failed to insert rating change: %w", err)
		}
	}
	return nil
}

func (r *RatingRepository) ListEntries(ctx context.Context) ([]domain.RatingEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pool, subject_id, subject_name, rating, matches_played, matches_won, matches_lost
		FROM rating_entries ORDER BY pool, subject_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.RatingEntry
	for rows.Next() {
		var en domain.RatingEntry
		var pool string
		if err := rows.Scan(&pool, &en.SubjectID, &en.SubjectName, &en.Rating,
			&en.MatchesPlayed, &en.MatchesWon, &en.MatchesLost); err != nil {
			return nil, fmt.Errorf("failed to scan rating entry: %w", err)
		}
		en.Pool, err = domain.ParsePoolKey(pool)
		if err != nil {
			return nil, err
		}
		entries = append(entries, en)
	}
	return entries, rows.Err()
}

// ListHistory returns every history event in replay order, changes
// attached.
func (r *RatingRepository) ListHistory(ctx context.Context) ([]domain.RatingHistoryEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pool, match_id, match_date, season, winner, imperial_avg, rebel_avg, seq
		FROM rating_history ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating history: %w", err)
	}
	defer rows.Close()

	var events []domain.RatingHistoryEvent
	index := make(map[string]int)
	for rows.Next() {
		var ev domain.RatingHistoryEvent
		var pool, winner string
		var matchDate sql.NullTime
		var seq int64
		if err := rows.Scan(&ev.ID, &pool, &ev.MatchID, &matchDate, &ev.Season,
			&winner, &ev.ImperialAvg, &ev.RebelAvg, &seq); err != nil {
			return nil, fmt.Errorf("failed to scan history event: %w", err)
		}
		ev.Pool, err = domain.ParsePoolKey(pool)
		if err != nil {
			return nil, err
		}
		ev.Winner = domain.Outcome(winner)
		if matchDate.Valid {
			ev.MatchDate = matchDate.Time
		}
		index[ev.ID] = len(events)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	changeRows, err := r.db.QueryContext(ctx, `
		SELECT history_id, faction, subject_id, subject_name, role, old_rating, new_rating, delta, ord
		FROM rating_changes`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating changes: %w", err)
	}
	defer changeRows.Close()

	type keyed struct {
		historyID string
		faction   string
		ord       int
		change    domain.RatingChange
	}
	var all []keyed
	for changeRows.Next() {
		var k keyed
		var role string
		if err := changeRows.Scan(&k.historyID, &k.faction, &k.change.SubjectID,
			&k.change.Name, &role, &k.change.OldRating, &k.change.NewRating,
			&k.change.Delta, &k.ord); err != nil {
			return nil, fmt.Errorf("failed to scan rating change: %w", err)
		}
		k.change.Role = domain.ParseRole(role)
		all = append(all, k)
	}
	if err := changeRows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].ord < all[j].ord })
	for _, k := range all {
		i, ok := index[k.historyID]
		if !ok {
			continue
		}
		if k.faction == "IMPERIAL" {
			events[i].Imperial = append(events[i].Imperial, k.change)
		} else {
			events[i].Rebel = append(events[i].Rebel, k.change)
		}
	}
	return events, nil
}
