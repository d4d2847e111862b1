package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"squadron-stats/internal/domain"
)

type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: sqlDB, logger: logger}
}

func (r *MatchRepository) EnsureSeason(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO seasons (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return fmt.Errorf("failed to ensure season %q: %w", name, err)
	}
	return nil
}

// SaveMatch upserts the match keyed on (season, filename) and rewrites
// its stat lines, so re-running ingestion over the same files converges
// instead of duplicating. The match id is written back to m and the
// stats.
func (r *MatchRepository) SaveMatch(ctx context.Context, m *domain.Match, stats []domain.PlayerMatchStat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var matchDate sql.NullTime
	if !m.MatchDate.IsZero() {
		matchDate = sql.NullTime{Time: m.MatchDate, Valid: true}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO matches (season, filename, match_type, match_date, ingest_seq,
			imperial_team_id, rebel_team_id, winner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (season, filename) DO UPDATE SET
			match_type = excluded.match_type,
			match_date = excluded.match_date,
			ingest_seq = excluded.ingest_seq,
			imperial_team_id = excluded.imperial_team_id,
			rebel_team_id = excluded.rebel_team_id,
			winner = excluded.winner
		RETURNING id`,
		m.Season, m.Filename, string(m.MatchType), matchDate, m.IngestSeq,
		m.ImperialTeamID, m.RebelTeamID, string(m.Winner)).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert match %s/%s: %w", m.Season, m.Filename, err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM player_match_stats WHERE match_id = ?`, m.ID); err != nil {
		return fmt.Errorf("failed to clear match stats: %w", err)
	}
	for i := range stats {
		st := &stats[i]
		st.MatchID = m.ID
		var teamOfRecord sql.NullInt64
		if st.TeamOfRecord != nil {
			teamOfRecord = sql.NullInt64{Int64: *st.TeamOfRecord, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO player_match_stats (match_id, player_id, player_name, faction,
				team_of_record_id, role, is_substitute, score, kills, deaths, assists,
				ai_kills, cap_ship_damage)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.MatchID, st.PlayerID, st.PlayerName, string(st.Faction),
			teamOfRecord, string(st.Role), st.IsSubstitute, st.Score, st.Kills,
			st.Deaths, st.Assists, st.AIKills, st.CapShipDamage)
		if err != nil {
			return fmt.Errorf("failed to insert stat line for player %d: %w", st.PlayerID, err)
		}
	}
	return tx.Commit()
}

// ListMatches returns every match in replay order.
func (r *MatchRepository) ListMatches(ctx context.Context) ([]domain.Match, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, season, filename, match_type, match_date, ingest_seq,
			imperial_team_id, rebel_team_id, winner, created_at
		FROM matches
		ORDER BY match_date IS NOT NULL, match_date, ingest_seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		var matchType, winner string
		var matchDate sql.NullTime
		if err := rows.Scan(&m.ID, &m.Season, &m.Filename, &matchType, &matchDate,
			&m.IngestSeq, &m.ImperialTeamID, &m.RebelTeamID, &winner, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.MatchType = domain.MatchType(matchType)
		m.Winner = domain.Outcome(winner)
		if matchDate.Valid {
			m.MatchDate = matchDate.Time
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListStats returns every stat line grouped by match, in a stable order.
func (r *MatchRepository) ListStats(ctx context.Context) (map[int64][]domain.PlayerMatchStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT match_id, player_id, player_name, faction, team_of_record_id, role,
			is_substitute, score, kills, deaths, assists, ai_kills, cap_ship_damage
		FROM player_match_stats
		ORDER BY match_id, faction, player_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stats: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.PlayerMatchStat)
	for rows.Next() {
		var st domain.PlayerMatchStat
		var faction, role string
		var teamOfRecord sql.NullInt64
		if err := rows.Scan(&st.MatchID, &st.PlayerID, &st.PlayerName, &faction,
			&teamOfRecord, &role, &st.IsSubstitute, &st.Score, &st.Kills, &st.Deaths,
			&st.Assists, &st.AIKills, &st.CapShipDamage); err != nil {
			return nil, fmt.Errorf("failed to scan stat line: %w", err)
		}
		st.Faction = domain.Faction(faction)
		st.Role = domain.ParseRole(role)
		if teamOfRecord.Valid {
			st.TeamOfRecord = &teamOfRecord.Int64
		}
		out[st.MatchID] = append(out[st.MatchID], st)
	}
	return out, rows.Err()
}

func (r *MatchRepository) MaxIngestSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(ingest_seq), 0) FROM matches`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read max ingest seq: %w", err)
	}
	return seq, nil
}

func (r *MatchRepository) UpdateMatchDate(ctx context.Context, id int64, date time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches SET match_date = ? WHERE id = ?`, date, id)
	if err != nil {
		return fmt.Errorf("failed to update match date: %w", err)
	}
	return requireMatchRow(res, id)
}

func (r *MatchRepository) UpdateMatchType(ctx context.Context, id int64, mt domain.MatchType) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches SET match_type = ? WHERE id = ?`, string(mt), id)
	if err != nil {
		return fmt.Errorf("failed to update match type: %w", err)
	}
	return requireMatchRow(res, id)
}

// NullifyPickupTeams clears team-of-record on every stat line belonging
// to a pickup or ranked match. Corrects rows ingested before the match
// type itself was fixed.
func (r *MatchRepository) NullifyPickupTeams(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE player_match_stats SET team_of_record_id = NULL
		WHERE team_of_record_id IS NOT NULL
		  AND match_id IN (SELECT id FROM matches WHERE match_type IN ('pickup', 'ranked'))`)
	if err != nil {
		return 0, fmt.Errorf("failed to nullify pickup teams: %w", err)
	}
	return res.RowsAffected()
}

// ReassignStats re-points stat lines from one player id onto another,
// the reconciliation step after a registry merge. A match holds one
// line per player, so where both ids have a line in the same match the
// duplicate's counters fold into the survivor's line first. Returns the
// number of lines folded or re-pointed.
func (r *MatchRepository) ReassignStats(ctx context.Context, fromID, toID int64, toName string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE player_match_stats AS s SET
			score = s.score + d.score,
			kills = s.kills + d.kills,
			deaths = s.deaths + d.deaths,
			assists = s.assists + d.assists,
			ai_kills = s.ai_kills + d.ai_kills,
			cap_ship_damage = s.cap_ship_damage + d.cap_ship_damage
		FROM player_match_stats AS d
		WHERE d.match_id = s.match_id AND s.player_id = ? AND d.player_id = ?`,
		toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("failed to fold stats from %d into %d: %w", fromID, toID, err)
	}
	folded, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if folded > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM player_match_stats
			WHERE player_id = ?
			  AND match_id IN (SELECT match_id FROM player_match_stats WHERE player_id = ?)`,
			fromID, toID); err != nil {
			return 0, fmt.Errorf("failed to delete folded stats for %d: %w", fromID, err)
		}
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE player_match_stats SET player_id = ?, player_name = ?
		WHERE player_id = ?`, toID, toName, fromID)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign stats from %d to %d: %w", fromID, toID, err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return folded + moved, nil
}

func requireMatchRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: domain.KindMatch, ID: id}
	}
	return nil
}
