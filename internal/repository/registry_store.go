// Package repository holds the SQLite implementations of the storage
// ports. SQL is hand-written; every multi-statement mutation runs in a
// transaction.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"squadron-stats/internal/domain"
)

// RegistryStore persists players and teams for the identity registry.
// Aliases live in child tables and are rewritten wholesale on save; the
// registry owns alias-set semantics, storage just mirrors it.
type RegistryStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRegistryStore(sqlDB *sql.DB, logger zerolog.Logger) *RegistryStore {
	return &RegistryStore{db: sqlDB, logger: logger}
}

func (s *RegistryStore) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, primary_team_id, primary_role, source_file, created_at, updated_at
		FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	index := make(map[int64]int)
	for rows.Next() {
		var p domain.Player
		var teamID sql.NullInt64
		var role string
		if err := rows.Scan(&p.ID, &p.Name, &teamID, &role, &p.SourceFile, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		if teamID.Valid {
			p.PrimaryTeamID = &teamID.Int64
		}
		p.PrimaryRole = domain.ParseRole(role)
		index[p.ID] = len(players)
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasRows, err := s.db.QueryContext(ctx, `
		SELECT player_id, alias FROM player_aliases ORDER BY player_id, alias`)
	if err != nil {
		return nil, fmt.Errorf("failed to list player aliases: %w", err)
	}
	defer aliasRows.Close()

	for aliasRows.Next() {
		var playerID int64
		var alias string
		if err := aliasRows.Scan(&playerID, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan player alias: %w", err)
		}
		if i, ok := index[playerID]; ok {
			players[i].Aliases = append(players[i].Aliases, alias)
		}
	}
	return players, aliasRows.Err()
}

func (s *RegistryStore) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	index := make(map[int64]int)
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		index[t.ID] = len(teams)
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasRows, err := s.db.QueryContext(ctx, `
		SELECT team_id, alias FROM team_aliases ORDER BY team_id, alias`)
	if err != nil {
		return nil, fmt.Errorf("failed to list team aliases: %w", err)
	}
	defer aliasRows.Close()

	for aliasRows.Next() {
		var teamID int64
		var alias string
		if err := aliasRows.Scan(&teamID, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan team alias: %w", err)
		}
		if i, ok := index[teamID]; ok {
			teams[i].Aliases = append(teams[i].Aliases, alias)
		}
	}
	return teams, aliasRows.Err()
}

func (s *RegistryStore) SavePlayer(ctx context.Context, p *domain.Player) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var teamID sql.NullInt64
	if p.PrimaryTeamID != nil {
		teamID = sql.NullInt64{Int64: *p.PrimaryTeamID, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO players (id, name, primary_team_id, primary_role, source_file, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			primary_team_id = excluded.primary_team_id,
			primary_role = excluded.primary_role,
			source_file = excluded.source_file,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, teamID, string(p.PrimaryRole), p.SourceFile, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert player %d: %w", p.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM player_aliases WHERE player_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to clear player aliases: %w", err)
	}
	for _, alias := range p.Aliases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO player_aliases (player_id, alias) VALUES (?, ?)`, p.ID, alias); err != nil {
			return fmt.Errorf("failed to insert player alias %q: %w", alias, err)
		}
	}
	return tx.Commit()
}

func (s *RegistryStore) DeletePlayer(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete player %d: %w", id, err)
	}
	return nil
}

func (s *RegistryStore) SaveTeam(ctx context.Context, t *domain.Team) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO teams (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert team %d: %w", t.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM team_aliases WHERE team_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to clear team aliases: %w", err)
	}
	for _, alias := range t.Aliases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO team_aliases (team_id, alias) VALUES (?, ?)`, t.ID, alias); err != nil {
			return fmt.Errorf("failed to insert team alias %q: %w", alias, err)
		}
	}
	return tx.Commit()
}

func (s *RegistryStore) DeleteTeam(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete team %d: %w", id, err)
	}
	return nil
}
