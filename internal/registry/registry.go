// Package registry owns the canonical set of players and teams. Every raw
// name seen during ingestion resolves to exactly one entity here, either by
// exact name/alias lookup or through fuzzy candidates handed to a resolution
// strategy. No two entities of the same kind may share a primary name or
// alias, case-insensitively.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"squadron-stats/internal/domain"
	"squadron-stats/internal/similarity"
)

// Store is the persistence port for registry mutations. Entity ids are
// assigned by the registry, so saves always carry an explicit id.
type Store interface {
	ListPlayers(ctx context.Context) ([]domain.Player, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)
	SavePlayer(ctx context.Context, p *domain.Player) error
	DeletePlayer(ctx context.Context, id int64) error
	SaveTeam(ctx context.Context, t *domain.Team) error
	DeleteTeam(ctx context.Context, id int64) error
}

// Candidate is one fuzzy-match hit, with enough context for a resolution
// strategy to present it.
type Candidate struct {
	ID        int64
	Name      string
	TeamName  string
	Role      domain.Role
	Score     float64
	MatchedOn string // "name" or "alias (<alias>)"
}

type Registry struct {
	store  Store
	logger zerolog.Logger

	players     map[int64]*domain.Player
	teams       map[int64]*domain.Team
	playerIndex map[string]int64 // folded name/alias -> id
	teamIndex   map[string]int64

	nextPlayerID int64
	nextTeamID   int64
}

func New(store Store, logger zerolog.Logger) *Registry {
	return &Registry{
		store:        store,
		logger:       logger,
		players:      make(map[int64]*domain.Player),
		teams:        make(map[int64]*domain.Team),
		playerIndex:  make(map[string]int64),
		teamIndex:    make(map[string]int64),
		nextPlayerID: 1,
		nextTeamID:   1,
	}
}

// Load replaces in-memory state with the store's contents.
func (r *Registry) Load(ctx context.Context) error {
	players, err := r.store.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}
	teams, err := r.store.ListTeams(ctx)
	if err != nil {
		return fmt.Errorf("failed to load teams: %w", err)
	}

	r.players = make(map[int64]*domain.Player, len(players))
	r.playerIndex = make(map[string]int64)
	r.nextPlayerID = 1
	for i := range players {
		p := players[i]
		r.players[p.ID] = &p
		r.playerIndex[fold(p.Name)] = p.ID
		for _, a := range p.Aliases {
			r.playerIndex[fold(a)] = p.ID
		}
		if p.ID >= r.nextPlayerID {
			r.nextPlayerID = p.ID + 1
		}
	}

	r.teams = make(map[int64]*domain.Team, len(teams))
	r.teamIndex = make(map[string]int64)
	r.nextTeamID = 1
	for i := range teams {
		t := teams[i]
		r.teams[t.ID] = &t
		r.teamIndex[fold(t.Name)] = t.ID
		for _, a := range t.Aliases {
			r.teamIndex[fold(a)] = t.ID
		}
		if t.ID >= r.nextTeamID {
			r.nextTeamID = t.ID + 1
		}
	}

	r.logger.Info().
		Int("players", len(r.players)).
		Int("teams", len(r.teams)).
		Msg("registry loaded")
	return nil
}

// fold is the index key for case-insensitive, whitespace-tolerant equality.
// Aliases are indexed as whole tokens, so a raw name that is merely a
// substring of some alias can never match it.
func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ResolveExactPlayer matches raw against primary names and aliases.
func (r *Registry) ResolveExactPlayer(raw string) (*domain.Player, bool) {
	id, ok := r.playerIndex[fold(raw)]
	if !ok {
		return nil, false
	}
	return r.PlayerByID(id)
}

func (r *Registry) ResolveExactTeam(raw string) (*domain.Team, bool) {
	id, ok := r.teamIndex[fold(raw)]
	if !ok {
		return nil, false
	}
	return r.TeamByID(id)
}

// FindPlayerCandidates scores raw against every player's name and aliases
// and returns all hits at or above threshold, best first. Ties are broken
// by primary name so the ordering is stable across runs.
func (r *Registry) FindPlayerCandidates(raw string, threshold float64) []Candidate {
	var out []Candidate
	for _, p := range r.players {
		score, matchedOn := bestScore(raw, p.Name, p.Aliases)
		if score < threshold {
			continue
		}
		c := Candidate{
			ID:        p.ID,
			Name:      p.Name,
			Role:      p.PrimaryRole,
			Score:     score,
			MatchedOn: matchedOn,
		}
		if p.PrimaryTeamID != nil {
			if t, ok := r.teams[*p.PrimaryTeamID]; ok {
				c.TeamName = t.Name
			}
		}
		out = append(out, c)
	}
	sortCandidates(out)
	return out
}

func (r *Registry) FindTeamCandidates(raw string, threshold float64) []Candidate {
	var out []Candidate
	for _, t := range r.teams {
		score, matchedOn := bestScore(raw, t.Name, t.Aliases)
		if score < threshold {
			continue
		}
		out = append(out, Candidate{ID: t.ID, Name: t.Name, Score: score, MatchedOn: matchedOn})
	}
	sortCandidates(out)
	return out
}

func bestScore(raw, name string, aliases []string) (float64, string) {
	best := similarity.Ratio(raw, name)
	matchedOn := "name"
	for _, a := range aliases {
		if s := similarity.Ratio(raw, a); s > best {
			best = s
			matchedOn = fmt.Sprintf("alias (%s)", a)
		}
	}
	return best, matchedOn
}

func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Name < cs[j].Name
	})
}

// CreatePlayer registers a new canonical player. The name must not collide
// with any existing player name or alias.
func (r *Registry) CreatePlayer(ctx context.Context, name string, teamID *int64, role domain.Role, sourceFile string) (*domain.Player, error) {
	key := fold(name)
	if key == "" {
		return nil, fmt.Errorf("player name must not be empty")
	}
	if existing, ok := r.playerIndex[key]; ok {
		return nil, &domain.DuplicateNameError{Kind: domain.KindPlayer, Name: name, ExistingID: existing}
	}
	if teamID != nil {
		if _, ok := r.teams[*teamID]; !ok {
			return nil, &domain.NotFoundError{Kind: domain.KindTeam, ID: *teamID}
		}
	}

	now := time.Now()
	p := &domain.Player{
		ID:            r.nextPlayerID,
		Name:          strings.TrimSpace(name),
		PrimaryTeamID: teamID,
		PrimaryRole:   role,
		SourceFile:    sourceFile,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.store.SavePlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save player %q: %w", p.Name, err)
	}
	r.nextPlayerID++
	r.players[p.ID] = p
	r.playerIndex[key] = p.ID

	r.logger.Info().Int64("player_id", p.ID).Str("name", p.Name).Msg("player created")
	cp := *p
	return &cp, nil
}

func (r *Registry) CreateTeam(ctx context.Context, name string, aliases []string) (*domain.Team, error) {
	key := fold(name)
	if key == "" {
		return nil, fmt.Errorf("team name must not be empty")
	}
	if existing, ok := r.teamIndex[key]; ok {
		return nil, &domain.DuplicateNameError{Kind: domain.KindTeam, Name: name, ExistingID: existing}
	}
	for _, a := range aliases {
		if existing, ok := r.teamIndex[fold(a)]; ok {
			return nil, &domain.DuplicateNameError{Kind: domain.KindTeam, Name: a, ExistingID: existing}
		}
	}

	now := time.Now()
	t := &domain.Team{
		ID:        r.nextTeamID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a != "" && fold(a) != key && !containsFold(t.Aliases, a) {
			t.Aliases = append(t.Aliases, a)
		}
	}
	if err := r.store.SaveTeam(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save team %q: %w", t.Name, err)
	}
	r.nextTeamID++
	r.teams[t.ID] = t
	r.teamIndex[key] = t.ID
	for _, a := range t.Aliases {
		r.teamIndex[fold(a)] = t.ID
	}

	r.logger.Info().Int64("team_id", t.ID).Str("name", t.Name).Msg("team created")
	cp := *t
	return &cp, nil
}

// AddPlayerAlias records alias for the player. Adding an alias the player
// already has (or their primary name) is a no-op success.
func (r *Registry) AddPlayerAlias(ctx context.Context, id int64, alias string) error {
	p, ok := r.players[id]
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindPlayer, ID: id}
	}
	key := fold(alias)
	if key == "" {
		return fmt.Errorf("alias must not be empty")
	}
	if owner, ok := r.playerIndex[key]; ok {
		if owner == id {
			return nil
		}
		return &domain.DuplicateNameError{Kind: domain.KindPlayer, Name: alias, ExistingID: owner}
	}

	updated := *p
	updated.Aliases = append(append([]string(nil), p.Aliases...), strings.TrimSpace(alias))
	updated.UpdatedAt = time.Now()
	if err := r.store.SavePlayer(ctx, &updated); err != nil {
		return fmt.Errorf("failed to save alias %q: %w", alias, err)
	}
	*p = updated
	r.playerIndex[key] = id

	r.logger.Info().Int64("player_id", id).Str("alias", alias).Msg("player alias added")
	return nil
}

func (r *Registry) AddTeamAlias(ctx context.Context, id int64, alias string) error {
	t, ok := r.teams[id]
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindTeam, ID: id}
	}
	key := fold(alias)
	if key == "" {
		return fmt.Errorf("alias must not be empty")
	}
	if owner, ok := r.teamIndex[key]; ok {
		if owner == id {
			return nil
		}
		return &domain.DuplicateNameError{Kind: domain.KindTeam, Name: alias, ExistingID: owner}
	}

	updated := *t
	updated.Aliases = append(append([]string(nil), t.Aliases...), strings.TrimSpace(alias))
	updated.UpdatedAt = time.Now()
	if err := r.store.SaveTeam(ctx, &updated); err != nil {
		return fmt.Errorf("failed to save alias %q: %w", alias, err)
	}
	*t = updated
	r.teamIndex[key] = id
	return nil
}

// MergePlayers folds each duplicate into the surviving player: the
// duplicate's primary name and aliases become aliases of the survivor and
// the duplicate record is removed. Already-ingested match stats keep their
// old player ids; re-pointing them is an explicit admin step, not part of
// the registry contract.
func (r *Registry) MergePlayers(ctx context.Context, correctID int64, duplicateIDs ...int64) error {
	survivor, ok := r.players[correctID]
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindPlayer, ID: correctID}
	}

	for _, dupID := range duplicateIDs {
		if dupID == correctID {
			return fmt.Errorf("cannot merge player %d into itself", correctID)
		}
		dup, ok := r.players[dupID]
		if !ok {
			return &domain.NotFoundError{Kind: domain.KindPlayer, ID: dupID}
		}

		updated := *survivor
		updated.Aliases = append([]string(nil), survivor.Aliases...)
		for _, name := range append([]string{dup.Name}, dup.Aliases...) {
			if fold(name) == fold(updated.Name) || containsFold(updated.Aliases, name) {
				continue
			}
			updated.Aliases = append(updated.Aliases, name)
		}
		updated.UpdatedAt = time.Now()

		if err := r.store.SavePlayer(ctx, &updated); err != nil {
			return fmt.Errorf("failed to save merged player %d: %w", correctID, err)
		}
		if err := r.store.DeletePlayer(ctx, dupID); err != nil {
			return fmt.Errorf("failed to delete duplicate player %d: %w", dupID, err)
		}

		*survivor = updated
		delete(r.players, dupID)
		r.playerIndex[fold(dup.Name)] = correctID
		for _, a := range dup.Aliases {
			r.playerIndex[fold(a)] = correctID
		}

		r.logger.Info().
			Int64("survivor_id", correctID).
			Int64("duplicate_id", dupID).
			Str("duplicate_name", dup.Name).
			Msg("players merged")
	}
	return nil
}

// RenamePlayer replaces the primary name. The old name is dropped from the
// index unless it also exists as an alias.
func (r *Registry) RenamePlayer(ctx context.Context, id int64, newName string) error {
	p, ok := r.players[id]
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindPlayer, ID: id}
	}
	key := fold(newName)
	if key == "" {
		return fmt.Errorf("player name must not be empty")
	}
	if owner, ok := r.playerIndex[key]; ok && owner != id {
		return &domain.DuplicateNameError{Kind: domain.KindPlayer, Name: newName, ExistingID: owner}
	}

	updated := *p
	updated.Name = strings.TrimSpace(newName)
	updated.UpdatedAt = time.Now()
	if err := r.store.SavePlayer(ctx, &updated); err != nil {
		return fmt.Errorf("failed to rename player %d: %w", id, err)
	}

	oldKey := fold(p.Name)
	*p = updated
	if oldKey != key && !containsFold(p.Aliases, oldKey) {
		delete(r.playerIndex, oldKey)
	}
	r.playerIndex[key] = id
	return nil
}

func (r *Registry) SetPrimaryTeam(ctx context.Context, id int64, teamID *int64) error {
	p, ok := r.players[id]
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindPlayer, ID: id}
	}
	if teamID != nil {
		if _, ok := r.teams[*teamID]; !ok {
			return &domain.NotFoundError{Kind: domain.KindTeam, ID: *teamID}
		}
	}
	updated := *p
	updated.PrimaryTeamID = teamID
	updated.UpdatedAt = time.Now()
	if err := r.store.SavePlayer(ctx, &updated); err != nil {
		return fmt.Errorf("failed to update player %d: %w", id, err)
	}
	*p = updated
	return nil
}

func (r *Registry) SetPrimaryRole(ctx context.Context, id int64, role domain.Role) error {
	p, ok := r.players[id]
	if !ok {
		return &domain.NotFoundError{Kind: domain.KindPlayer, ID: id}
	}
	updated := *p
	updated.PrimaryRole = role
	updated.UpdatedAt = time.Now()
	if err := r.store.SavePlayer(ctx, &updated); err != nil {
		return fmt.Errorf("failed to update player %d: %w", id, err)
	}
	*p = updated
	return nil
}

func (r *Registry) PlayerByID(id int64) (*domain.Player, bool) {
	p, ok := r.players[id]
	if !ok {
		return nil, false
	}
	cp := *p
	cp.Aliases = append([]string(nil), p.Aliases...)
	return &cp, true
}

func (r *Registry) TeamByID(id int64) (*domain.Team, bool) {
	t, ok := r.teams[id]
	if !ok {
		return nil, false
	}
	cp := *t
	cp.Aliases = append([]string(nil), t.Aliases...)
	return &cp, true
}

// TeamName returns the primary name for a team id, "" if unknown.
func (r *Registry) TeamName(id int64) string {
	if t, ok := r.teams[id]; ok {
		return t.Name
	}
	return ""
}

// Players returns all players ordered by id.
func (r *Registry) Players() []domain.Player {
	out := make([]domain.Player, 0, len(r.players))
	for _, p := range r.players {
		cp := *p
		cp.Aliases = append([]string(nil), p.Aliases...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Teams() []domain.Team {
	out := make([]domain.Team, 0, len(r.teams))
	for _, t := range r.teams {
		cp := *t
		cp.Aliases = append([]string(nil), t.Aliases...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsFold(list []string, s string) bool {
	key := fold(s)
	for _, v := range list {
		if fold(v) == key {
			return true
		}
	}
	return false
}
