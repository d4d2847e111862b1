package domain

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindPlayer Kind = "player"
	KindTeam   Kind = "team"
	KindMatch  Kind = "match"
)

type Faction string

const (
	FactionImperial Faction = "IMPERIAL"
	FactionRebel    Faction = "REBEL"
)

// Outcome is the match winner. Unknown-outcome matches are stored but
// never contribute to ratings.
type Outcome string

const (
	OutcomeImperial Outcome = "IMPERIAL"
	OutcomeRebel    Outcome = "REBEL"
	OutcomeUnknown  Outcome = "UNKNOWN"
)

type MatchType string

const (
	MatchTypeTeam   MatchType = "team"
	MatchTypePickup MatchType = "pickup"
	MatchTypeRanked MatchType = "ranked"
)

type Role string

const (
	RoleNone    Role = ""
	RoleFarmer  Role = "Farmer"
	RoleFlex    Role = "Flex"
	RoleSupport Role = "Support"
)

// ParseRole maps free text onto a known role, RoleNone for anything else.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleFarmer, RoleFlex, RoleSupport:
		return Role(s)
	default:
		return RoleNone
	}
}

type Player struct {
	ID            int64
	Name          string
	PrimaryTeamID *int64
	PrimaryRole   Role
	Aliases       []string
	SourceFile    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Team struct {
	ID        int64
	Name      string
	Aliases   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Match struct {
	ID             int64
	Season         string
	Filename       string
	MatchType      MatchType
	MatchDate      time.Time // zero when no date could be derived
	IngestSeq      int64     // ordering fallback for undated matches
	ImperialTeamID int64
	RebelTeamID    int64
	Winner         Outcome
	CreatedAt      time.Time
}

type PlayerMatchStat struct {
	MatchID       int64
	PlayerID      int64
	PlayerName    string // canonical name at ingestion time
	Faction       Faction
	TeamOfRecord  *int64 // nil for pickup/ranked matches
	Role          Role
	IsSubstitute  bool
	Score         int
	Kills         int
	Deaths        int
	Assists       int
	AIKills       int
	CapShipDamage int
}

type PoolScope string

const (
	ScopeTeam   PoolScope = "team"
	ScopePlayer PoolScope = "player"
	ScopeRole   PoolScope = "role"
)

// PoolKey names one independent rating namespace, e.g. team ratings in
// team matches or Support-role ratings in pickup matches.
type PoolKey struct {
	Scope     PoolScope
	MatchType MatchType
	Role      Role // set only for ScopeRole
}

func (k PoolKey) String() string {
	if k.Scope == ScopeRole {
		return string(k.Scope) + "/" + string(k.MatchType) + "/" + string(k.Role)
	}
	return string(k.Scope) + "/" + string(k.MatchType)
}

// ParsePoolKey is the inverse of PoolKey.String.
func ParsePoolKey(s string) (PoolKey, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		return PoolKey{Scope: PoolScope(parts[0]), MatchType: MatchType(parts[1])}, nil
	case 3:
		return PoolKey{Scope: PoolScope(parts[0]), MatchType: MatchType(parts[1]), Role: Role(parts[2])}, nil
	default:
		return PoolKey{}, fmt.Errorf("malformed pool key %q", s)
	}
}

type RatingEntry struct {
	Pool          PoolKey
	SubjectID     int64
	SubjectName   string
	Rating        float64 // full precision; rounded only for display
	MatchesPlayed int
	MatchesWon    int
	MatchesLost   int
}

// RatingChange is one subject's rating movement inside a history event.
type RatingChange struct {
	SubjectID int64   `json:"subject_id"`
	Name      string  `json:"name"`
	Role      Role    `json:"role,omitempty"`
	OldRating float64 `json:"old_rating"`
	NewRating float64 `json:"new_rating"`
	Delta     float64 `json:"rating_change"`
}

// RatingHistoryEvent is append-only; replaying a pool's events in order
// reproduces its RatingEntry table exactly.
type RatingHistoryEvent struct {
	ID          string         `json:"id,omitempty"`
	Pool        PoolKey        `json:"-"`
	MatchID     int64          `json:"match_id"`
	MatchDate   time.Time      `json:"match_date"`
	Season      string         `json:"season"`
	Winner      Outcome        `json:"winner"`
	Imperial    []RatingChange `json:"imperial"`
	Rebel       []RatingChange `json:"rebel"`
	ImperialAvg float64        `json:"imperial_avg_elo"`
	RebelAvg    float64        `json:"rebel_avg_elo"`
}

type LadderRow struct {
	Rank          int     `json:"rank"`
	SubjectID     int64   `json:"subject_id"`
	Name          string  `json:"name"`
	Rating        int     `json:"elo_rating"`
	MatchesPlayed int     `json:"matches_played"`
	MatchesWon    int     `json:"matches_won"`
	MatchesLost   int     `json:"matches_lost"`
	WinRate       float64 `json:"win_rate"`
}
