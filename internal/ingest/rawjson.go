// Package ingest turns raw season JSON into normalized matches and stat
// lines. The raw files were produced by several generations of tooling,
// so the decoder accepts every shape seen in the wild and maps it onto
// one canonical form before any ingestion logic runs.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawSeasons is the on-disk shape: season -> source filename -> match.
type RawSeasons map[string]map[string]RawMatch

type RawMatch struct {
	MatchResult string                     `json:"match_result"`
	MatchDate   string                     `json:"match_date"`
	MatchType   string                     `json:"match_type"`
	Teams       map[string]json.RawMessage `json:"teams"`
}

// RawRoster is one faction's side of a match. Older files store it as a
// bare player array, newer ones as an object with an optional team name.
type RawRoster struct {
	Name    string      `json:"name"`
	Players []RawPlayer `json:"players"`
}

func (r *RawRoster) UnmarshalJSON(data []byte) error {
	var players []RawPlayer
	if err := json.Unmarshal(data, &players); err == nil {
		r.Players = players
		return nil
	}
	type plain RawRoster
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("roster is neither an array nor an object: %w", err)
	}
	*r = RawRoster(p)
	return nil
}

// RawPlayer is one stat line. Bare strings are accepted and mean a name
// with all counters zero.
type RawPlayer struct {
	Player        string `json:"player"`
	Role          string `json:"role"`
	IsSubstitute  bool   `json:"is_substitute"`
	Score         int    `json:"score"`
	Kills         int    `json:"kills"`
	Deaths        int    `json:"deaths"`
	Assists       int    `json:"assists"`
	AIKills       int    `json:"ai_kills"`
	CapShipDamage int    `json:"cap_ship_damage"`
}

func (p *RawPlayer) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*p = RawPlayer{Player: name}
		return nil
	}
	type plain RawPlayer
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("player entry is neither a string nor an object: %w", err)
	}
	*p = RawPlayer(v)
	return nil
}

// NormalizedMatch is the single canonical shape the ingestor works on.
// A nil roster means the raw record had no entry for that faction.
type NormalizedMatch struct {
	MatchResult string
	MatchDate   string
	MatchType   string
	Imperial    *RawRoster
	Rebel       *RawRoster
}

// Normalize resolves team-key spelling variants and decodes both rosters.
func (m RawMatch) Normalize() (NormalizedMatch, error) {
	out := NormalizedMatch{
		MatchResult: m.MatchResult,
		MatchDate:   m.MatchDate,
		MatchType:   m.MatchType,
	}
	for key, raw := range m.Teams {
		roster := new(RawRoster)
		if err := json.Unmarshal(raw, roster); err != nil {
			return out, fmt.Errorf("failed to decode %q roster: %w", key, err)
		}
		switch canonicalFaction(key) {
		case "imperial":
			out.Imperial = roster
		case "rebel":
			out.Rebel = roster
		default:
			return out, fmt.Errorf("unrecognized team key %q", key)
		}
	}
	return out, nil
}

func canonicalFaction(key string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), " ", "_")) {
	case "imperial", "empire":
		return "imperial"
	case "rebel", "new_republic":
		return "rebel"
	default:
		return ""
	}
}
