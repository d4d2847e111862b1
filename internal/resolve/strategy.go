// Package resolve decides what to do with raw names that the registry
// cannot resolve exactly. The decision itself is pluggable: interactive
// runs ask a human, batch runs apply a policy.
package resolve

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"squadron-stats/internal/domain"
	"squadron-stats/internal/registry"
)

type Action int

const (
	ActionSkip Action = iota
	ActionSelect
	ActionSelectAndAlias
	ActionCreate
)

// Decision is a strategy's answer for one unresolved raw name.
type Decision struct {
	Action Action
	ID     int64  // ActionSelect / ActionSelectAndAlias
	Name   string // ActionCreate; "" means use the raw name as-is
}

func Skip() Decision { return Decision{Action: ActionSkip} }

func Select(id int64) Decision { return Decision{Action: ActionSelect, ID: id} }

func SelectAndAlias(id int64) Decision { return Decision{Action: ActionSelectAndAlias, ID: id} }

func Create(name string) Decision { return Decision{Action: ActionCreate, Name: name} }

// Strategy answers the judgment calls ingestion cannot make on its own.
// Implementations must be deterministic for a given input if replay
// determinism matters to the caller.
type Strategy interface {
	// Propose picks a decision for a raw name given the fuzzy candidates
	// (already filtered by threshold, best first).
	Propose(raw string, kind domain.Kind, candidates []registry.Candidate) Decision

	// ConfirmSubstitute accepts or rejects a substitute suggestion for a
	// player whose primary team differs from the match's team of record.
	ConfirmSubstitute(playerName, primaryTeam, matchTeam string, suggested bool) bool

	// ResolveRole returns the role to record for this player in this
	// match, given the registry's primary role as the suggestion.
	ResolveRole(playerName string, suggested domain.Role) domain.Role

	// TeamName returns the team name to use for a faction roster, given
	// the best suggestion derived from the raw record or the registry.
	TeamName(faction domain.Faction, suggested string) string
}

// AutoTop aliases the raw name onto the best candidate when its score
// reaches MinScore, and creates a new entity otherwise. Never skips.
type AutoTop struct {
	MinScore float64
}

func (s AutoTop) Propose(raw string, _ domain.Kind, candidates []registry.Candidate) Decision {
	if len(candidates) > 0 && candidates[0].Score >= s.MinScore {
		return SelectAndAlias(candidates[0].ID)
	}
	return Create(raw)
}

func (AutoTop) ConfirmSubstitute(_, _, _ string, suggested bool) bool { return suggested }

func (AutoTop) ResolveRole(_ string, suggested domain.Role) domain.Role { return suggested }

func (AutoTop) TeamName(_ domain.Faction, suggested string) string { return suggested }

// AutoCreate always registers unresolved names as new entities.
type AutoCreate struct{}

func (AutoCreate) Propose(raw string, _ domain.Kind, _ []registry.Candidate) Decision {
	return Create(raw)
}

func (AutoCreate) ConfirmSubstitute(_, _, _ string, suggested bool) bool { return suggested }

func (AutoCreate) ResolveRole(_ string, suggested domain.Role) domain.Role { return suggested }

func (AutoCreate) TeamName(_ domain.Faction, suggested string) string { return suggested }

// AutoSkip drops every unresolved name. Useful for dry runs over a
// registry that is supposed to be complete.
type AutoSkip struct{}

func (AutoSkip) Propose(string, domain.Kind, []registry.Candidate) Decision { return Skip() }

func (AutoSkip) ConfirmSubstitute(_, _, _ string, suggested bool) bool { return suggested }

func (AutoSkip) ResolveRole(_ string, suggested domain.Role) domain.Role { return suggested }

func (AutoSkip) TeamName(_ domain.Faction, suggested string) string { return suggested }

// Interactive prompts a human on every unresolved name, substitute
// suggestion and role assignment.
type Interactive struct {
	in           *bufio.Reader
	out          io.Writer
	displayLimit int
}

func NewInteractive(in io.Reader, out io.Writer, displayLimit int) *Interactive {
	return &Interactive{
		in:           bufio.NewReader(in),
		out:          out,
		displayLimit: displayLimit,
	}
}

func (s *Interactive) Propose(raw string, kind domain.Kind, candidates []registry.Candidate) Decision {
	fmt.Fprintf(s.out, "\nUnresolved %s name: %q\n", kind, raw)
	shown := candidates
	if len(shown) > s.displayLimit {
		shown = shown[:s.displayLimit]
	}
	for i, c := range shown {
		line := fmt.Sprintf("  [%d] %s (%.0f%%, matched on %s)", i+1, c.Name, c.Score*100, c.MatchedOn)
		if c.TeamName != "" {
			line += " - " + c.TeamName
		}
		if c.Role != domain.RoleNone {
			line += " [" + string(c.Role) + "]"
		}
		fmt.Fprintln(s.out, line)
	}

	for {
		fmt.Fprintf(s.out, "Select [N], alias onto [aN], create new [c], skip [s]: ")
		line, ok := s.readLine()
		if !ok {
			// input closed: treat the rest of the run as skips
			return Skip()
		}
		input := strings.ToLower(strings.TrimSpace(line))
		switch {
		case input == "s":
			return Skip()
		case input == "c":
			fmt.Fprintf(s.out, "Name for the new %s [%s]: ", kind, raw)
			line, _ := s.readLine()
			name := strings.TrimSpace(line)
			if name == "" {
				name = raw
			}
			return Create(name)
		case strings.HasPrefix(input, "a"):
			if n, err := strconv.Atoi(input[1:]); err == nil && n >= 1 && n <= len(shown) {
				return SelectAndAlias(shown[n-1].ID)
			}
		default:
			if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(shown) {
				return Select(shown[n-1].ID)
			}
		}
		fmt.Fprintln(s.out, "Invalid choice.")
	}
}

func (s *Interactive) ConfirmSubstitute(playerName, primaryTeam, matchTeam string, suggested bool) bool {
	if !suggested {
		return false
	}
	fmt.Fprintf(s.out, "%s plays for %q but appears for %q. Mark as substitute? [Y/n]: ",
		playerName, primaryTeam, matchTeam)
	line, ok := s.readLine()
	if !ok {
		return suggested
	}
	input := strings.ToLower(strings.TrimSpace(line))
	return input == "" || input == "y" || input == "yes"
}

func (s *Interactive) ResolveRole(playerName string, suggested domain.Role) domain.Role {
	label := string(suggested)
	if suggested == domain.RoleNone {
		label = "none"
	}
	fmt.Fprintf(s.out, "Role for %s this match (Farmer/Flex/Support, enter keeps %s): ", playerName, label)
	line, ok := s.readLine()
	input := strings.TrimSpace(line)
	if !ok || input == "" {
		return suggested
	}
	input = strings.ToLower(input)
	return domain.ParseRole(strings.ToUpper(input[:1]) + input[1:])
}

func (s *Interactive) TeamName(faction domain.Faction, suggested string) string {
	fmt.Fprintf(s.out, "Team name for the %s side [%s]: ", strings.ToLower(string(faction)), suggested)
	line, ok := s.readLine()
	input := strings.TrimSpace(line)
	if !ok || input == "" {
		return suggested
	}
	return input
}

func (s *Interactive) readLine() (string, bool) {
	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}
