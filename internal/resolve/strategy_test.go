package resolve

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadron-stats/internal/domain"
	"squadron-stats/internal/registry"
)

func scripted(input string) (*Interactive, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewInteractive(strings.NewReader(input), out, 10), out
}

func TestInteractiveSelect(t *testing.T) {
	s, out := scripted("2\n")
	d := s.Propose("raw", domain.KindPlayer, []registry.Candidate{
		{ID: 11, Name: "Ace", Score: 0.91, MatchedOn: "name"},
		{ID: 22, Name: "Wing", Score: 0.88, MatchedOn: "alias (W)"},
	})
	assert.Equal(t, ActionSelect, d.Action)
	assert.Equal(t, int64(22), d.ID)
	assert.Contains(t, out.String(), "[2] Wing")
}

func TestInteractiveSelectAndAlias(t *testing.T) {
	s, _ := scripted("a1\n")
	d := s.Propose("raw", domain.KindPlayer, []registry.Candidate{
		{ID: 11, Name: "Ace", Score: 0.91, MatchedOn: "name"},
	})
	assert.Equal(t, ActionSelectAndAlias, d.Action)
	assert.Equal(t, int64(11), d.ID)
}

func TestInteractiveCreateWithName(t *testing.T) {
	s, _ := scripted("c\nProper Name\n")
	d := s.Propose("prper nme", domain.KindPlayer, nil)
	assert.Equal(t, ActionCreate, d.Action)
	assert.Equal(t, "Proper Name", d.Name)
}

func TestInteractiveCreateDefaultsToRaw(t *testing.T) {
	s, _ := scripted("c\n\n")
	d := s.Propose("AsSeen", domain.KindPlayer, nil)
	assert.Equal(t, ActionCreate, d.Action)
	assert.Equal(t, "AsSeen", d.Name)
}

func TestInteractiveInvalidThenSkip(t *testing.T) {
	s, out := scripted("bogus\n99\ns\n")
	d := s.Propose("raw", domain.KindPlayer, []registry.Candidate{
		{ID: 11, Name: "Ace", Score: 0.91, MatchedOn: "name"},
	})
	assert.Equal(t, ActionSkip, d.Action)
	assert.Contains(t, out.String(), "Invalid choice.")
}

func TestInteractiveClosedInputSkips(t *testing.T) {
	s, _ := scripted("")
	d := s.Propose("raw", domain.KindPlayer, nil)
	assert.Equal(t, ActionSkip, d.Action)
}

func TestInteractiveConfirmSubstitute(t *testing.T) {
	s, _ := scripted("\n")
	assert.True(t, s.ConfirmSubstitute("Ace", "Red", "Black", true))

	s, _ = scripted("n\n")
	assert.False(t, s.ConfirmSubstitute("Ace", "Red", "Black", true))

	// no suggestion, no prompt at all
	s, out := scripted("")
	assert.False(t, s.ConfirmSubstitute("Ace", "Red", "Red", false))
	assert.Empty(t, out.String())
}

func TestInteractiveResolveRole(t *testing.T) {
	s, _ := scripted("support\n")
	assert.Equal(t, domain.RoleSupport, s.ResolveRole("Ace", domain.RoleFarmer))

	s, _ = scripted("\n")
	assert.Equal(t, domain.RoleFarmer, s.ResolveRole("Ace", domain.RoleFarmer))

	s, _ = scripted("gibberish\n")
	assert.Equal(t, domain.RoleNone, s.ResolveRole("Ace", domain.RoleNone))
}

func TestInteractiveTeamName(t *testing.T) {
	s, _ := scripted("Black Squadron\n")
	assert.Equal(t, "Black Squadron", s.TeamName(domain.FactionImperial, "blk sqdrn"))

	s, _ = scripted("\n")
	assert.Equal(t, "blk sqdrn", s.TeamName(domain.FactionImperial, "blk sqdrn"))
}

func TestForMode(t *testing.T) {
	for _, mode := range []string{"interactive", "auto-top", "auto-create", "auto-skip"} {
		st, err := ForMode(mode, 0.95, strings.NewReader(""), &bytes.Buffer{})
		require.NoError(t, err, mode)
		require.NotNil(t, st, mode)
	}
	_, err := ForMode("bogus", 0.95, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}
