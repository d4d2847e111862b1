package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatioIdentical(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("Player1", "Player1"))
	assert.Equal(t, 1.0, Ratio("", ""))
}

func TestRatioCaseInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("plaYer1", "Player1"))
}

func TestRatioWhitespaceTolerant(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("  Red   Squadron ", "red squadron"))
}

func TestRatioEmptyVsNonEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Ratio("", "Player1"))
	assert.Equal(t, 0.0, Ratio("Player1", "   "))
}

func TestRatioRange(t *testing.T) {
	pairs := [][2]string{
		{"abc", "xyz"},
		{"Player_1", "Player1"},
		{"NR_pickup_team", "Imp_pickup_team"},
		{"a", "ab"},
	}
	for _, p := range pairs {
		r := Ratio(p[0], p[1])
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)
	}
}

func TestRatioSymmetric(t *testing.T) {
	assert.Equal(t, Ratio("Player_1", "Player1"), Ratio("Player1", "Player_1"))
}

// "Player_1" vs "Player1" shares 14 of 15 characters, which must clear
// the 0.85 candidate threshold.
func TestRatioNearMiss(t *testing.T) {
	r := Ratio("Player_1", "Player1")
	assert.InDelta(t, 14.0/15.0, r, 1e-9)
	assert.GreaterOrEqual(t, r, 0.85)
}

func TestRatioDisjoint(t *testing.T) {
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
}
