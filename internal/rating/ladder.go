package rating

import (
	"math"
	"sort"

	"squadron-stats/internal/domain"
)

// BuildLadder projects one pool's entries into ranked display rows.
// Sorting uses the full-precision rating; only the displayed value is
// rounded. Ties break on subject id so ranks are stable across runs.
func BuildLadder(entries []domain.RatingEntry) []domain.LadderRow {
	ordered := make([]domain.RatingEntry, 0, len(entries))
	for _, en := range entries {
		if en.MatchesPlayed == 0 {
			continue
		}
		ordered = append(ordered, en)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Rating != ordered[j].Rating {
			return ordered[i].Rating > ordered[j].Rating
		}
		return ordered[i].SubjectID < ordered[j].SubjectID
	})

	rows := make([]domain.LadderRow, 0, len(ordered))
	for i, en := range ordered {
		rows = append(rows, domain.LadderRow{
			Rank:          i + 1,
			SubjectID:     en.SubjectID,
			Name:          en.SubjectName,
			Rating:        int(math.Round(en.Rating)),
			MatchesPlayed: en.MatchesPlayed,
			MatchesWon:    en.MatchesWon,
			MatchesLost:   en.MatchesLost,
			WinRate:       winRate(en.MatchesWon, en.MatchesPlayed),
		})
	}
	return rows
}

// GroupEntries splits a flat entry list by pool, preserving each pool's
// entry order.
func GroupEntries(entries []domain.RatingEntry) map[domain.PoolKey][]domain.RatingEntry {
	out := make(map[domain.PoolKey][]domain.RatingEntry)
	for _, en := range entries {
		out[en.Pool] = append(out[en.Pool], en)
	}
	return out
}

func winRate(won, played int) float64 {
	if played == 0 {
		return 0
	}
	return math.Round(float64(won)/float64(played)*1000) / 10
}
