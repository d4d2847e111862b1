// Package similarity scores how close two free-text names are. It is the
// candidate filter for identity resolution and nothing more: a high score
// never auto-accepts a match on its own.
package similarity

import "strings"

// Ratio returns a score in [0,1] for how similar a and b are, 1 meaning
// identical after normalization. Case-insensitive and whitespace-tolerant.
//
// The algorithm is Ratcliff/Obershelp: twice the number of matching
// characters over the total length, with matches found by recursively
// taking the longest common block. Alias thresholds in this codebase
// (0.85 by default) are calibrated against this ratio.
func Ratio(a, b string) float64 {
	ra := []rune(normalize(a))
	rb := []rune(normalize(b))

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	matched := matchTotal(ra, rb)
	return 2.0 * float64(matched) / float64(len(ra)+len(rb))
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func matchTotal(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchTotal(a[:ai], b[:bi])
	total += matchTotal(a[ai+size:], b[bi+size:])
	return total
}

// longestMatch finds the longest block a[ai:ai+size] == b[bi:bi+size],
// preferring the earliest block on ties.
func longestMatch(a, b []rune) (ai, bi, size int) {
	j2len := make(map[int]int, len(b))
	for i := range a {
		next := make(map[int]int, len(b))
		for j := range b {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > size {
				ai = i - k + 1
				bi = j - k + 1
				size = k
			}
		}
		j2len = next
	}
	return ai, bi, size
}
