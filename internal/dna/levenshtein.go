package dna

import "github.com/phantomos/phantom/internal/fault"

// MaxEditDistanceLen bounds Levenshtein inputs so the DP allocation cannot
// be driven arbitrarily large by a hostile caller.
const MaxEditDistanceLen = 50000

// Levenshtein computes the edit distance between two strings with the
// classical two-row dynamic program. Inputs longer than
// MaxEditDistanceLen are rejected before any allocation.
func Levenshtein(a, b string) (int, error) {
	if len(a) > MaxEditDistanceLen || len(b) > MaxEditDistanceLen {
		return 0, fault.New(fault.KindExhausted, "edit_distance",
			"input exceeds %d character bound for edit distance", MaxEditDistanceLen)
	}
	if a == b {
		return 0, nil
	}
	if len(a) == 0 {
		return len(b), nil
	}
	if len(b) == 0 {
		return len(a), nil
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(b)], nil
}

// Similarity maps an edit distance to [0, 1]: 1 - d/max(len(a), len(b)).
func Similarity(a, b string, distance int) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	if n == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(n)
}
