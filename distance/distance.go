// Package distance provides string distance functions for fuzzy lookups.
//
// A lookup receives the distance function as a capability value (Func) and
// never assumes a specific metric internally. Candidate retrieval is complete
// only for metrics consistent with deletion distance: whenever
// distance(k, q) <= t, the two strings must share a deletion variant reachable
// within the store's deletion budget from each side. Levenshtein satisfies
// this; metrics that do not (for example phonetic codes) may miss true
// matches, which is a caller obligation rather than a silent degradation.
package distance

// Func computes the distance between two strings.
// Implementations must be symmetric and return 0 for equal inputs.
type Func func(a, b string) int

// Exact is the identity metric: 0 for equal strings, 1 otherwise.
// It is the metric used by exact lookups.
func Exact(a, b string) int {
	if a == b {
		return 0
	}
	return 1
}

// Levenshtein returns the true edit distance between a and b: the minimum
// number of single-symbol insertions, deletions, and substitutions that
// transform one into the other. Symbols are Unicode code points.
//
// This is the metric SymSpell-style candidate retrieval is built around.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// OSA returns the optimal string alignment distance: Levenshtein extended
// with transposition of adjacent symbols, where no substring is edited twice.
//
// OSA remains consistent with deletion distance (a transposition is
// expressible as one deletion on each side), so it is safe to use for fuzzy
// lookups within the store's deletion budget.
func OSA(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	rows := make([][]int, len(ra)+1)
	for i := range rows {
		rows[i] = make([]int, len(rb)+1)
		rows[i][0] = i
	}
	for j := 0; j <= len(rb); j++ {
		rows[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d := min(rows[i-1][j]+1, rows[i][j-1]+1, rows[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d = min(d, rows[i-2][j-2]+1)
			}
			rows[i][j] = d
		}
	}
	return rows[len(ra)][len(rb)]
}

// Hamming returns the number of positions at which the two strings differ,
// plus the difference in length when they are unequal in length. For
// equal-length strings this is the classic Hamming distance.
//
// Hamming is NOT consistent with deletion distance for unequal lengths; use
// it for fuzzy lookups only when all stored keys share the query's length.
func Hamming(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	d := len(rb) - len(ra)
	for i := range ra {
		if ra[i] != rb[i] {
			d++
		}
	}
	return d
}
