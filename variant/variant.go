// Package variant generates the deletion variants a fuzzy index is built on.
//
// A deletion variant of a key is the key with up to a fixed number of symbols
// removed. Keys that are close in edit distance share deletion variants, so a
// store that indexes every variant of every key can answer fuzzy lookups by
// probing only the variants of the query instead of scanning all keys.
//
// The number of variants grows combinatorially with key length and the
// deletion budget; budgets above 2-3 are rarely practical.
package variant

// Generate returns the distinct strings obtained by deleting between zero and
// maxDeletes symbols from s. The result always contains s itself (the
// zero-deletion variant), so exact lookups travel the same path as fuzzy ones.
//
// Symbols are Unicode code points: a multi-byte rune deletes as one symbol.
// The result is a set; deleting different positions that produce the same
// string yields one entry. Order is unspecified.
func Generate(s string, maxDeletes int) []string {
	seen := map[string]struct{}{s: {}}
	frontier := []string{s}

	for d := 0; d < maxDeletes && len(frontier) > 0; d++ {
		var next []string
		for _, v := range frontier {
			runes := []rune(v)
			for i := range runes {
				c := string(runes[:i]) + string(runes[i+1:])
				if _, ok := seen[c]; !ok {
					seen[c] = struct{}{}
					next = append(next, c)
				}
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	return out
}
