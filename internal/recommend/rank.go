package recommend

import "sort"

// Neighbor is one column of a similarity row.
type Neighbor struct {
	Index int
	Score float32
}

// Rank pairs every column of row with its score and orders them by descending score.
// The sort is stable, so equal scores keep ascending column order.
func Rank(row []float32) []Neighbor {
	ranked := make([]Neighbor, len(row))
	for j, s := range row {
		ranked[j] = Neighbor{Index: j, Score: s}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	return ranked
}

// TopK returns the first k neighbors of ranked, skipping self and any entry for which skip
// reports true. skip may be nil.
func TopK(ranked []Neighbor, self, k int, skip func(Neighbor) bool) []Neighbor {
	out := make([]Neighbor, 0, k)
	for _, n := range ranked {
		if len(out) == k {
			break
		}
		if n.Index == self || (skip != nil && skip(n)) {
			continue
		}
		out = append(out, n)
	}
	return out
}
