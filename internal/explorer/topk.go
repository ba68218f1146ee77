package explorer

import (
	"cmp"
	"slices"

	"github.com/iishyfishyy/lookalike/internal/dataset"
)

// Match is one result of Explore.
type Match struct {
	Item       *dataset.Item
	Collection string // name of the collection holding Item
	Distance   int    // Hamming distance to the query
	Rank       int    // 0-based position in the result
}

// Items returns the items of matches in order.
func Items(matches []Match) []*dataset.Item {
	out := make([]*dataset.Item, len(matches))
	for i, m := range matches {
		out[i] = m.Item
	}
	return out
}

// selectTopK returns the indices of the k smallest distances, ordered by
// distance and then by index.
func selectTopK(distances []int, k int) []int {
	order := make([]int, len(distances))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(distances[a], distances[b])
	})

	return order[:min(k, len(order))]
}
