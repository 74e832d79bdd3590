package cluster

import "sort"

// GroupIndices performs single-link transitive grouping over
// unit-normalized embeddings: two faces belong to the same group when a
// chain of pairwise cosine distances below tau connects them. Each group
// is a sorted slice of indices into the input; groups come back in
// discovery order (lowest member index first), so the result is fully
// deterministic for a given input order.
func GroupIndices(embeddings [][]float32, tau float64) [][]int {
	n := len(embeddings)
	assigned := make([]bool, n)
	var groups [][]int

	for i := 0; i < n; i++ {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []int{i}
		// breadth-first absorption: every member gets to pull in
		// its own neighbors, not just the seed
		for cursor := 0; cursor < len(members); cursor++ {
			p := members[cursor]
			for j := i + 1; j < n; j++ {
				if assigned[j] {
					continue
				}
				if CosineDistance(embeddings[p], embeddings[j]) < tau {
					assigned[j] = true
					members = append(members, j)
				}
			}
		}
		sort.Ints(members)
		groups = append(groups, members)
	}
	return groups
}
