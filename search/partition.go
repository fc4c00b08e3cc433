package search

import "iter"

// Group is a contiguous block [Start, End) of particle indices within which
// resampling competition happens.
type Group struct {
	Start int
	End   int
}

// Len returns the number of particles in the group.
func (g Group) Len() int { return g.End - g.Start }

// Contains reports whether idx lies in the group.
func (g Group) Contains(idx int) bool { return idx >= g.Start && idx < g.End }

// Lowbit returns the value of the lowest set bit of k (0 for k == 0).
func Lowbit(k int) int {
	return k & -k
}

// Blocks yields the contiguous blocks of width size covering [0, n).
// The last block is truncated to fit.
func Blocks(n, size int) iter.Seq[Group] {
	return func(yield func(Group) bool) {
		if size <= 0 {
			return
		}
		for start := 0; start < n; start += size {
			if !yield(Group{Start: start, End: min(start+size, n)}) {
				return
			}
		}
	}
}

// Partition returns the blocks of width size covering [0, n).
func Partition(n, size int) []Group {
	var groups []Group
	for g := range Blocks(n, size) {
		groups = append(groups, g)
	}
	return groups
}
