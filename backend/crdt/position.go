// Package crdt implements the replicated text sequence: a path-based
// fractional index for position identifiers and a tombstone-keeping document
// store whose remote operations commute. Replicas that have applied the same
// set of operations, in any order and with any duplication, render the same
// text.
package crdt

import (
	"strings"

	"Syncrate/backend/types"
)

// Compare defines the total order over position identifiers. Paths are
// compared component by component with missing components read as 0; two
// identical paths fall back to the lexicographic order of the origin replica
// ids. Compare returns 0 only for identifiers naming the same character.
func Compare(a, b types.PositionID) int {
	n := len(a.Path)
	if len(b.Path) > n {
		n = len(b.Path)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(a.Path) {
			av = a.Path[i]
		}
		if i < len(b.Path) {
			bv = b.Path[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a.Origin, b.Origin)
}

// Between synthesizes a position identifier with a path that sorts strictly
// between the paths of before and after. A nil before stands for the start of
// the document, a nil after for the end. The walk descends both paths one
// level at a time; the first level with a gap wider than one receives the
// midpoint, otherwise the lower bound is kept and the path grows one level
// deeper. A gap always appears eventually because an exhausted after bound
// reads as PathBase.
//
// When before and after carry the same path (concurrent inserts at the same
// spot on two replicas, ordered only by the origin tie-break), no path fits
// strictly between them; the result then sorts right after the pair. Callers
// place records by Compare, not by assumed adjacency, so the sequence stays
// sorted either way.
func Between(before, after *types.PositionID, origin string, clock uint64) types.PositionID {
	var path []int
	for depth := 0; ; depth++ {
		lo := 0
		if before != nil && depth < len(before.Path) {
			lo = before.Path[depth]
		}
		hi := types.PathBase
		if after != nil && depth < len(after.Path) {
			hi = after.Path[depth]
		}
		if hi-lo > 1 {
			path = append(path, lo+(hi-lo)/2)
			return types.PositionID{Path: path, Origin: origin, Clock: clock}
		}
		path = append(path, lo)
	}
}
