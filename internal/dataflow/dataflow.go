// Package dataflow implements C4: the iterative worklist/fixed-point driver
// shared by the dominance and live-variable analyses. It generalizes
// `_examples/original_source/ir/data_flow.py`'s IterativeAnalyzer base class
// — which the Python implementation keeps abstract via subclassing — into a
// single generic driver parameterized by two hooks, using Go generics the
// way the teacher's own SSA backend (`cmd/compile/internal/ssa`) favors
// small, explicit, type-parameterized data structures over interface-based
// polymorphism for hot compiler-internal loops.
package dataflow

import "dcpu16cc/internal/ir"

// Fragment is the per-block state an analysis tracks (a set of block ids, a
// set of variable ids, etc.) Analyses define their own fragment type and a
// Transfer that updates it in place.
type Fragment any

// Solve runs the generic fixed-point driver from spec.md §4.2: initialize a
// fragment per block, then repeatedly sweep blocks in insertion order,
// invoking transfer on each, until a full sweep makes no change. Termination
// is guaranteed by the caller's transfer being monotone over a finite
// lattice (true of every analysis in this compiler — bounded sets under
// union or intersection).
//
// init seeds the per-block fragment. transfer reads sibling fragments
// through fragments (by id) and neighbor lists on the CFG, updates its own
// fragment in place, and reports whether it changed.
func Solve[F Fragment](c *ir.CFG, init func(b *ir.Block) F, transfer func(frag F, b *ir.Block, fragments map[ir.BlockID]F) bool) map[ir.BlockID]F {
	fragments := make(map[ir.BlockID]F, c.NumBlocks())
	blocks := c.Blocks()
	for _, b := range blocks {
		fragments[b.ID] = init(b)
	}

	for {
		changed := false
		for _, b := range blocks {
			if transfer(fragments[b.ID], b, fragments) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return fragments
}
