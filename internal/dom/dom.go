// Package dom implements C5: iterative dominator-set computation, immediate
// dominators, and dominance frontiers, following spec.md §4.3. Dominator and
// frontier sets are represented as `*bitset.BitSet` indexed by block id
// rather than `map[BlockID]bool`, the same representation
// `_examples/other_examples/.../godoctor-godoctor__extras-cfg-df.go.go` uses
// for its reaching-definitions and live-variable gen/kill sets over
// `github.com/willf/bitset` — this repo pulls in that module's maintained
// successor, `github.com/bits-and-blooms/bitset`.
package dom

import (
	"github.com/bits-and-blooms/bitset"

	"dcpu16cc/internal/dataflow"
	"dcpu16cc/internal/ir"
)

// Result holds the three mappings spec.md §3 names: dominators, idom, and
// dominance frontiers.
type Result struct {
	root       ir.BlockID
	dominators map[ir.BlockID]*bitset.BitSet
	idom       map[ir.BlockID]ir.BlockID
	hasIdom    map[ir.BlockID]bool
	df         map[ir.BlockID]*bitset.BitSet
}

// Dominators returns the set of blocks that dominate bid, as a bitset
// indexed by block id.
func (r *Result) Dominators(bid ir.BlockID) *bitset.BitSet { return r.dominators[bid] }

// Dominates reports whether a dominates b (reflexively — every block
// dominates itself).
func (r *Result) Dominates(a, b ir.BlockID) bool {
	return r.dominators[b].Test(uint(a))
}

// StrictlyDominates reports whether a dominates b and a != b.
func (r *Result) StrictlyDominates(a, b ir.BlockID) bool {
	return a != b && r.Dominates(a, b)
}

// Idom returns bid's immediate dominator. ok is false for the root, which
// has none.
func (r *Result) Idom(bid ir.BlockID) (ir.BlockID, bool) {
	id, ok := r.hasIdom[bid]
	if !ok || !id {
		return 0, false
	}
	return r.idom[bid], true
}

// DF returns bid's dominance frontier.
func (r *Result) DF(bid ir.BlockID) *bitset.BitSet {
	if s, ok := r.df[bid]; ok {
		return s
	}
	return bitset.New(0)
}

// Compute runs dominator-set fixed-point iteration, then derives immediate
// dominators and dominance frontiers. Running it twice on the same CFG
// yields identical results (the algorithm is a pure function of the CFG's
// edges).
func Compute(c *ir.CFG) *Result {
	n := uint(c.NumBlocks())
	universe := bitset.New(n)
	for i := uint(0); i < n; i++ {
		universe.Set(i)
	}
	root := c.Root

	frags := dataflow.Solve(c,
		func(b *ir.Block) *bitset.BitSet {
			if b.ID == root {
				s := bitset.New(n)
				s.Set(uint(b.ID))
				return s
			}
			return universe.Clone()
		},
		func(frag *bitset.BitSet, b *ir.Block, frags map[ir.BlockID]*bitset.BitSet) bool {
			if b.ID == root {
				return false
			}
			var inter *bitset.BitSet
			if len(b.Prev) == 0 {
				// No predecessor: the spec's convention for an empty
				// intersection is the empty set, same as for the root.
				inter = bitset.New(n)
			} else {
				inter = frags[b.Prev[0]].Clone()
				for _, p := range b.Prev[1:] {
					inter.InPlaceIntersection(frags[p])
				}
			}
			inter.Set(uint(b.ID))
			if inter.Equal(frag) {
				return false
			}
			frag.ClearAll()
			frag.InPlaceUnion(inter)
			return true
		},
	)

	res := &Result{
		root:       root,
		dominators: frags,
		idom:       make(map[ir.BlockID]ir.BlockID),
		hasIdom:    make(map[ir.BlockID]bool),
		df:         make(map[ir.BlockID]*bitset.BitSet),
	}
	res.computeIdoms(c)
	res.computeFrontiers(c)
	return res
}

// computeIdoms finds, for each non-root block B, the unique D in
// dominators(B)\{B} that every other strict dominator of B also dominates —
// i.e. the closest dominator. Dominators of a block in a reducible CFG form
// a chain under the dominance partial order, so the closest one is exactly
// the one whose own dominator set is a superset of every other candidate's.
func (r *Result) computeIdoms(c *ir.CFG) {
	for _, b := range c.Blocks() {
		if b.ID == r.root {
			continue
		}
		strict := r.dominators[b.ID].Clone()
		strict.Clear(uint(b.ID))
		if strict.Count() == 0 {
			continue // unreachable block with no dominators besides itself
		}
		if strict.Count() == 1 {
			idx, _ := strict.NextSet(0)
			r.idom[b.ID] = ir.BlockID(idx)
			r.hasIdom[b.ID] = true
			continue
		}
		for idx, ok := strict.NextSet(0); ok; idx, ok = strict.NextSet(idx + 1) {
			cand := ir.BlockID(idx)
			rest := strict.Clone()
			rest.Clear(idx)
			if r.dominators[cand].IsSuperSet(rest) {
				r.idom[b.ID] = cand
				r.hasIdom[b.ID] = true
				break
			}
		}
		if !r.hasIdom[b.ID] {
			panic("dom: no immediate dominator found — CFG is not reducible")
		}
	}
}

// computeFrontiers implements spec.md §4.3's post-processing rule: for every
// join point B with >= 2 predecessors, and each predecessor P, walk P
// upward via immediate dominators while the current node != idom(B), adding
// B to that node's DF set.
func (r *Result) computeFrontiers(c *ir.CFG) {
	for _, b := range c.Blocks() {
		if len(b.Prev) < 2 {
			continue
		}
		idomB, ok := r.Idom(b.ID)
		if !ok {
			continue // root cannot be a join's idom target in this walk
		}
		for _, p := range b.Prev {
			runner := p
			for runner != idomB {
				if r.df[runner] == nil {
					r.df[runner] = bitset.New(uint(c.NumBlocks()))
				}
				r.df[runner].Set(uint(b.ID))
				next, ok := r.Idom(runner)
				if !ok {
					break // reached the root without hitting idom(B); stop
				}
				runner = next
			}
		}
	}
}
