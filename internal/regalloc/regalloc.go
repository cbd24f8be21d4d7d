// Package regalloc implements C9: Chaitin-style graph-coloring register
// allocation with spilling, grounded on
// `_examples/original_source/ir/allocation/basic.py`'s BasicRegisterAllocator.
// It operates on an SSA-form CFG and rewrites it in place, inserting spill
// traffic (LOAD/STORE/UNLOAD) until every live range fits in the available
// colors.
//
// One deliberate departure from the Python original: live-range discovery
// there merges phi-linked variables by repeatedly copying and re-keying
// Python sets, then "nubs" the result to collapse sets that ended up with
// identical contents — a workaround for not having a real union-find. This
// port uses a union-find over variable ids instead, which produces the same
// partition without the nub pass, and is the structure the teacher's own
// dominator/interval code reaches for when it needs disjoint-set grouping.
package regalloc

import (
	"fmt"
	"sort"

	"dcpu16cc/internal/interference"
	"dcpu16cc/internal/ir"
	"dcpu16cc/internal/liveness"
)

// Allocation maps every SSA variable name to a physical register color.
type Allocation struct {
	colors map[ir.VarID]int
}

// Color returns v's assigned register color.
func (a *Allocation) Color(v ir.VarID) (int, bool) {
	c, ok := a.colors[v]
	return c, ok
}

// Allocate colors c's variables with at most numColors registers, inserting
// spill code and re-running discovery until coloring succeeds. c must
// already be in SSA form; it is mutated in place whenever spill code is
// inserted, and c.Kind stays ir.KindSSA — the coloring only makes sense
// once combined with the phi-elimination that internal/codegen performs
// during lowering.
func Allocate(c *ir.CFG, numColors int) *Allocation {
	if c.Kind != ir.KindSSA {
		panic("regalloc: cfg must be in SSA form")
	}

	// Keyed by the live range's own variable-id content (matching the
	// Python original's tuple-keyed set) rather than its positional index,
	// since discoverLiveRanges renumbers every live range from scratch each
	// round — an index-keyed set would, by sheer coincidence of numbering,
	// sometimes block spilling a legitimate but unrelated candidate.
	spilled := make(map[string]bool)
	tmpIdx := 0

	for {
		ranges, varLR := discoverLiveRanges(c)
		live := liveness.Compute(c)
		g := buildInterferenceGraph(c, varLR, len(ranges), live)

		colorMap, ok := colorGraph(g, numColors)
		if ok {
			alloc := &Allocation{colors: make(map[ir.VarID]int, len(varLR))}
			for v, lr := range varLR {
				alloc.colors[v] = colorMap[lr]
			}
			return alloc
		}

		spillIdx := pickRangeToSpill(ranges, colorMap, spilled)
		tmpIdx = insertSpillCode(c, ranges[spillIdx], tmpIdx)
	}
}

// rangeKey builds a stable, content-based identity for a live range.
func rangeKey(lr []ir.VarID) string {
	sorted := append([]ir.VarID(nil), lr...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return fmt.Sprint(sorted)
}

// union-find over variable ids, used only to group phi-linked variables
// into a single live range.
type unionFind struct {
	parent map[ir.VarID]ir.VarID
	order  []ir.VarID
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[ir.VarID]ir.VarID)}
}

func (u *unionFind) register(v ir.VarID) {
	if _, ok := u.parent[v]; !ok {
		u.parent[v] = v
		u.order = append(u.order, v)
	}
}

func (u *unionFind) find(v ir.VarID) ir.VarID {
	root := v
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[v] != root {
		u.parent[v], v = root, u.parent[v]
	}
	return root
}

func (u *unionFind) union(a, b ir.VarID) {
	u.register(a)
	u.register(b)
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// discoverLiveRanges groups every variable name defined in the CFG into
// live ranges: phi destinations and their arguments share a range (they
// must occupy the same register or copies would be needed at every block
// boundary), and every other definition site gets its own singleton range.
func discoverLiveRanges(c *ir.CFG) (ranges [][]ir.VarID, varLR map[ir.VarID]int) {
	uf := newUnionFind()

	for _, blk := range c.Blocks() {
		for _, in := range blk.Instructions {
			if in.Op != ir.OpAssignPhi {
				continue
			}
			dest := in.Operands[0].Var
			uf.register(dest)
			for _, e := range in.Extras {
				if e.Kind != ir.OperandVar {
					continue
				}
				uf.union(dest, e.Var)
			}
		}
	}

	for _, blk := range c.Blocks() {
		for _, in := range blk.Instructions {
			if dest, ok := in.Dest(); ok && dest.Kind == ir.OperandVar {
				uf.register(dest.Var)
			}
		}
	}

	rootIndex := make(map[ir.VarID]int)
	var rootOrder []ir.VarID
	groups := make(map[ir.VarID][]ir.VarID)
	for _, v := range uf.order {
		r := uf.find(v)
		if _, ok := rootIndex[r]; !ok {
			rootIndex[r] = len(rootOrder)
			rootOrder = append(rootOrder, r)
		}
		groups[r] = append(groups[r], v)
	}

	ranges = make([][]ir.VarID, len(rootOrder))
	varLR = make(map[ir.VarID]int, len(uf.order))
	for i, r := range rootOrder {
		ranges[i] = groups[r]
		for _, v := range groups[r] {
			varLR[v] = i
		}
	}
	return ranges, varLR
}

// buildInterferenceGraph draws an edge between every two live ranges that
// are simultaneously live at some program point, walking each block
// backward from its live-out set the way the teacher's liveness pass
// itself is a backward fixed point.
func buildInterferenceGraph(c *ir.CFG, varLR map[ir.VarID]int, numRanges int, live *liveness.Result) *interference.Graph {
	g := interference.New()
	for i := 0; i < numRanges; i++ {
		g.AddNode(i)
	}

	lrOf := func(v ir.VarID) (int, bool) {
		lr, ok := varLR[v]
		return lr, ok
	}

	for _, blk := range c.Blocks() {
		liveNow := make(map[int]bool)
		for v := range live.LiveOut(blk.ID) {
			if lr, ok := lrOf(v); ok {
				liveNow[lr] = true
			}
		}

		for i := len(blk.Instructions) - 1; i >= 0; i-- {
			in := blk.Instructions[i]

			switch in.Op {
			case ir.OpStore, ir.OpUnload:
				// Neither removes nor adds live ranges here: STORE/UNLOAD
				// never change which live range is in flight, only whether
				// it's currently held in a spill slot.
			case ir.OpLoad:
				dest := in.Operands[0].Var
				lrDest, ok := lrOf(dest)
				if !ok {
					continue
				}
				for lr := range liveNow {
					if lr != lrDest {
						g.AddEdge(lrDest, lr)
					}
				}
				delete(liveNow, lrDest)
			default:
				if dest, ok := in.Dest(); ok && dest.Kind == ir.OperandVar {
					if lrDest, ok := lrOf(dest.Var); ok {
						for lr := range liveNow {
							if lr != lrDest {
								g.AddEdge(lrDest, lr)
							}
						}
						delete(liveNow, lrDest)
					}
				}
				for _, opr := range in.Reads() {
					if opr.Kind != ir.OperandVar {
						continue
					}
					if lr, ok := lrOf(opr.Var); ok {
						liveNow[lr] = true
					}
				}
			}
		}
	}

	return g
}

// colorGraph runs the Chaitin simplify/select loop: repeatedly remove a
// node of degree < numColors (or, once none remains, the most constrained
// node available), then reinsert in reverse order assigning each node the
// lowest color not already used by an already-colored neighbor. Returns
// false if some node came up with no available color — the caller must
// spill and retry.
func colorGraph(g *interference.Graph, numColors int) (map[int]int, bool) {
	var stack []*interference.Node
	for g.Len() != 0 {
		var pick int
		if g.HasLessThanK(numColors) {
			pick = g.FindLessThanK(numColors)
		} else {
			pick = pickConstrainedNode(g)
		}
		stack = append(stack, g.Node(pick).Clone())
		g.RemoveNode(pick)
	}

	colorMap := make(map[int]int)
	for i := len(stack) - 1; i >= 0; i-- {
		node := stack[i]
		g.AddNode(node.Value)
		for _, nb := range node.Neighbors() {
			if g.Has(nb) {
				g.AddEdge(node.Value, nb)
			}
		}

		used := make(map[int]bool, numColors)
		for _, nb := range node.Neighbors() {
			if col, ok := colorMap[nb]; ok {
				used[col] = true
			}
		}
		for col := 0; col < numColors; col++ {
			if !used[col] {
				colorMap[node.Value] = col
				break
			}
		}
	}

	return colorMap, len(colorMap) == len(stack)
}

// pickConstrainedNode resolves spec.md's open question on which node to
// remove once every remaining node has degree >= numColors: the
// highest-degree node, on the reasoning that it's the one most likely to
// need a spill regardless of removal order, so evicting it first gives the
// rest of the graph the best chance of coloring cleanly.
func pickConstrainedNode(g *interference.Graph) int {
	best := -1
	bestDegree := -1
	for _, n := range g.Nodes() {
		if n.Degree() > bestDegree {
			bestDegree = n.Degree()
			best = n.Value
		}
	}
	return best
}

// pickRangeToSpill chooses the first uncolored, not-yet-spilled live range
// in range-index order, and marks it spilled so a later pass can't pick the
// same range's contents again (spilling it twice would spin forever without
// ever addressing the actual conflict).
func pickRangeToSpill(ranges [][]ir.VarID, colorMap map[int]int, spilled map[string]bool) int {
	for i, lr := range ranges {
		if _, colored := colorMap[i]; colored {
			continue
		}
		key := rangeKey(lr)
		if spilled[key] {
			continue
		}
		spilled[key] = true
		return i
	}
	panic("regalloc: no candidate live range to spill")
}

// insertSpillCode rewrites every block so that lr's live range never
// crosses a register boundary uncovered: every definition of a variable in
// lr is followed by a STORE, and every use is preceded by a LOAD and, when
// the same instruction does not also define a variable in lr, followed by
// an UNLOAD. Each rewritten instruction gets its own fresh spill temporary,
// numbered from tmpIdx. Returns the updated temp counter.
func insertSpillCode(c *ir.CFG, lr []ir.VarID, tmpIdx int) int {
	lrSet := make(map[ir.VarID]bool, len(lr))
	for _, v := range lr {
		lrSet[v] = true
	}
	base := lr[0].Base()

	for _, blk := range c.Blocks() {
		var out []ir.Instruction
		for _, in := range blk.Instructions {
			if in.Op == ir.OpAssignPhi {
				destInLR := in.Operands[0].Kind == ir.OperandVar && lrSet[in.Operands[0].Var]
				foundInExtras := false
				for _, e := range in.Extras {
					if e.Kind == ir.OperandVar && lrSet[e.Var] {
						foundInExtras = true
						break
					}
				}
				if !destInLR && !foundInExtras {
					out = append(out, in)
				}
				continue
			}

			needStore := false
			needLoad := false
			tmpVar := ir.MakeVar(base, 0, uint32(tmpIdx+1))

			if dest, ok := in.Dest(); ok && dest.Kind == ir.OperandVar && lrSet[dest.Var] {
				needStore = true
				in.Operands[0] = ir.Var(tmpVar)
			}

			if containsLiveRangeUse(in, lrSet) {
				needLoad = true
				start := 0
				if ir.IsAssign(in.Op) {
					start = 1
				}
				for j := start; j < in.NumOps; j++ {
					if in.Operands[j].Kind == ir.OperandVar && lrSet[in.Operands[j].Var] {
						in.Operands[j] = ir.Var(tmpVar)
					}
				}
				for j := range in.Extras {
					if in.Extras[j].Kind == ir.OperandVar && lrSet[in.Extras[j].Var] {
						in.Extras[j] = ir.Var(tmpVar)
					}
				}
			}

			if needLoad || needStore {
				tmpIdx++
			}

			if needLoad {
				out = append(out, spillWitness(ir.OpLoad, tmpVar, lr))
			}
			out = append(out, in)
			if needStore {
				out = append(out, spillWitness(ir.OpStore, tmpVar, lr))
			} else if needLoad {
				out = append(out, spillWitness(ir.OpUnload, tmpVar, lr))
			}
		}
		blk.Instructions = out
	}

	return tmpIdx
}

func spillWitness(op ir.Op, tmpVar ir.VarID, lr []ir.VarID) ir.Instruction {
	args := make([]ir.Operand, len(lr))
	for i, v := range lr {
		args[i] = ir.Var(v)
	}
	return ir.NewInstruction(op, ir.Var(tmpVar)).WithExtras(args...)
}

// containsLiveRangeUse reports whether any operand read holds a variable
// from lr.
func containsLiveRangeUse(in ir.Instruction, lrSet map[ir.VarID]bool) bool {
	start := 0
	if ir.IsAssign(in.Op) {
		start = 1
	}
	for i := start; i < in.NumOps; i++ {
		if in.Operands[i].Kind == ir.OperandVar && lrSet[in.Operands[i].Var] {
			return true
		}
	}
	for _, e := range in.Extras {
		if e.Kind == ir.OperandVar && lrSet[e.Var] {
			return true
		}
	}
	return false
}
