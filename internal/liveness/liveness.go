// Package liveness implements C6: live-variable analysis, following
// spec.md §4.4 and grounded on `_examples/original_source/ir/data_flow.py`'s
// LiveAnalyzer. Unlike dom's dense, block-indexed bitsets, live sets range
// over the much larger and sparser VarID space, so they're represented as
// plain map[ir.VarID]struct{} — the same choice the Python original makes
// with Python sets, and consistent with the rest of this compiler's
// variable-keyed bookkeeping (e.g. internal/ssa's per-base counters).
package liveness

import (
	"dcpu16cc/internal/dataflow"
	"dcpu16cc/internal/ir"
)

// VarSet is a set of variable ids.
type VarSet map[ir.VarID]struct{}

func newVarSet() VarSet { return make(VarSet) }

// Add inserts v into the set.
func (s VarSet) Add(v ir.VarID) { s[v] = struct{}{} }

// Has reports whether v is in the set.
func (s VarSet) Has(v ir.VarID) bool {
	_, ok := s[v]
	return ok
}

// Equal reports whether s and o contain exactly the same variables.
func (s VarSet) Equal(o VarSet) bool {
	if len(s) != len(o) {
		return false
	}
	for v := range s {
		if !o.Has(v) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy.
func (s VarSet) Clone() VarSet {
	out := make(VarSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Result holds the ue_use, var_kill, and live_out sets computed for every
// block of a CFG.
type Result struct {
	ueUse   map[ir.BlockID]VarSet
	varKill map[ir.BlockID]VarSet
	liveOut map[ir.BlockID]VarSet
}

// UEUse returns the upward-exposed uses of block b: variables read before
// any local definition, per the in-memory bookkeeping rules below.
func (r *Result) UEUse(b ir.BlockID) VarSet { return r.ueUse[b] }

// VarKill returns the variables block b (re)defines.
func (r *Result) VarKill(b ir.BlockID) VarSet { return r.varKill[b] }

// LiveOut returns the variables live on exit from block b.
func (r *Result) LiveOut(b ir.BlockID) VarSet { return r.liveOut[b] }

// LiveIn derives the variables live on entry to block b from its ue_use and
// (live_out \ var_kill), the standard two-equation form spec.md §4.4 states
// live_out in terms of.
func (r *Result) LiveIn(b ir.BlockID) VarSet {
	in := r.ueUse[b].Clone()
	kill := r.varKill[b]
	for v := range r.liveOut[b] {
		if !kill.Has(v) {
			in.Add(v)
		}
	}
	return in
}

// Compute runs live-variable analysis over c.
//
// ue_use and var_kill are computed once per block in a single forward scan
// that tracks which variables are currently "in memory" — held in a spill
// slot rather than a register — per the three spill pseudo-ops:
//
//	STORE(v):  removes v from var_kill and from the in-memory set
//	UNLOAD(v): removes v from the in-memory set
//	LOAD(v):   adds v to the in-memory set
//
// Every other instruction's operands (excluding a written destination)
// contribute to ue_use only when not currently in-memory and not already
// locally killed; a written destination contributes to var_kill.
//
// live_out then solves the standard fixed point over this CFG's successor
// edges via the shared dataflow.Solve driver:
//
//	live_out(B) = UNION over S in next(B) of ( ue_use(S) | (live_out(S) \ var_kill(S)) )
func Compute(c *ir.CFG) *Result {
	r := &Result{
		ueUse:   make(map[ir.BlockID]VarSet),
		varKill: make(map[ir.BlockID]VarSet),
		liveOut: make(map[ir.BlockID]VarSet),
	}

	for _, b := range c.Blocks() {
		ueVar := newVarSet()
		varKill := newVarSet()
		inMem := newVarSet()

		for _, in := range b.Instructions {
			switch in.Op {
			case ir.OpStore:
				v := in.Operands[0].Var
				delete(varKill, v)
				delete(inMem, v)
			case ir.OpUnload:
				v := in.Operands[0].Var
				delete(inMem, v)
			case ir.OpLoad:
				v := in.Operands[0].Var
				inMem.Add(v)
			default:
				for _, opr := range in.Reads() {
					if opr.Kind != ir.OperandVar {
						continue
					}
					if inMem.Has(opr.Var) {
						continue
					}
					if !varKill.Has(opr.Var) {
						ueVar.Add(opr.Var)
					}
				}
				if dest, ok := in.Dest(); ok && dest.Kind == ir.OperandVar {
					varKill.Add(dest.Var)
				}
			}
		}

		r.ueUse[b.ID] = ueVar
		r.varKill[b.ID] = varKill
	}

	frags := dataflow.Solve(c,
		func(b *ir.Block) VarSet {
			return newVarSet()
		},
		func(frag VarSet, b *ir.Block, fragments map[ir.BlockID]VarSet) bool {
			liveOut := newVarSet()
			for _, next := range b.Next {
				for v := range r.ueUse[next] {
					liveOut.Add(v)
				}
				nextKill := r.varKill[next]
				for v := range fragments[next] {
					if !nextKill.Has(v) {
						liveOut.Add(v)
					}
				}
			}
			if liveOut.Equal(frag) {
				return false
			}
			for v := range frag {
				delete(frag, v)
			}
			for v := range liveOut {
				frag.Add(v)
			}
			return true
		},
	)
	r.liveOut = frags
	return r
}
