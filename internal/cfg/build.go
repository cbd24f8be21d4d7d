// Package cfg implements C3: partitioning a linear instruction list into
// basic blocks by leader detection, and linking successors/predecessors.
// This is a direct, idiomatic-Go port of the algorithm in
// `_examples/original_source/ir/control_flow.py` (ControlFlowAnalyzer),
// restructured around `internal/ir`'s owned-by-id Block/CFG types instead of
// Python object references.
package cfg

import "dcpu16cc/internal/ir"

// Build partitions a linear instruction list into a Normal-form CFG,
// following spec.md §4.1: mark leaders, form maximal runs into blocks, then
// link successors and rewrite branch operands from Offset to BlockRef.
//
// Build is total on well-formed input (every branch offset lands on a
// leader); a branch target that doesn't correspond to a leader is a
// front-end bug and is reported by panicking, per spec.md §7.
func Build(insts []ir.Instruction) *ir.CFG {
	c := ir.NewCFG()
	if len(insts) == 0 {
		root := c.NewBlock()
		root.Instructions = []ir.Instruction{ir.NewInstruction(ir.OpRetn)}
		return c
	}

	leaders := markLeaders(insts)

	// Partition into maximal runs starting at each leader. blockAt maps the
	// instruction index a block starts at to the block itself, letting the
	// linking pass below recover "does this offset land on a block".
	blockAt := make(map[int]*ir.Block)
	startOf := make(map[ir.BlockID]int)
	var order []*ir.Block // creation order, == traversal order == stable link order

	i := 0
	for i < len(insts) {
		start := i
		blk := c.NewBlock()
		blk.Base = start
		blk.Instructions = append(blk.Instructions, insts[i])
		i++
		for i < len(insts) && !leaders[i] {
			blk.Instructions = append(blk.Instructions, insts[i])
			i++
		}
		blockAt[start] = blk
		startOf[blk.ID] = start
		order = append(order, blk)
	}

	// Link in traversal order: downstream algorithms (phi argument
	// indexing, caller-save forward walks) depend on predecessor lists
	// being built in a stable, deterministic order, so this must not be a
	// map iteration.
	for _, blk := range order {
		last := len(blk.Instructions) - 1
		term := blk.Instructions[last]
		start := startOf[blk.ID]
		end := start + len(blk.Instructions) // index just past this block

		if ir.IsBranch(term.Op) {
			target := term.Target()
			if target.Kind != ir.OperandOffset {
				panic("cfg: branch instruction operand 0 is not an Offset")
			}
			targetIdx := end + int(target.OffsetV)
			if tgtBlk, ok := blockAt[targetIdx]; ok {
				c.Link(blk.ID, tgtBlk.ID)
				blk.Instructions[last].SetTarget(ir.BlockRef(tgtBlk.ID))
			} else {
				panic("cfg: branch target does not correspond to a leader")
			}
		}

		if term.Op != ir.OpJmp && !ir.IsReturn(term.Op) {
			if nextBlk, ok := blockAt[end]; ok {
				c.Link(blk.ID, nextBlk.ID)
			}
		}
	}

	return c
}

// markLeaders implements spec.md §4.1 step 1: index 0, every index
// immediately after a branch or return, and every branch's target index.
func markLeaders(insts []ir.Instruction) []bool {
	leaders := make([]bool, len(insts))
	leaders[0] = true
	for i, in := range insts {
		switch {
		case ir.IsBranch(in.Op):
			if i != len(insts)-1 {
				leaders[i+1] = true
			}
			target := in.Target()
			if target.Kind != ir.OperandOffset {
				panic("cfg: branch instruction operand 0 is not an Offset")
			}
			tgt := i + 1 + int(target.OffsetV)
			if tgt < 0 || tgt >= len(insts) {
				panic("cfg: branch target index out of range")
			}
			leaders[tgt] = true
		case ir.IsReturn(in.Op):
			if i != len(insts)-1 {
				leaders[i+1] = true
			}
		}
	}
	return leaders
}
