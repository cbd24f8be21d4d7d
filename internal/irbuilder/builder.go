// Package irbuilder is the IR assembler (spec.md C2): it accumulates
// instructions into a buffer and resolves forward references to labels that
// haven't been placed yet, the same job
// `_examples/original_source/ir/assembler.py`'s Assembler class does for the
// Python implementation, adapted to this repo's instruction shapes and to
// Go's value-oriented Instruction type (no in-place instruction mutation
// through a shared object — fixups rewrite the buffer slot directly).
package irbuilder

import "dcpu16cc/internal/ir"

// LabelID names a not-yet-placed branch target.
type LabelID int

type labelUse struct {
	label LabelID
	pos   int
}

// Builder accumulates a linear instruction stream for one procedure body,
// resolving branch targets expressed as labels into Offset operands once the
// label's position becomes known.
type Builder struct {
	insts    []ir.Instruction
	nextLbl  LabelID
	fixes    map[LabelID]int
	labelUse []labelUse
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{fixes: make(map[LabelID]int)}
}

// MakeLabel allocates a fresh, as-yet-unplaced label.
func (b *Builder) MakeLabel() LabelID {
	id := b.nextLbl
	b.nextLbl++
	return id
}

// MarkLabel records that lbl refers to the current (next-to-be-emitted)
// position.
func (b *Builder) MarkLabel(lbl LabelID) {
	b.fixes[lbl] = len(b.insts)
}

// MakeAndMarkLabel allocates a label and immediately marks it at the
// current position — the common case for a fallthrough target.
func (b *Builder) MakeAndMarkLabel() LabelID {
	lbl := b.MakeLabel()
	b.MarkLabel(lbl)
	return lbl
}

// Pos returns the position the next instruction will occupy.
func (b *Builder) Pos() int { return len(b.insts) }

// Emit appends a fully-formed instruction and returns its position.
func (b *Builder) Emit(in ir.Instruction) int {
	pos := len(b.insts)
	b.insts = append(b.insts, in)
	return pos
}

// EmitBranch emits a branch-class instruction whose target is a label not
// yet placed; the label use is remembered and patched by FixLabels once the
// label's position is known. comparands is empty for unconditional jumps
// and holds the two comparands for conditional jumps.
func (b *Builder) EmitBranch(op ir.Op, target LabelID, comparands ...ir.Operand) int {
	operands := append([]ir.Operand{ir.Offset(0)}, comparands...)
	pos := b.Emit(ir.NewInstruction(op, operands...))
	b.labelUse = append(b.labelUse, labelUse{label: target, pos: pos})
	return pos
}

// FixLabels rewrites every recorded label use whose label has since been
// marked, replacing its placeholder Offset(0) with the offset from the
// instruction immediately following the branch to the label's position —
// the same `i + 1 + offset(branch)` addressing spec.md §4.1 assumes leader
// detection can invert.
func (b *Builder) FixLabels() {
	remaining := b.labelUse[:0]
	for _, use := range b.labelUse {
		fixPos, ok := b.fixes[use.label]
		if !ok {
			remaining = append(remaining, use)
			continue
		}
		delta := int64(fixPos - (use.pos + 1))
		b.insts[use.pos].SetTarget(ir.Offset(delta))
	}
	b.labelUse = remaining
}

// Instructions returns the finished linear instruction stream. Callers must
// call FixLabels first; Instructions panics if any label use remains
// unresolved, since an unresolved forward reference is a front-end bug per
// spec.md §7.
func (b *Builder) Instructions() []ir.Instruction {
	if len(b.labelUse) > 0 {
		panic("irbuilder: unresolved label reference")
	}
	out := make([]ir.Instruction, len(b.insts))
	copy(out, b.insts)
	return out
}
