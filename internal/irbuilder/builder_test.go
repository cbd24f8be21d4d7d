package irbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcpu16cc/internal/ir"
)

func TestForwardLabelResolution(t *testing.T) {
	b := New()
	x := ir.Var(ir.MakeVar(1, 0, 0))

	loop := b.MakeAndMarkLabel()
	b.Emit(ir.NewInstruction(ir.OpAssignAdd, x, x, ir.Const(1)))
	end := b.MakeLabel()
	b.EmitBranch(ir.OpJl, end, x, ir.Const(10))
	b.EmitBranch(ir.OpJmp, loop)
	b.MarkLabel(end)
	b.Emit(ir.NewInstruction(ir.OpRetn))

	b.FixLabels()
	insts := b.Instructions()
	require.Len(t, insts, 4)

	// insts: [0]=ADD [1]=JL->end [2]=JMP->loop [3]=RETN
	// JL is at pos 1, `end` resolves to pos 3: delta = 3 - (1+1) = 1.
	assert.Equal(t, ir.Offset(1), insts[1].Target())
	// JMP is at pos 2, `loop` resolves to pos 0: delta = 0 - (2+1) = -3.
	assert.Equal(t, ir.Offset(-3), insts[2].Target())
}

func TestInstructionsPanicsOnUnresolvedLabel(t *testing.T) {
	b := New()
	lbl := b.MakeLabel()
	b.EmitBranch(ir.OpJmp, lbl)
	assert.Panics(t, func() { b.Instructions() })
}
