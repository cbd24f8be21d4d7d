package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcpu16cc/internal/ir"
)

// z = x + y ; RET z, with x and y both live at the add — they must not
// share a color, but z (dead immediately after the return) can share with
// either.
func addProgram() (*ir.CFG, ir.VarID, ir.VarID, ir.VarID) {
	x := ir.MakeVar(1, 1, 0)
	y := ir.MakeVar(2, 1, 0)
	z := ir.MakeVar(3, 1, 0)

	c := ir.NewCFG()
	root := c.NewBlock()
	root.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssign, ir.Var(x), ir.Const(1)),
		ir.NewInstruction(ir.OpAssign, ir.Var(y), ir.Const(2)),
		ir.NewInstruction(ir.OpAssignAdd, ir.Var(z), ir.Var(x), ir.Var(y)),
		ir.NewInstruction(ir.OpRet, ir.Var(z)),
	}
	c.Kind = ir.KindSSA
	return c, x, y, z
}

func TestTwoColorsSucceedWithoutSpilling(t *testing.T) {
	c, x, y, z := addProgram()
	alloc := Allocate(c, 2)

	cx, ok := alloc.Color(x)
	require.True(t, ok)
	cy, ok := alloc.Color(y)
	require.True(t, ok)
	_, ok = alloc.Color(z)
	require.True(t, ok)
	assert.NotEqual(t, cx, cy)

	root := c.Block(c.Root)
	assert.Len(t, root.Instructions, 4, "no spill traffic should have been inserted")
}

// a = 1; b = 2; c = 3; t1 = a + b; t2 = t1 + c; RET t2 — a, b, and c end up
// mutually live at the point c is defined (every pairwise combination feeds
// a later add), a three-way interference only three colors could satisfy
// directly. With two colors available, spill code must be inserted before
// coloring can succeed; since every reload still overlaps the other two
// values, the allocator ends up spilling all three of a, b and c.
func threeWayProgram() *ir.CFG {
	a := ir.MakeVar(1, 1, 0)
	b := ir.MakeVar(2, 1, 0)
	cc := ir.MakeVar(3, 1, 0)
	t1 := ir.MakeVar(4, 1, 0)
	t2 := ir.MakeVar(5, 1, 0)

	c := ir.NewCFG()
	root := c.NewBlock()
	root.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssign, ir.Var(a), ir.Const(1)),
		ir.NewInstruction(ir.OpAssign, ir.Var(b), ir.Const(2)),
		ir.NewInstruction(ir.OpAssign, ir.Var(cc), ir.Const(3)),
		ir.NewInstruction(ir.OpAssignAdd, ir.Var(t1), ir.Var(a), ir.Var(b)),
		ir.NewInstruction(ir.OpAssignAdd, ir.Var(t2), ir.Var(t1), ir.Var(cc)),
		ir.NewInstruction(ir.OpRet, ir.Var(t2)),
	}
	c.Kind = ir.KindSSA
	return c
}

func TestThreeWayInterferenceForcesSpillingAtTwoColors(t *testing.T) {
	c := threeWayProgram()
	alloc := Allocate(c, 2)

	root := c.Block(c.Root)
	assert.Greater(t, len(root.Instructions), 6, "spilling a/b/c should have inserted spill traffic")

	hasSpillOp := false
	for _, in := range root.Instructions {
		if in.Op == ir.OpLoad || in.Op == ir.OpStore || in.Op == ir.OpUnload {
			hasSpillOp = true
		}
	}
	assert.True(t, hasSpillOp)
	_ = alloc
}
