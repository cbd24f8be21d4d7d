package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dcpu16cc/internal/ir"
)

// b0: x = 1
// b1: y = x + 1 ; RETN y
//
// x is defined in b0 and used in b1 before any redefinition there, so x is
// live-out of b0. y is defined and returned within b1, never live-out of
// anything.
func TestLiveOutAcrossLinearChain(t *testing.T) {
	x := ir.MakeVar(1, 0, 0)
	y := ir.MakeVar(2, 0, 0)

	c := ir.NewCFG()
	b0 := c.NewBlock()
	b1 := c.NewBlock()
	b0.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssign, ir.Var(x), ir.Const(1)),
	}
	b1.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssignAdd, ir.Var(y), ir.Var(x), ir.Const(1)),
		ir.NewInstruction(ir.OpRet, ir.Var(y)),
	}
	c.Link(b0.ID, b1.ID)

	r := Compute(c)
	assert.True(t, r.LiveOut(b0.ID).Has(x))
	assert.False(t, r.LiveOut(b0.ID).Has(y))
	assert.True(t, r.UEUse(b1.ID).Has(x))
	assert.False(t, r.LiveOut(b1.ID).Has(y))
}

// Diamond: root defines x and branches; both arms use x; join uses x too.
// x must be live-out of root and of both arms.
func TestLiveOutThroughDiamond(t *testing.T) {
	x := ir.MakeVar(1, 0, 0)
	z := ir.MakeVar(2, 0, 0)

	c := ir.NewCFG()
	root := c.NewBlock()
	a := c.NewBlock()
	b := c.NewBlock()
	join := c.NewBlock()

	root.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssign, ir.Var(x), ir.Const(0)),
		ir.NewInstruction(ir.OpJe, ir.BlockRef(a.ID), ir.Var(x), ir.Const(0)),
	}
	a.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpJmp, ir.BlockRef(join.ID)),
	}
	b.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpJmp, ir.BlockRef(join.ID)),
	}
	join.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssignAdd, ir.Var(z), ir.Var(x), ir.Const(1)),
		ir.NewInstruction(ir.OpRet, ir.Var(z)),
	}
	c.Link(root.ID, a.ID)
	c.Link(root.ID, b.ID)
	c.Link(a.ID, join.ID)
	c.Link(b.ID, join.ID)

	r := Compute(c)
	assert.True(t, r.LiveOut(root.ID).Has(x))
	assert.True(t, r.LiveOut(a.ID).Has(x))
	assert.True(t, r.LiveOut(b.ID).Has(x))
	assert.False(t, r.LiveOut(join.ID).Has(x))
}

// STORE(v) removes v from var_kill (so an earlier def in the same block no
// longer locally kills it) and from the in-memory set; UNLOAD/LOAD toggle
// whether later reads in the block count as upward-exposed.
func TestSpillPseudoOpsAffectUEUseAndVarKill(t *testing.T) {
	v := ir.MakeVar(1, 0, 0)

	c := ir.NewCFG()
	b0 := c.NewBlock()
	b0.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssign, ir.Var(v), ir.Const(5)),          // defines v: var_kill={v}
		ir.NewInstruction(ir.OpStore, ir.Var(v)).WithExtras(ir.Var(v)),  // un-kills v, clears in_mem
		ir.NewInstruction(ir.OpLoad, ir.Var(v)).WithExtras(ir.Var(v)),   // v now in_mem
		ir.NewInstruction(ir.OpUnload, ir.Var(v)).WithExtras(ir.Var(v)), // v no longer in_mem
		ir.NewInstruction(ir.OpRet, ir.Var(v)),                          // v not in_mem, not killed -> ue_use
	}
	r := Compute(c)
	assert.True(t, r.UEUse(b0.ID).Has(v))
	assert.False(t, r.VarKill(b0.ID).Has(v))
}

func TestLiveOutIsIdempotent(t *testing.T) {
	x := ir.MakeVar(1, 0, 0)
	c := ir.NewCFG()
	b0 := c.NewBlock()
	b1 := c.NewBlock()
	b0.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssign, ir.Var(x), ir.Const(1)),
	}
	b1.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpRet, ir.Var(x)),
	}
	c.Link(b0.ID, b1.ID)

	r1 := Compute(c)
	r2 := Compute(c)
	assert.True(t, r1.LiveOut(b0.ID).Equal(r2.LiveOut(b0.ID)))
}
