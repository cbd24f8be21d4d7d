package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcpu16cc/internal/ir"
	"dcpu16cc/internal/regalloc"
)

// f(a, b) { return a + b; } — two live-in parameters, no spilling, no
// calls: the simplest procedure this backend lowers.
func addProcedure() (*ir.Procedure, *ir.CFG) {
	a := ir.MakeVar(0, 0, 0)
	b := ir.MakeVar(1, 0, 0)
	t := ir.MakeVar(2, 0, 0)

	c := ir.NewCFG()
	root := c.NewBlock()
	root.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssignAdd, ir.Var(t), ir.Var(a), ir.Var(b)),
		ir.NewInstruction(ir.OpRet, ir.Var(t)),
	}
	c.Kind = ir.KindSSA
	return &ir.Procedure{Name: "add", Parameters: []uint32{0, 1}, Body: root.Instructions, Exported: true}, c
}

func TestLowerSimpleAddHasNoPrologue(t *testing.T) {
	proc, c := addProcedure()
	alloc := regalloc.Allocate(c, NumGPRegisters)
	lines := Lower(proc, c, alloc)
	asm := strings.Join(lines, "\n")

	assert.True(t, strings.HasPrefix(asm, ".global add\nadd:\n"))
	assert.NotContains(t, asm, "SET PUSH, J", "no spill in this procedure should mean no frame pointer setup")
	assert.Contains(t, asm, "ADD")
	assert.Contains(t, asm, "SET PC, POP")
}

// f(n) { if (n) return g(n); return 0; } — a call whose result feeds the
// return, with the callee needing A (the return-value and first scratch
// register) saved around the JSR if anything else is colored into it.
func callProcedure() (*ir.Procedure, *ir.CFG, ir.VarID, ir.VarID) {
	n := ir.MakeVar(0, 0, 0)
	r := ir.MakeVar(1, 0, 0)
	one := ir.MakeVar(2, 0, 0)

	c := ir.NewCFG()
	root := c.NewBlock()
	then := c.NewBlock()
	after := c.NewBlock()

	root.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssign, ir.Var(one), ir.Const(1)),
		ir.NewInstruction(ir.OpJe, ir.BlockRef(after.ID), ir.Var(n), ir.Const(0)),
	}
	then.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssignCall, ir.Var(r), ir.Name("g")).WithExtras(ir.Var(n)),
		ir.NewInstruction(ir.OpRet, ir.Var(r)),
	}
	after.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpRet, ir.Var(one)),
	}
	c.Link(root.ID, then.ID)
	c.Link(root.ID, after.ID)
	c.Kind = ir.KindSSA
	return &ir.Procedure{Name: "f", Parameters: []uint32{0}, Body: nil, Exported: true}, c, n, r
}

func TestLowerCallEmitsJSRAndReturnMove(t *testing.T) {
	proc, c, _, _ := callProcedure()
	alloc := regalloc.Allocate(c, NumGPRegisters)
	lines := Lower(proc, c, alloc)
	asm := strings.Join(lines, "\n")

	assert.Contains(t, asm, "JSR g")
	assert.Contains(t, asm, "SUB SP, 1", "the stack grows toward lower addresses, so unwinding a pushed argument subtracts")
	assert.NotContains(t, asm, "ADD SP, 1")
	assert.Contains(t, asm, "IFE")
	assert.Contains(t, asm, "SET PC, POP")
}

// a = 1; b = 2; c = 3; t1 = a + b; t2 = t1 + c; RET t2, colored with only
// two registers available — forces spilling (the allocator ends up spilling
// a, b and c), which must surface here as a stack-relative SET through J
// and a non-empty prologue.
func threeWaySpillProcedure() (*ir.Procedure, *ir.CFG) {
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
	return &ir.Procedure{Name: "spilly", Parameters: nil, Body: root.Instructions, Exported: false}, c
}

func TestLowerSpillProcedureAllocatesFrameSlot(t *testing.T) {
	proc, c := threeWaySpillProcedure()
	alloc := regalloc.Allocate(c, 2)
	lines := Lower(proc, c, alloc)
	asm := strings.Join(lines, "\n")

	assert.NotContains(t, asm, ".global spilly\n", "unexported procedures get no .global directive")
	assert.Contains(t, asm, "SET PUSH, J")
	assert.Contains(t, asm, "SET J, SP")
	assert.Contains(t, asm, "[J - 1]")
	assert.Contains(t, asm, "SET SP, J")
	assert.Contains(t, asm, "SET J, POP")
}

// f() { while (n < 10) n = n + 1; return n; } shaped as a three-block loop:
// a header testing the condition, a body that increments and repeats, and
// an exit. Exercises block labels and the JGE inverted-branch pattern used
// when DCPU-16 has no single opcode for the comparison.
func loopProcedure() (*ir.Procedure, *ir.CFG) {
	n := ir.MakeVar(0, 0, 0)
	ten := ir.MakeVar(1, 0, 0)

	c := ir.NewCFG()
	header := c.NewBlock()
	body := c.NewBlock()
	exit := c.NewBlock()

	header.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssign, ir.Var(ten), ir.Const(10)),
		ir.NewInstruction(ir.OpJge, ir.BlockRef(exit.ID), ir.Var(n), ir.Var(ten)),
	}
	body.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpAssignAdd, ir.Var(n), ir.Var(n), ir.Const(1)),
		ir.NewInstruction(ir.OpJmp, ir.BlockRef(header.ID)),
	}
	exit.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpRet, ir.Var(n)),
	}
	c.Link(header.ID, body.ID)
	c.Link(header.ID, exit.ID)
	c.Link(body.ID, header.ID)
	c.Kind = ir.KindSSA
	return &ir.Procedure{Name: "loop", Parameters: []uint32{0}, Body: nil, Exported: true}, c
}

func TestLowerLoopEmitsBlockLabelsAndInvertedBranch(t *testing.T) {
	proc, c := loopProcedure()
	alloc := regalloc.Allocate(c, NumGPRegisters)
	lines := Lower(proc, c, alloc)
	asm := strings.Join(lines, "\n")

	assert.Contains(t, asm, ".blk")
	assert.Contains(t, asm, "IFL")
	assert.Contains(t, asm, ".skip1:")
	require.Contains(t, asm, "SET PC, POP")
}

// A bare RETN procedure (e.g. a no-op stub) should still get a well-formed
// prologue-free epilogue.
func TestLowerBareRetnProcedure(t *testing.T) {
	c := ir.NewCFG()
	root := c.NewBlock()
	root.Instructions = []ir.Instruction{
		ir.NewInstruction(ir.OpRetn),
	}
	c.Kind = ir.KindSSA
	proc := &ir.Procedure{Name: "noop", Exported: true}

	alloc := regalloc.Allocate(c, NumGPRegisters)
	lines := Lower(proc, c, alloc)
	asm := strings.Join(lines, "\n")

	assert.Equal(t, ".global noop\nnoop:\n\tSET PC, POP", asm)
}
