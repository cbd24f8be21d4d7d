package ir

import "strings"

// Instruction is the core's atomic unit: an opcode, up to three fixed
// operand slots, and an optional variable-length extras list (call
// arguments, phi inputs, or the live-range witness carried by LOAD/STORE/
// UNLOAD).
type Instruction struct {
	Op       Op
	Operands [3]Operand
	NumOps   int // how many of Operands are meaningful; <= OperandCount(Op)
	Extras   []Operand
}

// NewInstruction builds an instruction, validating the operand count against
// the opcode's declared shape.
func NewInstruction(op Op, operands ...Operand) Instruction {
	want := OperandCount(op)
	if len(operands) != want {
		panic("ir: wrong operand count for opcode " + op.String())
	}
	var inst Instruction
	inst.Op = op
	inst.NumOps = len(operands)
	copy(inst.Operands[:], operands)
	return inst
}

// WithExtras attaches an extras list and returns the instruction. Panics if
// the opcode doesn't declare extras.
func (in Instruction) WithExtras(extras ...Operand) Instruction {
	if !HasExtras(in.Op) {
		panic("ir: opcode " + in.Op.String() + " does not carry extras")
	}
	in.Extras = extras
	return in
}

// Dest returns operand 0 when the opcode is an assignment, and whether it
// was present.
func (in Instruction) Dest() (Operand, bool) {
	if IsAssign(in.Op) && in.NumOps > 0 {
		return in.Operands[0], true
	}
	return Operand{}, false
}

// Reads returns the operands read by this instruction, i.e. every fixed
// operand except a written destination, plus all extras except a phi
// destination (phi has no separate destination operand — its destination is
// the same slot 0, which IsAssign already excludes).
func (in Instruction) Reads() []Operand {
	start := 0
	if IsAssign(in.Op) {
		start = 1
	}
	// Conditional branches carry their target in operand 0 but are not
	// "assignments" — operand 0 there is a branch target, not a read, so
	// skip it explicitly.
	if IsBranch(in.Op) {
		start = 1
	}
	reads := make([]Operand, 0, in.NumOps+len(in.Extras))
	for i := start; i < in.NumOps; i++ {
		reads = append(reads, in.Operands[i])
	}
	reads = append(reads, in.Extras...)
	return reads
}

// Target returns the branch target operand (operand 0) for any branch
// instruction.
func (in Instruction) Target() Operand {
	if !IsBranch(in.Op) {
		panic("ir: Target called on non-branch opcode " + in.Op.String())
	}
	return in.Operands[0]
}

// SetTarget rewrites the branch target in place; used by the CFG builder to
// replace an Offset operand with a BlockRef.
func (in *Instruction) SetTarget(target Operand) {
	if !IsBranch(in.Op) {
		panic("ir: SetTarget called on non-branch opcode " + in.Op.String())
	}
	in.Operands[0] = target
}

// CallTarget returns the operand naming the callee for CALL and ASSIGN_CALL
// instructions.
func (in Instruction) CallTarget() Operand {
	switch in.Op {
	case OpCall:
		return in.Operands[0]
	case OpAssignCall:
		return in.Operands[1]
	default:
		panic("ir: CallTarget called on non-call opcode " + in.Op.String())
	}
}

// Args returns the call argument list, which is carried in Extras.
func (in Instruction) Args() []Operand {
	switch in.Op {
	case OpCall, OpAssignCall:
		return in.Extras
	default:
		panic("ir: Args called on non-call opcode " + in.Op.String())
	}
}

// Comparands returns the two comparand operands of a conditional branch.
func (in Instruction) Comparands() (a, b Operand) {
	if !IsConditionalBranch(in.Op) {
		panic("ir: Comparands called on non-conditional-branch opcode " + in.Op.String())
	}
	return in.Operands[1], in.Operands[2]
}

// RewriteVars applies f to every Var-kind operand the instruction holds
// (fixed operands and extras), in place, preserving positions.
func (in *Instruction) RewriteVars(f func(VarID) VarID) {
	for i := 0; i < in.NumOps; i++ {
		if in.Operands[i].Kind == OperandVar {
			in.Operands[i].Var = f(in.Operands[i].Var)
		}
	}
	for i := range in.Extras {
		if in.Extras[i].Kind == OperandVar {
			in.Extras[i].Var = f(in.Extras[i].Var)
		}
	}
}

func (in Instruction) String() string {
	var b strings.Builder
	if dest, ok := in.Dest(); ok {
		b.WriteString(dest.String())
		b.WriteString(" = ")
	}
	b.WriteString(in.Op.String())
	for i := 0; i < in.NumOps; i++ {
		if IsAssign(in.Op) && i == 0 {
			continue
		}
		b.WriteString(" ")
		b.WriteString(in.Operands[i].String())
	}
	if len(in.Extras) > 0 {
		b.WriteString(" (")
		for i, e := range in.Extras {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.String())
		}
		b.WriteString(")")
	}
	return b.String()
}
