// Package frontend stands in for the out-of-scope source-language lexer
// and parser (spec.md §1): it defines the JSON shape of a front-end
// `Procedure` handoff (name/parameters/exported/body) and a loader that
// turns it into `internal/ir.Procedure` values via `internal/irbuilder`,
// the same assembler every real front end would use to resolve its forward
// branch targets. This lets `cmd/dcpu16cc compile` be driven end to end
// from a text fixture without reimplementing the C-like parser spec.md §1
// scopes out, grounded on `_examples/original_source/ir/program.py`'s
// Procedure (name/params/body/export) and `parsing/ir_translator.py`'s
// emission of IrInstructions with label-based branch targets.
package frontend

import (
	"encoding/json"
	"fmt"

	"dcpu16cc/internal/ir"
	"dcpu16cc/internal/irbuilder"
)

// Program is the top-level JSON document: every procedure the front end
// handed off for this compilation unit.
type Program struct {
	Procedures []Procedure `json:"procedures"`
}

// Procedure mirrors ir.Procedure's shape, but with a linear instruction
// list expressed over label names instead of pre-resolved Offset operands
// — exactly the form a parser emits before an assembler pass exists to fix
// them up.
type Procedure struct {
	Name         string        `json:"name"`
	Exported     bool          `json:"exported"`
	Parameters   []uint32      `json:"parameters"`
	Instructions []Instruction `json:"instructions"`
}

// Instruction is either a label marker (Label set, everything else zero)
// or a real instruction. Op names match internal/ir's opcode mnemonics
// (§3's opcode table, e.g. "ASSIGN_ADD", "JE", "RET"). Branch opcodes omit
// Operands' target slot and instead name their destination via Target;
// Comparands supplies the two comparands for conditional jumps.
type Instruction struct {
	Label      string    `json:"label,omitempty"`
	Op         string    `json:"op,omitempty"`
	Dest       *Operand  `json:"dest,omitempty"`
	Operands   []Operand `json:"operands,omitempty"`
	Target     string    `json:"target,omitempty"`
	Comparands []Operand `json:"comparands,omitempty"`
	Extras     []Operand `json:"extras,omitempty"`
}

// Operand is the JSON encoding of ir.Operand; Kind selects which other
// field is meaningful.
type Operand struct {
	Kind      string `json:"kind"` // "const", "var", "name"
	Value     int64  `json:"value,omitempty"`
	Base      uint32 `json:"base,omitempty"`
	Subscript uint32 `json:"subscript,omitempty"`
	Special   uint32 `json:"special,omitempty"`
	Name      string `json:"name,omitempty"`
}

func (o Operand) toIR() ir.Operand {
	switch o.Kind {
	case "const":
		return ir.Const(o.Value)
	case "var":
		return ir.Var(ir.MakeVar(o.Base, o.Subscript, o.Special))
	case "name":
		return ir.Name(o.Name)
	default:
		panic("frontend: unknown operand kind " + o.Kind)
	}
}

// Load parses a JSON-encoded Program and lowers every procedure into
// internal/ir form, resolving label references through internal/irbuilder.
func Load(data []byte) ([]*ir.Procedure, error) {
	var doc Program
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("frontend: invalid program JSON: %w", err)
	}

	procs := make([]*ir.Procedure, 0, len(doc.Procedures))
	for _, p := range doc.Procedures {
		proc, err := lowerProcedure(p)
		if err != nil {
			return nil, fmt.Errorf("frontend: procedure %q: %w", p.Name, err)
		}
		procs = append(procs, proc)
	}
	return procs, nil
}

func lowerProcedure(p Procedure) (proc *ir.Procedure, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	b := irbuilder.New()
	labels := map[string]irbuilder.LabelID{}
	labelFor := func(name string) irbuilder.LabelID {
		if id, ok := labels[name]; ok {
			return id
		}
		id := b.MakeLabel()
		labels[name] = id
		return id
	}

	for _, in := range p.Instructions {
		if in.Label != "" {
			b.MarkLabel(labelFor(in.Label))
			continue
		}

		op := parseOp(in.Op)
		if ir.IsBranch(op) {
			comparands := make([]ir.Operand, len(in.Comparands))
			for i, c := range in.Comparands {
				comparands[i] = c.toIR()
			}
			b.EmitBranch(op, labelFor(in.Target), comparands...)
			continue
		}

		operands := make([]ir.Operand, 0, len(in.Operands)+1)
		if in.Dest != nil {
			operands = append(operands, in.Dest.toIR())
		}
		for _, o := range in.Operands {
			operands = append(operands, o.toIR())
		}
		inst := ir.NewInstruction(op, operands...)
		if ir.HasExtras(op) && len(in.Extras) > 0 {
			extras := make([]ir.Operand, len(in.Extras))
			for i, e := range in.Extras {
				extras[i] = e.toIR()
			}
			inst = inst.WithExtras(extras...)
		}
		b.Emit(inst)
	}

	b.FixLabels()

	return &ir.Procedure{
		Name:       p.Name,
		Parameters: p.Parameters,
		Body:       b.Instructions(),
		Exported:   p.Exported,
	}, nil
}

var opNames = map[string]ir.Op{
	"ASSIGN": ir.OpAssign, "ASSIGN_NOT": ir.OpAssignNot, "ASSIGN_NEG": ir.OpAssignNeg,
	"ASSIGN_ADDROF": ir.OpAssignAddrOf, "ASSIGN_READ": ir.OpAssignRead,
	"ASSIGN_ADD": ir.OpAssignAdd, "ASSIGN_SUB": ir.OpAssignSub, "ASSIGN_MUL": ir.OpAssignMul,
	"ASSIGN_DIV": ir.OpAssignDiv, "ASSIGN_MOD": ir.OpAssignMod,
	"ASSIGN_UADD": ir.OpAssignUAdd, "ASSIGN_USUB": ir.OpAssignUSub, "ASSIGN_UMUL": ir.OpAssignUMul,
	"ASSIGN_UDIV": ir.OpAssignUDiv, "ASSIGN_UMOD": ir.OpAssignUMod,
	"ASSIGN_OR": ir.OpAssignOr, "ASSIGN_AND": ir.OpAssignAnd, "ASSIGN_XOR": ir.OpAssignXor,
	"ASSIGN_SHL": ir.OpAssignShl, "ASSIGN_SHR": ir.OpAssignShr,
	"WRITE": ir.OpWrite,
	"JMP":   ir.OpJmp, "RET": ir.OpRet, "RETN": ir.OpRetn,
	"JE": ir.OpJe, "JNE": ir.OpJne, "JL": ir.OpJl, "JLE": ir.OpJle, "JG": ir.OpJg, "JGE": ir.OpJge,
	"ASSIGN_CALL": ir.OpAssignCall, "CALL": ir.OpCall,
	"ASSIGN_PHI": ir.OpAssignPhi,
}

func parseOp(name string) ir.Op {
	if op, ok := opNames[name]; ok {
		return op
	}
	panic("frontend: unknown opcode " + name)
}
