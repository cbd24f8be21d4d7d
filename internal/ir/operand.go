package ir

import "fmt"

// OperandKind tags the variant held by an Operand.
type OperandKind int

const (
	OperandInvalid OperandKind = iota
	OperandConst
	OperandVar
	OperandLabel
	OperandOffset
	OperandName
	OperandBlockRef
)

// VarID packs (base, subscript, special) into a single comparable integer.
// base identifies the source-level name, subscript identifies the SSA
// version (0 before SSA construction), and special differentiates spill
// temporaries sharing a base. Packing keeps equality and map-keying cheap:
// two VarIDs are equal iff all three components match.
//
// Layout (most to least significant): 24 bits base | 24 bits subscript | 16
// bits special. This bounds the compiler to 2^24 distinct source names per
// procedure and 2^24 SSA versions per name, which is far beyond anything a
// single procedure can produce.
type VarID uint64

const (
	specialBits    = 16
	subscriptBits  = 24
	baseBits       = 24
	specialMask    = 1<<specialBits - 1
	subscriptMask  = 1<<subscriptBits - 1
	baseMask       = 1<<baseBits - 1
	subscriptShift = specialBits
	baseShift      = specialBits + subscriptBits
)

// MakeVar packs the three components into a VarID. It panics if any
// component exceeds its bit budget — an internal invariant violation, not a
// user-facing error.
func MakeVar(base, subscript, special uint32) VarID {
	if base > baseMask || subscript > subscriptMask || special > specialMask {
		panic("ir: variable id component overflow")
	}
	return VarID(uint64(base)<<baseShift | uint64(subscript)<<subscriptShift | uint64(special))
}

// Base returns the source-level name component of id.
func (id VarID) Base() uint32 { return uint32((uint64(id) >> baseShift) & baseMask) }

// Subscript returns the SSA version component of id.
func (id VarID) Subscript() uint32 { return uint32((uint64(id) >> subscriptShift) & subscriptMask) }

// Special returns the spill-differentiation component of id.
func (id VarID) Special() uint32 { return uint32(uint64(id) & specialMask) }

// WithSubscript returns a copy of id with its subscript replaced; base and
// special are preserved. Used by the SSA renamer.
func (id VarID) WithSubscript(subscript uint32) VarID {
	return MakeVar(id.Base(), subscript, id.Special())
}

// WithSpecial returns a copy of id with a bumped special field, used to mint
// a fresh spill temporary derived from a live range's representative member.
func (id VarID) WithSpecial(special uint32) VarID {
	return MakeVar(id.Base(), id.Subscript(), special)
}

func (id VarID) String() string {
	if id.Special() != 0 {
		return fmt.Sprintf("v%d.%d#%d", id.Base(), id.Subscript(), id.Special())
	}
	return fmt.Sprintf("v%d.%d", id.Base(), id.Subscript())
}

// BlockID identifies a basic block within a CFG.
type BlockID int

// Operand is a tagged variant. Exactly one of the typed fields is valid,
// selected by Kind.
type Operand struct {
	Kind     OperandKind
	ConstVal int64
	Var      VarID
	LabelID  int
	OffsetV  int64
	NameV    string
	Block    BlockID
}

// Const builds a constant operand.
func Const(v int64) Operand { return Operand{Kind: OperandConst, ConstVal: v} }

// Var builds a variable-reference operand.
func Var(id VarID) Operand { return Operand{Kind: OperandVar, Var: id} }

// Label builds a label operand (used for call targets resolved at link
// time).
func Label(id int) Operand { return Operand{Kind: OperandLabel, LabelID: id} }

// Offset builds a relative-branch operand, used before CFG construction.
func Offset(v int64) Operand { return Operand{Kind: OperandOffset, OffsetV: v} }

// Name builds a named-global operand.
func Name(s string) Operand { return Operand{Kind: OperandName, NameV: s} }

// BlockRef builds a direct block-reference operand, used after CFG
// construction rewrites branch targets.
func BlockRef(b BlockID) Operand { return Operand{Kind: OperandBlockRef, Block: b} }

// Equal reports component-wise equality.
func (o Operand) Equal(other Operand) bool {
	if o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case OperandConst:
		return o.ConstVal == other.ConstVal
	case OperandVar:
		return o.Var == other.Var
	case OperandLabel:
		return o.LabelID == other.LabelID
	case OperandOffset:
		return o.OffsetV == other.OffsetV
	case OperandName:
		return o.NameV == other.NameV
	case OperandBlockRef:
		return o.Block == other.Block
	default:
		return true
	}
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandConst:
		return fmt.Sprintf("%d", o.ConstVal)
	case OperandVar:
		return o.Var.String()
	case OperandLabel:
		return fmt.Sprintf("L%d", o.LabelID)
	case OperandOffset:
		return fmt.Sprintf("%+d", o.OffsetV)
	case OperandName:
		return o.NameV
	case OperandBlockRef:
		return fmt.Sprintf("blk%d", o.Block)
	default:
		return "<invalid>"
	}
}

// IsVar reports whether o holds a Var operand.
func (o Operand) IsVar() bool { return o.Kind == OperandVar }
