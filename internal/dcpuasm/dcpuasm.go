// Package dcpuasm is a minimal text assembler for the mnemonic syntax
// spec.md §6 describes (`SET dst, src` two-operand form, registers `A B C X
// Y Z I J SP PC EX`, memory `[...]`, stack pseudo-operands `PUSH`/`POP`/
// `PEEK`/`PICK n`) into the sixteen-bit-word DCPU-16 instruction encoding,
// grounded on `_examples/original_source/asm/dcpu16/assembler.py`'s
// Dcpu16Assembler (label bookkeeping, `get_object`/`fix_labels` shape) and
// on the DCPU-16 1.7 hardware instruction-word layout it targets.
//
// The front end's full instruction-encoding table is named as an
// out-of-scope collaborator in spec.md §1; this package is a deliberately
// narrowed supplement — no macro preprocessor, no `.org`/conditional-
// assembly directives, no multi-line expressions — that exists so the
// pipeline's output is assemblable and linkable end to end, not a claim of
// completeness.
package dcpuasm

import (
	"fmt"
	"strconv"
	"strings"

	"dcpu16cc/internal/objfmt"
)

var registerField = map[string]uint16{
	"A": 0, "B": 1, "C": 2, "X": 3, "Y": 4, "Z": 5, "I": 6, "J": 7,
}

var basicOpcode = map[string]uint16{
	"SET": 0x01, "ADD": 0x02, "SUB": 0x03, "MUL": 0x04, "MLI": 0x05,
	"DIV": 0x06, "DVI": 0x07, "MOD": 0x08, "MDI": 0x09, "AND": 0x0a,
	"BOR": 0x0b, "XOR": 0x0c, "SHR": 0x0d, "ASR": 0x0e, "SHL": 0x0f,
	"IFB": 0x10, "IFC": 0x11, "IFE": 0x12, "IFN": 0x13, "IFG": 0x14,
	"IFA": 0x15, "IFL": 0x16, "IFU": 0x17, "ADX": 0x1a, "SBX": 0x1b,
	"STI": 0x1e, "STD": 0x1f,
}

var specialOpcode = map[string]uint16{
	"JSR": 0x01,
}

// Diagnostic is one accumulated assembler error.
type Diagnostic struct {
	Line    int
	Message string
}

func (d Diagnostic) Error() string { return fmt.Sprintf("line %d: %s", d.Line, d.Message) }

type labelUse struct {
	name string
	pos  int
	line int
}

// Assembler accumulates one translation unit's worth of assembly text into
// an object.
type Assembler struct {
	words       []uint16
	labels      map[string]int
	labelUses   []labelUse
	externs     map[string]bool
	globals     map[string]bool
	currentLbl  string // most recent non-local label, for qualifying ".local" labels
	diagnostics []Diagnostic
}

// New returns an empty assembler.
func New() *Assembler {
	return &Assembler{
		labels:  make(map[string]int),
		externs: make(map[string]bool),
		globals: make(map[string]bool),
	}
}

// Assemble tokenizes and encodes src line by line, returning the finished
// object and any diagnostics. Diagnostics are accumulated, not fatal —
// assembly continues past the error to surface as many as possible, per
// spec.md §7.
func Assemble(src string) (*objfmt.Object, []Diagnostic) {
	a := New()
	for i, raw := range strings.Split(src, "\n") {
		a.assembleLine(i+1, raw)
	}
	return a.finish()
}

func (a *Assembler) assembleLine(lineNo int, raw string) {
	line := stripComment(raw)
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	switch {
	case strings.HasPrefix(line, ".global "):
		a.globals[strings.TrimSpace(line[len(".global "):])] = true
		return
	case strings.HasPrefix(line, ".extern "):
		a.externs[strings.TrimSpace(line[len(".extern "):])] = true
		return
	case strings.HasPrefix(line, ".dw "):
		v := a.parseImmediate(strings.TrimSpace(line[len(".dw "):]))
		a.words = append(a.words, uint16(v))
		return
	case strings.HasPrefix(line, ".fill "):
		a.assembleFill(lineNo, strings.TrimSpace(line[len(".fill "):]))
		return
	case strings.HasSuffix(line, ":"):
		a.markLabel(lineNo, strings.TrimSuffix(line, ":"))
		return
	}

	a.assembleInstruction(lineNo, line)
}

func (a *Assembler) assembleFill(lineNo int, rest string) {
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		a.errorf(lineNo, "malformed .fill directive")
		return
	}
	count := a.parseImmediate(strings.TrimSpace(parts[0]))
	v := uint16(a.parseImmediate(strings.TrimSpace(parts[1])))
	for i := int64(0); i < count; i++ {
		a.words = append(a.words, v)
	}
}

// markLabel records name at the current word position, qualifying a
// block-local name (one starting with `.`, matching internal/codegen's
// `.blkN`/`.skipN` labels) against the most recently defined non-local
// label — the same leading-marker convention
// `_examples/original_source/asm/dcpu16/assembler.py`'s `_mark_label` uses
// for names starting with `_`.
func (a *Assembler) markLabel(lineNo int, name string) {
	if strings.HasPrefix(name, ".") {
		if a.currentLbl == "" {
			a.errorf(lineNo, "local label %q defined before any enclosing label", name)
			return
		}
		name = a.currentLbl + name
	} else {
		a.currentLbl = name
	}
	a.labels[name] = len(a.words)
}

func (a *Assembler) assembleInstruction(lineNo int, line string) {
	fields := strings.SplitN(line, " ", 2)
	mnem := strings.ToUpper(fields[0])
	var operandText string
	if len(fields) > 1 {
		operandText = fields[1]
	}
	operands := splitOperands(operandText)

	if op, ok := specialOpcode[mnem]; ok {
		if len(operands) != 1 {
			a.errorf(lineNo, "%s takes exactly one operand", mnem)
			return
		}
		field, extra, hasExtra, sym := a.encodeOperand(lineNo, operands[0])
		pos := len(a.words)
		a.words = append(a.words, (field<<10)|(op<<5))
		if hasExtra {
			if sym != "" {
				a.labelUses = append(a.labelUses, labelUse{name: sym, pos: pos + 1, line: lineNo})
			}
			a.words = append(a.words, extra)
		}
		return
	}

	op, ok := basicOpcode[mnem]
	if !ok {
		a.errorf(lineNo, "unknown mnemonic %q", fields[0])
		return
	}
	if len(operands) != 2 {
		a.errorf(lineNo, "%s takes exactly two operands", mnem)
		return
	}

	bField, bExtra, bHasExtra, bSym := a.encodeOperand(lineNo, operands[0])
	aField, aExtra, aHasExtra, aSym := a.encodeOperand(lineNo, operands[1])

	pos := len(a.words)
	a.words = append(a.words, (aField<<10)|(bField<<5)|op)

	if aHasExtra {
		if aSym != "" {
			a.labelUses = append(a.labelUses, labelUse{name: aSym, pos: len(a.words), line: lineNo})
		}
		a.words = append(a.words, aExtra)
	}
	if bHasExtra {
		if bSym != "" {
			a.labelUses = append(a.labelUses, labelUse{name: bSym, pos: len(a.words), line: lineNo})
		}
		a.words = append(a.words, bExtra)
	}
	_ = pos
}

// encodeOperand translates one operand's text into the DCPU-16 6-bit value
// field, plus an optional trailing word (a literal, an offset, or a
// not-yet-resolved symbol's placeholder).
func (a *Assembler) encodeOperand(lineNo int, text string) (field uint16, extra uint16, hasExtra bool, symbol string) {
	text = strings.TrimSpace(text)

	switch text {
	case "PUSH", "POP":
		return 0x18, 0, false, ""
	case "PEEK":
		return 0x19, 0, false, ""
	case "SP":
		return 0x1b, 0, false, ""
	case "PC":
		return 0x1c, 0, false, ""
	case "EX":
		return 0x1d, 0, false, ""
	}

	if reg, ok := registerField[text]; ok {
		return reg, 0, false, ""
	}

	if strings.HasPrefix(text, "PICK ") {
		n := a.parseImmediate(strings.TrimSpace(text[len("PICK "):]))
		return 0x1a, uint16(n), true, ""
	}

	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		return a.encodeMemory(lineNo, text[1:len(text)-1])
	}

	if isImmediateText(text) {
		n := a.parseImmediate(text)
		if n >= -1 && n <= 30 {
			return uint16(0x21 + n), 0, false, ""
		}
		return 0x1f, uint16(n), true, ""
	}

	// A bare name: a global/local label or an extern symbol, always
	// resolved as a trailing literal word (spec.md §6's Name/Label
	// operand kinds don't fit in the packed-literal range).
	return 0x1f, 0, true, a.qualify(text)
}

func (a *Assembler) encodeMemory(lineNo int, inner string) (field uint16, extra uint16, hasExtra bool, symbol string) {
	inner = strings.TrimSpace(inner)

	base, offset, hasOffset := splitMemoryExpr(inner)

	if reg, ok := registerField[base]; ok {
		if !hasOffset {
			return 0x08 + reg, 0, false, ""
		}
		return 0x10 + reg, uint16(offset), true, ""
	}
	if base == "SP" {
		if !hasOffset {
			return 0x19, 0, false, "" // PEEK
		}
		return 0x1a, uint16(offset), true, "" // PICK n
	}
	if !hasOffset && isImmediateText(base) {
		n := a.parseImmediate(base)
		return 0x1e, uint16(n), true, ""
	}
	if !hasOffset {
		// [name]: dereference of a symbol's address.
		return 0x1e, 0, true, a.qualify(base)
	}
	a.errorf(lineNo, "malformed memory operand [%s]", inner)
	return 0, 0, false, ""
}

// splitMemoryExpr splits "REG + N" / "REG - N" into its base and signed
// offset; a bare "REG" has no offset.
func splitMemoryExpr(s string) (base string, offset int64, hasOffset bool) {
	if idx := strings.Index(s, " + "); idx >= 0 {
		n, _ := strconv.ParseInt(strings.TrimSpace(s[idx+3:]), 10, 64)
		return strings.TrimSpace(s[:idx]), n, true
	}
	if idx := strings.Index(s, " - "); idx >= 0 {
		n, _ := strconv.ParseInt(strings.TrimSpace(s[idx+3:]), 10, 64)
		return strings.TrimSpace(s[:idx]), -n, true
	}
	return s, 0, false
}

func isImmediateText(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return len(s) > 2
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (a *Assembler) parseImmediate(s string) int64 {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var n int64
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, _ := strconv.ParseUint(s[2:], 16, 32)
		n = int64(v)
	} else {
		v, _ := strconv.ParseInt(s, 10, 32)
		n = v
	}
	if neg {
		n = -n
	}
	return n
}

// qualify rewrites a block-local reference (one starting with `.`) into
// its fully-qualified form against the label it was used under; any other
// name passes through unchanged (it's a top-level procedure or global
// symbol name).
func (a *Assembler) qualify(name string) string {
	if strings.HasPrefix(name, ".") && a.currentLbl != "" {
		return a.currentLbl + name
	}
	return name
}

func (a *Assembler) errorf(line int, format string, args ...any) {
	a.diagnostics = append(a.diagnostics, Diagnostic{Line: line, Message: fmt.Sprintf(format, args...)})
}

func stripComment(line string) string {
	if idx := strings.Index(line, ";"); idx >= 0 {
		return line[:idx]
	}
	return line
}

// splitOperands splits a comma-separated operand list, respecting bracketed
// memory operands that may themselves contain no commas (this assembler's
// memory syntax never does, so a plain top-level split is sufficient).
func splitOperands(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// finish resolves every recorded label use against the label table,
// producing local relocations for resolved in-object references and global
// relocations for extern ones, and reports undefined symbols.
func (a *Assembler) finish() (*objfmt.Object, []Diagnostic) {
	obj := objfmt.New()
	obj.Words = append([]uint16(nil), a.words...)

	for _, use := range a.labelUses {
		if pos, ok := a.labels[use.name]; ok {
			obj.Words[use.pos] += uint16(pos)
			obj.LocalRelocs = append(obj.LocalRelocs, use.pos)
			continue
		}
		if a.externs[use.name] {
			obj.GlobalRelocs = append(obj.GlobalRelocs, objfmt.GlobalReloc{Name: use.name, Pos: use.pos})
			continue
		}
		a.errorf(use.line, "undefined symbol %q referenced", use.name)
	}

	for name := range a.globals {
		pos, ok := a.labels[name]
		if !ok {
			a.errorf(0, "global defined for undefined symbol %q", name)
			continue
		}
		obj.Globals[name] = pos
	}

	return obj, a.diagnostics
}
