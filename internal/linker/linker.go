// Package linker implements the object linker spec.md §6 describes: objects
// are concatenated, every object's internal (local) and global-symbol
// relocations are rebased by its load offset, global references are
// resolved against the accumulated symbol table, and the result is a flat
// word image. This is a direct, error-accumulating port of
// `_examples/original_source/asm/dcpu16/linker.py`'s Dcpu16Linker, using
// Go's error-return idiom (spec.md §7's "assembler/linker diagnostics are
// reported and accumulated" rule) instead of the Python original's
// print-and-set-a-flag style.
package linker

import (
	"fmt"

	"dcpu16cc/internal/objfmt"
)

// Diagnostic is one accumulated linker error (undefined symbol, duplicate
// definition). Linking never stops at the first one — every object is
// still appended and every reference still checked, matching the Python
// original's got_errors-but-keep-going behavior.
type Diagnostic struct {
	Message string
}

func (d Diagnostic) Error() string { return d.Message }

// Linker accumulates objects into one flat word buffer, rebasing and
// resolving relocations as each is appended.
type Linker struct {
	words        []uint16
	globalRelocs []objfmt.GlobalReloc
	localRelocs  []int
	symbols      map[string]int
	diagnostics  []Diagnostic
}

// New returns an empty linker.
func New() *Linker {
	return &Linker{symbols: make(map[string]int)}
}

// AppendObject concatenates obj onto the buffer, rebasing its local
// relocations and recording its global ones and exported symbols at their
// post-rebase positions. A duplicate symbol definition is reported as a
// diagnostic but does not stop linking — the earlier definition wins.
func (l *Linker) AppendObject(obj *objfmt.Object) {
	offset := len(l.words)

	l.words = append(l.words, obj.Words...)

	for _, reloc := range obj.LocalRelocs {
		pos := offset + reloc
		l.localRelocs = append(l.localRelocs, pos)
		l.words[pos] += uint16(offset)
	}

	for _, g := range obj.GlobalRelocs {
		l.globalRelocs = append(l.globalRelocs, objfmt.GlobalReloc{Name: g.Name, Pos: offset + g.Pos})
	}

	for name, pos := range obj.Globals {
		if _, dup := l.symbols[name]; dup {
			l.reportError(fmt.Sprintf("multiple definitions of symbol `%s`", name))
			continue
		}
		l.symbols[name] = pos + offset
	}
}

// Link resolves every global relocation against the accumulated symbol
// table, patching the corresponding word in place. Returns every
// diagnostic accumulated across AppendObject and Link (undefined symbols,
// duplicate definitions); a non-empty return corresponds to spec.md §7's
// "non-zero exit code... if any occurred".
func (l *Linker) Link() []Diagnostic {
	for _, ref := range l.globalRelocs {
		pos, ok := l.symbols[ref.Name]
		if !ok {
			l.reportError(fmt.Sprintf("undefined symbol `%s` referenced", ref.Name))
			continue
		}
		l.words[ref.Pos] = uint16(pos)
	}
	return l.diagnostics
}

func (l *Linker) reportError(msg string) {
	l.diagnostics = append(l.diagnostics, Diagnostic{Message: msg})
}

// Words returns the final flat word image. Only meaningful once Link has
// been called with no diagnostics.
func (l *Linker) Words() []uint16 {
	out := make([]uint16, len(l.words))
	copy(out, l.words)
	return out
}

// Image renders Words as a big-endian byte image, two bytes per word, per
// spec.md §6.
func Image(words []uint16) []byte {
	out := make([]byte, 2*len(words))
	for i, w := range words {
		out[2*i] = byte(w >> 8)
		out[2*i+1] = byte(w)
	}
	return out
}
