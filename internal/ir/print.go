package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes a human-readable dump of a CFG to w: one block per section,
// `_blkN:` labels, one instruction per line. This mirrors the debug dump
// `original_source/ir/printer.py` produces for the Python implementation,
// adapted to this package's instruction shapes, and backs the CLI's
// -dump-ir flag.
func Fprint(w io.Writer, c *CFG) error {
	for _, b := range c.Blocks() {
		if _, err := fmt.Fprintf(w, "_blk%d: // preds=%v succs=%v\n", b.ID, b.Prev, b.Next); err != nil {
			return err
		}
		for _, in := range b.Instructions {
			if _, err := fmt.Fprintf(w, "\t%s\n", in.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sprint is the string-returning convenience wrapper around Fprint.
func Sprint(c *CFG) string {
	var sb strings.Builder
	_ = Fprint(&sb, c)
	return sb.String()
}

// FprintLinear writes a flat instruction dump of a pre-CFG instruction list,
// one per line, prefixed with its index — useful for inspecting leader
// detection input.
func FprintLinear(w io.Writer, body []Instruction) error {
	for i, in := range body {
		if _, err := fmt.Fprintf(w, "%4d\t%s\n", i, in.String()); err != nil {
			return err
		}
	}
	return nil
}
