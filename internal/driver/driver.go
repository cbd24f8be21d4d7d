// Package driver orchestrates the full pipeline spec.md §2 describes —
// CFG construction, SSA, register allocation, lowering, and peephole
// optimization — over a batch of front-end procedures, logging each stage
// with go.uber.org/zap the way SPEC_FULL.md's ambient-stack section
// describes. The core packages (internal/cfg, internal/ssa,
// internal/regalloc, internal/codegen, internal/peephole) never import
// zap themselves; only this package and cmd/dcpu16cc do, so the core stays
// side-effect-free per spec.md §5.
package driver

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dcpu16cc/internal/cfg"
	"dcpu16cc/internal/codegen"
	"dcpu16cc/internal/ir"
	"dcpu16cc/internal/peephole"
	"dcpu16cc/internal/regalloc"
	"dcpu16cc/internal/ssa"
)

// Options controls one compilation run.
type Options struct {
	NumRegisters int
	DumpIR       bool
	MaxPeephole  int // 0 means run the peephole optimizer to its fixed point
}

// Result is one procedure's compiled output.
type Result struct {
	Name     string
	Assembly string
}

// CompileAll lowers every procedure to DCPU-16 assembly text, logging
// per-stage progress at zap's Info/Debug levels. An internal invariant
// violation in any stage (spec.md §7's "programmer error in core input")
// panics, and the panic is not recovered, so it aborts the whole run.
func CompileAll(log *zap.Logger, procs []*ir.Procedure, opts Options) []Result {
	results := make([]Result, 0, len(procs))
	for _, p := range procs {
		results = append(results, compileOne(log, p, opts))
	}
	return results
}

func compileOne(log *zap.Logger, p *ir.Procedure, opts Options) Result {
	plog := log.With(zap.String("proc", p.Name))
	plog.Info("lowering procedure")

	c := cfg.Build(p.Body)
	plog.Debug("built CFG", zap.Int("blocks", c.NumBlocks()))

	ssa.Transform(c)
	plog.Debug("built SSA form")

	numRegs := opts.NumRegisters
	if numRegs <= 0 {
		numRegs = codegen.NumGPRegisters
	}
	alloc := regalloc.Allocate(c, numRegs)
	spilled := countSpills(c)
	if spilled > 0 {
		plog.Info("spilled live ranges", zap.Int("count", spilled))
	}

	lines := codegen.Lower(p, c, alloc)
	asm := strings.Join(lines, "\n") + "\n"
	asm = peephole.Optimize(asm, opts.MaxPeephole)

	if opts.DumpIR {
		plog.Info("final SSA form", zap.String("ir", ir.Sprint(c)))
	}

	plog.Info("done")
	return Result{Name: p.Name, Assembly: asm}
}

func countSpills(c *ir.CFG) int {
	seen := map[string]bool{}
	n := 0
	for _, blk := range c.Blocks() {
		for _, in := range blk.Instructions {
			if in.Op != ir.OpStore {
				continue
			}
			key := fmt.Sprint(in.Extras)
			if !seen[key] {
				seen[key] = true
				n++
			}
		}
	}
	return n
}
