package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dcpu16cc/internal/driver"
	"dcpu16cc/internal/frontend"
)

func newCompileCmd() *cobra.Command {
	var output string
	var registers int
	var dumpIR bool
	var maxPeephole int

	cmd := &cobra.Command{
		Use:   "compile FILE",
		Short: "Lower a front-end JSON IR program to DCPU-16 assembly (-S)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("registers") {
				cfg.NumRegisters = registers
			}
			if cmd.Flags().Changed("dump-ir") {
				cfg.DumpIR = dumpIR
			}
			if cmd.Flags().Changed("max-peephole") {
				cfg.MaxPeephole = maxPeephole
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			procs, err := frontend.Load(data)
			if err != nil {
				return err
			}

			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			results := driver.CompileAll(log, procs, driver.Options{
				NumRegisters: cfg.NumRegisters,
				DumpIR:       cfg.DumpIR,
				MaxPeephole:  cfg.MaxPeephole,
			})

			out := os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			for _, r := range results {
				fmt.Fprint(out, r.Assembly)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file (- for stdout)")
	cmd.Flags().IntVar(&registers, "registers", 7, "number of general-purpose registers the allocator targets")
	cmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "print the final SSA form to stderr logs")
	cmd.Flags().IntVar(&maxPeephole, "max-peephole", 0, "cap on peephole optimizer passes (0 runs to the fixed point)")
	return cmd
}
