package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dcpu16cc/internal/dcpuasm"
)

func newAsmCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "asm FILE",
		Short: "Assemble DCPU-16 text into a relocatable object (-c)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			obj, diags := dcpuasm.Assemble(string(data))
			if len(diags) > 0 {
				for _, d := range diags {
					fmt.Fprintln(os.Stderr, d.Error())
				}
				return fmt.Errorf("asm: %d error(s)", len(diags))
			}

			encoded, err := json.MarshalIndent(obj, "", "  ")
			if err != nil {
				return err
			}

			out := os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			_, err = out.Write(append(encoded, '\n'))
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "output object file (- for stdout)")
	return cmd
}
