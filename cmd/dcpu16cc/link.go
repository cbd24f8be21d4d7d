package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dcpu16cc/internal/linker"
	"dcpu16cc/internal/objfmt"
)

func newLinkCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "link FILE...",
		Short: "Link relocatable objects into a flat big-endian binary image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := linker.New()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				var obj objfmt.Object
				if err := json.Unmarshal(data, &obj); err != nil {
					return fmt.Errorf("link: %s: %w", path, err)
				}
				l.AppendObject(&obj)
			}

			diags := l.Link()
			if len(diags) > 0 {
				for _, d := range diags {
					fmt.Fprintln(os.Stderr, d.Error())
				}
				return fmt.Errorf("link: %d error(s)", len(diags))
			}

			image := linker.Image(l.Words())
			out := os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			_, err := out.Write(image)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "output binary image (- for stdout)")
	return cmd
}
