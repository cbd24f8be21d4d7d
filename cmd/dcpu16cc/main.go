// Command dcpu16cc is the CLI entry point: compile (front-end JSON IR ->
// assembly), asm (assembly -> object), and link (objects -> flat image)
// subcommands, mirroring the -E/-S/-c/-o flag surface spec.md §6 names,
// built with github.com/spf13/cobra per SPEC_FULL.md's ambient-stack
// section.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dcpu16cc/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dcpu16cc",
		Short: "A compiler middle/back end for a 16-bit word-addressable virtual processor",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a dcpu16cc config file (TOML/YAML)")
	root.AddCommand(newCompileCmd(), newAsmCmd(), newLinkCmd())
	return root
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(cmd.Flags(), cfgFile)
}
