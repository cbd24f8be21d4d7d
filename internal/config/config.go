// Package config binds the CLI's non-positional options to flags and an
// optional config file via github.com/spf13/viper layered over
// github.com/spf13/pflag, per SPEC_FULL.md's ambient-stack section. Nothing
// in spec.md's core (§§3-4) reads from this package directly — only
// cmd/dcpu16cc and internal/driver do, keeping the compiler core
// side-effect-free per spec.md §5.
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved set of driver-level options: how many physical
// registers the allocator targets, how many peephole passes to cap at (0
// means run to fixed point), and whether to dump intermediate IR.
type Config struct {
	NumRegisters int    `mapstructure:"registers"`
	MaxPeephole  int    `mapstructure:"max_peephole"`
	DumpIR       bool   `mapstructure:"dump_ir"`
	Output       string `mapstructure:"output"`
}

// Default returns the configuration a bare `dcpu16cc compile` run uses
// absent any flags or config file: seven general-purpose colors (spec.md
// §4.8's fixed register file) and no peephole pass cap.
func Default() Config {
	return Config{NumRegisters: 7, MaxPeephole: 0, Output: "-"}
}

// Load resolves a Config from flags, an optional config file named by
// cfgFile (TOML or YAML, sniffed by viper from its extension; empty means
// "search the working directory for dcpu16cc.{toml,yaml}"), and a
// DCPU16CC_-prefixed environment variable overlay, in viper's standard
// precedence order (flag > env > config file > default).
func Load(flags *pflag.FlagSet, cfgFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DCPU16CC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("registers", cfg.NumRegisters)
	v.SetDefault("max_peephole", cfg.MaxPeephole)
	v.SetDefault("dump_ir", cfg.DumpIR)
	v.SetDefault("output", cfg.Output)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	} else {
		v.SetConfigName("dcpu16cc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Config{}, err
			}
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, err
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, err
	}
	return out, nil
}
