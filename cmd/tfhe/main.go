// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command tfhe generates keys, encrypts, decrypts and bootstraps from the
// command line.
//
// Usage:
//
//	tfhe params
//	tfhe keygen --params PMessage2Carry2 --out keys/
//	tfhe encrypt --key keys/client.key --message 3 --out ct.bin
//	tfhe bootstrap --key keys/server.key --in ct.bin --table 0,1,4,9 --out out.bin
//	tfhe decrypt --key keys/client.key --in out.bin
//	tfhe bench --params PMessage2Carry2 --cpu cpu.pprof
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/tfhe"
	"github.com/luxfi/tfhe/internal/config"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    config.Config
	params tfhe.Parameters
	log    *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	cmd := &cobra.Command{
		Use:           "tfhe",
		Short:         "TFHE key generation, encryption and programmable bootstrapping",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.BuildViper(cmd.Flags())
			if err != nil {
				return err
			}
			if a.cfg, err = config.NewConfig(v); err != nil {
				return err
			}
			if a.params, err = a.cfg.Parameters(); err != nil {
				return err
			}
			a.log, err = a.cfg.Logger()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	fs := cmd.PersistentFlags()
	fs.String(config.ConfigFileKey, "", "path to a config file")
	fs.String(config.LogLevelKey, "warn", "log level: debug, info, warn or error")
	fs.Bool(config.LogDevelopmentKey, true, "human-readable development logging")
	fs.String(config.ParamsKey, "PMessage2Carry2", "named parameter set")

	cmd.AddCommand(newParamsCmd())
	cmd.AddCommand(newKeygenCmd(a))
	cmd.AddCommand(newEncryptCmd(a))
	cmd.AddCommand(newDecryptCmd(a))
	cmd.AddCommand(newBootstrapCmd(a))
	cmd.AddCommand(newBenchCmd(a))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
