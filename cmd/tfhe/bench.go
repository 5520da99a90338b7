// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/tfhe"
	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/config"
	"github.com/luxfi/tfhe/internal/profile"
)

// benchOps lists the operations bench can time, in run order.
var benchOps = []string{"encrypt", "bootstrap", "gates"}

type benchEnv struct {
	params tfhe.Parameters
	enc    *tfhe.Encryptor
	eval   *tfhe.Evaluator
}

func (e *benchEnv) run(op string, iterations int) (time.Duration, error) {
	ct, err := e.enc.Encrypt(1)
	if err != nil {
		return 0, err
	}
	lut := tfhe.IdentityLookupTable(e.params)
	start := time.Now()
	for i := 0; i < iterations; i++ {
		switch op {
		case "encrypt":
			_, err = e.enc.Encrypt(uint64(i) % e.params.MessageModulus())
		case "bootstrap":
			_, err = e.eval.Bootstrap(ct, lut)
		case "gates":
			_, err = e.eval.AND(ct, ct)
		default:
			return 0, fmt.Errorf("unknown operation %q", op)
		}
		if err != nil {
			return 0, err
		}
	}
	return time.Since(start) / time.Duration(iterations), nil
}

func newBenchCmd(a *app) *cobra.Command {
	var (
		iterations int
		op         string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time key generation and evaluation, optionally under pprof",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations <= 0 {
				return fmt.Errorf("iterations must be positive, have %d", iterations)
			}
			ops := benchOps
			if op != "all" {
				ops = []string{op}
			}

			prof := profile.New(a.cfg.Profile, a.log)
			if err := prof.Start(); err != nil {
				return err
			}
			defer func() {
				if err := prof.Stop(); err != nil {
					a.log.Error("profile", zap.Error(err))
				}
			}()

			src, err := csprng.NewSource()
			if err != nil {
				return err
			}
			start := time.Now()
			keys, err := tfhe.NewKeyGenerator(a.params, src).WithLogger(a.log).GenKeyPair()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%-10s %v\n", a.params, "keygen", time.Since(start))

			eval, err := tfhe.NewEvaluator(a.params, keys.ServerKey)
			if err != nil {
				return err
			}
			env := &benchEnv{
				params: a.params,
				enc:    tfhe.NewEncryptor(a.params, keys.ClientKey, src.Encryption()),
				eval:   eval,
			}
			for _, name := range ops {
				per, err := env.run(name, iterations)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(out, "%-10s %v/op\n", name, per)
			}
			a.log.Info("memory", profile.MemStats()...)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&iterations, "iterations", 10, "iterations per operation")
	fs.StringVar(&op, "op", "all", "operation: encrypt, bootstrap, gates or all")
	fs.String(config.ProfileCPUKey, "", "write a CPU profile to this file")
	fs.String(config.ProfileMemKey, "", "write a heap profile to this file")
	fs.String(config.ProfileBlockKey, "", "write a block profile to this file")
	fs.String(config.ProfileMutexKey, "", "write a mutex profile to this file")
	return cmd
}
