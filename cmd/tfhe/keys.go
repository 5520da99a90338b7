// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/tfhe"
	"github.com/luxfi/tfhe/csprng"
)

const (
	clientKeyFile = "client.key"
	serverKeyFile = "server.key"
	publicKeyFile = "public.key"
)

func writeRecord(path string, v encoding.BinaryMarshaler) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readRecord(path string, v encoding.BinaryUnmarshaler) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := v.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func newParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "List the named parameter sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARAMETERS\tDESCRIPTION")
			for _, named := range tfhe.AllParameters() {
				params, err := tfhe.NewParametersFromLiteral(named.Literal)
				if err != nil {
					return fmt.Errorf("%s: %w", named.Name, err)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", named.Name, params, named.Description)
			}
			return w.Flush()
		},
	}
}

func newSource(seedHex string) (*csprng.Source, error) {
	if seedHex == "" {
		return csprng.NewSource()
	}
	raw, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	var seed csprng.Seed
	if len(raw) != len(seed) {
		return nil, fmt.Errorf("seed must be %d bytes, have %d", len(seed), len(raw))
	}
	copy(seed[:], raw)
	return csprng.NewSeededSource(seed), nil
}

func newKeygenCmd(a *app) *cobra.Command {
	var (
		out     string
		seedHex string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a client key with its server and public keys",
		Long: `Generate a client key with its server and public keys and write
them to client.key, server.key and public.key in the output directory.

A hex seed makes key generation reproducible. Never reuse a seed for real
keys.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := newSource(seedHex)
			if err != nil {
				return err
			}
			kg := tfhe.NewKeyGenerator(a.params, src).WithLogger(a.log)
			if workers > 0 {
				kg = kg.WithWorkers(workers)
			}
			keys, err := kg.GenKeyPair()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(out, 0700); err != nil {
				return err
			}
			if err := writeRecord(filepath.Join(out, clientKeyFile), keys.ClientKey); err != nil {
				return err
			}
			if err := writeRecord(filepath.Join(out, serverKeyFile), keys.ServerKey); err != nil {
				return err
			}
			pk, err := kg.GenPublicKey(keys.ClientKey)
			if err != nil {
				return err
			}
			if err := writeRecord(filepath.Join(out, publicKeyFile), pk); err != nil {
				return err
			}
			fp, err := keys.ServerKey.Fingerprint()
			if err != nil {
				return err
			}
			a.log.Info("keys written", zap.String("dir", out))
			fmt.Fprintf(cmd.OutOrStdout(), "server key %x\n", fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", ".", "output directory")
	cmd.Flags().StringVar(&seedHex, "seed", "", "hex-encoded 32-byte seed")
	cmd.Flags().IntVar(&workers, "keygen-workers", 0, "goroutines generating the bootstrap key, 0 for one per CPU")
	return cmd
}
