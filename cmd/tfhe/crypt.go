// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luxfi/tfhe"
	"github.com/luxfi/tfhe/csprng"
)

func loadClientKey(a *app, path string) (*tfhe.ClientKey, error) {
	ck := new(tfhe.ClientKey)
	if err := readRecord(path, ck); err != nil {
		return nil, err
	}
	if !ck.Parameters().Equal(a.params) {
		return nil, fmt.Errorf("%s holds a key for %v, not %v", path, ck.Parameters(), a.params)
	}
	return ck, nil
}

func loadPublicKey(a *app, path string) (*tfhe.PublicKey, error) {
	pk := new(tfhe.PublicKey)
	if err := readRecord(path, pk); err != nil {
		return nil, err
	}
	if !pk.Parameters().Equal(a.params) {
		return nil, fmt.Errorf("%s holds a key for %v, not %v", path, pk.Parameters(), a.params)
	}
	return pk, nil
}

func newEncryptCmd(a *app) *cobra.Command {
	var keyPath, publicPath, out string
	var message uint64
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a message under a client key or a public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := csprng.New()
			if err != nil {
				return err
			}
			var ct *tfhe.Ciphertext
			if publicPath != "" {
				pk, err := loadPublicKey(a, publicPath)
				if err != nil {
					return err
				}
				if ct, err = tfhe.NewPublicEncryptor(pk, g).Encrypt(message); err != nil {
					return err
				}
				return writeRecord(out, ct)
			}
			ck, err := loadClientKey(a, keyPath)
			if err != nil {
				return err
			}
			if ct, err = tfhe.NewEncryptor(a.params, ck, g).Encrypt(message); err != nil {
				return err
			}
			return writeRecord(out, ct)
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", clientKeyFile, "client key file")
	cmd.Flags().StringVar(&publicPath, "public-key", "", "encrypt under this public key instead of the client key")
	cmd.Flags().Uint64Var(&message, "message", 0, "message in [0, MessageModulus*CarryModulus)")
	cmd.Flags().StringVar(&out, "out", "ct.bin", "ciphertext output file")
	return cmd
}

func newDecryptCmd(a *app) *cobra.Command {
	var keyPath, in string
	var carry bool
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a ciphertext with a client key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ck, err := loadClientKey(a, keyPath)
			if err != nil {
				return err
			}
			ct := new(tfhe.Ciphertext)
			if err := readRecord(in, ct); err != nil {
				return err
			}
			dec := tfhe.NewDecryptor(a.params, ck)
			var m uint64
			if carry {
				m, err = dec.DecryptWithCarry(ct)
			} else {
				m, err = dec.Decrypt(ct)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", clientKeyFile, "client key file")
	cmd.Flags().StringVar(&in, "in", "ct.bin", "ciphertext file")
	cmd.Flags().BoolVar(&carry, "with-carry", false, "keep the carry bits")
	return cmd
}

// parseTable parses comma-separated table entries.
func parseTable(s string, p uint64) ([]uint64, error) {
	fields := strings.Split(s, ",")
	if uint64(len(fields)) != p {
		return nil, fmt.Errorf("table has %d entries, plaintext modulus is %d", len(fields), p)
	}
	table := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("table entry %d: %w", i, err)
		}
		table[i] = v
	}
	return table, nil
}

func newBootstrapCmd(a *app) *cobra.Command {
	var keyPath, in, out, table string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap a ciphertext through a lookup table",
		Long: `Bootstrap a ciphertext through a lookup table given as one
comma-separated entry per message. Without --table the ciphertext is
refreshed through the identity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sk := new(tfhe.ServerKey)
			if err := readRecord(keyPath, sk); err != nil {
				return err
			}
			eval, err := tfhe.NewEvaluator(a.params, sk)
			if err != nil {
				return err
			}
			ct := new(tfhe.Ciphertext)
			if err := readRecord(in, ct); err != nil {
				return err
			}
			lut := tfhe.IdentityLookupTable(a.params)
			if table != "" {
				entries, err := parseTable(table, a.params.PlaintextModulus())
				if err != nil {
					return err
				}
				lut = tfhe.NewLookupTable(a.params, func(m uint64) uint64 { return entries[m] })
			}
			res, err := eval.Bootstrap(ct, lut)
			if err != nil {
				return err
			}
			return writeRecord(out, res)
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", serverKeyFile, "server key file")
	cmd.Flags().StringVar(&in, "in", "ct.bin", "input ciphertext file")
	cmd.Flags().StringVar(&out, "out", "out.bin", "output ciphertext file")
	cmd.Flags().StringVar(&table, "table", "", "comma-separated lookup table")
	return cmd
}
