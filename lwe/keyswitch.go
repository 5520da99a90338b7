// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
	"github.com/luxfi/tfhe/poly"
)

// KeySwitchKey re-encrypts ciphertexts from an input key to an output key.
// Row (i, l) encrypts s_in[i] * q/B^(l+1) under the output key. A
// KeySwitchKey is immutable and safe for concurrent use.
type KeySwitchKey struct {
	inputDim  int
	outputDim int
	decomp    *poly.Decomposer
	rows      []Ciphertext
}

// GenKeySwitchKey returns the key switching from in to out.
func GenKeySwitchKey(in, out *SecretKey, baseLog, level int, stdDev float64, g *csprng.Generator) (*KeySwitchKey, error) {
	decomp, err := poly.NewDecomposer(baseLog, level)
	if err != nil {
		return nil, fmt.Errorf("keyswitch key: %w", err)
	}
	ksk := &KeySwitchKey{
		inputDim:  in.Dimension(),
		outputDim: out.Dimension(),
		decomp:    decomp,
		rows:      make([]Ciphertext, in.Dimension()*level),
	}
	for i, s := range in.coeffs {
		for l := 0; l < level; l++ {
			ksk.rows[i*level+l] = Encrypt(out, s*decomp.Scale(l), stdDev, g)
		}
	}
	return ksk, nil
}

// InputDimension is the dimension of ciphertexts the key accepts.
func (ksk *KeySwitchKey) InputDimension() int { return ksk.inputDim }

// OutputDimension is the dimension of ciphertexts the key produces.
func (ksk *KeySwitchKey) OutputDimension() int { return ksk.outputDim }

// BaseLog returns log2 of the decomposition base.
func (ksk *KeySwitchKey) BaseLog() int { return ksk.decomp.BaseLog() }

// Level returns the number of decomposition levels.
func (ksk *KeySwitchKey) Level() int { return ksk.decomp.Level() }

// KeySwitch sets out to an encryption under the output key of the
// plaintext in encrypts under the input key. out must not alias in.
func (ksk *KeySwitchKey) KeySwitch(in Ciphertext, out *Ciphertext) error {
	if len(in.Mask) != ksk.inputDim {
		return fmt.Errorf("keyswitch: %w", errs.Dimension("input dimension", len(in.Mask), ksk.inputDim))
	}
	if len(out.Mask) != ksk.outputDim {
		return fmt.Errorf("keyswitch: %w", errs.Dimension("output dimension", len(out.Mask), ksk.outputDim))
	}

	level := ksk.decomp.Level()
	var digits [poly.MaxDecompositionLevel]uint64

	clear(out.Mask)
	out.Body = in.Body
	for i, a := range in.Mask {
		ksk.decomp.DecomposeScalar(a, digits[:level])
		for l := 0; l < level; l++ {
			row := ksk.rows[i*level+l]
			d := digits[l]
			for j := range out.Mask {
				out.Mask[j] -= d * row.Mask[j]
			}
			out.Body -= d * row.Body
		}
	}
	return nil
}

// CopyNew returns a handle on the same key material. Decoding into the
// handle replaces its contents without touching ksk.
func (ksk *KeySwitchKey) CopyNew() *KeySwitchKey {
	c := *ksk
	return &c
}

// Equal reports whether both keys hold the same rows.
func (ksk *KeySwitchKey) Equal(other *KeySwitchKey) bool {
	if ksk.inputDim != other.inputDim || ksk.outputDim != other.outputDim ||
		ksk.BaseLog() != other.BaseLog() || ksk.Level() != other.Level() {
		return false
	}
	for i := range ksk.rows {
		if !ksk.rows[i].Equal(other.rows[i]) {
			return false
		}
	}
	return true
}
