// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"github.com/luxfi/tfhe/internal/codec"
	"github.com/luxfi/tfhe/poly"
)

// MarshalBinary encodes ct as dimension | mask | body.
func (ct Ciphertext) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindLWECiphertext, 4+8*(len(ct.Mask)+1))
	w.Dim(len(ct.Mask))
	w.Uint64s(ct.Mask)
	w.U64(ct.Body)
	return w.Data(), nil
}

// UnmarshalBinary decodes a ciphertext written by MarshalBinary.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindLWECiphertext)
	n := r.Dim("dimension", 1, MaxDimension)
	r.Need(8 * uint64(n+1))
	if err := r.Err(); err != nil {
		return err
	}
	dec := NewCiphertext(n)
	r.Uint64s(dec.Mask)
	dec.Body = r.U64()
	if err := r.Finish(); err != nil {
		return err
	}
	*ct = dec
	return nil
}

// MarshalBinary encodes sk as dimension | coefficients.
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindLWESecretKey, 4+8*len(sk.coeffs))
	w.Dim(len(sk.coeffs))
	w.Uint64s(sk.coeffs)
	return w.Data(), nil
}

// UnmarshalBinary decodes a key written by MarshalBinary.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindLWESecretKey)
	n := r.Dim("dimension", 1, MaxDimension)
	r.Need(8 * uint64(n))
	if err := r.Err(); err != nil {
		return err
	}
	coeffs := make([]uint64, n)
	r.Uint64s(coeffs)
	if err := r.Finish(); err != nil {
		return err
	}
	sk.coeffs = coeffs
	return nil
}

// MarshalBinary encodes the key as
// inputDim | outputDim | baseLog | level | rows (mask | body).
func (ksk *KeySwitchKey) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindKeySwitchKey, 16+8*len(ksk.rows)*(ksk.outputDim+1))
	w.Dim(ksk.inputDim)
	w.Dim(ksk.outputDim)
	w.Dim(ksk.BaseLog())
	w.Dim(ksk.Level())
	for _, row := range ksk.rows {
		w.Uint64s(row.Mask)
		w.U64(row.Body)
	}
	return w.Data(), nil
}

// UnmarshalBinary decodes a key written by MarshalBinary.
func (ksk *KeySwitchKey) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindKeySwitchKey)
	in := r.Dim("input dimension", 1, MaxDimension)
	out := r.Dim("output dimension", 1, MaxDimension)
	baseLog := r.Dim("base log", 1, 64)
	level := r.Dim("level", 1, poly.MaxDecompositionLevel)
	if err := r.Err(); err != nil {
		return err
	}
	decomp, err := poly.NewDecomposer(baseLog, level)
	if err != nil {
		r.Failf("%v", err)
		return r.Err()
	}
	r.Need(8 * uint64(in) * uint64(level) * uint64(out+1))
	if err := r.Err(); err != nil {
		return err
	}
	rows := make([]Ciphertext, in*level)
	for i := range rows {
		rows[i] = NewCiphertext(out)
		r.Uint64s(rows[i].Mask)
		rows[i].Body = r.U64()
	}
	if err := r.Finish(); err != nil {
		return err
	}
	*ksk = KeySwitchKey{inputDim: in, outputDim: out, decomp: decomp, rows: rows}
	return nil
}

// MarshalBinary encodes the key as dimension | size | seed | bodies. Masks
// are not encoded.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindLWEPublicKey, 16+len(pk.seed)+8*len(pk.bodies))
	w.Dim(pk.dim)
	w.Dim(len(pk.bodies))
	w.Bytes(pk.seed[:])
	w.Uint64s(pk.bodies)
	return w.Data(), nil
}

// UnmarshalBinary decodes a key written by MarshalBinary.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindLWEPublicKey)
	dim := r.Dim("dimension", 1, MaxDimension)
	size := r.Dim("size", 1, MaxPublicKeySize)
	seed := r.Bytes()
	if r.Err() == nil && len(seed) != len(pk.seed) {
		r.Failf("seed of %d bytes, want %d", len(seed), len(pk.seed))
	}
	r.Need(8 * uint64(size))
	if err := r.Err(); err != nil {
		return err
	}
	dec := PublicKey{dim: dim, bodies: make([]uint64, size)}
	copy(dec.seed[:], seed)
	r.Uint64s(dec.bodies)
	if err := r.Finish(); err != nil {
		return err
	}
	*pk = dec
	return nil
}
