// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"github.com/luxfi/tfhe/internal/errs"
)

// The operations below act coordinate-wise on mask and body without
// branching on ciphertext content. out may alias any input.

func checkPair(a, b Ciphertext) error {
	if len(a.Mask) != len(b.Mask) {
		return errs.Dimension("ciphertext dimension", len(b.Mask), len(a.Mask))
	}
	return nil
}

// Add sets out = a + b.
func Add(a, b Ciphertext, out *Ciphertext) error {
	if err := checkPair(a, b); err != nil {
		return err
	}
	if err := checkPair(a, *out); err != nil {
		return err
	}
	for i := range out.Mask {
		out.Mask[i] = a.Mask[i] + b.Mask[i]
	}
	out.Body = a.Body + b.Body
	return nil
}

// Sub sets out = a - b.
func Sub(a, b Ciphertext, out *Ciphertext) error {
	if err := checkPair(a, b); err != nil {
		return err
	}
	if err := checkPair(a, *out); err != nil {
		return err
	}
	for i := range out.Mask {
		out.Mask[i] = a.Mask[i] - b.Mask[i]
	}
	out.Body = a.Body - b.Body
	return nil
}

// AddPlaintext sets out = ct + (0, plaintext).
func AddPlaintext(ct Ciphertext, plaintext uint64, out *Ciphertext) error {
	if err := checkPair(ct, *out); err != nil {
		return err
	}
	copy(out.Mask, ct.Mask)
	out.Body = ct.Body + plaintext
	return nil
}

// MulScalar sets out = scalar * ct. scalar is read modulo 2^64, so negative
// integers are passed in two's complement.
func MulScalar(ct Ciphertext, scalar uint64, out *Ciphertext) error {
	if err := checkPair(ct, *out); err != nil {
		return err
	}
	for i := range out.Mask {
		out.Mask[i] = ct.Mask[i] * scalar
	}
	out.Body = ct.Body * scalar
	return nil
}

// Negate sets out = -ct.
func Negate(ct Ciphertext, out *Ciphertext) error {
	return MulScalar(ct, ^uint64(0), out)
}

// LinearCombination sets out = sum_i weights[i] * cts[i]. out must not
// alias any input.
func LinearCombination(cts []Ciphertext, weights []uint64, out *Ciphertext) error {
	if len(cts) != len(weights) {
		return errs.Dimension("weight count", len(weights), len(cts))
	}
	for _, ct := range cts {
		if err := checkPair(*out, ct); err != nil {
			return err
		}
	}
	clear(out.Mask)
	out.Body = 0
	for k, ct := range cts {
		w := weights[k]
		for i := range out.Mask {
			out.Mask[i] += ct.Mask[i] * w
		}
		out.Body += ct.Body * w
	}
	return nil
}
