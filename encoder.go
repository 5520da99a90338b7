// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"
	"math/bits"
)

// Encoder maps messages in [0, MessageModulus*CarryModulus) to the torus.
// The top bit is reserved as padding so the negacyclic lookup table of the
// bootstrap never sees a wrapped message; the low bits absorb noise.
type Encoder struct {
	modulus uint64
	logP    int
	shift   int // delta = 2^shift
}

// NewEncoder returns the encoder of params.
func NewEncoder(params Parameters) *Encoder {
	p := params.PlaintextModulus()
	logP := bits.Len64(p) - 1
	return &Encoder{modulus: p, logP: logP, shift: 63 - logP}
}

// Delta returns the scaling factor 2^63 / (MessageModulus*CarryModulus).
func (e *Encoder) Delta() uint64 { return 1 << e.shift }

// Modulus returns MessageModulus*CarryModulus.
func (e *Encoder) Modulus() uint64 { return e.modulus }

// Encode returns m*delta.
func (e *Encoder) Encode(m uint64) (uint64, error) {
	if m >= e.modulus {
		return 0, fmt.Errorf("%w: message %d, plaintext modulus %d", ErrMessageOutOfRange, m, e.modulus)
	}
	return m << e.shift, nil
}

// Decode rounds phase to the closest multiple of delta and strips the
// padding bit.
func (e *Encoder) Decode(phase uint64) uint64 {
	rounded := ((phase >> (e.shift - 1)) + 1) >> 1
	return rounded & (e.modulus - 1)
}
