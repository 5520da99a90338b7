// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"

	"github.com/luxfi/tfhe/poly"
)

// LookupTable is the accumulator polynomial that evaluates a function of
// the message during a bootstrap. It is immutable and can be shared.
type LookupTable struct {
	poly    poly.Poly
	modulus uint64
}

// NewLookupTable returns the table of f over [0, MessageModulus*CarryModulus).
// Outputs are reduced modulo MessageModulus*CarryModulus.
//
// The polynomial is split into one box of N/p coefficients per message,
// each holding the encoding of f(message). The table is then rotated by
// half a box, negating the wrapped coefficients, so phases rounding to
// either side of an encoding point select its box.
func NewLookupTable(params Parameters, f func(uint64) uint64) *LookupTable {
	N := params.PolyDegree()
	p := params.PlaintextModulus()
	enc := NewEncoder(params)
	box := N / int(p)

	table := poly.NewPoly(N)
	for m := uint64(0); m < p; m++ {
		v, _ := enc.Encode(f(m) % p)
		start := int(m) * box
		for i := start; i < start+box; i++ {
			table.Coeffs[i] = v
		}
	}
	out := poly.NewPoly(N)
	poly.MonomialMul(table, -(box / 2), out)
	return &LookupTable{poly: out, modulus: p}
}

// IdentityLookupTable returns the table of the identity, used to refresh
// ciphertexts.
func IdentityLookupTable(params Parameters) *LookupTable {
	return NewLookupTable(params, func(m uint64) uint64 { return m })
}

// Degree returns the degree of the table polynomial.
func (lut *LookupTable) Degree() int { return lut.poly.N() }

// Poly returns a copy of the table polynomial.
func (lut *LookupTable) Poly() poly.Poly { return lut.poly.CopyNew() }

func (lut *LookupTable) check(params Parameters) error {
	if lut == nil || lut.poly.N() != params.PolyDegree() || lut.modulus != params.PlaintextModulus() {
		var N int
		var p uint64
		if lut != nil {
			N, p = lut.poly.N(), lut.modulus
		}
		return fmt.Errorf("%w: table for degree %d and modulus %d, parameters have degree %d and modulus %d",
			ErrInvalidLookupTable, N, p, params.PolyDegree(), params.PlaintextModulus())
	}
	return nil
}
