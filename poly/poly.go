// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package poly implements arithmetic in Z_{2^64}[X]/(X^N+1): negacyclic
// convolution through a Fourier-domain Plan or an exact NTT-based
// ExactPlan, per-worker scratch Arenas, and signed gadget decomposition.
package poly

import (
	"github.com/luxfi/tfhe/internal/errs"
)

var (
	// ErrScratchTooSmall is returned when a transform exceeds the arena
	// it is given.
	ErrScratchTooSmall = errs.ErrScratchTooSmall

	// ErrInvalidDegree is returned for degrees that are not powers of two
	// in the supported range.
	ErrInvalidDegree = errs.ErrInvalidParameters
)

// MinDegree and MaxDegree bound the supported ring degrees.
const (
	MinDegree = 8
	MaxDegree = 1 << 16
)

// Poly is a polynomial with torus coefficients.
type Poly struct {
	Coeffs []uint64
}

// NewPoly returns the zero polynomial of degree N.
func NewPoly(N int) Poly {
	return Poly{Coeffs: make([]uint64, N)}
}

// N returns the ring degree.
func (p Poly) N() int { return len(p.Coeffs) }

// Zero sets p to the zero polynomial.
func (p Poly) Zero() {
	clear(p.Coeffs)
}

// Copy copies other into p.
func (p Poly) Copy(other Poly) {
	copy(p.Coeffs, other.Coeffs)
}

// CopyNew returns a deep copy of p.
func (p Poly) CopyNew() Poly {
	return Poly{Coeffs: append([]uint64(nil), p.Coeffs...)}
}

// Equal reports whether p and other have the same coefficients.
func (p Poly) Equal(other Poly) bool {
	if len(p.Coeffs) != len(other.Coeffs) {
		return false
	}
	var diff uint64
	for i := range p.Coeffs {
		diff |= p.Coeffs[i] ^ other.Coeffs[i]
	}
	return diff == 0
}

// Add sets out = a + b.
func Add(a, b, out Poly) {
	for i := range out.Coeffs {
		out.Coeffs[i] = a.Coeffs[i] + b.Coeffs[i]
	}
}

// Sub sets out = a - b.
func Sub(a, b, out Poly) {
	for i := range out.Coeffs {
		out.Coeffs[i] = a.Coeffs[i] - b.Coeffs[i]
	}
}

// Neg sets out = -a.
func Neg(a, out Poly) {
	for i := range out.Coeffs {
		out.Coeffs[i] = -a.Coeffs[i]
	}
}

// MulScalar sets out = s*a.
func MulScalar(a Poly, s uint64, out Poly) {
	for i := range out.Coeffs {
		out.Coeffs[i] = a.Coeffs[i] * s
	}
}

// MonomialMul sets out = in * X^k. k is taken modulo 2N and may be
// negative. out must not alias in.
func MonomialMul(in Poly, k int, out Poly) {
	N := len(in.Coeffs)
	k = reduceExponent(k, N)
	if k < N {
		for j := 0; j < N-k; j++ {
			out.Coeffs[j+k] = in.Coeffs[j]
		}
		for j := N - k; j < N; j++ {
			out.Coeffs[j+k-N] = -in.Coeffs[j]
		}
		return
	}
	k -= N
	for j := 0; j < N-k; j++ {
		out.Coeffs[j+k] = -in.Coeffs[j]
	}
	for j := N - k; j < N; j++ {
		out.Coeffs[j+k-N] = in.Coeffs[j]
	}
}

// MonomialMulMinusOne sets out = in * X^k - in. out must not alias in.
func MonomialMulMinusOne(in Poly, k int, out Poly) {
	MonomialMul(in, k, out)
	Sub(out, in, out)
}

func reduceExponent(k, N int) int {
	k %= 2 * N
	if k < 0 {
		k += 2 * N
	}
	return k
}

// IsValidDegree reports whether N is a supported ring degree.
func IsValidDegree(N int) bool {
	return N >= MinDegree && N <= MaxDegree && N&(N-1) == 0
}
