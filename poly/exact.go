// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package poly

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/luxfi/lattice/v7/ring"

	"github.com/luxfi/tfhe/internal/errs"
)

// NTT-friendly primes for every degree up to MaxDegree. Their product Q is
// about 2^122, so products of signed inputs below 2^121 in magnitude are
// exact before reduction modulo 2^64.
const (
	ExactQ0 uint64 = 0x1fffffffffe00001
	ExactQ1 uint64 = 0x1fffffffffc80001
)

// ExactLogBound is the largest magnitude, in bits, a coefficient of an
// exact product may reach.
const ExactLogBound = 121

// ExactPoly is the NTT image of a polynomial modulo ExactQ0 and ExactQ1.
type ExactPoly struct {
	Value ring.Poly
}

// ExactPlan multiplies polynomials exactly: inputs are read as signed
// integers, multiplied in the NTT domain of two 61-bit primes and
// recombined by CRT into a signed 128-bit class accumulator that is
// reduced modulo 2^64. An ExactPlan is immutable and safe for concurrent
// use.
type ExactPlan struct {
	n int
	r *ring.Ring

	q0Inv   uint64 // q0^-1 mod q1
	qLo     uint64 // low word of q0*q1
	halfQLo uint64
	halfQHi uint64
}

// NewExactPlan builds the exact plan of degree N.
func NewExactPlan(N int) (*ExactPlan, error) {
	if !IsValidDegree(N) {
		return nil, fmt.Errorf("%w: degree %d must be a power of two in [%d, %d]", ErrInvalidDegree, N, MinDegree, MaxDegree)
	}
	r, err := ring.NewRing(N, []uint64{ExactQ0, ExactQ1})
	if err != nil {
		return nil, fmt.Errorf("%w: exact ring of degree %d: %v", ErrInvalidDegree, N, err)
	}

	q0 := new(big.Int).SetUint64(ExactQ0)
	q1 := new(big.Int).SetUint64(ExactQ1)
	inv := new(big.Int).ModInverse(q0, q1)
	Q := new(big.Int).Mul(q0, q1)
	half := new(big.Int).Rsh(Q, 1)
	mask := new(big.Int).SetUint64(^uint64(0))

	return &ExactPlan{
		n:       N,
		r:       r,
		q0Inv:   inv.Uint64(),
		qLo:     new(big.Int).And(Q, mask).Uint64(),
		halfQLo: new(big.Int).And(half, mask).Uint64(),
		halfQHi: new(big.Int).Rsh(half, 64).Uint64(),
	}, nil
}

// N returns the ring degree.
func (p *ExactPlan) N() int { return p.n }

// NewExactPoly returns a zero NTT-domain polynomial.
func (p *ExactPlan) NewExactPoly() ExactPoly {
	return ExactPoly{Value: p.r.NewPoly()}
}

// Zero sets every value of x to 0.
func (x ExactPoly) Zero() {
	for _, c := range x.Value.Coeffs {
		clear(c)
	}
}

func (p *ExactPlan) checkPoly(in Poly) error {
	if len(in.Coeffs) != p.n {
		return errs.Dimension("polynomial degree", len(in.Coeffs), p.n)
	}
	return nil
}

// Forward sets out to the NTT image of in, whose coefficients are read as
// signed values.
func (p *ExactPlan) Forward(ar *Arena, in Poly, out ExactPoly) error {
	if err := ar.check(p.n); err != nil {
		return err
	}
	if err := p.checkPoly(in); err != nil {
		return err
	}
	c0, c1 := out.Value.Coeffs[0], out.Value.Coeffs[1]
	for j, v := range in.Coeffs {
		c0[j] = liftSigned(v, ExactQ0)
		c1[j] = liftSigned(v, ExactQ1)
	}
	p.r.NTT(out.Value, out.Value)
	return nil
}

// MulAdd sets acc += a*b.
func (p *ExactPlan) MulAdd(ar *Arena, a, b, acc ExactPoly) error {
	if err := ar.check(p.n); err != nil {
		return err
	}
	tmp := ar.exactScratch(p)
	p.r.MulCoeffsBarrett(a.Value, b.Value, tmp)
	p.r.Add(acc.Value, tmp, acc.Value)
	return nil
}

// Backward sets out to the exact product held by in, reduced modulo 2^64.
func (p *ExactPlan) Backward(ar *Arena, in ExactPoly, out Poly) error {
	return p.backward(ar, in, out, false)
}

// BackwardAdd adds the exact product held by in to out.
func (p *ExactPlan) BackwardAdd(ar *Arena, in ExactPoly, out Poly) error {
	return p.backward(ar, in, out, true)
}

func (p *ExactPlan) backward(ar *Arena, in ExactPoly, out Poly, add bool) error {
	if err := ar.check(p.n); err != nil {
		return err
	}
	if err := p.checkPoly(out); err != nil {
		return err
	}
	tmp := ar.exactScratch(p)
	p.r.INTT(in.Value, tmp)
	c0, c1 := tmp.Coeffs[0], tmp.Coeffs[1]
	if add {
		for j := range out.Coeffs {
			out.Coeffs[j] += p.reconstruct(c0[j], c1[j])
		}
		return nil
	}
	for j := range out.Coeffs {
		out.Coeffs[j] = p.reconstruct(c0[j], c1[j])
	}
	return nil
}

// Mul sets out = a*b mod X^N+1 exactly.
func (p *ExactPlan) Mul(ar *Arena, a, b, out Poly) error {
	if err := ar.check(p.n); err != nil {
		return err
	}
	x, y := ar.exactOperands(p)
	if err := p.Forward(ar, a, x); err != nil {
		return err
	}
	if err := p.Forward(ar, b, y); err != nil {
		return err
	}
	p.r.MulCoeffsBarrett(x.Value, y.Value, x.Value)
	return p.Backward(ar, x, out)
}

// reconstruct maps the residues (a0 mod q0, a1 mod q1) to the centred
// integer in (-Q/2, Q/2] and reduces it modulo 2^64.
func (p *ExactPlan) reconstruct(a0, a1 uint64) uint64 {
	a0q1 := a0
	if a0q1 >= ExactQ1 {
		a0q1 -= ExactQ1
	}
	diff, borrow := bits.Sub64(a1, a0q1, 0)
	diff += ExactQ1 & -borrow

	hi, lo := bits.Mul64(diff, p.q0Inv)
	t := bits.Rem64(hi, lo, ExactQ1)

	hi, lo = bits.Mul64(ExactQ0, t)
	var carry uint64
	lo, carry = bits.Add64(lo, a0, 0)
	hi += carry

	// x > Q/2 means x stands for x - Q.
	_, b := bits.Sub64(p.halfQLo, lo, 0)
	_, b = bits.Sub64(p.halfQHi, hi, b)
	return lo - (p.qLo & -b)
}

// liftSigned maps the signed value of v to Z_q.
func liftSigned(v, q uint64) uint64 {
	neg := -(v >> 63)
	abs := (v ^ neg) - neg
	r := abs % q
	r = ((q - r) & neg) | (r &^ neg)
	s, b := bits.Sub64(r, q, 0)
	return s + (q & -b)
}
