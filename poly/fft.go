// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package poly

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/luxfi/tfhe/internal/errs"
)

// FourierPoly is the Fourier-domain image of a Poly: N/2 complex values.
type FourierPoly struct {
	Coeffs []complex128
}

// Zero sets every value of p to 0.
func (p FourierPoly) Zero() {
	clear(p.Coeffs)
}

// Copy copies other into p.
func (p FourierPoly) Copy(other FourierPoly) {
	copy(p.Coeffs, other.Coeffs)
}

// Plan holds the twisting tables of the negacyclic transform of one
// degree. A Plan is immutable and safe for concurrent use; the FFT work
// buffers live in the caller's Arena.
//
// A polynomial a is folded into z_j = (a_j + i*a_{j+N/2}) * w^j with
// w = exp(i*pi/N), after which multiplication modulo X^N+1 is a pointwise
// product of the N/2-point FFTs.
type Plan struct {
	n       int
	twist   []complex128
	untwist []complex128
}

// NewPlan builds the plan of degree N.
func NewPlan(N int) (*Plan, error) {
	if !IsValidDegree(N) {
		return nil, fmt.Errorf("%w: degree %d must be a power of two in [%d, %d]", ErrInvalidDegree, N, MinDegree, MaxDegree)
	}
	h := N / 2
	p := &Plan{
		n:       N,
		twist:   make([]complex128, h),
		untwist: make([]complex128, h),
	}
	for j := 0; j < h; j++ {
		w := cmplx.Rect(1, math.Pi*float64(j)/float64(N))
		p.twist[j] = w
		p.untwist[j] = cmplx.Conj(w) / complex(float64(h), 0)
	}
	return p, nil
}

// N returns the ring degree.
func (p *Plan) N() int { return p.n }

// NewFourierPoly returns a zero Fourier-domain polynomial.
func (p *Plan) NewFourierPoly() FourierPoly {
	return FourierPoly{Coeffs: make([]complex128, p.n/2)}
}

func (p *Plan) checkPoly(in Poly) error {
	if len(in.Coeffs) != p.n {
		return errs.Dimension("polynomial degree", len(in.Coeffs), p.n)
	}
	return nil
}

func (p *Plan) checkFourier(in FourierPoly) error {
	if len(in.Coeffs) != p.n/2 {
		return errs.Dimension("fourier polynomial size", len(in.Coeffs), p.n/2)
	}
	return nil
}

// Forward sets out to the Fourier image of in. Coefficients are read as
// signed values.
func (p *Plan) Forward(ar *Arena, in Poly, out FourierPoly) error {
	if err := ar.check(p.n); err != nil {
		return err
	}
	if err := p.checkPoly(in); err != nil {
		return err
	}
	if err := p.checkFourier(out); err != nil {
		return err
	}
	h := p.n / 2
	z := ar.stage[:h]
	for j := 0; j < h; j++ {
		re := float64(int64(in.Coeffs[j]))
		im := float64(int64(in.Coeffs[j+h]))
		z[j] = complex(re, im) * p.twist[j]
	}
	ar.fft(h).Coefficients(out.Coeffs, z)
	return nil
}

// Backward sets out to the torus polynomial of in, rounding every
// coefficient to the nearest integer modulo 2^64.
func (p *Plan) Backward(ar *Arena, in FourierPoly, out Poly) error {
	return p.backward(ar, in, out, false)
}

// BackwardAdd adds the torus polynomial of in to out.
func (p *Plan) BackwardAdd(ar *Arena, in FourierPoly, out Poly) error {
	return p.backward(ar, in, out, true)
}

func (p *Plan) backward(ar *Arena, in FourierPoly, out Poly, add bool) error {
	if err := ar.check(p.n); err != nil {
		return err
	}
	if err := p.checkFourier(in); err != nil {
		return err
	}
	if err := p.checkPoly(out); err != nil {
		return err
	}
	h := p.n / 2
	z := ar.stage[:h]
	ar.fft(h).Sequence(z, in.Coeffs)
	if add {
		for j := 0; j < h; j++ {
			v := z[j] * p.untwist[j]
			out.Coeffs[j] += wrapTorus(real(v))
			out.Coeffs[j+h] += wrapTorus(imag(v))
		}
		return nil
	}
	for j := 0; j < h; j++ {
		v := z[j] * p.untwist[j]
		out.Coeffs[j] = wrapTorus(real(v))
		out.Coeffs[j+h] = wrapTorus(imag(v))
	}
	return nil
}

// Mul sets out = a*b mod X^N+1.
func (p *Plan) Mul(ar *Arena, a, b, out Poly) error {
	if err := ar.check(p.n); err != nil {
		return err
	}
	h := p.n / 2
	fa := FourierPoly{Coeffs: ar.fa.Coeffs[:h]}
	fb := FourierPoly{Coeffs: ar.fb.Coeffs[:h]}
	if err := p.Forward(ar, a, fa); err != nil {
		return err
	}
	if err := p.Forward(ar, b, fb); err != nil {
		return err
	}
	MulFourier(fa, fb, fa)
	return p.Backward(ar, fa, out)
}

// MulFourier sets out = a*b pointwise.
func MulFourier(a, b, out FourierPoly) {
	for i := range out.Coeffs {
		out.Coeffs[i] = a.Coeffs[i] * b.Coeffs[i]
	}
}

// MulAddFourier sets acc += a*b pointwise.
func MulAddFourier(a, b, acc FourierPoly) {
	for i := range acc.Coeffs {
		acc.Coeffs[i] += a.Coeffs[i] * b.Coeffs[i]
	}
}

// wrapTorus rounds x to the nearest integer and reduces it modulo 2^64.
func wrapTorus(x float64) uint64 {
	x -= math.Round(x*0x1p-64) * 0x1p64
	v := math.Round(x)
	if v >= 0x1p63 {
		v -= 0x1p64
	}
	return uint64(int64(v))
}
