// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package poly

import (
	"fmt"

	"github.com/luxfi/lattice/v7/ring"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Arena is the scratch memory of one worker. Transforms draw their
// temporaries from it, so a warmed arena makes repeated transforms
// allocation free. An Arena must not be shared between goroutines.
type Arena struct {
	capacity int

	ffts map[int]*fourier.CmplxFFT

	stage []complex128
	fa    FourierPoly
	fb    FourierPoly

	exactTmp map[int]ring.Poly
	exactA   map[int]ExactPoly
	exactB   map[int]ExactPoly
}

// NewArena returns an arena for transforms of degree up to maxDegree.
func NewArena(maxDegree int) *Arena {
	if maxDegree < 2 {
		maxDegree = 2
	}
	h := maxDegree / 2
	return &Arena{
		capacity: maxDegree,
		ffts:     make(map[int]*fourier.CmplxFFT),
		stage:    make([]complex128, h),
		fa:       FourierPoly{Coeffs: make([]complex128, h)},
		fb:       FourierPoly{Coeffs: make([]complex128, h)},
		exactTmp: make(map[int]ring.Poly),
		exactA:   make(map[int]ExactPoly),
		exactB:   make(map[int]ExactPoly),
	}
}

// Capacity is the largest degree the arena can serve.
func (a *Arena) Capacity() int { return a.capacity }

func (a *Arena) check(N int) error {
	if N > a.capacity {
		return fmt.Errorf("%w: transform of degree %d, arena capacity %d", ErrScratchTooSmall, N, a.capacity)
	}
	return nil
}

// fft returns the complex transform of length h, built on first use.
func (a *Arena) fft(h int) *fourier.CmplxFFT {
	t, ok := a.ffts[h]
	if !ok {
		t = fourier.NewCmplxFFT(h)
		a.ffts[h] = t
	}
	return t
}

func (a *Arena) exactScratch(p *ExactPlan) ring.Poly {
	t, ok := a.exactTmp[p.n]
	if !ok {
		t = p.r.NewPoly()
		a.exactTmp[p.n] = t
	}
	return t
}

func (a *Arena) exactOperands(p *ExactPlan) (ExactPoly, ExactPoly) {
	x, ok := a.exactA[p.n]
	if !ok {
		x = p.NewExactPoly()
		a.exactA[p.n] = x
	}
	y, ok := a.exactB[p.n]
	if !ok {
		y = p.NewExactPoly()
		a.exactB[p.n] = y
	}
	return x, y
}
