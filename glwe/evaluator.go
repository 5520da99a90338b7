// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package glwe

import (
	"fmt"
	"math/bits"

	"github.com/luxfi/tfhe/internal/errs"
	"github.com/luxfi/tfhe/lwe"
	"github.com/luxfi/tfhe/poly"
)

// Evaluator computes external products, CMux and blind rotations. It owns
// the scratch memory of one worker and is not safe for concurrent use; the
// plans and keys it reads are shared.
type Evaluator struct {
	k, N   int
	plan   *poly.Plan
	exact  *poly.ExactPlan // nil unless external products run exactly
	decomp *poly.Decomposer

	arena  *poly.Arena
	digits []poly.Poly
	digitF poly.FourierPoly
	accF   []poly.FourierPoly
	digitE poly.ExactPoly
	accE   []poly.ExactPoly

	rot  Ciphertext
	prod Ciphertext
}

// NewEvaluator returns an evaluator for GGSW ciphertexts of rank k, the
// degree of plan, and the given decomposition. External products use the
// exact plan when it is not nil.
func NewEvaluator(plan *poly.Plan, exact *poly.ExactPlan, k, baseLog, level int) (*Evaluator, error) {
	decomp, err := poly.NewDecomposer(baseLog, level)
	if err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: glwe rank %d", errs.ErrInvalidParameters, k)
	}
	if exact != nil && exact.N() != plan.N() {
		return nil, errs.Dimension("exact plan degree", exact.N(), plan.N())
	}
	N := plan.N()
	e := &Evaluator{
		k:      k,
		N:      N,
		plan:   plan,
		exact:  exact,
		decomp: decomp,
		arena:  poly.NewArena(N),
		digits: make([]poly.Poly, level),
		rot:    NewCiphertext(k, N),
		prod:   NewCiphertext(k, N),
	}
	for l := range e.digits {
		e.digits[l] = poly.NewPoly(N)
	}
	if exact != nil {
		e.digitE = exact.NewExactPoly()
		e.accE = make([]poly.ExactPoly, k+1)
		for c := range e.accE {
			e.accE[c] = exact.NewExactPoly()
		}
	} else {
		e.digitF = plan.NewFourierPoly()
		e.accF = make([]poly.FourierPoly, k+1)
		for c := range e.accF {
			e.accF[c] = plan.NewFourierPoly()
		}
	}
	return e, nil
}

// ShallowCopy returns an evaluator with the same plans and fresh scratch.
func (e *Evaluator) ShallowCopy() *Evaluator {
	cp, err := NewEvaluator(e.plan, e.exact, e.k, e.decomp.BaseLog(), e.decomp.Level())
	if err != nil {
		// The configuration was validated when e was built.
		panic(err)
	}
	return cp
}

// Extended reports whether external products run on the exact path.
func (e *Evaluator) Extended() bool { return e.exact != nil }

func (e *Evaluator) checkGGSW(ggsw *GGSW) error {
	if ggsw.Rank() != e.k {
		return errs.Dimension("ggsw rank", ggsw.Rank(), e.k)
	}
	if ggsw.Degree() != e.N {
		return errs.Dimension("ggsw degree", ggsw.Degree(), e.N)
	}
	if ggsw.BaseLog() != e.decomp.BaseLog() || ggsw.Level() != e.decomp.Level() {
		return fmt.Errorf("%w: ggsw decomposition (2^%d, %d) differs from evaluator (2^%d, %d)",
			errs.ErrInvalidParameters, ggsw.BaseLog(), ggsw.Level(), e.decomp.BaseLog(), e.decomp.Level())
	}
	if e.exact != nil && ggsw.exact == nil {
		return fmt.Errorf("%w: ggsw has no exact image", errs.ErrInvalidParameters)
	}
	if e.exact == nil && ggsw.fourier == nil {
		return fmt.Errorf("%w: ggsw has no fourier image", errs.ErrInvalidParameters)
	}
	return nil
}

func (e *Evaluator) checkCiphertext(ct Ciphertext) error {
	if len(ct.Mask) != e.k {
		return errs.Dimension("glwe rank", len(ct.Mask), e.k)
	}
	if ct.Body.N() != e.N {
		return errs.Dimension("glwe degree", ct.Body.N(), e.N)
	}
	return nil
}

// ExternalProduct sets out = ggsw ⊡ ct. out must not alias ct.
func (e *Evaluator) ExternalProduct(ggsw *GGSW, ct, out Ciphertext) error {
	if err := e.checkGGSW(ggsw); err != nil {
		return err
	}
	if err := e.checkCiphertext(ct); err != nil {
		return err
	}
	if err := e.checkCiphertext(out); err != nil {
		return err
	}
	if e.exact != nil {
		return e.externalProductExact(ggsw, ct, out)
	}
	return e.externalProductFourier(ggsw, ct, out)
}

func (e *Evaluator) externalProductFourier(ggsw *GGSW, ct, out Ciphertext) error {
	level := e.decomp.Level()
	for c := range e.accF {
		e.accF[c].Zero()
	}
	for j := 0; j <= e.k; j++ {
		e.decomp.DecomposePoly(ct.Component(j), e.digits)
		for l := 0; l < level; l++ {
			if err := e.plan.Forward(e.arena, e.digits[l], e.digitF); err != nil {
				return err
			}
			row := ggsw.fourier[j*level+l]
			for c := range e.accF {
				poly.MulAddFourier(e.digitF, row[c], e.accF[c])
			}
		}
	}
	for c := range e.accF {
		if err := e.plan.Backward(e.arena, e.accF[c], out.Component(c)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) externalProductExact(ggsw *GGSW, ct, out Ciphertext) error {
	level := e.decomp.Level()
	for c := range e.accE {
		e.accE[c].Zero()
	}
	for j := 0; j <= e.k; j++ {
		e.decomp.DecomposePoly(ct.Component(j), e.digits)
		for l := 0; l < level; l++ {
			if err := e.exact.Forward(e.arena, e.digits[l], e.digitE); err != nil {
				return err
			}
			row := ggsw.exact[j*level+l]
			for c := range e.accE {
				if err := e.exact.MulAdd(e.arena, e.digitE, row[c], e.accE[c]); err != nil {
					return err
				}
			}
		}
	}
	for c := range e.accE {
		if err := e.exact.Backward(e.arena, e.accE[c], out.Component(c)); err != nil {
			return err
		}
	}
	return nil
}

// CMux sets out = c0 + ggsw ⊡ (c1 - c0): c0 when ggsw encrypts 0 and c1
// when it encrypts 1. Both branches are always computed. out may alias c0
// but not c1.
func (e *Evaluator) CMux(ggsw *GGSW, c0, c1, out Ciphertext) error {
	if err := Sub(c1, c0, e.rot); err != nil {
		return err
	}
	if err := e.ExternalProduct(ggsw, e.rot, e.prod); err != nil {
		return err
	}
	return Add(c0, e.prod, out)
}

// ModSwitch rounds a torus value to Z_{2N}.
func ModSwitch(x uint64, N int) int {
	logTwoN := bits.Len(uint(2*N)) - 1
	shift := 64 - logTwoN
	return int(((x>>(shift-1))+1)>>1) & (2*N - 1)
}

// BlindRotate sets acc to the trivial encryption of lut * X^(-b~) rotated
// by X^(a~_i * s_i) for every mask coefficient, where ~ denotes the switch
// to Z_{2N}. The constant coefficient of acc then encrypts
// lut[phase(ct)].
func (e *Evaluator) BlindRotate(bsk *BootstrapKey, lut poly.Poly, ct lwe.Ciphertext, acc Ciphertext) error {
	if ct.Dimension() != bsk.InputDimension() {
		return fmt.Errorf("blind rotate: %w", errs.Dimension("ciphertext dimension", ct.Dimension(), bsk.InputDimension()))
	}
	if lut.N() != e.N {
		return fmt.Errorf("blind rotate: %w", errs.Dimension("lookup table degree", lut.N(), e.N))
	}
	if err := e.checkCiphertext(acc); err != nil {
		return fmt.Errorf("blind rotate: %w", err)
	}

	for _, p := range acc.Mask {
		p.Zero()
	}
	poly.MonomialMul(lut, -ModSwitch(ct.Body, e.N), acc.Body)

	for i, a := range ct.Mask {
		rot := ModSwitch(a, e.N)
		for j := 0; j <= e.k; j++ {
			poly.MonomialMulMinusOne(acc.Component(j), rot, e.rot.Component(j))
		}
		if err := e.ExternalProduct(bsk.keys[i], e.rot, e.prod); err != nil {
			return fmt.Errorf("blind rotate: %w", err)
		}
		if err := Add(acc, e.prod, acc); err != nil {
			return err
		}
	}
	return nil
}

// SampleExtract sets out to the LWE encryption, under the key returned by
// SecretKey.LWEKey, of the constant coefficient of ct.
func SampleExtract(ct Ciphertext, out *lwe.Ciphertext) error {
	k, N := ct.Rank(), ct.Degree()
	if out.Dimension() != k*N {
		return fmt.Errorf("sample extract: %w", errs.Dimension("output dimension", out.Dimension(), k*N))
	}
	for j, a := range ct.Mask {
		dst := out.Mask[j*N : (j+1)*N]
		dst[0] = a.Coeffs[0]
		for i := 1; i < N; i++ {
			dst[i] = -a.Coeffs[N-i]
		}
	}
	out.Body = ct.Body.Coeffs[0]
	return nil
}
