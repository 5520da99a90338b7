// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package glwe

import (
	"fmt"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
	"github.com/luxfi/tfhe/poly"
)

// Encryptor encrypts and decrypts GLWE ciphertexts under one key. Key
// products are computed exactly, so encryption noise is exactly the sampled
// Gaussian. An Encryptor is not safe for concurrent use; ShallowCopy gives
// each goroutine its own scratch.
type Encryptor struct {
	sk    *SecretKey
	plan  *poly.ExactPlan
	skNTT []poly.ExactPoly

	arena   *poly.Arena
	maskNTT poly.ExactPoly
	acc     poly.ExactPoly
}

// NewEncryptor returns an encryptor for sk. plan must have the key's degree.
func NewEncryptor(sk *SecretKey, plan *poly.ExactPlan) (*Encryptor, error) {
	if plan.N() != sk.Degree() {
		return nil, errs.Dimension("exact plan degree", plan.N(), sk.Degree())
	}
	enc := &Encryptor{sk: sk, plan: plan}
	enc.initScratch()
	enc.skNTT = make([]poly.ExactPoly, sk.Rank())
	for j, s := range sk.polys {
		enc.skNTT[j] = plan.NewExactPoly()
		if err := plan.Forward(enc.arena, s, enc.skNTT[j]); err != nil {
			return nil, err
		}
	}
	return enc, nil
}

func (enc *Encryptor) initScratch() {
	enc.arena = poly.NewArena(enc.plan.N())
	enc.maskNTT = enc.plan.NewExactPoly()
	enc.acc = enc.plan.NewExactPoly()
}

// ShallowCopy returns an encryptor sharing the key with fresh scratch.
func (enc *Encryptor) ShallowCopy() *Encryptor {
	cp := &Encryptor{sk: enc.sk, plan: enc.plan, skNTT: enc.skNTT}
	cp.initScratch()
	return cp
}

// Rank returns the key rank.
func (enc *Encryptor) Rank() int { return enc.sk.Rank() }

// Degree returns the key degree.
func (enc *Encryptor) Degree() int { return enc.sk.Degree() }

func (enc *Encryptor) check(ct Ciphertext) error {
	if len(ct.Mask) != enc.Rank() {
		return errs.Dimension("glwe rank", len(ct.Mask), enc.Rank())
	}
	if ct.Body.N() != enc.Degree() {
		return errs.Dimension("glwe degree", ct.Body.N(), enc.Degree())
	}
	for _, p := range ct.Mask {
		if p.N() != enc.Degree() {
			return errs.Dimension("glwe mask degree", p.N(), enc.Degree())
		}
	}
	return nil
}

// maskProduct sets enc.acc to sum_j mask_j * S_j in the NTT domain.
func (enc *Encryptor) maskProduct(ct Ciphertext) error {
	enc.acc.Zero()
	for j, a := range ct.Mask {
		if err := enc.plan.Forward(enc.arena, a, enc.maskNTT); err != nil {
			return err
		}
		if err := enc.plan.MulAdd(enc.arena, enc.maskNTT, enc.skNTT[j], enc.acc); err != nil {
			return err
		}
	}
	return nil
}

// EncryptInto encrypts the plaintext polynomial pt into out. A pt without
// coefficients encrypts zero.
func (enc *Encryptor) EncryptInto(pt poly.Poly, stdDev float64, g *csprng.Generator, out Ciphertext) error {
	if err := enc.check(out); err != nil {
		return fmt.Errorf("glwe encrypt: %w", err)
	}
	if pt.N() != 0 && pt.N() != enc.Degree() {
		return fmt.Errorf("glwe encrypt: %w", errs.Dimension("plaintext degree", pt.N(), enc.Degree()))
	}
	for _, a := range out.Mask {
		g.Uniform(a.Coeffs)
	}
	if err := enc.maskProduct(out); err != nil {
		return err
	}
	if err := enc.plan.Backward(enc.arena, enc.acc, out.Body); err != nil {
		return err
	}
	for i := range out.Body.Coeffs {
		out.Body.Coeffs[i] += g.Gaussian(stdDev)
	}
	if pt.N() != 0 {
		poly.Add(out.Body, pt, out.Body)
	}
	return nil
}

// EncryptZeroInto encrypts the zero polynomial into out.
func (enc *Encryptor) EncryptZeroInto(stdDev float64, g *csprng.Generator, out Ciphertext) error {
	return enc.EncryptInto(poly.Poly{}, stdDev, g, out)
}

// Phase sets out = body - sum_j mask_j * S_j, the plaintext plus noise.
// out must not alias ct.Body.
func (enc *Encryptor) Phase(ct Ciphertext, out poly.Poly) error {
	if err := enc.check(ct); err != nil {
		return fmt.Errorf("glwe decrypt: %w", err)
	}
	if out.N() != enc.Degree() {
		return fmt.Errorf("glwe decrypt: %w", errs.Dimension("output degree", out.N(), enc.Degree()))
	}
	if err := enc.maskProduct(ct); err != nil {
		return err
	}
	if err := enc.plan.Backward(enc.arena, enc.acc, out); err != nil {
		return err
	}
	poly.Sub(ct.Body, out, out)
	return nil
}
