// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package glwe implements GLWE keys and ciphertexts, GGSW ciphertexts, the
// bootstrapping key, and the blind rotation at the heart of programmable
// bootstrapping.
package glwe

import (
	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
	"github.com/luxfi/tfhe/lwe"
	"github.com/luxfi/tfhe/poly"
)

// ErrDimensionMismatch is returned when ciphertexts, keys or lookup
// tables disagree on rank or degree.
var ErrDimensionMismatch = errs.ErrDimensionMismatch

// MaxRank bounds the GLWE rank accepted by decoders.
const MaxRank = 64

// SecretKey is a GLWE secret key of k polynomials. It is immutable after
// construction.
type SecretKey struct {
	polys []poly.Poly
}

// GenSecretKey draws a key of rank k and degree N from dist.
func GenSecretKey(k, N int, dist csprng.Distribution, g *csprng.Generator) *SecretKey {
	sk := &SecretKey{polys: make([]poly.Poly, k)}
	for j := range sk.polys {
		sk.polys[j] = poly.NewPoly(N)
		for i := range sk.polys[j].Coeffs {
			sk.polys[j].Coeffs[i] = uint64(g.Small(dist))
		}
	}
	return sk
}

// Rank returns k.
func (sk *SecretKey) Rank() int { return len(sk.polys) }

// Degree returns N.
func (sk *SecretKey) Degree() int { return sk.polys[0].N() }

// LWEKey returns the LWE key of dimension k*N that sample extraction
// produces ciphertexts under.
func (sk *SecretKey) LWEKey() *lwe.SecretKey {
	N := sk.Degree()
	coeffs := make([]int64, sk.Rank()*N)
	for j, p := range sk.polys {
		for i, c := range p.Coeffs {
			coeffs[j*N+i] = int64(c)
		}
	}
	return lwe.NewSecretKey(coeffs)
}

// Equal reports whether both keys hold the same polynomials.
func (sk *SecretKey) Equal(other *SecretKey) bool {
	if len(sk.polys) != len(other.polys) {
		return false
	}
	for j := range sk.polys {
		if !sk.polys[j].Equal(other.polys[j]) {
			return false
		}
	}
	return true
}

// Ciphertext is a GLWE ciphertext of k mask polynomials and a body.
type Ciphertext struct {
	Mask []poly.Poly
	Body poly.Poly
}

// NewCiphertext returns the zero ciphertext of rank k and degree N.
func NewCiphertext(k, N int) Ciphertext {
	ct := Ciphertext{Mask: make([]poly.Poly, k), Body: poly.NewPoly(N)}
	for j := range ct.Mask {
		ct.Mask[j] = poly.NewPoly(N)
	}
	return ct
}

// NewTrivial returns the noiseless encryption (0, pt).
func NewTrivial(k int, pt poly.Poly) Ciphertext {
	ct := NewCiphertext(k, pt.N())
	ct.Body.Copy(pt)
	return ct
}

// Rank returns k.
func (ct Ciphertext) Rank() int { return len(ct.Mask) }

// Degree returns N.
func (ct Ciphertext) Degree() int { return ct.Body.N() }

// Component returns mask polynomial j for j < k and the body for j = k.
func (ct Ciphertext) Component(j int) poly.Poly {
	if j == len(ct.Mask) {
		return ct.Body
	}
	return ct.Mask[j]
}

// Zero sets ct to the zero ciphertext.
func (ct Ciphertext) Zero() {
	for _, p := range ct.Mask {
		p.Zero()
	}
	ct.Body.Zero()
}

// CopyNew returns a deep copy of ct.
func (ct Ciphertext) CopyNew() Ciphertext {
	out := Ciphertext{Mask: make([]poly.Poly, len(ct.Mask)), Body: ct.Body.CopyNew()}
	for j, p := range ct.Mask {
		out.Mask[j] = p.CopyNew()
	}
	return out
}

// Copy copies other into ct.
func (ct Ciphertext) Copy(other Ciphertext) error {
	if err := checkShape(ct, other); err != nil {
		return err
	}
	for j := range ct.Mask {
		ct.Mask[j].Copy(other.Mask[j])
	}
	ct.Body.Copy(other.Body)
	return nil
}

// Equal reports whether ct and other are identical.
func (ct Ciphertext) Equal(other Ciphertext) bool {
	if len(ct.Mask) != len(other.Mask) || !ct.Body.Equal(other.Body) {
		return false
	}
	for j := range ct.Mask {
		if !ct.Mask[j].Equal(other.Mask[j]) {
			return false
		}
	}
	return true
}

func checkShape(want, got Ciphertext) error {
	if len(got.Mask) != len(want.Mask) {
		return errs.Dimension("glwe rank", len(got.Mask), len(want.Mask))
	}
	if got.Body.N() != want.Body.N() {
		return errs.Dimension("glwe degree", got.Body.N(), want.Body.N())
	}
	for _, p := range got.Mask {
		if p.N() != want.Body.N() {
			return errs.Dimension("glwe mask degree", p.N(), want.Body.N())
		}
	}
	return nil
}

// Add sets out = a + b.
func Add(a, b, out Ciphertext) error {
	if err := checkShape(out, a); err != nil {
		return err
	}
	if err := checkShape(out, b); err != nil {
		return err
	}
	for j := 0; j <= len(out.Mask); j++ {
		poly.Add(a.Component(j), b.Component(j), out.Component(j))
	}
	return nil
}

// Sub sets out = a - b.
func Sub(a, b, out Ciphertext) error {
	if err := checkShape(out, a); err != nil {
		return err
	}
	if err := checkShape(out, b); err != nil {
		return err
	}
	for j := 0; j <= len(out.Mask); j++ {
		poly.Sub(a.Component(j), b.Component(j), out.Component(j))
	}
	return nil
}

// Negate sets out = -ct.
func Negate(ct, out Ciphertext) error {
	if err := checkShape(out, ct); err != nil {
		return err
	}
	for j := 0; j <= len(out.Mask); j++ {
		poly.Neg(ct.Component(j), out.Component(j))
	}
	return nil
}

// MonomialMul sets out = ct * X^k. out must not alias ct.
func MonomialMul(ct Ciphertext, k int, out Ciphertext) error {
	if err := checkShape(out, ct); err != nil {
		return err
	}
	for j := 0; j <= len(out.Mask); j++ {
		poly.MonomialMul(ct.Component(j), k, out.Component(j))
	}
	return nil
}
