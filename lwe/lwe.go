// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package lwe implements LWE secret keys and ciphertexts over the torus
// Z/2^64Z, their linear homomorphic operations, and keyswitching.
package lwe

import (
	"fmt"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
)

// ErrDimensionMismatch is returned when a ciphertext and a key or two
// ciphertexts disagree on their dimension.
var ErrDimensionMismatch = errs.ErrDimensionMismatch

// MaxDimension bounds LWE dimensions accepted by decoders.
const MaxDimension = 1 << 20

// SecretKey is an LWE secret key. It is immutable after construction.
type SecretKey struct {
	coeffs []uint64 // two's complement of small signed values
}

// GenSecretKey draws a key of dimension n from dist.
func GenSecretKey(n int, dist csprng.Distribution, g *csprng.Generator) *SecretKey {
	sk := &SecretKey{coeffs: make([]uint64, n)}
	for i := range sk.coeffs {
		sk.coeffs[i] = uint64(g.Small(dist))
	}
	return sk
}

// NewSecretKey returns the key with the given signed coefficients.
func NewSecretKey(coeffs []int64) *SecretKey {
	sk := &SecretKey{coeffs: make([]uint64, len(coeffs))}
	for i, c := range coeffs {
		sk.coeffs[i] = uint64(c)
	}
	return sk
}

// Dimension returns n.
func (sk *SecretKey) Dimension() int { return len(sk.coeffs) }

// Coefficient returns the i-th key coefficient.
func (sk *SecretKey) Coefficient(i int) int64 { return int64(sk.coeffs[i]) }

// Equal reports whether both keys hold the same coefficients.
func (sk *SecretKey) Equal(other *SecretKey) bool {
	if len(sk.coeffs) != len(other.coeffs) {
		return false
	}
	var diff uint64
	for i := range sk.coeffs {
		diff |= sk.coeffs[i] ^ other.coeffs[i]
	}
	return diff == 0
}

// Ciphertext is an LWE ciphertext (mask, body). It carries no reference to
// its key.
type Ciphertext struct {
	Mask []uint64
	Body uint64
}

// NewCiphertext returns the zero ciphertext of dimension n.
func NewCiphertext(n int) Ciphertext {
	return Ciphertext{Mask: make([]uint64, n)}
}

// NewTrivial returns the noiseless encryption (0, plaintext) of dimension n.
func NewTrivial(n int, plaintext uint64) Ciphertext {
	return Ciphertext{Mask: make([]uint64, n), Body: plaintext}
}

// Dimension returns n.
func (ct Ciphertext) Dimension() int { return len(ct.Mask) }

// CopyNew returns a deep copy of ct.
func (ct Ciphertext) CopyNew() Ciphertext {
	return Ciphertext{Mask: append([]uint64(nil), ct.Mask...), Body: ct.Body}
}

// Copy copies other into ct, which must have the same dimension.
func (ct *Ciphertext) Copy(other Ciphertext) error {
	if len(ct.Mask) != len(other.Mask) {
		return errs.Dimension("ciphertext dimension", len(other.Mask), len(ct.Mask))
	}
	copy(ct.Mask, other.Mask)
	ct.Body = other.Body
	return nil
}

// Equal reports whether ct and other are identical.
func (ct Ciphertext) Equal(other Ciphertext) bool {
	if len(ct.Mask) != len(other.Mask) {
		return false
	}
	diff := ct.Body ^ other.Body
	for i := range ct.Mask {
		diff |= ct.Mask[i] ^ other.Mask[i]
	}
	return diff == 0
}

func checkKey(sk *SecretKey, ct Ciphertext) error {
	if len(ct.Mask) != len(sk.coeffs) {
		return errs.Dimension("ciphertext dimension", len(ct.Mask), len(sk.coeffs))
	}
	return nil
}

func dot(mask, key []uint64) uint64 {
	var acc uint64
	for i := range mask {
		acc += mask[i] * key[i]
	}
	return acc
}

// Encrypt returns an encryption of plaintext under sk with Gaussian noise
// of standard deviation stdDev (relative to the torus).
func Encrypt(sk *SecretKey, plaintext uint64, stdDev float64, g *csprng.Generator) Ciphertext {
	ct := NewCiphertext(sk.Dimension())
	encrypt(sk, plaintext, stdDev, g, ct.Mask, &ct.Body)
	return ct
}

// EncryptInto encrypts plaintext into out.
func EncryptInto(sk *SecretKey, plaintext uint64, stdDev float64, g *csprng.Generator, out *Ciphertext) error {
	if err := checkKey(sk, *out); err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	encrypt(sk, plaintext, stdDev, g, out.Mask, &out.Body)
	return nil
}

func encrypt(sk *SecretKey, plaintext uint64, stdDev float64, g *csprng.Generator, mask []uint64, body *uint64) {
	g.Uniform(mask)
	*body = dot(mask, sk.coeffs) + plaintext + g.Gaussian(stdDev)
}

// Phase returns body - <mask, s>: the plaintext plus noise.
func Phase(sk *SecretKey, ct Ciphertext) (uint64, error) {
	if err := checkKey(sk, ct); err != nil {
		return 0, fmt.Errorf("decrypt: %w", err)
	}
	return ct.Body - dot(ct.Mask, sk.coeffs), nil
}
