// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
)

// MaxPublicKeySize bounds the number of encryptions of zero in a public key.
const MaxPublicKeySize = 1 << 26

// PublicKeySize returns the number of encryptions of zero a public key of
// dimension n holds: enough that a random subset sum of them is
// statistically close to uniform over Z_q^(n+1).
func PublicKeySize(n int) int { return (n+1)*64 + 128 }

// PublicKey is a compressed LWE public key: a list of encryptions of zero
// whose masks are regenerated from a seed, so only the bodies are stored.
// It is immutable after construction.
type PublicKey struct {
	dim    int
	seed   csprng.Seed
	bodies []uint64
}

// GenPublicKey returns a public key of size encryptions of zero under sk.
// The mask seed and the noise are drawn from g.
func GenPublicKey(sk *SecretKey, size int, stdDev float64, g *csprng.Generator) (*PublicKey, error) {
	if size < 1 || size > MaxPublicKeySize {
		return nil, fmt.Errorf("%w: public key size %d outside [1, %d]", errs.ErrInvalidParameters, size, MaxPublicKeySize)
	}
	pk := &PublicKey{dim: sk.Dimension(), bodies: make([]uint64, size)}
	g.Read(pk.seed[:])

	masks := csprng.NewSeeded(pk.seed)
	mask := make([]uint64, pk.dim)
	for i := range pk.bodies {
		masks.Uniform(mask)
		pk.bodies[i] = dot(mask, sk.coeffs) + g.Gaussian(stdDev)
	}
	return pk, nil
}

// Dimension returns n.
func (pk *PublicKey) Dimension() int { return pk.dim }

// Size returns the number of encryptions of zero.
func (pk *PublicKey) Size() int { return len(pk.bodies) }

// Seed returns the seed the masks are generated from.
func (pk *PublicKey) Seed() csprng.Seed { return pk.seed }

// Equal reports whether both keys are identical.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk.dim != other.dim || pk.seed != other.seed || len(pk.bodies) != len(other.bodies) {
		return false
	}
	var diff uint64
	for i := range pk.bodies {
		diff |= pk.bodies[i] ^ other.bodies[i]
	}
	return diff == 0
}

// PublicEncryptor encrypts under a public key. It holds the expanded
// masks and is read-only, so one PublicEncryptor may serve many
// goroutines as long as each passes its own generator.
type PublicEncryptor struct {
	dim    int
	masks  []uint64 // row i at [i*dim, (i+1)*dim)
	bodies []uint64
}

// NewPublicEncryptor expands the masks of pk.
func NewPublicEncryptor(pk *PublicKey) *PublicEncryptor {
	pe := &PublicEncryptor{
		dim:    pk.dim,
		masks:  make([]uint64, len(pk.bodies)*pk.dim),
		bodies: pk.bodies,
	}
	csprng.NewSeeded(pk.seed).Uniform(pe.masks)
	return pe
}

// Dimension returns n.
func (pe *PublicEncryptor) Dimension() int { return pe.dim }

// Encrypt returns an encryption of plaintext: the sum of a uniformly
// random subset of the encryptions of zero, plus plaintext on the body.
func (pe *PublicEncryptor) Encrypt(plaintext uint64, g *csprng.Generator) Ciphertext {
	ct := NewCiphertext(pe.dim)
	pe.encrypt(plaintext, g, &ct)
	return ct
}

// EncryptInto encrypts plaintext into out.
func (pe *PublicEncryptor) EncryptInto(plaintext uint64, g *csprng.Generator, out *Ciphertext) error {
	if len(out.Mask) != pe.dim {
		return fmt.Errorf("public encrypt: %w", errs.Dimension("ciphertext dimension", len(out.Mask), pe.dim))
	}
	pe.encrypt(plaintext, g, out)
	return nil
}

func (pe *PublicEncryptor) encrypt(plaintext uint64, g *csprng.Generator, out *Ciphertext) {
	clear(out.Mask)
	out.Body = plaintext
	var bits uint64
	for i, body := range pe.bodies {
		if i%64 == 0 {
			bits = g.Uint64()
		}
		// Every row is added, scaled by its selector bit.
		sel := bits & 1
		bits >>= 1
		row := pe.masks[i*pe.dim : (i+1)*pe.dim]
		for j, a := range row {
			out.Mask[j] += sel * a
		}
		out.Body += sel * body
	}
}
