// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package csprng

import (
	"fmt"
	"strings"

	"github.com/luxfi/tfhe/internal/errs"
)

// Distribution is the distribution secret-key coefficients are drawn from.
type Distribution uint8

const (
	Binary Distribution = iota
	Ternary
	Gaussian
)

// GaussianSecretStdDev is the standard deviation of Gaussian secret keys.
const GaussianSecretStdDev = 3.19

func (d Distribution) String() string {
	switch d {
	case Binary:
		return "binary"
	case Ternary:
		return "ternary"
	case Gaussian:
		return "gaussian"
	default:
		return fmt.Sprintf("distribution(%d)", uint8(d))
	}
}

// Valid reports whether d is a known distribution.
func (d Distribution) Valid() bool { return d <= Gaussian }

// ParseDistribution parses the String form of a distribution.
func ParseDistribution(s string) (Distribution, error) {
	switch strings.ToLower(s) {
	case "binary":
		return Binary, nil
	case "ternary":
		return Ternary, nil
	case "gaussian":
		return Gaussian, nil
	}
	return 0, fmt.Errorf("%w: unknown secret distribution %q", errs.ErrInvalidParameters, s)
}

// Source holds the two independent streams of a session: one for secret
// key material and one for encryption masks and noise.
type Source struct {
	seed       Seed
	secret     *Generator
	encryption *Generator
}

// NewSource returns a Source seeded from the operating system.
func NewSource() (*Source, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeededSource(seed), nil
}

// NewSeededSource returns the deterministic Source of seed.
func NewSeededSource(seed Seed) *Source {
	return &Source{
		seed:       seed,
		secret:     NewSeeded(deriveSeed(seed[:], "secret")),
		encryption: NewSeeded(deriveSeed(seed[:], "encryption")),
	}
}

// Seed returns the seed the Source replays from.
func (s *Source) Seed() Seed { return s.seed }

// Secret is the key generation stream.
func (s *Source) Secret() *Generator { return s.secret }

// Encryption is the mask and noise stream.
func (s *Source) Encryption() *Generator { return s.encryption }

// Fork returns a child Source whose streams are forked from both of s.
func (s *Source) Fork(label string) *Source {
	var seed Seed
	copy(seed[:], s.secret.Bytes(SeedSize/2))
	copy(seed[SeedSize/2:], s.encryption.Bytes(SeedSize/2))
	seed = deriveSeed(seed[:], label)
	return NewSeededSource(seed)
}
