// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package csprng provides the deterministic, forkable randomness used for
// key generation and encryption.
//
// A Generator is a blake2b extendable-output stream keyed by a 32-byte seed.
// Seeded generators replay exactly; unseeded generators draw their seed from
// the operating system. A Generator is not safe for concurrent use: parallel
// workers each take their own child through Fork.
package csprng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/luxfi/tfhe/internal/errs"
)

// ErrEntropySourceUnavailable is returned when the operating system
// entropy source cannot be read.
var ErrEntropySourceUnavailable = errs.ErrEntropySourceUnavailable

// SeedSize is the size of a seed in bytes.
const SeedSize = 32

// Seed keys a Generator.
type Seed [SeedSize]byte

// NewSeed reads a fresh seed from the operating system.
func NewSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("%w: %v", ErrEntropySourceUnavailable, err)
	}
	return s, nil
}

const bufferSize = 512

// Generator is a cryptographically secure byte stream.
type Generator struct {
	xof blake2b.XOF
	buf [bufferSize]byte
	off int

	spare    float64
	hasSpare bool
}

// New returns a Generator seeded from the operating system.
func New() (*Generator, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeeded(seed), nil
}

// NewSeeded returns the Generator keyed by seed. Two generators built from
// the same seed produce the same stream.
func NewSeeded(seed Seed) *Generator {
	xof, err := blake2b.NewXOF(blake2b.OutputLengthUnknown, seed[:])
	if err != nil {
		// Only reachable with keys longer than 64 bytes.
		panic(err)
	}
	return &Generator{xof: xof, off: bufferSize}
}

func (g *Generator) refill() {
	if _, err := g.xof.Read(g.buf[:]); err != nil {
		// blake2b only fails past 256 GiB of output.
		panic(fmt.Errorf("csprng: stream exhausted: %w", err))
	}
	g.off = 0
}

// Read fills p with random bytes. It never fails.
func (g *Generator) Read(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if g.off == bufferSize {
			g.refill()
		}
		c := copy(p, g.buf[g.off:])
		g.off += c
		p = p[c:]
	}
	return n, nil
}

// Bytes returns the next n bytes of the stream.
func (g *Generator) Bytes(n int) []byte {
	b := make([]byte, n)
	g.Read(b)
	return b
}

// Uint64 returns a uniform 64-bit value.
func (g *Generator) Uint64() uint64 {
	if bufferSize-g.off < 8 {
		var b [8]byte
		g.Read(b[:])
		return binary.LittleEndian.Uint64(b[:])
	}
	v := binary.LittleEndian.Uint64(g.buf[g.off:])
	g.off += 8
	return v
}

// Uniform fills dst with uniform torus elements.
func (g *Generator) Uniform(dst []uint64) {
	for i := range dst {
		dst[i] = g.Uint64()
	}
}

// Float64 returns a uniform value in [0, 1).
func (g *Generator) Float64() float64 {
	return float64(g.Uint64()>>11) * 0x1p-53
}

// Normal returns a standard normal sample.
func (g *Generator) Normal() float64 {
	if g.hasSpare {
		g.hasSpare = false
		return g.spare
	}
	// 1 - u lies in (0, 1], so the logarithm is finite.
	u1 := 1 - g.Float64()
	u2 := g.Float64()
	r := math.Sqrt(-2 * math.Log(u1))
	s, c := math.Sincos(2 * math.Pi * u2)
	g.spare, g.hasSpare = r*s, true
	return r * c
}

// Gaussian returns a centred normal sample on the torus whose standard
// deviation stdDev is relative to the torus (1.0 is the whole torus).
func (g *Generator) Gaussian(stdDev float64) uint64 {
	return FromTorus(g.Normal() * stdDev)
}

// FromTorus maps a real number to the discretized torus Z/2^64Z.
func FromTorus(x float64) uint64 {
	x -= math.Round(x)
	v := math.Round(x * 0x1p64)
	if v >= 0x1p63 {
		v -= 0x1p64
	}
	return uint64(int64(v))
}

// ToTorus maps a torus element to the centred real interval [-1/2, 1/2).
func ToTorus(x uint64) float64 {
	return float64(int64(x)) * 0x1p-64
}

// Small returns a secret-key coefficient from dist.
func (g *Generator) Small(dist Distribution) int64 {
	switch dist {
	case Ternary:
		for {
			var b [1]byte
			g.Read(b[:])
			for i := 0; i < 4; i++ {
				if v := (b[0] >> (2 * i)) & 3; v != 3 {
					return int64(v) - 1
				}
			}
		}
	case Gaussian:
		return int64(math.Round(g.Normal() * GaussianSecretStdDev))
	default:
		var b [1]byte
		g.Read(b[:])
		return int64(b[0] & 1)
	}
}

// Fork returns a child generator keyed by fresh parent output and label.
// The parent advances, so the two streams never overlap.
func (g *Generator) Fork(label string) *Generator {
	return NewSeeded(deriveSeed(g.Bytes(SeedSize), label))
}

func deriveSeed(key []byte, label string) Seed {
	h, err := blake2b.New256(key)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(label))
	var s Seed
	copy(s[:], h.Sum(nil))
	return s
}
