// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package poly

import (
	"fmt"
)

// MaxDecompositionLevel bounds the number of levels of a Decomposer.
const MaxDecompositionLevel = 64

// Decomposer splits torus values into signed base-2^baseLog digits.
//
// Level l (0 is the most significant) has weight 2^(64-baseLog*(l+1)).
// Digits lie in [-B/2, B/2) and are returned in two's complement.
type Decomposer struct {
	baseLog int
	level   int
}

// NewDecomposer returns the decomposer of the given base and level.
func NewDecomposer(baseLog, level int) (*Decomposer, error) {
	if baseLog < 1 || level < 1 || baseLog*level > 64 {
		return nil, fmt.Errorf("%w: decomposition base log %d with %d levels must satisfy 1 <= baseLog*level <= 64", ErrInvalidDegree, baseLog, level)
	}
	return &Decomposer{baseLog: baseLog, level: level}, nil
}

// BaseLog returns log2 of the decomposition base.
func (d *Decomposer) BaseLog() int { return d.baseLog }

// Level returns the number of levels.
func (d *Decomposer) Level() int { return d.level }

// Scale returns the weight q/B^(l+1) of level l.
func (d *Decomposer) Scale(l int) uint64 {
	return 1 << (64 - d.baseLog*(l+1))
}

// ClosestRepresentable rounds x to the nearest multiple of the smallest
// weight.
func (d *Decomposer) ClosestRepresentable(x uint64) uint64 {
	shift := 64 - d.baseLog*d.level
	if shift == 0 {
		return x
	}
	r := (x >> shift) + ((x >> (shift - 1)) & 1)
	return r << shift
}

// DecomposeScalar writes the level digits of x into digits.
func (d *Decomposer) DecomposeScalar(x uint64, digits []uint64) {
	shift := 64 - d.baseLog*d.level
	var rep uint64
	if shift == 0 {
		rep = x
	} else {
		rep = (x >> shift) + ((x >> (shift - 1)) & 1)
	}
	mask := uint64(1)<<d.baseLog - 1
	for l := d.level - 1; l >= 0; l-- {
		digit := rep & mask
		rep >>= d.baseLog
		carry := digit >> (d.baseLog - 1)
		digit -= carry << d.baseLog
		rep += carry
		digits[l] = digit
	}
}

// DecomposePoly writes the level polynomials of in into out.
func (d *Decomposer) DecomposePoly(in Poly, out []Poly) {
	var digits [MaxDecompositionLevel]uint64
	for j, x := range in.Coeffs {
		d.DecomposeScalar(x, digits[:d.level])
		for l := 0; l < d.level; l++ {
			out[l].Coeffs[j] = digits[l]
		}
	}
}

// Recompose returns sum_l digits[l]*Scale(l).
func (d *Decomposer) Recompose(digits []uint64) uint64 {
	var x uint64
	for l := 0; l < d.level; l++ {
		x += digits[l] * d.Scale(l)
	}
	return x
}
