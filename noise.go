// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// NoiseStats summarizes torus noise samples.
type NoiseStats struct {
	Samples  int
	Mean     float64
	Variance float64
	StdDev   float64
	MaxAbs   float64
}

// Log2StdDev returns log2 of the standard deviation, the usual way to quote
// noise on the torus.
func (s NoiseStats) Log2StdDev() float64 { return math.Log2(s.StdDev) }

// MeasureNoise computes statistics of noise samples as returned by
// Decryptor.Noise.
func MeasureNoise(samples []float64) (NoiseStats, error) {
	if len(samples) < 2 {
		return NoiseStats{}, fmt.Errorf("%w: need at least 2 noise samples, have %d", ErrInvalidParameters, len(samples))
	}
	data := stats.Float64Data(samples)
	mean, err := stats.Mean(data)
	if err != nil {
		return NoiseStats{}, err
	}
	variance, err := stats.SampleVariance(data)
	if err != nil {
		return NoiseStats{}, err
	}
	lo, err := stats.Min(data)
	if err != nil {
		return NoiseStats{}, err
	}
	hi, err := stats.Max(data)
	if err != nil {
		return NoiseStats{}, err
	}
	return NoiseStats{
		Samples:  len(samples),
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		MaxAbs:   math.Max(-lo, hi),
	}, nil
}

// FreshNoiseVariance is the noise variance of a fresh encryption.
func (p Parameters) FreshNoiseVariance() float64 {
	return p.lit.LWEStdDev * p.lit.LWEStdDev
}

// DecodingThreshold is the largest noise magnitude decoding tolerates: half
// an encoding step.
func (p Parameters) DecodingThreshold() float64 {
	return 0.25 / float64(p.PlaintextModulus())
}
