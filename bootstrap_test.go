// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupTable(t *testing.T) {
	params, err := NewParametersFromLiteral(PToyInsecure)
	require.NoError(t, err)
	enc := NewEncoder(params)

	// N=8, p=4: boxes of two coefficients rotated by one.
	lut := NewLookupTable(params, func(m uint64) uint64 { return m + 1 })
	require.Equal(t, 8, lut.Degree())
	d := enc.Delta()
	require.Equal(t, []uint64{1 * d, 2 * d, 2 * d, 3 * d, 3 * d, 0, 0, -d}, lut.Poly().Coeffs)

	// Poly returns a copy.
	cp := lut.Poly()
	cp.Coeffs[0] = 42
	require.Equal(t, d, lut.Poly().Coeffs[0])

	other, err := NewParametersFromLiteral(testParams)
	require.NoError(t, err)
	require.ErrorIs(t, lut.check(other), ErrInvalidLookupTable)
	require.ErrorIs(t, (*LookupTable)(nil).check(params), ErrInvalidLookupTable)
	require.NoError(t, lut.check(params))
}

func TestBootstrap(t *testing.T) {
	functions := []struct {
		name string
		f    func(uint64) uint64
	}{
		{"Identity", func(m uint64) uint64 { return m }},
		{"Square", func(m uint64) uint64 { return m * m }},
		{"Complement", func(m uint64) uint64 { return 3 - m }},
		{"Successor", func(m uint64) uint64 { return m + 1 }},
		{"Constant", func(uint64) uint64 { return 1 }},
		{"IsZero", func(m uint64) uint64 { return bit(m == 0) }},
	}
	for _, lit := range []ParametersLiteral{testParams, extended(testParams)} {
		tc := setupTest(t, lit)
		p := tc.params.PlaintextModulus()
		msg := tc.params.MessageModulus()
		t.Run(fmt.Sprintf("Extended=%t", lit.ExtendedPrecision), func(t *testing.T) {
			for _, fn := range functions {
				t.Run(fn.name, func(t *testing.T) {
					lut := NewLookupTable(tc.params, fn.f)
					for m := uint64(0); m < p; m++ {
						out, err := tc.eval.Bootstrap(tc.encrypt(t, m), lut)
						require.NoError(t, err)
						want := fn.f(m) % p
						require.Equal(t, want, tc.decryptWithCarry(t, out), "f(%d)", m)
						require.Equal(t, want%msg, tc.decrypt(t, out), "f(%d) mod %d", m, msg)
					}
				})
			}
		})
	}
}

func TestBootstrapFunc(t *testing.T) {
	tc := setupTest(t, testParams)
	ct := tc.encrypt(t, 3)
	out, err := tc.eval.BootstrapFunc(ct, func(m uint64) uint64 { return m / 2 })
	require.NoError(t, err)
	require.Equal(t, uint64(1), tc.decryptWithCarry(t, out))

	// Bootstrapping a trivial ciphertext needs no key material on the
	// client side.
	trivial, err := tc.enc.EncryptTrivial(2)
	require.NoError(t, err)
	out, err = tc.eval.Refresh(trivial)
	require.NoError(t, err)
	require.Equal(t, uint64(2), tc.decryptWithCarry(t, out))
}

// TestNoiseReset checks that the output noise of a bootstrap does not
// depend on the noise of its input.
func TestNoiseReset(t *testing.T) {
	tc := setupTest(t, testParams)
	threshold := tc.params.DecodingThreshold()
	const samples = 64

	measure := func(stdDev float64) (in, out NoiseStats) {
		inNoise := make([]float64, samples)
		outNoise := make([]float64, samples)
		for i := 0; i < samples; i++ {
			m := uint64(i) % tc.params.PlaintextModulus()
			ct, err := tc.enc.EncryptWithStdDev(m, stdDev)
			require.NoError(t, err)
			inNoise[i], err = tc.dec.Noise(ct, m)
			require.NoError(t, err)
			res, err := tc.eval.Refresh(ct)
			require.NoError(t, err)
			require.Equal(t, m, tc.decryptWithCarry(t, res))
			outNoise[i], err = tc.dec.Noise(res, m)
			require.NoError(t, err)
		}
		in, err := MeasureNoise(inNoise)
		require.NoError(t, err)
		out, err = MeasureNoise(outNoise)
		require.NoError(t, err)
		return in, out
	}

	lowIn, lowOut := measure(tc.params.LWEStdDev())
	highIn, highOut := measure(0x1p-9)

	require.Greater(t, highIn.Variance, 1000*lowIn.Variance)
	ratio := highOut.Variance / lowOut.Variance
	require.InDelta(t, 1, ratio, 2, "output noise variance ratio %.3f", ratio)
	require.Less(t, lowOut.MaxAbs, threshold/4)
	require.Less(t, highOut.MaxAbs, threshold/4)
	t.Logf("output noise log2 std: %.2f and %.2f", lowOut.Log2StdDev(), highOut.Log2StdDev())
}

func TestMeasureNoise(t *testing.T) {
	s, err := MeasureNoise([]float64{-1, 1, -1, 1})
	require.NoError(t, err)
	require.Equal(t, 4, s.Samples)
	require.InDelta(t, 0, s.Mean, 1e-12)
	require.InDelta(t, 4.0/3, s.Variance, 1e-12)
	require.InDelta(t, 1, s.MaxAbs, 1e-12)

	_, err = MeasureNoise([]float64{1})
	require.ErrorIs(t, err, ErrInvalidParameters)
}

func TestBootstrapBatch(t *testing.T) {
	tc := setupTest(t, testParams)
	lut := NewLookupTable(tc.params, func(m uint64) uint64 { return 3 - m })
	cts := make([]*Ciphertext, 13)
	for i := range cts {
		cts[i] = tc.encrypt(t, uint64(i)%4)
	}

	serial, err := tc.eval.ShallowCopy().WithWorkers(1).BootstrapBatch(cts, lut)
	require.NoError(t, err)
	parallel, err := tc.eval.ShallowCopy().WithWorkers(4).BootstrapBatch(cts, lut)
	require.NoError(t, err)
	require.Len(t, parallel, len(cts))
	for i := range cts {
		require.Equal(t, 3-uint64(i)%4, tc.decryptWithCarry(t, parallel[i]))
		// Bootstrapping is deterministic, whichever worker ran it.
		require.True(t, serial[i].Equal(parallel[i]), "ciphertext %d", i)
	}

	out, err := tc.eval.BootstrapBatch(nil, lut)
	require.NoError(t, err)
	require.Empty(t, out)

	cts[7] = NewCiphertext(tc.params.LWEDimension() - 1)
	_, err = tc.eval.ShallowCopy().WithWorkers(4).BootstrapBatch(cts, lut)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	toy, err := NewParametersFromLiteral(PToyInsecure)
	require.NoError(t, err)
	_, err = tc.eval.BootstrapBatch(cts[:1], IdentityLookupTable(toy))
	require.ErrorIs(t, err, ErrInvalidLookupTable)
}

func TestBootstrapBivariate(t *testing.T) {
	tc := setupTest(t, testParams)
	msg := tc.params.MessageModulus()
	functions := map[string]func(x, y uint64) uint64{
		"Mul":  func(x, y uint64) uint64 { return x * y },
		"Sub":  func(x, y uint64) uint64 { return (x + msg - y) % msg },
		"Less": func(x, y uint64) uint64 { return bit(x < y) },
	}
	for name, f := range functions {
		t.Run(name, func(t *testing.T) {
			for x := uint64(0); x < msg; x++ {
				for y := uint64(0); y < msg; y++ {
					out, err := tc.eval.BootstrapBivariate(tc.encrypt(t, x), tc.encrypt(t, y), f)
					require.NoError(t, err)
					require.Equal(t, f(x, y)%msg, tc.decrypt(t, out), "f(%d, %d)", x, y)
				}
			}
		})
	}

	toy := setupTest(t, PToyInsecure)
	_, err := toy.eval.BootstrapBivariate(toy.encrypt(t, 1), toy.encrypt(t, 1), functions["Mul"])
	require.ErrorIs(t, err, ErrInvalidParameters)
}

func TestEvaluatorErrors(t *testing.T) {
	tc := setupTest(t, testParams)
	toy := setupTest(t, PToyInsecure)

	_, err := NewEvaluator(tc.params, toy.keys.ServerKey)
	require.ErrorIs(t, err, ErrInvalidParameters)

	_, err = tc.eval.Bootstrap(tc.encrypt(t, 1), IdentityLookupTable(toy.params))
	require.ErrorIs(t, err, ErrInvalidLookupTable)
	_, err = tc.eval.Refresh(toy.encrypt(t, 1))
	require.ErrorIs(t, err, ErrDimensionMismatch)
	require.ErrorIs(t, err, ErrConfiguration)
}
