// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package glwe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
	"github.com/luxfi/tfhe/lwe"
	"github.com/luxfi/tfhe/poly"
)

const (
	testN       = 512
	testK       = 1
	testStdDev  = 0x1p-40
	testBaseLog = 10
	testLevel   = 2
)

type testContext struct {
	g     *csprng.Generator
	plan  *poly.Plan
	exact *poly.ExactPlan
	sk    *SecretKey
	enc   *Encryptor
}

func newTestContext(t testing.TB, label string, dist csprng.Distribution) *testContext {
	var seed csprng.Seed
	copy(seed[:], label)
	g := csprng.NewSeeded(seed)

	plan, err := poly.NewPlan(testN)
	require.NoError(t, err)
	exact, err := poly.NewExactPlan(testN)
	require.NoError(t, err)
	sk := GenSecretKey(testK, testN, dist, g)
	enc, err := NewEncryptor(sk, exact)
	require.NoError(t, err)
	return &testContext{g: g, plan: plan, exact: exact, sk: sk, enc: enc}
}

func (tc *testContext) encrypt(t testing.TB, pt poly.Poly) Ciphertext {
	ct := NewCiphertext(testK, testN)
	require.NoError(t, tc.enc.EncryptInto(pt, testStdDev, tc.g, ct))
	return ct
}

func (tc *testContext) phase(t testing.TB, ct Ciphertext) poly.Poly {
	out := poly.NewPoly(testN)
	require.NoError(t, tc.enc.Phase(ct, out))
	return out
}

// requireClose checks every coefficient of a and b differs by less than 2^logBound.
func requireClose(t testing.TB, a, b poly.Poly, logBound int) {
	t.Helper()
	for i := range a.Coeffs {
		d := int64(a.Coeffs[i] - b.Coeffs[i])
		if d < 0 {
			d = -d
		}
		require.Less(t, d, int64(1)<<logBound, "coefficient %d", i)
	}
}

func randomMessage(g *csprng.Generator) poly.Poly {
	pt := poly.NewPoly(testN)
	for i := range pt.Coeffs {
		pt.Coeffs[i] = (g.Uint64() & 7) << 60
	}
	return pt
}

func TestEncryptPhase(t *testing.T) {
	for _, dist := range []csprng.Distribution{csprng.Binary, csprng.Ternary, csprng.Gaussian} {
		t.Run(dist.String(), func(t *testing.T) {
			tc := newTestContext(t, "phase/"+dist.String(), dist)
			require.Equal(t, testK, tc.enc.Rank())
			require.Equal(t, testN, tc.enc.Degree())

			pt := randomMessage(tc.g)
			ct := tc.encrypt(t, pt)
			require.Equal(t, testK, ct.Rank())
			require.Equal(t, testN, ct.Degree())
			requireClose(t, tc.phase(t, ct), pt, 30)

			zero := NewCiphertext(testK, testN)
			require.NoError(t, tc.enc.EncryptZeroInto(testStdDev, tc.g, zero))
			requireClose(t, tc.phase(t, zero), poly.NewPoly(testN), 30)

			cp := tc.enc.ShallowCopy()
			out := poly.NewPoly(testN)
			require.NoError(t, cp.Phase(ct, out))
			requireClose(t, out, pt, 30)
		})
	}
}

func TestEncryptorErrors(t *testing.T) {
	tc := newTestContext(t, "errors", csprng.Binary)

	other, err := poly.NewExactPlan(256)
	require.NoError(t, err)
	_, err = NewEncryptor(tc.sk, other)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	require.ErrorIs(t, tc.enc.EncryptInto(poly.NewPoly(testN), testStdDev, tc.g, NewCiphertext(2, testN)), ErrDimensionMismatch)
	require.ErrorIs(t, tc.enc.EncryptInto(poly.NewPoly(testN), testStdDev, tc.g, NewCiphertext(testK, 256)), ErrDimensionMismatch)
	require.ErrorIs(t, tc.enc.EncryptInto(poly.NewPoly(64), testStdDev, tc.g, NewCiphertext(testK, testN)), ErrDimensionMismatch)
	require.ErrorIs(t, tc.enc.Phase(NewCiphertext(testK, testN), poly.NewPoly(64)), ErrDimensionMismatch)
}

func TestLinearOperations(t *testing.T) {
	tc := newTestContext(t, "linear", csprng.Binary)
	m1, m2 := randomMessage(tc.g), randomMessage(tc.g)
	c1, c2 := tc.encrypt(t, m1), tc.encrypt(t, m2)
	out := NewCiphertext(testK, testN)
	want := poly.NewPoly(testN)

	require.NoError(t, Add(c1, c2, out))
	poly.Add(m1, m2, want)
	requireClose(t, tc.phase(t, out), want, 31)

	require.NoError(t, Sub(c1, c2, out))
	poly.Sub(m1, m2, want)
	requireClose(t, tc.phase(t, out), want, 31)

	require.NoError(t, Negate(c1, out))
	poly.Neg(m1, want)
	requireClose(t, tc.phase(t, out), want, 31)

	require.NoError(t, MonomialMul(c1, 7, out))
	poly.MonomialMul(m1, 7, want)
	requireClose(t, tc.phase(t, out), want, 31)

	trivial := NewTrivial(testK, m1)
	require.True(t, tc.phase(t, trivial).Equal(m1))

	cp := c1.CopyNew()
	require.True(t, cp.Equal(c1))
	cp.Zero()
	require.False(t, cp.Equal(c1))
	require.NoError(t, cp.Copy(c1))
	require.True(t, cp.Equal(c1))

	require.ErrorIs(t, Add(c1, NewCiphertext(2, testN), out), ErrDimensionMismatch)
	require.ErrorIs(t, Sub(c1, NewCiphertext(testK, 256), out), ErrDimensionMismatch)
	require.ErrorIs(t, cp.Copy(NewCiphertext(2, testN)), ErrDimensionMismatch)
}

func (tc *testContext) ggsw(t testing.TB, m int64, exact bool) *GGSW {
	ggsw, err := EncryptGGSW(tc.enc, m, testBaseLog, testLevel, testStdDev, tc.g)
	require.NoError(t, err)
	var ntt *poly.ExactPlan
	if exact {
		ntt = tc.exact
	}
	require.NoError(t, ggsw.prepare(tc.plan, ntt, poly.NewArena(testN)))
	return ggsw
}

func (tc *testContext) evaluator(t testing.TB, exact bool) *Evaluator {
	var ntt *poly.ExactPlan
	if exact {
		ntt = tc.exact
	}
	e, err := NewEvaluator(tc.plan, ntt, testK, testBaseLog, testLevel)
	require.NoError(t, err)
	require.Equal(t, exact, e.Extended())
	return e
}

func TestExternalProductAndCMux(t *testing.T) {
	for _, exact := range []bool{false, true} {
		t.Run(fmt.Sprintf("exact=%v", exact), func(t *testing.T) {
			tc := newTestContext(t, "external", csprng.Binary)
			e := tc.evaluator(t, exact)

			m0, m1 := randomMessage(tc.g), randomMessage(tc.g)
			c0, c1 := tc.encrypt(t, m0), tc.encrypt(t, m1)
			out := NewCiphertext(testK, testN)

			one, zero := tc.ggsw(t, 1, exact), tc.ggsw(t, 0, exact)

			require.NoError(t, e.ExternalProduct(one, c0, out))
			requireClose(t, tc.phase(t, out), m0, 52)
			require.NoError(t, e.ExternalProduct(zero, c0, out))
			requireClose(t, tc.phase(t, out), poly.NewPoly(testN), 52)

			require.NoError(t, e.CMux(one, c0, c1, out))
			requireClose(t, tc.phase(t, out), m1, 52)
			require.NoError(t, e.CMux(zero, c0, c1, out))
			requireClose(t, tc.phase(t, out), m0, 52)

			// A GGSW of 3 scales the message.
			three := tc.ggsw(t, 3, exact)
			small := poly.NewPoly(testN)
			small.Coeffs[5] = 1 << 58
			require.NoError(t, e.ExternalProduct(three, tc.encrypt(t, small), out))
			want := poly.NewPoly(testN)
			poly.MulScalar(small, 3, want)
			requireClose(t, tc.phase(t, out), want, 52)

			cp := e.ShallowCopy()
			require.NoError(t, cp.ExternalProduct(one, c1, out))
			requireClose(t, tc.phase(t, out), m1, 52)
		})
	}
}

func TestEvaluatorErrors(t *testing.T) {
	tc := newTestContext(t, "evaluator-errors", csprng.Binary)

	_, err := NewEvaluator(tc.plan, nil, 0, testBaseLog, testLevel)
	require.ErrorIs(t, err, errs.ErrConfiguration)
	_, err = NewEvaluator(tc.plan, nil, testK, 40, 2)
	require.ErrorIs(t, err, errs.ErrConfiguration)
	other, err := poly.NewExactPlan(256)
	require.NoError(t, err)
	_, err = NewEvaluator(tc.plan, other, testK, testBaseLog, testLevel)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	fourierOnly := tc.ggsw(t, 1, false)
	e := tc.evaluator(t, true)
	out := NewCiphertext(testK, testN)
	require.ErrorIs(t, e.ExternalProduct(fourierOnly, out, out), errs.ErrConfiguration)

	e = tc.evaluator(t, false)
	unprepared, err := EncryptGGSW(tc.enc, 1, testBaseLog, testLevel, testStdDev, tc.g)
	require.NoError(t, err)
	require.ErrorIs(t, e.ExternalProduct(unprepared, out, out), errs.ErrConfiguration)

	otherDecomp, err := EncryptGGSW(tc.enc, 1, 8, 3, testStdDev, tc.g)
	require.NoError(t, err)
	require.NoError(t, otherDecomp.prepare(tc.plan, nil, poly.NewArena(testN)))
	require.ErrorIs(t, e.ExternalProduct(otherDecomp, out, out), errs.ErrConfiguration)

	require.ErrorIs(t, e.ExternalProduct(fourierOnly, NewCiphertext(2, testN), out), ErrDimensionMismatch)
	require.ErrorIs(t, e.ExternalProduct(fourierOnly, out, NewCiphertext(testK, 256)), ErrDimensionMismatch)

	_, err = EncryptGGSW(tc.enc, 1, 0, 1, testStdDev, tc.g)
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestModSwitch(t *testing.T) {
	const N = 512
	require.Equal(t, 0, ModSwitch(0, N))
	require.Equal(t, N, ModSwitch(1<<63, N))
	require.Equal(t, N/2, ModSwitch(1<<62, N))
	// Rounds to nearest and wraps.
	step := uint64(1) << (64 - 10)
	require.Equal(t, 1, ModSwitch(step/2, N))
	require.Equal(t, 0, ModSwitch(step/2-1, N))
	require.Equal(t, 0, ModSwitch(^uint64(0), N))
	require.Equal(t, 2*N-1, ModSwitch(-step, N))
}

func TestSampleExtract(t *testing.T) {
	tc := newTestContext(t, "extract", csprng.Ternary)
	pt := randomMessage(tc.g)
	ct := tc.encrypt(t, pt)

	lweKey := tc.sk.LWEKey()
	require.Equal(t, testK*testN, lweKey.Dimension())

	out := lwe.NewCiphertext(testK * testN)
	require.NoError(t, SampleExtract(ct, &out))
	phase, err := lwe.Phase(lweKey, out)
	require.NoError(t, err)
	requireClose(t, poly.Poly{Coeffs: []uint64{phase}}, poly.Poly{Coeffs: []uint64{pt.Coeffs[0]}}, 30)

	// Extraction is exact: it reproduces the GLWE phase bit for bit.
	require.Equal(t, tc.phase(t, ct).Coeffs[0], phase)

	bad := lwe.NewCiphertext(10)
	require.ErrorIs(t, SampleExtract(ct, &bad), ErrDimensionMismatch)
}

func TestBlindRotate(t *testing.T) {
	for _, exact := range []bool{false, true} {
		t.Run(fmt.Sprintf("exact=%v", exact), func(t *testing.T) {
			tc := newTestContext(t, "blind-rotate", csprng.Binary)
			const n = 16
			lweSK := lwe.GenSecretKey(n, csprng.Binary, tc.g)

			bsk, err := GenBootstrapKey(tc.plan, tc.exact, lweSK, tc.sk, testBaseLog, testLevel, testStdDev, exact, tc.g, 4)
			require.NoError(t, err)
			require.True(t, bsk.Prepared())
			require.Equal(t, exact, bsk.Extended())
			require.Equal(t, n, bsk.InputDimension())

			lut := poly.NewPoly(testN)
			for i := range lut.Coeffs {
				lut.Coeffs[i] = uint64(i) << 54
			}

			e := tc.evaluator(t, exact)
			acc := NewCiphertext(testK, testN)
			extracted := lwe.NewCiphertext(testK * testN)
			lweKey := tc.sk.LWEKey()

			for trial := 0; trial < 8; trial++ {
				ct := lwe.Encrypt(lweSK, tc.g.Uint64(), 0, tc.g)
				require.NoError(t, e.BlindRotate(bsk, lut, ct, acc))
				require.NoError(t, SampleExtract(acc, &extracted))

				// The rotation amount is the mod-switched phase.
				rot := ModSwitch(ct.Body, testN)
				for i, a := range ct.Mask {
					rot -= ModSwitch(a, testN) * int(lweSK.Coefficient(i))
				}
				rot = ((rot % (2 * testN)) + 2*testN) % (2 * testN)
				want := lut.Coeffs[rot%testN]
				if rot >= testN {
					want = -want
				}

				got, err := lwe.Phase(lweKey, extracted)
				require.NoError(t, err)
				requireClose(t, poly.Poly{Coeffs: []uint64{got}}, poly.Poly{Coeffs: []uint64{want}}, 52)
			}

			require.ErrorIs(t, e.BlindRotate(bsk, lut, lwe.NewCiphertext(n+1), acc), ErrDimensionMismatch)
			require.ErrorIs(t, e.BlindRotate(bsk, poly.NewPoly(64), lwe.NewCiphertext(n), acc), ErrDimensionMismatch)
			require.ErrorIs(t, e.BlindRotate(bsk, lut, lwe.NewCiphertext(n), NewCiphertext(2, testN)), ErrDimensionMismatch)
		})
	}
}

func TestGenBootstrapKey(t *testing.T) {
	build := func(workers int) *BootstrapKey {
		tc := newTestContext(t, "bsk-determinism", csprng.Binary)
		lweSK := lwe.GenSecretKey(12, csprng.Binary, tc.g)
		bsk, err := GenBootstrapKey(tc.plan, tc.exact, lweSK, tc.sk, testBaseLog, testLevel, testStdDev, false, tc.g, workers)
		require.NoError(t, err)
		return bsk
	}
	serial := build(1)
	parallel := build(8)
	require.True(t, serial.Equal(parallel), "key generation is independent of scheduling")
	require.Equal(t, testK, serial.Rank())
	require.Equal(t, testN, serial.Degree())
	require.Equal(t, testBaseLog, serial.BaseLog())
	require.Equal(t, testLevel, serial.Level())
	require.Equal(t, testLevel, serial.GGSW(0).Level())

	// Handles given out never reach the shared rows or images.
	reference, err := serial.MarshalBinary()
	require.NoError(t, err)
	other := newTestContext(t, "bsk-other", csprng.Binary)
	otherKey, err := GenBootstrapKey(other.plan, other.exact, lwe.GenSecretKey(12, csprng.Binary, other.g),
		other.sk, testBaseLog, testLevel, testStdDev, false, other.g, 2)
	require.NoError(t, err)
	foreign, err := otherKey.MarshalBinary()
	require.NoError(t, err)
	foreignRow, err := otherKey.GGSW(0).MarshalBinary()
	require.NoError(t, err)

	require.NoError(t, serial.GGSW(0).UnmarshalBinary(foreignRow))
	require.NoError(t, serial.CopyNew().UnmarshalBinary(foreign))
	extended, err := serial.Prepare(other.plan, other.exact)
	require.NoError(t, err)
	require.True(t, extended.Extended())
	require.True(t, serial.Prepared())
	require.False(t, serial.Extended())
	after, err := serial.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, reference, after)
	require.False(t, serial.GGSW(0).Equal(otherKey.GGSW(0)))

	tc := newTestContext(t, "bsk-errors", csprng.Binary)
	lweSK := lwe.GenSecretKey(4, csprng.Binary, tc.g)
	_, err = GenBootstrapKey(tc.plan, tc.exact, lweSK, tc.sk, 30, 3, testStdDev, false, tc.g, 1)
	require.ErrorIs(t, err, errs.ErrConfiguration)
	_, err = GenBootstrapKey(tc.plan, nil, lweSK, tc.sk, testBaseLog, testLevel, testStdDev, false, tc.g, 1)
	require.ErrorIs(t, err, errs.ErrConfiguration)
	ternary := lwe.NewSecretKey([]int64{1, 0, -1, 1})
	_, err = GenBootstrapKey(tc.plan, tc.exact, ternary, tc.sk, testBaseLog, testLevel, testStdDev, false, tc.g, 1)
	require.ErrorIs(t, err, errs.ErrConfiguration)
	small, err := poly.NewPlan(256)
	require.NoError(t, err)
	_, err = GenBootstrapKey(small, tc.exact, lweSK, tc.sk, testBaseLog, testLevel, testStdDev, false, tc.g, 1)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSerialization(t *testing.T) {
	tc := newTestContext(t, "serialization", csprng.Gaussian)

	t.Run("Ciphertext", func(t *testing.T) {
		ct := tc.encrypt(t, randomMessage(tc.g))
		data, err := ct.MarshalBinary()
		require.NoError(t, err)
		var dec Ciphertext
		require.NoError(t, dec.UnmarshalBinary(data))
		require.True(t, dec.Equal(ct))
		again, err := dec.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, data, again)

		require.ErrorIs(t, dec.UnmarshalBinary(data[:len(data)-8]), errs.ErrDeserialization)
		bad := append([]byte(nil), data...)
		bad[12] = 3 // degree 515
		require.ErrorIs(t, dec.UnmarshalBinary(bad), errs.ErrDeserialization)
	})

	t.Run("SecretKey", func(t *testing.T) {
		data, err := tc.sk.MarshalBinary()
		require.NoError(t, err)
		dec := new(SecretKey)
		require.NoError(t, dec.UnmarshalBinary(data))
		require.True(t, dec.Equal(tc.sk))
		require.ErrorIs(t, dec.UnmarshalBinary(append(data, 0)), errs.ErrDeserialization)
	})

	t.Run("GGSW", func(t *testing.T) {
		ggsw := tc.ggsw(t, 1, false)
		data, err := ggsw.MarshalBinary()
		require.NoError(t, err)
		dec := new(GGSW)
		require.NoError(t, dec.UnmarshalBinary(data))
		require.True(t, dec.Equal(ggsw))
		require.Nil(t, dec.fourier)
		require.True(t, dec.Row(1, 0).Equal(ggsw.Row(1, 0)))
		require.ErrorIs(t, dec.UnmarshalBinary(data[:100]), errs.ErrDeserialization)
	})

	t.Run("BootstrapKey", func(t *testing.T) {
		lweSK := lwe.GenSecretKey(3, csprng.Binary, tc.g)
		bsk, err := GenBootstrapKey(tc.plan, tc.exact, lweSK, tc.sk, testBaseLog, testLevel, testStdDev, false, tc.g, 2)
		require.NoError(t, err)
		data, err := bsk.MarshalBinary()
		require.NoError(t, err)

		dec := new(BootstrapKey)
		require.NoError(t, dec.UnmarshalBinary(data))
		require.True(t, dec.Equal(bsk))
		require.False(t, dec.Prepared())
		prepared, err := dec.Prepare(tc.plan, tc.exact)
		require.NoError(t, err)
		require.False(t, dec.Prepared(), "Prepare leaves the receiver as it was")
		require.True(t, prepared.Prepared())
		require.True(t, prepared.Extended())
		require.True(t, prepared.Equal(bsk))

		again, err := prepared.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, data, again)

		small, err := poly.NewPlan(256)
		require.NoError(t, err)
		_, err = dec.Prepare(small, nil)
		require.ErrorIs(t, err, ErrDimensionMismatch)
		require.ErrorIs(t, dec.UnmarshalBinary(data[:len(data)-1]), errs.ErrDeserialization)
	})
}
