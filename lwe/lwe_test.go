// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
)

const (
	testDim    = 64
	testStdDev = 0x1p-30
	delta      = uint64(1) << 60 // 8 messages with a padding bit
)

func testGenerator(label string) *csprng.Generator {
	var seed csprng.Seed
	copy(seed[:], label)
	return csprng.NewSeeded(seed)
}

func decode(phase uint64) uint64 {
	return ((phase + delta/2) / delta) % 16
}

func TestEncryptDecrypt(t *testing.T) {
	g := testGenerator("lwe")
	for _, dist := range []csprng.Distribution{csprng.Binary, csprng.Ternary, csprng.Gaussian} {
		t.Run(dist.String(), func(t *testing.T) {
			sk := GenSecretKey(testDim, dist, g)
			require.Equal(t, testDim, sk.Dimension())
			for m := uint64(0); m < 8; m++ {
				ct := Encrypt(sk, m*delta, testStdDev, g)
				require.Equal(t, testDim, ct.Dimension())
				phase, err := Phase(sk, ct)
				require.NoError(t, err)
				require.Equal(t, m, decode(phase))

				noise := int64(phase - m*delta)
				require.Less(t, abs(noise), int64(1)<<40)
			}
		})
	}
}

func TestEncryptInto(t *testing.T) {
	g := testGenerator("into")
	sk := GenSecretKey(testDim, csprng.Binary, g)
	ct := NewCiphertext(testDim)
	require.NoError(t, EncryptInto(sk, 3*delta, testStdDev, g, &ct))
	phase, err := Phase(sk, ct)
	require.NoError(t, err)
	require.Equal(t, uint64(3), decode(phase))

	bad := NewCiphertext(testDim + 1)
	require.ErrorIs(t, EncryptInto(sk, 0, testStdDev, g, &bad), ErrDimensionMismatch)
	_, err = Phase(sk, bad)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestTrivial(t *testing.T) {
	g := testGenerator("trivial")
	sk := GenSecretKey(testDim, csprng.Binary, g)
	phase, err := Phase(sk, NewTrivial(testDim, 5*delta))
	require.NoError(t, err)
	require.Equal(t, 5*delta, phase)
}

func TestLinearOperations(t *testing.T) {
	g := testGenerator("linear")
	sk := GenSecretKey(testDim, csprng.Binary, g)
	c1 := Encrypt(sk, 2*delta, testStdDev, g)
	c2 := Encrypt(sk, 3*delta, testStdDev, g)
	out := NewCiphertext(testDim)

	check := func(want uint64) {
		t.Helper()
		phase, err := Phase(sk, out)
		require.NoError(t, err)
		require.Equal(t, want, decode(phase))
	}

	require.NoError(t, Add(c1, c2, &out))
	check(5)
	require.NoError(t, Sub(c2, c1, &out))
	check(1)
	require.NoError(t, AddPlaintext(c1, 4*delta, &out))
	check(6)
	require.NoError(t, MulScalar(c1, 3, &out))
	check(6)
	require.NoError(t, Negate(c1, &out))
	check(14)
	require.NoError(t, LinearCombination([]Ciphertext{c1, c2}, []uint64{2, ^uint64(0)}, &out))
	check(1)

	// In-place operation.
	acc := c1.CopyNew()
	require.NoError(t, Add(acc, c2, &acc))
	phase, err := Phase(sk, acc)
	require.NoError(t, err)
	require.Equal(t, uint64(5), decode(phase))
	require.False(t, acc.Equal(c1))

	require.NoError(t, acc.Copy(c1))
	require.True(t, acc.Equal(c1))
}

func TestLinearDimensionMismatch(t *testing.T) {
	a, b := NewCiphertext(4), NewCiphertext(5)
	out := NewCiphertext(4)
	require.ErrorIs(t, Add(a, b, &out), ErrDimensionMismatch)
	require.ErrorIs(t, Sub(a, b, &out), ErrDimensionMismatch)
	require.ErrorIs(t, AddPlaintext(b, 1, &out), ErrDimensionMismatch)
	require.ErrorIs(t, MulScalar(b, 1, &out), ErrDimensionMismatch)
	require.ErrorIs(t, Negate(b, &out), ErrDimensionMismatch)
	require.ErrorIs(t, LinearCombination([]Ciphertext{a, b}, []uint64{1, 1}, &out), ErrDimensionMismatch)
	require.ErrorIs(t, LinearCombination([]Ciphertext{a}, []uint64{1, 1}, &out), ErrDimensionMismatch)
	require.ErrorIs(t, out.Copy(b), ErrDimensionMismatch)
}

func TestNoiseIsAdditive(t *testing.T) {
	g := testGenerator("additive")
	sk := GenSecretKey(testDim, csprng.Binary, g)

	// Doubling a ciphertext many times grows its noise until decoding
	// fails, and not before the noise reaches half the encoding step.
	ct := Encrypt(sk, 0, 0x1p-20, g)
	for i := 0; i < 20; i++ {
		phase, err := Phase(sk, ct)
		require.NoError(t, err)
		noise := abs(int64(phase))
		if noise < int64(delta/2) {
			require.Equal(t, uint64(0), decode(phase))
		}
		require.NoError(t, Add(ct, ct, &ct))
	}
}

func TestKeySwitch(t *testing.T) {
	g := testGenerator("keyswitch")
	in := GenSecretKey(256, csprng.Binary, g)
	out := GenSecretKey(testDim, csprng.Ternary, g)

	_, err := GenKeySwitchKey(in, out, 0, 5, testStdDev, g)
	require.ErrorIs(t, err, errs.ErrConfiguration)

	ksk, err := GenKeySwitchKey(in, out, 4, 6, testStdDev, g)
	require.NoError(t, err)
	require.Equal(t, 256, ksk.InputDimension())
	require.Equal(t, testDim, ksk.OutputDimension())
	require.Equal(t, 4, ksk.BaseLog())
	require.Equal(t, 6, ksk.Level())

	switched := NewCiphertext(testDim)
	for m := uint64(0); m < 16; m++ {
		ct := Encrypt(in, m*delta, testStdDev, g)
		before, err := Phase(in, ct)
		require.NoError(t, err)

		require.NoError(t, ksk.KeySwitch(ct, &switched))
		after, err := Phase(out, switched)
		require.NoError(t, err)
		require.Equal(t, decode(before), decode(after))
		require.Less(t, abs(int64(after-before)), int64(delta/16))
	}

	require.ErrorIs(t, ksk.KeySwitch(NewCiphertext(10), &switched), ErrDimensionMismatch)
	wrongOut := NewCiphertext(10)
	require.ErrorIs(t, ksk.KeySwitch(NewCiphertext(256), &wrongOut), ErrDimensionMismatch)
}

func TestSerialization(t *testing.T) {
	g := testGenerator("serialize")
	sk := GenSecretKey(testDim, csprng.Ternary, g)
	ct := Encrypt(sk, 7*delta, testStdDev, g)

	t.Run("Ciphertext", func(t *testing.T) {
		data, err := ct.MarshalBinary()
		require.NoError(t, err)
		again, err := ct.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, data, again)

		var dec Ciphertext
		require.NoError(t, dec.UnmarshalBinary(data))
		require.True(t, dec.Equal(ct))
		redata, err := dec.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, data, redata)

		require.ErrorIs(t, dec.UnmarshalBinary(data[:len(data)-3]), errs.ErrDeserialization)
		require.ErrorIs(t, dec.UnmarshalBinary(append(data, 1)), errs.ErrDeserialization)
		require.True(t, dec.Equal(ct), "failed decode leaves the value untouched")
	})

	t.Run("SecretKey", func(t *testing.T) {
		data, err := sk.MarshalBinary()
		require.NoError(t, err)
		dec := new(SecretKey)
		require.NoError(t, dec.UnmarshalBinary(data))
		require.True(t, dec.Equal(sk))
		require.ErrorIs(t, dec.UnmarshalBinary(data[:10]), errs.ErrDeserialization)
	})

	t.Run("KeySwitchKey", func(t *testing.T) {
		out := GenSecretKey(16, csprng.Binary, g)
		ksk, err := GenKeySwitchKey(sk, out, 3, 4, testStdDev, g)
		require.NoError(t, err)
		data, err := ksk.MarshalBinary()
		require.NoError(t, err)

		dec := new(KeySwitchKey)
		require.NoError(t, dec.UnmarshalBinary(data))
		require.True(t, dec.Equal(ksk))
		redata, err := dec.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, data, redata)

		// An inconsistent decomposition is rejected.
		bad := append([]byte(nil), data...)
		bad[16] = 40 // base log
		bad[20] = 4  // level
		require.ErrorIs(t, dec.UnmarshalBinary(bad), errs.ErrDeserialization)
		require.ErrorIs(t, dec.UnmarshalBinary(data[:len(data)-1]), errs.ErrDeserialization)
	})
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
