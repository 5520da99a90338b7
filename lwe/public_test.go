// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
)

func TestPublicKey(t *testing.T) {
	g := testGenerator("public")
	sk := GenSecretKey(testDim, csprng.Binary, g)

	_, err := GenPublicKey(sk, 0, testStdDev, g)
	require.ErrorIs(t, err, errs.ErrConfiguration)

	size := PublicKeySize(testDim)
	require.Equal(t, (testDim+1)*64+128, size)
	pk, err := GenPublicKey(sk, size, testStdDev, g)
	require.NoError(t, err)
	require.Equal(t, testDim, pk.Dimension())
	require.Equal(t, size, pk.Size())

	// Every row regenerated from the seed is an encryption of zero.
	pe := NewPublicEncryptor(pk)
	for i := 0; i < pk.Size(); i += 97 {
		row := Ciphertext{Mask: pe.masks[i*testDim : (i+1)*testDim], Body: pe.bodies[i]}
		phase, err := Phase(sk, row)
		require.NoError(t, err)
		require.Less(t, abs(int64(phase)), int64(1)<<40, "row %d", i)
	}

	out := NewCiphertext(testDim)
	for m := uint64(0); m < 8; m++ {
		ct := pe.Encrypt(m*delta, g)
		phase, err := Phase(sk, ct)
		require.NoError(t, err)
		require.Equal(t, m, decode(phase))
		// About sqrt(size/2) fresh noise terms.
		require.Less(t, abs(int64(phase-m*delta)), int64(1)<<45)

		require.NoError(t, pe.EncryptInto(m*delta, g, &out))
		phase, err = Phase(sk, out)
		require.NoError(t, err)
		require.Equal(t, m, decode(phase))
	}

	// Two encryptions of one message select different subsets.
	require.False(t, pe.Encrypt(delta, g).Equal(pe.Encrypt(delta, g)))

	bad := NewCiphertext(testDim + 1)
	require.ErrorIs(t, pe.EncryptInto(0, g, &bad), ErrDimensionMismatch)
}

func TestPublicKeySerialization(t *testing.T) {
	g := testGenerator("public-serialize")
	sk := GenSecretKey(16, csprng.Binary, g)
	pk, err := GenPublicKey(sk, PublicKeySize(16), testStdDev, g)
	require.NoError(t, err)

	data, err := pk.MarshalBinary()
	require.NoError(t, err)
	// Only the bodies are stored.
	require.Less(t, len(data), 8*pk.Size()+64)

	dec := new(PublicKey)
	require.NoError(t, dec.UnmarshalBinary(data))
	require.True(t, dec.Equal(pk))
	redata, err := dec.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, data, redata)

	// The decoded key encrypts like the original.
	ct := NewPublicEncryptor(dec).Encrypt(5*delta, g)
	phase, err := Phase(sk, ct)
	require.NoError(t, err)
	require.Equal(t, uint64(5), decode(phase))

	require.ErrorIs(t, dec.UnmarshalBinary(data[:len(data)-1]), errs.ErrDeserialization)
	require.ErrorIs(t, dec.UnmarshalBinary(append(data, 0)), errs.ErrDeserialization)
	short := append([]byte(nil), data...)
	short[16] = 31 // seed length
	require.ErrorIs(t, dec.UnmarshalBinary(short), errs.ErrDeserialization)
	require.True(t, dec.Equal(pk), "failed decode leaves the value untouched")
}

func TestKeySwitchKeyCopyNew(t *testing.T) {
	g := testGenerator("keyswitch-copy")
	in, out := GenSecretKey(32, csprng.Binary, g), GenSecretKey(16, csprng.Binary, g)
	ksk, err := GenKeySwitchKey(in, out, 4, 3, testStdDev, g)
	require.NoError(t, err)
	other, err := GenKeySwitchKey(out, in, 4, 3, testStdDev, g)
	require.NoError(t, err)
	reference, err := ksk.MarshalBinary()
	require.NoError(t, err)
	foreign, err := other.MarshalBinary()
	require.NoError(t, err)

	handle := ksk.CopyNew()
	require.True(t, handle.Equal(ksk))
	require.NoError(t, handle.UnmarshalBinary(foreign))
	require.True(t, handle.Equal(other))

	after, err := ksk.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, reference, after)
}
