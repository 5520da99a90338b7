// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"encoding"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/tfhe/csprng"
)

func genPublicKey(t *testing.T, tc *testContext, label string) *PublicKey {
	t.Helper()
	pk, err := NewKeyGenerator(tc.params, csprng.NewSeededSource(testSeed(label))).GenPublicKey(tc.keys.ClientKey)
	require.NoError(t, err)
	return pk
}

func TestPublicKey(t *testing.T) {
	tc := setupTest(t, testParams)
	pk := genPublicKey(t, tc, "public")
	require.True(t, pk.Parameters().Equal(tc.params))
	require.Equal(t, (tc.params.LWEDimension()+1)*64+128, pk.Size())

	// Generation is reproducible from the source seed.
	require.True(t, pk.Equal(genPublicKey(t, tc, "public")))
	require.False(t, pk.Equal(genPublicKey(t, tc, "public-other")))

	enc := NewPublicEncryptor(pk, csprng.NewSeeded(testSeed("public-encrypt")))
	modulus := tc.params.MessageModulus() * tc.params.CarryModulus()

	t.Run("RoundTrip", func(t *testing.T) {
		for m := uint64(0); m < modulus; m++ {
			ct, err := enc.Encrypt(m)
			require.NoError(t, err)
			require.Equal(t, m, tc.decryptWithCarry(t, ct))
		}
		_, err := enc.Encrypt(modulus)
		require.ErrorIs(t, err, ErrMessageOutOfRange)
	})

	t.Run("Bootstrap", func(t *testing.T) {
		local := enc.ShallowCopy(t.Name())
		for m := uint64(0); m < tc.params.MessageModulus(); m++ {
			ct, err := local.Encrypt(m)
			require.NoError(t, err)
			out, err := tc.eval.Refresh(ct)
			require.NoError(t, err)
			require.Equal(t, m, tc.decrypt(t, out))

			ct2, err := local.Encrypt(m)
			require.NoError(t, err)
			sum, err := tc.eval.Add(out, ct2)
			require.NoError(t, err)
			require.Equal(t, 2*m, tc.decryptWithCarry(t, sum))
		}
	})

	t.Run("ForeignClientKey", func(t *testing.T) {
		toy := setupTest(t, PToyInsecure)
		_, err := NewKeyGenerator(tc.params, csprng.NewSeededSource(testSeed("foreign"))).GenPublicKey(toy.keys.ClientKey)
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("Serialization", func(t *testing.T) {
		dec := new(PublicKey)
		data := roundTrip(t, pk, dec)
		require.True(t, pk.Equal(dec))
		requireFailsClosed(t, data, func() encoding.BinaryUnmarshaler { return new(PublicKey) })

		ct, err := NewPublicEncryptor(dec, csprng.NewSeeded(testSeed("public-decoded"))).Encrypt(3)
		require.NoError(t, err)
		require.Equal(t, uint64(3), tc.decryptWithCarry(t, ct))

		// The embedded key must match the dimension of the parameters.
		toy := setupTest(t, PToyInsecure)
		mixed := &PublicKey{params: toy.params, pk: pk.pk}
		data, err = mixed.MarshalBinary()
		require.NoError(t, err)
		err = new(PublicKey).UnmarshalBinary(data)
		require.ErrorIs(t, err, ErrDeserialization)
		require.ErrorContains(t, err, "dimension")
	})
}
