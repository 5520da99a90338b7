// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/lwe"
)

// PublicKey lets any party encrypt messages a client key decrypts. It
// stores the bodies of a list of encryptions of zero and the seed of
// their masks.
type PublicKey struct {
	params Parameters
	pk     *lwe.PublicKey
}

// Parameters returns the parameter set of the key.
func (pk *PublicKey) Parameters() Parameters { return pk.params }

// Size returns the number of encryptions of zero.
func (pk *PublicKey) Size() int { return pk.pk.Size() }

// Equal reports whether both keys are identical.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.params.Equal(other.params) && pk.pk.Equal(other.pk)
}

// GenPublicKey generates a public key for ck. Its randomness comes from a
// stream forked off src.Encryption().
func (kg *KeyGenerator) GenPublicKey(ck *ClientKey) (*PublicKey, error) {
	params := kg.params
	if !params.Equal(ck.params) {
		return nil, invalid("client key parameters %v differ from generator parameters %v", ck.params, params)
	}
	start := time.Now()
	n := params.LWEDimension()
	pk, err := lwe.GenPublicKey(ck.lweSK, lwe.PublicKeySize(n), params.LWEStdDev(), kg.src.Encryption().Fork("public-key"))
	if err != nil {
		return nil, err
	}
	kg.log.Debug("public key generated",
		zap.Int("n", n),
		zap.Int("size", pk.Size()),
		zap.Duration("elapsed", time.Since(start)))
	return &PublicKey{params: params, pk: pk}, nil
}

// PublicEncryptor encrypts messages under a public key.
type PublicEncryptor struct {
	params Parameters
	pe     *lwe.PublicEncryptor
	enc    *Encoder
	g      *csprng.Generator
}

// NewPublicEncryptor expands pk and draws subset selections from g. Like
// Encryptor it is not safe for concurrent use; ShallowCopy shares the
// expanded key.
func NewPublicEncryptor(pk *PublicKey, g *csprng.Generator) *PublicEncryptor {
	return &PublicEncryptor{params: pk.params, pe: lwe.NewPublicEncryptor(pk.pk), enc: NewEncoder(pk.params), g: g}
}

// ShallowCopy returns an encryptor sharing the key whose stream is forked
// from this one under label.
func (enc *PublicEncryptor) ShallowCopy(label string) *PublicEncryptor {
	return &PublicEncryptor{params: enc.params, pe: enc.pe, enc: enc.enc, g: enc.g.Fork(label)}
}

// Encrypt encrypts m. The noise is that of about Size/2 fresh encryptions
// summed.
func (enc *PublicEncryptor) Encrypt(m uint64) (*Ciphertext, error) {
	pt, err := enc.enc.Encode(m)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{enc.pe.Encrypt(pt, enc.g)}, nil
}
