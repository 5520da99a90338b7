// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/lwe"
)

// Ciphertext represents an encrypted message
type Ciphertext struct {
	lwe.Ciphertext
}

// NewCiphertext returns the zero ciphertext of dimension n.
func NewCiphertext(n int) *Ciphertext {
	return &Ciphertext{lwe.NewCiphertext(n)}
}

// CopyNew returns a deep copy of ct.
func (ct *Ciphertext) CopyNew() *Ciphertext {
	return &Ciphertext{ct.Ciphertext.CopyNew()}
}

// Equal reports whether both ciphertexts are identical.
func (ct *Ciphertext) Equal(other *Ciphertext) bool {
	return ct.Ciphertext.Equal(other.Ciphertext)
}

// Encryptor encrypts messages under a client key
type Encryptor struct {
	params Parameters
	ck     *ClientKey
	enc    *Encoder
	g      *csprng.Generator
}

// NewEncryptor creates a new encryptor drawing masks and noise from g.
// An Encryptor is not safe for concurrent use; ShallowCopy gives each
// goroutine its own stream.
func NewEncryptor(params Parameters, ck *ClientKey, g *csprng.Generator) *Encryptor {
	return &Encryptor{params: params, ck: ck, enc: NewEncoder(params), g: g}
}

// ShallowCopy returns an encryptor sharing the key whose stream is forked
// from this one under label.
func (enc *Encryptor) ShallowCopy(label string) *Encryptor {
	return &Encryptor{params: enc.params, ck: enc.ck, enc: enc.enc, g: enc.g.Fork(label)}
}

// Encrypt encrypts m with the LWE noise of the parameter set.
func (enc *Encryptor) Encrypt(m uint64) (*Ciphertext, error) {
	return enc.EncryptWithStdDev(m, enc.params.LWEStdDev())
}

// EncryptWithStdDev encrypts m with a caller-chosen noise level.
func (enc *Encryptor) EncryptWithStdDev(m uint64, stdDev float64) (*Ciphertext, error) {
	if !validStdDev(stdDev) {
		return nil, invalid("noise %v outside [0, 0.5)", stdDev)
	}
	pt, err := enc.enc.Encode(m)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{lwe.Encrypt(enc.ck.lweSK, pt, stdDev, enc.g)}, nil
}

// EncryptTrivial returns the noiseless encryption of m. It is not secret.
func (enc *Encryptor) EncryptTrivial(m uint64) (*Ciphertext, error) {
	pt, err := enc.enc.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("trivial encryption: %w", err)
	}
	return &Ciphertext{lwe.NewTrivial(enc.params.LWEDimension(), pt)}, nil
}
