// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/lwe"
)

// Decryptor decrypts ciphertexts under a client key
type Decryptor struct {
	params Parameters
	ck     *ClientKey
	enc    *Encoder
}

// NewDecryptor creates a new decryptor from a client key
func NewDecryptor(params Parameters, ck *ClientKey) *Decryptor {
	return &Decryptor{params: params, ck: ck, enc: NewEncoder(params)}
}

// Phase returns body - <mask, s>, the encoded message plus noise.
func (dec *Decryptor) Phase(ct *Ciphertext) (uint64, error) {
	return lwe.Phase(dec.ck.lweSK, ct.Ciphertext)
}

// Decrypt decrypts a ciphertext to its message modulo MessageModulus
func (dec *Decryptor) Decrypt(ct *Ciphertext) (uint64, error) {
	m, err := dec.DecryptWithCarry(ct)
	if err != nil {
		return 0, err
	}
	return m % dec.params.MessageModulus(), nil
}

// DecryptWithCarry decrypts a ciphertext to the full value in
// [0, MessageModulus*CarryModulus)
func (dec *Decryptor) DecryptWithCarry(ct *Ciphertext) (uint64, error) {
	phase, err := dec.Phase(ct)
	if err != nil {
		return 0, err
	}
	return dec.enc.Decode(phase), nil
}

// Noise returns the signed torus distance between the phase of ct and the
// encoding of m.
func (dec *Decryptor) Noise(ct *Ciphertext, m uint64) (float64, error) {
	phase, err := dec.Phase(ct)
	if err != nil {
		return 0, err
	}
	pt, err := dec.enc.Encode(m % dec.enc.Modulus())
	if err != nil {
		return 0, err
	}
	return csprng.ToTorus(phase - pt), nil
}
