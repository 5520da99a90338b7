// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"encoding"
	"fmt"
	"math"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/glwe"
	"github.com/luxfi/tfhe/internal/codec"
	"github.com/luxfi/tfhe/lwe"
)

// Records that embed other records carry them as length-prefixed byte
// strings, each with its own header.

// ========== Parameters Serialization ==========

func writeParameters(w *codec.Writer, p Parameters) {
	lit := p.lit
	w.Dim(lit.LWEDimension)
	w.Dim(lit.GLWERank)
	w.Dim(lit.PolyDegree)
	w.F64(lit.LWEStdDev)
	w.F64(lit.GLWEStdDev)
	w.Dim(lit.PBSBaseLog)
	w.Dim(lit.PBSLevel)
	w.Dim(lit.KSBaseLog)
	w.Dim(lit.KSLevel)
	w.U64(lit.MessageModulus)
	w.U64(lit.CarryModulus)
	w.U8(uint8(lit.SecretDistribution))
	w.Bool(lit.ExtendedPrecision)
}

func readParameters(r *codec.Reader) Parameters {
	var lit ParametersLiteral
	lit.LWEDimension = r.Dim("lwe dimension", 0, math.MaxInt32)
	lit.GLWERank = r.Dim("glwe rank", 0, math.MaxInt32)
	lit.PolyDegree = r.Dim("polynomial degree", 0, math.MaxInt32)
	lit.LWEStdDev = r.F64()
	lit.GLWEStdDev = r.F64()
	lit.PBSBaseLog = r.Dim("pbs base log", 0, math.MaxInt32)
	lit.PBSLevel = r.Dim("pbs level", 0, math.MaxInt32)
	lit.KSBaseLog = r.Dim("ks base log", 0, math.MaxInt32)
	lit.KSLevel = r.Dim("ks level", 0, math.MaxInt32)
	lit.MessageModulus = r.U64()
	lit.CarryModulus = r.U64()
	lit.SecretDistribution = csprng.Distribution(r.U8())
	lit.ExtendedPrecision = r.Bool()
	if r.Err() != nil {
		return Parameters{}
	}
	params, err := NewParametersFromLiteral(lit)
	if err != nil {
		r.Failf("%v", err)
	}
	return params
}

// MarshalBinary encodes the parameter set field by field in literal order.
func (p Parameters) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindParameters, 64)
	writeParameters(w, p)
	return w.Data(), nil
}

// UnmarshalBinary decodes and validates a parameter set.
func (p *Parameters) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindParameters)
	dec := readParameters(r)
	if err := r.Finish(); err != nil {
		return err
	}
	*p = dec
	return nil
}

func writeRecord(w *codec.Writer, m encoding.BinaryMarshaler) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	w.Bytes(data)
	return nil
}

func readRecord(r *codec.Reader, what string, u encoding.BinaryUnmarshaler) {
	data := r.Bytes()
	if r.Err() != nil {
		return
	}
	if err := u.UnmarshalBinary(data); err != nil {
		r.Failf("%s: %v", what, err)
	}
}

// ========== Ciphertext Serialization ==========

// MarshalBinary encodes the ciphertext as an embedded LWE ciphertext record.
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindCiphertext, 24+8*len(ct.Mask))
	if err := writeRecord(w, ct.Ciphertext); err != nil {
		return nil, err
	}
	return w.Data(), nil
}

// UnmarshalBinary decodes a ciphertext written by MarshalBinary.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindCiphertext)
	var dec lwe.Ciphertext
	readRecord(r, "lwe ciphertext", &dec)
	if err := r.Finish(); err != nil {
		return err
	}
	ct.Ciphertext = dec
	return nil
}

// ========== Client Key Serialization ==========

// MarshalBinary encodes parameters | LWE secret key | GLWE secret key.
func (ck *ClientKey) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindClientKey, 0)
	if err := writeRecord(w, ck.params); err != nil {
		return nil, err
	}
	if err := writeRecord(w, ck.lweSK); err != nil {
		return nil, err
	}
	if err := writeRecord(w, ck.glweSK); err != nil {
		return nil, err
	}
	return w.Data(), nil
}

// UnmarshalBinary decodes a client key and checks it against its
// parameters.
func (ck *ClientKey) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindClientKey)
	var params Parameters
	lweSK, glweSK := new(lwe.SecretKey), new(glwe.SecretKey)
	readRecord(r, "parameters", &params)
	readRecord(r, "lwe secret key", lweSK)
	readRecord(r, "glwe secret key", glweSK)
	if err := r.Finish(); err != nil {
		return err
	}
	switch {
	case lweSK.Dimension() != params.LWEDimension():
		return fmt.Errorf("%w: lwe secret key dimension %d, parameters have %d",
			ErrDeserialization, lweSK.Dimension(), params.LWEDimension())
	case glweSK.Rank() != params.GLWERank() || glweSK.Degree() != params.PolyDegree():
		return fmt.Errorf("%w: glwe secret key shape (%d, %d), parameters have (%d, %d)",
			ErrDeserialization, glweSK.Rank(), glweSK.Degree(), params.GLWERank(), params.PolyDegree())
	}
	for i := 0; i < lweSK.Dimension(); i++ {
		if c := lweSK.Coefficient(i); c != 0 && c != 1 {
			return fmt.Errorf("%w: lwe secret key coefficient %d is %d, keys are binary", ErrDeserialization, i, c)
		}
	}
	*ck = ClientKey{params: params, lweSK: lweSK, glweSK: glweSK}
	return nil
}

// ========== Server Key Serialization ==========

// MarshalBinary encodes parameters | bootstrap key | keyswitch key.
// Transform-domain images are recomputed on decoding.
func (sk *ServerKey) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindServerKey, 0)
	if err := writeRecord(w, sk.params); err != nil {
		return nil, err
	}
	if err := writeRecord(w, sk.bsk); err != nil {
		return nil, err
	}
	if err := writeRecord(w, sk.ksk); err != nil {
		return nil, err
	}
	return w.Data(), nil
}

// UnmarshalBinary decodes a server key, checks it against its parameters,
// and prepares it for evaluation.
func (sk *ServerKey) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindServerKey)
	var params Parameters
	bsk, ksk := new(glwe.BootstrapKey), new(lwe.KeySwitchKey)
	readRecord(r, "parameters", &params)
	readRecord(r, "bootstrap key", bsk)
	readRecord(r, "keyswitch key", ksk)
	if err := r.Finish(); err != nil {
		return err
	}
	dec, err := newServerKey(params, bsk, ksk)
	if err != nil {
		return fmt.Errorf("%w: server key: %w", ErrDeserialization, err)
	}
	*sk = *dec
	return nil
}

// ========== Public Key Serialization ==========

// MarshalBinary encodes parameters | LWE public key.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindPublicKey, 0)
	if err := writeRecord(w, pk.params); err != nil {
		return nil, err
	}
	if err := writeRecord(w, pk.pk); err != nil {
		return nil, err
	}
	return w.Data(), nil
}

// UnmarshalBinary decodes a public key and checks it against its
// parameters.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindPublicKey)
	var params Parameters
	lwePK := new(lwe.PublicKey)
	readRecord(r, "parameters", &params)
	readRecord(r, "lwe public key", lwePK)
	if err := r.Finish(); err != nil {
		return err
	}
	if lwePK.Dimension() != params.LWEDimension() {
		return fmt.Errorf("%w: lwe public key dimension %d, parameters have %d",
			ErrDeserialization, lwePK.Dimension(), params.LWEDimension())
	}
	*pk = PublicKey{params: params, pk: lwePK}
	return nil
}
