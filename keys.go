// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"
	"runtime"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/glwe"
	"github.com/luxfi/tfhe/internal/errs"
	"github.com/luxfi/tfhe/lwe"
	"github.com/luxfi/tfhe/poly"
)

// ClientKey contains the LWE and GLWE secret keys. It never leaves the
// client.
type ClientKey struct {
	params Parameters
	// LWE secret key of client ciphertexts
	lweSK *lwe.SecretKey
	// GLWE secret key of the accumulator
	glweSK *glwe.SecretKey
}

// Parameters returns the parameter set of the key.
func (ck *ClientKey) Parameters() Parameters { return ck.params }

// LWESecretKey returns the LWE secret key.
func (ck *ClientKey) LWESecretKey() *lwe.SecretKey { return ck.lweSK }

// GLWESecretKey returns the GLWE secret key.
func (ck *ClientKey) GLWESecretKey() *glwe.SecretKey { return ck.glweSK }

// Equal reports whether both keys are identical.
func (ck *ClientKey) Equal(other *ClientKey) bool {
	return ck.params.Equal(other.params) && ck.lweSK.Equal(other.lweSK) && ck.glweSK.Equal(other.glweSK)
}

// ServerKey contains the public evaluation material: the bootstrapping key,
// the keyswitching key, and the transform plans for the polynomial degree.
// It is immutable and shared read-only by every evaluator.
type ServerKey struct {
	params Parameters
	bsk    *glwe.BootstrapKey
	ksk    *lwe.KeySwitchKey
	plan   *poly.Plan
	exact  *poly.ExactPlan
}

// newServerKey checks bsk and ksk against params and prepares bsk.
func newServerKey(params Parameters, bsk *glwe.BootstrapKey, ksk *lwe.KeySwitchKey) (*ServerKey, error) {
	switch {
	case bsk.InputDimension() != params.LWEDimension():
		return nil, errs.Dimension("bootstrap key input dimension", bsk.InputDimension(), params.LWEDimension())
	case bsk.Rank() != params.GLWERank():
		return nil, errs.Dimension("bootstrap key rank", bsk.Rank(), params.GLWERank())
	case bsk.Degree() != params.PolyDegree():
		return nil, errs.Dimension("bootstrap key degree", bsk.Degree(), params.PolyDegree())
	case bsk.BaseLog() != params.PBSBaseLog() || bsk.Level() != params.PBSLevel():
		return nil, invalid("bootstrap key decomposition (2^%d, %d)", bsk.BaseLog(), bsk.Level())
	case ksk.InputDimension() != params.ExtractedDimension():
		return nil, errs.Dimension("keyswitch key input dimension", ksk.InputDimension(), params.ExtractedDimension())
	case ksk.OutputDimension() != params.LWEDimension():
		return nil, errs.Dimension("keyswitch key output dimension", ksk.OutputDimension(), params.LWEDimension())
	case ksk.BaseLog() != params.KSBaseLog() || ksk.Level() != params.KSLevel():
		return nil, invalid("keyswitch key decomposition (2^%d, %d)", ksk.BaseLog(), ksk.Level())
	}
	plan, err := poly.NewPlan(params.PolyDegree())
	if err != nil {
		return nil, err
	}
	exact, err := poly.NewExactPlan(params.PolyDegree())
	if err != nil {
		return nil, err
	}
	if !bsk.Prepared() || (params.ExtendedPrecision() && !bsk.Extended()) {
		var ntt *poly.ExactPlan
		if params.ExtendedPrecision() {
			ntt = exact
		}
		if bsk, err = bsk.Prepare(plan, ntt); err != nil {
			return nil, err
		}
	}
	return &ServerKey{params: params, bsk: bsk, ksk: ksk, plan: plan, exact: exact}, nil
}

// Parameters returns the parameter set of the key.
func (sk *ServerKey) Parameters() Parameters { return sk.params }

// BootstrapKey returns a handle on the bootstrapping key. Nothing done
// through the handle reaches the key evaluators read.
func (sk *ServerKey) BootstrapKey() *glwe.BootstrapKey { return sk.bsk.CopyNew() }

// KeySwitchKey returns a handle on the keyswitching key.
func (sk *ServerKey) KeySwitchKey() *lwe.KeySwitchKey { return sk.ksk.CopyNew() }

// Equal reports whether both keys hold the same material.
func (sk *ServerKey) Equal(other *ServerKey) bool {
	return sk.params.Equal(other.params) && sk.bsk.Equal(other.bsk) && sk.ksk.Equal(other.ksk)
}

// Fingerprint returns the blake3 digest of the serialized key. It names
// the key in storage and job records.
func (sk *ServerKey) Fingerprint() ([32]byte, error) {
	data, err := sk.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(data), nil
}

// KeyPair is the output of key generation.
type KeyPair struct {
	ClientKey *ClientKey
	ServerKey *ServerKey
}

// KeyGenerator generates TFHE keys
type KeyGenerator struct {
	params  Parameters
	src     *csprng.Source
	workers int
	log     *zap.Logger
}

// NewKeyGenerator creates a new key generator. Secret keys are drawn from
// src.Secret() and encryption randomness from src.Encryption(), so a seeded
// source yields reproducible keys.
func NewKeyGenerator(params Parameters, src *csprng.Source) *KeyGenerator {
	return &KeyGenerator{
		params:  params,
		src:     src,
		workers: runtime.GOMAXPROCS(0),
		log:     zap.NewNop(),
	}
}

// WithLogger sets the logger reporting key generation progress.
func (kg *KeyGenerator) WithLogger(log *zap.Logger) *KeyGenerator {
	kg.log = log
	return kg
}

// WithWorkers bounds the goroutines generating the bootstrapping key. The
// keys do not depend on the worker count.
func (kg *KeyGenerator) WithWorkers(workers int) *KeyGenerator {
	if workers < 1 {
		workers = 1
	}
	kg.workers = workers
	return kg
}

// GenClientKey generates a new secret key pair
func (kg *KeyGenerator) GenClientKey() *ClientKey {
	g := kg.src.Secret()
	return &ClientKey{
		params: kg.params,
		lweSK:  lwe.GenSecretKey(kg.params.LWEDimension(), csprng.Binary, g),
		glweSK: glwe.GenSecretKey(kg.params.GLWERank(), kg.params.PolyDegree(), kg.params.SecretDistribution(), g),
	}
}

// GenServerKey generates the bootstrapping and keyswitching keys of ck.
func (kg *KeyGenerator) GenServerKey(ck *ClientKey) (*ServerKey, error) {
	params := kg.params
	if !params.Equal(ck.params) {
		return nil, invalid("client key parameters %v differ from generator parameters %v", ck.params, params)
	}
	plan, err := poly.NewPlan(params.PolyDegree())
	if err != nil {
		return nil, err
	}
	exact, err := poly.NewExactPlan(params.PolyDegree())
	if err != nil {
		return nil, err
	}
	g := kg.src.Encryption()

	start := time.Now()
	bsk, err := glwe.GenBootstrapKey(plan, exact, ck.lweSK, ck.glweSK,
		params.PBSBaseLog(), params.PBSLevel(), params.GLWEStdDev(),
		params.ExtendedPrecision(), g, kg.workers)
	if err != nil {
		return nil, err
	}
	kg.log.Debug("bootstrap key generated",
		zap.Int("n", params.LWEDimension()),
		zap.Int("workers", kg.workers),
		zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	ksk, err := lwe.GenKeySwitchKey(ck.glweSK.LWEKey(), ck.lweSK,
		params.KSBaseLog(), params.KSLevel(), params.LWEStdDev(), g)
	if err != nil {
		return nil, err
	}
	kg.log.Debug("keyswitch key generated",
		zap.Int("input", params.ExtractedDimension()),
		zap.Duration("elapsed", time.Since(start)))

	return &ServerKey{params: params, bsk: bsk, ksk: ksk, plan: plan, exact: exact}, nil
}

// GenKeyPair generates a client key and its server key
func (kg *KeyGenerator) GenKeyPair() (*KeyPair, error) {
	ck := kg.GenClientKey()
	sk, err := kg.GenServerKey(ck)
	if err != nil {
		return nil, fmt.Errorf("generate server key: %w", err)
	}
	kg.log.Info("key pair generated", zap.Stringer("params", kg.params))
	return &KeyPair{ClientKey: ck, ServerKey: sk}, nil
}
