// Package tfhe implements the TFHE (Torus Fully Homomorphic Encryption) scheme
// for small-integer and boolean evaluation on encrypted data.
//
// Messages live on the discretized torus Z/2^64Z. Linear operations on
// ciphertexts are cheap and add noise; programmable bootstrapping evaluates
// an arbitrary univariate lookup table while resetting the noise to a fixed
// level, so circuits of unbounded depth can be evaluated.
//
// This implementation is built from the packages of this module:
//   - csprng for seeded, forkable randomness
//   - poly for the negacyclic FFT and exact NTT engines
//   - lwe for LWE ciphertexts and the keyswitching key
//   - glwe for GLWE/GGSW ciphertexts and blind rotation
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package tfhe

import (
	"github.com/luxfi/tfhe/internal/errs"
)

// Error categories. Every configuration error matches ErrConfiguration
// through errors.Is.
var (
	ErrConfiguration            = errs.ErrConfiguration
	ErrInvalidParameters        = errs.ErrInvalidParameters
	ErrDimensionMismatch        = errs.ErrDimensionMismatch
	ErrScratchTooSmall          = errs.ErrScratchTooSmall
	ErrMessageOutOfRange        = errs.ErrMessageOutOfRange
	ErrInvalidLookupTable       = errs.ErrInvalidLookupTable
	ErrEntropySourceUnavailable = errs.ErrEntropySourceUnavailable
	ErrDeserialization          = errs.ErrDeserialization
)
