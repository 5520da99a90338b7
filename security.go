// Package tfhe - Named Parameter Sets
//
// This file defines the named parameter sets shipped with the library.
//
// # Parameter Set Naming Convention
//
// Format: PMessage{m}Carry{c}[Extended]
//
// - m: bits of message modulus
// - c: bits of carry modulus
// - Extended: external products on the exact NTT path
//
// PToyInsecure is a tiny set for tests and demonstrations. It offers no
// security at all.
//
// The library validates the consistency of a parameter set, never its
// security level.
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package tfhe

import (
	"github.com/luxfi/tfhe/csprng"
)

// NamedParameters pairs a literal with its registry name
type NamedParameters struct {
	// Name is the parameter set identifier
	Name string
	// Description is a one-line summary
	Description string
	// Literal is the parameter specification
	Literal ParametersLiteral
}

var (
	// PMessage2Carry2 matches the tfhe-rs PARAM_MESSAGE_2_CARRY_2 set:
	// 2 bits of message, 2 bits of carry.
	PMessage2Carry2 = ParametersLiteral{
		LWEDimension:       742,
		GLWERank:           1,
		PolyDegree:         2048,
		LWEStdDev:          0.000007069849454709433,
		GLWEStdDev:         0.00000000000000029403601535432533,
		PBSBaseLog:         23,
		PBSLevel:           1,
		KSBaseLog:          3,
		KSLevel:            5,
		MessageModulus:     4,
		CarryModulus:       4,
		SecretDistribution: csprng.Binary,
	}

	// PMessage2Carry2Extended is PMessage2Carry2 with exact external
	// products.
	PMessage2Carry2Extended = ParametersLiteral{
		LWEDimension:       742,
		GLWERank:           1,
		PolyDegree:         2048,
		LWEStdDev:          0.000007069849454709433,
		GLWEStdDev:         0.00000000000000029403601535432533,
		PBSBaseLog:         23,
		PBSLevel:           1,
		KSBaseLog:          3,
		KSLevel:            5,
		MessageModulus:     4,
		CarryModulus:       4,
		SecretDistribution: csprng.Binary,
		ExtendedPrecision:  true,
	}

	// PToyInsecure is n=4, N=8 with a 4-valued message space. Insecure.
	PToyInsecure = ParametersLiteral{
		LWEDimension:       4,
		GLWERank:           1,
		PolyDegree:         8,
		LWEStdDev:          0x1p-30,
		GLWEStdDev:         0x1p-40,
		PBSBaseLog:         10,
		PBSLevel:           2,
		KSBaseLog:          4,
		KSLevel:            6,
		MessageModulus:     4,
		CarryModulus:       1,
		SecretDistribution: csprng.Binary,
	}
)

// AllParameters returns all named parameter sets
func AllParameters() []NamedParameters {
	return []NamedParameters{
		{Name: "PMessage2Carry2", Description: "2-bit messages, 2-bit carries, FFT external product", Literal: PMessage2Carry2},
		{Name: "PMessage2Carry2Extended", Description: "2-bit messages, 2-bit carries, exact external product", Literal: PMessage2Carry2Extended},
		{Name: "PToyInsecure", Description: "n=4, N=8 toy set, insecure", Literal: PToyInsecure},
	}
}

// GetParameters returns the literal registered under name
func GetParameters(name string) (ParametersLiteral, bool) {
	for _, p := range AllParameters() {
		if p.Name == name {
			return p.Literal, true
		}
	}
	return ParametersLiteral{}, false
}
