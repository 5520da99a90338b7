// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/glwe"
	"github.com/luxfi/tfhe/lwe"
	"github.com/luxfi/tfhe/poly"
)

// ParametersLiteral is a user-friendly parameter specification
type ParametersLiteral struct {
	// LWEDimension is n, the dimension of client ciphertexts
	LWEDimension int
	// GLWERank is k, the number of mask polynomials of the accumulator
	GLWERank int
	// PolyDegree is N, the degree of the accumulator polynomials
	PolyDegree int
	// LWEStdDev is the torus-relative noise of LWE encryptions and the
	// keyswitching key
	LWEStdDev float64
	// GLWEStdDev is the torus-relative noise of the bootstrapping key
	GLWEStdDev float64
	// PBSBaseLog and PBSLevel define the bootstrapping gadget decomposition
	PBSBaseLog int
	PBSLevel   int
	// KSBaseLog and KSLevel define the keyswitching decomposition
	KSBaseLog int
	KSLevel   int
	// MessageModulus and CarryModulus split the plaintext space
	MessageModulus uint64
	CarryModulus   uint64
	// SecretDistribution is the distribution of the GLWE secret key. The
	// LWE secret key is always binary.
	SecretDistribution csprng.Distribution
	// ExtendedPrecision runs external products on the exact NTT path
	ExtendedPrecision bool
}

// Parameters is a validated, immutable parameter set.
type Parameters struct {
	lit ParametersLiteral
}

// NewParametersFromLiteral creates Parameters from a literal specification
func NewParametersFromLiteral(lit ParametersLiteral) (Parameters, error) {
	params := Parameters{lit: lit}
	if err := params.Validate(); err != nil {
		return Parameters{}, err
	}
	return params, nil
}

func isPow2(v uint64) bool { return v != 0 && v&(v-1) == 0 }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidParameters}, args...)...)
}

func validStdDev(s float64) bool {
	return !math.IsNaN(s) && s >= 0 && s < 0.5
}

// Validate checks the internal consistency of the parameter set. It never
// assesses the security level.
func (p Parameters) Validate() error {
	lit := p.lit
	switch {
	case lit.LWEDimension < 1 || lit.LWEDimension > lwe.MaxDimension:
		return invalid("lwe dimension %d outside [1, %d]", lit.LWEDimension, lwe.MaxDimension)
	case lit.GLWERank < 1 || lit.GLWERank > glwe.MaxRank:
		return invalid("glwe rank %d outside [1, %d]", lit.GLWERank, glwe.MaxRank)
	case !poly.IsValidDegree(lit.PolyDegree):
		return invalid("polynomial degree %d is not a power of two in [%d, %d]", lit.PolyDegree, poly.MinDegree, poly.MaxDegree)
	case !validStdDev(lit.LWEStdDev):
		return invalid("lwe noise %v outside [0, 0.5)", lit.LWEStdDev)
	case !validStdDev(lit.GLWEStdDev):
		return invalid("glwe noise %v outside [0, 0.5)", lit.GLWEStdDev)
	case !isPow2(lit.MessageModulus) || lit.MessageModulus < 2:
		return invalid("message modulus %d is not a power of two above 1", lit.MessageModulus)
	case !isPow2(lit.CarryModulus):
		return invalid("carry modulus %d is not a power of two", lit.CarryModulus)
	case !lit.SecretDistribution.Valid():
		return invalid("unknown secret distribution %d", lit.SecretDistribution)
	}
	// Checked separately so the product cannot overflow.
	if lit.MessageModulus > uint64(lit.PolyDegree) || lit.CarryModulus > uint64(lit.PolyDegree) ||
		lit.MessageModulus*lit.CarryModulus > uint64(lit.PolyDegree) {
		return invalid("plaintext modulus %d*%d exceeds polynomial degree %d",
			lit.MessageModulus, lit.CarryModulus, lit.PolyDegree)
	}
	if _, err := poly.NewDecomposer(lit.PBSBaseLog, lit.PBSLevel); err != nil {
		return fmt.Errorf("bootstrapping decomposition: %w", err)
	}
	if _, err := poly.NewDecomposer(lit.KSBaseLog, lit.KSLevel); err != nil {
		return fmt.Errorf("keyswitching decomposition: %w", err)
	}
	if lit.ExtendedPrecision {
		if b := p.ExactBound(); b >= poly.ExactLogBound {
			return invalid("exact external product needs %d bits, the NTT holds %d", b, poly.ExactLogBound)
		}
	}
	return nil
}

// ExactBound is log2 of the largest magnitude an exact external product
// accumulates: one digit times a torus value, summed over (k+1)*level rows
// of N coefficients.
func (p Parameters) ExactBound() int {
	rows := uint(p.lit.GLWERank+1) * uint(p.lit.PBSLevel)
	return p.lit.PBSBaseLog - 1 + 63 + bits.Len(uint(p.lit.PolyDegree)) - 1 + bits.Len(rows-1)
}

// Literal returns the literal the parameters were built from.
func (p Parameters) Literal() ParametersLiteral { return p.lit }

// LWEDimension returns n.
func (p Parameters) LWEDimension() int { return p.lit.LWEDimension }

// GLWERank returns k.
func (p Parameters) GLWERank() int { return p.lit.GLWERank }

// PolyDegree returns N.
func (p Parameters) PolyDegree() int { return p.lit.PolyDegree }

// ExtractedDimension is k*N, the dimension of sample-extracted ciphertexts.
func (p Parameters) ExtractedDimension() int { return p.lit.GLWERank * p.lit.PolyDegree }

// LWEStdDev returns the LWE noise standard deviation.
func (p Parameters) LWEStdDev() float64 { return p.lit.LWEStdDev }

// GLWEStdDev returns the GLWE noise standard deviation.
func (p Parameters) GLWEStdDev() float64 { return p.lit.GLWEStdDev }

// PBSBaseLog returns log2 of the bootstrapping decomposition base.
func (p Parameters) PBSBaseLog() int { return p.lit.PBSBaseLog }

// PBSLevel returns the bootstrapping decomposition level count.
func (p Parameters) PBSLevel() int { return p.lit.PBSLevel }

// KSBaseLog returns log2 of the keyswitching decomposition base.
func (p Parameters) KSBaseLog() int { return p.lit.KSBaseLog }

// KSLevel returns the keyswitching decomposition level count.
func (p Parameters) KSLevel() int { return p.lit.KSLevel }

// MessageModulus returns the message modulus.
func (p Parameters) MessageModulus() uint64 { return p.lit.MessageModulus }

// CarryModulus returns the carry modulus.
func (p Parameters) CarryModulus() uint64 { return p.lit.CarryModulus }

// PlaintextModulus returns MessageModulus*CarryModulus.
func (p Parameters) PlaintextModulus() uint64 { return p.lit.MessageModulus * p.lit.CarryModulus }

// SecretDistribution returns the GLWE secret key distribution.
func (p Parameters) SecretDistribution() csprng.Distribution { return p.lit.SecretDistribution }

// ExtendedPrecision reports whether external products run exactly.
func (p Parameters) ExtendedPrecision() bool { return p.lit.ExtendedPrecision }

// Equal reports whether both parameter sets are identical.
func (p Parameters) Equal(other Parameters) bool { return p.lit == other.lit }

// String summarizes the parameter set.
func (p Parameters) String() string {
	lit := p.lit
	return fmt.Sprintf("n=%d k=%d N=%d pbs=(2^%d,%d) ks=(2^%d,%d) msg=%d carry=%d extended=%v",
		lit.LWEDimension, lit.GLWERank, lit.PolyDegree, lit.PBSBaseLog, lit.PBSLevel,
		lit.KSBaseLog, lit.KSLevel, lit.MessageModulus, lit.CarryModulus, lit.ExtendedPrecision)
}
