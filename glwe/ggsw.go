// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package glwe

import (
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/tfhe/csprng"
	"github.com/luxfi/tfhe/internal/errs"
	"github.com/luxfi/tfhe/lwe"
	"github.com/luxfi/tfhe/poly"
)

// GGSW is a gadget-decomposed GLWE encryption of a small integer: a
// (k+1) x level matrix of GLWE ciphertexts where row (j, l) encrypts zero
// plus m*q/B^(l+1) on the constant coefficient of component j.
type GGSW struct {
	baseLog int
	level   int
	rows    []Ciphertext // row (j, l) at j*level+l

	// Transform-domain images of the rows, set once by prepare.
	fourier [][]poly.FourierPoly
	exact   [][]poly.ExactPoly
}

// EncryptGGSW returns a GGSW encryption of m under the key of enc.
func EncryptGGSW(enc *Encryptor, m int64, baseLog, level int, stdDev float64, g *csprng.Generator) (*GGSW, error) {
	decomp, err := poly.NewDecomposer(baseLog, level)
	if err != nil {
		return nil, fmt.Errorf("ggsw: %w", err)
	}
	k, N := enc.Rank(), enc.Degree()
	ggsw := &GGSW{baseLog: baseLog, level: level, rows: make([]Ciphertext, (k+1)*level)}
	for j := 0; j <= k; j++ {
		for l := 0; l < level; l++ {
			ct := NewCiphertext(k, N)
			if err := enc.EncryptZeroInto(stdDev, g, ct); err != nil {
				return nil, err
			}
			ct.Component(j).Coeffs[0] += uint64(m) * decomp.Scale(l)
			ggsw.rows[j*level+l] = ct
		}
	}
	return ggsw, nil
}

// Rank returns k.
func (ggsw *GGSW) Rank() int { return ggsw.rows[0].Rank() }

// Degree returns N.
func (ggsw *GGSW) Degree() int { return ggsw.rows[0].Degree() }

// BaseLog returns log2 of the decomposition base.
func (ggsw *GGSW) BaseLog() int { return ggsw.baseLog }

// Level returns the number of decomposition levels.
func (ggsw *GGSW) Level() int { return ggsw.level }

// Row returns a copy of row (j, l).
func (ggsw *GGSW) Row(j, l int) Ciphertext {
	return ggsw.rows[j*ggsw.level+l].CopyNew()
}

// Equal reports whether both GGSW ciphertexts hold the same rows.
func (ggsw *GGSW) Equal(other *GGSW) bool {
	if ggsw.baseLog != other.baseLog || ggsw.level != other.level || len(ggsw.rows) != len(other.rows) {
		return false
	}
	for i := range ggsw.rows {
		if !ggsw.rows[i].Equal(other.rows[i]) {
			return false
		}
	}
	return true
}

// prepare computes the Fourier image of every row and, when exact is not
// nil, the NTT image.
func (ggsw *GGSW) prepare(plan *poly.Plan, exact *poly.ExactPlan, ar *poly.Arena) error {
	k := ggsw.Rank()
	fourier := make([][]poly.FourierPoly, len(ggsw.rows))
	for r, row := range ggsw.rows {
		fourier[r] = make([]poly.FourierPoly, k+1)
		for c := 0; c <= k; c++ {
			fourier[r][c] = plan.NewFourierPoly()
			if err := plan.Forward(ar, row.Component(c), fourier[r][c]); err != nil {
				return err
			}
		}
	}
	var ntt [][]poly.ExactPoly
	if exact != nil {
		ntt = make([][]poly.ExactPoly, len(ggsw.rows))
		for r, row := range ggsw.rows {
			ntt[r] = make([]poly.ExactPoly, k+1)
			for c := 0; c <= k; c++ {
				ntt[r][c] = exact.NewExactPoly()
				if err := exact.Forward(ar, row.Component(c), ntt[r][c]); err != nil {
					return err
				}
			}
		}
	}
	ggsw.fourier, ggsw.exact = fourier, ntt
	return nil
}

// BootstrapKey is the sequence of GGSW encryptions of the coefficients of
// an LWE secret key under a GLWE secret key. It is immutable: Prepare and
// UnmarshalBinary never write rows or images that another handle can
// reach, so a prepared key is shared read-only by every worker.
type BootstrapKey struct {
	keys []*GGSW
}

// GenBootstrapKey encrypts every coefficient of lweSK as a GGSW under
// glweSK. The encryptions run on up to workers goroutines; coefficient i
// draws its randomness from g.Fork("bsk/i"), so the key only depends on
// the state of g. The key is returned prepared for the Fourier domain, and
// for the exact domain too when extended is set.
func GenBootstrapKey(plan *poly.Plan, exact *poly.ExactPlan, lweSK *lwe.SecretKey, glweSK *SecretKey,
	baseLog, level int, stdDev float64, extended bool, g *csprng.Generator, workers int) (*BootstrapKey, error) {

	if _, err := poly.NewDecomposer(baseLog, level); err != nil {
		return nil, fmt.Errorf("bootstrap key: %w", err)
	}
	if plan.N() != glweSK.Degree() {
		return nil, fmt.Errorf("bootstrap key: %w", errs.Dimension("plan degree", plan.N(), glweSK.Degree()))
	}
	if exact == nil {
		return nil, fmt.Errorf("%w: bootstrap key generation needs an exact plan", errs.ErrInvalidParameters)
	}
	var nonBinary uint64
	for i := 0; i < lweSK.Dimension(); i++ {
		nonBinary |= uint64(lweSK.Coefficient(i)) &^ 1
	}
	if nonBinary != 0 {
		return nil, fmt.Errorf("%w: blind rotation selects on bits and needs a binary lwe key", errs.ErrInvalidParameters)
	}
	base, err := NewEncryptor(glweSK, exact)
	if err != nil {
		return nil, fmt.Errorf("bootstrap key: %w", err)
	}

	n := lweSK.Dimension()
	children := make([]*csprng.Generator, n)
	for i := range children {
		children[i] = g.Fork("bsk/" + strconv.Itoa(i))
	}

	if workers < 1 {
		workers = 1
	}
	bsk := &BootstrapKey{keys: make([]*GGSW, n)}
	var eg errgroup.Group
	eg.SetLimit(workers)
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			enc := base.ShallowCopy()
			ggsw, err := EncryptGGSW(enc, lweSK.Coefficient(i), baseLog, level, stdDev, children[i])
			if err != nil {
				return err
			}
			ar := poly.NewArena(plan.N())
			var ntt *poly.ExactPlan
			if extended {
				ntt = exact
			}
			if err := ggsw.prepare(plan, ntt, ar); err != nil {
				return err
			}
			bsk.keys[i] = ggsw
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("bootstrap key: %w", err)
	}
	return bsk, nil
}

// Prepare returns a copy of bsk holding the transform-domain images the
// evaluator reads; exact may be nil when the extended precision path is
// not used. bsk itself is left untouched. The copy shares the GGSW rows,
// which no method writes.
func (bsk *BootstrapKey) Prepare(plan *poly.Plan, exact *poly.ExactPlan) (*BootstrapKey, error) {
	if plan.N() != bsk.Degree() {
		return nil, errs.Dimension("plan degree", plan.N(), bsk.Degree())
	}
	if exact != nil && exact.N() != bsk.Degree() {
		return nil, errs.Dimension("exact plan degree", exact.N(), bsk.Degree())
	}
	ar := poly.NewArena(plan.N())
	prepared := &BootstrapKey{keys: make([]*GGSW, len(bsk.keys))}
	for i, ggsw := range bsk.keys {
		c := &GGSW{baseLog: ggsw.baseLog, level: ggsw.level, rows: ggsw.rows}
		if err := c.prepare(plan, exact, ar); err != nil {
			return nil, err
		}
		prepared.keys[i] = c
	}
	return prepared, nil
}

// CopyNew returns a handle on the same key material. Decoding into the
// handle replaces its contents without touching bsk.
func (bsk *BootstrapKey) CopyNew() *BootstrapKey {
	return &BootstrapKey{keys: append([]*GGSW(nil), bsk.keys...)}
}

// InputDimension is the LWE dimension n of the ciphertexts it bootstraps.
func (bsk *BootstrapKey) InputDimension() int { return len(bsk.keys) }

// Rank returns k.
func (bsk *BootstrapKey) Rank() int { return bsk.keys[0].Rank() }

// Degree returns N.
func (bsk *BootstrapKey) Degree() int { return bsk.keys[0].Degree() }

// BaseLog returns log2 of the decomposition base.
func (bsk *BootstrapKey) BaseLog() int { return bsk.keys[0].BaseLog() }

// Level returns the number of decomposition levels.
func (bsk *BootstrapKey) Level() int { return bsk.keys[0].Level() }

// GGSW returns a copy of the encryption of coefficient i.
func (bsk *BootstrapKey) GGSW(i int) *GGSW {
	c := *bsk.keys[i]
	return &c
}

// Prepared reports whether the Fourier images are available.
func (bsk *BootstrapKey) Prepared() bool { return bsk.keys[0].fourier != nil }

// Extended reports whether the exact images are available.
func (bsk *BootstrapKey) Extended() bool { return bsk.keys[0].exact != nil }

// Equal reports whether both keys hold the same GGSW ciphertexts.
func (bsk *BootstrapKey) Equal(other *BootstrapKey) bool {
	if len(bsk.keys) != len(other.keys) {
		return false
	}
	for i := range bsk.keys {
		if !bsk.keys[i].Equal(other.keys[i]) {
			return false
		}
	}
	return true
}
