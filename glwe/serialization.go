// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package glwe

import (
	"github.com/luxfi/tfhe/internal/codec"
	"github.com/luxfi/tfhe/lwe"
	"github.com/luxfi/tfhe/poly"
)

func writeCiphertext(w *codec.Writer, ct Ciphertext) {
	for _, p := range ct.Mask {
		w.Uint64s(p.Coeffs)
	}
	w.Uint64s(ct.Body.Coeffs)
}

func readCiphertext(r *codec.Reader, k, N int) Ciphertext {
	ct := NewCiphertext(k, N)
	for _, p := range ct.Mask {
		r.Uint64s(p.Coeffs)
	}
	r.Uint64s(ct.Body.Coeffs)
	return ct
}

func readShape(r *codec.Reader) (k, N int) {
	k = r.Dim("rank", 1, MaxRank)
	N = r.Dim("degree", poly.MinDegree, poly.MaxDegree)
	if r.Err() == nil && N&(N-1) != 0 {
		r.Failf("degree %d is not a power of two", N)
	}
	return k, N
}

// MarshalBinary encodes ct as rank | degree | mask polynomials | body.
func (ct Ciphertext) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindGLWECiphertext, 8+8*(ct.Rank()+1)*ct.Degree())
	w.Dim(ct.Rank())
	w.Dim(ct.Degree())
	writeCiphertext(w, ct)
	return w.Data(), nil
}

// UnmarshalBinary decodes a ciphertext written by MarshalBinary.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindGLWECiphertext)
	k, N := readShape(r)
	r.Need(8 * uint64(k+1) * uint64(N))
	if err := r.Err(); err != nil {
		return err
	}
	dec := readCiphertext(r, k, N)
	if err := r.Finish(); err != nil {
		return err
	}
	*ct = dec
	return nil
}

// MarshalBinary encodes sk as rank | degree | polynomials.
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(codec.KindGLWESecretKey, 8+8*sk.Rank()*sk.Degree())
	w.Dim(sk.Rank())
	w.Dim(sk.Degree())
	for _, p := range sk.polys {
		w.Uint64s(p.Coeffs)
	}
	return w.Data(), nil
}

// UnmarshalBinary decodes a key written by MarshalBinary.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindGLWESecretKey)
	k, N := readShape(r)
	r.Need(8 * uint64(k) * uint64(N))
	if err := r.Err(); err != nil {
		return err
	}
	polys := make([]poly.Poly, k)
	for j := range polys {
		polys[j] = poly.NewPoly(N)
		r.Uint64s(polys[j].Coeffs)
	}
	if err := r.Finish(); err != nil {
		return err
	}
	sk.polys = polys
	return nil
}

func writeGGSW(w *codec.Writer, ggsw *GGSW) {
	for _, row := range ggsw.rows {
		writeCiphertext(w, row)
	}
}

func readGGSW(r *codec.Reader, k, N, baseLog, level int) *GGSW {
	ggsw := &GGSW{baseLog: baseLog, level: level, rows: make([]Ciphertext, (k+1)*level)}
	for i := range ggsw.rows {
		ggsw.rows[i] = readCiphertext(r, k, N)
	}
	return ggsw
}

func readDecomposition(r *codec.Reader) (baseLog, level int) {
	baseLog = r.Dim("base log", 1, 64)
	level = r.Dim("level", 1, poly.MaxDecompositionLevel)
	if r.Err() == nil {
		if _, err := poly.NewDecomposer(baseLog, level); err != nil {
			r.Failf("%v", err)
		}
	}
	return baseLog, level
}

func ggswSize(k, N, level int) uint64 {
	return 8 * uint64(k+1) * uint64(level) * uint64(k+1) * uint64(N)
}

// MarshalBinary encodes the GGSW as rank | degree | baseLog | level | rows.
// Transform-domain images are not encoded.
func (ggsw *GGSW) MarshalBinary() ([]byte, error) {
	k, N := ggsw.Rank(), ggsw.Degree()
	w := codec.NewWriter(codec.KindGGSW, 16+int(ggswSize(k, N, ggsw.level)))
	w.Dim(k)
	w.Dim(N)
	w.Dim(ggsw.baseLog)
	w.Dim(ggsw.level)
	writeGGSW(w, ggsw)
	return w.Data(), nil
}

// UnmarshalBinary decodes a GGSW written by MarshalBinary. The result has
// no transform-domain image.
func (ggsw *GGSW) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindGGSW)
	k, N := readShape(r)
	baseLog, level := readDecomposition(r)
	r.Need(ggswSize(k, N, level))
	if err := r.Err(); err != nil {
		return err
	}
	dec := readGGSW(r, k, N, baseLog, level)
	if err := r.Finish(); err != nil {
		return err
	}
	*ggsw = *dec
	return nil
}

// MarshalBinary encodes the key as
// inputDim | rank | degree | baseLog | level | GGSW rows in order.
func (bsk *BootstrapKey) MarshalBinary() ([]byte, error) {
	k, N, level := bsk.Rank(), bsk.Degree(), bsk.Level()
	w := codec.NewWriter(codec.KindBootstrapKey, 20+len(bsk.keys)*int(ggswSize(k, N, level)))
	w.Dim(len(bsk.keys))
	w.Dim(k)
	w.Dim(N)
	w.Dim(bsk.BaseLog())
	w.Dim(level)
	for _, ggsw := range bsk.keys {
		writeGGSW(w, ggsw)
	}
	return w.Data(), nil
}

// UnmarshalBinary decodes a key written by MarshalBinary. The key must be
// prepared before use.
func (bsk *BootstrapKey) UnmarshalBinary(data []byte) error {
	r := codec.NewReader(data, codec.KindBootstrapKey)
	n := r.Dim("input dimension", 1, lwe.MaxDimension)
	k, N := readShape(r)
	baseLog, level := readDecomposition(r)
	r.Need(uint64(n) * ggswSize(k, N, level))
	if err := r.Err(); err != nil {
		return err
	}
	keys := make([]*GGSW, n)
	for i := range keys {
		keys[i] = readGGSW(r, k, N, baseLog, level)
	}
	if err := r.Finish(); err != nil {
		return err
	}
	bsk.keys = keys
	return nil
}
