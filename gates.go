// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

// Boolean gates encode a bit as message 0 or 1. A two-input gate adds its
// inputs, giving a message in {0, 1, 2}, and bootstraps the sum through the
// gate's table. Three-input MAJORITY sums to {0, 1, 2, 3}. Gates therefore
// need MessageModulus*CarryModulus >= 4.

const minGateModulus = 4

type gateTables struct {
	and, or, xor      *LookupTable
	nand, nor, xnor   *LookupTable
	majority, refresh *LookupTable
}

func bit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// newGateTables returns nil when the plaintext space cannot hold a gate sum.
func newGateTables(params Parameters) *gateTables {
	if params.PlaintextModulus() < minGateModulus {
		return nil
	}
	return &gateTables{
		and:      NewLookupTable(params, func(x uint64) uint64 { return bit(x == 2) }),
		or:       NewLookupTable(params, func(x uint64) uint64 { return bit(x >= 1) }),
		xor:      NewLookupTable(params, func(x uint64) uint64 { return bit(x == 1) }),
		nand:     NewLookupTable(params, func(x uint64) uint64 { return bit(x != 2) }),
		nor:      NewLookupTable(params, func(x uint64) uint64 { return bit(x == 0) }),
		xnor:     NewLookupTable(params, func(x uint64) uint64 { return bit(x != 1) }),
		majority: NewLookupTable(params, func(x uint64) uint64 { return bit(x >= 2) }),
		refresh:  NewLookupTable(params, func(x uint64) uint64 { return x & 1 }),
	}
}

func (eval *Evaluator) gate(lut func(*gateTables) *LookupTable, cts ...*Ciphertext) (*Ciphertext, error) {
	if eval.gates == nil {
		return nil, invalid("boolean gates need a plaintext modulus of at least %d, have %d",
			minGateModulus, eval.params.PlaintextModulus())
	}
	sum := cts[0]
	for _, ct := range cts[1:] {
		var err error
		if sum, err = eval.Add(sum, ct); err != nil {
			return nil, err
		}
	}
	return eval.Bootstrap(sum, lut(eval.gates))
}

// ========== Boolean Gates ==========

// NOT computes the logical NOT of the input
// NOT(a) = 1 - a (free operation - no bootstrap)
func (eval *Evaluator) NOT(ct *Ciphertext) *Ciphertext {
	out := ct.CopyNew()
	for i := range out.Mask {
		out.Mask[i] = -out.Mask[i]
	}
	out.Body = eval.enc.Delta() - out.Body
	return out
}

// AND computes the logical AND of two inputs
func (eval *Evaluator) AND(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	return eval.gate(func(t *gateTables) *LookupTable { return t.and }, ct1, ct2)
}

// OR computes the logical OR of two inputs
func (eval *Evaluator) OR(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	return eval.gate(func(t *gateTables) *LookupTable { return t.or }, ct1, ct2)
}

// XOR computes the logical XOR of two inputs
func (eval *Evaluator) XOR(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	return eval.gate(func(t *gateTables) *LookupTable { return t.xor }, ct1, ct2)
}

// NAND computes the logical NAND of two inputs
func (eval *Evaluator) NAND(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	return eval.gate(func(t *gateTables) *LookupTable { return t.nand }, ct1, ct2)
}

// NOR computes the logical NOR of two inputs
func (eval *Evaluator) NOR(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	return eval.gate(func(t *gateTables) *LookupTable { return t.nor }, ct1, ct2)
}

// XNOR computes the logical XNOR of two inputs
func (eval *Evaluator) XNOR(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	return eval.gate(func(t *gateTables) *LookupTable { return t.xnor }, ct1, ct2)
}

// MAJORITY computes the majority vote of three inputs with a single bootstrap
func (eval *Evaluator) MAJORITY(ct1, ct2, ct3 *Ciphertext) (*Ciphertext, error) {
	return eval.gate(func(t *gateTables) *LookupTable { return t.majority }, ct1, ct2, ct3)
}

// MUX computes the multiplexer: if sel then a else b
// MUX(sel, a, b) = (sel AND a) OR (NOT(sel) AND b)
func (eval *Evaluator) MUX(sel, ctTrue, ctFalse *Ciphertext) (*Ciphertext, error) {
	selAndTrue, err := eval.AND(sel, ctTrue)
	if err != nil {
		return nil, err
	}
	notSelAndFalse, err := eval.AND(eval.NOT(sel), ctFalse)
	if err != nil {
		return nil, err
	}
	return eval.OR(selAndTrue, notSelAndFalse)
}

// RefreshBit bootstraps a bit through the table of x mod 2.
func (eval *Evaluator) RefreshBit(ct *Ciphertext) (*Ciphertext, error) {
	return eval.gate(func(t *gateTables) *LookupTable { return t.refresh }, ct)
}
