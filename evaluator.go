// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/tfhe/glwe"
	"github.com/luxfi/tfhe/lwe"
	"github.com/luxfi/tfhe/poly"
)

// Evaluator evaluates linear operations and programmable bootstraps on
// encrypted data.
// SECURITY: This evaluator does NOT require the secret key.
//
// An Evaluator owns the scratch memory of one worker and is not safe for
// concurrent use; ShallowCopy returns an evaluator sharing the server key
// with fresh scratch.
type Evaluator struct {
	params  Parameters
	sk      *ServerKey
	enc     *Encoder
	workers int

	eval      *glwe.Evaluator
	acc       glwe.Ciphertext
	extracted lwe.Ciphertext

	identity *LookupTable
	gates    *gateTables
}

// NewEvaluator creates a new evaluator with a server key.
func NewEvaluator(params Parameters, sk *ServerKey) (*Evaluator, error) {
	if !params.Equal(sk.params) {
		return nil, invalid("server key parameters %v differ from evaluator parameters %v", sk.params, params)
	}
	var exact *poly.ExactPlan
	if params.ExtendedPrecision() {
		exact = sk.exact
	}
	eval, err := glwe.NewEvaluator(sk.plan, exact, params.GLWERank(), params.PBSBaseLog(), params.PBSLevel())
	if err != nil {
		return nil, err
	}
	// Decoding into sk later must not swap keys under the evaluator.
	snapshot := *sk
	return &Evaluator{
		params:    params,
		sk:        &snapshot,
		enc:       NewEncoder(params),
		workers:   runtime.GOMAXPROCS(0),
		eval:      eval,
		acc:       glwe.NewCiphertext(params.GLWERank(), params.PolyDegree()),
		extracted: lwe.NewCiphertext(params.ExtractedDimension()),
		identity:  IdentityLookupTable(params),
		gates:     newGateTables(params),
	}, nil
}

// ShallowCopy returns an evaluator sharing the server key and lookup
// tables, with fresh scratch.
func (eval *Evaluator) ShallowCopy() *Evaluator {
	return &Evaluator{
		params:    eval.params,
		sk:        eval.sk,
		enc:       eval.enc,
		workers:   eval.workers,
		eval:      eval.eval.ShallowCopy(),
		acc:       glwe.NewCiphertext(eval.params.GLWERank(), eval.params.PolyDegree()),
		extracted: lwe.NewCiphertext(eval.params.ExtractedDimension()),
		identity:  eval.identity,
		gates:     eval.gates,
	}
}

// WithWorkers bounds the goroutines BootstrapBatch uses.
func (eval *Evaluator) WithWorkers(workers int) *Evaluator {
	if workers < 1 {
		workers = 1
	}
	eval.workers = workers
	return eval
}

// Parameters returns the parameter set of the evaluator.
func (eval *Evaluator) Parameters() Parameters { return eval.params }

func (eval *Evaluator) newCiphertext() *Ciphertext {
	return NewCiphertext(eval.params.LWEDimension())
}

// ========== Linear Operations ==========

// Add returns a + b.
func (eval *Evaluator) Add(a, b *Ciphertext) (*Ciphertext, error) {
	out := eval.newCiphertext()
	if err := lwe.Add(a.Ciphertext, b.Ciphertext, &out.Ciphertext); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	return out, nil
}

// Sub returns a - b.
func (eval *Evaluator) Sub(a, b *Ciphertext) (*Ciphertext, error) {
	out := eval.newCiphertext()
	if err := lwe.Sub(a.Ciphertext, b.Ciphertext, &out.Ciphertext); err != nil {
		return nil, fmt.Errorf("sub: %w", err)
	}
	return out, nil
}

// AddPlaintext returns ct + m.
func (eval *Evaluator) AddPlaintext(ct *Ciphertext, m uint64) (*Ciphertext, error) {
	pt, err := eval.enc.Encode(m)
	if err != nil {
		return nil, err
	}
	out := eval.newCiphertext()
	if err := lwe.AddPlaintext(ct.Ciphertext, pt, &out.Ciphertext); err != nil {
		return nil, fmt.Errorf("add plaintext: %w", err)
	}
	return out, nil
}

// MulScalar returns s * ct.
func (eval *Evaluator) MulScalar(ct *Ciphertext, s uint64) (*Ciphertext, error) {
	out := eval.newCiphertext()
	if err := lwe.MulScalar(ct.Ciphertext, s, &out.Ciphertext); err != nil {
		return nil, fmt.Errorf("mul scalar: %w", err)
	}
	return out, nil
}

// Negate returns -ct. The result decrypts to -m modulo MessageModulus.
func (eval *Evaluator) Negate(ct *Ciphertext) (*Ciphertext, error) {
	out := eval.newCiphertext()
	if err := lwe.Negate(ct.Ciphertext, &out.Ciphertext); err != nil {
		return nil, fmt.Errorf("negate: %w", err)
	}
	return out, nil
}

// LinearCombination returns sum_i weights[i] * cts[i].
func (eval *Evaluator) LinearCombination(cts []*Ciphertext, weights []uint64) (*Ciphertext, error) {
	in := make([]lwe.Ciphertext, len(cts))
	for i, ct := range cts {
		in[i] = ct.Ciphertext
	}
	out := eval.newCiphertext()
	if err := lwe.LinearCombination(in, weights, &out.Ciphertext); err != nil {
		return nil, fmt.Errorf("linear combination: %w", err)
	}
	return out, nil
}

// ========== Programmable Bootstrapping ==========

// Bootstrap evaluates lut on the message of ct and returns a ciphertext
// whose noise no longer depends on the noise of ct: blind rotation, sample
// extraction, then keyswitching back to the LWE key.
func (eval *Evaluator) Bootstrap(ct *Ciphertext, lut *LookupTable) (*Ciphertext, error) {
	out := eval.newCiphertext()
	if err := eval.bootstrapInto(ct, lut, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (eval *Evaluator) bootstrapInto(ct *Ciphertext, lut *LookupTable, out *Ciphertext) error {
	if err := lut.check(eval.params); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := eval.eval.BlindRotate(eval.sk.bsk, lut.poly, ct.Ciphertext, eval.acc); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := glwe.SampleExtract(eval.acc, &eval.extracted); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := eval.sk.ksk.KeySwitch(eval.extracted, &out.Ciphertext); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

// BootstrapFunc bootstraps ct through the table of f.
func (eval *Evaluator) BootstrapFunc(ct *Ciphertext, f func(uint64) uint64) (*Ciphertext, error) {
	return eval.Bootstrap(ct, NewLookupTable(eval.params, f))
}

// Refresh bootstraps a ciphertext through the identity to reset its noise
func (eval *Evaluator) Refresh(ct *Ciphertext) (*Ciphertext, error) {
	return eval.Bootstrap(ct, eval.identity)
}

// BootstrapBatch bootstraps every ciphertext through lut. The batch is
// split across up to WithWorkers goroutines, each with its own shallow
// copy of the evaluator.
func (eval *Evaluator) BootstrapBatch(cts []*Ciphertext, lut *LookupTable) ([]*Ciphertext, error) {
	if err := lut.check(eval.params); err != nil {
		return nil, fmt.Errorf("bootstrap batch: %w", err)
	}
	out := make([]*Ciphertext, len(cts))
	workers := min(eval.workers, len(cts))
	if workers <= 1 {
		for i, ct := range cts {
			res, err := eval.Bootstrap(ct, lut)
			if err != nil {
				return nil, fmt.Errorf("bootstrap batch: ciphertext %d: %w", i, err)
			}
			out[i] = res
		}
		return out, nil
	}

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		worker := eval.ShallowCopy()
		eg.Go(func() error {
			for i := w; i < len(cts); i += workers {
				res, err := worker.Bootstrap(cts[i], lut)
				if err != nil {
					return fmt.Errorf("ciphertext %d: %w", i, err)
				}
				out[i] = res
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("bootstrap batch: %w", err)
	}
	return out, nil
}

// BootstrapBivariate evaluates f(a, b) for messages a, b below
// MessageModulus. Both messages are packed as a*MessageModulus + b, which
// needs CarryModulus >= MessageModulus.
func (eval *Evaluator) BootstrapBivariate(a, b *Ciphertext, f func(x, y uint64) uint64) (*Ciphertext, error) {
	msg := eval.params.MessageModulus()
	if eval.params.CarryModulus() < msg {
		return nil, invalid("bivariate bootstrap packs two messages, carry modulus %d is below message modulus %d",
			eval.params.CarryModulus(), msg)
	}
	packed, err := eval.LinearCombination([]*Ciphertext{a, b}, []uint64{msg, 1})
	if err != nil {
		return nil, fmt.Errorf("bivariate bootstrap: %w", err)
	}
	lut := NewLookupTable(eval.params, func(x uint64) uint64 { return f(x/msg, x%msg) })
	return eval.Bootstrap(packed, lut)
}
