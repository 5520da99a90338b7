// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"
	"sync"
	"testing"

	"github.com/luxfi/tfhe/csprng"
)

// ============================================================================
// EDGE CASE TESTS - Boundary messages
// ============================================================================

func TestEdgeCaseMessages(t *testing.T) {
	tc := setupTest(t, testParams)
	p := tc.params.PlaintextModulus()

	// The largest message sits next to the padding bit; adding one wraps
	// to zero without corrupting the padding.
	top := tc.encrypt(t, p-1)
	if got := tc.decryptWithCarry(t, top); got != p-1 {
		t.Fatalf("decrypt(%d) = %d", p-1, got)
	}
	wrapped, err := tc.eval.AddPlaintext(top, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := tc.decryptWithCarry(t, wrapped); got != 0 {
		t.Errorf("%d + 1 = %d, want 0", p-1, got)
	}

	zero, err := tc.eval.MulScalar(top, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := tc.decryptWithCarry(t, zero); got != 0 {
		t.Errorf("0 * %d = %d", p-1, got)
	}

	// An encryption with zero noise decodes exactly.
	exact, err := tc.enc.EncryptWithStdDev(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	phase, err := tc.dec.Phase(exact)
	if err != nil {
		t.Fatal(err)
	}
	if phase != NewEncoder(tc.params).Delta() {
		t.Errorf("noiseless phase %#x, want delta", phase)
	}
}

// ============================================================================
// CONCURRENT ACCESS TESTS - Shared keys, per-goroutine scratch
// ============================================================================

func TestConcurrentOperations(t *testing.T) {
	tc := setupTest(t, testParams)
	lut := NewLookupTable(tc.params, func(m uint64) uint64 { return (m + 1) % 4 })

	const numGoroutines = 4
	const numOperations = 4

	var wg sync.WaitGroup
	errors := make(chan error, numGoroutines*numOperations)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			enc := tc.enc.ShallowCopy(fmt.Sprintf("goroutine/%d", id))
			eval := tc.eval.ShallowCopy()
			for j := 0; j < numOperations; j++ {
				m := uint64(id+j) % 4
				ct, err := enc.Encrypt(m)
				if err != nil {
					errors <- fmt.Errorf("goroutine %d op %d: encrypt: %v", id, j, err)
					continue
				}
				out, err := eval.Bootstrap(ct, lut)
				if err != nil {
					errors <- fmt.Errorf("goroutine %d op %d: bootstrap: %v", id, j, err)
					continue
				}
				got, err := tc.dec.DecryptWithCarry(out)
				if err != nil {
					errors <- fmt.Errorf("goroutine %d op %d: decrypt: %v", id, j, err)
					continue
				}
				if got != (m+1)%4 {
					errors <- fmt.Errorf("goroutine %d op %d: f(%d) = %d", id, j, m, got)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Error(err)
	}
}

// ============================================================================
// RNG TESTS - Seeded determinism
// ============================================================================

func TestRNGDeterminism(t *testing.T) {
	params, err := NewParametersFromLiteral(testParams)
	if err != nil {
		t.Fatal(err)
	}
	encrypt := func(seed string) *Ciphertext {
		src := csprng.NewSeededSource(testSeed(seed))
		ck := NewKeyGenerator(params, src).GenClientKey()
		ct, err := NewEncryptor(params, ck, src.Encryption()).Encrypt(1)
		if err != nil {
			t.Fatal(err)
		}
		return ct
	}
	if !encrypt("a").Equal(encrypt("a")) {
		t.Error("same seed gave different ciphertexts")
	}
	if encrypt("a").Equal(encrypt("b")) {
		t.Error("different seeds gave equal ciphertexts")
	}
}

// ============================================================================
// FUZZ TESTS - Random inputs
// ============================================================================

func FuzzEncryptDecrypt(f *testing.F) {
	tc := newTestContext(f, testParams, "fuzz/encrypt")

	f.Add(uint64(0))
	f.Add(uint64(1))
	f.Add(uint64(3))
	f.Add(uint64(1 << 63))

	f.Fuzz(func(t *testing.T, value uint64) {
		value %= tc.params.PlaintextModulus()
		ct, err := tc.enc.Encrypt(value)
		if err != nil {
			t.Fatal(err)
		}
		if got := tc.decryptWithCarry(t, ct); got != value {
			t.Errorf("Encrypt/Decrypt failed: got %d, want %d", got, value)
		}
	})
}

func FuzzAdd(f *testing.F) {
	tc := newTestContext(f, testParams, "fuzz/add")

	f.Add(uint64(0), uint64(0))
	f.Add(uint64(1), uint64(1))
	f.Add(uint64(3), uint64(2))

	f.Fuzz(func(t *testing.T, a, b uint64) {
		p := tc.params.PlaintextModulus()
		a, b = a%p, b%p

		sum, err := tc.eval.Add(tc.encrypt(t, a), tc.encrypt(t, b))
		if err != nil {
			t.Fatal(err)
		}
		refreshed, err := tc.eval.Refresh(sum)
		if err != nil {
			t.Fatal(err)
		}
		if got := tc.decryptWithCarry(t, refreshed); got != (a+b)%p {
			t.Errorf("%d + %d = %d, want %d", a, b, got, (a+b)%p)
		}
	})
}
