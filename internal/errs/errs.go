// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package errs holds the error taxonomy shared by every package of the
// engine. Public packages re-export the sentinels they raise.
package errs

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the category of every error caused by a call site
// that can be fixed by the caller: parameter or dimension mismatches,
// out-of-range plaintexts and undersized scratch space.
var ErrConfiguration = errors.New("configuration error")

// configError is a sentinel that also matches ErrConfiguration.
type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

func (e *configError) Is(target error) bool { return target == ErrConfiguration }

// NewConfiguration returns a new sentinel in the configuration category.
func NewConfiguration(msg string) error {
	return &configError{msg: msg}
}

var (
	ErrInvalidParameters  = NewConfiguration("invalid parameters")
	ErrDimensionMismatch  = NewConfiguration("dimension mismatch")
	ErrScratchTooSmall    = NewConfiguration("scratch arena too small")
	ErrMessageOutOfRange  = NewConfiguration("message out of range")
	ErrInvalidLookupTable = NewConfiguration("invalid lookup table")
)

var (
	// ErrEntropySourceUnavailable is fatal and never retried.
	ErrEntropySourceUnavailable = errors.New("entropy source unavailable")

	// ErrDeserialization is returned by every decoder on malformed input.
	ErrDeserialization = errors.New("malformed serialized data")
)

// Dimension reports a mismatch between two sizes of the named object.
func Dimension(what string, got, want int) error {
	return fmt.Errorf("%w: %s is %d, expected %d", ErrDimensionMismatch, what, got, want)
}
