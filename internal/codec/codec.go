// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package codec implements the fixed-width little-endian record layout
// shared by every serializable type.
//
// A record is
//
//	magic "TFHE" | version uint16 | kind uint16 | payload
//
// and every dimension is written before the payload it sizes.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/luxfi/tfhe/internal/errs"
)

// Version is the current layout version.
const Version uint16 = 1

var magic = [4]byte{'T', 'F', 'H', 'E'}

// HeaderSize is the number of bytes preceding every payload.
const HeaderSize = 8

// Kind tags the record type.
type Kind uint16

const (
	KindParameters Kind = iota + 1
	KindLWECiphertext
	KindGLWECiphertext
	KindGGSW
	KindBootstrapKey
	KindKeySwitchKey
	KindLWESecretKey
	KindGLWESecretKey
	KindCiphertext
	KindClientKey
	KindServerKey
	KindLWEPublicKey
	KindPublicKey
)

func (k Kind) String() string {
	switch k {
	case KindParameters:
		return "parameters"
	case KindLWECiphertext:
		return "lwe ciphertext"
	case KindGLWECiphertext:
		return "glwe ciphertext"
	case KindGGSW:
		return "ggsw ciphertext"
	case KindBootstrapKey:
		return "bootstrap key"
	case KindKeySwitchKey:
		return "keyswitch key"
	case KindLWESecretKey:
		return "lwe secret key"
	case KindGLWESecretKey:
		return "glwe secret key"
	case KindCiphertext:
		return "ciphertext"
	case KindClientKey:
		return "client key"
	case KindServerKey:
		return "server key"
	case KindLWEPublicKey:
		return "lwe public key"
	case KindPublicKey:
		return "public key"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

// Writer appends a record to an in-memory buffer.
type Writer struct {
	buf []byte
}

// NewWriter starts a record of the given kind. sizeHint is the expected
// payload size in bytes.
func NewWriter(kind Kind, sizeHint int) *Writer {
	w := &Writer{buf: make([]byte, 0, HeaderSize+sizeHint)}
	w.buf = append(w.buf, magic[:]...)
	w.U16(Version)
	w.U16(uint16(kind))
	return w
}

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) U16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) U64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// Dim writes a dimension.
func (w *Writer) Dim(v int) { w.U32(uint32(v)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// F64 writes the IEEE-754 bits of v.
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// Uint64s writes vs without a length prefix.
func (w *Writer) Uint64s(vs []uint64) {
	for _, v := range vs {
		w.U64(v)
	}
}

// Bytes writes a length-prefixed byte string.
func (w *Writer) Bytes(b []byte) {
	w.U64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// Data returns the encoded record.
func (w *Writer) Data() []byte { return w.buf }

// Reader decodes a record. The first failure is sticky and every later
// read returns zero values.
type Reader struct {
	data []byte
	off  int
	kind Kind
	err  error
}

// NewReader checks the header of data against kind.
func NewReader(data []byte, kind Kind) *Reader {
	r := &Reader{data: data, kind: kind}
	if len(data) < HeaderSize {
		r.Failf("record of %d bytes is shorter than the header", len(data))
		return r
	}
	if [4]byte(data[:4]) != magic {
		r.Failf("bad magic %q", data[:4])
		return r
	}
	r.off = 4
	if v := r.U16(); v != Version {
		r.Failf("unsupported version %d", v)
		return r
	}
	if k := Kind(r.U16()); k != kind {
		r.Failf("record is a %s", k)
	}
	return r
}

// Failf records a decoding failure.
func (r *Reader) Failf(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s: %s", errs.ErrDeserialization, r.kind, fmt.Sprintf(format, args...))
	}
}

// Err returns the first failure.
func (r *Reader) Err() error { return r.err }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.Failf("truncated at offset %d", r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Dim reads a dimension and checks it lies in [lo, hi].
func (r *Reader) Dim(what string, lo, hi int) int {
	v := r.U32()
	if r.err != nil {
		return 0
	}
	if int64(v) < int64(lo) || int64(v) > int64(hi) {
		r.Failf("%s %d outside [%d, %d]", what, v, lo, hi)
		return 0
	}
	return int(v)
}

func (r *Reader) Bool() bool {
	switch v := r.U8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.Failf("invalid boolean %d", v)
		return false
	}
}

// F64 reads a finite float.
func (r *Reader) F64() float64 {
	v := math.Float64frombits(r.U64())
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.Failf("non-finite float")
		return 0
	}
	return v
}

// Uint64s fills dst.
func (r *Reader) Uint64s(dst []uint64) {
	b := r.take(8 * len(dst))
	if b == nil {
		return
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
}

// Bytes reads a length-prefixed byte string. The result aliases the input.
func (r *Reader) Bytes() []byte {
	n := r.U64()
	if r.err != nil {
		return nil
	}
	if n > uint64(r.Remaining()) {
		r.Failf("byte string of %d bytes exceeds the %d remaining", n, r.Remaining())
		return nil
	}
	return r.take(int(n))
}

// Need fails unless at least n more bytes remain. Decoders call it before
// allocating payload buffers sized from untrusted dimensions.
func (r *Reader) Need(n uint64) {
	if r.err == nil && n > uint64(r.Remaining()) {
		r.Failf("payload of %d bytes exceeds the %d remaining", n, r.Remaining())
	}
}

// Finish returns the first failure, or an error if unread bytes remain.
func (r *Reader) Finish() error {
	if r.err == nil && r.off != len(r.data) {
		r.Failf("%d trailing bytes", len(r.data)-r.off)
	}
	return r.err
}
