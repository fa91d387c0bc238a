// Package wire implements the fixed binary layouts exchanged between chains: the
// deposit message, governance actions, the guardian envelope and the custodial burn
// message. All integers are big-endian.
package wire

import (
	"bytes"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"circle-integration/models"
)

// reader walks a byte slice and records the first short read.
type reader struct {
	data   []byte
	cursor int
	what   string
	err    error
}

func newReader(data []byte, what string) *reader {
	return &reader{data: data, what: what}
}

func (r *reader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data)-r.cursor < n {
		r.err = errorsmod.Wrapf(models.ErrMalformedMessage,
			"%s truncated at %s: need %d bytes at offset %d, have %d",
			r.what, field, n, r.cursor, len(r.data)-r.cursor)
		return nil
	}
	chunk := r.data[r.cursor : r.cursor+n]
	r.cursor += n
	return chunk
}

func (r *reader) uint8(field string) uint8 {
	b := r.take(1, field)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint16(field string) uint16 {
	b := r.take(2, field)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) uint32(field string) uint32 {
	b := r.take(4, field)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) uint64(field string) uint64 {
	b := r.take(8, field)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) uint256(field string) *uint256.Int {
	b := r.take(32, field)
	if b == nil {
		return nil
	}
	return new(uint256.Int).SetBytes32(b)
}

func (r *reader) address(field string) models.Address {
	var a models.Address
	copy(a[:], r.take(32, field))
	return a
}

func (r *reader) bytes(n int, field string) []byte {
	return bytes.Clone(r.take(n, field))
}

func (r *reader) rest() []byte {
	if r.err != nil {
		return nil
	}
	out := bytes.Clone(r.data[r.cursor:])
	r.cursor = len(r.data)
	return out
}

func (r *reader) remaining() int {
	return len(r.data) - r.cursor
}

// finish fails when unread bytes are left over.
func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.cursor != len(r.data) {
		return errorsmod.Wrapf(models.ErrMalformedMessage,
			"%s has %d trailing bytes", r.what, len(r.data)-r.cursor)
	}
	return nil
}

// writer appends fixed-width fields.
type writer struct {
	buf []byte
}

func (w *writer) uint8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) uint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *writer) uint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) uint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *writer) raw(b []byte)    { w.buf = append(w.buf, b...) }

func (w *writer) address(a models.Address) {
	w.buf = append(w.buf, a[:]...)
}

func (w *writer) uint256(v *uint256.Int) {
	word := v.Bytes32()
	w.buf = append(w.buf, word[:]...)
}
