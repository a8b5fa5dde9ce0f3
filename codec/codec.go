// Package codec implements the field-mask-driven serialization scheme
// DESIGN NOTES §9 calls for: a tagged set of field identifiers plus a
// per-type serialize routine that honors the mask, instead of the
// reflection-based "dynamic dispatch by field index" the source used.
package codec

import (
	"encoding/binary"
	"io"
	"math"
)

// FieldMask selects which fields of a value cross the wire during a
// ParVec get/put phase. Each bit is a named field of some value type;
// the bit layout is defined per value type (see tree.BoxField,
// highfreq.BoxAndDirField) rather than shared globally, since different
// value types serialize different fields.
type FieldMask uint32

// Has reports whether every bit set in want is also set in the mask.
func (m FieldMask) Has(want FieldMask) bool {
	return m&want == want
}

// MaskedValue is the contract a ParVec value type must satisfy: encode
// and decode only the fields named by mask, and merge another masked
// value's selected fields into the receiver (the put-side operation).
type MaskedValue[V any] interface {
	EncodeMasked(w io.Writer, mask FieldMask) error
	DecodeMasked(r io.Reader, mask FieldMask) error
	MergeMasked(other V, mask FieldMask)
}

// WriteFloat64 writes a single float64 in big-endian form.
func WriteFloat64(w io.Writer, v float64) error {
	return binary.Write(w, binary.BigEndian, math.Float64bits(v))
}

// ReadFloat64 reads a single float64 in big-endian form.
func ReadFloat64(r io.Reader) (float64, error) {
	var bits uint64
	if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// WriteComplexSlice writes a slice of complex128 values, length-prefixed.
func WriteComplexSlice(w io.Writer, v []complex128) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(v))); err != nil {
		return err
	}
	for _, c := range v {
		if err := WriteFloat64(w, real(c)); err != nil {
			return err
		}
		if err := WriteFloat64(w, imag(c)); err != nil {
			return err
		}
	}
	return nil
}

// ReadComplexSlice reads a slice of complex128 values written by
// WriteComplexSlice.
func ReadComplexSlice(r io.Reader) ([]complex128, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]complex128, n)
	for i := range out {
		re, err := ReadFloat64(r)
		if err != nil {
			return nil, err
		}
		im, err := ReadFloat64(r)
		if err != nil {
			return nil, err
		}
		out[i] = complex(re, im)
	}
	return out, nil
}

// WriteFloat64Slice writes a slice of float64 values, length-prefixed.
func WriteFloat64Slice(w io.Writer, v []float64) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(v))); err != nil {
		return err
	}
	for _, f := range v {
		if err := WriteFloat64(w, f); err != nil {
			return err
		}
	}
	return nil
}

// ReadFloat64Slice reads a slice of float64 values written by
// WriteFloat64Slice.
func ReadFloat64Slice(r io.Reader) ([]float64, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		f, err := ReadFloat64(r)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// WriteInt64Slice writes a slice of int64 values, length-prefixed.
func WriteInt64Slice(w io.Writer, v []int64) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(v))); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, v)
}

// ReadInt64Slice reads a slice of int64 values written by WriteInt64Slice.
func ReadInt64Slice(r io.Reader) ([]int64, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]int64, n)
	if err := binary.Read(r, binary.BigEndian, &out); err != nil {
		return nil, err
	}
	return out, nil
}
