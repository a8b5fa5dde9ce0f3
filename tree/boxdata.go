// Package tree implements octree construction (spec §4.3, SetupTree):
// inserting points, recursive subdivision on ptsmax/maxlevel, and the
// U/V/W/X and directional far-field lists every owned box needs for
// the low- and high-frequency passes.
package tree

import (
	"io"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/codec"
	"github.com/emmanuel-garza/ddfmm/set"
)

// Tag is the bitset spec §3 calls `tag`.
type Tag uint8

const (
	HasPoints Tag = 1 << iota
	IsLeaf
)

// BoxField names one field of BoxData for the field-mask-driven
// exchange scheme (DESIGN NOTES §9): a tagged identifier, not a
// reflected struct offset.
type BoxField codec.FieldMask

const (
	FieldTag BoxField = 1 << iota
	FieldPtIdx
	FieldExtPos
	FieldExtDen
	FieldExtVal
	FieldUpEqnDen
	FieldDnChkVal
	FieldUpEqnDenFFT
	FieldLists // U, V, W, X, FarLists, IncDirSet, OutDirSet travel together: they are set once at construction and never partially re-sent.
)

// BoxData is the per-box state of spec §3.
type BoxData struct {
	Tag   Tag
	PtIdx []int64

	ExtPos []([3]float64)
	ExtDen []complex128
	ExtVal []complex128

	UpEqnDen []complex128
	DnChkVal []complex128

	UpEqnDenFFT []complex128

	U, V, W, X []boxkey.BoxKey
	FarLists   map[boxkey.Direction][]boxkey.BoxKey

	// IncDirSet is the set of directions this box receives a
	// directional expansion from (the keys of FarLists, with this box
	// as target). OutDirSet is its mirror: the directions this box
	// must transmit an outgoing expansion toward, which — because the
	// well-separated relation FarLists is built from is symmetric — is
	// exactly the negation of every direction in IncDirSet.
	IncDirSet set.Set[boxkey.Direction]
	OutDirSet set.Set[boxkey.Direction]
}

// NewBoxData returns a zero-value box, the constructor parvec.New's
// newValue factory uses.
func NewBoxData() *BoxData {
	return &BoxData{
		FarLists:  map[boxkey.Direction][]boxkey.BoxKey{},
		IncDirSet: set.Set[boxkey.Direction]{},
		OutDirSet: set.Set[boxkey.Direction]{},
	}
}

// EncodeMasked serializes only the fields selected by mask, in a fixed
// field order, per the codec.MaskedValue contract.
func (b *BoxData) EncodeMasked(w io.Writer, mask codec.FieldMask) error {
	m := BoxField(mask)
	if m&FieldTag != 0 {
		if err := codec.WriteInt64Slice(w, []int64{int64(b.Tag)}); err != nil {
			return err
		}
	}
	if m&FieldPtIdx != 0 {
		if err := codec.WriteInt64Slice(w, b.PtIdx); err != nil {
			return err
		}
	}
	if m&FieldExtPos != 0 {
		if err := writePositions(w, b.ExtPos); err != nil {
			return err
		}
	}
	if m&FieldExtDen != 0 {
		if err := codec.WriteComplexSlice(w, b.ExtDen); err != nil {
			return err
		}
	}
	if m&FieldExtVal != 0 {
		if err := codec.WriteComplexSlice(w, b.ExtVal); err != nil {
			return err
		}
	}
	if m&FieldUpEqnDen != 0 {
		if err := codec.WriteComplexSlice(w, b.UpEqnDen); err != nil {
			return err
		}
	}
	if m&FieldDnChkVal != 0 {
		if err := codec.WriteComplexSlice(w, b.DnChkVal); err != nil {
			return err
		}
	}
	if m&FieldUpEqnDenFFT != 0 {
		if err := codec.WriteComplexSlice(w, b.UpEqnDenFFT); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMasked reads back exactly the fields EncodeMasked wrote for
// the same mask.
func (b *BoxData) DecodeMasked(r io.Reader, mask codec.FieldMask) error {
	m := BoxField(mask)
	if m&FieldTag != 0 {
		tags, err := codec.ReadInt64Slice(r)
		if err != nil {
			return err
		}
		if len(tags) == 1 {
			b.Tag = Tag(tags[0])
		}
	}
	if m&FieldPtIdx != 0 {
		v, err := codec.ReadInt64Slice(r)
		if err != nil {
			return err
		}
		b.PtIdx = v
	}
	if m&FieldExtPos != 0 {
		v, err := readPositions(r)
		if err != nil {
			return err
		}
		b.ExtPos = v
	}
	if m&FieldExtDen != 0 {
		v, err := codec.ReadComplexSlice(r)
		if err != nil {
			return err
		}
		b.ExtDen = v
	}
	if m&FieldExtVal != 0 {
		v, err := codec.ReadComplexSlice(r)
		if err != nil {
			return err
		}
		b.ExtVal = v
	}
	if m&FieldUpEqnDen != 0 {
		v, err := codec.ReadComplexSlice(r)
		if err != nil {
			return err
		}
		b.UpEqnDen = v
	}
	if m&FieldDnChkVal != 0 {
		v, err := codec.ReadComplexSlice(r)
		if err != nil {
			return err
		}
		b.DnChkVal = v
	}
	if m&FieldUpEqnDenFFT != 0 {
		v, err := codec.ReadComplexSlice(r)
		if err != nil {
			return err
		}
		b.UpEqnDenFFT = v
	}
	return nil
}

// MergeMasked merges other's masked fields into the receiver: the
// put-side half of the field-mask-driven protocol.
func (b *BoxData) MergeMasked(other *BoxData, mask codec.FieldMask) {
	m := BoxField(mask)
	if m&FieldTag != 0 {
		b.Tag = other.Tag
	}
	if m&FieldPtIdx != 0 {
		b.PtIdx = other.PtIdx
	}
	if m&FieldExtPos != 0 {
		b.ExtPos = other.ExtPos
	}
	if m&FieldExtDen != 0 {
		b.ExtDen = other.ExtDen
	}
	if m&FieldExtVal != 0 {
		if b.ExtVal == nil {
			b.ExtVal = make([]complex128, len(other.ExtVal))
		}
		for i, v := range other.ExtVal {
			b.ExtVal[i] += v
		}
	}
	if m&FieldUpEqnDen != 0 {
		b.UpEqnDen = other.UpEqnDen
	}
	if m&FieldDnChkVal != 0 {
		if b.DnChkVal == nil {
			b.DnChkVal = make([]complex128, len(other.DnChkVal))
		}
		for i, v := range other.DnChkVal {
			b.DnChkVal[i] += v
		}
	}
	if m&FieldUpEqnDenFFT != 0 {
		b.UpEqnDenFFT = other.UpEqnDenFFT
	}
	if b.FarLists == nil {
		b.FarLists = map[boxkey.Direction][]boxkey.BoxKey{}
	}
	if b.IncDirSet == nil {
		b.IncDirSet = set.Set[boxkey.Direction]{}
	}
	if b.OutDirSet == nil {
		b.OutDirSet = set.Set[boxkey.Direction]{}
	}
}

func writePositions(w io.Writer, pos [][3]float64) error {
	flat := make([]float64, 0, 3*len(pos))
	for _, p := range pos {
		flat = append(flat, p[0], p[1], p[2])
	}
	return codec.WriteFloat64Slice(w, flat)
}

func readPositions(r io.Reader) ([][3]float64, error) {
	flat, err := codec.ReadFloat64Slice(r)
	if err != nil {
		return nil, err
	}
	out := make([][3]float64, len(flat)/3)
	for i := range out {
		out[i] = [3]float64{flat[3*i], flat[3*i+1], flat[3*i+2]}
	}
	return out, nil
}
