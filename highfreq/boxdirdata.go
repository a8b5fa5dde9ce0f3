// Package highfreq implements the directional high-frequency pass of
// spec §4.5: per-level directional M2M up, directional M2L across
// far-field wedges, and directional L2L down, operating on a
// per-level ParVec[BoxAndDirKey, *BoxAndDirData] store (the per-level
// `_level_prtns` layout DESIGN NOTES §9 calls for, as opposed to the
// rejected single `_bndvec` layout).
package highfreq

import (
	"fmt"
	"io"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/codec"
	"github.com/emmanuel-garza/ddfmm/ddferr"
	"github.com/emmanuel-garza/ddfmm/tree"
)

// BoxAndDirField names a field of BoxAndDirData for the field-mask
// scheme (DESIGN NOTES §9).
type BoxAndDirField codec.FieldMask

const (
	FieldDirUpEqnDen BoxAndDirField = 1 << iota
	FieldDirDnChkVal
)

// BoxAndDirData is the per-(box,direction) state the directional pass
// reads and writes: `dirupeqnden` (outgoing) and `dirdnchkval`
// (incoming) of spec §3's BoxData, lifted to their own per-(box,dir)
// arena so the cyclic parent/child directional references are key
// lookups rather than owning pointers (DESIGN NOTES §9).
type BoxAndDirData struct {
	DirUpEqnDen []complex128
	DirDnChkVal []complex128
}

// NewBoxAndDirData is the parvec.New newValue factory for the
// per-level directional store.
func NewBoxAndDirData() *BoxAndDirData { return &BoxAndDirData{} }

func (b *BoxAndDirData) EncodeMasked(w io.Writer, mask codec.FieldMask) error {
	m := BoxAndDirField(mask)
	if m&FieldDirUpEqnDen != 0 {
		if err := codec.WriteComplexSlice(w, b.DirUpEqnDen); err != nil {
			return err
		}
	}
	if m&FieldDirDnChkVal != 0 {
		if err := codec.WriteComplexSlice(w, b.DirDnChkVal); err != nil {
			return err
		}
	}
	return nil
}

func (b *BoxAndDirData) DecodeMasked(r io.Reader, mask codec.FieldMask) error {
	m := BoxAndDirField(mask)
	if m&FieldDirUpEqnDen != 0 {
		v, err := codec.ReadComplexSlice(r)
		if err != nil {
			return err
		}
		b.DirUpEqnDen = v
	}
	if m&FieldDirDnChkVal != 0 {
		v, err := codec.ReadComplexSlice(r)
		if err != nil {
			return err
		}
		b.DirDnChkVal = v
	}
	return nil
}

func (b *BoxAndDirData) MergeMasked(other *BoxAndDirData, mask codec.FieldMask) {
	m := BoxAndDirField(mask)
	if m&FieldDirUpEqnDen != 0 {
		b.DirUpEqnDen = other.DirUpEqnDen
	}
	if m&FieldDirDnChkVal != 0 {
		if b.DirDnChkVal == nil {
			b.DirDnChkVal = make([]complex128, len(other.DirDnChkVal))
		}
		for i, v := range other.DirDnChkVal {
			b.DirDnChkVal[i] += v
		}
	}
}

// BoxAndDirKeyCodec is the parvec.KeyCodec for boxkey.BoxAndDirKey.
type BoxAndDirKeyCodec struct{}

func (BoxAndDirKeyCodec) Encode(k boxkey.BoxAndDirKey) []byte {
	b := make([]byte, 28+24)
	bk := tree.BoxKeyCodec{}.Encode(k.Box)
	copy(b[0:28], bk)
	putDirInt64(b[28:36], k.Dir.X)
	putDirInt64(b[36:44], k.Dir.Y)
	putDirInt64(b[44:52], k.Dir.Z)
	return b
}

func (BoxAndDirKeyCodec) Decode(b []byte) (boxkey.BoxAndDirKey, error) {
	if len(b) != 52 {
		return boxkey.BoxAndDirKey{}, fmt.Errorf("%w: malformed box-and-dir key encoding", ddferr.ErrProtocol)
	}
	box, err := tree.BoxKeyCodec{}.Decode(b[0:28])
	if err != nil {
		return boxkey.BoxAndDirKey{}, err
	}
	return boxkey.BoxAndDirKey{
		Box: box,
		Dir: boxkey.Direction{X: getDirInt64(b[28:36]), Y: getDirInt64(b[36:44]), Z: getDirInt64(b[44:52])},
	}, nil
}

func putDirInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(u >> (8 * i))
	}
}
func getDirInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u = u<<8 | uint64(b[i])
	}
	return int64(u)
}
