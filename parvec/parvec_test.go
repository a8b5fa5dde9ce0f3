package parvec_test

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emmanuel-garza/ddfmm/codec"
	"github.com/emmanuel-garza/ddfmm/comm"
	"github.com/emmanuel-garza/ddfmm/ddferr"
	"github.com/emmanuel-garza/ddfmm/parvec"
)

const (
	fieldA codec.FieldMask = 1 << iota
	fieldB
)

type testValue struct {
	A int64
	B int64
}

func (v *testValue) EncodeMasked(w io.Writer, mask codec.FieldMask) error {
	if mask.Has(fieldA) {
		if err := binary.Write(w, binary.BigEndian, v.A); err != nil {
			return err
		}
	}
	if mask.Has(fieldB) {
		if err := binary.Write(w, binary.BigEndian, v.B); err != nil {
			return err
		}
	}
	return nil
}

func (v *testValue) DecodeMasked(r io.Reader, mask codec.FieldMask) error {
	if mask.Has(fieldA) {
		if err := binary.Read(r, binary.BigEndian, &v.A); err != nil {
			return err
		}
	}
	if mask.Has(fieldB) {
		if err := binary.Read(r, binary.BigEndian, &v.B); err != nil {
			return err
		}
	}
	return nil
}

func (v *testValue) MergeMasked(other *testValue, mask codec.FieldMask) {
	if mask.Has(fieldA) {
		v.A = other.A
	}
	if mask.Has(fieldB) {
		v.B = other.B
	}
}

type intKeyCodec struct{}

func (intKeyCodec) Encode(k int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k))
	return b
}

func (intKeyCodec) Decode(b []byte) (int, error) {
	return int(binary.BigEndian.Uint64(b)), nil
}

type fixedPartition struct {
	owner    func(int) int
	numRanks int
}

func (p fixedPartition) Owner(k int) int { return p.owner(k) }
func (p fixedPartition) NumRanks() int   { return p.numRanks }

func TestInsertAndAccessLocal(t *testing.T) {
	part := fixedPartition{owner: func(int) int { return 0 }, numRanks: 1}
	transports := comm.NewLocalCluster(1)

	pv, err := parvec.New[int, *testValue](0, "test", part, intKeyCodec{}, func() *testValue { return &testValue{} }, transports[0], nil)
	require.NoError(t, err)
	transports[0].RegisterHandler(pv)

	require.NoError(t, pv.Insert(1, &testValue{A: 7, B: 9}))
	got, err := pv.Access(1)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.A)
	require.Equal(t, int64(9), got.B)
}

func TestGetFetchesMaskedFieldsFromOwner(t *testing.T) {
	part := fixedPartition{owner: func(k int) int {
		if k == 1 {
			return 1
		}
		return 0
	}, numRanks: 2}
	transports := comm.NewLocalCluster(2)

	pv0, err := parvec.New[int, *testValue](0, "test", part, intKeyCodec{}, func() *testValue { return &testValue{} }, transports[0], nil)
	require.NoError(t, err)
	pv1, err := parvec.New[int, *testValue](1, "test", part, intKeyCodec{}, func() *testValue { return &testValue{} }, transports[1], nil)
	require.NoError(t, err)
	transports[0].RegisterHandler(pv0)
	transports[1].RegisterHandler(pv1)

	require.NoError(t, pv1.Insert(1, &testValue{A: 42, B: 99}))

	pv0.GetBegin([]int{1}, fieldA)
	require.NoError(t, pv0.GetEnd(fieldA))

	got, err := pv0.Access(1)
	require.NoError(t, err)
	require.Equal(t, int64(42), got.A)
	require.Zero(t, got.B) // not requested by the mask

	require.Greater(t, pv0.KBytesReceived(), 0.0)
	require.Greater(t, pv1.KBytesSent(), 0.0)
}

func TestAccessBeforeGetIsInvariantViolation(t *testing.T) {
	part := fixedPartition{owner: func(k int) int { return 1 }, numRanks: 2}
	transports := comm.NewLocalCluster(2)
	pv0, err := parvec.New[int, *testValue](0, "test", part, intKeyCodec{}, func() *testValue { return &testValue{} }, transports[0], nil)
	require.NoError(t, err)

	_, err = pv0.Access(5)
	require.ErrorIs(t, err, ddferr.ErrInvariant)
}
