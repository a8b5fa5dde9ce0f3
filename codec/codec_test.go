package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFloat64RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFloat64(&buf, 3.5))
	v, err := ReadFloat64(&buf)
	require.NoError(t, err)
	require.Equal(t, 3.5, v)
}

func TestComplexSliceRoundTrip(t *testing.T) {
	in := []complex128{complex(1, 2), complex(-3, 4.5)}
	var buf bytes.Buffer
	require.NoError(t, WriteComplexSlice(&buf, in))
	out, err := ReadComplexSlice(&buf)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestInt64SliceRoundTrip(t *testing.T) {
	in := []int64{1, 2, 3, -4}
	var buf bytes.Buffer
	require.NoError(t, WriteInt64Slice(&buf, in))
	out, err := ReadInt64Slice(&buf)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestFieldMaskHas(t *testing.T) {
	const (
		fieldA FieldMask = 1 << iota
		fieldB
	)
	m := fieldA | fieldB
	require.True(t, m.Has(fieldA))
	require.True(t, m.Has(fieldA|fieldB))
	require.False(t, FieldMask(0).Has(fieldA))
}
