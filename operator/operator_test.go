package operator_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/operator"
	"github.com/emmanuel-garza/ddfmm/operator/operatormock"
)

func TestMatrixMulVec(t *testing.T) {
	m := operator.NewMatrix(2, 2)
	m.Set(0, 0, 1)
	m.Set(0, 1, 2)
	m.Set(1, 0, 3)
	m.Set(1, 1, 4)

	out := m.MulVec([]complex128{1, 1})
	require.Equal(t, complex128(3), out[0])
	require.Equal(t, complex128(7), out[1])
}

func TestMatrixAddMulVec(t *testing.T) {
	m := operator.NewMatrix(2, 2)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)

	dst := []complex128{10, 20}
	m.AddMulVec(dst, []complex128{1, 2})
	require.Equal(t, complex128(11), dst[0])
	require.Equal(t, complex128(22), dst[1])
}

func TestAnalyticImplementsLibrary(t *testing.T) {
	lib := operator.NewAnalytic(4, 3)
	uc2ue := lib.UC2UE(1.0)
	require.Equal(t, lib.Rank, uc2ue.Rows)
	require.Equal(t, lib.Rank, uc2ue.Cols)

	ue2dc := lib.UE2DC(1.0, boxkey.Index3{X: 2, Y: 0, Z: 0})
	require.NotEqual(t, complex128(0), ue2dc.At(0, 0))
}

func TestMockLibrarySatisfiesInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := operatormock.NewMockLibrary(ctrl)

	want := operator.NewMatrix(1, 1)
	mock.EXPECT().UC2UE(gomock.Any()).Return(want)

	got := mock.UC2UE(2.0)
	require.Same(t, want, got)
}
