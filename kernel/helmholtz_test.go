package kernel_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emmanuel-garza/ddfmm/ddferr"
	"github.com/emmanuel-garza/ddfmm/kernel"
)

func TestEvalMatchesClosedForm(t *testing.T) {
	h := kernel.Helmholtz{K: 2}
	src := [3]float64{0, 0, 0}
	tgt := [3]float64{3, 4, 0}
	v, err := h.Eval(src, tgt)
	require.NoError(t, err)

	want := cmplx.Exp(complex(0, 2*5)) / complex(5, 0)
	require.InDelta(t, real(want), real(v), 1e-9)
	require.InDelta(t, imag(want), imag(v), 1e-9)
}

func TestEvalSingularReturnsNumericWarning(t *testing.T) {
	h := kernel.Helmholtz{K: 1}
	_, err := h.Eval([3]float64{1, 1, 1}, [3]float64{1, 1, 1})
	require.ErrorIs(t, err, ddferr.ErrNumeric)
}

func TestDirectSumLinearInDensity(t *testing.T) {
	h := kernel.Helmholtz{K: 1}
	src := [][3]float64{{0, 0, 0}, {1, 0, 0}}
	tgt := [][3]float64{{5, 0, 0}}

	den1 := []complex128{1, 1}
	val1 := make([]complex128, 1)
	h.DirectSum(src, den1, tgt, val1)

	den2 := []complex128{2, 2}
	val2 := make([]complex128, 1)
	h.DirectSum(src, den2, tgt, val2)

	require.InDelta(t, real(2*val1[0]), real(val2[0]), 1e-9)
	require.InDelta(t, imag(2*val1[0]), imag(val2[0]), 1e-9)
}

func TestConvolveWithZeroOperatorIsZero(t *testing.T) {
	n := 8
	fft := kernel.NewFFT(n)
	den := make([]complex128, n)
	for i := range den {
		den[i] = complex(math.Sin(float64(i)), 0)
	}
	freq := kernel.ForwardFFT(fft, den)

	opFFT := make([]complex128, n) // all zero
	out := kernel.Convolve(fft, freq, opFFT)
	for _, c := range out {
		require.Equal(t, complex128(0), c)
	}
}

func TestConvolveIsLinearInOperator(t *testing.T) {
	n := 8
	fft := kernel.NewFFT(n)
	den := make([]complex128, n)
	for i := range den {
		den[i] = complex(math.Sin(float64(i)), 0)
	}
	freq := kernel.ForwardFFT(fft, den)

	opFFT := make([]complex128, n)
	for i := range opFFT {
		opFFT[i] = complex(float64(i)+1, -float64(i))
	}

	out1 := kernel.Convolve(fft, freq, opFFT)
	scaled := make([]complex128, n)
	for i, c := range opFFT {
		scaled[i] = c * 3
	}
	out3 := kernel.Convolve(fft, freq, scaled)

	for i := range out1 {
		require.InDelta(t, real(3*out1[i]), real(out3[i]), 1e-6)
		require.InDelta(t, imag(3*out1[i]), imag(out3[i]), 1e-6)
	}
}
