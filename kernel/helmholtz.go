// Package kernel implements the dense numeric primitives spec §1 lists
// as out of scope "math primitives": the 3D Helmholtz Green's function
// direct sum (a plain double loop), and an FFT-based convolution helper
// built on gonum's complex FFT. lowfreq's V-list M2L applies the dense
// UE2DC operator and does not call Convolve or ForwardFFT.
package kernel

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/emmanuel-garza/ddfmm/ddferr"
)

// Helmholtz is the 3D oscillatory Green's function exp(i·K·r)/r for
// wavenumber K (spec §1).
type Helmholtz struct {
	K float64
}

// Eval returns the kernel value between src and tgt. At coincident
// points (r == 0) the kernel is singular; Eval reports a NumericWarning
// and returns 0 so the caller can skip the contribution and continue
// (spec §7 kind 5).
func (h Helmholtz) Eval(src, tgt [3]float64) (complex128, error) {
	dx := tgt[0] - src[0]
	dy := tgt[1] - src[1]
	dz := tgt[2] - src[2]
	r := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if r == 0 {
		return 0, ddferr.ErrNumeric
	}
	return cmplx.Exp(complex(0, h.K*r)) / complex(r, 0), nil
}

// DirectSum evaluates v(x_i) = Σ_j K(x_i, y_j)·d_j for every target
// against every source (spec §1's defining sum), accumulating into
// val. Singular source/target pairs are skipped; the caller decides
// whether a returned count of skipped pairs is worth logging.
func (h Helmholtz) DirectSum(srcPos [][3]float64, srcDen []complex128, tgtPos [][3]float64, val []complex128) (skipped int) {
	for i, tp := range tgtPos {
		var sum complex128
		for j, sp := range srcPos {
			k, err := h.Eval(sp, tp)
			if err != nil {
				skipped++
				continue
			}
			sum += k * srcDen[j]
		}
		val[i] += sum
	}
	return skipped
}

// Convolve applies a translation operator in frequency domain: it
// multiplies den, which must already be frequency domain (see
// ForwardFFT), pointwise by the frequency-domain operator opFFT and
// inverse-FFTs the product with gonum's complex-to-complex FFT.
func Convolve(fft *fourier.CmplxFFT, den []complex128, opFFT []complex128) []complex128 {
	prod := make([]complex128, len(den))
	for i := range prod {
		prod[i] = den[i] * opFFT[i]
	}
	return fft.Sequence(nil, prod)
}

// ForwardFFT computes the memoized `upeqnden_fft` for a density vector.
func ForwardFFT(fft *fourier.CmplxFFT, den []complex128) []complex128 {
	return fft.Coefficients(nil, den)
}

// NewFFT returns an FFT plan sized for n samples, reused across boxes
// of the same width as spec §6 ("FFT plans and workspace tensors are
// per-process, reused across boxes of the same width") requires.
func NewFFT(n int) *fourier.CmplxFFT {
	return fourier.NewCmplxFFT(n)
}
