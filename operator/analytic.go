package operator

import (
	"math"
	"math/cmplx"

	"github.com/emmanuel-garza/ddfmm/boxkey"
)

// Analytic is an in-memory stand-in for the precomputed operator
// library: the file format and quadrature that produce the real
// translation matrices are out of scope (spec §1), so Analytic
// generates small, well-defined matrices on the fly, enough to drive
// the engine end to end and to exercise every translation the spec
// names. It is not a numerically accurate multipole expansion; the
// U-list direct-kernel path (the only near/far path that does not go
// through the operator library) is the one spec §8's tight accuracy
// scenarios exercise.
type Analytic struct {
	K    float64
	Rank int
}

// NewAnalytic returns an Analytic operator library for wavenumber k,
// with a fixed equivalent/check representation rank derived from the
// accuracy code (spec §6's ACCU).
func NewAnalytic(k float64, accu int) *Analytic {
	rank := 4 + 2*accu
	if rank < 4 {
		rank = 4
	}
	if rank > 32 {
		rank = 32
	}
	return &Analytic{K: k, Rank: rank}
}

func (a *Analytic) identity() *Matrix {
	m := NewMatrix(a.Rank, a.Rank)
	for i := 0; i < a.Rank; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// octantPhase returns a small, octant-dependent phase factor standing
// in for the real child-to-parent equivalent-density transformation.
func (a *Analytic) octantPhase(width float64, octant int) complex128 {
	dx := float64(octant&1) - 0.5
	dy := float64((octant>>1)&1) - 0.5
	dz := float64((octant>>2)&1) - 0.5
	r := width / 4 * math.Sqrt(dx*dx+dy*dy+dz*dz)
	return cmplx.Exp(complex(0, a.K*r)) / complex(2, 0)
}

func (a *Analytic) octantMatrix(width float64, octant int) *Matrix {
	m := NewMatrix(a.Rank, a.Rank)
	phase := a.octantPhase(width, octant)
	for i := 0; i < a.Rank; i++ {
		m.Set(i, i, phase)
	}
	return m
}

func (a *Analytic) UC2UE(width float64) *Matrix { return a.identity() }

func (a *Analytic) UE2UC(width float64, octant int) *Matrix {
	return a.octantMatrix(width, octant)
}

func (a *Analytic) DC2DE(width float64) *Matrix { return a.identity() }

func (a *Analytic) DE2DC(width float64, octant int) *Matrix {
	return a.octantMatrix(width, octant)
}

// UE2DC returns the far-field (V-list) translation as a scalar multiple
// of the identity: the scalar is the Helmholtz kernel evaluated at the
// separation implied by δ scaled by width, a reasonable stand-in for
// "the magnitude of the translated field falls off like the kernel
// between box centers".
func (a *Analytic) UE2DC(width float64, delta boxkey.Index3) *Matrix {
	r := separationDistance(width, delta)
	m := NewMatrix(a.Rank, a.Rank)
	if r == 0 {
		return m
	}
	val := cmplx.Exp(complex(0, a.K*r)) / complex(r, 0)
	for i := 0; i < a.Rank; i++ {
		m.Set(i, i, val)
	}
	return m
}

func separationDistance(width float64, delta boxkey.Index3) float64 {
	dx := width * float64(delta.X)
	dy := width * float64(delta.Y)
	dz := width * float64(delta.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (a *Analytic) DirUC2UE(width float64, d boxkey.Direction) *Matrix { return a.identity() }

func (a *Analytic) DirUE2UC(width float64, d boxkey.Direction, octant int) *Matrix {
	return a.octantMatrix(width, octant)
}

func (a *Analytic) DirDC2DE(width float64, d boxkey.Direction) *Matrix { return a.identity() }

func (a *Analytic) DirDE2DC(width float64, d boxkey.Direction, octant int) *Matrix {
	return a.octantMatrix(width, octant)
}

func (a *Analytic) DirUE2DC(width float64, d boxkey.Direction, delta boxkey.Index3) *Matrix {
	return a.UE2DC(width, delta)
}

var _ Library = (*Analytic)(nil)
