// Package operator defines the narrow interface the core consumes the
// precomputed translation-operator library through (spec §6). The
// library's on-disk format, and the numerical quadrature that produces
// these matrices, are out of scope (spec §1); ddfmm only depends on the
// lookup shape.
package operator

import "github.com/emmanuel-garza/ddfmm/boxkey"

// Matrix is a small dense complex matrix, row-major, used for the
// uc2ue/ue2uc/dc2de/de2dc/ue2dc translation operators. Sizes are a few
// hundred rows at most (the equivalent/check surface discretization),
// so a hand-rolled dense type with a plain loop MulVec is preferable to
// pulling in a general-purpose complex BLAS surface for this one
// operation; see DESIGN.md.
type Matrix struct {
	Rows, Cols int
	Data       []complex128 // row-major, len == Rows*Cols
}

// NewMatrix allocates a zeroed Rows×Cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// At returns the (i,j) entry.
func (m *Matrix) At(i, j int) complex128 { return m.Data[i*m.Cols+j] }

// Set assigns the (i,j) entry.
func (m *Matrix) Set(i, j int, v complex128) { m.Data[i*m.Cols+j] = v }

// MulVec returns m*x in a newly allocated slice of length m.Rows. x is
// read as if zero-padded (or truncated) to m.Cols entries, so a leaf
// holding fewer points than the operator's rank is accepted.
func (m *Matrix) MulVec(x []complex128) []complex128 {
	dst := make([]complex128, m.Rows)
	for i := 0; i < m.Rows; i++ {
		var sum complex128
		row := m.Data[i*m.Cols : i*m.Cols+m.Cols]
		for j, v := range row {
			if j < len(x) {
				sum += v * x[j]
			}
		}
		dst[i] = sum
	}
	return dst
}

// AddMulVec computes dst += m*x in place, dst must have length m.Rows;
// x is read as in MulVec.
func (m *Matrix) AddMulVec(dst []complex128, x []complex128) {
	for i := 0; i < m.Rows; i++ {
		var sum complex128
		row := m.Data[i*m.Cols : i*m.Cols+m.Cols]
		for j, v := range row {
			if j >= len(x) {
				break
			}
			sum += v * x[j]
		}
		dst[i] += sum
	}
}

// Library is the lookup surface spec §6 names: for a given box width W
// and (for the directional regime) a direction d and/or an integer
// offset δ between source and target box indices, it returns the dense
// translation matrices the low- and high-frequency passes need.
type Library interface {
	// UC2UE returns the check-to-equivalent solve operator for a
	// non-directional box of the given width.
	UC2UE(width float64) *Matrix

	// UE2UC returns the child-to-parent equivalent-to-check operator
	// for the given octant, non-directional.
	UE2UC(width float64, octant int) *Matrix

	// DC2DE returns the downward check-to-equivalent solve operator,
	// non-directional.
	DC2DE(width float64) *Matrix

	// DE2DC returns the parent-to-child equivalent-to-check operator
	// for the given octant, non-directional.
	DE2DC(width float64, octant int) *Matrix

	// UE2DC returns the V-list M2L translation operator for the given
	// width and integer offset δ between source and target box index.
	UE2DC(width float64, delta boxkey.Index3) *Matrix

	// DirUC2UE, DirUE2UC, DirDC2DE, DirDE2DC, DirUE2DC are the
	// directional counterparts used by the high-frequency pass,
	// additionally indexed by direction d.
	DirUC2UE(width float64, d boxkey.Direction) *Matrix
	DirUE2UC(width float64, d boxkey.Direction, octant int) *Matrix
	DirDC2DE(width float64, d boxkey.Direction) *Matrix
	DirDE2DC(width float64, d boxkey.Direction, octant int) *Matrix
	DirUE2DC(width float64, d boxkey.Direction, delta boxkey.Index3) *Matrix
}
