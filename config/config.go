// Package config holds the enumerated configuration surface of spec §6:
// the options that select the wavenumber, domain, subdivision limits,
// accuracy, and kernel the engine runs with.
package config

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/emmanuel-garza/ddfmm/ddferr"
)

// KernelType selects the oscillatory kernel. Only HELM is implemented;
// EXPR is reserved by spec §6 for a future user-supplied kernel.
type KernelType int

const (
	KernelHelmholtz KernelType = iota
	KernelExpr
)

func (k KernelType) String() string {
	switch k {
	case KernelHelmholtz:
		return "HELM"
	case KernelExpr:
		return "EXPR"
	default:
		return "UNKNOWN"
	}
}

// Config is the flat configuration struct, one field per spec §6 key.
type Config struct {
	// K is the wavenumber; it defines box widths and UnitLevel.
	K float64

	// Ctr is the domain center (3-vector).
	Ctr [3]float64

	// Ptsmax is the max points per leaf before subdivision.
	Ptsmax int

	// Maxlevel is a hard cap on subdivision depth.
	Maxlevel int

	// Accu is the accuracy code selecting a column of the precomputed
	// operator library.
	Accu int

	// Npq is the quadrature order for directional expansions.
	Npq int

	// Geomprtn is the side length P of the P×P×P tensor naming the
	// owning rank of each cell-level cube.
	Geomprtn int

	// Kernel selects the oscillatory kernel.
	Kernel KernelType
}

// Default returns a small, low-frequency-only configuration suitable for
// unit tests (K=1 puts UnitLevel at the root).
func Default() Config {
	return Config{
		K:        1,
		Ctr:      [3]float64{0, 0, 0},
		Ptsmax:   50,
		Maxlevel: 10,
		Accu:     3,
		Npq:      6,
		Geomprtn: 1,
		Kernel:   KernelHelmholtz,
	}
}

// UnitLevel returns round(log2(K)): the level at which box width W = 1,
// the boundary between the high- and low-frequency regimes (spec §3).
func (c Config) UnitLevel() int {
	if c.K <= 0 {
		return 0
	}
	return int(math.Round(math.Log2(c.K)))
}

// CellLevel returns round(log2(P)): the level at which initial
// geometric ownership is defined (spec §3).
func (c Config) CellLevel() int {
	if c.Geomprtn <= 0 {
		return 0
	}
	return int(math.Round(math.Log2(float64(c.Geomprtn))))
}

// Verify enforces the ConfigError conditions of spec §7.1. It is the
// only place in ddfmm that rejects a Config; every other component
// trusts Verify has already run.
func (c Config) Verify() error {
	if c.K < 1 {
		return fmt.Errorf("%w: K must be >= 1, got %g", ddferr.ErrConfig, c.K)
	}
	if c.Ptsmax <= 0 {
		return fmt.Errorf("%w: Ptsmax must be > 0, got %d", ddferr.ErrConfig, c.Ptsmax)
	}
	if c.Maxlevel <= 0 {
		return fmt.Errorf("%w: Maxlevel must be > 0, got %d", ddferr.ErrConfig, c.Maxlevel)
	}
	if c.Accu < 0 {
		return fmt.Errorf("%w: Accu must be >= 0, got %d", ddferr.ErrConfig, c.Accu)
	}
	if c.Npq <= 0 {
		return fmt.Errorf("%w: Npq must be > 0, got %d", ddferr.ErrConfig, c.Npq)
	}
	if c.Geomprtn <= 0 || !isPowerOfTwo(c.Geomprtn) {
		return fmt.Errorf("%w: Geomprtn must be a positive power of two, got %d", ddferr.ErrConfig, c.Geomprtn)
	}
	if c.Kernel != KernelHelmholtz && c.Kernel != KernelExpr {
		return fmt.Errorf("%w: unknown kernel type %d", ddferr.ErrConfig, c.Kernel)
	}
	if c.CellLevel() > c.Maxlevel {
		return fmt.Errorf("%w: CellLevel %d exceeds Maxlevel %d", ddferr.ErrConfig, c.CellLevel(), c.Maxlevel)
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}
