package partition

import (
	"fmt"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/ddferr"
)

// BoxPartition assigns each box at or below CellLevel to a rank via a
// dense P×P×P tensor of owners at the cell-level resolution, per spec
// §4.2. Boxes shallower than CellLevel (coarser than the cell grid) are
// owned by rank 0, matching the "root-end" convention spec §4.2 names.
type BoxPartition struct {
	p         int // side length of the cube
	cellLevel int32
	owners    []int32 // flattened p*p*p, row-major X,Y,Z
}

// NewBoxPartition builds a BoxPartition from a flattened P×P×P owner
// tensor (spec §6's geomprtn configuration key) and the CellLevel it was
// computed at.
func NewBoxPartition(p int, cellLevel int32, owners []int32) (*BoxPartition, error) {
	if p <= 0 {
		return nil, fmt.Errorf("%w: box partition side must be positive, got %d", ddferr.ErrConfig, p)
	}
	if len(owners) != p*p*p {
		return nil, fmt.Errorf("%w: box partition tensor has %d entries, want %d", ddferr.ErrConfig, len(owners), p*p*p)
	}
	return &BoxPartition{p: p, cellLevel: cellLevel, owners: owners}, nil
}

// Owner returns the rank owning box k.
func (bp *BoxPartition) Owner(k boxkey.BoxKey) int {
	if k.Level < bp.cellLevel {
		return 0
	}
	scale := int64(1) << uint(k.Level-bp.cellLevel)
	x := int(k.Idx.X / scale)
	y := int(k.Idx.Y / scale)
	z := int(k.Idx.Z / scale)
	x, y, z = clamp(x, bp.p), clamp(y, bp.p), clamp(z, bp.p)
	return int(bp.owners[(x*bp.p+y)*bp.p+z])
}

func clamp(v, p int) int {
	if v < 0 {
		return 0
	}
	if v >= p {
		return p - 1
	}
	return v
}

// Side returns the partition's side length P.
func (bp *BoxPartition) Side() int { return bp.p }

// NumRanks returns one more than the largest owner rank named in the
// tensor, satisfying parvec.Partition's NumRanks contract.
func (bp *BoxPartition) NumRanks() int {
	max := int32(0)
	for _, o := range bp.owners {
		if o > max {
			max = o
		}
	}
	return int(max) + 1
}
