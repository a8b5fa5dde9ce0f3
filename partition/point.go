// Package partition implements the three ownership schemes of spec §4.2:
// a monotonic point partition, a dense cube partition over boxes, and a
// sorted weighted partition over (box, direction) pairs.
package partition

import (
	"fmt"
	"sort"

	"github.com/emmanuel-garza/ddfmm/ddferr"
)

// PointPartition assigns each global point index to the rank owning the
// monotonic range containing it: owner(i) = j iff off[j] <= i < off[j+1].
type PointPartition struct {
	off []int64 // len(off) == nranks+1, off[0] == 0, strictly nondecreasing
}

// NewPointPartition builds a PointPartition from per-rank counts.
func NewPointPartition(counts []int64) (*PointPartition, error) {
	off := make([]int64, len(counts)+1)
	for i, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("%w: negative point count for rank %d", ddferr.ErrConfig, i)
		}
		off[i+1] = off[i] + c
	}
	return &PointPartition{off: off}, nil
}

// Owner returns the rank owning global point index i.
func (p *PointPartition) Owner(i int64) int {
	// largest j such that off[j] <= i
	j := sort.Search(len(p.off), func(j int) bool { return p.off[j] > i }) - 1
	if j < 0 {
		j = 0
	}
	if j >= len(p.off)-1 {
		j = len(p.off) - 2
	}
	return j
}

// NumRanks returns the number of ranks partitioned over.
func (p *PointPartition) NumRanks() int { return len(p.off) - 1 }

// Range returns the [lo, hi) index range owned by rank r.
func (p *PointPartition) Range(r int) (lo, hi int64) {
	return p.off[r], p.off[r+1]
}

// Total returns the total number of points partitioned.
func (p *PointPartition) Total() int64 {
	return p.off[len(p.off)-1]
}
