package partition

import (
	"fmt"
	"sort"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/ddferr"
)

// BoxAndDirLevelPartition owns a sorted, weighted cut of the
// (box, direction) keys active at a single high-frequency level, per
// spec §4.2: ownership is rebalanced per level by pair count rather than
// held spatially contiguous, because directional pairs at a level have
// no useful spatial locality to exploit.
type BoxAndDirLevelPartition struct {
	partition    []boxkey.BoxAndDirKey // len == nranks, partition[r] is rank r's first key
	endPartition []boxkey.BoxAndDirKey // len == nranks, endPartition[r] is rank r's last key
}

// BuildBalanced sorts keys and cuts them into nranks contiguous,
// approximately equal-weight ranges. The cumulative-weight binning is
// the same scheme a weighted-without-replacement sampler uses to turn a
// weight vector into selectable buckets: accumulate weights and place
// cut points at multiples of totalWeight/nranks.
func BuildBalanced(keys []boxkey.BoxAndDirKey, weights []uint64, nranks int) (*BoxAndDirLevelPartition, error) {
	if nranks <= 0 {
		return nil, fmt.Errorf("%w: nranks must be positive, got %d", ddferr.ErrConfig, nranks)
	}
	if len(keys) != len(weights) {
		return nil, fmt.Errorf("%w: keys and weights length mismatch (%d vs %d)", ddferr.ErrConfig, len(keys), len(weights))
	}
	if len(keys) == 0 {
		empty := make([]boxkey.BoxAndDirKey, nranks)
		return &BoxAndDirLevelPartition{partition: empty, endPartition: empty}, nil
	}

	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return keys[order[i]].Less(keys[order[j]]) })

	var total uint64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		total = uint64(len(keys))
		weights = make([]uint64, len(keys))
		for i := range weights {
			weights[i] = 1
		}
	}

	partition := make([]boxkey.BoxAndDirKey, nranks)
	endPartition := make([]boxkey.BoxAndDirKey, nranks)

	share := total / uint64(nranks)
	if share == 0 {
		share = 1
	}

	rank := 0
	var cum uint64
	partition[0] = keys[order[0]]
	for _, idx := range order {
		if cum >= share*uint64(rank+1) && rank < nranks-1 {
			rank++
			partition[rank] = keys[idx]
		}
		cum += weights[idx]
		endPartition[rank] = keys[idx]
	}
	for r := rank + 1; r < nranks; r++ {
		partition[r] = endPartition[rank]
		endPartition[r] = endPartition[rank]
	}

	return &BoxAndDirLevelPartition{partition: partition, endPartition: endPartition}, nil
}

// Owner returns the largest rank r such that partition[r] <= k (rank 0
// when no boundary is <= k). endPartition is not consulted: a key that
// lies past a rank's last key, or past every rank's, is still assigned
// to the largest rank whose first key precedes it.
func (bd *BoxAndDirLevelPartition) Owner(k boxkey.BoxAndDirKey) int {
	owner := 0
	for r := 0; r < len(bd.partition); r++ {
		if !k.Less(bd.partition[r]) {
			owner = r
		}
	}
	return owner
}

// NumRanks returns the number of ranks this level's directional pairs
// are partitioned over.
func (bd *BoxAndDirLevelPartition) NumRanks() int { return len(bd.partition) }

// OwnedRange returns the [start, end] (inclusive) boundary keys for rank
// r, as published to every rank after BuildBalanced.
func (bd *BoxAndDirLevelPartition) OwnedRange(r int) (start, end boxkey.BoxAndDirKey) {
	return bd.partition[r], bd.endPartition[r]
}
