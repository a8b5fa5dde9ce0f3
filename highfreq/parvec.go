package highfreq

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/comm"
	"github.com/emmanuel-garza/ddfmm/parvec"
	"github.com/emmanuel-garza/ddfmm/partition"
)

// LevelStore is C1 instantiated for a single level's directional data:
// ParVec[BoxAndDirKey, *BoxAndDirData], partitioned by
// BoxAndDirLevelPartition rather than by the box partition, matching
// spec §4.2's rationale that high-freq ownership should balance by
// pair count rather than by spatial cell.
type LevelStore struct {
	*parvec.ParVec[boxkey.BoxAndDirKey, *BoxAndDirData]
	Partition *partition.BoxAndDirLevelPartition
}

// NewLevelStore builds the directional store for one level, given the
// full set of (box,dir) keys that exist at that level (every rank
// computes the same set from the shared tree skeleton, then
// BuildBalanced cuts it into contiguous ranges).
func NewLevelStore(rank int, level int32, keys []boxkey.BoxAndDirKey, weights []uint64, nranks int, transport comm.Transport, reg prometheus.Registerer) (*LevelStore, error) {
	part, err := partition.BuildBalanced(keys, weights, nranks)
	if err != nil {
		return nil, err
	}
	storeName := fmt.Sprintf("hf:%d", level)
	pv, err := parvec.New[boxkey.BoxAndDirKey, *BoxAndDirData](rank, storeName, part, BoxAndDirKeyCodec{}, NewBoxAndDirData, transport, reg)
	if err != nil {
		return nil, err
	}
	return &LevelStore{ParVec: pv, Partition: part}, nil
}
