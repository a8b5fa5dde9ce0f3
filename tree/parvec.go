package tree

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/comm"
	"github.com/emmanuel-garza/ddfmm/parvec"
	"github.com/emmanuel-garza/ddfmm/partition"
)

// parvecBoxes is the concrete instantiation of C1 (ParVec) for the
// tree store: keys are box keys, values are *BoxData.
type parvecBoxes struct {
	*parvec.ParVec[boxkey.BoxKey, *BoxData]
	partition *partition.BoxPartition
}

func newParVecBoxes(rank int, boxPart *partition.BoxPartition, transport comm.Transport, reg prometheus.Registerer) (*parvecBoxes, error) {
	pv, err := parvec.New[boxkey.BoxKey, *BoxData](rank, "tree", boxPart, BoxKeyCodec{}, NewBoxData, transport, reg)
	if err != nil {
		return nil, err
	}
	return &parvecBoxes{ParVec: pv, partition: boxPart}, nil
}
