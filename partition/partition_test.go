package partition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emmanuel-garza/ddfmm/boxkey"
)

func TestPointPartitionTotalityAndDisjointness(t *testing.T) {
	pp, err := NewPointPartition([]int64{3, 0, 5, 2})
	require.NoError(t, err)
	require.Equal(t, int64(10), pp.Total())

	seen := map[int]bool{}
	for i := int64(0); i < pp.Total(); i++ {
		r := pp.Owner(i)
		require.GreaterOrEqual(t, r, 0)
		require.Less(t, r, pp.NumRanks())
		lo, hi := pp.Range(r)
		require.True(t, i >= lo && i < hi)
		seen[r] = true
	}
}

func TestBoxPartitionScalesIndexByCellLevel(t *testing.T) {
	owners := []int32{0, 1, 2, 3, 4, 5, 6, 7}
	bp, err := NewBoxPartition(2, 1, owners)
	require.NoError(t, err)

	// At level 1 the box index maps directly onto the 2x2x2 tensor.
	require.Equal(t, int(owners[(1*2+0)*2+1]), bp.Owner(boxkey.BoxKey{Level: 1, Idx: boxkey.Index3{1, 0, 1}}))

	// Below CellLevel, everything is owned by rank 0.
	require.Equal(t, 0, bp.Owner(boxkey.BoxKey{Level: 0, Idx: boxkey.Index3{0, 0, 0}}))

	// Deeper levels scale the index down before indexing the tensor.
	deep := boxkey.BoxKey{Level: 3, Idx: boxkey.Index3{4, 0, 4}} // scale 4 -> (1,0,1)
	require.Equal(t, bp.Owner(boxkey.BoxKey{Level: 1, Idx: boxkey.Index3{1, 0, 1}}), bp.Owner(deep))
}

func TestBoxAndDirLevelPartitionCoversAndBalances(t *testing.T) {
	var keys []boxkey.BoxAndDirKey
	var weights []uint64
	for x := int64(0); x < 4; x++ {
		for y := int64(0); y < 4; y++ {
			keys = append(keys, boxkey.BoxAndDirKey{
				Box: boxkey.BoxKey{Level: 2, Idx: boxkey.Index3{x, y, 0}},
				Dir: boxkey.Direction{0, 0, 0},
			})
			weights = append(weights, 1)
		}
	}

	part, err := BuildBalanced(keys, weights, 4)
	require.NoError(t, err)
	require.Equal(t, 4, part.NumRanks())

	counts := make([]int, 4)
	for _, k := range keys {
		counts[part.Owner(k)]++
	}
	for _, c := range counts {
		require.Greater(t, c, 0)
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	require.Equal(t, len(keys), total)
}

func TestBuildBalancedRejectsMismatchedLengths(t *testing.T) {
	_, err := BuildBalanced([]boxkey.BoxAndDirKey{{}}, nil, 2)
	require.Error(t, err)
}
