package tree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/comm"
	"github.com/emmanuel-garza/ddfmm/config"
	"github.com/emmanuel-garza/ddfmm/partition"
	"github.com/emmanuel-garza/ddfmm/tree"
)

func singleRankSetup(t *testing.T, cfg config.Config, points [][3]float64) *tree.Tree {
	t.Helper()
	boxPart, err := partition.NewBoxPartition(1, 0, []int32{0})
	require.NoError(t, err)
	transports := comm.NewLocalCluster(1)

	tr, err := tree.SetupTree(cfg, 0, points, boxPart, transports[0], nil)
	require.NoError(t, err)
	return tr
}

func TestSetupTreeTwoLeavesSharedParent(t *testing.T) {
	cfg := config.Default()
	cfg.K = 1
	cfg.Ptsmax = 2
	cfg.Maxlevel = 4
	require.NoError(t, cfg.Verify())

	points := [][3]float64{
		{-0.4, -0.4, -0.4},
		{-0.3, -0.4, -0.4},
		{0.4, 0.4, 0.4},
		{0.3, 0.4, 0.4},
	}
	tr := singleRankSetup(t, cfg, points)

	var leaves int
	for level := int32(0); level <= tr.MaxLevel(); level++ {
		for _, k := range tr.BoxesAtLevel(level) {
			if tr.IsLeafKey(k) {
				leaves++
			}
		}
	}
	require.Equal(t, 2, leaves)
	require.True(t, tr.HasPoints(boxkey.Root))
}

func TestSetupTreeEmptyRegionHasNoUnexpectedBoxes(t *testing.T) {
	cfg := config.Default()
	cfg.K = 1
	cfg.Ptsmax = 50
	cfg.Maxlevel = 2
	require.NoError(t, cfg.Verify())

	points := [][3]float64{{0.1, 0.1, 0.1}}
	tr := singleRankSetup(t, cfg, points)

	require.True(t, tr.Exists(boxkey.Root))
	require.True(t, tr.HasPoints(boxkey.Root))
	require.Equal(t, int32(0), tr.MaxLevel(), "a single point under ptsmax must not create any box below the root")
}

// leafContaining returns the leaf box key whose ExtPos holds pt (exact
// match, since the test constructs points that land in exactly one leaf).
func leafContaining(t *testing.T, tr *tree.Tree, pt [3]float64) boxkey.BoxKey {
	t.Helper()
	for level := int32(0); level <= tr.MaxLevel(); level++ {
		for _, k := range tr.BoxesAtLevel(level) {
			if !tr.IsLeafKey(k) {
				continue
			}
			bd, err := tr.PV.Access(k)
			require.NoError(t, err)
			for _, p := range bd.ExtPos {
				if p == pt {
					return k
				}
			}
		}
	}
	t.Fatalf("no leaf contains point %v", pt)
	return boxkey.BoxKey{}
}

// TestSetupTreeUListCoversNonUniformDepth reproduces the scenario where a
// leaf's same-level neighbor position was subdivided further: p1 sits
// alone in one level-1 octant, while p2 and p3 sit in the diagonally
// opposite octant but far enough apart to force that octant to split
// again at level 2. p3's level-2 leaf still touches p1's level-1 leaf at
// their shared corner; p2's level-2 leaf does not. Before the fix,
// uList(p1's leaf) skipped the subdivided neighbor entirely and dropped
// p3's leaf from U on both sides.
func TestSetupTreeUListCoversNonUniformDepth(t *testing.T) {
	cfg := config.Default()
	cfg.K = 1
	cfg.Ptsmax = 1
	cfg.Maxlevel = 3
	require.NoError(t, cfg.Verify())

	p1 := [3]float64{-0.3, -0.3, -0.3}
	p2 := [3]float64{0.4, 0.4, 0.4}
	p3 := [3]float64{0.1, 0.1, 0.1}
	tr := singleRankSetup(t, cfg, [][3]float64{p1, p2, p3})

	leaf1 := leafContaining(t, tr, p1)
	leaf2 := leafContaining(t, tr, p2)
	leaf3 := leafContaining(t, tr, p3)
	require.Equal(t, int32(1), leaf1.Level, "p1's region should not need to subdivide")
	require.Equal(t, int32(2), leaf2.Level, "p2's octant should have split")
	require.Equal(t, int32(2), leaf3.Level, "p3's octant should have split")

	bd1, err := tr.PV.Access(leaf1)
	require.NoError(t, err)
	require.Contains(t, bd1.U, leaf3, "p1's leaf must see the adjacent finer leaf holding p3")
	require.NotContains(t, bd1.U, leaf2, "p2's leaf is not adjacent to p1's leaf")

	bd3, err := tr.PV.Access(leaf3)
	require.NoError(t, err)
	require.Contains(t, bd3.U, leaf1, "U-list adjacency must be symmetric across depths")

	bd2, err := tr.PV.Access(leaf2)
	require.NoError(t, err)
	require.NotContains(t, bd2.U, leaf1)
}

func TestSetupTreeUListIsSymmetric(t *testing.T) {
	cfg := config.Default()
	cfg.K = 1
	cfg.Ptsmax = 1
	cfg.Maxlevel = 3
	require.NoError(t, cfg.Verify())

	points := [][3]float64{
		{-0.45, -0.45, -0.45},
		{-0.1, -0.1, -0.1},
		{0.3, 0.3, 0.3},
	}
	tr := singleRankSetup(t, cfg, points)

	for level := int32(0); level <= tr.MaxLevel(); level++ {
		for _, k := range tr.BoxesAtLevel(level) {
			if !tr.IsLeafKey(k) {
				continue
			}
			bd, err := tr.PV.Access(k)
			require.NoError(t, err)
			for _, u := range bd.U {
				otherBD, err := tr.PV.Access(u)
				require.NoError(t, err)
				require.Contains(t, otherBD.U, k)
			}
		}
	}
}
