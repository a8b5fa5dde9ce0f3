package boxkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParentChildRoundTrip(t *testing.T) {
	parent := BoxKey{Level: 3, Idx: Index3{5, 2, 7}}
	for o := 0; o < 8; o++ {
		child := Child(parent, o)
		require.Equal(t, parent, Parent(child), "octant %d", o)
	}
}

func TestChildrenPartitionExactlyOnce(t *testing.T) {
	parent := BoxKey{Level: 1, Idx: Index3{0, 0, 0}}
	seen := map[Index3]bool{}
	for o := 0; o < 8; o++ {
		c := Child(parent, o)
		require.False(t, seen[c.Idx], "octant %d produced a duplicate index", o)
		seen[c.Idx] = true
	}
	require.Len(t, seen, 8)
}

func TestWidthHalvesPerLevel(t *testing.T) {
	require.InEpsilon(t, 16.0, Width(0, 16), 1e-12)
	require.InEpsilon(t, 8.0, Width(1, 16), 1e-12)
	require.InEpsilon(t, 1.0, Width(4, 16), 1e-12)
}

func TestAdjacentIsSymmetricAndRejectsFarAndCrossLevel(t *testing.T) {
	a := BoxKey{Level: 2, Idx: Index3{3, 3, 3}}
	b := BoxKey{Level: 2, Idx: Index3{4, 3, 3}}
	require.True(t, Adjacent(a, b))
	require.True(t, Adjacent(b, a))

	far := BoxKey{Level: 2, Idx: Index3{10, 3, 3}}
	require.False(t, Adjacent(a, far))

	diffLevel := BoxKey{Level: 3, Idx: Index3{3, 3, 3}}
	require.False(t, Adjacent(a, diffLevel))
}

func TestDirectionParentChildRoundTrip(t *testing.T) {
	d := Direction{X: 3, Y: 1, Z: 6}
	for o := 0; o < 8; o++ {
		child := ChildDir(d)[o]
		require.Equal(t, d, ParentDir(child))
	}
}

func TestChildDirPartitionsOnce(t *testing.T) {
	d := Direction{X: 2, Y: 0, Z: 5}
	seen := map[Direction]bool{}
	for _, c := range ChildDir(d) {
		require.False(t, seen[c])
		seen[c] = true
	}
	require.Len(t, seen, 8)
}

func TestDir2WidthGrowsWithRefinement(t *testing.T) {
	root := Direction{0, 0, 0}
	require.Equal(t, 1.0, Dir2Width(root))
	child := ChildDir(Direction{1, 1, 1})[0]
	require.GreaterOrEqual(t, Dir2Width(child), Dir2Width(Direction{1, 1, 1}))
}

func TestBoxAndDirKeyOrdering(t *testing.T) {
	a := BoxAndDirKey{Box: BoxKey{Level: 1, Idx: Index3{0, 0, 0}}, Dir: Direction{0, 0, 0}}
	b := BoxAndDirKey{Box: BoxKey{Level: 1, Idx: Index3{0, 0, 0}}, Dir: Direction{1, 0, 0}}
	c := BoxAndDirKey{Box: BoxKey{Level: 1, Idx: Index3{1, 0, 0}}, Dir: Direction{0, 0, 0}}
	require.True(t, a.Less(b))
	require.True(t, b.Less(c))
	require.False(t, c.Less(a))
}
