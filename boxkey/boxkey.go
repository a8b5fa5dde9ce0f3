// Package boxkey implements the octree key algebra of spec §3: box keys,
// parent/child/neighbor relations, box geometry, and the directional
// wedge algebra the high-frequency pass indexes by.
package boxkey

import "fmt"

// Index3 is a 3D integer tuple, used both as an octree box index and
// (reusing the same type, per spec §3) as a directional wedge index.
type Index3 struct {
	X, Y, Z int64
}

// Add returns a+b component-wise.
func (a Index3) Add(b Index3) Index3 {
	return Index3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

// Scale returns a scaled by s component-wise.
func (a Index3) Scale(s int64) Index3 {
	return Index3{a.X * s, a.Y * s, a.Z * s}
}

// FloorDiv2 returns a with each component floor-divided by 2.
func (a Index3) FloorDiv2() Index3 {
	return Index3{floorDiv(a.X, 2), floorDiv(a.Y, 2), floorDiv(a.Z, 2)}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// bits maps an octant number (0..7) to the three low bits used to build
// a child index from a parent index, per spec §3.
func bits(octant int) Index3 {
	return Index3{
		X: int64(octant & 1),
		Y: int64((octant >> 1) & 1),
		Z: int64((octant >> 2) & 1),
	}
}

// Direction is the 3D wedge index on the unit sphere used by the
// directional (high-frequency) regime. It reuses Index3's representation
// per spec §3.
type Direction = Index3

// BoxKey identifies an octree box by level and index.
type BoxKey struct {
	Level int32
	Idx   Index3
}

// Root is the BoxKey of the whole domain.
var Root = BoxKey{Level: 0, Idx: Index3{0, 0, 0}}

// String renders a BoxKey for logs and error messages.
func (k BoxKey) String() string {
	return fmt.Sprintf("(%d;%d,%d,%d)", k.Level, k.Idx.X, k.Idx.Y, k.Idx.Z)
}

// Less gives BoxKey a total order: by level, then lexicographically by
// index. Used by BoxAndDirKey's ordering and by deterministic iteration
// over partition boundaries.
func (k BoxKey) Less(o BoxKey) bool {
	if k.Level != o.Level {
		return k.Level < o.Level
	}
	if k.Idx.X != o.Idx.X {
		return k.Idx.X < o.Idx.X
	}
	if k.Idx.Y != o.Idx.Y {
		return k.Idx.Y < o.Idx.Y
	}
	return k.Idx.Z < o.Idx.Z
}

// Child returns the child of k at the given octant (0..7).
func Child(k BoxKey, octant int) BoxKey {
	return BoxKey{
		Level: k.Level + 1,
		Idx:   k.Idx.Scale(2).Add(bits(octant)),
	}
}

// Children returns all 8 children of k.
func Children(k BoxKey) [8]BoxKey {
	var out [8]BoxKey
	for o := 0; o < 8; o++ {
		out[o] = Child(k, o)
	}
	return out
}

// Parent returns the parent of k. Calling Parent on the root is
// undefined; callers must check k.Level > 0 first.
func Parent(k BoxKey) BoxKey {
	return BoxKey{
		Level: k.Level - 1,
		Idx:   k.Idx.FloorDiv2(),
	}
}

// Width returns the width of a box at the given level, for a domain of
// total width k (spec §3: W(l) = k / 2^l).
func Width(level int32, k float64) float64 {
	return k / pow2(level)
}

// Center returns the center of box (level, idx) given the domain center
// ctr and total domain width k.
func Center(key BoxKey, ctr [3]float64, k float64) [3]float64 {
	w := Width(key.Level, k)
	half := k / 2
	return [3]float64{
		ctr[0] - half + w*(float64(key.Idx.X)+0.5),
		ctr[1] - half + w*(float64(key.Idx.Y)+0.5),
		ctr[2] - half + w*(float64(key.Idx.Z)+0.5),
	}
}

func pow2(level int32) float64 {
	if level >= 0 {
		v := 1.0
		for i := int32(0); i < level; i++ {
			v *= 2
		}
		return v
	}
	v := 1.0
	for i := int32(0); i < -level; i++ {
		v /= 2
	}
	return v
}

// Adjacent reports whether two boxes at the SAME level share at least
// one point of their closures: component-wise index distance <= 1
// (spec §4.3).
func Adjacent(a, b BoxKey) bool {
	if a.Level != b.Level {
		return false
	}
	return abs64(a.Idx.X-b.Idx.X) <= 1 &&
		abs64(a.Idx.Y-b.Idx.Y) <= 1 &&
		abs64(a.Idx.Z-b.Idx.Z) <= 1
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// AdjacentAnyLevel is Adjacent generalized to boxes at different
// levels (the tree is not uniform-depth, so U/W/X-list membership
// routinely compares a box against a finer or coarser one): it scales
// the coarser box's index up to the finer box's resolution and checks
// whether the finer box's single cell falls within one unit of the
// resulting range on every axis, i.e. their closures touch or
// overlap. Same-level boxes fall back to Adjacent.
func AdjacentAnyLevel(a, b BoxKey) bool {
	if a.Level == b.Level {
		return Adjacent(a, b)
	}
	fine, coarse := a, b
	if a.Level < b.Level {
		fine, coarse = b, a
	}
	scale := int64(1) << uint(fine.Level-coarse.Level)
	lo := coarse.Idx.Scale(scale)
	return axisTouches(fine.Idx.X, lo.X, lo.X+scale-1) &&
		axisTouches(fine.Idx.Y, lo.Y, lo.Y+scale-1) &&
		axisTouches(fine.Idx.Z, lo.Z, lo.Z+scale-1)
}

func axisTouches(p, lo, hi int64) bool {
	return p >= lo-1 && p <= hi+1
}

// Neighbors returns the (up to 26) same-level boxes adjacent to k,
// excluding k itself. Indices that would be negative are omitted; the
// caller is responsible for checking existence in the tree.
func Neighbors(k BoxKey) []BoxKey {
	out := make([]BoxKey, 0, 26)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				idx := Index3{k.Idx.X + dx, k.Idx.Y + dy, k.Idx.Z + dz}
				if idx.X < 0 || idx.Y < 0 || idx.Z < 0 {
					continue
				}
				out = append(out, BoxKey{Level: k.Level, Idx: idx})
			}
		}
	}
	return out
}

// BoxAndDirKey identifies a (box, direction) pair in the directional
// store of spec §3, totally ordered lexicographically by box then
// direction.
type BoxAndDirKey struct {
	Box BoxKey
	Dir Direction
}

// Less gives BoxAndDirKey the total order BoxAndDirLevelPartition relies
// on to cut a sorted key list into contiguous ranges.
func (k BoxAndDirKey) Less(o BoxAndDirKey) bool {
	if k.Box != o.Box {
		return k.Box.Less(o.Box)
	}
	if k.Dir.X != o.Dir.X {
		return k.Dir.X < o.Dir.X
	}
	if k.Dir.Y != o.Dir.Y {
		return k.Dir.Y < o.Dir.Y
	}
	return k.Dir.Z < o.Dir.Z
}

func (k BoxAndDirKey) String() string {
	return fmt.Sprintf("%s@(%d,%d,%d)", k.Box, k.Dir.X, k.Dir.Y, k.Dir.Z)
}
