package tree

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/comm"
	"github.com/emmanuel-garza/ddfmm/config"
	"github.com/emmanuel-garza/ddfmm/ddferr"
	"github.com/emmanuel-garza/ddfmm/partition"
	"github.com/emmanuel-garza/ddfmm/set"
)

// BoxKeyCodec is the parvec.KeyCodec for boxkey.BoxKey, used by every
// ParVec keyed by box.
type BoxKeyCodec struct{}

func (BoxKeyCodec) Encode(k boxkey.BoxKey) []byte {
	b := make([]byte, 4+24)
	putInt32(b[0:4], k.Level)
	putInt64(b[4:12], k.Idx.X)
	putInt64(b[12:20], k.Idx.Y)
	putInt64(b[20:28], k.Idx.Z)
	return b
}

func (BoxKeyCodec) Decode(b []byte) (boxkey.BoxKey, error) {
	if len(b) != 28 {
		return boxkey.BoxKey{}, fmt.Errorf("%w: malformed box key encoding", ddferr.ErrProtocol)
	}
	return boxkey.BoxKey{
		Level: getInt32(b[0:4]),
		Idx: boxkey.Index3{
			X: getInt64(b[4:12]),
			Y: getInt64(b[12:20]),
			Z: getInt64(b[20:28]),
		},
	}, nil
}

func putInt32(b []byte, v int32) {
	u := uint32(v)
	b[0], b[1], b[2], b[3] = byte(u>>24), byte(u>>16), byte(u>>8), byte(u)
}
func getInt32(b []byte) int32 {
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}
func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(u >> (8 * i))
	}
}
func getInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u = u<<8 | uint64(b[i])
	}
	return int64(u)
}

// Tree is the octree produced by SetupTree: a ParVec over the boxes
// this rank owns (C1, reused rather than a bespoke map), plus a
// read-only, fully replicated box-existence skeleton every rank
// computes identically from the shared geometric input (spec §5: "the
// point set ... are read-only after setup; safe to share by
// reference"). Per-box numeric state (upeqnden, extval, ...) lives
// only in the owning rank's ParVec entry; the skeleton only records
// which boxes exist and whether they are leaves, enough to compute
// U/V/W/X without a round trip.
type Tree struct {
	Config config.Config
	Rank   int
	PV     *ParVecBoxes

	skeleton map[boxkey.BoxKey]*skelNode
}

type skelNode struct {
	tag      Tag
	children [8]bool
}

// ParVecBoxes is the ParVec[BoxKey, *BoxData] alias C1 specifies the
// tree store as.
type ParVecBoxes = parvecBoxes

// SetupTree builds the tree per spec §4.3. points is the full global
// input (read-only, replicated — see spec §5); boxPart is the box
// partition from C3. Only boxes owned by rank (per boxPart) get a
// populated ParVec entry; every rank computes the same skeleton, so
// U/V/W/X/far-list computation below never needs a get. Point
// ownership follows box ownership: a point's densities and values live
// in the BoxData of the leaf holding it, and C3's PointPartition plays
// no part in box construction. reg, if non-nil, is where the tree
// store's traffic counters are registered (see engine.New); passing
// nil still tracks traffic internally, just without a Prometheus
// export.
func SetupTree(cfg config.Config, rank int, points [][3]float64, boxPart *partition.BoxPartition, transport comm.Transport, reg prometheus.Registerer) (*Tree, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	pv, err := newParVecBoxes(rank, boxPart, transport, reg)
	if err != nil {
		return nil, err
	}

	t := &Tree{Config: cfg, Rank: rank, PV: pv, skeleton: map[boxkey.BoxKey]*skelNode{}}

	cellLevel := int32(cfg.CellLevel())
	maxLevel := int32(cfg.Maxlevel)

	cellBoxes := map[boxkey.BoxKey][]int64{}
	for i, p := range points {
		k := pointCellBox(cfg, p, cellLevel)
		cellBoxes[k] = append(cellBoxes[k], int64(i))
	}

	type queued struct {
		key  boxkey.BoxKey
		pts  []int64
	}
	queue := make([]queued, 0, len(cellBoxes))
	for k, pts := range cellBoxes {
		queue = append(queue, queued{key: k, pts: pts})
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].key.Less(queue[j].key) })

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		leaf := len(cur.pts) <= cfg.Ptsmax || cur.key.Level >= maxLevel
		node := &skelNode{}
		if leaf {
			node.tag |= IsLeaf
		}
		if len(cur.pts) > 0 {
			node.tag |= HasPoints
		}
		t.skeleton[cur.key] = node

		if boxPart.Owner(cur.key) == rank {
			bd := NewBoxData()
			bd.Tag = node.tag
			if leaf {
				bd.PtIdx = cur.pts
				bd.ExtPos = make([][3]float64, len(cur.pts))
				for i, idx := range cur.pts {
					bd.ExtPos[i] = points[idx]
				}
				bd.ExtDen = make([]complex128, len(cur.pts))
				bd.ExtVal = make([]complex128, len(cur.pts))
			}
			if err := pv.Insert(cur.key, bd); err != nil {
				return nil, err
			}
		}

		if leaf {
			continue
		}

		children := boxkey.Children(cur.key)
		byChild := map[int][]int64{}
		for _, idx := range cur.pts {
			o := octantOf(cfg, points[idx], cur.key)
			byChild[o] = append(byChild[o], idx)
		}
		parentSkel := t.skeleton[cur.key]
		for o, child := range children {
			pts := byChild[o]
			if len(pts) == 0 && cur.key.Level+1 > cellLevel {
				continue // an empty child box need not exist (spec §8 scenario 6: empty regions produce no NaNs, no boxes).
			}
			parentSkel.children[o] = true
			queue = append(queue, queued{key: child, pts: pts})
		}
	}

	t.markHasPointsUpward()
	if err := t.computeLists(); err != nil {
		return nil, err
	}
	return t, nil
}

// pointCellBox returns the box at cellLevel containing p.
func pointCellBox(cfg config.Config, p [3]float64, cellLevel int32) boxkey.BoxKey {
	w := boxkey.Width(cellLevel, cfg.K)
	half := cfg.K / 2
	idx := boxkey.Index3{
		X: int64((p[0] - cfg.Ctr[0] + half) / w),
		Y: int64((p[1] - cfg.Ctr[1] + half) / w),
		Z: int64((p[2] - cfg.Ctr[2] + half) / w),
	}
	return boxkey.BoxKey{Level: cellLevel, Idx: idx}
}

// octantOf returns which of box's 8 children contains p.
func octantOf(cfg config.Config, p [3]float64, box boxkey.BoxKey) int {
	c := boxkey.Center(box, cfg.Ctr, cfg.K)
	o := 0
	if p[0] >= c[0] {
		o |= 1
	}
	if p[1] >= c[1] {
		o |= 2
	}
	if p[2] >= c[2] {
		o |= 4
	}
	return o
}

func (t *Tree) markHasPointsUpward() {
	levels := map[int32][]boxkey.BoxKey{}
	for k := range t.skeleton {
		levels[k.Level] = append(levels[k.Level], k)
	}
	maxL := int32(0)
	for l := range levels {
		if l > maxL {
			maxL = l
		}
	}
	for l := maxL; l > 0; l-- {
		for _, k := range levels[l] {
			if t.skeleton[k].tag&HasPoints == 0 {
				continue
			}
			p := boxkey.Parent(k)
			if node, ok := t.skeleton[p]; ok {
				node.tag |= HasPoints
			}
		}
	}
}

// existsLeaf reports whether k is a known, leaf box in the skeleton.
func (t *Tree) existsLeaf(k boxkey.BoxKey) bool {
	n, ok := t.skeleton[k]
	return ok && n.tag&IsLeaf != 0
}

func (t *Tree) exists(k boxkey.BoxKey) bool {
	_, ok := t.skeleton[k]
	return ok
}

// computeLists fills U/V/W/X (and, in the directional regime, far
// lists) for every box this rank owns (spec §4.3 step 4).
func (t *Tree) computeLists() error {
	for k, node := range t.skeleton {
		if t.PV.partition.Owner(k) != t.Rank {
			continue
		}
		bd, err := t.PV.Access(k)
		if err != nil {
			return err
		}
		if node.tag&IsLeaf != 0 {
			bd.U = t.uList(k)
		}
		if k.Level > 0 {
			bd.V = t.vList(k)
			bd.W = t.wList(k)
			bd.X = t.xList(k)
		}
		if boxkey.Width(k.Level, t.Config.K) > 1 {
			bd.FarLists = t.farLists(k)
			bd.IncDirSet = set.Set[boxkey.Direction]{}
			bd.OutDirSet = set.Set[boxkey.Direction]{}
			for d := range bd.FarLists {
				bd.IncDirSet.Add(d)
				bd.OutDirSet.Add(boxkey.Direction{X: -d.X, Y: -d.Y, Z: -d.Z})
			}
		}
		if err := t.PV.Insert(k, bd); err != nil {
			return err
		}
	}
	return nil
}

// uList: leaves adjacent to k, at k's own level or finer, plus the
// ancestor leaf standing in for a same-level slot the tree never
// subdivided into (spec §4.3). The tree is not uniform-depth: a
// same-level neighbor position n may (a) be exactly a leaf, (b) have
// been subdivided further, in which case only its descendant leaves
// that are themselves adjacent to k belong in U, or (c) not exist at
// all because that region of space stayed coarser than k, in which
// case the leaf actually covering n's position is k's true neighbor
// and must be walked up to.
func (t *Tree) uList(k boxkey.BoxKey) []boxkey.BoxKey {
	var out []boxkey.BoxKey
	for _, n := range boxkey.Neighbors(k) {
		switch {
		case t.existsLeaf(n):
			out = append(out, n)
		case t.exists(n):
			t.collectAdjacentLeaves(k, n, &out)
		default:
			if anc, ok := t.leafAncestor(n); ok && anc != k {
				out = append(out, anc)
			}
		}
	}
	return out
}

// leafAncestor walks up from k until it finds a known leaf box,
// returning false if k falls outside the skeleton entirely (e.g. off
// the domain). Used when a same-level neighbor slot was never created
// because the tree stayed coarser there.
func (t *Tree) leafAncestor(k boxkey.BoxKey) (boxkey.BoxKey, bool) {
	for k.Level >= 0 {
		if n, ok := t.skeleton[k]; ok {
			if n.tag&IsLeaf != 0 {
				return k, true
			}
			return boxkey.BoxKey{}, false
		}
		if k.Level == 0 {
			return boxkey.BoxKey{}, false
		}
		k = boxkey.Parent(k)
	}
	return boxkey.BoxKey{}, false
}

// collectAdjacentLeaves descends from a known, subdivided box, adding
// every descendant leaf that is adjacent to target.
func (t *Tree) collectAdjacentLeaves(target, node boxkey.BoxKey, out *[]boxkey.BoxKey) {
	n, ok := t.skeleton[node]
	if !ok {
		return
	}
	if n.tag&IsLeaf != 0 {
		if boxkey.AdjacentAnyLevel(target, node) {
			*out = append(*out, node)
		}
		return
	}
	for o, has := range n.children {
		if !has {
			continue
		}
		t.collectAdjacentLeaves(target, boxkey.Child(node, o), out)
	}
}

// vList: children of parent's neighbors, well separated from k at k's
// level (spec §4.3).
func (t *Tree) vList(k boxkey.BoxKey) []boxkey.BoxKey {
	parent := boxkey.Parent(k)
	var out []boxkey.BoxKey
	for _, pn := range boxkey.Neighbors(parent) {
		if !t.exists(pn) {
			continue
		}
		for _, c := range boxkey.Children(pn) {
			if !t.exists(c) {
				continue
			}
			if !boxkey.Adjacent(k, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// wList: descendants of k's same-level neighbors that are finer than
// k, not adjacent to k, but whose own immediate parent is adjacent to
// k (source side, spec §4.3). Only a box's true parent determines W
// membership, never the same-level neighbor slot used to reach it:
// once a neighbor has been subdivided more than one level deeper than
// k, a descendant's immediate parent can be several generations below
// that original neighbor, and only the parent's own adjacency to k
// decides whether the descendant belongs in W.
func (t *Tree) wList(k boxkey.BoxKey) []boxkey.BoxKey {
	if _, ok := t.skeleton[k]; !ok || t.skeleton[k].tag&IsLeaf == 0 {
		return nil
	}
	var out []boxkey.BoxKey
	for _, n := range boxkey.Neighbors(k) {
		if t.existsLeaf(n) {
			continue // already in U-list
		}
		t.collectWSources(k, n, &out)
	}
	return out
}

func (t *Tree) collectWSources(target, node boxkey.BoxKey, out *[]boxkey.BoxKey) {
	n, ok := t.skeleton[node]
	if !ok {
		return
	}
	if n.tag&IsLeaf != 0 {
		if node.Level > target.Level && !boxkey.AdjacentAnyLevel(target, node) && boxkey.AdjacentAnyLevel(target, boxkey.Parent(node)) {
			*out = append(*out, node)
		}
		return
	}
	for o, has := range n.children {
		if !has {
			continue
		}
		t.collectWSources(target, boxkey.Child(node, o), out)
	}
}

// xList: the dual of W — coarser leaves s for which k would appear in
// s's W-list, i.e. s is not adjacent to k but s is adjacent to k's
// parent (spec §4.3). s can sit at any level coarser than k, not just
// k's immediate parent's level, so this walks k's ancestor chain one
// level at a time, at each level L checking the level-L leaves
// neighboring k's level-L ancestor — exactly the same-level neighbor
// relation wList uses, run in reverse.
func (t *Tree) xList(k boxkey.BoxKey) []boxkey.BoxKey {
	var out []boxkey.BoxKey
	parentOfK := boxkey.Parent(k)
	anc := k
	for anc.Level > 0 {
		anc = boxkey.Parent(anc)
		for _, s := range boxkey.Neighbors(anc) {
			if !t.existsLeaf(s) {
				continue
			}
			if boxkey.AdjacentAnyLevel(s, k) {
				continue
			}
			if boxkey.AdjacentAnyLevel(s, parentOfK) {
				out = append(out, s)
			}
		}
	}
	return out
}

// farLists computes spec §4.3's high-frequency far list: every
// same-level box in k's V-list (never adjacent to k), grouped by
// directionOf(k, n). Each distinct index offset is its own direction;
// offsets are not bucketed into wider wedges and Dir2Width plays no
// part.
func (t *Tree) farLists(k boxkey.BoxKey) map[boxkey.Direction][]boxkey.BoxKey {
	width := boxkey.Width(k.Level, t.Config.K)
	out := map[boxkey.Direction][]boxkey.BoxKey{}
	for _, n := range t.sameLevelBoxes(k.Level) {
		if boxkey.Adjacent(k, n) || n == k {
			continue
		}
		if !t.vListContains(k, n) {
			continue
		}
		d := directionOf(k, n, width)
		out[d] = append(out[d], n)
	}
	return out
}

func (t *Tree) vListContains(k, n boxkey.BoxKey) bool {
	for _, c := range t.vList(k) {
		if c == n {
			return true
		}
	}
	return false
}

func (t *Tree) sameLevelBoxes(level int32) []boxkey.BoxKey {
	var out []boxkey.BoxKey
	for k := range t.skeleton {
		if k.Level == level {
			out = append(out, k)
		}
	}
	return out
}

// directionOf returns the integer index offset from one same-level box
// to another (to.Idx - from.Idx) as the direction. width is not used:
// the number of directions does not change with box width.
func directionOf(from, to boxkey.BoxKey, width float64) boxkey.Direction {
	dx := to.Idx.X - from.Idx.X
	dy := to.Idx.Y - from.Idx.Y
	dz := to.Idx.Z - from.Idx.Z
	return boxkey.Direction{X: dx, Y: dy, Z: dz}
}

// FarLists recomputes k's directional far lists on demand. Because the
// tree skeleton is fully replicated (every rank derives the same
// read-only box structure from the shared point set), this is safe to call for
// any box regardless of which rank owns its ParVec entry, letting the
// high-frequency pass size its per-level partitions before it has
// fetched a single remote box.
func (t *Tree) FarLists(k boxkey.BoxKey) map[boxkey.Direction][]boxkey.BoxKey {
	return t.farLists(k)
}

// IsLeafKey reports whether k is a known leaf box.
func (t *Tree) IsLeafKey(k boxkey.BoxKey) bool { return t.existsLeaf(k) }

// Exists reports whether k is a known box in the tree skeleton.
func (t *Tree) Exists(k boxkey.BoxKey) bool { return t.exists(k) }

// HasPoints reports whether k (if known) has the HasPoints tag set.
func (t *Tree) HasPoints(k boxkey.BoxKey) bool {
	n, ok := t.skeleton[k]
	return ok && n.tag&HasPoints != 0
}

// BoxesAtLevel returns every known box key at the given level, in no
// particular order; lowfreq/highfreq use this to iterate a level
// without reaching into ParVec for boxes they may not own.
func (t *Tree) BoxesAtLevel(level int32) []boxkey.BoxKey {
	return t.sameLevelBoxes(level)
}

// MaxLevel returns the deepest level present in the tree skeleton.
func (t *Tree) MaxLevel() int32 {
	var max int32
	for k := range t.skeleton {
		if k.Level > max {
			max = k.Level
		}
	}
	return max
}

// Owner returns the rank that owns box k.
func (t *Tree) Owner(k boxkey.BoxKey) int { return t.PV.partition.Owner(k) }
