package highfreq

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/codec"
	"github.com/emmanuel-garza/ddfmm/comm"
	"github.com/emmanuel-garza/ddfmm/operator"
	"github.com/emmanuel-garza/ddfmm/tree"
)

const fieldDirUpEqnDen = codec.FieldMask(FieldDirUpEqnDen)
const fieldDirDnChkVal = codec.FieldMask(FieldDirDnChkVal)

// Stores holds one LevelStore per directional level (0..baseLevel-1,
// where baseLevel is the tree's UnitLevel): the per-level `_level_prtns`
// layout DESIGN.md resolves spec §9's Open Question with.
type Stores struct {
	byLevel   map[int32]*LevelStore
	keys      map[int32][]boxkey.BoxAndDirKey
	baseLevel int32
}

// Level returns the LevelStore for one directional level, so a caller
// wiring a per-rank comm.Demux (see engine.New) can register each
// level's store under its own "hf:<level>" name.
func (s *Stores) Level(level int32) (*LevelStore, bool) {
	ls, ok := s.byLevel[level]
	return ls, ok
}

// BaseLevel returns the directional regime's finest bound, the tree's
// UnitLevel: directional levels run 0..BaseLevel()-1.
func (s *Stores) BaseLevel() int32 { return s.baseLevel }

// negate flips a direction, turning "from k toward n" into "from n
// toward k" — the two ends of a far-field pair see opposite directions
// to each other.
func negate(d boxkey.Direction) boxkey.Direction {
	return boxkey.Direction{X: -d.X, Y: -d.Y, Z: -d.Z}
}

// neededKeys derives, for one directional level, every (box,dir) pair
// the level's M2L step will read or write: a box k appears under each
// direction its far lists key on, and every source box named in those
// far lists appears under the negated direction (it is a source seen
// from k, so k is a target seen from it).
func neededKeys(t *tree.Tree, level int32) []boxkey.BoxAndDirKey {
	seen := map[boxkey.BoxAndDirKey]bool{}
	var out []boxkey.BoxAndDirKey
	add := func(k boxkey.BoxKey, d boxkey.Direction) {
		bk := boxkey.BoxAndDirKey{Box: k, Dir: d}
		if !seen[bk] {
			seen[bk] = true
			out = append(out, bk)
		}
	}
	for _, k := range t.BoxesAtLevel(level) {
		for d, srcs := range t.FarLists(k) {
			add(k, d)
			for _, n := range srcs {
				add(n, negate(d))
			}
		}
	}
	return out
}

// Build constructs the directional stores for every level coarser than
// the tree's UnitLevel (spec §4.5's regime split), sizing each level's
// BoxAndDirLevelPartition from the keys every rank derives identically
// from the replicated tree skeleton.
func Build(t *tree.Tree, transport comm.Transport, reg prometheus.Registerer) (*Stores, error) {
	baseLevel := int32(t.Config.UnitLevel())
	s := &Stores{
		byLevel:   map[int32]*LevelStore{},
		keys:      map[int32][]boxkey.BoxAndDirKey{},
		baseLevel: baseLevel,
	}
	for level := baseLevel - 1; level >= 0; level-- {
		keys := neededKeys(t, level)
		weights := make([]uint64, len(keys))
		for i := range weights {
			weights[i] = 1
		}
		store, err := NewLevelStore(t.Rank, level, keys, weights, transport.NumRanks(), transport, reg)
		if err != nil {
			return nil, err
		}
		s.byLevel[level] = store
		s.keys[level] = keys
	}
	return s, nil
}

// M2MUp performs spec §4.5's directional upward pass over every level,
// finest directional level to the root, for this rank alone. It is a
// convenience wrapper around M2MUpLevel for the single-rank case (every
// test in this package uses a one-rank cluster, where ownership never
// crosses ranks so no barrier between levels is needed). A multi-rank
// evaluation must instead call M2MUpLevel level-by-level, advancing to
// the next (coarser) level only once every rank has finished the
// current one — see engine.Eval.
func M2MUp(t *tree.Tree, lib operator.Library, s *Stores) error {
	for level := s.baseLevel - 1; level >= 0; level-- {
		if err := M2MUpLevel(t, lib, s, level); err != nil {
			return err
		}
	}
	return nil
}

// M2MUpLevel performs one level of spec §4.5's directional upward pass:
// each of this rank's owned (box,dir) pairs at level gathers its 8
// children's outgoing densities — read at the child's ChildDir(d) —
// through DirUE2UC, then solves the equivalent density through
// DirUC2UE. The base case, where the child box lives at UnitLevel,
// reads the non-directional upeqnden the low-frequency upward pass
// already produced there. Correct multi-rank use requires every rank to
// have already finished level+1 (MERGED into its owner's store) before
// any rank calls this for level.
func M2MUpLevel(t *tree.Tree, lib operator.Library, s *Stores, level int32) error {
	width := boxkey.Width(level, t.Config.K)
	store := s.byLevel[level]
	keys := s.keys[level]

	var baseChildren []boxkey.BoxKey
	var childKeys []boxkey.BoxAndDirKey
	childIsBase := level+1 == s.baseLevel
	var childStore *LevelStore
	if !childIsBase {
		childStore = s.byLevel[level+1]
	}
	for _, key := range keys {
		if store.Partition.Owner(key) != t.Rank {
			continue
		}
		childDirs := boxkey.ChildDir(key.Dir)
		for o := 0; o < 8; o++ {
			child := boxkey.Child(key.Box, o)
			if !t.Exists(child) {
				continue
			}
			if childIsBase {
				baseChildren = append(baseChildren, child)
			} else {
				childKeys = append(childKeys, boxkey.BoxAndDirKey{Box: child, Dir: childDirs[o]})
			}
		}
	}
	if childIsBase {
		mask := codec.FieldMask(tree.FieldUpEqnDen)
		t.PV.GetBegin(baseChildren, mask)
		if err := t.PV.GetEnd(mask); err != nil {
			return err
		}
	} else if childStore != nil {
		childStore.GetBegin(childKeys, fieldDirUpEqnDen)
		if err := childStore.GetEnd(fieldDirUpEqnDen); err != nil {
			return err
		}
	}

	for _, key := range keys {
		if store.Partition.Owner(key) != t.Rank {
			continue
		}
		bd, err := store.Access(key)
		if err != nil {
			return err
		}
		childDirs := boxkey.ChildDir(key.Dir)
		rank := lib.DirUC2UE(width, key.Dir).Cols
		acc := make([]complex128, rank)
		for o := 0; o < 8; o++ {
			child := boxkey.Child(key.Box, o)
			if !t.Exists(child) {
				continue
			}
			op := lib.DirUE2UC(width, key.Dir, o)
			if childIsBase {
				cbd, err := t.PV.Access(child)
				if err != nil {
					return err
				}
				op.AddMulVec(acc, cbd.UpEqnDen)
			} else {
				cKey := boxkey.BoxAndDirKey{Box: child, Dir: childDirs[o]}
				cbd, err := childStore.Access(cKey)
				if err != nil {
					return err
				}
				op.AddMulVec(acc, cbd.DirUpEqnDen)
			}
		}
		bd.DirUpEqnDen = lib.DirUC2UE(width, key.Dir).MulVec(acc)
		if err := store.Insert(key, bd); err != nil {
			return err
		}
	}
	return nil
}

// M2LAcross performs spec §4.5's directional far-field translation: for
// every owned (box,dir) pair, gather the far-list sources' outgoing
// density at the negated direction and accumulate into dirdnchkval via
// DirUE2DC, keyed by the integer offset between source and target.
func M2LAcross(t *tree.Tree, lib operator.Library, s *Stores) error {
	for level := s.baseLevel - 1; level >= 0; level-- {
		width := boxkey.Width(level, t.Config.K)
		store := s.byLevel[level]
		keys := s.keys[level]

		var srcKeys []boxkey.BoxAndDirKey
		for _, k := range t.BoxesAtLevel(level) {
			for d, srcs := range t.FarLists(k) {
				key := boxkey.BoxAndDirKey{Box: k, Dir: d}
				if store.Partition.Owner(key) != t.Rank {
					continue
				}
				for _, n := range srcs {
					srcKeys = append(srcKeys, boxkey.BoxAndDirKey{Box: n, Dir: negate(d)})
				}
			}
		}
		store.GetBegin(srcKeys, fieldDirUpEqnDen)
		if err := store.GetEnd(fieldDirUpEqnDen); err != nil {
			return err
		}

		for _, key := range keys {
			if store.Partition.Owner(key) != t.Rank {
				continue
			}
			bd, err := store.Access(key)
			if err != nil {
				return err
			}
			srcs := t.FarLists(key.Box)[key.Dir]
			if len(srcs) == 0 {
				continue
			}
			if bd.DirDnChkVal == nil {
				bd.DirDnChkVal = make([]complex128, lib.DirDC2DE(width, key.Dir).Rows)
			}
			for _, n := range srcs {
				srcKey := boxkey.BoxAndDirKey{Box: n, Dir: negate(key.Dir)}
				sbd, err := store.Access(srcKey)
				if err != nil {
					return err
				}
				delta := boxkey.Index3{X: n.Idx.X - key.Box.Idx.X, Y: n.Idx.Y - key.Box.Idx.Y, Z: n.Idx.Z - key.Box.Idx.Z}
				op := lib.DirUE2DC(width, key.Dir, delta)
				op.AddMulVec(bd.DirDnChkVal, sbd.DirUpEqnDen)
			}
			if err := store.Insert(key, bd); err != nil {
				return err
			}
		}
	}
	return nil
}

// L2LDown performs spec §4.5's directional downward pass over every
// level, root to finest directional level, for this rank alone. It is a
// convenience wrapper around L2LDownLevel for the single-rank case. A
// multi-rank evaluation must instead call L2LDownLevel level-by-level,
// advancing to the next (finer) level only once every rank has
// finished the current one — see engine.Eval.
func L2LDown(t *tree.Tree, lib operator.Library, s *Stores) error {
	for level := int32(0); level < s.baseLevel; level++ {
		if err := L2LDownLevel(t, lib, s, level); err != nil {
			return err
		}
	}
	return nil
}

// L2LDownLevel performs one level of spec §4.5's directional downward
// pass: a parent's dirdnchkval at (box,dir) is translated through
// DirDC2DE then DirDE2DC[octant] and accumulated into each child's
// dirdnchkval at (child, ChildDir(dir)). At the finest directional
// level the result is handed off to the low-frequency downward pass by
// merging into the UnitLevel box's non-directional dnchkval. Correct
// multi-rank use requires every rank to have already finished level-1
// before any rank calls this for level.
func L2LDownLevel(t *tree.Tree, lib operator.Library, s *Stores, level int32) error {
	width := boxkey.Width(level, t.Config.K)
	store := s.byLevel[level]
	keys := s.keys[level]

	var parentKeys []boxkey.BoxAndDirKey
	for _, key := range keys {
		if store.Partition.Owner(key) != t.Rank || key.Box.Level == 0 {
			continue
		}
		parentKeys = append(parentKeys, boxkey.BoxAndDirKey{Box: boxkey.Parent(key.Box), Dir: boxkey.ParentDir(key.Dir)})
	}
	store.GetBegin(parentKeys, fieldDirDnChkVal)
	if err := store.GetEnd(fieldDirDnChkVal); err != nil {
		return err
	}

	for _, key := range keys {
		if store.Partition.Owner(key) != t.Rank || key.Box.Level == 0 {
			continue
		}
		parentKey := boxkey.BoxAndDirKey{Box: boxkey.Parent(key.Box), Dir: boxkey.ParentDir(key.Dir)}
		pbd, err := store.Access(parentKey)
		if err != nil {
			return err
		}
		if pbd.DirDnChkVal == nil {
			continue
		}
		parentWidth := boxkey.Width(key.Box.Level-1, t.Config.K)
		octant := childOctant(boxkey.Parent(key.Box), key.Box)
		deqnden := lib.DirDC2DE(parentWidth, parentKey.Dir).MulVec(pbd.DirDnChkVal)
		contrib := lib.DirDE2DC(parentWidth, parentKey.Dir, octant).MulVec(deqnden)

		bd, err := store.Access(key)
		if err != nil {
			return err
		}
		if bd.DirDnChkVal == nil {
			bd.DirDnChkVal = make([]complex128, len(contrib))
		}
		for i := range bd.DirDnChkVal {
			if i < len(contrib) {
				bd.DirDnChkVal[i] += contrib[i]
			}
		}
		if err := store.Insert(key, bd); err != nil {
			return err
		}
	}

	if level+1 == s.baseLevel {
		if err := handOffToLowFreq(t, lib, s, width); err != nil {
			return err
		}
	}
	return nil
}

// handOffToLowFreq merges the finest directional level's dirdnchkval
// into the UnitLevel boxes' non-directional dnchkval, summing over
// every direction that targeted each UnitLevel box, completing the
// interface spec §4.6 describes between the high- and low-frequency
// regimes.
func handOffToLowFreq(t *tree.Tree, lib operator.Library, s *Stores, width float64) error {
	level := s.baseLevel - 1
	store := s.byLevel[level]
	keys := s.keys[level]
	for _, key := range keys {
		if store.Partition.Owner(key) != t.Rank {
			continue
		}
		bd, err := store.Access(key)
		if err != nil {
			return err
		}
		if bd.DirDnChkVal == nil {
			continue
		}
		for o := 0; o < 8; o++ {
			child := boxkey.Child(key.Box, o)
			if !t.Exists(child) || t.Owner(child) != t.Rank {
				continue
			}
			cbd, err := t.PV.Access(child)
			if err != nil {
				return err
			}
			op := lib.DirDE2DC(width, key.Dir, o)
			contrib := op.MulVec(bd.DirDnChkVal)
			if cbd.DnChkVal == nil {
				cbd.DnChkVal = make([]complex128, len(contrib))
			}
			for i := range cbd.DnChkVal {
				if i < len(contrib) {
					cbd.DnChkVal[i] += contrib[i]
				}
			}
			if err := t.PV.Insert(child, cbd); err != nil {
				return err
			}
		}
	}
	return nil
}

func childOctant(parent, child boxkey.BoxKey) int {
	for o := 0; o < 8; o++ {
		if boxkey.Child(parent, o) == child {
			return o
		}
	}
	return 0
}
