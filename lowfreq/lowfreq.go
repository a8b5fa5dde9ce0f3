// Package lowfreq implements the non-directional upward and downward
// passes of spec §4.4: M2M from leaves to UnitLevel, and the U/V/W/X
// near/far translations plus L2L back down to the leaves.
package lowfreq

import (
	"fmt"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/codec"
	"github.com/emmanuel-garza/ddfmm/ddferr"
	"github.com/emmanuel-garza/ddfmm/kernel"
	"github.com/emmanuel-garza/ddfmm/operator"
	"github.com/emmanuel-garza/ddfmm/tree"
)

// fieldExtDenUpEqnDen is the mask {extden, upeqnden} spec §4.4's
// downward pass gathers in one get.
const fieldExtDenUpEqnDen = codec.FieldMask(tree.FieldExtDen | tree.FieldUpEqnDen)

// Upward performs spec §4.4's upward pass, from the finest level up to
// UnitLevel: L2M at leaves (uc2ue applied to extden), M2M at internal
// nodes (8 child upeqnden via ue2uc[octant], then uc2ue).
func Upward(t *tree.Tree, lib operator.Library, h kernel.Helmholtz) error {
	unitLevel := int32(t.Config.UnitLevel())
	for level := t.MaxLevel(); level >= unitLevel; level-- {
		width := boxkey.Width(level, t.Config.K)
		for _, k := range t.BoxesAtLevel(level) {
			if t.Owner(k) != t.Rank {
				continue
			}
			bd, err := t.PV.Access(k)
			if err != nil {
				return err
			}
			if t.IsLeafKey(k) {
				bd.UpEqnDen = lib.UC2UE(width).MulVec(bd.ExtDen)
			} else {
				acc := make([]complex128, lib.UC2UE(width).Cols)
				for o := 0; o < 8; o++ {
					child := boxkey.Child(k, o)
					if !t.Exists(child) {
						continue
					}
					cbd, err := t.PV.Access(child)
					if err != nil {
						return fmt.Errorf("%w: reading child %s upeqnden during M2M: %v", ddferr.ErrInvariant, child, err)
					}
					lib.UE2UC(width, o).AddMulVec(acc, cbd.UpEqnDen)
				}
				bd.UpEqnDen = lib.UC2UE(width).MulVec(acc)
			}
			if err := t.PV.Insert(k, bd); err != nil {
				return err
			}
		}
	}
	return nil
}

// Downward performs spec §4.4's downward pass from UnitLevel to the
// leaves: gather remote extden/upeqnden for U/V/W/X sources, apply the
// four near/far translations, L2L the check values down, then
// translate the leaf's dneqnden to extval at the exact positions.
func Downward(t *tree.Tree, lib operator.Library, h kernel.Helmholtz) error {
	unitLevel := int32(t.Config.UnitLevel())
	for level := unitLevel; level <= t.MaxLevel(); level++ {
		width := boxkey.Width(level, t.Config.K)

		var wantKeys []boxkey.BoxKey
		for _, k := range t.BoxesAtLevel(level) {
			if t.Owner(k) != t.Rank {
				continue
			}
			bd, err := t.PV.Access(k)
			if err != nil {
				return err
			}
			wantKeys = append(wantKeys, bd.U...)
			wantKeys = append(wantKeys, bd.V...)
			wantKeys = append(wantKeys, bd.W...)
			wantKeys = append(wantKeys, bd.X...)
		}
		t.PV.GetBegin(wantKeys, fieldExtDenUpEqnDen)
		if err := t.PV.GetEnd(fieldExtDenUpEqnDen); err != nil {
			return err
		}

		for _, k := range t.BoxesAtLevel(level) {
			if t.Owner(k) != t.Rank {
				continue
			}
			bd, err := t.PV.Access(k)
			if err != nil {
				return err
			}
			if err := applyNearFar(t, lib, h, width, k, bd); err != nil {
				return err
			}
			if err := l2l(t, lib, width, level, k, bd); err != nil {
				return err
			}
			if err := t.PV.Insert(k, bd); err != nil {
				return err
			}
		}
	}
	return finalizeLeaves(t, lib)
}

func applyNearFar(t *tree.Tree, lib operator.Library, h kernel.Helmholtz, width float64, k boxkey.BoxKey, bd *tree.BoxData) error {
	if t.IsLeafKey(k) {
		if bd.ExtVal == nil {
			bd.ExtVal = make([]complex128, len(bd.ExtPos))
		}
		for _, u := range bd.U {
			ubd, err := t.PV.Access(u)
			if err != nil {
				return err
			}
			h.DirectSum(ubd.ExtPos, ubd.ExtDen, bd.ExtPos, bd.ExtVal)
		}
		for _, w := range bd.W {
			wbd, err := t.PV.Access(w)
			if err != nil {
				return err
			}
			srcWidth := boxkey.Width(w.Level, t.Config.K)
			contrib := lib.UE2DC(srcWidth, boxkey.Index3{}).MulVec(wbd.UpEqnDen)
			for i := range bd.ExtVal {
				if i < len(contrib) {
					bd.ExtVal[i] += contrib[i]
				}
			}
		}
	}

	if bd.DnChkVal == nil {
		rank := lib.DC2DE(width).Rows
		bd.DnChkVal = make([]complex128, rank)
	}
	for _, v := range bd.V {
		vbd, err := t.PV.Access(v)
		if err != nil {
			return err
		}
		delta := boxkey.Index3{X: v.Idx.X - k.Idx.X, Y: v.Idx.Y - k.Idx.Y, Z: v.Idx.Z - k.Idx.Z}
		op := lib.UE2DC(width, delta)
		op.AddMulVec(bd.DnChkVal, vbd.UpEqnDen)
	}
	for _, x := range bd.X {
		xbd, err := t.PV.Access(x)
		if err != nil {
			return err
		}
		op := lib.UE2DC(width, boxkey.Index3{})
		srcDen := make([]complex128, len(xbd.ExtDen))
		copy(srcDen, xbd.ExtDen)
		contrib := op.MulVec(srcDen)
		for i := range bd.DnChkVal {
			if i < len(contrib) {
				bd.DnChkVal[i] += contrib[i]
			}
		}
	}
	return nil
}

func l2l(t *tree.Tree, lib operator.Library, width float64, level int32, k boxkey.BoxKey, bd *tree.BoxData) error {
	if bd.DnChkVal == nil {
		return nil
	}
	if k.Level > 0 {
		parent := boxkey.Parent(k)
		if t.Owner(parent) == t.Rank {
			pbd, err := t.PV.Access(parent)
			if err == nil && pbd.DnChkVal != nil {
				parentWidth := boxkey.Width(parent.Level, t.Config.K)
				octant := childOctant(parent, k)
				deqnden := lib.DC2DE(parentWidth).MulVec(pbd.DnChkVal)
				contrib := lib.DE2DC(parentWidth, octant).MulVec(deqnden)
				for i := range bd.DnChkVal {
					if i < len(contrib) {
						bd.DnChkVal[i] += contrib[i]
					}
				}
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

// finalizeLeaves translates each owned leaf's dneqnden (dc2de applied
// to dnchkval) into extval at the exact target positions, completing
// spec §4.4's downward pass.
func finalizeLeaves(t *tree.Tree, lib operator.Library) error {
	for level := int32(0); level <= t.MaxLevel(); level++ {
		width := boxkey.Width(level, t.Config.K)
		for _, k := range t.BoxesAtLevel(level) {
			if t.Owner(k) != t.Rank || !t.IsLeafKey(k) {
				continue
			}
			bd, err := t.PV.Access(k)
			if err != nil {
				return err
			}
			if bd.DnChkVal == nil || len(bd.ExtPos) == 0 {
				continue
			}
			deqnden := lib.DC2DE(width).MulVec(bd.DnChkVal)
			if bd.ExtVal == nil {
				bd.ExtVal = make([]complex128, len(bd.ExtPos))
			}
			for i := range bd.ExtVal {
				if i < len(deqnden) {
					bd.ExtVal[i] += deqnden[i]
				}
			}
			if err := t.PV.Insert(k, bd); err != nil {
				return err
			}
		}
	}
	return nil
}
