package schur

import (
	"fmt"

	"github.com/notargets/DDKernel/patch"
	"github.com/notargets/DDKernel/vector"
)

// interpWeights are the trace weights of one dimension. Over the
// participants of any interface they sum to one in every entry.
type interpWeights struct {
	normal         float64
	coarseToCoarse float64
	coarseToFine   float64
	fineToCoarse   float64
	// a fine to fine entry is u - fineToFine*(sum over its 2^(D-1) block)
	fineToFine float64
}

var linearWeights = map[int]interpWeights{
	2: {normal: 0.5, coarseToCoarse: 1.0 / 3, coarseToFine: 2.0 / 6, fineToCoarse: 1.0 / 3, fineToFine: 1.0 / 6},
	3: {normal: 0.5, coarseToCoarse: 2.0 / 6, coarseToFine: 4.0 / 12, fineToCoarse: 1.0 / 6, fineToFine: 1.0 / 12},
}

// LinearInterpolator maps the first cell layer next to a side onto the
// interfaces of that side
type LinearInterpolator struct {
	w interpWeights
}

// NewLinearInterpolator returns the interpolator for dim 2 or 3
func NewLinearInterpolator(dim int) *LinearInterpolator {
	w, ok := linearWeights[dim]
	if !ok {
		panic(fmt.Sprintf("unsupported dimension %d", dim))
	}
	return &LinearInterpolator{w: w}
}

// Interpolate implements Interpolator
func (li *LinearInterpolator) Interpolate(pinfo *PatchIfaceInfo, u vector.LocalData, interp *vector.Vector) {
	for s, si := range pinfo.Sides {
		if si == nil {
			continue
		}
		for _, r := range si.Refs {
			li.InterpolateSide(pinfo, patch.Side(s), r.LocalIndex, r.Type, u, interp)
		}
	}
}

// InterpolateSide implements Interpolator
func (li *LinearInterpolator) InterpolateSide(pinfo *PatchIfaceInfo, s patch.Side, localIndex int, t IfaceType,
	u vector.LocalData, interp *vector.Vector) {
	sl := u.SliceOnSide(s, 0)
	dst := interp.LocalData(localIndex)
	ns := sl.Lengths()
	fc := make([]int, len(ns))

	switch t.Kind {
	case Normal:
		sl.Loop(func(c []int) { dst.Add(c, li.w.normal*sl.Get(c)) })
	case CoarseToCoarse:
		sl.Loop(func(c []int) { dst.Add(c, li.w.coarseToCoarse*sl.Get(c)) })
	case FineToCoarse:
		// each fine cell lands in the coarse entry covering it
		sl.Loop(func(c []int) {
			onCoarse(fc, c, ns, t.Orthant)
			dst.Add(fc, li.w.fineToCoarse*sl.Get(c))
		})
	case CoarseToFine:
		dst.Loop(func(c []int) {
			onCoarse(fc, c, ns, t.Orthant)
			dst.Add(c, li.w.coarseToFine*sl.Get(fc))
		})
	case FineToFine:
		lo := make([]int, len(ns))
		hi := make([]int, len(ns))
		sl.Loop(func(c []int) {
			for i := range c {
				lo[i] = c[i] &^ 1
				hi[i] = lo[i] + 1
			}
			sum := 0.0
			vector.NestedLoop(lo, hi, func(b []int) { sum += sl.Get(b) })
			dst.Add(c, sl.Get(c)-li.w.fineToFine*sum)
		})
	}
}

// onCoarse maps fine face coordinate c of the face orthant o onto the
// coarse face: (c + o*n)/2 per axis
func onCoarse(dst, c, ns []int, o patch.Orthant) {
	for i := range c {
		off := 0
		if o.IsUpperOnAxis(i) {
			off = ns[i]
		}
		dst[i] = (c[i] + off) / 2
	}
}
