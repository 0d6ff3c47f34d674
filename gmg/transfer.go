package gmg

import (
	"fmt"

	"github.com/notargets/DDKernel/partitions"
	"github.com/notargets/DDKernel/patch"
	"github.com/notargets/DDKernel/vector"
)

// Restrictor maps a fine level vector onto the next coarser level
type Restrictor interface {
	Restrict(coarse, fine *vector.Vector) error
}

// Interpolator adds a coarse level correction into the next finer level
type Interpolator interface {
	Interpolate(coarse, fine *vector.Vector) error
}

// NewTransfers builds the communicator between coarse and fine and the
// restrictor and interpolator sharing it. It is collective.
func NewTransfers(coarse, fine *partitions.Domain) (*LinearRestrictor, *DirectInterpolator, error) {
	ilc, err := NewInterLevelComm(coarse, fine)
	if err != nil {
		return nil, nil, err
	}
	return NewLinearRestrictor(ilc), NewDirectInterpolator(ilc), nil
}

// startsOnParent returns the first coarse cell covered by a child on each
// axis, in units of fine cells: 0 on lower halves and n on upper halves
func startsOnParent(o patch.Orthant, ns []int) []int {
	starts := make([]int, len(ns))
	for i, n := range ns {
		if o.IsUpperOnAxis(i) {
			starts[i] = n
		}
	}
	return starts
}

// LinearRestrictor averages the 2^D fine cells under each coarse cell.
// Ghost cells on the exterior sides of a child are extrapolated linearly.
// Patches carried through unchanged are copied, ghosts included.
type LinearRestrictor struct {
	ilc         *InterLevelComm
	coarseLocal *vector.Vector
	ghost       *vector.Vector
}

// NewLinearRestrictor returns a restrictor communicating through ilc
func NewLinearRestrictor(ilc *InterLevelComm) *LinearRestrictor {
	return &LinearRestrictor{
		ilc:         ilc,
		coarseLocal: ilc.Coarse().NewVector(),
		ghost:       ilc.NewGhostVector(),
	}
}

func restrictPatch(p *patch.PatchInfo, fine, coarse vector.LocalData) {
	if !p.HasCoarseParent() {
		vector.NestedLoop(fine.GhostStart(), fine.GhostEnd(), func(c []int) {
			coarse.Add(c, fine.Get(c))
		})
		return
	}
	dim := fine.Dim()
	weight := 1 / float64(int(1)<<dim)
	starts := startsOnParent(p.OrthOnParent, fine.Lengths())
	cc := make([]int, dim)
	fine.Loop(func(c []int) {
		for i := range c {
			cc[i] = (c[i] + starts[i]) / 2
		}
		coarse.Add(cc, weight*fine.Get(c))
	})

	if fine.NumGhostCells() == 0 {
		return
	}
	face := make([]int, dim-1)
	for _, s := range p.OrthOnParent.ExteriorSides(dim) {
		fineGhost := fine.GhostSliceOnSide(s, 1)
		fineInterior := fine.SliceOnSide(s, 0)
		coarseGhost := coarse.GhostSliceOnSide(s, 1)
		axis := s.Axis()
		fineGhost.Loop(func(c []int) {
			for i := range c {
				a := i
				if i >= axis {
					a = i + 1
				}
				face[i] = (c[i] + starts[a]) / 2
			}
			coarseGhost.Add(face, weight*(3*fineGhost.Get(c)-fineInterior.Get(c)))
		})
	}
}

// Restrict overwrites coarse with the restriction of fine. It is collective.
func (r *LinearRestrictor) Restrict(coarse, fine *vector.Vector) error {
	ilc := r.ilc
	r.coarseLocal.Set(0)
	r.ghost.Set(0)
	for _, e := range ilc.PatchesWithGhostParent() {
		restrictPatch(e.Patch, fine.LocalData(e.FineIndex), r.ghost.LocalData(e.Index))
	}
	if err := ilc.SendGhostPatchesStart(r.coarseLocal, r.ghost); err != nil {
		return err
	}
	for _, e := range ilc.PatchesWithLocalParent() {
		restrictPatch(e.Patch, fine.LocalData(e.FineIndex), r.coarseLocal.LocalData(e.Index))
	}
	if err := ilc.SendGhostPatchesFinish(r.coarseLocal, r.ghost); err != nil {
		return fmt.Errorf("restrict: %w", err)
	}
	coarse.Copy(r.coarseLocal)
	return nil
}

// DirectInterpolator injects each coarse cell into the 2^D fine cells it
// covers
type DirectInterpolator struct {
	ilc   *InterLevelComm
	ghost *vector.Vector
}

// NewDirectInterpolator returns an interpolator communicating through ilc
func NewDirectInterpolator(ilc *InterLevelComm) *DirectInterpolator {
	return &DirectInterpolator{ilc: ilc, ghost: ilc.NewGhostVector()}
}

func injectPatch(p *patch.PatchInfo, coarse, fine vector.LocalData) {
	if !p.HasCoarseParent() {
		fine.Loop(func(c []int) { fine.Add(c, coarse.Get(c)) })
		return
	}
	starts := startsOnParent(p.OrthOnParent, fine.Lengths())
	cc := make([]int, fine.Dim())
	fine.Loop(func(c []int) {
		for i := range c {
			cc[i] = (c[i] + starts[i]) / 2
		}
		fine.Add(c, coarse.Get(cc))
	})
}

// Interpolate adds the injection of coarse into fine. It is collective.
func (di *DirectInterpolator) Interpolate(coarse, fine *vector.Vector) error {
	ilc := di.ilc
	if err := ilc.GetGhostPatchesStart(coarse, di.ghost); err != nil {
		return err
	}
	for _, e := range ilc.PatchesWithLocalParent() {
		injectPatch(e.Patch, coarse.LocalData(e.Index), fine.LocalData(e.FineIndex))
	}
	if err := ilc.GetGhostPatchesFinish(coarse, di.ghost); err != nil {
		return fmt.Errorf("interpolate: %w", err)
	}
	for _, e := range ilc.PatchesWithGhostParent() {
		injectPatch(e.Patch, di.ghost.LocalData(e.Index), fine.LocalData(e.FineIndex))
	}
	return nil
}
