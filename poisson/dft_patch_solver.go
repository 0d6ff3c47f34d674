// Package poisson holds the patch level Poisson kernels: a direct spectral
// solver and the matching finite volume star stencil.
package poisson

import (
	"fmt"
	"math"
	"sync"

	"github.com/notargets/DDKernel/patch"
	"github.com/notargets/DDKernel/vector"
	"gonum.org/v1/gonum/mat"
)

// DftPatchSolver solves the cell centered Poisson problem on a single patch
// exactly with separable trigonometric transforms. Each axis picks the
// transform pair whose basis satisfies that axis' boundary conditions, with
// interface values entering as Dirichlet data through the right hand side.
type DftPatchSolver struct {
	ns     []int
	lambda float64

	mu    sync.Mutex
	plans map[planKey]*dftPlan
}

type planKey struct {
	neumann  uint8
	spacings [3]float64
}

type dftPlan struct {
	mu      sync.Mutex
	forward []*TrigTransform
	inverse []*TrigTransform
	denom   *mat.VecDense
	allNeum bool
	work    []float64
	line    []float64
}

// NewDftPatchSolver returns a solver for patches of ns cells. lambda shifts
// the operator to Laplacian + lambda.
func NewDftPatchSolver(ns []int, lambda float64) *DftPatchSolver {
	if len(ns) != 2 && len(ns) != 3 {
		panic(fmt.Sprintf("unsupported dimension %d", len(ns)))
	}
	return &DftPatchSolver{
		ns:     append([]int(nil), ns...),
		lambda: lambda,
		plans:  make(map[planKey]*dftPlan),
	}
}

// axisKinds picks the forward transform along axis from the boundary kinds
// of its two sides
func axisKinds(lowerNeumann, upperNeumann bool) TransformKind {
	switch {
	case lowerNeumann && upperNeumann:
		return REDFT10
	case lowerNeumann:
		return REDFT11
	case upperNeumann:
		return RODFT11
	default:
		return RODFT10
	}
}

// eigenShift returns the offset of the wave number in the eigenvalue
// sin^2((k+shift)*pi/2n) of the transform kind
func eigenShift(kind TransformKind) float64 {
	switch kind {
	case REDFT10:
		return 0
	case REDFT11, RODFT11:
		return 0.5
	default:
		return 1
	}
}

// neumannBits returns the Neumann flags of the sides without a neighbor
func neumannBits(p *patch.PatchInfo) uint8 {
	var bits uint8
	for _, s := range patch.SidesFor(p.Dim()) {
		if !p.HasNbr(s) && p.IsNeumann(s) {
			bits |= 1 << uint(s)
		}
	}
	return bits
}

func (s *DftPatchSolver) plan(p *patch.PatchInfo) *dftPlan {
	key := planKey{neumann: neumannBits(p)}
	copy(key.spacings[:], p.Spacings)

	s.mu.Lock()
	defer s.mu.Unlock()
	if pl, ok := s.plans[key]; ok {
		return pl
	}

	dim := len(s.ns)
	size := 1
	for _, n := range s.ns {
		size *= n
	}
	pl := &dftPlan{
		denom:   mat.NewVecDense(size, nil),
		allNeum: true,
		work:    make([]float64, size),
	}
	maxN := 0
	for axis := 0; axis < dim; axis++ {
		lower := key.neumann&(1<<uint(patch.LowerSideOnAxis(axis))) != 0
		upper := key.neumann&(1<<uint(patch.UpperSideOnAxis(axis))) != 0
		pl.allNeum = pl.allNeum && lower && upper
		kind := axisKinds(lower, upper)
		n := s.ns[axis]
		pl.forward = append(pl.forward, NewTrigTransform(kind, n))
		pl.inverse = append(pl.inverse, NewTrigTransform(kind.Inverse(), n))
		if n > maxN {
			maxN = n
		}
	}
	pl.line = make([]float64, maxN)

	// eigenvalues of the separable operator, summed over axes
	coord := make([]int, dim)
	for i := 0; i < size; i++ {
		rem := i
		for axis := 0; axis < dim; axis++ {
			coord[axis] = rem % s.ns[axis]
			rem /= s.ns[axis]
		}
		eig := s.lambda
		for axis := 0; axis < dim; axis++ {
			n := float64(s.ns[axis])
			h := p.Spacings[axis]
			shift := eigenShift(pl.forward[axis].Kind())
			sv := math.Sin((float64(coord[axis]) + shift) * math.Pi / (2 * n))
			eig -= 4 / (h * h) * sv * sv
		}
		pl.denom.SetVec(i, eig)
	}

	s.plans[key] = pl
	return pl
}

// SolvePatch computes u on patch p from f and the interface values gamma,
// one entry per side, zero valued where the side has no neighbor. f is not
// modified.
func (s *DftPatchSolver) SolvePatch(p *patch.PatchInfo, f, u vector.LocalData, gamma []vector.LocalData) error {
	dim := len(s.ns)
	if p.Dim() != dim {
		return fmt.Errorf("patch %d has dimension %d, solver has %d", p.ID, p.Dim(), dim)
	}
	pl := s.plan(p)

	pl.mu.Lock()
	defer pl.mu.Unlock()

	work := pl.work
	dense := vector.NewLocalData(work, s.ns, 0)
	f.Loop(func(c []int) { dense.Set(c, f.Get(c)) })

	for _, side := range patch.SidesFor(dim) {
		if !p.HasNbr(side) {
			continue
		}
		g := gamma[side]
		if g.IsZero() {
			return fmt.Errorf("patch %d: missing interface values on %v", p.ID, side)
		}
		h := p.Spacings[side.Axis()]
		slice := dense.SliceOnSide(side, 0)
		slice.Loop(func(c []int) { slice.Add(c, -2/(h*h)*g.Get(c)) })
	}

	for axis := 0; axis < dim; axis++ {
		transformAxis(pl.forward[axis], work, s.ns, axis, pl.line[:s.ns[axis]])
	}
	for i := range work {
		work[i] /= pl.denom.AtVec(i)
	}
	if pl.allNeum && s.lambda == 0 {
		work[0] = 0
	}
	for axis := 0; axis < dim; axis++ {
		transformAxis(pl.inverse[axis], work, s.ns, axis, pl.line[:s.ns[axis]])
	}

	scale := 1.0
	for _, n := range s.ns {
		scale *= 2 * float64(n)
	}
	u.Loop(func(c []int) { u.Set(c, dense.Get(c)/scale) })
	return nil
}
