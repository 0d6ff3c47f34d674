package poisson

import (
	"github.com/notargets/DDKernel/patch"
	"github.com/notargets/DDKernel/vector"
)

// StarPatchOperator applies the cell centered 5 point (2D) or 7 point (3D)
// Laplacian, plus Lambda times the identity. Values beyond the patch come
// from a ghost value per boundary cell:
//
//	neighbor side:  2*gamma - u
//	Neumann side:   u
//	Dirichlet side: -u
type StarPatchOperator struct {
	Lambda float64
}

// NewStarPatchOperator returns the operator Laplacian + lambda
func NewStarPatchOperator(lambda float64) *StarPatchOperator {
	return &StarPatchOperator{Lambda: lambda}
}

// ApplyPatch computes au = A u on patch p, reading interface values on the
// sides that have neighbors from gamma
func (o *StarPatchOperator) ApplyPatch(p *patch.PatchInfo, u, au vector.LocalData, gamma []vector.LocalData) {
	dim := u.Dim()
	ns := u.Lengths()
	face := make([]int, dim-1)
	nbr := make([]int, dim)

	ghost := func(s patch.Side, c []int, center float64) float64 {
		switch {
		case p.HasNbr(s):
			dropAxis(face, c, s.Axis())
			return 2*gamma[s].Get(face) - center
		case p.IsNeumann(s):
			return center
		default:
			return -center
		}
	}

	u.Loop(func(c []int) {
		center := u.Get(c)
		sum := o.Lambda * center
		copy(nbr, c)
		for axis := 0; axis < dim; axis++ {
			h := p.Spacings[axis]
			var lower, upper float64
			if c[axis] == 0 {
				lower = ghost(patch.LowerSideOnAxis(axis), c, center)
			} else {
				nbr[axis] = c[axis] - 1
				lower = u.Get(nbr)
			}
			if c[axis] == ns[axis]-1 {
				upper = ghost(patch.UpperSideOnAxis(axis), c, center)
			} else {
				nbr[axis] = c[axis] + 1
				upper = u.Get(nbr)
			}
			nbr[axis] = c[axis]
			sum += (lower - 2*center + upper) / (h * h)
		}
		au.Set(c, sum)
	})
}

// dropAxis writes c without its axis entry into face
func dropAxis(face, c []int, axis int) {
	j := 0
	for i, v := range c {
		if i != axis {
			face[j] = v
			j++
		}
	}
}
