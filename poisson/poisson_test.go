package poisson

import (
	"math"
	"math/rand"
	"testing"

	"github.com/notargets/DDKernel/patch"
	"github.com/notargets/DDKernel/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// naiveTransform evaluates the FFTW definitions directly
func naiveTransform(kind TransformKind, x []float64) []float64 {
	n := len(x)
	fn := float64(n)
	y := make([]float64, n)
	for k := range y {
		fk := float64(k)
		for j, xj := range x {
			fj := float64(j)
			switch kind {
			case REDFT10:
				y[k] += 2 * xj * math.Cos(math.Pi*(fj+0.5)*fk/fn)
			case RODFT10:
				y[k] += 2 * xj * math.Sin(math.Pi*(fj+0.5)*(fk+1)/fn)
			case REDFT11:
				y[k] += 2 * xj * math.Cos(math.Pi*(fj+0.5)*(fk+0.5)/fn)
			case RODFT11:
				y[k] += 2 * xj * math.Sin(math.Pi*(fj+0.5)*(fk+0.5)/fn)
			case REDFT01:
				if j == 0 {
					y[k] += xj
				} else {
					y[k] += 2 * xj * math.Cos(math.Pi*fj*(fk+0.5)/fn)
				}
			case RODFT01:
				if j == n-1 {
					y[k] += math.Pow(-1, fk) * xj
				} else {
					y[k] += 2 * xj * math.Sin(math.Pi*(fj+1)*(fk+0.5)/fn)
				}
			}
		}
	}
	return y
}

func TestTrigTransform(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	kinds := []TransformKind{REDFT10, REDFT01, REDFT11, RODFT10, RODFT01, RODFT11}
	for _, n := range []int{1, 4, 7} {
		x := make([]float64, n)
		for i := range x {
			x[i] = rng.Float64() - 0.5
		}
		for _, kind := range kinds {
			t.Run(kind.String(), func(t *testing.T) {
				tr := NewTrigTransform(kind, n)
				got := tr.Transform(nil, x)
				assert.True(t, floats.EqualApprox(naiveTransform(kind, x), got, 1e-12),
					"n=%d got %v", n, got)

				back := NewTrigTransform(kind.Inverse(), n).Transform(nil, got)
				floats.Scale(1/(2*float64(n)), back)
				assert.True(t, floats.EqualApprox(x, back, 1e-12), "round trip n=%d", n)
			})
		}
	}
	assert.Panics(t, func() { NewTrigTransform(REDFT10, 0) })
}

// testPatch builds a patch of n cells per axis over the unit box with the
// given sides holding neighbors and the given sides Neumann
func testPatch(dim, n int, nbrSides, neumannSides []patch.Side) *patch.PatchInfo {
	p := patch.NewPatchInfo(dim)
	for i := 0; i < dim; i++ {
		p.Ns[i] = n
		p.Spacings[i] = 1 / float64(n)
	}
	for _, s := range nbrSides {
		p.Nbrs[s] = patch.NewNormalNbrInfo(100 + int(s))
	}
	for _, s := range neumannSides {
		p.SetNeumann(s, true)
	}
	return p
}

type patchFixture struct {
	p     *patch.PatchInfo
	u     vector.LocalData
	f     vector.LocalData
	gamma []vector.LocalData
}

func newFixture(rng *rand.Rand, p *patch.PatchInfo) *patchFixture {
	dim := p.Dim()
	size := 1
	for _, n := range p.Ns {
		size *= n + 2
	}
	fx := &patchFixture{
		p:     p,
		u:     vector.NewLocalData(make([]float64, size), p.Ns, 1),
		f:     vector.NewLocalData(make([]float64, size), p.Ns, 1),
		gamma: make([]vector.LocalData, patch.NumSides(dim)),
	}
	fx.u.Loop(func(c []int) { fx.u.Set(c, rng.Float64()-0.5) })
	for _, s := range patch.SidesFor(dim) {
		if !p.HasNbr(s) {
			continue
		}
		faceNs := make([]int, 0, dim-1)
		for axis, n := range p.Ns {
			if axis != s.Axis() {
				faceNs = append(faceNs, n)
			}
		}
		faceSize := 1
		for _, n := range faceNs {
			faceSize *= n
		}
		g := vector.NewLocalData(make([]float64, faceSize), faceNs, 0)
		g.Loop(func(c []int) { g.Set(c, rng.Float64()-0.5) })
		fx.gamma[s] = g
	}
	return fx
}

func TestDftPatchSolverInvertsOperator(t *testing.T) {
	W, E, S, N, B, T := patch.West, patch.East, patch.South, patch.North, patch.Bottom, patch.Top
	testCases := []struct {
		name    string
		dim     int
		nbrs    []patch.Side
		neumann []patch.Side
	}{
		{"Dirichlet2D", 2, nil, nil},
		{"Neighbors2D", 2, []patch.Side{W, N}, nil},
		{"NeumannLower2D", 2, []patch.Side{E}, []patch.Side{W, S}},
		{"NeumannUpper2D", 2, nil, []patch.Side{E, N}},
		{"NeumannPair2D", 2, []patch.Side{S}, []patch.Side{W, E}},
		{"AllNeumann2D", 2, nil, []patch.Side{W, E, S, N}},
		{"Dirichlet3D", 3, []patch.Side{T}, nil},
		{"Mixed3D", 3, []patch.Side{W, N}, []patch.Side{E, S, B}},
		{"AllNeumann3D", 3, nil, []patch.Side{W, E, S, N, B, T}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			n := 6
			if tc.dim == 3 {
				n = 4
			}
			p := testPatch(tc.dim, n, tc.nbrs, tc.neumann)
			fx := newFixture(rng, p)
			if len(tc.neumann) == 2*tc.dim {
				// the all Neumann solve returns the zero mean solution
				mean := fx.u.Sum() / math.Pow(float64(n), float64(tc.dim))
				fx.u.Loop(func(c []int) { fx.u.Add(c, -mean) })
			}

			op := NewStarPatchOperator(0)
			op.ApplyPatch(p, fx.u, fx.f, fx.gamma)

			solver := NewDftPatchSolver(p.Ns, 0)
			got := vector.NewLocalData(make([]float64, len(fx.u.Raw())), p.Ns, 1)
			fBefore := append([]float64(nil), fx.f.Raw()...)
			require.NoError(t, solver.SolvePatch(p, fx.f, got, fx.gamma))

			assert.Equal(t, fBefore, fx.f.Raw(), "f is not modified")
			fx.u.Loop(func(c []int) {
				assert.InDelta(t, fx.u.Get(c), got.Get(c), 1e-10, "cell %v", c)
			})
		})
	}
}

func TestDftPatchSolverMatchesDenseSolve(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 4
	p := testPatch(2, n, nil, []patch.Side{patch.West})
	op := NewStarPatchOperator(0)
	size := n * n
	ns := []int{n, n}

	// assemble the operator column by column
	A := mat.NewDense(size, size, nil)
	e := vector.NewLocalData(make([]float64, size), ns, 0)
	ae := vector.NewLocalData(make([]float64, size), ns, 0)
	gamma := make([]vector.LocalData, 4)
	for j := 0; j < size; j++ {
		e.Raw()[j] = 1
		op.ApplyPatch(p, e, ae, gamma)
		for i := 0; i < size; i++ {
			A.Set(i, j, ae.Raw()[i])
		}
		e.Raw()[j] = 0
	}

	b := mat.NewVecDense(size, nil)
	for i := 0; i < size; i++ {
		b.SetVec(i, rng.Float64())
	}
	var want mat.VecDense
	require.NoError(t, want.SolveVec(A, b))

	f := vector.NewLocalData(b.RawVector().Data, ns, 0)
	u := vector.NewLocalData(make([]float64, size), ns, 0)
	require.NoError(t, NewDftPatchSolver(ns, 0).SolvePatch(p, f, u, gamma))
	assert.True(t, floats.EqualApprox(want.RawVector().Data, u.Raw(), 1e-10))
}

func TestDftPatchSolverPlanCache(t *testing.T) {
	s := NewDftPatchSolver([]int{4, 4}, 0)
	a := testPatch(2, 4, nil, nil)
	b := testPatch(2, 4, []patch.Side{patch.East}, nil)
	c := testPatch(2, 4, nil, []patch.Side{patch.East})
	assert.Same(t, s.plan(a), s.plan(b), "neighbor sides do not change the plan")
	assert.NotSame(t, s.plan(a), s.plan(c))
	assert.Len(t, s.plans, 2)

	b.Nbrs[patch.East] = patch.NewNormalNbrInfo(3)
	fx := newFixture(rand.New(rand.NewSource(1)), a)
	err := s.SolvePatch(b, fx.f, fx.u, make([]vector.LocalData, 4))
	assert.Error(t, err, "missing interface values")
}

func TestStarPatchOperatorRows(t *testing.T) {
	// 1 cell wide in y with Neumann south and north leaves a 1D stencil in x
	p := testPatch(2, 3, []patch.Side{patch.East}, []patch.Side{patch.South, patch.North})
	p.Ns[1] = 1
	p.Spacings = []float64{1, 1}
	u := vector.NewLocalData([]float64{1, 2, 4}, []int{3, 1}, 0)
	au := vector.NewLocalData(make([]float64, 3), []int{3, 1}, 0)
	gamma := make([]vector.LocalData, 4)
	gamma[patch.East] = vector.NewLocalData([]float64{5}, []int{1}, 0)

	NewStarPatchOperator(0).ApplyPatch(p, u, au, gamma)
	assert.Equal(t, -3*1.0+2, au.Raw()[0], "Dirichlet west")
	assert.Equal(t, 1-2*2.0+4, au.Raw()[1], "interior")
	assert.Equal(t, 2*5-3*4.0+2, au.Raw()[2], "neighbor east")
}
