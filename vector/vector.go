// Package vector implements distributed patch vectors. Each rank stores the
// patches it owns contiguously, with a fixed ghost width around every patch.
package vector

import (
	"fmt"
	"math"

	"github.com/notargets/DDKernel/comm"
	"gonum.org/v1/gonum/floats"
)

// Vector holds numLocalPatches patches of ns cells each. Reductions (Dot,
// norms) cover owned cells only and are summed over every rank of comm.
type Vector struct {
	comm            *comm.Comm
	ns              []int
	numGhost        int
	numLocalPatches int
	patchStride     int
	data            []float64
}

// New allocates a zeroed vector
func New(c *comm.Comm, ns []int, numGhost, numLocalPatches int) *Vector {
	if len(ns) == 0 || numGhost < 0 || numLocalPatches < 0 {
		panic(fmt.Sprintf("vector: invalid layout ns=%v numGhost=%d patches=%d", ns, numGhost, numLocalPatches))
	}
	stride := 1
	for _, n := range ns {
		stride *= n + 2*numGhost
	}
	return &Vector{
		comm:            c,
		ns:              append([]int(nil), ns...),
		numGhost:        numGhost,
		numLocalPatches: numLocalPatches,
		patchStride:     stride,
		data:            make([]float64, stride*numLocalPatches),
	}
}

// NewLike allocates a zeroed vector with the same layout as v
func NewLike(v *Vector) *Vector {
	return New(v.comm, v.ns, v.numGhost, v.numLocalPatches)
}

// Clone returns a copy of v
func (v *Vector) Clone() *Vector {
	c := NewLike(v)
	copy(c.data, v.data)
	return c
}

// Comm returns the communicator the vector is distributed over
func (v *Vector) Comm() *comm.Comm { return v.comm }

// Ns returns the owned cells per axis of each patch
func (v *Vector) Ns() []int { return v.ns }

// NumGhostCells returns the ghost width
func (v *Vector) NumGhostCells() int { return v.numGhost }

// NumLocalPatches returns the number of patches stored on this rank
func (v *Vector) NumLocalPatches() int { return v.numLocalPatches }

// PatchStride returns the storage size of one patch, ghosts included
func (v *Vector) PatchStride() int { return v.patchStride }

// Data returns the raw storage
func (v *Vector) Data() []float64 { return v.data }

// LocalData returns a view of patch i
func (v *Vector) LocalData(i int) LocalData {
	if i < 0 || i >= v.numLocalPatches {
		panic(fmt.Sprintf("vector: patch index %d out of range [0,%d)", i, v.numLocalPatches))
	}
	return NewLocalData(v.data[i*v.patchStride:(i+1)*v.patchStride], v.ns, v.numGhost)
}

// SameLayout reports whether v and o store the same patches the same way
func (v *Vector) SameLayout(o *Vector) bool {
	if v.numGhost != o.numGhost || v.numLocalPatches != o.numLocalPatches || len(v.ns) != len(o.ns) {
		return false
	}
	for i := range v.ns {
		if v.ns[i] != o.ns[i] {
			return false
		}
	}
	return true
}

func (v *Vector) mustMatch(o *Vector) {
	if !v.SameLayout(o) {
		panic("vector: layout mismatch")
	}
}

// Set stores a in every cell, ghosts included
func (v *Vector) Set(a float64) {
	for i := range v.data {
		v.data[i] = a
	}
}

// Scale multiplies every cell by a
func (v *Vector) Scale(a float64) {
	floats.Scale(a, v.data)
}

// Shift adds a to every owned cell
func (v *Vector) Shift(a float64) {
	v.eachOwned(func(ld LocalData, c []int) { ld.Add(c, a) })
}

// Copy overwrites v with b
func (v *Vector) Copy(b *Vector) {
	v.mustMatch(b)
	copy(v.data, b.data)
}

// AddScaled computes v += a*x
func (v *Vector) AddScaled(a float64, x *Vector) {
	v.mustMatch(x)
	floats.AddScaled(v.data, a, x.data)
}

// AddScaled2 computes v += a*x + b*y
func (v *Vector) AddScaled2(a float64, x *Vector, b float64, y *Vector) {
	v.AddScaled(a, x)
	v.AddScaled(b, y)
}

// ScaleThenAdd computes v = a*v + x
func (v *Vector) ScaleThenAdd(a float64, x *Vector) {
	v.mustMatch(x)
	floats.Scale(a, v.data)
	floats.Add(v.data, x.data)
}

// ScaleThenAddScaled computes v = a*v + b*x
func (v *Vector) ScaleThenAddScaled(a, b float64, x *Vector) {
	v.mustMatch(x)
	floats.Scale(a, v.data)
	floats.AddScaled(v.data, b, x.data)
}

func (v *Vector) eachOwned(fn func(ld LocalData, c []int)) {
	for i := 0; i < v.numLocalPatches; i++ {
		ld := v.LocalData(i)
		ld.Loop(func(c []int) { fn(ld, c) })
	}
}

// localDot sums x*y over owned cells on this rank
func (v *Vector) localDot(o *Vector) float64 {
	if v.numGhost == 0 {
		return floats.Dot(v.data, o.data)
	}
	sum := 0.0
	for i := 0; i < v.numLocalPatches; i++ {
		a, b := v.LocalData(i), o.LocalData(i)
		a.Loop(func(c []int) { sum += a.Get(c) * b.Get(c) })
	}
	return sum
}

// Dot returns the global inner product over owned cells
func (v *Vector) Dot(o *Vector) (float64, error) {
	v.mustMatch(o)
	return v.comm.AllreduceSum(v.localDot(o))
}

// TwoNorm returns the global Euclidean norm over owned cells
func (v *Vector) TwoNorm() (float64, error) {
	d, err := v.Dot(v)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(d), nil
}

// InfNorm returns the global maximum absolute value over owned cells
func (v *Vector) InfNorm() (float64, error) {
	m := 0.0
	v.eachOwned(func(ld LocalData, c []int) { m = math.Max(m, math.Abs(ld.Get(c))) })
	return v.comm.AllreduceMax(m)
}

// LocalSum returns the sum over owned cells on this rank
func (v *Vector) LocalSum() float64 {
	sum := 0.0
	v.eachOwned(func(ld LocalData, c []int) { sum += ld.Get(c) })
	return sum
}
