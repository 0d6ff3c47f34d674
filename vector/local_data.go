package vector

import (
	"github.com/notargets/DDKernel/patch"
)

// LocalData is a strided view of one patch inside a Vector. Coordinates run
// from 0 to n-1 on each axis for owned cells; ghost cells sit at -1, -2, ...
// and n, n+1, ... The zero LocalData has no storage and is used for sides
// without boundary data.
type LocalData struct {
	data     []float64
	ns       []int
	strides  []int
	offset   int
	numGhost int
}

// NewLocalData wraps data as a dense patch of ns cells surrounded by
// numGhost ghost layers, with the first axis varying fastest
func NewLocalData(data []float64, ns []int, numGhost int) LocalData {
	strides := make([]int, len(ns))
	stride := 1
	offset := 0
	for i, n := range ns {
		strides[i] = stride
		offset += numGhost * stride
		stride *= n + 2*numGhost
	}
	if len(data) < stride {
		panic("vector: local data shorter than patch")
	}
	return LocalData{
		data:     data[:stride],
		ns:       append([]int(nil), ns...),
		strides:  strides,
		offset:   offset,
		numGhost: numGhost,
	}
}

// IsZero reports whether the view has no storage
func (l LocalData) IsZero() bool {
	return l.data == nil
}

// Dim returns the number of axes of the view
func (l LocalData) Dim() int {
	return len(l.ns)
}

// Lengths returns the number of owned cells along each axis
func (l LocalData) Lengths() []int {
	return l.ns
}

// NumGhostCells returns the ghost width of the view
func (l LocalData) NumGhostCells() int {
	return l.numGhost
}

// Strides returns the distance in storage between neighbors along each axis
func (l LocalData) Strides() []int {
	return l.strides
}

// Index returns the storage offset of coord
func (l LocalData) Index(coord []int) int {
	idx := l.offset
	for i, c := range coord {
		idx += c * l.strides[i]
	}
	return idx
}

// Get returns the value at coord
func (l LocalData) Get(coord []int) float64 {
	return l.data[l.Index(coord)]
}

// Set stores v at coord
func (l LocalData) Set(coord []int, v float64) {
	l.data[l.Index(coord)] = v
}

// Add adds v to the value at coord
func (l LocalData) Add(coord []int, v float64) {
	l.data[l.Index(coord)] += v
}

// Raw returns the backing storage of the view, ghost cells included
func (l LocalData) Raw() []float64 {
	return l.data
}

// Start returns the first owned coordinate
func (l LocalData) Start() []int {
	return make([]int, len(l.ns))
}

// End returns the last owned coordinate
func (l LocalData) End() []int {
	end := make([]int, len(l.ns))
	for i, n := range l.ns {
		end[i] = n - 1
	}
	return end
}

// GhostStart returns the first coordinate including ghost cells
func (l LocalData) GhostStart() []int {
	start := make([]int, len(l.ns))
	for i := range start {
		start[i] = -l.numGhost
	}
	return start
}

// GhostEnd returns the last coordinate including ghost cells
func (l LocalData) GhostEnd() []int {
	end := make([]int, len(l.ns))
	for i, n := range l.ns {
		end[i] = n - 1 + l.numGhost
	}
	return end
}

// Loop calls fn for every owned coordinate
func (l LocalData) Loop(fn func(coord []int)) {
	NestedLoop(l.Start(), l.End(), fn)
}

// Sum returns the sum over owned cells
func (l LocalData) Sum() float64 {
	sum := 0.0
	l.Loop(func(c []int) { sum += l.Get(c) })
	return sum
}

// SetAll stores v in every owned cell
func (l LocalData) SetAll(v float64) {
	l.Loop(func(c []int) { l.Set(c, v) })
}

func (l LocalData) slice(axis, fixed int) LocalData {
	dim := len(l.ns)
	s := LocalData{
		data:     l.data,
		ns:       make([]int, 0, dim-1),
		strides:  make([]int, 0, dim-1),
		offset:   l.offset + fixed*l.strides[axis],
		numGhost: l.numGhost,
	}
	for i := 0; i < dim; i++ {
		if i != axis {
			s.ns = append(s.ns, l.ns[i])
			s.strides = append(s.strides, l.strides[i])
		}
	}
	return s
}

// SliceOnSide returns the layer of owned cells offset cells in from side s.
// The remaining axes keep their relative order.
func (l LocalData) SliceOnSide(s patch.Side, offset int) LocalData {
	axis := s.Axis()
	if s.IsLowerOnAxis() {
		return l.slice(axis, offset)
	}
	return l.slice(axis, l.ns[axis]-1-offset)
}

// GhostSliceOnSide returns ghost layer layer (1 is adjacent to the owned
// cells) beyond side s
func (l LocalData) GhostSliceOnSide(s patch.Side, layer int) LocalData {
	axis := s.Axis()
	if s.IsLowerOnAxis() {
		return l.slice(axis, -layer)
	}
	return l.slice(axis, l.ns[axis]-1+layer)
}

// NestedLoop visits every coordinate between start and end inclusive, first
// axis fastest. The coord slice is reused between calls.
func NestedLoop(start, end []int, fn func(coord []int)) {
	dim := len(start)
	if dim == 0 {
		fn(nil)
		return
	}
	for i := range start {
		if end[i] < start[i] {
			return
		}
	}
	coord := append([]int(nil), start...)
	for {
		fn(coord)
		i := 0
		for ; i < dim; i++ {
			coord[i]++
			if coord[i] <= end[i] {
				break
			}
			coord[i] = start[i]
		}
		if i == dim {
			return
		}
	}
}
