package patch

// Orthant identifies one of the 2^dim sub-blocks of a patch. Bit i is set when
// the sub-block lies in the upper half of axis i. The same encoding is used in
// dim-1 dimensions for the position of a fine face on a coarse face.
type Orthant int

// OrthantNone marks a patch that has no coarser parent
const OrthantNone Orthant = -1

// Named 2D orthants
const (
	SW Orthant = 0
	SE Orthant = 1
	NW Orthant = 2
	NE Orthant = 3
)

// Named 3D orthants
const (
	BSW Orthant = 0
	BSE Orthant = 1
	BNW Orthant = 2
	BNE Orthant = 3
	TSW Orthant = 4
	TSE Orthant = 5
	TNW Orthant = 6
	TNE Orthant = 7
)

// NumOrthants returns 2^dim
func NumOrthants(dim int) int {
	return 1 << dim
}

// OrthantsFor returns every orthant in dim dimensions
func OrthantsFor(dim int) []Orthant {
	orths := make([]Orthant, NumOrthants(dim))
	for i := range orths {
		orths[i] = Orthant(i)
	}
	return orths
}

// IsUpperOnAxis reports whether the orthant lies in the upper half of an axis
func (o Orthant) IsUpperOnAxis(axis int) bool {
	return o&(1<<axis) != 0
}

// IsOnSide reports whether the orthant touches side s of the parent block
func (o Orthant) IsOnSide(s Side) bool {
	return o.IsUpperOnAxis(s.Axis()) == s.IsHigherOnAxis()
}

// ExteriorSides returns the sides the orthant shares with the parent block
func (o Orthant) ExteriorSides(dim int) []Side {
	sides := make([]Side, dim)
	for axis := 0; axis < dim; axis++ {
		if o.IsUpperOnAxis(axis) {
			sides[axis] = UpperSideOnAxis(axis)
		} else {
			sides[axis] = LowerSideOnAxis(axis)
		}
	}
	return sides
}

// InteriorSides returns the sides the orthant shares with its siblings
func (o Orthant) InteriorSides(dim int) []Side {
	sides := o.ExteriorSides(dim)
	for i, s := range sides {
		sides[i] = s.Opposite()
	}
	return sides
}

// CollapseOnAxis drops the bit of axis, giving the position of the orthant on
// a face normal to that axis
func (o Orthant) CollapseOnAxis(axis int) Orthant {
	low := o & ((1 << axis) - 1)
	high := o >> (axis + 1)
	return low | high<<axis
}

// ExpandOnSide is the inverse of CollapseOnAxis: it interprets o as a face
// orthant and returns the volume orthant touching side s
func (o Orthant) ExpandOnSide(s Side) Orthant {
	axis := s.Axis()
	low := o & ((1 << axis) - 1)
	high := (o >> axis) << (axis + 1)
	result := low | high
	if s.IsHigherOnAxis() {
		result |= 1 << axis
	}
	return result
}

// OrthantsOnSide returns the orthants touching side s, ordered by their
// position on the face
func OrthantsOnSide(dim int, s Side) []Orthant {
	n := NumOrthants(dim - 1)
	orths := make([]Orthant, n)
	for f := 0; f < n; f++ {
		orths[f] = Orthant(f).ExpandOnSide(s)
	}
	return orths
}
