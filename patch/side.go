package patch

import (
	"fmt"
	"strings"
)

// Side identifies one face of a patch. The index is 2*axis for the lower
// face of an axis and 2*axis+1 for the upper face.
type Side int

const (
	West   Side = iota // lower x
	East               // upper x
	South              // lower y
	North              // upper y
	Bottom             // lower z
	Top                // upper z
)

var sideNames = [...]string{"west", "east", "south", "north", "bottom", "top"}

// NumSides returns the number of sides of a patch in dim dimensions
func NumSides(dim int) int {
	return 2 * dim
}

// SidesFor returns every side of a patch in dim dimensions, in index order
func SidesFor(dim int) []Side {
	sides := make([]Side, NumSides(dim))
	for i := range sides {
		sides[i] = Side(i)
	}
	return sides
}

// LowerSideOnAxis returns the lower side of an axis
func LowerSideOnAxis(axis int) Side {
	return Side(2 * axis)
}

// UpperSideOnAxis returns the upper side of an axis
func UpperSideOnAxis(axis int) Side {
	return Side(2*axis + 1)
}

// Axis returns the axis normal to the side
func (s Side) Axis() int {
	return int(s) / 2
}

// IsLowerOnAxis reports whether the side is the lower face of its axis
func (s Side) IsLowerOnAxis() bool {
	return int(s)%2 == 0
}

// IsHigherOnAxis reports whether the side is the upper face of its axis
func (s Side) IsHigherOnAxis() bool {
	return int(s)%2 == 1
}

// Opposite returns the side facing this one across a shared face
func (s Side) Opposite() Side {
	return s ^ 1
}

func (s Side) String() string {
	if s < 0 || int(s) >= len(sideNames) {
		return fmt.Sprintf("side(%d)", int(s))
	}
	return sideNames[s]
}

// ParseSide converts a side name ("west", "north", ...) into a Side
func ParseSide(name string) (Side, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range sideNames {
		if n == name {
			return Side(i), nil
		}
	}
	return 0, fmt.Errorf("unknown side %q", name)
}
