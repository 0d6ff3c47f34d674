// Package schur builds the Schur complement system over patch interfaces:
// enumeration and numbering of the shared faces, the interface vectors that
// live on them, and the operator that couples patch solves through them.
package schur

import (
	"fmt"

	"github.com/notargets/DDKernel/patch"
)

// IfaceKind is how one patch side participates in an interface
type IfaceKind uint8

const (
	// Normal is a side facing a neighbor at the same level
	Normal IfaceKind = iota
	// CoarseToCoarse is a coarse side contributing to its own coarse face
	CoarseToCoarse
	// CoarseToFine is a coarse side contributing to the face of one fine
	// neighbor
	CoarseToFine
	// FineToCoarse is a fine side contributing to its coarse neighbor's face
	FineToCoarse
	// FineToFine is a fine side contributing to its own fine face
	FineToFine
)

func (k IfaceKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case CoarseToCoarse:
		return "coarse_to_coarse"
	case CoarseToFine:
		return "coarse_to_fine"
	case FineToCoarse:
		return "fine_to_coarse"
	case FineToFine:
		return "fine_to_fine"
	}
	return fmt.Sprintf("ifacekind(%d)", uint8(k))
}

// IfaceType is a participation kind plus, for the coarse/fine cross terms,
// the face orthant of the fine patch on the coarse face
type IfaceType struct {
	Kind    IfaceKind
	Orthant patch.Orthant
}

// NewIfaceType returns a type without an orthant
func NewIfaceType(k IfaceKind) IfaceType {
	return IfaceType{Kind: k, Orthant: patch.OrthantNone}
}

// NewIfaceTypeOnOrthant returns a CoarseToFine or FineToCoarse type
func NewIfaceTypeOnOrthant(k IfaceKind, o patch.Orthant) IfaceType {
	return IfaceType{Kind: k, Orthant: o}
}

func (t IfaceType) String() string {
	if t.Kind == CoarseToFine || t.Kind == FineToCoarse {
		return fmt.Sprintf("%v(%d)", t.Kind, int(t.Orthant))
	}
	return t.Kind.String()
}

// ifaceID is the canonical id of the interface owned by side s of patch id
func ifaceID(patchID int, s patch.Side, dim int) int {
	return patchID*patch.NumSides(dim) + int(s)
}

// contribution is one patch side's share of an interface
type contribution struct {
	side      patch.Side
	ifaceID   int
	ownerRank int
	typ       IfaceType
	// gamma marks the interface holding the side's own boundary values
	gamma bool
}

// contributions lists, for every side of p with a neighbor, the interfaces
// that side adds its trace into. The gamma source comes first on each side.
//
//	normal: the shared face, owned by the smaller patch id
//	coarse: own fine face (FineToFine), the coarse face (FineToCoarse)
//	fine:   own coarse face (CoarseToCoarse), each fine face (CoarseToFine)
func contributions(p *patch.PatchInfo) []contribution {
	dim := p.Dim()
	var out []contribution
	for _, s := range patch.SidesFor(dim) {
		info := p.Nbrs[s]
		if info == nil {
			continue
		}
		switch info.Type {
		case patch.NbrNormal:
			c := contribution{side: s, typ: NewIfaceType(Normal), gamma: true}
			if p.ID < info.ID() {
				c.ifaceID, c.ownerRank = ifaceID(p.ID, s, dim), p.Rank
			} else {
				c.ifaceID, c.ownerRank = ifaceID(info.ID(), s.Opposite(), dim), info.Rank()
			}
			out = append(out, c)
		case patch.NbrCoarse:
			out = append(out,
				contribution{
					side: s, ifaceID: ifaceID(p.ID, s, dim), ownerRank: p.Rank,
					typ: NewIfaceType(FineToFine), gamma: true,
				},
				contribution{
					side: s, ifaceID: ifaceID(info.ID(), s.Opposite(), dim), ownerRank: info.Rank(),
					typ: NewIfaceTypeOnOrthant(FineToCoarse, info.OrthOnCoarse),
				})
		case patch.NbrFine:
			out = append(out, contribution{
				side: s, ifaceID: ifaceID(p.ID, s, dim), ownerRank: p.Rank,
				typ: NewIfaceType(CoarseToCoarse), gamma: true,
			})
			for i, id := range info.IDs {
				out = append(out, contribution{
					side: s, ifaceID: ifaceID(id, s.Opposite(), dim), ownerRank: info.Ranks[i],
					typ: NewIfaceTypeOnOrthant(CoarseToFine, patch.Orthant(i)),
				})
			}
		}
	}
	return out
}
