package schur

import (
	"github.com/notargets/DDKernel/patch"
)

// IfaceRef is an interface a patch side adds its trace into
type IfaceRef struct {
	ID         int
	Rank       int
	LocalIndex int // into the local interface vector
	Type       IfaceType
}

// SideIfaces holds the interfaces touching one side of a patch
type SideIfaces struct {
	// Gamma is the interface holding the boundary values seen by the patch
	Gamma IfaceRef
	// Refs lists every interface the side contributes to, Gamma first
	Refs []IfaceRef
}

// PatchIfaceInfo is a patch together with its interfaces. Sides without a
// neighbor have nil entries.
type PatchIfaceInfo struct {
	Patch *patch.PatchInfo
	Sides []*SideIfaces
}

// NewPatchIfaceInfo collects the interfaces of p. Local indices are -1
// until the interface numbering is known.
func NewPatchIfaceInfo(p *patch.PatchInfo) *PatchIfaceInfo {
	pi := &PatchIfaceInfo{
		Patch: p,
		Sides: make([]*SideIfaces, patch.NumSides(p.Dim())),
	}
	for _, c := range contributions(p) {
		ref := IfaceRef{ID: c.ifaceID, Rank: c.ownerRank, LocalIndex: -1, Type: c.typ}
		si := pi.Sides[c.side]
		if si == nil {
			si = &SideIfaces{}
			pi.Sides[c.side] = si
		}
		if c.gamma {
			si.Gamma = ref
		}
		si.Refs = append(si.Refs, ref)
	}
	return pi
}

// HasIface reports whether side s has interfaces
func (pi *PatchIfaceInfo) HasIface(s patch.Side) bool {
	return pi.Sides[s] != nil
}

// IfaceSides lists the sides with interfaces in side order
func (pi *PatchIfaceInfo) IfaceSides() []patch.Side {
	var sides []patch.Side
	for s, si := range pi.Sides {
		if si != nil {
			sides = append(sides, patch.Side(s))
		}
	}
	return sides
}

// IDs returns every interface id referenced by the patch
func (pi *PatchIfaceInfo) IDs() []int {
	var ids []int
	for _, si := range pi.Sides {
		if si == nil {
			continue
		}
		for _, r := range si.Refs {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// setLocalIndexes resolves every reference through index
func (pi *PatchIfaceInfo) setLocalIndexes(index map[int]int) {
	for _, si := range pi.Sides {
		if si == nil {
			continue
		}
		si.Gamma.LocalIndex = index[si.Gamma.ID]
		for i := range si.Refs {
			si.Refs[i].LocalIndex = index[si.Refs[i].ID]
		}
	}
}
