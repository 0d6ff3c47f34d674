package patch

import (
	"bytes"
	"fmt"
)

// Arena holds locally owned patches keyed by id. Neighbor references are
// resolved through it rather than through pointers so they survive migration.
type Arena map[int]*PatchInfo

// PatchInfo is one rectangular grid block and its place in the refinement tree
type PatchInfo struct {
	ID          int
	LocalIndex  int
	GlobalIndex int
	RefineLevel int
	Rank        int

	ParentID     int
	ParentRank   int
	OrthOnParent Orthant
	ChildIDs     []int
	ChildRanks   []int

	Ns            []int
	Starts        []float64
	Spacings      []float64
	NumGhostCells int

	Neumann uint8
	// Nbrs has one entry per side, nil on physical boundaries
	Nbrs []*NbrInfo
}

// NewPatchInfo allocates a patch in dim dimensions with no neighbors,
// no parent and no children
func NewPatchInfo(dim int) *PatchInfo {
	if dim != 2 && dim != 3 {
		panic(fmt.Sprintf("unsupported dimension %d", dim))
	}
	p := &PatchInfo{
		LocalIndex:   -1,
		GlobalIndex:  -1,
		ParentID:     -1,
		ParentRank:   -1,
		OrthOnParent: OrthantNone,
		ChildIDs:     make([]int, NumOrthants(dim)),
		ChildRanks:   make([]int, NumOrthants(dim)),
		Ns:           make([]int, dim),
		Starts:       make([]float64, dim),
		Spacings:     make([]float64, dim),
		Nbrs:         make([]*NbrInfo, NumSides(dim)),
	}
	for i := range p.ChildIDs {
		p.ChildIDs[i] = -1
		p.ChildRanks[i] = -1
	}
	return p
}

// Dim returns the spatial dimension
func (p *PatchInfo) Dim() int {
	return len(p.Ns)
}

// HasNbr reports whether side s has a neighbor
func (p *PatchInfo) HasNbr(s Side) bool {
	return p.Nbrs[s] != nil
}

// NbrType returns the relation type on side s. HasNbr(s) must be true.
func (p *PatchInfo) NbrType(s Side) NbrType {
	return p.Nbrs[s].Type
}

func (p *PatchInfo) nbrOfType(s Side, t NbrType) (*NbrInfo, error) {
	info := p.Nbrs[s]
	if info == nil {
		return nil, fmt.Errorf("patch %d has no neighbor on %v", p.ID, s)
	}
	if info.Type != t {
		return nil, fmt.Errorf("patch %d: neighbor on %v is %v, not %v", p.ID, s, info.Type, t)
	}
	return info, nil
}

// NormalNbrInfo returns the same-level relation on side s
func (p *PatchInfo) NormalNbrInfo(s Side) (*NbrInfo, error) {
	return p.nbrOfType(s, NbrNormal)
}

// CoarseNbrInfo returns the coarser relation on side s
func (p *PatchInfo) CoarseNbrInfo(s Side) (*NbrInfo, error) {
	return p.nbrOfType(s, NbrCoarse)
}

// FineNbrInfo returns the finer relation on side s
func (p *PatchInfo) FineNbrInfo(s Side) (*NbrInfo, error) {
	return p.nbrOfType(s, NbrFine)
}

// NbrIDs lists the ids of every neighbor across every side
func (p *PatchInfo) NbrIDs() []int {
	var ids []int
	for _, info := range p.Nbrs {
		if info != nil {
			ids = append(ids, info.IDs...)
		}
	}
	return ids
}

// IsNeumann reports whether side s carries a Neumann boundary condition
func (p *PatchInfo) IsNeumann(s Side) bool {
	return p.Neumann&(1<<uint(s)) != 0
}

// SetNeumann sets or clears the Neumann flag on side s
func (p *PatchInfo) SetNeumann(s Side, neumann bool) {
	if neumann {
		p.Neumann |= 1 << uint(s)
	} else {
		p.Neumann &^= 1 << uint(s)
	}
}

// HasCoarseParent reports whether the patch is a child of a coarser patch on
// the next GMG level, as opposed to being carried through unchanged
func (p *PatchInfo) HasCoarseParent() bool {
	return p.OrthOnParent != OrthantNone
}

// HasChildren reports whether any child id is recorded
func (p *PatchInfo) HasChildren() bool {
	for _, id := range p.ChildIDs {
		if id >= 0 {
			return true
		}
	}
	return false
}

// Center returns the geometric center of the patch
func (p *PatchInfo) Center() []float64 {
	c := make([]float64, p.Dim())
	for i := range c {
		c[i] = p.Starts[i] + 0.5*float64(p.Ns[i])*p.Spacings[i]
	}
	return c
}

// SetPtrs resolves every neighbor reference against the arena
func (p *PatchInfo) SetPtrs(arena Arena) {
	for _, info := range p.Nbrs {
		if info != nil {
			info.SetPtrs(arena)
		}
	}
}

// UpdateRank moves the patch to newRank and rewrites the back-references of
// every locally held neighbor
func (p *PatchInfo) UpdateRank(newRank int, arena Arena) {
	p.Rank = newRank
	for s, info := range p.Nbrs {
		if info != nil {
			info.UpdateRankOnNeighbors(arena, p, Side(s), newRank)
		}
	}
}

// UpdateRemoteRank records that patch id now lives on rank, wherever this
// patch refers to it
func (p *PatchInfo) UpdateRemoteRank(id, rank int) {
	for _, info := range p.Nbrs {
		if info != nil {
			info.UpdateRank(id, rank)
		}
	}
	if p.ParentID == id && p.ParentID != p.ID {
		p.ParentRank = rank
	}
	for i, cid := range p.ChildIDs {
		if cid == id && cid != p.ID {
			p.ChildRanks[i] = rank
		}
	}
}

// Clone returns a deep copy
func (p *PatchInfo) Clone() *PatchInfo {
	c := *p
	c.ChildIDs = append([]int(nil), p.ChildIDs...)
	c.ChildRanks = append([]int(nil), p.ChildRanks...)
	c.Ns = append([]int(nil), p.Ns...)
	c.Starts = append([]float64(nil), p.Starts...)
	c.Spacings = append([]float64(nil), p.Spacings...)
	c.Nbrs = make([]*NbrInfo, len(p.Nbrs))
	for i, info := range p.Nbrs {
		if info != nil {
			c.Nbrs[i] = info.Clone()
		}
	}
	return &c
}

// Serialize writes the patch as a fixed-layout little-endian record. Local
// and global indexes are not part of the record; they belong to the owning
// patch set.
func (p *PatchInfo) Serialize() ([]byte, error) {
	w := &binWriter{buf: &bytes.Buffer{}}
	w.int(p.Dim())
	w.int(p.ID)
	w.int(p.Rank)
	w.int(p.RefineLevel)
	w.int(p.ParentID)
	w.int(p.ParentRank)
	w.int(int(p.OrthOnParent))
	w.int(p.NumGhostCells)
	w.byte(p.Neumann)
	for i := 0; i < p.Dim(); i++ {
		w.int(p.Ns[i])
		w.float(p.Starts[i])
		w.float(p.Spacings[i])
	}
	for i := range p.ChildIDs {
		w.int(p.ChildIDs[i])
		w.int(p.ChildRanks[i])
	}
	for _, info := range p.Nbrs {
		if info == nil {
			w.byte(0)
			continue
		}
		w.byte(1)
		info.write(w)
	}
	if w.err != nil {
		return nil, fmt.Errorf("serialize patch %d: %w", p.ID, w.err)
	}
	return w.buf.Bytes(), nil
}

// Deserialize reads a patch written by Serialize
func Deserialize(b []byte) (*PatchInfo, error) {
	r := &binReader{r: bytes.NewReader(b)}
	p, err := readPatchInfo(r)
	if err != nil {
		return nil, err
	}
	if r.r.Len() != 0 {
		return nil, fmt.Errorf("deserialize patch %d: %d trailing bytes", p.ID, r.r.Len())
	}
	return p, nil
}

// DeserializeStream reads consecutive patch records until b is exhausted
func DeserializeStream(b []byte) ([]*PatchInfo, error) {
	r := &binReader{r: bytes.NewReader(b)}
	var patches []*PatchInfo
	for r.r.Len() > 0 {
		p, err := readPatchInfo(r)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, nil
}

func readPatchInfo(r *binReader) (*PatchInfo, error) {
	dim := r.int()
	if r.err != nil {
		return nil, fmt.Errorf("deserialize patch: %w", r.err)
	}
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("deserialize patch: invalid dimension %d", dim)
	}
	p := NewPatchInfo(dim)
	p.ID = r.int()
	p.Rank = r.int()
	p.RefineLevel = r.int()
	p.ParentID = r.int()
	p.ParentRank = r.int()
	p.OrthOnParent = Orthant(r.int())
	p.NumGhostCells = r.int()
	p.Neumann = r.byte()
	for i := 0; i < dim; i++ {
		p.Ns[i] = r.int()
		p.Starts[i] = r.float()
		p.Spacings[i] = r.float()
	}
	for i := range p.ChildIDs {
		p.ChildIDs[i] = r.int()
		p.ChildRanks[i] = r.int()
	}
	for s := range p.Nbrs {
		if r.byte() == 1 {
			p.Nbrs[s] = readNbrInfo(r)
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("deserialize patch %d: %w", p.ID, r.err)
	}
	return p, nil
}

// Equal compares the serialized fields of two patches
func (p *PatchInfo) Equal(o *PatchInfo) bool {
	if p.Dim() != o.Dim() || p.ID != o.ID || p.Rank != o.Rank || p.RefineLevel != o.RefineLevel ||
		p.ParentID != o.ParentID || p.ParentRank != o.ParentRank || p.OrthOnParent != o.OrthOnParent ||
		p.NumGhostCells != o.NumGhostCells || p.Neumann != o.Neumann {
		return false
	}
	for i := 0; i < p.Dim(); i++ {
		if p.Ns[i] != o.Ns[i] || p.Starts[i] != o.Starts[i] || p.Spacings[i] != o.Spacings[i] {
			return false
		}
	}
	for i := range p.ChildIDs {
		if p.ChildIDs[i] != o.ChildIDs[i] || p.ChildRanks[i] != o.ChildRanks[i] {
			return false
		}
	}
	for s := range p.Nbrs {
		if !p.Nbrs[s].Equal(o.Nbrs[s]) {
			return false
		}
	}
	return true
}
