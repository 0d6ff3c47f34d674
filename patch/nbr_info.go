package patch

import (
	"bytes"
	"fmt"
)

// NbrType tags the variant held by a NbrInfo
type NbrType uint8

const (
	// NbrNormal is a neighbor at the same refinement level
	NbrNormal NbrType = iota
	// NbrCoarse is a neighbor one level coarser
	NbrCoarse
	// NbrFine is a set of 2^(dim-1) neighbors one level finer
	NbrFine
)

func (t NbrType) String() string {
	switch t {
	case NbrNormal:
		return "normal"
	case NbrCoarse:
		return "coarse"
	case NbrFine:
		return "fine"
	}
	return fmt.Sprintf("nbrtype(%d)", uint8(t))
}

// NbrInfo describes what lies across one side of a patch.
//
// Normal and Coarse relations carry one id/rank; Fine relations carry one
// id/rank per fine patch, ordered by the fine patch's orthant on the face.
// LocalIndexes is filled by SetPtrs and is -1 for neighbors not held locally;
// it is never serialized.
type NbrInfo struct {
	Type         NbrType
	IDs          []int
	Ranks        []int
	LocalIndexes []int
	// OrthOnCoarse is the face orthant this patch occupies on the coarse
	// neighbor's face. Only meaningful for NbrCoarse.
	OrthOnCoarse Orthant
}

// NewNormalNbrInfo creates a same-level relation
func NewNormalNbrInfo(id int) *NbrInfo {
	return &NbrInfo{
		Type:         NbrNormal,
		IDs:          []int{id},
		Ranks:        []int{0},
		LocalIndexes: []int{-1},
		OrthOnCoarse: OrthantNone,
	}
}

// NewCoarseNbrInfo creates a relation to a coarser neighbor
func NewCoarseNbrInfo(id int, orthOnCoarse Orthant) *NbrInfo {
	return &NbrInfo{
		Type:         NbrCoarse,
		IDs:          []int{id},
		Ranks:        []int{0},
		LocalIndexes: []int{-1},
		OrthOnCoarse: orthOnCoarse,
	}
}

// NewFineNbrInfo creates a relation to the finer neighbors across a face.
// ids must hold one id per face orthant.
func NewFineNbrInfo(ids []int) *NbrInfo {
	n := len(ids)
	info := &NbrInfo{
		Type:         NbrFine,
		IDs:          append([]int(nil), ids...),
		Ranks:        make([]int, n),
		LocalIndexes: make([]int, n),
		OrthOnCoarse: OrthantNone,
	}
	for i := range info.LocalIndexes {
		info.LocalIndexes[i] = -1
	}
	return info
}

// ID returns the neighbor id of a Normal or Coarse relation
func (n *NbrInfo) ID() int {
	return n.IDs[0]
}

// Rank returns the neighbor rank of a Normal or Coarse relation
func (n *NbrInfo) Rank() int {
	return n.Ranks[0]
}

// NumNbrs is 1 for Normal and Coarse relations and 2^(dim-1) for Fine
func (n *NbrInfo) NumNbrs() int {
	return len(n.IDs)
}

// IsLocal reports whether entry i was resolved to a locally held patch
func (n *NbrInfo) IsLocal(i int) bool {
	return n.LocalIndexes[i] >= 0
}

// UpdateRank sets the rank recorded for neighbor id, reporting whether the
// id was found
func (n *NbrInfo) UpdateRank(id, rank int) bool {
	found := false
	for i, nid := range n.IDs {
		if nid == id {
			n.Ranks[i] = rank
			found = true
		}
	}
	return found
}

// SetPtrs resolves every neighbor id against the locally held patches. Ids
// missing from the arena are left unresolved.
func (n *NbrInfo) SetPtrs(arena Arena) {
	for i, id := range n.IDs {
		n.LocalIndexes[i] = -1
		if p, ok := arena[id]; ok {
			n.LocalIndexes[i] = p.LocalIndex
		}
	}
}

// UpdateRankOnNeighbors writes newRank into the back-reference to self held by
// every locally present neighbor across side s.
func (n *NbrInfo) UpdateRankOnNeighbors(arena Arena, self *PatchInfo, s Side, newRank int) {
	back := s.Opposite()
	for _, id := range n.IDs {
		nbr, ok := arena[id]
		if !ok {
			continue
		}
		if info := nbr.Nbrs[back]; info != nil {
			info.UpdateRank(self.ID, newRank)
		}
	}
}

// Clone returns a deep copy
func (n *NbrInfo) Clone() *NbrInfo {
	c := *n
	c.IDs = append([]int(nil), n.IDs...)
	c.Ranks = append([]int(nil), n.Ranks...)
	c.LocalIndexes = append([]int(nil), n.LocalIndexes...)
	return &c
}

// Equal compares the serialized fields of two relations
func (n *NbrInfo) Equal(o *NbrInfo) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Type != o.Type || n.OrthOnCoarse != o.OrthOnCoarse || len(n.IDs) != len(o.IDs) {
		return false
	}
	for i := range n.IDs {
		if n.IDs[i] != o.IDs[i] || n.Ranks[i] != o.Ranks[i] {
			return false
		}
	}
	return true
}

// Serialize writes the relation as a fixed-layout record.
// Layout: [type(1)] then
//
//	normal: [id(4)][rank(4)]
//	coarse: [id(4)][rank(4)][orth(4)]
//	fine:   [count(4)][ids(4*count)][count(4)][ranks(4*count)]
func (n *NbrInfo) Serialize() ([]byte, error) {
	w := &binWriter{buf: &bytes.Buffer{}}
	n.write(w)
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

func (n *NbrInfo) write(w *binWriter) {
	w.byte(uint8(n.Type))
	switch n.Type {
	case NbrNormal:
		w.int(n.IDs[0])
		w.int(n.Ranks[0])
	case NbrCoarse:
		w.int(n.IDs[0])
		w.int(n.Ranks[0])
		w.int(int(n.OrthOnCoarse))
	case NbrFine:
		w.ints(n.IDs)
		w.ints(n.Ranks)
	default:
		w.err = fmt.Errorf("serialize: unknown neighbor type %d", n.Type)
	}
}

// DeserializeNbrInfo reads a relation written by Serialize
func DeserializeNbrInfo(b []byte) (*NbrInfo, error) {
	r := &binReader{r: bytes.NewReader(b)}
	n := readNbrInfo(r)
	if r.err != nil {
		return nil, fmt.Errorf("deserialize neighbor: %w", r.err)
	}
	return n, nil
}

func readNbrInfo(r *binReader) *NbrInfo {
	t := NbrType(r.byte())
	if r.err != nil {
		return nil
	}
	switch t {
	case NbrNormal:
		n := NewNormalNbrInfo(r.int())
		n.Ranks[0] = r.int()
		return n
	case NbrCoarse:
		id := r.int()
		rank := r.int()
		n := NewCoarseNbrInfo(id, Orthant(r.int()))
		n.Ranks[0] = rank
		return n
	case NbrFine:
		n := NewFineNbrInfo(r.ints())
		ranks := r.ints()
		if r.err == nil && len(ranks) != len(n.IDs) {
			r.err = fmt.Errorf("fine neighbor has %d ids and %d ranks", len(n.IDs), len(ranks))
			return nil
		}
		copy(n.Ranks, ranks)
		return n
	}
	r.err = fmt.Errorf("unknown neighbor type %d", t)
	return nil
}
