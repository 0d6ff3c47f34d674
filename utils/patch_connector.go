package utils

import (
	"fmt"
	"sort"

	"github.com/notargets/DDKernel/comm"
)

// PatchConnector manages pick and place indices for moving whole patches
// between a source vector, whose patches are owned by various ranks, and a
// destination vector holding copies of some of them.
//
// A forward scatter copies owned patches into their copies. A reverse scatter
// adds the copies back into their owners.
type PatchConnector struct {
	Rank        int
	NumRanks    int
	PatchStride int // values per patch, ghosts included

	NumSrcPatches int
	NumDstPatches int

	// Pick/Place indices per peer rank
	PickIndices  []PickBuffer  // [targetRank] source patches to send
	PlaceIndices []PlaceBuffer // [sourceRank] destination patches to fill

	comm       *comm.Comm
	forwardTag int
	reverseTag int
}

// PickBuffer contains the source patch indices sent to one rank
type PickBuffer struct {
	Indices    []int
	TargetRank int
}

// PlaceBuffer contains the destination patch indices filled from one rank
type PlaceBuffer struct {
	Indices    []int
	SourceRank int
}

// PatchRequest asks for the patch with ID, owned by Rank, to be connected to
// destination patch DstIndex
type PatchRequest struct {
	ID       int
	Rank     int
	DstIndex int
}

// NewPatchConnector builds the connector collectively. Every rank passes the
// patches it wants and a lookup from patch id to its own source index; owners
// learn who needs their patches through one all-to-all exchange.
func NewPatchConnector(c *comm.Comm, patchStride, numSrcPatches, numDstPatches int,
	requests []PatchRequest, lookup func(id int) (int, bool)) (*PatchConnector, error) {
	if patchStride <= 0 {
		return nil, fmt.Errorf("invalid patch stride %d", patchStride)
	}

	pc := &PatchConnector{
		Rank:          c.Rank(),
		NumRanks:      c.Size(),
		PatchStride:   patchStride,
		NumSrcPatches: numSrcPatches,
		NumDstPatches: numDstPatches,
		comm:          c,
		forwardTag:    c.NewTag(),
		reverseTag:    c.NewTag(),
	}
	pc.initializeBuffers()

	if err := pc.BuildIndices(requests, lookup); err != nil {
		return nil, err
	}
	return pc, nil
}

// initializeBuffers creates empty pick and place structures
func (pc *PatchConnector) initializeBuffers() {
	pc.PickIndices = make([]PickBuffer, pc.NumRanks)
	pc.PlaceIndices = make([]PlaceBuffer, pc.NumRanks)
	for r := 0; r < pc.NumRanks; r++ {
		pc.PickIndices[r] = PickBuffer{Indices: make([]int, 0), TargetRank: r}
		pc.PlaceIndices[r] = PlaceBuffer{Indices: make([]int, 0), SourceRank: r}
	}
}

// BuildIndices constructs pick and place indices from this rank's requests
func (pc *PatchConnector) BuildIndices(requests []PatchRequest, lookup func(id int) (int, bool)) error {
	sorted := append([]PatchRequest(nil), requests...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].ID < sorted[j].ID
	})

	// ids wanted from each owner, in the order we will place them
	wanted := make([][]int, pc.NumRanks)
	for _, req := range sorted {
		if req.Rank < 0 || req.Rank >= pc.NumRanks {
			return fmt.Errorf("patch %d requested from invalid rank %d", req.ID, req.Rank)
		}
		wanted[req.Rank] = append(wanted[req.Rank], req.ID)
		pc.PlaceIndices[req.Rank].Indices = append(pc.PlaceIndices[req.Rank].Indices, req.DstIndex)
	}

	incoming, err := comm.Alltoall(pc.comm, wanted)
	if err != nil {
		return fmt.Errorf("exchange patch requests: %w", err)
	}

	for r, ids := range incoming {
		for _, id := range ids {
			idx, ok := lookup(id)
			if !ok {
				return fmt.Errorf("rank %d requested patch %d which rank %d does not own", r, id, pc.Rank)
			}
			pc.PickIndices[r].Indices = append(pc.PickIndices[r].Indices, idx)
		}
	}

	return pc.Verify()
}

// GetPickIndices returns the source patches sent to target
func (pc *PatchConnector) GetPickIndices(target int) []int {
	if target < 0 || target >= pc.NumRanks {
		return nil
	}
	return pc.PickIndices[target].Indices
}

// GetPlaceIndices returns the destination patches filled from source
func (pc *PatchConnector) GetPlaceIndices(source int) []int {
	if source < 0 || source >= pc.NumRanks {
		return nil
	}
	return pc.PlaceIndices[source].Indices
}

// NumRemotePlaces counts destination patches filled from other ranks
func (pc *PatchConnector) NumRemotePlaces() int {
	n := 0
	for r, buf := range pc.PlaceIndices {
		if r != pc.Rank {
			n += len(buf.Indices)
		}
	}
	return n
}

// Verify checks index validity and conservation properties
func (pc *PatchConnector) Verify() error {
	// Verify 1: Local validity - all indices are within bounds
	for r := 0; r < pc.NumRanks; r++ {
		for _, idx := range pc.PickIndices[r].Indices {
			if idx < 0 || idx >= pc.NumSrcPatches {
				return fmt.Errorf("invalid pick index %d for rank %d (max %d)", idx, r, pc.NumSrcPatches-1)
			}
		}
		for _, idx := range pc.PlaceIndices[r].Indices {
			if idx < 0 || idx >= pc.NumDstPatches {
				return fmt.Errorf("invalid place index %d from rank %d (max %d)", idx, r, pc.NumDstPatches-1)
			}
		}
	}

	// Verify 2: Correspondence - a rank talking to itself picks what it places
	self := pc.Rank
	if len(pc.PickIndices[self].Indices) != len(pc.PlaceIndices[self].Indices) {
		return fmt.Errorf("length mismatch: pick[%d]=%d, place[%d]=%d",
			self, len(pc.PickIndices[self].Indices), self, len(pc.PlaceIndices[self].Indices))
	}

	// Verify 3: Conservation - every destination patch is placed at most once
	placed := make(map[int]int)
	for r := 0; r < pc.NumRanks; r++ {
		for _, idx := range pc.PlaceIndices[r].Indices {
			if prev, dup := placed[idx]; dup {
				return fmt.Errorf("conservation error: destination patch %d placed from ranks %d and %d",
					idx, prev, r)
			}
			placed[idx] = r
		}
	}

	return nil
}

func (pc *PatchConnector) checkLengths(src, dst []float64) error {
	if len(src) < pc.NumSrcPatches*pc.PatchStride {
		return fmt.Errorf("source holds %d values, need %d", len(src), pc.NumSrcPatches*pc.PatchStride)
	}
	if len(dst) < pc.NumDstPatches*pc.PatchStride {
		return fmt.Errorf("destination holds %d values, need %d", len(dst), pc.NumDstPatches*pc.PatchStride)
	}
	return nil
}

func (pc *PatchConnector) patch(data []float64, idx int) []float64 {
	return data[idx*pc.PatchStride : (idx+1)*pc.PatchStride]
}

func (pc *PatchConnector) pack(data []float64, indices []int) []float64 {
	buf := make([]float64, 0, len(indices)*pc.PatchStride)
	for _, idx := range indices {
		buf = append(buf, pc.patch(data, idx)...)
	}
	return buf
}

// ForwardStart sends owned patches of src to every rank holding a copy and
// fills local copies in dst
func (pc *PatchConnector) ForwardStart(src, dst []float64) error {
	if err := pc.checkLengths(src, dst); err != nil {
		return err
	}
	for r := 0; r < pc.NumRanks; r++ {
		if r == pc.Rank || len(pc.PickIndices[r].Indices) == 0 {
			continue
		}
		pc.comm.Send(r, pc.forwardTag, pc.pack(src, pc.PickIndices[r].Indices))
	}
	picks := pc.PickIndices[pc.Rank].Indices
	for i, idx := range pc.PlaceIndices[pc.Rank].Indices {
		copy(pc.patch(dst, idx), pc.patch(src, picks[i]))
	}
	return nil
}

// ForwardFinish receives remote patches into dst
func (pc *PatchConnector) ForwardFinish(dst []float64) error {
	return pc.receive(pc.forwardTag, dst, pc.placeIndices, false)
}

// ReverseStart sends the copies in dst back to their owners and adds local
// copies into src
func (pc *PatchConnector) ReverseStart(dst, src []float64) error {
	if err := pc.checkLengths(src, dst); err != nil {
		return err
	}
	for r := 0; r < pc.NumRanks; r++ {
		if r == pc.Rank || len(pc.PlaceIndices[r].Indices) == 0 {
			continue
		}
		pc.comm.Send(r, pc.reverseTag, pc.pack(dst, pc.PlaceIndices[r].Indices))
	}
	places := pc.PlaceIndices[pc.Rank].Indices
	for i, idx := range pc.PickIndices[pc.Rank].Indices {
		addTo(pc.patch(src, idx), pc.patch(dst, places[i]))
	}
	return nil
}

// ReverseFinish receives remote copies and adds them into src
func (pc *PatchConnector) ReverseFinish(src []float64) error {
	return pc.receive(pc.reverseTag, src, pc.pickIndices, true)
}

// Forward runs ForwardStart and ForwardFinish
func (pc *PatchConnector) Forward(src, dst []float64) error {
	if err := pc.ForwardStart(src, dst); err != nil {
		return err
	}
	return pc.ForwardFinish(dst)
}

// Reverse runs ReverseStart and ReverseFinish
func (pc *PatchConnector) Reverse(dst, src []float64) error {
	if err := pc.ReverseStart(dst, src); err != nil {
		return err
	}
	return pc.ReverseFinish(src)
}

func (pc *PatchConnector) placeIndices(r int) []int { return pc.PlaceIndices[r].Indices }

func (pc *PatchConnector) pickIndices(r int) []int { return pc.PickIndices[r].Indices }

func (pc *PatchConnector) receive(tag int, data []float64, indices func(r int) []int, add bool) error {
	for r := 0; r < pc.NumRanks; r++ {
		idxs := indices(r)
		if r == pc.Rank || len(idxs) == 0 {
			continue
		}
		buf, err := pc.comm.RecvFloats(r, tag)
		if err != nil {
			return fmt.Errorf("receive patches from rank %d: %w", r, err)
		}
		if len(buf) != len(idxs)*pc.PatchStride {
			return fmt.Errorf("rank %d sent %d values, expected %d", r, len(buf), len(idxs)*pc.PatchStride)
		}
		for i, idx := range idxs {
			chunk := buf[i*pc.PatchStride : (i+1)*pc.PatchStride]
			if add {
				addTo(pc.patch(data, idx), chunk)
			} else {
				copy(pc.patch(data, idx), chunk)
			}
		}
	}
	return nil
}

func addTo(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}
