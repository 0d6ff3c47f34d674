// Package gmg implements the geometric multigrid preconditioner: the
// communication between two refinement levels, the transfer operators built
// on it and the V-cycle.
package gmg

import (
	"fmt"
	"sort"

	"github.com/notargets/DDKernel/comm"
	"github.com/notargets/DDKernel/partitions"
	"github.com/notargets/DDKernel/patch"
	"github.com/notargets/DDKernel/utils"
	"github.com/notargets/DDKernel/vector"
	"github.com/sirupsen/logrus"
)

// ParentEntry pairs a fine patch with the storage of its parent. Index is a
// local index of the coarse domain for PatchesWithLocalParent and an index
// into the ghost vector for PatchesWithGhostParent.
type ParentEntry struct {
	Patch     *patch.PatchInfo
	FineIndex int
	Index     int
}

type ilcState int

const (
	idle ilcState = iota
	sending
	receiving
)

func (s ilcState) String() string {
	switch s {
	case sending:
		return "sending"
	case receiving:
		return "receiving"
	default:
		return "idle"
	}
}

// InterLevelComm moves whole patches between a coarse level and the copies
// of coarse patches held on the ranks owning their children. Copies of
// parents owned by other ranks live in a ghost vector.
//
// Sends and gets are split into Start and Finish calls, which must pair up
// on the same vectors with nothing else in between.
type InterLevelComm struct {
	coarse *partitions.Domain
	fine   *partitions.Domain

	localParents []ParentEntry
	ghostParents []ParentEntry
	ghostIDs     []int

	connector *utils.PatchConnector

	state       ilcState
	curCoarse   *vector.Vector
	curGhost    *vector.Vector
	patchStride int

	log *logrus.Entry
}

// NewInterLevelComm pairs every fine patch with its parent. It is collective
// over the ranks of both domains, which must share a communicator. Parent
// ranks are recorded on the fine patches.
func NewInterLevelComm(coarse, fine *partitions.Domain) (*InterLevelComm, error) {
	c := fine.Comm()
	if coarse.Comm() != c {
		return nil, fmt.Errorf("coarse and fine domains use different communicators")
	}
	if coarse.NumGhostCells() != fine.NumGhostCells() || len(coarse.Ns()) != len(fine.Ns()) {
		return nil, fmt.Errorf("coarse and fine domains have different patch layouts")
	}
	for i, n := range coarse.Ns() {
		if fine.Ns()[i] != n {
			return nil, fmt.Errorf("coarse and fine domains have different patch layouts")
		}
	}

	ownedIDs := make([]int, 0, coarse.NumLocalPatches())
	for _, p := range coarse.Patches() {
		ownedIDs = append(ownedIDs, p.ID)
	}
	all, err := comm.Allgather(c, ownedIDs)
	if err != nil {
		return nil, fmt.Errorf("gather coarse owners: %w", err)
	}
	owner := make(map[int]int)
	for r, ids := range all {
		for _, id := range ids {
			owner[id] = r
		}
	}

	ilc := &InterLevelComm{
		coarse: coarse,
		fine:   fine,
		log: logrus.WithFields(logrus.Fields{
			"component": "ilc",
			"rank":      c.Rank(),
		}),
	}

	ghostIndex := make(map[int]int)
	for i, p := range fine.Patches() {
		r, ok := owner[p.ParentID]
		if !ok {
			return nil, fmt.Errorf("parent %d of patch %d is not on the coarse level", p.ParentID, p.ID)
		}
		p.ParentRank = r
		if r == c.Rank() {
			idx, _ := coarse.LocalIndex(p.ParentID)
			ilc.localParents = append(ilc.localParents, ParentEntry{Patch: p, FineIndex: i, Index: idx})
			continue
		}
		if _, seen := ghostIndex[p.ParentID]; !seen {
			ghostIndex[p.ParentID] = -1
			ilc.ghostIDs = append(ilc.ghostIDs, p.ParentID)
		}
		ilc.ghostParents = append(ilc.ghostParents, ParentEntry{Patch: p, FineIndex: i})
	}
	sort.Ints(ilc.ghostIDs)
	requests := make([]utils.PatchRequest, len(ilc.ghostIDs))
	for i, id := range ilc.ghostIDs {
		ghostIndex[id] = i
		requests[i] = utils.PatchRequest{ID: id, Rank: owner[id], DstIndex: i}
	}
	for i := range ilc.ghostParents {
		ilc.ghostParents[i].Index = ghostIndex[ilc.ghostParents[i].Patch.ParentID]
	}

	proto := coarse.NewVector()
	ilc.patchStride = proto.PatchStride()
	ilc.connector, err = utils.NewPatchConnector(c, ilc.patchStride, coarse.NumLocalPatches(),
		len(ilc.ghostIDs), requests, coarse.LocalIndex)
	if err != nil {
		return nil, fmt.Errorf("connect ghost parents: %w", err)
	}

	ilc.log.WithFields(logrus.Fields{
		"local_parents": len(ilc.localParents),
		"ghost_parents": len(ilc.ghostParents),
		"ghosts":        len(ilc.ghostIDs),
	}).Debug("built inter-level communicator")
	return ilc, nil
}

// Coarse returns the coarse domain
func (ilc *InterLevelComm) Coarse() *partitions.Domain { return ilc.coarse }

// Fine returns the fine domain
func (ilc *InterLevelComm) Fine() *partitions.Domain { return ilc.fine }

// PatchesWithLocalParent lists the fine patches whose parent is owned here
func (ilc *InterLevelComm) PatchesWithLocalParent() []ParentEntry { return ilc.localParents }

// PatchesWithGhostParent lists the fine patches whose parent is owned by
// another rank
func (ilc *InterLevelComm) PatchesWithGhostParent() []ParentEntry { return ilc.ghostParents }

// GhostIDs returns the ids of the parents held in the ghost vector, in
// ghost index order
func (ilc *InterLevelComm) GhostIDs() []int { return ilc.ghostIDs }

// NewGhostVector allocates a zeroed vector with one patch per ghost parent
func (ilc *InterLevelComm) NewGhostVector() *vector.Vector {
	return vector.New(ilc.coarse.Comm(), ilc.coarse.Ns(), ilc.coarse.NumGhostCells(), len(ilc.ghostIDs))
}

func (ilc *InterLevelComm) checkVectors(op string, coarse, ghost *vector.Vector) error {
	if coarse.NumLocalPatches() != ilc.coarse.NumLocalPatches() || coarse.PatchStride() != ilc.patchStride {
		return fmt.Errorf("%s: vector does not match the coarse domain", op)
	}
	if ghost.NumLocalPatches() != len(ilc.ghostIDs) || ghost.PatchStride() != ilc.patchStride {
		return fmt.Errorf("%s: vector does not match the ghost layout", op)
	}
	return nil
}

func (ilc *InterLevelComm) start(op string, next ilcState, coarse, ghost *vector.Vector) error {
	if ilc.state != idle {
		return utils.NewProtocolError(op, "communication already %s", ilc.state)
	}
	if err := ilc.checkVectors(op, coarse, ghost); err != nil {
		return err
	}
	ilc.state = next
	ilc.curCoarse = coarse
	ilc.curGhost = ghost
	return nil
}

func (ilc *InterLevelComm) finish(op string, want ilcState, coarse, ghost *vector.Vector) error {
	if ilc.state != want {
		return utils.NewProtocolError(op, "expected state %s, communication is %s", want, ilc.state)
	}
	if coarse != ilc.curCoarse || ghost != ilc.curGhost {
		return utils.NewProtocolError(op, "vectors differ from the ones passed to start")
	}
	ilc.state = idle
	ilc.curCoarse = nil
	ilc.curGhost = nil
	return nil
}

// SendGhostPatchesStart begins adding the ghost patches into their owners
// in coarse. Local work may run before the matching Finish.
func (ilc *InterLevelComm) SendGhostPatchesStart(coarse, ghost *vector.Vector) error {
	if err := ilc.start("SendGhostPatchesStart", sending, coarse, ghost); err != nil {
		return err
	}
	return ilc.connector.ReverseStart(ghost.Data(), coarse.Data())
}

// SendGhostPatchesFinish completes the send begun on the same vectors
func (ilc *InterLevelComm) SendGhostPatchesFinish(coarse, ghost *vector.Vector) error {
	if err := ilc.finish("SendGhostPatchesFinish", sending, coarse, ghost); err != nil {
		return err
	}
	return ilc.connector.ReverseFinish(coarse.Data())
}

// GetGhostPatchesStart begins copying the owners' values from coarse into
// the ghost patches
func (ilc *InterLevelComm) GetGhostPatchesStart(coarse, ghost *vector.Vector) error {
	if err := ilc.start("GetGhostPatchesStart", receiving, coarse, ghost); err != nil {
		return err
	}
	return ilc.connector.ForwardStart(coarse.Data(), ghost.Data())
}

// GetGhostPatchesFinish completes the get begun on the same vectors
func (ilc *InterLevelComm) GetGhostPatchesFinish(coarse, ghost *vector.Vector) error {
	if err := ilc.finish("GetGhostPatchesFinish", receiving, coarse, ghost); err != nil {
		return err
	}
	return ilc.connector.ForwardFinish(ghost.Data())
}
