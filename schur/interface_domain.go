package schur

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

// InterfaceDomain numbers the interfaces of a patch domain and moves
// interface values between owners and the ranks whose patches touch them.
//
// A local interface vector holds the owned interfaces first, ascending by
// id, followed by the ghost interfaces: those touched by local patches but
// owned by another rank.
type InterfaceDomain struct {
	domain *partitions.Domain
	comm   *comm.Comm
	faceNs []int

	ifaces       []*Interface // owned, ascending id
	ghosts       []IfaceRef   // LocalIndex counts from len(ifaces)
	localIndex   map[int]int
	ghostGlobal  []int
	globalOffset int
	numGlobal    int

	piinfos   []*PatchIfaceInfo // by patch local index
	connector *utils.PatchConnector

	log *logrus.Entry
}

// NewInterfaceDomain enumerates and numbers the interfaces of d. It is
// collective over d's communicator.
func NewInterfaceDomain(d *partitions.Domain) (*InterfaceDomain, error) {
	c := d.Comm()
	dim := d.Dim()
	idom := &InterfaceDomain{
		domain:     d,
		comm:       c,
		faceNs:     append([]int(nil), d.Ns()[1:]...),
		localIndex: make(map[int]int),
		log: logrus.WithFields(logrus.Fields{
			"component": "interface_domain",
			"rank":      c.Rank(),
		}),
	}
	for axis := 0; axis < dim; axis++ {
		if d.Ns()[axis] != d.Ns()[0] {
			return nil, fmt.Errorf("interfaces need square patches, have %v", d.Ns())
		}
	}

	e := NewEnumerator(dim, c.Rank())
	e.EnumerateLocal(d.Patches())
	remote, err := fetchPatches(d, e.OffProc)
	if err != nil {
		return nil, err
	}
	if err = e.Complete(remote); err != nil {
		return nil, fmt.Errorf("enumerate interfaces on rank %d: %w", c.Rank(), err)
	}

	for _, ifaceID := range e.SortedIDs() {
		iface := e.Ifaces[ifaceID]
		iface.LocalIndex = len(idom.ifaces)
		idom.localIndex[ifaceID] = iface.LocalIndex
		idom.ifaces = append(idom.ifaces, iface)
	}
	idom.globalOffset, idom.numGlobal, err = c.ExscanSumInt(len(idom.ifaces))
	if err != nil {
		return nil, fmt.Errorf("number interfaces: %w", err)
	}
	for _, iface := range idom.ifaces {
		iface.GlobalIndex = idom.globalOffset + iface.LocalIndex
	}

	idom.piinfos = make([]*PatchIfaceInfo, d.NumLocalPatches())
	ghostRank := make(map[int]int)
	for i, p := range d.Patches() {
		pi := NewPatchIfaceInfo(p)
		idom.piinfos[i] = pi
		for _, si := range pi.Sides {
			if si == nil {
				continue
			}
			for _, r := range si.Refs {
				if r.Rank != c.Rank() {
					ghostRank[r.ID] = r.Rank
				}
			}
		}
	}
	ghostIDs := make([]int, 0, len(ghostRank))
	for gid := range ghostRank {
		ghostIDs = append(ghostIDs, gid)
	}
	sort.Ints(ghostIDs)
	requests := make([]utils.PatchRequest, len(ghostIDs))
	for i, gid := range ghostIDs {
		ref := IfaceRef{ID: gid, Rank: ghostRank[gid], LocalIndex: len(idom.ifaces) + i}
		idom.ghosts = append(idom.ghosts, ref)
		idom.localIndex[gid] = ref.LocalIndex
		requests[i] = utils.PatchRequest{ID: gid, Rank: ref.Rank, DstIndex: ref.LocalIndex}
	}
	for _, pi := range idom.piinfos {
		pi.setLocalIndexes(idom.localIndex)
	}

	if err = idom.exchangeGhostGlobals(); err != nil {
		return nil, err
	}
	idom.connector, err = utils.NewPatchConnector(c, idom.IfaceStride(), len(idom.ifaces),
		len(idom.ifaces)+len(idom.ghosts), requests, idom.ownedIndex)
	if err != nil {
		return nil, fmt.Errorf("connect ghost interfaces: %w", err)
	}

	idom.log.WithFields(logrus.Fields{
		"owned":    len(idom.ifaces),
		"ghosts":   len(idom.ghosts),
		"off_proc": len(e.OffProc),
	}).Debug("enumerated interfaces")
	return idom, nil
}

// fetchPatches returns copies of the remote patches in want. Collective.
func fetchPatches(d *partitions.Domain, want []OffProcPatch) ([]*patch.PatchInfo, error) {
	c := d.Comm()
	ids := make([][]int, c.Size())
	for _, w := range want {
		ids[w.Rank] = append(ids[w.Rank], w.ID)
	}
	asked, err := comm.Alltoall(c, ids)
	if err != nil {
		return nil, fmt.Errorf("request remote patches: %w", err)
	}
	out := make([][]byte, c.Size())
	for r, rids := range asked {
		if len(rids) == 0 {
			continue
		}
		if out[r], err = d.Pack(r, rids); err != nil {
			return nil, err
		}
	}
	in, err := comm.Alltoall(c, out)
	if err != nil {
		return nil, fmt.Errorf("send remote patches: %w", err)
	}
	var remote []*patch.PatchInfo
	for _, b := range in {
		ps, err := patch.DeserializeStream(b)
		if err != nil {
			return nil, fmt.Errorf("receive remote patches: %w", err)
		}
		remote = append(remote, ps...)
	}
	return remote, nil
}

func (idom *InterfaceDomain) exchangeGhostGlobals() error {
	size := idom.comm.Size()
	ask := make([][]int, size)
	for _, g := range idom.ghosts {
		ask[g.Rank] = append(ask[g.Rank], g.ID)
	}
	asked, err := comm.Alltoall(idom.comm, ask)
	if err != nil {
		return fmt.Errorf("request ghost interface indices: %w", err)
	}
	answer := make([][]int, size)
	for r, ids := range asked {
		for _, gid := range ids {
			i, ok := idom.ownedIndex(gid)
			if !ok {
				return fmt.Errorf("rank %d asked for interface %d which rank %d does not own", r, gid, idom.comm.Rank())
			}
			answer[r] = append(answer[r], idom.ifaces[i].GlobalIndex)
		}
	}
	answered, err := comm.Alltoall(idom.comm, answer)
	if err != nil {
		return fmt.Errorf("send ghost interface indices: %w", err)
	}
	idom.ghostGlobal = make([]int, len(idom.ghosts))
	next := make([]int, size)
	for i, g := range idom.ghosts {
		idom.ghostGlobal[i] = answered[g.Rank][next[g.Rank]]
		next[g.Rank]++
	}
	return nil
}

// ownedIndex returns the local index of an owned interface
func (idom *InterfaceDomain) ownedIndex(ifaceID int) (int, bool) {
	i, ok := idom.localIndex[ifaceID]
	if !ok || i >= len(idom.ifaces) {
		return -1, false
	}
	return i, true
}

// Domain returns the patch domain the interfaces belong to
func (idom *InterfaceDomain) Domain() *partitions.Domain { return idom.domain }

// FaceNs returns the values per axis stored for each interface
func (idom *InterfaceDomain) FaceNs() []int { return idom.faceNs }

// IfaceStride returns the values stored per interface
func (idom *InterfaceDomain) IfaceStride() int {
	stride := 1
	for _, n := range idom.faceNs {
		stride *= n
	}
	return stride
}

// NumLocalIfaces returns the number of owned interfaces
func (idom *InterfaceDomain) NumLocalIfaces() int { return len(idom.ifaces) }

// NumGhostIfaces returns the number of interfaces owned elsewhere and
// touched by local patches
func (idom *InterfaceDomain) NumGhostIfaces() int { return len(idom.ghosts) }

// NumGlobalIfaces returns the number of interfaces over all ranks
func (idom *InterfaceDomain) NumGlobalIfaces() int { return idom.numGlobal }

// Ifaces returns the owned interfaces in local index order
func (idom *InterfaceDomain) Ifaces() []*Interface { return idom.ifaces }

// Iface returns the owned interface with ifaceID, or nil
func (idom *InterfaceDomain) Iface(ifaceID int) *Interface {
	if i, ok := idom.ownedIndex(ifaceID); ok {
		return idom.ifaces[i]
	}
	return nil
}

// PatchIfaceInfos returns the interface info of every local patch, in patch
// local index order
func (idom *InterfaceDomain) PatchIfaceInfos() []*PatchIfaceInfo { return idom.piinfos }

// LocalIndex returns the index of ifaceID in a local interface vector
func (idom *InterfaceDomain) LocalIndex(ifaceID int) (int, bool) {
	i, ok := idom.localIndex[ifaceID]
	return i, ok
}

// GlobalIndex returns the global index of an owned or ghost interface
func (idom *InterfaceDomain) GlobalIndex(ifaceID int) (int, bool) {
	i, ok := idom.localIndex[ifaceID]
	switch {
	case !ok:
		return -1, false
	case i < len(idom.ifaces):
		return idom.ifaces[i].GlobalIndex, true
	default:
		return idom.ghostGlobal[i-len(idom.ifaces)], true
	}
}

// NewVector allocates a distributed vector over the owned interfaces
func (idom *InterfaceDomain) NewVector() *vector.Vector {
	return vector.New(idom.comm, idom.faceNs, 0, len(idom.ifaces))
}

// NewLocalVector allocates a vector over the owned and ghost interfaces.
// Its reductions count ghosts twice and are not meaningful.
func (idom *InterfaceDomain) NewLocalVector() *vector.Vector {
	return vector.New(idom.comm, idom.faceNs, 0, len(idom.ifaces)+len(idom.ghosts))
}

func (idom *InterfaceDomain) checkPair(owned, local *vector.Vector) error {
	if owned.NumLocalPatches() != len(idom.ifaces) || owned.PatchStride() != idom.IfaceStride() {
		return fmt.Errorf("interface vector has %d interfaces, domain owns %d", owned.NumLocalPatches(), len(idom.ifaces))
	}
	if local.NumLocalPatches() != len(idom.ifaces)+len(idom.ghosts) || local.PatchStride() != idom.IfaceStride() {
		return fmt.Errorf("local interface vector has %d interfaces, expected %d",
			local.NumLocalPatches(), len(idom.ifaces)+len(idom.ghosts))
	}
	return nil
}

// ScatterForward copies owned into the owned part of local and fills the
// ghosts from their owners. Collective.
func (idom *InterfaceDomain) ScatterForward(owned, local *vector.Vector) error {
	if err := idom.checkPair(owned, local); err != nil {
		return err
	}
	copy(local.Data(), owned.Data())
	return idom.connector.Forward(owned.Data(), local.Data())
}

// ScatterReverse sets owned to the owned part of local plus every ghost
// copy held by other ranks. Collective.
func (idom *InterfaceDomain) ScatterReverse(local, owned *vector.Vector) error {
	if err := idom.checkPair(owned, local); err != nil {
		return err
	}
	copy(owned.Data(), local.Data()[:len(owned.Data())])
	return idom.connector.Reverse(local.Data(), owned.Data())
}
