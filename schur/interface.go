package schur

import (
	"fmt"
	"sort"

	"github.com/notargets/DDKernel/patch"
)

// Participant is one patch side contributing to an interface
type Participant struct {
	PatchID int
	Rank    int
	Side    patch.Side
	Type    IfaceType
}

// Interface is a shared face between patches. The owner is the patch side
// the id was derived from; the interface lives on the owner's rank.
type Interface struct {
	ID           int
	Rank         int
	LocalIndex   int
	GlobalIndex  int
	Participants []Participant
}

// NumExpected is the participant count of a complete interface: the coarse
// side plus every fine side for a coarse face, two otherwise
func (i *Interface) NumExpected(dim int) int {
	for _, p := range i.Participants {
		if p.Type.Kind == CoarseToCoarse || p.Type.Kind == FineToCoarse {
			return 1 + patch.NumOrthants(dim-1)
		}
	}
	return 2
}

// Participant returns the participation of patchID, if any
func (i *Interface) Participant(patchID int) (Participant, bool) {
	for _, p := range i.Participants {
		if p.PatchID == patchID {
			return p, true
		}
	}
	return Participant{}, false
}

func (i *Interface) add(p Participant) {
	for _, q := range i.Participants {
		if q.PatchID == p.PatchID && q.Side == p.Side {
			return
		}
	}
	i.Participants = append(i.Participants, p)
}

// OffProcPatch is a patch on another rank whose contributions are needed to
// complete a locally owned interface
type OffProcPatch struct {
	ID   int
	Rank int
}

// Enumerator assigns patch sides to interfaces in two passes. EnumerateLocal
// sees only the local patches and lists the remote neighbors it still needs;
// Complete adds those remote patches once they have been fetched.
type Enumerator struct {
	dim  int
	rank int

	// Ifaces holds every interface owned by this rank, keyed by id
	Ifaces map[int]*Interface
	// OffProc is sorted by id without duplicates
	OffProc []OffProcPatch
}

// NewEnumerator returns an empty enumerator for rank
func NewEnumerator(dim, rank int) *Enumerator {
	return &Enumerator{
		dim:    dim,
		rank:   rank,
		Ifaces: make(map[int]*Interface),
	}
}

func (e *Enumerator) addContributions(p *patch.PatchInfo) {
	for _, c := range contributions(p) {
		if c.ownerRank != e.rank {
			continue
		}
		iface := e.Ifaces[c.ifaceID]
		if iface == nil {
			iface = &Interface{ID: c.ifaceID, Rank: e.rank, LocalIndex: -1, GlobalIndex: -1}
			e.Ifaces[c.ifaceID] = iface
		}
		iface.add(Participant{PatchID: p.ID, Rank: p.Rank, Side: c.side, Type: c.typ})
	}
}

// EnumerateLocal is the local pass over the patches owned by this rank
func (e *Enumerator) EnumerateLocal(patches []*patch.PatchInfo) {
	requested := make(map[int]int)
	for _, p := range patches {
		e.addContributions(p)
		for _, s := range patch.SidesFor(e.dim) {
			info := p.Nbrs[s]
			if info == nil {
				continue
			}
			// a remote neighbor contributes to an interface we own unless it
			// is a same level neighbor with the smaller id
			if info.Type == patch.NbrNormal && info.ID() < p.ID {
				continue
			}
			for i, id := range info.IDs {
				if info.Ranks[i] != e.rank {
					requested[id] = info.Ranks[i]
				}
			}
		}
	}
	for id, rank := range requested {
		e.OffProc = append(e.OffProc, OffProcPatch{ID: id, Rank: rank})
	}
	sort.Slice(e.OffProc, func(i, j int) bool { return e.OffProc[i].ID < e.OffProc[j].ID })
}

// Complete adds the contributions of the fetched remote patches and checks
// that every owned interface has all of its participants
func (e *Enumerator) Complete(remote []*patch.PatchInfo) error {
	for _, p := range remote {
		e.addContributions(p)
	}
	for _, id := range e.SortedIDs() {
		iface := e.Ifaces[id]
		if want := iface.NumExpected(e.dim); len(iface.Participants) != want {
			return fmt.Errorf("interface %d has %d participants, expected %d", id, len(iface.Participants), want)
		}
	}
	return nil
}

// SortedIDs returns the owned interface ids in ascending order
func (e *Enumerator) SortedIDs() []int {
	ids := make([]int, 0, len(e.Ifaces))
	for id := range e.Ifaces {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
