package partitions

import (
	"fmt"
	"sort"

	"github.com/notargets/DDKernel/comm"
	"github.com/notargets/DDKernel/patch"
	"github.com/notargets/DDKernel/vector"
	"github.com/sirupsen/logrus"
)

// Domain is the set of patches owned by one rank within a distributed
// refinement level. Patches are held in an id-keyed arena; local indices
// follow ascending id and global indices add an exclusive scan over ranks.
type Domain struct {
	comm     *comm.Comm
	ns       []int
	numGhost int

	arena        patch.Arena
	patches      []*patch.PatchInfo // ascending id
	localIndex   map[int]int
	globalOffset int
	numGlobal    int

	log *logrus.Entry
}

// NewDomain builds the local part of a patch set. It is collective: every
// rank of c must call it. Every patch must have ns cells per axis and be
// marked as owned by this rank.
func NewDomain(c *comm.Comm, patches []*patch.PatchInfo, ns []int, numGhost int) (*Domain, error) {
	d := &Domain{
		comm:     c,
		ns:       append([]int(nil), ns...),
		numGhost: numGhost,
		arena:    make(patch.Arena, len(patches)),
		log: logrus.WithFields(logrus.Fields{
			"component": "domain",
			"rank":      c.Rank(),
		}),
	}
	for _, p := range patches {
		if err := d.checkPatch(p); err != nil {
			return nil, err
		}
		if _, dup := d.arena[p.ID]; dup {
			return nil, fmt.Errorf("duplicate patch id %d", p.ID)
		}
		d.arena[p.ID] = p
	}
	if err := d.reindex(); err != nil {
		return nil, err
	}
	return d, nil
}

// SetLogger replaces the domain's log entry
func (d *Domain) SetLogger(log *logrus.Entry) {
	d.log = log.WithFields(logrus.Fields{"component": "domain", "rank": d.comm.Rank()})
}

func (d *Domain) checkPatch(p *patch.PatchInfo) error {
	if p.Dim() != len(d.ns) {
		return fmt.Errorf("patch %d has dimension %d, domain has %d", p.ID, p.Dim(), len(d.ns))
	}
	for i, n := range d.ns {
		if p.Ns[i] != n {
			return fmt.Errorf("patch %d has %v cells, domain has %v", p.ID, p.Ns, d.ns)
		}
	}
	if p.Rank != d.comm.Rank() {
		return fmt.Errorf("patch %d belongs to rank %d, not %d", p.ID, p.Rank, d.comm.Rank())
	}
	return nil
}

// reindex rebuilds local and global indices and re-resolves neighbor
// references against the arena
func (d *Domain) reindex() error {
	ids := make([]int, 0, len(d.arena))
	for id := range d.arena {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	offset, total, err := d.comm.ExscanSumInt(len(ids))
	if err != nil {
		return fmt.Errorf("number patches: %w", err)
	}
	d.globalOffset = offset
	d.numGlobal = total

	d.patches = make([]*patch.PatchInfo, len(ids))
	d.localIndex = make(map[int]int, len(ids))
	for i, id := range ids {
		p := d.arena[id]
		p.LocalIndex = i
		p.GlobalIndex = offset + i
		d.patches[i] = p
		d.localIndex[id] = i
	}
	for _, p := range d.patches {
		p.SetPtrs(d.arena)
	}
	return nil
}

// Comm returns the communicator the domain is distributed over
func (d *Domain) Comm() *comm.Comm { return d.comm }

// Ns returns the cells per axis of every patch
func (d *Domain) Ns() []int { return d.ns }

// Dim returns the spatial dimension
func (d *Domain) Dim() int { return len(d.ns) }

// NumGhostCells returns the ghost width of every patch
func (d *Domain) NumGhostCells() int { return d.numGhost }

// NumLocalPatches returns the number of patches owned by this rank
func (d *Domain) NumLocalPatches() int { return len(d.patches) }

// NumGlobalPatches returns the number of patches over all ranks
func (d *Domain) NumGlobalPatches() int { return d.numGlobal }

// NumLocalCells returns the number of owned cells on this rank
func (d *Domain) NumLocalCells() int {
	cells := len(d.patches)
	for _, n := range d.ns {
		cells *= n
	}
	return cells
}

// Patches returns the local patches in local index order
func (d *Domain) Patches() []*patch.PatchInfo { return d.patches }

// Arena returns the id-keyed store of local patches
func (d *Domain) Arena() patch.Arena { return d.arena }

// Patch returns the local patch with id, or nil
func (d *Domain) Patch(id int) *patch.PatchInfo { return d.arena[id] }

// LocalIndex returns the local index of patch id
func (d *Domain) LocalIndex(id int) (int, bool) {
	i, ok := d.localIndex[id]
	return i, ok
}

// GlobalIndex returns the global index of the local patch id
func (d *Domain) GlobalIndex(id int) (int, bool) {
	i, ok := d.localIndex[id]
	if !ok {
		return -1, false
	}
	return d.globalOffset + i, true
}

// NewVector allocates a zeroed vector over the local patches
func (d *Domain) NewVector() *vector.Vector {
	return vector.New(d.comm, d.ns, d.numGhost, len(d.patches))
}

// Volume returns the measure of the whole domain
func (d *Domain) Volume() (float64, error) {
	cells := 1
	for _, n := range d.ns {
		cells *= n
	}
	sum := 0.0
	for _, p := range d.patches {
		sum += cellVolume(p) * float64(cells)
	}
	return d.comm.AllreduceSum(sum)
}

// Integrate returns the integral of v over the whole domain
func (d *Domain) Integrate(v *vector.Vector) (float64, error) {
	sum := 0.0
	for i, p := range d.patches {
		sum += v.LocalData(i).Sum() * cellVolume(p)
	}
	return d.comm.AllreduceSum(sum)
}

func cellVolume(p *patch.PatchInfo) float64 {
	vol := 1.0
	for _, h := range p.Spacings {
		vol *= h
	}
	return vol
}

// ObjectCount implements Query
func (d *Domain) ObjectCount() int { return len(d.patches) }

// ObjectList implements Query
func (d *Domain) ObjectList() []int {
	ids := make([]int, len(d.patches))
	for i, p := range d.patches {
		ids[i] = p.ID
	}
	return ids
}

// ObjectSizes implements Query. A patch weighs its serialized size.
func (d *Domain) ObjectSizes() ([]int, error) {
	sizes := make([]int, len(d.patches))
	for i, p := range d.patches {
		b, err := p.Serialize()
		if err != nil {
			return nil, err
		}
		sizes[i] = len(b)
	}
	return sizes, nil
}

// ObjectCenter implements Query
func (d *Domain) ObjectCenter(id int) []float64 {
	if p := d.arena[id]; p != nil {
		return p.Center()
	}
	return nil
}

// EdgeCount implements Query
func (d *Domain) EdgeCount(id int) int {
	return len(d.EdgeList(id))
}

// EdgeList implements Query. Edges are the neighbor ids on every side.
func (d *Domain) EdgeList(id int) []int {
	if p := d.arena[id]; p != nil {
		return p.NbrIDs()
	}
	return nil
}

// Pack serializes the patches ids for destRank
func (d *Domain) Pack(destRank int, ids []int) ([]byte, error) {
	var out []byte
	for _, id := range ids {
		p := d.arena[id]
		if p == nil {
			return nil, fmt.Errorf("cannot pack patch %d for rank %d: not local", id, destRank)
		}
		b, err := p.Serialize()
		if err != nil {
			return nil, fmt.Errorf("pack patch %d: %w", id, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// Unpack adds the patches serialized in b to the arena. Indices are not
// rebuilt until the migration completes.
func (d *Domain) Unpack(b []byte) error {
	patches, err := patch.DeserializeStream(b)
	if err != nil {
		return fmt.Errorf("unpack patches: %w", err)
	}
	for _, p := range patches {
		if _, dup := d.arena[p.ID]; dup {
			return fmt.Errorf("unpacked patch %d is already local", p.ID)
		}
		p.Rank = d.comm.Rank()
		d.arena[p.ID] = p
	}
	return nil
}

type move struct {
	ID   int
	Rank int
}

// Repartition migrates patches as decided by p. It is collective. All local
// and global indices change; LocalData views and vectors built on the old
// layout must not be used afterwards.
func (d *Domain) Repartition(p Partitioner) error {
	exports, err := p.Partition(d)
	if err != nil {
		return fmt.Errorf("partition: %w", err)
	}

	ids := make([]int, 0, len(exports))
	for id := range exports {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	size := d.comm.Size()
	perDest := make([][]int, size)
	moves := make([]move, 0, len(ids))
	for _, id := range ids {
		dest := exports[id]
		pinfo := d.arena[id]
		if pinfo == nil {
			return fmt.Errorf("partitioner exported patch %d which is not local", id)
		}
		if dest < 0 || dest >= size {
			return fmt.Errorf("patch %d exported to invalid rank %d", id, dest)
		}
		pinfo.UpdateRank(dest, d.arena)
		perDest[dest] = append(perDest[dest], id)
		moves = append(moves, move{ID: id, Rank: dest})
	}

	out := make([][]byte, size)
	for r, rids := range perDest {
		if len(rids) == 0 {
			continue
		}
		if out[r], err = d.Pack(r, rids); err != nil {
			return err
		}
	}
	for _, id := range ids {
		delete(d.arena, id)
	}

	in, err := comm.Alltoall(d.comm, out)
	if err != nil {
		return fmt.Errorf("migrate patches: %w", err)
	}
	imported := 0
	for _, b := range in {
		if len(b) == 0 {
			continue
		}
		before := len(d.arena)
		if err = d.Unpack(b); err != nil {
			return err
		}
		imported += len(d.arena) - before
	}

	allMoves, err := comm.Allgather(d.comm, moves)
	if err != nil {
		return fmt.Errorf("share patch moves: %w", err)
	}
	for _, pinfo := range d.arena {
		for _, ms := range allMoves {
			for _, m := range ms {
				pinfo.UpdateRemoteRank(m.ID, m.Rank)
			}
		}
	}

	if err = d.reindex(); err != nil {
		return err
	}
	d.log.WithFields(logrus.Fields{
		"exported": len(ids),
		"imported": imported,
		"local":    len(d.patches),
	}).Debug("repartitioned")
	return nil
}
