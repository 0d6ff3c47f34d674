package gmg

import (
	"github.com/notargets/DDKernel/comm"
	"github.com/notargets/DDKernel/partitions"
	"github.com/notargets/DDKernel/patch"
)

func newTestPatch(id, level, n int, starts []float64, width float64) *patch.PatchInfo {
	p := patch.NewPatchInfo(2)
	p.ID = id
	p.RefineLevel = level
	copy(p.Starts, starts)
	for i := range p.Ns {
		p.Ns[i] = n
		p.Spacings[i] = width / float64(n)
	}
	p.NumGhostCells = 1
	return p
}

func link(a *patch.PatchInfo, s patch.Side, b *patch.PatchInfo) {
	a.Nbrs[s] = patch.NewNormalNbrInfo(b.ID)
	b.Nbrs[s.Opposite()] = patch.NewNormalNbrInfo(a.ID)
}

func setRanks(patches []*patch.PatchInfo) {
	for _, p := range patches {
		for _, q := range patches {
			q.UpdateRemoteRank(p.ID, p.Rank)
		}
	}
}

// twoLevelRow is a row of unit coarse patches, coarse patch j on
// coarseRanks[j], each split into four children. Child 4j+o sits on
// orthant o of coarse patch j and lives on fineRanks[4j+o].
func twoLevelRow(n int, coarseRanks, fineRanks []int) (coarse, fine []*patch.PatchInfo) {
	coarse = make([]*patch.PatchInfo, len(coarseRanks))
	fine = make([]*patch.PatchInfo, 4*len(coarseRanks))
	for j := range coarse {
		c := newTestPatch(j, 0, n, []float64{float64(j), 0}, 1)
		c.Rank = coarseRanks[j]
		if j > 0 {
			link(coarse[j-1], patch.East, c)
		}
		coarse[j] = c
		for o := 0; o < 4; o++ {
			orth := patch.Orthant(o)
			starts := []float64{float64(j), 0}
			for axis := 0; axis < 2; axis++ {
				if orth.IsUpperOnAxis(axis) {
					starts[axis] += 0.5
				}
			}
			f := newTestPatch(4*j+o, 1, n, starts, 0.5)
			f.Rank = fineRanks[4*j+o]
			f.ParentID = j
			f.OrthOnParent = orth
			c.ChildIDs[o] = f.ID
			fine[f.ID] = f
		}
		// sw=0 se=1 nw=2 ne=3
		link(fine[4*j], patch.East, fine[4*j+1])
		link(fine[4*j+2], patch.East, fine[4*j+3])
		link(fine[4*j], patch.North, fine[4*j+2])
		link(fine[4*j+1], patch.North, fine[4*j+3])
		if j > 0 {
			link(fine[4*(j-1)+1], patch.East, fine[4*j])
			link(fine[4*(j-1)+3], patch.East, fine[4*j+2])
		}
	}
	setRanks(coarse)
	setRanks(fine)
	return coarse, fine
}

// passThroughPair is two unit coarse patches where only patch 0 is refined.
// Fine patches 0-3 are its children and fine patch 4 carries coarse patch 1
// through unchanged. Everything lives on rank 0.
func passThroughPair(n int) (coarse, fine []*patch.PatchInfo) {
	coarse, fine = twoLevelRow(n, []int{0, 0}, make([]int, 8))
	fine = fine[:4]
	fine[1].Nbrs[patch.East] = patch.NewCoarseNbrInfo(4, 0)
	fine[3].Nbrs[patch.East] = patch.NewCoarseNbrInfo(4, 1)
	through := newTestPatch(4, 0, n, []float64{1, 0}, 1)
	through.ParentID = 1
	through.Nbrs[patch.West] = patch.NewFineNbrInfo([]int{1, 3})
	for i := range coarse[1].ChildIDs {
		coarse[1].ChildIDs[i] = -1
	}
	return coarse, append(fine, through)
}

// localDomain builds the domain of the patches owned by c's rank
func localDomain(c *comm.Comm, patches []*patch.PatchInfo) (*partitions.Domain, error) {
	var mine []*patch.PatchInfo
	for _, p := range patches {
		if p.Rank == c.Rank() {
			mine = append(mine, p.Clone())
		}
	}
	return partitions.NewDomain(c, mine, patches[0].Ns, 1)
}

// twoDomains builds the coarse and fine domains of c's rank
func twoDomains(c *comm.Comm, coarse, fine []*patch.PatchInfo) (*partitions.Domain, *partitions.Domain, error) {
	cd, err := localDomain(c, coarse)
	if err != nil {
		return nil, nil, err
	}
	fd, err := localDomain(c, fine)
	if err != nil {
		return nil, nil, err
	}
	return cd, fd, nil
}
