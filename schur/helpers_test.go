package schur

import (
	"github.com/notargets/DDKernel/comm"
	"github.com/notargets/DDKernel/partitions"
	"github.com/notargets/DDKernel/patch"
)

func newTestPatch(dim, id, level, n int, starts []float64, width float64) *patch.PatchInfo {
	p := patch.NewPatchInfo(dim)
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

// setRanks records every patch's rank on the relations naming it
func setRanks(patches []*patch.PatchInfo) {
	for _, p := range patches {
		for _, q := range patches {
			q.UpdateRemoteRank(p.ID, p.Rank)
		}
	}
}

// refinedEastMesh is a coarse unit patch 0 on rank coarseRank whose east
// face is covered by a 2x2 block of fine patches on rank fineRank:
//
//	+-----+--+--+
//	|     | 3| 4|
//	|  0  +--+--+
//	|     | 1| 2|
//	+-----+--+--+
func refinedEastMesh(n, coarseRank, fineRank int) []*patch.PatchInfo {
	coarse := newTestPatch(2, 0, 0, n, []float64{0, 0}, 1)
	coarse.Rank = coarseRank
	sw := newTestPatch(2, 1, 1, n, []float64{1, 0}, 0.5)
	se := newTestPatch(2, 2, 1, n, []float64{1.5, 0}, 0.5)
	nw := newTestPatch(2, 3, 1, n, []float64{1, 0.5}, 0.5)
	ne := newTestPatch(2, 4, 1, n, []float64{1.5, 0.5}, 0.5)
	for _, p := range []*patch.PatchInfo{sw, se, nw, ne} {
		p.Rank = fineRank
	}
	coarse.Nbrs[patch.East] = patch.NewFineNbrInfo([]int{sw.ID, nw.ID})
	sw.Nbrs[patch.West] = patch.NewCoarseNbrInfo(coarse.ID, 0)
	nw.Nbrs[patch.West] = patch.NewCoarseNbrInfo(coarse.ID, 1)
	link(sw, patch.East, se)
	link(nw, patch.East, ne)
	link(sw, patch.North, nw)
	link(se, patch.North, ne)

	patches := []*patch.PatchInfo{coarse, sw, se, nw, ne}
	setRanks(patches)
	return patches
}

// refinedFaceMesh is a coarse unit patch 0 with 2^(dim-1) fine patches
// covering its east face, fine patch i+1 sitting on face orthant i
func refinedFaceMesh(dim, n int) []*patch.PatchInfo {
	coarse := newTestPatch(dim, 0, 0, n, make([]float64, dim), 1)
	numFine := patch.NumOrthants(dim - 1)
	fine := make([]*patch.PatchInfo, numFine)
	ids := make([]int, numFine)
	for o := 0; o < numFine; o++ {
		starts := make([]float64, dim)
		starts[0] = 1
		for j := 0; j < dim-1; j++ {
			if patch.Orthant(o).IsUpperOnAxis(j) {
				starts[j+1] = 0.5
			}
		}
		fine[o] = newTestPatch(dim, o+1, 1, n, starts, 0.5)
		fine[o].Nbrs[patch.West] = patch.NewCoarseNbrInfo(coarse.ID, patch.Orthant(o))
		ids[o] = fine[o].ID
	}
	for o := 0; o < numFine; o++ {
		for j := 0; j < dim-1; j++ {
			if !patch.Orthant(o).IsUpperOnAxis(j) {
				link(fine[o], patch.UpperSideOnAxis(j+1), fine[o|1<<j])
			}
		}
	}
	coarse.Nbrs[patch.East] = patch.NewFineNbrInfo(ids)
	return append([]*patch.PatchInfo{coarse}, fine...)
}

// uniformRow is k equal patches in a row along x, patch i on ranks[i]
func uniformRow(dim, n int, ranks []int) []*patch.PatchInfo {
	patches := make([]*patch.PatchInfo, len(ranks))
	for i := range patches {
		starts := make([]float64, dim)
		starts[0] = float64(i)
		patches[i] = newTestPatch(dim, i, 0, n, starts, 1)
		patches[i].Rank = ranks[i]
		if i > 0 {
			link(patches[i-1], patch.East, patches[i])
		}
	}
	setRanks(patches)
	return patches
}

// localDomain builds the domain of the patches owned by c's rank
func localDomain(c *comm.Comm, patches []*patch.PatchInfo) (*partitions.Domain, error) {
	var mine []*patch.PatchInfo
	for _, p := range patches {
		if p.Rank == c.Rank() {
			mine = append(mine, p.Clone())
		}
	}
	n := patches[0].Ns
	return partitions.NewDomain(c, mine, n, 1)
}
