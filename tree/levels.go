package tree

import (
	"github.com/notargets/DDKernel/patch"
)

// levelNodes lists the patches of level k: the tree cut off below depth k,
// in depth first orthant order. Leaves shallower than k are carried through.
func (t *Tree) levelNodes(k int) []*node {
	var nodes []*node
	var visit func(n *node)
	visit = func(n *node) {
		if n.leafAt(k) {
			nodes = append(nodes, n)
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.root)
	return nodes
}

// Levels builds the patches of every multigrid level, coarsest first, each
// with n cells per axis and numGhost ghost layers. Patch ids number each
// level from zero. Physical boundary sides listed in neumann get Neumann
// conditions, all others Dirichlet. Every patch is placed on rank 0.
func (t *Tree) Levels(n, numGhost int, neumann []patch.Side) [][]*patch.PatchInfo {
	numLevels := t.NumLevels()
	nodes := make([][]*node, numLevels)
	ids := make([]map[*node]int, numLevels)
	for k := range nodes {
		nodes[k] = t.levelNodes(k)
		ids[k] = make(map[*node]int, len(nodes[k]))
		for i, nd := range nodes[k] {
			ids[k][nd] = i
		}
	}

	levels := make([][]*patch.PatchInfo, numLevels)
	for k, level := range nodes {
		levels[k] = make([]*patch.PatchInfo, len(level))
		for i, nd := range level {
			p := patch.NewPatchInfo(t.dim)
			p.ID = i
			p.RefineLevel = nd.depth
			p.NumGhostCells = numGhost
			copy(p.Starts, nd.lower())
			for axis := range p.Ns {
				p.Ns[axis] = n
				p.Spacings[axis] = nd.width() / float64(n)
			}
			t.setNbrs(p, nd, k, ids[k], neumann)

			if k > 0 {
				p.ParentRank = 0
				if nd.depth == k {
					p.ParentID = ids[k-1][nd.parent]
					p.OrthOnParent = nd.orth
				} else {
					p.ParentID = ids[k-1][nd]
				}
			}
			if k < numLevels-1 && nd.depth == k && !nd.isLeaf() {
				for o, c := range nd.children {
					p.ChildIDs[o] = ids[k+1][c]
					p.ChildRanks[o] = 0
				}
			}
			levels[k][i] = p
		}
	}
	return levels
}

func (t *Tree) setNbrs(p *patch.PatchInfo, nd *node, k int, ids map[*node]int, neumann []patch.Side) {
	for _, s := range patch.SidesFor(t.dim) {
		m := t.find(nd.depth, across(nd, s))
		switch {
		case m == nil:
			for _, ns := range neumann {
				if ns == s {
					p.SetNeumann(s, true)
				}
			}
		case m.depth < nd.depth:
			p.Nbrs[s] = patch.NewCoarseNbrInfo(ids[m], nd.orth.CollapseOnAxis(s.Axis()))
		case m.leafAt(k):
			p.Nbrs[s] = patch.NewNormalNbrInfo(ids[m])
		default:
			orths := patch.OrthantsOnSide(t.dim, s.Opposite())
			fine := make([]int, len(orths))
			for i, o := range orths {
				fine[i] = ids[m.children[o]]
			}
			p.Nbrs[s] = patch.NewFineNbrInfo(fine)
		}
	}
}
