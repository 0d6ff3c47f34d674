// Package tree generates quadtree and octree refinements of the unit square
// or cube and turns them into the patch sets of every multigrid level.
package tree

import (
	"fmt"
	"math"

	"github.com/notargets/DDKernel/patch"
	"github.com/sirupsen/logrus"
)

// node is one cell of the tree. idx is its integer position among the
// 2^depth cells per axis of its depth.
type node struct {
	depth    int
	idx      []int
	orth     patch.Orthant
	parent   *node
	children []*node
}

func (n *node) isLeaf() bool { return n.children == nil }

// leafAt reports whether n is a patch of the tree cut off below depth
func (n *node) leafAt(depth int) bool {
	return n.isLeaf() || n.depth == depth
}

func (n *node) width() float64 {
	return math.Ldexp(1, -n.depth)
}

func (n *node) lower() []float64 {
	w := n.width()
	lo := make([]float64, len(n.idx))
	for i, v := range n.idx {
		lo[i] = float64(v) * w
	}
	return lo
}

func (n *node) refine() {
	dim := len(n.idx)
	n.children = make([]*node, patch.NumOrthants(dim))
	for o := range n.children {
		orth := patch.Orthant(o)
		c := &node{depth: n.depth + 1, idx: make([]int, dim), orth: orth, parent: n}
		for i := range c.idx {
			c.idx[i] = 2 * n.idx[i]
			if orth.IsUpperOnAxis(i) {
				c.idx[i]++
			}
		}
		n.children[o] = c
	}
}

// Tree is a 2:1 balanced refinement of the unit square (dim 2) or cube
// (dim 3): face neighbors of a leaf differ from it by at most one level.
type Tree struct {
	dim  int
	root *node
	log  *logrus.Entry
}

// RefineFunc decides whether the cell with lower corner lower and edge
// length width is split
type RefineFunc func(lower []float64, width float64) bool

func newTree(dim int) (*Tree, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("unsupported dimension %d", dim)
	}
	return &Tree{
		dim:  dim,
		root: &node{idx: make([]int, dim), orth: patch.OrthantNone},
		log:  logrus.WithField("component", "tree"),
	}, nil
}

// NewUniform returns a tree refined everywhere to numLevels levels
func NewUniform(dim, numLevels int) (*Tree, error) {
	return NewAdaptive(dim, numLevels, func([]float64, float64) bool { return true })
}

// NewAdaptive splits cells down to numLevels levels wherever refine asks
// for it, then balances the result
func NewAdaptive(dim, numLevels int, refine RefineFunc) (*Tree, error) {
	if numLevels < 1 {
		return nil, fmt.Errorf("a tree needs at least one level, got %d", numLevels)
	}
	t, err := newTree(dim)
	if err != nil {
		return nil, err
	}
	var grow func(n *node)
	grow = func(n *node) {
		if n.depth+1 >= numLevels || !refine(n.lower(), n.width()) {
			return
		}
		n.refine()
		for _, c := range n.children {
			grow(c)
		}
	}
	grow(t.root)
	t.balance()
	return t, nil
}

// BallRefiner refines every cell touching the ball of radius r around center
func BallRefiner(center []float64, r float64) RefineFunc {
	return func(lower []float64, width float64) bool {
		d2 := 0.0
		for i, c := range center {
			var d float64
			switch {
			case c < lower[i]:
				d = lower[i] - c
			case c > lower[i]+width:
				d = c - lower[i] - width
			}
			d2 += d * d
		}
		return d2 < r*r
	}
}

// Dim returns the spatial dimension
func (t *Tree) Dim() int { return t.dim }

func (t *Tree) walk(fn func(n *node)) {
	var visit func(n *node)
	visit = func(n *node) {
		fn(n)
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.root)
}

// NumLevels returns the depth of the deepest leaf plus one
func (t *Tree) NumLevels() int {
	depth := 0
	t.walk(func(n *node) {
		if n.depth > depth {
			depth = n.depth
		}
	})
	return depth + 1
}

// NumLeaves returns the number of patches on the finest level
func (t *Tree) NumLeaves() int {
	count := 0
	t.walk(func(n *node) {
		if n.isLeaf() {
			count++
		}
	})
	return count
}

// find returns the node at depth with position idx, or the deepest
// existing ancestor of that position. It returns nil outside the domain.
func (t *Tree) find(depth int, idx []int) *node {
	for _, v := range idx {
		if v < 0 || v >= 1<<depth {
			return nil
		}
	}
	n := t.root
	for n.depth < depth && !n.isLeaf() {
		o := 0
		shift := depth - n.depth - 1
		for i, v := range idx {
			if (v>>shift)&1 == 1 {
				o |= 1 << i
			}
		}
		n = n.children[o]
	}
	return n
}

// across returns the position of the same depth cell beyond side s of n
func across(n *node, s patch.Side) []int {
	idx := append([]int(nil), n.idx...)
	if s.IsLowerOnAxis() {
		idx[s.Axis()]--
	} else {
		idx[s.Axis()]++
	}
	return idx
}

// tooFine reports whether leaves two or more levels below m touch side s
// of m
func tooFine(m *node, s patch.Side) bool {
	if m.isLeaf() {
		return false
	}
	for _, o := range patch.OrthantsOnSide(len(m.idx), s) {
		if !m.children[o].isLeaf() {
			return true
		}
	}
	return false
}

// balance splits leaves until no leaf has a face neighbor more than one
// level finer
func (t *Tree) balance() {
	passes := 0
	for {
		var split []*node
		t.walk(func(n *node) {
			if !n.isLeaf() {
				return
			}
			for _, s := range patch.SidesFor(t.dim) {
				m := t.find(n.depth, across(n, s))
				if m != nil && m.depth == n.depth && tooFine(m, s.Opposite()) {
					split = append(split, n)
					return
				}
			}
		})
		if len(split) == 0 {
			break
		}
		for _, n := range split {
			n.refine()
		}
		passes++
	}
	t.log.WithFields(logrus.Fields{"passes": passes, "leaves": t.NumLeaves()}).Debug("balanced tree")
}
