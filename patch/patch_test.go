package patch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSide(t *testing.T) {
	t.Run("AxisAndOpposite", func(t *testing.T) {
		tests := []struct {
			side     Side
			axis     int
			lower    bool
			opposite Side
		}{
			{West, 0, true, East},
			{East, 0, false, West},
			{South, 1, true, North},
			{North, 1, false, South},
			{Bottom, 2, true, Top},
			{Top, 2, false, Bottom},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.axis, tt.side.Axis(), tt.side.String())
			assert.Equal(t, tt.lower, tt.side.IsLowerOnAxis(), tt.side.String())
			assert.Equal(t, !tt.lower, tt.side.IsHigherOnAxis(), tt.side.String())
			assert.Equal(t, tt.opposite, tt.side.Opposite(), tt.side.String())
		}
	})

	t.Run("Parse", func(t *testing.T) {
		for _, s := range SidesFor(3) {
			got, err := ParseSide(s.String())
			require.NoError(t, err)
			assert.Equal(t, s, got)
		}
		_, err := ParseSide("up")
		assert.Error(t, err)
		got, err := ParseSide(" North ")
		require.NoError(t, err)
		assert.Equal(t, North, got)
	})

	t.Run("Count", func(t *testing.T) {
		assert.Len(t, SidesFor(2), 4)
		assert.Len(t, SidesFor(3), 6)
	})
}

func TestOrthant(t *testing.T) {
	t.Run("IsOnSide2D", func(t *testing.T) {
		assert.True(t, SW.IsOnSide(West))
		assert.True(t, SW.IsOnSide(South))
		assert.False(t, SW.IsOnSide(East))
		assert.True(t, NE.IsOnSide(East))
		assert.True(t, NE.IsOnSide(North))
		assert.True(t, SE.IsOnSide(East))
		assert.True(t, SE.IsOnSide(South))
		assert.True(t, NW.IsOnSide(West))
		assert.True(t, NW.IsOnSide(North))
	})

	t.Run("ExteriorAndInteriorSides", func(t *testing.T) {
		assert.Equal(t, []Side{East, North, Bottom}, BNE.ExteriorSides(3))
		assert.Equal(t, []Side{West, South, Top}, BNE.InteriorSides(3))
		assert.Equal(t, []Side{West, South}, SW.ExteriorSides(2))
	})

	t.Run("CollapseExpandRoundTrip", func(t *testing.T) {
		for _, dim := range []int{2, 3} {
			for _, s := range SidesFor(dim) {
				for _, o := range OrthantsFor(dim) {
					if !o.IsOnSide(s) {
						continue
					}
					f := o.CollapseOnAxis(s.Axis())
					assert.Less(t, int(f), NumOrthants(dim-1))
					assert.Equal(t, o, f.ExpandOnSide(s), "dim %d side %v orth %d", dim, s, o)
				}
			}
		}
	})

	t.Run("OrthantsOnSide", func(t *testing.T) {
		assert.Equal(t, []Orthant{SW, NW}, OrthantsOnSide(2, West))
		assert.Equal(t, []Orthant{SE, NE}, OrthantsOnSide(2, East))
		assert.Equal(t, []Orthant{SW, SE}, OrthantsOnSide(2, South))
		assert.Equal(t, []Orthant{BSE, BNE, TSE, TNE}, OrthantsOnSide(3, East))
		assert.Equal(t, []Orthant{TSW, TSE, TNW, TNE}, OrthantsOnSide(3, Top))
		for _, o := range OrthantsOnSide(3, North) {
			assert.True(t, o.IsOnSide(North))
		}
	})
}

func TestNbrInfoSerialize(t *testing.T) {
	t.Run("Normal", func(t *testing.T) {
		n := NewNormalNbrInfo(7)
		n.Ranks[0] = 3
		b, err := n.Serialize()
		require.NoError(t, err)
		got, err := DeserializeNbrInfo(b)
		require.NoError(t, err)
		assert.Equal(t, NbrNormal, got.Type)
		assert.Equal(t, 7, got.ID())
		assert.Equal(t, 3, got.Rank())
		assert.True(t, n.Equal(got))
	})

	t.Run("Coarse", func(t *testing.T) {
		n := NewCoarseNbrInfo(2, Orthant(1))
		n.Ranks[0] = 5
		b, err := n.Serialize()
		require.NoError(t, err)
		got, err := DeserializeNbrInfo(b)
		require.NoError(t, err)
		assert.Equal(t, NbrCoarse, got.Type)
		assert.Equal(t, Orthant(1), got.OrthOnCoarse)
		assert.Equal(t, 5, got.Rank())
		assert.True(t, n.Equal(got))
	})

	t.Run("Fine", func(t *testing.T) {
		n := NewFineNbrInfo([]int{10, 11, 12, 13})
		copy(n.Ranks, []int{0, 1, 2, 3})
		b, err := n.Serialize()
		require.NoError(t, err)
		got, err := DeserializeNbrInfo(b)
		require.NoError(t, err)
		assert.Equal(t, NbrFine, got.Type)
		assert.Equal(t, []int{10, 11, 12, 13}, got.IDs)
		assert.Equal(t, []int{0, 1, 2, 3}, got.Ranks)
		assert.Equal(t, []int{-1, -1, -1, -1}, got.LocalIndexes)
		assert.True(t, n.Equal(got))
	})

	t.Run("Truncated", func(t *testing.T) {
		n := NewFineNbrInfo([]int{1, 2})
		b, err := n.Serialize()
		require.NoError(t, err)
		_, err = DeserializeNbrInfo(b[:len(b)-2])
		assert.Error(t, err)
	})
}

func testPatch() *PatchInfo {
	p := NewPatchInfo(2)
	p.ID = 9
	p.Rank = 1
	p.RefineLevel = 2
	p.ParentID = 4
	p.ParentRank = 0
	p.OrthOnParent = NE
	p.NumGhostCells = 1
	p.Ns = []int{8, 8}
	p.Starts = []float64{0.5, 0.25}
	p.Spacings = []float64{0.03125, 0.03125}
	p.ChildIDs = []int{20, 21, 22, 23}
	p.ChildRanks = []int{1, 1, 2, 2}
	p.SetNeumann(East, true)
	p.Nbrs[West] = NewNormalNbrInfo(8)
	p.Nbrs[North] = NewCoarseNbrInfo(3, Orthant(1))
	p.Nbrs[South] = NewFineNbrInfo([]int{30, 31})
	return p
}

func TestPatchInfoSerialize(t *testing.T) {
	p := testPatch()
	b, err := p.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(b)
	require.NoError(t, err)
	assert.True(t, p.Equal(got))
	assert.Equal(t, -1, got.LocalIndex)
	assert.True(t, got.IsNeumann(East))
	assert.False(t, got.IsNeumann(West))
	assert.False(t, got.HasNbr(East))
	assert.Equal(t, NbrFine, got.NbrType(South))

	t.Run("Stream", func(t *testing.T) {
		q := testPatch()
		q.ID = 10
		bq, err := q.Serialize()
		require.NoError(t, err)
		all, err := DeserializeStream(append(append([]byte(nil), b...), bq...))
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, 9, all[0].ID)
		assert.Equal(t, 10, all[1].ID)
	})

	t.Run("TrailingBytes", func(t *testing.T) {
		_, err := Deserialize(append(append([]byte(nil), b...), 0))
		assert.Error(t, err)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		q := testPatch()
		q.ID = math.MaxInt32 + 1
		_, err := q.Serialize()
		assert.ErrorContains(t, err, "does not fit a 32 bit record")

		q = testPatch()
		q.Nbrs[West] = NewNormalNbrInfo(math.MinInt32 - 1)
		_, err = q.Serialize()
		assert.Error(t, err)
	})

	t.Run("ThreeD", func(t *testing.T) {
		q := NewPatchInfo(3)
		q.ID = 1
		q.Ns = []int{4, 4, 4}
		q.Spacings = []float64{0.25, 0.25, 0.25}
		q.Nbrs[Top] = NewFineNbrInfo([]int{2, 3, 4, 5})
		bq, err := q.Serialize()
		require.NoError(t, err)
		got, err := Deserialize(bq)
		require.NoError(t, err)
		assert.True(t, q.Equal(got))
		assert.Equal(t, 3, got.Dim())
	})
}

func TestTypedNbrAccess(t *testing.T) {
	p := testPatch()
	_, err := p.NormalNbrInfo(West)
	assert.NoError(t, err)
	_, err = p.CoarseNbrInfo(West)
	assert.Error(t, err)
	_, err = p.FineNbrInfo(East)
	assert.Error(t, err)
	assert.ElementsMatch(t, []int{8, 3, 30, 31}, p.NbrIDs())
}

func TestUpdateRankOnNeighbors(t *testing.T) {
	// a (id 0) | b (id 1), with c (id 2) coarse to the north of both
	a := NewPatchInfo(2)
	a.ID = 0
	b := NewPatchInfo(2)
	b.ID = 1
	c := NewPatchInfo(2)
	c.ID = 2
	a.Nbrs[East] = NewNormalNbrInfo(1)
	b.Nbrs[West] = NewNormalNbrInfo(0)
	a.Nbrs[North] = NewCoarseNbrInfo(2, 0)
	b.Nbrs[North] = NewCoarseNbrInfo(2, 1)
	c.Nbrs[South] = NewFineNbrInfo([]int{0, 1})

	arena := Arena{0: a, 1: b, 2: c}
	a.UpdateRank(4, arena)

	assert.Equal(t, 4, a.Rank)
	assert.Equal(t, 4, b.Nbrs[West].Rank())
	assert.Equal(t, []int{4, 0}, c.Nbrs[South].Ranks)

	t.Run("RemoteNeighborsAreSkipped", func(t *testing.T) {
		partial := Arena{1: b}
		b.UpdateRank(2, partial)
		assert.Equal(t, 0, a.Nbrs[East].Rank())
		a.UpdateRemoteRank(1, 2)
		assert.Equal(t, 2, a.Nbrs[East].Rank())
	})
}

func TestSetPtrs(t *testing.T) {
	a := NewPatchInfo(2)
	a.ID = 0
	a.LocalIndex = 0
	b := NewPatchInfo(2)
	b.ID = 1
	b.LocalIndex = 1
	a.Nbrs[East] = NewNormalNbrInfo(1)
	a.Nbrs[North] = NewFineNbrInfo([]int{1, 5})

	a.SetPtrs(Arena{0: a, 1: b})
	assert.True(t, a.Nbrs[East].IsLocal(0))
	assert.Equal(t, 1, a.Nbrs[East].LocalIndexes[0])
	assert.Equal(t, []int{1, -1}, a.Nbrs[North].LocalIndexes)

	// resolution against an arena missing the neighbor must not fail
	a.SetPtrs(Arena{0: a})
	assert.False(t, a.Nbrs[East].IsLocal(0))
}

func TestClone(t *testing.T) {
	p := testPatch()
	c := p.Clone()
	assert.True(t, p.Equal(c))
	c.Nbrs[West].Ranks[0] = 42
	c.ChildIDs[0] = -5
	assert.Equal(t, 0, p.Nbrs[West].Ranks[0])
	assert.Equal(t, 20, p.ChildIDs[0])
}
