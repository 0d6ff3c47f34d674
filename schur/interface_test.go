package schur

import (
	"testing"

	"github.com/notargets/DDKernel/comm"
	"github.com/notargets/DDKernel/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIfaceTypeString(t *testing.T) {
	assert.Equal(t, "normal", NewIfaceType(Normal).String())
	assert.Equal(t, "fine_to_coarse(1)", NewIfaceTypeOnOrthant(FineToCoarse, 1).String())
	assert.Equal(t, "coarse_to_fine(3)", NewIfaceTypeOnOrthant(CoarseToFine, 3).String())
	assert.Equal(t, patch.OrthantNone, NewIfaceType(FineToFine).Orthant)
}

func TestEnumerateEqualPatchesOnTwoRanks(t *testing.T) {
	patches := uniformRow(2, 4, []int{0, 1})

	e0 := NewEnumerator(2, 0)
	e0.EnumerateLocal(patches[:1])
	require.Len(t, e0.Ifaces, 1)
	assert.Equal(t, []OffProcPatch{{ID: 1, Rank: 1}}, e0.OffProc)
	assert.Error(t, e0.Complete(nil), "missing the remote side")

	e1 := NewEnumerator(2, 1)
	e1.EnumerateLocal(patches[1:])
	assert.Empty(t, e1.Ifaces)
	assert.Empty(t, e1.OffProc)
	require.NoError(t, e1.Complete(nil))

	e0 = NewEnumerator(2, 0)
	e0.EnumerateLocal(patches[:1])
	require.NoError(t, e0.Complete(patches[1:]))
	iface := e0.Ifaces[ifaceID(0, patch.East, 2)]
	require.NotNil(t, iface)
	require.Len(t, iface.Participants, 2)
	a, ok := iface.Participant(0)
	require.True(t, ok)
	b, ok := iface.Participant(1)
	require.True(t, ok)
	assert.Equal(t, patch.East, a.Side)
	assert.Equal(t, patch.West, b.Side)
	assert.Equal(t, a.Side.Opposite(), b.Side)
	assert.Equal(t, Normal, b.Type.Kind)
	assert.Equal(t, 1, b.Rank)
}

func TestEnumerateRefinedFaceAcrossRanks(t *testing.T) {
	patches := refinedEastMesh(4, 0, 1)
	byID := func(id int) *patch.PatchInfo { return patches[id] }

	// coarse rank
	e0 := NewEnumerator(2, 0)
	e0.EnumerateLocal(patches[:1])
	require.Len(t, e0.Ifaces, 1)
	assert.Equal(t, []OffProcPatch{{ID: 1, Rank: 1}, {ID: 3, Rank: 1}}, e0.OffProc)
	require.NoError(t, e0.Complete([]*patch.PatchInfo{byID(1), byID(3)}))

	coarseFace := e0.Ifaces[ifaceID(0, patch.East, 2)]
	require.NotNil(t, coarseFace)
	require.Len(t, coarseFace.Participants, 3)
	c, _ := coarseFace.Participant(0)
	assert.Equal(t, NewIfaceType(CoarseToCoarse), c.Type)
	assert.Equal(t, patch.East, c.Side)
	sw, _ := coarseFace.Participant(1)
	assert.Equal(t, NewIfaceTypeOnOrthant(FineToCoarse, 0), sw.Type)
	assert.Equal(t, patch.West, sw.Side)
	nw, _ := coarseFace.Participant(3)
	assert.Equal(t, NewIfaceTypeOnOrthant(FineToCoarse, 1), nw.Type)

	// fine rank
	e1 := NewEnumerator(2, 1)
	e1.EnumerateLocal(patches[1:])
	assert.Len(t, e1.Ifaces, 6)
	assert.Equal(t, []OffProcPatch{{ID: 0, Rank: 0}}, e1.OffProc)
	require.NoError(t, e1.Complete(patches[:1]))

	for _, fineID := range []int{1, 3} {
		fineFace := e1.Ifaces[ifaceID(fineID, patch.West, 2)]
		require.NotNil(t, fineFace, "fine face of %d", fineID)
		require.Len(t, fineFace.Participants, 2)
		own, _ := fineFace.Participant(fineID)
		assert.Equal(t, NewIfaceType(FineToFine), own.Type)
		coarse, _ := fineFace.Participant(0)
		assert.Equal(t, CoarseToFine, coarse.Type.Kind)
		assert.Equal(t, patch.East, coarse.Side)
	}
	nwFace, _ := e1.Ifaces[ifaceID(3, patch.West, 2)].Participant(0)
	assert.Equal(t, patch.Orthant(1), nwFace.Type.Orthant)
}

func TestEnumerateEveryNeighborSideOnce(t *testing.T) {
	for _, dim := range []int{2, 3} {
		patches := refinedFaceMesh(dim, 2)
		e := NewEnumerator(dim, 0)
		e.EnumerateLocal(patches)
		require.NoError(t, e.Complete(nil))
		assert.Empty(t, e.OffProc)

		// the gamma source of every side names the side's patch
		for _, p := range patches {
			pi := NewPatchIfaceInfo(p)
			for _, s := range pi.IfaceSides() {
				iface := e.Ifaces[pi.Sides[s].Gamma.ID]
				require.NotNil(t, iface)
				_, ok := iface.Participant(p.ID)
				assert.True(t, ok)
			}
		}
		for id, iface := range e.Ifaces {
			assert.Equal(t, iface.NumExpected(dim), len(iface.Participants), "interface %d", id)
		}
		coarseFace := e.Ifaces[ifaceID(0, patch.East, dim)]
		assert.Len(t, coarseFace.Participants, 1+patch.NumOrthants(dim-1))
	}
}

func TestInterfaceDomain(t *testing.T) {
	err := comm.Run(2, func(c *comm.Comm) error {
		d, err := localDomain(c, refinedEastMesh(4, 0, 1))
		if err != nil {
			return err
		}
		ifd, err := NewInterfaceDomain(d)
		if err != nil {
			return err
		}

		assert.Equal(t, 7, ifd.NumGlobalIfaces())
		assert.Equal(t, []int{4}, ifd.FaceNs())
		if c.Rank() == 0 {
			assert.Equal(t, 1, ifd.NumLocalIfaces())
			// the two fine faces owned by rank 1
			assert.Equal(t, 2, ifd.NumGhostIfaces())
		} else {
			assert.Equal(t, 6, ifd.NumLocalIfaces())
			assert.Equal(t, 1, ifd.NumGhostIfaces())
		}
		for _, pi := range ifd.PatchIfaceInfos() {
			for _, s := range pi.IfaceSides() {
				for _, r := range pi.Sides[s].Refs {
					assert.GreaterOrEqual(t, r.LocalIndex, 0)
					_, ok := ifd.GlobalIndex(r.ID)
					assert.True(t, ok)
				}
			}
		}

		// forward: ghosts take their owner's values
		owned := ifd.NewVector()
		for _, iface := range ifd.Ifaces() {
			owned.LocalData(iface.LocalIndex).SetAll(float64(iface.GlobalIndex))
		}
		local := ifd.NewLocalVector()
		if err = ifd.ScatterForward(owned, local); err != nil {
			return err
		}
		for _, pi := range ifd.PatchIfaceInfos() {
			for _, s := range pi.IfaceSides() {
				for _, r := range pi.Sides[s].Refs {
					g, _ := ifd.GlobalIndex(r.ID)
					assert.Equal(t, float64(g), local.LocalData(r.LocalIndex).Get([]int{2}))
				}
			}
		}

		// reverse: every copy adds one
		local.Set(1)
		if err = ifd.ScatterReverse(local, owned); err != nil {
			return err
		}
		coarseFace := ifd.Iface(ifaceID(0, patch.East, 2))
		fineFace := ifd.Iface(ifaceID(1, patch.West, 2))
		if c.Rank() == 0 && assert.NotNil(t, coarseFace) {
			assert.Equal(t, 2.0, owned.LocalData(coarseFace.LocalIndex).Get([]int{0}))
		}
		if c.Rank() == 1 && assert.NotNil(t, fineFace) {
			assert.Equal(t, 2.0, owned.LocalData(fineFace.LocalIndex).Get([]int{0}))
			normal := ifd.Iface(ifaceID(1, patch.East, 2))
			assert.Equal(t, 1.0, owned.LocalData(normal.LocalIndex).Get([]int{3}))
		}

		assert.Error(t, ifd.ScatterForward(local, owned), "swapped vectors")
		return nil
	})
	require.NoError(t, err)
}

func TestInterfaceDomainIncomplete(t *testing.T) {
	c := comm.NewWorld(1).Comm(0)
	patches := uniformRow(2, 4, []int{0, 0})
	// a relation with no mirror on the other side
	patches[1].Nbrs[patch.North] = patch.NewNormalNbrInfo(7)
	d, err := localDomain(c, patches)
	require.NoError(t, err)
	_, err = NewInterfaceDomain(d)
	assert.Error(t, err)
}
