package schur

import (
	"github.com/notargets/DDKernel/patch"
	"github.com/notargets/DDKernel/vector"
)

//go:generate go run go.uber.org/mock/mockgen -destination "mock_schur_test.go" -package $GOPACKAGE -write_package_comment=false github.com/notargets/DDKernel/schur PatchSolver,PatchOperator,Interpolator

// PatchSolver solves the local problem on one patch. gamma holds one
// boundary slice per side, the zero LocalData on sides without a neighbor.
// f must not be modified.
type PatchSolver interface {
	SolvePatch(p *patch.PatchInfo, f, u vector.LocalData, gamma []vector.LocalData) error
}

// PatchOperator applies the discrete operator on one patch with boundary
// values gamma, laid out as for PatchSolver
type PatchOperator interface {
	ApplyPatch(p *patch.PatchInfo, u, au vector.LocalData, gamma []vector.LocalData)
}

// Interpolator adds patch traces into a local interface vector. Values are
// accumulated, never overwritten.
type Interpolator interface {
	// Interpolate adds the trace of u on every side of the patch
	Interpolate(pinfo *PatchIfaceInfo, u vector.LocalData, interp *vector.Vector)
	// InterpolateSide adds the trace on side s into interface localIndex
	InterpolateSide(pinfo *PatchIfaceInfo, s patch.Side, localIndex int, t IfaceType,
		u vector.LocalData, interp *vector.Vector)
}
