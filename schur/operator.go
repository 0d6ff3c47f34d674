package schur

import (
	"fmt"

	"github.com/notargets/DDKernel/krylov"
	"github.com/notargets/DDKernel/partitions"
	"github.com/notargets/DDKernel/utils"
	"github.com/notargets/DDKernel/vector"
	"github.com/sirupsen/logrus"
)

// Operator couples the patch solves of a domain through its interfaces.
//
// Patch vectors (u, f, au) are laid out by the domain; interface vectors
// (gamma, residual) by the InterfaceDomain. An Operator holds scratch
// storage and must not be used by two goroutines at once.
type Operator struct {
	domain *partitions.Domain
	ifaces *InterfaceDomain
	solver PatchSolver
	op     PatchOperator
	interp Interpolator

	local *vector.Vector // owned and ghost interface values
	acc   *vector.Vector

	timer    *utils.Timer
	domainID int
	log      *logrus.Entry
}

// NewOperator wires a patch solver, operator and interpolator to ifaces
func NewOperator(ifaces *InterfaceDomain, solver PatchSolver, op PatchOperator, interp Interpolator) *Operator {
	d := ifaces.Domain()
	return &Operator{
		domain: d,
		ifaces: ifaces,
		solver: solver,
		op:     op,
		interp: interp,
		local:  ifaces.NewLocalVector(),
		acc:    ifaces.NewLocalVector(),
		log: logrus.WithFields(logrus.Fields{
			"component": "schur",
			"rank":      d.Comm().Rank(),
		}),
	}
}

// SetTimer records patch solves as domain timings of domainID, which must
// have been added to t
func (o *Operator) SetTimer(t *utils.Timer, domainID int) {
	o.timer = t
	o.domainID = domainID
}

// Domain returns the patch domain
func (o *Operator) Domain() *partitions.Domain { return o.domain }

// InterfaceDomain returns the interfaces the operator couples through
func (o *Operator) InterfaceDomain() *InterfaceDomain { return o.ifaces }

// gammaSlices views the gamma source of every side of pi in local
func gammaSlices(pi *PatchIfaceInfo, local *vector.Vector) []vector.LocalData {
	gamma := make([]vector.LocalData, len(pi.Sides))
	for s, si := range pi.Sides {
		if si != nil {
			gamma[s] = local.LocalData(si.Gamma.LocalIndex)
		}
	}
	return gamma
}

// interpolateAll sets acc to the weighted sum of the traces of u and
// reduces it into owned
func (o *Operator) interpolateAll(u, owned *vector.Vector) error {
	o.acc.Set(0)
	for i, pi := range o.ifaces.PatchIfaceInfos() {
		o.interp.Interpolate(pi, u.LocalData(i), o.acc)
	}
	if err := o.ifaces.ScatterReverse(o.acc, owned); err != nil {
		return fmt.Errorf("reduce interface traces: %w", err)
	}
	return nil
}

// Interpolate sets gamma to the weighted average of the traces of u
func (o *Operator) Interpolate(u, gamma *vector.Vector) error {
	return o.interpolateAll(u, gamma)
}

// ApplyWithInterface computes au from u with interface values gamma. u is
// not modified.
func (o *Operator) ApplyWithInterface(u, gamma, au *vector.Vector) error {
	if err := o.ifaces.ScatterForward(gamma, o.local); err != nil {
		return fmt.Errorf("distribute interface values: %w", err)
	}
	for i, pi := range o.ifaces.PatchIfaceInfos() {
		o.op.ApplyPatch(pi.Patch, u.LocalData(i), au.LocalData(i), gammaSlices(pi, o.local))
	}
	return nil
}

// Apply computes au = A u for the full system, taking interface values
// from u itself
func (o *Operator) Apply(u, au *vector.Vector) error {
	gamma := o.ifaces.NewVector()
	if err := o.Interpolate(u, gamma); err != nil {
		return err
	}
	return o.ApplyWithInterface(u, gamma, au)
}

// SolveWithInterface solves every patch for u with interface values gamma
// and sets residual = 2*acc - 2*gamma, where acc is the interpolated trace
// of the new u. It is collective and returns only after every rank has
// added its traces.
func (o *Operator) SolveWithInterface(f, u, gamma, residual *vector.Vector) error {
	if err := o.ifaces.ScatterForward(gamma, o.local); err != nil {
		return fmt.Errorf("distribute interface values: %w", err)
	}
	if o.timer != nil {
		if err := o.timer.StartDomainTiming(o.domainID, "Patch Solve"); err != nil {
			return err
		}
	}
	err := o.solvePatches(f, u)
	if o.timer != nil {
		if stopErr := o.timer.StopDomainTiming(o.domainID, "Patch Solve"); err == nil {
			err = stopErr
		}
	}
	if err != nil {
		return err
	}
	if err := o.interpolateAll(u, residual); err != nil {
		return err
	}
	residual.ScaleThenAddScaled(2, -2, gamma)
	return nil
}

func (o *Operator) solvePatches(f, u *vector.Vector) error {
	for i, pi := range o.ifaces.PatchIfaceInfos() {
		if err := o.solver.SolvePatch(pi.Patch, f.LocalData(i), u.LocalData(i), gammaSlices(pi, o.local)); err != nil {
			return fmt.Errorf("solve patch %d: %w", pi.Patch.ID, err)
		}
	}
	return nil
}

// SolveWithSolution takes the interface values from u and solves every
// patch with them
func (o *Operator) SolveWithSolution(f, u *vector.Vector) error {
	gamma := o.ifaces.NewVector()
	if err := o.Interpolate(u, gamma); err != nil {
		return err
	}
	return o.SolveWithInterface(f, u, gamma, o.ifaces.NewVector())
}

// InterfaceSystem returns the Schur complement S and the right hand side b
// of S gamma = b for the problem with right hand side f. The residual of
// SolveWithInterface is affine in gamma: r(gamma) = S gamma - b.
func (o *Operator) InterfaceSystem(f *vector.Vector) (krylov.Operator, *vector.Vector, error) {
	u := o.domain.NewVector()
	b := o.ifaces.NewVector()
	if err := o.SolveWithInterface(f, u, o.ifaces.NewVector(), b); err != nil {
		return nil, nil, err
	}
	b.Scale(-1)
	o.log.WithField("ifaces", o.ifaces.NumGlobalIfaces()).Debug("built interface system")

	zero := o.domain.NewVector()
	s := krylov.OperatorFunc(func(gamma, sgamma *vector.Vector) error {
		return o.SolveWithInterface(zero, u, gamma, sgamma)
	})
	return s, b, nil
}
