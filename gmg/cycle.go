package gmg

import (
	"errors"
	"fmt"

	"github.com/notargets/DDKernel/krylov"
	"github.com/notargets/DDKernel/partitions"
	"github.com/notargets/DDKernel/utils"
	"github.com/notargets/DDKernel/vector"
	"github.com/sirupsen/logrus"
)

// Smoother improves u towards the solution of A u = f
type Smoother interface {
	SolveWithSolution(f, u *vector.Vector) error
}

// Level is one grid of the multigrid hierarchy. Every level but the
// coarsest carries the transfer operators towards the next coarser level.
type Level struct {
	Domain       *partitions.Domain
	Smoother     Smoother
	Operator     krylov.Operator
	Restrictor   Restrictor
	Interpolator Interpolator
}

// NewLevel returns a level without transfer operators
func NewLevel(d *partitions.Domain, smoother Smoother, op krylov.Operator) *Level {
	return &Level{Domain: d, Smoother: smoother, Operator: op}
}

// SetCoarser attaches the transfer operators to the next coarser level
func (l *Level) SetCoarser(r Restrictor, i Interpolator) {
	l.Restrictor = r
	l.Interpolator = i
}

// Cycle is a multigrid V-cycle over levels ordered coarsest first. It owns
// the work vectors of every level, so one Cycle must not run two applies at
// once.
type Cycle struct {
	levels []*Level
	u      []*vector.Vector
	f      []*vector.Vector
	r      []*vector.Vector

	timer *utils.Timer
	log   *logrus.Entry
}

// NewCycle validates the level chain and allocates the work vectors
func NewCycle(levels []*Level) (*Cycle, error) {
	if len(levels) == 0 {
		return nil, errors.New("a cycle needs at least one level")
	}
	cy := &Cycle{
		levels: levels,
		u:      make([]*vector.Vector, len(levels)),
		f:      make([]*vector.Vector, len(levels)),
		r:      make([]*vector.Vector, len(levels)),
		log:    logrus.WithField("component", "gmg"),
	}
	for i, l := range levels {
		if l == nil || l.Domain == nil || l.Smoother == nil || l.Operator == nil {
			return nil, fmt.Errorf("level %d is missing its domain, smoother or operator", i)
		}
		if i > 0 && (l.Restrictor == nil || l.Interpolator == nil) {
			return nil, fmt.Errorf("level %d has no transfer operators to level %d", i, i-1)
		}
		if i > 0 && l.Domain.Comm() != levels[0].Domain.Comm() {
			return nil, fmt.Errorf("level %d uses a different communicator", i)
		}
		cy.r[i] = l.Domain.NewVector()
		if i < len(levels)-1 {
			cy.u[i] = l.Domain.NewVector()
			cy.f[i] = l.Domain.NewVector()
		}
	}
	cy.log = cy.log.WithField("rank", levels[0].Domain.Comm().Rank())
	return cy, nil
}

// SetTimer records each cycle under "V-cycle"
func (cy *Cycle) SetTimer(t *utils.Timer) { cy.timer = t }

// NumLevels returns the depth of the hierarchy
func (cy *Cycle) NumLevels() int { return len(cy.levels) }

// Apply sets u to the result of one V-cycle from a zero guess, which makes
// the cycle a linear preconditioner
func (cy *Cycle) Apply(f, u *vector.Vector) error {
	u.Set(0)
	return cy.Iterate(f, u)
}

func (cy *Cycle) smooth(i int, f, u *vector.Vector) error {
	if err := cy.levels[i].Smoother.SolveWithSolution(f, u); err != nil {
		return fmt.Errorf("smooth level %d: %w", i, err)
	}
	return nil
}

// residual sets r = f - A u on level i
func (cy *Cycle) residual(i int, f, u, r *vector.Vector) error {
	if err := cy.levels[i].Operator.Apply(u, r); err != nil {
		return fmt.Errorf("residual on level %d: %w", i, err)
	}
	r.ScaleThenAdd(-1, f)
	return nil
}

func (cy *Cycle) restrict(i int) error {
	if err := cy.levels[i+1].Restrictor.Restrict(cy.f[i], cy.r[i+1]); err != nil {
		return fmt.Errorf("restrict level %d: %w", i+1, err)
	}
	cy.u[i].Set(0)
	return nil
}

// Iterate runs one V-cycle improving the guess u of the finest level
func (cy *Cycle) Iterate(f, u *vector.Vector) error {
	if cy.timer != nil {
		cy.timer.Start("V-cycle")
	}
	err := cy.vcycle(f, u)
	if cy.timer != nil {
		if stopErr := cy.timer.Stop("V-cycle"); err == nil {
			err = stopErr
		}
	}
	return err
}

func (cy *Cycle) vcycle(f, u *vector.Vector) error {
	top := len(cy.levels) - 1
	cy.u[top], cy.f[top] = u, f
	defer func() { cy.u[top], cy.f[top] = nil, nil }()

	if err := cy.smooth(top, f, u); err != nil {
		return err
	}
	if top == 0 {
		return nil
	}
	if err := cy.residual(top, f, u, cy.r[top]); err != nil {
		return err
	}

	for i := top - 1; i >= 1; i-- {
		if err := cy.restrict(i); err != nil {
			return err
		}
		if err := cy.smooth(i, cy.f[i], cy.u[i]); err != nil {
			return err
		}
		if err := cy.residual(i, cy.f[i], cy.u[i], cy.r[i]); err != nil {
			return err
		}
	}

	if err := cy.restrict(0); err != nil {
		return err
	}
	if err := cy.smooth(0, cy.f[0], cy.u[0]); err != nil {
		return err
	}

	for i := 0; i < top; i++ {
		if err := cy.levels[i+1].Interpolator.Interpolate(cy.u[i], cy.u[i+1]); err != nil {
			return fmt.Errorf("interpolate to level %d: %w", i+1, err)
		}
		if err := cy.smooth(i+1, cy.f[i+1], cy.u[i+1]); err != nil {
			return err
		}
	}
	cy.log.WithField("levels", len(cy.levels)).Debug("finished v-cycle")
	return nil
}
