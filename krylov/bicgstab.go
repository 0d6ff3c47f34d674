// Package krylov holds the iterative solver driving the interface and full
// system solves.
package krylov

import (
	"fmt"

	"github.com/notargets/DDKernel/utils"
	"github.com/notargets/DDKernel/vector"
	"github.com/sirupsen/logrus"
)

// DivergenceLimit is the relative residual past which a solve is abandoned
const DivergenceLimit = 1e6

// Operator computes y = A x
type Operator interface {
	Apply(x, y *vector.Vector) error
}

// Preconditioner computes y = M^-1 x
type Preconditioner interface {
	Apply(x, y *vector.Vector) error
}

// OperatorFunc adapts a function to Operator
type OperatorFunc func(x, y *vector.Vector) error

// Apply calls f(x, y)
func (f OperatorFunc) Apply(x, y *vector.Vector) error { return f(x, y) }

// BiCGStab is the stabilized biconjugate gradient method with optional
// right preconditioning
type BiCGStab struct {
	MaxIterations int
	Tolerance     float64

	timer *utils.Timer
	log   *logrus.Entry
}

// NewBiCGStab returns a solver stopping at maxIterations or when the
// residual relative to the right hand side drops to tolerance
func NewBiCGStab(maxIterations int, tolerance float64) *BiCGStab {
	return &BiCGStab{
		MaxIterations: maxIterations,
		Tolerance:     tolerance,
		log:           logrus.WithField("component", "bicgstab"),
	}
}

// SetTimer records every iteration under "Iteration"
func (s *BiCGStab) SetTimer(t *utils.Timer) { s.timer = t }

// SetLogger replaces the solver's log entry
func (s *BiCGStab) SetLogger(log *logrus.Entry) { s.log = log.WithField("component", "bicgstab") }

func (s *BiCGStab) startIteration() {
	if s.timer != nil {
		s.timer.Start("Iteration")
	}
}

func (s *BiCGStab) stopIteration() error {
	if s.timer != nil {
		return s.timer.Stop("Iteration")
	}
	return nil
}

// Solve improves the initial guess x of A x = b and returns the number of
// iterations taken. m may be nil. Every vector must share b's layout.
func (s *BiCGStab) Solve(A Operator, x, b *vector.Vector, m Preconditioner) (int, error) {
	resid := vector.NewLike(b)
	if err := A.Apply(x, resid); err != nil {
		return 0, fmt.Errorf("initial residual: %w", err)
	}
	resid.ScaleThenAdd(-1, b)

	r0Norm, err := b.TwoNorm()
	if err != nil {
		return 0, err
	}
	if r0Norm == 0 {
		return 0, nil
	}

	rhat := resid.Clone()
	p := resid.Clone()
	ap := vector.NewLike(b)
	as := vector.NewLike(b)
	sv := vector.NewLike(b)
	var mp, ms *vector.Vector
	if m != nil {
		mp = vector.NewLike(b)
		ms = vector.NewLike(b)
	}
	// applyPre computes out = A M^-1 in, leaving M^-1 in in pre
	applyPre := func(in, pre, out *vector.Vector) error {
		if m == nil {
			return A.Apply(in, out)
		}
		if err := m.Apply(in, pre); err != nil {
			return fmt.Errorf("preconditioner: %w", err)
		}
		return A.Apply(pre, out)
	}

	rho, err := rhat.Dot(resid)
	if err != nil {
		return 0, err
	}
	rnorm, err := resid.TwoNorm()
	if err != nil {
		return 0, err
	}
	residual := rnorm / r0Norm
	s.log.WithFields(logrus.Fields{"iteration": 0, "residual": residual}).Debug("bicgstab")

	numIts := 0
	// iterate runs one iteration and reports whether the solve converged
	iterate := func() (bool, error) {
		if rho == 0 {
			return false, &BreakdownError{Iteration: numIts, Quantity: "rho"}
		}
		if err := applyPre(p, mp, ap); err != nil {
			return false, err
		}
		rhatAp, err := rhat.Dot(ap)
		if err != nil {
			return false, err
		}
		if rhatAp == 0 {
			return false, &BreakdownError{Iteration: numIts, Quantity: "rhat.Ap"}
		}
		alpha := rho / rhatAp
		sv.Copy(resid)
		sv.AddScaled(-alpha, ap)
		snorm, err := sv.TwoNorm()
		if err != nil {
			return false, err
		}
		if snorm/r0Norm <= s.Tolerance {
			if m != nil {
				x.AddScaled(alpha, mp)
			} else {
				x.AddScaled(alpha, p)
			}
			numIts++
			s.log.WithFields(logrus.Fields{"iteration": numIts, "residual": snorm / r0Norm}).Debug("bicgstab")
			return true, nil
		}

		if err = applyPre(sv, ms, as); err != nil {
			return false, err
		}
		asS, err := as.Dot(sv)
		if err != nil {
			return false, err
		}
		asAs, err := as.Dot(as)
		if err != nil {
			return false, err
		}
		if asAs == 0 {
			return false, &BreakdownError{Iteration: numIts, Quantity: "As.As"}
		}
		omega := asS / asAs

		if m != nil {
			x.AddScaled2(alpha, mp, omega, ms)
		} else {
			x.AddScaled2(alpha, p, omega, sv)
		}
		resid.AddScaled2(-alpha, ap, -omega, as)

		rhoNew, err := resid.Dot(rhat)
		if err != nil {
			return false, err
		}
		if omega == 0 {
			return false, &BreakdownError{Iteration: numIts, Quantity: "omega"}
		}
		beta := rhoNew * alpha / (rho * omega)
		p.AddScaled(-omega, ap)
		p.ScaleThenAdd(beta, resid)

		numIts++
		rho = rhoNew
		if rnorm, err = resid.TwoNorm(); err != nil {
			return false, err
		}
		residual = rnorm / r0Norm
		if residual > DivergenceLimit {
			return false, &DivergenceError{Iteration: numIts, Residual: residual}
		}
		s.log.WithFields(logrus.Fields{"iteration": numIts, "residual": residual}).Debug("bicgstab")
		return false, nil
	}

	for residual > s.Tolerance && numIts < s.MaxIterations {
		s.startIteration()
		done, err := iterate()
		// stopped on error too
		if stopErr := s.stopIteration(); err == nil {
			err = stopErr
		}
		if err != nil || done {
			return numIts, err
		}
	}
	return numIts, nil
}
