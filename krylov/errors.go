package krylov

import "fmt"

// BreakdownError reports an iteration that can not continue because a
// scalar the method divides by vanished
type BreakdownError struct {
	Iteration int
	Quantity  string
}

func (e *BreakdownError) Error() string {
	return fmt.Sprintf("BiCGStab broke down, %s was 0 on iteration %d", e.Quantity, e.Iteration)
}

// DivergenceError reports a relative residual above DivergenceLimit
type DivergenceError struct {
	Iteration int
	Residual  float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("BiCGStab reached divergence criteria on iteration %d with relative residual %g",
		e.Iteration, e.Residual)
}
