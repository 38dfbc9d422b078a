package engine

import (
	"context"
	"time"
)

// Var identifies a boolean decision variable inside a solver model.
type Var int

// Term is a single coefficient*variable entry in a linear expression.
type Term struct {
	Var  Var
	Coef int64
}

// Status is the terminal state of a solve call.
type Status int

const (
	StatusOptimal Status = iota
	StatusFeasible
	StatusInfeasible
	StatusTimedOut
)

// String renders the status for logs and run records.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusTimedOut:
		return "TIMED_OUT"
	}
	return "UNKNOWN"
}

// Solution is a complete assignment of the model's boolean variables.
type Solution struct {
	Values    []bool
	Objective int64
}

// ImprovementFunc receives each improving incumbent as the search runs.
// Invocations are strictly non-decreasing in objective value.
type ImprovementFunc func(Solution)

// Result summarises a finished solve call. Best is meaningful for every
// status except StatusInfeasible.
type Result struct {
	Status  Status
	Best    Solution
	Nodes   int64
	Elapsed time.Duration
}

// Solver is the capability contract for the combinatorial engine: boolean
// variables, bounded linear constraints over them, a linear maximisation
// objective, and a best-effort solve under a time budget. Any constraint
// or integer programming backend satisfying this contract is
// interchangeable with the in-house branch-and-bound one.
type Solver interface {
	AddBoolVar(name string) Var
	AddLinearConstraint(terms []Term, min, max int64)
	SetObjective(terms []Term)
	// SetTieBreak installs an optional secondary objective evaluated on
	// complete assignments; among solutions with equal primary objective
	// the solver prefers a higher tie-break score.
	SetTieBreak(fn func(values []bool) float64)
	Solve(ctx context.Context, budget time.Duration, onImprovement ImprovementFunc) (Result, error)
}

// NoBound marks a constraint side as unbounded.
const NoBound = int64(1) << 62
