package engine

import (
	"context"
	"sort"
	"time"
)

// deadlineCheckInterval controls how often the search polls the clock
// and the context; checking every node would dominate small models.
const deadlineCheckInterval = 1024

type bnbConstraint struct {
	terms []Term
	min   int64
	max   int64

	// activity is the decided portion of the sum; remNeg/remPos bound
	// what the undecided variables can still add.
	activity int64
	remNeg   int64
	remPos   int64
}

type bnbOccurrence struct {
	constraint int
	coef       int64
}

// bnbSolver is a deterministic depth-first branch-and-bound search over
// boolean variables with bounded linear constraints. It produces the
// same incumbent sequence for identical models and budgets, which keeps
// scheduling runs reproducible.
type bnbSolver struct {
	names       []string
	objective   []int64
	constraints []bnbConstraint
	occurs      [][]bnbOccurrence
	tieBreak    func(values []bool) float64

	order  []int
	values []bool

	best        Solution
	bestTie     float64
	hasBest     bool
	nodes       int64
	stopped     bool
	deadline    time.Time
	ctx         context.Context
	onImproving ImprovementFunc
}

// NewBranchAndBoundSolver returns an empty model ready for variables and
// constraints.
func NewBranchAndBoundSolver() Solver {
	return &bnbSolver{}
}

func (s *bnbSolver) AddBoolVar(name string) Var {
	s.names = append(s.names, name)
	s.objective = append(s.objective, 0)
	s.occurs = append(s.occurs, nil)
	return Var(len(s.names) - 1)
}

func (s *bnbSolver) AddLinearConstraint(terms []Term, min, max int64) {
	// A NoBound minimum means the constraint only caps from above.
	if min == NoBound {
		min = -NoBound
	}
	c := bnbConstraint{
		terms: append([]Term(nil), terms...),
		min:   min,
		max:   max,
	}
	idx := len(s.constraints)
	for _, t := range c.terms {
		if t.Coef > 0 {
			c.remPos += t.Coef
		} else {
			c.remNeg += t.Coef
		}
		s.occurs[t.Var] = append(s.occurs[t.Var], bnbOccurrence{constraint: idx, coef: t.Coef})
	}
	s.constraints = append(s.constraints, c)
}

func (s *bnbSolver) SetObjective(terms []Term) {
	for i := range s.objective {
		s.objective[i] = 0
	}
	for _, t := range terms {
		s.objective[t.Var] = t.Coef
	}
}

func (s *bnbSolver) SetTieBreak(fn func(values []bool) float64) {
	s.tieBreak = fn
}

func (s *bnbSolver) Solve(ctx context.Context, budget time.Duration, onImprovement ImprovementFunc) (Result, error) {
	start := time.Now()
	if budget <= 0 {
		budget = time.Minute
	}
	s.ctx = ctx
	s.deadline = start.Add(budget)
	s.onImproving = onImprovement
	s.values = make([]bool, len(s.names))
	s.hasBest = false
	s.stopped = false
	s.nodes = 0

	// Branch on high-value variables first; index breaks ties so the
	// search order is stable across runs.
	s.order = make([]int, len(s.names))
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		va, vb := s.order[a], s.order[b]
		if s.objective[va] != s.objective[vb] {
			return s.objective[va] > s.objective[vb]
		}
		return va < vb
	})

	// Remaining positive objective mass from each depth onward, for the
	// upper-bound prune.
	suffix := make([]int64, len(s.order)+1)
	for i := len(s.order) - 1; i >= 0; i-- {
		coef := s.objective[s.order[i]]
		suffix[i] = suffix[i+1]
		if coef > 0 {
			suffix[i] += coef
		}
	}

	s.search(0, 0, suffix)

	result := Result{
		Nodes:   s.nodes,
		Elapsed: time.Since(start),
	}
	switch {
	case s.stopped && !s.hasBest:
		// Stopped before the first incumbent: nothing is known about
		// feasibility, so this is a timeout, not a proof.
		result.Status = StatusTimedOut
	case !s.hasBest:
		result.Status = StatusInfeasible
	case s.stopped:
		result.Status = StatusTimedOut
		result.Best = s.best
	default:
		result.Status = StatusOptimal
		result.Best = s.best
	}
	return result, ctx.Err()
}

func (s *bnbSolver) search(depth int, objective int64, suffix []int64) {
	if s.stopped {
		return
	}
	s.nodes++
	if s.nodes%deadlineCheckInterval == 0 {
		if time.Now().After(s.deadline) || s.ctx.Err() != nil {
			s.stopped = true
			return
		}
	}

	if depth == len(s.order) {
		s.offerIncumbent(objective)
		return
	}

	// Bound: even taking every remaining positive-value variable cannot
	// beat the incumbent.
	if s.hasBest {
		upper := objective + suffix[depth]
		if upper < s.best.Objective {
			return
		}
		if upper == s.best.Objective && s.tieBreak == nil {
			return
		}
	}

	v := s.order[depth]

	// Greedy value order: try assigning first when it pays.
	first, second := true, false
	if s.objective[v] < 0 {
		first, second = false, true
	}

	for _, val := range [2]bool{first, second} {
		if s.stopped {
			return
		}
		if s.apply(v, val) {
			delta := int64(0)
			if val {
				delta = s.objective[v]
			}
			s.search(depth+1, objective+delta, suffix)
		}
		s.unapply(v, val)
	}
}

// apply decides v=val and returns false when some constraint can no
// longer reach its bounds. The decision is always recorded so unapply
// can reverse it.
func (s *bnbSolver) apply(v int, val bool) bool {
	s.values[v] = val
	ok := true
	for _, occ := range s.occurs[v] {
		c := &s.constraints[occ.constraint]
		if val {
			c.activity += occ.coef
		}
		if occ.coef > 0 {
			c.remPos -= occ.coef
		} else {
			c.remNeg -= occ.coef
		}
		if c.activity+c.remPos < c.min || c.activity+c.remNeg > c.max {
			ok = false
		}
	}
	return ok
}

func (s *bnbSolver) unapply(v int, val bool) {
	for _, occ := range s.occurs[v] {
		c := &s.constraints[occ.constraint]
		if val {
			c.activity -= occ.coef
		}
		if occ.coef > 0 {
			c.remPos += occ.coef
		} else {
			c.remNeg += occ.coef
		}
	}
	s.values[v] = false
}

func (s *bnbSolver) offerIncumbent(objective int64) {
	var tie float64
	if s.tieBreak != nil {
		tie = s.tieBreak(s.values)
	}
	if s.hasBest {
		if objective < s.best.Objective {
			return
		}
		if objective == s.best.Objective && tie <= s.bestTie {
			return
		}
	}

	s.best = Solution{
		Values:    append([]bool(nil), s.values...),
		Objective: objective,
	}
	s.bestTie = tie
	s.hasBest = true
	if s.onImproving != nil {
		s.onImproving(s.best)
	}
}
