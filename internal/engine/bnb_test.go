package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchAndBoundFindsOptimum(t *testing.T) {
	s := NewBranchAndBoundSolver()
	a := s.AddBoolVar("a")
	b := s.AddBoolVar("b")
	c := s.AddBoolVar("c")

	// At most two of the three may be chosen.
	s.AddLinearConstraint([]Term{{a, 1}, {b, 1}, {c, 1}}, 0, 2)
	s.SetObjective([]Term{{a, 5}, {b, 3}, {c, 4}})

	res, err := s.Solve(context.Background(), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.Equal(t, int64(9), res.Best.Objective)
	assert.True(t, res.Best.Values[a])
	assert.False(t, res.Best.Values[b])
	assert.True(t, res.Best.Values[c])
}

func TestBranchAndBoundMutualExclusion(t *testing.T) {
	s := NewBranchAndBoundSolver()
	a := s.AddBoolVar("a")
	b := s.AddBoolVar("b")

	s.AddLinearConstraint([]Term{{a, 1}, {b, 1}}, 0, 1)
	s.SetObjective([]Term{{a, 7}, {b, 7}})

	res, err := s.Solve(context.Background(), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.Equal(t, int64(7), res.Best.Objective)
	assert.NotEqual(t, res.Best.Values[a], res.Best.Values[b], "exactly one side of the exclusion")
}

func TestBranchAndBoundInfeasible(t *testing.T) {
	s := NewBranchAndBoundSolver()
	a := s.AddBoolVar("a")
	b := s.AddBoolVar("b")

	// Both lower and upper bounds cannot be met at once.
	s.AddLinearConstraint([]Term{{a, 1}, {b, 1}}, 2, 2)
	s.AddLinearConstraint([]Term{{a, 1}}, 0, 0)
	s.SetObjective([]Term{{a, 1}, {b, 1}})

	res, err := s.Solve(context.Background(), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, res.Status)
}

func TestBranchAndBoundEmptyModelIsOptimal(t *testing.T) {
	s := NewBranchAndBoundSolver()
	res, err := s.Solve(context.Background(), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.Equal(t, int64(0), res.Best.Objective)
}

func TestBranchAndBoundImprovementsNonDecreasing(t *testing.T) {
	s := NewBranchAndBoundSolver()
	vars := make([]Var, 8)
	terms := make([]Term, 0, len(vars))
	objective := make([]Term, 0, len(vars))
	for i := range vars {
		vars[i] = s.AddBoolVar("x")
		terms = append(terms, Term{vars[i], 1})
		objective = append(objective, Term{vars[i], int64(i + 1)})
	}
	s.AddLinearConstraint(terms, 0, 4)
	s.SetObjective(objective)

	var seen []int64
	res, err := s.Solve(context.Background(), time.Second, func(sol Solution) {
		seen = append(seen, sol.Objective)
	})
	require.NoError(t, err)
	require.NotEmpty(t, seen)

	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
	assert.Equal(t, res.Best.Objective, seen[len(seen)-1], "last callback carries the final incumbent")
	assert.Equal(t, int64(8+7+6+5), res.Best.Objective)
}

func TestBranchAndBoundTieBreakPrefersHigherScore(t *testing.T) {
	s := NewBranchAndBoundSolver()
	a := s.AddBoolVar("a")
	b := s.AddBoolVar("b")

	// Same primary value either way; the tie-break should pick b.
	s.AddLinearConstraint([]Term{{a, 1}, {b, 1}}, 0, 1)
	s.SetObjective([]Term{{a, 5}, {b, 5}})
	s.SetTieBreak(func(values []bool) float64 {
		if values[b] {
			return 1
		}
		return 0
	})

	res, err := s.Solve(context.Background(), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.Equal(t, int64(5), res.Best.Objective)
	assert.True(t, res.Best.Values[b])
	assert.False(t, res.Best.Values[a])
}

// wideModel builds a search space large enough that the solver must hit
// its periodic deadline checks before exhausting it.
func wideModel() Solver {
	s := NewBranchAndBoundSolver()
	terms := make([]Term, 0, 30)
	objective := make([]Term, 0, 30)
	for i := 0; i < 30; i++ {
		v := s.AddBoolVar("x")
		terms = append(terms, Term{v, 1})
		objective = append(objective, Term{v, 1})
	}
	s.AddLinearConstraint(terms, 0, 15)
	s.SetObjective(objective)
	// A constant tie-break disables equal-bound pruning, forcing the
	// search to enumerate alternatives.
	s.SetTieBreak(func([]bool) float64 { return 0 })
	return s
}

func TestBranchAndBoundHonoursBudget(t *testing.T) {
	s := wideModel()

	res, err := s.Solve(context.Background(), 5*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, res.Status)
	assert.NotNil(t, res.Best.Values, "keeps the best incumbent found so far")
	assert.Equal(t, int64(15), res.Best.Objective)
	assert.Less(t, res.Elapsed, time.Second)
}

func TestBranchAndBoundHonoursCancellation(t *testing.T) {
	s := wideModel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Solve(ctx, time.Minute, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusTimedOut, res.Status)
}

func TestBranchAndBoundDeterministic(t *testing.T) {
	build := func() Solver {
		s := NewBranchAndBoundSolver()
		var terms, objective []Term
		for i := 0; i < 10; i++ {
			v := s.AddBoolVar("x")
			terms = append(terms, Term{v, 1})
			objective = append(objective, Term{v, int64(10 - i)})
		}
		s.AddLinearConstraint(terms, 0, 3)
		s.SetObjective(objective)
		return s
	}

	first, err := build().Solve(context.Background(), time.Second, nil)
	require.NoError(t, err)
	second, err := build().Solve(context.Background(), time.Second, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Best.Objective, second.Best.Objective)
	assert.Equal(t, first.Best.Values, second.Best.Values)
	assert.Equal(t, first.Nodes, second.Nodes)
}

func TestBranchAndBoundCapOnlyConstraint(t *testing.T) {
	s := NewBranchAndBoundSolver()
	a := s.AddBoolVar("a")
	b := s.AddBoolVar("b")

	// NoBound below: the constraint only caps from above.
	s.AddLinearConstraint([]Term{{a, 1}, {b, 1}}, NoBound, 1)
	s.SetObjective([]Term{{a, 2}, {b, 3}})

	res, err := s.Solve(context.Background(), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.Equal(t, int64(3), res.Best.Objective)
	assert.False(t, res.Best.Values[a])
	assert.True(t, res.Best.Values[b])
}

func TestBranchAndBoundStoppedBeforeIncumbentIsTimeout(t *testing.T) {
	// Enough variables that the periodic stop check fires before the
	// first depth-first dive can reach a leaf.
	s := NewBranchAndBoundSolver()
	objective := make([]Term, 0, 2048)
	for i := 0; i < 2048; i++ {
		v := s.AddBoolVar("x")
		objective = append(objective, Term{v, 1})
	}
	s.SetObjective(objective)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Solve(ctx, time.Minute, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusTimedOut, res.Status, "an interrupted search proves nothing about feasibility")
	assert.Nil(t, res.Best.Values)
}
