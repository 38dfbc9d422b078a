package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// stubSolver lets tests script the solve outcome while still accepting
// the model the builder installs.
type stubSolver struct {
	vars     int
	result   Result
	err      error
	panicMsg string
	block    bool
}

func (s *stubSolver) AddBoolVar(string) Var {
	s.vars++
	return Var(s.vars - 1)
}
func (s *stubSolver) AddLinearConstraint([]Term, int64, int64) {}
func (s *stubSolver) SetObjective([]Term)                      {}
func (s *stubSolver) SetTieBreak(func([]bool) float64)         {}

func (s *stubSolver) Solve(ctx context.Context, _ time.Duration, _ ImprovementFunc) (Result, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return Result{Status: StatusTimedOut}, ctx.Err()
	}
	return s.result, s.err
}

func smallInput() Input {
	return Input{
		Staff: []models.StaffMember{
			staff("a", "Avery", 600),
			staff("b", "Blake", 600),
		},
		Slots: []models.Slot{
			slot("s1", "CS101-A", "Monday", 540, 660, 1),
			slot("s2", "CS102-A", "Tuesday", 540, 660, 2),
		},
	}
}

func TestOrchestratorRunsToOptimal(t *testing.T) {
	o := NewOrchestrator(zap.NewNop(), time.Second)

	var snaps []models.SolutionSnapshot
	done := make(chan struct{})
	run, err := o.Start(context.Background(), smallInput(), testConfig(), func(snap models.SolutionSnapshot) {
		snaps = append(snaps, snap)
		if snap.Final {
			close(done)
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, run.Wait(ctx))

	assert.Equal(t, models.RunStatusOptimal, run.Status())
	assert.True(t, run.Status().Terminal())
	require.NotNil(t, run.Best())
	assert.GreaterOrEqual(t, run.Improvements(), 1)
	assert.NoError(t, run.Err())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("final snapshot never delivered")
	}

	// Progress callbacks never regress and end with the terminal one.
	for i := 1; i < len(snaps); i++ {
		assert.GreaterOrEqual(t, snaps[i].Objective, snaps[i-1].Objective)
	}
	last := snaps[len(snaps)-1]
	assert.True(t, last.Final)
	assert.Len(t, last.Assignments, 3, "both staff cover s2, one covers s1")
}

func TestOrchestratorRejectsBrokenConfiguration(t *testing.T) {
	o := NewOrchestrator(zap.NewNop(), time.Second)

	input := smallInput()
	input.Slots[0].Required = 0

	run, err := o.Start(context.Background(), input, testConfig(), nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConfiguration))
	assert.Nil(t, run)
}

func TestOrchestratorPanicBecomesSolverFailure(t *testing.T) {
	o := NewOrchestrator(zap.NewNop(), time.Second)
	o.newSolver = func() Solver { return &stubSolver{panicMsg: "index out of range"} }

	run, err := o.Start(context.Background(), smallInput(), testConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, run.Wait(ctx))

	assert.Equal(t, models.RunStatusFailed, run.Status())
	require.Error(t, run.Err())
	assert.True(t, appErrors.Is(run.Err(), appErrors.ErrSolverFailure))
}

func TestOrchestratorCancelStopsTheSearch(t *testing.T) {
	o := NewOrchestrator(zap.NewNop(), time.Second)
	o.newSolver = func() Solver { return &stubSolver{block: true} }

	run, err := o.Start(context.Background(), smallInput(), testConfig(), nil)
	require.NoError(t, err)

	assert.True(t, run.Cancel(), "worker stops within the grace period")
	assert.Equal(t, models.RunStatusCancelled, run.Status())
	assert.NoError(t, run.Err(), "cancellation is an outcome, not an error")
}

func TestOrchestratorInfeasibleOutcome(t *testing.T) {
	o := NewOrchestrator(zap.NewNop(), time.Second)
	o.newSolver = func() Solver { return &stubSolver{result: Result{Status: StatusInfeasible}} }

	run, err := o.Start(context.Background(), smallInput(), testConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, run.Wait(ctx))

	assert.Equal(t, models.RunStatusInfeasible, run.Status())
	assert.Nil(t, run.Best())
}

func TestOrchestratorParentContextCancellation(t *testing.T) {
	o := NewOrchestrator(zap.NewNop(), time.Second)
	o.newSolver = func() Solver { return &stubSolver{block: true} }

	parent, cancel := context.WithCancel(context.Background())
	run, err := o.Start(parent, smallInput(), testConfig(), nil)
	require.NoError(t, err)

	cancel()

	ctx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, run.Wait(ctx))
	assert.Equal(t, models.RunStatusCancelled, run.Status())
}
