package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// ProgressFunc receives every improving incumbent on the worker
// goroutine. Snapshots arrive with non-decreasing objectives; the last
// one carries Final=true.
type ProgressFunc func(snap models.SolutionSnapshot)

// Orchestrator owns the lifecycle of scheduling runs: it builds the
// model synchronously so configuration errors surface to the caller,
// then searches on a dedicated goroutine.
type Orchestrator struct {
	logger    *zap.Logger
	grace     time.Duration
	newSolver func() Solver
}

func NewOrchestrator(logger *zap.Logger, grace time.Duration) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &Orchestrator{
		logger:    logger,
		grace:     grace,
		newSolver: NewBranchAndBoundSolver,
	}
}

// Run is one in-flight or finished search. All accessors are safe for
// concurrent use.
type Run struct {
	mu           sync.RWMutex
	status       models.RunStatus
	best         *models.SolutionSnapshot
	improvements int
	result       Result
	err          error

	model   *Model
	started time.Time
	grace   time.Duration
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start validates and builds the model, then launches the search. A nil
// error means the run transitioned to SEARCHING and will reach a
// terminal status on its own.
func (o *Orchestrator) Start(ctx context.Context, input Input, cfg Config, onProgress ProgressFunc) (*Run, error) {
	model, err := BuildModel(input, cfg, o.newSolver())
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		status:  models.RunStatusSearching,
		model:   model,
		started: time.Now(),
		grace:   o.grace,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	o.logger.Info("scheduling search started",
		zap.Int("staff", len(input.Staff)),
		zap.Int("slots", len(input.Slots)),
		zap.Int("variables", model.VariableCount()),
		zap.Int("hard_gaps", len(model.HardGaps())),
		zap.Duration("budget", cfg.TimeBudget),
	)

	go r.search(runCtx, o.logger, onProgress)
	return r, nil
}

func (r *Run) search(ctx context.Context, logger *zap.Logger, onProgress ProgressFunc) {
	defer close(r.done)
	defer r.cancel()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("solver panicked", zap.Any("panic", rec))
			r.mu.Lock()
			r.status = models.RunStatusFailed
			r.err = appErrors.Clone(appErrors.ErrSolverFailure, fmt.Sprintf("solver panic: %v", rec))
			r.mu.Unlock()
		}
	}()

	result, solveErr := r.model.Solve(ctx, func(sol Solution) {
		r.mu.Lock()
		r.improvements++
		n := r.improvements
		r.mu.Unlock()

		snap := r.model.Snapshot(sol, n, time.Since(r.started), false)
		r.mu.Lock()
		r.best = &snap
		r.mu.Unlock()

		if onProgress != nil {
			onProgress(snap)
		}
	})

	status := terminalStatus(result, ctx.Err())

	r.mu.Lock()
	r.result = result
	r.status = status
	if solveErr != nil && status != models.RunStatusCancelled && status != models.RunStatusTimedOut {
		r.err = solveErr
	}
	r.mu.Unlock()

	logger.Info("scheduling search finished",
		zap.String("status", string(status)),
		zap.Int64("objective", result.Best.Objective),
		zap.Int64("nodes", result.Nodes),
		zap.Duration("elapsed", result.Elapsed),
	)

	if onProgress != nil && hasSolution(result) {
		r.mu.RLock()
		n := r.improvements
		r.mu.RUnlock()
		onProgress(r.model.Snapshot(result.Best, n, time.Since(r.started), true))
	}
}

// terminalStatus maps a solver outcome onto the run state machine.
// Cancellation beats a timeout when both raced.
func terminalStatus(result Result, ctxErr error) models.RunStatus {
	if ctxErr != nil {
		return models.RunStatusCancelled
	}
	switch result.Status {
	case StatusOptimal:
		return models.RunStatusOptimal
	case StatusFeasible:
		return models.RunStatusFeasible
	case StatusInfeasible:
		return models.RunStatusInfeasible
	default:
		return models.RunStatusTimedOut
	}
}

func hasSolution(result Result) bool {
	switch result.Status {
	case StatusOptimal, StatusFeasible:
		return true
	case StatusTimedOut:
		return result.Best.Values != nil
	default:
		return false
	}
}

// Cancel requests a cooperative stop and waits up to the grace period
// for the worker to wind down. It reports whether the run reached a
// terminal state in time.
func (r *Run) Cancel() bool {
	r.cancel()
	select {
	case <-r.done:
		return true
	case <-time.After(r.grace):
		return false
	}
}

// Done is closed once the run reaches a terminal status.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx expires.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) Status() models.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Best returns a copy of the latest incumbent, or nil before the first
// improvement.
func (r *Run) Best() *models.SolutionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.best == nil {
		return nil
	}
	snap := *r.best
	return &snap
}

func (r *Run) Improvements() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.improvements
}

func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Result exposes the raw solver outcome. Only meaningful after Done.
func (r *Run) Result() Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// Model gives report extraction access to the built model.
func (r *Run) Model() *Model {
	return r.model
}

func (r *Run) StartedAt() time.Time {
	return r.started
}
