package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/dto"
	"github.com/campusops/ta-scheduler-api/internal/engine"
	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

type rosterInputLoader interface {
	FindByID(ctx context.Context, id string) (*models.Roster, error)
	Staff(ctx context.Context, rosterID string) ([]models.StaffMember, error)
	Unavailability(ctx context.Context, rosterID string) ([]models.UnavailabilityInterval, error)
	Slots(ctx context.Context, rosterID string) ([]models.Slot, error)
}

type runRecorder interface {
	Create(ctx context.Context, run *models.ScheduleRun) error
	UpdateStatus(ctx context.Context, id string, status models.RunStatus) error
	UpdateProgress(ctx context.Context, id string, objective int64, improvements int) error
	Finish(ctx context.Context, run *models.ScheduleRun) error
	FindByID(ctx context.Context, id string) (*models.ScheduleRun, error)
	List(ctx context.Context, rosterID string, status models.RunStatus, limit, offset int) ([]models.ScheduleRun, error)
}

// SchedulerConfig governs run defaults and retention.
type SchedulerConfig struct {
	DailyHourCap    float64
	MaxLabsPerStaff int
	TimeBudget      time.Duration
	GracePeriod     time.Duration
	BalanceEnabled  bool
	BalanceMode     string
	RunTTL          time.Duration
	ReportCacheTTL  time.Duration
}

// SchedulerService launches, tracks, and reports on scheduling runs.
// Live runs are held in memory; everything a client can ask about a
// finished run comes from the database, with reports cached.
type SchedulerService struct {
	rosters      rosterInputLoader
	runs         runRecorder
	orchestrator *engine.Orchestrator
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          SchedulerConfig
	store        *runStore
}

// NewSchedulerService wires scheduler dependencies.
func NewSchedulerService(
	rosters rosterInputLoader,
	runs runRecorder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DailyHourCap <= 0 {
		cfg.DailyHourCap = 4
	}
	if cfg.MaxLabsPerStaff <= 0 {
		cfg.MaxLabsPerStaff = 3
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = time.Minute
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = time.Hour
	}
	if cfg.BalanceMode == "" {
		cfg.BalanceMode = engine.BalanceMinUtilization
	}
	return &SchedulerService{
		rosters:      rosters,
		runs:         runs,
		orchestrator: engine.NewOrchestrator(logger, cfg.GracePeriod),
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		store:        newRunStore(cfg.RunTTL),
	}
}

// Start launches a run against a stored roster and returns immediately
// with the run in SEARCHING state. The search itself is detached from
// the request context.
func (s *SchedulerService) Start(ctx context.Context, req dto.StartRunRequest) (*dto.RunResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run payload")
	}

	roster, err := s.rosters.FindByID(ctx, req.RosterID)
	if err != nil {
		return nil, err
	}

	input, err := s.loadInput(ctx, roster.ID)
	if err != nil {
		return nil, err
	}

	engineCfg := s.engineConfig(req)
	configJSON, err := json.Marshal(engineCfg)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run config")
	}

	record := &models.ScheduleRun{
		RosterID:   roster.ID,
		Status:     models.RunStatusBuilding,
		StaffCount: len(input.Staff),
		SlotCount:  len(input.Slots),
		Config:     types.JSONText(configJSON),
	}
	if err := s.runs.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist run")
	}

	run, err := s.orchestrator.Start(context.Background(), input, engineCfg, s.progressSink(record.ID))
	if err != nil {
		record.Status = models.RunStatusFailed
		record.Error = err.Error()
		if finishErr := s.runs.Finish(context.Background(), record); finishErr != nil {
			s.logger.Warn("failed to mark run as failed", zap.String("run_id", record.ID), zap.Error(finishErr))
		}
		return nil, err
	}

	record.Status = models.RunStatusSearching
	if err := s.runs.UpdateStatus(ctx, record.ID, models.RunStatusSearching); err != nil {
		s.logger.Warn("failed to mark run as searching", zap.String("run_id", record.ID), zap.Error(err))
	}
	s.store.Save(record.ID, run, record)
	if s.metrics != nil {
		s.metrics.RunStarted()
	}
	go s.finalize(record.ID, run, record)

	return s.runResponse(record, run), nil
}

// progressSink persists improving incumbents; callbacks arrive on the
// worker goroutine so persistence uses its own short context.
func (s *SchedulerService) progressSink(runID string) engine.ProgressFunc {
	return func(snap models.SolutionSnapshot) {
		s.store.Progress(runID, snap)
		if snap.Final {
			return
		}
		if s.metrics != nil {
			s.metrics.RecordImprovement()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.runs.UpdateProgress(ctx, runID, snap.Objective, snap.Improvement); err != nil {
			s.logger.Warn("failed to persist run progress", zap.String("run_id", runID), zap.Error(err))
		}
	}
}

// finalize waits for the search to end, extracts the report, persists
// the terminal record, and warms the report cache. Live endpoints read
// the stored record concurrently, so terminal fields go onto a copy
// that replaces the original atomically once complete.
func (s *SchedulerService) finalize(runID string, run *engine.Run, record *models.ScheduleRun) {
	<-run.Done()

	status := run.Status()
	result := run.Result()
	updated := *record
	updated.Status = status
	updated.Objective = result.Best.Objective
	updated.Improvements = run.Improvements()
	if runErr := run.Err(); runErr != nil {
		updated.Error = runErr.Error()
	}

	if status != models.RunStatusFailed {
		report := run.Model().Report(result, status)
		if payload, err := json.Marshal(report); err == nil {
			updated.Report = types.JSONText(payload)
		} else {
			s.logger.Error("failed to encode report", zap.String("run_id", runID), zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.runs.Finish(ctx, &updated); err != nil {
		s.logger.Error("failed to persist finished run", zap.String("run_id", runID), zap.Error(err))
	}
	s.store.SetRecord(runID, &updated)

	if s.cache.Enabled() && len(updated.Report) > 0 && status != models.RunStatusFailed {
		if err := s.cache.Set(ctx, reportCacheKey(runID), updated.Report, s.cfg.ReportCacheTTL); err != nil {
			s.logger.Warn("failed to cache report", zap.String("run_id", runID), zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RunFinished(string(status), result.Elapsed, result.Nodes)
	}

	s.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int64("objective", result.Best.Objective),
		zap.Int("improvements", updated.Improvements),
	)
}

// Get returns the current view of a run, live or persisted.
func (s *SchedulerService) Get(ctx context.Context, id string) (*dto.RunResponse, error) {
	if entry, ok := s.store.Get(id); ok {
		return s.runResponse(entry.Record(), entry.run), nil
	}

	record, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.runResponse(record, nil), nil
}

// Progress reports the latest incumbent for live polling. Finished runs
// answer from their persisted record.
func (s *SchedulerService) Progress(ctx context.Context, id string) (*dto.RunProgressResponse, error) {
	if entry, ok := s.store.Get(id); ok {
		resp := &dto.RunProgressResponse{
			RunID:  id,
			Status: string(entry.run.Status()),
		}
		if snap := entry.Latest(); snap != nil {
			resp.Objective = snap.Objective
			resp.Improvement = snap.Improvement
			resp.Assigned = len(snap.Assignments)
			resp.ElapsedMS = snap.Elapsed.Milliseconds()
			resp.Final = snap.Final
		}
		return resp, nil
	}

	record, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.RunProgressResponse{
		RunID:       id,
		Status:      string(record.Status),
		Objective:   record.Objective,
		Improvement: record.Improvements,
		Final:       record.Status.Terminal(),
	}, nil
}

// Cancel requests a cooperative stop of a live run.
func (s *SchedulerService) Cancel(ctx context.Context, id string) (*dto.RunResponse, error) {
	entry, ok := s.store.Get(id)
	if !ok {
		record, err := s.runs.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if record.Status.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "run already finished")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("run %q is not active on this instance", id))
	}

	if !entry.run.Cancel() {
		s.logger.Warn("run did not stop within grace period", zap.String("run_id", id))
	}
	return s.runResponse(entry.Record(), entry.run), nil
}

// Report returns the terminal assignment report of a finished run.
func (s *SchedulerService) Report(ctx context.Context, id string) (*models.AssignmentReport, error) {
	var cached types.JSONText
	if s.cache.Enabled() {
		if hit, err := s.cache.Get(ctx, reportCacheKey(id), &cached); err == nil && hit && len(cached) > 0 {
			var report models.AssignmentReport
			if err := json.Unmarshal(cached, &report); err == nil {
				return &report, nil
			}
		}
	}

	record, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "run has not finished yet")
	}
	if record.Status == models.RunStatusFailed {
		return nil, appErrors.Clone(appErrors.ErrSolverFailure, record.Error)
	}
	if len(record.Report) == 0 || string(record.Report) == "null" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("run %q has no report", id))
	}

	var report models.AssignmentReport
	if err := json.Unmarshal(record.Report, &report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored report is unreadable")
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, reportCacheKey(id), record.Report, s.cfg.ReportCacheTTL); err != nil {
			s.logger.Warn("failed to cache report", zap.String("run_id", id), zap.Error(err))
		}
	}
	return &report, nil
}

// List returns runs newest first.
func (s *SchedulerService) List(ctx context.Context, query dto.RunQuery) ([]dto.RunResponse, error) {
	limit := query.PageSize
	offset := 0
	if query.Page > 1 {
		offset = (query.Page - 1) * limit
	}

	records, err := s.runs.List(ctx, query.RosterID, models.RunStatus(query.Status), limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]dto.RunResponse, 0, len(records))
	for i := range records {
		out = append(out, *s.runResponse(&records[i], nil))
	}
	return out, nil
}

func (s *SchedulerService) loadInput(ctx context.Context, rosterID string) (engine.Input, error) {
	staff, err := s.rosters.Staff(ctx, rosterID)
	if err != nil {
		return engine.Input{}, err
	}
	unavailability, err := s.rosters.Unavailability(ctx, rosterID)
	if err != nil {
		return engine.Input{}, err
	}
	slots, err := s.rosters.Slots(ctx, rosterID)
	if err != nil {
		return engine.Input{}, err
	}
	return engine.Input{Staff: staff, Slots: slots, Unavailability: unavailability}, nil
}

func (s *SchedulerService) engineConfig(req dto.StartRunRequest) engine.Config {
	cfg := engine.Config{
		DailyCapMinutes: int(s.cfg.DailyHourCap * 60),
		MaxLabsPerStaff: s.cfg.MaxLabsPerStaff,
		TimeBudget:      s.cfg.TimeBudget,
		BalanceEnabled:  s.cfg.BalanceEnabled,
		BalanceMode:     s.cfg.BalanceMode,
	}
	if req.DailyHourCap != nil {
		cfg.DailyCapMinutes = int(*req.DailyHourCap * 60)
	}
	if req.MaxLabsPerStaff != nil {
		cfg.MaxLabsPerStaff = *req.MaxLabsPerStaff
	}
	if req.TimeBudgetSeconds != nil {
		cfg.TimeBudget = time.Duration(*req.TimeBudgetSeconds) * time.Second
	}
	if req.BalanceEnabled != nil {
		cfg.BalanceEnabled = *req.BalanceEnabled
	}
	if req.BalanceMode != "" {
		cfg.BalanceMode = req.BalanceMode
	}
	return cfg
}

func (s *SchedulerService) runResponse(record *models.ScheduleRun, run *engine.Run) *dto.RunResponse {
	resp := &dto.RunResponse{
		ID:           record.ID,
		RosterID:     record.RosterID,
		Status:       string(record.Status),
		Objective:    record.Objective,
		Improvements: record.Improvements,
		StaffCount:   record.StaffCount,
		SlotCount:    record.SlotCount,
		Error:        record.Error,
		StartedAt:    record.StartedAt,
		FinishedAt:   record.FinishedAt,
	}
	if run != nil {
		resp.Status = string(run.Status())
		resp.Improvements = run.Improvements()
		resp.HardGaps = run.Model().HardGaps()
		if best := run.Best(); best != nil {
			resp.Objective = best.Objective
		}
	}
	return resp
}

func reportCacheKey(runID string) string {
	return "report:" + runID
}

// runStore tracks live runs with a retention window so finished entries
// eventually fall out of memory.
type runStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*runEntry
}

type runEntry struct {
	run     *engine.Run
	record  *models.ScheduleRun
	mu      sync.RWMutex
	latest  *models.SolutionSnapshot
	savedAt time.Time
}

// Latest returns the newest snapshot, or nil before the first improvement.
func (e *runEntry) Latest() *models.SolutionSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Record returns the current run record. The pointed-to struct is never
// mutated after it is stored, so callers may read it without the lock.
func (e *runEntry) Record() *models.ScheduleRun {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.record
}

func newRunStore(ttl time.Duration) *runStore {
	return &runStore{ttl: ttl, items: make(map[string]*runEntry)}
}

func (s *runStore) Save(id string, run *engine.Run, record *models.ScheduleRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = &runEntry{run: run, record: record, savedAt: time.Now()}
}

func (s *runStore) Get(id string) (*runEntry, bool) {
	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(entry.savedAt) > s.ttl && entry.run.Status().Terminal() {
		s.Delete(id)
		return nil, false
	}
	return entry, true
}

func (s *runStore) Progress(id string, snap models.SolutionSnapshot) {
	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.latest = &snap
	entry.mu.Unlock()
}

// SetRecord swaps in a replacement record, typically the terminal copy
// written by finalize.
func (s *runStore) SetRecord(id string, record *models.ScheduleRun) {
	s.mu.RLock()
	entry, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.record = record
	entry.mu.Unlock()
}

func (s *runStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}
