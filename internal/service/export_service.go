package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
	"github.com/campusops/ta-scheduler-api/pkg/export"
	"github.com/campusops/ta-scheduler-api/pkg/jobs"
)

// Export formats and sections selectable per request.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"

	ExportSectionCoverage = "coverage"
	ExportSectionStaff    = "staff"
)

// Export job states.
const (
	ExportStatusPending = "PENDING"
	ExportStatusReady   = "READY"
	ExportStatusFailed  = "FAILED"
)

// reportSource yields the finished report for a run.
type reportSource interface {
	Report(ctx context.Context, runID string) (*models.AssignmentReport, error)
}

// fileStorage persists rendered export files.
type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// tokenSigner issues and validates download tokens.
type tokenSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ExportConfig tunes export generation and retention.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Workers   int
}

// ExportJob tracks one export request through the queue.
type ExportJob struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Format       string    `json:"format"`
	Section      string    `json:"section"`
	Status       string    `json:"status"`
	RelativePath string    `json:"-"`
	URL          string    `json:"url,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type exportPayload struct {
	jobID   string
	runID   string
	format  string
	section string
}

// ExportService renders run reports to downloadable CSV or PDF files.
type ExportService struct {
	reports reportSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  tokenSigner
	logger  *zap.Logger
	cfg     ExportConfig

	queue *jobs.Queue

	mu   sync.RWMutex
	done map[string]*ExportJob
}

// NewExportService wires the export pipeline.
func NewExportService(reports reportSource, storage fileStorage, csv csvRenderer, pdf pdfRenderer, signer tokenSigner, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}

	s := &ExportService{
		reports: reports,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		done:    make(map[string]*ExportJob),
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request queues an export of the run's report and returns the tracking job.
func (s *ExportService) Request(ctx context.Context, runID, format, section string) (*ExportJob, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if section == "" {
		section = ExportSectionCoverage
	}
	if section != ExportSectionCoverage && section != ExportSectionStaff {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export section %q", section))
	}

	// Fail fast when the run has no report yet rather than queueing a doomed job.
	if _, err := s.reports.Report(ctx, runID); err != nil {
		return nil, err
	}

	job := &ExportJob{
		ID:        uuid.New().String(),
		RunID:     runID,
		Format:    format,
		Section:   section,
		Status:    ExportStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.done[job.ID] = job
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    "export." + format,
		Payload: exportPayload{jobID: job.ID, runID: runID, format: format, section: section},
	})
	if err != nil {
		s.mu.Lock()
		delete(s.done, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	s.logger.Sugar().Infow("export queued", "job_id", job.ID, "run_id", runID, "format", format, "section", section)
	return s.Status(job.ID)
}

// Status returns the current state of an export job.
func (s *ExportService) Status(jobID string) (*ExportJob, error) {
	s.mu.RLock()
	job, ok := s.done[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	clone := *job
	return &clone, nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	report, err := s.reports.Report(ctx, payload.runID)
	if err != nil {
		s.fail(payload.jobID, err)
		return err
	}

	dataset, title := buildExportDataset(report, payload.runID, payload.section)

	var data []byte
	switch payload.format {
	case ExportFormatPDF:
		data, err = s.pdf.Render(dataset, title)
	default:
		data, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.fail(payload.jobID, err)
		return err
	}

	filename := buildExportFilename(payload.runID, payload.section, payload.format)
	relPath, err := s.storage.Save(filename, data)
	if err != nil {
		s.fail(payload.jobID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(payload.jobID, relPath)
	if err != nil {
		s.fail(payload.jobID, err)
		return err
	}

	s.mu.Lock()
	if entry, ok := s.done[payload.jobID]; ok {
		entry.Status = ExportStatusReady
		entry.RelativePath = relPath
		entry.URL = fmt.Sprintf("%s/exports/download/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
		entry.ExpiresAt = expiresAt
		entry.Error = ""
	}
	s.mu.Unlock()

	s.logger.Sugar().Infow("export ready", "job_id", payload.jobID, "run_id", payload.runID, "file", relPath)
	return nil
}

func (s *ExportService) fail(jobID string, err error) {
	s.mu.Lock()
	if entry, ok := s.done[jobID]; ok {
		entry.Status = ExportStatusFailed
		entry.Error = err.Error()
	}
	s.mu.Unlock()
}

// Open validates a download token and opens the underlying file.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return f, relPath, nil
}

// Delete removes the file behind a token. Expired tokens are accepted.
func (s *ExportService) Delete(token string) error {
	jobID, relPath, _, err := s.signer.Parse(token, true)
	if err != nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	if err := s.storage.Delete(relPath); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete export file")
	}
	s.mu.Lock()
	delete(s.done, jobID)
	s.mu.Unlock()
	return nil
}

// Cleanup deletes export files older than the retention window.
func (s *ExportService) Cleanup() (int, error) {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return 0, err
	}
	if len(removed) > 0 {
		s.logger.Sugar().Infow("exports cleaned up", "count", len(removed))
	}
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	s.mu.Lock()
	for id, job := range s.done {
		if job.CreatedAt.Before(cutoff) {
			delete(s.done, id)
		}
	}
	s.mu.Unlock()
	return len(removed), nil
}

func buildExportDataset(report *models.AssignmentReport, runID, section string) (export.Dataset, string) {
	if section == ExportSectionStaff {
		return staffDataset(report), fmt.Sprintf("Staff Load Summary (run %s)", shortID(runID))
	}
	return coverageDataset(report), fmt.Sprintf("Lab Coverage (run %s)", shortID(runID))
}

func coverageDataset(report *models.AssignmentReport) export.Dataset {
	ds := export.Dataset{
		Headers: []string{"Lab", "Day", "Time", "Required", "Assigned", "Staff", "Shortfall", "Hard Gap"},
	}
	for _, slot := range report.Slots {
		gap := ""
		if slot.HardGap {
			gap = "yes"
		}
		ds.Rows = append(ds.Rows, map[string]string{
			"Lab":       slot.Label,
			"Day":       slot.Day,
			"Time":      fmt.Sprintf("%s-%s", minutesToClock(slot.StartMinute), minutesToClock(slot.EndMinute)),
			"Required":  fmt.Sprintf("%d", slot.Required),
			"Assigned":  fmt.Sprintf("%d", len(slot.Assigned)),
			"Staff":     strings.Join(slot.Assigned, "; "),
			"Shortfall": fmt.Sprintf("%d", slot.Shortfall),
			"Hard Gap":  gap,
		})
	}
	return ds
}

func staffDataset(report *models.AssignmentReport) export.Dataset {
	ds := export.Dataset{
		Headers: []string{"Name", "Assigned Hours", "Hired Hours", "Utilization", "Labs", "Slots"},
	}
	summaries := make([]models.StaffSummary, len(report.Staff))
	copy(summaries, report.Staff)
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })

	for _, st := range summaries {
		utilization := ""
		if st.HiredMinutes > 0 {
			utilization = fmt.Sprintf("%.0f%%", 100*float64(st.AssignedMinutes)/float64(st.HiredMinutes))
		}
		ds.Rows = append(ds.Rows, map[string]string{
			"Name":           st.Name,
			"Assigned Hours": fmt.Sprintf("%.1f", float64(st.AssignedMinutes)/60),
			"Hired Hours":    fmt.Sprintf("%.1f", float64(st.HiredMinutes)/60),
			"Utilization":    utilization,
			"Labs":           fmt.Sprintf("%d", st.SlotCount),
			"Slots":          strings.Join(st.Slots, "; "),
		})
	}
	return ds
}

func minutesToClock(m int) string {
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func buildExportFilename(runID, section, format string) string {
	stamp := time.Now().UTC().Format("20060102-150405")
	return sanitizeFilename(fmt.Sprintf("run-%s-%s-%s.%s", shortID(runID), section, stamp, format))
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
