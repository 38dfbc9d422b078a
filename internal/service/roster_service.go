package service

import (
	"context"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusops/ta-scheduler-api/internal/dto"
	"github.com/campusops/ta-scheduler-api/internal/ingest"
	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

type rosterWriter interface {
	Create(ctx context.Context, roster *models.Roster, staff []models.StaffMember, unavailability []models.UnavailabilityInterval, slots []models.Slot) error
	FindByID(ctx context.Context, id string) (*models.Roster, error)
	List(ctx context.Context) ([]models.Roster, error)
	Delete(ctx context.Context, id string) error
}

// RosterService turns uploaded CSV files into stored roster bundles.
type RosterService struct {
	repo      rosterWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs the service.
func NewRosterService(repo rosterWriter, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, validator: validate, logger: logger}
}

// Upload parses the three input files and persists them as one bundle.
// Parsing happens before any write, so a malformed file leaves nothing
// behind.
func (s *RosterService) Upload(ctx context.Context, name string, staffFile, responsesFile, requirementsFile io.Reader) (*dto.RosterResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster name is required")
	}

	staff, err := ingest.ParseStaff(staffFile)
	if err != nil {
		return nil, err
	}
	unavailability, err := ingest.ParseResponses(responsesFile, staff)
	if err != nil {
		return nil, err
	}
	slots, err := ingest.ParseRequirements(requirementsFile)
	if err != nil {
		return nil, err
	}

	roster := &models.Roster{Name: name}
	if err := s.repo.Create(ctx, roster, staff, unavailability, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist roster")
	}

	s.logger.Info("roster uploaded",
		zap.String("roster_id", roster.ID),
		zap.String("name", name),
		zap.Int("staff", len(staff)),
		zap.Int("slots", len(slots)),
		zap.Int("unavailability", len(unavailability)),
	)
	return rosterResponse(roster), nil
}

// Get returns one roster summary.
func (s *RosterService) Get(ctx context.Context, id string) (*dto.RosterResponse, error) {
	roster, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return rosterResponse(roster), nil
}

// List returns all rosters newest first.
func (s *RosterService) List(ctx context.Context) ([]dto.RosterResponse, error) {
	rosters, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RosterResponse, 0, len(rosters))
	for i := range rosters {
		out = append(out, *rosterResponse(&rosters[i]))
	}
	return out, nil
}

// Delete removes a roster bundle.
func (s *RosterService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func rosterResponse(roster *models.Roster) *dto.RosterResponse {
	return &dto.RosterResponse{
		ID:                  roster.ID,
		Name:                roster.Name,
		StaffCount:          roster.StaffCount,
		SlotCount:           roster.SlotCount,
		UnavailabilityCount: roster.UnavailabilityCount,
		CreatedAt:           roster.CreatedAt,
	}
}
