package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

const (
	uploadStaffCSV = "TA,Hired for\nAda,10\nBen,7.5\n"

	uploadResponsesCSV = "Name,Busy [9am to 11am],Busy [2pm to 4pm]\n" +
		"Ada,\"Monday, Wednesday\",\n" +
		"Ben,,Friday\n"

	uploadRequirementsCSV = "Lab Section,Day,Start,End,Required\n" +
		"Physics 101,Monday,9am,11am,2\n" +
		"Physics 102,Friday,2pm,4pm,1\n"
)

type stubRosterWriter struct {
	created   *models.Roster
	staff     []models.StaffMember
	intervals []models.UnavailabilityInterval
	slots     []models.Slot
	stored    map[string]*models.Roster
	deleted   []string
}

func newStubRosterWriter() *stubRosterWriter {
	return &stubRosterWriter{stored: make(map[string]*models.Roster)}
}

func (s *stubRosterWriter) Create(_ context.Context, roster *models.Roster, staff []models.StaffMember, unavailability []models.UnavailabilityInterval, slots []models.Slot) error {
	roster.ID = uuid.New().String()
	roster.StaffCount = len(staff)
	roster.SlotCount = len(slots)
	roster.UnavailabilityCount = len(unavailability)
	roster.CreatedAt = time.Now().UTC()
	s.created = roster
	s.staff = staff
	s.intervals = unavailability
	s.slots = slots
	s.stored[roster.ID] = roster
	return nil
}

func (s *stubRosterWriter) FindByID(_ context.Context, id string) (*models.Roster, error) {
	roster, ok := s.stored[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "roster not found")
	}
	return roster, nil
}

func (s *stubRosterWriter) List(_ context.Context) ([]models.Roster, error) {
	out := make([]models.Roster, 0, len(s.stored))
	for _, r := range s.stored {
		out = append(out, *r)
	}
	return out, nil
}

func (s *stubRosterWriter) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func TestRosterServiceUpload(t *testing.T) {
	repo := newStubRosterWriter()
	svc := NewRosterService(repo, nil, nil)

	resp, err := svc.Upload(context.Background(), "Fall 2026",
		strings.NewReader(uploadStaffCSV),
		strings.NewReader(uploadResponsesCSV),
		strings.NewReader(uploadRequirementsCSV),
	)
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, "Fall 2026", resp.Name)
	assert.Equal(t, 2, resp.StaffCount)
	assert.Equal(t, 2, resp.SlotCount)
	assert.Equal(t, 3, resp.UnavailabilityCount)

	require.Len(t, repo.staff, 2)
	assert.Equal(t, 600, repo.staff[0].HiredMinutes)
	assert.Equal(t, 450, repo.staff[1].HiredMinutes)

	require.Len(t, repo.slots, 2)
	assert.Equal(t, "Physics 101", repo.slots[0].Label)
	assert.Equal(t, 540, repo.slots[0].StartMinute)
	assert.Equal(t, 660, repo.slots[0].EndMinute)
	assert.Equal(t, 2, repo.slots[0].Required)

	days := make(map[string]int)
	for _, iv := range repo.intervals {
		days[iv.Day]++
	}
	assert.Equal(t, map[string]int{"Monday": 1, "Wednesday": 1, "Friday": 1}, days)
}

func TestRosterServiceUploadRequiresName(t *testing.T) {
	svc := NewRosterService(newStubRosterWriter(), nil, nil)

	_, err := svc.Upload(context.Background(), "  ",
		strings.NewReader(uploadStaffCSV),
		strings.NewReader(uploadResponsesCSV),
		strings.NewReader(uploadRequirementsCSV),
	)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceUploadRejectsUnknownRespondent(t *testing.T) {
	repo := newStubRosterWriter()
	svc := NewRosterService(repo, nil, nil)

	responses := "Name,Busy [9am to 11am]\nEve,Monday\n"
	_, err := svc.Upload(context.Background(), "Fall 2026",
		strings.NewReader(uploadStaffCSV),
		strings.NewReader(responses),
		strings.NewReader(uploadRequirementsCSV),
	)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestRosterServiceUploadRejectsZeroHeadcount(t *testing.T) {
	repo := newStubRosterWriter()
	svc := NewRosterService(repo, nil, nil)

	requirements := "Lab Section,Day,Start,End,Required\nPhysics 101,Monday,9am,11am,0\n"
	_, err := svc.Upload(context.Background(), "Fall 2026",
		strings.NewReader(uploadStaffCSV),
		strings.NewReader(uploadResponsesCSV),
		strings.NewReader(requirements),
	)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestRosterServiceGetAndDelete(t *testing.T) {
	repo := newStubRosterWriter()
	svc := NewRosterService(repo, nil, nil)

	created, err := svc.Upload(context.Background(), "Spring 2027",
		strings.NewReader(uploadStaffCSV),
		strings.NewReader(uploadResponsesCSV),
		strings.NewReader(uploadRequirementsCSV),
	)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(context.Background(), "ghost")
	require.Error(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.Equal(t, []string{created.ID}, repo.deleted)
}
