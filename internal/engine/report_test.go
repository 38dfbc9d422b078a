package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

func TestReportCoversEveryRequestedSlot(t *testing.T) {
	input := Input{
		Staff: []models.StaffMember{
			staff("a", "Avery", 600),
			staff("b", "Blake", 600),
		},
		Slots: []models.Slot{
			slot("s1", "CS101-A", "Monday", 540, 660, 1),
			slot("s2", "CS102-A", "Tuesday", 540, 660, 3),
			slot("s3", "CS103-A", "Wednesday", 540, 660, 1),
		},
		Unavailability: []models.UnavailabilityInterval{
			// Nobody can take s3.
			blockedAt("a", "Wednesday", 0, 1440),
			blockedAt("b", "Wednesday", 0, 1440),
		},
	}

	m, err := BuildModel(input, testConfig(), nil)
	require.NoError(t, err)
	res := solveModel(t, m)

	report := m.Report(res, models.RunStatusOptimal)

	require.Len(t, report.Slots, 3, "under-covered and impossible slots still appear")
	assert.Equal(t, "OPTIMAL", report.Status)
	assert.True(t, report.Proven)

	byID := map[string]models.SlotCoverage{}
	for _, cov := range report.Slots {
		byID[cov.SlotID] = cov
	}

	assert.Equal(t, 0, byID["s1"].Shortfall)
	assert.Equal(t, 1.0, byID["s1"].FillRatio)
	assert.False(t, byID["s1"].HardGap)

	// Only two staff exist for a three-person requirement.
	assert.Equal(t, 1, byID["s2"].Shortfall)
	assert.InDelta(t, 2.0/3.0, byID["s2"].FillRatio, 1e-9)
	assert.False(t, byID["s2"].HardGap)

	assert.Equal(t, 1, byID["s3"].Shortfall)
	assert.Equal(t, 0.0, byID["s3"].FillRatio)
	assert.True(t, byID["s3"].HardGap)
	assert.Empty(t, byID["s3"].Assigned)

	require.Len(t, report.UnderCovered, 2)
	assert.Equal(t, 5, report.TotalRequired)
	assert.Equal(t, 3, report.TotalAssigned)
}

func TestReportStaffSummaries(t *testing.T) {
	input := Input{
		Staff: []models.StaffMember{
			staff("a", "Avery", 600),
			staff("b", "Blake", 600),
		},
		Slots: []models.Slot{
			slot("s1", "CS101-A", "Monday", 540, 660, 2),
			slot("s2", "CS102-A", "Monday", 720, 840, 1),
		},
		Unavailability: []models.UnavailabilityInterval{
			blockedAt("b", "Monday", 720, 840),
		},
	}

	m, err := BuildModel(input, testConfig(), nil)
	require.NoError(t, err)
	res := solveModel(t, m)

	report := m.Report(res, models.RunStatusOptimal)
	require.Len(t, report.Staff, 2)

	byID := map[string]models.StaffSummary{}
	for _, s := range report.Staff {
		byID[s.StaffID] = s
	}

	avery := byID["a"]
	assert.Equal(t, 240, avery.AssignedMinutes)
	assert.Equal(t, 2, avery.SlotCount)
	assert.Equal(t, 240, avery.DailyMinutes["Monday"])
	assert.Len(t, avery.Slots, 2)

	blake := byID["b"]
	assert.Equal(t, 120, blake.AssignedMinutes)
	assert.Equal(t, 1, blake.SlotCount)
	assert.Equal(t, 600, blake.HiredMinutes)
}

func TestReportWithoutSolution(t *testing.T) {
	input := Input{
		Staff: []models.StaffMember{staff("a", "Avery", 600)},
		Slots: []models.Slot{slot("s1", "CS101-A", "Monday", 540, 660, 1)},
	}

	m, err := BuildModel(input, testConfig(), nil)
	require.NoError(t, err)

	report := m.Report(Result{Status: StatusInfeasible}, models.RunStatusInfeasible)
	assert.False(t, report.Proven)
	assert.Equal(t, "INFEASIBLE", report.Status)
	require.Len(t, report.Slots, 1)
	assert.Empty(t, report.Slots[0].Assigned)
	assert.Equal(t, 1, report.TotalRequired)
	assert.Equal(t, 0, report.TotalAssigned)
}
