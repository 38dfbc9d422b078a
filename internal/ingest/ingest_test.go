package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

const rosterCSV = `TA,Hired for
Avery Chen,10
Blake Osei,7.5
,4
Casey Wright,0
`

func TestParseStaff(t *testing.T) {
	out, err := ParseStaff(strings.NewReader(rosterCSV))
	require.NoError(t, err)
	require.Len(t, out, 3, "blank names are skipped")

	assert.Equal(t, "Avery Chen", out[0].Name)
	assert.Equal(t, 600, out[0].HiredMinutes)
	assert.Equal(t, 450, out[1].HiredMinutes, "fractional hours become minutes")
	assert.Equal(t, 0, out[2].HiredMinutes)
	assert.NotEmpty(t, out[0].ID)
}

func TestParseStaffErrors(t *testing.T) {
	cases := []struct {
		name   string
		csv    string
		target *appErrors.Error
	}{
		{"missing columns", "Name,Hours\nAvery,5\n", appErrors.ErrParse},
		{"bad hours", "TA,Hired for\nAvery,lots\n", appErrors.ErrParse},
		{"negative hours", "TA,Hired for\nAvery,-2\n", appErrors.ErrConfiguration},
		{"duplicate name", "TA,Hired for\nAvery,5\nAvery,3\n", appErrors.ErrConfiguration},
		{"empty roster", "TA,Hired for\n", appErrors.ErrConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseStaff(strings.NewReader(tc.csv))
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.target))
		})
	}
}

func surveyRoster() []models.StaffMember {
	return []models.StaffMember{
		{ID: "id-avery", Name: "Avery Chen", HiredMinutes: 600},
		{ID: "id-blake", Name: "Blake Osei", HiredMinutes: 450},
	}
}

const responsesCSV = `Name,Mark the days you are NOT free [9am to 10am],Mark the days you are NOT free [2pm to 4pm]
Avery Chen,"Monday, Wednesday",
Blake Osei,,Friday
`

func TestParseResponses(t *testing.T) {
	out, err := ParseResponses(strings.NewReader(responsesCSV), surveyRoster())
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "id-avery", out[0].StaffID)
	assert.Equal(t, "Monday", out[0].Day)
	assert.Equal(t, 540, out[0].StartMinute)
	assert.Equal(t, 600, out[0].EndMinute)

	assert.Equal(t, "Wednesday", out[1].Day)

	assert.Equal(t, "id-blake", out[2].StaffID)
	assert.Equal(t, "Friday", out[2].Day)
	assert.Equal(t, 840, out[2].StartMinute)
	assert.Equal(t, 960, out[2].EndMinute)
}

func TestParseResponsesErrors(t *testing.T) {
	roster := surveyRoster()

	cases := []struct {
		name   string
		csv    string
		target *appErrors.Error
	}{
		{"no name column", "Who,Busy [9am to 10am]\nAvery Chen,Monday\n", appErrors.ErrParse},
		{"no range columns", "Name,Notes\nAvery Chen,hi\n", appErrors.ErrParse},
		{"bad range header", "Name,Busy [9am until 10am]\nAvery Chen,Monday\n", appErrors.ErrParse},
		{"unknown day", "Name,Busy [9am to 10am]\nAvery Chen,Moonday\n", appErrors.ErrParse},
		{"unknown respondent", "Name,Busy [9am to 10am]\nDana Fox,Monday\n", appErrors.ErrConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResponses(strings.NewReader(tc.csv), roster)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.target))
		})
	}
}

const requirementsCSV = `Lab Section,Day,Start,End,Required
CS101-A,Monday,9am,11am,2
CS101-B,wed,2:30pm,4pm,1
CS102-A,Friday,14:00,16:00,3
`

func TestParseRequirements(t *testing.T) {
	out, err := ParseRequirements(strings.NewReader(requirementsCSV))
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "CS101-A", out[0].Label)
	assert.Equal(t, "Monday", out[0].Day)
	assert.Equal(t, 540, out[0].StartMinute)
	assert.Equal(t, 660, out[0].EndMinute)
	assert.Equal(t, 2, out[0].Required)

	assert.Equal(t, "Wednesday", out[1].Day, "day spellings are normalised")
	assert.Equal(t, 870, out[1].StartMinute)

	assert.Equal(t, 840, out[2].StartMinute, "24 hour clock accepted")
}

func TestParseRequirementsErrors(t *testing.T) {
	cases := []struct {
		name   string
		csv    string
		target *appErrors.Error
	}{
		{"missing column", "Lab Section,Day,Start,End\nCS101,Monday,9am,11am\n", appErrors.ErrParse},
		{"bad day", "Lab Section,Day,Start,End,Required\nCS101,Boomsday,9am,11am,1\n", appErrors.ErrParse},
		{"bad time", "Lab Section,Day,Start,End,Required\nCS101,Monday,9xm,11am,1\n", appErrors.ErrParse},
		{"inverted range", "Lab Section,Day,Start,End,Required\nCS101,Monday,11am,9am,1\n", appErrors.ErrParse},
		{"bad headcount", "Lab Section,Day,Start,End,Required\nCS101,Monday,9am,11am,two\n", appErrors.ErrParse},
		{"zero headcount", "Lab Section,Day,Start,End,Required\nCS101,Monday,9am,11am,0\n", appErrors.ErrConfiguration},
		{"no labs", "Lab Section,Day,Start,End,Required\n", appErrors.ErrConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequirements(strings.NewReader(tc.csv))
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.target))
		})
	}
}
