package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		name  string
		label string
		want  int
	}{
		{"morning meridiem", "8am", 480},
		{"midnight", "12am", 0},
		{"noon", "12pm", 720},
		{"afternoon with minutes", "12:30pm", 750},
		{"evening meridiem", "5pm", 1020},
		{"24 hour clock", "14:00", 840},
		{"bare hour", "9", 540},
		{"padded input", "  10 AM ", 600},
		{"end of day", "24:00", 1440},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClock(tc.label)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseClockRejectsMalformedLabels(t *testing.T) {
	for _, label := range []string{"", "25:00", "13pm", "0am", "8:61", "noonish", "12:xx"} {
		t.Run(label, func(t *testing.T) {
			_, err := ParseClock(label)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrParse))
		})
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := Interval{Day: "Monday", Start: 480, End: 600}

	assert.True(t, Overlaps(base, Interval{Day: "Monday", Start: 540, End: 660}))
	assert.True(t, Overlaps(base, Interval{Day: "Monday", Start: 400, End: 481}))
	assert.True(t, Overlaps(base, Interval{Day: "Monday", Start: 500, End: 520}), "containment overlaps")

	// Back-to-back intervals share a boundary instant but no minutes.
	assert.False(t, Overlaps(base, Interval{Day: "Monday", Start: 600, End: 660}))
	assert.False(t, Overlaps(base, Interval{Day: "Monday", Start: 420, End: 480}))

	assert.False(t, Overlaps(base, Interval{Day: "Tuesday", Start: 480, End: 600}), "different days never overlap")
}

func TestParseRangeLabel(t *testing.T) {
	start, end, err := ParseRangeLabel("Unavailable [1am to 2am]")
	require.NoError(t, err)
	assert.Equal(t, 60, start)
	assert.Equal(t, 120, end)

	start, end, err = ParseRangeLabel(" [9:30am to 12pm] ")
	require.NoError(t, err)
	assert.Equal(t, 570, start)
	assert.Equal(t, 720, end)
}

func TestParseRangeLabelErrors(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"no brackets", "9am to 10am"},
		{"missing separator", "[9am until 10am]"},
		{"bad start", "[9xm to 10am]"},
		{"bad end", "[9am to 27:00]"},
		{"inverted range", "[10am to 9am]"},
		{"zero width", "[9am to 9am]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseRangeLabel(tc.header)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrParse))
		})
	}
}

func TestNormalizeDay(t *testing.T) {
	for raw, want := range map[string]string{
		"monday":   "Monday",
		"Mon":      "Monday",
		" TUES ":   "Tuesday",
		"wed":      "Wednesday",
		"Thurs":    "Thursday",
		"FRI":      "Friday",
		"saturday": "Saturday",
		"sun":      "Sunday",
	} {
		day, ok := NormalizeDay(raw)
		require.True(t, ok, "raw=%q", raw)
		assert.Equal(t, want, day)
	}

	_, ok := NormalizeDay("someday")
	assert.False(t, ok)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "0:00", FormatMinutes(0))
	assert.Equal(t, "9:05", FormatMinutes(545))
	assert.Equal(t, "16:30", FormatMinutes(990))
}
