package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

func blockedAt(staffID, day string, start, end int) models.UnavailabilityInterval {
	return models.UnavailabilityInterval{StaffID: staffID, Day: day, StartMinute: start, EndMinute: end}
}

func TestAvailabilityIndex(t *testing.T) {
	idx := NewAvailabilityIndex([]models.UnavailabilityInterval{
		blockedAt("ta-1", "Monday", 480, 600),
		blockedAt("ta-1", "Monday", 780, 840),
		blockedAt("ta-2", "Tuesday", 0, 1440),
	})

	monMorning := models.Slot{Day: "Monday", StartMinute: 540, EndMinute: 660}
	monNoon := models.Slot{Day: "Monday", StartMinute: 600, EndMinute: 720}
	tueAny := models.Slot{Day: "Tuesday", StartMinute: 540, EndMinute: 660}

	assert.False(t, idx.IsAvailable("ta-1", monMorning), "overlapping block wins")
	assert.True(t, idx.IsAvailable("ta-1", monNoon), "block ending at slot start does not collide")
	assert.True(t, idx.IsAvailable("ta-1", tueAny), "blocks apply per day")

	assert.False(t, idx.IsAvailable("ta-2", tueAny))
	assert.True(t, idx.IsAvailable("ta-2", monMorning))

	assert.True(t, idx.IsAvailable("ta-3", monMorning), "unknown staff has no blocks")
}

func TestAvailabilityIndexMultipleIntervalsSameDay(t *testing.T) {
	idx := NewAvailabilityIndex([]models.UnavailabilityInterval{
		blockedAt("ta-1", "Friday", 480, 540),
		blockedAt("ta-1", "Friday", 540, 600),
	})

	assert.False(t, idx.IsAvailable("ta-1", models.Slot{Day: "Friday", StartMinute: 500, EndMinute: 520}))
	assert.False(t, idx.IsAvailable("ta-1", models.Slot{Day: "Friday", StartMinute: 530, EndMinute: 590}))
	assert.True(t, idx.IsAvailable("ta-1", models.Slot{Day: "Friday", StartMinute: 600, EndMinute: 660}))

	blocks := idx.BlockedIntervals("ta-1")
	assert.Len(t, blocks["Friday"], 2)
}
