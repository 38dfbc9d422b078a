package engine

import (
	"github.com/campusops/ta-scheduler-api/internal/models"
)

// AvailabilityIndex answers "can this staff member cover this slot"
// from the raw unavailability records. Intervals are pre-indexed per
// staff member and day so each query touches only the handful of
// intervals that could matter.
type AvailabilityIndex struct {
	blocked map[string]map[string][]Interval
}

// NewAvailabilityIndex groups unavailability records by staff and day.
func NewAvailabilityIndex(intervals []models.UnavailabilityInterval) *AvailabilityIndex {
	idx := &AvailabilityIndex{blocked: make(map[string]map[string][]Interval)}
	for _, rec := range intervals {
		byDay := idx.blocked[rec.StaffID]
		if byDay == nil {
			byDay = make(map[string][]Interval)
			idx.blocked[rec.StaffID] = byDay
		}
		byDay[rec.Day] = append(byDay[rec.Day], Interval{
			Day:   rec.Day,
			Start: rec.StartMinute,
			End:   rec.EndMinute,
		})
	}
	return idx
}

// IsAvailable is false iff any unavailability interval for the staff
// member overlaps the slot's day and time range.
func (idx *AvailabilityIndex) IsAvailable(staffID string, slot models.Slot) bool {
	byDay, ok := idx.blocked[staffID]
	if !ok {
		return true
	}
	window := Interval{Day: slot.Day, Start: slot.StartMinute, End: slot.EndMinute}
	for _, blocked := range byDay[slot.Day] {
		if Overlaps(blocked, window) {
			return false
		}
	}
	return true
}

// BlockedIntervals returns the recorded intervals for one staff member,
// keyed by day. Used by reporting to annotate schedules.
func (idx *AvailabilityIndex) BlockedIntervals(staffID string) map[string][]Interval {
	return idx.blocked[staffID]
}
