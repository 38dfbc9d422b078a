package models

import "time"

// StaffMember is a teaching assistant available for lab coverage.
// HiredMinutes is the total assignable budget; immutable once loaded.
type StaffMember struct {
	ID           string    `db:"id" json:"id"`
	RosterID     string    `db:"roster_id" json:"roster_id,omitempty"`
	Name         string    `db:"name" json:"name"`
	HiredMinutes int       `db:"hired_minutes" json:"hired_minutes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// HiredHours reports the budget in hours for display and exports.
func (s StaffMember) HiredHours() float64 {
	return float64(s.HiredMinutes) / 60.0
}

// UnavailabilityInterval blocks a staff member for [StartMinute, EndMinute)
// on a given day. Multiple disjoint or contiguous intervals per staff
// member are allowed.
type UnavailabilityInterval struct {
	ID          string    `db:"id" json:"id"`
	RosterID    string    `db:"roster_id" json:"roster_id,omitempty"`
	StaffID     string    `db:"staff_id" json:"staff_id"`
	Day         string    `db:"day" json:"day"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Slot is a time-bounded lab section needing Required staff.
type Slot struct {
	ID          string    `db:"id" json:"id"`
	RosterID    string    `db:"roster_id" json:"roster_id,omitempty"`
	Label       string    `db:"label" json:"label"`
	Day         string    `db:"day" json:"day"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	Required    int       `db:"required" json:"required"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DurationMinutes is the slot length under half-open semantics.
func (s Slot) DurationMinutes() int {
	return s.EndMinute - s.StartMinute
}

// Assignment pairs a staff member with a slot in a solution.
type Assignment struct {
	StaffID string `json:"staff_id"`
	SlotID  string `json:"slot_id"`
}

// SolutionSnapshot is a full or partial assignment produced at each
// improving step of the search and at termination. Immutable once
// handed to a callback.
type SolutionSnapshot struct {
	Objective   int64               `json:"objective"`
	Assignments []Assignment        `json:"assignments"`
	BySlot      map[string][]string `json:"by_slot"`
	Improvement int                 `json:"improvement"`
	Final       bool                `json:"final"`
	Elapsed     time.Duration       `json:"elapsed"`
}

// SlotCoverage summarises one slot in the final report. A slot with a
// non-zero requirement always appears, even with nobody assigned.
type SlotCoverage struct {
	SlotID      string   `json:"slot_id"`
	Label       string   `json:"label"`
	Day         string   `json:"day"`
	StartMinute int      `json:"start_minute"`
	EndMinute   int      `json:"end_minute"`
	Required    int      `json:"required"`
	Assigned    []string `json:"assigned"`
	Shortfall   int      `json:"shortfall"`
	FillRatio   float64  `json:"fill_ratio"`
	HardGap     bool     `json:"hard_gap"`
}

// StaffSummary aggregates one staff member's load in the final report.
type StaffSummary struct {
	StaffID         string         `json:"staff_id"`
	Name            string         `json:"name"`
	AssignedMinutes int            `json:"assigned_minutes"`
	HiredMinutes    int            `json:"hired_minutes"`
	SlotCount       int            `json:"slot_count"`
	SlotCap         int            `json:"slot_cap"`
	DailyMinutes    map[string]int `json:"daily_minutes"`
	Slots           []string       `json:"slots"`
}

// AssignmentReport is the terminal output of a scheduling run.
type AssignmentReport struct {
	Objective     int64          `json:"objective"`
	Status        string         `json:"status"`
	Proven        bool           `json:"proven_optimal"`
	Slots         []SlotCoverage `json:"slots"`
	Staff         []StaffSummary `json:"staff"`
	UnderCovered  []SlotCoverage `json:"under_covered"`
	TotalRequired int            `json:"total_required"`
	TotalAssigned int            `json:"total_assigned"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
