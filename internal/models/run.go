package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RunStatus tracks the orchestrator state machine for a stored run.
type RunStatus string

const (
	RunStatusBuilding   RunStatus = "BUILDING"
	RunStatusSearching  RunStatus = "SEARCHING"
	RunStatusOptimal    RunStatus = "OPTIMAL"
	RunStatusFeasible   RunStatus = "FEASIBLE"
	RunStatusInfeasible RunStatus = "INFEASIBLE"
	RunStatusTimedOut   RunStatus = "TIMED_OUT"
	RunStatusCancelled  RunStatus = "CANCELLED"
	RunStatusFailed     RunStatus = "FAILED"
)

// Terminal reports whether the status ends the run lifecycle.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusOptimal, RunStatusFeasible, RunStatusInfeasible, RunStatusTimedOut, RunStatusCancelled, RunStatusFailed:
		return true
	}
	return false
}

// ScheduleRun is the persisted record of one engine invocation.
type ScheduleRun struct {
	ID           string         `db:"id" json:"id"`
	RosterID     string         `db:"roster_id" json:"roster_id"`
	Status       RunStatus      `db:"status" json:"status"`
	Objective    int64          `db:"objective" json:"objective"`
	Improvements int            `db:"improvements" json:"improvements"`
	StaffCount   int            `db:"staff_count" json:"staff_count"`
	SlotCount    int            `db:"slot_count" json:"slot_count"`
	Config       types.JSONText `db:"config" json:"config"`
	Report       types.JSONText `db:"report" json:"report,omitempty"`
	Error        string         `db:"error" json:"error,omitempty"`
	StartedAt    time.Time      `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}
