package dto

import "time"

// StartRunRequest launches a scheduling run against a stored roster.
// Omitted tuning fields fall back to server configuration.
type StartRunRequest struct {
	RosterID          string   `json:"rosterId" validate:"required"`
	DailyHourCap      *float64 `json:"dailyHourCap" validate:"omitempty,gt=0,lte=24"`
	MaxLabsPerStaff   *int     `json:"maxLabsPerStaff" validate:"omitempty,min=1,max=32"`
	TimeBudgetSeconds *int     `json:"timeBudgetSeconds" validate:"omitempty,min=1,max=3600"`
	BalanceEnabled    *bool    `json:"balanceEnabled"`
	BalanceMode       string   `json:"balanceMode" validate:"omitempty,oneof=min-utilization variance"`
}

// RunResponse summarises one scheduling run.
type RunResponse struct {
	ID           string     `json:"id"`
	RosterID     string     `json:"rosterId"`
	Status       string     `json:"status"`
	Objective    int64      `json:"objective"`
	Improvements int        `json:"improvements"`
	StaffCount   int        `json:"staffCount"`
	SlotCount    int        `json:"slotCount"`
	HardGaps     []string   `json:"hardGaps,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// RunProgressResponse reports live search progress for polling clients.
type RunProgressResponse struct {
	RunID       string `json:"runId"`
	Status      string `json:"status"`
	Objective   int64  `json:"objective"`
	Improvement int    `json:"improvement"`
	Assigned    int    `json:"assigned"`
	ElapsedMS   int64  `json:"elapsedMs"`
	Final       bool   `json:"final"`
}

// RunQuery filters the run listing.
type RunQuery struct {
	RosterID string `form:"rosterId" json:"rosterId"`
	Status   string `form:"status" json:"status"`
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"pageSize" json:"pageSize"`
}
