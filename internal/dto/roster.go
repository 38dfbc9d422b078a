package dto

import "time"

// RosterResponse summarises one uploaded roster bundle.
type RosterResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	StaffCount          int       `json:"staffCount"`
	SlotCount           int       `json:"slotCount"`
	UnavailabilityCount int       `json:"unavailabilityCount"`
	CreatedAt           time.Time `json:"createdAt"`
}

// ExportRequest selects the output format and table for a report export.
type ExportRequest struct {
	Format  string `json:"format" validate:"required,oneof=csv pdf"`
	Section string `json:"section" validate:"omitempty,oneof=coverage staff"`
}
