package models

import "time"

// Roster is one uploaded bundle of staff, availability, and lab
// requirement files. Runs always reference a roster so results stay
// reproducible after the source files change.
type Roster struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	StaffCount          int       `db:"staff_count" json:"staff_count"`
	SlotCount           int       `db:"slot_count" json:"slot_count"`
	UnavailabilityCount int       `db:"unavailability_count" json:"unavailability_count"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}
