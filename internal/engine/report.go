package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/campusops/ta-scheduler-api/internal/models"
)

// Report compiles the terminal solver outcome into an assignment
// report. Every requested slot appears exactly once regardless of how
// well it was covered; slots nobody could ever take are flagged as
// hard gaps.
func (m *Model) Report(result Result, status models.RunStatus) models.AssignmentReport {
	report := models.AssignmentReport{
		Objective:   result.Best.Objective,
		Status:      string(status),
		Proven:      status == models.RunStatusOptimal,
		GeneratedAt: time.Now().UTC(),
	}

	hardGaps := make(map[string]bool, len(m.hardGaps))
	for _, id := range m.hardGaps {
		hardGaps[id] = true
	}

	assignedBySlot := make(map[string][]string)
	minutesByStaff := make(map[string]int)
	dailyByStaff := make(map[string]map[string]int)
	slotsByStaff := make(map[string][]string)
	countByStaff := make(map[string]int)

	if hasSolution(result) {
		for _, p := range m.pairs {
			if int(p.variable) >= len(result.Best.Values) || !result.Best.Values[p.variable] {
				continue
			}
			staff := m.input.Staff[p.staffIdx]
			slot := m.input.Slots[p.slotIdx]

			assignedBySlot[slot.ID] = append(assignedBySlot[slot.ID], staff.Name)
			minutesByStaff[staff.ID] += slot.DurationMinutes()
			if dailyByStaff[staff.ID] == nil {
				dailyByStaff[staff.ID] = make(map[string]int)
			}
			dailyByStaff[staff.ID][slot.Day] += slot.DurationMinutes()
			slotsByStaff[staff.ID] = append(slotsByStaff[staff.ID], slotDisplay(slot))
			countByStaff[staff.ID]++
		}
	}

	for _, slot := range m.input.Slots {
		assigned := assignedBySlot[slot.ID]
		sort.Strings(assigned)
		shortfall := slot.Required - len(assigned)
		if shortfall < 0 {
			shortfall = 0
		}
		cov := models.SlotCoverage{
			SlotID:      slot.ID,
			Label:       slot.Label,
			Day:         slot.Day,
			StartMinute: slot.StartMinute,
			EndMinute:   slot.EndMinute,
			Required:    slot.Required,
			Assigned:    assigned,
			Shortfall:   shortfall,
			FillRatio:   float64(len(assigned)) / float64(slot.Required),
			HardGap:     hardGaps[slot.ID],
		}
		report.Slots = append(report.Slots, cov)
		if shortfall > 0 {
			report.UnderCovered = append(report.UnderCovered, cov)
		}
		report.TotalRequired += slot.Required
		report.TotalAssigned += len(assigned)
	}

	for _, staff := range m.input.Staff {
		report.Staff = append(report.Staff, models.StaffSummary{
			StaffID:         staff.ID,
			Name:            staff.Name,
			AssignedMinutes: minutesByStaff[staff.ID],
			HiredMinutes:    staff.HiredMinutes,
			SlotCount:       countByStaff[staff.ID],
			SlotCap:         m.cfg.MaxLabsPerStaff,
			DailyMinutes:    dailyByStaff[staff.ID],
			Slots:           slotsByStaff[staff.ID],
		})
	}

	return report
}

func slotDisplay(slot models.Slot) string {
	label := slot.Label
	if label == "" {
		label = slot.ID
	}
	return fmt.Sprintf("%s %s %s-%s", label, slot.Day, FormatMinutes(slot.StartMinute), FormatMinutes(slot.EndMinute))
}
