// Package ingest loads scheduling inputs from the CSV files course
// staff actually maintain: a hiring roster, an availability survey
// export, and a lab requirement sheet. Parsers normalise everything
// into minute-of-day records and reject malformed rows with enough
// context to fix the file.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

const (
	staffNameColumn  = "TA"
	staffHoursColumn = "Hired for"
)

// ParseStaff reads the hiring roster. Expected columns: "TA" with the
// staff member's name and "Hired for" with the weekly hour budget.
// Names must be unique; hours may be fractional and convert to whole
// minutes.
func ParseStaff(r io.Reader) ([]models.StaffMember, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "roster file has no header row")
	}

	nameIdx, hoursIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case staffNameColumn:
			nameIdx = i
		case staffHoursColumn:
			hoursIdx = i
		}
	}
	if nameIdx < 0 || hoursIdx < 0 {
		return nil, appErrors.Clone(appErrors.ErrParse,
			fmt.Sprintf("roster needs %q and %q columns", staffNameColumn, staffHoursColumn))
	}

	var out []models.StaffMember
	seen := make(map[string]struct{})
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status,
				fmt.Sprintf("roster row %d is malformed", row))
		}

		name := strings.TrimSpace(record[nameIdx])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			return nil, appErrors.Clone(appErrors.ErrConfiguration,
				fmt.Sprintf("roster row %d: duplicate staff name %q", row, name))
		}
		seen[name] = struct{}{}

		hours, err := strconv.ParseFloat(strings.TrimSpace(record[hoursIdx]), 64)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status,
				fmt.Sprintf("roster row %d: %q is not a number of hours", row, record[hoursIdx]))
		}
		if hours < 0 {
			return nil, appErrors.Clone(appErrors.ErrConfiguration,
				fmt.Sprintf("roster row %d: negative hour budget for %q", row, name))
		}

		out = append(out, models.StaffMember{
			ID:           uuid.New().String(),
			Name:         name,
			HiredMinutes: int(math.Round(hours * 60)),
		})
	}

	if len(out) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "roster contains no staff")
	}
	return out, nil
}
