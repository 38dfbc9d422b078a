package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/campusops/ta-scheduler-api/internal/engine"
	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

const (
	requirementLabelColumn    = "Lab Section"
	requirementDayColumn      = "Day"
	requirementStartColumn    = "Start"
	requirementEndColumn      = "End"
	requirementRequiredColumn = "Required"
)

// ParseRequirements reads the lab requirement sheet. Expected columns:
// "Lab Section", "Day", "Start", "End", "Required". Times accept the
// same clock formats as the survey headers. Every lab needs a positive
// headcount; a zero means the sheet is wrong, not that the lab is
// cancelled.
func ParseRequirements(r io.Reader) ([]models.Slot, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "requirements file has no header row")
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	for _, col := range []string{requirementLabelColumn, requirementDayColumn, requirementStartColumn, requirementEndColumn, requirementRequiredColumn} {
		if _, ok := idx[col]; !ok {
			return nil, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("requirements need a %q column", col))
		}
	}

	var out []models.Slot
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status,
				fmt.Sprintf("requirements row %d is malformed", row))
		}

		label := strings.TrimSpace(record[idx[requirementLabelColumn]])
		if label == "" {
			continue
		}

		day, ok := engine.NormalizeDay(record[idx[requirementDayColumn]])
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrParse,
				fmt.Sprintf("requirements row %d: unknown day %q", row, record[idx[requirementDayColumn]]))
		}

		start, err := engine.ParseClock(record[idx[requirementStartColumn]])
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status,
				fmt.Sprintf("requirements row %d: bad start time", row))
		}
		end, err := engine.ParseClock(record[idx[requirementEndColumn]])
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status,
				fmt.Sprintf("requirements row %d: bad end time", row))
		}
		if start >= end {
			return nil, appErrors.Clone(appErrors.ErrParse,
				fmt.Sprintf("requirements row %d: start must precede end", row))
		}

		required, err := strconv.Atoi(strings.TrimSpace(record[idx[requirementRequiredColumn]]))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status,
				fmt.Sprintf("requirements row %d: %q is not a headcount", row, record[idx[requirementRequiredColumn]]))
		}
		if required < 1 {
			return nil, appErrors.Clone(appErrors.ErrConfiguration,
				fmt.Sprintf("requirements row %d: lab %q needs a positive headcount", row, label))
		}

		out = append(out, models.Slot{
			ID:          uuid.New().String(),
			Label:       label,
			Day:         day,
			StartMinute: start,
			EndMinute:   end,
			Required:    required,
		})
	}

	if len(out) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "requirements contain no labs")
	}
	return out, nil
}
