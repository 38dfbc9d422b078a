package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/campusops/ta-scheduler-api/internal/engine"
	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

const responsesNameColumn = "Name"

// timeColumn is one survey column whose header carries a bracketed
// range such as "Mark when you are NOT free [9am to 10am]".
type timeColumn struct {
	index int
	start int
	end   int
}

// ParseResponses reads an availability survey export. The "Name" column
// identifies the respondent; every column with a bracketed time range
// in its header lists the days the respondent is unavailable during
// that range, separated by commas or semicolons. Names are matched
// against the roster, and unknown respondents are rejected.
func ParseResponses(r io.Reader, roster []models.StaffMember) ([]models.UnavailabilityInterval, error) {
	byName := make(map[string]string, len(roster))
	for _, s := range roster {
		byName[s.Name] = s.ID
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "responses file has no header row")
	}

	nameIdx := -1
	var columns []timeColumn
	for i, col := range header {
		if strings.TrimSpace(col) == responsesNameColumn {
			nameIdx = i
			continue
		}
		if !strings.Contains(col, "[") {
			continue
		}
		start, end, err := engine.ParseRangeLabel(col)
		if err != nil {
			return nil, err
		}
		columns = append(columns, timeColumn{index: i, start: start, end: end})
	}
	if nameIdx < 0 {
		return nil, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("responses need a %q column", responsesNameColumn))
	}
	if len(columns) == 0 {
		return nil, appErrors.Clone(appErrors.ErrParse, "responses contain no time range columns")
	}

	var out []models.UnavailabilityInterval
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status,
				fmt.Sprintf("responses row %d is malformed", row))
		}

		name := strings.TrimSpace(record[nameIdx])
		if name == "" {
			continue
		}
		staffID, known := byName[name]
		if !known {
			return nil, appErrors.Clone(appErrors.ErrConfiguration,
				fmt.Sprintf("responses row %d: %q is not on the roster", row, name))
		}

		for _, col := range columns {
			days, err := parseDayList(record[col.index])
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status,
					fmt.Sprintf("responses row %d, column %q", row, header[col.index]))
			}
			for _, day := range days {
				out = append(out, models.UnavailabilityInterval{
					ID:          uuid.New().String(),
					StaffID:     staffID,
					Day:         day,
					StartMinute: col.start,
					EndMinute:   col.end,
				})
			}
		}
	}

	return out, nil
}

// parseDayList splits a survey cell into canonical day names. Empty
// cells mean the respondent is free for that range.
func parseDayList(cell string) ([]string, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}

	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ',' || r == ';'
	})
	days := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			continue
		}
		day, ok := engine.NormalizeDay(f)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("unknown day %q", strings.TrimSpace(f)))
		}
		days = append(days, day)
	}
	return days, nil
}
