package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hazyhaar/obras/record"
	"github.com/hazyhaar/obras/workbook"
)

// CompletedSheet is the folded name of the completed-works sheet.
const CompletedSheet = "CONCLUIDAS"

// Extractor turns decoded workbooks into records.
type Extractor struct {
	schedule  Schema
	completed Schema
	logger    *slog.Logger
}

// NewExtractor returns an Extractor using the built-in schemas. A nil logger
// uses slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{schedule: ScheduleSchema, completed: CompletedSchema, logger: logger}
}

// WithRequired overrides the header labels required for each kind. Empty
// slices keep the defaults.
func (e *Extractor) WithRequired(schedule, completed []string) *Extractor {
	if len(schedule) > 0 {
		e.schedule.Required = schedule
	}
	if len(completed) > 0 {
		e.completed.Required = completed
	}
	return e
}

// ExtractSchedule reads one sheet. Rows whose date cannot be read are skipped.
// Without an id column, ids are the 1-based position of the row below the
// header, counted before skipping.
func (e *Extractor) ExtractSchedule(sheet workbook.Sheet) ([]record.Schedule, error) {
	t, err := ResolveHeader(Table{Rows: sheet.Rows}, e.schedule.Required...)
	if err != nil {
		return nil, err
	}
	t = e.schedule.Normalize(t)
	if !t.Has("data") {
		return nil, fmt.Errorf("%w: data", ErrMissingColumn)
	}
	hasID := t.Has("id")

	var out []record.Schedule
	for i, row := range t.Rows {
		s := record.NewSchedule()
		if !hasID {
			s.ID = strconv.Itoa(i + 1)
		}
		ok := true
		for j, field := range t.Columns {
			v := row[j]
			if field == "data" {
				s.Date, ok = CoerceDate(v)
				if !ok {
					break
				}
				continue
			}
			if !record.Blank(v) {
				s.Set(field, v)
			}
		}
		if ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRecords
	}
	return out, nil
}

// LoadSchedule extracts every non-empty sheet independently. Sheets that fail
// are logged and skipped; ErrNoUsableSheet is returned when none yields a
// record.
func (e *Extractor) LoadSchedule(wb *workbook.Workbook) ([]record.Schedule, error) {
	var out []record.Schedule
	for _, sheet := range wb.Sheets {
		if sheet.Empty() {
			continue
		}
		recs, err := e.ExtractSchedule(sheet)
		if err != nil {
			if isValidation(err) {
				e.logger.Warn("sheet skipped", "workbook", wb.Name, "sheet", sheet.Name, "error", err)
			} else {
				e.logger.Error("sheet skipped", "workbook", wb.Name, "sheet", sheet.Name, "error", err)
			}
			continue
		}
		e.logger.Debug("sheet extracted", "sheet", sheet.Name, "records", len(recs))
		out = append(out, recs...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoUsableSheet, wb.Name)
	}
	return out, nil
}

func isValidation(err error) bool {
	return errors.Is(err, ErrHeaderNotFound) || errors.Is(err, ErrMissingColumn) || errors.Is(err, ErrNoRecords)
}

// LoadCompleted extracts the completed-works sheet. A workbook without one,
// or whose sheet lacks the base or work column, yields no records and no
// error.
func (e *Extractor) LoadCompleted(wb *workbook.Workbook) ([]record.Completed, error) {
	sheet, ok := wb.Sheet(CompletedSheet)
	if !ok {
		return nil, nil
	}
	t, err := ResolveHeader(Table{Rows: sheet.Rows}, e.completed.Required...)
	if err != nil {
		e.logger.Warn("completed sheet without header", "sheet", sheet.Name, "error", err)
		return nil, nil
	}
	t = e.completed.Normalize(t)
	if !t.Has("base") || !t.Has("obra") {
		e.logger.Warn("completed sheet missing base or obra column", "sheet", sheet.Name)
		return nil, nil
	}

	var out []record.Completed
	for _, row := range t.Rows {
		c := record.NewCompleted()
		for j, field := range t.Columns {
			v := row[j]
			if record.Blank(v) {
				continue
			}
			switch field {
			case "inic", "conc":
				d, ok := CoerceDate(v)
				if !ok {
					d = record.RawDate(v)
				}
				if field == "inic" {
					c.Start = d
				} else {
					c.End = d
				}
			default:
				c.Set(field, v)
			}
		}
		if c.Base == record.Placeholder || c.Work == record.Placeholder {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
