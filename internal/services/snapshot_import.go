package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sitesafe/hsekpi/internal/kpi"
	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"github.com/sitesafe/hsekpi/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportRowError describes why one CSV row was skipped. Row is the 1-based
// line number, the header being line 1.
type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ImportRowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

// ImportResult summarises a bulk snapshot import.
type ImportResult struct {
	Total    int              `json:"total"`
	Imported int              `json:"imported"`
	Errors   []ImportRowError `json:"errors"`
}

// Import reads daily snapshots from CSV. Bad rows are reported and skipped;
// the rest of the batch is stored. A row whose date already has a snapshot,
// or repeats an earlier row, is a row error.
//
// Columns: date (or entry_date), any daily metric name, and optionally
// recorded_zeros ("|" or ";" separated), notes and status (draft|submitted).
func (s *DailySnapshotService) Import(ctx context.Context, projectID uint, r io.Reader, userID uint) (*ImportResult, error) {
	if err := s.db.WithContext(ctx).First(&models.Project{}, projectID).Error; err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.Comma = sniffSeparator(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, lifecycle.Invalid("file", lifecycle.ErrInvalidValue, "empty file")
	}
	if err != nil {
		return nil, lifecycle.Invalid("file", lifecycle.ErrInvalidValue, "unreadable header: %v", err)
	}
	cols, err := importColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	seen := map[time.Time]int{}
	weeks := map[kpi.Week]time.Time{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return result, err
			}
			result.Total++
			result.Errors = append(result.Errors, ImportRowError{Row: pe.Line, Field: "row", Message: pe.Err.Error()})
			continue
		}
		line, _ := reader.FieldPos(0)
		if blankRecord(record) {
			continue
		}
		result.Total++

		snap, rowErr := parseImportRow(record, cols)
		if rowErr != nil {
			rowErr.Row = line
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		if first, dup := seen[snap.EntryDate]; dup {
			result.Errors = append(result.Errors, ImportRowError{Row: line, Field: "entry_date",
				Message: fmt.Sprintf("duplicate of row %d", first)})
			continue
		}
		seen[snap.EntryDate] = line

		snap.ProjectID = projectID
		snap.CreatedBy = userID
		if snap.Status == lifecycle.SnapshotSubmitted {
			now := s.now()
			snap.SubmittedBy, snap.SubmittedAt = &userID, &now
		}

		if err := s.insertImported(ctx, snap); err != nil {
			var rowErr ImportRowError
			if errors.As(err, &rowErr) {
				rowErr.Row = line
				result.Errors = append(result.Errors, rowErr)
				continue
			}
			return result, err
		}
		result.Imported++
		if snap.Status == lifecycle.SnapshotSubmitted {
			weeks[kpi.WeekOf(snap.EntryDate)] = snap.EntryDate
		}
	}

	logger.Info().Uint("project_id", projectID).Int("imported", result.Imported).
		Int("rejected", len(result.Errors)).Msg("[Snapshot] Import finished")
	LogInfo(AuditEntry{Module: "snapshot", Action: "import", ProjectID: &projectID, UserID: &userID,
		Message: fmt.Sprintf("imported %d of %d rows", result.Imported, result.Total)})

	for _, date := range weeks {
		s.recompute(projectID, date, "snapshot_import")
	}
	return result, nil
}

func (s *DailySnapshotService) insertImported(ctx context.Context, snap *models.DailySnapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.DailySnapshot{}).
			Where("project_id = ? AND entry_date = ?", snap.ProjectID, snap.EntryDate).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ImportRowError{Field: "entry_date", Message: "a snapshot already exists for this date"}
		}
		return tx.Create(snap).Error
	})
}

type importColumn struct {
	index int
	name  string
}

func importColumns(header []string) ([]importColumn, error) {
	cols := make([]importColumn, 0, len(header))
	hasDate := false
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch name {
		case "date", "entry_date":
			name = "entry_date"
			hasDate = true
		case "recorded_zeros", "notes", "status":
		case "":
			continue
		default:
			if def, ok := kpi.Lookup(name); !ok || !def.Daily {
				return nil, lifecycle.Invalid("header", lifecycle.ErrInvalidValue, "unknown column %q", h)
			}
		}
		cols = append(cols, importColumn{index: i, name: name})
	}
	if !hasDate {
		return nil, lifecycle.Invalid("header", lifecycle.ErrMissingMandatory, "date column is required")
	}
	return cols, nil
}

func parseImportRow(record []string, cols []importColumn) (*models.DailySnapshot, *ImportRowError) {
	snap := &models.DailySnapshot{Status: lifecycle.SnapshotDraft}
	values := map[string]*float64{}
	var zeros []string

	for _, col := range cols {
		raw := ""
		if col.index < len(record) {
			raw = strings.TrimSpace(record[col.index])
		}
		switch col.name {
		case "entry_date":
			d, err := parseDate(raw)
			if err != nil {
				return nil, &ImportRowError{Field: col.name, Message: fmt.Sprintf("invalid date %q", raw)}
			}
			snap.EntryDate = d
		case "notes":
			snap.Notes = raw
		case "status":
			switch strings.ToLower(raw) {
			case "", "draft":
			case "submitted":
				snap.Status = lifecycle.SnapshotSubmitted
			default:
				return nil, &ImportRowError{Field: col.name, Message: fmt.Sprintf("unknown status %q", raw)}
			}
		case "recorded_zeros":
			zeros = splitAndTrim(strings.ReplaceAll(raw, "|", ";"), ";")
		default:
			if raw == "" {
				continue
			}
			v, err := parseNumber(raw)
			if err != nil {
				return nil, &ImportRowError{Field: col.name, Message: fmt.Sprintf("invalid number %q", raw)}
			}
			values[col.name] = &v
		}
	}

	if err := ValidateSnapshotValues(values, zeros); err != nil {
		var ve *lifecycle.ValidationError
		if errors.As(err, &ve) {
			return nil, &ImportRowError{Field: ve.Field, Message: ve.Message}
		}
		return nil, &ImportRowError{Field: "row", Message: err.Error()}
	}
	for name, v := range values {
		snap.SetValue(name, v)
	}
	snap.RecordedZeros = datatypes.JSONSlice[string](dedupe(zeros))
	return snap, nil
}

// parseNumber accepts "12.5" and the decimal-comma form "12,5". NaN and
// infinities are not numbers a site sheet can hold.
func parseNumber(raw string) (float64, error) {
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	return v, nil
}

// sniffSeparator picks ";" for spreadsheet exports that use it, "," otherwise.
func sniffSeparator(br *bufio.Reader) rune {
	peek, _ := br.Peek(512)
	firstLine := string(peek)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
