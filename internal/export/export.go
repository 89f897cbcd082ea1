// Package export renders daily attendance reports as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"attendance-kiosk/internal/attendance"
)

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// timeLayout matches how check-in times are shown on the admin pages.
const timeLayout = "2006-01-02 15:04:05"

var header = []string{"Class", "Section", "Roll No", "Name", "Status", "Check-in Time", "Snapshot"}

// ParseFormat accepts "csv" or "xlsx" in any case; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName is the suggested download name for a report.
func FileName(day string, f Format) string {
	return fmt.Sprintf("attendance_%s.%s", day, f)
}

// Write renders rep to w in format f.
func Write(w io.Writer, rep attendance.Report, f Format) error {
	switch f {
	case CSV:
		return WriteCSV(w, rep)
	case XLSX:
		return WriteXLSX(w, rep)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func record(row attendance.ReportRow) []string {
	at := ""
	if row.CheckInTime != nil {
		at = row.CheckInTime.Format(timeLayout)
	}
	return []string{
		row.Student.ClassName,
		row.Student.Section,
		row.Student.RollNo,
		row.Student.FullName,
		string(row.Status),
		at,
		row.Snapshot,
	}
}

// WriteCSV writes one header line and one line per student.
func WriteCSV(w io.Writer, rep attendance.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rep.Rows {
		if err := cw.Write(record(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with the report sheet and a summary sheet.
func WriteXLSX(w io.Writer, rep attendance.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := rep.Day
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range rep.Rows {
		if err := setRow(f, sheet, i+2, record(row)); err != nil {
			return err
		}
	}
	for col, width := range map[string]float64{"A": 8, "B": 8, "C": 10, "D": 28, "E": 10, "F": 20, "G": 36} {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Summary"); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Day", rep.Day},
		{"Present", rep.Present},
		{"Absent", rep.Absent},
		{"Total", rep.Present + rep.Absent},
	}
	for i, r := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Summary", cell, &r); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
