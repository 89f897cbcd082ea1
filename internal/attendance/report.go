package attendance

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is a student's attendance on a report day.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// ReportRow is one student on a daily report. CheckInTime is nil when absent.
type ReportRow struct {
	Student     Student    `json:"student"`
	Status      Status     `json:"status"`
	CheckInTime *time.Time `json:"check_in_time,omitempty"`
	Snapshot    string     `json:"snapshot,omitempty"`
}

// Report is the attendance of the whole roster on one day.
type Report struct {
	Day     string      `json:"day"`
	Rows    []ReportRow `json:"rows"`
	Present int         `json:"present"`
	Absent  int         `json:"absent"`
}

// Reports builds daily reports. It never writes.
type Reports struct {
	repo *Repository
}

// NewReports creates a report engine over repo.
func NewReports(repo *Repository) *Reports {
	return &Reports{repo: repo}
}

// Daily returns the report for day (YYYY-MM-DD). Students without a record are
// Absent; nothing is stored for them.
func (r *Reports) Daily(ctx context.Context, day string) (Report, error) {
	if _, err := time.Parse(DayLayout, day); err != nil {
		return Report{}, reject(KindValidation, ReasonBadDay)
	}

	roster, err := r.repo.rosterForDay(ctx, day)
	if err != nil {
		return Report{}, unavailable("load report", err)
	}

	rep := Report{Day: day, Rows: make([]ReportRow, 0, len(roster))}
	for _, row := range roster {
		out := ReportRow{Student: row.Student, Status: StatusAbsent}
		if row.RecordID.Valid {
			out.Status = StatusPresent
			if row.CheckedInAt.Valid {
				t := row.CheckedInAt.Time
				out.CheckInTime = &t
			}
			out.Snapshot = row.Snapshot.String
			rep.Present++
		} else {
			rep.Absent++
		}
		rep.Rows = append(rep.Rows, out)
	}

	sort.SliceStable(rep.Rows, func(i, j int) bool {
		return lessStudent(rep.Rows[i].Student, rep.Rows[j].Student)
	})
	return rep, nil
}

// lessStudent orders by class, then section, then roll number.
func lessStudent(a, b Student) bool {
	if a.ClassName != b.ClassName {
		return a.ClassName < b.ClassName
	}
	if a.Section != b.Section {
		return a.Section < b.Section
	}
	return LessRoll(a.RollNo, b.RollNo)
}

// LessRoll orders roll numbers by their leading integer value, then
// lexically. A roll without leading digits counts as 0, so "A1" sorts before
// "2" and "12A" sorts with 12.
func LessRoll(a, b string) bool {
	va, vb := rollValue(a), rollValue(b)
	if va != vb {
		return va < vb
	}
	return a < b
}

// rollValue is the integer formed by the optional sign and digits at the
// start of s, after leading spaces.
func rollValue(s string) int64 {
	s = strings.TrimLeft(s, " \t")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		if s[0] == '-' {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return n
}
