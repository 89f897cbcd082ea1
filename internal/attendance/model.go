package attendance

import (
	"context"
	"time"
)

// DayLayout is the calendar-day key used for sessions, records and reports.
const DayLayout = "2006-01-02"

// statusPresent is the only stored status; absence is never written.
const statusPresent = "P"

// Clock supplies the process-local time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Day formats t as a calendar-day key in t's own location.
func Day(t time.Time) string {
	return t.Format(DayLayout)
}

// SnapshotSource captures best-effort evidence for a check-in. It never fails;
// ok is false when nothing was captured. Discard removes a captured file that
// ended up unused.
type SnapshotSource interface {
	Capture(ctx context.Context, rollNo string) (filename string, ok bool)
	Discard(filename string)
}

// Student is an enrolled student. RollNo is immutable once created.
type Student struct {
	ID        int64     `db:"id" json:"id"`
	RollNo    string    `db:"roll_no" json:"roll_no"`
	FullName  string    `db:"full_name" json:"full_name"`
	ClassName string    `db:"class_name" json:"class_name"`
	Section   string    `db:"section" json:"section"`
	PINHash   string    `db:"pin_hash" json:"-"`
	Salt      string    `db:"salt" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DaySession holds the code announced for one day.
type DaySession struct {
	Day       string    `db:"day" json:"day"`
	Code      string    `db:"session_code" json:"session_code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Record is one stored check-in. SnapshotPath is empty when no evidence exists.
type Record struct {
	ID           int64
	StudentID    int64
	Day          string
	CheckedInAt  time.Time
	SnapshotPath string
	IP           string
	UserAgent    string
}

// CheckInView is a check-in joined with its student, for the dashboard.
type CheckInView struct {
	CheckedInAt  time.Time `json:"checked_in_at"`
	RollNo       string    `json:"roll_no"`
	FullName     string    `json:"full_name"`
	SnapshotPath string    `json:"snapshot,omitempty"`
}

// Admin is the single administrator account.
type Admin struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	PassHash string `db:"pass_hash"`
	Salt     string `db:"salt"`
}
