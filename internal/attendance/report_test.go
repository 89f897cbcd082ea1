package attendance

import (
	"context"
	"fmt"
	"sort"
	"testing"
)

func TestDaily_CountsAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 30 students across three class/section groups, inserted out of order.
	var students []Student
	for _, group := range []struct{ class, section string }{{"11", "A"}, {"10", "B"}, {"10", "A"}} {
		for roll := 10; roll >= 1; roll-- {
			r := fmt.Sprintf("%d", roll)
			if group.class == "10" && group.section == "B" {
				r = fmt.Sprintf("%d", roll+100)
			}
			if group.class == "11" {
				r = fmt.Sprintf("%d", roll+200)
			}
			students = append(students, f.addStudent(t, r, "1111", group.class, group.section))
		}
	}

	day := f.today()
	for i, s := range students[:18] {
		rec := Record{StudentID: s.ID, Day: day, CheckedInAt: f.clock.Now(), IP: "127.0.0.1"}
		if i == 0 {
			rec.SnapshotPath = "snap.jpg"
		}
		if _, err := f.repo.InsertRecord(ctx, rec); err != nil {
			t.Fatalf("InsertRecord() error = %v", err)
		}
	}

	rep, err := NewReports(f.repo).Daily(ctx, day)
	if err != nil {
		t.Fatalf("Daily() error = %v", err)
	}
	if rep.Present != 18 || rep.Absent != 12 {
		t.Errorf("Present/Absent = %d/%d, want 18/12", rep.Present, rep.Absent)
	}
	if len(rep.Rows) != 30 {
		t.Fatalf("rows = %d, want 30", len(rep.Rows))
	}

	sorted := sort.SliceIsSorted(rep.Rows, func(i, j int) bool {
		return lessStudent(rep.Rows[i].Student, rep.Rows[j].Student)
	})
	if !sorted {
		t.Error("rows not ordered by class, section, roll")
	}
	if first := rep.Rows[0].Student; first.ClassName != "10" || first.Section != "A" || first.RollNo != "1" {
		t.Errorf("first row = %+v, want class 10 section A roll 1", first)
	}
	if rep.Rows[1].Student.RollNo != "2" || rep.Rows[9].Student.RollNo != "10" {
		t.Errorf("numeric roll order broken: row1=%s row9=%s", rep.Rows[1].Student.RollNo, rep.Rows[9].Student.RollNo)
	}

	for _, row := range rep.Rows {
		switch row.Status {
		case StatusPresent:
			if row.CheckInTime == nil {
				t.Errorf("present roll %s has no check-in time", row.Student.RollNo)
			}
		case StatusAbsent:
			if row.CheckInTime != nil || row.Snapshot != "" {
				t.Errorf("absent roll %s has record data", row.Student.RollNo)
			}
		}
		if row.Student.RollNo == students[0].RollNo && row.Snapshot != "snap.jpg" {
			t.Errorf("snapshot for roll %s = %q", row.Student.RollNo, row.Snapshot)
		}
	}
}

func TestDaily_OtherDaysAreReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addStudent(t, "1", "1111", "10", "A")
	f.addStudent(t, "2", "1111", "10", "A")

	for _, day := range []string{"2019-06-01", "2099-12-31"} {
		rep, err := NewReports(f.repo).Daily(ctx, day)
		if err != nil {
			t.Fatalf("Daily(%s) error = %v", day, err)
		}
		if rep.Present != 0 || rep.Absent != 2 {
			t.Errorf("Daily(%s) Present/Absent = %d/%d, want 0/2", day, rep.Present, rep.Absent)
		}
	}

	var n int
	if err := f.db.Get(&n, `SELECT COUNT(*) FROM attendance`); err != nil {
		t.Fatalf("count attendance: %v", err)
	}
	if n != 0 {
		t.Errorf("attendance rows = %d, want 0", n)
	}
}

func TestDaily_RejectsBadDay(t *testing.T) {
	f := newFixture(t)
	for _, day := range []string{"", "15-01-2025", "2025-13-01", "today"} {
		_, err := NewReports(f.repo).Daily(context.Background(), day)
		wantRejection(t, err, KindValidation, ReasonBadDay)
	}
}

func TestDaily_MixedRolls(t *testing.T) {
	f := newFixture(t)
	for _, r := range []string{"B7", "10", "12A", "A1", "3", "2"} {
		f.addStudent(t, r, "1111", "9", "C")
	}
	rep, err := NewReports(f.repo).Daily(context.Background(), f.today())
	if err != nil {
		t.Fatalf("Daily() error = %v", err)
	}
	var got []string
	for _, row := range rep.Rows {
		got = append(got, row.Student.RollNo)
	}
	want := []string{"A1", "B7", "2", "3", "10", "12A"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("roll order = %v, want %v", got, want)
	}
}

func TestLessRoll(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"A1", "10", true},
		{"10", "A1", false},
		{"A1", "B7", true},
		{"B7", "A1", false},
		{"B7", "2", true},
		{"12", "12A", true},
		{"12A", "13", true},
		{"5", "5", false},
		{"05", "5", true},
	}
	for _, tt := range tests {
		if got := LessRoll(tt.a, tt.b); got != tt.want {
			t.Errorf("LessRoll(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
