package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"attendance-kiosk/internal/store"
)

// Store is the persistence surface the check-in flow depends on.
type Store interface {
	DaySession(ctx context.Context, day string) (*DaySession, error)
	InsertDaySession(ctx context.Context, ds DaySession) error
	StudentByRoll(ctx context.Context, rollNo string) (*Student, error)
	InsertRecord(ctx context.Context, rec Record) (Record, error)
}

// Repository persists kiosk data through sqlx. Queries use ? placeholders and
// are rebound for the active driver.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) q(query string) string { return r.db.Rebind(query) }

// DaySession returns the session for day, or nil when none exists yet.
func (r *Repository) DaySession(ctx context.Context, day string) (*DaySession, error) {
	var ds DaySession
	err := r.db.GetContext(ctx, &ds, r.q(`
		SELECT day, session_code, created_at FROM day_session WHERE day = ?
	`), day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ds, nil
}

// InsertDaySession stores a new day session. A second insert for the same day
// returns store.ErrConflict.
func (r *Repository) InsertDaySession(ctx context.Context, ds DaySession) error {
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO day_session (day, session_code, created_at) VALUES (?, ?, ?)
	`), ds.Day, ds.Code, ds.CreatedAt)
	if store.IsUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

// StudentByRoll returns the student with rollNo, or nil when absent.
func (r *Repository) StudentByRoll(ctx context.Context, rollNo string) (*Student, error) {
	var s Student
	err := r.db.GetContext(ctx, &s, r.q(`
		SELECT id, roll_no, full_name, class_name, section, pin_hash, salt, created_at
		FROM students WHERE roll_no = ?
	`), rollNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// InsertStudent writes a new student. A taken roll number returns store.ErrConflict.
func (r *Repository) InsertStudent(ctx context.Context, s Student) (Student, error) {
	err := r.db.QueryRowxContext(ctx, r.q(`
		INSERT INTO students (roll_no, full_name, class_name, section, pin_hash, salt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), s.RollNo, s.FullName, s.ClassName, s.Section, s.PINHash, s.Salt, s.CreatedAt).Scan(&s.ID)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Student{}, store.ErrConflict
		}
		return Student{}, err
	}
	return s, nil
}

// ListStudents returns the roster ordered by roll number as stored.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	var students []Student
	err := r.db.SelectContext(ctx, &students, `
		SELECT id, roll_no, full_name, class_name, section, pin_hash, salt, created_at
		FROM students
		ORDER BY roll_no
	`)
	return students, err
}

// InsertRecord writes a check-in. A second record for the same student and
// day returns store.ErrConflict.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	err := r.db.QueryRowxContext(ctx, r.q(`
		INSERT INTO attendance (student_id, day, status, checked_in_at, snapshot_path, ip, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), rec.StudentID, rec.Day, statusPresent, rec.CheckedInAt, nullIfEmpty(rec.SnapshotPath), rec.IP, rec.UserAgent).Scan(&rec.ID)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Record{}, store.ErrConflict
		}
		return Record{}, err
	}
	return rec, nil
}

// CountRecords returns how many records exist for a student on day.
func (r *Repository) CountRecords(ctx context.Context, studentID int64, day string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.q(`
		SELECT COUNT(*) FROM attendance WHERE student_id = ? AND day = ?
	`), studentID, day)
	return n, err
}

// CountStudents returns the roster size.
func (r *Repository) CountStudents(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM students`)
	return n, err
}

// CountPresent returns how many students checked in on day.
func (r *Repository) CountPresent(ctx context.Context, day string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.q(`SELECT COUNT(*) FROM attendance WHERE day = ?`), day)
	return n, err
}

// RecentCheckIns returns the latest check-ins for day, newest first.
func (r *Repository) RecentCheckIns(ctx context.Context, day string, limit int) ([]CheckInView, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryxContext(ctx, r.q(`
		SELECT a.checked_in_at, s.roll_no, s.full_name, a.snapshot_path
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE a.day = ?
		ORDER BY a.checked_in_at DESC, a.id DESC
		LIMIT ?
	`), day, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []CheckInView
	for rows.Next() {
		var v CheckInView
		var snap sql.NullString
		if err := rows.Scan(&v.CheckedInAt, &v.RollNo, &v.FullName, &snap); err != nil {
			return nil, err
		}
		v.SnapshotPath = snap.String
		res = append(res, v)
	}
	return res, rows.Err()
}

// rosterRow is one student outer-joined with an optional record.
type rosterRow struct {
	Student
	CheckedInAt sql.NullTime   `db:"checked_in_at"`
	Snapshot    sql.NullString `db:"snapshot_path"`
	RecordID    sql.NullInt64  `db:"record_id"`
}

// rosterForDay outer-joins every student with their record for day.
func (r *Repository) rosterForDay(ctx context.Context, day string) ([]rosterRow, error) {
	var rows []rosterRow
	err := r.db.SelectContext(ctx, &rows, r.q(`
		SELECT s.id, s.roll_no, s.full_name, s.class_name, s.section, s.pin_hash, s.salt, s.created_at,
		       a.id AS record_id, a.checked_in_at, a.snapshot_path
		FROM students s
		LEFT JOIN attendance a ON a.student_id = s.id AND a.day = ?
	`), day)
	return rows, err
}

// AdminByUsername returns the admin account, or nil when absent.
func (r *Repository) AdminByUsername(ctx context.Context, username string) (*Admin, error) {
	var a Admin
	err := r.db.GetContext(ctx, &a, r.q(`
		SELECT id, username, pass_hash, salt FROM admin WHERE username = ?
	`), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// InsertAdmin creates an admin account. A taken username returns store.ErrConflict.
func (r *Repository) InsertAdmin(ctx context.Context, a Admin) error {
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO admin (username, pass_hash, salt) VALUES (?, ?, ?)
	`), a.Username, a.PassHash, a.Salt)
	if store.IsUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

// UpdateAdminPassword replaces the admin's hash and salt.
func (r *Repository) UpdateAdminPassword(ctx context.Context, username, hash, salt string) error {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE admin SET pass_hash = ?, salt = ? WHERE username = ?
	`), hash, salt, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("admin %q not found", username)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// truncateTime drops sub-second precision so stored and returned values agree.
func truncateTime(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
