package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"attendance-kiosk/internal/audit"
	"attendance-kiosk/internal/credential"
	"attendance-kiosk/internal/store"
)

// DefaultAdminUsername is the account created at first boot.
const DefaultAdminUsername = "admin"

// NewStudent is the input for AddStudent.
type NewStudent struct {
	RollNo    string
	FullName  string
	ClassName string
	Section   string
	PIN       string
}

// AdminService covers the administrator operations: the account itself and roster
// management.
type AdminService struct {
	repo   *Repository
	audit  audit.Recorder
	clock  Clock
	hasher credential.Hasher
	logger *slog.Logger
}

// NewAdminService creates the admin service.
func NewAdminService(repo *Repository, rec audit.Recorder, clock Clock, hasher credential.Hasher, logger *slog.Logger) *AdminService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{repo: repo, audit: rec, clock: clock, hasher: hasher, logger: logger}
}

// EnsureAdmin creates the admin account with password when none exists.
// It reports whether an account was created.
func (s *AdminService) EnsureAdmin(ctx context.Context, password string) (bool, error) {
	existing, err := s.repo.AdminByUsername(ctx, DefaultAdminUsername)
	if err != nil {
		return false, unavailable("load admin", err)
	}
	if existing != nil {
		return false, nil
	}
	digest, salt, err := s.hasher.HashNew(password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	err = s.repo.InsertAdmin(ctx, Admin{Username: DefaultAdminUsername, PassHash: digest, Salt: salt})
	if errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("insert admin", err)
	}
	s.audit.Record(ctx, audit.KindInitAdmin, "username="+DefaultAdminUsername)
	s.logger.Warn("created default admin account; change its password", "username", DefaultAdminUsername)
	return true, nil
}

// Authenticate checks admin credentials.
func (s *AdminService) Authenticate(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	a, err := s.repo.AdminByUsername(ctx, username)
	if err != nil {
		return unavailable("load admin", err)
	}
	if a == nil || !s.hasher.Verify(password, a.Salt, a.PassHash) {
		s.audit.Record(ctx, audit.KindAdminLoginFail, "username="+username)
		return reject(KindAuthentication, ReasonBadLogin)
	}
	s.audit.Record(ctx, audit.KindAdminLogin, "username="+username)
	return nil
}

// ChangePassword replaces the admin password after checking the old one.
func (s *AdminService) ChangePassword(ctx context.Context, username, oldPassword, newPassword, confirm string) error {
	if oldPassword == "" || newPassword == "" || confirm == "" {
		return reject(KindValidation, ReasonMissingField)
	}
	if newPassword != confirm {
		return reject(KindValidation, ReasonPasswordMatch)
	}
	a, err := s.repo.AdminByUsername(ctx, username)
	if err != nil {
		return unavailable("load admin", err)
	}
	if a == nil || !s.hasher.Verify(oldPassword, a.Salt, a.PassHash) {
		return reject(KindAuthentication, ReasonBadPassword)
	}
	digest, salt, err := s.hasher.HashNew(newPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := s.repo.UpdateAdminPassword(ctx, username, digest, salt); err != nil {
		return unavailable("update admin password", err)
	}
	s.audit.Record(ctx, audit.KindAdminPassword, "username="+username)
	return nil
}

// SetPassword replaces the admin password without the old one. Used by the CLI.
func (s *AdminService) SetPassword(ctx context.Context, username, newPassword string) error {
	if newPassword == "" {
		return reject(KindValidation, ReasonMissingField)
	}
	a, err := s.repo.AdminByUsername(ctx, username)
	if err != nil {
		return unavailable("load admin", err)
	}
	if a == nil {
		return reject(KindNotFound, ReasonUnknownAdmin)
	}
	digest, salt, err := s.hasher.HashNew(newPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := s.repo.UpdateAdminPassword(ctx, username, digest, salt); err != nil {
		return unavailable("update admin password", err)
	}
	s.audit.Record(ctx, audit.KindAdminPassword, "username="+username+", via=cli")
	return nil
}

// AddStudent enrolls a student with a fresh salt. All fields are required.
func (s *AdminService) AddStudent(ctx context.Context, in NewStudent) (Student, error) {
	st := Student{
		RollNo:    strings.TrimSpace(in.RollNo),
		FullName:  strings.TrimSpace(in.FullName),
		ClassName: strings.TrimSpace(in.ClassName),
		Section:   strings.TrimSpace(in.Section),
	}
	pin := strings.TrimSpace(in.PIN)
	if st.RollNo == "" || st.FullName == "" || st.ClassName == "" || st.Section == "" || pin == "" {
		return Student{}, reject(KindValidation, ReasonMissingField)
	}

	digest, salt, err := s.hasher.HashNew(pin)
	if err != nil {
		return Student{}, fmt.Errorf("hash pin: %w", err)
	}
	st.PINHash, st.Salt = digest, salt
	st.CreatedAt = truncateTime(s.clock.Now())

	st, err = s.repo.InsertStudent(ctx, st)
	if errors.Is(err, store.ErrConflict) {
		return Student{}, reject(KindValidation, ReasonRollExists)
	}
	if err != nil {
		return Student{}, unavailable("insert student", err)
	}
	s.audit.Record(ctx, audit.KindAddStudent, fmt.Sprintf("roll=%s, name=%s", st.RollNo, st.FullName))
	return st, nil
}

// Dashboard is the admin overview for one day.
type Dashboard struct {
	Day           string        `json:"day"`
	Code          string        `json:"session_code"`
	TotalStudents int           `json:"total_students"`
	PresentToday  int           `json:"present_today"`
	Recent        []CheckInView `json:"recent"`
}

// Dashboard gathers today's code, totals and the latest 50 check-ins.
func (s *AdminService) Dashboard(ctx context.Context, codes *SessionCodes) (Dashboard, error) {
	ds, err := codes.Today(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	total, err := s.repo.CountStudents(ctx)
	if err != nil {
		return Dashboard{}, unavailable("count students", err)
	}
	present, err := s.repo.CountPresent(ctx, ds.Day)
	if err != nil {
		return Dashboard{}, unavailable("count present", err)
	}
	recent, err := s.repo.RecentCheckIns(ctx, ds.Day, 50)
	if err != nil {
		return Dashboard{}, unavailable("recent check-ins", err)
	}
	return Dashboard{Day: ds.Day, Code: ds.Code, TotalStudents: total, PresentToday: present, Recent: recent}, nil
}
