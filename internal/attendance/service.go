package attendance

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"attendance-kiosk/internal/audit"
	"attendance-kiosk/internal/credential"
	"attendance-kiosk/internal/metrics"
	"attendance-kiosk/internal/store"
)

// MaxUserAgent bounds the stored user agent, in characters.
const MaxUserAgent = 300

// Meta describes the client that submitted a check-in.
type Meta struct {
	RemoteAddr string
	UserAgent  string
}

// Request is one check-in attempt as submitted by a student.
type Request struct {
	RollNo      string
	PIN         string
	SessionCode string
	Meta        Meta
}

// Success describes a stored check-in.
type Success struct {
	Student     Student
	Day         string
	CheckedInAt time.Time
	Snapshot    string
}

// Deps are the collaborators of a Service. Nil optional fields get defaults.
type Deps struct {
	Store     Store
	Codes     *SessionCodes
	Snapshots SnapshotSource
	Audit     audit.Recorder
	Clock     Clock
	Hasher    credential.Hasher
	Logger    *slog.Logger
}

// Service runs the check-in protocol.
type Service struct {
	store     Store
	codes     *SessionCodes
	snapshots SnapshotSource
	audit     audit.Recorder
	clock     Clock
	hasher    credential.Hasher
	logger    *slog.Logger
}

// NewService creates a service from its collaborators.
func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Snapshots == nil {
		d.Snapshots = noSnapshots{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		store:     d.Store,
		codes:     d.Codes,
		snapshots: d.Snapshots,
		audit:     d.Audit,
		clock:     d.Clock,
		hasher:    d.Hasher,
		logger:    d.Logger,
	}
}

// CheckIn validates req and records attendance for today. The checks run in
// a fixed order and stop at the first failure: required fields, session code,
// roll lookup, PIN. A refusal is returned as a *Rejection; storage failures
// wrap ErrUnavailable.
func (s *Service) CheckIn(ctx context.Context, req Request) (Success, error) {
	start := time.Now()
	defer func() { metrics.CheckInDuration.Observe(time.Since(start).Seconds()) }()

	roll := strings.TrimSpace(req.RollNo)
	pin := strings.TrimSpace(req.PIN)
	code := strings.ToUpper(strings.TrimSpace(req.SessionCode))

	if roll == "" || pin == "" || code == "" {
		return Success{}, s.fail(ctx, roll, KindValidation, ReasonMissingField)
	}

	today, err := s.codes.Today(ctx)
	if err != nil {
		return Success{}, err
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(today.Code)) != 1 {
		return Success{}, s.fail(ctx, roll, KindAuthentication, ReasonBadSessionCode)
	}

	student, err := s.store.StudentByRoll(ctx, roll)
	if err != nil {
		return Success{}, unavailable("load student", err)
	}
	if student == nil {
		return Success{}, s.fail(ctx, roll, KindNotFound, ReasonUnknownRoll)
	}
	if !s.hasher.Verify(pin, student.Salt, student.PINHash) {
		return Success{}, s.fail(ctx, roll, KindAuthentication, ReasonBadPIN)
	}

	snap, ok := s.snapshots.Capture(ctx, roll)
	if !ok {
		snap = ""
	}

	// Past this point the request may be abandoned but the write must finish.
	ctx = context.WithoutCancel(ctx)
	now := truncateTime(s.clock.Now())
	rec := Record{
		StudentID:    student.ID,
		Day:          today.Day,
		CheckedInAt:  now,
		SnapshotPath: snap,
		IP:           req.Meta.RemoteAddr,
		UserAgent:    audit.Truncate(req.Meta.UserAgent, MaxUserAgent),
	}
	if _, err := s.store.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrConflict) {
			if snap != "" {
				s.snapshots.Discard(snap)
			}
			metrics.CheckIns.WithLabelValues(string(ReasonDuplicate)).Inc()
			s.audit.Record(ctx, audit.KindCheckInDuplicate, fmt.Sprintf("roll=%s already checked today", roll))
			return Success{}, reject(KindDuplicate, ReasonDuplicate)
		}
		return Success{}, unavailable("insert attendance", err)
	}

	metrics.CheckIns.WithLabelValues("ok").Inc()
	s.audit.Record(ctx, audit.KindCheckInOK, fmt.Sprintf("roll=%s, snap=%s", roll, snapDetail(snap)))
	s.logger.Info("check-in recorded", "roll", roll, "day", today.Day, "snapshot", snap != "")

	return Success{Student: *student, Day: today.Day, CheckedInAt: now, Snapshot: snap}, nil
}

func (s *Service) fail(ctx context.Context, roll string, kind Kind, reason Reason) error {
	metrics.CheckIns.WithLabelValues(string(reason)).Inc()
	s.audit.Record(ctx, audit.KindCheckInFail, fmt.Sprintf("roll=%s, reason=%s", roll, reason))
	return reject(kind, reason)
}

func snapDetail(snap string) string {
	if snap == "" {
		return "none"
	}
	return snap
}

type noSnapshots struct{}

func (noSnapshots) Capture(context.Context, string) (string, bool) { return "", false }

func (noSnapshots) Discard(string) {}
