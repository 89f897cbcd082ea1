package audit

import (
	"context"
	"log/slog"
	"time"

	"attendance-kiosk/internal/metrics"
)

// MaxDetail bounds the stored detail text, in characters.
const MaxDetail = 1000

// Event kinds written by the kiosk.
const (
	KindInitAdmin        = "INIT_ADMIN"
	KindNewDaySession    = "NEW_DAY_SESSION"
	KindCheckInOK        = "CHECKIN_OK"
	KindCheckInFail      = "CHECKIN_FAIL"
	KindCheckInDuplicate = "CHECKIN_DUP"
	KindAddStudent       = "ADD_STUDENT"
	KindAdminLogin       = "ADMIN_LOGIN"
	KindAdminLoginFail   = "ADMIN_LOGIN_FAIL"
	KindAdminPassword    = "ADMIN_PW_CHANGE"
	KindRateLimited      = "RATE_LIMITED"
)

// Event is one append-only audit row.
type Event struct {
	ID     int64     `db:"id" json:"id"`
	At     time.Time `db:"ts" json:"ts"`
	Kind   string    `db:"event" json:"event"`
	Detail string    `db:"detail" json:"detail"`
}

// Recorder is the write sink shared by every component. Record never fails
// from the caller's point of view.
type Recorder interface {
	Record(ctx context.Context, kind, detail string)
}

// Appender persists a fully built event.
type Appender interface {
	Append(ctx context.Context, e Event) error
}

// Log writes events straight to an Appender on the caller's goroutine.
type Log struct {
	store  Appender
	logger *slog.Logger
	now    func() time.Time
}

// NewLog creates a synchronous best-effort recorder.
func NewLog(store Appender, logger *slog.Logger) *Log {
	return &Log{store: store, logger: logger, now: time.Now}
}

// Record appends the event. Failures are logged and counted, never returned.
func (l *Log) Record(ctx context.Context, kind, detail string) {
	l.append(ctx, l.build(kind, detail))
}

func (l *Log) build(kind, detail string) Event {
	return Event{At: l.now(), Kind: kind, Detail: Truncate(detail, MaxDetail)}
}

func (l *Log) append(ctx context.Context, e Event) {
	// The triggering operation may already be committed; a cancelled request
	// must not lose its audit row.
	ctx = context.WithoutCancel(ctx)
	if err := l.store.Append(ctx, e); err != nil {
		metrics.AuditFailures.Inc()
		l.logger.Error("audit write failed", "event", e.Kind, "detail", e.Detail, "error", err)
	}
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
