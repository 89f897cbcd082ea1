package attendance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"attendance-kiosk/internal/audit"
	"attendance-kiosk/internal/store"
)

// codeBytes random bytes give a six character code.
const codeBytes = 3

// DayStore is the subset of storage the registry needs.
type DayStore interface {
	DaySession(ctx context.Context, day string) (*DaySession, error)
	InsertDaySession(ctx context.Context, ds DaySession) error
}

// SessionCodes hands out the code announced for the current day. Once stored
// a day's code never changes. Concurrent first calls are settled by the
// day_session primary key: the loser re-reads the winner's row.
type SessionCodes struct {
	store  DayStore
	audit  audit.Recorder
	clock  Clock
	random io.Reader
}

// NewSessionCodes creates a registry.
func NewSessionCodes(store DayStore, rec audit.Recorder, clock Clock) *SessionCodes {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SessionCodes{store: store, audit: rec, clock: clock, random: rand.Reader}
}

// GetOrCreateTodayCode returns today's code, creating it on first use.
func (s *SessionCodes) GetOrCreateTodayCode(ctx context.Context) (string, error) {
	ds, err := s.Today(ctx)
	if err != nil {
		return "", err
	}
	return ds.Code, nil
}

// Today returns today's day session, creating it on first use.
func (s *SessionCodes) Today(ctx context.Context) (DaySession, error) {
	now := s.clock.Now()
	day := Day(now)

	existing, err := s.store.DaySession(ctx, day)
	if err != nil {
		return DaySession{}, unavailable("load day session", err)
	}
	if existing != nil {
		return *existing, nil
	}

	code, err := s.newCode()
	if err != nil {
		return DaySession{}, fmt.Errorf("generate session code: %w", err)
	}
	ds := DaySession{Day: day, Code: code, CreatedAt: truncateTime(now)}

	err = s.store.InsertDaySession(ctx, ds)
	switch {
	case err == nil:
		s.audit.Record(ctx, audit.KindNewDaySession, fmt.Sprintf("day=%s, code=%s", day, code))
		return ds, nil
	case errors.Is(err, store.ErrConflict):
		winner, err := s.store.DaySession(ctx, day)
		if err != nil {
			return DaySession{}, unavailable("reload day session", err)
		}
		if winner == nil {
			return DaySession{}, unavailable("reload day session", errors.New("conflicting row vanished"))
		}
		return *winner, nil
	default:
		return DaySession{}, unavailable("insert day session", err)
	}
}

// Lookup returns the session stored for day without creating one.
func (s *SessionCodes) Lookup(ctx context.Context, day string) (*DaySession, error) {
	ds, err := s.store.DaySession(ctx, day)
	if err != nil {
		return nil, unavailable("load day session", err)
	}
	return ds, nil
}

func (s *SessionCodes) newCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
