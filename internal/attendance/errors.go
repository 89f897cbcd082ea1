package attendance

import (
	"errors"
	"fmt"
)

// ErrUnavailable wraps every storage failure. Callers treat it as a hard error.
var ErrUnavailable = errors.New("storage unavailable")

// Kind classifies a rejection.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindDuplicate
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Reason is the machine-readable cause recorded in the audit trail.
type Reason string

const (
	ReasonMissingField   Reason = "missing_field"
	ReasonBadSessionCode Reason = "bad_session_code"
	ReasonUnknownRoll    Reason = "unknown_roll"
	ReasonBadPIN         Reason = "bad_pin"
	ReasonDuplicate      Reason = "duplicate"
	ReasonBadDay         Reason = "bad_day"
	ReasonRollExists     Reason = "roll_exists"
	ReasonPasswordMatch  Reason = "password_mismatch"
	ReasonBadPassword    Reason = "bad_password"
	ReasonBadLogin       Reason = "bad_login"
	ReasonUnknownAdmin   Reason = "unknown_admin"
)

// Rejection is a normal, user-correctable refusal. It is returned as an error
// so handlers can tell it apart from ErrUnavailable with errors.As.
type Rejection struct {
	Kind   Kind
	Reason Reason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Kind, r.Reason)
}

// Message is the short text shown to the user. Unknown roll numbers and wrong
// PINs share one message so the kiosk does not confirm which roll numbers exist.
func (r *Rejection) Message() string {
	switch r.Reason {
	case ReasonMissingField:
		return "Fill all fields."
	case ReasonBadSessionCode:
		return "Wrong session code. Ask teacher for today's code."
	case ReasonUnknownRoll, ReasonBadPIN:
		return "Wrong roll number or PIN."
	case ReasonDuplicate:
		return "Already checked in today."
	case ReasonBadDay:
		return "Invalid date. Use YYYY-MM-DD."
	case ReasonRollExists:
		return "Roll number already exists."
	case ReasonPasswordMatch:
		return "New passwords do not match."
	case ReasonBadPassword:
		return "Old password wrong."
	case ReasonUnknownAdmin:
		return "No such admin account."
	case ReasonBadLogin:
		return "Invalid login."
	default:
		return "Request rejected."
	}
}

func reject(kind Kind, reason Reason) *Rejection {
	return &Rejection{Kind: kind, Reason: reason}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// AsRejection unwraps err into a *Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
