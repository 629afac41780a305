package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
)

// Typed identifiers. Each is a distinct named type so a report id can never be
// passed where a user id is expected.
//
// Usage: construct via the ParseX helpers at trust boundaries (handlers, token
// claims, store scans); direct conversion from uuid.UUID is for tests and
// freshly generated ids only.
type (
	UserID           uuid.UUID
	MissingPersonID  uuid.UUID
	SightingReportID uuid.UUID
	NotificationID   uuid.UUID
	ConnectionID     uuid.UUID
)

func (u UserID) String() string           { return uuid.UUID(u).String() }
func (u UserID) IsNil() bool              { return uuid.UUID(u) == uuid.Nil }
func (m MissingPersonID) String() string  { return uuid.UUID(m).String() }
func (m MissingPersonID) IsNil() bool     { return uuid.UUID(m) == uuid.Nil }
func (s SightingReportID) String() string { return uuid.UUID(s).String() }
func (s SightingReportID) IsNil() bool    { return uuid.UUID(s) == uuid.Nil }
func (n NotificationID) String() string   { return uuid.UUID(n).String() }
func (n NotificationID) IsNil() bool      { return uuid.UUID(n) == uuid.Nil }
func (c ConnectionID) String() string     { return uuid.UUID(c).String() }

// NewUserID returns a fresh random user id. Accounts are normally minted by the
// identity provider; this is used for seeding and tests.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewSightingReportID returns a fresh random report id.
func NewSightingReportID() SightingReportID { return SightingReportID(uuid.New()) }

// NewMissingPersonID returns a fresh random case id.
func NewMissingPersonID() MissingPersonID { return MissingPersonID(uuid.New()) }

// NewNotificationID returns a fresh random notification id.
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }

// NewConnectionID returns a fresh random connection id.
func NewConnectionID() ConnectionID { return ConnectionID(uuid.New()) }

// ParseUserID parses a user id from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseMissingPersonID parses a case id from external input.
func ParseMissingPersonID(s string) (MissingPersonID, error) {
	u, err := parseUUID(s, "missing person ID")
	return MissingPersonID(u), err
}

// ParseSightingReportID parses a sighting report id from external input.
func ParseSightingReportID(s string) (SightingReportID, error) {
	u, err := parseUUID(s, "sighting report ID")
	return SightingReportID(u), err
}

// ParseNotificationID parses a notification id from external input.
func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification ID")
	return NotificationID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	// uuid.Parse accepts urn and braced forms; cap length before parsing.
	if len(s) > 45 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

// Text encoding lets typed IDs appear in JSON as canonical UUID strings. The
// nil UUID encodes as "" so unassigned references read as absent.

func (u UserID) MarshalText() ([]byte, error)           { return marshalID(uuid.UUID(u)) }
func (m MissingPersonID) MarshalText() ([]byte, error)  { return marshalID(uuid.UUID(m)) }
func (s SightingReportID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(s)) }
func (n NotificationID) MarshalText() ([]byte, error)   { return marshalID(uuid.UUID(n)) }

func (u *UserID) UnmarshalText(b []byte) error           { return unmarshalID((*uuid.UUID)(u), b) }
func (m *MissingPersonID) UnmarshalText(b []byte) error  { return unmarshalID((*uuid.UUID)(m), b) }
func (s *SightingReportID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(s), b) }
func (n *NotificationID) UnmarshalText(b []byte) error   { return unmarshalID((*uuid.UUID)(n), b) }

func marshalID(u uuid.UUID) ([]byte, error) {
	if u == uuid.Nil {
		return []byte{}, nil
	}
	return []byte(u.String()), nil
}

func unmarshalID(dst *uuid.UUID, b []byte) error {
	if len(b) == 0 {
		*dst = uuid.Nil
		return nil
	}
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid identifier")
	}
	*dst = u
	return nil
}
