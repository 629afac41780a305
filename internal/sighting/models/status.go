package models

import (
	"fmt"

	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
)

// ReportStatus is the SightingReport lifecycle position. The string values are
// part of the wire contract and stored verbatim.
type ReportStatus string

const (
	StatusPending        ReportStatus = "Pending"
	StatusNotifiedFamily ReportStatus = "Notified_Family"
	StatusSentTeam       ReportStatus = "Sent_Team"
	StatusSolved         ReportStatus = "Solved"
	StatusReject         ReportStatus = "Reject"
)

var reportStatuses = map[ReportStatus]bool{
	StatusPending:        true,
	StatusNotifiedFamily: true,
	StatusSentTeam:       true,
	StatusSolved:         true,
	StatusReject:         true,
}

// ParseReportStatus validates a status token from a request or a row.
func ParseReportStatus(s string) (ReportStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "status is required")
	}
	st := ReportStatus(s)
	if !reportStatuses[st] {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid status %q", s))
	}
	return st, nil
}

// IsTerminal reports whether no further transitions are allowed.
func (s ReportStatus) IsTerminal() bool {
	return s == StatusSolved || s == StatusReject
}

func (s ReportStatus) String() string {
	return string(s)
}

// FamilyResponse is the family's answer to a verification request. The empty
// value means the family has not answered yet.
type FamilyResponse string

const (
	ResponseUnset     FamilyResponse = ""
	ResponseConfirmed FamilyResponse = "CONFIRMED"
	ResponseDenied    FamilyResponse = "DENIED"
)

// ParseFamilyResponse accepts only CONFIRMED or DENIED.
func ParseFamilyResponse(s string) (FamilyResponse, error) {
	switch FamilyResponse(s) {
	case ResponseConfirmed, ResponseDenied:
		return FamilyResponse(s), nil
	case ResponseUnset:
		return "", dErrors.New(dErrors.CodeValidation, "action is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "invalid action; must be CONFIRMED or DENIED")
	}
}

// IsSet reports whether the family has answered.
func (r FamilyResponse) IsSet() bool {
	return r != ResponseUnset
}

func (r FamilyResponse) String() string {
	return string(r)
}

// CaseStatus is the MissingPerson case status.
type CaseStatus string

const (
	CaseStatusPending       CaseStatus = "Pending"
	CaseStatusInvestigating CaseStatus = "Investigating"
	CaseStatusFound         CaseStatus = "Found"
	CaseStatusClosed        CaseStatus = "Closed"
)

// NotificationKind classifies notification records.
type NotificationKind string

const (
	KindStatusUpdate       NotificationKind = "STATUS_UPDATE"
	KindFamilyActionUpdate NotificationKind = "FAMILY_ACTION_UPDATE"
)

// EventKind classifies entries of the per-report event log.
type EventKind string

const (
	EventSubmitted       EventKind = "sighting_submitted"
	EventStatusChanged   EventKind = "status_changed"
	EventFamilyResponded EventKind = "family_responded"
)
