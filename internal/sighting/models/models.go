package models

import (
	"time"

	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
)

// User is the identity-side view of an account.
type User struct {
	ID    id.UserID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  id.Role   `json:"role"`
}

// PoliceDetails is the officer profile required before an officer may act.
type PoliceDetails struct {
	UserID     id.UserID `json:"user_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	BadgeID    string    `json:"badge_id"`
	Rank       string    `json:"rank"`
	Station    string    `json:"station"`
	Department string    `json:"department"`
	District   string    `json:"district"`
	State      string    `json:"state"`
	Verified   bool      `json:"verified"`
}

// MissingPerson is a case opened by a reporting user. OwnerID is the family
// member who filed it. AssignedOfficerID is nil until a station takes the case.
type MissingPerson struct {
	ID                id.MissingPersonID `json:"id"`
	FullName          string             `json:"full_name"`
	Age               int                `json:"age"`
	Gender            string             `json:"gender"`
	Photo             string             `json:"photo"`
	LastSeenLocation  string             `json:"last_seen_location"`
	LastSeenAt        time.Time          `json:"last_seen_at"`
	Latitude          float64            `json:"latitude"`
	Longitude         float64            `json:"longitude"`
	Status            CaseStatus         `json:"status"`
	OwnerID           id.UserID          `json:"owner_id"`
	AssignedOfficerID id.UserID          `json:"assigned_officer_id"`
	SeenByOfficer     bool               `json:"seen_by_officer"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// SightingReport is a claim that the missing person was observed.
//
// Invariants:
//   - VerifiedByFamily leaves ResponseUnset at most once, and only while Status is Notified_Family.
//   - ShowToFamily becomes true the first time Status reaches Notified_Family and never reverts.
//   - Revision equals the number of entries in the report's event log.
type SightingReport struct {
	ID                id.SightingReportID `json:"id"`
	MissingPersonID   id.MissingPersonID  `json:"missing_person_id"`
	ReportedByID      id.UserID           `json:"reported_by_id"`
	VerifiedByOfficer id.UserID           `json:"verified_by_officer_id"`

	SightedAt        time.Time `json:"sighted_at"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	ReporterPhoto    string    `json:"reporter_photo"`
	SightingName     string    `json:"sighting_name,omitempty"`
	LocationDetails  string    `json:"location_details,omitempty"`
	AppearanceNotes  string    `json:"appearance_notes,omitempty"`
	BehaviorNotes    string    `json:"behavior_notes,omitempty"`
	IdentifyingMarks string    `json:"identifying_marks,omitempty"`
	SeenWith         string    `json:"seen_with,omitempty"`
	OriginalPhoto    string    `json:"original_photo,omitempty"`
	Analysis         string    `json:"analysis"`
	ReporterHeat     string    `json:"reporter_heat,omitempty"`
	OriginalHeat     string    `json:"original_heat,omitempty"`
	MatchPercentage  *float64  `json:"match_percentage,omitempty"`

	Status             ReportStatus   `json:"status"`
	VerifiedByFamily   FamilyResponse `json:"verified_by_family,omitempty"`
	ShowToFamily       bool           `json:"show_to_family"`
	IsSentVerification bool           `json:"is_sent_verification"`
	Revision           int64          `json:"revision"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// HasOfficer reports whether an officer holds the report.
func (r *SightingReport) HasOfficer() bool {
	return !r.VerifiedByOfficer.IsNil()
}

// PoliceAction is the latest officer action on a report, one row per report.
type PoliceAction struct {
	SightingReportID id.SightingReportID `json:"sighting_report_id"`
	OfficerID        id.UserID           `json:"officer_id"`
	Action           ReportStatus        `json:"action"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// FamilyInteraction is the family's answer to a verification request, one row per report.
type FamilyInteraction struct {
	SightingReportID id.SightingReportID `json:"sighting_report_id"`
	FamilyUserID     id.UserID           `json:"family_user_id"`
	Response         FamilyResponse      `json:"response"`
	Notes            string              `json:"notes,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Notification is a write-once record addressed to one user. Only IsRead may change.
type Notification struct {
	ID               id.NotificationID   `json:"id"`
	UserID           id.UserID           `json:"user_id"`
	Kind             NotificationKind    `json:"type"`
	Message          string              `json:"message"`
	SightingReportID id.SightingReportID `json:"sighting_report_id"`
	MissingPersonID  id.MissingPersonID  `json:"missing_person_id"`
	ReportStatus     ReportStatus        `json:"report_status"`
	IsRead           bool                `json:"is_read"`
	CreatedAt        time.Time           `json:"created_at"`
}

// ReportEvent is one immutable entry of a report's ordered history.
// (SightingReportID, Revision) is unique and revisions start at 1.
type ReportEvent struct {
	SightingReportID id.SightingReportID `json:"sighting_report_id"`
	Revision         int64               `json:"revision"`
	Kind             EventKind           `json:"kind"`
	FromStatus       ReportStatus        `json:"from_status,omitempty"`
	ToStatus         ReportStatus        `json:"to_status"`
	Response         FamilyResponse      `json:"response,omitempty"`
	ActorID          id.UserID           `json:"actor_id"`
	At               time.Time           `json:"at"`
	PublishedAt      *time.Time          `json:"-"`
}

// NotificationFilter narrows unread counts.
type NotificationFilter struct {
	MissingPersonID  id.MissingPersonID
	SightingReportID id.SightingReportID
}

// EventKey identifies one ReportEvent.
type EventKey struct {
	SightingReportID id.SightingReportID
	Revision         int64
}

// Key returns the event's identity.
func (e ReportEvent) Key() EventKey {
	return EventKey{SightingReportID: e.SightingReportID, Revision: e.Revision}
}
