// Package composer turns workflow outcomes into notification records.
//
// Compose is pure: it chooses the single counterpart user and a message from a
// fixed table. Identifiers and timestamps are assigned by the store on insert.
package composer

import (
	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
)

// statusMessages is addressed to the case owner after an officer action.
var statusMessages = map[models.ReportStatus]string{
	models.StatusNotifiedFamily: "Police have sent a sighting report for your verification.",
	models.StatusSentTeam:       "Police have dispatched a team to investigate the sighting.",
	models.StatusSolved:         "The sighting report has been marked as solved. The missing person has been found.",
	models.StatusReject:         "The sighting report has been reviewed and rejected by police.",
}

// familyMessages is addressed to the verifying officer after a family response.
var familyMessages = map[models.FamilyResponse]string{
	models.ResponseConfirmed: "Family has confirmed this sighting report.",
	models.ResponseDenied:    "Family has denied this sighting report.",
}

// Compose returns the notifications for one workflow outcome: at most one.
//
// Officer actions notify the case owner. Family responses notify the report's
// verifying officer, or nobody when no officer holds the report.
func Compose(kind models.NotificationKind, report *models.SightingReport, person *models.MissingPerson, actor id.Role) []models.Notification {
	if report == nil || person == nil {
		return nil
	}

	var target id.UserID
	var message string
	switch kind {
	case models.KindStatusUpdate:
		if actor != id.RoleOfficer {
			return nil
		}
		target = person.OwnerID
		message = statusMessages[report.Status]
	case models.KindFamilyActionUpdate:
		if actor != id.RoleReporter || !report.HasOfficer() {
			return nil
		}
		target = report.VerifiedByOfficer
		message = familyMessages[report.VerifiedByFamily]
	default:
		return nil
	}
	if message == "" || target.IsNil() {
		return nil
	}

	return []models.Notification{{
		UserID:           target,
		Kind:             kind,
		Message:          message,
		SightingReportID: report.ID,
		MissingPersonID:  person.ID,
		ReportStatus:     report.Status,
	}}
}

// Func adapts Compose for callers that take the composer as a dependency.
type Func func(kind models.NotificationKind, report *models.SightingReport, person *models.MissingPerson, actor id.Role) []models.Notification

func (f Func) Compose(kind models.NotificationKind, report *models.SightingReport, person *models.MissingPerson, actor id.Role) []models.Notification {
	return f(kind, report, person, actor)
}

// Default is the production composer.
var Default = Func(Compose)
