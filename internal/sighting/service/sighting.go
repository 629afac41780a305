package service

import (
	"context"
	"time"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// StatusResult is returned by OfficerUpdateStatus.
type StatusResult struct {
	Report       *models.SightingReport
	PoliceAction *models.PoliceAction
	Notification *models.Notification
}

// FamilyResult is returned by FamilyRespond.
type FamilyResult struct {
	Report       *models.SightingReport
	Interaction  *models.FamilyInteraction
	Notification *models.Notification
}

// SubmitSighting files a Pending report. The reporter is taken from the
// submission and nobody is notified until an officer acts.
func (s *Service) SubmitSighting(ctx context.Context, sub models.SightingSubmission) (*models.SightingReport, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("submit_sighting", start)

	if sub.ReportedByID.IsNil() {
		return nil, s.reject("submit_sighting", dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}
	out, err := s.workflow.Submit(ctx, sub)
	if err != nil {
		return nil, s.reject("submit_sighting", err)
	}
	s.metrics.IncrementSubmitted()
	s.logger.InfoContext(ctx, "sighting submitted",
		"request_id", requestcontext.RequestID(ctx),
		"sighting_report_id", out.Report.ID,
		"missing_person_id", out.Report.MissingPersonID,
		"reported_by", out.Report.ReportedByID,
	)
	return out.Report, nil
}

// OfficerUpdateStatus moves a report along its lifecycle and notifies the case
// owner. The response reflects the committed state; live delivery is best effort.
func (s *Service) OfficerUpdateStatus(ctx context.Context, officerID id.UserID, reportID id.SightingReportID, status string) (*StatusResult, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("officer_update_status", start)

	if officerID.IsNil() {
		return nil, s.reject("officer_update_status", dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}
	requested, err := models.ParseReportStatus(status)
	if err != nil {
		return nil, s.reject("officer_update_status", err)
	}

	out, err := s.workflow.AdvanceStatus(ctx, reportID, requested, officerID)
	if err != nil {
		return nil, s.reject("officer_update_status", err)
	}
	s.metrics.IncrementTransition(string(out.Event.FromStatus), string(out.Event.ToStatus))
	s.publish(ctx, out.Report, out.Notifications)

	return &StatusResult{
		Report:       out.Report,
		PoliceAction: out.PoliceAction,
		Notification: first(out.Notifications),
	}, nil
}

// FamilyRespond records the case owner's CONFIRMED or DENIED answer and tells
// the verifying officer.
func (s *Service) FamilyRespond(ctx context.Context, familyUserID id.UserID, reportID id.SightingReportID, action, notes string) (*FamilyResult, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("family_respond", start)

	if familyUserID.IsNil() {
		return nil, s.reject("family_respond", dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
	}
	response, err := models.ParseFamilyResponse(action)
	if err != nil {
		return nil, s.reject("family_respond", err)
	}

	out, err := s.workflow.RecordFamilyResponse(ctx, reportID, familyUserID, response, notes)
	if err != nil {
		return nil, s.reject("family_respond", err)
	}
	s.metrics.IncrementFamilyResponse(string(response))
	if out.NotifyOfficer {
		s.publish(ctx, out.Report, out.Notifications)
	}

	return &FamilyResult{
		Report:       out.Report,
		Interaction:  out.Interaction,
		Notification: first(out.Notifications),
	}, nil
}

// ReportHistory returns a report's ordered event log. Officers see every
// report; reporting users see the reports they filed or that concern their case.
func (s *Service) ReportHistory(ctx context.Context, userID id.UserID, reportID id.SightingReportID) ([]models.ReportEvent, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, wrapStoreErr(err, "user")
	}
	report, err := s.store.FindSightingReport(ctx, reportID)
	if err != nil {
		return nil, wrapStoreErr(err, "sighting report")
	}
	if !user.Role.IsOfficer() && report.ReportedByID != userID {
		person, err := s.store.FindMissingPerson(ctx, report.MissingPersonID)
		if err != nil {
			return nil, wrapStoreErr(err, "missing person")
		}
		if person.OwnerID != userID {
			return nil, dErrors.New(dErrors.CodeForbidden, "report history is not visible to this user")
		}
	}
	events, err := s.store.ListEvents(ctx, reportID)
	if err != nil {
		return nil, wrapStoreErr(err, "report events")
	}
	return events, nil
}

// ListOfficerReports returns the reports an officer verifies, optionally
// narrowed to one case.
func (s *Service) ListOfficerReports(ctx context.Context, officerID id.UserID, caseID id.MissingPersonID) ([]models.SightingReport, error) {
	if _, err := s.requireRole(ctx, officerID, id.RoleOfficer); err != nil {
		return nil, err
	}
	reports, err := s.store.ListReportsByOfficer(ctx, officerID, caseID)
	if err != nil {
		return nil, wrapStoreErr(err, "sighting reports")
	}
	return reports, nil
}

func first(notes []models.Notification) *models.Notification {
	if len(notes) == 0 {
		return nil
	}
	n := notes[0]
	return &n
}
