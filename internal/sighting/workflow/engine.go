// Package workflow owns the SightingReport state machine.
//
// Every mutation runs inside one unit of work supplied by the store: the report
// update, its side-effect records, the composed notifications and the event log
// entry either all commit or none do. Publishing is left to the caller, after commit.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/composer"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/sentinel"
	txcontext "github.com/ak652231/TraceQ-sub001/pkg/platform/tx"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

const maxFamilyNotesLength = 2000

// Store is the unit-of-work view the engine mutates through. Reads inside a
// unit of work must observe the latest committed state.
type Store interface {
	FindUser(ctx context.Context, userID id.UserID) (*models.User, error)
	FindPoliceDetails(ctx context.Context, userID id.UserID) (*models.PoliceDetails, error)
	FindMissingPerson(ctx context.Context, caseID id.MissingPersonID) (*models.MissingPerson, error)
	UpdateMissingPersonStatus(ctx context.Context, caseID id.MissingPersonID, status models.CaseStatus, at time.Time) error
	// FindSightingReportForUpdate loads a report and holds it against concurrent
	// writers until the unit of work ends.
	FindSightingReportForUpdate(ctx context.Context, reportID id.SightingReportID) (*models.SightingReport, error)
	CreateSightingReport(ctx context.Context, report *models.SightingReport) error
	// UpdateSightingReport writes report only if the stored revision still
	// equals expectedRevision; otherwise it returns sentinel.ErrConflict.
	UpdateSightingReport(ctx context.Context, report *models.SightingReport, expectedRevision int64) error
	UpsertPoliceAction(ctx context.Context, action *models.PoliceAction) (*models.PoliceAction, error)
	UpsertFamilyInteraction(ctx context.Context, interaction *models.FamilyInteraction) (*models.FamilyInteraction, error)
	CreateNotifications(ctx context.Context, notes []models.Notification) ([]models.Notification, error)
	AppendEvent(ctx context.Context, event *models.ReportEvent) error
}

// TxRunner provides the transactional boundary.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// Composer builds notification records for an outcome.
type Composer interface {
	Compose(kind models.NotificationKind, report *models.SightingReport, person *models.MissingPerson, actor id.Role) []models.Notification
}

// Outcome is what one committed workflow step produced.
type Outcome struct {
	Report        *models.SightingReport
	Person        *models.MissingPerson
	PoliceAction  *models.PoliceAction
	Interaction   *models.FamilyInteraction
	Notifications []models.Notification
	Event         models.ReportEvent
	// NotifyOfficer is true when a family response should reach the verifying officer.
	NotifyOfficer bool
}

// Engine applies transitions.
type Engine struct {
	tx       TxRunner
	composer Composer
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithComposer(c Composer) Option {
	return func(e *Engine) {
		e.composer = c
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New constructs an Engine over a transactional store.
func New(tx TxRunner, opts ...Option) *Engine {
	e := &Engine{
		tx:       tx,
		composer: composer.Default,
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/ak652231/TraceQ-sub001/internal/sighting/workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit creates a Pending report for an existing case. No one is notified.
func (e *Engine) Submit(ctx context.Context, sub models.SightingSubmission) (*Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Submit", trace.WithAttributes(
		attribute.String("missing_person_id", sub.MissingPersonID.String()),
	))
	defer span.End()

	sightedAt, err := sub.Validate()
	if err != nil {
		return nil, endSpan(span, err)
	}

	reportID := id.NewSightingReportID()
	ctx = txcontext.WithShardKey(ctx, reportID.String())
	now := requestcontext.Now(ctx)

	var out *Outcome
	err = e.tx.RunInTx(ctx, func(store Store) error {
		person, err := store.FindMissingPerson(ctx, sub.MissingPersonID)
		if err != nil {
			return storeError(err, "missing person")
		}
		report := models.NewSightingReport(reportID, sub, sightedAt, now)
		report.Revision = 1
		if err := store.CreateSightingReport(ctx, report); err != nil {
			return storeError(err, "sighting report")
		}
		event := models.ReportEvent{
			SightingReportID: report.ID,
			Revision:         report.Revision,
			Kind:             models.EventSubmitted,
			ToStatus:         report.Status,
			ActorID:          sub.ReportedByID,
			At:               now,
		}
		if err := store.AppendEvent(ctx, &event); err != nil {
			return storeError(err, "report event")
		}
		out = &Outcome{Report: report, Person: person, Event: event}
		return nil
	})
	if err != nil {
		return nil, endSpan(span, mapTxError(err))
	}
	span.SetAttributes(attribute.String("sighting_report_id", reportID.String()))
	return out, nil
}

// AdvanceStatus moves a report to requested on behalf of an officer.
//
// The first officer to act on an unheld report becomes its verifying officer.
// Errors: NotFound (officer, officer details, report or case), Forbidden
// (not an officer, or report held by another officer), InvalidState (not an
// edge), StoreUnavailable (retryable).
func (e *Engine) AdvanceStatus(ctx context.Context, reportID id.SightingReportID, requested models.ReportStatus, officerID id.UserID) (*Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.AdvanceStatus", trace.WithAttributes(
		attribute.String("sighting_report_id", reportID.String()),
		attribute.String("requested_status", string(requested)),
	))
	defer span.End()

	ctx = txcontext.WithShardKey(ctx, reportID.String())
	now := requestcontext.Now(ctx)

	var out *Outcome
	err := e.tx.RunInTx(ctx, func(store Store) error {
		if err := requireOfficer(ctx, store, officerID); err != nil {
			return err
		}
		report, err := store.FindSightingReportForUpdate(ctx, reportID)
		if err != nil {
			return storeError(err, "sighting report")
		}
		if report.HasOfficer() && report.VerifiedByOfficer != officerID {
			return dErrors.New(dErrors.CodeForbidden, "report is held by another officer")
		}
		if err := checkTransition(report.Status, requested); err != nil {
			return err
		}
		person, err := store.FindMissingPerson(ctx, report.MissingPersonID)
		if err != nil {
			return storeError(err, "missing person")
		}

		from := report.Status
		expected := report.Revision
		report.Status = requested
		report.VerifiedByOfficer = officerID
		report.UpdatedAt = now
		report.Revision++
		if requested == models.StatusNotifiedFamily {
			report.ShowToFamily = true
			report.IsSentVerification = true
		}
		if err := store.UpdateSightingReport(ctx, report, expected); err != nil {
			return storeError(err, "sighting report")
		}

		action, err := store.UpsertPoliceAction(ctx, &models.PoliceAction{
			SightingReportID: report.ID,
			OfficerID:        officerID,
			Action:           requested,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return storeError(err, "police action")
		}

		if caseStatus, ok := caseStatusAfter(requested); ok {
			if err := store.UpdateMissingPersonStatus(ctx, person.ID, caseStatus, now); err != nil {
				return storeError(err, "missing person")
			}
			person.Status = caseStatus
			person.UpdatedAt = now
		}

		event := models.ReportEvent{
			SightingReportID: report.ID,
			Revision:         report.Revision,
			Kind:             models.EventStatusChanged,
			FromStatus:       from,
			ToStatus:         requested,
			ActorID:          officerID,
			At:               now,
		}
		if err := store.AppendEvent(ctx, &event); err != nil {
			return storeError(err, "report event")
		}

		notes, err := store.CreateNotifications(ctx, e.composer.Compose(models.KindStatusUpdate, report, person, id.RoleOfficer))
		if err != nil {
			return storeError(err, "notification")
		}

		out = &Outcome{
			Report:        report,
			Person:        person,
			PoliceAction:  action,
			Notifications: notes,
			Event:         event,
		}
		return nil
	})
	if err != nil {
		return nil, endSpan(span, mapTxError(err))
	}

	e.logger.InfoContext(ctx, "sighting status advanced",
		"sighting_report_id", reportID,
		"from_status", out.Event.FromStatus,
		"to_status", out.Event.ToStatus,
		"revision", out.Event.Revision,
		"officer_id", officerID,
	)
	return out, nil
}

// RecordFamilyResponse stores the case owner's answer to a verification request.
//
// A report accepts one answer; a second attempt is InvalidState. Ownership is
// checked before status so a stranger always gets Forbidden.
func (e *Engine) RecordFamilyResponse(ctx context.Context, reportID id.SightingReportID, familyUserID id.UserID, response models.FamilyResponse, notes string) (*Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.RecordFamilyResponse", trace.WithAttributes(
		attribute.String("sighting_report_id", reportID.String()),
		attribute.String("response", string(response)),
	))
	defer span.End()

	if !response.IsSet() {
		return nil, endSpan(span, dErrors.New(dErrors.CodeValidation, "action is required"))
	}
	notes = strings.TrimSpace(notes)
	if len(notes) > maxFamilyNotesLength {
		return nil, endSpan(span, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxFamilyNotesLength)))
	}

	ctx = txcontext.WithShardKey(ctx, reportID.String())
	now := requestcontext.Now(ctx)

	var out *Outcome
	err := e.tx.RunInTx(ctx, func(store Store) error {
		report, err := store.FindSightingReportForUpdate(ctx, reportID)
		if err != nil {
			return storeError(err, "sighting report")
		}
		person, err := store.FindMissingPerson(ctx, report.MissingPersonID)
		if err != nil {
			return storeError(err, "missing person")
		}
		if person.OwnerID != familyUserID {
			return dErrors.New(dErrors.CodeForbidden, "only the family that filed the case may respond")
		}
		if report.Status != models.StatusNotifiedFamily {
			return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("report is %s; family response requires %s", report.Status, models.StatusNotifiedFamily))
		}
		if report.VerifiedByFamily.IsSet() {
			return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("family has already responded %s", report.VerifiedByFamily))
		}

		expected := report.Revision
		report.VerifiedByFamily = response
		report.UpdatedAt = now
		report.Revision++
		if err := store.UpdateSightingReport(ctx, report, expected); err != nil {
			return storeError(err, "sighting report")
		}

		interaction, err := store.UpsertFamilyInteraction(ctx, &models.FamilyInteraction{
			SightingReportID: report.ID,
			FamilyUserID:     familyUserID,
			Response:         response,
			Notes:            notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return storeError(err, "family interaction")
		}

		event := models.ReportEvent{
			SightingReportID: report.ID,
			Revision:         report.Revision,
			Kind:             models.EventFamilyResponded,
			FromStatus:       report.Status,
			ToStatus:         report.Status,
			Response:         response,
			ActorID:          familyUserID,
			At:               now,
		}
		if err := store.AppendEvent(ctx, &event); err != nil {
			return storeError(err, "report event")
		}

		stored, err := store.CreateNotifications(ctx, e.composer.Compose(models.KindFamilyActionUpdate, report, person, id.RoleReporter))
		if err != nil {
			return storeError(err, "notification")
		}

		out = &Outcome{
			Report:        report,
			Person:        person,
			Interaction:   interaction,
			Notifications: stored,
			Event:         event,
			NotifyOfficer: report.HasOfficer(),
		}
		return nil
	})
	if err != nil {
		return nil, endSpan(span, mapTxError(err))
	}

	e.logger.InfoContext(ctx, "family response recorded",
		"sighting_report_id", reportID,
		"response", response,
		"notify_officer", out.NotifyOfficer,
	)
	return out, nil
}

// requireOfficer checks that the acting user exists, holds the officer role
// and has PoliceDetails on file.
func requireOfficer(ctx context.Context, store Store, officerID id.UserID) error {
	user, err := store.FindUser(ctx, officerID)
	if err != nil {
		return storeError(err, "officer")
	}
	if !user.Role.IsOfficer() {
		return dErrors.New(dErrors.CodeForbidden, "only police officers may update sighting status")
	}
	if _, err := store.FindPoliceDetails(ctx, officerID); err != nil {
		return storeError(err, "police details")
	}
	return nil
}

// storeError translates a store failure into a domain error. Errors that
// already carry a domain code pass through.
func storeError(err error, entity string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, entity+" was modified concurrently; retry")
	case errors.Is(err, sentinel.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist "+entity)
	}
}

// mapTxError classifies failures raised by the transaction runner itself.
func mapTxError(err error) error {
	return storeError(err, "unit of work")
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}
