package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Workflow,Dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/metrics"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/workflow"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/sentinel"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// EventNotification is the live event name clients subscribe to.
const EventNotification = "notification"

// DefaultDispatchTimeout bounds live fan-out after a commit.
const DefaultDispatchTimeout = 2 * time.Second

// Workflow applies state transitions inside a unit of work.
type Workflow interface {
	Submit(ctx context.Context, sub models.SightingSubmission) (*workflow.Outcome, error)
	AdvanceStatus(ctx context.Context, reportID id.SightingReportID, requested models.ReportStatus, officerID id.UserID) (*workflow.Outcome, error)
	RecordFamilyResponse(ctx context.Context, reportID id.SightingReportID, familyUserID id.UserID, response models.FamilyResponse, notes string) (*workflow.Outcome, error)
}

// Store serves the read side and the few writes outside the state machine.
type Store interface {
	FindUser(ctx context.Context, userID id.UserID) (*models.User, error)
	FindSightingReport(ctx context.Context, reportID id.SightingReportID) (*models.SightingReport, error)
	FindMissingPerson(ctx context.Context, caseID id.MissingPersonID) (*models.MissingPerson, error)
	CreateMissingPerson(ctx context.Context, person *models.MissingPerson) error
	AssignCase(ctx context.Context, caseID id.MissingPersonID, officerID id.UserID, at time.Time) error
	MarkCaseSeen(ctx context.Context, caseID id.MissingPersonID, officerID id.UserID, at time.Time) (bool, error)
	CountUnseenCases(ctx context.Context, officerID id.UserID) (int, error)
	ListReportsByOfficer(ctx context.Context, officerID id.UserID, caseID id.MissingPersonID) ([]models.SightingReport, error)
	ListNotifications(ctx context.Context, userID id.UserID) ([]models.Notification, error)
	LatestNotification(ctx context.Context, userID id.UserID, reportID id.SightingReportID) (*models.Notification, error)
	CountUnread(ctx context.Context, userID id.UserID, filter models.NotificationFilter) (int, error)
	MarkNotificationsRead(ctx context.Context, userID id.UserID, reportID id.SightingReportID) (int, error)
	ListEvents(ctx context.Context, reportID id.SightingReportID) ([]models.ReportEvent, error)
}

// Dispatcher delivers a live event to every connection of a user. A nil userID
// broadcasts to every connected user.
type Dispatcher interface {
	Publish(ctx context.Context, userID id.UserID, event string, payload any) error
}

// Service is the workflow API surface: it authorises the caller, runs the
// workflow, and fans committed notifications out to live connections.
type Service struct {
	workflow        Workflow
	store           Store
	dispatcher      Dispatcher
	logger          *slog.Logger
	metrics         *metrics.Metrics
	dispatchTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDispatcher enables live fan-out. Without one, notifications are only persisted.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

func WithDispatchTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.dispatchTimeout = timeout
		}
	}
}

// New constructs a Service.
func New(wf Workflow, store Store, opts ...Option) *Service {
	s := &Service{
		workflow:        wf,
		store:           store,
		logger:          slog.Default(),
		dispatchTimeout: DefaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotificationPayload is the live event body. It carries the new report
// status next to the stored notification so clients can refresh in place.
type NotificationPayload struct {
	UserID           id.UserID             `json:"user_id"`
	NewStatus        models.ReportStatus   `json:"new_status"`
	SightingReportID id.SightingReportID   `json:"sighting_report_id"`
	MissingPersonID  id.MissingPersonID    `json:"missing_person_id"`
	FamilyResponse   models.FamilyResponse `json:"family_response,omitempty"`
	Notification     models.Notification   `json:"notification"`
}

// publish pushes committed notifications to live connections. It runs on a
// context detached from the request so a disconnecting caller cannot cut it
// short, bounded by the dispatch timeout. Failures never reach the caller.
func (s *Service) publish(ctx context.Context, report *models.SightingReport, notes []models.Notification) {
	if s.dispatcher == nil || len(notes) == 0 {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	for _, n := range notes {
		payload := NotificationPayload{
			UserID:           n.UserID,
			NewStatus:        report.Status,
			SightingReportID: report.ID,
			MissingPersonID:  report.MissingPersonID,
			FamilyResponse:   report.VerifiedByFamily,
			Notification:     n,
		}
		err := s.dispatcher.Publish(dctx, n.UserID, EventNotification, payload)
		switch {
		case err == nil:
			s.metrics.IncrementDispatch("delivered")
		case dErrors.HasCode(err, dErrors.CodeDispatchUnavailable):
			s.metrics.IncrementDispatch("unavailable")
			s.logger.WarnContext(ctx, "live notification skipped",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", n.UserID,
				"sighting_report_id", report.ID,
				"error", err,
			)
		default:
			s.metrics.IncrementDispatch("failed")
			s.logger.ErrorContext(ctx, "live notification failed",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", n.UserID,
				"sighting_report_id", report.ID,
				"error", err,
			)
		}
	}
}

// reject records a failed operation and passes err through.
func (s *Service) reject(operation string, err error) error {
	s.metrics.IncrementRejected(operation, string(dErrors.CodeOf(err)))
	return err
}

// wrapStoreErr translates read-side store failures.
func wrapStoreErr(err error, entity string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+entity)
	}
}

// requireRole loads the caller and checks their role.
func (s *Service) requireRole(ctx context.Context, userID id.UserID, role id.Role) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, wrapStoreErr(err, "user")
	}
	if user.Role != role {
		return nil, dErrors.New(dErrors.CodeForbidden, "operation requires role "+role.String())
	}
	return user, nil
}
