package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/service"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/httputil"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// Service defines the workflow operations exposed over HTTP.
type Service interface {
	SubmitSighting(ctx context.Context, sub models.SightingSubmission) (*models.SightingReport, error)
	OfficerUpdateStatus(ctx context.Context, officerID id.UserID, reportID id.SightingReportID, status string) (*service.StatusResult, error)
	FamilyRespond(ctx context.Context, familyUserID id.UserID, reportID id.SightingReportID, action, notes string) (*service.FamilyResult, error)
	ReportHistory(ctx context.Context, userID id.UserID, reportID id.SightingReportID) ([]models.ReportEvent, error)
	ListOfficerReports(ctx context.Context, officerID id.UserID, caseID id.MissingPersonID) ([]models.SightingReport, error)
	ListNotifications(ctx context.Context, userID id.UserID) ([]models.Notification, error)
	LatestNotification(ctx context.Context, userID id.UserID, reportID id.SightingReportID) (*models.Notification, error)
	UnreadCount(ctx context.Context, userID id.UserID, filter models.NotificationFilter) (int, error)
	MarkNotificationsRead(ctx context.Context, userID id.UserID, reportID id.SightingReportID) (int, error)
	OfficerAttentionCount(ctx context.Context, officerID id.UserID) (int, error)
	OpenCase(ctx context.Context, sub models.CaseSubmission) (*models.MissingPerson, error)
	AssignCase(ctx context.Context, officerID id.UserID, caseID id.MissingPersonID) (*models.MissingPerson, error)
	MarkCaseSeen(ctx context.Context, officerID id.UserID, caseID id.MissingPersonID) (bool, error)
}

// Handler wires sighting workflow endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a sighting handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the workflow endpoints. Authentication middleware must run
// before these routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sightings", h.HandleSubmitSighting)
	r.Post("/sightings/{id}/status", h.HandleUpdateStatus)
	r.Post("/sightings/{id}/family-response", h.HandleFamilyResponse)
	r.Get("/sightings/{id}/events", h.HandleReportHistory)

	r.Post("/cases", h.HandleOpenCase)

	r.Get("/notifications", h.HandleListNotifications)
	r.Get("/notifications/latest", h.HandleLatestNotification)
	r.Get("/notifications/unread-count", h.HandleUnreadCount)
	r.Post("/notifications/read", h.HandleMarkRead)

	r.Post("/police/cases/{id}/assign", h.HandleAssignCase)
	r.Post("/police/cases/{id}/seen", h.HandleMarkCaseSeen)
	r.Get("/police/attention-count", h.HandleAttentionCount)
	r.Get("/police/sightings", h.HandleOfficerReports)
}

// caller returns the authenticated user or writes 401.
func (h *Handler) caller(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func reportIDParam(w http.ResponseWriter, r *http.Request) (id.SightingReportID, bool) {
	reportID, err := id.ParseSightingReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SightingReportID{}, false
	}
	return reportID, true
}

func caseIDParam(w http.ResponseWriter, r *http.Request) (id.MissingPersonID, bool) {
	caseID, err := id.ParseMissingPersonID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.MissingPersonID{}, false
	}
	return caseID, true
}

// optionalQueryID parses an optional id query parameter. Absent yields the zero value.
func optionalQueryID[T any](w http.ResponseWriter, r *http.Request, name string, parse func(string) (T, error)) (T, bool) {
	var zero T
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return zero, true
	}
	v, err := parse(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, name+" must be a valid id"))
		return zero, false
	}
	return v, true
}

// writeServiceError logs and writes a service failure. Client-side errors are
// logged at warn, everything else at error.
func (h *Handler) writeServiceError(w http.ResponseWriter, ctx context.Context, event string, err error, attrs ...any) {
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, event, args...)
	} else {
		h.logger.WarnContext(ctx, event, args...)
	}
	httputil.WriteError(w, err)
}

// HandleSubmitSighting handles POST /sightings.
func (h *Handler) HandleSubmitSighting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitSightingRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	report, err := h.service.SubmitSighting(ctx, req.Submission(userID))
	if err != nil {
		h.writeServiceError(w, ctx, "sighting submission failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}

// HandleUpdateStatus handles POST /sightings/{id}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	reportID, ok := reportIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.OfficerUpdateStatus(ctx, userID, reportID, req.Status)
	if err != nil {
		h.writeServiceError(w, ctx, "sighting status update failed", err,
			"user_id", userID,
			"sighting_report_id", reportID,
			"status", req.Status,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStatusResult(result))
}

// HandleFamilyResponse handles POST /sightings/{id}/family-response.
func (h *Handler) HandleFamilyResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	reportID, ok := reportIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FamilyResponseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.FamilyRespond(ctx, userID, reportID, req.Action, req.Notes)
	if err != nil {
		h.writeServiceError(w, ctx, "family response failed", err,
			"user_id", userID,
			"sighting_report_id", reportID,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromFamilyResult(result))
}

// HandleReportHistory handles GET /sightings/{id}/events.
func (h *Handler) HandleReportHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	reportID, ok := reportIDParam(w, r)
	if !ok {
		return
	}
	events, err := h.service.ReportHistory(ctx, userID, reportID)
	if err != nil {
		h.writeServiceError(w, ctx, "report history failed", err, "sighting_report_id", reportID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EventsResponse{Events: orEmpty(events)})
}

// HandleOpenCase handles POST /cases.
func (h *Handler) HandleOpenCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OpenCaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	person, err := h.service.OpenCase(ctx, req.Submission(userID))
	if err != nil {
		h.writeServiceError(w, ctx, "open case failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, person)
}

// HandleListNotifications handles GET /notifications.
func (h *Handler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	notes, err := h.service.ListNotifications(ctx, userID)
	if err != nil {
		h.writeServiceError(w, ctx, "list notifications failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NotificationsResponse{Notifications: orEmpty(notes)})
}

// HandleLatestNotification handles GET /notifications/latest?sighting_report_id=.
func (h *Handler) HandleLatestNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	reportID, ok := optionalQueryID(w, r, "sighting_report_id", id.ParseSightingReportID)
	if !ok {
		return
	}
	n, err := h.service.LatestNotification(ctx, userID, reportID)
	if err != nil {
		h.writeServiceError(w, ctx, "latest notification failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LatestNotificationResponse{Notification: n})
}

// HandleUnreadCount handles GET /notifications/unread-count with optional
// missing_person_id and sighting_report_id filters.
func (h *Handler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	caseID, ok := optionalQueryID(w, r, "missing_person_id", id.ParseMissingPersonID)
	if !ok {
		return
	}
	reportID, ok := optionalQueryID(w, r, "sighting_report_id", id.ParseSightingReportID)
	if !ok {
		return
	}
	count, err := h.service.UnreadCount(ctx, userID, models.NotificationFilter{MissingPersonID: caseID, SightingReportID: reportID})
	if err != nil {
		h.writeServiceError(w, ctx, "unread count failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: count})
}

// HandleMarkRead handles POST /notifications/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MarkReadRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	updated, err := h.service.MarkNotificationsRead(ctx, userID, req.parsedReportID)
	if err != nil {
		h.writeServiceError(w, ctx, "mark notifications read failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MarkReadResponse{Updated: updated})
}

// HandleAssignCase handles POST /police/cases/{id}/assign.
func (h *Handler) HandleAssignCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	caseID, ok := caseIDParam(w, r)
	if !ok {
		return
	}
	person, err := h.service.AssignCase(ctx, userID, caseID)
	if err != nil {
		h.writeServiceError(w, ctx, "assign case failed", err, "user_id", userID, "missing_person_id", caseID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

// HandleMarkCaseSeen handles POST /police/cases/{id}/seen.
func (h *Handler) HandleMarkCaseSeen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	caseID, ok := caseIDParam(w, r)
	if !ok {
		return
	}
	changed, err := h.service.MarkCaseSeen(ctx, userID, caseID)
	if err != nil {
		h.writeServiceError(w, ctx, "mark case seen failed", err, "user_id", userID, "missing_person_id", caseID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CaseSeenResponse{Changed: changed})
}

// HandleAttentionCount handles GET /police/attention-count.
func (h *Handler) HandleAttentionCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	count, err := h.service.OfficerAttentionCount(ctx, userID)
	if err != nil {
		h.writeServiceError(w, ctx, "attention count failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: count})
}

// HandleOfficerReports handles GET /police/sightings?missing_person_id=.
func (h *Handler) HandleOfficerReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, ctx)
	if !ok {
		return
	}
	caseID, ok := optionalQueryID(w, r, "missing_person_id", id.ParseMissingPersonID)
	if !ok {
		return
	}
	reports, err := h.service.ListOfficerReports(ctx, userID, caseID)
	if err != nil {
		h.writeServiceError(w, ctx, "list officer reports failed", err, "user_id", userID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReportsResponse{Reports: orEmpty(reports)})
}
