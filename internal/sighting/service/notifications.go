package service

import (
	"context"
	"errors"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/sentinel"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

func requireUser(userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return nil
}

// ListNotifications returns the caller's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, userID id.UserID) ([]models.Notification, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, wrapStoreErr(err, "notifications")
	}
	return notes, nil
}

// LatestNotification returns the newest notification for the caller about one
// report, or nil when there is none.
func (s *Service) LatestNotification(ctx context.Context, userID id.UserID, reportID id.SightingReportID) (*models.Notification, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if reportID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "sighting_report_id is required")
	}
	n, err := s.store.LatestNotification(ctx, userID, reportID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err, "notification")
	}
	return n, nil
}

// UnreadCount counts the caller's unread notifications, optionally narrowed
// to one case or one report.
func (s *Service) UnreadCount(ctx context.Context, userID id.UserID, filter models.NotificationFilter) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	n, err := s.store.CountUnread(ctx, userID, filter)
	if err != nil {
		return 0, wrapStoreErr(err, "notifications")
	}
	return n, nil
}

// MarkNotificationsRead marks every notification of the caller about one
// report as read. It is the only mutation notifications accept.
func (s *Service) MarkNotificationsRead(ctx context.Context, userID id.UserID, reportID id.SightingReportID) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if reportID.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "sighting_report_id is required")
	}
	changed, err := s.store.MarkNotificationsRead(ctx, userID, reportID)
	if err != nil {
		return 0, wrapStoreErr(err, "notifications")
	}
	s.logger.InfoContext(ctx, "notifications marked read",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"sighting_report_id", reportID,
		"count", changed,
	)
	return changed, nil
}

// OfficerAttentionCount is the officer's badge total: unread notifications
// plus assigned cases they have not opened yet.
func (s *Service) OfficerAttentionCount(ctx context.Context, officerID id.UserID) (int, error) {
	if _, err := s.requireRole(ctx, officerID, id.RoleOfficer); err != nil {
		return 0, err
	}
	unread, err := s.store.CountUnread(ctx, officerID, models.NotificationFilter{})
	if err != nil {
		return 0, wrapStoreErr(err, "notifications")
	}
	unseen, err := s.store.CountUnseenCases(ctx, officerID)
	if err != nil {
		return 0, wrapStoreErr(err, "cases")
	}
	return unread + unseen, nil
}
