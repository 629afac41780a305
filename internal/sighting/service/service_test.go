package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	sightingmetrics "github.com/ak652231/TraceQ-sub001/internal/sighting/metrics"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/service/mocks"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/store"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/workflow"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx            context.Context
	ctrl           *gomock.Controller
	mockDispatcher *mocks.MockDispatcher
	store          *store.InMemory
	metrics        *sightingmetrics.Metrics
	service        *Service

	officer  id.UserID
	owner    id.UserID
	reporter id.UserID
	caseID   id.MissingPersonID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.mockDispatcher = mocks.NewMockDispatcher(s.ctrl)
	s.store = store.NewInMemory(time.Second)
	s.metrics = sightingmetrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = New(workflow.New(s.store), s.store,
		WithDispatcher(s.mockDispatcher),
		WithMetrics(s.metrics),
		WithDispatchTimeout(100*time.Millisecond),
	)

	s.officer = id.NewUserID()
	s.owner = id.NewUserID()
	s.reporter = id.NewUserID()
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.User{ID: s.officer, Role: id.RoleOfficer}))
	s.Require().NoError(s.store.CreatePoliceDetails(s.ctx, &models.PoliceDetails{UserID: s.officer}))
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.User{ID: s.owner, Role: id.RoleReporter}))
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.User{ID: s.reporter, Role: id.RoleReporter}))

	person, err := s.service.OpenCase(s.ctx, models.CaseSubmission{OwnerID: s.owner, FullName: "Asha Kumar", Age: 9})
	s.Require().NoError(err)
	s.caseID = person.ID
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) submit() id.SightingReportID {
	lat, lng := 12.97, 77.59
	report, err := s.service.SubmitSighting(s.ctx, models.SightingSubmission{
		MissingPersonID: s.caseID,
		ReportedByID:    s.reporter,
		SightingDate:    "2024-03-01",
		SightingTime:    "14:30",
		Latitude:        &lat,
		Longitude:       &lng,
		ReporterPhoto:   "photos/r1.jpg",
	})
	s.Require().NoError(err)
	return report.ID
}

func (s *ServiceSuite) TestOfficerUpdateStatus() {
	s.Run("publishes to the case owner after commit", func() {
		reportID := s.submit()
		s.mockDispatcher.EXPECT().
			Publish(gomock.Any(), s.owner, EventNotification, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.UserID, _ string, payload any) error {
				p, ok := payload.(NotificationPayload)
				s.Require().True(ok)
				s.Equal(models.StatusNotifiedFamily, p.NewStatus)
				s.Equal(reportID, p.SightingReportID)
				s.Equal(s.caseID, p.MissingPersonID)

				// committed before publish
				report, err := s.store.FindSightingReport(context.Background(), reportID)
				s.Require().NoError(err)
				s.Equal(models.StatusNotifiedFamily, report.Status)
				return nil
			})

		result, err := s.service.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Notified_Family")
		s.Require().NoError(err)
		s.Require().NotNil(result.Notification)
		s.Equal(s.owner, result.Notification.UserID)
		s.Equal(models.StatusNotifiedFamily, result.PoliceAction.Action)
	})

	s.Run("dispatch unavailable does not fail the update", func() {
		reportID := s.submit()
		s.mockDispatcher.EXPECT().
			Publish(gomock.Any(), s.owner, EventNotification, gomock.Any()).
			Return(dErrors.New(dErrors.CodeDispatchUnavailable, "no live connections"))

		result, err := s.service.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Reject")
		s.Require().NoError(err)
		s.Equal(models.StatusReject, result.Report.Status)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.DispatchTotal.WithLabelValues("unavailable")))
	})

	s.Run("unknown status is a validation error", func() {
		reportID := s.submit()
		_, err := s.service.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Closed")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("illegal transition is not published", func() {
		reportID := s.submit()
		_, err := s.service.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Sent_Team")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.RejectedTotal.WithLabelValues("officer_update_status", "invalid_state")))
	})

	s.Run("anonymous caller is unauthorized", func() {
		_, err := s.service.OfficerUpdateStatus(s.ctx, id.UserID{}, s.submit(), "Solved")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestFamilyRespond() {
	reportID := s.submit()
	s.mockDispatcher.EXPECT().Publish(gomock.Any(), s.owner, EventNotification, gomock.Any()).Return(nil)
	_, err := s.service.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Notified_Family")
	s.Require().NoError(err)

	s.mockDispatcher.EXPECT().
		Publish(gomock.Any(), s.officer, EventNotification, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.UserID, _ string, payload any) error {
			p := payload.(NotificationPayload)
			s.Equal(models.ResponseDenied, p.FamilyResponse)
			s.Equal(models.KindFamilyActionUpdate, p.Notification.Kind)
			return nil
		})
	result, err := s.service.FamilyRespond(s.ctx, s.owner, reportID, "DENIED", "not her")
	s.Require().NoError(err)
	s.Equal(models.ResponseDenied, result.Report.VerifiedByFamily)
	s.Equal("not her", result.Interaction.Notes)

	_, err = s.service.FamilyRespond(s.ctx, s.owner, reportID, "CONFIRMED", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.service.FamilyRespond(s.ctx, s.owner, reportID, "MAYBE", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestWorkflowErrorsPassThrough() {
	mockWorkflow := mocks.NewMockWorkflow(s.ctrl)
	svc := New(mockWorkflow, s.store, WithDispatcher(s.mockDispatcher))
	reportID := id.NewSightingReportID()

	s.Run("store unavailable", func() {
		mockWorkflow.EXPECT().
			AdvanceStatus(gomock.Any(), reportID, models.StatusSolved, s.officer).
			Return(nil, dErrors.Wrap(errors.New("deadline"), dErrors.CodeStoreUnavailable, "store unavailable"))

		_, err := svc.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Solved")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeStoreUnavailable))
		s.True(dErrors.Retryable(err))
	})

	s.Run("forbidden family member", func() {
		mockWorkflow.EXPECT().
			RecordFamilyResponse(gomock.Any(), reportID, s.reporter, models.ResponseConfirmed, "").
			Return(nil, dErrors.New(dErrors.CodeForbidden, "only the family that filed the case may respond"))

		_, err := svc.FamilyRespond(s.ctx, s.reporter, reportID, "CONFIRMED", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestNotificationReads() {
	reportID := s.submit()
	s.mockDispatcher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	_, err := s.service.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Notified_Family")
	s.Require().NoError(err)
	_, err = s.service.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Sent_Team")
	s.Require().NoError(err)

	notes, err := s.service.ListNotifications(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(notes, 2)
	s.Equal(models.StatusSentTeam, notes[0].ReportStatus)

	latest, err := s.service.LatestNotification(s.ctx, s.owner, reportID)
	s.Require().NoError(err)
	s.Equal(notes[0].ID, latest.ID)

	none, err := s.service.LatestNotification(s.ctx, s.reporter, reportID)
	s.Require().NoError(err)
	s.Nil(none)

	count, err := s.service.UnreadCount(s.ctx, s.owner, models.NotificationFilter{MissingPersonID: s.caseID})
	s.Require().NoError(err)
	s.Equal(2, count)

	changed, err := s.service.MarkNotificationsRead(s.ctx, s.owner, reportID)
	s.Require().NoError(err)
	s.Equal(2, changed)

	count, err = s.service.UnreadCount(s.ctx, s.owner, models.NotificationFilter{})
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestOfficerCases() {
	_, err := s.service.AssignCase(s.ctx, s.officer, s.caseID)
	s.Require().NoError(err)

	count, err := s.service.OfficerAttentionCount(s.ctx, s.officer)
	s.Require().NoError(err)
	s.Equal(1, count)

	changed, err := s.service.MarkCaseSeen(s.ctx, s.officer, s.caseID)
	s.Require().NoError(err)
	s.True(changed)
	changed, err = s.service.MarkCaseSeen(s.ctx, s.officer, s.caseID)
	s.Require().NoError(err)
	s.False(changed)

	other := id.NewUserID()
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.User{ID: other, Role: id.RoleOfficer}))
	_, err = s.service.MarkCaseSeen(s.ctx, other, s.caseID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.OfficerAttentionCount(s.ctx, s.owner)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	count, err = s.service.OfficerAttentionCount(s.ctx, s.officer)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestReportHistory() {
	reportID := s.submit()
	s.mockDispatcher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	_, err := s.service.OfficerUpdateStatus(s.ctx, s.officer, reportID, "Notified_Family")
	s.Require().NoError(err)

	for _, viewer := range []id.UserID{s.officer, s.owner, s.reporter} {
		events, err := s.service.ReportHistory(s.ctx, viewer, reportID)
		s.Require().NoError(err)
		s.Len(events, 2)
	}

	stranger := id.NewUserID()
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.User{ID: stranger, Role: id.RoleReporter}))
	_, err = s.service.ReportHistory(s.ctx, stranger, reportID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	reports, err := s.service.ListOfficerReports(s.ctx, s.officer, id.MissingPersonID{})
	s.Require().NoError(err)
	s.Len(reports, 1)
}
