package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/service"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/store"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/workflow"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	"github.com/ak652231/TraceQ-sub001/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctx    context.Context
	store  *store.InMemory
	router http.Handler

	officer  id.UserID
	owner    id.UserID
	reporter id.UserID
	caseID   id.MissingPersonID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory(time.Second)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(workflow.New(s.store), s.store, service.WithLogger(logger))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	s.router = r

	s.officer = id.NewUserID()
	s.owner = id.NewUserID()
	s.reporter = id.NewUserID()
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.User{ID: s.officer, Role: id.RoleOfficer}))
	s.Require().NoError(s.store.CreatePoliceDetails(s.ctx, &models.PoliceDetails{UserID: s.officer, FullName: "Inspector Rao"}))
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.User{ID: s.owner, Role: id.RoleReporter}))
	s.Require().NoError(s.store.CreateUser(s.ctx, &models.User{ID: s.reporter, Role: id.RoleReporter}))

	rec := s.do(http.MethodPost, "/cases", s.owner, id.RoleReporter, map[string]any{
		"full_name":    "Asha Kumar",
		"age":          9,
		"last_seen_at": "2024-02-28T18:00:00Z",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var person models.MissingPerson
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&person))
	s.caseID = person.ID
}

// do serves one request as user. A nil user sends it unauthenticated.
func (s *HandlerSuite) do(method, path string, user id.UserID, role id.Role, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req = testutil.WithIdentity(testutil.WithRequestID(req, "req-test"), user, role)
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	return testutil.ErrorCode(s.T(), rec)
}

func (s *HandlerSuite) submit() id.SightingReportID {
	rec := s.do(http.MethodPost, "/sightings", s.reporter, id.RoleReporter, map[string]any{
		"missing_person_id": s.caseID.String(),
		"sighting_date":     "2024-03-01",
		"sighting_time":     "14:30",
		"latitude":          12.97,
		"longitude":         77.59,
		"reporter_photo":    "photos/r1.jpg",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var report models.SightingReport
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&report))
	s.Require().Equal(models.StatusPending, report.Status)
	return report.ID
}

func (s *HandlerSuite) TestSubmitSighting() {
	s.Run("creates a pending report", func() {
		reportID := s.submit()
		report, err := s.store.FindSightingReport(s.ctx, reportID)
		s.Require().NoError(err)
		s.Equal(s.reporter, report.ReportedByID)
	})

	s.Run("missing coordinates are rejected", func() {
		rec := s.do(http.MethodPost, "/sightings", s.reporter, id.RoleReporter, map[string]any{
			"missing_person_id": s.caseID.String(),
			"sighting_date":     "2024-03-01",
			"sighting_time":     "14:30",
			"reporter_photo":    "photos/r1.jpg",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed case id is rejected", func() {
		rec := s.do(http.MethodPost, "/sightings", s.reporter, id.RoleReporter, map[string]any{
			"missing_person_id": "not-a-uuid",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown fields are rejected", func() {
		rec := s.do(http.MethodPost, "/sightings", s.reporter, id.RoleReporter, map[string]any{
			"missing_person_id": s.caseID.String(),
			"status":            "Solved",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unauthenticated caller gets 401", func() {
		rec := s.do(http.MethodPost, "/sightings", id.UserID{}, "", map[string]any{})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlerSuite) TestUpdateStatus() {
	s.Run("officer advances a report", func() {
		reportID := s.submit()
		rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/status", s.officer, id.RoleOfficer,
			map[string]string{"status": "Notified_Family"})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Report       models.SightingReport `json:"sighting_report"`
			PoliceAction models.PoliceAction   `json:"police_action"`
			Notification *models.Notification  `json:"notification"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(models.StatusNotifiedFamily, resp.Report.Status)
		s.True(resp.Report.ShowToFamily)
		s.Equal(s.officer, resp.PoliceAction.OfficerID)
		s.Require().NotNil(resp.Notification)
		s.Equal(s.owner, resp.Notification.UserID)
	})

	s.Run("skipping ahead is a conflict", func() {
		reportID := s.submit()
		rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/status", s.officer, id.RoleOfficer,
			map[string]string{"status": "Solved"})
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("invalid_state", s.errorCode(rec))
	})

	s.Run("unknown status is a bad request", func() {
		reportID := s.submit()
		rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/status", s.officer, id.RoleOfficer,
			map[string]string{"status": "Escalated"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("reporters cannot advance reports", func() {
		reportID := s.submit()
		rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/status", s.reporter, id.RoleReporter,
			map[string]string{"status": "Notified_Family"})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("malformed path id is a bad request", func() {
		rec := s.do(http.MethodPost, "/sightings/nope/status", s.officer, id.RoleOfficer,
			map[string]string{"status": "Notified_Family"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown report is not found", func() {
		rec := s.do(http.MethodPost, "/sightings/"+id.NewSightingReportID().String()+"/status", s.officer, id.RoleOfficer,
			map[string]string{"status": "Notified_Family"})
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestFamilyResponse() {
	reportID := s.submit()
	rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/status", s.officer, id.RoleOfficer,
		map[string]string{"status": "Notified_Family"})
	s.Require().Equal(http.StatusOK, rec.Code)

	s.Run("stranger is forbidden", func() {
		rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/family-response", s.reporter, id.RoleReporter,
			map[string]string{"action": "CONFIRMED"})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("owner confirms with a lowercase action", func() {
		rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/family-response", s.owner, id.RoleReporter,
			map[string]string{"action": "confirmed", "notes": "That is her jacket"})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Report      models.SightingReport    `json:"sighting_report"`
			Interaction models.FamilyInteraction `json:"family_interaction"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(models.ResponseConfirmed, resp.Report.VerifiedByFamily)
		s.Equal("That is her jacket", resp.Interaction.Notes)
	})

	s.Run("second response is a conflict", func() {
		rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/family-response", s.owner, id.RoleReporter,
			map[string]string{"action": "DENIED"})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("officer sees the family notification", func() {
		rec := s.do(http.MethodGet, "/notifications/unread-count?sighting_report_id="+reportID.String(), s.officer, id.RoleOfficer, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp CountResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(1, resp.Count)
	})
}

func (s *HandlerSuite) TestNotifications() {
	reportID := s.submit()
	rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/status", s.officer, id.RoleOfficer,
		map[string]string{"status": "Notified_Family"})
	s.Require().Equal(http.StatusOK, rec.Code)

	s.Run("list returns the owner's notifications", func() {
		rec := s.do(http.MethodGet, "/notifications", s.owner, id.RoleReporter, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp NotificationsResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Len(resp.Notifications, 1)
	})

	s.Run("latest is null for a user with none", func() {
		rec := s.do(http.MethodGet, "/notifications/latest?sighting_report_id="+reportID.String(), s.reporter, id.RoleReporter, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"notification":null}`, rec.Body.String())
	})

	s.Run("unread count filtered by case", func() {
		rec := s.do(http.MethodGet, "/notifications/unread-count?missing_person_id="+s.caseID.String(), s.owner, id.RoleReporter, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp CountResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(1, resp.Count)
	})

	s.Run("malformed filter is a bad request", func() {
		rec := s.do(http.MethodGet, "/notifications/unread-count?missing_person_id=x", s.owner, id.RoleReporter, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("mark read clears the count", func() {
		rec := s.do(http.MethodPost, "/notifications/read", s.owner, id.RoleReporter,
			map[string]string{"sighting_report_id": reportID.String()})
		s.Require().Equal(http.StatusOK, rec.Code)
		var marked MarkReadResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&marked))
		s.Equal(1, marked.Updated)

		rec = s.do(http.MethodGet, "/notifications/unread-count", s.owner, id.RoleReporter, nil)
		var resp CountResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(0, resp.Count)
	})
}

func (s *HandlerSuite) TestPoliceEndpoints() {
	s.Run("assign then see a case", func() {
		rec := s.do(http.MethodPost, "/police/cases/"+s.caseID.String()+"/assign", s.officer, id.RoleOfficer, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(http.MethodGet, "/police/attention-count", s.officer, id.RoleOfficer, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var count CountResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&count))
		s.Equal(1, count.Count)

		rec = s.do(http.MethodPost, "/police/cases/"+s.caseID.String()+"/seen", s.officer, id.RoleOfficer, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var seen CaseSeenResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&seen))
		s.True(seen.Changed)

		rec = s.do(http.MethodPost, "/police/cases/"+s.caseID.String()+"/seen", s.officer, id.RoleOfficer, nil)
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&seen))
		s.False(seen.Changed)
	})

	s.Run("reporters cannot use police endpoints", func() {
		rec := s.do(http.MethodGet, "/police/attention-count", s.owner, id.RoleReporter, nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("officer lists reports they advanced", func() {
		reportID := s.submit()
		rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/status", s.officer, id.RoleOfficer,
			map[string]string{"status": "Notified_Family"})
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodGet, "/police/sightings?missing_person_id="+s.caseID.String(), s.officer, id.RoleOfficer, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp ReportsResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Require().NotEmpty(resp.Reports)
		s.Equal(reportID, resp.Reports[0].ID)
	})
}

func (s *HandlerSuite) TestReportHistory() {
	reportID := s.submit()
	rec := s.do(http.MethodPost, "/sightings/"+reportID.String()+"/status", s.officer, id.RoleOfficer,
		map[string]string{"status": "Notified_Family"})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/sightings/"+reportID.String()+"/events", s.owner, id.RoleReporter, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp EventsResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Require().Len(resp.Events, 2)
	s.Equal(int64(2), resp.Events[1].Revision)
}
