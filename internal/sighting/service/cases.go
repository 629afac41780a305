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

// OpenCase files a missing-person case owned by the calling reporter.
func (s *Service) OpenCase(ctx context.Context, sub models.CaseSubmission) (*models.MissingPerson, error) {
	if _, err := s.requireRole(ctx, sub.OwnerID, id.RoleReporter); err != nil {
		return nil, err
	}
	person, err := models.NewMissingPerson(id.NewMissingPersonID(), sub, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateMissingPerson(ctx, person); err != nil {
		return nil, wrapStoreErr(err, "missing person")
	}
	s.logger.InfoContext(ctx, "case opened",
		"request_id", requestcontext.RequestID(ctx),
		"missing_person_id", person.ID,
		"owner_id", person.OwnerID,
	)
	return person, nil
}

// AssignCase makes the calling officer responsible for a case. The case shows
// as unseen for them until MarkCaseSeen.
func (s *Service) AssignCase(ctx context.Context, officerID id.UserID, caseID id.MissingPersonID) (*models.MissingPerson, error) {
	if _, err := s.requireRole(ctx, officerID, id.RoleOfficer); err != nil {
		return nil, err
	}
	if err := s.store.AssignCase(ctx, caseID, officerID, requestcontext.Now(ctx)); err != nil {
		return nil, wrapStoreErr(err, "missing person")
	}
	person, err := s.store.FindMissingPerson(ctx, caseID)
	if err != nil {
		return nil, wrapStoreErr(err, "missing person")
	}
	s.logger.InfoContext(ctx, "case assigned",
		"request_id", requestcontext.RequestID(ctx),
		"missing_person_id", caseID,
		"officer_id", officerID,
	)
	return person, nil
}

// MarkCaseSeen records that the assigned officer opened a case. Repeat calls
// are no-ops; any other officer is refused.
func (s *Service) MarkCaseSeen(ctx context.Context, officerID id.UserID, caseID id.MissingPersonID) (bool, error) {
	if _, err := s.requireRole(ctx, officerID, id.RoleOfficer); err != nil {
		return false, err
	}
	changed, err := s.store.MarkCaseSeen(ctx, caseID, officerID, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrInvalidState) {
		return false, dErrors.New(dErrors.CodeForbidden, "case is assigned to another officer")
	}
	if err != nil {
		return false, wrapStoreErr(err, "missing person")
	}
	return changed, nil
}
