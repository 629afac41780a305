package handler

import (
	"strings"
	"time"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
)

const (
	maxFreeTextLength  = 2000
	maxReferenceLength = 1024
)

// SubmitSightingRequest is the HTTP request body for POST /sightings.
type SubmitSightingRequest struct {
	MissingPersonID  string   `json:"missing_person_id"`
	SightingDate     string   `json:"sighting_date"`
	SightingTime     string   `json:"sighting_time"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	ReporterPhoto    string   `json:"reporter_photo"`
	SightingName     string   `json:"sighting_name,omitempty"`
	LocationDetails  string   `json:"location_details,omitempty"`
	AppearanceNotes  string   `json:"appearance_notes,omitempty"`
	BehaviorNotes    string   `json:"behavior_notes,omitempty"`
	IdentifyingMarks string   `json:"identifying_marks,omitempty"`
	SeenWith         string   `json:"seen_with,omitempty"`
	OriginalPhoto    string   `json:"original_photo,omitempty"`
	Analysis         string   `json:"analysis,omitempty"`
	ReporterHeat     string   `json:"reporter_heat,omitempty"`
	OriginalHeat     string   `json:"original_heat,omitempty"`
	MatchPercentage  *float64 `json:"match_percentage,omitempty"`

	parsedCaseID id.MissingPersonID
}

// Validate implements httputil.Validatable.
func (r *SubmitSightingRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	for _, ref := range []string{r.ReporterPhoto, r.OriginalPhoto, r.ReporterHeat, r.OriginalHeat} {
		if len(ref) > maxReferenceLength {
			return dErrors.New(dErrors.CodeValidation, "photo references must be at most 1024 characters")
		}
	}
	for _, text := range []string{r.SightingName, r.LocationDetails, r.AppearanceNotes, r.BehaviorNotes, r.IdentifyingMarks, r.SeenWith} {
		if len(text) > maxFreeTextLength {
			return dErrors.New(dErrors.CodeValidation, "descriptive fields must be at most 2000 characters")
		}
	}
	caseID, err := id.ParseMissingPersonID(strings.TrimSpace(r.MissingPersonID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "missing_person_id must be a valid id")
	}
	r.parsedCaseID = caseID
	return nil
}

// Submission converts the request into the workflow input for reporter.
func (r *SubmitSightingRequest) Submission(reporter id.UserID) models.SightingSubmission {
	return models.SightingSubmission{
		MissingPersonID:  r.parsedCaseID,
		ReportedByID:     reporter,
		SightingDate:     r.SightingDate,
		SightingTime:     r.SightingTime,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		ReporterPhoto:    r.ReporterPhoto,
		SightingName:     r.SightingName,
		LocationDetails:  r.LocationDetails,
		AppearanceNotes:  r.AppearanceNotes,
		BehaviorNotes:    r.BehaviorNotes,
		IdentifyingMarks: r.IdentifyingMarks,
		SeenWith:         r.SeenWith,
		OriginalPhoto:    r.OriginalPhoto,
		Analysis:         r.Analysis,
		ReporterHeat:     r.ReporterHeat,
		OriginalHeat:     r.OriginalHeat,
		MatchPercentage:  r.MatchPercentage,
	}
}

// UpdateStatusRequest is the HTTP request body for POST /sightings/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

// FamilyResponseRequest is the HTTP request body for POST /sightings/{id}/family-response.
type FamilyResponseRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
}

func (r *FamilyResponseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Notes) > maxFreeTextLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 2000 characters")
	}
	r.Action = strings.ToUpper(strings.TrimSpace(r.Action))
	if r.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "action is required")
	}
	return nil
}

// MarkReadRequest is the HTTP request body for POST /notifications/read.
type MarkReadRequest struct {
	SightingReportID string `json:"sighting_report_id"`

	parsedReportID id.SightingReportID
}

func (r *MarkReadRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	reportID, err := id.ParseSightingReportID(strings.TrimSpace(r.SightingReportID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "sighting_report_id must be a valid id")
	}
	r.parsedReportID = reportID
	return nil
}

// OpenCaseRequest is the HTTP request body for POST /cases.
type OpenCaseRequest struct {
	FullName         string  `json:"full_name"`
	Age              int     `json:"age"`
	Gender           string  `json:"gender,omitempty"`
	Photo            string  `json:"photo,omitempty"`
	LastSeenLocation string  `json:"last_seen_location,omitempty"`
	LastSeenAt       string  `json:"last_seen_at,omitempty"`
	Latitude         float64 `json:"latitude,omitempty"`
	Longitude        float64 `json:"longitude,omitempty"`

	parsedLastSeen time.Time
}

func (r *OpenCaseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.FullName) > 200 || len(r.LastSeenLocation) > maxFreeTextLength || len(r.Photo) > maxReferenceLength {
		return dErrors.New(dErrors.CodeValidation, "case fields exceed their maximum length")
	}
	if at := strings.TrimSpace(r.LastSeenAt); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "last_seen_at must be RFC 3339")
		}
		r.parsedLastSeen = parsed
	}
	return nil
}

// Submission converts the request into a case for owner.
func (r *OpenCaseRequest) Submission(owner id.UserID) models.CaseSubmission {
	return models.CaseSubmission{
		OwnerID:          owner,
		FullName:         r.FullName,
		Age:              r.Age,
		Gender:           r.Gender,
		Photo:            r.Photo,
		LastSeenLocation: r.LastSeenLocation,
		LastSeenAt:       r.parsedLastSeen,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
	}
}
