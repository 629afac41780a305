package models

import (
	"strings"
	"time"

	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
)

const (
	sightingDateLayout = "2006-01-02"
	sightingTimeLayout = "15:04"

	// DefaultAnalysis labels a sighting whose photo comparison has not run.
	DefaultAnalysis = "Pending"
)

// SightingSubmission is the reporter-supplied content of a new sighting.
// Coordinates are pointers so a missing value is distinguishable from 0.
type SightingSubmission struct {
	MissingPersonID id.MissingPersonID
	ReportedByID    id.UserID
	SightingDate    string
	SightingTime    string
	Latitude        *float64
	Longitude       *float64
	ReporterPhoto   string

	SightingName     string
	LocationDetails  string
	AppearanceNotes  string
	BehaviorNotes    string
	IdentifyingMarks string
	SeenWith         string
	OriginalPhoto    string
	Analysis         string
	ReporterHeat     string
	OriginalHeat     string
	MatchPercentage  *float64
}

// Validate checks the required fields and returns the combined sighting time.
func (s *SightingSubmission) Validate() (time.Time, error) {
	if s.ReportedByID.IsNil() {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "reported_by_id is required")
	}
	if s.MissingPersonID.IsNil() {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "missing_person_id is required")
	}
	s.SightingDate = strings.TrimSpace(s.SightingDate)
	s.SightingTime = strings.TrimSpace(s.SightingTime)
	if s.SightingDate == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "sighting_date is required")
	}
	if s.SightingTime == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "sighting_time is required")
	}
	day, err := time.Parse(sightingDateLayout, s.SightingDate)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "sighting_date must be YYYY-MM-DD")
	}
	clock, err := time.Parse(sightingTimeLayout, s.SightingTime)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "sighting_time must be HH:MM")
	}
	if s.Latitude == nil || s.Longitude == nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "latitude and longitude are required")
	}
	if *s.Latitude < -90 || *s.Latitude > 90 {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "latitude must be between -90 and 90")
	}
	if *s.Longitude < -180 || *s.Longitude > 180 {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "longitude must be between -180 and 180")
	}
	s.ReporterPhoto = strings.TrimSpace(s.ReporterPhoto)
	if s.ReporterPhoto == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "reporter_photo is required")
	}
	if s.MatchPercentage != nil && (*s.MatchPercentage < 0 || *s.MatchPercentage > 100) {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "match_percentage must be between 0 and 100")
	}
	sightedAt := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	return sightedAt, nil
}

// NewSightingReport builds a Pending report from a validated submission.
func NewSightingReport(reportID id.SightingReportID, s SightingSubmission, sightedAt, now time.Time) *SightingReport {
	analysis := strings.TrimSpace(s.Analysis)
	if analysis == "" {
		analysis = DefaultAnalysis
	}
	return &SightingReport{
		ID:               reportID,
		MissingPersonID:  s.MissingPersonID,
		ReportedByID:     s.ReportedByID,
		SightedAt:        sightedAt,
		Latitude:         *s.Latitude,
		Longitude:        *s.Longitude,
		ReporterPhoto:    s.ReporterPhoto,
		SightingName:     strings.TrimSpace(s.SightingName),
		LocationDetails:  strings.TrimSpace(s.LocationDetails),
		AppearanceNotes:  strings.TrimSpace(s.AppearanceNotes),
		BehaviorNotes:    strings.TrimSpace(s.BehaviorNotes),
		IdentifyingMarks: strings.TrimSpace(s.IdentifyingMarks),
		SeenWith:         strings.TrimSpace(s.SeenWith),
		OriginalPhoto:    strings.TrimSpace(s.OriginalPhoto),
		Analysis:         analysis,
		ReporterHeat:     s.ReporterHeat,
		OriginalHeat:     s.OriginalHeat,
		MatchPercentage:  s.MatchPercentage,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// CaseSubmission is the content of a new missing-person case.
type CaseSubmission struct {
	OwnerID          id.UserID
	FullName         string
	Age              int
	Gender           string
	Photo            string
	LastSeenLocation string
	LastSeenAt       time.Time
	Latitude         float64
	Longitude        float64
}

// NewMissingPerson validates a case submission and builds a Pending case.
func NewMissingPerson(caseID id.MissingPersonID, s CaseSubmission, now time.Time) (*MissingPerson, error) {
	if s.OwnerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner is required")
	}
	name := strings.TrimSpace(s.FullName)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if s.Age < 0 || s.Age > 150 {
		return nil, dErrors.New(dErrors.CodeValidation, "age must be between 0 and 150")
	}
	if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
		return nil, dErrors.New(dErrors.CodeValidation, "last seen coordinates are out of range")
	}
	return &MissingPerson{
		ID:               caseID,
		FullName:         name,
		Age:              s.Age,
		Gender:           strings.TrimSpace(s.Gender),
		Photo:            strings.TrimSpace(s.Photo),
		LastSeenLocation: strings.TrimSpace(s.LastSeenLocation),
		LastSeenAt:       s.LastSeenAt,
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
		Status:           CaseStatusPending,
		OwnerID:          s.OwnerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}
