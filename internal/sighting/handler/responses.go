package handler

import (
	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/service"
)

// StatusResponse is returned by POST /sightings/{id}/status.
type StatusResponse struct {
	Message      string                 `json:"message"`
	Report       *models.SightingReport `json:"sighting_report"`
	PoliceAction *models.PoliceAction   `json:"police_action"`
	Notification *models.Notification   `json:"notification,omitempty"`
}

func FromStatusResult(r *service.StatusResult) StatusResponse {
	return StatusResponse{
		Message:      "Sighting report status updated",
		Report:       r.Report,
		PoliceAction: r.PoliceAction,
		Notification: r.Notification,
	}
}

// FamilyResponse is returned by POST /sightings/{id}/family-response.
type FamilyResponse struct {
	Message      string                    `json:"message"`
	Report       *models.SightingReport    `json:"sighting_report"`
	Interaction  *models.FamilyInteraction `json:"family_interaction"`
	Notification *models.Notification      `json:"notification,omitempty"`
}

func FromFamilyResult(r *service.FamilyResult) FamilyResponse {
	return FamilyResponse{
		Message:      "Family response recorded",
		Report:       r.Report,
		Interaction:  r.Interaction,
		Notification: r.Notification,
	}
}

type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

// LatestNotificationResponse carries a nil notification when none exists.
type LatestNotificationResponse struct {
	Notification *models.Notification `json:"notification"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type MarkReadResponse struct {
	Updated int `json:"updated"`
}

type CaseSeenResponse struct {
	Changed bool `json:"changed"`
}

type EventsResponse struct {
	Events []models.ReportEvent `json:"events"`
}

type ReportsResponse struct {
	Reports []models.SightingReport `json:"sighting_reports"`
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
