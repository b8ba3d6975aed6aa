package handler

import (
	"inmates/internal/inmates/models"
	audit "inmates/pkg/platform/audit"
)

// JurisdictionsResponse is the HTTP response for GET /jurisdictions.
type JurisdictionsResponse struct {
	Jurisdictions []models.Jurisdiction `json:"jurisdictions"`
}

// AuditListResponse is the HTTP response for GET /audit/recent.
type AuditListResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

// FromEvents converts audit events to an HTTP response.
func FromEvents(events []audit.Event) *AuditListResponse {
	if events == nil {
		events = []audit.Event{}
	}
	return &AuditListResponse{Events: events, Count: len(events)}
}
