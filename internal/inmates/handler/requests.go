package handler

import (
	"net/http"
	"strconv"
	"strings"

	"inmates/internal/inmates/models"
	dErrors "inmates/pkg/domain-errors"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// parseJurisdictions reads repeated or comma-separated jurisdiction params.
func parseJurisdictions(r *http.Request) ([]models.Jurisdiction, error) {
	var js []models.Jurisdiction
	for _, value := range r.URL.Query()["jurisdiction"] {
		for name := range strings.SplitSeq(value, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			j, err := models.ParseJurisdiction(name)
			if err != nil {
				return nil, err
			}
			js = append(js, j)
		}
	}
	return js, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultAuditLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return min(limit, maxAuditLimit), nil
}
