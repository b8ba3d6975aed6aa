package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"inmates/internal/inmates/models"
	dErrors "inmates/pkg/domain-errors"
	audit "inmates/pkg/platform/audit"
	"inmates/pkg/platform/audit/publisher"
	"inmates/pkg/platform/httputil"
	"inmates/pkg/requestcontext"
)

// Service defines the lookup operations exposed over HTTP.
type Service interface {
	QueryByID(ctx context.Context, id string, js ...models.Jurisdiction) (models.Result, error)
	QueryByName(ctx context.Context, first, last string, js ...models.Jurisdiction) (models.Result, error)
	Jurisdictions() []models.Jurisdiction
}

// AuditLister reads back recent audit events.
type AuditLister interface {
	List(ctx context.Context, limit int) ([]audit.Event, error)
}

// Handler wires lookup endpoints to the lookup service.
type Handler struct {
	service Service
	audit   AuditLister
	logger  *slog.Logger
}

// New constructs a lookup handler. audit may be nil, in which case the audit
// endpoint is not mounted.
func New(service Service, audit AuditLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		service: service,
		audit:   audit,
		logger:  logger,
	}
}

// Register mounts lookup endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/inmates", h.HandleQueryByName)
	r.Get("/inmates/{id}", h.HandleQueryByID)
	r.Get("/jurisdictions", h.HandleJurisdictions)
	if h.audit != nil {
		r.Get("/audit/recent", h.HandleRecentAudit)
	}
}

// HandleQueryByID handles GET /inmates/{id} requests.
func (h *Handler) HandleQueryByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	js, err := parseJurisdictions(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	result, err := h.service.QueryByID(ctx, chi.URLParam(r, "id"), js...)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.logResult(ctx, models.QueryByID, result, start)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleQueryByName handles GET /inmates?first=&last= requests.
func (h *Handler) HandleQueryByName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	js, err := parseJurisdictions(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	params := r.URL.Query()
	result, err := h.service.QueryByName(ctx, params.Get("first"), params.Get("last"), js...)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.logResult(ctx, models.QueryByName, result, start)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleJurisdictions handles GET /jurisdictions requests.
func (h *Handler) HandleJurisdictions(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, JurisdictionsResponse{Jurisdictions: h.service.Jurisdictions()})
}

// HandleRecentAudit handles GET /audit/recent requests.
func (h *Handler) HandleRecentAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	events, err := h.audit.List(ctx, limit)
	if err != nil {
		if errors.Is(err, publisher.ErrListUnsupported) {
			err = dErrors.Wrap(err, dErrors.CodeNotFound, "audit listing is not available for this backend")
		}
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvents(events))
}

func (h *Handler) logResult(ctx context.Context, kind models.QueryKind, result models.Result, start time.Time) {
	h.logger.InfoContext(ctx, "inmate lookup served",
		"request_id", requestcontext.RequestID(ctx),
		"query_kind", kind,
		"inmates", len(result.Inmates),
		"errors", len(result.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// writeError translates service errors into domain errors before writing.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var invalid *models.InvalidQueryError
	switch {
	case errors.As(err, &invalid):
		err = dErrors.Wrap(err, dErrors.CodeValidation, invalid.Error())
	case errors.Is(err, context.DeadlineExceeded):
		err = dErrors.Wrap(err, dErrors.CodeTimeout, "lookup timed out")
	case errors.Is(err, context.Canceled):
		err = dErrors.Wrap(err, dErrors.CodeUnavailable, "lookup canceled")
	}

	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "inmate lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
