// Package handler exposes the audit log query over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"idplane/internal/audit/models"
	"idplane/internal/audit/service"
	"idplane/internal/transport/httputil"
	dErrors "idplane/pkg/domain-errors"
)

// Querier is the query surface the handler needs.
type Querier interface {
	Query(ctx context.Context, p service.Params) (*service.Page, error)
}

// Handler wires the audit query service into chi routes.
type Handler struct {
	svc Querier
}

// New creates the handler.
func New(svc Querier) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the audit endpoints. The caller wraps them in
// bearer auth plus an admin role check.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/logs", h.list)
}

// recordView is the transport representation of one audit record.
type recordView struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId,omitempty"`
	Action     string            `json:"action"`
	EntityType string            `json:"entityType"`
	EntityID   string            `json:"entityId,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	IPAddress  string            `json:"ipAddress,omitempty"`
	Device     string            `json:"device,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	IngestedAt time.Time         `json:"ingestedAt"`
}

type listResponse struct {
	Logs   []recordView `json:"logs"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params, err := parseParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.svc.Query(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	logs := make([]recordView, 0, len(page.Records))
	for _, record := range page.Records {
		logs = append(logs, viewOf(record))
	}

	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Logs:   logs,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func parseParams(r *http.Request) (service.Params, error) {
	q := r.URL.Query()
	params := service.Params{
		UserID:     q.Get("userId"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
	}

	var err error
	if params.Limit, err = parseIntParam(q.Get("limit"), "limit"); err != nil {
		return service.Params{}, err
	}
	if params.Offset, err = parseIntParam(q.Get("offset"), "offset"); err != nil {
		return service.Params{}, err
	}
	return params, nil
}

func parseIntParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
	}
	return v, nil
}

func viewOf(record *models.Record) recordView {
	return recordView{
		ID:         record.ID.String(),
		UserID:     record.UserID,
		Action:     string(record.Action),
		EntityType: string(record.EntityType),
		EntityID:   record.EntityID,
		Details:    record.Details,
		IPAddress:  record.IPAddress,
		Device:     record.Device,
		OccurredAt: record.OccurredAt,
		IngestedAt: record.IngestedAt,
	}
}
