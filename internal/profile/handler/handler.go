// Package handler exposes the profile use cases over HTTP. All routes
// operate on the authenticated user taken from the bearer token.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idplane/internal/profile/models"
	"idplane/internal/transport/httputil"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/requestcontext"
)

// Service is the use case surface the handler needs.
type Service interface {
	GetProfile(ctx context.Context, userID id.UserID) (*models.Profile, error)
	CreateProfile(ctx context.Context, userID id.UserID, in models.ProfileInput) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID id.UserID, in models.ProfileInput) (*models.Profile, error)
	DeleteProfile(ctx context.Context, userID id.UserID) error
}

// Handler wires the profile service into chi routes.
type Handler struct {
	svc Service
}

// New creates the handler.
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the profile endpoints. The caller wraps them in
// bearer auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.get)
	r.Post("/profile", h.create)
	r.Put("/profile", h.update)
	r.Delete("/profile", h.delete)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var in models.ProfileInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.svc.CreateProfile(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, profile)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var in models.ProfileInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.svc.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.svc.DeleteProfile(r.Context(), userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func authedUser(r *http.Request) (id.UserID, error) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}
