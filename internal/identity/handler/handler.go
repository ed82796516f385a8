// Package handler exposes the identity use cases over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idplane/internal/identity/models"
	"idplane/internal/transport/httputil"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
)

// Service is the use case surface the handler needs.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (models.UserView, error)
	Login(ctx context.Context, req models.LoginRequest) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	GetUser(ctx context.Context, userID id.UserID) (models.UserView, error)
	Activate(ctx context.Context, userID id.UserID) (models.UserView, error)
	Deactivate(ctx context.Context, userID id.UserID) (models.UserView, error)
	ChangeRole(ctx context.Context, userID id.UserID, role string) (models.UserView, error)
	DeleteAccount(ctx context.Context, userID id.UserID) error
}

// Handler wires the identity service into chi routes.
type Handler struct {
	svc Service
}

// New creates the handler.
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the unauthenticated endpoints.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
}

// RegisterAdminRoutes mounts the account management endpoints. The caller
// is expected to wrap them in bearer auth plus an admin role check.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/users/{userID}", h.getUser)
	r.Post("/users/{userID}/activate", h.activate)
	r.Post("/users/{userID}/deactivate", h.deactivate)
	r.Put("/users/{userID}/role", h.changeRole)
	r.Delete("/users/{userID}", h.deleteAccount)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	tokens, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "refreshToken is required"))
		return
	}

	access, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.svc.Activate)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.svc.Deactivate)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, op func(context.Context, id.UserID) (models.UserView, error)) {
	userID, err := pathUserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := op(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.ChangeRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.svc.ChangeRole(r.Context(), userID, req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathUserID(r *http.Request) (id.UserID, error) {
	return id.ParseUserID(chi.URLParam(r, "userID"))
}
