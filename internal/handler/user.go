package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/handler/dto"
	"github.com/cargoyard/cargoyard/internal/service"
)

// UserHandler serves the current user, admin moderation and profile endpoints.
type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// Me handles GET /api/v1/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MeResponse{User: user})
}

// AdminGet handles GET /api/v1/users/{id}/admin, where id is a login.
func (h *UserHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetAdminUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ToResponse())
}

// Lock handles PUT /api/v1/users/{id}/lock.
func (h *UserHandler) Lock(w http.ResponseWriter, r *http.Request) {
	var req dto.LockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.svc.LockUser(r.Context(), service.LockInput{
		Login:   chi.URLParam(r, "id"),
		Reason:  req.Reason,
		Until:   req.Until,
		ActorID: auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ToResponse())
}

// Unlock handles DELETE /api/v1/users/{id}/lock.
func (h *UserHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.UnlockUser(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ToResponse())
}

// Update handles PUT /api/v1/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	var req dto.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err = h.svc.UpdateUser(r.Context(), service.UpdateInput{
		UserID:               userID,
		Actor:                actorFromRequest(r),
		Email:                req.User.Email,
		PublishNotifications: req.User.PublishNotifications,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

// Resend handles PUT /api/v1/users/{id}/resend.
func (h *UserHandler) Resend(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if err := h.svc.ResendVerification(r.Context(), userID, actorFromRequest(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

// Stats handles GET /api/v1/users/{id}/stats.
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	total, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatsResponse{TotalDownloads: total})
}

// actorFromRequest grants the admin override only to browser sessions.
func actorFromRequest(r *http.Request) service.Actor {
	return service.Actor{
		ID:    auth.UserIDFromContext(r.Context()),
		Admin: auth.IsAdminSession(r.Context()),
	}
}
