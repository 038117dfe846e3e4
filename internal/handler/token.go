package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cargoyard/cargoyard/internal/auth"
	"github.com/cargoyard/cargoyard/internal/handler/dto"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/service"
)

// TokenHandler manages the current user's API tokens.
type TokenHandler struct {
	svc    *service.TokenService
	logger *slog.Logger
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(svc *service.TokenService, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/me/tokens.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToTokenListResponse(tokens))
}

// Create handles PUT /api/v1/me/tokens. The plaintext token is only ever
// returned here.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, plaintext, err := h.svc.Create(r.Context(), auth.UserIDFromContext(r.Context()), req.APIToken.Name)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TokenCreateResponse{
		APIToken: model.APITokenCreateResponse{APITokenResponse: token.ToResponse(), Token: plaintext},
	})
}

// Revoke handles DELETE /api/v1/me/tokens/{id}.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Revoke(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
