package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cargoyard/cargoyard/internal/handler/dto"
	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/service"
)

// CrateHandler serves crate listings.
type CrateHandler struct {
	svc    *service.CrateService
	logger *slog.Logger
}

// NewCrateHandler creates a new CrateHandler.
func NewCrateHandler(svc *service.CrateService, logger *slog.Logger) *CrateHandler {
	return &CrateHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/crates.
//
// Query: user_id, include_yanked (yes|no, default yes), page, per_page.
// Malformed paging values fall back to their defaults.
func (h *CrateHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := model.CrateQuery{IncludeYanked: query.Get("include_yanked") != "no"}
	if v := query.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		q.UserID = id
	}
	q.Page, _ = strconv.Atoi(query.Get("page"))
	q.PerPage, _ = strconv.Atoi(query.Get("per_page"))

	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToCrateListResponse(page))
}
