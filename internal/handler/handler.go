// Package handler provides the HTTP handlers of the registry API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cargoyard/cargoyard/internal/middleware"
	"github.com/cargoyard/cargoyard/internal/service"
)

var errBadUserID = errors.New("invalid user id")

// NotFound handles unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

// MethodNotAllowed handles routes matched with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	middleware.WriteError(w, status, detail)
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// userIDParam reads the numeric {id} route parameter.
func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadUserID
	}
	return id, nil
}

// handleServiceError maps service errors to registry error responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "Not Found")
	case errors.Is(err, errBadUserID),
		errors.Is(err, service.ErrNotOwnAccount),
		errors.Is(err, service.ErrEmptyEmail),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrNoEmail),
		errors.Is(err, service.ErrEmptyLockReason),
		errors.Is(err, service.ErrNothingToUpdate),
		errors.Is(err, service.ErrTokenNameMissing):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
