package middleware

import (
	"encoding/json"
	"net/http"
)

type errorDetail struct {
	Detail string `json:"detail"`
}

type errorBody struct {
	Errors []errorDetail `json:"errors"`
}

// WriteError writes a registry error body: {"errors":[{"detail":"..."}]}.
func WriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Errors: []errorDetail{{Detail: detail}}})
}
