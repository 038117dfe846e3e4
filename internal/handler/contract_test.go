package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

var openAPIPath = filepath.Join("..", "..", "docs", "api", "openapi.yaml")

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openAPIPath)
	if err != nil {
		t.Fatalf("load %s: %v", openAPIPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("openapi document invalid: %v", err)
	}
	return doc
}

// TestRoutesDocumented checks that every registered route has an operation
// in the OpenAPI document.
func TestRoutesDocumented(t *testing.T) {
	doc := loadOpenAPI(t)
	api := newTestAPI(t)

	routes, ok := api.handler.(chi.Routes)
	if !ok {
		t.Fatalf("router is %T, want chi.Routes", api.handler)
	}

	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		item := doc.Paths.Find(route)
		if item == nil {
			t.Errorf("%s %s: path not documented", method, route)
			return nil
		}
		if item.GetOperation(method) == nil {
			t.Errorf("%s %s: operation not documented", method, route)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk routes: %v", err)
	}
}

// TestResponsesMatchSchema validates live handler responses against the
// documented response schemas.
func TestResponsesMatchSchema(t *testing.T) {
	doc := loadOpenAPI(t)
	api := newTestAPI(t)

	tests := []struct {
		name       string
		method     string
		path       string
		route      string
		asUser     int64
		body       string
		wantStatus int
	}{
		{"healthz", http.MethodGet, "/healthz", "/healthz", 0, "", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", "/readyz", 0, "", http.StatusOK},
		{"me", http.MethodGet, "/api/v1/me", "/api/v1/me", userID, "", http.StatusOK},
		{"me anonymous", http.MethodGet, "/api/v1/me", "/api/v1/me", 0, "", http.StatusForbidden},
		{"admin view", http.MethodGet, "/api/v1/users/ferris/admin", "/api/v1/users/{id}/admin", adminID, "", http.StatusOK},
		{"admin view not found", http.MethodGet, "/api/v1/users/ghost/admin", "/api/v1/users/{id}/admin", adminID, "", http.StatusNotFound},
		{"lock", http.MethodPut, "/api/v1/users/ferris/lock", "/api/v1/users/{id}/lock", adminID, `{"reason":"spam","until":null}`, http.StatusOK},
		{"unlock", http.MethodDelete, "/api/v1/users/ferris/lock", "/api/v1/users/{id}/lock", adminID, "", http.StatusOK},
		{"update", http.MethodPut, "/api/v1/users/2", "/api/v1/users/{id}", userID, `{"user":{"publish_notifications":false}}`, http.StatusOK},
		{"update other account", http.MethodPut, "/api/v1/users/1", "/api/v1/users/{id}", userID, `{"user":{"publish_notifications":false}}`, http.StatusBadRequest},
		{"resend", http.MethodPut, "/api/v1/users/2/resend", "/api/v1/users/{id}/resend", userID, "", http.StatusBadRequest},
		{"stats", http.MethodGet, "/api/v1/users/2/stats", "/api/v1/users/{id}/stats", 0, "", http.StatusOK},
		{"crates", http.MethodGet, "/api/v1/crates?user_id=2&include_yanked=yes", "/api/v1/crates", 0, "", http.StatusOK},
		{"tokens", http.MethodGet, "/api/v1/me/tokens", "/api/v1/me/tokens", userID, "", http.StatusOK},
		{"create token", http.MethodPut, "/api/v1/me/tokens", "/api/v1/me/tokens", userID, `{"api_token":{"name":"ci"}}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.asUser, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Fatalf("Content-Type = %q", ct)
			}

			schema := responseSchema(t, doc, tt.route, tt.method, rec.Code)

			var body any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode %s: %v", rec.Body.String(), err)
			}
			if err := schema.VisitJSON(body); err != nil {
				t.Errorf("response does not match schema: %v\nbody = %s", err, rec.Body.String())
			}
		})
	}
}

func responseSchema(t *testing.T, doc *openapi3.T, route, method string, status int) *openapi3.Schema {
	t.Helper()

	item := doc.Paths.Find(route)
	if item == nil {
		t.Fatalf("path %s not documented", route)
	}
	op := item.GetOperation(method)
	if op == nil {
		t.Fatalf("%s %s not documented", method, route)
	}
	resp := op.Responses.Status(status)
	if resp == nil || resp.Value == nil {
		t.Fatalf("%s %s: status %d not documented", method, route, status)
	}
	media := resp.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		t.Fatalf("%s %s %d: no JSON schema", method, route, status)
	}
	return media.Schema.Value
}
