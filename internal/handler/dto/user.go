// Package dto defines the request and response bodies of the registry API.
package dto

import (
	"time"

	"github.com/cargoyard/cargoyard/internal/model"
)

// MeResponse is the body of GET /api/v1/me.
type MeResponse struct {
	User *model.User `json:"user"`
}

// LockRequest is the body of PUT /api/v1/users/{login}/lock.
// A null until locks the account indefinitely.
type LockRequest struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until"`
}

// UpdateUserRequest is the body of PUT /api/v1/users/{id}.
type UpdateUserRequest struct {
	User struct {
		Email                *string `json:"email"`
		PublishNotifications *bool   `json:"publish_notifications"`
	} `json:"user"`
}

// OKResponse acknowledges a mutation.
type OKResponse struct {
	OK bool `json:"ok"`
}

// StatsResponse is the body of GET /api/v1/users/{id}/stats.
type StatsResponse struct {
	TotalDownloads int64 `json:"total_downloads"`
}
