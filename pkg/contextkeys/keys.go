// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/c10r/freetool-sub006/pkg/contextkeys"
//   ctx = contextkeys.WithUserID(ctx, user.ID)
//   userID, ok := contextkeys.GetUserID(ctx)
package contextkeys

import (
	"context"

	"github.com/google/uuid"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the provisioned user's id
	// Set by: middleware.IdentityMiddleware after provisioning
	// Used by: Logger, user-scoped handlers
	// Type: uuid.UUID
	UserIDKey Key = "user_id"

	// ClaimEmailKey contains the canonical email from the identity claim
	// Set by: middleware.IdentityMiddleware
	// Used by: Logger, handlers echoing the authenticated identity
	// Type: string
	ClaimEmailKey Key = "claim_email"
)

// Helper functions for type-safe context operations

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds the provisioned user id to the context
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithClaimEmail adds the canonical claim email to the context
func WithClaimEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ClaimEmailKey, email)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves the provisioned user id from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetClaimEmail retrieves the canonical claim email from context
func GetClaimEmail(ctx context.Context) string {
	if email, ok := ctx.Value(ClaimEmailKey).(string); ok {
		return email
	}
	return ""
}
