package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/c10r/freetool-sub006/pkg/contextkeys"
	"github.com/c10r/freetool-sub006/pkg/identity"
	"github.com/c10r/freetool-sub006/pkg/observability"
)

// Identity headers set by the trusted SSO reverse proxy. Requests reach this
// service only after the proxy has authenticated them.
const (
	HeaderEmail   = "X-Forwarded-Email"
	HeaderName    = "X-Forwarded-User"
	HeaderPicture = "X-Forwarded-Picture"
	HeaderGroups  = "X-Forwarded-Groups"
)

// UserProvisioner resolves an identity claim into a user id, creating or
// activating the user as needed.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, claim identity.Claim) (uuid.UUID, error)
}

// IdentityMiddleware turns proxy identity headers into a provisioned user.
// Every authenticated request runs through provisioning; the provisioner is
// idempotent, so repeat logins converge instead of duplicating state.
type IdentityMiddleware struct {
	provisioner UserProvisioner
	logger      *observability.Logger
}

// NewIdentityMiddleware creates identity middleware backed by the given provisioner.
func NewIdentityMiddleware(provisioner UserProvisioner, logger *observability.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{
		provisioner: provisioner,
		logger:      logger,
	}
}

// Handler wraps an HTTP handler with identity resolution and provisioning.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, ok := ClaimFromRequest(r)
		if !ok {
			unauthorizedResponse(w, "missing identity headers")
			return
		}

		userID, err := m.provisioner.EnsureUser(r.Context(), claim)
		if err != nil {
			var provErr *identity.ProvisioningError
			if errors.As(err, &provErr) && provErr.Step == identity.StepValidateEmail {
				m.logger.WithField("email", claim.Email).Warn("rejected login with invalid email")
				unauthorizedResponse(w, "invalid email address")
				return
			}

			m.logger.WithError(err).WithField("email", claim.Email).Error("user provisioning failed")
			errorResponse(w, http.StatusInternalServerError, "user provisioning failed")
			return
		}

		ctx := contextkeys.WithUserID(r.Context(), userID)
		ctx = contextkeys.WithClaimEmail(ctx, strings.ToLower(strings.TrimSpace(claim.Email)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimFromRequest extracts the identity claim from proxy headers. The second
// return value is false when the email header is absent.
func ClaimFromRequest(r *http.Request) (identity.Claim, bool) {
	email := strings.TrimSpace(r.Header.Get(HeaderEmail))
	if email == "" {
		return identity.Claim{}, false
	}

	return identity.Claim{
		Email:             email,
		Name:              strings.TrimSpace(r.Header.Get(HeaderName)),
		ProfilePictureURL: strings.TrimSpace(r.Header.Get(HeaderPicture)),
		GroupKeys:         splitGroups(r.Header.Get(HeaderGroups)),
		Source:            "sso-proxy",
	}, true
}

// splitGroups parses the comma-separated groups header. Blank entries are
// dropped here; ordering and deduplication belong to the provisioner.
func splitGroups(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}

	var keys []string
	for _, part := range strings.Split(header, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	errorResponse(w, http.StatusUnauthorized, message)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
