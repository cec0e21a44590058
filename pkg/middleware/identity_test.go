package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c10r/freetool-sub006/pkg/contextkeys"
	"github.com/c10r/freetool-sub006/pkg/identity"
	"github.com/c10r/freetool-sub006/pkg/observability"
)

type fakeProvisioner struct {
	userID uuid.UUID
	err    error

	lastClaim identity.Claim
	calls     int
}

func (f *fakeProvisioner) EnsureUser(_ context.Context, claim identity.Claim) (uuid.UUID, error) {
	f.calls++
	f.lastClaim = claim
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.userID, nil
}

func testIdentityHandler(t *testing.T, prov *fakeProvisioner) (http.Handler, *http.Request) {
	t.Helper()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	mw := NewIdentityMiddleware(prov, logger)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := contextkeys.GetUserID(r.Context())
		require.True(t, ok, "user id must be in context")
		assert.Equal(t, prov.userID, userID)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	return mw.Handler(inner), req
}

func TestIdentityMiddlewareProvisionsUser(t *testing.T) {
	prov := &fakeProvisioner{userID: uuid.New()}
	handler, req := testIdentityHandler(t, prov)

	req.Header.Set(HeaderEmail, "Alice@Example.com ")
	req.Header.Set(HeaderName, "Alice")
	req.Header.Set(HeaderGroups, "ou:/Eng/Backend, team-platform,, on-call ")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, prov.calls)
	assert.Equal(t, "Alice@Example.com", prov.lastClaim.Email)
	assert.Equal(t, "Alice", prov.lastClaim.Name)
	assert.Equal(t, []string{"ou:/Eng/Backend", "team-platform", "on-call"}, prov.lastClaim.GroupKeys)
	assert.Equal(t, "sso-proxy", prov.lastClaim.Source)
}

func TestIdentityMiddlewarePutsClaimEmailInContext(t *testing.T) {
	prov := &fakeProvisioner{userID: uuid.New()}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	mw := NewIdentityMiddleware(prov, logger)

	var seenEmail string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenEmail = contextkeys.GetClaimEmail(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderEmail, " Bob@Example.com")

	mw.Handler(inner).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "bob@example.com", seenEmail)
}

func TestIdentityMiddlewareRejectsMissingEmail(t *testing.T) {
	prov := &fakeProvisioner{userID: uuid.New()}
	handler, req := testIdentityHandler(t, prov)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, prov.calls, "provisioner must not run without an email")
	assert.Contains(t, rec.Body.String(), "missing identity headers")
}

func TestIdentityMiddlewareRejectsInvalidEmail(t *testing.T) {
	prov := &fakeProvisioner{
		err: &identity.ProvisioningError{
			Step:  identity.StepValidateEmail,
			Email: "not-an-email",
			Err:   identity.ErrInvalidEmailFormat,
		},
	}
	handler, req := testIdentityHandler(t, prov)
	req.Header.Set(HeaderEmail, "not-an-email")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email address")
}

func TestIdentityMiddlewareFailsClosedOnStoreErrors(t *testing.T) {
	prov := &fakeProvisioner{
		err: &identity.ProvisioningError{
			Step:  identity.StepCreateUser,
			Email: "alice@example.com",
			Err:   errors.New("connection refused"),
		},
	}
	handler, req := testIdentityHandler(t, prov)
	req.Header.Set(HeaderEmail, "alice@example.com")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "user provisioning failed")
}

func TestSplitGroups(t *testing.T) {
	assert.Nil(t, splitGroups(""))
	assert.Nil(t, splitGroups("  "))
	assert.Equal(t, []string{"a"}, splitGroups("a"))
	assert.Equal(t, []string{"a", "b"}, splitGroups(" a , b ,"))
}
