// Package middleware provides the HTTP identity layer.
//
// The service sits behind an SSO reverse proxy that authenticates every
// request and forwards the identity as headers (X-Forwarded-Email,
// X-Forwarded-User, X-Forwarded-Groups). IdentityMiddleware translates those
// headers into an identity.Claim, runs just-in-time provisioning, and places
// the resolved user id in the request context via contextkeys.
//
// A request without an email header is rejected with 401. Provisioning
// failures on the identity path fail the request; authorization side effects
// are soft and never surface here.
package middleware
