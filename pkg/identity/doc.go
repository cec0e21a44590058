// Package identity implements just-in-time user provisioning from an
// upstream identity signal.
//
// The entry point is Provisioner.EnsureUser, which resolves an
// already-authenticated Claim to a user id. The sequence is:
//
//  1. Validate and canonicalize the email (hard gate).
//  2. Find, create, or activate the user (hard gate). A placeholder user —
//     one created by invitation, marked by a non-null InvitedAt — is
//     activated in place on first login.
//  3. Bootstrap the organization-admin relationship when the configured
//     admin email matches (soft).
//  4. Auto-provision a space for the deepest org-unit group key (soft).
//  5. Reconcile space memberships against the active group mappings (soft).
//
// Hard failures surface as *ProvisioningError and must reject the request
// upstream. Soft failures are *SoftError values that are logged, counted and
// dropped: a user always gets into the system even when the relationship
// store is unreachable, and the next request converges authorization state.
//
// Concurrent logins for the same new user race on the insert; the loser of
// the unique-email constraint re-reads the row and continues.
package identity
