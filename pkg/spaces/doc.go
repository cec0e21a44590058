// Package spaces owns the Space aggregate, group-to-space mappings, org-unit
// auto-provisioning and membership reconciliation.
//
// A Space has exactly one moderator and a member list that never contains
// the moderator. Space names are unique among non-deleted spaces.
//
// GroupSpaceMapping binds a directory group key to a space. Mappings are
// deactivated, never deleted, so the audit trail survives. The optional
// RedisMappingCache decorates the Postgres store with generation-counter
// invalidation: writes bump a counter instead of deleting individual keys.
//
// OrgUnitSpaceProvisioner turns an org-unit path like "/Engineering/Backend"
// into a space named "Backend" (falling back to the full path on collision,
// hashing over-long names deterministically), creates it with the initiating
// user as moderator, seeds the organization and moderator tuples and records
// the mapping.
//
// Reconciler computes the user's desired spaces from active mappings and
// removes memberships only inside the mapped universe, so manual grants
// outside any mapping are never revoked and moderators are never removed.
// Reconciliation is per-item best-effort: a failing space is logged and the
// rest still apply, and every operation is idempotent so the next request
// converges.
package spaces
