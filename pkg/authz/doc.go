// Package authz is the boundary to the external relationship-based access
// control store.
//
// Permissions are facts: (subject, relation, object) tuples written to an
// OpenFGA-compatible server. Subjects and objects are tagged unions that only
// serialize to strings ("user:<id>", "space:<id>", "organization:default#admin")
// at the wire edge; Tuple.Validate rejects relation/object pairings outside
// the authorization model before anything reaches the network.
//
// FGAClient resolves its store and authorization model once at startup
// (Initialize is fatal on failure) and holds the ids in a StoreHandle —
// explicit process-scoped state with TTL refresh through singleflight, never
// package-level globals. The embedded model.json is written to the store when
// no model exists yet.
//
// Tuple writes are idempotent: the server rejecting a duplicate create or a
// missing delete is treated as success. Every other failure is returned to
// the caller, who treats it as soft.
package authz
