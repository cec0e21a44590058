package spaces

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/c10r/freetool-sub006/pkg/authz"
	"github.com/c10r/freetool-sub006/pkg/observability"
)

// TupleWriter is the slice of the relationship-store client the reconciler
// needs. Both operations are idempotent at the store.
type TupleWriter interface {
	CreateRelationships(ctx context.Context, tuples []authz.Tuple) error
	DeleteRelationships(ctx context.Context, tuples []authz.Tuple) error
}

// Reconciler diffs a user's desired space memberships, derived from active
// group mappings, against the full mapped universe and applies the diff to
// both the relational store and the relationship store.
type Reconciler struct {
	spaces   Repository
	mappings MappingStore
	tuples   TupleWriter
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewReconciler creates a reconciler. metrics may be nil.
func NewReconciler(spaces Repository, mappings MappingStore, tuples TupleWriter, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		spaces:   spaces,
		mappings: mappings,
		tuples:   tuples,
		logger:   logger,
		metrics:  metrics,
	}
}

// Reconcile applies the membership diff for userID given its current group
// keys. It never fails the caller: every failure is logged per item and the
// remaining items still run. Removal only targets spaces reachable through
// an active mapping, so manually granted memberships outside any mapping are
// never revoked. A space's moderator is never auto-removed.
func (r *Reconciler) Reconcile(ctx context.Context, userID uuid.UUID, groupKeys []string) {
	start := time.Now()
	log := r.logger.WithField("user_id", userID.String())

	keys := dedupeKeys(groupKeys)

	desiredIDs, err := r.mappings.GetSpaceIDsByGroupKeys(ctx, keys)
	if err != nil {
		log.WithError(err).Warn("failed to resolve desired spaces, skipping reconciliation")
		return
	}
	desired := make(map[uuid.UUID]struct{}, len(desiredIDs))
	for _, id := range desiredIDs {
		desired[id] = struct{}{}
	}

	all, err := r.mappings.GetAll(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load mapping universe, skipping reconciliation")
		return
	}

	// The removal boundary is the universe of spaces reachable through any
	// active mapping, not just this user's previous mappings.
	universe := make(map[uuid.UUID]struct{})
	for _, m := range all {
		if m.IsActive {
			universe[m.SpaceID] = struct{}{}
		}
	}

	for spaceID := range desired {
		r.addMembership(ctx, log, userID, spaceID)
	}

	for spaceID := range universe {
		if _, keep := desired[spaceID]; keep {
			continue
		}
		r.removeMembership(ctx, log, userID, spaceID)
	}

	if r.metrics != nil {
		r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}
}

// addMembership ensures the user is a relational member (unless moderator)
// and writes the member tuple. The tuple write is always issued; re-adding an
// existing tuple is a no-op at the store.
func (r *Reconciler) addMembership(ctx context.Context, log *observability.Logger, userID, spaceID uuid.UUID) {
	log = log.WithField("space_id", spaceID.String())

	space, err := r.spaces.GetByID(ctx, spaceID)
	if errors.Is(err, ErrSpaceNotFound) {
		log.Warn("mapped space no longer exists, skipping")
		return
	}
	if err != nil {
		log.WithError(err).Warn("failed to load space, skipping")
		return
	}

	if space.AddMember(userID) {
		if err := r.spaces.Update(ctx, space); err != nil {
			log.WithError(err).Warn("failed to persist membership add")
			return
		}
		r.countAction("add")
		log.Info("added space membership")
	}

	if err := r.tuples.CreateRelationships(ctx, []authz.Tuple{authz.SpaceMemberTuple(userID, spaceID)}); err != nil {
		log.WithError(err).Warn("failed to write member tuple")
	}
}

// removeMembership drops the user's relational membership and deletes the
// member tuple. Moderators are exempt, and the tuple delete is only issued
// when the user actually was a member.
func (r *Reconciler) removeMembership(ctx context.Context, log *observability.Logger, userID, spaceID uuid.UUID) {
	log = log.WithField("space_id", spaceID.String())

	space, err := r.spaces.GetByID(ctx, spaceID)
	if errors.Is(err, ErrSpaceNotFound) {
		return
	}
	if err != nil {
		log.WithError(err).Warn("failed to load space, skipping")
		return
	}

	if space.IsModerator(userID) {
		return
	}
	if !space.RemoveMember(userID) {
		return
	}

	if err := r.spaces.Update(ctx, space); err != nil {
		log.WithError(err).Warn("failed to persist membership removal")
		return
	}
	r.countAction("remove")
	log.Info("removed space membership")

	if err := r.tuples.DeleteRelationships(ctx, []authz.Tuple{authz.SpaceMemberTuple(userID, spaceID)}); err != nil {
		log.WithError(err).Warn("failed to delete member tuple")
	}
}

func (r *Reconciler) countAction(action string) {
	if r.metrics != nil {
		r.metrics.ReconcileActionsTotal.WithLabelValues(action).Inc()
	}
}

func dedupeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
