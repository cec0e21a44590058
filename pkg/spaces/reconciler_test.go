package spaces

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c10r/freetool-sub006/pkg/authz"
	"github.com/c10r/freetool-sub006/pkg/observability"
)

// In-memory fakes shared by the reconciler and org-unit provisioner tests.

type fakeSpaceRepo struct {
	byID   map[uuid.UUID]*Space
	getErr error
	updErr error
	addErr error
}

func newFakeSpaceRepo(spaces ...*Space) *fakeSpaceRepo {
	r := &fakeSpaceRepo{byID: make(map[uuid.UUID]*Space)}
	for _, s := range spaces {
		copy := *s
		copy.MemberIDs = append([]uuid.UUID(nil), s.MemberIDs...)
		r.byID[s.ID] = &copy
	}
	return r
}

func (r *fakeSpaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*Space, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	s, ok := r.byID[id]
	if !ok || s.IsDeleted {
		return nil, ErrSpaceNotFound
	}
	copy := *s
	copy.MemberIDs = append([]uuid.UUID(nil), s.MemberIDs...)
	return &copy, nil
}

func (r *fakeSpaceRepo) GetByName(ctx context.Context, name string) (*Space, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, s := range r.byID {
		if s.Name == name && !s.IsDeleted {
			copy := *s
			copy.MemberIDs = append([]uuid.UUID(nil), s.MemberIDs...)
			return &copy, nil
		}
	}
	return nil, ErrSpaceNotFound
}

func (r *fakeSpaceRepo) Add(ctx context.Context, space *Space) error {
	if r.addErr != nil {
		return r.addErr
	}
	copy := *space
	copy.MemberIDs = append([]uuid.UUID(nil), space.MemberIDs...)
	r.byID[space.ID] = &copy
	return nil
}

func (r *fakeSpaceRepo) Update(ctx context.Context, space *Space) error {
	if r.updErr != nil {
		return r.updErr
	}
	if _, ok := r.byID[space.ID]; !ok {
		return ErrSpaceNotFound
	}
	copy := *space
	copy.MemberIDs = append([]uuid.UUID(nil), space.MemberIDs...)
	r.byID[space.ID] = &copy
	return nil
}

func (r *fakeSpaceRepo) GetAll(ctx context.Context, skip, take int) ([]*Space, error) {
	var out []*Space
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out, nil
}

type fakeMappingStore struct {
	mappings []GroupSpaceMapping
	addErr   error
	getErr   error
	added    []GroupSpaceMapping
}

func (f *fakeMappingStore) GetAll(ctx context.Context) ([]GroupSpaceMapping, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.mappings, nil
}

func (f *fakeMappingStore) GetSpaceIDsByGroupKeys(ctx context.Context, keys []string) ([]uuid.UUID, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, m := range f.mappings {
		if !m.IsActive {
			continue
		}
		if _, ok := keySet[m.GroupKey]; !ok {
			continue
		}
		if _, dup := seen[m.SpaceID]; dup {
			continue
		}
		seen[m.SpaceID] = struct{}{}
		ids = append(ids, m.SpaceID)
	}
	return ids, nil
}

func (f *fakeMappingStore) Add(ctx context.Context, userID uuid.UUID, groupKey string, spaceID uuid.UUID) error {
	if f.addErr != nil {
		return f.addErr
	}
	for _, m := range f.mappings {
		if m.GroupKey == groupKey && m.SpaceID == spaceID {
			return ErrMappingExists
		}
	}
	m := GroupSpaceMapping{
		ID: uuid.New(), GroupKey: groupKey, SpaceID: spaceID,
		IsActive: true, CreatedBy: userID, UpdatedBy: userID,
	}
	f.mappings = append(f.mappings, m)
	f.added = append(f.added, m)
	return nil
}

func (f *fakeMappingStore) Deactivate(ctx context.Context, userID uuid.UUID, groupKey string, spaceID uuid.UUID) error {
	for i := range f.mappings {
		if f.mappings[i].GroupKey == groupKey && f.mappings[i].SpaceID == spaceID {
			f.mappings[i].IsActive = false
			return nil
		}
	}
	return errors.New("mapping not found")
}

type fakeTupleWriter struct {
	createErr error
	deleteErr error
	created   []authz.Tuple
	deleted   []authz.Tuple
}

func (f *fakeTupleWriter) CreateRelationships(ctx context.Context, tuples []authz.Tuple) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, tuples...)
	return nil
}

func (f *fakeTupleWriter) DeleteRelationships(ctx context.Context, tuples []authz.Tuple) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, tuples...)
	return nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestReconcileAddsDesiredMembership(t *testing.T) {
	userID := uuid.New()
	space := &Space{ID: uuid.New(), Name: "Backend", ModeratorUserID: uuid.New()}
	repo := newFakeSpaceRepo(space)
	mappings := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{GroupKey: "g1", SpaceID: space.ID, IsActive: true},
	}}
	tuples := &fakeTupleWriter{}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	rec.Reconcile(context.Background(), userID, []string{"g1"})

	stored, err := repo.GetByID(context.Background(), space.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasMember(userID))

	require.Len(t, tuples.created, 1)
	assert.Equal(t, authz.SpaceMemberTuple(userID, space.ID), tuples.created[0])
	assert.Empty(t, tuples.deleted)
}

func TestReconcileIsIdempotent(t *testing.T) {
	userID := uuid.New()
	space := &Space{ID: uuid.New(), Name: "Backend", ModeratorUserID: uuid.New()}
	repo := newFakeSpaceRepo(space)
	mappings := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{GroupKey: "g1", SpaceID: space.ID, IsActive: true},
	}}
	tuples := &fakeTupleWriter{}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	rec.Reconcile(context.Background(), userID, []string{"g1"})
	rec.Reconcile(context.Background(), userID, []string{"g1"})

	stored, err := repo.GetByID(context.Background(), space.ID)
	require.NoError(t, err)
	assert.Len(t, stored.MemberIDs, 1, "second run must not duplicate membership")
	// tuple create is re-issued each run; the store treats it as a no-op
	assert.Len(t, tuples.created, 2)
	assert.Empty(t, tuples.deleted)
}

func TestReconcileGroupSwitchMovesMembership(t *testing.T) {
	userID := uuid.New()
	spaceA := &Space{ID: uuid.New(), Name: "A", ModeratorUserID: uuid.New(), MemberIDs: []uuid.UUID{userID}}
	spaceB := &Space{ID: uuid.New(), Name: "B", ModeratorUserID: uuid.New()}
	repo := newFakeSpaceRepo(spaceA, spaceB)
	mappings := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{GroupKey: "g1", SpaceID: spaceA.ID, IsActive: true},
		{GroupKey: "g2", SpaceID: spaceB.ID, IsActive: true},
	}}
	tuples := &fakeTupleWriter{}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	rec.Reconcile(context.Background(), userID, []string{"g2"})

	storedA, _ := repo.GetByID(context.Background(), spaceA.ID)
	storedB, _ := repo.GetByID(context.Background(), spaceB.ID)
	assert.False(t, storedA.HasMember(userID), "lost group removes membership")
	assert.True(t, storedB.HasMember(userID), "gained group adds membership")

	require.Len(t, tuples.created, 1)
	assert.Equal(t, authz.SpaceMemberTuple(userID, spaceB.ID), tuples.created[0])
	require.Len(t, tuples.deleted, 1)
	assert.Equal(t, authz.SpaceMemberTuple(userID, spaceA.ID), tuples.deleted[0])
}

func TestReconcileNeverRemovesModerator(t *testing.T) {
	userID := uuid.New()
	space := &Space{ID: uuid.New(), Name: "A", ModeratorUserID: userID}
	repo := newFakeSpaceRepo(space)
	mappings := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{GroupKey: "g1", SpaceID: space.ID, IsActive: true},
	}}
	tuples := &fakeTupleWriter{}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	// user has no group keys at all, space A is in the mapped universe
	rec.Reconcile(context.Background(), userID, nil)

	stored, _ := repo.GetByID(context.Background(), space.ID)
	assert.Equal(t, userID, stored.ModeratorUserID)
	assert.Empty(t, tuples.deleted, "moderator must never be auto-removed")
}

func TestReconcileIgnoresInactiveMappings(t *testing.T) {
	userID := uuid.New()
	space := &Space{ID: uuid.New(), Name: "A", ModeratorUserID: uuid.New(), MemberIDs: []uuid.UUID{userID}}
	repo := newFakeSpaceRepo(space)
	mappings := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{GroupKey: "g1", SpaceID: space.ID, IsActive: false},
	}}
	tuples := &fakeTupleWriter{}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	rec.Reconcile(context.Background(), userID, nil)

	// inactive mapping keeps the space out of both desired and the universe
	stored, _ := repo.GetByID(context.Background(), space.ID)
	assert.True(t, stored.HasMember(userID), "membership outside the active universe is untouched")
	assert.Empty(t, tuples.deleted)
}

func TestReconcileDuplicateKeysCollapse(t *testing.T) {
	userID := uuid.New()
	space := &Space{ID: uuid.New(), Name: "A", ModeratorUserID: uuid.New()}
	repo := newFakeSpaceRepo(space)
	mappings := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{GroupKey: "g1", SpaceID: space.ID, IsActive: true},
		{GroupKey: "g2", SpaceID: space.ID, IsActive: true},
	}}
	tuples := &fakeTupleWriter{}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	rec.Reconcile(context.Background(), userID, []string{"g1", "g2", "g1"})

	stored, _ := repo.GetByID(context.Background(), space.ID)
	assert.Len(t, stored.MemberIDs, 1)
	assert.Len(t, tuples.created, 1, "two keys mapping to one space collapse to one action")
}

func TestReconcileMappingStoreFailureSkipsRun(t *testing.T) {
	userID := uuid.New()
	space := &Space{ID: uuid.New(), Name: "A", ModeratorUserID: uuid.New(), MemberIDs: []uuid.UUID{userID}}
	repo := newFakeSpaceRepo(space)
	mappings := &fakeMappingStore{getErr: errors.New("db down")}
	tuples := &fakeTupleWriter{}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	assert.NotPanics(t, func() {
		rec.Reconcile(context.Background(), userID, []string{"g1"})
	})
	assert.Empty(t, tuples.created)
	assert.Empty(t, tuples.deleted)
}

func TestReconcileTupleFailureDoesNotBlockOtherSpaces(t *testing.T) {
	userID := uuid.New()
	spaceA := &Space{ID: uuid.New(), Name: "A", ModeratorUserID: uuid.New()}
	spaceB := &Space{ID: uuid.New(), Name: "B", ModeratorUserID: uuid.New()}
	repo := newFakeSpaceRepo(spaceA, spaceB)
	mappings := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{GroupKey: "g1", SpaceID: spaceA.ID, IsActive: true},
		{GroupKey: "g2", SpaceID: spaceB.ID, IsActive: true},
	}}
	tuples := &fakeTupleWriter{createErr: errors.New("store unreachable")}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	rec.Reconcile(context.Background(), userID, []string{"g1", "g2"})

	// relational membership still applied for both spaces
	storedA, _ := repo.GetByID(context.Background(), spaceA.ID)
	storedB, _ := repo.GetByID(context.Background(), spaceB.ID)
	assert.True(t, storedA.HasMember(userID))
	assert.True(t, storedB.HasMember(userID))
}

func TestReconcileMissingSpaceIsSkipped(t *testing.T) {
	userID := uuid.New()
	repo := newFakeSpaceRepo()
	mappings := &fakeMappingStore{mappings: []GroupSpaceMapping{
		{GroupKey: "g1", SpaceID: uuid.New(), IsActive: true},
	}}
	tuples := &fakeTupleWriter{}

	rec := NewReconciler(repo, mappings, tuples, testLogger(), nil)
	assert.NotPanics(t, func() {
		rec.Reconcile(context.Background(), userID, []string{"g1"})
	})
	assert.Empty(t, tuples.created)
}
