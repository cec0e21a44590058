package spaces

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spaceRow(s *Space) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "moderator_user_id", "is_deleted", "created_at", "updated_at",
	}).AddRow(s.ID, s.Name, s.ModeratorUserID, s.IsDeleted, s.CreatedAt, s.UpdatedAt)
}

func TestSpaceGetByIDLoadsMembers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	space := &Space{ID: uuid.New(), Name: "Backend", ModeratorUserID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	member := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM spaces").
		WithArgs(space.ID).
		WillReturnRows(spaceRow(space))
	mock.ExpectQuery("SELECT user_id FROM space_members").
		WithArgs(space.ID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(member))

	repo := NewPostgresRepository(db)
	got, err := repo.GetByID(context.Background(), space.ID)
	require.NoError(t, err)
	assert.Equal(t, space.Name, got.Name)
	assert.Equal(t, []uuid.UUID{member}, got.MemberIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpaceGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM spaces").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "moderator_user_id", "is_deleted", "created_at", "updated_at",
		}))

	repo := NewPostgresRepository(db)
	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSpaceNotFound)
}

func TestSpaceGetByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	space := &Space{ID: uuid.New(), Name: "Backend", ModeratorUserID: uuid.New(), CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery("SELECT (.+) FROM spaces").
		WithArgs("Backend").
		WillReturnRows(spaceRow(space))
	mock.ExpectQuery("SELECT user_id FROM space_members").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	repo := NewPostgresRepository(db)
	got, err := repo.GetByName(context.Background(), "Backend")
	require.NoError(t, err)
	assert.Equal(t, space.ID, got.ID)
	assert.Empty(t, got.MemberIDs)
}

func TestSpaceAdd(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	moderator := uuid.New()
	member := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO spaces").
		WithArgs(sqlmock.AnyArg(), "Backend", moderator).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO space_members").
		WithArgs(sqlmock.AnyArg(), member).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(db)
	space := &Space{Name: "Backend", ModeratorUserID: moderator, MemberIDs: []uuid.UUID{member}}
	require.NoError(t, repo.Add(context.Background(), space))
	assert.NotEqual(t, uuid.Nil, space.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpaceUpdateReplacesMembers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	space := &Space{ID: uuid.New(), Name: "Backend", ModeratorUserID: uuid.New(), MemberIDs: []uuid.UUID{uuid.New()}}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE spaces").
		WithArgs(space.ID, space.Name, space.ModeratorUserID, false).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectExec("DELETE FROM space_members").
		WithArgs(space.ID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO space_members").
		WithArgs(space.ID, space.MemberIDs[0]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.Update(context.Background(), space))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpaceGetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	s1 := &Space{ID: uuid.New(), Name: "A", ModeratorUserID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	s2 := &Space{ID: uuid.New(), Name: "B", ModeratorUserID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	member := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "name", "moderator_user_id", "is_deleted", "created_at", "updated_at",
	}).
		AddRow(s1.ID, s1.Name, s1.ModeratorUserID, false, now, now).
		AddRow(s2.ID, s2.Name, s2.ModeratorUserID, false, now, now)

	mock.ExpectQuery("SELECT (.+) FROM spaces").
		WithArgs(0, 50).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT space_id, user_id FROM space_members").
		WillReturnRows(sqlmock.NewRows([]string{"space_id", "user_id"}).AddRow(s1.ID, member))

	repo := NewPostgresRepository(db)
	got, err := repo.GetAll(context.Background(), 0, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []uuid.UUID{member}, got[0].MemberIDs)
	assert.Empty(t, got[1].MemberIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
