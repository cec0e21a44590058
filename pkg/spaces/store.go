package spaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository is the persistence boundary for the Space aggregate.
type Repository interface {
	// GetByID loads a space with its member list. Returns ErrSpaceNotFound
	// when missing or soft-deleted.
	GetByID(ctx context.Context, id uuid.UUID) (*Space, error)

	// GetByName loads a non-deleted space by exact name.
	GetByName(ctx context.Context, name string) (*Space, error)

	// Add persists a new space and its member list.
	Add(ctx context.Context, space *Space) error

	// Update persists the space row and synchronizes the member list.
	Update(ctx context.Context, space *Space) error

	// GetAll pages through non-deleted spaces with their member lists.
	GetAll(ctx context.Context, skip, take int) ([]*Space, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const spaceColumns = `id, name, moderator_user_id, is_deleted, created_at, updated_at`

// GetByID retrieves a space by id with its members loaded.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Space, error) {
	query := `
		SELECT ` + spaceColumns + `
		FROM spaces
		WHERE id = $1 AND NOT is_deleted
	`
	space := &Space{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&space.ID, &space.Name, &space.ModeratorUserID, &space.IsDeleted,
		&space.CreatedAt, &space.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}

	if err := r.loadMembers(ctx, space); err != nil {
		return nil, err
	}
	return space, nil
}

// GetByName retrieves a non-deleted space by exact name with its members.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*Space, error) {
	query := `
		SELECT ` + spaceColumns + `
		FROM spaces
		WHERE name = $1 AND NOT is_deleted
	`
	space := &Space{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&space.ID, &space.Name, &space.ModeratorUserID, &space.IsDeleted,
		&space.CreatedAt, &space.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space by name: %w", err)
	}

	if err := r.loadMembers(ctx, space); err != nil {
		return nil, err
	}
	return space, nil
}

// Add inserts the space row and its member list in one transaction.
func (r *PostgresRepository) Add(ctx context.Context, space *Space) error {
	if space.ID == uuid.Nil {
		space.ID = uuid.New()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO spaces (id, name, moderator_user_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, false, NOW(), NOW())
		RETURNING created_at, updated_at
	`, space.ID, space.Name, space.ModeratorUserID).Scan(&space.CreatedAt, &space.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}

	for _, memberID := range space.MemberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO space_members (space_id, user_id) VALUES ($1, $2)
		`, space.ID, memberID); err != nil {
			return fmt.Errorf("failed to add space member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update persists the space row and replaces the member list to match the
// aggregate in one transaction.
func (r *PostgresRepository) Update(ctx context.Context, space *Space) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		UPDATE spaces
		SET name = $2, moderator_user_id = $3, is_deleted = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, space.ID, space.Name, space.ModeratorUserID, space.IsDeleted).Scan(&space.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSpaceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update space: %w", err)
	}

	// Replace the member list wholesale; the set is small and the write
	// stays idempotent.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM space_members WHERE space_id = $1
	`, space.ID); err != nil {
		return fmt.Errorf("failed to clear space members: %w", err)
	}
	for _, memberID := range space.MemberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO space_members (space_id, user_id) VALUES ($1, $2)
		`, space.ID, memberID); err != nil {
			return fmt.Errorf("failed to add space member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAll pages through non-deleted spaces ordered by name.
func (r *PostgresRepository) GetAll(ctx context.Context, skip, take int) ([]*Space, error) {
	query := `
		SELECT ` + spaceColumns + `
		FROM spaces
		WHERE NOT is_deleted
		ORDER BY name
		OFFSET $1 LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, skip, take)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var result []*Space
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		space := &Space{}
		if err := rows.Scan(
			&space.ID, &space.Name, &space.ModeratorUserID, &space.IsDeleted,
			&space.CreatedAt, &space.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		result = append(result, space)
		ids = append(ids, space.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spaces: %w", err)
	}
	if len(result) == 0 {
		return result, nil
	}

	members, err := r.membersForSpaces(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, space := range result {
		space.MemberIDs = members[space.ID]
	}
	return result, nil
}

func (r *PostgresRepository) loadMembers(ctx context.Context, space *Space) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM space_members WHERE space_id = $1 ORDER BY added_at
	`, space.ID)
	if err != nil {
		return fmt.Errorf("failed to load space members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memberID uuid.UUID
		if err := rows.Scan(&memberID); err != nil {
			return fmt.Errorf("failed to scan space member: %w", err)
		}
		space.MemberIDs = append(space.MemberIDs, memberID)
	}
	return rows.Err()
}

func (r *PostgresRepository) membersForSpaces(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT space_id, user_id FROM space_members WHERE space_id = ANY($1) ORDER BY added_at
	`, pq.Array(idStrings))
	if err != nil {
		return nil, fmt.Errorf("failed to load space members: %w", err)
	}
	defer rows.Close()

	members := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var spaceID, userID uuid.UUID
		if err := rows.Scan(&spaceID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan space member: %w", err)
		}
		members[spaceID] = append(members[spaceID], userID)
	}
	return members, rows.Err()
}
