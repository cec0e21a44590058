package spaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MappingStore is the persistence boundary for group-to-space mappings.
type MappingStore interface {
	// GetAll returns every mapping, active and inactive.
	GetAll(ctx context.Context) ([]GroupSpaceMapping, error)

	// GetSpaceIDsByGroupKeys returns the distinct space ids of active
	// mappings matching any of the given group keys.
	GetSpaceIDsByGroupKeys(ctx context.Context, keys []string) ([]uuid.UUID, error)

	// Add records a new active mapping. An existing (group key, space)
	// pair surfaces as ErrMappingExists.
	Add(ctx context.Context, userID uuid.UUID, groupKey string, spaceID uuid.UUID) error

	// Deactivate flags a mapping inactive, retaining it for audit.
	Deactivate(ctx context.Context, userID uuid.UUID, groupKey string, spaceID uuid.UUID) error
}

// PostgresMappingStore implements MappingStore using PostgreSQL
type PostgresMappingStore struct {
	db *sql.DB
}

// NewPostgresMappingStore creates a new PostgresMappingStore
func NewPostgresMappingStore(db *sql.DB) *PostgresMappingStore {
	return &PostgresMappingStore{db: db}
}

const mappingColumns = `id, group_key, space_id, is_active, created_by, updated_by, created_at, updated_at`

// GetAll returns every mapping ordered by group key.
func (s *PostgresMappingStore) GetAll(ctx context.Context) ([]GroupSpaceMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mappingColumns+`
		FROM group_space_mappings
		ORDER BY group_key, space_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list group space mappings: %w", err)
	}
	defer rows.Close()

	var result []GroupSpaceMapping
	for rows.Next() {
		var m GroupSpaceMapping
		if err := rows.Scan(
			&m.ID, &m.GroupKey, &m.SpaceID, &m.IsActive,
			&m.CreatedBy, &m.UpdatedBy, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// GetSpaceIDsByGroupKeys returns the distinct target spaces of active
// mappings for any of the given keys.
func (s *PostgresMappingStore) GetSpaceIDsByGroupKeys(ctx context.Context, keys []string) ([]uuid.UUID, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT space_id
		FROM group_space_mappings
		WHERE is_active AND group_key = ANY($1)
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group keys: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan space id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Add inserts a new active mapping.
func (s *PostgresMappingStore) Add(ctx context.Context, userID uuid.UUID, groupKey string, spaceID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_space_mappings (id, group_key, space_id, is_active, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, true, $4, $4, NOW(), NOW())
	`, uuid.New(), groupKey, spaceID, userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrMappingExists
		}
		return fmt.Errorf("failed to add mapping: %w", err)
	}
	return nil
}

// Deactivate flags the mapping inactive.
func (s *PostgresMappingStore) Deactivate(ctx context.Context, userID uuid.UUID, groupKey string, spaceID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE group_space_mappings
		SET is_active = false, updated_by = $3, updated_at = NOW()
		WHERE group_key = $1 AND space_id = $2
	`, groupKey, spaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate mapping: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deactivation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no mapping found for group key %q", groupKey)
	}
	return nil
}
