package spaces

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all spaces migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create spaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS spaces (
					id UUID PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					moderator_user_id UUID NOT NULL REFERENCES users(id),
					is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX idx_spaces_name_active ON spaces(name) WHERE NOT is_deleted;
				CREATE INDEX idx_spaces_moderator ON spaces(moderator_user_id);
			`,
		},
		{
			Version:     2,
			Description: "Create space_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS space_members (
					space_id UUID NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					added_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (space_id, user_id)
				);

				CREATE INDEX idx_space_members_user ON space_members(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create group_space_mappings table",
			SQL: `
				CREATE TABLE IF NOT EXISTS group_space_mappings (
					id UUID PRIMARY KEY,
					group_key VARCHAR(512) NOT NULL,
					space_id UUID NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_by UUID NOT NULL REFERENCES users(id),
					updated_by UUID NOT NULL REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE (group_key, space_id)
				);

				CREATE INDEX idx_group_space_mappings_key_active ON group_space_mappings(group_key) WHERE is_active;
				CREATE INDEX idx_group_space_mappings_space ON group_space_mappings(space_id);
			`,
		},
	}
}

// RunMigrations executes all pending spaces migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS spaces_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM spaces_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO spaces_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
