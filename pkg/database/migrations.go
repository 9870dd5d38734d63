package database

import (
	"database/sql"
	"fmt"
)

// Migration is one versioned schema step. Migrations are embedded in
// the binary so deployments never depend on loose .sql files.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// migrations are applied in slice order; versions must stay sorted.
var migrations = []Migration{
	{
		Version:     "001",
		Description: "create users table",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				username      TEXT NOT NULL UNIQUE,
				email         TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				display_color TEXT NOT NULL DEFAULT '#1e88e5',
				created_at    DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
		`,
	},
	{
		Version:     "002",
		Description: "create messages table",
		SQL: `
			CREATE TABLE IF NOT EXISTS messages (
				id           TEXT PRIMARY KEY,
				text         TEXT NOT NULL,
				author_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				recipient_id TEXT REFERENCES users(id),
				scope        TEXT NOT NULL CHECK (scope IN ('global', 'direct')),
				is_read      INTEGER NOT NULL DEFAULT 0,
				read_at      DATETIME,
				created_at   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_messages_scope_time ON messages(scope, created_at);
			CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, created_at);
		`,
	},
}

// MigrationManager applies embedded migrations and tracks them in a
// schema_migrations table.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// ApplyMigrations applies all pending migrations. Each migration runs in
// its own transaction; a failure leaves earlier migrations applied.
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.apply(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s (%s): %w",
				migration.Version, migration.Description, err)
		}
	}

	return nil
}

func (m *MigrationManager) createMigrationTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *MigrationManager) appliedVersions() (map[string]bool, error) {
	rows, err := m.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *MigrationManager) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version) VALUES (?)`, migration.Version,
	); err != nil {
		return err
	}

	return tx.Commit()
}
