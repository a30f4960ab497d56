package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version this build understands.
const ExpectedSchemaVersion = 2

// Migration is one forward-only schema step, tracked in PRAGMA user_version.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					created_at TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS revoked_sessions (
					jti TEXT PRIMARY KEY,
					expires_at TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS wallets (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					currency TEXT NOT NULL,
					balance_minor INTEGER NOT NULL,
					opening_minor INTEGER NOT NULL,
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_wallets_user ON wallets(user_id)`,
				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_categories_user ON categories(user_id)`,
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					wallet_id TEXT NOT NULL REFERENCES wallets(id) ON DELETE RESTRICT,
					category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
					type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
					amount_minor INTEGER NOT NULL CHECK (amount_minor >= 0),
					currency TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					date TEXT NOT NULL,
					metadata TEXT NOT NULL DEFAULT '{}',
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date DESC, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(wallet_id)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id)`,
				`CREATE TABLE IF NOT EXISTS transaction_idempotency (
					user_id TEXT NOT NULL,
					key TEXT NOT NULL,
					transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, key)
				)`,
				`CREATE TABLE IF NOT EXISTS debts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('payable', 'receivable')),
					amount_minor INTEGER NOT NULL CHECK (amount_minor >= 0),
					currency TEXT NOT NULL,
					due_date TEXT NOT NULL,
					status TEXT NOT NULL CHECK (status IN ('open', 'settled')),
					note TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_debts_user_due ON debts(user_id, due_date)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Collaboration grants",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS collaborations (
					id TEXT PRIMARY KEY,
					requester_id TEXT NOT NULL,
					requester_email TEXT NOT NULL,
					owner_email TEXT NOT NULL,
					owner_id TEXT,
					status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected')),
					created_at TEXT NOT NULL
				)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS uq_collaborations_open
					ON collaborations(requester_id, owner_email)
					WHERE status IN ('pending', 'accepted')`,
				`CREATE INDEX IF NOT EXISTS idx_collaborations_owner_email ON collaborations(owner_email)`,
			})
		},
	},
}

// Migrate applies pending migrations, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
		slog.Info("applied migration", "store", "sqlite", "version", migration.Version, "description", migration.Description)
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}
	return nil
}
