package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/fintrack/internal/ledger"
)

func (s *Store) CreateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?1, ?2, ?3, ?4)`,
		u.ID, u.Email, u.PasswordHash, ts(u.CreatedAt))
	if err != nil {
		return ledger.User{}, mapErr(fmt.Errorf("failed to insert user: %w", err))
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (ledger.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?1`, email))
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (ledger.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?1`, id))
}

func scanUser(row scanner) (ledger.User, error) {
	var (
		u       ledger.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &created); err != nil {
		return ledger.User{}, mapErr(err)
	}
	var err error
	if u.CreatedAt, err = parseTS(created); err != nil {
		return ledger.User{}, fmt.Errorf("failed to parse user created_at: %w", err)
	}
	return u, nil
}

// RevokeSession records jti as signed out and prunes entries that have expired.
func (s *Store) RevokeSession(ctx context.Context, jti string, expiresAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM revoked_sessions WHERE expires_at < ?1`, ts(time.Now())); err != nil {
		return mapErr(fmt.Errorf("failed to prune revoked sessions: %w", err))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_sessions (jti, expires_at) VALUES (?1, ?2) ON CONFLICT (jti) DO NOTHING`,
		jti, ts(expiresAt))
	if err != nil {
		return mapErr(fmt.Errorf("failed to revoke session: %w", err))
	}
	return nil
}

func (s *Store) SessionRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM revoked_sessions WHERE jti = ?1`, jti).Scan(&n); err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}
