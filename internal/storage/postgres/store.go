// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the services, plus storage.TxBeginner
// so a transaction row and its wallet balance change commit together.
//
// The schema lives in migrations/*.sql, embedded into the binary and applied by Migrate.
package postgres

import (
    "context"
    "embed"
    "errors"
    "fmt"
    "io/fs"
    "log/slog"
    "sort"
    "strings"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/jackc/pgx/v5/pgxpool"

    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/storage"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store holds a pgx connection pool and implements the read/write interfaces
// used across the service layer. All methods are safe for concurrent use.
type Store struct {
    pool *pgxpool.Pool
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
    Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
    Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
    QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
    cfg, err := pgxpool.ParseConfig(dsn)
    if err != nil { return nil, fmt.Errorf("parse dsn: %w", err) }
    pool, err := pgxpool.NewWithConfig(ctx, cfg)
    if err != nil { return nil, err }
    // Verify connection
    if err := pool.Ping(ctx); err != nil { pool.Close(); return nil, err }
    return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { if s.pool != nil { s.pool.Close() } }

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate applies embedded migrations in file-name order, recording each in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
    if _, err := s.pool.Exec(ctx, `
        create table if not exists schema_migrations (
            version text primary key,
            applied_at timestamptz not null default now()
        )
    `); err != nil {
        return fmt.Errorf("create schema_migrations: %w", err)
    }
    names, err := fs.Glob(migrationFS, "migrations/*.sql")
    if err != nil { return err }
    sort.Strings(names)
    for _, name := range names {
        version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".sql")
        var applied bool
        if err := s.pool.QueryRow(ctx, `select exists(select 1 from schema_migrations where version = $1)`, version).Scan(&applied); err != nil {
            return fmt.Errorf("check migration %s: %w", version, err)
        }
        if applied { continue }
        body, err := migrationFS.ReadFile(name)
        if err != nil { return err }
        tx, err := s.pool.Begin(ctx)
        if err != nil { return err }
        if _, err := tx.Exec(ctx, string(body)); err != nil {
            _ = tx.Rollback(ctx)
            return fmt.Errorf("apply migration %s: %w", version, err)
        }
        if _, err := tx.Exec(ctx, `insert into schema_migrations (version) values ($1)`, version); err != nil {
            _ = tx.Rollback(ctx)
            return fmt.Errorf("record migration %s: %w", version, err)
        }
        if err := tx.Commit(ctx); err != nil { return fmt.Errorf("commit migration %s: %w", version, err) }
        slog.Info("applied migration", "store", "postgres", "version", version)
    }
    return nil
}

// --- Units of work ---

// BeginTx opens a read-committed transaction for the transaction service.
func (s *Store) BeginTx(ctx context.Context) (storage.LedgerTx, error) {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return nil, mapErr(err) }
    return &Tx{tx: tx}, nil
}

// Tx wraps a pgx.Tx and implements storage.LedgerTx.
type Tx struct{ tx pgx.Tx }

func (t *Tx) Commit(ctx context.Context) error   { return mapErr(t.tx.Commit(ctx)) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// --- Error mapping ---

// mapErr converts pgx errors to errs sentinels, keeping the original in the chain.
func mapErr(err error) error {
    if err == nil { return nil }
    if errors.Is(err, pgx.ErrNoRows) { return errs.ErrNotFound }
    var pgErr *pgconn.PgError
    if errors.As(err, &pgErr) {
        switch pgErr.Code {
        case "40001", "40P01", "55P03":
            return fmt.Errorf("%w: %v", errs.ErrConflict, err)
        case "23505":
            return fmt.Errorf("%w: %v", errs.ErrAlreadyExists, err)
        case "23503":
            return fmt.Errorf("%w: %v", errs.ErrHasDependents, err)
        }
    }
    return err
}

// affectedOne turns a statement that touched no rows into errs.ErrNotFound.
func affectedOne(tag pgconn.CommandTag, err error) error {
    if err != nil { return mapErr(err) }
    if tag.RowsAffected() == 0 { return errs.ErrNotFound }
    return nil
}
