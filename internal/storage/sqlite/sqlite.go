// Package sqlite is a single-file store for self-hosted installs, built on
// database/sql and mattn/go-sqlite3. It implements every repository the services
// use plus storage.TxBeginner, so transaction rows and balances commit together.
//
// The pool is pinned to one connection; an open storage.LedgerTx therefore blocks
// other callers until it commits or rolls back.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/tinoosan/fintrack/internal/errs"
	"github.com/tinoosan/fintrack/internal/storage"
)

// tsLayout is fixed-width so text comparison orders timestamps correctly.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps a *sql.DB opened on a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ready pings the database.
func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

// BeginTx opens a unit of work for the transaction service.
func (s *Store) BeginTx(ctx context.Context) (storage.LedgerTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	return &Tx{tx: tx}, nil
}

// Tx is a storage.LedgerTx over a *sql.Tx.
type Tx struct{ tx *sql.Tx }

func (t *Tx) Commit(context.Context) error   { return mapErr(t.tx.Commit()) }
func (t *Tx) Rollback(context.Context) error { return t.tx.Rollback() }

// mapErr converts driver errors to errs sentinels, keeping the original in the chain.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", errs.ErrConflict, err)
		case isForeignKeyViolation(se):
			return fmt.Errorf("%w: %v", errs.ErrHasDependents, err)
		case se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", errs.ErrAlreadyExists, err)
		}
	}
	return err
}

// isForeignKeyViolation reports a restrict violation. SQLite raises deferred and restrict
// foreign key checks as SQLITE_CONSTRAINT_TRIGGER, not SQLITE_CONSTRAINT_FOREIGNKEY.
func isForeignKeyViolation(se sqlite3.Error) bool {
	if se.Code != sqlite3.ErrConstraint {
		return false
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey, sqlite3.ErrConstraintTrigger:
		return true
	}
	return strings.Contains(se.Error(), "FOREIGN KEY constraint failed")
}

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) (time.Time, error) { return time.Parse(tsLayout, s) }

type scanner interface{ Scan(dest ...any) error }

// affectedOne turns a statement that touched no rows into errs.ErrNotFound.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// prefixed qualifies each column in a comma-separated list with p.
func prefixed(p, cols string) string {
	parts := strings.Split(cols, ", ")
	for i := range parts {
		parts[i] = p + parts[i]
	}
	return strings.Join(parts, ", ")
}
