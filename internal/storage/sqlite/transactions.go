package sqlite

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/tinoosan/fintrack/internal/errs"
	"github.com/tinoosan/fintrack/internal/ledger"
	"github.com/tinoosan/fintrack/internal/meta"
	"github.com/tinoosan/fintrack/internal/storage"
)

const txCols = `id, user_id, wallet_id, category_id, type, amount_minor, currency, description, date, metadata, created_at`

func (s *Store) CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	return insertTransaction(ctx, s.db, t)
}

// insertTransaction stores t only when both its wallet and category belong to t.UserID.
func insertTransaction(ctx context.Context, q querier, t ledger.Transaction) (ledger.Transaction, error) {
	md := t.Metadata.Clone()
	res, err := q.ExecContext(ctx,
		`INSERT INTO transactions (`+txCols+`)
		 SELECT ?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11
		 WHERE EXISTS (SELECT 1 FROM wallets WHERE id = ?3 AND user_id = ?2)
		   AND EXISTS (SELECT 1 FROM categories WHERE id = ?4 AND user_id = ?2)`,
		t.ID, t.UserID, t.WalletID, t.CategoryID, string(t.Type), ledger.Minor(t.Amount), t.Amount.Curr().Code(),
		t.Description, ts(t.Date), md, ts(t.CreatedAt))
	if err := affectedOne(res, mapErr(err)); err != nil {
		return ledger.Transaction{}, err
	}
	t.Metadata = md
	return t, nil
}

func (s *Store) TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+txCols+` FROM transactions WHERE id = ?1 AND user_id = ?2`, transactionID, userID))
}

// DeleteTransaction removes the row and returns it; idempotency keys pointing at it cascade.
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
	return deleteTransaction(ctx, s.db, userID, transactionID)
}

func deleteTransaction(ctx context.Context, q querier, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
	return scanTransaction(q.QueryRowContext(ctx,
		`DELETE FROM transactions WHERE id = ?1 AND user_id = ?2 RETURNING `+txCols, transactionID, userID))
}

// Transactions yields matching transactions newest first. Rows are read in full
// before the first yield so the single connection is free while the caller iterates.
func (s *Store) Transactions(ctx context.Context, userID uuid.UUID, f ledger.TransactionFilter) iter.Seq2[ledger.Transaction, error] {
	return func(yield func(ledger.Transaction, error) bool) {
		w := storage.NewSQLiteWhere(userID)
		if f.From != nil {
			w.Add("date >= ?", ts(*f.From))
		}
		if f.To != nil {
			w.Add("date <= ?", ts(*f.To))
		}
		if f.Type != nil {
			w.Add("type = ?", string(*f.Type))
		}
		if f.WalletID != nil {
			w.Add("wallet_id = ?", *f.WalletID)
		}
		if f.CategoryID != nil {
			w.Add("category_id = ?", *f.CategoryID)
		}
		out, err := s.collectTransactions(ctx,
			`SELECT `+txCols+` FROM transactions WHERE user_id = ?1`+w.SQL()+
				` ORDER BY date DESC, created_at DESC, id DESC`, w.Args()...)
		if err != nil {
			yield(ledger.Transaction{}, err)
			return
		}
		for _, t := range out {
			if !yield(t, nil) {
				return
			}
		}
	}
}

func (s *Store) collectTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}

// TransactionByIdempotencyKey resolves a previously stored key.
func (s *Store) TransactionByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (ledger.Transaction, bool, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+prefixed("t.", txCols)+`
		 FROM transaction_idempotency k JOIN transactions t ON t.id = k.transaction_id
		 WHERE k.user_id = ?1 AND k.key = ?2`, userID, key))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return ledger.Transaction{}, false, nil
		}
		return ledger.Transaction{}, false, err
	}
	return t, true, nil
}

// SaveIdempotencyKey binds key to transactionID; an existing binding wins.
func (s *Store) SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transaction_idempotency (user_id, key, transaction_id) VALUES (?1, ?2, ?3)
		 ON CONFLICT (user_id, key) DO NOTHING`, userID, key, transactionID)
	return mapErr(err)
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		t             ledger.Transaction
		typ, curr     string
		units         int64
		date, created string
		md            meta.Metadata
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &t.CategoryID, &typ, &units, &curr,
		&t.Description, &date, &md, &created); err != nil {
		return ledger.Transaction{}, mapErr(err)
	}
	t.Type = ledger.TxType(typ)
	t.Amount = ledger.Amount(curr, units)
	t.Metadata = md
	var err error
	if t.Date, err = parseTS(date); err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to parse transaction date: %w", err)
	}
	if t.CreatedAt, err = parseTS(created); err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to parse transaction created_at: %w", err)
	}
	return t, nil
}

// CreateTransaction inserts t inside the unit of work.
func (t *Tx) CreateTransaction(ctx context.Context, tr ledger.Transaction) (ledger.Transaction, error) {
	return insertTransaction(ctx, t.tx, tr)
}

// DeleteTransaction removes the row inside the unit of work.
func (t *Tx) DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
	return deleteTransaction(ctx, t.tx, userID, transactionID)
}

// AdjustWalletBalance increments the wallet inside the unit of work.
func (t *Tx) AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error) {
	return adjustWallet(ctx, t.tx, userID, walletID, deltaMinor)
}

// SaveIdempotencyKey binds key inside the unit of work. Unlike the Store method, an
// existing binding is an error (errs.ErrAlreadyExists) so the caller can roll back.
func (t *Tx) SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO transaction_idempotency (user_id, key, transaction_id) VALUES (?1, ?2, ?3)`,
		userID, key, transactionID)
	return mapErr(err)
}
