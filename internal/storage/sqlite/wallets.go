package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinoosan/fintrack/internal/ledger"
)

const walletCols = `id, user_id, name, currency, balance_minor, opening_minor, created_at`

func (s *Store) CreateWallet(ctx context.Context, w ledger.Wallet) (ledger.Wallet, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wallets (`+walletCols+`) VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7)`,
		w.ID, w.UserID, w.Name, w.Currency, ledger.Minor(w.Balance), ledger.Minor(w.Opening), ts(w.CreatedAt))
	if err != nil {
		return ledger.Wallet{}, mapErr(fmt.Errorf("failed to insert wallet: %w", err))
	}
	return w, nil
}

func (s *Store) WalletByID(ctx context.Context, userID, walletID uuid.UUID) (ledger.Wallet, error) {
	return scanWallet(s.db.QueryRowContext(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE id = ?1 AND user_id = ?2`, walletID, userID))
}

// WalletsByUserID returns a user's wallets ordered by creation time then name.
func (s *Store) WalletsByUserID(ctx context.Context, userID uuid.UUID) ([]ledger.Wallet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE user_id = ?1 ORDER BY created_at, name`, userID)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query wallets: %w", err))
	}
	defer rows.Close()
	out := make([]ledger.Wallet, 0)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error) {
	return adjustWallet(ctx, s.db, userID, walletID, deltaMinor)
}

// adjustWallet increments the balance in a single statement so concurrent writers never lose updates.
func adjustWallet(ctx context.Context, q querier, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error) {
	return scanWallet(q.QueryRowContext(ctx,
		`UPDATE wallets SET balance_minor = balance_minor + ?1
		 WHERE id = ?2 AND user_id = ?3
		 RETURNING `+walletCols, deltaMinor, walletID, userID))
}

// SetWalletBalance overrides the balance and re-anchors opening_minor so that
// opening + sum(signed transactions) equals the new balance.
func (s *Store) SetWalletBalance(ctx context.Context, userID, walletID uuid.UUID, balanceMinor int64) (ledger.Wallet, error) {
	return scanWallet(s.db.QueryRowContext(ctx,
		`UPDATE wallets SET balance_minor = ?1, opening_minor = ?1 - (`+signedSum+`)
		 WHERE id = ?2 AND user_id = ?3
		 RETURNING `+walletCols, balanceMinor, walletID, userID))
}

// signedSum is the signed transaction total for the wallet bound to ?2.
const signedSum = `SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount_minor ELSE -amount_minor END), 0)
	FROM transactions WHERE wallet_id = ?2`

// RecomputeWalletBalance sets balance to opening + sum(signed transactions) and
// returns the balance it replaced.
func (s *Store) RecomputeWalletBalance(ctx context.Context, userID, walletID uuid.UUID) (int64, ledger.Wallet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, ledger.Wallet{}, mapErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var before int64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance_minor FROM wallets WHERE id = ?1 AND user_id = ?2`, walletID, userID).Scan(&before); err != nil {
		return 0, ledger.Wallet{}, mapErr(err)
	}
	w, err := scanWallet(tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance_minor = opening_minor + (`+signedSum+`)
		 WHERE id = ?2 AND user_id = ?1
		 RETURNING `+walletCols, userID, walletID))
	if err != nil {
		return 0, ledger.Wallet{}, err
	}
	if err := tx.Commit(); err != nil {
		return 0, ledger.Wallet{}, mapErr(fmt.Errorf("failed to commit recompute: %w", err))
	}
	return before, w, nil
}

// DeleteWallet removes an empty wallet; the foreign key from transactions turns
// a non-empty wallet into errs.ErrHasDependents.
func (s *Store) DeleteWallet(ctx context.Context, userID, walletID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wallets WHERE id = ?1 AND user_id = ?2`, walletID, userID)
	return affectedOne(res, mapErr(err))
}

func scanWallet(row scanner) (ledger.Wallet, error) {
	var (
		w                ledger.Wallet
		balance, opening int64
		created          string
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Currency, &balance, &opening, &created); err != nil {
		return ledger.Wallet{}, mapErr(err)
	}
	var err error
	if w.CreatedAt, err = parseTS(created); err != nil {
		return ledger.Wallet{}, fmt.Errorf("failed to parse wallet created_at: %w", err)
	}
	w.Balance = ledger.Amount(w.Currency, balance)
	w.Opening = ledger.Amount(w.Currency, opening)
	return w, nil
}
