// Package storage holds contracts shared by the store implementations
// (memory, sqlite, postgres) and the services that drive them.
package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/tinoosan/fintrack/internal/ledger"
)

// LedgerTx is a unit of work spanning a transaction row and its wallet balance effect.
// Stores that return one from BeginTx commit both writes together or neither.
type LedgerTx interface {
	CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error)
	AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error)
	SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner is implemented by stores that can open a LedgerTx.
type TxBeginner interface {
	BeginTx(ctx context.Context) (LedgerTx, error)
}
