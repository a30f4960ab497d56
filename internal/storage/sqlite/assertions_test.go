package sqlite

import (
	"github.com/tinoosan/fintrack/internal/service/category"
	"github.com/tinoosan/fintrack/internal/service/collab"
	"github.com/tinoosan/fintrack/internal/service/debt"
	"github.com/tinoosan/fintrack/internal/service/identity"
	"github.com/tinoosan/fintrack/internal/service/transaction"
	"github.com/tinoosan/fintrack/internal/service/wallet"
	"github.com/tinoosan/fintrack/internal/storage"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ identity.Repo      = (*Store)(nil)
	_ identity.Writer    = (*Store)(nil)
	_ wallet.Repo        = (*Store)(nil)
	_ wallet.Writer      = (*Store)(nil)
	_ category.Repo      = (*Store)(nil)
	_ category.Writer    = (*Store)(nil)
	_ transaction.Repo   = (*Store)(nil)
	_ transaction.Writer = (*Store)(nil)
	_ debt.Repo          = (*Store)(nil)
	_ debt.Writer        = (*Store)(nil)
	_ collab.Repo        = (*Store)(nil)
	_ collab.Writer      = (*Store)(nil)

	_ storage.TxBeginner = (*Store)(nil)
	_ storage.LedgerTx   = (*Tx)(nil)
)

