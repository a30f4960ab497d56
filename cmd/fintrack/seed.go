package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tinoosan/fintrack/internal/errs"
	httpapi "github.com/tinoosan/fintrack/internal/httpapi/v1"
	"github.com/tinoosan/fintrack/internal/ledger"
	"github.com/tinoosan/fintrack/internal/meta"
	"github.com/tinoosan/fintrack/internal/service/transaction"
)

const (
	seedEmail    = "demo@fintrack.local"
	seedPassword = "fintrack-demo"
)

// devSeed creates a demo user with default categories, one wallet and two transactions.
// An existing demo user is left untouched.
func devSeed(ctx context.Context, svc httpapi.Services, currency string, out io.Writer) error {
	id, err := svc.Identity.SignUp(ctx, seedEmail, seedPassword)
	if errors.Is(err, errs.ErrAlreadyExists) {
		logger.Info("dev seed: demo user already exists", "email", seedEmail)
		return nil
	}
	if err != nil { return fmt.Errorf("sign up demo user: %w", err) }

	cats, err := svc.Categories.EnsureDefaults(ctx, id.ID)
	if err != nil { return fmt.Errorf("default categories: %w", err) }
	w, err := svc.Wallets.Create(ctx, id.ID, "Cash", ledger.Amount(currency, 1_000_000))
	if err != nil { return fmt.Errorf("create wallet: %w", err) }

	first := func(t ledger.TxType) (ledger.Category, bool) {
		for _, c := range cats {
			if c.Type == t { return c, true }
		}
		return ledger.Category{}, false
	}
	now := time.Now().UTC()
	for _, s := range []struct {
		typ    ledger.TxType
		amount int64
		desc   string
	}{
		{ledger.TxIncome, 500_000, "Salary"},
		{ledger.TxExpense, 75_000, "Groceries"},
	} {
		c, ok := first(s.typ)
		if !ok { continue }
		if _, err := svc.Transactions.Create(ctx, transaction.Draft{
			OwnerID:     id.ID,
			WalletID:    w.ID,
			CategoryID:  c.ID,
			Type:        s.typ,
			Amount:      ledger.Amount(currency, s.amount),
			Description: s.desc,
			Date:        now,
			Metadata:    meta.New(map[string]string{"source": "dev_seed"}),
		}); err != nil {
			return fmt.Errorf("seed %s transaction: %w", s.typ, err)
		}
	}

	logger.Info("DEV seed", "user_id", id.ID, "wallet_id", w.ID, "email", seedEmail)
	fmt.Fprintln(out, "==================== DEV SEED ====================")
	fmt.Fprintf(out, "email:     %s\n", seedEmail)
	fmt.Fprintf(out, "password:  %s\n", seedPassword)
	fmt.Fprintf(out, "user_id:   %s\n", id.ID)
	fmt.Fprintf(out, "wallet_id: %s\n", w.ID)
	fmt.Fprintln(out, "==================================================")
	return nil
}
