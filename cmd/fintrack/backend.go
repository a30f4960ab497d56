package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinoosan/fintrack/internal/config"
	httpapi "github.com/tinoosan/fintrack/internal/httpapi/v1"
	"github.com/tinoosan/fintrack/internal/service/category"
	"github.com/tinoosan/fintrack/internal/service/collab"
	"github.com/tinoosan/fintrack/internal/service/debt"
	"github.com/tinoosan/fintrack/internal/service/identity"
	"github.com/tinoosan/fintrack/internal/service/transaction"
	"github.com/tinoosan/fintrack/internal/service/wallet"
	"github.com/tinoosan/fintrack/internal/storage/memory"
	pgstore "github.com/tinoosan/fintrack/internal/storage/postgres"
	"github.com/tinoosan/fintrack/internal/storage/sqlite"
)

// backend is the method set every store implements.
type backend interface {
	identity.Repo
	identity.Writer
	wallet.Repo
	wallet.Writer
	category.Repo
	category.Writer
	transaction.Repo
	transaction.Writer
	debt.Repo
	debt.Writer
	collab.Repo
	collab.Writer
	Ready(ctx context.Context) error
}

// openBackend opens the configured store and applies migrations for the SQL drivers.
func openBackend(ctx context.Context, db config.Database, l *slog.Logger) (backend, func(), error) {
	switch db.Driver {
	case "postgres":
		pg, err := pgstore.Open(ctx, db.URL)
		if err != nil { return nil, nil, fmt.Errorf("connect to postgres: %w", err) }
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		l.Info("storage backend: postgres")
		return pg, pg.Close, nil
	case "sqlite":
		st, err := sqlite.Open(ctx, db.Path)
		if err != nil { return nil, nil, err }
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		l.Info("storage backend: sqlite", "path", db.Path)
		return st, func() {
			if err := st.Close(); err != nil { l.Error("close sqlite", "err", err) }
		}, nil
	default:
		l.Info("storage backend: memory")
		return memory.New(), func() {}, nil
	}
}

// buildServices wires the service layer over st.
func buildServices(st backend, c config.Config, l *slog.Logger) (httpapi.Services, error) {
	ids, err := identity.New(st, st, identity.Options{
		Secret: []byte(c.Auth.JWTSecret),
		Issuer: c.Auth.Issuer,
		TTL:    c.Auth.TokenTTL,
	}, l)
	if err != nil { return httpapi.Services{}, err }
	cs := collab.New(st, st, l)
	return httpapi.Services{
		Identity:     ids,
		Wallets:      wallet.New(st, st, cs, c.Currency, l),
		Categories:   category.New(st, st, cs),
		Transactions: transaction.New(st, st, cs, c.Currency, l),
		Debts:        debt.New(st, st, cs, c.Currency),
		Collab:       cs,
		Currency:     c.Currency,
		Ready:        st,
	}, nil
}
