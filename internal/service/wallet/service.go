// Package wallet implements wallet lifecycle and balance reconciliation.
// Routine balance changes come from the transaction service; this package only
// creates wallets, applies explicit overrides, repairs drift and deletes empty wallets.
package wallet

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
    "github.com/tinoosan/fintrack/internal/retry"
    "github.com/tinoosan/fintrack/internal/service/access"
    "github.com/tinoosan/fintrack/internal/telemetry"
)

const maxNameLen = 80

type Repo interface {
    WalletByID(ctx context.Context, userID, walletID uuid.UUID) (ledger.Wallet, error)
    WalletsByUserID(ctx context.Context, userID uuid.UUID) ([]ledger.Wallet, error)
}

type Writer interface {
    CreateWallet(ctx context.Context, w ledger.Wallet) (ledger.Wallet, error)
    // SetWalletBalance overrides the balance and re-anchors the opening amount in one statement.
    SetWalletBalance(ctx context.Context, userID, walletID uuid.UUID, balanceMinor int64) (ledger.Wallet, error)
    // RecomputeWalletBalance sets balance = opening + signed sum of transactions and returns the previous balance.
    RecomputeWalletBalance(ctx context.Context, userID, walletID uuid.UUID) (int64, ledger.Wallet, error)
    // DeleteWallet returns errs.ErrHasDependents while transactions reference the wallet.
    DeleteWallet(ctx context.Context, userID, walletID uuid.UUID) error
}

type Service interface {
    Create(ctx context.Context, ownerID uuid.UUID, name string, initial money.Amount) (ledger.Wallet, error)
    SetBalance(ctx context.Context, ownerID, walletID uuid.UUID, balance money.Amount) (ledger.Wallet, error)
    Delete(ctx context.Context, ownerID, walletID uuid.UUID) error
    Recompute(ctx context.Context, ownerID, walletID uuid.UUID) (ledger.Reconciliation, error)
    ReconcileAll(ctx context.Context, ownerID uuid.UUID) ([]ledger.Reconciliation, error)
    List(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID) ([]ledger.Wallet, error)
    Get(ctx context.Context, viewer ledger.Identity, ownerID, walletID uuid.UUID) (ledger.Wallet, error)
}

type service struct {
    repo     Repo
    writer   Writer
    access   access.Resolver
    currency string
    log      *slog.Logger
}

// New returns a wallet service keeping every wallet in currency.
func New(repo Repo, writer Writer, resolver access.Resolver, currency string, logger *slog.Logger) Service {
    if logger == nil { logger = slog.Default() }
    return &service{repo: repo, writer: writer, access: resolver, currency: strings.ToUpper(currency), log: logger}
}

func (s *service) checkAmount(field string, a money.Amount) (int64, error) {
    if a.Curr().Code() != s.currency { return 0, errs.Invalid(field, "currency must be "+s.currency) }
    units, ok := a.MinorUnits()
    if !ok { return 0, errs.Invalid(field, "too many decimal places") }
    if units < 0 { return 0, errs.Invalid(field, "must be >= 0") }
    return units, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, name string, initial money.Amount) (ledger.Wallet, error) {
    if ownerID == uuid.Nil { return ledger.Wallet{}, errs.Invalid("owner_id", "required") }
    name = strings.TrimSpace(name)
    if name == "" { return ledger.Wallet{}, errs.Invalid("name", "required") }
    if len(name) > maxNameLen { return ledger.Wallet{}, errs.Invalid("name", "too long") }
    units, err := s.checkAmount("initial_balance", initial)
    if err != nil { return ledger.Wallet{}, err }
    w := ledger.Wallet{
        ID:        uuid.New(),
        UserID:    ownerID,
        Name:      name,
        Currency:  s.currency,
        Balance:   ledger.Amount(s.currency, units),
        Opening:   ledger.Amount(s.currency, units),
        CreatedAt: time.Now().UTC(),
    }
    out, err := s.writer.CreateWallet(ctx, w)
    if err != nil { return ledger.Wallet{}, fmt.Errorf("create wallet: %w", err) }
    return out, nil
}

// SetBalance is an explicit override. Reconciliation afterwards reproduces the new balance.
func (s *service) SetBalance(ctx context.Context, ownerID, walletID uuid.UUID, balance money.Amount) (ledger.Wallet, error) {
    units, err := s.checkAmount("balance", balance)
    if err != nil { return ledger.Wallet{}, err }
    var out ledger.Wallet
    err = retry.OnConflict(ctx, s.log, "set_balance", retry.Options{}, func() error {
        var err error
        out, err = s.writer.SetWalletBalance(ctx, ownerID, walletID, units)
        return err
    })
    if err != nil { return ledger.Wallet{}, err }
    s.log.Info("wallet balance overridden", "wallet_id", walletID, "owner_id", ownerID, "balance", out.Balance.String())
    return out, nil
}

func (s *service) Delete(ctx context.Context, ownerID, walletID uuid.UUID) error {
    if err := s.writer.DeleteWallet(ctx, ownerID, walletID); err != nil {
        if errors.Is(err, errs.ErrHasDependents) { return fmt.Errorf("wallet has transactions: %w", err) }
        return err
    }
    return nil
}

func (s *service) Recompute(ctx context.Context, ownerID, walletID uuid.UUID) (ledger.Reconciliation, error) {
    var before int64
    var w ledger.Wallet
    err := retry.OnConflict(ctx, s.log, "recompute", retry.Options{}, func() error {
        var err error
        before, w, err = s.writer.RecomputeWalletBalance(ctx, ownerID, walletID)
        return err
    })
    if err != nil { return ledger.Reconciliation{}, err }
    after := ledger.Minor(w.Balance)
    rec := ledger.Reconciliation{
        WalletID:   walletID,
        Before:     ledger.Amount(w.Currency, before),
        After:      w.Balance,
        DriftMinor: after - before,
    }
    if rec.DriftMinor != 0 {
        telemetry.ReconcileDrift.Inc()
        s.log.Warn("wallet balance drift repaired", "wallet_id", walletID, "owner_id", ownerID, "before", rec.Before.String(), "after", rec.After.String())
    }
    return rec, nil
}

// ReconcileAll recomputes every wallet of ownerID, stopping at the first failure.
func (s *service) ReconcileAll(ctx context.Context, ownerID uuid.UUID) ([]ledger.Reconciliation, error) {
    wallets, err := s.repo.WalletsByUserID(ctx, ownerID)
    if err != nil { return nil, err }
    out := make([]ledger.Reconciliation, 0, len(wallets))
    for _, w := range wallets {
        rec, err := s.Recompute(ctx, ownerID, w.ID)
        if err != nil { return out, fmt.Errorf("reconcile wallet %s: %w", w.ID, err) }
        out = append(out, rec)
    }
    return out, nil
}

func (s *service) List(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID) ([]ledger.Wallet, error) {
    owner, err := access.Authorize(ctx, s.access, viewer, ownerID)
    if err != nil { return nil, err }
    return s.repo.WalletsByUserID(ctx, owner)
}

func (s *service) Get(ctx context.Context, viewer ledger.Identity, ownerID, walletID uuid.UUID) (ledger.Wallet, error) {
    owner, err := access.Authorize(ctx, s.access, viewer, ownerID)
    if err != nil { return ledger.Wallet{}, err }
    return s.repo.WalletByID(ctx, owner, walletID)
}
