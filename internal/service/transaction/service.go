// Package transaction implements income/expense transactions and keeps each wallet's
// cached balance in step with them.
//
// Every create or delete touches two rows: the transaction and its wallet. When the
// writer can open a storage.LedgerTx both writes commit together. Otherwise they run
// in order and a failure of the second write is reported as *errs.PartialFailureError,
// leaving the wallet to be repaired by the wallet service's Recompute.
package transaction

import (
    "context"
    "errors"
    "fmt"
    "iter"
    "log/slog"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
    "github.com/tinoosan/fintrack/internal/meta"
    "github.com/tinoosan/fintrack/internal/retry"
    "github.com/tinoosan/fintrack/internal/service/access"
    "github.com/tinoosan/fintrack/internal/storage"
    "github.com/tinoosan/fintrack/internal/telemetry"
)

const maxDescriptionLen = 500

// Repo defines read operations needed by the service.
type Repo interface {
    WalletByID(ctx context.Context, userID, walletID uuid.UUID) (ledger.Wallet, error)
    WalletsByUserID(ctx context.Context, userID uuid.UUID) ([]ledger.Wallet, error)
    CategoryByID(ctx context.Context, userID, categoryID uuid.UUID) (ledger.Category, error)
    TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error)
    Transactions(ctx context.Context, userID uuid.UUID, f ledger.TransactionFilter) iter.Seq2[ledger.Transaction, error]
    TransactionByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (ledger.Transaction, bool, error)
}

// Writer defines write operations needed by the service. AdjustWalletBalance must be an
// atomic increment; it never reads-then-writes the balance from the caller's side.
type Writer interface {
    CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error)
    DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error)
    AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error)
    SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error
}

// Draft is the caller's input for a new transaction.
type Draft struct {
    OwnerID     uuid.UUID
    WalletID    uuid.UUID
    CategoryID  uuid.UUID
    Type        ledger.TxType
    Amount      money.Amount
    Description string
    Date        time.Time
    Metadata    meta.Metadata
}

type Service interface {
    Validate(ctx context.Context, d Draft) error
    Create(ctx context.Context, d Draft) (ledger.Transaction, error)
    // CreateIdempotent returns the transaction previously created under key, with replayed=true,
    // instead of applying the balance effect twice.
    CreateIdempotent(ctx context.Context, d Draft, key string) (t ledger.Transaction, replayed bool, err error)
    Delete(ctx context.Context, ownerID, transactionID uuid.UUID) error
    List(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID, f ledger.TransactionFilter) iter.Seq2[ledger.Transaction, error]
    MonthlySummary(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID, year, month int) (ledger.Summary, error)
}

type service struct {
    repo     Repo
    writer   Writer
    access   access.Resolver
    currency string
    log      *slog.Logger
    retry    retry.Options
}

func New(repo Repo, writer Writer, resolver access.Resolver, currency string, logger *slog.Logger) Service {
    if logger == nil { logger = slog.Default() }
    return &service{repo: repo, writer: writer, access: resolver, currency: strings.ToUpper(currency), log: logger}
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
    y, m, d := t.Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Validate checks d against the owner's wallet and category without writing anything.
// Unknown or foreign wallet/category ids are reported as validation errors.
func (s *service) Validate(ctx context.Context, d Draft) error {
    if d.OwnerID == uuid.Nil { return errs.Invalid("owner_id", "required") }
    if !d.Type.Valid() { return errs.Invalid("type", "must be income or expense") }
    units, ok := d.Amount.MinorUnits()
    if !ok { return errs.Invalid("amount", "too many decimal places") }
    if units < 0 { return errs.Invalid("amount", "must be >= 0") }
    if d.Date.IsZero() { return errs.Invalid("date", "required") }
    if len(d.Description) > maxDescriptionLen { return errs.Invalid("description", "too long") }
    if err := d.Metadata.Validate(); err != nil { return err }

    w, err := s.repo.WalletByID(ctx, d.OwnerID, d.WalletID)
    if errors.Is(err, errs.ErrNotFound) { return errs.Invalid("wallet_id", "wallet not found") }
    if err != nil { return err }
    if d.Amount.Curr().Code() != w.Currency { return errs.Invalid("amount", "currency must match wallet currency "+w.Currency) }

    c, err := s.repo.CategoryByID(ctx, d.OwnerID, d.CategoryID)
    if errors.Is(err, errs.ErrNotFound) { return errs.Invalid("category_id", "category not found") }
    if err != nil { return err }
    if c.Type != d.Type { return errs.Invalid("category_id", fmt.Sprintf("category type %s does not match transaction type %s", c.Type, d.Type)) }
    return nil
}

func (s *service) Create(ctx context.Context, d Draft) (ledger.Transaction, error) {
    t, _, err := s.create(ctx, d, "")
    return t, err
}

func (s *service) CreateIdempotent(ctx context.Context, d Draft, key string) (ledger.Transaction, bool, error) {
    key = strings.TrimSpace(key)
    if key == "" { t, err := s.Create(ctx, d); return t, false, err }
    if prev, ok, err := s.repo.TransactionByIdempotencyKey(ctx, d.OwnerID, key); err != nil {
        return ledger.Transaction{}, false, err
    } else if ok {
        return prev, true, nil
    }
    t, replayed, err := s.create(ctx, d, key)
    return t, replayed, err
}

func (s *service) create(ctx context.Context, d Draft, key string) (ledger.Transaction, bool, error) {
    if err := s.Validate(ctx, d); err != nil { return ledger.Transaction{}, false, err }
    t := ledger.Transaction{
        ID:          uuid.New(),
        UserID:      d.OwnerID,
        WalletID:    d.WalletID,
        CategoryID:  d.CategoryID,
        Type:        d.Type,
        Amount:      d.Amount,
        Description: strings.TrimSpace(d.Description),
        Date:        Day(d.Date),
        Metadata:    d.Metadata.Clone(),
        CreatedAt:   time.Now().UTC(),
    }
    if b, ok := s.writer.(storage.TxBeginner); ok {
        created, err := s.createAtomic(ctx, b, t, key)
        if key != "" && errors.Is(err, errs.ErrAlreadyExists) {
            // lost a race with a concurrent request carrying the same key
            prev, found, lerr := s.repo.TransactionByIdempotencyKey(ctx, d.OwnerID, key)
            if lerr == nil && found { return prev, true, nil }
        }
        return created, false, err
    }

    created, err := s.writer.CreateTransaction(ctx, t)
    if err != nil { return ledger.Transaction{}, false, fmt.Errorf("create transaction: %w", err) }
    if key != "" {
        if err := s.writer.SaveIdempotencyKey(ctx, created.UserID, key, created.ID); err != nil {
            s.log.Warn("idempotency key not saved", "transaction_id", created.ID, "err", err)
        }
    }
    err = retry.OnConflict(ctx, s.log, "create", s.retry, func() error {
        _, err := s.writer.AdjustWalletBalance(ctx, created.UserID, created.WalletID, created.SignedMinor())
        return err
    })
    if err != nil { return created, false, s.partial("create", created, err) }
    return created, false, nil
}

func (s *service) createAtomic(ctx context.Context, b storage.TxBeginner, t ledger.Transaction, key string) (ledger.Transaction, error) {
    var created ledger.Transaction
    err := retry.OnConflict(ctx, s.log, "create", s.retry, func() error {
        tx, err := b.BeginTx(ctx)
        if err != nil { return err }
        created, err = tx.CreateTransaction(ctx, t)
        if err != nil { _ = tx.Rollback(ctx); return err }
        if key != "" {
            if err := tx.SaveIdempotencyKey(ctx, t.UserID, key, t.ID); err != nil { _ = tx.Rollback(ctx); return err }
        }
        if _, err := tx.AdjustWalletBalance(ctx, t.UserID, t.WalletID, t.SignedMinor()); err != nil { _ = tx.Rollback(ctx); return err }
        return tx.Commit(ctx)
    })
    if err != nil { return ledger.Transaction{}, fmt.Errorf("create transaction: %w", err) }
    return created, nil
}

// Delete removes the row and reverses its balance effect. A missing transaction is errs.ErrNotFound.
func (s *service) Delete(ctx context.Context, ownerID, transactionID uuid.UUID) error {
    if b, ok := s.writer.(storage.TxBeginner); ok {
        return retry.OnConflict(ctx, s.log, "delete", s.retry, func() error {
            tx, err := b.BeginTx(ctx)
            if err != nil { return err }
            deleted, err := tx.DeleteTransaction(ctx, ownerID, transactionID)
            if err != nil { _ = tx.Rollback(ctx); return err }
            if _, err := tx.AdjustWalletBalance(ctx, ownerID, deleted.WalletID, -deleted.SignedMinor()); err != nil { _ = tx.Rollback(ctx); return err }
            return tx.Commit(ctx)
        })
    }

    // the row delete is atomic, so only one concurrent caller gets the row and reverses its effect
    t, err := s.writer.DeleteTransaction(ctx, ownerID, transactionID)
    if err != nil { return err }
    err = retry.OnConflict(ctx, s.log, "delete", s.retry, func() error {
        _, err := s.writer.AdjustWalletBalance(ctx, ownerID, t.WalletID, -t.SignedMinor())
        return err
    })
    if err != nil { return s.partial("delete", t, err) }
    return nil
}

func (s *service) partial(op string, t ledger.Transaction, cause error) error {
    telemetry.PartialFailures.WithLabelValues(op).Inc()
    s.log.Error("transaction partially applied; wallet needs reconciliation",
        "op", op,
        "transaction_id", t.ID,
        "wallet_id", t.WalletID,
        "owner_id", t.UserID,
        "err", cause,
    )
    return &errs.PartialFailureError{Op: op, TransactionID: t.ID, WalletID: t.WalletID, Err: cause}
}

// List yields the owner's transactions newest first: date desc, created_at desc, id desc.
func (s *service) List(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID, f ledger.TransactionFilter) iter.Seq2[ledger.Transaction, error] {
    owner, err := access.Authorize(ctx, s.access, viewer, ownerID)
    if err != nil {
        return func(yield func(ledger.Transaction, error) bool) { yield(ledger.Transaction{}, err) }
    }
    if f.Type != nil && !f.Type.Valid() {
        return func(yield func(ledger.Transaction, error) bool) { yield(ledger.Transaction{}, errs.Invalid("type", "must be income or expense")) }
    }
    return s.repo.Transactions(ctx, owner, f)
}

// MonthlySummary totals one calendar month of income and expense, plus the current
// balance across all of the owner's wallets.
func (s *service) MonthlySummary(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID, year, month int) (ledger.Summary, error) {
    if month < 1 || month > 12 { return ledger.Summary{}, errs.Invalid("month", "must be 1-12") }
    if year < 1900 || year > 9999 { return ledger.Summary{}, errs.Invalid("year", "out of range") }
    owner, err := access.Authorize(ctx, s.access, viewer, ownerID)
    if err != nil { return ledger.Summary{}, err }

    from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
    to := from.AddDate(0, 1, -1)
    var income, expense int64
    for t, err := range s.repo.Transactions(ctx, owner, ledger.TransactionFilter{From: &from, To: &to}) {
        if err != nil { return ledger.Summary{}, err }
        units := ledger.Minor(t.Amount)
        if t.Type == ledger.TxIncome { income += units } else { expense += units }
    }
    wallets, err := s.repo.WalletsByUserID(ctx, owner)
    if err != nil { return ledger.Summary{}, err }
    var total int64
    for _, w := range wallets { total += ledger.Minor(w.Balance) }
    return ledger.Summary{
        Year:         year,
        Month:        month,
        Income:       ledger.Amount(s.currency, income),
        Expense:      ledger.Amount(s.currency, expense),
        Net:          ledger.Amount(s.currency, income-expense),
        TotalBalance: ledger.Amount(s.currency, total),
    }, nil
}
