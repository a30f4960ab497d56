// Package debt tracks payables and receivables. Debts are a separate sub-ledger:
// settling one never moves a wallet balance.
package debt

import (
    "context"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
    "github.com/tinoosan/fintrack/internal/service/access"
)

type Repo interface {
    DebtByID(ctx context.Context, userID, debtID uuid.UUID) (ledger.Debt, error)
    // Debts returns the owner's debts matching f ordered by due date ascending.
    Debts(ctx context.Context, userID uuid.UUID, f ledger.DebtFilter) ([]ledger.Debt, error)
}

type Writer interface {
    CreateDebt(ctx context.Context, d ledger.Debt) (ledger.Debt, error)
    SetDebtStatus(ctx context.Context, userID, debtID uuid.UUID, status ledger.DebtStatus) (ledger.Debt, error)
    DeleteDebt(ctx context.Context, userID, debtID uuid.UUID) error
}

// Draft is the caller's input for a new debt.
type Draft struct {
    OwnerID uuid.UUID
    Name    string
    Type    ledger.DebtType
    Amount  money.Amount
    DueDate time.Time
    Note    string
}

type Service interface {
    Create(ctx context.Context, d Draft) (ledger.Debt, error)
    List(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID, f ledger.DebtFilter) ([]ledger.Debt, error)
    Get(ctx context.Context, viewer ledger.Identity, ownerID, debtID uuid.UUID) (ledger.Debt, error)
    SetStatus(ctx context.Context, ownerID, debtID uuid.UUID, status ledger.DebtStatus) (ledger.Debt, error)
    Delete(ctx context.Context, ownerID, debtID uuid.UUID) error
}

type service struct {
    repo     Repo
    writer   Writer
    access   access.Resolver
    currency string
}

func New(repo Repo, writer Writer, resolver access.Resolver, currency string) Service {
    return &service{repo: repo, writer: writer, access: resolver, currency: strings.ToUpper(currency)}
}

func (s *service) Create(ctx context.Context, d Draft) (ledger.Debt, error) {
    if d.OwnerID == uuid.Nil { return ledger.Debt{}, errs.Invalid("owner_id", "required") }
    name := strings.TrimSpace(d.Name)
    if name == "" { return ledger.Debt{}, errs.Invalid("name", "required") }
    if !d.Type.Valid() { return ledger.Debt{}, errs.Invalid("type", "must be payable or receivable") }
    if d.Amount.Curr().Code() != s.currency { return ledger.Debt{}, errs.Invalid("amount", "currency must be "+s.currency) }
    units, ok := d.Amount.MinorUnits()
    if !ok { return ledger.Debt{}, errs.Invalid("amount", "too many decimal places") }
    if units < 0 { return ledger.Debt{}, errs.Invalid("amount", "must be >= 0") }
    if d.DueDate.IsZero() { return ledger.Debt{}, errs.Invalid("due_date", "required") }
    y, m, day := d.DueDate.Date()
    debt := ledger.Debt{
        ID:        uuid.New(),
        UserID:    d.OwnerID,
        Name:      name,
        Type:      d.Type,
        Amount:    d.Amount,
        DueDate:   time.Date(y, m, day, 0, 0, 0, 0, time.UTC),
        Status:    ledger.DebtOpen,
        Note:      strings.TrimSpace(d.Note),
        CreatedAt: time.Now().UTC(),
    }
    return s.writer.CreateDebt(ctx, debt)
}

func (s *service) List(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID, f ledger.DebtFilter) ([]ledger.Debt, error) {
    if f.Month < 0 || f.Month > 12 { return nil, errs.Invalid("month", "must be 1-12") }
    if f.Month != 0 && f.Year == 0 { return nil, errs.Invalid("year", "required with month") }
    if f.Status != nil && !f.Status.Valid() { return nil, errs.Invalid("status", "must be open or settled") }
    if f.Type != nil && !f.Type.Valid() { return nil, errs.Invalid("type", "must be payable or receivable") }
    owner, err := access.Authorize(ctx, s.access, viewer, ownerID)
    if err != nil { return nil, err }
    f.Name = strings.TrimSpace(f.Name)
    return s.repo.Debts(ctx, owner, f)
}

func (s *service) Get(ctx context.Context, viewer ledger.Identity, ownerID, debtID uuid.UUID) (ledger.Debt, error) {
    owner, err := access.Authorize(ctx, s.access, viewer, ownerID)
    if err != nil { return ledger.Debt{}, err }
    return s.repo.DebtByID(ctx, owner, debtID)
}

func (s *service) SetStatus(ctx context.Context, ownerID, debtID uuid.UUID, status ledger.DebtStatus) (ledger.Debt, error) {
    if !status.Valid() { return ledger.Debt{}, errs.Invalid("status", "must be open or settled") }
    return s.writer.SetDebtStatus(ctx, ownerID, debtID, status)
}

func (s *service) Delete(ctx context.Context, ownerID, debtID uuid.UUID) error {
    return s.writer.DeleteDebt(ctx, ownerID, debtID)
}
