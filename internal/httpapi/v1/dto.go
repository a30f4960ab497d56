package v1

import (
    "time"

    "github.com/google/uuid"

    "github.com/tinoosan/fintrack/internal/ledger"
)

type credentialsRequest struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type partialFailureResponse struct {
    Error         string    `json:"error"`
    Code          string    `json:"code"`
    Op            string    `json:"op"`
    TransactionID uuid.UUID `json:"transaction_id"`
    WalletID      uuid.UUID `json:"wallet_id"`
}

// Wallets

type postWalletRequest struct {
    Name           string `json:"name"`
    InitialBalance int64  `json:"initial_balance_minor"`
}

type putBalanceRequest struct {
    BalanceMinor int64 `json:"balance_minor"`
}

type walletResponse struct {
    ID           uuid.UUID `json:"id"`
    UserID       uuid.UUID `json:"user_id"`
    Name         string    `json:"name"`
    Currency     string    `json:"currency"`
    BalanceMinor int64     `json:"balance_minor"`
    Balance      string    `json:"balance"`
    OpeningMinor int64     `json:"opening_minor"`
    CreatedAt    time.Time `json:"created_at"`
}

func toWalletResponse(w ledger.Wallet) walletResponse {
    return walletResponse{
        ID:           w.ID,
        UserID:       w.UserID,
        Name:         w.Name,
        Currency:     w.Currency,
        BalanceMinor: ledger.Minor(w.Balance),
        Balance:      w.Balance.String(),
        OpeningMinor: ledger.Minor(w.Opening),
        CreatedAt:    w.CreatedAt,
    }
}

type reconciliationResponse struct {
    WalletID    uuid.UUID `json:"wallet_id"`
    BeforeMinor int64     `json:"before_minor"`
    AfterMinor  int64     `json:"after_minor"`
    DriftMinor  int64     `json:"drift_minor"`
}

// Categories

type postCategoryRequest struct {
    Name string        `json:"name"`
    Type ledger.TxType `json:"type"`
}

type categoryResponse struct {
    ID        uuid.UUID     `json:"id"`
    UserID    uuid.UUID     `json:"user_id"`
    Name      string        `json:"name"`
    Type      ledger.TxType `json:"type"`
    CreatedAt time.Time     `json:"created_at"`
}

func toCategoryResponse(c ledger.Category) categoryResponse {
    return categoryResponse{ID: c.ID, UserID: c.UserID, Name: c.Name, Type: c.Type, CreatedAt: c.CreatedAt}
}

// Transactions

type postTransactionRequest struct {
    WalletID    uuid.UUID         `json:"wallet_id"`
    CategoryID  uuid.UUID         `json:"category_id"`
    Type        ledger.TxType     `json:"type"`
    AmountMinor int64             `json:"amount_minor"`
    Description string            `json:"description"`
    Date        time.Time         `json:"date"`
    Metadata    map[string]string `json:"metadata,omitempty"`
}

type transactionResponse struct {
    ID          uuid.UUID         `json:"id"`
    UserID      uuid.UUID         `json:"user_id"`
    WalletID    uuid.UUID         `json:"wallet_id"`
    CategoryID  uuid.UUID         `json:"category_id"`
    Type        ledger.TxType     `json:"type"`
    AmountMinor int64             `json:"amount_minor"`
    Amount      string            `json:"amount"`
    Currency    string            `json:"currency"`
    Description string            `json:"description"`
    Date        time.Time         `json:"date"`
    Metadata    map[string]string `json:"metadata,omitempty"`
    CreatedAt   time.Time         `json:"created_at"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
    return transactionResponse{
        ID:          t.ID,
        UserID:      t.UserID,
        WalletID:    t.WalletID,
        CategoryID:  t.CategoryID,
        Type:        t.Type,
        AmountMinor: ledger.Minor(t.Amount),
        Amount:      t.Amount.String(),
        Currency:    t.Amount.Curr().Code(),
        Description: t.Description,
        Date:        t.Date,
        Metadata:    t.Metadata,
        CreatedAt:   t.CreatedAt,
    }
}

type summaryResponse struct {
    Year              int   `json:"year"`
    Month             int   `json:"month"`
    IncomeMinor       int64 `json:"income_minor"`
    ExpenseMinor      int64 `json:"expense_minor"`
    NetMinor          int64 `json:"net_minor"`
    TotalBalanceMinor int64 `json:"total_balance_minor"`
}

// Debts

type postDebtRequest struct {
    Name        string          `json:"name"`
    Type        ledger.DebtType `json:"type"`
    AmountMinor int64           `json:"amount_minor"`
    DueDate     time.Time       `json:"due_date"`
    Note        string          `json:"note"`
}

type patchDebtStatusRequest struct {
    Status ledger.DebtStatus `json:"status"`
}

type debtResponse struct {
    ID          uuid.UUID         `json:"id"`
    UserID      uuid.UUID         `json:"user_id"`
    Name        string            `json:"name"`
    Type        ledger.DebtType   `json:"type"`
    AmountMinor int64             `json:"amount_minor"`
    Amount      string            `json:"amount"`
    DueDate     time.Time         `json:"due_date"`
    Status      ledger.DebtStatus `json:"status"`
    Note        string            `json:"note,omitempty"`
    CreatedAt   time.Time         `json:"created_at"`
}

func toDebtResponse(d ledger.Debt) debtResponse {
    return debtResponse{
        ID:          d.ID,
        UserID:      d.UserID,
        Name:        d.Name,
        Type:        d.Type,
        AmountMinor: ledger.Minor(d.Amount),
        Amount:      d.Amount.String(),
        DueDate:     d.DueDate,
        Status:      d.Status,
        Note:        d.Note,
        CreatedAt:   d.CreatedAt,
    }
}

// Collaborations

type postCollaborationRequest struct {
    OwnerEmail string `json:"owner_email"`
}

type collaborationResponse struct {
    ID             uuid.UUID          `json:"id"`
    RequesterID    uuid.UUID          `json:"requester_id"`
    RequesterEmail string             `json:"requester_email"`
    OwnerEmail     string             `json:"owner_email"`
    OwnerID        *uuid.UUID         `json:"owner_id,omitempty"`
    Status         ledger.GrantStatus `json:"status"`
    CreatedAt      time.Time          `json:"created_at"`
}

func toCollaborationResponse(g ledger.CollaborationGrant) collaborationResponse {
    return collaborationResponse{
        ID:             g.ID,
        RequesterID:    g.RequesterID,
        RequesterEmail: g.RequesterEmail,
        OwnerEmail:     g.OwnerEmail,
        OwnerID:        g.OwnerID,
        Status:         g.Status,
        CreatedAt:      g.CreatedAt,
    }
}

// listResponse wraps collections so the payload can grow without breaking clients.
type listResponse[T any] struct {
    Items []T `json:"items"`
}

func mapItems[S, T any](in []S, f func(S) T) listResponse[T] {
    out := make([]T, 0, len(in))
    for _, v := range in { out = append(out, f(v)) }
    return listResponse[T]{Items: out}
}
