package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/tinoosan/fintrack/internal/meta"
)

// TxType classifies a transaction and the category it is posted under.
type TxType string

const (
	// TxIncome adds to the wallet balance.
	TxIncome TxType = "income"
	// TxExpense subtracts from the wallet balance.
	TxExpense TxType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool { return t == TxIncome || t == TxExpense }

// DebtType says which way a debt points.
type DebtType string

const (
	// DebtPayable is money the owner owes.
	DebtPayable DebtType = "payable"
	// DebtReceivable is money owed to the owner.
	DebtReceivable DebtType = "receivable"
)

func (t DebtType) Valid() bool { return t == DebtPayable || t == DebtReceivable }

// DebtStatus tracks whether a debt is still outstanding.
type DebtStatus string

const (
	DebtOpen    DebtStatus = "open"
	DebtSettled DebtStatus = "settled"
)

func (s DebtStatus) Valid() bool { return s == DebtOpen || s == DebtSettled }

// GrantStatus is the lifecycle state of a collaboration grant.
type GrantStatus string

const (
	GrantPending  GrantStatus = "pending"
	GrantAccepted GrantStatus = "accepted"
	GrantRejected GrantStatus = "rejected"
)

// User is a registered account holder.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the authenticated subject: who is asking, and under which email.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Wallet is a named store of value belonging to one user.
type Wallet struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Name     string
	Currency string
	// Balance is the cached running balance; it changes only through transaction effects or SetBalance.
	Balance money.Amount
	// Opening anchors reconciliation: Balance == Opening + sum of signed transaction amounts.
	Opening   money.Amount
	CreatedAt time.Time
}

// Category labels transactions of one type for one user.
type Category struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Type      TxType
	CreatedAt time.Time
}

// Transaction is a single income or expense movement against a wallet.
type Transaction struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	WalletID    uuid.UUID
	CategoryID  uuid.UUID
	Type        TxType
	// Amount is always non-negative; the sign comes from Type.
	Amount      money.Amount
	Description string
	Date        time.Time
	Metadata    meta.Metadata `json:"metadata,omitempty"`
	CreatedAt   time.Time
}

// SignedMinor returns the balance effect of t in minor units.
func (t Transaction) SignedMinor() int64 {
	units, _ := t.Amount.MinorUnits()
	return SignedMinor(t.Type, units)
}

// SignedMinor applies the sign of typ to a non-negative amount.
func SignedMinor(typ TxType, units int64) int64 {
	if typ == TxExpense {
		return -units
	}
	return units
}

// TransactionFilter narrows a transaction listing. Nil fields do not filter.
type TransactionFilter struct {
	From       *time.Time
	To         *time.Time
	Type       *TxType
	WalletID   *uuid.UUID
	CategoryID *uuid.UUID
}

// Match reports whether tx passes every set field of f. From/To are inclusive.
func (f TransactionFilter) Match(tx Transaction) bool {
	if f.From != nil && tx.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.Date.After(*f.To) {
		return false
	}
	if f.Type != nil && tx.Type != *f.Type {
		return false
	}
	if f.WalletID != nil && tx.WalletID != *f.WalletID {
		return false
	}
	if f.CategoryID != nil && tx.CategoryID != *f.CategoryID {
		return false
	}
	return true
}

// TransactionLess orders transactions newest first: date desc, created_at desc, id desc.
func TransactionLess(a, b Transaction) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return strings.Compare(a.ID.String(), b.ID.String()) > 0
}

// Debt is an outstanding payable or receivable. Debts never touch wallet balances.
type Debt struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Type      DebtType
	Amount    money.Amount
	DueDate   time.Time
	Status    DebtStatus
	Note      string
	CreatedAt time.Time
}

// DebtFilter narrows a debt listing. Zero values do not filter.
type DebtFilter struct {
	Name   string
	Year   int
	Month  int
	Status *DebtStatus
	Type   *DebtType
}

// Match reports whether d passes every set field of f. Name is a case-insensitive substring match.
func (f DebtFilter) Match(d Debt) bool {
	if n := strings.TrimSpace(f.Name); n != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(n)) {
		return false
	}
	if f.Year != 0 && d.DueDate.Year() != f.Year {
		return false
	}
	if f.Month != 0 && int(d.DueDate.Month()) != f.Month {
		return false
	}
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.Type != nil && d.Type != *f.Type {
		return false
	}
	return true
}

// CollaborationGrant lets RequesterID read the data of the user holding OwnerEmail once accepted.
type CollaborationGrant struct {
	ID             uuid.UUID
	RequesterID    uuid.UUID
	RequesterEmail string
	OwnerEmail     string
	// OwnerID is set when the owner accepts.
	OwnerID   *uuid.UUID
	Status    GrantStatus
	CreatedAt time.Time
}

// Reconciliation reports the outcome of recomputing one wallet balance.
type Reconciliation struct {
	WalletID uuid.UUID
	Before   money.Amount
	After    money.Amount
	// DriftMinor is After - Before in minor units; zero when the cached balance was correct.
	DriftMinor int64
}

// Summary aggregates one month of an owner's activity.
type Summary struct {
	Year         int
	Month        int
	Income       money.Amount
	Expense      money.Amount
	Net          money.Amount
	TotalBalance money.Amount
}

// NormalizeEmail trims and lowercases an email for comparison and storage.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Amount builds a money.Amount from minor units, panicking on an unknown currency.
// Currencies are validated at configuration time.
func Amount(curr string, units int64) money.Amount {
	a, err := money.NewAmountFromMinorUnits(curr, units)
	if err != nil {
		panic(err)
	}
	return a
}

// Minor returns the minor units of a; amounts with more precision than the currency allows are truncated.
func Minor(a money.Amount) int64 {
	units, _ := a.MinorUnits()
	return units
}
