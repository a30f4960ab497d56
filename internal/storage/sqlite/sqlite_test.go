package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fintrack/internal/errs"
	"github.com/tinoosan/fintrack/internal/ledger"
	"github.com/tinoosan/fintrack/internal/meta"
	"github.com/tinoosan/fintrack/internal/service/collab"
	"github.com/tinoosan/fintrack/internal/service/transaction"
	"github.com/tinoosan/fintrack/internal/service/wallet"
	"github.com/tinoosan/fintrack/internal/storage/sqlite"
)

const curr = "IDR"

func open(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type fixture struct {
	st      *sqlite.Store
	txs     transaction.Service
	wallets wallet.Service
	owner   ledger.Identity
	wallet  ledger.Wallet
	income  ledger.Category
	expense ledger.Category
}

func setup(t *testing.T, opening int64) fixture {
	t.Helper()
	ctx := context.Background()
	st := open(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := collab.New(st, st, log)
	wallets := wallet.New(st, st, resolver, curr, log)
	owner := ledger.Identity{ID: uuid.New(), Email: "owner@example.com"}
	w, err := wallets.Create(ctx, owner.ID, "Cash", ledger.Amount(curr, opening))
	require.NoError(t, err)
	inc, err := st.CreateCategory(ctx, ledger.Category{ID: uuid.New(), UserID: owner.ID, Name: "Salary", Type: ledger.TxIncome, CreatedAt: time.Now()})
	require.NoError(t, err)
	exp, err := st.CreateCategory(ctx, ledger.Category{ID: uuid.New(), UserID: owner.ID, Name: "Food", Type: ledger.TxExpense, CreatedAt: time.Now()})
	require.NoError(t, err)
	return fixture{
		st:      st,
		txs:     transaction.New(st, st, resolver, curr, log),
		wallets: wallets,
		owner:   owner,
		wallet:  w,
		income:  inc,
		expense: exp,
	}
}

func (f fixture) draft(typ ledger.TxType, units int64, day int) transaction.Draft {
	cat := f.income.ID
	if typ == ledger.TxExpense {
		cat = f.expense.ID
	}
	return transaction.Draft{
		OwnerID:    f.owner.ID,
		WalletID:   f.wallet.ID,
		CategoryID: cat,
		Type:       typ,
		Amount:     ledger.Amount(curr, units),
		Date:       time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC),
	}
}

func (f fixture) balance(t *testing.T) int64 {
	t.Helper()
	w, err := f.st.WalletByID(context.Background(), f.owner.ID, f.wallet.ID)
	require.NoError(t, err)
	return ledger.Minor(w.Balance)
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := open(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ready(context.Background()))
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fintrack.db")
	st, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(context.Background()))
	assert.FileExists(t, path)
}

func TestBalanceFollowsCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 100000)

	food, err := f.txs.Create(ctx, f.draft(ledger.TxExpense, 30000, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(70000), f.balance(t))

	_, err = f.txs.Create(ctx, f.draft(ledger.TxIncome, 5000, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(75000), f.balance(t))

	require.NoError(t, f.txs.Delete(ctx, f.owner.ID, food.ID))
	assert.Equal(t, int64(105000), f.balance(t))

	err = f.txs.Delete(ctx, f.owner.ID, food.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, int64(105000), f.balance(t))

	rec, err := f.wallets.Recompute(ctx, f.owner.ID, f.wallet.ID)
	require.NoError(t, err)
	assert.Zero(t, rec.DriftMinor)
}

func TestTransactionRoundTripAndOrder(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)

	d := f.draft(ledger.TxIncome, 1234, 3)
	d.Description = "May salary"
	d.Metadata = meta.New(map[string]string{"source": "payroll"})
	first, err := f.txs.Create(ctx, d)
	require.NoError(t, err)
	second, err := f.txs.Create(ctx, f.draft(ledger.TxExpense, 200, 7))
	require.NoError(t, err)

	got, err := f.st.TransactionByID(ctx, f.owner.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "May salary", got.Description)
	assert.Equal(t, "payroll", got.Metadata["source"])
	assert.Equal(t, int64(1234), ledger.Minor(got.Amount))
	assert.True(t, got.Date.Equal(first.Date))

	var ids []uuid.UUID
	for tx, err := range f.st.Transactions(ctx, f.owner.ID, ledger.TransactionFilter{}) {
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []uuid.UUID{second.ID, first.ID}, ids)

	income := ledger.TxIncome
	ids = nil
	for tx, err := range f.st.Transactions(ctx, f.owner.ID, ledger.TransactionFilter{Type: &income}) {
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []uuid.UUID{first.ID}, ids)
}

func TestCreateRejectsForeignWallet(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)
	tr := ledger.Transaction{
		ID: uuid.New(), UserID: uuid.New(), WalletID: f.wallet.ID, CategoryID: f.income.ID,
		Type: ledger.TxIncome, Amount: ledger.Amount(curr, 1), Date: time.Now(), CreatedAt: time.Now(),
	}
	_, err := f.st.CreateTransaction(ctx, tr)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestIdempotentCreateReplays(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)

	first, replayed, err := f.txs.CreateIdempotent(ctx, f.draft(ledger.TxIncome, 500, 1), "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)
	again, replayed, err := f.txs.CreateIdempotent(ctx, f.draft(ledger.TxIncome, 500, 1), "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(500), f.balance(t))

	require.NoError(t, f.txs.Delete(ctx, f.owner.ID, first.ID))
	_, found, err := f.st.TransactionByIdempotencyKey(ctx, f.owner.ID, "key-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWalletWithTransactionsCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)
	tx, err := f.txs.Create(ctx, f.draft(ledger.TxIncome, 10, 1))
	require.NoError(t, err)

	err = f.wallets.Delete(ctx, f.owner.ID, f.wallet.ID)
	assert.ErrorIs(t, err, errs.ErrHasDependents)
	err = f.st.DeleteCategory(ctx, f.owner.ID, f.income.ID)
	assert.ErrorIs(t, err, errs.ErrHasDependents)

	require.NoError(t, f.txs.Delete(ctx, f.owner.ID, tx.ID))
	require.NoError(t, f.wallets.Delete(ctx, f.owner.ID, f.wallet.ID))
	assert.ErrorIs(t, f.wallets.Delete(ctx, f.owner.ID, f.wallet.ID), errs.ErrNotFound)
}

func TestSetBalanceReanchorsOpening(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 1000)
	_, err := f.txs.Create(ctx, f.draft(ledger.TxExpense, 300, 1))
	require.NoError(t, err)

	w, err := f.wallets.SetBalance(ctx, f.owner.ID, f.wallet.ID, ledger.Amount(curr, 5000))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), ledger.Minor(w.Balance))
	assert.Equal(t, int64(5300), ledger.Minor(w.Opening))

	_, err = f.st.AdjustWalletBalance(ctx, f.owner.ID, f.wallet.ID, 42)
	require.NoError(t, err)
	rec, err := f.wallets.Recompute(ctx, f.owner.ID, f.wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-42), rec.DriftMinor)
	assert.Equal(t, int64(5000), f.balance(t))
}

func TestDebtFilters(t *testing.T) {
	ctx := context.Background()
	st := open(t)
	owner := uuid.New()
	mk := func(name string, typ ledger.DebtType, due time.Time) ledger.Debt {
		d, err := st.CreateDebt(ctx, ledger.Debt{
			ID: uuid.New(), UserID: owner, Name: name, Type: typ, Amount: ledger.Amount(curr, 100),
			DueDate: due, Status: ledger.DebtOpen, CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		return d
	}
	rent := mk("Rent May", ledger.DebtPayable, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC))
	loan := mk("Loan to Budi", ledger.DebtReceivable, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	mk("Rent June", ledger.DebtPayable, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))

	got, err := st.Debts(ctx, owner, ledger.DebtFilter{Year: 2024, Month: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, loan.ID, got[0].ID)
	assert.Equal(t, rent.ID, got[1].ID)

	payable := ledger.DebtPayable
	got, err = st.Debts(ctx, owner, ledger.DebtFilter{Name: "rent", Type: &payable})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = st.SetDebtStatus(ctx, owner, rent.ID, ledger.DebtSettled)
	require.NoError(t, err)
	settled := ledger.DebtSettled
	got, err = st.Debts(ctx, owner, ledger.DebtFilter{Status: &settled})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rent.ID, got[0].ID)

	require.NoError(t, st.DeleteDebt(ctx, owner, rent.ID))
	assert.ErrorIs(t, st.DeleteDebt(ctx, owner, rent.ID), errs.ErrNotFound)
}

func TestCollaborationLifecycle(t *testing.T) {
	ctx := context.Background()
	st := open(t)
	svc := collab.New(st, st, nil)
	requester := ledger.Identity{ID: uuid.New(), Email: "ana@example.com"}
	owner := ledger.Identity{ID: uuid.New(), Email: "budi@example.com"}

	g, err := svc.RequestAccess(ctx, requester, owner.Email)
	require.NoError(t, err)
	_, err = svc.RequestAccess(ctx, requester, "BUDI@example.com")
	assert.ErrorIs(t, err, errs.ErrDuplicateRequest)

	in, err := svc.Incoming(ctx, owner.Email)
	require.NoError(t, err)
	require.Len(t, in, 1)

	accepted, err := svc.Accept(ctx, owner, g.ID)
	require.NoError(t, err)
	require.NotNil(t, accepted.OwnerID)
	assert.Equal(t, owner.ID, *accepted.OwnerID)

	_, err = svc.Reject(ctx, owner, g.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = svc.RequestAccess(ctx, requester, owner.Email)
	assert.ErrorIs(t, err, errs.ErrDuplicateRequest)

	viewable, err := svc.ResolveViewableOwners(ctx, requester.ID, requester.Email)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ledger.Identity{requester, owner}, viewable)

	out, err := svc.Outgoing(ctx, requester.ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ledger.GrantAccepted, out[0].Status)
}

func TestSessionsAndUsers(t *testing.T) {
	ctx := context.Background()
	st := open(t)
	u := ledger.User{ID: uuid.New(), Email: "ana@example.com", PasswordHash: "hash", CreatedAt: time.Now()}
	_, err := st.CreateUser(ctx, u)
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, ledger.User{ID: uuid.New(), Email: u.Email, PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)

	got, err := st.UserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = st.UserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	revoked, err := st.SessionRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
	require.NoError(t, st.RevokeSession(ctx, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, st.RevokeSession(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = st.SessionRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
