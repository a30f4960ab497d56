package transaction_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
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
	"github.com/tinoosan/fintrack/internal/storage/memory"
)

const curr = "IDR"

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fixture struct {
	store   *memory.Store
	svc     transaction.Service
	wallets wallet.Service
	owner   ledger.Identity
	wallet  ledger.Wallet
	income  ledger.Category
	expense ledger.Category
}

func setup(t *testing.T, opening int64) fixture {
	t.Helper()
	st := memory.New()
	return setupWith(t, st, st, opening)
}

func setupWith(t *testing.T, st *memory.Store, writer transaction.Writer, opening int64) fixture {
	t.Helper()
	ctx := context.Background()
	resolver := collab.New(st, st, testLogger())
	wallets := wallet.New(st, st, resolver, curr, testLogger())
	owner := ledger.Identity{ID: uuid.New(), Email: "owner@example.com"}
	w, err := wallets.Create(ctx, owner.ID, "Cash", ledger.Amount(curr, opening))
	require.NoError(t, err)
	inc, err := st.CreateCategory(ctx, ledger.Category{ID: uuid.New(), UserID: owner.ID, Name: "Salary", Type: ledger.TxIncome})
	require.NoError(t, err)
	exp, err := st.CreateCategory(ctx, ledger.Category{ID: uuid.New(), UserID: owner.ID, Name: "Food", Type: ledger.TxExpense})
	require.NoError(t, err)
	return fixture{
		store:   st,
		svc:     transaction.New(st, writer, resolver, curr, testLogger()),
		wallets: wallets,
		owner:   owner,
		wallet:  w,
		income:  inc,
		expense: exp,
	}
}

func (f fixture) draft(typ ledger.TxType, units int64) transaction.Draft {
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
		Date:       time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC),
	}
}

func (f fixture) balance(t *testing.T) int64 {
	t.Helper()
	w, err := f.store.WalletByID(context.Background(), f.owner.ID, f.wallet.ID)
	require.NoError(t, err)
	return ledger.Minor(w.Balance)
}

func (f fixture) count(t *testing.T) int {
	t.Helper()
	n := 0
	for _, err := range f.svc.List(context.Background(), f.owner, uuid.Nil, ledger.TransactionFilter{}) {
		require.NoError(t, err)
		n++
	}
	return n
}

func TestBalanceScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 100000)

	first, err := f.svc.Create(ctx, f.draft(ledger.TxExpense, 30000))
	require.NoError(t, err)
	assert.Equal(t, int64(70000), f.balance(t))

	_, err = f.svc.Create(ctx, f.draft(ledger.TxIncome, 5000))
	require.NoError(t, err)
	assert.Equal(t, int64(75000), f.balance(t))

	require.NoError(t, f.svc.Delete(ctx, f.owner.ID, first.ID))
	assert.Equal(t, int64(105000), f.balance(t))
}

func TestCreateThenDeleteRestoresState(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 5000)
	before := f.balance(t)

	tx, err := f.svc.Create(ctx, f.draft(ledger.TxExpense, 7500))
	require.NoError(t, err)
	assert.Equal(t, int64(-2500), f.balance(t), "expenses may overdraw")
	require.NoError(t, f.svc.Delete(ctx, f.owner.ID, tx.ID))

	assert.Equal(t, before, f.balance(t))
	assert.Equal(t, 0, f.count(t))
}

func TestCategoryTypeMismatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 1000)
	d := f.draft(ledger.TxIncome, 100)
	d.CategoryID = f.expense.ID

	_, err := f.svc.Create(ctx, d)
	require.ErrorIs(t, err, errs.ErrInvalid)
	assert.Equal(t, int64(1000), f.balance(t))
	assert.Equal(t, 0, f.count(t))
}

func TestValidateRejects(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 1000)
	other := setup(t, 0)

	cases := map[string]func(d *transaction.Draft){
		"negative amount":  func(d *transaction.Draft) { d.Amount = ledger.Amount(curr, -1) },
		"unknown wallet":   func(d *transaction.Draft) { d.WalletID = uuid.New() },
		"foreign wallet":   func(d *transaction.Draft) { d.WalletID = other.wallet.ID },
		"unknown category": func(d *transaction.Draft) { d.CategoryID = uuid.New() },
		"bad type":         func(d *transaction.Draft) { d.Type = "transfer" },
		"no date":          func(d *transaction.Draft) { d.Date = time.Time{} },
		"wrong currency":   func(d *transaction.Draft) { d.Amount = ledger.Amount("USD", 100) },
		"bad metadata":     func(d *transaction.Draft) { d.Metadata = meta.Metadata{"": "x"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := f.draft(ledger.TxIncome, 100)
			mutate(&d)
			assert.ErrorIs(t, f.svc.Validate(ctx, d), errs.ErrInvalid)
		})
	}
	assert.NoError(t, f.svc.Validate(ctx, f.draft(ledger.TxIncome, 0)), "zero amount is allowed")
}

func TestDeleteUnknownIsNotFound(t *testing.T) {
	f := setup(t, 0)
	err := f.svc.Delete(context.Background(), f.owner.ID, uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	tx, err := f.svc.Create(context.Background(), f.draft(ledger.TxIncome, 10))
	require.NoError(t, err)
	stranger := uuid.New()
	assert.ErrorIs(t, f.svc.Delete(context.Background(), stranger, tx.ID), errs.ErrNotFound)
	assert.Equal(t, int64(10), f.balance(t))
}

func TestRandomSequencesKeepInvariant(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 50000)
	rng := rand.New(rand.NewSource(7))
	live := map[uuid.UUID]ledger.Transaction{}

	for i := 0; i < 200; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			for id := range live {
				require.NoError(t, f.svc.Delete(ctx, f.owner.ID, id))
				delete(live, id)
				break
			}
			continue
		}
		typ := ledger.TxIncome
		if rng.Intn(2) == 0 {
			typ = ledger.TxExpense
		}
		tx, err := f.svc.Create(ctx, f.draft(typ, int64(rng.Intn(10000))))
		require.NoError(t, err)
		live[tx.ID] = tx
	}

	want := int64(50000)
	for _, tx := range live {
		want += tx.SignedMinor()
	}
	assert.Equal(t, want, f.balance(t))

	rec, err := f.wallets.Recompute(ctx, f.owner.ID, f.wallet.ID)
	require.NoError(t, err)
	assert.Zero(t, rec.DriftMinor)
}

func TestConcurrentCreatesDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.draft(ledger.TxIncome, 100))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(5000), f.balance(t))
}

// failingWriter lets the insert through and fails every balance adjustment.
type failingWriter struct {
	*memory.Store
	adjustErr error
	deleteErr error
}

func (w *failingWriter) AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, delta int64) (ledger.Wallet, error) {
	if w.adjustErr != nil {
		return ledger.Wallet{}, w.adjustErr
	}
	return w.Store.AdjustWalletBalance(ctx, userID, walletID, delta)
}

func (w *failingWriter) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) (ledger.Transaction, error) {
	if w.deleteErr != nil {
		return ledger.Transaction{}, w.deleteErr
	}
	return w.Store.DeleteTransaction(ctx, userID, id)
}

func TestCreatePartialFailureIsReportedAndRepairable(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	fw := &failingWriter{Store: st, adjustErr: errors.New("connection reset")}
	f := setupWith(t, st, fw, 1000)

	tx, err := f.svc.Create(ctx, f.draft(ledger.TxIncome, 250))
	require.ErrorIs(t, err, errs.ErrPartialFailure)
	var pf *errs.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "create", pf.Op)
	assert.Equal(t, tx.ID, pf.TransactionID)
	assert.Equal(t, f.wallet.ID, pf.WalletID)

	assert.Equal(t, 1, f.count(t), "row exists without its balance effect")
	assert.Equal(t, int64(1000), f.balance(t))

	rec, err := f.wallets.Recompute(ctx, f.owner.ID, f.wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), rec.DriftMinor)
	assert.Equal(t, int64(1250), f.balance(t))
}

func TestCreateTotalFailureIsNotPartial(t *testing.T) {
	f := setup(t, 0)
	d := f.draft(ledger.TxIncome, 1)
	d.WalletID = uuid.New()
	_, err := f.svc.Create(context.Background(), d)
	assert.False(t, errors.Is(err, errs.ErrPartialFailure))
}

func TestDeletePartialFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	fw := &failingWriter{Store: st}
	f := setupWith(t, st, fw, 1000)
	tx, err := f.svc.Create(ctx, f.draft(ledger.TxExpense, 400))
	require.NoError(t, err)

	fw.adjustErr = errors.New("timeout")
	err = f.svc.Delete(ctx, f.owner.ID, tx.ID)
	require.ErrorIs(t, err, errs.ErrPartialFailure)
	var pf *errs.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "delete", pf.Op)
	assert.Equal(t, tx.ID, pf.TransactionID)
	assert.Equal(t, 0, f.count(t), "row removed")
	assert.Equal(t, int64(600), f.balance(t), "inverse not applied")

	rec, err := f.wallets.Recompute(ctx, f.owner.ID, f.wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), rec.DriftMinor)
	assert.Equal(t, int64(1000), ledger.Minor(rec.After))
}

func TestDeleteFailureBeforeRowRemovalIsNotPartial(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	fw := &failingWriter{Store: st}
	f := setupWith(t, st, fw, 1000)
	tx, err := f.svc.Create(ctx, f.draft(ledger.TxExpense, 400))
	require.NoError(t, err)

	fw.deleteErr = errors.New("timeout")
	err = f.svc.Delete(ctx, f.owner.ID, tx.ID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errs.ErrPartialFailure))
	assert.Equal(t, 1, f.count(t))
	assert.Equal(t, int64(600), f.balance(t))
}

// slowAdjustWriter widens the window between the row write and the balance write.
type slowAdjustWriter struct {
	*memory.Store
}

func (w *slowAdjustWriter) AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, delta int64) (ledger.Wallet, error) {
	time.Sleep(5 * time.Millisecond)
	return w.Store.AdjustWalletBalance(ctx, userID, walletID, delta)
}

func TestConcurrentDeletesReverseOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	f := setupWith(t, st, &slowAdjustWriter{Store: st}, 100000)
	tx, err := f.svc.Create(ctx, f.draft(ledger.TxExpense, 30000))
	require.NoError(t, err)
	require.Equal(t, int64(70000), f.balance(t))

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.svc.Delete(ctx, f.owner.ID, tx.ID)
		}()
	}
	wg.Wait()
	close(results)

	var ok, notFound int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrNotFound):
			assert.False(t, errors.Is(err, errs.ErrPartialFailure))
			notFound++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, notFound)
	assert.Equal(t, int64(100000), f.balance(t))
}

func TestConflictIsRetried(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	fw := &flakyWriter{Store: st, failures: 2}
	f := setupWith(t, st, fw, 0)
	_, err := f.svc.Create(ctx, f.draft(ledger.TxIncome, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.balance(t))
	assert.Equal(t, 3, fw.calls)
}

type flakyWriter struct {
	*memory.Store
	failures int
	calls    int
}

func (w *flakyWriter) AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, delta int64) (ledger.Wallet, error) {
	w.calls++
	if w.calls <= w.failures {
		return ledger.Wallet{}, errs.ErrConflict
	}
	return w.Store.AdjustWalletBalance(ctx, userID, walletID, delta)
}

func TestIdempotentCreateAppliesOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)
	first, replayed, err := f.svc.CreateIdempotent(ctx, f.draft(ledger.TxIncome, 500), "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)
	again, replayed, err := f.svc.CreateIdempotent(ctx, f.draft(ledger.TxIncome, 500), "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(500), f.balance(t))
}

func TestListOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)
	mk := func(typ ledger.TxType, day int) ledger.Transaction {
		d := f.draft(typ, 100)
		d.Date = time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC)
		tx, err := f.svc.Create(ctx, d)
		require.NoError(t, err)
		return tx
	}
	a := mk(ledger.TxIncome, 1)
	b := mk(ledger.TxExpense, 3)
	c := mk(ledger.TxIncome, 3)

	var got []uuid.UUID
	for tx, err := range f.svc.List(ctx, f.owner, uuid.Nil, ledger.TransactionFilter{}) {
		require.NoError(t, err)
		got = append(got, tx.ID)
	}
	assert.Equal(t, []uuid.UUID{c.ID, b.ID, a.ID}, got, "date desc then created_at desc")

	exp := ledger.TxExpense
	got = nil
	for tx, err := range f.svc.List(ctx, f.owner, uuid.Nil, ledger.TransactionFilter{Type: &exp}) {
		require.NoError(t, err)
		got = append(got, tx.ID)
	}
	assert.Equal(t, []uuid.UUID{b.ID}, got)

	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	got = nil
	for tx, err := range f.svc.List(ctx, f.owner, uuid.Nil, ledger.TransactionFilter{From: &from}) {
		require.NoError(t, err)
		got = append(got, tx.ID)
	}
	assert.Len(t, got, 2)
}

func TestListRequiresGrant(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)
	_, err := f.svc.Create(ctx, f.draft(ledger.TxIncome, 1))
	require.NoError(t, err)

	viewer := ledger.Identity{ID: uuid.New(), Email: "viewer@example.com"}
	for _, err := range f.svc.List(ctx, viewer, f.owner.ID, ledger.TransactionFilter{}) {
		assert.ErrorIs(t, err, errs.ErrForbidden)
	}

	collabs := collab.New(f.store, f.store, testLogger())
	g, err := collabs.RequestAccess(ctx, viewer, f.owner.Email)
	require.NoError(t, err)
	_, err = collabs.Accept(ctx, f.owner, g.ID)
	require.NoError(t, err)

	n := 0
	for _, err := range f.svc.List(ctx, viewer, f.owner.ID, ledger.TransactionFilter{}) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)
}

func TestMonthlySummary(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 10000)
	in := f.draft(ledger.TxIncome, 3000)
	in.Date = time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	out := f.draft(ledger.TxExpense, 1200)
	out.Date = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	other := f.draft(ledger.TxExpense, 999)
	other.Date = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, d := range []transaction.Draft{in, out, other} {
		_, err := f.svc.Create(ctx, d)
		require.NoError(t, err)
	}

	s, err := f.svc.MonthlySummary(ctx, f.owner, uuid.Nil, 2024, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), ledger.Minor(s.Income))
	assert.Equal(t, int64(1200), ledger.Minor(s.Expense))
	assert.Equal(t, int64(1800), ledger.Minor(s.Net))
	assert.Equal(t, int64(10000+3000-1200-999), ledger.Minor(s.TotalBalance))

	_, err = f.svc.MonthlySummary(ctx, f.owner, uuid.Nil, 2024, 13)
	assert.ErrorIs(t, err, errs.ErrInvalid)
}
