// Package memory provides an in-memory store used for development and tests.
// It implements every repository the services need but not storage.TxBeginner,
// so services exercise their non-transactional path against it.
package memory

import (
    "context"
    "iter"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
)

// Store is guarded by an RWMutex for concurrent reads/writes.
// Balance adjustments happen under the write lock, so concurrent increments never lose updates.
type Store struct {
    mu           sync.RWMutex
    users        map[uuid.UUID]ledger.User
    revoked      map[string]time.Time
    wallets      map[uuid.UUID]ledger.Wallet
    categories   map[uuid.UUID]ledger.Category
    transactions map[uuid.UUID]ledger.Transaction
    debts        map[uuid.UUID]ledger.Debt
    grants       map[uuid.UUID]ledger.CollaborationGrant
    // Idempotency: userID -> key -> transactionID
    txIdem map[uuid.UUID]map[string]uuid.UUID
}

// New constructs an empty in-memory store.
func New() *Store {
    s := &Store{}
    s.Reset()
    return s
}

// Reset drops all data.
func (s *Store) Reset() {
    s.mu.Lock()
    s.users = map[uuid.UUID]ledger.User{}
    s.revoked = map[string]time.Time{}
    s.wallets = map[uuid.UUID]ledger.Wallet{}
    s.categories = map[uuid.UUID]ledger.Category{}
    s.transactions = map[uuid.UUID]ledger.Transaction{}
    s.debts = map[uuid.UUID]ledger.Debt{}
    s.grants = map[uuid.UUID]ledger.CollaborationGrant{}
    s.txIdem = map[uuid.UUID]map[string]uuid.UUID{}
    s.mu.Unlock()
}

// Ready always succeeds.
func (s *Store) Ready(context.Context) error { return nil }

// --- Users and sessions ---

func (s *Store) CreateUser(_ context.Context, u ledger.User) (ledger.User, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    for _, existing := range s.users {
        if existing.Email == u.Email { return ledger.User{}, errs.ErrAlreadyExists }
    }
    s.users[u.ID] = u
    return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (ledger.User, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    for _, u := range s.users {
        if u.Email == email { return u, nil }
    }
    return ledger.User{}, errs.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id uuid.UUID) (ledger.User, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    u, ok := s.users[id]
    if !ok { return ledger.User{}, errs.ErrNotFound }
    return u, nil
}

// RevokeSession records jti as signed out. Expired entries are pruned on the way.
func (s *Store) RevokeSession(_ context.Context, jti string, expiresAt time.Time) error {
    s.mu.Lock(); defer s.mu.Unlock()
    now := time.Now()
    for k, exp := range s.revoked {
        if exp.Before(now) { delete(s.revoked, k) }
    }
    s.revoked[jti] = expiresAt
    return nil
}

func (s *Store) SessionRevoked(_ context.Context, jti string) (bool, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    _, ok := s.revoked[jti]
    return ok, nil
}

// --- Wallets ---

func (s *Store) CreateWallet(_ context.Context, w ledger.Wallet) (ledger.Wallet, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    s.wallets[w.ID] = w
    return w, nil
}

func (s *Store) WalletByID(_ context.Context, userID, walletID uuid.UUID) (ledger.Wallet, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    w, ok := s.wallets[walletID]
    if !ok || w.UserID != userID { return ledger.Wallet{}, errs.ErrNotFound }
    return w, nil
}

// WalletsByUserID returns a user's wallets ordered by creation time then name.
func (s *Store) WalletsByUserID(_ context.Context, userID uuid.UUID) ([]ledger.Wallet, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    out := make([]ledger.Wallet, 0)
    for _, w := range s.wallets {
        if w.UserID == userID { out = append(out, w) }
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].CreatedAt.Equal(out[j].CreatedAt) { return out[i].CreatedAt.Before(out[j].CreatedAt) }
        return out[i].Name < out[j].Name
    })
    return out, nil
}

// AdjustWalletBalance adds deltaMinor to the wallet balance and returns the updated wallet.
func (s *Store) AdjustWalletBalance(_ context.Context, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    return s.adjustLocked(userID, walletID, deltaMinor)
}

func (s *Store) adjustLocked(userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error) {
    w, ok := s.wallets[walletID]
    if !ok || w.UserID != userID { return ledger.Wallet{}, errs.ErrNotFound }
    w.Balance = ledger.Amount(w.Currency, ledger.Minor(w.Balance)+deltaMinor)
    s.wallets[walletID] = w
    return w, nil
}

// SetWalletBalance overrides the balance and re-anchors Opening so that
// Opening + sum(signed transactions) equals the new balance.
func (s *Store) SetWalletBalance(_ context.Context, userID, walletID uuid.UUID, balanceMinor int64) (ledger.Wallet, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    w, ok := s.wallets[walletID]
    if !ok || w.UserID != userID { return ledger.Wallet{}, errs.ErrNotFound }
    w.Balance = ledger.Amount(w.Currency, balanceMinor)
    w.Opening = ledger.Amount(w.Currency, balanceMinor-s.sumLocked(walletID))
    s.wallets[walletID] = w
    return w, nil
}

// RecomputeWalletBalance sets Balance to Opening + sum(signed transactions).
func (s *Store) RecomputeWalletBalance(_ context.Context, userID, walletID uuid.UUID) (int64, ledger.Wallet, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    w, ok := s.wallets[walletID]
    if !ok || w.UserID != userID { return 0, ledger.Wallet{}, errs.ErrNotFound }
    before := ledger.Minor(w.Balance)
    w.Balance = ledger.Amount(w.Currency, ledger.Minor(w.Opening)+s.sumLocked(walletID))
    s.wallets[walletID] = w
    return before, w, nil
}

func (s *Store) sumLocked(walletID uuid.UUID) int64 {
    var sum int64
    for _, t := range s.transactions {
        if t.WalletID == walletID { sum += t.SignedMinor() }
    }
    return sum
}

// DeleteWallet removes an empty wallet; wallets with transactions return errs.ErrHasDependents.
func (s *Store) DeleteWallet(_ context.Context, userID, walletID uuid.UUID) error {
    s.mu.Lock(); defer s.mu.Unlock()
    w, ok := s.wallets[walletID]
    if !ok || w.UserID != userID { return errs.ErrNotFound }
    for _, t := range s.transactions {
        if t.WalletID == walletID { return errs.ErrHasDependents }
    }
    delete(s.wallets, walletID)
    return nil
}

// --- Categories ---

func (s *Store) CreateCategory(_ context.Context, c ledger.Category) (ledger.Category, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    s.categories[c.ID] = c
    return c, nil
}

func (s *Store) CategoryByID(_ context.Context, userID, categoryID uuid.UUID) (ledger.Category, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    c, ok := s.categories[categoryID]
    if !ok || c.UserID != userID { return ledger.Category{}, errs.ErrNotFound }
    return c, nil
}

// CategoriesByUserID returns a user's categories ordered by type then name.
func (s *Store) CategoriesByUserID(_ context.Context, userID uuid.UUID) ([]ledger.Category, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    out := make([]ledger.Category, 0)
    for _, c := range s.categories {
        if c.UserID == userID { out = append(out, c) }
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].Type != out[j].Type { return out[i].Type < out[j].Type }
        return out[i].Name < out[j].Name
    })
    return out, nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, categoryID uuid.UUID) error {
    s.mu.Lock(); defer s.mu.Unlock()
    c, ok := s.categories[categoryID]
    if !ok || c.UserID != userID { return errs.ErrNotFound }
    for _, t := range s.transactions {
        if t.CategoryID == categoryID { return errs.ErrHasDependents }
    }
    delete(s.categories, categoryID)
    return nil
}

// --- Transactions ---

func (s *Store) CreateTransaction(_ context.Context, t ledger.Transaction) (ledger.Transaction, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    if w, ok := s.wallets[t.WalletID]; !ok || w.UserID != t.UserID { return ledger.Transaction{}, errs.ErrNotFound }
    if c, ok := s.categories[t.CategoryID]; !ok || c.UserID != t.UserID { return ledger.Transaction{}, errs.ErrNotFound }
    t.Metadata = t.Metadata.Clone()
    s.transactions[t.ID] = t
    return t, nil
}

func (s *Store) TransactionByID(_ context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    t, ok := s.transactions[transactionID]
    if !ok || t.UserID != userID { return ledger.Transaction{}, errs.ErrNotFound }
    return t, nil
}

// DeleteTransaction removes the row and returns it. A second delete of the same id returns errs.ErrNotFound.
func (s *Store) DeleteTransaction(_ context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    t, ok := s.transactions[transactionID]
    if !ok || t.UserID != userID { return ledger.Transaction{}, errs.ErrNotFound }
    delete(s.transactions, transactionID)
    for _, keys := range s.txIdem {
        for k, id := range keys {
            if id == transactionID { delete(keys, k) }
        }
    }
    return t, nil
}

// Transactions yields a snapshot of the matching transactions, newest first.
// The lock is released before the first yield.
func (s *Store) Transactions(_ context.Context, userID uuid.UUID, f ledger.TransactionFilter) iter.Seq2[ledger.Transaction, error] {
    return func(yield func(ledger.Transaction, error) bool) {
        s.mu.RLock()
        out := make([]ledger.Transaction, 0)
        for _, t := range s.transactions {
            if t.UserID == userID && f.Match(t) { out = append(out, t) }
        }
        s.mu.RUnlock()
        sort.Slice(out, func(i, j int) bool { return ledger.TransactionLess(out[i], out[j]) })
        for _, t := range out {
            if !yield(t, nil) { return }
        }
    }
}

// TransactionByIdempotencyKey resolves a previously stored key.
func (s *Store) TransactionByIdempotencyKey(_ context.Context, userID uuid.UUID, key string) (ledger.Transaction, bool, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    if id, ok := s.txIdem[userID][key]; ok {
        if t, ok := s.transactions[id]; ok { return t, true, nil }
    }
    return ledger.Transaction{}, false, nil
}

// SaveIdempotencyKey binds key to transactionID; an existing binding wins.
func (s *Store) SaveIdempotencyKey(_ context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error {
    s.mu.Lock(); defer s.mu.Unlock()
    m, ok := s.txIdem[userID]
    if !ok { m = make(map[string]uuid.UUID); s.txIdem[userID] = m }
    if _, exists := m[key]; !exists { m[key] = transactionID }
    return nil
}

// --- Debts ---

func (s *Store) CreateDebt(_ context.Context, d ledger.Debt) (ledger.Debt, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    s.debts[d.ID] = d
    return d, nil
}

func (s *Store) DebtByID(_ context.Context, userID, debtID uuid.UUID) (ledger.Debt, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    d, ok := s.debts[debtID]
    if !ok || d.UserID != userID { return ledger.Debt{}, errs.ErrNotFound }
    return d, nil
}

// Debts returns matching debts ordered by due date ascending.
func (s *Store) Debts(_ context.Context, userID uuid.UUID, f ledger.DebtFilter) ([]ledger.Debt, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    out := make([]ledger.Debt, 0)
    for _, d := range s.debts {
        if d.UserID == userID && f.Match(d) { out = append(out, d) }
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].DueDate.Equal(out[j].DueDate) { return out[i].DueDate.Before(out[j].DueDate) }
        return out[i].ID.String() < out[j].ID.String()
    })
    return out, nil
}

func (s *Store) SetDebtStatus(_ context.Context, userID, debtID uuid.UUID, status ledger.DebtStatus) (ledger.Debt, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    d, ok := s.debts[debtID]
    if !ok || d.UserID != userID { return ledger.Debt{}, errs.ErrNotFound }
    d.Status = status
    s.debts[debtID] = d
    return d, nil
}

func (s *Store) DeleteDebt(_ context.Context, userID, debtID uuid.UUID) error {
    s.mu.Lock(); defer s.mu.Unlock()
    d, ok := s.debts[debtID]
    if !ok || d.UserID != userID { return errs.ErrNotFound }
    delete(s.debts, debtID)
    return nil
}

// --- Collaboration grants ---

// CreateGrant stores a pending grant unless a pending or accepted one already exists
// for the same requester and owner email.
func (s *Store) CreateGrant(_ context.Context, g ledger.CollaborationGrant) (ledger.CollaborationGrant, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    for _, existing := range s.grants {
        if existing.RequesterID == g.RequesterID && existing.OwnerEmail == g.OwnerEmail &&
            (existing.Status == ledger.GrantPending || existing.Status == ledger.GrantAccepted) {
            return ledger.CollaborationGrant{}, errs.ErrDuplicateRequest
        }
    }
    s.grants[g.ID] = g
    return g, nil
}

func (s *Store) GrantByID(_ context.Context, grantID uuid.UUID) (ledger.CollaborationGrant, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    g, ok := s.grants[grantID]
    if !ok { return ledger.CollaborationGrant{}, errs.ErrNotFound }
    return g, nil
}

// ResolveGrant moves a pending grant addressed to owner.Email into status to.
// A grant that is no longer pending returns errs.ErrNotFound.
func (s *Store) ResolveGrant(_ context.Context, grantID uuid.UUID, owner ledger.Identity, to ledger.GrantStatus) (ledger.CollaborationGrant, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    g, ok := s.grants[grantID]
    if !ok || g.Status != ledger.GrantPending || g.OwnerEmail != owner.Email { return ledger.CollaborationGrant{}, errs.ErrNotFound }
    g.Status = to
    if to == ledger.GrantAccepted {
        id := owner.ID
        g.OwnerID = &id
    }
    s.grants[grantID] = g
    return g, nil
}

// DeletePendingGrant removes a pending grant created by requesterID.
func (s *Store) DeletePendingGrant(_ context.Context, requesterID, grantID uuid.UUID) error {
    s.mu.Lock(); defer s.mu.Unlock()
    g, ok := s.grants[grantID]
    if !ok || g.RequesterID != requesterID || g.Status != ledger.GrantPending { return errs.ErrNotFound }
    delete(s.grants, grantID)
    return nil
}

// GrantsByRequester returns grants sent by requesterID, newest first.
func (s *Store) GrantsByRequester(_ context.Context, requesterID uuid.UUID) ([]ledger.CollaborationGrant, error) {
    return s.grantsWhere(func(g ledger.CollaborationGrant) bool { return g.RequesterID == requesterID }), nil
}

// GrantsByOwnerEmail returns grants addressed to email, newest first.
func (s *Store) GrantsByOwnerEmail(_ context.Context, email string) ([]ledger.CollaborationGrant, error) {
    return s.grantsWhere(func(g ledger.CollaborationGrant) bool { return g.OwnerEmail == email }), nil
}

func (s *Store) grantsWhere(keep func(ledger.CollaborationGrant) bool) []ledger.CollaborationGrant {
    s.mu.RLock(); defer s.mu.RUnlock()
    out := make([]ledger.CollaborationGrant, 0)
    for _, g := range s.grants {
        if keep(g) { out = append(out, g) }
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].CreatedAt.Equal(out[j].CreatedAt) { return out[i].CreatedAt.After(out[j].CreatedAt) }
        return out[i].ID.String() > out[j].ID.String()
    })
    return out
}
