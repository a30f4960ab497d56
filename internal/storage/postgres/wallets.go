package postgres

import (
    "context"
    "time"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"

    "github.com/tinoosan/fintrack/internal/ledger"
)

// --- Users and sessions ---

func (s *Store) CreateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
    _, err := s.pool.Exec(ctx, `
        insert into users (id, email, password_hash, created_at)
        values ($1,$2,$3,$4)
    `, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
    if err != nil { return ledger.User{}, mapErr(err) }
    return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (ledger.User, error) {
    return scanUser(s.pool.QueryRow(ctx, `select id, email, password_hash, created_at from users where email = $1`, email))
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (ledger.User, error) {
    return scanUser(s.pool.QueryRow(ctx, `select id, email, password_hash, created_at from users where id = $1`, id))
}

func scanUser(row pgx.Row) (ledger.User, error) {
    var u ledger.User
    if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil { return ledger.User{}, mapErr(err) }
    return u, nil
}

// RevokeSession records jti as signed out and prunes expired entries.
func (s *Store) RevokeSession(ctx context.Context, jti string, expiresAt time.Time) error {
    if _, err := s.pool.Exec(ctx, `delete from revoked_sessions where expires_at < now()`); err != nil { return mapErr(err) }
    _, err := s.pool.Exec(ctx, `
        insert into revoked_sessions (jti, expires_at) values ($1,$2)
        on conflict (jti) do nothing
    `, jti, expiresAt)
    return mapErr(err)
}

func (s *Store) SessionRevoked(ctx context.Context, jti string) (bool, error) {
    var revoked bool
    err := s.pool.QueryRow(ctx, `select exists(select 1 from revoked_sessions where jti = $1)`, jti).Scan(&revoked)
    return revoked, mapErr(err)
}

// --- Wallets ---

const walletCols = `id, user_id, name, currency, balance_minor, opening_minor, created_at`

func (s *Store) CreateWallet(ctx context.Context, w ledger.Wallet) (ledger.Wallet, error) {
    _, err := s.pool.Exec(ctx, `
        insert into wallets (`+walletCols+`)
        values ($1,$2,$3,$4,$5,$6,$7)
    `, w.ID, w.UserID, w.Name, w.Currency, ledger.Minor(w.Balance), ledger.Minor(w.Opening), w.CreatedAt)
    if err != nil { return ledger.Wallet{}, mapErr(err) }
    return w, nil
}

func (s *Store) WalletByID(ctx context.Context, userID, walletID uuid.UUID) (ledger.Wallet, error) {
    return scanWallet(s.pool.QueryRow(ctx, `select `+walletCols+` from wallets where id = $1 and user_id = $2`, walletID, userID))
}

// WalletsByUserID returns a user's wallets ordered by creation time then name.
func (s *Store) WalletsByUserID(ctx context.Context, userID uuid.UUID) ([]ledger.Wallet, error) {
    rows, err := s.pool.Query(ctx, `select `+walletCols+` from wallets where user_id = $1 order by created_at, name`, userID)
    if err != nil { return nil, mapErr(err) }
    defer rows.Close()
    out := make([]ledger.Wallet, 0)
    for rows.Next() {
        w, err := scanWallet(rows)
        if err != nil { return nil, err }
        out = append(out, w)
    }
    return out, mapErr(rows.Err())
}

func (s *Store) AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error) {
    return adjustWallet(ctx, s.pool, userID, walletID, deltaMinor)
}

// adjustWallet increments the balance server-side; the row lock serialises concurrent writers.
func adjustWallet(ctx context.Context, q querier, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error) {
    return scanWallet(q.QueryRow(ctx, `
        update wallets set balance_minor = balance_minor + $1
        where id = $2 and user_id = $3
        returning `+walletCols, deltaMinor, walletID, userID))
}

// signedSum is the signed transaction total for the wallet bound to $2.
const signedSum = `select coalesce(sum(case when type = 'income' then amount_minor else -amount_minor end), 0)
    from transactions where wallet_id = $2`

// SetWalletBalance overrides the balance and re-anchors opening_minor in one statement.
func (s *Store) SetWalletBalance(ctx context.Context, userID, walletID uuid.UUID, balanceMinor int64) (ledger.Wallet, error) {
    return scanWallet(s.pool.QueryRow(ctx, `
        update wallets set balance_minor = $1, opening_minor = $1 - (`+signedSum+`)
        where id = $2 and user_id = $3
        returning `+walletCols, balanceMinor, walletID, userID))
}

// RecomputeWalletBalance sets balance = opening + signed sum and returns the replaced balance.
// The row is locked first so the before/after pair is consistent.
func (s *Store) RecomputeWalletBalance(ctx context.Context, userID, walletID uuid.UUID) (int64, ledger.Wallet, error) {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return 0, ledger.Wallet{}, mapErr(err) }
    defer func() { _ = tx.Rollback(ctx) }()
    var before int64
    if err := tx.QueryRow(ctx, `select balance_minor from wallets where id = $1 and user_id = $2 for update`, walletID, userID).Scan(&before); err != nil {
        return 0, ledger.Wallet{}, mapErr(err)
    }
    w, err := scanWallet(tx.QueryRow(ctx, `
        update wallets set balance_minor = opening_minor + (`+signedSum+`)
        where user_id = $1 and id = $2
        returning `+walletCols, userID, walletID))
    if err != nil { return 0, ledger.Wallet{}, err }
    if err := tx.Commit(ctx); err != nil { return 0, ledger.Wallet{}, mapErr(err) }
    return before, w, nil
}

// DeleteWallet removes an empty wallet; the restrict foreign key reports errs.ErrHasDependents.
func (s *Store) DeleteWallet(ctx context.Context, userID, walletID uuid.UUID) error {
    return affectedOne(s.pool.Exec(ctx, `delete from wallets where id = $1 and user_id = $2`, walletID, userID))
}

func scanWallet(row pgx.Row) (ledger.Wallet, error) {
    var w ledger.Wallet
    var balance, opening int64
    if err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Currency, &balance, &opening, &w.CreatedAt); err != nil {
        return ledger.Wallet{}, mapErr(err)
    }
    w.Balance = ledger.Amount(w.Currency, balance)
    w.Opening = ledger.Amount(w.Currency, opening)
    return w, nil
}

// --- Categories ---

const categoryCols = `id, user_id, name, type, created_at`

func (s *Store) CreateCategory(ctx context.Context, c ledger.Category) (ledger.Category, error) {
    _, err := s.pool.Exec(ctx, `insert into categories (`+categoryCols+`) values ($1,$2,$3,$4,$5)`,
        c.ID, c.UserID, c.Name, string(c.Type), c.CreatedAt)
    if err != nil { return ledger.Category{}, mapErr(err) }
    return c, nil
}

func (s *Store) CategoryByID(ctx context.Context, userID, categoryID uuid.UUID) (ledger.Category, error) {
    return scanCategory(s.pool.QueryRow(ctx, `select `+categoryCols+` from categories where id = $1 and user_id = $2`, categoryID, userID))
}

// CategoriesByUserID returns a user's categories ordered by type then name.
func (s *Store) CategoriesByUserID(ctx context.Context, userID uuid.UUID) ([]ledger.Category, error) {
    rows, err := s.pool.Query(ctx, `select `+categoryCols+` from categories where user_id = $1 order by type, name`, userID)
    if err != nil { return nil, mapErr(err) }
    defer rows.Close()
    out := make([]ledger.Category, 0)
    for rows.Next() {
        c, err := scanCategory(rows)
        if err != nil { return nil, err }
        out = append(out, c)
    }
    return out, mapErr(rows.Err())
}

func (s *Store) DeleteCategory(ctx context.Context, userID, categoryID uuid.UUID) error {
    return affectedOne(s.pool.Exec(ctx, `delete from categories where id = $1 and user_id = $2`, categoryID, userID))
}

func scanCategory(row pgx.Row) (ledger.Category, error) {
    var c ledger.Category
    var typ string
    if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.CreatedAt); err != nil { return ledger.Category{}, mapErr(err) }
    c.Type = ledger.TxType(typ)
    return c, nil
}
