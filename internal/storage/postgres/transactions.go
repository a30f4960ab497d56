package postgres

import (
    "context"
    "errors"
    "iter"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"

    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
    "github.com/tinoosan/fintrack/internal/meta"
    "github.com/tinoosan/fintrack/internal/storage"
)

// --- Transactions ---

const txCols = `id, user_id, wallet_id, category_id, type, amount_minor, currency, description, date, metadata, created_at`

func (s *Store) CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
    return insertTransaction(ctx, s.pool, t)
}

// insertTransaction stores t only when its wallet and category both belong to t.UserID.
func insertTransaction(ctx context.Context, q querier, t ledger.Transaction) (ledger.Transaction, error) {
    if err := t.Metadata.Validate(); err != nil { return ledger.Transaction{}, err }
    md, _ := t.Metadata.MarshalStableJSON()
    tag, err := q.Exec(ctx, `
        insert into transactions (`+txCols+`)
        select $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
        where exists (select 1 from wallets where id = $3 and user_id = $2)
          and exists (select 1 from categories where id = $4 and user_id = $2)
    `, t.ID, t.UserID, t.WalletID, t.CategoryID, string(t.Type), ledger.Minor(t.Amount), t.Amount.Curr().Code(),
        t.Description, t.Date, md, t.CreatedAt)
    if err := affectedOne(tag, err); err != nil { return ledger.Transaction{}, err }
    t.Metadata = t.Metadata.Clone()
    return t, nil
}

func (s *Store) TransactionByID(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
    return scanTransaction(s.pool.QueryRow(ctx, `select `+txCols+` from transactions where id = $1 and user_id = $2`, transactionID, userID))
}

// DeleteTransaction removes the row and returns it; idempotency keys cascade.
func (s *Store) DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
    return deleteTransaction(ctx, s.pool, userID, transactionID)
}

func deleteTransaction(ctx context.Context, q querier, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
    return scanTransaction(q.QueryRow(ctx, `delete from transactions where id = $1 and user_id = $2 returning `+txCols, transactionID, userID))
}

// Transactions streams matching rows newest first. Breaking out of the loop closes the cursor.
func (s *Store) Transactions(ctx context.Context, userID uuid.UUID, f ledger.TransactionFilter) iter.Seq2[ledger.Transaction, error] {
    return func(yield func(ledger.Transaction, error) bool) {
        w := storage.NewWhere(userID)
        if f.From != nil { w.Add("date >= ?", *f.From) }
        if f.To != nil { w.Add("date <= ?", *f.To) }
        if f.Type != nil { w.Add("type = ?", string(*f.Type)) }
        if f.WalletID != nil { w.Add("wallet_id = ?", *f.WalletID) }
        if f.CategoryID != nil { w.Add("category_id = ?", *f.CategoryID) }
        rows, err := s.pool.Query(ctx, `
            select `+txCols+` from transactions
            where user_id = $1`+w.SQL()+`
            order by date desc, created_at desc, id::text desc
        `, w.Args()...)
        if err != nil { yield(ledger.Transaction{}, mapErr(err)); return }
        defer rows.Close()
        for rows.Next() {
            t, err := scanTransaction(rows)
            if err != nil { yield(ledger.Transaction{}, err); return }
            if !yield(t, nil) { return }
        }
        if err := rows.Err(); err != nil { yield(ledger.Transaction{}, mapErr(err)) }
    }
}

// TransactionByIdempotencyKey resolves a previously stored key.
func (s *Store) TransactionByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (ledger.Transaction, bool, error) {
    cols := "t." + strings.ReplaceAll(txCols, ", ", ", t.")
    t, err := scanTransaction(s.pool.QueryRow(ctx, `
        select `+cols+`
        from transaction_idempotency k join transactions t on t.id = k.transaction_id
        where k.user_id = $1 and k.key = $2
    `, userID, key))
    if errors.Is(err, errs.ErrNotFound) { return ledger.Transaction{}, false, nil }
    if err != nil { return ledger.Transaction{}, false, err }
    return t, true, nil
}

// SaveIdempotencyKey stores a mapping from (user,key) to transaction id; an existing mapping wins.
func (s *Store) SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error {
    _, err := s.pool.Exec(ctx, `
        insert into transaction_idempotency (user_id, key, transaction_id)
        values ($1,$2,$3)
        on conflict (user_id, key) do nothing
    `, userID, key, transactionID)
    return mapErr(err)
}

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
    var t ledger.Transaction
    var typ, curr string
    var units int64
    var mdBytes []byte
    var date, created time.Time
    if err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &t.CategoryID, &typ, &units, &curr, &t.Description, &date, &mdBytes, &created); err != nil {
        return ledger.Transaction{}, mapErr(err)
    }
    t.Type = ledger.TxType(typ)
    t.Amount = ledger.Amount(curr, units)
    t.Date = date.UTC()
    t.CreatedAt = created.UTC()
    t.Metadata = meta.Metadata{}
    if len(mdBytes) > 0 {
        var m meta.Metadata
        if err := m.UnmarshalJSON(mdBytes); err == nil { t.Metadata = m }
    }
    return t, nil
}

// CreateTransaction inserts the row inside the unit of work.
func (t *Tx) CreateTransaction(ctx context.Context, tr ledger.Transaction) (ledger.Transaction, error) {
    return insertTransaction(ctx, t.tx, tr)
}

// DeleteTransaction removes the row inside the unit of work.
func (t *Tx) DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (ledger.Transaction, error) {
    return deleteTransaction(ctx, t.tx, userID, transactionID)
}

// AdjustWalletBalance increments the wallet inside the unit of work.
func (t *Tx) AdjustWalletBalance(ctx context.Context, userID, walletID uuid.UUID, deltaMinor int64) (ledger.Wallet, error) {
    return adjustWallet(ctx, t.tx, userID, walletID, deltaMinor)
}

// SaveIdempotencyKey binds key inside the unit of work; an existing binding is errs.ErrAlreadyExists.
func (t *Tx) SaveIdempotencyKey(ctx context.Context, userID uuid.UUID, key string, transactionID uuid.UUID) error {
    _, err := t.tx.Exec(ctx, `
        insert into transaction_idempotency (user_id, key, transaction_id)
        values ($1,$2,$3)
    `, userID, key, transactionID)
    return mapErr(err)
}
