package postgres

import (
    "context"
    "strings"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"

    "github.com/tinoosan/fintrack/internal/ledger"
    "github.com/tinoosan/fintrack/internal/storage"
)

// --- Debts ---

const debtCols = `id, user_id, name, type, amount_minor, currency, due_date, status, note, created_at`

func (s *Store) CreateDebt(ctx context.Context, d ledger.Debt) (ledger.Debt, error) {
    _, err := s.pool.Exec(ctx, `
        insert into debts (`+debtCols+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, d.ID, d.UserID, d.Name, string(d.Type), ledger.Minor(d.Amount), d.Amount.Curr().Code(), d.DueDate, string(d.Status), d.Note, d.CreatedAt)
    if err != nil { return ledger.Debt{}, mapErr(err) }
    return d, nil
}

func (s *Store) DebtByID(ctx context.Context, userID, debtID uuid.UUID) (ledger.Debt, error) {
    return scanDebt(s.pool.QueryRow(ctx, `select `+debtCols+` from debts where id = $1 and user_id = $2`, debtID, userID))
}

// Debts returns matching debts ordered by due date ascending.
func (s *Store) Debts(ctx context.Context, userID uuid.UUID, f ledger.DebtFilter) ([]ledger.Debt, error) {
    w := storage.NewWhere(userID)
    if n := strings.TrimSpace(f.Name); n != "" { w.Add("strpos(lower(name), lower(?)) > 0", n) }
    w.AddIf(f.Year != 0, "extract(year from due_date at time zone 'UTC') = ?", f.Year)
    w.AddIf(f.Month != 0, "extract(month from due_date at time zone 'UTC') = ?", f.Month)
    if f.Status != nil { w.Add("status = ?", string(*f.Status)) }
    if f.Type != nil { w.Add("type = ?", string(*f.Type)) }
    rows, err := s.pool.Query(ctx, `
        select `+debtCols+` from debts
        where user_id = $1`+w.SQL()+`
        order by due_date, id::text
    `, w.Args()...)
    if err != nil { return nil, mapErr(err) }
    defer rows.Close()
    out := make([]ledger.Debt, 0)
    for rows.Next() {
        d, err := scanDebt(rows)
        if err != nil { return nil, err }
        out = append(out, d)
    }
    return out, mapErr(rows.Err())
}

func (s *Store) SetDebtStatus(ctx context.Context, userID, debtID uuid.UUID, status ledger.DebtStatus) (ledger.Debt, error) {
    return scanDebt(s.pool.QueryRow(ctx, `
        update debts set status = $1 where id = $2 and user_id = $3
        returning `+debtCols, string(status), debtID, userID))
}

func (s *Store) DeleteDebt(ctx context.Context, userID, debtID uuid.UUID) error {
    return affectedOne(s.pool.Exec(ctx, `delete from debts where id = $1 and user_id = $2`, debtID, userID))
}

func scanDebt(row pgx.Row) (ledger.Debt, error) {
    var d ledger.Debt
    var typ, curr, status string
    var units int64
    if err := row.Scan(&d.ID, &d.UserID, &d.Name, &typ, &units, &curr, &d.DueDate, &status, &d.Note, &d.CreatedAt); err != nil {
        return ledger.Debt{}, mapErr(err)
    }
    d.Type = ledger.DebtType(typ)
    d.Status = ledger.DebtStatus(status)
    d.Amount = ledger.Amount(curr, units)
    d.DueDate = d.DueDate.UTC()
    return d, nil
}
