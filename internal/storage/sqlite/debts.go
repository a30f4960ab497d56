package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/fintrack/internal/ledger"
	"github.com/tinoosan/fintrack/internal/storage"
)

const debtCols = `id, user_id, name, type, amount_minor, currency, due_date, status, note, created_at`

func (s *Store) CreateDebt(ctx context.Context, d ledger.Debt) (ledger.Debt, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO debts (`+debtCols+`) VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10)`,
		d.ID, d.UserID, d.Name, string(d.Type), ledger.Minor(d.Amount), d.Amount.Curr().Code(),
		ts(d.DueDate), string(d.Status), d.Note, ts(d.CreatedAt))
	if err != nil {
		return ledger.Debt{}, mapErr(fmt.Errorf("failed to insert debt: %w", err))
	}
	return d, nil
}

func (s *Store) DebtByID(ctx context.Context, userID, debtID uuid.UUID) (ledger.Debt, error) {
	return scanDebt(s.db.QueryRowContext(ctx,
		`SELECT `+debtCols+` FROM debts WHERE id = ?1 AND user_id = ?2`, debtID, userID))
}

// Debts returns matching debts ordered by due date ascending.
func (s *Store) Debts(ctx context.Context, userID uuid.UUID, f ledger.DebtFilter) ([]ledger.Debt, error) {
	w := storage.NewSQLiteWhere(userID)
	if n := strings.TrimSpace(f.Name); n != "" {
		w.Add("instr(lower(name), ?) > 0", strings.ToLower(n))
	}
	if from, to, ok := dueWindow(f.Year, f.Month); ok {
		w.Add("due_date >= ? and due_date < ?", ts(from), ts(to))
	}
	if f.Status != nil {
		w.Add("status = ?", string(*f.Status))
	}
	if f.Type != nil {
		w.Add("type = ?", string(*f.Type))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+debtCols+` FROM debts WHERE user_id = ?1`+w.SQL()+` ORDER BY due_date, id`, w.Args()...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query debts: %w", err))
	}
	defer rows.Close()
	out := make([]ledger.Debt, 0)
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, mapErr(rows.Err())
}

// dueWindow turns a year (and optional month) filter into a half-open UTC range.
func dueWindow(year, month int) (time.Time, time.Time, bool) {
	if year == 0 {
		return time.Time{}, time.Time{}, false
	}
	if month == 0 {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0), true
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0), true
}

func (s *Store) SetDebtStatus(ctx context.Context, userID, debtID uuid.UUID, status ledger.DebtStatus) (ledger.Debt, error) {
	return scanDebt(s.db.QueryRowContext(ctx,
		`UPDATE debts SET status = ?1 WHERE id = ?2 AND user_id = ?3 RETURNING `+debtCols,
		string(status), debtID, userID))
}

func (s *Store) DeleteDebt(ctx context.Context, userID, debtID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM debts WHERE id = ?1 AND user_id = ?2`, debtID, userID)
	return affectedOne(res, mapErr(err))
}

func scanDebt(row scanner) (ledger.Debt, error) {
	var (
		d                 ledger.Debt
		typ, curr, status string
		units             int64
		due, created      string
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &typ, &units, &curr, &due, &status, &d.Note, &created); err != nil {
		return ledger.Debt{}, mapErr(err)
	}
	d.Type = ledger.DebtType(typ)
	d.Status = ledger.DebtStatus(status)
	d.Amount = ledger.Amount(curr, units)
	var err error
	if d.DueDate, err = parseTS(due); err != nil {
		return ledger.Debt{}, fmt.Errorf("failed to parse debt due_date: %w", err)
	}
	if d.CreatedAt, err = parseTS(created); err != nil {
		return ledger.Debt{}, fmt.Errorf("failed to parse debt created_at: %w", err)
	}
	return d, nil
}
