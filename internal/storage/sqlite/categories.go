package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinoosan/fintrack/internal/ledger"
)

const categoryCols = `id, user_id, name, type, created_at`

func (s *Store) CreateCategory(ctx context.Context, c ledger.Category) (ledger.Category, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryCols+`) VALUES (?1, ?2, ?3, ?4, ?5)`,
		c.ID, c.UserID, c.Name, string(c.Type), ts(c.CreatedAt))
	if err != nil {
		return ledger.Category{}, mapErr(fmt.Errorf("failed to insert category: %w", err))
	}
	return c, nil
}

func (s *Store) CategoryByID(ctx context.Context, userID, categoryID uuid.UUID) (ledger.Category, error) {
	return scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryCols+` FROM categories WHERE id = ?1 AND user_id = ?2`, categoryID, userID))
}

// CategoriesByUserID returns a user's categories ordered by type then name.
func (s *Store) CategoriesByUserID(ctx context.Context, userID uuid.UUID) ([]ledger.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryCols+` FROM categories WHERE user_id = ?1 ORDER BY type, name`, userID)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query categories: %w", err))
	}
	defer rows.Close()
	out := make([]ledger.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) DeleteCategory(ctx context.Context, userID, categoryID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?1 AND user_id = ?2`, categoryID, userID)
	return affectedOne(res, mapErr(err))
}

func scanCategory(row scanner) (ledger.Category, error) {
	var (
		c       ledger.Category
		typ     string
		created string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &created); err != nil {
		return ledger.Category{}, mapErr(err)
	}
	c.Type = ledger.TxType(typ)
	var err error
	if c.CreatedAt, err = parseTS(created); err != nil {
		return ledger.Category{}, fmt.Errorf("failed to parse category created_at: %w", err)
	}
	return c, nil
}
