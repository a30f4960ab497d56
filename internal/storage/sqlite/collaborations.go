package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinoosan/fintrack/internal/errs"
	"github.com/tinoosan/fintrack/internal/ledger"
)

const grantCols = `id, requester_id, requester_email, owner_email, owner_id, status, created_at`

// CreateGrant stores a pending grant. The partial unique index over pending and
// accepted rows reports a duplicate as errs.ErrDuplicateRequest.
func (s *Store) CreateGrant(ctx context.Context, g ledger.CollaborationGrant) (ledger.CollaborationGrant, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collaborations (`+grantCols+`) VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7)`,
		g.ID, g.RequesterID, g.RequesterEmail, g.OwnerEmail, nullUUID(g.OwnerID), string(g.Status), ts(g.CreatedAt))
	if err = mapErr(err); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return ledger.CollaborationGrant{}, errs.ErrDuplicateRequest
		}
		return ledger.CollaborationGrant{}, fmt.Errorf("failed to insert collaboration: %w", err)
	}
	return g, nil
}

func (s *Store) GrantByID(ctx context.Context, grantID uuid.UUID) (ledger.CollaborationGrant, error) {
	return scanGrant(s.db.QueryRowContext(ctx, `SELECT `+grantCols+` FROM collaborations WHERE id = ?1`, grantID))
}

// ResolveGrant moves a pending grant addressed to owner.Email into status to.
// The status guard in the update makes concurrent resolutions race-free: the loser
// sees no row and gets errs.ErrNotFound.
func (s *Store) ResolveGrant(ctx context.Context, grantID uuid.UUID, owner ledger.Identity, to ledger.GrantStatus) (ledger.CollaborationGrant, error) {
	var ownerID any
	if to == ledger.GrantAccepted {
		ownerID = owner.ID
	}
	return scanGrant(s.db.QueryRowContext(ctx,
		`UPDATE collaborations SET status = ?1, owner_id = ?2
		 WHERE id = ?3 AND owner_email = ?4 AND status = 'pending'
		 RETURNING `+grantCols, string(to), ownerID, grantID, owner.Email))
}

// DeletePendingGrant removes a pending grant created by requesterID.
func (s *Store) DeletePendingGrant(ctx context.Context, requesterID, grantID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM collaborations WHERE id = ?1 AND requester_id = ?2 AND status = 'pending'`, grantID, requesterID)
	return affectedOne(res, mapErr(err))
}

// GrantsByRequester returns grants sent by requesterID, newest first.
func (s *Store) GrantsByRequester(ctx context.Context, requesterID uuid.UUID) ([]ledger.CollaborationGrant, error) {
	return s.grants(ctx, `requester_id = ?1`, requesterID)
}

// GrantsByOwnerEmail returns grants addressed to email, newest first.
func (s *Store) GrantsByOwnerEmail(ctx context.Context, email string) ([]ledger.CollaborationGrant, error) {
	return s.grants(ctx, `owner_email = ?1`, email)
}

func (s *Store) grants(ctx context.Context, pred string, arg any) ([]ledger.CollaborationGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+grantCols+` FROM collaborations WHERE `+pred+` ORDER BY created_at DESC, id DESC`, arg)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to query collaborations: %w", err))
	}
	defer rows.Close()
	out := make([]ledger.CollaborationGrant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, mapErr(rows.Err())
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func scanGrant(row scanner) (ledger.CollaborationGrant, error) {
	var (
		g               ledger.CollaborationGrant
		owner           uuid.NullUUID
		status, created string
	)
	if err := row.Scan(&g.ID, &g.RequesterID, &g.RequesterEmail, &g.OwnerEmail, &owner, &status, &created); err != nil {
		return ledger.CollaborationGrant{}, mapErr(err)
	}
	if owner.Valid {
		id := owner.UUID
		g.OwnerID = &id
	}
	g.Status = ledger.GrantStatus(status)
	var err error
	if g.CreatedAt, err = parseTS(created); err != nil {
		return ledger.CollaborationGrant{}, fmt.Errorf("failed to parse collaboration created_at: %w", err)
	}
	return g, nil
}
