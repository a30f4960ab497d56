package postgres

import (
    "context"
    "errors"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5"

    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
)

// --- Collaboration grants ---

const grantCols = `id, requester_id, requester_email, owner_email, owner_id, status, created_at`

// CreateGrant stores a pending grant. The partial unique index over pending and accepted
// rows turns a duplicate into errs.ErrDuplicateRequest.
func (s *Store) CreateGrant(ctx context.Context, g ledger.CollaborationGrant) (ledger.CollaborationGrant, error) {
    _, err := s.pool.Exec(ctx, `
        insert into collaborations (`+grantCols+`)
        values ($1,$2,$3,$4,$5,$6,$7)
    `, g.ID, g.RequesterID, g.RequesterEmail, g.OwnerEmail, g.OwnerID, string(g.Status), g.CreatedAt)
    if err = mapErr(err); err != nil {
        if errors.Is(err, errs.ErrAlreadyExists) { return ledger.CollaborationGrant{}, errs.ErrDuplicateRequest }
        return ledger.CollaborationGrant{}, err
    }
    return g, nil
}

func (s *Store) GrantByID(ctx context.Context, grantID uuid.UUID) (ledger.CollaborationGrant, error) {
    return scanGrant(s.pool.QueryRow(ctx, `select `+grantCols+` from collaborations where id = $1`, grantID))
}

// ResolveGrant moves a pending grant addressed to owner.Email into status to.
// The status guard makes the update conditional; a lost race returns errs.ErrNotFound.
func (s *Store) ResolveGrant(ctx context.Context, grantID uuid.UUID, owner ledger.Identity, to ledger.GrantStatus) (ledger.CollaborationGrant, error) {
    var ownerID *uuid.UUID
    if to == ledger.GrantAccepted { ownerID = &owner.ID }
    return scanGrant(s.pool.QueryRow(ctx, `
        update collaborations set status = $1, owner_id = $2
        where id = $3 and owner_email = $4 and status = 'pending'
        returning `+grantCols, string(to), ownerID, grantID, owner.Email))
}

// DeletePendingGrant removes a pending grant created by requesterID.
func (s *Store) DeletePendingGrant(ctx context.Context, requesterID, grantID uuid.UUID) error {
    return affectedOne(s.pool.Exec(ctx, `
        delete from collaborations where id = $1 and requester_id = $2 and status = 'pending'
    `, grantID, requesterID))
}

// GrantsByRequester returns grants sent by requesterID, newest first.
func (s *Store) GrantsByRequester(ctx context.Context, requesterID uuid.UUID) ([]ledger.CollaborationGrant, error) {
    return s.grants(ctx, `requester_id = $1`, requesterID)
}

// GrantsByOwnerEmail returns grants addressed to email, newest first.
func (s *Store) GrantsByOwnerEmail(ctx context.Context, email string) ([]ledger.CollaborationGrant, error) {
    return s.grants(ctx, `owner_email = $1`, email)
}

func (s *Store) grants(ctx context.Context, pred string, arg any) ([]ledger.CollaborationGrant, error) {
    rows, err := s.pool.Query(ctx, `select `+grantCols+` from collaborations where `+pred+` order by created_at desc, id::text desc`, arg)
    if err != nil { return nil, mapErr(err) }
    defer rows.Close()
    out := make([]ledger.CollaborationGrant, 0)
    for rows.Next() {
        g, err := scanGrant(rows)
        if err != nil { return nil, err }
        out = append(out, g)
    }
    return out, mapErr(rows.Err())
}

func scanGrant(row pgx.Row) (ledger.CollaborationGrant, error) {
    var g ledger.CollaborationGrant
    var owner uuid.NullUUID
    var status string
    if err := row.Scan(&g.ID, &g.RequesterID, &g.RequesterEmail, &g.OwnerEmail, &owner, &status, &g.CreatedAt); err != nil {
        return ledger.CollaborationGrant{}, mapErr(err)
    }
    if owner.Valid { id := owner.UUID; g.OwnerID = &id }
    g.Status = ledger.GrantStatus(status)
    return g, nil
}
