// Package collab implements the collaboration workflow: a requester asks for read access
// to another user's ledger by email, the owner accepts or rejects, and the requester may
// cancel while the request is pending. Accepted grants are the only source of cross-user
// visibility, resolved through ResolveViewableOwners.
package collab

import (
    "context"
    "fmt"
    "log/slog"
    "net/mail"
    "sort"
    "time"

    "github.com/google/uuid"
    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
    GrantByID(ctx context.Context, grantID uuid.UUID) (ledger.CollaborationGrant, error)
    GrantsByRequester(ctx context.Context, requesterID uuid.UUID) ([]ledger.CollaborationGrant, error)
    GrantsByOwnerEmail(ctx context.Context, email string) ([]ledger.CollaborationGrant, error)
}

// Writer defines write operations needed by the service. ResolveGrant and DeletePendingGrant
// are conditional on the grant still being pending and return errs.ErrNotFound otherwise.
type Writer interface {
    CreateGrant(ctx context.Context, g ledger.CollaborationGrant) (ledger.CollaborationGrant, error)
    ResolveGrant(ctx context.Context, grantID uuid.UUID, owner ledger.Identity, to ledger.GrantStatus) (ledger.CollaborationGrant, error)
    DeletePendingGrant(ctx context.Context, requesterID, grantID uuid.UUID) error
}

type Service interface {
    RequestAccess(ctx context.Context, requester ledger.Identity, ownerEmail string) (ledger.CollaborationGrant, error)
    Accept(ctx context.Context, owner ledger.Identity, grantID uuid.UUID) (ledger.CollaborationGrant, error)
    Reject(ctx context.Context, owner ledger.Identity, grantID uuid.UUID) (ledger.CollaborationGrant, error)
    Cancel(ctx context.Context, requesterID, grantID uuid.UUID) error
    ResolveViewableOwners(ctx context.Context, userID uuid.UUID, userEmail string) ([]ledger.Identity, error)
    Outgoing(ctx context.Context, requesterID uuid.UUID) ([]ledger.CollaborationGrant, error)
    Incoming(ctx context.Context, ownerEmail string) ([]ledger.CollaborationGrant, error)
}

type service struct {
    repo   Repo
    writer Writer
    log    *slog.Logger
    now    func() time.Time
}

func New(repo Repo, writer Writer, logger *slog.Logger) Service {
    if logger == nil { logger = slog.Default() }
    return &service{repo: repo, writer: writer, log: logger, now: time.Now}
}

func (s *service) RequestAccess(ctx context.Context, requester ledger.Identity, ownerEmail string) (ledger.CollaborationGrant, error) {
    if requester.ID == uuid.Nil { return ledger.CollaborationGrant{}, errs.Invalid("requester_id", "required") }
    reqEmail := ledger.NormalizeEmail(requester.Email)
    owner := ledger.NormalizeEmail(ownerEmail)
    if owner == "" { return ledger.CollaborationGrant{}, errs.Invalid("owner_email", "required") }
    if a, err := mail.ParseAddress(owner); err != nil || a.Address != owner { return ledger.CollaborationGrant{}, errs.Invalid("owner_email", "not an email address") }
    if owner == reqEmail { return ledger.CollaborationGrant{}, errs.Invalid("owner_email", "cannot request access to your own data") }

    g := ledger.CollaborationGrant{
        ID:             uuid.New(),
        RequesterID:    requester.ID,
        RequesterEmail: reqEmail,
        OwnerEmail:     owner,
        Status:         ledger.GrantPending,
        CreatedAt:      s.now().UTC(),
    }
    out, err := s.writer.CreateGrant(ctx, g)
    if err != nil { return ledger.CollaborationGrant{}, fmt.Errorf("request access: %w", err) }
    s.log.Info("collaboration requested", "grant_id", out.ID, "requester_id", out.RequesterID)
    return out, nil
}

func (s *service) Accept(ctx context.Context, owner ledger.Identity, grantID uuid.UUID) (ledger.CollaborationGrant, error) {
    return s.resolve(ctx, owner, grantID, ledger.GrantAccepted)
}

func (s *service) Reject(ctx context.Context, owner ledger.Identity, grantID uuid.UUID) (ledger.CollaborationGrant, error) {
    return s.resolve(ctx, owner, grantID, ledger.GrantRejected)
}

// resolve checks addressing before status so a stranger cannot probe grant states.
// The store update is conditional on status=pending; losing a race to Cancel or a
// concurrent resolve surfaces as errs.ErrNotFound.
func (s *service) resolve(ctx context.Context, owner ledger.Identity, grantID uuid.UUID, to ledger.GrantStatus) (ledger.CollaborationGrant, error) {
    if owner.ID == uuid.Nil { return ledger.CollaborationGrant{}, errs.Invalid("owner_id", "required") }
    owner.Email = ledger.NormalizeEmail(owner.Email)
    g, err := s.repo.GrantByID(ctx, grantID)
    if err != nil { return ledger.CollaborationGrant{}, err }
    if ledger.NormalizeEmail(g.OwnerEmail) != owner.Email || g.RequesterID == owner.ID { return ledger.CollaborationGrant{}, errs.ErrForbidden }
    if g.Status != ledger.GrantPending { return ledger.CollaborationGrant{}, errs.ErrNotFound }
    out, err := s.writer.ResolveGrant(ctx, grantID, owner, to)
    if err != nil { return ledger.CollaborationGrant{}, err }
    s.log.Info("collaboration resolved", "grant_id", grantID, "status", string(to), "owner_id", owner.ID)
    return out, nil
}

func (s *service) Cancel(ctx context.Context, requesterID, grantID uuid.UUID) error {
    g, err := s.repo.GrantByID(ctx, grantID)
    if err != nil { return err }
    if g.RequesterID != requesterID { return errs.ErrForbidden }
    if g.Status != ledger.GrantPending { return errs.ErrNotFound }
    if err := s.writer.DeletePendingGrant(ctx, requesterID, grantID); err != nil { return err }
    s.log.Info("collaboration cancelled", "grant_id", grantID, "requester_id", requesterID)
    return nil
}

// ResolveViewableOwners returns the caller first, then every counterparty of an accepted
// grant in either direction ordered by email. Each identity appears once.
func (s *service) ResolveViewableOwners(ctx context.Context, userID uuid.UUID, userEmail string) ([]ledger.Identity, error) {
    if userID == uuid.Nil { return nil, errs.Invalid("user_id", "required") }
    email := ledger.NormalizeEmail(userEmail)
    seen := map[uuid.UUID]struct{}{userID: {}}
    others := make([]ledger.Identity, 0)
    add := func(id uuid.UUID, email string) {
        if _, ok := seen[id]; ok || id == uuid.Nil { return }
        seen[id] = struct{}{}
        others = append(others, ledger.Identity{ID: id, Email: email})
    }

    sent, err := s.repo.GrantsByRequester(ctx, userID)
    if err != nil { return nil, err }
    for _, g := range sent {
        if g.Status == ledger.GrantAccepted && g.OwnerID != nil { add(*g.OwnerID, g.OwnerEmail) }
    }
    if email != "" {
        received, err := s.repo.GrantsByOwnerEmail(ctx, email)
        if err != nil { return nil, err }
        for _, g := range received {
            // owner_id pins the grant to the account that accepted it
            if g.Status == ledger.GrantAccepted && g.OwnerID != nil && *g.OwnerID == userID { add(g.RequesterID, g.RequesterEmail) }
        }
    }
    sort.Slice(others, func(i, j int) bool {
        if others[i].Email != others[j].Email { return others[i].Email < others[j].Email }
        return others[i].ID.String() < others[j].ID.String()
    })
    return append([]ledger.Identity{{ID: userID, Email: email}}, others...), nil
}

func (s *service) Outgoing(ctx context.Context, requesterID uuid.UUID) ([]ledger.CollaborationGrant, error) {
    return s.repo.GrantsByRequester(ctx, requesterID)
}

// Incoming returns pending requests addressed to ownerEmail, newest first.
func (s *service) Incoming(ctx context.Context, ownerEmail string) ([]ledger.CollaborationGrant, error) {
    all, err := s.repo.GrantsByOwnerEmail(ctx, ledger.NormalizeEmail(ownerEmail))
    if err != nil { return nil, err }
    out := make([]ledger.CollaborationGrant, 0, len(all))
    for _, g := range all {
        if g.Status == ledger.GrantPending { out = append(out, g) }
    }
    return out, nil
}
