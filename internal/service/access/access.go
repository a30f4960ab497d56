// Package access decides whose ledger data a caller may read.
// Every cross-user read in the services goes through Authorize.
package access

import (
	"context"

	"github.com/google/uuid"
	"github.com/tinoosan/fintrack/internal/errs"
	"github.com/tinoosan/fintrack/internal/ledger"
)

// Resolver lists the identities whose data userID may read, including userID itself.
type Resolver interface {
	ResolveViewableOwners(ctx context.Context, userID uuid.UUID, userEmail string) ([]ledger.Identity, error)
}

// Authorize returns the owner whose data viewer is asking for. uuid.Nil means the viewer's own data.
// Reading another owner requires an accepted grant; otherwise errs.ErrForbidden.
func Authorize(ctx context.Context, r Resolver, viewer ledger.Identity, ownerID uuid.UUID) (uuid.UUID, error) {
	if viewer.ID == uuid.Nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	if ownerID == uuid.Nil || ownerID == viewer.ID {
		return viewer.ID, nil
	}
	if r == nil {
		return uuid.Nil, errs.ErrForbidden
	}
	owners, err := r.ResolveViewableOwners(ctx, viewer.ID, viewer.Email)
	if err != nil {
		return uuid.Nil, err
	}
	for _, o := range owners {
		if o.ID == ownerID {
			return ownerID, nil
		}
	}
	return uuid.Nil, errs.ErrForbidden
}
