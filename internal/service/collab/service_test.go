package collab

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fintrack/internal/errs"
	"github.com/tinoosan/fintrack/internal/ledger"
	"github.com/tinoosan/fintrack/internal/storage/memory"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func setup() (Service, ledger.Identity, ledger.Identity) {
	st := memory.New()
	alice := ledger.Identity{ID: uuid.New(), Email: "alice@example.com"}
	bob := ledger.Identity{ID: uuid.New(), Email: "bob@example.com"}
	return New(st, st, testLogger()), alice, bob
}

func ids(list []ledger.Identity) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(list))
	for _, i := range list {
		out = append(out, i.ID)
	}
	return out
}

func TestRequestNormalizesEmails(t *testing.T) {
	ctx := context.Background()
	svc, alice, _ := setup()
	g, err := svc.RequestAccess(ctx, ledger.Identity{ID: alice.ID, Email: " Alice@Example.com"}, "Bob@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", g.OwnerEmail)
	assert.Equal(t, "alice@example.com", g.RequesterEmail)
	assert.Equal(t, ledger.GrantPending, g.Status)
	assert.Nil(t, g.OwnerID)

	_, err = svc.RequestAccess(ctx, alice, "bob@example.com")
	assert.ErrorIs(t, err, errs.ErrDuplicateRequest, "differently cased email is the same owner")
}

func TestRequestValidation(t *testing.T) {
	ctx := context.Background()
	svc, alice, _ := setup()
	_, err := svc.RequestAccess(ctx, alice, " ALICE@example.com ")
	assert.ErrorIs(t, err, errs.ErrInvalid)
	_, err = svc.RequestAccess(ctx, alice, "")
	assert.ErrorIs(t, err, errs.ErrInvalid)
	_, err = svc.RequestAccess(ctx, alice, "not-an-email")
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestVisibilityFollowsAcceptance(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := setup()
	g, err := svc.RequestAccess(ctx, alice, bob.Email)
	require.NoError(t, err)

	before, err := svc.ResolveViewableOwners(ctx, alice.ID, alice.Email)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice.ID}, ids(before))
	before, err = svc.ResolveViewableOwners(ctx, bob.ID, bob.Email)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bob.ID}, ids(before))

	accepted, err := svc.Accept(ctx, ledger.Identity{ID: bob.ID, Email: "BOB@example.com"}, g.ID)
	require.NoError(t, err)
	require.NotNil(t, accepted.OwnerID)
	assert.Equal(t, bob.ID, *accepted.OwnerID)
	assert.Equal(t, ledger.GrantAccepted, accepted.Status)

	aliceSees, err := svc.ResolveViewableOwners(ctx, alice.ID, alice.Email)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice.ID, bob.ID}, ids(aliceSees))
	bobSees, err := svc.ResolveViewableOwners(ctx, bob.ID, bob.Email)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bob.ID, alice.ID}, ids(bobSees))
}

func TestAcceptedGrantBlocksNewRequest(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := setup()
	g, err := svc.RequestAccess(ctx, alice, bob.Email)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, bob, g.ID)
	require.NoError(t, err)
	_, err = svc.RequestAccess(ctx, alice, bob.Email)
	assert.ErrorIs(t, err, errs.ErrDuplicateRequest)
}

func TestRejectedGrantAllowsResubmission(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := setup()
	g, err := svc.RequestAccess(ctx, alice, bob.Email)
	require.NoError(t, err)
	rejected, err := svc.Reject(ctx, bob, g.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.GrantRejected, rejected.Status)
	assert.Nil(t, rejected.OwnerID)

	_, err = svc.Accept(ctx, bob, g.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound, "rejected is terminal")

	_, err = svc.RequestAccess(ctx, alice, bob.Email)
	require.NoError(t, err)
	out, err := svc.Outgoing(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	in, err := svc.Incoming(ctx, bob.Email)
	require.NoError(t, err)
	assert.Len(t, in, 1, "only pending requests are incoming")

	sees, err := svc.ResolveViewableOwners(ctx, alice.ID, alice.Email)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice.ID}, ids(sees))
}

func TestOnlyAddresseeMayResolve(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := setup()
	mallory := ledger.Identity{ID: uuid.New(), Email: "mallory@example.com"}
	g, err := svc.RequestAccess(ctx, alice, bob.Email)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, mallory, g.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = svc.Reject(ctx, alice, g.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden, "requester cannot resolve own request")
	_, err = svc.Accept(ctx, bob, uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := setup()
	g, err := svc.RequestAccess(ctx, alice, bob.Email)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(ctx, bob.ID, g.ID), errs.ErrForbidden)
	require.NoError(t, svc.Cancel(ctx, alice.ID, g.ID))
	assert.ErrorIs(t, svc.Cancel(ctx, alice.ID, g.ID), errs.ErrNotFound)
	_, err = svc.Accept(ctx, bob, g.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	g2, err := svc.RequestAccess(ctx, alice, bob.Email)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, bob, g2.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Cancel(ctx, alice.ID, g2.ID), errs.ErrNotFound, "accepted grants cannot be cancelled")
}

func TestAcceptRacingCancelHasOneWinner(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		svc, alice, bob := setup()
		g, err := svc.RequestAccess(ctx, alice, bob.Email)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var acceptErr, cancelErr error
		wg.Add(2)
		go func() { defer wg.Done(); _, acceptErr = svc.Accept(ctx, bob, g.ID) }()
		go func() { defer wg.Done(); cancelErr = svc.Cancel(ctx, alice.ID, g.ID) }()
		wg.Wait()

		if acceptErr == nil {
			assert.ErrorIs(t, cancelErr, errs.ErrNotFound)
			sees, err := svc.ResolveViewableOwners(ctx, alice.ID, alice.Email)
			require.NoError(t, err)
			assert.Len(t, sees, 2)
		} else {
			assert.ErrorIs(t, acceptErr, errs.ErrNotFound)
			assert.NoError(t, cancelErr)
		}
	}
}
