package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tinoosan/fintrack/internal/errs"
	"github.com/tinoosan/fintrack/internal/storage/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T) (Service, *clock) {
	t.Helper()
	st := memory.New()
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := New(st, st, Options{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		TTL:        time.Hour,
		BcryptCost: bcrypt.MinCost,
		Now:        c.now,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return svc, c
}

func TestSignUpSignInSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	id, err := svc.SignUp(ctx, " Ana@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", id.Email)

	_, err = svc.SignUp(ctx, "ana@example.com", "another password")
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)

	sess, err := svc.SignIn(ctx, "ANA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, id, sess.Identity)
	assert.NotEmpty(t, sess.Token)

	got, err := svc.CurrentSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	_, err := svc.SignUp(ctx, "nope", "long enough")
	assert.ErrorIs(t, err, errs.ErrInvalid)
	_, err = svc.SignUp(ctx, "a@example.com", "short")
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	_, err := svc.SignUp(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "ana@example.com", "wrong horse")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = svc.SignIn(ctx, "ghost@example.com", "correct horse")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestSessionExpiresAndSignOutRevokes(t *testing.T) {
	ctx := context.Background()
	svc, c := setup(t)
	_, err := svc.SignUp(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	sess, err := svc.SignIn(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	c.t = c.t.Add(2 * time.Hour)
	_, err = svc.CurrentSession(ctx, sess.Token)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	sess, err = svc.SignIn(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx, sess.Token))
	_, err = svc.CurrentSession(ctx, sess.Token)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = svc.CurrentSession(ctx, "garbage")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestTokenFromOtherSecretIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	_, err := svc.SignUp(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	sess, err := svc.SignIn(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	other, err := New(memory.New(), memory.New(), Options{Secret: []byte("ffffffffffffffffffffffffffffffff"), BcryptCost: bcrypt.MinCost}, nil)
	require.NoError(t, err)
	_, err = other.CurrentSession(ctx, sess.Token)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = New(memory.New(), memory.New(), Options{Secret: []byte("short")}, nil)
	assert.Error(t, err)
}
