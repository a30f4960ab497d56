// Package identity is the email+password identity provider: sign-up, sign-in issuing
// a signed session token, sign-out, and current-session lookup.
package identity

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "net/mail"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"
    "golang.org/x/crypto/bcrypt"

    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
)

const (
    minPasswordLen = 8
    // bcrypt ignores bytes past 72
    maxPasswordLen = 72
)

type Repo interface {
    UserByEmail(ctx context.Context, email string) (ledger.User, error)
    SessionRevoked(ctx context.Context, jti string) (bool, error)
}

type Writer interface {
    // CreateUser returns errs.ErrAlreadyExists when the email is taken.
    CreateUser(ctx context.Context, u ledger.User) (ledger.User, error)
    RevokeSession(ctx context.Context, jti string, expiresAt time.Time) error
}

// Session is an issued bearer token.
type Session struct {
    Token     string          `json:"token"`
    ExpiresAt time.Time       `json:"expires_at"`
    Identity  ledger.Identity `json:"identity"`
}

type Service interface {
    SignUp(ctx context.Context, email, password string) (ledger.Identity, error)
    SignIn(ctx context.Context, email, password string) (Session, error)
    SignOut(ctx context.Context, token string) error
    CurrentSession(ctx context.Context, token string) (ledger.Identity, error)
}

// Options configure token issuance.
type Options struct {
    Secret     []byte
    Issuer     string
    TTL        time.Duration
    BcryptCost int
    Now        func() time.Time
}

type claims struct {
    Email string `json:"email"`
    jwt.RegisteredClaims
}

type service struct {
    repo   Repo
    writer Writer
    opts   Options
    log    *slog.Logger
}

func New(repo Repo, writer Writer, opts Options, logger *slog.Logger) (Service, error) {
    if len(opts.Secret) < 16 { return nil, errors.New("identity: secret must be at least 16 bytes") }
    if opts.Issuer == "" { opts.Issuer = "fintrack" }
    if opts.TTL <= 0 { opts.TTL = 24 * time.Hour }
    if opts.BcryptCost == 0 { opts.BcryptCost = bcrypt.DefaultCost }
    if opts.Now == nil { opts.Now = time.Now }
    if logger == nil { logger = slog.Default() }
    return &service{repo: repo, writer: writer, opts: opts, log: logger}, nil
}

func (s *service) SignUp(ctx context.Context, email, password string) (ledger.Identity, error) {
    email = ledger.NormalizeEmail(email)
    if a, err := mail.ParseAddress(email); err != nil || a.Address != email { return ledger.Identity{}, errs.Invalid("email", "not an email address") }
    if len(password) < minPasswordLen { return ledger.Identity{}, errs.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen)) }
    if len(password) > maxPasswordLen { return ledger.Identity{}, errs.Invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordLen)) }
    hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
    if err != nil { return ledger.Identity{}, fmt.Errorf("hash password: %w", err) }
    u, err := s.writer.CreateUser(ctx, ledger.User{ID: uuid.New(), Email: email, PasswordHash: string(hash), CreatedAt: s.opts.Now().UTC()})
    if err != nil { return ledger.Identity{}, err }
    s.log.Info("user signed up", "user_id", u.ID)
    return ledger.Identity{ID: u.ID, Email: u.Email}, nil
}

// SignIn returns errs.ErrUnauthorized for both unknown emails and wrong passwords.
func (s *service) SignIn(ctx context.Context, email, password string) (Session, error) {
    u, err := s.repo.UserByEmail(ctx, ledger.NormalizeEmail(email))
    if errors.Is(err, errs.ErrNotFound) { return Session{}, errs.ErrUnauthorized }
    if err != nil { return Session{}, err }
    if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil { return Session{}, errs.ErrUnauthorized }

    now := s.opts.Now()
    exp := now.Add(s.opts.TTL)
    c := claims{
        Email: u.Email,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   u.ID.String(),
            Issuer:    s.opts.Issuer,
            ID:        uuid.NewString(),
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.opts.Secret)
    if err != nil { return Session{}, fmt.Errorf("sign token: %w", err) }
    return Session{Token: token, ExpiresAt: exp.UTC().Truncate(time.Second), Identity: ledger.Identity{ID: u.ID, Email: u.Email}}, nil
}

func (s *service) parse(token string) (*claims, error) {
    var c claims
    _, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) { return s.opts.Secret, nil },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithIssuer(s.opts.Issuer),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(s.opts.Now),
    )
    if err != nil { return nil, errs.ErrUnauthorized }
    if c.ID == "" { return nil, errs.ErrUnauthorized }
    return &c, nil
}

// SignOut revokes the token until it would have expired anyway.
func (s *service) SignOut(ctx context.Context, token string) error {
    c, err := s.parse(token)
    if err != nil { return err }
    return s.writer.RevokeSession(ctx, c.ID, c.ExpiresAt.Time)
}

func (s *service) CurrentSession(ctx context.Context, token string) (ledger.Identity, error) {
    c, err := s.parse(token)
    if err != nil { return ledger.Identity{}, err }
    id, err := uuid.Parse(c.Subject)
    if err != nil { return ledger.Identity{}, errs.ErrUnauthorized }
    revoked, err := s.repo.SessionRevoked(ctx, c.ID)
    if err != nil { return ledger.Identity{}, err }
    if revoked { return ledger.Identity{}, errs.ErrUnauthorized }
    return ledger.Identity{ID: id, Email: c.Email}, nil
}
