// Package category implements per-user income and expense categories.
package category

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/tinoosan/fintrack/internal/dictionary"
    "github.com/tinoosan/fintrack/internal/errs"
    "github.com/tinoosan/fintrack/internal/ledger"
    "github.com/tinoosan/fintrack/internal/service/access"
    "github.com/tinoosan/fintrack/internal/slug"
)

const maxNameLen = 60

type Repo interface {
    CategoryByID(ctx context.Context, userID, categoryID uuid.UUID) (ledger.Category, error)
    CategoriesByUserID(ctx context.Context, userID uuid.UUID) ([]ledger.Category, error)
}

type Writer interface {
    CreateCategory(ctx context.Context, c ledger.Category) (ledger.Category, error)
    // DeleteCategory returns errs.ErrHasDependents while transactions reference the category.
    DeleteCategory(ctx context.Context, userID, categoryID uuid.UUID) error
}

type Service interface {
    Create(ctx context.Context, ownerID uuid.UUID, name string, typ ledger.TxType) (ledger.Category, error)
    List(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID, typ *ledger.TxType) ([]ledger.Category, error)
    Delete(ctx context.Context, ownerID, categoryID uuid.UUID) error
    EnsureDefaults(ctx context.Context, ownerID uuid.UUID) ([]ledger.Category, error)
}

type service struct {
    repo   Repo
    writer Writer
    access access.Resolver
}

func New(repo Repo, writer Writer, resolver access.Resolver) Service {
    return &service{repo: repo, writer: writer, access: resolver}
}

// Create rejects a name that slugs to an existing category of the same type.
func (s *service) Create(ctx context.Context, ownerID uuid.UUID, name string, typ ledger.TxType) (ledger.Category, error) {
    if ownerID == uuid.Nil { return ledger.Category{}, errs.Invalid("owner_id", "required") }
    name = strings.TrimSpace(name)
    if name == "" || slug.Slugify(name) == "" { return ledger.Category{}, errs.Invalid("name", "required") }
    if len(name) > maxNameLen { return ledger.Category{}, errs.Invalid("name", "too long") }
    if !typ.Valid() { return ledger.Category{}, errs.Invalid("type", "must be income or expense") }
    existing, err := s.repo.CategoriesByUserID(ctx, ownerID)
    if err != nil { return ledger.Category{}, err }
    for _, c := range existing {
        if c.Type == typ && slug.Equal(c.Name, name) {
            return ledger.Category{}, fmt.Errorf("category %q: %w", c.Name, errs.ErrAlreadyExists)
        }
    }
    c := ledger.Category{ID: uuid.New(), UserID: ownerID, Name: name, Type: typ, CreatedAt: time.Now().UTC()}
    return s.writer.CreateCategory(ctx, c)
}

func (s *service) List(ctx context.Context, viewer ledger.Identity, ownerID uuid.UUID, typ *ledger.TxType) ([]ledger.Category, error) {
    owner, err := access.Authorize(ctx, s.access, viewer, ownerID)
    if err != nil { return nil, err }
    all, err := s.repo.CategoriesByUserID(ctx, owner)
    if err != nil { return nil, err }
    if typ == nil { return all, nil }
    out := make([]ledger.Category, 0, len(all))
    for _, c := range all {
        if c.Type == *typ { out = append(out, c) }
    }
    return out, nil
}

func (s *service) Delete(ctx context.Context, ownerID, categoryID uuid.UUID) error {
    if err := s.writer.DeleteCategory(ctx, ownerID, categoryID); err != nil {
        if errors.Is(err, errs.ErrHasDependents) { return fmt.Errorf("category is in use: %w", err) }
        return err
    }
    return nil
}

// EnsureDefaults creates the default dictionary categories the owner does not have yet
// and returns the full list.
func (s *service) EnsureDefaults(ctx context.Context, ownerID uuid.UUID) ([]ledger.Category, error) {
    for _, d := range dictionary.Defaults() {
        _, err := s.Create(ctx, ownerID, d.Label, d.Type)
        if err != nil && !errors.Is(err, errs.ErrAlreadyExists) { return nil, err }
    }
    return s.repo.CategoriesByUserID(ctx, ownerID)
}
