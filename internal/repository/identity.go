package repository

import (
	"context"
	"strings"

	"zeelink/internal/cache"
	"zeelink/internal/models"

	"gorm.io/gorm"
)

// IdentityRepository defines persistence operations for identities.
type IdentityRepository interface {
	Records[models.Identity]
	// GetByEmail returns nil, nil when no identity uses email.
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
}

type identityRepository struct {
	*gormRecords[models.Identity]
}

// NewIdentityRepository returns a new IdentityRepository implementation.
func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &identityRepository{newRecords[models.Identity](db, "identities", "Identity")}
}

// GetOne serves identities through the Redis cache. Cached copies omit the
// password hash, so callers that need it use GetByEmail. A lookup that races
// a write is answered from the database but not cached.
func (r *identityRepository) GetOne(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	err := cache.AsideVersioned(ctx, cache.IdentityKey(id), cache.IdentityVersionKey(id), &identity, cache.IdentityTTL, func() error {
		rec, err := r.gormRecords.GetOne(ctx, id)
		if err != nil {
			return err
		}
		identity = *rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.firstWhere(ctx, "get_by_email", "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *identityRepository) Insert(ctx context.Context, identity *models.Identity) error {
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	return r.gormRecords.Insert(ctx, identity)
}

// Update invalidates the cached identity on both sides of the write. Delete
// and Save do the same.
func (r *identityRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	cache.InvalidateIdentity(ctx, id)
	err := r.gormRecords.Update(ctx, id, fields)
	cache.InvalidateIdentity(ctx, id)
	return err
}

func (r *identityRepository) Delete(ctx context.Context, id string) error {
	cache.InvalidateIdentity(ctx, id)
	err := r.gormRecords.Delete(ctx, id)
	cache.InvalidateIdentity(ctx, id)
	return err
}

func (r *identityRepository) Save(ctx context.Context, identity *models.Identity) error {
	cache.InvalidateIdentity(ctx, identity.ID)
	err := r.gormRecords.Save(ctx, identity)
	cache.InvalidateIdentity(ctx, identity.ID)
	return err
}
