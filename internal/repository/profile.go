package repository

import (
	"context"

	"zeelink/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Records[models.Profile]
	// GetByUsername returns nil, nil when the username is free.
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	// GetByIdentity returns nil, nil when the identity has no profile yet.
	GetByIdentity(ctx context.Context, identityID string) (*models.Profile, error)
	// UIDs lists the assigned UIDs of real or simulated profiles.
	UIDs(ctx context.Context, simulated bool) ([]string, error)
}

type profileRepository struct {
	*gormRecords[models.Profile]
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{newRecords[models.Profile](db, "profiles", "Profile")}
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return r.firstWhere(ctx, "get_by_username", "username = ?", models.NormalizeUsername(username))
}

func (r *profileRepository) GetByIdentity(ctx context.Context, identityID string) (*models.Profile, error) {
	return r.firstWhere(ctx, "get_by_identity", "identity_id = ?", identityID)
}

func (r *profileRepository) UIDs(ctx context.Context, simulated bool) ([]string, error) {
	ctx, end := r.trace(ctx, "uids")
	var uids []string
	err := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("simulated = ? AND uid <> ?", simulated, "").
		Pluck("uid", &uids).Error
	end(err)
	if err != nil {
		return nil, models.NewRemoteFailure("uids profiles", err)
	}
	return uids, nil
}
