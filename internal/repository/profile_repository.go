package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/model"
)

// ProfileRepository defines profile persistence operations.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	// Upsert creates the profile row when missing; otherwise it patches only
	// the non-empty fields of the supplied profile.
	Upsert(ctx context.Context, profile *model.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// FindByUserID finds a profile by its owning user ID.
func (r *profileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Upsert implements the idempotent create-or-patch contract.
func (r *profileRepository) Upsert(ctx context.Context, profile *model.Profile) error {
	var existing model.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", profile.UserID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(profile).Error
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if profile.FullName != "" {
		updates["full_name"] = profile.FullName
	}
	if profile.AvatarURL != "" {
		updates["avatar_url"] = profile.AvatarURL
	}
	if profile.Phone != "" {
		updates["phone"] = profile.Phone
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("user_id = ?", profile.UserID).
		Updates(updates).Error
}
