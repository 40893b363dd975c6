package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/model"
)

// ErrTokenRevoked is returned by Rotate when the predecessor was already
// revoked, which happens when two rotations race on the same jti. Exactly one
// caller wins; the loser must see this error, not a generic failure.
var ErrTokenRevoked = errors.New("refresh token already revoked")

// RefreshTokenRepository defines refresh-token persistence and the
// rotate/revoke state transitions.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RefreshToken, error)
	// Rotate inserts the successor and revokes the predecessor in one
	// transaction. The revoke is conditional on revoked_at still being null;
	// when the condition fails the successor insert is rolled back and
	// ErrTokenRevoked is returned.
	Rotate(ctx context.Context, oldID uuid.UUID, successor *model.RefreshToken) error
	// Revoke marks a token revoked with no successor. Idempotent.
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository.
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

// Create inserts a new active token record.
func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// FindByID finds a token record by jti.
func (r *refreshTokenRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RefreshToken, error) {
	var token model.RefreshToken
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// Rotate performs the Active -> Rotated transition.
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldID uuid.UUID, successor *model.RefreshToken) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(successor).Error; err != nil {
			return err
		}
		res := tx.Model(&model.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", oldID).
			Updates(map[string]interface{}{
				"revoked_at":  now,
				"replaced_by": successor.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a concurrent rotation; rolling back removes the successor.
			return ErrTokenRevoked
		}
		return nil
	})
}

// Revoke performs the Active -> Revoked (terminal) transition.
func (r *refreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", time.Now().UTC()).Error
}

// RevokeAllForUser revokes every still-active token of a user.
func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now().UTC()).Error
}
