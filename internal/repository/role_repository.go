package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/model"
)

// RoleRepository defines operations on the append-only role grant log.
type RoleRepository interface {
	Grant(ctx context.Context, assignment *model.RoleAssignment) error
	// CurrentRole resolves the user's role: the most recently created grant,
	// or model.RoleUser when the log holds no rows for the user.
	CurrentRole(ctx context.Context, userID uuid.UUID) (string, error)
	History(ctx context.Context, userID uuid.UUID) ([]model.RoleAssignment, error)
}

type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new role repository.
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// Grant appends a role assignment. Existing rows are never mutated.
func (r *roleRepository) Grant(ctx context.Context, assignment *model.RoleAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// CurrentRole returns the latest grant for the user.
func (r *roleRepository) CurrentRole(ctx context.Context, userID uuid.UUID) (string, error) {
	var assignment model.RoleAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return assignment.Role, nil
}

// History lists all grants for a user, newest first.
func (r *roleRepository) History(ctx context.Context, userID uuid.UUID) ([]model.RoleAssignment, error) {
	var assignments []model.RoleAssignment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
