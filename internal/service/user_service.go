package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "storefront/internal/errors"
	"storefront/internal/model"
	"storefront/internal/repository"
)

// UserService exposes the admin back-office user operations.
type UserService interface {
	ListUsers(ctx context.Context, limit, offset int) ([]model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, string, error)
	RoleHistory(ctx context.Context, id uuid.UUID) ([]model.RoleAssignment, error)
	GrantRole(ctx context.Context, userID uuid.UUID, role string) (*model.RoleAssignment, error)
	PromoteByEmail(ctx context.Context, email, role string) (*model.User, error)
}

type userService struct {
	users repository.UserRepository
	roles repository.RoleRepository
}

// NewUserService creates a new user service.
func NewUserService(users repository.UserRepository, roles repository.RoleRepository) UserService {
	return &userService{users: users, roles: roles}
}

// ListUsers returns a page of users.
func (s *userService) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser loads one user with its resolved role.
func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, string, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.ErrNotFound
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	role, err := s.roles.CurrentRole(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("resolve role: %w", err)
	}
	return user, role, nil
}

// RoleHistory returns the user's full grant log, newest first.
func (s *userService) RoleHistory(ctx context.Context, id uuid.UUID) ([]model.RoleAssignment, error) {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	history, err := s.roles.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("role history: %w", err)
	}
	return history, nil
}

// GrantRole appends a grant to the role log. The previous grants stay as an
// audit trail; the new row becomes the current role by recency.
func (s *userService) GrantRole(ctx context.Context, userID uuid.UUID, role string) (*model.RoleAssignment, error) {
	if !model.ValidRole(role) {
		return nil, apperrors.ErrInvalidRole
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	assignment := &model.RoleAssignment{UserID: userID, Role: role}
	if err := s.roles.Grant(ctx, assignment); err != nil {
		return nil, fmt.Errorf("grant role: %w", err)
	}
	return assignment, nil
}

// PromoteByEmail grants a role to the user owning the given email.
func (s *userService) PromoteByEmail(ctx context.Context, email, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, apperrors.ErrInvalidRole
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := s.roles.Grant(ctx, &model.RoleAssignment{UserID: user.ID, Role: role}); err != nil {
		return nil, fmt.Errorf("grant role: %w", err)
	}
	return user, nil
}
