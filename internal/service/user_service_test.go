package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	apperrors "storefront/internal/errors"
	"storefront/internal/model"
)

func newUserService(t *testing.T) (UserService, *MockUserRepository, *MockRoleRepository) {
	t.Helper()
	users := new(MockUserRepository)
	roles := new(MockRoleRepository)
	return NewUserService(users, roles), users, roles
}

func TestUserService_ListUsers_ClampsPaging(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset int
		wantLimit     int
		wantOffset    int
	}{
		{name: "defaults", limit: 0, offset: 0, wantLimit: 50, wantOffset: 0},
		{name: "negative", limit: -1, offset: -5, wantLimit: 50, wantOffset: 0},
		{name: "over cap", limit: 500, offset: 10, wantLimit: 50, wantOffset: 10},
		{name: "in range", limit: 25, offset: 100, wantLimit: 25, wantOffset: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _ := newUserService(t)
			users.On("List", mock.Anything, tt.wantLimit, tt.wantOffset).Return([]model.User{}, nil)

			_, err := svc.ListUsers(context.Background(), tt.limit, tt.offset)
			assert.NoError(t, err)
			users.AssertExpectations(t)
		})
	}
}

func TestUserService_GetUser(t *testing.T) {
	t.Run("found with resolved role", func(t *testing.T) {
		svc, users, roles := newUserService(t)
		id := uuid.New()

		users.On("FindByID", mock.Anything, id).Return(&model.User{ID: id, Email: "a@x.com"}, nil)
		roles.On("CurrentRole", mock.Anything, id).Return(model.RoleModerator, nil)

		user, role, err := svc.GetUser(context.Background(), id)
		assert.NoError(t, err)
		assert.Equal(t, "a@x.com", user.Email)
		assert.Equal(t, model.RoleModerator, role)
	})

	t.Run("not found", func(t *testing.T) {
		svc, users, _ := newUserService(t)
		users.On("FindByID", mock.Anything, mock.Anything).Return(nil, gorm.ErrRecordNotFound)

		_, _, err := svc.GetUser(context.Background(), uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUserService_RoleHistory(t *testing.T) {
	t.Run("newest grant first", func(t *testing.T) {
		svc, users, roles := newUserService(t)
		id := uuid.New()

		users.On("FindByID", mock.Anything, id).Return(&model.User{ID: id}, nil)
		roles.On("History", mock.Anything, id).Return([]model.RoleAssignment{
			{UserID: id, Role: model.RoleAdmin},
			{UserID: id, Role: model.RoleUser},
		}, nil)

		history, err := svc.RoleHistory(context.Background(), id)
		assert.NoError(t, err)
		assert.Len(t, history, 2)
		assert.Equal(t, model.RoleAdmin, history[0].Role)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, users, _ := newUserService(t)
		users.On("FindByID", mock.Anything, mock.Anything).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.RoleHistory(context.Background(), uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUserService_GrantRole(t *testing.T) {
	userID := uuid.New()

	t.Run("appends a grant", func(t *testing.T) {
		svc, users, roles := newUserService(t)
		users.On("FindByID", mock.Anything, userID).Return(&model.User{ID: userID}, nil)
		roles.On("Grant", mock.Anything, mock.MatchedBy(func(a *model.RoleAssignment) bool {
			return a.UserID == userID && a.Role == model.RoleAdmin
		})).Return(nil)

		assignment, err := svc.GrantRole(context.Background(), userID, model.RoleAdmin)
		assert.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, assignment.Role)
		roles.AssertExpectations(t)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		svc, _, roles := newUserService(t)

		_, err := svc.GrantRole(context.Background(), userID, "superuser")
		assert.ErrorIs(t, err, apperrors.ErrInvalidRole)
		roles.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, users, _ := newUserService(t)
		users.On("FindByID", mock.Anything, userID).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.GrantRole(context.Background(), userID, model.RoleAdmin)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUserService_PromoteByEmail(t *testing.T) {
	t.Run("grants by email", func(t *testing.T) {
		svc, users, roles := newUserService(t)
		userID := uuid.New()

		users.On("FindByEmail", mock.Anything, "a@x.com").Return(&model.User{ID: userID, Email: "a@x.com"}, nil)
		roles.On("Grant", mock.Anything, mock.MatchedBy(func(a *model.RoleAssignment) bool {
			return a.UserID == userID && a.Role == model.RoleAdmin
		})).Return(nil)

		user, err := svc.PromoteByEmail(context.Background(), "a@x.com", model.RoleAdmin)
		assert.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		roles.AssertExpectations(t)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, users, _ := newUserService(t)
		users.On("FindByEmail", mock.Anything, "ghost@x.com").Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.PromoteByEmail(context.Background(), "ghost@x.com", model.RoleAdmin)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
