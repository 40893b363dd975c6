package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"storefront/internal/auth"
	apperrors "storefront/internal/errors"
	"storefront/internal/model"
	"storefront/internal/oauth"
	"storefront/internal/repository"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

// MockProfileRepository is a mock implementation of ProfileRepository.
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *MockProfileRepository) Upsert(ctx context.Context, profile *model.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// MockRoleRepository is a mock implementation of RoleRepository.
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) Grant(ctx context.Context, assignment *model.RoleAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockRoleRepository) CurrentRole(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockRoleRepository) History(ctx context.Context, userID uuid.UUID) ([]model.RoleAssignment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RoleAssignment), args.Error(1)
}

// MockRefreshTokenRepository is a mock implementation of RefreshTokenRepository.
type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RefreshToken, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenRepository) Rotate(ctx context.Context, oldID uuid.UUID, successor *model.RefreshToken) error {
	args := m.Called(ctx, oldID, successor)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type authMocks struct {
	users    *MockUserRepository
	profiles *MockProfileRepository
	roles    *MockRoleRepository
	tokens   *MockRefreshTokenRepository
}

func newAuthService(t *testing.T) (AuthService, authMocks) {
	t.Helper()
	m := authMocks{
		users:    new(MockUserRepository),
		profiles: new(MockProfileRepository),
		roles:    new(MockRoleRepository),
		tokens:   new(MockRefreshTokenRepository),
	}
	svc := NewAuthService(m.users, m.profiles, m.roles, m.tokens, auth.NewJWTService("test-secret"), nil)
	return svc, m
}

func hashedPassword(t *testing.T, password string) string {
	t.Helper()
	var hasher auth.PasswordHasher
	hash, err := hasher.Hash(password)
	assert.NoError(t, err)
	return hash
}

func TestAuthService_Signup(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		setupMock     func(m authMocks)
		expectedError error
	}{
		{
			name:  "successful signup",
			email: "a@x.com",
			setupMock: func(m authMocks) {
				m.users.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, gorm.ErrRecordNotFound)
				m.users.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
				m.roles.On("CurrentRole", mock.Anything, mock.Anything).Return(model.RoleUser, nil)
				m.tokens.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)
			},
		},
		{
			name:  "email already registered",
			email: "existing@x.com",
			setupMock: func(m authMocks) {
				m.users.On("FindByEmail", mock.Anything, "existing@x.com").
					Return(&model.User{Email: "existing@x.com"}, nil)
			},
			expectedError: apperrors.ErrUserExists,
		},
		{
			// Two signups can both pass the existence check; the unique index
			// decides, and the loser still gets user_exists, not a 500.
			name:  "loses the insert race",
			email: "racing@x.com",
			setupMock: func(m authMocks) {
				m.users.On("FindByEmail", mock.Anything, "racing@x.com").Return(nil, gorm.ErrRecordNotFound)
				m.users.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(gorm.ErrDuplicatedKey)
			},
			expectedError: apperrors.ErrUserExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newAuthService(t)
			tt.setupMock(m)

			user, role, pair, err := svc.Signup(context.Background(), tt.email, "Secret123", "Ada", "")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.email, user.Email)
				assert.Equal(t, model.RoleUser, role)
				assert.True(t, user.IsActive)
				assert.NotEmpty(t, user.PasswordHash)
				assert.NotEmpty(t, pair.AccessToken)
				assert.NotEmpty(t, pair.RefreshToken)
			}
			m.users.AssertExpectations(t)
			m.tokens.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name          string
		password      string
		setupMock     func(m authMocks)
		expectedError error
	}{
		{
			name:     "successful login",
			password: "Secret123",
			setupMock: func(m authMocks) {
				m.users.On("FindByEmail", mock.Anything, "a@x.com").Return(&model.User{
					ID:           userID,
					Email:        "a@x.com",
					PasswordHash: hashedPassword(t, "Secret123"),
					IsActive:     true,
				}, nil)
				m.users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
					return u.LastSignInAt != nil
				})).Return(nil)
				m.roles.On("CurrentRole", mock.Anything, userID).Return(model.RoleUser, nil)
				m.tokens.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)
			},
		},
		{
			name:     "wrong password",
			password: "not-the-password",
			setupMock: func(m authMocks) {
				m.users.On("FindByEmail", mock.Anything, "a@x.com").Return(&model.User{
					ID:           userID,
					Email:        "a@x.com",
					PasswordHash: hashedPassword(t, "Secret123"),
					IsActive:     true,
				}, nil)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			password: "Secret123",
			setupMock: func(m authMocks) {
				m.users.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "deactivated account",
			password: "Secret123",
			setupMock: func(m authMocks) {
				m.users.On("FindByEmail", mock.Anything, "a@x.com").Return(&model.User{
					ID:           userID,
					Email:        "a@x.com",
					PasswordHash: hashedPassword(t, "Secret123"),
					IsActive:     false,
				}, nil)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "legacy bcrypt hash still verifies",
			password: "Secret123",
			setupMock: func(m authMocks) {
				m.users.On("FindByEmail", mock.Anything, "a@x.com").Return(&model.User{
					ID:    userID,
					Email: "a@x.com",
					// bcrypt of "Secret123", cost 10
					PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
					IsActive:     true,
				}, nil)
			},
			expectedError: apperrors.ErrInvalidCredentials, // hash is for another password
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newAuthService(t)
			tt.setupMock(m)

			user, _, pair, err := svc.Login(context.Background(), "a@x.com", tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, user.LastSignInAt)
				assert.NotEmpty(t, pair.AccessToken)
				assert.NotEmpty(t, pair.RefreshToken)
			}
			m.users.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login_DatabaseFailure(t *testing.T) {
	svc, m := newAuthService(t)
	m.users.On("FindByEmail", mock.Anything, "a@x.com").
		Return(nil, errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"))

	_, _, _, err := svc.Login(context.Background(), "a@x.com", "Secret123")
	assert.Error(t, err)
	// An unreachable database is not a wrong password.
	assert.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, http.StatusInternalServerError, apperrors.MapErrorToHTTP(err).StatusCode)
}

func activeRefreshRecord(t *testing.T, userID uuid.UUID) (*model.RefreshToken, string) {
	t.Helper()
	pair, err := auth.NewRefreshPair()
	assert.NoError(t, err)
	return &model.RefreshToken{
		ID:        pair.JTI,
		UserID:    userID,
		TokenHash: auth.HashRefreshToken(pair.Raw),
		ExpiresAt: time.Now().UTC().Add(auth.RefreshTokenExpiry),
	}, pair.Raw
}

func TestAuthService_Refresh(t *testing.T) {
	userID := uuid.New()
	user := &model.User{ID: userID, Email: "a@x.com", IsActive: true}

	t.Run("successful rotation", func(t *testing.T) {
		svc, m := newAuthService(t)
		record, raw := activeRefreshRecord(t, userID)

		m.tokens.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.users.On("FindByID", mock.Anything, userID).Return(user, nil)
		m.roles.On("CurrentRole", mock.Anything, userID).Return(model.RoleUser, nil)
		m.tokens.On("Rotate", mock.Anything, record.ID, mock.MatchedBy(func(succ *model.RefreshToken) bool {
			return succ.UserID == userID && succ.ID != record.ID && succ.TokenHash != record.TokenHash
		})).Return(nil)

		pair, err := svc.Refresh(context.Background(), raw)
		assert.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.NotEqual(t, raw, pair.RefreshToken)
		m.tokens.AssertExpectations(t)
	})

	t.Run("malformed token", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, err := svc.Refresh(context.Background(), "garbage")
		assert.ErrorIs(t, err, apperrors.ErrInvalidRefresh)
	})

	t.Run("unknown jti", func(t *testing.T) {
		svc, m := newAuthService(t)
		_, raw := activeRefreshRecord(t, userID)
		m.tokens.On("FindByID", mock.Anything, mock.Anything).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.Refresh(context.Background(), raw)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRefresh)
	})

	t.Run("replay of revoked token revokes the user's chains", func(t *testing.T) {
		svc, m := newAuthService(t)
		record, raw := activeRefreshRecord(t, userID)
		revokedAt := time.Now().UTC().Add(-time.Minute)
		record.RevokedAt = &revokedAt

		m.tokens.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.tokens.On("RevokeAllForUser", mock.Anything, userID).Return(nil)

		_, err := svc.Refresh(context.Background(), raw)
		assert.ErrorIs(t, err, apperrors.ErrRefreshRevoked)
		m.tokens.AssertExpectations(t)
	})

	t.Run("expired token", func(t *testing.T) {
		svc, m := newAuthService(t)
		record, raw := activeRefreshRecord(t, userID)
		record.ExpiresAt = time.Now().UTC().Add(-time.Hour)

		m.tokens.On("FindByID", mock.Anything, record.ID).Return(record, nil)

		_, err := svc.Refresh(context.Background(), raw)
		assert.ErrorIs(t, err, apperrors.ErrRefreshExpired)
	})

	t.Run("secret mismatch", func(t *testing.T) {
		svc, m := newAuthService(t)
		record, _ := activeRefreshRecord(t, userID)
		// Same jti, different secret half.
		forged := record.ID.String() + ".deadbeef"

		m.tokens.On("FindByID", mock.Anything, record.ID).Return(record, nil)

		_, err := svc.Refresh(context.Background(), forged)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRefresh)
	})

	t.Run("user load failure is not a credential error", func(t *testing.T) {
		svc, m := newAuthService(t)
		record, raw := activeRefreshRecord(t, userID)

		m.tokens.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.users.On("FindByID", mock.Anything, userID).
			Return(nil, errors.New("dial tcp 127.0.0.1:3306: connect: connection refused"))

		_, err := svc.Refresh(context.Background(), raw)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, apperrors.ErrInvalidRefresh)
		assert.Equal(t, http.StatusInternalServerError, apperrors.MapErrorToHTTP(err).StatusCode)
	})

	t.Run("concurrent rotation loser sees refresh_revoked", func(t *testing.T) {
		svc, m := newAuthService(t)
		record, raw := activeRefreshRecord(t, userID)

		m.tokens.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.users.On("FindByID", mock.Anything, userID).Return(user, nil)
		m.roles.On("CurrentRole", mock.Anything, userID).Return(model.RoleUser, nil)
		m.tokens.On("Rotate", mock.Anything, record.ID, mock.Anything).Return(repository.ErrTokenRevoked)

		_, err := svc.Refresh(context.Background(), raw)
		assert.ErrorIs(t, err, apperrors.ErrRefreshRevoked)
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Run("revokes the presented link", func(t *testing.T) {
		svc, m := newAuthService(t)
		record, raw := activeRefreshRecord(t, uuid.New())

		m.tokens.On("Revoke", mock.Anything, record.ID).Return(nil)

		assert.NoError(t, svc.Logout(context.Background(), raw))
		m.tokens.AssertExpectations(t)
	})

	t.Run("garbage token is not an error", func(t *testing.T) {
		svc, m := newAuthService(t)

		assert.NoError(t, svc.Logout(context.Background(), "not-a-token"))
		m.tokens.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
	})
}

func TestAuthService_LoginWithGoogleIdentity(t *testing.T) {
	t.Run("missing email claim", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, _, _, err := svc.LoginWithGoogleIdentity(context.Background(), &oauth.Identity{})
		assert.ErrorIs(t, err, apperrors.ErrGoogleEmailRequired)
	})

	t.Run("first login creates user with unusable password", func(t *testing.T) {
		svc, m := newAuthService(t)

		m.users.On("FindByEmail", mock.Anything, "g@x.com").Return(nil, gorm.ErrRecordNotFound)
		m.users.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return u.Email == "g@x.com" && u.EmailVerified && u.IsActive && u.PasswordHash != ""
		})).Return(nil)
		m.profiles.On("Upsert", mock.Anything, mock.AnythingOfType("*model.Profile")).Return(nil)
		m.roles.On("CurrentRole", mock.Anything, mock.Anything).Return(model.RoleUser, nil)
		m.tokens.On("Create", mock.Anything, mock.AnythingOfType("*model.RefreshToken")).Return(nil)

		user, role, pair, err := svc.LoginWithGoogleIdentity(context.Background(), &oauth.Identity{
			Subject:       "google-sub",
			Email:         "g@x.com",
			EmailVerified: true,
			Name:          "Grace",
		})
		assert.NoError(t, err)
		assert.Equal(t, "g@x.com", user.Email)
		assert.Equal(t, model.RoleUser, role)
		assert.NotEmpty(t, pair.RefreshToken)
		m.users.AssertExpectations(t)
		m.profiles.AssertExpectations(t)
	})

	t.Run("email_verified never downgrades", func(t *testing.T) {
		svc, m := newAuthService(t)
		userID := uuid.New()

		m.users.On("FindByEmail", mock.Anything, "g@x.com").Return(&model.User{
			ID:            userID,
			Email:         "g@x.com",
			PasswordHash:  "x",
			EmailVerified: true,
			IsActive:      true,
		}, nil)
		m.users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return u.EmailVerified // stays true despite the unverified claim
		})).Return(nil)
		m.profiles.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		m.roles.On("CurrentRole", mock.Anything, userID).Return(model.RoleUser, nil)
		m.tokens.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, _, _, err := svc.LoginWithGoogleIdentity(context.Background(), &oauth.Identity{
			Email:         "g@x.com",
			EmailVerified: false,
		})
		assert.NoError(t, err)
		m.users.AssertExpectations(t)
	})
}

func TestAuthService_UpdateAccount(t *testing.T) {
	userID := uuid.New()

	t.Run("email taken", func(t *testing.T) {
		svc, m := newAuthService(t)
		newEmail := "taken@x.com"

		m.users.On("FindByID", mock.Anything, userID).Return(&model.User{ID: userID, Email: "a@x.com"}, nil)
		m.users.On("FindByEmail", mock.Anything, newEmail).Return(&model.User{Email: newEmail}, nil)

		_, err := svc.UpdateAccount(context.Background(), userID, AccountUpdate{Email: &newEmail})
		assert.ErrorIs(t, err, apperrors.ErrUserExists)
	})

	t.Run("password change rehashes in the modern format", func(t *testing.T) {
		svc, m := newAuthService(t)
		newPassword := "NewSecret456"
		// User still on a legacy bcrypt hash.
		m.users.On("FindByID", mock.Anything, userID).Return(&model.User{
			ID:           userID,
			Email:        "a@x.com",
			PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		}, nil)
		m.users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			var hasher auth.PasswordHasher
			return hasher.Verify(u.PasswordHash, newPassword) && !isLegacyHash(u.PasswordHash)
		})).Return(nil)

		user, err := svc.UpdateAccount(context.Background(), userID, AccountUpdate{Password: &newPassword})
		assert.NoError(t, err)
		assert.NotNil(t, user)
		m.users.AssertExpectations(t)
	})

	t.Run("email change resets verification", func(t *testing.T) {
		svc, m := newAuthService(t)
		newEmail := "fresh@x.com"

		m.users.On("FindByID", mock.Anything, userID).Return(&model.User{
			ID:            userID,
			Email:         "a@x.com",
			EmailVerified: true,
		}, nil)
		m.users.On("FindByEmail", mock.Anything, newEmail).Return(nil, gorm.ErrRecordNotFound)
		m.users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return u.Email == newEmail && !u.EmailVerified
		})).Return(nil)

		user, err := svc.UpdateAccount(context.Background(), userID, AccountUpdate{Email: &newEmail})
		assert.NoError(t, err)
		assert.Equal(t, newEmail, user.Email)
	})
}

func isLegacyHash(hash string) bool {
	return len(hash) >= 4 && hash[:3] == "$2a"
}
