package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/auth"
	apperrors "storefront/internal/errors"
	"storefront/internal/model"
	"storefront/internal/oauth"
	"storefront/internal/queue"
	"storefront/internal/repository"
)

// TokenPair is the credential material handed out on successful issuance.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccountUpdate carries the optional fields of a profile update. Nil means
// "leave unchanged".
type AccountUpdate struct {
	Email    *string
	Password *string
	FullName *string
	Phone    *string
}

// AuthService orchestrates credential verification, token issuance and the
// refresh rotation protocol.
type AuthService interface {
	Signup(ctx context.Context, email, password, fullName, phone string) (*model.User, string, TokenPair, error)
	Login(ctx context.Context, email, password string) (*model.User, string, TokenPair, error)
	// Refresh rotates a raw refresh token: the presented link is revoked with
	// a pointer to its successor and a fresh pair is returned.
	Refresh(ctx context.Context, rawToken string) (TokenPair, error)
	// Logout revokes the presented chain link with no successor. A malformed
	// or unknown token is not an error.
	Logout(ctx context.Context, rawToken string) error
	LoginWithGoogleIdentity(ctx context.Context, identity *oauth.Identity) (*model.User, string, TokenPair, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*model.User, string, error)
	UpdateAccount(ctx context.Context, userID uuid.UUID, update AccountUpdate) (*model.User, error)
}

type authService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	roles    repository.RoleRepository
	tokens   repository.RefreshTokenRepository
	hasher   auth.PasswordHasher
	jwt      *auth.JWTService
	events   *queue.Publisher
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	roles repository.RoleRepository,
	tokens repository.RefreshTokenRepository,
	jwtService *auth.JWTService,
	events *queue.Publisher,
) AuthService {
	return &authService{
		users:    users,
		profiles: profiles,
		roles:    roles,
		tokens:   tokens,
		jwt:      jwtService,
		events:   events,
	}
}

// Signup registers a new user with an argon2id password hash.
func (s *authService) Signup(ctx context.Context, email, password, fullName, phone string) (*model.User, string, TokenPair, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, "", TokenPair{}, apperrors.ErrUserExists
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", TokenPair{}, fmt.Errorf("check user existence: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Phone:        phone,
		IsActive:     true,
		LastSignInAt: &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The existence check above races with concurrent signups; the unique
		// index on email is the authority.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", TokenPair{}, apperrors.ErrUserExists
		}
		return nil, "", TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	role, err := s.roles.CurrentRole(ctx, user.ID)
	if err != nil {
		return nil, "", TokenPair{}, fmt.Errorf("resolve role: %w", err)
	}

	pair, err := s.issuePair(ctx, user, role)
	if err != nil {
		return nil, "", TokenPair{}, err
	}

	s.events.PublishUserSignup(ctx, queue.UserSignupEvent{
		UserID:   user.ID.String(),
		Email:    user.Email,
		Provider: "password",
		At:       now,
	})
	return user, role, pair, nil
}

// Login verifies a password and issues a token pair.
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, string, TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		// Only a missing row is a credential failure; anything else is an
		// infrastructure problem and must not look like a wrong password.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", TokenPair{}, apperrors.ErrInvalidCredentials
		}
		return nil, "", TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive || !s.hasher.Verify(user.PasswordHash, password) {
		return nil, "", TokenPair{}, apperrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	user.LastSignInAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", TokenPair{}, fmt.Errorf("update last sign-in: %w", err)
	}

	role, err := s.roles.CurrentRole(ctx, user.ID)
	if err != nil {
		return nil, "", TokenPair{}, fmt.Errorf("resolve role: %w", err)
	}

	pair, err := s.issuePair(ctx, user, role)
	if err != nil {
		return nil, "", TokenPair{}, err
	}
	return user, role, pair, nil
}

// Refresh implements the rotation state machine. Presenting an
// already-revoked link is treated as a theft signal: the reply is
// refresh_revoked and, as hardening, every active token of the user is
// revoked and a replay event is published.
func (s *authService) Refresh(ctx context.Context, rawToken string) (TokenPair, error) {
	jti, err := auth.ParseRefreshJTI(rawToken)
	if err != nil {
		return TokenPair{}, apperrors.ErrInvalidRefresh
	}

	record, err := s.tokens.FindByID(ctx, jti)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, apperrors.ErrInvalidRefresh
		}
		return TokenPair{}, fmt.Errorf("load refresh token: %w", err)
	}

	if record.Revoked() {
		_ = s.tokens.RevokeAllForUser(ctx, record.UserID)
		s.events.PublishTokenReplay(ctx, queue.TokenReplayEvent{
			UserID: record.UserID.String(),
			JTI:    record.ID.String(),
			At:     time.Now().UTC(),
		})
		return TokenPair{}, apperrors.ErrRefreshRevoked
	}
	if record.Expired(time.Now().UTC()) {
		return TokenPair{}, apperrors.ErrRefreshExpired
	}
	if auth.HashRefreshToken(rawToken) != record.TokenHash {
		return TokenPair{}, apperrors.ErrInvalidRefresh
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, apperrors.ErrInvalidRefresh
		}
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	role, err := s.roles.CurrentRole(ctx, user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("resolve role: %w", err)
	}

	pair, err := auth.NewRefreshPair()
	if err != nil {
		return TokenPair{}, err
	}
	successor := &model.RefreshToken{
		ID:        pair.JTI,
		UserID:    user.ID,
		TokenHash: auth.HashRefreshToken(pair.Raw),
		ExpiresAt: time.Now().UTC().Add(auth.RefreshTokenExpiry),
	}
	if err := s.tokens.Rotate(ctx, record.ID, successor); err != nil {
		if errors.Is(err, repository.ErrTokenRevoked) {
			// Lost the race against a concurrent rotation of the same link.
			return TokenPair{}, apperrors.ErrRefreshRevoked
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, err := s.jwt.GenerateAccessToken(user.ID, user.Email, role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate access token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: pair.Raw}, nil
}

// Logout terminates the presented chain link. Idempotent by design: a
// second logout with the same token, or garbage input, succeeds silently.
func (s *authService) Logout(ctx context.Context, rawToken string) error {
	jti, err := auth.ParseRefreshJTI(rawToken)
	if err != nil {
		return nil
	}
	if err := s.tokens.Revoke(ctx, jti); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// LoginWithGoogleIdentity applies the shared upsert policy for both Google
// flows: match by email, create with an unusable password when absent,
// upgrade email_verified monotonically when present.
func (s *authService) LoginWithGoogleIdentity(ctx context.Context, identity *oauth.Identity) (*model.User, string, TokenPair, error) {
	if identity.Email == "" {
		return nil, "", TokenPair{}, apperrors.ErrGoogleEmailRequired
	}

	now := time.Now().UTC()
	user, err := s.users.FindByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, hashErr := s.hasher.RandomHash()
		if hashErr != nil {
			return nil, "", TokenPair{}, fmt.Errorf("generate unusable password: %w", hashErr)
		}
		user = &model.User{
			ID:            uuid.New(),
			Email:         identity.Email,
			PasswordHash:  hash,
			FullName:      identity.Name,
			EmailVerified: identity.EmailVerified,
			IsActive:      true,
			LastSignInAt:  &now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, "", TokenPair{}, fmt.Errorf("create user: %w", err)
		}
		s.events.PublishUserSignup(ctx, queue.UserSignupEvent{
			UserID:   user.ID.String(),
			Email:    user.Email,
			Provider: "google",
			At:       now,
		})
	case err != nil:
		return nil, "", TokenPair{}, fmt.Errorf("find user: %w", err)
	default:
		// email_verified only ever goes false -> true here.
		if identity.EmailVerified && !user.EmailVerified {
			user.EmailVerified = true
		}
		user.LastSignInAt = &now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, "", TokenPair{}, fmt.Errorf("update user: %w", err)
		}
	}

	profile := &model.Profile{
		UserID:    user.ID,
		FullName:  identity.Name,
		AvatarURL: identity.Picture,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, "", TokenPair{}, fmt.Errorf("upsert profile: %w", err)
	}

	role, err := s.roles.CurrentRole(ctx, user.ID)
	if err != nil {
		return nil, "", TokenPair{}, fmt.Errorf("resolve role: %w", err)
	}
	pair, err := s.issuePair(ctx, user, role)
	if err != nil {
		return nil, "", TokenPair{}, err
	}
	return user, role, pair, nil
}

// GetUser loads a user together with its freshly resolved role.
func (s *authService) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.ErrNotFound
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	role, err := s.roles.CurrentRole(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve role: %w", err)
	}
	return user, role, nil
}

// UpdateAccount changes email, password and profile fields of the
// authenticated user. Changing the email resets email_verified.
func (s *authService) UpdateAccount(ctx context.Context, userID uuid.UUID, update AccountUpdate) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if update.Email != nil && *update.Email != user.Email {
		taken, err := s.users.FindByEmail(ctx, *update.Email)
		if err == nil && taken != nil {
			return nil, apperrors.ErrUserExists
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check email: %w", err)
		}
		user.Email = *update.Email
		user.EmailVerified = false
	}
	if update.Password != nil {
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if update.FullName != nil || update.Phone != nil {
		profile := &model.Profile{UserID: user.ID}
		if update.FullName != nil {
			profile.FullName = *update.FullName
		}
		if update.Phone != nil {
			profile.Phone = *update.Phone
		}
		if err := s.profiles.Upsert(ctx, profile); err != nil {
			return nil, fmt.Errorf("upsert profile: %w", err)
		}
	}
	return user, nil
}

// issuePair mints an access token and persists a fresh refresh chain root.
func (s *authService) issuePair(ctx context.Context, user *model.User, role string) (TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.Email, role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate access token: %w", err)
	}

	pair, err := auth.NewRefreshPair()
	if err != nil {
		return TokenPair{}, err
	}
	record := &model.RefreshToken{
		ID:        pair.JTI,
		UserID:    user.ID,
		TokenHash: auth.HashRefreshToken(pair.Raw),
		ExpiresAt: time.Now().UTC().Add(auth.RefreshTokenExpiry),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: pair.Raw}, nil
}
