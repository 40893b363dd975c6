package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	// AccessTokenExpiry is the duration for which access tokens are valid.
	AccessTokenExpiry = 15 * time.Minute
	// RefreshTokenExpiry is the duration for which refresh tokens are valid.
	RefreshTokenExpiry = 7 * 24 * time.Hour

	refreshSecretBytes = 32
)

// ErrMalformedRefreshToken is returned when a raw refresh token does not
// carry the jti.secret shape.
var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// Claims represents access-token JWT claims.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService handles access token generation and validation.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// GenerateAccessToken signs a short-lived HS256 access token for the user.
func (s *JWTService) GenerateAccessToken(userID uuid.UUID, email, role string) (string, error) {
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT access token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// RefreshPair is an opaque refresh credential. The jti allows O(1) record
// lookup; the secret half never leaves the client in retrievable form, the
// server keeps only its SHA-256 digest.
type RefreshPair struct {
	JTI uuid.UUID
	Raw string
}

// NewRefreshPair mints a fresh jti and random secret. The raw token handed
// to the client is "{jti}.{secret}".
func NewRefreshPair() (RefreshPair, error) {
	jti := uuid.New()
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshPair{}, fmt.Errorf("generate refresh secret: %w", err)
	}
	return RefreshPair{
		JTI: jti,
		Raw: jti.String() + "." + hex.EncodeToString(buf),
	}, nil
}

// ParseRefreshJTI extracts the record id from a raw refresh token.
func ParseRefreshJTI(raw string) (uuid.UUID, error) {
	head, _, ok := strings.Cut(raw, ".")
	if !ok {
		return uuid.Nil, ErrMalformedRefreshToken
	}
	jti, err := uuid.Parse(head)
	if err != nil {
		return uuid.Nil, ErrMalformedRefreshToken
	}
	return jti, nil
}

// HashRefreshToken returns the hex SHA-256 digest stored server-side.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
