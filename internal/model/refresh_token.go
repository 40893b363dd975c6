package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is one link in a rotation chain. The ID doubles as the jti
// embedded in the raw token handed to the client; only the SHA-256 digest of
// the raw value is stored. A rotated record has RevokedAt set and ReplacedBy
// pointing at its successor; a logged-out record has RevokedAt set and no
// successor.
type RefreshToken struct {
	ID         uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	UserID     uuid.UUID  `json:"user_id" gorm:"type:char(36);index;not null"`
	TokenHash  string     `json:"-" gorm:"size:64;not null"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *uuid.UUID `json:"replaced_by,omitempty" gorm:"type:char(36)"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Revoked reports whether this chain link has been consumed or logged out.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
