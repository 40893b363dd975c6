package model

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the storefront-facing profile row linked one-to-one to a user.
// It is upserted idempotently: created when missing, otherwise only the
// fields actually supplied are patched.
type Profile struct {
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);primaryKey"`
	FullName  string    `json:"full_name" gorm:"size:255"`
	AvatarURL string    `json:"avatar_url" gorm:"size:512"`
	Phone     string    `json:"phone" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
