package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account that can sign in with a password or through Google.
// OAuth-created users still carry a password hash, but it is a random
// unusable value so password verification never sees an empty hash.
type User struct {
	ID            uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Email         string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash  string     `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	FullName      string     `json:"full_name" gorm:"size:255"`
	Phone         string     `json:"phone" gorm:"size:32"`
	EmailVerified bool       `json:"email_verified" gorm:"default:false"`
	IsActive      bool       `json:"is_active" gorm:"default:true;index"`
	LastSignInAt  *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
