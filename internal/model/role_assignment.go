package model

import (
	"time"

	"github.com/google/uuid"
)

// Roles a user can be granted. The grant log is append-only: a user's
// current role is the most recently created assignment, or RoleUser when
// no assignment exists.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
)

// ValidRole reports whether role is one of the known role names.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// RoleAssignment is one grant in the append-only role log.
type RoleAssignment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);index;not null"`
	Role      string    `json:"role" gorm:"size:32;not null"`
	CreatedAt time.Time `json:"created_at"`
}
