// Package db owns the MySQL connection and the identity schema.
package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"storefront/internal/model"
)

// Connect opens the MySQL connection and migrates the identity tables.
// TranslateError is enabled so unique-key violations surface as
// gorm.ErrDuplicatedKey instead of driver-specific errors.
func Connect(dsn string) (*gorm.DB, error) {
	gormDB, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Profile{},
		&model.RoleAssignment{},
		&model.RefreshToken{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return gormDB, nil
}
