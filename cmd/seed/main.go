// Command seed bootstraps the first admin account. It is idempotent: an
// existing user keeps its password and only receives the admin grant when
// its current role differs.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"gorm.io/gorm"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/model"
	"storefront/internal/repository"
)

func main() {
	cfg := config.Load()

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}

	gormDB, err := db.Connect(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(gormDB)
	roles := repository.NewRoleRepository(gormDB)
	var hasher auth.PasswordHasher

	user, err := users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hash, err := hasher.Hash(password)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		user = &model.User{
			Email:         email,
			PasswordHash:  hash,
			EmailVerified: true,
			IsActive:      true,
		}
		if err := users.Create(ctx, user); err != nil {
			log.Fatalf("create admin user: %v", err)
		}
		log.Printf("created admin user %s", email)
	} else if err != nil {
		log.Fatalf("find user: %v", err)
	}

	role, err := roles.CurrentRole(ctx, user.ID)
	if err != nil {
		log.Fatalf("resolve role: %v", err)
	}
	if role != model.RoleAdmin {
		if err := roles.Grant(ctx, &model.RoleAssignment{UserID: user.ID, Role: model.RoleAdmin}); err != nil {
			log.Fatalf("grant admin role: %v", err)
		}
		log.Printf("granted admin role to %s", email)
	}
}
