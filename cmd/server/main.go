package main

import (
	"log"
	"net/http"

	_ "storefront/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/handler"
	"storefront/internal/oauth"
	"storefront/internal/queue"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
)

// @title Storefront Identity API
// @version 1.0
// @description Session and identity service for the storefront: password and Google sign-in, refresh-token rotation, role-based admin back office.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.Connect(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	profileRepo := repository.NewProfileRepository(gormDB)
	roleRepo := repository.NewRoleRepository(gormDB)
	tokenRepo := repository.NewRefreshTokenRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	nonceStore := auth.NewNonceStore(cacheClient)
	events := queue.NewPublisher(cfg.AMQPURL)

	// The Google broker is built once here and injected; a nil broker makes
	// the Google endpoints answer google_oauth_not_configured.
	var broker oauth.GoogleBroker
	if cfg.GoogleConfigured() {
		broker = oauth.NewGoogleBroker(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	} else {
		log.Println("google oauth not configured, /auth/v1/google endpoints disabled")
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, profileRepo, roleRepo, tokenRepo, jwtService, events)
	userService := service.NewUserService(userRepo, roleRepo)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, jwtService, broker, nonceStore, cfg)
	userHandler := handler.NewUserHandler(userService)

	// Register routes
	router.Register(e, cfg, authHandler, userHandler)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
