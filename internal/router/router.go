package router

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"storefront/internal/config"
	apperrors "storefront/internal/errors"
	"storefront/internal/handler"
	"storefront/internal/model"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/auth/v1")

	// Public routes
	v1.POST("/signup", authHandler.Signup)
	v1.POST("/token", authHandler.Token)
	v1.POST("/token/refresh", authHandler.Refresh)
	v1.POST("/google", authHandler.Google)
	v1.POST("/google/start", authHandler.GoogleStart)
	v1.GET("/google/callback", authHandler.GoogleCallback)
	v1.GET("/status", authHandler.Status)
	v1.POST("/logout", authHandler.Logout)

	jwtMiddleware := echojwt.WithConfig(jwtConfig(cfg))

	// Authenticated routes (bearer header or session cookie)
	user := v1.Group("", jwtMiddleware)
	user.GET("/user", authHandler.Me)
	user.PUT("/user", authHandler.Update)

	// Admin back office
	admin := e.Group("/admin/v1", jwtMiddleware, RequireRole(model.RoleAdmin))
	admin.GET("/users", userHandler.ListUsers)
	admin.GET("/users/:id", userHandler.GetUser)
	admin.GET("/users/:id/roles", userHandler.RoleHistory)
	admin.POST("/users/:id/role", userHandler.GrantRole)
	admin.POST("/promote", userHandler.Promote)
}

// jwtConfig accepts the access token from the Authorization header or from
// either access cookie, and maps failures onto the wire error envelope.
func jwtConfig(cfg *config.Config) echojwt.Config {
	return echojwt.Config{
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:Authorization:Bearer ,cookie:access_token,cookie:accessToken",
		ErrorHandler: func(c echo.Context, err error) error {
			kind := apperrors.ErrInvalidToken
			if errors.Is(err, echojwt.ErrJWTMissing) {
				kind = apperrors.ErrNoToken
			}
			return c.JSON(http.StatusUnauthorized, apperrors.NewBody(kind.Error()))
		},
	}
}

// RequireRole aborts with 403 unless the token's role claim is in the
// allowed set. It assumes the echo-jwt middleware already ran.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return c.JSON(http.StatusUnauthorized, apperrors.NewBody(apperrors.ErrNoToken.Error()))
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, apperrors.NewBody(apperrors.ErrInvalidToken.Error()))
			}
			role, _ := claims["role"].(string)
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, apperrors.NewBody("forbidden"))
			}
			return next(c)
		}
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
