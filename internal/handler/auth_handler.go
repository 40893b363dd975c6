package handler

import (
	"errors"
	"net/http"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"storefront/internal/auth"
	"storefront/internal/config"
	apperrors "storefront/internal/errors"
	"storefront/internal/model"
	"storefront/internal/oauth"
	"storefront/internal/service"
)

// Cookie names of the session contract. The access token is duplicated under
// two names while clients migrate between naming schemes.
const (
	accessCookieName  = "access_token"
	accessCookieAlias = "accessToken"
	refreshCookieName = "refresh_token"
	stateCookieName   = "g_state"
)

// AuthHandler handles the session and identity endpoints.
type AuthHandler struct {
	authService service.AuthService
	jwtService  *auth.JWTService
	broker      oauth.GoogleBroker
	nonces      *auth.NonceStore
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler. broker may be nil when Google
// OAuth is not configured.
func NewAuthHandler(
	authService service.AuthService,
	jwtService *auth.JWTService,
	broker oauth.GoogleBroker,
	nonces *auth.NonceStore,
	cfg *config.Config,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtService:  jwtService,
		broker:      broker,
		nonces:      nonces,
		cfg:         cfg,
	}
}

// SignupRequest represents a signup request.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// TokenRequest represents a password-grant token request.
type TokenRequest struct {
	GrantType string `json:"grant_type" form:"grant_type" validate:"required"`
	Email     string `json:"email" form:"email" validate:"required,email"`
	Password  string `json:"password" form:"password" validate:"required"`
}

// GoogleLoginRequest represents a direct Google identity-token login.
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// GoogleStartRequest represents a redirect-flow start request.
type GoogleStartRequest struct {
	RedirectTo string `json:"redirect_to"`
}

// UpdateUserRequest represents a profile update. Absent fields stay untouched.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

// UserResponse is a user with its resolved role.
type UserResponse struct {
	*model.User
	Role string `json:"role"`
}

// TokenResponse is the body returned on successful issuance.
type TokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	User        *UserResponse `json:"user,omitempty"`
}

// StatusResponse is the soft authentication probe body.
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
}

// Signup godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup data"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorBody
// @Failure 409 {object} errors.ErrorBody
// @Router /auth/v1/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, role, pair, err := h.authService.Signup(c.Request().Context(), req.Email, req.Password, req.FullName, req.Phone)
	if err != nil {
		return respondError(c, err)
	}

	h.setSessionCookies(c, pair)
	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
		User:        &UserResponse{User: user, Role: role},
	})
}

// Token godoc
// @Summary Password-grant login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorBody
// @Failure 401 {object} errors.ErrorBody
// @Router /auth/v1/token [post]
func (h *AuthHandler) Token(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.GrantType != "password" {
		return respondError(c, apperrors.ErrUnsupportedGrant)
	}

	user, role, pair, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	h.setSessionCookies(c, pair)
	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
		User:        &UserResponse{User: user, Role: role},
	})
}

// Refresh godoc
// @Summary Rotate the refresh token
// @Tags auth
// @Produce json
// @Success 200 {object} TokenResponse
// @Failure 401 {object} errors.ErrorBody
// @Router /auth/v1/token/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.refreshTokenFromRequest(c)
	if raw == "" {
		return respondError(c, apperrors.ErrNoToken)
	}

	pair, err := h.authService.Refresh(c.Request().Context(), raw)
	if err != nil {
		return respondError(c, err)
	}

	h.setSessionCookies(c, pair)
	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
	})
}

// Google godoc
// @Summary Login with a Google identity token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body GoogleLoginRequest true "Google id_token"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorBody
// @Failure 401 {object} errors.ErrorBody
// @Router /auth/v1/google [post]
func (h *AuthHandler) Google(c echo.Context) error {
	var req GoogleLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if h.broker == nil {
		return respondError(c, apperrors.ErrGoogleNotConfigured)
	}

	identity, err := h.broker.VerifyIDToken(c.Request().Context(), req.IDToken)
	if err != nil {
		return respondError(c, apperrors.ErrInvalidGoogleToken)
	}

	user, role, pair, err := h.authService.LoginWithGoogleIdentity(c.Request().Context(), identity)
	if err != nil {
		return respondError(c, err)
	}

	h.setSessionCookies(c, pair)
	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
		User:        &UserResponse{User: user, Role: role},
	})
}

// GoogleStart godoc
// @Summary Start the Google redirect flow
// @Tags auth
// @Accept json
// @Produce json
// @Param request body GoogleStartRequest false "Optional redirect target"
// @Success 200 {object} map[string]string
// @Failure 500 {object} errors.ErrorBody
// @Router /auth/v1/google/start [post]
func (h *AuthHandler) GoogleStart(c echo.Context) error {
	if h.broker == nil {
		return respondError(c, apperrors.ErrGoogleNotConfigured)
	}

	var req GoogleStartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RedirectTo == "" {
		req.RedirectTo = c.QueryParam("redirectTo")
	}

	nonce := auth.NewNonce()
	state := auth.EncodeState(auth.State{RedirectTo: req.RedirectTo, Nonce: nonce})
	c.SetCookie(h.newCookie(stateCookieName, nonce, int(auth.StateCookieTTL.Seconds())))

	return c.JSON(http.StatusOK, map[string]string{
		"url": h.broker.AuthCodeURL(state),
	})
}

// GoogleCallback godoc
// @Summary Google redirect-flow callback
// @Tags auth
// @Param code query string true "Authorization code"
// @Param state query string true "Opaque state"
// @Success 302
// @Failure 400 {object} errors.ErrorBody
// @Failure 401 {object} errors.ErrorBody
// @Router /auth/v1/google/callback [get]
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if h.broker == nil {
		return respondError(c, apperrors.ErrGoogleNotConfigured)
	}

	state, err := auth.DecodeState(c.QueryParam("state"))
	if err != nil {
		return respondError(c, apperrors.ErrInvalidState)
	}

	// The nonce must round-trip through the cookie set at start, and each
	// nonce is good for exactly one callback.
	cookie, err := c.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != state.Nonce {
		return respondError(c, apperrors.ErrCsrfMismatch)
	}
	if !h.nonces.Consume(c.Request().Context(), state.Nonce) {
		return respondError(c, apperrors.ErrCsrfMismatch)
	}
	c.SetCookie(h.newCookie(stateCookieName, "", -1))

	code := c.QueryParam("code")
	if code == "" {
		return respondError(c, apperrors.ErrInvalidState)
	}

	rawIDToken, err := h.broker.Exchange(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, oauth.ErrNoIDToken) {
			return respondError(c, apperrors.ErrGoogleNoIDToken)
		}
		c.Logger().Errorf("google code exchange: %v", err)
		return respondError(c, apperrors.ErrGoogleExchangeFailed)
	}

	identity, err := h.broker.VerifyIDToken(c.Request().Context(), rawIDToken)
	if err != nil {
		return respondError(c, apperrors.ErrInvalidGoogleToken)
	}

	_, _, pair, err := h.authService.LoginWithGoogleIdentity(c.Request().Context(), identity)
	if err != nil {
		return respondError(c, err)
	}

	h.setSessionCookies(c, pair)
	target := state.RedirectTo
	if target == "" {
		target = h.cfg.OAuthDefaultRedirect
	}
	return c.Redirect(http.StatusFound, target)
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorBody
// @Router /auth/v1/user [get]
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := identityFromContext(c)
	if err != nil {
		return respondError(c, apperrors.ErrInvalidToken)
	}
	user, role, err := h.authService.GetUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, UserResponse{User: user, Role: role})
}

// Status godoc
// @Summary Soft authentication probe
// @Tags auth
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /auth/v1/status [get]
func (h *AuthHandler) Status(c echo.Context) error {
	raw := h.accessTokenFromRequest(c)
	if raw == "" {
		return c.JSON(http.StatusOK, StatusResponse{Authenticated: false})
	}
	claims, err := h.jwtService.ValidateToken(raw)
	if err != nil {
		// Soft endpoint: any token failure is reported as unauthenticated.
		return c.JSON(http.StatusOK, StatusResponse{Authenticated: false})
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Authenticated: true,
		UserID:        claims.Subject,
		Email:         claims.Email,
		Role:          claims.Role,
	})
}

// Update godoc
// @Summary Update the current user
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorBody
// @Failure 409 {object} errors.ErrorBody
// @Router /auth/v1/user [put]
func (h *AuthHandler) Update(c echo.Context) error {
	userID, err := identityFromContext(c)
	if err != nil {
		return respondError(c, apperrors.ErrInvalidToken)
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.UpdateAccount(c.Request().Context(), userID, service.AccountUpdate{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		return respondError(c, err)
	}

	_, role, err := h.authService.GetUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, UserResponse{User: user, Role: role})
}

// Logout godoc
// @Summary Logout
// @Tags auth
// @Success 204
// @Router /auth/v1/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if raw := h.refreshTokenFromRequest(c); raw != "" {
		if err := h.authService.Logout(c.Request().Context(), raw); err != nil {
			c.Logger().Errorf("logout: %v", err)
		}
	}
	h.clearSessionCookies(c)
	return c.NoContent(http.StatusNoContent)
}

// setSessionCookies applies the full cookie contract for an issuance: the
// access token under both names plus the refresh token.
func (h *AuthHandler) setSessionCookies(c echo.Context, pair service.TokenPair) {
	accessMaxAge := int(auth.AccessTokenExpiry.Seconds())
	refreshMaxAge := int(auth.RefreshTokenExpiry.Seconds())
	c.SetCookie(h.newCookie(accessCookieName, pair.AccessToken, accessMaxAge))
	c.SetCookie(h.newCookie(accessCookieAlias, pair.AccessToken, accessMaxAge))
	c.SetCookie(h.newCookie(refreshCookieName, pair.RefreshToken, refreshMaxAge))
}

func (h *AuthHandler) clearSessionCookies(c echo.Context) {
	c.SetCookie(h.newCookie(accessCookieName, "", -1))
	c.SetCookie(h.newCookie(accessCookieAlias, "", -1))
	c.SetCookie(h.newCookie(refreshCookieName, "", -1))
}

func (h *AuthHandler) newCookie(name, value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.IsProduction() {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	return cookie
}

// accessTokenFromRequest accepts the bearer header or either access cookie.
func (h *AuthHandler) accessTokenFromRequest(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	for _, name := range []string{accessCookieName, accessCookieAlias} {
		if cookie, err := c.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// refreshTokenFromRequest reads the refresh cookie, falling back to a JSON
// body field for cookie-less clients.
func (h *AuthHandler) refreshTokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

// identityFromContext extracts the authenticated user id placed in the
// context by the echo-jwt middleware.
func identityFromContext(c echo.Context) (uuid.UUID, error) {
	token, ok := c.Get("user").(*jwtv5.Token)
	if !ok {
		return uuid.Nil, errors.New("missing token in context")
	}
	claims, ok := token.Claims.(jwtv5.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("unexpected claims type")
	}
	sub, _ := claims["sub"].(string)
	return uuid.Parse(sub)
}
