package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "storefront/internal/errors"
	"storefront/internal/service"
)

// UserHandler handles the admin back-office user endpoints.
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GrantRoleRequest represents a role grant for a user id.
type GrantRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// PromoteRequest represents a role grant addressed by email.
type PromoteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} model.User
// @Router /admin/v1/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	users, err := h.userService.ListUsers(c.Request().Context(), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// GetUser godoc
// @Summary Get one user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} errors.ErrorBody
// @Router /admin/v1/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	user, role, err := h.userService.GetUser(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, UserResponse{User: user, Role: role})
}

// RoleHistory godoc
// @Summary Role grant history for a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {array} model.RoleAssignment
// @Failure 404 {object} errors.ErrorBody
// @Router /admin/v1/users/{id}/roles [get]
func (h *UserHandler) RoleHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	history, err := h.userService.RoleHistory(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

// GrantRole godoc
// @Summary Grant a role to a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body GrantRoleRequest true "Role to grant"
// @Success 200 {object} model.RoleAssignment
// @Failure 400 {object} errors.ErrorBody
// @Failure 404 {object} errors.ErrorBody
// @Router /admin/v1/users/{id}/role [post]
func (h *UserHandler) GrantRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var req GrantRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	assignment, err := h.userService.GrantRole(c.Request().Context(), id, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, assignment)
}

// Promote godoc
// @Summary Grant a role by email
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PromoteRequest true "Email and role"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorBody
// @Failure 404 {object} errors.ErrorBody
// @Router /admin/v1/promote [post]
func (h *UserHandler) Promote(c echo.Context) error {
	var req PromoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.userService.PromoteByEmail(c.Request().Context(), req.Email, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func respondError(c echo.Context, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if httpErr.StatusCode == http.StatusInternalServerError {
		c.Logger().Errorf("internal error: %v", err)
	}
	return c.JSON(httpErr.StatusCode, httpErr.Body())
}
