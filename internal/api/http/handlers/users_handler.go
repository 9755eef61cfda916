package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gate/internal/api/dto"
	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/service"
	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

// UsersHandler exposes account endpoints behind the gate.
type UsersHandler struct {
	users     *service.UserService
	validator *apperrors.Validator
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService, validator *apperrors.Validator) *UsersHandler {
	return &UsersHandler{users: users, validator: validator}
}

// Me handles GET /api/v1/auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return auth.ErrMissingCredential
	}
	user, err := h.users.Get(c.UserContext(), principal.Identity.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// List handles GET /api/v1/auth/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, dto.NewUserResponse(u))
	}
	return c.JSON(out)
}

// Get handles GET /api/v1/auth/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Update handles PUT /api/v1/auth/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	user, err := h.users.Update(c.UserContext(), c.Params("id"), service.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Delete handles DELETE /api/v1/auth/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	if err := h.users.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "User deleted successfully"})
}
