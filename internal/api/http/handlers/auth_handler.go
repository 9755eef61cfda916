package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gate/internal/api/dto"
	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/service"
	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

const tokenTypeBearer = "bearer"

// AuthHandler exposes the credential lifecycle endpoints.
type AuthHandler struct {
	auth      *service.AuthService
	validator *apperrors.Validator
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, validator *apperrors.Validator) *AuthHandler {
	return &AuthHandler{auth: authService, validator: validator}
}

// Signup handles POST /api/v1/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoginResponse{
		Message:      "Login successful",
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    tokenTypeBearer,
		User:         dto.LoginUser{ID: result.User.ID, Email: result.User.Email},
	})
}

// Refresh handles POST /api/v1/auth/refresh with the refresh credential as bearer.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	result, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}
	return c.JSON(dto.RefreshResponse{AccessToken: result.AccessToken, TokenType: tokenTypeBearer})
}

// Logout handles POST /api/v1/auth/logout with the access credential as bearer.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	if err := h.auth.Logout(c.UserContext(), token, req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Token successfully revoked"})
}
