package service

import (
	"context"
	"errors"

	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/repository"
	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

// UpdateUserInput carries the mutable account fields. Nil pointers leave fields unchanged.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Password *string
}

// UserService exposes account management behind the gate.
type UserService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, hasher auth.PasswordHasher) *UserService {
	return &UserService{users: users, hasher: hasher}
}

// List returns all users, newest first.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// Update applies in to the user with id.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("user with this email already exists", nil)
		}
		return nil, notFound(err)
	}
	return user, nil
}

// Delete removes the user with id.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return notFound(s.users.Delete(ctx, id))
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("user", nil)
	}
	return err
}
