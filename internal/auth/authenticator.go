package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/repository"
	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

// IdentityLookup finds the current stored record for an email.
// Implementations return repository.ErrNotFound when no record exists.
type IdentityLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Authenticator turns verified claims into the caller's current identity.
type Authenticator struct {
	users    IdentityLookup
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

// NewAuthenticator constructs an authenticator. timeout bounds each lookup; zero disables it.
func NewAuthenticator(users IdentityLookup, timeout time.Duration, logger *zap.Logger, recorder Recorder) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{users: users, timeout: timeout, logger: logger, recorder: recorderOrNop(recorder)}
}

// Resolve re-reads the subject from storage. The role comes from the stored record, not the claim.
func (a *Authenticator) Resolve(ctx context.Context, claims *Claims) (*domain.ResolvedIdentity, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	user, err := a.users.GetByEmail(ctx, claims.User.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		a.recorder.RecordUpstreamFailure("postgres")
		a.logger.Error("identity lookup failed", zap.String("jti", claims.ID), zap.Error(err))
		return nil, apperrors.Wrap(ErrUpstreamUnavailable, err)
	}
	return user.Identity(), nil
}
