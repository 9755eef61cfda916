package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/config"
	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/events"
	"github.com/spec-kit/auth-gate/internal/repository"
	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

// timingPassword is hashed once so unknown emails cost the same bcrypt work as wrong passwords.
const timingPassword = "auth-gate-timing-equalizer"

// Revoker is the write side of the blocklist.
type Revoker interface {
	Revoke(ctx context.Context, credentialID string, kind auth.TokenKind) error
}

// AuthService issues, refreshes and revokes session credentials.
type AuthService struct {
	users         repository.UserRepository
	tokens        *auth.TokenManager
	verifier      *auth.Verifier
	revoker       Revoker
	authenticator *auth.Authenticator
	hasher        auth.PasswordHasher
	dispatcher    events.Dispatcher
	recorder      auth.Recorder
	logger        *zap.Logger

	accessTTL       time.Duration
	refreshTTL      time.Duration
	lookupTimeout   time.Duration
	refreshResolves bool
	timingHash      string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo      repository.UserRepository
	Tokens        *auth.TokenManager
	Verifier      *auth.Verifier
	Revoker       Revoker
	Authenticator *auth.Authenticator
	Hasher        auth.PasswordHasher
	Dispatcher    events.Dispatcher
	Recorder      auth.Recorder
	Logger        *zap.Logger
}

// RegisterInput carries signup fields.
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// LoginResult is a matched access/refresh pair.
type LoginResult struct {
	User             *domain.User
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RefreshResult is a freshly minted access credential.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = auth.NopRecorder{}
	}
	s := &AuthService{
		users:           deps.UserRepo,
		tokens:          deps.Tokens,
		verifier:        deps.Verifier,
		revoker:         deps.Revoker,
		authenticator:   deps.Authenticator,
		hasher:          deps.Hasher,
		dispatcher:      deps.Dispatcher,
		recorder:        recorder,
		logger:          logger,
		accessTTL:       cfg.Auth.AccessTokenTTL(),
		refreshTTL:      cfg.Auth.RefreshTokenTTL(),
		lookupTimeout:   cfg.Postgres.QueryTimeout(),
		refreshResolves: cfg.Auth.RefreshResolvesIdentity,
	}
	if hash, err := s.hasher.Hash(timingPassword); err == nil {
		s.timingHash = hash
	}
	return s
}

// Register creates a new account with the default role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if _, err := s.lookup(ctx, in.Email); err == nil {
		return nil, apperrors.NewConflict("user with this email already exists", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("user with this email already exists", nil)
		}
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID, user.Email, nil))
	return user, nil
}

// Login checks email and password and issues an access/refresh pair from one subject snapshot.
// Unknown email and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.recorder.RecordUpstreamFailure("postgres")
			s.logger.Error("login lookup failed", zap.Error(err))
			return nil, apperrors.Wrap(auth.ErrUpstreamUnavailable, err)
		}
		s.hasher.Verify(password, s.timingHash)
		s.loginFailed(ctx, email, "unknown_email")
		return nil, auth.ErrInvalidLoginCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.loginFailed(ctx, email, "password_mismatch")
		return nil, auth.ErrInvalidLoginCredentials
	}

	subject := auth.SubjectFor(user)
	access, accessClaims, err := s.issue(subject, auth.KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := s.issue(subject, auth.KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, user.ID, user.Email, nil))
	return &LoginResult{
		User:             user,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// Refresh mints a new access credential from a valid refresh credential.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.verifier.Verify(ctx, refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, err
	}
	if !s.tokens.Now().Before(claims.ExpiresAt.Time) {
		return nil, auth.ErrExpiredCredential
	}

	subject := claims.User
	if s.refreshResolves {
		identity, err := s.authenticator.Resolve(ctx, claims)
		if err != nil {
			return nil, err
		}
		subject = auth.Subject{Email: identity.Email, UserID: identity.ID, Role: identity.Role}
	}

	access, accessClaims, err := s.issue(subject, auth.KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventTokenRefreshed, subject.UserID, subject.Email,
		events.TokenPayload{TokenID: claims.ID, Kind: auth.KindRefresh.String()}))
	return &RefreshResult{AccessToken: access, ExpiresAt: accessClaims.ExpiresAt.Time}, nil
}

// Logout revokes the access credential and, when given, the paired refresh credential.
// Credentials that are already revoked or expired are skipped, so repeating a logout succeeds.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	accessClaims, err := s.verifier.Verify(ctx, accessToken, auth.KindAccess)
	if err != nil && !alreadyInvalid(err) {
		return err
	}

	var refreshClaims *auth.Claims
	if refreshToken != "" {
		refreshClaims, err = s.verifier.Verify(ctx, refreshToken, auth.KindRefresh)
		if err != nil && !alreadyInvalid(err) {
			return err
		}
		if refreshClaims != nil {
			owner, err := s.accessOwner(accessToken, accessClaims)
			if err != nil {
				return err
			}
			if refreshClaims.User.UserID != owner {
				return auth.ErrInvalidCredential
			}
		}
	}

	for _, claims := range []*auth.Claims{accessClaims, refreshClaims} {
		if claims == nil {
			continue
		}
		if err := s.revoker.Revoke(ctx, claims.ID, claims.Kind()); err != nil {
			return err
		}
		s.publish(ctx, events.NewEvent(events.EventTokenRevoked, claims.User.UserID, claims.User.Email,
			events.TokenPayload{TokenID: claims.ID, Kind: claims.Kind().String()}))
	}
	return nil
}

// accessOwner returns the user an access credential was issued to, even when it is already
// revoked or expired.
func (s *AuthService) accessOwner(accessToken string, verified *auth.Claims) (string, error) {
	if verified != nil {
		return verified.User.UserID, nil
	}
	claims, err := s.tokens.DecodeIgnoringExpiry(accessToken)
	if err != nil {
		return "", apperrors.Wrap(auth.ErrInvalidCredential, err)
	}
	return claims.User.UserID, nil
}

func (s *AuthService) lookup(ctx context.Context, email string) (*domain.User, error) {
	if s.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lookupTimeout)
		defer cancel()
	}
	return s.users.GetByEmail(ctx, email)
}

func (s *AuthService) issue(subject auth.Subject, kind auth.TokenKind, ttl time.Duration) (string, *auth.Claims, error) {
	token, claims, err := s.tokens.Issue(subject, kind, ttl)
	if err != nil {
		return "", nil, apperrors.NewInternalError(err)
	}
	s.recorder.RecordIssued(kind.String())
	return token, claims, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	s.publish(ctx, events.NewEvent(events.EventLoginFailed, "", email, events.LoginFailedPayload{Reason: reason}))
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func alreadyInvalid(err error) bool {
	return errors.Is(err, auth.ErrRevoked) || errors.Is(err, auth.ErrExpiredCredential)
}
