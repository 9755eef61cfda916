package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/domain"
	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller for the lifetime of one request.
type Principal struct {
	Identity *domain.ResolvedIdentity
	Claims   *Claims
	Token    string
}

// Gate runs verify → resolve → authorize for protected requests.
type Gate struct {
	verifier      *Verifier
	authenticator *Authenticator
	policy        *Policy
	logger        *zap.Logger
	recorder      Recorder
}

// NewGate constructs the request pipeline.
func NewGate(verifier *Verifier, authenticator *Authenticator, policy *Policy, logger *zap.Logger, recorder Recorder) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		verifier:      verifier,
		authenticator: authenticator,
		policy:        policy,
		logger:        logger,
		recorder:      recorderOrNop(recorder),
	}
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, error) {
	fields := strings.Fields(header)
	switch {
	case len(fields) == 0:
		return "", ErrMissingCredential
	case !strings.EqualFold(fields[0], "Bearer"):
		return "", ErrInvalidCredential
	case len(fields) == 1:
		// scheme without a credential
		return "", ErrMissingCredential
	case len(fields) > 2:
		return "", ErrInvalidCredential
	}
	return fields[1], nil
}

// Check authenticates and authorizes the Authorization header for op, stopping at the first failure.
func (g *Gate) Check(ctx context.Context, authorization string, op Operation) (*Principal, error) {
	token, err := BearerToken(authorization)
	if err != nil {
		return nil, err
	}
	claims, err := g.verifier.Verify(ctx, token, KindAccess)
	if err != nil {
		return nil, err
	}
	identity, err := g.authenticator.Resolve(ctx, claims)
	if err != nil {
		return nil, err
	}
	if err := g.policy.Authorize(identity, op); err != nil {
		return nil, err
	}
	return &Principal{Identity: identity, Claims: claims, Token: token}, nil
}

// Require returns middleware that admits only callers allowed to perform op.
func (g *Gate) Require(op Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := g.Check(c.UserContext(), c.Get(fiber.HeaderAuthorization), op)
		if err != nil {
			g.reject(c, op, err)
			return err
		}
		c.Locals(principalKey, principal)
		return c.Next()
	}
}

func (g *Gate) reject(c *fiber.Ctx, op Operation, err error) {
	domainErr := apperrors.ToDomainError(err)
	g.recorder.RecordRejection(domainErr.Code)
	if errors.Is(err, ErrUpstreamUnavailable) {
		// already logged at error level by the failing component
		return
	}
	g.logger.Info("request rejected",
		zap.String("operation", string(op)),
		zap.String("code", domainErr.Code),
		zap.String("path", c.Path()),
		zap.String("ip", c.IP()))
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
