package auth

import (
	"context"
	"errors"

	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

// RevocationChecker is the read side of the blocklist.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
}

type postCheck func(ctx context.Context, v *Verifier, claims *Claims) error

// postChecks run after the kind check, per expected kind. Both kinds consult the blocklist
// because logout may revoke the paired refresh credential.
var postChecks = map[TokenKind][]postCheck{
	KindAccess:  {checkNotRevoked},
	KindRefresh: {checkNotRevoked},
}

// Verifier validates a presented credential: presence, decode, kind, then post-checks.
type Verifier struct {
	tokens  *TokenManager
	revoked RevocationChecker
}

// NewVerifier constructs a verifier.
func NewVerifier(tokens *TokenManager, revoked RevocationChecker) *Verifier {
	return &Verifier{tokens: tokens, revoked: revoked}
}

// Verify returns the claims of raw when it is a valid, unrevoked credential of the expected kind.
// The first failing step decides the returned error.
func (v *Verifier) Verify(ctx context.Context, raw string, expected TokenKind) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingCredential
	}

	claims, err := v.tokens.Decode(raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperrors.Wrap(ErrExpiredCredential, err)
		}
		return nil, apperrors.Wrap(ErrInvalidCredential, err)
	}

	if claims.Kind() != expected {
		return nil, ErrWrongKind
	}

	for _, check := range postChecks[expected] {
		if err := check(ctx, v, claims); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

func checkNotRevoked(ctx context.Context, v *Verifier, claims *Claims) error {
	revoked, err := v.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrRevoked
	}
	return nil
}
