package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/auth-gate/internal/domain"
)

// Decode failures. Callers must not use claims when any of these is returned.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
)

// TokenKind distinguishes access credentials from refresh credentials.
type TokenKind int

const (
	KindAccess TokenKind = iota
	KindRefresh
)

func (k TokenKind) String() string {
	if k == KindRefresh {
		return "refresh"
	}
	return "access"
}

// Subject is the identity snapshot embedded at issuance.
type Subject struct {
	Email  string      `json:"email"`
	UserID string      `json:"user_uid"`
	Role   domain.Role `json:"role"`
}

// SubjectFor snapshots a user into token claims.
func SubjectFor(u *domain.User) Subject {
	return Subject{Email: u.Email, UserID: u.ID, Role: u.Role}
}

// Claims describes JWT payload.
type Claims struct {
	User    Subject `json:"user"`
	Refresh bool    `json:"refresh"`
	jwt.RegisteredClaims
}

// Kind reports which credential kind the claims belong to.
func (c *Claims) Kind() TokenKind {
	if c.Refresh {
		return KindRefresh
	}
	return KindAccess
}

// TokenManager handles issuing and validating JWT tokens. It holds only read-only key material
// and is safe for concurrent use.
type TokenManager struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
	owner  *jwt.Parser
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) { tm.now = now }
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, opts ...TokenOption) *TokenManager {
	tm := &TokenManager{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(tm)
	}
	tm.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(tm.now),
	)
	tm.owner = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	return tm
}

// Now returns the manager's current time.
func (tm *TokenManager) Now() time.Time {
	return tm.now()
}

// Issue builds and signs a credential for subject that expires ttl from now.
func (tm *TokenManager) Issue(subject Subject, kind TokenKind, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		return "", nil, fmt.Errorf("issue %s token: non-positive ttl %s", kind, ttl)
	}
	now := tm.now()
	claims := &Claims{
		User:    subject,
		Refresh: kind == KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, claims, nil
}

// Decode validates the signature, structure and expiry of tokenStr and returns its claims.
func (tm *TokenManager) Decode(tokenStr string) (*Claims, error) {
	return tm.decode(tm.parser, tokenStr)
}

// DecodeIgnoringExpiry verifies signature and structure but accepts an expired credential.
// It only identifies who a credential belonged to and must never be used to grant access.
func (tm *TokenManager) DecodeIgnoringExpiry(tokenStr string) (*Claims, error) {
	claims, err := tm.decode(tm.owner, tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrTokenMalformed)
	}
	return claims, nil
}

func (tm *TokenManager) decode(parser *jwt.Parser, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if err := validateStructure(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

func validateStructure(c *Claims) error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: missing jti", ErrTokenMalformed)
	case c.User.Email == "":
		return fmt.Errorf("%w: missing subject email", ErrTokenMalformed)
	case c.User.UserID == "":
		return fmt.Errorf("%w: missing subject id", ErrTokenMalformed)
	case c.User.Role == "":
		return fmt.Errorf("%w: missing subject role", ErrTokenMalformed)
	}
	return nil
}
