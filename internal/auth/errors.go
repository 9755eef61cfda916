package auth

import (
	"net/http"

	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

// Terminal rejections produced by the gate. None are retried here.
var (
	ErrMissingCredential       = apperrors.NewDomainError("MISSING_CREDENTIAL", "missing bearer credential", http.StatusUnauthorized, nil)
	ErrInvalidCredential       = apperrors.NewDomainError("INVALID_CREDENTIAL", "invalid credential", http.StatusUnauthorized, nil)
	ErrExpiredCredential       = apperrors.NewDomainError("CREDENTIAL_EXPIRED", "credential has expired", http.StatusUnauthorized, nil)
	ErrWrongKind               = apperrors.NewDomainError("WRONG_TOKEN_KIND", "wrong credential kind", http.StatusForbidden, nil)
	ErrRevoked                 = apperrors.NewDomainError("CREDENTIAL_REVOKED", "credential has been revoked", http.StatusUnauthorized, nil)
	ErrIdentityNotFound        = apperrors.NewDomainError("IDENTITY_NOT_FOUND", "user not found", http.StatusUnauthorized, nil)
	ErrForbidden               = apperrors.NewDomainError("FORBIDDEN", "operation not permitted for your role", http.StatusForbidden, nil)
	ErrInvalidLoginCredentials = apperrors.NewDomainError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	ErrUpstreamUnavailable     = apperrors.NewDomainError("UPSTREAM_UNAVAILABLE", "authentication backend unavailable", http.StatusServiceUnavailable, nil)
)

// Recorder receives gate outcomes for metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordRejection(code string)
	RecordUpstreamFailure(dependency string)
	RecordIssued(kind string)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) RecordRejection(string)       {}
func (NopRecorder) RecordUpstreamFailure(string) {}
func (NopRecorder) RecordIssued(string)          {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return NopRecorder{}
	}
	return r
}
