package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

// TTLSet is an expiring key-value store used purely for membership.
type TTLSet interface {
	Put(ctx context.Context, key string, ttl time.Duration) error
	Contains(ctx context.Context, key string) (bool, error)
}

// RegistryConfig fixes marker lifetimes and the outage policy.
type RegistryConfig struct {
	Prefix string
	// AccessTTL must be at least the access credential lifetime.
	AccessTTL time.Duration
	// RefreshTTL must be at least the refresh credential lifetime.
	RefreshTTL time.Duration
	// FailOpen treats an unreachable store as "not revoked". The default rejects.
	FailOpen  bool
	OpTimeout time.Duration
}

// Registry records revoked credential ids until their markers expire.
type Registry struct {
	store    TTLSet
	cfg      RegistryConfig
	logger   *zap.Logger
	recorder Recorder
}

// NewRegistry builds a registry over store.
func NewRegistry(store TTLSet, cfg RegistryConfig, logger *zap.Logger, recorder Recorder) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, cfg: cfg, logger: logger, recorder: recorderOrNop(recorder)}
}

// Revoke marks credentialID as revoked for the fixed TTL of its kind. Revoking an id twice
// only refreshes the marker.
func (r *Registry) Revoke(ctx context.Context, credentialID string, kind TokenKind) error {
	ttl := r.cfg.AccessTTL
	if kind == KindRefresh {
		ttl = r.cfg.RefreshTTL
	}
	if ttl <= 0 {
		return fmt.Errorf("revoke %s token: no revocation ttl configured", kind)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.store.Put(ctx, r.key(credentialID), ttl); err != nil {
		r.recorder.RecordUpstreamFailure("redis")
		r.logger.Error("blocklist write failed", zap.String("jti", credentialID), zap.Error(err))
		return apperrors.Wrap(ErrUpstreamUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether credentialID is on the blocklist. When the store cannot be reached
// the result follows the configured policy: fail closed returns true with ErrUpstreamUnavailable.
func (r *Registry) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	revoked, err := r.store.Contains(ctx, r.key(credentialID))
	if err == nil {
		return revoked, nil
	}

	r.recorder.RecordUpstreamFailure("redis")
	if r.cfg.FailOpen {
		r.logger.Warn("blocklist unreachable; accepting credential per fail-open policy",
			zap.String("jti", credentialID), zap.Error(err))
		return false, nil
	}
	r.logger.Error("blocklist unreachable; rejecting credential", zap.String("jti", credentialID), zap.Error(err))
	return true, apperrors.Wrap(ErrUpstreamUnavailable, err)
}

func (r *Registry) key(credentialID string) string {
	return r.cfg.Prefix + credentialID
}

func (r *Registry) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.OpTimeout)
}
