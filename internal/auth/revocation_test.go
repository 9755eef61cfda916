package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/persistence"
)

type countingRecorder struct {
	rejections []string
	upstream   []string
	issued     []string
}

func (r *countingRecorder) RecordRejection(code string)      { r.rejections = append(r.rejections, code) }
func (r *countingRecorder) RecordUpstreamFailure(dep string) { r.upstream = append(r.upstream, dep) }
func (r *countingRecorder) RecordIssued(kind string)         { r.issued = append(r.issued, kind) }

func newTestRegistry(t *testing.T, failOpen bool) (*Registry, *miniredis.Miniredis, *countingRecorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	rec := &countingRecorder{}
	registry := NewRegistry(persistence.NewRedisFromClient(client), RegistryConfig{
		Prefix:     "blocklist:jti:",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		FailOpen:   failOpen,
		OpTimeout:  time.Second,
	}, zap.NewNop(), rec)
	return registry, mr, rec
}

func TestRegistry_RevokeLifecycle(t *testing.T) {
	registry, mr, _ := newTestRegistry(t, false)
	ctx := context.Background()

	revoked, err := registry.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, registry.Revoke(ctx, "jti-1", KindAccess))

	revoked, err = registry.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("blocklist:jti:jti-1"))
	assert.Equal(t, time.Hour, mr.TTL("blocklist:jti:jti-1"))

	mr.FastForward(59 * time.Minute)
	revoked, err = registry.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(time.Minute)
	revoked, err = registry.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRegistry_RefreshKindUsesRefreshTTL(t *testing.T) {
	registry, mr, _ := newTestRegistry(t, false)

	require.NoError(t, registry.Revoke(context.Background(), "jti-r", KindRefresh))
	assert.Equal(t, 7*24*time.Hour, mr.TTL("blocklist:jti:jti-r"))
}

func TestRegistry_RevokeIsIdempotent(t *testing.T) {
	registry, _, _ := newTestRegistry(t, false)
	ctx := context.Background()

	require.NoError(t, registry.Revoke(ctx, "jti-2", KindAccess))
	require.NoError(t, registry.Revoke(ctx, "jti-2", KindAccess))

	revoked, err := registry.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRegistry_FailClosed(t *testing.T) {
	registry, mr, rec := newTestRegistry(t, false)
	mr.SetError("ERR store offline")

	revoked, err := registry.IsRevoked(context.Background(), "jti-3")
	assert.True(t, revoked)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, []string{"redis"}, rec.upstream)

	err = registry.Revoke(context.Background(), "jti-3", KindAccess)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestRegistry_FailOpen(t *testing.T) {
	registry, mr, rec := newTestRegistry(t, true)
	mr.SetError("ERR store offline")

	revoked, err := registry.IsRevoked(context.Background(), "jti-4")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, []string{"redis"}, rec.upstream)
}

func TestRegistry_MissingTTL(t *testing.T) {
	registry := NewRegistry(nil, RegistryConfig{}, nil, nil)
	assert.Error(t, registry.Revoke(context.Background(), "jti", KindAccess))
}
